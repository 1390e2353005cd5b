// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package run

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/elastic/support-diagnostics/internal/catalog"
)

func TestContext_History(t *testing.T) {
	c := New("id", catalog.Elasticsearch, "api", t.TempDir())
	require.True(t, c.Authorized)

	c.Record("nodes", CallRecord{Attempts: 1, Succeeded: true, Status: 200})
	c.Record("cat_indices", CallRecord{Attempts: 4, Retries: 3, Status: 502})
	c.Record("nodes", CallRecord{Attempts: 2, Retries: 1, Succeeded: true, Status: 200})

	want := []NamedRecord{
		{Name: "cat_indices", CallRecord: CallRecord{Attempts: 4, Retries: 3, Status: 502}},
		{Name: "nodes", CallRecord: CallRecord{Attempts: 2, Retries: 1, Succeeded: true, Status: 200}},
	}
	if diff := cmp.Diff(want, c.History()); diff != "" {
		t.Errorf("History() diff: %s", diff)
	}
	require.Equal(t, []string{"cat_indices"}, c.Failed())

	r, ok := c.Call("nodes")
	require.True(t, ok)
	require.Equal(t, 1, r.Retries)

	c.SetUnauthorized()
	require.False(t, c.Authorized)
}

func TestContext_WriteFile(t *testing.T) {
	c := New("id", catalog.Elasticsearch, "api", "/work")
	c.FS = afero.NewMemMapFs()

	require.NoError(t, c.WriteFile("cat/cat_nodes.txt", []byte("nodes")))
	got, err := afero.ReadFile(c.FS, "cat/cat_nodes.txt")
	require.NoError(t, err)
	require.Equal(t, "nodes", string(got))

	f, err := c.Create("syscalls/top.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("top"))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	exists, err := afero.Exists(c.FS, "syscalls/top.txt")
	require.NoError(t, err)
	require.True(t, exists)
}
