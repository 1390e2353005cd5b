// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package system

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

// sink collects files written by CollectLogs.
type sink map[string]*bytes.Buffer

func (s sink) create(name string) (io.WriteCloser, error) {
	b := &bytes.Buffer{}
	s[name] = b
	return nopCloser{b}, nil
}

func logDir(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/var/log/elasticsearch", 0o755))
	now := time.Now()
	files := []struct {
		name string
		age  time.Duration
	}{
		{"elasticsearch.log", 0},
		{"elasticsearch-2024-01-01-1.log.gz", 2 * time.Hour},
		{"elasticsearch_server.json", time.Hour},
		{"gc.log.01", 3 * time.Hour},
		{"elasticsearch-2023-12-31-1.json.gz", 4 * time.Hour},
	}
	for _, f := range files {
		p := "/var/log/elasticsearch/" + f.name
		require.NoError(t, afero.WriteFile(fs, p, []byte(f.name), 0o644))
		require.NoError(t, fs.Chtimes(p, now.Add(-f.age), now.Add(-f.age)))
	}
	require.NoError(t, fs.MkdirAll("/var/log/elasticsearch/nested.log", 0o755))
	return fs
}

func TestLocal_ListFiles(t *testing.T) {
	l := NewLocal(logDir(t))
	names, err := l.ListFiles(context.Background(), "/var/log/elasticsearch")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"elasticsearch.log",
		"elasticsearch_server.json",
		"elasticsearch-2024-01-01-1.log.gz",
		"gc.log.01",
		"elasticsearch-2023-12-31-1.json.gz",
	}, names)

	_, err = l.ListFiles(context.Background(), "/does/not/exist")
	require.Error(t, err)
}

func TestCollectLogs(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{
			name:  "limited to the most recent",
			limit: 2,
			want:  []string{"elasticsearch.log", "elasticsearch_server.json"},
		},
		{
			name:  "no limit skips non log files",
			limit: 0,
			want: []string{
				"elasticsearch.log",
				"elasticsearch_server.json",
				"elasticsearch-2024-01-01-1.log.gz",
				"elasticsearch-2023-12-31-1.json.gz",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := sink{}
			got, err := CollectLogs(context.Background(), NewLocal(logDir(t)), "/var/log/elasticsearch", tt.limit, out.create)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			for _, name := range got {
				assert.Equal(t, name, out[name].String())
			}
		})
	}
}

type failingCopy struct {
	*Local
	fail string
}

func (f failingCopy) Copy(ctx context.Context, path string, w io.Writer) error {
	if path == f.fail {
		return errors.New("permission denied")
	}
	return f.Local.Copy(ctx, path, w)
}

func TestCollectLogs_PartialFailure(t *testing.T) {
	c := failingCopy{Local: NewLocal(logDir(t)), fail: "/var/log/elasticsearch/elasticsearch.log"}
	got, err := CollectLogs(context.Background(), c, "/var/log/elasticsearch", 2, sink{}.create)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Equal(t, []string{"elasticsearch_server.json", "elasticsearch-2024-01-01-1.log.gz"}, got)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/var/log", "'/var/log'"},
		{"with space", "'with space'"},
		{"it's", `'it'"'"'s'`},
		{"", "''"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.in))
		})
	}
}

func TestCollectDigest(t *testing.T) {
	d := CollectDigest(context.Background())
	require.NotNil(t, d)
	assert.False(t, d.CollectedAt.IsZero())
}
