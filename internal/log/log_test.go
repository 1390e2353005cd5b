// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRun(t *testing.T) {
	var console bytes.Buffer
	r := NewRun(&console, "abc", false)
	r.Warnf("bypassing %s", "ccr_stats")
	r.Debug("not visible")

	require.Contains(t, string(r.Bytes()), "bypassing ccr_stats")
	require.Contains(t, string(r.Bytes()), "run=abc")
	require.NotContains(t, string(r.Bytes()), "not visible")
	require.Equal(t, console.String(), string(r.Bytes()))
}

func TestNewRun_verbose(t *testing.T) {
	var console bytes.Buffer
	r := NewRun(&console, "abc", true)
	r.Debug("visible")
	require.Contains(t, string(r.Bytes()), "visible")
}
