// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package version

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantTag string
		wantErr bool
	}{
		{
			name:  "release",
			input: "7.17.3",
			want:  "7.17.3",
		},
		{
			name:    "snapshot",
			input:   "8.1.0-SNAPSHOT",
			want:    "8.1.0-SNAPSHOT",
			wantTag: "SNAPSHOT",
		},
		{
			name:    "dotted tag",
			input:   "6.0.0.beta1",
			want:    "6.0.0.beta1",
			wantTag: "beta1",
		},
		{
			name:    "letters",
			input:   "a.v.c",
			wantErr: true,
		},
		{
			name:    "missing patch",
			input:   "7.10",
			wantErr: true,
		},
		{
			name:    "leading v",
			input:   "v7.10.0",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse("Elasticsearch", tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if got.String() != tt.want {
				t.Errorf("Parse() got = %v, want %v", got, tt.want)
			}
			if got.Tag() != tt.wantTag {
				t.Errorf("Parse() tag = %v, want %v", got.Tag(), tt.wantTag)
			}
		})
	}
}

func TestParse_errorMessage(t *testing.T) {
	_, err := Parse("Elasticsearch", "a.v.c")
	require.EqualError(t, err, "Elasticsearch version format is wrong - unable to continue. (a.v.c)")

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "a.v.c", parseErr.Value)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		version string
		want    bool
		wantErr bool
	}{
		{name: "inside range", expr: ">= 7.0.0 < 8.0.0", version: "7.10.2", want: true},
		{name: "lower bound inclusive", expr: ">= 7.0.0 < 8.0.0", version: "7.0.0", want: true},
		{name: "upper bound exclusive", expr: ">= 7.0.0 < 8.0.0", version: "8.0.0", want: false},
		{name: "below range", expr: ">= 7.0.0 < 8.0.0", version: "6.8.23", want: false},
		{name: "bare version", expr: "6.2.4", version: "6.2.4", want: true},
		{name: "bare version mismatch", expr: "6.2.4", version: "6.2.5", want: false},
		{name: "open ended", expr: ">= 7.13.0", version: "9.0.0", want: true},
		{name: "snapshot matches release range", expr: ">= 8.1.0", version: "8.1.0-SNAPSHOT", want: true},
		{name: "alternatives", expr: "< 6.0.0 || >= 8.0.0", version: "8.2.0", want: true},
		{name: "invalid expression", expr: ">= seven", version: "7.0.0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.expr, MustParse(tt.version))
			if (err != nil) != tt.wantErr {
				t.Errorf("Matches() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	require.True(t, MustParse("7.9.0").LessThan(MustParse("7.10.0")))
	require.True(t, MustParse("8.0.0").AtLeast(MustParse("8.0.0")))
	require.True(t, MustParse("8.0.0-SNAPSHOT").AtLeast(MustParse("8.0.0")))
	require.False(t, MustParse("6.8.0").AtLeast(MustParse("7.0.0")))
}
