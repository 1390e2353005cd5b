// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/log"
	"github.com/elastic/support-diagnostics/internal/rest"
	"github.com/elastic/support-diagnostics/internal/run"
	"github.com/elastic/support-diagnostics/internal/version"
)

func TestSequence(t *testing.T) {
	tests := []struct {
		diagType DiagType
		want     []StepID
	}{
		{
			diagType: API,
			want:     []StepID{CheckVersion, CheckAuth, PlatformDetails, RunQueries, Manifest, DiagManifest},
		},
		{
			diagType: Local,
			want: []StepID{CheckVersion, CheckAuth, PlatformDetails, RunQueries,
				SystemCommands, CollectLogs, SystemDigest, DockerInfo, Manifest, DiagManifest},
		},
		{
			diagType: Remote,
			want: []StepID{CheckVersion, CheckAuth, PlatformDetails, RunQueries,
				SystemCommands, CollectLogs, DockerInfo, Manifest, DiagManifest},
		},
		{
			diagType: KibanaAPI,
			want:     []StepID{CheckVersion, PlatformDetails, KibanaSpaces, RunQueries, Manifest, DiagManifest},
		},
		{
			diagType: KibanaLocal,
			want: []StepID{CheckVersion, PlatformDetails, KibanaSpaces, RunQueries,
				SystemCommands, CollectLogs, SystemDigest, DockerInfo, Manifest, DiagManifest},
		},
		{
			diagType: LogstashRemote,
			want: []StepID{CheckVersion, PlatformDetails, RunQueries,
				SystemCommands, CollectLogs, DockerInfo, Manifest, DiagManifest},
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.diagType), func(t *testing.T) {
			got := Sequence(tt.diagType)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Sequence() mismatch (-want +got):\n%s", diff)
			}
			for _, id := range got {
				assert.Contains(t, steps, id)
			}
		})
	}
}

func TestDiagType(t *testing.T) {
	tests := []struct {
		in      string
		product catalog.Product
		port    int
		local   bool
		remote  bool
	}{
		{in: "api", product: catalog.Elasticsearch, port: 9200},
		{in: "local", product: catalog.Elasticsearch, port: 9200, local: true},
		{in: "remote", product: catalog.Elasticsearch, port: 9200, remote: true},
		{in: "kibana-local", product: catalog.Kibana, port: 5601, local: true},
		{in: "logstash-api", product: catalog.Logstash, port: 9600},
		{in: "logstash-remote", product: catalog.Logstash, port: 9600, remote: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			dt, err := ParseDiagType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.product, dt.Product())
			assert.Equal(t, tt.port, dt.DefaultPort())
			assert.Equal(t, tt.local, dt.IsLocal())
			assert.Equal(t, tt.remote, dt.IsRemote())
		})
	}
	_, err := ParseDiagType("kibana")
	require.Error(t, err)
}

func TestDiagnosticError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&DiagnosticError{Step: CheckVersion, Err: cause, LogFile: "/tmp/run/diagnostics.log"})
	assert.Equal(t, "checkVersion failed: connection refused - see /tmp/run/diagnostics.log for details", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNodePlatform(t *testing.T) {
	body := []byte(`{"nodes":{
		"b":{"host":"10.0.0.2","ip":"10.0.0.2","os":{"name":"Windows Server 2019"},"settings":{"path":{"logs":"C:\\es\\logs"}}},
		"a":{"host":"10.0.0.1","ip":"10.0.0.1","os":{"name":"Linux"},"settings":{"path":{"logs":"/var/log/es"}}}
	}}`)
	tests := []struct {
		name    string
		host    string
		wantOS  string
		wantDir string
	}{
		{name: "matching host", host: "10.0.0.2", wantOS: "Windows Server 2019", wantDir: `C:\es\logs`},
		{name: "first node otherwise", host: "localhost", wantOS: "Linux", wantDir: "/var/log/es"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			osName, dir, err := nodePlatform(body, tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOS, osName)
			assert.Equal(t, tt.wantDir, dir)
		})
	}
	_, _, err := nodePlatform([]byte(`{"nodes":{}}`), "localhost")
	require.Error(t, err)
}

func TestOSFamily(t *testing.T) {
	assert.Equal(t, "linux", osFamily("Linux"))
	assert.Equal(t, "darwin", osFamily("Mac OS X"))
	assert.Equal(t, "windows", osFamily("Windows 10"))
}

func TestSpaceIDs(t *testing.T) {
	got, err := spaceIDs([]byte(`[{"id":"marketing"},{"id":"default"},{"name":"no id"},{"id":"ops"}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{rest.DefaultSpace, "marketing", "ops"}, got)

	_, err = spaceIDs([]byte(`{"statusCode":404}`))
	require.Error(t, err)
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, 3, s.CallRetries)
	assert.Equal(t, 100, s.PageSize)
	assert.Equal(t, "/var/log/kibana", s.LogDirs[catalog.Kibana])
	assert.NotEmpty(t, s.SystemCommands["linux"])
	assert.NotEmpty(t, s.DockerCommands)

	tests := []struct {
		product catalog.Product
		version string
		want    bool
	}{
		{product: catalog.Elasticsearch, version: "5.6.16", want: false},
		{product: catalog.Elasticsearch, version: "6.0.0", want: true},
		{product: catalog.Kibana, version: "6.4.3", want: false},
		{product: catalog.Logstash, version: "8.11.1-SNAPSHOT", want: true},
	}
	for _, tt := range tests {
		got, err := s.Supports(tt.product, version.MustParse(tt.version))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.product, tt.version)
	}

	s.Supported[catalog.Kibana] = ">= nope"
	_, err = s.Supports(catalog.Kibana, version.MustParse("8.0.0"))
	require.Error(t, err)

	_, err = LoadSettings("/does/not/exist.yml")
	require.Error(t, err)
}

func TestCheckAuth(t *testing.T) {
	tests := []struct {
		version        string
		status         int
		wantPath       string
		wantAuthorized bool
	}{
		{version: "6.8.23", status: http.StatusOK, wantPath: "/_xpack/security/user/_has_privileges", wantAuthorized: true},
		{version: "7.17.9", status: http.StatusOK, wantPath: "/_security/user/_has_privileges", wantAuthorized: true},
		{version: "8.11.1", status: http.StatusUnauthorized, wantPath: "/_security/user/_has_privileges", wantAuthorized: false},
		{version: "8.11.1", status: http.StatusInternalServerError, wantPath: "/_security/user/_has_privileges", wantAuthorized: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %d", tt.version, tt.status), func(t *testing.T) {
			var mu sync.Mutex
			var seen []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				seen = append(seen, r.Method+" "+r.URL.Path)
				mu.Unlock()
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"has_all_requested":false}`))
			}))
			defer srv.Close()

			params := testParams(t, srv, API)
			client, err := rest.NewClient(rest.Config{Scheme: "http", Host: params.Host, Port: params.Port})
			require.NoError(t, err)
			defer client.Close()
			logger, _ := logtest.NewNullLogger()
			rc := run.New("test", catalog.Elasticsearch, string(API), t.TempDir())
			rc.Version = version.MustParse(tt.version)
			d := &diagnostic{
				rc:       rc,
				log:      log.NewRun(io.Discard, "test", false),
				executor: rest.NewExecutor(client, rest.Options{}, logger),
			}

			require.NoError(t, checkAuth(context.Background(), d))
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, []string{"POST " + tt.wantPath}, seen)
			assert.Equal(t, tt.wantAuthorized, rc.Authorized)
		})
	}
}
