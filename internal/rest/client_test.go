// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_BaseURL(t *testing.T) {
	require.Equal(t, "http://localhost:9200", Config{Host: "localhost", Port: 9200}.BaseURL())
	require.Equal(t, "https://[::1]:5601", Config{Scheme: "https", Host: "::1", Port: 5601}.BaseURL())
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "plain", cfg: Config{Host: "localhost", Port: 9200}},
		{name: "insecure", cfg: Config{Scheme: "https", Host: "localhost", Port: 9200, Insecure: true}},
		{name: "no host", cfg: Config{Port: 9200}, wantErr: true},
		{name: "missing CA file", cfg: Config{Host: "localhost", Port: 9200, CAFile: "/does/not/exist.pem"}, wantErr: true},
		{name: "bad proxy", cfg: Config{Host: "localhost", Port: 9200, ProxyURL: "http://[::1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if c != nil {
				c.Close()
			}
		})
	}
}

func TestClient_authHeaders(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "basic", cfg: Config{User: "elastic", Password: "changeme"}, want: "Basic ZWxhc3RpYzpjaGFuZ2VtZQ=="},
		{name: "api key", cfg: Config{APIKey: "a2V5"}, want: "ApiKey a2V5"},
		{name: "bearer", cfg: Config{BearerToken: "token"}, want: "Bearer token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen requests
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen.add(r.Header.Get("Authorization"))
				seen.add(r.Header.Get("kbn-xsrf"))
			}))
			defer srv.Close()

			cfg := tt.cfg
			cfg.Host, cfg.Port = hostPort(t, srv.URL)
			cfg.Headers = map[string]string{"kbn-xsrf": "true"}
			c, err := NewClient(cfg)
			require.NoError(t, err)
			defer c.Close()

			resp, err := c.Do(context.Background(), http.MethodGet, "_nodes", "")
			require.NoError(t, err)
			require.NoError(t, resp.Body.Close())
			require.Equal(t, []string{tt.want, "true"}, seen.all())
		})
	}
}

func TestClient_apiKeyWithUserAgent(t *testing.T) {
	var seen requests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.Header.Get("Authorization"))
		seen.add(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	cfg := Config{APIKey: "a2V5", UserAgent: "support-diagnostics/test"}
	cfg.Host, cfg.Port = hostPort(t, srv.URL)
	c, err := NewClient(cfg)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Do(context.Background(), http.MethodGet, "/", "")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, []string{"ApiKey a2V5", "support-diagnostics/test"}, seen.all())
}
