// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"k8s.io/client-go/transport"
)

// Config describes how to reach and authenticate against the diagnostic target.
type Config struct {
	Scheme string
	Host   string
	Port   int

	User        string
	Password    string
	APIKey      string
	BearerToken string

	// PKI material, file paths.
	CAFile   string
	CertFile string
	KeyFile  string
	// Insecure skips verification of the server certificate.
	Insecure bool

	ProxyURL      string
	ProxyUser     string
	ProxyPassword string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	SocketTimeout  time.Duration

	UserAgent string
	Headers   map[string]string
}

// BaseURL returns scheme://host:port.
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// Client is the HTTP client of one diagnostic run. It owns a connection pool and must be closed when
// the run ends.
type Client struct {
	base      string
	http      *http.Client
	transport *http.Transport
}

// NewClient builds a client from cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("no host configured")
	}
	tc := &transport.Config{
		UserAgent:   cfg.UserAgent,
		Username:    cfg.User,
		Password:    cfg.Password,
		BearerToken: cfg.BearerToken,
		TLS: transport.TLSConfig{
			CAFile:   cfg.CAFile,
			CertFile: cfg.CertFile,
			KeyFile:  cfg.KeyFile,
			Insecure: cfg.Insecure,
		},
	}
	tlsConfig, err := transport.TLSConfigFor(tc)
	if err != nil {
		return nil, fmt.Errorf("while configuring TLS: %w", err)
	}
	proxy, err := proxyFunc(cfg)
	if err != nil {
		return nil, err
	}
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	ht := &http.Transport{
		Proxy:                 proxy,
		DialContext:           dialer.DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.SocketTimeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
	if cfg.APIKey != "" || len(cfg.Headers) > 0 {
		tc.WrapTransport = func(rt http.RoundTripper) http.RoundTripper {
			return &headerRoundTripper{apiKey: cfg.APIKey, headers: cfg.Headers, rt: rt}
		}
	}
	// the wrappers add basic auth, bearer token and user agent headers around WrapTransport
	rt, err := transport.HTTPWrappersForConfig(tc, ht)
	if err != nil {
		return nil, err
	}
	return &Client{
		base:      cfg.BaseURL(),
		transport: ht,
		http: &http.Client{
			Transport: rt,
			Timeout:   cfg.RequestTimeout,
		},
	}, nil
}

func proxyFunc(cfg Config) (func(*http.Request) (*url.URL, error), error) {
	if cfg.ProxyURL == "" {
		return http.ProxyFromEnvironment, nil
	}
	u, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %w", err)
	}
	if cfg.ProxyUser != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return http.ProxyURL(u), nil
}

// Do issues a request against path, which is relative to the target's base URL and may carry a query.
func (c *Client) Do(ctx context.Context, method, path string, body string) (*http.Response, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// Close releases all pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// headerRoundTripper sets the Elastic API key scheme and product specific headers, which
// transport.Config has no field for.
type headerRoundTripper struct {
	apiKey  string
	headers map[string]string
	rt      http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	if h.apiKey != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "ApiKey "+h.apiKey)
	}
	return h.rt.RoundTrip(req)
}
