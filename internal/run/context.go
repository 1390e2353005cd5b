// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package run holds the state of a single diagnostic run.
package run

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/version"
)

// CallRecord is the outcome of one named call as recorded in the call history.
type CallRecord struct {
	Attempts  int  `json:"attempts"`
	Retries   int  `json:"retries"`
	Succeeded bool `json:"succeeded"`
	Status    int  `json:"status,omitempty"`
	Pages     int  `json:"pages,omitempty"`
}

// NamedRecord pairs a CallRecord with the name of its call.
type NamedRecord struct {
	Name string `json:"name"`
	CallRecord
}

// Context is the mutable state threaded through every step of one diagnostic run. It is owned by
// exactly one run and must not be shared between runs.
type Context struct {
	ID       string
	Product  catalog.Product
	DiagType string
	Mode     string

	Scheme string
	Host   string
	Port   int

	// OutputDir is the working directory all results of the run are written to.
	OutputDir string
	// FS is rooted at OutputDir. Paths handed to it are relative to the working directory.
	FS afero.Fs

	Version *version.Version
	Calls   *catalog.ResolvedCallSet

	// Authorized turns false once a call was rejected with 401 or 403.
	Authorized     bool
	RunSystemCalls bool
	DockerPresent  bool

	TargetOS string
	LogDir   string
	// Spaces are the Kibana spaces space aware calls are executed for.
	Spaces []string

	history map[string]CallRecord
}

// New creates the context for a run.
func New(id string, product catalog.Product, diagType, outputDir string) *Context {
	return &Context{
		ID:        id,
		Product:   product,
		DiagType:  diagType,
		OutputDir: outputDir,
		FS:        afero.NewBasePathFs(afero.NewOsFs(), outputDir),
		// innocent until proven guilty
		Authorized: true,
		history:    map[string]CallRecord{},
	}
}

// WriteFile writes data to the path rel inside the working directory, creating parent directories.
func (c *Context) WriteFile(rel string, data []byte) error {
	if dir := filepath.Dir(rel); dir != "." {
		if err := c.FS.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return afero.WriteFile(c.FS, rel, data, 0o644)
}

// Create opens the file rel inside the working directory for writing, creating parent directories.
func (c *Context) Create(rel string) (afero.File, error) {
	if dir := filepath.Dir(rel); dir != "." {
		if err := c.FS.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return c.FS.OpenFile(rel, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

// Record stores the outcome of the call name, replacing any earlier record.
func (c *Context) Record(name string, r CallRecord) {
	c.history[name] = r
}

// Call returns the recorded outcome of the call name.
func (c *Context) Call(name string) (CallRecord, bool) {
	r, ok := c.history[name]
	return r, ok
}

// SetUnauthorized marks the run as having hit an authorization failure.
func (c *Context) SetUnauthorized() {
	c.Authorized = false
}

// History returns the call history ordered by call name.
func (c *Context) History() []NamedRecord {
	res := make([]NamedRecord, 0, len(c.history))
	for name, r := range c.history {
		res = append(res, NamedRecord{Name: name, CallRecord: r})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Failed returns the names of all calls that did not succeed, ordered by name.
func (c *Context) Failed() []string {
	var res []string
	for _, r := range c.History() {
		if !r.Succeeded {
			res = append(res, r.Name)
		}
	}
	return res
}
