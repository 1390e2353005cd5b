// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/ghodss/yaml"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/version"
)

//go:embed diags.yml
var defaultSettings []byte

// Settings tune the collection. Durations are given in seconds.
type Settings struct {
	CallRetries    int                          `json:"call-retries"`
	PauseRetries   int                          `json:"pause-retries"`
	PageSize       int                          `json:"page-size"`
	ConnectTimeout int                          `json:"connect-timeout"`
	RequestTimeout int                          `json:"request-timeout"`
	SocketTimeout  int                          `json:"socket-timeout"`
	LogFileLimit   int                          `json:"log-file-limit"`
	DockerLogLines int                          `json:"docker-log-lines"`
	Supported      map[catalog.Product]string   `json:"supported-versions"`
	LogDirs        map[catalog.Product]string   `json:"log-dirs"`
	SystemCommands map[string]map[string]string `json:"system-commands"`
	DockerCommands map[string]string            `json:"docker-commands"`
}

// LoadSettings returns the built-in settings, overridden by the keys present in the file at path if
// path is not empty.
func LoadSettings(path string) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(defaultSettings, &s); err != nil {
		return nil, fmt.Errorf("while parsing built-in settings: %w", err)
	}
	if path == "" {
		return &s, nil
	}
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bytes, &s); err != nil {
		return nil, fmt.Errorf("while parsing %s: %w", path, err)
	}
	return &s, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Supports reports whether version v of p is in the supported range. Products without a configured
// range are always supported.
func (s *Settings) Supports(p catalog.Product, v *version.Version) (bool, error) {
	expr, ok := s.Supported[p]
	if !ok || expr == "" {
		return true, nil
	}
	return version.Matches(expr, v)
}

// namedCommand is a shell command whose output is stored under Name.
type namedCommand struct {
	Name    string
	Command string
}

// sorted returns the commands ordered by name.
func sorted(cmds map[string]string) []namedCommand {
	res := make([]namedCommand, 0, len(cmds))
	for name, cmd := range cmds {
		res = append(res, namedCommand{Name: name, Command: cmd})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
