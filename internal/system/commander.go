// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package system runs commands and reads files on the host the diagnostic target is running on,
// either locally or over SSH.
package system

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Commander executes commands and accesses files on the target host.
type Commander interface {
	// Run executes cmd in a shell and returns its combined output.
	Run(ctx context.Context, cmd string) ([]byte, error)
	// ListFiles returns the names of the regular files in dir, most recently modified first.
	ListFiles(ctx context.Context, dir string) ([]string, error)
	// Copy writes the contents of the file at path to w.
	Copy(ctx context.Context, path string, w io.Writer) error
	// OS returns the operating system family of the host: linux, darwin or windows.
	OS(ctx context.Context) string
	Close() error
}

// Local runs commands on the machine the diagnostic runs on.
type Local struct {
	fs    afero.Fs
	shell []string
}

// NewLocal creates a Commander for the local machine. fs is used for file access.
func NewLocal(fs afero.Fs) *Local {
	shell := []string{"sh", "-c"}
	if runtime.GOOS == "windows" {
		shell = []string{"cmd", "/C"}
	}
	return &Local{fs: fs, shell: shell}
}

func (l *Local) Run(ctx context.Context, cmd string) ([]byte, error) {
	args := append(append([]string{}, l.shell[1:]...), cmd)
	return exec.CommandContext(ctx, l.shell[0], args...).CombinedOutput() //nolint:gosec
}

func (l *Local) ListFiles(_ context.Context, dir string) ([]string, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].ModTime().After(infos[j].ModTime())
	})
	var names []string
	for _, info := range infos {
		if info.Mode().IsRegular() {
			names = append(names, info.Name())
		}
	}
	return names, nil
}

func (l *Local) Copy(_ context.Context, path string, w io.Writer) error {
	f, err := l.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func (l *Local) OS(context.Context) string {
	return runtime.GOOS
}

func (l *Local) Close() error {
	return nil
}

// CollectLogs copies up to limit of the most recent files in dir that look like logs. Each file is
// written to the writer returned by create for its name. Failures of single files are returned
// together and do not stop the others.
func CollectLogs(ctx context.Context, c Commander, dir string, limit int, create func(string) (io.WriteCloser, error)) ([]string, error) {
	names, err := c.ListFiles(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("while listing log directory %s: %w", dir, err)
	}
	var collected []string
	var errs []string
	for _, name := range names {
		if limit > 0 && len(collected) >= limit {
			break
		}
		if !isLogFile(name) {
			continue
		}
		if err := copyTo(ctx, c, path.Join(dir, name), name, create); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		collected = append(collected, name)
	}
	if len(errs) > 0 {
		return collected, fmt.Errorf("while collecting logs: %s", strings.Join(errs, "; "))
	}
	return collected, nil
}

func copyTo(ctx context.Context, c Commander, src, name string, create func(string) (io.WriteCloser, error)) error {
	w, err := create(name)
	if err != nil {
		return err
	}
	if err := c.Copy(ctx, src, w); err != nil {
		_ = w.Close()
		return fmt.Errorf("%s: %w", src, err)
	}
	return w.Close()
}

func isLogFile(name string) bool {
	for _, suffix := range []string{".log", ".json", ".log.gz", ".json.gz"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Quote quotes s for use as a single argument in a POSIX shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
