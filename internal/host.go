// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/elastic/support-diagnostics/internal/archive"
	"github.com/elastic/support-diagnostics/internal/run"
	"github.com/elastic/support-diagnostics/internal/system"
)

func systemCommands(ctx context.Context, d *diagnostic) error {
	cmds := d.settings.SystemCommands[d.rc.TargetOS]
	if len(cmds) == 0 {
		d.log.Warnf("No system commands configured for %q", d.rc.TargetOS)
		return nil
	}
	d.runCommands(ctx, "syscalls", sorted(cmds))
	return nil
}

// runCommands runs cmds on the target host and writes the output of each to dir/<name>.txt. A
// failing command keeps its output, followed by the error.
func (d *diagnostic) runCommands(ctx context.Context, dir string, cmds []namedCommand) {
	for _, c := range cmds {
		out, err := d.commander.Run(ctx, c.Command)
		if err != nil {
			d.addError(fmt.Errorf("%s: %w", c.Name, err))
			out = append(out, []byte(err.Error())...)
		}
		d.addError(d.rc.WriteFile(path.Join(dir, c.Name+".txt"), out))
	}
}

func collectLogs(ctx context.Context, d *diagnostic) error {
	names, err := system.CollectLogs(ctx, d.commander, d.rc.LogDir, d.settings.LogFileLimit, func(name string) (io.WriteCloser, error) {
		return d.rc.Create(path.Join("logs", name))
	})
	d.addError(err)
	d.log.Infof("Collected %d log file(s) from %s", len(names), d.rc.LogDir)
	return nil
}

func systemDigest(ctx context.Context, d *diagnostic) error {
	digest := system.CollectDigest(ctx)
	for _, e := range digest.Errors {
		d.log.Debugf("System digest: %s", e)
	}
	return writeJSON(d.rc, "system-digest.json", digest)
}

func dockerInfo(ctx context.Context, d *diagnostic) error {
	d.runCommands(ctx, "docker", sorted(d.settings.DockerCommands))

	out, err := d.commander.Run(ctx, "docker ps -q")
	if err != nil {
		d.addError(fmt.Errorf("while listing containers: %w", err))
		return nil
	}
	for _, id := range strings.Fields(string(out)) {
		d.runCommands(ctx, path.Join("docker", id), []namedCommand{
			{Name: "inspect", Command: "docker inspect " + system.Quote(id)},
			{Name: "logs", Command: fmt.Sprintf("docker logs --tail %d %s", d.settings.DockerLogLines, system.Quote(id))},
			{Name: "top", Command: "docker top " + system.Quote(id)},
		})
	}
	return nil
}

func writeManifest(_ context.Context, d *diagnostic) error {
	return writeJSON(d.rc, archive.ManifestFile, archive.NewManifest(d.rc))
}

func writeDiagManifest(_ context.Context, d *diagnostic) error {
	v := about()
	m := archive.NewDiagnosticManifest(string(d.diagType), v.Version)
	m.DiagHash = v.Hash
	m.Product = string(d.rc.Product)
	m.ArchiveType = string(d.archiveType)
	return writeJSON(d.rc, archive.DiagnosticManifestFile, m)
}

func writeJSON(rc *run.Context, rel string, v interface{}) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return rc.WriteFile(rel, bytes)
}
