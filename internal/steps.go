// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"context"
	"fmt"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/run"
)

// StepID names one step of a diagnostic run.
type StepID string

const (
	CheckVersion    StepID = "checkVersion"
	CheckAuth       StepID = "checkAuth"
	PlatformDetails StepID = "platformDetails"
	KibanaSpaces    StepID = "kibanaSpaces"
	RunQueries      StepID = "runQueries"
	SystemCommands  StepID = "systemCommands"
	CollectLogs     StepID = "collectLogs"
	SystemDigest    StepID = "systemDigest"
	DockerInfo      StepID = "dockerInfo"
	Manifest        StepID = "manifest"
	DiagManifest    StepID = "diagManifest"
)

// step is a unit of work of a run. guard, if set, is evaluated against the run's state when the step
// is reached and the step is skipped if it returns false.
type step struct {
	guard func(rc *run.Context) bool
	run   func(ctx context.Context, d *diagnostic) error
}

func runSystemCalls(rc *run.Context) bool {
	return rc.RunSystemCalls
}

func dockerPresent(rc *run.Context) bool {
	return rc.DockerPresent
}

var steps = map[StepID]step{
	CheckVersion:    {run: checkVersion},
	CheckAuth:       {run: checkAuth},
	PlatformDetails: {run: platformDetails},
	KibanaSpaces:    {run: kibanaSpaces},
	RunQueries:      {run: runQueries},
	SystemCommands:  {guard: runSystemCalls, run: systemCommands},
	CollectLogs: {
		guard: func(rc *run.Context) bool { return rc.RunSystemCalls && rc.LogDir != "" },
		run:   collectLogs,
	},
	SystemDigest: {guard: runSystemCalls, run: systemDigest},
	DockerInfo:   {guard: dockerPresent, run: dockerInfo},
	Manifest:     {run: writeManifest},
	DiagManifest: {run: writeDiagManifest},
}

// Sequence returns the ordered steps a diagnostic of type t runs. Later steps depend on state set
// by earlier ones, the order must not be changed.
func Sequence(t DiagType) []StepID {
	var seq []StepID
	switch t.Product() {
	case catalog.Elasticsearch:
		seq = []StepID{CheckVersion, CheckAuth, PlatformDetails, RunQueries}
	case catalog.Kibana:
		seq = []StepID{CheckVersion, PlatformDetails, KibanaSpaces, RunQueries}
	default:
		seq = []StepID{CheckVersion, PlatformDetails, RunQueries}
	}
	switch {
	case t.IsLocal():
		seq = append(seq, SystemCommands, CollectLogs, SystemDigest, DockerInfo)
	case t.IsRemote():
		seq = append(seq, SystemCommands, CollectLogs, DockerInfo)
	}
	return append(seq, Manifest, DiagManifest)
}

// execute runs the steps of seq in order and stops at the first failing step.
func (d *diagnostic) execute(ctx context.Context, seq []StepID) error {
	for _, id := range seq {
		s, ok := steps[id]
		if !ok {
			return d.fail(id, fmt.Errorf("unknown step"))
		}
		if s.guard != nil && !s.guard(d.rc) {
			d.log.Debugf("Skipping %s", id)
			continue
		}
		if err := ctx.Err(); err != nil {
			return d.fail(id, err)
		}
		d.log.Debugf("Running %s", id)
		if err := s.run(ctx, d); err != nil {
			return d.fail(id, err)
		}
	}
	return nil
}

func (d *diagnostic) fail(id StepID, err error) error {
	return &DiagnosticError{Step: id, Err: err, LogFile: d.logFile}
}
