// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"time"

	"github.com/elastic/support-diagnostics/internal/run"
)

const (
	// ManifestFile describes what a run collected.
	ManifestFile = "manifest.json"
	// DiagnosticManifestFile describes the tool that produced the archive.
	DiagnosticManifestFile = "diagnostic_manifest.json"
)

// Manifest summarises a run: the target, its version and the outcome of every call.
type Manifest struct {
	RunID          string            `json:"runId"`
	Product        string            `json:"product"`
	ProductVersion string            `json:"productVersion"`
	ProductTag     string            `json:"productTag,omitempty"`
	DiagType       string            `json:"diagType"`
	Mode           string            `json:"mode"`
	Host           string            `json:"host"`
	Port           int               `json:"port"`
	CollectionDate time.Time         `json:"collectionDate"`
	Authorized     bool              `json:"authorized"`
	DockerPresent  bool              `json:"dockerPresent"`
	Calls          []run.NamedRecord `json:"calls"`
	FailedCalls    []string          `json:"failedCalls,omitempty"`
}

// NewManifest builds the Manifest of rc at the current point of the run.
func NewManifest(rc *run.Context) Manifest {
	m := Manifest{
		RunID:          rc.ID,
		Product:        string(rc.Product),
		DiagType:       rc.DiagType,
		Mode:           rc.Mode,
		Host:           rc.Host,
		Port:           rc.Port,
		CollectionDate: time.Now(),
		Authorized:     rc.Authorized,
		DockerPresent:  rc.DockerPresent,
		Calls:          rc.History(),
		FailedCalls:    rc.Failed(),
	}
	if rc.Version != nil {
		m.ProductVersion = rc.Version.String()
		m.ProductTag = rc.Version.Tag()
	}
	return m
}

type DiagnosticManifest struct {
	DiagType       string    `json:"diagType"`
	DiagVersion    string    `json:"diagVersion"`
	DiagHash       string    `json:"diagHash,omitempty"`
	CollectionDate time.Time `json:"collectionDate"`
	Product        string    `json:"product"`
	ArchiveType    string    `json:"archiveType"`
}

func NewDiagnosticManifest(diagType, diagVersion string) DiagnosticManifest {
	return DiagnosticManifest{
		DiagType:       diagType,
		DiagVersion:    diagVersion,
		CollectionDate: time.Now(),
	}
}
