// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"fmt"
	"strings"

	"github.com/elastic/support-diagnostics/internal/catalog"
)

// DiagType selects the product a run targets and how much of the host it inspects.
type DiagType string

const (
	API            DiagType = "api"
	Local          DiagType = "local"
	Remote         DiagType = "remote"
	LogstashAPI    DiagType = "logstash-api"
	LogstashLocal  DiagType = "logstash-local"
	LogstashRemote DiagType = "logstash-remote"
	KibanaAPI      DiagType = "kibana-api"
	KibanaLocal    DiagType = "kibana-local"
	KibanaRemote   DiagType = "kibana-remote"
)

// DiagTypes lists all supported diagnostic types.
var DiagTypes = []DiagType{
	API, Local, Remote,
	LogstashAPI, LogstashLocal, LogstashRemote,
	KibanaAPI, KibanaLocal, KibanaRemote,
}

// ParseDiagType validates a diagnostic type name.
func ParseDiagType(s string) (DiagType, error) {
	for _, t := range DiagTypes {
		if string(t) == s {
			return t, nil
		}
	}
	names := make([]string, 0, len(DiagTypes))
	for _, t := range DiagTypes {
		names = append(names, string(t))
	}
	return "", fmt.Errorf("unknown diagnostic type %q, expected one of %s", s, strings.Join(names, ", "))
}

// Product returns the product a diagnostic of this type collects from.
func (t DiagType) Product() catalog.Product {
	switch {
	case strings.HasPrefix(string(t), "logstash-"):
		return catalog.Logstash
	case strings.HasPrefix(string(t), "kibana-"):
		return catalog.Kibana
	default:
		return catalog.Elasticsearch
	}
}

// IsLocal is true for diagnostics that inspect the machine they are running on.
func (t DiagType) IsLocal() bool {
	return t == Local || t == LogstashLocal || t == KibanaLocal
}

// IsRemote is true for diagnostics that inspect the target host over SSH.
func (t DiagType) IsRemote() bool {
	return t == Remote || t == LogstashRemote || t == KibanaRemote
}

// DefaultPort is the port the product listens on out of the box.
func (t DiagType) DefaultPort() int {
	switch t.Product() {
	case catalog.Kibana:
		return 5601
	case catalog.Logstash:
		return 9600
	default:
		return 9200
	}
}
