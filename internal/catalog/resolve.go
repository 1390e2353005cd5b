// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package catalog

import (
	"net/http"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/ptr"

	"github.com/elastic/support-diagnostics/internal/version"
)

const defaultExtension = ".json"

// CallDescriptor is the version specific definition of one REST call.
type CallDescriptor struct {
	Name       string
	URL        string
	Subdir     string
	Extension  string
	Retry      bool
	ShowErrors bool
	Paginate   string
	SpaceAware bool
	Method     string
	Body       string
}

// FileName is the file name results of this call are written to, without a directory.
func (d CallDescriptor) FileName() string {
	return d.Name + d.Extension
}

// Path is the path of the result file relative to the run's working directory.
func (d CallDescriptor) Path() string {
	return filepath.Join(d.Subdir, d.FileName())
}

// ResolvedCallSet is the set of calls applicable to one run, in catalog order.
type ResolvedCallSet struct {
	names []string
	calls map[string]CallDescriptor
}

// NewResolvedCallSet creates a call set from descriptors, keeping their order.
func NewResolvedCallSet(ds ...CallDescriptor) *ResolvedCallSet {
	s := &ResolvedCallSet{calls: map[string]CallDescriptor{}}
	for _, d := range ds {
		s.add(d)
	}
	return s
}

func (s *ResolvedCallSet) add(d CallDescriptor) {
	if _, exists := s.calls[d.Name]; !exists {
		s.names = append(s.names, d.Name)
	}
	s.calls[d.Name] = d
}

// Get returns the descriptor of the call name if it is part of the set.
func (s *ResolvedCallSet) Get(name string) (CallDescriptor, bool) {
	d, ok := s.calls[name]
	return d, ok
}

// All returns all descriptors in catalog order.
func (s *ResolvedCallSet) All() []CallDescriptor {
	res := make([]CallDescriptor, 0, len(s.names))
	for _, n := range s.names {
		res = append(res, s.calls[n])
	}
	return res
}

// Len returns the number of calls in the set.
func (s *ResolvedCallSet) Len() int {
	return len(s.names)
}

// Resolve builds the call set for version v and the requested mode. Calls excluded by their tags or
// without a range matching v are bypassed: they are logged and left out, which is not an error.
// The first matching range in declaration order wins.
func (c *Catalog) Resolve(v *version.Version, mode string, log logrus.FieldLogger) *ResolvedCallSet {
	set := NewResolvedCallSet()
	for _, call := range c.calls {
		if call.Tags != "" && call.Tags != mode {
			log.Warnf("Bypassing %s: only collected in %s mode", call.Name, call.Tags)
			continue
		}
		variant, found := call.match(v)
		if !found {
			log.Warnf("Bypassing %s: not available for %s %s", call.Name, c.product.DisplayName(), v)
			continue
		}
		set.add(call.descriptor(variant))
	}
	return set
}

func (call Call) match(v *version.Version) (Variant, bool) {
	for _, variant := range call.Versions {
		if variant.Range.Matches(v) {
			return variant, true
		}
	}
	return Variant{}, false
}

func (call Call) descriptor(v Variant) CallDescriptor {
	d := CallDescriptor{
		Name:       call.Name,
		URL:        v.URL,
		Subdir:     call.Subdir,
		Extension:  call.Extension,
		Retry:      ptr.Deref(call.Retry, false),
		ShowErrors: ptr.Deref(call.ShowErrors, true),
		Paginate:   v.Paginate,
		SpaceAware: v.SpaceAware,
		Method:     v.Method,
		Body:       v.Body,
	}
	if d.Extension == "" {
		d.Extension = defaultExtension
	}
	if d.Method == "" {
		d.Method = http.MethodGet
	}
	return d
}
