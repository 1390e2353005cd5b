// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package catalog holds the declarative, version-gated REST endpoint catalogs and resolves them
// into the concrete set of calls for a given product version.
package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/errors"

	"github.com/elastic/support-diagnostics/internal/version"
)

// Catalog is the list of calls declared for one product, in declaration order.
// A Catalog is immutable once loaded and may be shared between concurrent runs.
type Catalog struct {
	product Product
	calls   []Call
}

// Call is a declared call with all of its version specific variants.
type Call struct {
	Name       string
	Subdir     string
	Extension  string
	Retry      *bool
	ShowErrors *bool
	Tags       string
	Versions   []Variant
}

// Variant is the definition of a call for the versions matching Range.
type Variant struct {
	Range      *version.Range
	URL        string
	Paginate   string
	SpaceAware bool
	Method     string
	Body       string
}

type rawCall struct {
	Subdir     string    `yaml:"subdir"`
	Extension  string    `yaml:"extension"`
	Retry      *bool     `yaml:"retry"`
	ShowErrors *bool     `yaml:"showErrors"`
	Tags       string    `yaml:"tags"`
	Versions   yaml.Node `yaml:"versions"`
}

type rawVariant struct {
	URL        string `yaml:"url"`
	Paginate   string `yaml:"paginate"`
	SpaceAware bool   `yaml:"spaceaware"`
	Method     string `yaml:"method"`
	Body       string `yaml:"body"`
}

// Load parses a catalog. Mapping order is significant: calls and their version ranges keep the order
// in which they are declared.
func Load(product Product, data []byte) (*Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("while parsing %s catalog: %w", product, err)
	}
	c := &Catalog{product: product}
	if len(doc.Content) == 0 {
		return c, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s catalog: expected a mapping of call names at line %d", product, root.Line)
	}

	var errs []error
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		call, err := parseCall(name, root.Content[i+1])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.calls = append(c.calls, call)
	}
	if err := errors.NewAggregate(errs); err != nil {
		return nil, fmt.Errorf("%s catalog: %w", product, err)
	}
	return c, nil
}

func parseCall(name string, node *yaml.Node) (Call, error) {
	var raw rawCall
	if err := node.Decode(&raw); err != nil {
		return Call{}, fmt.Errorf("call %s: %w", name, err)
	}
	call := Call{
		Name:       name,
		Subdir:     raw.Subdir,
		Extension:  raw.Extension,
		Retry:      raw.Retry,
		ShowErrors: raw.ShowErrors,
		Tags:       raw.Tags,
	}
	if raw.Versions.Kind != yaml.MappingNode || len(raw.Versions.Content) == 0 {
		return Call{}, fmt.Errorf("call %s: missing versions", name)
	}
	for i := 0; i+1 < len(raw.Versions.Content); i += 2 {
		expr := raw.Versions.Content[i].Value
		r, err := version.ParseRange(expr)
		if err != nil {
			return Call{}, fmt.Errorf("call %s: %w", name, err)
		}
		v := Variant{Range: r}
		valueNode := raw.Versions.Content[i+1]
		switch valueNode.Kind {
		case yaml.ScalarNode:
			v.URL = valueNode.Value
		case yaml.MappingNode:
			var rv rawVariant
			if err := valueNode.Decode(&rv); err != nil {
				return Call{}, fmt.Errorf("call %s, range %q: %w", name, expr, err)
			}
			v.URL, v.Paginate, v.SpaceAware, v.Method, v.Body = rv.URL, rv.Paginate, rv.SpaceAware, rv.Method, rv.Body
		default:
			return Call{}, fmt.Errorf("call %s, range %q: expected a url or an object at line %d", name, expr, valueNode.Line)
		}
		if v.URL == "" {
			return Call{}, fmt.Errorf("call %s, range %q: missing url", name, expr)
		}
		call.Versions = append(call.Versions, v)
	}
	return call, nil
}

// Product returns the product this catalog describes.
func (c *Catalog) Product() Product {
	return c.product
}

// Calls returns the declared calls in declaration order.
func (c *Catalog) Calls() []Call {
	return c.calls
}
