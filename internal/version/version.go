// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package version parses product versions and evaluates version range expressions against them.
package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Masterminds/semver/v3"
)

var format = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)(?:[-.](.+))?$`)

// ParseError is returned when a version string does not have the major.minor.patch[-tag] shape.
type ParseError struct {
	Product string
	Value   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s version format is wrong - unable to continue. (%s)", e.Product, e.Value)
}

// Version is a product version. Range matching only considers major, minor and patch so that
// snapshot and pre-release builds select the same endpoints as the release they precede.
type Version struct {
	core     *semver.Version
	original string
	tag      string
}

// Parse parses s as a version of product. product is only used to build the error message.
func Parse(product, s string) (*Version, error) {
	m := format.FindStringSubmatch(s)
	if m == nil {
		return nil, &ParseError{Product: product, Value: s}
	}
	parts := make([]uint64, 3)
	for i := range parts {
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return nil, &ParseError{Product: product, Value: s}
		}
		parts[i] = n
	}
	return &Version{
		core:     semver.New(parts[0], parts[1], parts[2], "", ""),
		original: s,
		tag:      m[4],
	}, nil
}

// MustParse is like Parse but panics on malformed input. Intended for constants and tests.
func MustParse(s string) *Version {
	v, err := Parse("Product", s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as it was given to Parse.
func (v *Version) String() string {
	return v.original
}

// Tag returns the part after major.minor.patch, e.g. SNAPSHOT, or the empty string.
func (v *Version) Tag() string {
	return v.tag
}

// Compare returns -1, 0 or 1 comparing the numeric parts of v and o.
func (v *Version) Compare(o *Version) int {
	return v.core.Compare(o.core)
}

// LessThan reports whether v sorts before o.
func (v *Version) LessThan(o *Version) bool {
	return v.Compare(o) < 0
}

// AtLeast reports whether v is equal to or newer than o.
func (v *Version) AtLeast(o *Version) bool {
	return v.Compare(o) >= 0
}

// Range is a parsed version range expression such as ">= 7.0.0 < 8.0.0" or a bare version.
// Comparators separated by whitespace or commas must all hold, "||" separates alternatives.
type Range struct {
	expr        string
	constraints *semver.Constraints
}

// ParseRange parses a version range expression.
func ParseRange(expr string) (*Range, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid version range %q: %w", expr, err)
	}
	return &Range{expr: expr, constraints: c}, nil
}

// Matches reports whether v satisfies the range.
func (r *Range) Matches(v *Version) bool {
	return r.constraints.Check(v.core)
}

func (r *Range) String() string {
	return r.expr
}

// Matches parses expr and reports whether v satisfies it.
func Matches(expr string, v *Version) (bool, error) {
	r, err := ParseRange(expr)
	if err != nil {
		return false, err
	}
	return r.Matches(v), nil
}
