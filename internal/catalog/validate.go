// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package catalog

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/util/errors"

	"github.com/elastic/support-diagnostics/internal/version"
)

// SampleVersions returns a grid of versions covering majors minMajor to maxMajor, used to check
// catalogs exhaustively. The grid is sorted in ascending order.
func SampleVersions(minMajor, maxMajor int) []*version.Version {
	var res []*version.Version
	for major := minMajor; major <= maxMajor; major++ {
		for minor := 0; minor <= 20; minor++ {
			for patch := 0; patch <= 3; patch++ {
				res = append(res, version.MustParse(fmt.Sprintf("%d.%d.%d", major, minor, patch)))
			}
		}
	}
	return res
}

// Validate checks that for every call and every given version at most one range matches, and that the
// versions a call matches form one uninterrupted window: a call may be introduced and removed, but it
// may not disappear and come back. Together this means exactly one range matches every version in
// the lifetime of a call.
func (c *Catalog) Validate(versions []*version.Version) error {
	sorted := append([]*version.Version(nil), versions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	var errs []error
	for _, call := range c.calls {
		errs = append(errs, call.validate(sorted)...)
	}
	return errors.NewAggregate(errs)
}

const (
	notYetMatched = iota
	matching
	noLongerMatching
)

func (call Call) validate(sorted []*version.Version) []error {
	var errs []error
	state := notYetMatched
	for _, v := range sorted {
		var matched []string
		for _, variant := range call.Versions {
			if variant.Range.Matches(v) {
				matched = append(matched, variant.Range.String())
			}
		}
		switch {
		case len(matched) > 1:
			errs = append(errs, fmt.Errorf("%s: version %s matches more than one range: %s", call.Name, v, strings.Join(matched, ", ")))
			state = matching
		case len(matched) == 1 && state == noLongerMatching:
			errs = append(errs, fmt.Errorf("%s: version %s matches %s after a gap in coverage", call.Name, v, matched[0]))
		case len(matched) == 1:
			state = matching
		case state == matching:
			state = noLongerMatching
		}
	}
	return errs
}
