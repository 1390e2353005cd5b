// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package rest

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/util/json"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/run"
)

// paginate asks for the total number of results with a page size of one and then fetches all pages in
// order, writing each page to its own numbered file. A failed page does not stop the remaining pages.
func (e *Executor) paginate(ctx context.Context, d catalog.CallDescriptor, rc *run.Context) Outcome {
	countURL, err := withPage(d.URL, 1, 1)
	if err != nil {
		o := Outcome{Class: RetryableFailure, Body: []byte(err.Error())}
		e.finish(d.Name, d.Path(), d, o, 0, rc)
		return o
	}
	head, attempts := e.attempts(ctx, d, countURL)
	if !head.OK() {
		e.finish(d.Name, d.Path(), d, head, attempts, rc)
		return head
	}
	total, err := Total(head.Body, d.Paginate)
	if err == nil && total < 0 {
		err = fmt.Errorf("negative total %d", total)
	}
	if err != nil {
		e.log.Warnf("%s: cannot determine number of results: %v", d.Name, err)
		failed := Outcome{Class: RetryableFailure, Status: head.Status, Body: head.Body}
		e.finish(d.Name, d.Path(), d, failed, attempts, rc)
		return failed
	}

	pages64 := total / int64(e.opts.PageSize)
	if total%int64(e.opts.PageSize) != 0 {
		pages64++
	}
	if pages64 > int64(e.opts.MaxPages) {
		e.log.Warnf("%s: %d results need %d pages, only the first %d are collected", d.Name, total, pages64, e.opts.MaxPages)
		pages64 = int64(e.opts.MaxPages)
	}
	pages := int(pages64)
	if pages == 0 {
		// still write the empty first page so the archive shows the call was made
		pages = 1
	}
	e.log.Debugf("%s: %d results in %d page(s)", d.Name, total, pages)

	record := run.CallRecord{Attempts: attempts, Succeeded: true, Status: head.Status, Pages: pages}
	res := head
	for page := 1; page <= pages; page++ {
		name := fmt.Sprintf("%s_%d", d.Name, page)
		path := filepath.Join(d.Subdir, name+d.Extension)
		pageURL, _ := withPage(d.URL, page, e.opts.PageSize)
		o, n := e.attempts(ctx, d, pageURL)
		e.finish(name, path, d, o, n, rc)

		record.Attempts += n
		if !o.OK() {
			record.Succeeded = false
			record.Status = o.Status
			if res.OK() {
				res = o
			}
		}
	}
	record.Retries = record.Attempts - pages - 1
	rc.Record(d.Name, record)
	return res
}

// withPage sets the page and per_page query parameters on the relative URL raw.
func withPage(raw string, page, perPage int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Total extracts the integer at the dotted path field from a JSON document.
func Total(body []byte, field string) (int64, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return 0, err
	}
	total, found, err := unstructured.NestedInt64(doc, strings.Split(field, ".")...)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("field %s not found", field)
	}
	return total, nil
}

// forSpace rewrites d for the Kibana space. The default space keeps the original URL and file name.
func forSpace(d catalog.CallDescriptor, space string) catalog.CallDescriptor {
	if space == "" || space == DefaultSpace {
		return d
	}
	d.URL = "/s/" + url.PathEscape(space) + "/" + strings.TrimPrefix(d.URL, "/")
	d.Name = d.Name + "_" + space
	return d
}

// DefaultSpace is the id of the Kibana space every installation has.
const DefaultSpace = "default"
