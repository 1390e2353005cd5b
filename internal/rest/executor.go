// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package rest executes the REST calls of a diagnostic run against the target.
package rest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/run"
)

// Class is the classification of a call outcome.
type Class int

const (
	Success Class = iota
	// RetryableFailure is any failure that is worth trying again, including transport errors.
	RetryableFailure
	// FatalFailure is an authentication or authorization failure. It is never retried.
	FatalFailure
)

func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable failure"
	case FatalFailure:
		return "fatal failure"
	}
	return "unknown"
}

// Outcome is the result of executing a call. Status is 0 if no response was received, in which case
// Body holds the transport error.
type Outcome struct {
	Class  Class
	Status int
	Body   []byte
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Class == Success
}

func classify(status int, body []byte) Outcome {
	o := Outcome{Status: status, Body: body}
	switch {
	case status >= 200 && status < 300:
		o.Class = Success
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		o.Class = FatalFailure
	default:
		o.Class = RetryableFailure
	}
	return o
}

// Options control retries and pagination.
type Options struct {
	// Retries is the number of additional attempts made for retryable calls.
	Retries int
	// Pause is how long to wait between two attempts.
	Pause time.Duration
	// PageSize is the number of results requested per page for paginated calls.
	PageSize int
	// MaxPages caps the number of pages fetched for one paginated call.
	MaxPages int
}

// Executor executes resolved calls for one run. It is not safe for concurrent use, attempts and pages
// are issued strictly one after the other.
type Executor struct {
	client *Client
	opts   Options
	log    logrus.FieldLogger
}

// NewExecutor creates an executor issuing requests through client.
func NewExecutor(client *Client, opts Options, log logrus.FieldLogger) *Executor {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1000
	}
	return &Executor{client: client, opts: opts, log: log}
}

// Execute runs the call d, writes the final response body below the run's working directory and
// records the outcome in the run's call history. Failures are never returned as errors: the outcome
// is written to disk like a successful response so the archive explains why a call failed.
func (e *Executor) Execute(ctx context.Context, d catalog.CallDescriptor, rc *run.Context) Outcome {
	if !d.SpaceAware || len(rc.Spaces) == 0 {
		return e.collect(ctx, d, rc)
	}
	var res Outcome
	for i, space := range rc.Spaces {
		o := e.collect(ctx, forSpace(d, space), rc)
		if i == 0 || (res.OK() && !o.OK()) {
			res = o
		}
	}
	return res
}

// Fetch runs the call d with the usual retry policy without writing or recording anything.
func (e *Executor) Fetch(ctx context.Context, d catalog.CallDescriptor, rc *run.Context) Outcome {
	o, _ := e.attempts(ctx, d, d.URL)
	if o.Class == FatalFailure {
		rc.SetUnauthorized()
	}
	return o
}

func (e *Executor) collect(ctx context.Context, d catalog.CallDescriptor, rc *run.Context) Outcome {
	if d.Paginate != "" {
		return e.paginate(ctx, d, rc)
	}
	o, n := e.attempts(ctx, d, d.URL)
	e.finish(d.Name, d.Path(), d, o, n, rc)
	return o
}

// attempts executes the request for url, retrying retryable failures if d allows it. It returns the
// last outcome and the number of attempts made.
func (e *Executor) attempts(ctx context.Context, d catalog.CallDescriptor, url string) (Outcome, int) {
	limit := 1
	if d.Retry {
		limit += e.opts.Retries
	}
	var o Outcome
	n := 0
	backoff := wait.Backoff{Duration: e.opts.Pause, Factor: 1, Steps: limit}
	err := wait.ExponentialBackoffWithContext(ctx, backoff, func(ctx context.Context) (bool, error) {
		if n > 0 {
			e.log.Debugf("Retrying %s after %s (attempt %d of %d)", d.Name, e.opts.Pause, n+1, limit)
		}
		n++
		o = e.attempt(ctx, d, url)
		return o.Class != RetryableFailure, nil
	})
	if n == 0 && err != nil {
		// cancelled before the first attempt
		o = Outcome{Class: RetryableFailure, Body: []byte(err.Error())}
	}
	return o, n
}

func (e *Executor) attempt(ctx context.Context, d catalog.CallDescriptor, url string) Outcome {
	resp, err := e.client.Do(ctx, d.Method, url, d.Body)
	if err != nil {
		return Outcome{Class: RetryableFailure, Body: []byte(err.Error())}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Class: RetryableFailure, Status: resp.StatusCode, Body: []byte(err.Error())}
	}
	return classify(resp.StatusCode, body)
}

// finish writes the outcome to path and records it under name.
func (e *Executor) finish(name, path string, d catalog.CallDescriptor, o Outcome, attempts int, rc *run.Context) {
	if err := rc.WriteFile(path, o.Body); err != nil {
		e.log.Warnf("Could not write results of %s to %s: %v", name, path, err)
	}
	rc.Record(name, run.CallRecord{
		Attempts:  attempts,
		Retries:   max(attempts-1, 0),
		Succeeded: o.OK(),
		Status:    o.Status,
	})

	switch {
	case o.OK():
		e.log.Debugf("%s: %d after %d attempt(s)", name, o.Status, attempts)
	case o.Class == FatalFailure:
		rc.SetUnauthorized()
		e.log.Warnf("%s: not authorized (%d), check the privileges of the user running the diagnostic", name, o.Status)
	case d.ShowErrors:
		e.log.Warnf("%s failed after %d attempt(s): %s", name, attempts, describe(o))
	default:
		e.log.Debugf("%s failed after %d attempt(s): %s", name, attempts, describe(o))
	}
}

func describe(o Outcome) string {
	if o.Status == 0 {
		return string(o.Body)
	}
	return http.StatusText(o.Status)
}
