// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import "fmt"

// DiagnosticError is a failure that prevents a run from continuing. Failures of individual calls are
// not reported as DiagnosticError, they are recorded in the call history instead.
type DiagnosticError struct {
	Step    StepID
	Err     error
	LogFile string
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("%s failed: %v - see %s for details", e.Step, e.Err, e.LogFile)
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}
