// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package log

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger to be used outside of diagnostic runs. Available in its own package to avoid import cycles.
var Logger = newLogger(os.Stdout)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Run is the logger of a single diagnostic run. Everything logged through it is also kept in memory
// so that it can be included in the diagnostic archive. The underlying assumption being that the
// number of log lines produced by one run is small enough to allow them to be kept in memory.
type Run struct {
	*logrus.Entry
	buffer *syncBuffer
}

// NewRun creates a run logger writing to out as well as to its own buffer. The run id is attached
// to every entry to tell concurrent runs apart on a shared console.
func NewRun(out io.Writer, runID string, verbose bool) *Run {
	buf := &syncBuffer{}
	l := newLogger(io.MultiWriter(out, buf))
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return &Run{
		Entry:  l.WithField("run", runID),
		buffer: buf,
	}
}

// Bytes returns everything logged so far.
func (r *Run) Bytes() []byte {
	return r.buffer.Bytes()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
