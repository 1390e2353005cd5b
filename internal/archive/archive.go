// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/errors"
)

const (
	archivePathSeparator = '/'
	// ErrorsFile is the name of the file listing the errors accumulated while packaging a run.
	ErrorsFile = "diagnostic-errors.txt"
)

// Type is the archive format of a finished run.
type Type string

const (
	Zip   Type = "zip"
	TarGz Type = "tar.gz"
)

// ParseType validates an archive type name.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.TrimPrefix(s, ".")); t {
	case Zip, TarGz:
		return t, nil
	case "":
		return Zip, nil
	default:
		return "", fmt.Errorf("unsupported archive type %q, expected one of zip, tar.gz", s)
	}
}

// Extension returns the file name extension including the leading dot.
func (t Type) Extension() string {
	return "." + string(t)
}

// Path joins elem to form a (ZIP) archive path.
func Path(elem ...string) string {
	// ZIP files use / as separator on all platforms
	return strings.Join(elem, string(archivePathSeparator))
}

// RootDir returns the top level directory in a ZIP archive path.
func RootDir(name string) string {
	if len(name) == 0 {
		return name
	}
	i := 1
	for i < len(name) && name[i] != archivePathSeparator {
		i++
	}
	return name[0:i]
}

// ZipFile wraps a zip.Writer to add a few convenience functions and implement resource closing.
type ZipFile struct {
	*zip.Writer
	underlying io.Closer
	errs       []error
	log        logrus.FieldLogger
}

// NewZipFile creates a new zip file named fileName.
func NewZipFile(fileName string, log logrus.FieldLogger) (*ZipFile, error) {
	f, err := os.Create(fileName)
	if err != nil {
		return nil, err
	}
	w := zip.NewWriter(f)
	return &ZipFile{
		Writer:     w,
		underlying: f,
		log:        log,
	}, nil
}

// Close closes the zip.Writer and the underlying file.
func (z *ZipFile) Close() error {
	errs := []error{z.writeErrorsToFile(), z.Writer.Close(), z.underlying.Close()}
	return errors.NewAggregate(errs)
}

// AddFile copies the file at src into the archive under name.
func (z *ZipFile) AddFile(name, src string) {
	f, err := os.Open(src)
	if err != nil {
		z.AddError(err)
		return
	}
	defer f.Close()
	fw, err := z.Create(name)
	if err != nil {
		z.AddError(err)
		return
	}
	_, err = io.Copy(fw, f)
	z.AddError(err)
}

// AddDir adds every regular file below dir to the archive, rooted at a directory named after dir.
func (z *ZipFile) AddDir(dir string) {
	root := filepath.Base(dir)
	z.AddError(filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			z.AddError(err)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			z.AddError(err)
			return nil
		}
		z.AddFile(Path(root, filepath.ToSlash(rel)), path)
		return nil
	}))
}

// AddError records an error to be persistent in the ZipFile.
func (z *ZipFile) AddError(err error) {
	if err == nil {
		return
	}
	// log errors immediately to give user early feedback
	z.log.Warn(err.Error())
	z.errs = append(z.errs, err)
}

// writeErrorsToFile writes the accumulated errors to a file inside the ZipFile.
func (z *ZipFile) writeErrorsToFile() error {
	aggregate := errors.NewAggregate(z.errs)
	if aggregate == nil {
		return nil
	}
	out, err := z.Create(ErrorsFile)
	if err != nil {
		return err
	}
	// errors have been logged already just include in zip archive to inform support
	_, err = out.Write([]byte(aggregate.Error()))
	return err
}

// Directory packages dir into an archive of type t next to it and returns the archive's path. errs
// collected during the run are included as ErrorsFile.
func Directory(t Type, dir string, errs []error, log logrus.FieldLogger) (string, error) {
	dir = filepath.Clean(dir)
	dest := dir + t.Extension()
	switch t {
	case TarGz:
		if aggregate := errors.NewAggregate(errs); aggregate != nil {
			if err := os.WriteFile(filepath.Join(dir, ErrorsFile), []byte(aggregate.Error()), 0o600); err != nil {
				return "", err
			}
		}
		tgz := archiver.NewTarGz()
		tgz.OverwriteExisting = true
		if err := tgz.Archive([]string{dir}, dest); err != nil {
			return "", fmt.Errorf("while creating %s: %w", dest, err)
		}
		return dest, nil
	default:
		z, err := NewZipFile(dest, log)
		if err != nil {
			return "", err
		}
		// errs were reported while the run progressed
		z.errs = append(z.errs, errs...)
		z.AddDir(dir)
		return dest, z.Close()
	}
}
