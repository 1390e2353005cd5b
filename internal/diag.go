// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/elastic/support-diagnostics/internal/archive"
	"github.com/elastic/support-diagnostics/internal/catalog"
	"github.com/elastic/support-diagnostics/internal/log"
	"github.com/elastic/support-diagnostics/internal/rest"
	"github.com/elastic/support-diagnostics/internal/run"
	"github.com/elastic/support-diagnostics/internal/system"
	"github.com/elastic/support-diagnostics/internal/upload"
)

var logger = log.Logger

const (
	// Prepare is reported as the failing step when the working directory cannot be created.
	Prepare StepID = "prepare"
	// Connect is reported as the failing step when the collaborators of a run cannot be set up.
	Connect StepID = "connect"
	// LogFileName is the name of the run log inside the working directory.
	LogFileName = "diagnostics.log"
)

// Params is a collection of parameters controlling the extraction of diagnostic data.
// See the main command for explanation of individual parameters.
type Params struct {
	DiagType string
	Mode     string

	Scheme string
	Host   string
	Port   int

	User          string
	Password      string
	APIKey        string
	BearerToken   string
	CAFile        string
	CertFile      string
	KeyFile       string
	Insecure      bool
	ProxyURL      string
	ProxyUser     string
	ProxyPassword string

	// Remote is used to reach the target host of remote diagnostic types.
	Remote system.RemoteConfig
	// LogDir overrides the log directory detected on the target.
	LogDir string

	OutputDir      string
	ArchiveType    string
	KeepWorkingDir bool
	ConfigFile     string
	Upload         upload.Config
	Verbose        bool
	// Console receives the run log in addition to the archive. Defaults to stdout.
	Console io.Writer
}

// validate checks p and fills in defaults.
func (p Params) validate() (Params, DiagType, error) {
	t, err := ParseDiagType(p.DiagType)
	if err != nil {
		return p, "", err
	}
	switch p.Mode {
	case "":
		p.Mode = catalog.ModeFull
	case catalog.ModeFull, catalog.ModeLight:
	default:
		return p, "", fmt.Errorf("unknown mode %q, expected %s or %s", p.Mode, catalog.ModeFull, catalog.ModeLight)
	}
	if p.Scheme == "" {
		p.Scheme = "http"
	}
	if p.Scheme != "http" && p.Scheme != "https" {
		return p, "", fmt.Errorf("unsupported scheme %q", p.Scheme)
	}
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == 0 {
		p.Port = t.DefaultPort()
	}
	if p.User != "" && p.APIKey != "" {
		return p, "", errors.New("basic authentication and API key are mutually exclusive")
	}
	if p.Console == nil {
		p.Console = os.Stdout
	}
	return p, t, nil
}

func (p Params) restConfig(t DiagType, s *Settings) rest.Config {
	cfg := rest.Config{
		Scheme:         p.Scheme,
		Host:           p.Host,
		Port:           p.Port,
		User:           p.User,
		Password:       p.Password,
		APIKey:         p.APIKey,
		BearerToken:    p.BearerToken,
		CAFile:         p.CAFile,
		CertFile:       p.CertFile,
		KeyFile:        p.KeyFile,
		Insecure:       p.Insecure,
		ProxyURL:       p.ProxyURL,
		ProxyUser:      p.ProxyUser,
		ProxyPassword:  p.ProxyPassword,
		ConnectTimeout: seconds(s.ConnectTimeout),
		RequestTimeout: seconds(s.RequestTimeout),
		SocketTimeout:  seconds(s.SocketTimeout),
		UserAgent:      "support-diagnostics/" + about().Version,
	}
	if t.Product() == catalog.Kibana {
		cfg.Headers = map[string]string{"kbn-xsrf": "true"}
	}
	return cfg
}

// newCommander connects to the host the target runs on. It returns nil for diagnostic types that
// only use the REST API.
var newCommander = func(p Params, t DiagType, s *Settings) (system.Commander, error) {
	switch {
	case t.IsLocal():
		return system.NewLocal(afero.NewOsFs()), nil
	case t.IsRemote():
		cfg := p.Remote
		if cfg.Host == "" {
			cfg.Host = p.Host
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = seconds(s.ConnectTimeout)
		}
		r, err := system.Dial(cfg)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, nil
}

// Result describes a finished run.
type Result struct {
	RunID      string
	WorkingDir string
	// Archive is empty if no archive could be created.
	Archive    string
	Authorized bool
	Calls      []run.NamedRecord
	// UploadKey is the object key of the uploaded archive, if uploaded.
	UploadKey string
}

// diagnostic holds a run's state and its collaborators.
type diagnostic struct {
	params      Params
	diagType    DiagType
	archiveType archive.Type
	settings    *Settings
	rc          *run.Context
	log         *log.Run
	logFile     string
	executor    *rest.Executor
	commander   system.Commander
	errs        []error
}

// addError records a non fatal error to be included in the archive.
func (d *diagnostic) addError(err error) {
	if err == nil {
		return
	}
	d.log.Warn(err.Error())
	d.errs = append(d.errs, err)
}

// Run collects a diagnostic based on the given params. It produces an archive of the collected
// data as a side effect. Failures of individual calls do not fail the run.
func Run(ctx context.Context, params Params) (*Result, error) {
	p, t, err := params.validate()
	if err != nil {
		return nil, err
	}
	settings, err := LoadSettings(p.ConfigFile)
	if err != nil {
		return nil, err
	}
	archiveType, err := archive.ParseType(p.ArchiveType)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	dir := filepath.Join(p.OutputDir, workingDirName(t, id))
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	rc := run.New(id, t.Product(), string(t), dir)
	rc.Mode = p.Mode
	rc.Scheme = p.Scheme
	rc.Host = p.Host
	rc.Port = p.Port

	d := &diagnostic{
		params:      p,
		diagType:    t,
		archiveType: archiveType,
		settings:    settings,
		rc:          rc,
		log:         log.NewRun(p.Console, id[:8], p.Verbose),
		logFile:     filepath.Join(dir, LogFileName),
	}
	d.log.Infof("%s diagnostic of %s://%s:%d in %s mode", t, p.Scheme, p.Host, p.Port, p.Mode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = d.fail(Prepare, fmt.Errorf("cannot create output directory: %w", err))
		d.log.Error(err.Error())
		return nil, err
	}

	runErr := d.collect(ctx)
	if runErr != nil {
		d.log.Error(runErr.Error())
	}
	res := &Result{
		RunID:      id,
		WorkingDir: dir,
		Authorized: rc.Authorized,
		Calls:      rc.History(),
	}
	d.finish(ctx, res, runErr != nil)
	return res, runErr
}

// collect sets up the run's collaborators and executes the steps of its diagnostic type.
func (d *diagnostic) collect(ctx context.Context) error {
	client, err := rest.NewClient(d.params.restConfig(d.diagType, d.settings))
	if err != nil {
		return d.fail(Connect, err)
	}
	defer client.Close()
	d.executor = rest.NewExecutor(client, rest.Options{
		Retries:  d.settings.CallRetries,
		Pause:    seconds(d.settings.PauseRetries),
		PageSize: d.settings.PageSize,
	}, d.log)

	commander, err := newCommander(d.params, d.diagType, d.settings)
	if err != nil {
		return d.fail(Connect, err)
	}
	if commander != nil {
		defer commander.Close()
		d.commander = commander
	}
	return d.execute(ctx, Sequence(d.diagType))
}

// finish archives the working directory, removes it and uploads the archive. Packaging is best
// effort: a failed run is archived too unless it did not produce any output.
func (d *diagnostic) finish(ctx context.Context, res *Result, failed bool) {
	dir := res.WorkingDir
	if failed && isEmpty(dir) {
		d.removeWorkingDir(dir)
		return
	}
	if err := os.WriteFile(d.logFile, d.log.Bytes(), 0o600); err != nil {
		d.errs = append(d.errs, err)
	}
	file, err := archive.Directory(d.archiveType, dir, d.errs, d.log)
	if err != nil {
		d.log.Errorf("Could not create archive, keeping %s: %v", dir, err)
		return
	}
	res.Archive = file
	d.log.Infof("Diagnostic written to %s", file)
	if !d.params.KeepWorkingDir {
		d.removeWorkingDir(dir)
	}
	if d.params.Upload.Enabled() {
		key, err := upload.Archive(ctx, d.params.Upload, file)
		if err != nil {
			d.log.Errorf("Upload of %s failed: %v", file, err)
		} else {
			res.UploadKey = key
			d.log.Infof("Uploaded %s to bucket %s", key, d.params.Upload.Bucket)
		}
	}
	if !res.Authorized {
		d.log.Warn(unauthorizedBanner)
	}
}

func (d *diagnostic) removeWorkingDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		d.log.Warnf("Could not remove %s: %v", dir, err)
	}
}

var unauthorizedBanner = strings.Join([]string{
	"",
	strings.Repeat("*", 80),
	"Some calls were rejected as unauthorized (401/403) and their results are incomplete.",
	"Check the roles and privileges of the user running the diagnostic.",
	strings.Repeat("*", 80),
}, "\n")

func isEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) == 0
}

// workingDirName is the name of the directory a run collects into, unique across concurrent runs.
func workingDirName(t DiagType, id string) string {
	return fmt.Sprintf("%s-diagnostics-%s-%s", t, time.Now().Format("20060102-150405"), id[:8])
}

// RunAll executes independent runs concurrently and waits for all of them. A failing run does not
// affect the others. Results are in the order of params, nil for runs that could not start.
func RunAll(ctx context.Context, params []Params) ([]*Result, error) {
	results := make([]*Result, len(params))
	errs := make([]error, len(params))
	var g errgroup.Group
	for i, p := range params {
		i, p := i, p
		g.Go(func() error {
			results[i], errs[i] = Run(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return results, utilerrors.NewAggregate(errs)
}

// RunScheduled starts a run every interval until count runs have been started or ctx is done. Runs
// may overlap. count <= 0 schedules runs until ctx is done.
func RunScheduled(ctx context.Context, params Params, interval time.Duration, count int) ([]*Result, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	var (
		g       errgroup.Group
		mu      sync.Mutex
		results []*Result
		errs    []error
	)
	launch := func() {
		g.Go(func() error {
			res, err := Run(ctx, params)
			mu.Lock()
			defer mu.Unlock()
			if res != nil {
				results = append(results, res)
			}
			errs = append(errs, err)
			return nil
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	launch()
LOOP:
	for n := 1; count <= 0 || n < count; n++ {
		select {
		case <-ctx.Done():
			break LOOP
		case <-ticker.C:
			logger.Infof("Starting scheduled run %d", n+1)
			launch()
		}
	}
	_ = g.Wait()
	return results, utilerrors.NewAggregate(errs)
}
