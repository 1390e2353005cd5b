// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package system

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// RemoteConfig describes how to reach the target host over SSH.
type RemoteConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	KeyFile  string
	// KnownHostsFile is used to verify the host key unless TrustRemote is set.
	KnownHostsFile string
	TrustRemote    bool
	Timeout        time.Duration
	// Sudo prefixes commands and file reads with sudo.
	Sudo bool
}

// Remote runs commands on the target host over SSH.
type Remote struct {
	client *ssh.Client
	sudo   bool
}

// Dial connects to the host described by cfg.
func Dial(cfg RemoteConfig) (*Remote, error) {
	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		pem, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, fmt.Errorf("while parsing %s: %w", cfg.KeyFile, err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec
	if !cfg.TrustRemote {
		file := cfg.KnownHostsFile
		if file == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			file = home + "/.ssh/known_hosts"
		}
		cb, err := knownhosts.New(file)
		if err != nil {
			return nil, fmt.Errorf("while loading known hosts: %w", err)
		}
		hostKeyCallback = cb
	}
	port := cfg.Port
	if port == 0 {
		port = 22
	}
	client, err := ssh.Dial("tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(port)), &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("ssh connection to %s failed: %w", cfg.Host, err)
	}
	return &Remote{client: client, sudo: cfg.Sudo}, nil
}

func (r *Remote) command(cmd string) string {
	if r.sudo {
		return "sudo " + cmd
	}
	return cmd
}

// session runs cmd in a new session, closing it early if ctx is done.
func (r *Remote) session(ctx context.Context, cmd string, stdout io.Writer) error {
	s, err := r.client.NewSession()
	if err != nil {
		return err
	}
	defer s.Close()
	var stderr bytes.Buffer
	s.Stdout = stdout
	s.Stderr = &stderr

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-done:
		}
	}()
	if err := s.Run(r.command(cmd)); err != nil {
		return fmt.Errorf("%s: %w: %s", cmd, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (r *Remote) Run(ctx context.Context, cmd string) ([]byte, error) {
	var out bytes.Buffer
	err := r.session(ctx, cmd, &out)
	return out.Bytes(), err
}

func (r *Remote) ListFiles(ctx context.Context, dir string) ([]string, error) {
	out, err := r.Run(ctx, "ls -1tp "+Quote(dir))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// -p marks directories with a trailing slash
		if line == "" || strings.HasSuffix(line, "/") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

func (r *Remote) Copy(ctx context.Context, path string, w io.Writer) error {
	return r.session(ctx, "cat "+Quote(path), w)
}

func (r *Remote) OS(ctx context.Context) string {
	out, err := r.Run(ctx, "uname -s")
	if err != nil {
		// no uname, most likely not a unix
		return "windows"
	}
	return strings.ToLower(strings.TrimSpace(string(out)))
}

func (r *Remote) Close() error {
	return r.client.Close()
}
