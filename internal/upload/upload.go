// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

// Package upload sends finished diagnostic archives to S3 compatible object storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes the upload destination.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	// Prefix is prepended to the object key of every uploaded archive.
	Prefix string
	UseSSL bool
}

// Enabled reports whether an upload destination has been configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("upload endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("upload endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("upload bucket is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("upload access key and secret key are required")
	}
	return nil
}

// Key returns the object key an archive at file is stored under.
func (c Config) Key(file string) string {
	return path.Join(c.Prefix, filepath.Base(file))
}

// Archive uploads the file to the configured bucket, creating the bucket if needed, and returns the
// object key.
func Archive(ctx context.Context, cfg Config, file string) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return "", err
	}
	if err := ensureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	key := cfg.Key(file)
	contentType := "application/zip"
	if strings.HasSuffix(file, ".tar.gz") {
		contentType = "application/gzip"
	}
	if _, err := client.FPutObject(ctx, cfg.Bucket, key, file, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}
