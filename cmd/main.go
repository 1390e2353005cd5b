// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/elastic/support-diagnostics/internal"
	"github.com/elastic/support-diagnostics/internal/catalog"
)

var (
	diagParams = internal.Params{}
	interval   time.Duration
	runs       int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := &cobra.Command{
		Use:          "support-diagnostics",
		Short:        "Elastic support diagnostics tool",
		Long:         "Collect diagnostic data from Elasticsearch, Kibana and Logstash for support and troubleshooting purposes.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduled, err := schedule(runs, interval)
			if err != nil {
				return err
			}
			if scheduled {
				_, err = internal.RunScheduled(cmd.Context(), diagParams, interval, runs)
				return err
			}
			_, err = internal.Run(cmd.Context(), diagParams)
			return err
		},
	}
	types := make([]string, 0, len(internal.DiagTypes))
	for _, t := range internal.DiagTypes {
		types = append(types, string(t))
	}

	flags := cmd.Flags()
	flags.StringVar(&diagParams.DiagType, "type", string(internal.API), "Diagnostic type, one of "+strings.Join(types, ", "))
	flags.StringVar(&diagParams.Mode, "mode", catalog.ModeFull, "Collection mode, full or light")
	flags.StringVar(&diagParams.Host, "host", "localhost", "Host of the product to collect from")
	flags.IntVar(&diagParams.Port, "port", 0, "Port of the product, defaults to the product's default port")
	flags.StringVar(&diagParams.Scheme, "scheme", "http", "http or https")
	flags.StringVarP(&diagParams.User, "user", "u", "", "User for basic authentication")
	flags.StringVarP(&diagParams.Password, "password", "p", "", "Password for basic authentication")
	flags.StringVar(&diagParams.APIKey, "api-key", "", "API key, base64 encoded id:key")
	flags.StringVar(&diagParams.BearerToken, "bearer-token", "", "Bearer token")
	flags.StringVar(&diagParams.CAFile, "ca", "", "Path to the certificate authority used to verify the target")
	flags.StringVar(&diagParams.CertFile, "cert", "", "Path to the client certificate for PKI authentication")
	flags.StringVar(&diagParams.KeyFile, "key", "", "Path to the client key for PKI authentication")
	flags.BoolVar(&diagParams.Insecure, "no-verify", false, "Skip verification of the target's certificate")
	flags.StringVar(&diagParams.ProxyURL, "proxy", "", "Proxy URL")
	flags.StringVar(&diagParams.ProxyUser, "proxy-user", "", "Proxy user")
	flags.StringVar(&diagParams.ProxyPassword, "proxy-password", "", "Proxy password")

	flags.StringVar(&diagParams.Remote.Host, "remote-host", "", "SSH host for remote types, defaults to --host")
	flags.IntVar(&diagParams.Remote.Port, "remote-port", 22, "SSH port")
	flags.StringVar(&diagParams.Remote.User, "remote-user", "", "SSH user")
	flags.StringVar(&diagParams.Remote.Password, "remote-password", "", "SSH password")
	flags.StringVar(&diagParams.Remote.KeyFile, "key-file", "", "SSH private key")
	flags.StringVar(&diagParams.Remote.KnownHostsFile, "known-hosts", "", "SSH known hosts file, defaults to ~/.ssh/known_hosts")
	flags.BoolVar(&diagParams.Remote.TrustRemote, "trust-remote", false, "Do not verify the SSH host key")
	flags.BoolVar(&diagParams.Remote.Sudo, "sudo", false, "Run remote commands with sudo")
	flags.StringVar(&diagParams.LogDir, "log-dir", "", "Log directory on the target host, detected if not specified")

	flags.StringVar(&diagParams.OutputDir, "output-directory", "", "Path where to output diagnostic results")
	flags.StringVar(&diagParams.ArchiveType, "archive-type", "zip", "Archive format, zip or tar.gz")
	flags.BoolVar(&diagParams.KeepWorkingDir, "keep-working-dir", false, "Keep the working directory after archiving")
	flags.StringVar(&diagParams.ConfigFile, "config", "", "Settings file overriding the built-in defaults")
	flags.BoolVar(&diagParams.Verbose, "verbose", false, "Verbose mode")

	flags.StringVar(&diagParams.Upload.Endpoint, "upload-endpoint", "", "S3 compatible endpoint to upload the archive to, host:port")
	flags.StringVar(&diagParams.Upload.Bucket, "upload-bucket", "support-diagnostics", "Bucket to upload the archive to")
	flags.StringVar(&diagParams.Upload.Prefix, "upload-prefix", "", "Object key prefix of the uploaded archive")
	flags.StringVar(&diagParams.Upload.Region, "upload-region", "us-east-1", "Region of the bucket")
	flags.BoolVar(&diagParams.Upload.UseSSL, "upload-ssl", true, "Use TLS for the upload")
	diagParams.Upload.AccessKey = os.Getenv("DIAG_UPLOAD_ACCESS_KEY")
	diagParams.Upload.SecretKey = os.Getenv("DIAG_UPLOAD_SECRET_KEY")

	flags.DurationVar(&interval, "interval", 0, "Repeat the diagnostic at this interval, see --runs")
	flags.IntVar(&runs, "runs", 1, "Number of runs, 0 repeats until interrupted. Any value other than 1 requires --interval")

	cmd.AddCommand(checkCatalogCmd(), versionCmd())
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// schedule validates --runs and --interval together and reports whether the diagnostic is scheduled.
// Any run count other than 1 needs a positive interval.
func schedule(runs int, interval time.Duration) (bool, error) {
	switch {
	case runs < 0:
		return false, fmt.Errorf("--runs must not be negative, got %d", runs)
	case interval < 0:
		return false, fmt.Errorf("--interval must not be negative, got %s", interval)
	case runs != 1 && interval == 0:
		return false, fmt.Errorf("--runs %d requires --interval", runs)
	}
	return interval > 0, nil
}

func checkCatalogCmd() *cobra.Command {
	var minMajor, maxMajor int
	var product string
	c := &cobra.Command{
		Use:   "check-catalog",
		Short: "Verify that every call of the built-in catalogs resolves to exactly one endpoint per version",
		RunE: func(cmd *cobra.Command, args []string) error {
			products := catalog.Products
			if product != "" {
				p, err := catalog.ParseProduct(product)
				if err != nil {
					return err
				}
				products = []catalog.Product{p}
			}
			versions := catalog.SampleVersions(minMajor, maxMajor)
			failed := false
			for _, p := range products {
				cat, err := catalog.ForProduct(p)
				if err == nil {
					err = cat.Validate(versions)
				}
				if err != nil {
					failed = true
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", p.DisplayName(), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d calls OK for %d versions\n", p.DisplayName(), len(cat.Calls()), len(versions))
			}
			if failed {
				return fmt.Errorf("catalog validation failed")
			}
			return nil
		},
	}
	c.Flags().IntVar(&minMajor, "min-major", 6, "Oldest major version to check")
	c.Flags().IntVar(&maxMajor, "max-major", 9, "Newest major version to check")
	c.Flags().StringVar(&product, "product", "", "Only check the catalog of this product, all products if empty")
	return c
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of this tool",
		Run: func(cmd *cobra.Command, args []string) {
			v := internal.About()
			fmt.Fprintf(cmd.OutOrStdout(), "support-diagnostics %s (%s, built %s)\n", v.Version, v.Hash, v.BuildDate)
		},
	}
}
