/*
Copyright 2025 TritonDataCenter, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command mahi-replicator tails the UFDS changelog and maintains the
// redis projection that serves the authentication endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gravitational/trace"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	"github.com/TritonDataCenter/mahi-sub003/lib/config"
	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
	"github.com/TritonDataCenter/mahi-sub003/lib/replicator"
	"github.com/TritonDataCenter/mahi-sub003/lib/sts"
	"github.com/TritonDataCenter/mahi-sub003/lib/transform"
	"github.com/TritonDataCenter/mahi-sub003/lib/ufds"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", trace.UserMessage(err))
		os.Exit(1)
	}
}

func run(args []string) error {
	app := kingpin.New("mahi-replicator", "Replicates the UFDS directory into the mahi authentication cache.")
	app.HelpFlag.Short('h')

	start := app.Command("start", "Start the replicator daemon.")
	configPath := start.Flag("config", "Path to the YAML configuration file.").
		Short('c').Default("/etc/mahi.yaml").String()

	version := app.Command("version", "Print the version and exit.")

	command, err := app.Parse(args)
	if err != nil {
		return trace.Wrap(err)
	}
	switch command {
	case start.FullCommand():
		return trace.Wrap(onStart(*configPath))
	case version.FullCommand():
		fmt.Println(mahi.Version)
		return nil
	}
	return trace.BadParameter("unknown command %q", command)
}

func onStart(configPath string) error {
	fc, err := config.ReadFromFile(configPath)
	if err != nil {
		return trace.Wrap(err)
	}
	log, err := logutils.Initialize(logutils.Config{
		Severity: fc.Log.Severity,
		Output:   fc.Log.Output,
		Format:   fc.Log.Format,
	})
	if err != nil {
		return trace.Wrap(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.New(ctx, kv.Config{
		Addr:     fc.Redis.Addr,
		Username: fc.Redis.Username,
		Password: fc.Redis.Password,
		DB:       fc.Redis.DB,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	defer store.Close()

	dir, err := ufds.Dial(ctx, ufds.Config{
		URL:                fc.UFDS.URL,
		BindDN:             fc.UFDS.BindDN,
		BindPassword:       fc.UFDS.BindPassword,
		BaseDN:             fc.UFDS.BaseDN,
		InsecureSkipVerify: fc.UFDS.Insecure,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	defer dir.Close()

	transforms, err := transform.NewService(transform.Config{
		Parser: transform.PassthroughParser{},
	})
	if err != nil {
		return trace.Wrap(err)
	}

	pollInterval, err := fc.PollInterval()
	if err != nil {
		return trace.Wrap(err)
	}
	r, err := replicator.New(replicator.Config{
		Source:       dir,
		Store:        store,
		Transforms:   transforms,
		PollInterval: pollInterval,
		BatchSize:    fc.Replicator.BatchSize,
	})
	if err != nil {
		return trace.Wrap(err)
	}

	if fc.STS.KeyFile != "" {
		keys, err := loadSigningKeys(fc)
		if err != nil {
			return trace.Wrap(err)
		}
		go evictExpiredKeys(ctx, keys)
	}

	go serveMetrics(ctx, log, fc.Metrics.Addr)

	log.InfoContext(ctx, "Starting replication",
		"version", mahi.Version,
		"redis", fc.Redis.Addr,
		"ufds", fc.UFDS.URL,
	)
	return trace.Wrap(r.Run(ctx))
}

// loadSigningKeys seeds the session token key store from the
// configured secret.
func loadSigningKeys(fc *config.FileConfig) (*sts.KeyStore, error) {
	secret, err := os.ReadFile(fc.STS.KeyFile)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	grace, err := fc.STSGracePeriod()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	keys, err := sts.NewKeyStore(sts.KeyStoreConfig{
		KeyID:       fc.STS.KeyID,
		Key:         []byte(strings.TrimSpace(string(secret))),
		GracePeriod: grace,
	})
	return keys, trace.Wrap(err)
}

// evictExpiredKeys ages rotated-out signing keys past their grace
// period out of the store.
func evictExpiredKeys(ctx context.Context, keys *sts.KeyStore) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys.RemoveExpired()
		}
	}
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaults.GracefulShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WarnContext(ctx, "Metrics endpoint shutdown failed", "error", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WarnContext(ctx, "Metrics endpoint stopped", "error", err)
	}
}
