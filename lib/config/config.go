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

// Package config loads the daemon's YAML configuration file.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/gravitational/trace"
	"gopkg.in/yaml.v3"

	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
)

// FileConfig is the daemon configuration as written in YAML.
type FileConfig struct {
	Log        Log        `yaml:"log,omitempty"`
	Redis      Redis      `yaml:"redis,omitempty"`
	UFDS       UFDS       `yaml:"ufds,omitempty"`
	Replicator Replicator `yaml:"replicator,omitempty"`
	Metrics    Metrics    `yaml:"metrics,omitempty"`
	STS        STS        `yaml:"sts,omitempty"`
}

// Log configures the process-wide logger.
type Log struct {
	// Severity is the minimum level emitted: TRACE, DEBUG, INFO,
	// WARN or ERROR.
	Severity string `yaml:"severity,omitempty"`
	// Output is stderr, stdout or discard.
	Output string `yaml:"output,omitempty"`
	// Format is text or json.
	Format string `yaml:"format,omitempty"`
}

// Redis configures the projection store connection.
type Redis struct {
	Addr     string `yaml:"addr,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// UFDS configures the directory connection.
type UFDS struct {
	URL          string `yaml:"url,omitempty"`
	BindDN       string `yaml:"bind_dn,omitempty"`
	BindPassword string `yaml:"bind_password,omitempty"`
	BaseDN       string `yaml:"base_dn,omitempty"`
	// Insecure disables TLS certificate verification.
	Insecure bool `yaml:"insecure,omitempty"`
}

// Replicator configures the replication loop.
type Replicator struct {
	// PollInterval is a duration string such as "1s".
	PollInterval string `yaml:"poll_interval,omitempty"`
	// BatchSize caps entries fetched per poll.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// Metrics configures the diagnostics endpoint.
type Metrics struct {
	// Addr is the listen address of /metrics.
	Addr string `yaml:"addr,omitempty"`
}

// STS configures the session token service.
type STS struct {
	// KeyID names the initial signing key.
	KeyID string `yaml:"key_id,omitempty"`
	// KeyFile holds the HMAC secret.
	KeyFile  string `yaml:"key_file,omitempty"`
	Issuer   string `yaml:"issuer,omitempty"`
	Audience string `yaml:"audience,omitempty"`
	// GracePeriod is a duration string such as "24h".
	GracePeriod string `yaml:"grace_period,omitempty"`
}

// ReadFromFile loads and validates the configuration at path.
func ReadFromFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	defer f.Close()
	fc, err := ReadConfig(f)
	if err != nil {
		return nil, trace.Wrap(err, "failed to parse config file %v", path)
	}
	return fc, nil
}

// ReadConfig parses and validates YAML configuration. Unknown fields
// are rejected: a typoed key must not silently fall back to a default.
func ReadConfig(reader io.Reader) (*FileConfig, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	var fc FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&fc); err != nil && err != io.EOF {
		return nil, trace.BadParameter("invalid configuration: %v", err)
	}
	if err := fc.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &fc, nil
}

// CheckAndSetDefaults checks and sets default values.
func (fc *FileConfig) CheckAndSetDefaults() error {
	if fc.Redis.Addr == "" {
		fc.Redis.Addr = defaults.RedisAddr
	}
	if fc.Replicator.PollInterval == "" {
		fc.Replicator.PollInterval = defaults.PollInterval.String()
	}
	if _, err := fc.PollInterval(); err != nil {
		return trace.Wrap(err)
	}
	if fc.Replicator.BatchSize < 0 {
		return trace.BadParameter("replicator batch_size must be positive, got %d", fc.Replicator.BatchSize)
	}
	if fc.Replicator.BatchSize == 0 {
		fc.Replicator.BatchSize = defaults.PollBatchSize
	}
	if fc.Metrics.Addr == "" {
		fc.Metrics.Addr = defaults.MetricsAddr
	}
	if fc.STS.GracePeriod == "" {
		fc.STS.GracePeriod = defaults.TokenKeyGracePeriod.String()
	}
	if _, err := fc.STSGracePeriod(); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

// PollInterval returns the parsed replicator poll interval.
func (fc *FileConfig) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(fc.Replicator.PollInterval)
	if err != nil {
		return 0, trace.BadParameter("invalid replicator poll_interval %q: %v", fc.Replicator.PollInterval, err)
	}
	return d, nil
}

// STSGracePeriod returns the parsed signing key grace period.
func (fc *FileConfig) STSGracePeriod() (time.Duration, error) {
	d, err := time.ParseDuration(fc.STS.GracePeriod)
	if err != nil {
		return 0, trace.BadParameter("invalid sts grace_period %q: %v", fc.STS.GracePeriod, err)
	}
	return d, nil
}
