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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
)

const sampleConfig = `
log:
  severity: DEBUG
  format: json
redis:
  addr: 10.0.0.5:6379
  db: 2
ufds:
  url: ldaps://ufds.example.com:636
  bind_dn: cn=root
  bind_password: hunter2
replicator:
  poll_interval: 250ms
  batch_size: 500
metrics:
  addr: 127.0.0.1:8079
sts:
  key_id: k1
  key_file: /etc/mahi/sts.key
  issuer: sts.example.com
  audience: mahi
  grace_period: 12h
`

func TestReadConfig(t *testing.T) {
	t.Parallel()

	fc, err := ReadConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "DEBUG", fc.Log.Severity)
	require.Equal(t, "10.0.0.5:6379", fc.Redis.Addr)
	require.Equal(t, 2, fc.Redis.DB)
	require.Equal(t, "ldaps://ufds.example.com:636", fc.UFDS.URL)
	require.Equal(t, 500, fc.Replicator.BatchSize)
	require.Equal(t, "k1", fc.STS.KeyID)

	interval, err := fc.PollInterval()
	require.NoError(t, err)
	require.Equal(t, 250*time.Millisecond, interval)
	grace, err := fc.STSGracePeriod()
	require.NoError(t, err)
	require.Equal(t, 12*time.Hour, grace)
}

func TestReadConfigDefaults(t *testing.T) {
	t.Parallel()

	fc, err := ReadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, defaults.RedisAddr, fc.Redis.Addr)
	require.Equal(t, defaults.PollBatchSize, fc.Replicator.BatchSize)
	require.Equal(t, defaults.MetricsAddr, fc.Metrics.Addr)

	interval, err := fc.PollInterval()
	require.NoError(t, err)
	require.Equal(t, defaults.PollInterval, interval)
	grace, err := fc.STSGracePeriod()
	require.NoError(t, err)
	require.Equal(t, defaults.TokenKeyGracePeriod, grace)
}

func TestReadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := ReadConfig(strings.NewReader("redis:\n  address: 10.0.0.5:6379\n"))
	require.True(t, trace.IsBadParameter(err))
}

func TestReadConfigRejectsBadDurations(t *testing.T) {
	t.Parallel()

	_, err := ReadConfig(strings.NewReader("replicator:\n  poll_interval: soon\n"))
	require.True(t, trace.IsBadParameter(err))
	_, err = ReadConfig(strings.NewReader("sts:\n  grace_period: forever\n"))
	require.True(t, trace.IsBadParameter(err))
}

func TestReadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mahi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	fc, err := ReadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "cn=root", fc.UFDS.BindDN)

	_, err = ReadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.True(t, trace.IsNotFound(err))
}
