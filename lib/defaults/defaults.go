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

// Package defaults contains default constants set in various parts of
// the mahi codebase.
package defaults

import "time"

const (
	// RedisAddr is the address of the local redis instance backing the cache.
	RedisAddr = "127.0.0.1:6379"

	// RedisDialTimeout is a TCP dial timeout for redis connection attempts.
	RedisDialTimeout = 10 * time.Second

	// UFDSURL is the default LDAP URL of the directory serving the changelog.
	UFDSURL = "ldaps://127.0.0.1:636"

	// UFDSBindDN is the default DN the replicator binds as.
	UFDSBindDN = "cn=root"

	// UFDSConnectTimeout bounds the initial LDAP dial and bind.
	UFDSConnectTimeout = 10 * time.Second

	// ChangelogBaseDN is the search base for changelog entries.
	ChangelogBaseDN = "cn=changelog"

	// PollInterval sets how often the replicator polls the directory
	// for changelog entries once it has caught up.
	PollInterval = time.Second

	// PollBatchSize caps the number of changelog entries fetched per poll.
	PollBatchSize = 1000

	// MetricsAddr is the default listen address of the diagnostics endpoint.
	MetricsAddr = "127.0.0.1:8079"

	// MaxTokenLength caps the size of a session token accepted for
	// verification.
	MaxTokenLength = 8192

	// TokenIssuer is the expected issuer of session tokens.
	TokenIssuer = "sts.tritondatacenter.com"

	// TokenAudience is the expected audience of session tokens.
	TokenAudience = "mahi"

	// TokenKeyGracePeriod sets for how long a rotated-out signing key
	// still verifies previously issued tokens.
	TokenKeyGracePeriod = 24 * time.Hour

	// GracefulShutdownTimeout bounds the drain of in-flight requests
	// on the diagnostics endpoint when the daemon exits.
	GracefulShutdownTimeout = 30 * time.Second
)
