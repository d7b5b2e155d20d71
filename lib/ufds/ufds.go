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

// Package ufds reads the changelog of the UFDS user directory over
// LDAP and decodes it into changelog entries for the replicator.
package ufds

import (
	"cmp"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"slices"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/gravitational/trace"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

var log = logutils.NewPackageLogger(mahi.ComponentKey, mahi.ComponentUFDS)

// Config configures the directory connection.
type Config struct {
	// URL is the LDAP URL of the directory (ldap:// or ldaps://).
	URL string
	// BindDN and BindPassword authenticate the connection.
	BindDN       string
	BindPassword string
	// BaseDN is the search base of the changelog.
	BaseDN string
	// ConnectTimeout bounds the dial and bind.
	ConnectTimeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification. Lab
	// use only.
	InsecureSkipVerify bool
}

// CheckAndSetDefaults checks and sets default values.
func (c *Config) CheckAndSetDefaults() error {
	if c.URL == "" {
		c.URL = defaults.UFDSURL
	}
	if c.BindDN == "" {
		c.BindDN = defaults.UFDSBindDN
	}
	if c.BaseDN == "" {
		c.BaseDN = defaults.ChangelogBaseDN
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.UFDSConnectTimeout
	}
	return nil
}

// conn is the subset of the LDAP client the changelog reader uses.
type conn interface {
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// Changelog reads directory changelog entries. It implements
// replicator.Source. Not safe for concurrent use; the replicator is
// the single reader.
type Changelog struct {
	cfg  Config
	conn conn
}

// Dial connects and binds to the directory.
func Dial(ctx context.Context, cfg Config) (*Changelog, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	c, err := ldap.DialURL(cfg.URL,
		ldap.DialWithDialer(&net.Dialer{Timeout: cfg.ConnectTimeout}),
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}),
	)
	if err != nil {
		return nil, trace.ConnectionProblem(err, "failed to connect to directory at %v", cfg.URL)
	}
	if err := c.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		_ = c.Close()
		return nil, trace.ConnectionProblem(err, "failed to bind as %q", cfg.BindDN)
	}
	log.InfoContext(ctx, "Connected to directory", "url", cfg.URL, "bind_dn", cfg.BindDN)
	return &Changelog{cfg: cfg, conn: c}, nil
}

// Close closes the directory connection.
func (c *Changelog) Close() error {
	return trace.Wrap(c.conn.Close())
}

// changelogAttributes are the attributes of a changelogentry the
// replicator consumes.
var changelogAttributes = []string{"changenumber", "changetype", "targetdn", "changes", "entry"}

// Fetch returns up to limit entries with changenumbers strictly
// greater than after, ordered by changenumber. The directory does not
// guarantee result order, so entries are sorted before they are
// returned; a size-limited search yields the partial page and the next
// fetch continues behind it.
func (c *Changelog) Fetch(ctx context.Context, after uint64, limit int) ([]*changelog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, trace.Wrap(err)
	}
	filter := fmt.Sprintf("(&(changenumber>=%d)(objectclass=changelogentry))", after+1)
	req := ldap.NewSearchRequest(
		c.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		limit, // SizeLimit
		0,     // TimeLimit
		false, // TypesOnly
		filter,
		changelogAttributes,
		nil,
	)
	res, err := c.conn.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		return nil, trace.ConnectionProblem(err, "changelog search from changenumber %d failed", after+1)
	}
	if res == nil {
		return nil, nil
	}

	entries := make([]*changelog.Entry, 0, len(res.Entries))
	for _, item := range res.Entries {
		raw := changelog.Raw{
			ChangeNumber: item.GetAttributeValue("changenumber"),
			ChangeType:   item.GetAttributeValue("changetype"),
			TargetDN:     item.GetAttributeValue("targetdn"),
			Changes:      item.GetRawAttributeValue("changes"),
			Entry:        item.GetRawAttributeValue("entry"),
		}
		entry, err := changelog.Decode(raw)
		if err != nil {
			return nil, trace.Wrap(err, "changelog record %q is malformed", item.DN)
		}
		entries = append(entries, entry)
	}
	slices.SortFunc(entries, func(a, b *changelog.Entry) int {
		return cmp.Compare(a.ChangeNumber, b.ChangeNumber)
	})
	return entries, nil
}
