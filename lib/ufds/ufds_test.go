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

package ufds

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/utils"
)

func TestMain(m *testing.M) {
	utils.InitLoggerForTests()
	os.Exit(m.Run())
}

type fakeConn struct {
	lastRequest *ldap.SearchRequest
	result      *ldap.SearchResult
	err         error
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	c.lastRequest = req
	return c.result, c.err
}

func (c *fakeConn) Close() error { return nil }

func changelogRecord(number, changetype, targetdn, changes string) *ldap.Entry {
	return ldap.NewEntry("changenumber="+number+", cn=changelog", map[string][]string{
		"changenumber": {number},
		"changetype":   {changetype},
		"targetdn":     {targetdn},
		"changes":      {changes},
	})
}

func TestFetchDecodesAndSorts(t *testing.T) {
	t.Parallel()
	fake := &fakeConn{result: &ldap.SearchResult{Entries: []*ldap.Entry{
		// The directory returns pages unordered.
		changelogRecord("12", "add", "uuid=u2, ou=users, o=smartdc",
			`{"objectclass": ["sdcperson"], "uuid": ["u2"], "login": ["bob"]}`),
		changelogRecord("11", "add", "uuid=u1, ou=users, o=smartdc",
			`{"objectclass": ["sdcperson"], "uuid": ["u1"], "login": ["alice"]}`),
	}}}
	c := &Changelog{cfg: Config{BaseDN: "cn=changelog"}, conn: fake}

	entries, err := c.Fetch(context.Background(), 10, 100)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(11), entries[0].ChangeNumber)
	require.Equal(t, uint64(12), entries[1].ChangeNumber)
	require.Equal(t, changelog.ChangeTypeAdd, entries[0].ChangeType)
	require.Equal(t, []string{"alice"}, entries[0].Changes.Values("login"))

	require.Equal(t, "(&(changenumber>=11)(objectclass=changelogentry))", fake.lastRequest.Filter)
	require.Equal(t, 100, fake.lastRequest.SizeLimit)
	require.Equal(t, "cn=changelog", fake.lastRequest.BaseDN)
}

func TestFetchModifyEntry(t *testing.T) {
	t.Parallel()
	record := changelogRecord("21", "modify", "uuid=u1, ou=users, o=smartdc",
		`[{"operation": "replace", "modification": {"type": "login", "vals": ["bmc"]}}]`)
	record.Attributes = append(record.Attributes, ldap.NewEntryAttribute("entry",
		[]string{`{"objectclass": ["sdcperson"], "uuid": ["u1"], "login": ["bmc"]}`}))
	fake := &fakeConn{result: &ldap.SearchResult{Entries: []*ldap.Entry{record}}}
	c := &Changelog{cfg: Config{BaseDN: "cn=changelog"}, conn: fake}

	entries, err := c.Fetch(context.Background(), 20, 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Modifications, 1)
	require.Equal(t, "login", entries[0].Modifications[0].Type)
	require.Equal(t, []string{"bmc"}, entries[0].Modifications[0].Values)
	require.Equal(t, []string{"sdcperson"}, entries[0].Image.Values("objectclass"))
}

func TestFetchSizeLimitExceeded(t *testing.T) {
	t.Parallel()
	// A size-limited search still yields its partial page.
	fake := &fakeConn{
		result: &ldap.SearchResult{Entries: []*ldap.Entry{
			changelogRecord("31", "add", "uuid=u1, ou=users, o=smartdc",
				`{"objectclass": ["sdcperson"], "uuid": ["u1"], "login": ["alice"]}`),
		}},
		err: ldap.NewError(ldap.LDAPResultSizeLimitExceeded, errors.New("size limit exceeded")),
	}
	c := &Changelog{cfg: Config{BaseDN: "cn=changelog"}, conn: fake}

	entries, err := c.Fetch(context.Background(), 30, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFetchMalformedRecord(t *testing.T) {
	t.Parallel()
	fake := &fakeConn{result: &ldap.SearchResult{Entries: []*ldap.Entry{
		changelogRecord("41", "moddn", "uuid=u1, ou=users, o=smartdc", `{}`),
	}}}
	c := &Changelog{cfg: Config{BaseDN: "cn=changelog"}, conn: fake}

	_, err := c.Fetch(context.Background(), 40, 100)
	require.True(t, trace.IsBadParameter(err))
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}
	require.NoError(t, cfg.CheckAndSetDefaults())
	require.NotEmpty(t, cfg.URL)
	require.NotEmpty(t, cfg.BindDN)
	require.Equal(t, "cn=changelog", cfg.BaseDN)
	require.NotZero(t, cfg.ConnectTimeout)
}
