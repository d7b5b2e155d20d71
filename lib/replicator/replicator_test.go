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

package replicator

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
	"github.com/TritonDataCenter/mahi-sub003/lib/transform"
	"github.com/TritonDataCenter/mahi-sub003/lib/utils"
)

func TestMain(m *testing.M) {
	utils.InitLoggerForTests()
	os.Exit(m.Run())
}

type passthroughParser struct{}

func (passthroughParser) Parse(rule string) (any, error) { return rule, nil }

// fakeSource serves a fixed changelog and records the cursors it was
// asked to fetch from.
type fakeSource struct {
	entries []*changelog.Entry
	fetches []uint64
}

func (s *fakeSource) Fetch(ctx context.Context, after uint64, limit int) ([]*changelog.Entry, error) {
	s.fetches = append(s.fetches, after)
	out := make([]*changelog.Entry, 0, limit)
	for _, e := range s.entries {
		if e.ChangeNumber > after {
			out = append(out, e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func newTestClient(t *testing.T) *kv.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { require.NoError(t, rdb.Close()) })
	return kv.NewFromRedis(rdb)
}

func newTestReplicator(t *testing.T, store kv.Store, source Source) *Replicator {
	t.Helper()
	transforms, err := transform.NewService(transform.Config{Parser: passthroughParser{}})
	require.NoError(t, err)
	r, err := New(Config{
		Source:     source,
		Store:      store,
		Transforms: transforms,
		Clock:      clockwork.NewFakeClock(),
		BatchSize:  2,
	})
	require.NoError(t, err)
	return r
}

func accountAdd(number uint64, uuid, login string) *changelog.Entry {
	return &changelog.Entry{
		ChangeNumber: number,
		ChangeType:   changelog.ChangeTypeAdd,
		TargetDN:     "uuid=" + uuid + ", ou=users, o=smartdc",
		Changes: changelog.Attributes{
			"objectclass": {"sdcperson"},
			"uuid":        {uuid},
			"login":       {login},
		},
	}
}

func TestSyncAppliesAndAdvancesCursor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	source := &fakeSource{entries: []*changelog.Entry{
		accountAdd(1, "u1", "alice"),
		accountAdd(2, "u2", "bob"),
		accountAdd(3, "u3", "carol"),
	}}
	r := newTestReplicator(t, client, source)

	applied, err := r.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, applied)
	require.Equal(t, uint64(3), r.Cursor())

	// The batch size was 2, so catching up took more than one fetch.
	require.GreaterOrEqual(t, len(source.fetches), 2)

	for _, login := range []string{"alice", "bob", "carol"} {
		_, err := client.Get(ctx, "/account/"+login)
		require.NoError(t, err)
	}
	cursor, err := client.Get(ctx, CursorKey)
	require.NoError(t, err)
	require.Equal(t, "3", string(cursor))

	// Caught up: another sync applies nothing.
	applied, err = r.Sync(ctx)
	require.NoError(t, err)
	require.Zero(t, applied)
}

func TestSyncSkipsUnknownClass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	source := &fakeSource{entries: []*changelog.Entry{
		accountAdd(1, "u1", "alice"),
		{
			ChangeNumber: 2,
			ChangeType:   changelog.ChangeTypeAdd,
			TargetDN:     "cn=pkg, o=smartdc",
			Changes:      changelog.Attributes{"objectclass": {"sdcpackage"}},
		},
		accountAdd(3, "u3", "carol"),
	}}
	r := newTestReplicator(t, client, source)

	// The unrecognized entry advances the cursor without halting.
	applied, err := r.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, applied)
	require.Equal(t, uint64(3), r.Cursor())
}

func TestSyncHaltsOnMalformedEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)
	source := &fakeSource{entries: []*changelog.Entry{
		accountAdd(1, "u1", "alice"),
		{
			// Missing the login attribute required by its class.
			ChangeNumber: 2,
			ChangeType:   changelog.ChangeTypeAdd,
			TargetDN:     "uuid=u2, ou=users, o=smartdc",
			Changes: changelog.Attributes{
				"objectclass": {"sdcperson"},
				"uuid":        {"u2"},
			},
		},
		accountAdd(3, "u3", "carol"),
	}}
	r := newTestReplicator(t, client, source)

	applied, err := r.Sync(ctx)
	require.True(t, trace.IsBadParameter(err))
	require.Equal(t, 1, applied)

	// The cursor stopped before the malformed entry; nothing after it
	// was applied.
	require.Equal(t, uint64(1), r.Cursor())
	cursor, err := client.Get(ctx, CursorKey)
	require.NoError(t, err)
	require.Equal(t, "1", string(cursor))
	_, err = client.Get(ctx, "/account/carol")
	require.True(t, trace.IsNotFound(err))
}

func TestRunResumesFromPersistedCursor(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, CursorKey, []byte("2")))
	source := &fakeSource{entries: []*changelog.Entry{
		accountAdd(1, "u1", "alice"),
		accountAdd(2, "u2", "bob"),
		accountAdd(3, "u3", "carol"),
	}}
	r := newTestReplicator(t, client, source)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Only the entry past the cursor is applied.
	require.Eventually(t, func() bool {
		_, err := client.Get(context.Background(), "/account/carol")
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	_, err := client.Get(ctx, "/account/alice")
	require.True(t, trace.IsNotFound(err))

	cancel()
	require.NoError(t, <-done)
	require.NotEmpty(t, source.fetches)
	require.Equal(t, uint64(2), source.fetches[0])
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	transforms, err := transform.NewService(transform.Config{Parser: passthroughParser{}})
	require.NoError(t, err)

	_, err = New(Config{Store: newTestClient(t), Transforms: transforms})
	require.True(t, trace.IsBadParameter(err))
	_, err = New(Config{Source: &fakeSource{}, Transforms: transforms})
	require.True(t, trace.IsBadParameter(err))
	_, err = New(Config{Source: &fakeSource{}, Store: newTestClient(t)})
	require.True(t, trace.IsBadParameter(err))
}
