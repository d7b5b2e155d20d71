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

package kv

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func getField[T any](t *testing.T, ctx context.Context, client *Client, key, field string) T {
	t.Helper()
	data, err := client.Get(ctx, key)
	require.NoError(t, err)
	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &blob))
	var out T
	require.NoError(t, json.Unmarshal(blob[field], &out))
	return out
}

func TestAddToSortedSetKeepsOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	// Insert at the end, the beginning, and the middle of the array.
	for _, element := range []string{"bb", "dd", "aa", "cc"} {
		require.NoError(t, AddToSortedSet(ctx, b, "/uuid/u1", "roles", element, strings.Compare))
	}
	require.NoError(t, b.Commit(ctx))

	roles := getField[[]string](t, ctx, client, "/uuid/u1", "roles")
	require.Equal(t, []string{"aa", "bb", "cc", "dd"}, roles)
}

func TestAddToSortedSetIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	require.NoError(t, AddToSortedSet(ctx, b, "/uuid/u1", "roles", "r1", strings.Compare))
	queued := b.Len()

	// Inserting a present element queues nothing.
	require.NoError(t, AddToSortedSet(ctx, b, "/uuid/u1", "roles", "r1", strings.Compare))
	require.Equal(t, queued, b.Len())
	require.NoError(t, b.Commit(ctx))

	roles := getField[[]string](t, ctx, client, "/uuid/u1", "roles")
	require.Equal(t, []string{"r1"}, roles)
}

func TestSortedSetAddDeleteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, "/uuid/u1", []byte(`{"roles":["aa","cc"],"login":"alice"}`)))

	b := NewBatch(client)
	require.NoError(t, AddToSortedSet(ctx, b, "/uuid/u1", "roles", "bb", strings.Compare))
	require.NoError(t, DelFromSortedSet(ctx, b, "/uuid/u1", "roles", "bb", strings.Compare))
	require.NoError(t, b.Commit(ctx))

	roles := getField[[]string](t, ctx, client, "/uuid/u1", "roles")
	require.Equal(t, []string{"aa", "cc"}, roles)
	// Untouched fields round-trip verbatim.
	require.Equal(t, "alice", getField[string](t, ctx, client, "/uuid/u1", "login"))
}

func TestDelFromSortedSetAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, "/uuid/u1", []byte(`{"roles":["aa"]}`)))

	b := NewBatch(client)
	require.NoError(t, DelFromSortedSet(ctx, b, "/uuid/u1", "roles", "zz", strings.Compare))
	require.Equal(t, 0, b.Len())
	require.NoError(t, b.Commit(ctx))

	roles := getField[[]string](t, ctx, client, "/uuid/u1", "roles")
	require.Equal(t, []string{"aa"}, roles)
}

func TestSetUnion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, "/uuidv2/r1", []byte(`{"policies":["bb","dd"]}`)))

	b := NewBatch(client)
	// Unsorted input with duplicates.
	require.NoError(t, SetUnion(ctx, b, "/uuidv2/r1", "policies", []string{"ee", "aa", "bb", "aa"}, strings.Compare))
	require.NoError(t, b.Commit(ctx))

	policies := getField[[]string](t, ctx, client, "/uuidv2/r1", "policies")
	require.Equal(t, []string{"aa", "bb", "dd", "ee"}, policies)
}

func TestSetDifference(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, "/uuidv2/r1", []byte(`{"policies":["aa","bb","cc","dd"]}`)))

	b := NewBatch(client)
	require.NoError(t, SetDifference(ctx, b, "/uuidv2/r1", "policies", []string{"dd", "bb", "zz"}, strings.Compare))
	require.NoError(t, b.Commit(ctx))

	policies := getField[[]string](t, ctx, client, "/uuidv2/r1", "policies")
	require.Equal(t, []string{"aa", "cc"}, policies)
}

func TestMapPrimitives(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	require.NoError(t, AddToMap(ctx, b, "/uuid/u1", "groups", "operators"))
	require.NoError(t, AddToMap(ctx, b, "/uuid/u1", "groups", "readers"))
	require.NoError(t, b.Commit(ctx))

	groups := getField[map[string]bool](t, ctx, client, "/uuid/u1", "groups")
	require.Equal(t, map[string]bool{"operators": true, "readers": true}, groups)

	b = NewBatch(client)
	require.NoError(t, DelFromMap(ctx, b, "/uuid/u1", "groups", "readers"))
	// Removing an absent element queues nothing.
	queued := b.Len()
	require.NoError(t, DelFromMap(ctx, b, "/uuid/u1", "groups", "ghost"))
	require.Equal(t, queued, b.Len())
	require.NoError(t, b.Commit(ctx))

	groups = getField[map[string]bool](t, ctx, client, "/uuid/u1", "groups")
	require.Equal(t, map[string]bool{"operators": true}, groups)
}

func TestSetMapField(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	require.NoError(t, SetMapField(ctx, b, "/uuid/u1", "keys", "aa:bb", "PEM DATA"))
	require.NoError(t, SetMapField(ctx, b, "/uuid/u1", "key_info", "aa:bb", map[string]bool{"attested": true}))
	require.NoError(t, b.Commit(ctx))

	keys := getField[map[string]string](t, ctx, client, "/uuid/u1", "keys")
	require.Equal(t, map[string]string{"aa:bb": "PEM DATA"}, keys)
	info := getField[map[string]map[string]bool](t, ctx, client, "/uuid/u1", "key_info")
	require.Equal(t, map[string]map[string]bool{"aa:bb": {"attested": true}}, info)
}

func TestSetValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	require.NoError(t, SetValue(ctx, b, "/uuid/u1", "approved_for_provisioning", true))
	require.NoError(t, SetValue(ctx, b, "/uuid/u1", "assumerolepolicydocument", nil))
	require.NoError(t, b.Commit(ctx))

	require.True(t, getField[bool](t, ctx, client, "/uuid/u1", "approved_for_provisioning"))

	data, err := client.Get(ctx, "/uuid/u1")
	require.NoError(t, err)
	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &blob))
	require.Equal(t, "null", string(blob["assumerolepolicydocument"]))
}

func TestRenameRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	require.NoError(t, client.Put(ctx, "/uuidv2/r1", []byte(`{"uuid":"r1","account":"a1","name":"ops","policies":["p1"]}`)))
	require.NoError(t, client.Put(ctx, "/role/a1/ops", []byte("r1")))

	b := NewBatch(client)
	require.NoError(t, Rename(ctx, b, "/uuidv2/r1", "admins", "role", "r1"))
	require.NoError(t, b.Commit(ctx))

	_, err := client.Get(ctx, "/role/a1/ops")
	require.Error(t, err)
	value, err := client.Get(ctx, "/role/a1/admins")
	require.NoError(t, err)
	require.Equal(t, "r1", string(value))
	require.Equal(t, "admins", getField[string](t, ctx, client, "/uuidv2/r1", "name"))
	// Untouched fields survive the rename.
	require.Equal(t, []string{"p1"}, getField[[]string](t, ctx, client, "/uuidv2/r1", "policies"))

	// Renaming back restores both the blob and the indices.
	b = NewBatch(client)
	require.NoError(t, Rename(ctx, b, "/uuidv2/r1", "ops", "role", "r1"))
	require.NoError(t, b.Commit(ctx))

	_, err = client.Get(ctx, "/role/a1/admins")
	require.Error(t, err)
	value, err = client.Get(ctx, "/role/a1/ops")
	require.NoError(t, err)
	require.Equal(t, "r1", string(value))
	require.Equal(t, "ops", getField[string](t, ctx, client, "/uuidv2/r1", "name"))
}

func TestRenameMissingBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := newTestClient(t)

	b := NewBatch(client)
	b.Set("/uuid/other", []byte(`{}`))
	require.NoError(t, Rename(ctx, b, "/uuidv2/ghost", "newname", "role", "ghost"))

	// The rename was skipped but the rest of the batch commits.
	require.NoError(t, b.Commit(ctx))
	_, err := client.Get(ctx, "/uuid/other")
	require.NoError(t, err)
}
