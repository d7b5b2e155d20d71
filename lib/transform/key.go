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

package transform

import (
	"context"

	"github.com/gravitational/trace"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
)

// keyOwner resolves the uuid owning a public key or access key. Newer
// directory entries carry it in the _owner attribute; older entries
// encode it at position 1 of the target DN (the key fingerprint or id
// sits at position 0).
func keyOwner(e *changelog.Entry) (string, error) {
	if owner, ok := e.Changes.Get("_owner"); ok {
		return owner, nil
	}
	owner, err := changelog.DNValue(e.TargetDN, 1)
	return owner, trace.Wrap(err)
}

func (s *Service) addKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	owner, err := keyOwner(e)
	if err != nil {
		return trace.Wrap(err)
	}
	fingerprint, err := e.Changes.First("fingerprint")
	if err != nil {
		return trace.Wrap(err)
	}
	pkcs, err := e.Changes.First("pkcs")
	if err != nil {
		return trace.Wrap(err)
	}
	if err := kv.SetMapField(ctx, b, uuidKey(owner), "keys", fingerprint, pkcs); err != nil {
		return trace.Wrap(err)
	}
	info := map[string]bool{}
	if value, ok := e.Changes.Get("attested"); ok {
		info["attested"] = value == "true"
	}
	if value, ok := e.Changes.Get("ykpinrequired"); ok {
		info["pin"] = value == "true"
	}
	if value, ok := e.Changes.Get("yktouchrequired"); ok {
		info["touch"] = value == "true"
	}
	return trace.Wrap(kv.SetMapField(ctx, b, uuidKey(owner), "key_info", fingerprint, info))
}

// modifyKey is a no-op: the fingerprint is the key's identity, so the
// directory always replaces keys with a delete and an add.
func (s *Service) modifyKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	s.Log.DebugContext(ctx, "Ignoring public key modification",
		"changenumber", e.ChangeNumber,
		"targetdn", e.TargetDN,
	)
	return nil
}

func (s *Service) deleteKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	owner, err := keyOwner(e)
	if err != nil {
		return trace.Wrap(err)
	}
	fingerprint, err := e.Changes.First("fingerprint")
	if err != nil {
		return trace.Wrap(err)
	}
	if err := kv.DelFromMap(ctx, b, uuidKey(owner), "keys", fingerprint); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(kv.DelFromMap(ctx, b, uuidKey(owner), "key_info", fingerprint))
}
