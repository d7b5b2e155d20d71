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

func (s *Service) addAccessKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	owner, err := keyOwner(e)
	if err != nil {
		return trace.Wrap(err)
	}
	id, err := e.Changes.First("accesskeyid")
	if err != nil {
		return trace.Wrap(err)
	}
	secret, err := e.Changes.First("accesskeysecret")
	if err != nil {
		return trace.Wrap(err)
	}
	if err := kv.SetMapField(ctx, b, uuidKey(owner), "accesskeys", id, secret); err != nil {
		return trace.Wrap(err)
	}
	// Reverse index for SigV4 verification: the access key id on the
	// wire resolves straight to the owning uuid.
	b.Set(accessKeyKey(id), []byte(owner))
	return nil
}

// modifyAccessKey is a no-op: access keys are replaced, never edited.
func (s *Service) modifyAccessKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	s.Log.DebugContext(ctx, "Ignoring access key modification",
		"changenumber", e.ChangeNumber,
		"targetdn", e.TargetDN,
	)
	return nil
}

func (s *Service) deleteAccessKey(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	owner, err := keyOwner(e)
	if err != nil {
		return trace.Wrap(err)
	}
	id, err := e.Changes.First("accesskeyid")
	if err != nil {
		return trace.Wrap(err)
	}
	if err := kv.DelFromMap(ctx, b, uuidKey(owner), "accesskeys", id); err != nil {
		return trace.Wrap(err)
	}
	b.Del(accessKeyKey(id))
	return nil
}
