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

// groupofuniquenames entries carry the flat operator-style groups that
// live directly under o=smartdc ("operators", "readers"). Membership
// is projected onto the member account's groups field as a
// {name: true} map rather than a sorted array; operator checks
// downstream consume that legacy shape.

func (s *Service) addOperatorGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	// A group created empty is a successful no-op.
	return trace.Wrap(s.updateOperatorMembers(ctx, b, e, e.Changes.Values("uniquemember"), changelog.OperationAdd))
}

func (s *Service) modifyOperatorGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	for _, mod := range e.Modifications {
		if mod.Type != "uniquemember" {
			s.warnModification(ctx, e, mod)
			continue
		}
		if mod.Operation != changelog.OperationAdd && mod.Operation != changelog.OperationDelete {
			s.warnModification(ctx, e, mod)
			continue
		}
		if err := s.updateOperatorMembers(ctx, b, e, mod.Values, mod.Operation); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

func (s *Service) deleteOperatorGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	return trace.Wrap(s.updateOperatorMembers(ctx, b, e, e.Changes.Values("uniquemember"), changelog.OperationDelete))
}

func (s *Service) updateOperatorMembers(ctx context.Context, b *kv.Batch, e *changelog.Entry, memberDNs []string, op string) error {
	name, err := changelog.DNValue(e.TargetDN, 0)
	if err != nil {
		return trace.Wrap(err)
	}
	users, err := dnValues(memberDNs, 0)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, user := range users {
		switch op {
		case changelog.OperationAdd:
			err = kv.AddToMap(ctx, b, uuidKey(user), "groups", name)
		case changelog.OperationDelete:
			err = kv.DelFromMap(ctx, b, uuidKey(user), "groups", name)
		default:
			return trace.BadParameter("unsupported membership operation %q", op)
		}
		if err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}
