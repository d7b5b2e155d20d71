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
	"encoding/json"
	"strings"

	"github.com/gravitational/trace"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
)

// groupRecord is the projection of an account-scoped group. Groups
// predate roles; they live in the v1 uuid namespace and their name
// attribute is cn.
type groupRecord struct {
	Type    string   `json:"type"`
	UUID    string   `json:"uuid"`
	Account string   `json:"account"`
	Name    string   `json:"name"`
	Roles   []string `json:"roles"`
}

func (s *Service) addGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	name, err := e.Changes.First("cn")
	if err != nil {
		return trace.Wrap(err)
	}
	data, err := json.Marshal(groupRecord{
		Type:    "group",
		UUID:    uuid,
		Account: account,
		Name:    name,
		Roles:   []string{},
	})
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(uuidKey(uuid), data)
	b.Set(groupKey(account, name), []byte(uuid))
	b.SAdd(setGroupsKey(account), uuid)
	return trace.Wrap(s.updateUserGroups(ctx, b, e.Changes.Values("uniquemember"), uuid, changelog.OperationAdd))
}

func (s *Service) modifyGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.UUID()
	if err != nil {
		return trace.Wrap(err)
	}
	for _, mod := range e.Modifications {
		switch mod.Type {
		case "cn":
			if len(mod.Values) == 0 {
				return trace.BadParameter("changelog entry %d: cn modification carries no value", e.ChangeNumber)
			}
			if err := kv.Rename(ctx, b, uuidKey(uuid), mod.Values[0], "group", uuid); err != nil {
				return trace.Wrap(err)
			}
		case "memberrole":
			roles, err := dnValues(mod.Values, 0)
			if err != nil {
				return trace.Wrap(err)
			}
			switch mod.Operation {
			case changelog.OperationAdd:
				err = kv.SetUnion(ctx, b, uuidKey(uuid), "roles", roles, strings.Compare)
			case changelog.OperationDelete:
				err = kv.SetDifference(ctx, b, uuidKey(uuid), "roles", roles, strings.Compare)
			default:
				s.warnModification(ctx, e, mod)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		case "uniquemember":
			if mod.Operation != changelog.OperationAdd && mod.Operation != changelog.OperationDelete {
				s.warnModification(ctx, e, mod)
				continue
			}
			if err := s.updateUserGroups(ctx, b, mod.Values, uuid, mod.Operation); err != nil {
				return trace.Wrap(err)
			}
		default:
			s.warnModification(ctx, e, mod)
		}
	}
	return nil
}

func (s *Service) deleteGroup(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	name, err := e.Changes.First("cn")
	if err != nil {
		return trace.Wrap(err)
	}
	b.Del(uuidKey(uuid))
	b.Del(groupKey(account, name))
	b.SRem(setGroupsKey(account), uuid)
	return trace.Wrap(s.updateUserGroups(ctx, b, e.Changes.Values("uniquemember"), uuid, changelog.OperationDelete))
}

// updateUserGroups adds or removes group on the groups sorted set of
// every sub-user record referenced by the member DNs.
func (s *Service) updateUserGroups(ctx context.Context, b *kv.Batch, memberDNs []string, group, op string) error {
	users, err := dnValues(memberDNs, 0)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, user := range users {
		switch op {
		case changelog.OperationAdd:
			err = kv.AddToSortedSet(ctx, b, uuidKey(user), "groups", group, strings.Compare)
		case changelog.OperationDelete:
			err = kv.DelFromSortedSet(ctx, b, uuidKey(user), "groups", group, strings.Compare)
		default:
			return trace.BadParameter("unsupported membership operation %q", op)
		}
		if err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}
