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

// roleRecord is the projection of an account role. The trust policy
// document is stored as raw JSON text, null when the role carries
// none.
type roleRecord struct {
	Type                     string   `json:"type"`
	UUID                     string   `json:"uuid"`
	Account                  string   `json:"account"`
	Name                     string   `json:"name"`
	Policies                 []string `json:"policies"`
	AssumeRolePolicyDocument *string  `json:"assumerolepolicydocument"`
}

func (s *Service) addRole(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	name, err := e.Changes.First("name")
	if err != nil {
		return trace.Wrap(err)
	}
	record := roleRecord{
		Type:     "role",
		UUID:     uuid,
		Account:  account,
		Name:     name,
		Policies: []string{},
	}
	if doc, ok := e.Changes.Get("assumerolepolicydocument"); ok {
		record.AssumeRolePolicyDocument = &doc
	}
	data, err := json.Marshal(record)
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(uuidV2Key(uuid), data)
	b.Set(roleKey(account, name), []byte(uuid))
	b.SAdd(setRolesKey(account), uuid)

	// Each uniquemember DN names a sub-user taking the role; members
	// listed as uniquememberdefault get it on every request.
	if err := s.updateMemberRoles(ctx, b, e.Changes.Values("uniquemember"), "roles", uuid, changelog.OperationAdd); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(s.updateMemberRoles(ctx, b, e.Changes.Values("uniquememberdefault"), "defaultRoles", uuid, changelog.OperationAdd))
}

func (s *Service) modifyRole(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.UUID()
	if err != nil {
		return trace.Wrap(err)
	}
	for _, mod := range e.Modifications {
		switch mod.Type {
		case "name":
			if len(mod.Values) == 0 {
				return trace.BadParameter("changelog entry %d: name modification carries no value", e.ChangeNumber)
			}
			if err := kv.Rename(ctx, b, uuidV2Key(uuid), mod.Values[0], "role", uuid); err != nil {
				return trace.Wrap(err)
			}
		case "memberpolicy":
			policies, err := dnValues(mod.Values, 0)
			if err != nil {
				return trace.Wrap(err)
			}
			switch mod.Operation {
			case changelog.OperationAdd:
				err = kv.SetUnion(ctx, b, uuidV2Key(uuid), "policies", policies, strings.Compare)
			case changelog.OperationDelete:
				err = kv.SetDifference(ctx, b, uuidV2Key(uuid), "policies", policies, strings.Compare)
			default:
				s.warnModification(ctx, e, mod)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		case "uniquemember", "uniquememberdefault":
			if mod.Operation != changelog.OperationAdd && mod.Operation != changelog.OperationDelete {
				s.warnModification(ctx, e, mod)
				continue
			}
			field := "roles"
			if mod.Type == "uniquememberdefault" {
				field = "defaultRoles"
			}
			if err := s.updateMemberRoles(ctx, b, mod.Values, field, uuid, mod.Operation); err != nil {
				return trace.Wrap(err)
			}
		case "assumerolepolicydocument":
			switch mod.Operation {
			case changelog.OperationAdd, changelog.OperationReplace:
				if len(mod.Values) == 0 {
					return trace.BadParameter("changelog entry %d: assumerolepolicydocument modification carries no value", e.ChangeNumber)
				}
				err = kv.SetValue(ctx, b, uuidV2Key(uuid), "assumerolepolicydocument", mod.Values[0])
			case changelog.OperationDelete:
				err = kv.SetValue(ctx, b, uuidV2Key(uuid), "assumerolepolicydocument", nil)
			default:
				s.warnModification(ctx, e, mod)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		default:
			s.warnModification(ctx, e, mod)
		}
	}
	return nil
}

func (s *Service) deleteRole(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	name, err := e.Changes.First("name")
	if err != nil {
		return trace.Wrap(err)
	}
	b.Del(uuidV2Key(uuid))
	b.Del(roleKey(account, name))
	b.SRem(setRolesKey(account), uuid)

	if err := s.updateMemberRoles(ctx, b, e.Changes.Values("uniquemember"), "roles", uuid, changelog.OperationDelete); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(s.updateMemberRoles(ctx, b, e.Changes.Values("uniquememberdefault"), "defaultRoles", uuid, changelog.OperationDelete))
}

// updateMemberRoles adds or removes role on the named sorted-set field
// of every sub-user record referenced by the member DNs.
func (s *Service) updateMemberRoles(ctx context.Context, b *kv.Batch, memberDNs []string, field, role, op string) error {
	users, err := dnValues(memberDNs, 0)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, user := range users {
		switch op {
		case changelog.OperationAdd:
			err = kv.AddToSortedSet(ctx, b, uuidKey(user), field, role, strings.Compare)
		case changelog.OperationDelete:
			err = kv.DelFromSortedSet(ctx, b, uuidKey(user), field, role, strings.Compare)
		default:
			return trace.BadParameter("unsupported membership operation %q", op)
		}
		if err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

func (s *Service) warnModification(ctx context.Context, e *changelog.Entry, mod changelog.Modification) {
	s.Log.WarnContext(ctx, "Skipping unhandled modification",
		"changenumber", e.ChangeNumber,
		"attribute", mod.Type,
		"operation", mod.Operation,
	)
}
