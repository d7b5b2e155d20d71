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

	"github.com/gravitational/trace"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
)

// accountRecord is the projection of a top-level account. The groups
// field starts as an empty array; the legacy operator-group transform
// later rewrites it into a {name: true} map, and downstream operator
// checks consume that map shape.
type accountRecord struct {
	Type                    string   `json:"type"`
	UUID                    string   `json:"uuid"`
	Login                   string   `json:"login"`
	Groups                  []string `json:"groups"`
	ApprovedForProvisioning bool     `json:"approved_for_provisioning"`
	TritonCNSEnabled        bool     `json:"triton_cns_enabled"`
}

func (s *Service) addAccount(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	login, err := e.Changes.First("login")
	if err != nil {
		return trace.Wrap(err)
	}
	record := accountRecord{
		Type:                    "account",
		UUID:                    uuid,
		Login:                   login,
		Groups:                  []string{},
		ApprovedForProvisioning: boolAttr(e.Changes, "approved_for_provisioning"),
		TritonCNSEnabled:        boolAttr(e.Changes, "triton_cns_enabled"),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(uuidKey(uuid), data)
	b.Set(accountKey(login), []byte(uuid))
	b.SAdd(setAccountsKey, uuid)
	return nil
}

func (s *Service) modifyAccount(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.UUID()
	if err != nil {
		return trace.Wrap(err)
	}
	for _, mod := range e.Modifications {
		switch mod.Type {
		case "approved_for_provisioning", "triton_cns_enabled":
			// A deleted boolean attribute reads as false.
			value := false
			if mod.Operation != changelog.OperationDelete && len(mod.Values) > 0 {
				value = mod.Values[0] == "true"
			}
			if err := kv.SetValue(ctx, b, uuidKey(uuid), mod.Type, value); err != nil {
				return trace.Wrap(err)
			}
		case "login":
			if len(mod.Values) == 0 {
				return trace.BadParameter("changelog entry %d: login modification carries no value", e.ChangeNumber)
			}
			if err := s.renameAccount(ctx, b, uuid, mod.Values[0]); err != nil {
				return trace.Wrap(err)
			}
		default:
			s.Log.WarnContext(ctx, "Skipping unhandled account modification",
				"changenumber", e.ChangeNumber,
				"attribute", mod.Type,
				"operation", mod.Operation,
			)
		}
	}
	return nil
}

// renameAccount moves /account/{old} to /account/{new} and updates the
// login on the account record, all in the same batch. When the account
// record is missing the rename is skipped with a warning.
func (s *Service) renameAccount(ctx context.Context, b *kv.Batch, uuid, newLogin string) error {
	blob, err := kv.GetBlob(ctx, b, uuidKey(uuid))
	if err != nil {
		return trace.Wrap(err)
	}
	if len(blob) == 0 {
		s.Log.WarnContext(ctx, "Rename target does not exist, skipping",
			"uuid", uuid,
			"new_login", newLogin,
		)
		return nil
	}
	if oldLogin := blob.GetString("login"); oldLogin != "" {
		b.Del(accountKey(oldLogin))
	}
	b.Set(accountKey(newLogin), []byte(uuid))
	return trace.Wrap(kv.SetValue(ctx, b, uuidKey(uuid), "login", newLogin))
}

func (s *Service) deleteAccount(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	login, err := e.Changes.First("login")
	if err != nil {
		return trace.Wrap(err)
	}
	b.Del(uuidKey(uuid))
	b.Del(accountKey(login))
	b.SRem(setAccountsKey, uuid)
	// The account-scoped sets go with the account. The individual
	// sub-user, role and policy records are deleted by their own
	// changelog entries upstream.
	b.Del(setUsersKey(uuid))
	b.Del(setPoliciesKey(uuid))
	b.Del(setRolesKey(uuid))
	return nil
}
