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

// userRecord is the projection of a sub-user. Role memberships, keys
// and access keys are filled in by the role, key and access-key
// transforms.
type userRecord struct {
	Type    string `json:"type"`
	UUID    string `json:"uuid"`
	Account string `json:"account"`
	Login   string `json:"login"`
}

func (s *Service) addUser(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	login, err := e.Changes.First("login")
	if err != nil {
		return trace.Wrap(err)
	}
	data, err := json.Marshal(userRecord{
		Type:    "user",
		UUID:    uuid,
		Account: account,
		Login:   login,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(uuidKey(uuid), data)
	b.Set(userKey(account, login), []byte(uuid))
	b.SAdd(setUsersKey(account), uuid)
	return nil
}

func (s *Service) modifyUser(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.UUID()
	if err != nil {
		return trace.Wrap(err)
	}
	for _, mod := range e.Modifications {
		if mod.Type != "login" {
			s.Log.WarnContext(ctx, "Skipping unhandled sub-user modification",
				"changenumber", e.ChangeNumber,
				"attribute", mod.Type,
				"operation", mod.Operation,
			)
			continue
		}
		if len(mod.Values) == 0 {
			return trace.BadParameter("changelog entry %d: login modification carries no value", e.ChangeNumber)
		}
		if err := s.renameUser(ctx, b, uuid, mod.Values[0]); err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}

// renameUser moves /user/{account}/{old} to /user/{account}/{new} and
// updates the login on the sub-user record, all in the same batch. When
// the sub-user record is missing the rename is skipped with a warning.
func (s *Service) renameUser(ctx context.Context, b *kv.Batch, uuid, newLogin string) error {
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
	account := blob.GetString("account")
	if oldLogin := blob.GetString("login"); oldLogin != "" {
		b.Del(userKey(account, oldLogin))
	}
	b.Set(userKey(account, newLogin), []byte(uuid))
	return trace.Wrap(kv.SetValue(ctx, b, uuidKey(uuid), "login", newLogin))
}

func (s *Service) deleteUser(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
	uuid, err := e.Changes.First("uuid")
	if err != nil {
		return trace.Wrap(err)
	}
	account, err := e.Changes.First("account")
	if err != nil {
		return trace.Wrap(err)
	}
	login, err := e.Changes.First("login")
	if err != nil {
		return trace.Wrap(err)
	}
	b.Del(uuidKey(uuid))
	b.Del(userKey(account, login))
	b.SRem(setUsersKey(account), uuid)
	return nil
}
