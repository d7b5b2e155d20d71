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
	"slices"
	"strings"

	"github.com/gravitational/trace"

	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
)

// Rule is one policy rule, persisted as the two-element tuple
// [raw, parsed]. The parsed form is opaque to the replicator and
// round-trips untouched; rules order and compare by raw text only.
type Rule struct {
	Raw    string
	Parsed any
}

// MarshalJSON implements json.Marshaler.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{r.Raw, r.Parsed})
}

// UnmarshalJSON implements json.Unmarshaler. The parsed form is kept
// as raw JSON so re-encoding preserves it byte for byte.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if err := json.Unmarshal(tuple[0], &r.Raw); err != nil {
		return err
	}
	r.Parsed = tuple[1]
	return nil
}

func compareRules(a, b Rule) int {
	return strings.Compare(a.Raw, b.Raw)
}

// policyRecord is the projection of an account policy.
type policyRecord struct {
	Type    string `json:"type"`
	UUID    string `json:"uuid"`
	Account string `json:"account"`
	Name    string `json:"name"`
	Rules   []Rule `json:"rules"`
}

// parseRules parses each rule text into its stored tuple form, sorted
// by raw text.
func (s *Service) parseRules(texts []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(texts))
	for _, text := range texts {
		parsed, err := s.Parser.Parse(text)
		if err != nil {
			return nil, trace.BadParameter("invalid policy rule %q: %v", text, err)
		}
		rules = append(rules, Rule{Raw: text, Parsed: parsed})
	}
	slices.SortFunc(rules, compareRules)
	return slices.CompactFunc(rules, func(a, b Rule) bool { return compareRules(a, b) == 0 }), nil
}

func (s *Service) addPolicy(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
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
	rules, err := s.parseRules(e.Changes.Values("rule"))
	if err != nil {
		return trace.Wrap(err)
	}
	data, err := json.Marshal(policyRecord{
		Type:    "policy",
		UUID:    uuid,
		Account: account,
		Name:    name,
		Rules:   rules,
	})
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(uuidV2Key(uuid), data)
	b.Set(policyKey(account, name), []byte(uuid))
	b.SAdd(setPoliciesKey(account), uuid)
	return trace.Wrap(s.updateRolePolicies(ctx, b, e.Changes.Values("memberrole"), uuid, changelog.OperationAdd))
}

func (s *Service) modifyPolicy(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
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
			if err := kv.Rename(ctx, b, uuidV2Key(uuid), mod.Values[0], "policy", uuid); err != nil {
				return trace.Wrap(err)
			}
		case "rule":
			rules, err := s.parseRules(mod.Values)
			if err != nil {
				return trace.Wrap(err)
			}
			switch mod.Operation {
			case changelog.OperationAdd:
				err = kv.SetUnion(ctx, b, uuidV2Key(uuid), "rules", rules, compareRules)
			case changelog.OperationDelete:
				err = kv.SetDifference(ctx, b, uuidV2Key(uuid), "rules", rules, compareRules)
			case changelog.OperationReplace:
				err = kv.SetValue(ctx, b, uuidV2Key(uuid), "rules", rules)
			default:
				s.warnModification(ctx, e, mod)
			}
			if err != nil {
				return trace.Wrap(err)
			}
		case "memberrole":
			if mod.Operation != changelog.OperationAdd && mod.Operation != changelog.OperationDelete {
				s.warnModification(ctx, e, mod)
				continue
			}
			if err := s.updateRolePolicies(ctx, b, mod.Values, uuid, mod.Operation); err != nil {
				return trace.Wrap(err)
			}
		default:
			s.warnModification(ctx, e, mod)
		}
	}
	return nil
}

func (s *Service) deletePolicy(ctx context.Context, b *kv.Batch, e *changelog.Entry) error {
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
	b.Del(policyKey(account, name))
	b.SRem(setPoliciesKey(account), uuid)
	return trace.Wrap(s.updateRolePolicies(ctx, b, e.Changes.Values("memberrole"), uuid, changelog.OperationDelete))
}

// updateRolePolicies adds or removes policy on the policies field of
// every role record referenced by the member DNs, keeping the
// role-to-policy relation in step with the policy side.
func (s *Service) updateRolePolicies(ctx context.Context, b *kv.Batch, memberDNs []string, policy, op string) error {
	roles, err := dnValues(memberDNs, 0)
	if err != nil {
		return trace.Wrap(err)
	}
	for _, role := range roles {
		switch op {
		case changelog.OperationAdd:
			err = kv.AddToSortedSet(ctx, b, uuidV2Key(role), "policies", policy, strings.Compare)
		case changelog.OperationDelete:
			err = kv.DelFromSortedSet(ctx, b, uuidV2Key(role), "policies", policy, strings.Compare)
		default:
			return trace.BadParameter("unsupported membership operation %q", op)
		}
		if err != nil {
			return trace.Wrap(err)
		}
	}
	return nil
}
