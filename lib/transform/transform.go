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

// Package transform projects directory changelog entries onto the
// key/value store: one transform per directory object class, each
// translating add/modify/delete entries into batched mutations of the
// denormalized records and their secondary indices.
package transform

import (
	"context"
	"log/slog"
	"slices"

	"github.com/gravitational/trace"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

var log = logutils.NewPackageLogger(mahi.ComponentKey, mahi.ComponentTransform)

// Directory object classes the service projects.
const (
	ClassPerson             = "sdcperson"
	ClassAccountUser        = "sdcaccountuser"
	ClassAccountRole        = "sdcaccountrole"
	ClassAccountPolicy      = "sdcaccountpolicy"
	ClassAccountGroup       = "sdcaccountgroup"
	ClassGroupOfUniqueNames = "groupofuniquenames"
	ClassKey                = "sdckey"
	ClassAccessKey          = "accesskey"
)

// classPrecedence orders recognized classes most specific first: a
// sub-user entry carries both sdcperson and sdcaccountuser, and the
// more specific class must win.
var classPrecedence = []string{
	ClassAccountUser,
	ClassAccountRole,
	ClassAccountPolicy,
	ClassAccountGroup,
	ClassPerson,
	ClassGroupOfUniqueNames,
	ClassKey,
	ClassAccessKey,
}

// RuleParser parses policy rule text into the representation the
// downstream policy engine evaluates.
type RuleParser interface {
	Parse(rule string) (any, error)
}

// PassthroughParser stores the raw rule text as its parsed form. The
// replicator only projects rules; the policy language is evaluated
// downstream.
type PassthroughParser struct{}

// Parse implements RuleParser.
func (PassthroughParser) Parse(rule string) (any, error) {
	return rule, nil
}

// Config holds the transform service configuration.
type Config struct {
	// Parser parses policy rules. Required.
	Parser RuleParser
	// Log emits transform warnings. Defaults to the package logger.
	Log *slog.Logger
}

// CheckAndSetDefaults checks and sets default values.
func (c *Config) CheckAndSetDefaults() error {
	if c.Parser == nil {
		return trace.BadParameter("missing parameter Parser")
	}
	if c.Log == nil {
		c.Log = log
	}
	return nil
}

// Service applies changelog entries to a per-entry batch.
type Service struct {
	Config
}

// NewService returns a transform service.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{Config: cfg}, nil
}

// operations binds the three change types of one object class.
type operations struct {
	add    func(context.Context, *kv.Batch, *changelog.Entry) error
	modify func(context.Context, *kv.Batch, *changelog.Entry) error
	del    func(context.Context, *kv.Batch, *changelog.Entry) error
}

func (s *Service) operations(class string) operations {
	switch class {
	case ClassPerson:
		return operations{s.addAccount, s.modifyAccount, s.deleteAccount}
	case ClassAccountUser:
		return operations{s.addUser, s.modifyUser, s.deleteUser}
	case ClassAccountRole:
		return operations{s.addRole, s.modifyRole, s.deleteRole}
	case ClassAccountPolicy:
		return operations{s.addPolicy, s.modifyPolicy, s.deletePolicy}
	case ClassAccountGroup:
		return operations{s.addGroup, s.modifyGroup, s.deleteGroup}
	case ClassGroupOfUniqueNames:
		return operations{s.addOperatorGroup, s.modifyOperatorGroup, s.deleteOperatorGroup}
	case ClassKey:
		return operations{s.addKey, s.modifyKey, s.deleteKey}
	case ClassAccessKey:
		return operations{s.addAccessKey, s.modifyAccessKey, s.deleteAccessKey}
	}
	return operations{}
}

// Apply projects one changelog entry onto the batch. It returns false
// when the entry's object class is not recognized and the entry was
// skipped; the batch is still valid and commits whatever other entries
// queued. An unknown changetype is an error: it means the replicator
// no longer understands the changelog and must not advance past the
// entry.
func (s *Service) Apply(ctx context.Context, b *kv.Batch, e *changelog.Entry) (bool, error) {
	class, ok := matchClass(e.ObjectClasses())
	if !ok {
		s.Log.WarnContext(ctx, "Skipping entry with unrecognized object class",
			"changenumber", e.ChangeNumber,
			"objectclass", e.ObjectClasses(),
			"targetdn", e.TargetDN,
		)
		return false, nil
	}
	ops := s.operations(class)
	var err error
	switch e.ChangeType {
	case changelog.ChangeTypeAdd:
		err = ops.add(ctx, b, e)
	case changelog.ChangeTypeModify:
		err = ops.modify(ctx, b, e)
	case changelog.ChangeTypeDelete:
		err = ops.del(ctx, b, e)
	default:
		return false, trace.BadParameter("changelog entry %d: unsupported changetype %q", e.ChangeNumber, e.ChangeType)
	}
	if err != nil {
		return false, trace.Wrap(err)
	}
	return true, nil
}

func matchClass(classes []string) (string, bool) {
	for _, candidate := range classPrecedence {
		if slices.Contains(classes, candidate) {
			return candidate, true
		}
	}
	return "", false
}

// boolAttr interprets the directory's boolean strings: "true" is true,
// anything else, including a missing attribute, is false.
func boolAttr(attrs changelog.Attributes, name string) bool {
	value, _ := attrs.Get(name)
	return value == "true"
}

// dnValues extracts the DN component at position i from each of the
// supplied DNs.
func dnValues(dns []string, i int) ([]string, error) {
	out := make([]string, 0, len(dns))
	for _, dn := range dns {
		value, err := changelog.DNValue(dn, i)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		out = append(out, value)
	}
	return out, nil
}
