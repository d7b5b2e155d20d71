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

// Package changelog models directory changelog entries: one atomic
// change produced by the user directory, ordered by a monotonic
// changenumber.
package changelog

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gravitational/trace"
)

const (
	// ChangeTypeAdd is a new directory entry.
	ChangeTypeAdd = "add"
	// ChangeTypeModify mutates attributes of an existing entry.
	ChangeTypeModify = "modify"
	// ChangeTypeDelete removes a directory entry.
	ChangeTypeDelete = "delete"
)

const (
	// OperationAdd adds values to an attribute.
	OperationAdd = "add"
	// OperationDelete removes values from an attribute.
	OperationDelete = "delete"
	// OperationReplace replaces an attribute's values wholesale.
	OperationReplace = "replace"
)

// StringList is a JSON list of strings that also accepts a bare
// string, the way the directory serializes single-valued attributes.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*l = StringList(values)
	return nil
}

// Attributes maps a directory attribute to its values.
type Attributes map[string]StringList

// First returns the first value of the named attribute, or an error
// when the attribute is missing or empty. Transforms use it for the
// attributes their object class requires.
func (a Attributes) First(name string) (string, error) {
	values := a[name]
	if len(values) == 0 {
		return "", trace.BadParameter("missing required attribute %q", name)
	}
	return values[0], nil
}

// Get returns the first value of the named attribute and whether the
// attribute is present.
func (a Attributes) Get(name string) (string, bool) {
	values := a[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Values returns all values of the named attribute.
func (a Attributes) Values(name string) []string {
	return a[name]
}

// Has reports whether the named attribute is present.
func (a Attributes) Has(name string) bool {
	return len(a[name]) > 0
}

// Modification is one mutation carried by a modify entry.
type Modification struct {
	// Operation is one of add, delete, replace.
	Operation string
	// Type is the attribute being modified.
	Type string
	// Values are the attribute values the operation applies.
	Values []string
}

// UnmarshalJSON implements json.Unmarshaler for the directory's wire
// shape {"operation": ..., "modification": {"type": ..., "vals": ...}}.
func (m *Modification) UnmarshalJSON(data []byte) error {
	var wire struct {
		Operation    string `json:"operation"`
		Modification struct {
			Type string     `json:"type"`
			Vals StringList `json:"vals"`
		} `json:"modification"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Operation = wire.Operation
	m.Type = wire.Modification.Type
	m.Values = wire.Modification.Vals
	return nil
}

// Entry is one changelog record.
type Entry struct {
	// ChangeNumber orders the entry in the changelog.
	ChangeNumber uint64
	// ChangeType is add, modify or delete.
	ChangeType string
	// TargetDN is the DN of the changed directory entry.
	TargetDN string
	// Changes holds the attribute map of add and delete entries.
	Changes Attributes
	// Modifications holds the ordered mutation list of modify entries.
	Modifications []Modification
	// Image holds the post-modification attribute map carried by
	// modify entries.
	Image Attributes
}

// Attributes returns the attribute map describing the entry's target:
// the changes of an add or delete entry, the post-image of a modify.
func (e *Entry) Attributes() Attributes {
	if e.ChangeType == ChangeTypeModify {
		return e.Image
	}
	return e.Changes
}

// ObjectClasses returns the target's object classes in lower case.
func (e *Entry) ObjectClasses() []string {
	classes := e.Attributes().Values("objectclass")
	out := make([]string, 0, len(classes))
	for _, class := range classes {
		out = append(out, strings.ToLower(class))
	}
	return out
}

// UUID returns the uuid of the entry's target: the uuid attribute when
// present, otherwise the value at position 0 of the target DN.
func (e *Entry) UUID() (string, error) {
	if uuid, ok := e.Attributes().Get("uuid"); ok {
		return uuid, nil
	}
	uuid, err := DNValue(e.TargetDN, 0)
	return uuid, trace.Wrap(err)
}

// Raw is the wire form of a changelog entry as read from the
// directory.
type Raw struct {
	// ChangeNumber is the decimal changenumber attribute.
	ChangeNumber string
	// ChangeType is the changetype attribute.
	ChangeType string
	// TargetDN is the targetdn attribute.
	TargetDN string
	// Changes is the JSON text of the changes attribute: an attribute
	// map for add and delete entries, a modification list for modify
	// entries.
	Changes []byte
	// Entry is the JSON text of the post-image, present on modify
	// entries.
	Entry []byte
}

// Decode parses a raw changelog entry. Malformed entries and unknown
// changetypes are trace.BadParameter errors; the replicator halts on
// them rather than skipping silently.
func Decode(raw Raw) (*Entry, error) {
	number, err := strconv.ParseUint(raw.ChangeNumber, 10, 64)
	if err != nil {
		return nil, trace.BadParameter("invalid changenumber %q: %v", raw.ChangeNumber, err)
	}
	entry := &Entry{
		ChangeNumber: number,
		ChangeType:   raw.ChangeType,
		TargetDN:     raw.TargetDN,
	}
	switch raw.ChangeType {
	case ChangeTypeAdd, ChangeTypeDelete:
		if err := json.Unmarshal(raw.Changes, &entry.Changes); err != nil {
			return nil, trace.BadParameter("changelog entry %d: invalid changes: %v", number, err)
		}
	case ChangeTypeModify:
		if err := json.Unmarshal(raw.Changes, &entry.Modifications); err != nil {
			return nil, trace.BadParameter("changelog entry %d: invalid modification list: %v", number, err)
		}
		if len(raw.Entry) > 0 {
			if err := json.Unmarshal(raw.Entry, &entry.Image); err != nil {
				return nil, trace.BadParameter("changelog entry %d: invalid post-image: %v", number, err)
			}
		}
	default:
		return nil, trace.BadParameter("changelog entry %d: unsupported changetype %q", number, raw.ChangeType)
	}
	return entry, nil
}
