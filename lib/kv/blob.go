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

package kv

import (
	"context"
	"encoding/json"

	"github.com/gravitational/trace"
)

// Blob is a JSON record persisted at a primary key. Fields a transform
// does not touch round-trip verbatim.
type Blob map[string]json.RawMessage

// GetBlob reads and decodes the blob at key through the batch,
// returning an empty blob when the key does not exist.
func GetBlob(ctx context.Context, b *Batch, key string) (Blob, error) {
	data, err := b.Get(ctx, key)
	if err != nil {
		if trace.IsNotFound(err) {
			return Blob{}, nil
		}
		return nil, trace.Wrap(err)
	}
	return decodeBlob(key, data)
}

// PutBlob encodes blob and queues the write at key.
func PutBlob(b *Batch, key string, blob Blob) error {
	data, err := json.Marshal(blob)
	if err != nil {
		return trace.Wrap(err)
	}
	b.Set(key, data)
	return nil
}

func decodeBlob(key string, data []byte) (Blob, error) {
	var blob Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, trace.BadParameter("corrupt record at %q: %v", key, err)
	}
	return blob, nil
}

// Decode unmarshals the named field into out and reports whether the
// field was present. A JSON null field reads as absent.
func (b Blob) Decode(field string, out any) (bool, error) {
	raw, ok := b[field]
	if !ok || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, trace.BadParameter("field %q: %v", field, err)
	}
	return true, nil
}

// Encode marshals v into the named field.
func (b Blob) Encode(field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return trace.Wrap(err)
	}
	b[field] = data
	return nil
}

// GetString returns the named field as a string, or "" when the field
// is absent or not a string.
func (b Blob) GetString(field string) string {
	var s string
	if _, err := b.Decode(field, &s); err != nil {
		return ""
	}
	return s
}
