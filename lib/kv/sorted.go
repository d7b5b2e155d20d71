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
	"slices"

	"github.com/gravitational/trace"
)

// AddToSortedSet inserts element into the sorted array blob[field] at
// key, keeping the array sorted and duplicate-free. The blob defaults
// to an empty record and the field to an empty array. Inserting an
// element that is already present is a no-op.
func AddToSortedSet[T any](ctx context.Context, b *Batch, key, field string, element T, cmp func(T, T) int) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	var set []T
	if _, err := blob.Decode(field, &set); err != nil {
		return trace.Wrap(err)
	}
	i, found := slices.BinarySearchFunc(set, element, cmp)
	if found {
		return nil
	}
	set = slices.Insert(set, i, element)
	if err := blob.Encode(field, set); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// DelFromSortedSet removes element from the sorted array blob[field]
// at key. Removing an absent element is a no-op.
func DelFromSortedSet[T any](ctx context.Context, b *Batch, key, field string, element T, cmp func(T, T) int) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	var set []T
	if _, err := blob.Decode(field, &set); err != nil {
		return trace.Wrap(err)
	}
	i, found := slices.BinarySearchFunc(set, element, cmp)
	if !found {
		return nil
	}
	set = slices.Delete(set, i, i+1)
	if err := blob.Encode(field, set); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// SetUnion merges elements into the sorted array blob[field] at key
// with a classic sorted merge, deduplicating by cmp.
func SetUnion[T any](ctx context.Context, b *Batch, key, field string, elements []T, cmp func(T, T) int) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	var set []T
	if _, err := blob.Decode(field, &set); err != nil {
		return trace.Wrap(err)
	}
	set = mergeUnion(set, sortedCopy(elements, cmp), cmp)
	if err := blob.Encode(field, set); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

// SetDifference removes elements from the sorted array blob[field] at
// key; the result keeps the existing elements that do not appear in
// elements.
func SetDifference[T any](ctx context.Context, b *Batch, key, field string, elements []T, cmp func(T, T) int) error {
	blob, err := GetBlob(ctx, b, key)
	if err != nil {
		return trace.Wrap(err)
	}
	var set []T
	if _, err := blob.Decode(field, &set); err != nil {
		return trace.Wrap(err)
	}
	set = mergeDifference(set, sortedCopy(elements, cmp), cmp)
	if err := blob.Encode(field, set); err != nil {
		return trace.Wrap(err)
	}
	return trace.Wrap(PutBlob(b, key, blob))
}

func sortedCopy[T any](elements []T, cmp func(T, T) int) []T {
	sorted := slices.Clone(elements)
	slices.SortFunc(sorted, cmp)
	return slices.CompactFunc(sorted, func(a, b T) bool { return cmp(a, b) == 0 })
}

func mergeUnion[T any](a, b []T, cmp func(T, T) int) []T {
	out := make([]T, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := cmp(a[i], b[j]); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

func mergeDifference[T any](a, b []T, cmp func(T, T) int) []T {
	out := make([]T, 0, len(a))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch c := cmp(a[i], b[j]); {
		case c < 0:
			out = append(out, a[i])
			i++
		case c > 0:
			j++
		default:
			i++
		}
	}
	return append(out, a[i:]...)
}
