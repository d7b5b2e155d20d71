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

// Package replicator drives the projection: it pulls changelog entries
// from the directory in changenumber order, applies each through the
// transform service against a per-entry batch, commits the batch and
// advances the persisted cursor. One entry is fully applied before the
// next begins; external readers never observe partial state within an
// entry.
package replicator

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	"github.com/TritonDataCenter/mahi-sub003/lib/changelog"
	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
	"github.com/TritonDataCenter/mahi-sub003/lib/kv"
	"github.com/TritonDataCenter/mahi-sub003/lib/transform"
	"github.com/TritonDataCenter/mahi-sub003/lib/utils"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

var log = logutils.NewPackageLogger(mahi.ComponentKey, mahi.ComponentReplicator)

// CursorKey persists the changenumber of the last committed entry.
const CursorKey = "/changenumber"

// Source produces changelog entries in changenumber order.
type Source interface {
	// Fetch returns up to limit entries with changenumbers strictly
	// greater than after, ordered by changenumber. An empty result
	// means the replicator has caught up.
	Fetch(ctx context.Context, after uint64, limit int) ([]*changelog.Entry, error)
}

// Config holds the replicator configuration.
type Config struct {
	// Source supplies changelog entries. Required.
	Source Source
	// Store is the KV store holding the projection and the cursor.
	// Required.
	Store kv.Store
	// Transforms applies entries to batches. Required.
	Transforms *transform.Service
	// PollInterval is how long to sleep once caught up.
	PollInterval time.Duration
	// BatchSize caps entries fetched per poll.
	BatchSize int
	// Clock paces the poll loop.
	Clock clockwork.Clock
	// Log emits replication progress.
	Log *slog.Logger
}

// CheckAndSetDefaults checks and sets default values.
func (c *Config) CheckAndSetDefaults() error {
	if c.Source == nil {
		return trace.BadParameter("missing parameter Source")
	}
	if c.Store == nil {
		return trace.BadParameter("missing parameter Store")
	}
	if c.Transforms == nil {
		return trace.BadParameter("missing parameter Transforms")
	}
	if c.PollInterval == 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaults.PollBatchSize
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = log
	}
	return nil
}

// Replicator tails the changelog and keeps the projection current.
// Single logical writer: one Replicator per cursor, one goroutine
// calling Run.
type Replicator struct {
	Config
	cursor uint64
}

// New returns a replicator. Call Run to start it.
func New(cfg Config) (*Replicator, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := utils.RegisterPrometheusCollectors(prometheusCollectors...); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Replicator{Config: cfg}, nil
}

// Cursor returns the changenumber of the last committed entry.
func (r *Replicator) Cursor() uint64 {
	return r.cursor
}

// loadCursor reads the persisted cursor; a missing key starts the
// replicator from the beginning of the changelog.
func (r *Replicator) loadCursor(ctx context.Context) error {
	value, err := r.Store.Get(ctx, CursorKey)
	if err != nil {
		if trace.IsNotFound(err) {
			r.cursor = 0
			return nil
		}
		return trace.Wrap(err)
	}
	cursor, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return trace.BadParameter("corrupt cursor %q: %v", value, err)
	}
	r.cursor = cursor
	return nil
}

// applyEntry projects one entry and advances the cursor. The batch
// commit is atomic; the cursor write follows it, so a crash between
// the two replays the entry on restart. Transforms converge on replay,
// making that safe.
func (r *Replicator) applyEntry(ctx context.Context, e *changelog.Entry) error {
	if e.ChangeNumber <= r.cursor {
		return trace.BadParameter("changelog entry %d is behind cursor %d", e.ChangeNumber, r.cursor)
	}
	b := kv.NewBatch(r.Store)
	applied, err := r.Transforms.Apply(ctx, b, e)
	if err != nil {
		transformErrors.Inc()
		return trace.Wrap(err)
	}
	start := r.Clock.Now()
	if err := b.Commit(ctx); err != nil {
		return trace.Wrap(err)
	}
	commitLatency.Observe(r.Clock.Now().Sub(start).Seconds())
	if applied {
		entriesApplied.WithLabelValues(e.ChangeType).Inc()
	} else {
		entriesSkipped.Inc()
	}
	if err := r.Store.Put(ctx, CursorKey, []byte(strconv.FormatUint(e.ChangeNumber, 10))); err != nil {
		return trace.Wrap(err)
	}
	r.cursor = e.ChangeNumber
	return nil
}

// Sync applies changelog entries until the source reports none left,
// returning the number applied.
func (r *Replicator) Sync(ctx context.Context) (int, error) {
	total := 0
	for {
		entries, err := r.Source.Fetch(ctx, r.cursor, r.BatchSize)
		if err != nil {
			return total, trace.Wrap(err)
		}
		if len(entries) == 0 {
			return total, nil
		}
		for _, e := range entries {
			if err := r.applyEntry(ctx, e); err != nil {
				return total, trace.Wrap(err, "changelog entry %d", e.ChangeNumber)
			}
			total++
		}
	}
}

// Run loads the cursor and tails the changelog until the context is
// canceled. Any replication error stops the loop: the operator decides
// whether the entry is retryable.
func (r *Replicator) Run(ctx context.Context) error {
	if err := r.loadCursor(ctx); err != nil {
		return trace.Wrap(err)
	}
	r.Log.InfoContext(ctx, "Replication started", "cursor", r.cursor)
	for {
		applied, err := r.Sync(ctx)
		if err != nil {
			r.Log.ErrorContext(ctx, "Replication halted",
				"cursor", r.cursor,
				"error", err,
			)
			return trace.Wrap(err)
		}
		if applied > 0 {
			r.Log.DebugContext(ctx, "Applied changelog entries",
				"count", applied,
				"cursor", r.cursor,
			)
		}
		select {
		case <-ctx.Done():
			r.Log.InfoContext(ctx, "Replication stopped", "cursor", r.cursor)
			return nil
		case <-r.Clock.After(r.PollInterval):
		}
	}
}
