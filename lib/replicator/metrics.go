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

package replicator

import (
	"github.com/prometheus/client_golang/prometheus"

	mahi "github.com/TritonDataCenter/mahi-sub003"
)

var (
	entriesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mahi_replicator_entries_applied_total",
			Help: "Number of changelog entries applied to the projection, by changetype.",
		},
		[]string{"changetype"},
	)
	entriesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mahi_replicator_entries_skipped_total",
			Help: "Number of changelog entries skipped because their object class is not projected.",
		},
	)
	transformErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mahi_replicator_transform_errors_total",
			Help: "Number of changelog entries whose transform failed before commit.",
		},
	)
	commitLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mahi_replicator_commit_seconds",
			Help:    "Latency of batch commits against the KV store.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			ConstLabels: prometheus.Labels{
				mahi.ComponentKey: mahi.ComponentReplicator,
			},
		},
	)

	prometheusCollectors = []prometheus.Collector{
		entriesApplied, entriesSkipped, transformErrors, commitLatency,
	}
)
