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

package mahi

// Version is the semantic version of the mahi authentication cache.
const Version = "3.0.0"

const (
	// ComponentKey is a field that represents a component in structured logs.
	ComponentKey = "component"

	// ComponentReplicator is the changelog replication loop.
	ComponentReplicator = "replicator"

	// ComponentTransform is the changelog entry transformation layer.
	ComponentTransform = "transform"

	// ComponentKV is the key/value store client.
	ComponentKV = "kv"

	// ComponentUFDS is the LDAP directory changelog reader.
	ComponentUFDS = "ufds"

	// ComponentSTS is the session token verification service.
	ComponentSTS = "sts"

	// DebugOutputEnvVar tells tests to use verbose debug output.
	DebugOutputEnvVar = "MAHI_DEBUG_TESTS"
)
