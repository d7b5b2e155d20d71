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

import "github.com/TritonDataCenter/mahi-sub003/lib/kv"

// Key families of the projection. Accounts, sub-users, public keys and
// access keys live under /uuid; roles and policies live under /uuidv2.
// The namespaces are separate because the directory does not guarantee
// uuid uniqueness between sub-users and roles.

// uuidKey is the primary record key of the v1 namespace.
func uuidKey(uuid string) string { return kv.Key("uuid", uuid) }

// uuidV2Key is the primary record key of the role/policy namespace.
func uuidV2Key(uuid string) string { return kv.Key("uuidv2", uuid) }

// accountKey is the account login secondary index.
func accountKey(login string) string { return kv.Key("account", login) }

// userKey is the sub-user login secondary index within an account.
func userKey(account, login string) string { return kv.Key("user", account, login) }

// roleKey is the role name secondary index within an account.
func roleKey(account, name string) string { return kv.Key("role", account, name) }

// policyKey is the policy name secondary index within an account.
func policyKey(account, name string) string { return kv.Key("policy", account, name) }

// groupKey is the group name secondary index within an account.
func groupKey(account, name string) string { return kv.Key("group", account, name) }

// accessKeyKey is the access-key-id reverse index.
func accessKeyKey(id string) string { return kv.Key("accesskey", id) }

// setAccountsKey holds the native set of all top-level accounts.
const setAccountsKey = "/set/accounts"

// setUsersKey holds the native set of an account's sub-users.
func setUsersKey(account string) string { return kv.Key("set", "users", account) }

// setRolesKey holds the native set of an account's roles.
func setRolesKey(account string) string { return kv.Key("set", "roles", account) }

// setPoliciesKey holds the native set of an account's policies.
func setPoliciesKey(account string) string { return kv.Key("set", "policies", account) }

// setGroupsKey holds the native set of an account's groups.
func setGroupsKey(account string) string { return kv.Key("set", "groups", account) }
