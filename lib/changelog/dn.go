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

package changelog

import (
	"github.com/go-ldap/ldap/v3"
	"github.com/gravitational/trace"
)

// DNValue returns the attribute value at position i of dn. A DN is a
// comma-separated list of attr=value components, most specific first:
// for "uuid=abc, ou=users, o=smartdc", position 0 yields "abc".
func DNValue(dn string, i int) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", trace.BadParameter("invalid dn %q: %v", dn, err)
	}
	if i < 0 || i >= len(parsed.RDNs) {
		return "", trace.BadParameter("dn %q has no component %d", dn, i)
	}
	rdn := parsed.RDNs[i]
	if len(rdn.Attributes) == 0 {
		return "", trace.BadParameter("dn %q has an empty component %d", dn, i)
	}
	return rdn.Attributes[0].Value, nil
}
