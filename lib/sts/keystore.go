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

package sts

import (
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	mahi "github.com/TritonDataCenter/mahi-sub003"
	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
	logutils "github.com/TritonDataCenter/mahi-sub003/lib/utils/log"
)

var log = logutils.NewPackageLogger(mahi.ComponentKey, mahi.ComponentSTS)

// SigningKey is one HMAC signing secret. Exactly one key in a store is
// primary; the primary signs new tokens, while every key in the store
// still verifies tokens it signed earlier.
type SigningKey struct {
	// KeyID names the key in token payloads.
	KeyID string
	// Key is the HMAC secret.
	Key []byte
	// IsPrimary marks the key used for issuance.
	IsPrimary bool
	// AddedAt is when the key entered the store; the grace period
	// counts from it.
	AddedAt time.Time
}

// KeyStoreConfig configures a KeyStore.
type KeyStoreConfig struct {
	// KeyID and Key seed the store's initial primary key. Required.
	KeyID string
	Key   []byte
	// GracePeriod is for how long a superseded key keeps verifying
	// tokens after a rotation.
	GracePeriod time.Duration
	// Clock is used to stamp and expire keys.
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks and sets default values.
func (c *KeyStoreConfig) CheckAndSetDefaults() error {
	if c.KeyID == "" {
		return trace.BadParameter("missing parameter KeyID")
	}
	if len(c.Key) == 0 {
		return trace.BadParameter("missing parameter Key")
	}
	if c.GracePeriod == 0 {
		c.GracePeriod = defaults.TokenKeyGracePeriod
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// KeyStore holds the signing keys of the token service across
// rotations. Safe for concurrent use.
type KeyStore struct {
	clock       clockwork.Clock
	gracePeriod time.Duration

	mu      sync.RWMutex
	keys    map[string]SigningKey
	primary string
}

// NewKeyStore returns a store seeded with one primary key.
func NewKeyStore(cfg KeyStoreConfig) (*KeyStore, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	s := &KeyStore{
		clock:       cfg.Clock,
		gracePeriod: cfg.GracePeriod,
		keys:        make(map[string]SigningKey),
		primary:     cfg.KeyID,
	}
	s.keys[cfg.KeyID] = SigningKey{
		KeyID:     cfg.KeyID,
		Key:       cfg.Key,
		IsPrimary: true,
		AddedAt:   s.clock.Now(),
	}
	return s, nil
}

// Primary returns the key that signs new tokens.
func (s *KeyStore) Primary() SigningKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[s.primary]
}

// Lookup resolves a key by id. Verification fails for ids no longer in
// the store: their tokens outlived the grace period.
func (s *KeyStore) Lookup(keyID string) (SigningKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[keyID]
	return key, ok
}

// Rotate installs a new primary key. The previous primary stays in the
// store and keeps verifying tokens until it ages out of the grace
// period.
func (s *KeyStore) Rotate(keyID string, key []byte) error {
	if keyID == "" || len(key) == 0 {
		return trace.BadParameter("missing rotation key material")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[keyID]; ok {
		return trace.AlreadyExists("signing key %q already exists", keyID)
	}
	old := s.keys[s.primary]
	old.IsPrimary = false
	s.keys[old.KeyID] = old
	s.keys[keyID] = SigningKey{
		KeyID:     keyID,
		Key:       key,
		IsPrimary: true,
		AddedAt:   s.clock.Now(),
	}
	s.primary = keyID
	log.Info("Rotated signing key", "key_id", keyID, "superseded", old.KeyID)
	return nil
}

// Remove evicts a key. The primary cannot be removed.
func (s *KeyStore) Remove(keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keyID == s.primary {
		return trace.BadParameter("cannot remove the primary signing key %q", keyID)
	}
	if _, ok := s.keys[keyID]; !ok {
		return trace.NotFound("signing key %q is not found", keyID)
	}
	delete(s.keys, keyID)
	return nil
}

// RemoveExpired evicts non-primary keys older than the grace period
// and returns how many were removed. The rotation collaborator calls
// it periodically.
func (s *KeyStore) RemoveExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	cutoff := s.clock.Now().Add(-s.gracePeriod)
	for id, key := range s.keys {
		if id == s.primary {
			continue
		}
		if key.AddedAt.Before(cutoff) {
			delete(s.keys, id)
			removed++
			log.Info("Evicted expired signing key", "key_id", id)
		}
	}
	return removed
}
