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

// Package sts issues and verifies the signed session tokens handed out
// by the STS endpoint. Tokens are compact HS256 JWTs; verification
// tolerates signing-key rotation for as long as the superseded key
// remains in the key store.
package sts

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/TritonDataCenter/mahi-sub003/lib/defaults"
)

const (
	// TokenType is the required tokenType claim value.
	TokenType = "sts-session"
	// TokenVersion is the required tokenVersion claim value.
	TokenVersion = "1.1"
)

// Claims is the session token payload.
type Claims struct {
	// UUID is the account or sub-user the session acts as.
	UUID string `json:"uuid"`
	// RoleARN is the assumed role.
	RoleARN string `json:"roleArn"`
	// SessionName labels the session for audit purposes.
	SessionName string `json:"sessionName"`
	// TokenType is always "sts-session".
	TokenType string `json:"tokenType"`
	// TokenVersion is always "1.1".
	TokenVersion string `json:"tokenVersion"`
	// KeyID names the signing key so verification survives rotation.
	KeyID string `json:"keyId"`

	jwt.RegisteredClaims
}

// Config configures the token service.
type Config struct {
	// Keys holds the signing keys. Required.
	Keys *KeyStore
	// Issuer is stamped into and required of every token.
	Issuer string
	// Audience is stamped into and required of every token.
	Audience string
	// MaxTokenLength caps the raw token size accepted for
	// verification.
	MaxTokenLength int
	// Clock is used for issuance and expiry checks.
	Clock clockwork.Clock
}

// CheckAndSetDefaults checks and sets default values.
func (c *Config) CheckAndSetDefaults() error {
	if c.Keys == nil {
		return trace.BadParameter("missing parameter Keys")
	}
	if c.Issuer == "" {
		c.Issuer = defaults.TokenIssuer
	}
	if c.Audience == "" {
		c.Audience = defaults.TokenAudience
	}
	if c.MaxTokenLength == 0 {
		c.MaxTokenLength = defaults.MaxTokenLength
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Service issues and verifies session tokens.
type Service struct {
	Config
}

// New returns a token service.
func New(cfg Config) (*Service, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Service{Config: cfg}, nil
}

// GenerateParams are the inputs to Generate.
type GenerateParams struct {
	// UUID is the account or sub-user the session acts as. Required.
	UUID string
	// RoleARN is the assumed role. Required.
	RoleARN string
	// SessionName labels the session. Required.
	SessionName string
	// Expires is the token expiry. Required, must be in the future.
	Expires time.Time
}

// Generate issues a session token signed with the primary key.
func (s *Service) Generate(params GenerateParams) (string, error) {
	if params.UUID == "" {
		return "", trace.BadParameter("missing parameter UUID")
	}
	if params.RoleARN == "" {
		return "", trace.BadParameter("missing parameter RoleARN")
	}
	if params.SessionName == "" {
		return "", trace.BadParameter("missing parameter SessionName")
	}
	now := s.Clock.Now()
	if !params.Expires.After(now) {
		return "", trace.BadParameter("token expiry %v is not in the future", params.Expires)
	}
	primary := s.Keys.Primary()
	claims := Claims{
		UUID:         params.UUID,
		RoleARN:      params.RoleARN,
		SessionName:  params.SessionName,
		TokenType:    TokenType,
		TokenVersion: TokenVersion,
		KeyID:        primary.KeyID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.Issuer,
			Audience:  jwt.ClaimStrings{s.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(params.Expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(primary.Key)
	return token, trace.Wrap(err)
}

// Verify checks a session token and returns its claims. All failures
// are trace.AccessDenied; callers must not retry.
//
// The payload is inspected before the signature: version, type, issuer
// and audience mismatches are reported even for tokens whose signing
// key has already been evicted, so their errors stay stable across
// rotations.
func (s *Service) Verify(rawToken string) (*Claims, error) {
	if len(rawToken) > s.MaxTokenLength {
		return nil, trace.AccessDenied("Session token too large")
	}
	segments := strings.Split(rawToken, ".")
	if len(segments) != 3 {
		return nil, trace.AccessDenied("Invalid JWT format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(segments[1])
	if err != nil {
		return nil, trace.AccessDenied("Invalid JWT format")
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, trace.AccessDenied("invalid token payload: %v", err)
	}
	if claims.TokenVersion != TokenVersion {
		return nil, trace.AccessDenied("Unsupported token version")
	}
	if claims.TokenType != TokenType {
		return nil, trace.AccessDenied("Invalid token type")
	}
	if claims.Issuer != s.Issuer {
		return nil, trace.AccessDenied("Invalid issuer")
	}
	if !slices.Contains(claims.Audience, s.Audience) {
		return nil, trace.AccessDenied("Invalid audience")
	}
	key, ok := s.Keys.Lookup(claims.KeyID)
	if !ok {
		return nil, trace.AccessDenied("Unknown signing key")
	}

	var verified Claims
	_, err = jwt.ParseWithClaims(rawToken, &verified,
		func(*jwt.Token) (any, error) { return key.Key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.Clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, trace.AccessDenied("Session token is expired")
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, trace.AccessDenied("Session token not yet valid")
		default:
			return nil, trace.AccessDenied("Invalid token signature")
		}
	}
	return &verified, nil
}
