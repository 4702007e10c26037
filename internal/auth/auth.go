// Package auth provides API-key authentication for the HTTP API.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrInvalidKey = errors.New("invalid API key")

// Identity is the authenticated caller derived from a backend API key.
// Each key owns an isolated chat service instance.
type Identity struct {
	Key   string
	Label string
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Validator checks a presented API key and resolves it to an identity.
type Validator interface {
	Validate(key string) (Identity, error)
}

// StaticValidator validates keys against a fixed set loaded at startup.
type StaticValidator struct {
	identities []Identity
}

// NewStaticValidator parses a comma-separated "key" or "key:label" spec,
// as carried by the BACKEND_API_KEYS environment variable.
func NewStaticValidator(spec string) (*StaticValidator, error) {
	var identities []Identity
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, label, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty API key in spec entry %q", entry)
		}
		if !found || strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("key-%d", len(identities)+1)
		} else {
			label = strings.TrimSpace(label)
		}
		identities = append(identities, Identity{Key: key, Label: label})
	}
	return &StaticValidator{identities: identities}, nil
}

// Enabled reports whether any keys are configured. With no keys the API
// runs open, for local development.
func (v *StaticValidator) Enabled() bool {
	return len(v.identities) > 0
}

func (v *StaticValidator) Validate(key string) (Identity, error) {
	for _, id := range v.identities {
		if subtle.ConstantTimeCompare([]byte(id.Key), []byte(key)) == 1 {
			return id, nil
		}
	}
	return Identity{}, ErrInvalidKey
}

// ExtractKey pulls the API key from the X-API-Key header or a Bearer
// Authorization header. WebSocket clients that cannot set headers may
// pass it as the api_key query parameter instead.
func ExtractKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("api_key")
}
