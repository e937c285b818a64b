// Package credstore persists the session credential pair (bearer token and
// cached user record) across process restarts. The two entries keep the
// names of the original cookie pair (auth_token, user_data) and are always
// written and cleared together: a store never holds one without the other.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/exonvc/invest/internal/identity"
)

const (
	tokenEntry    = "auth_token"
	userEntry     = "user_data"
	deviceIDEntry = "device_id"
	sealSaltEntry = "seal_salt"
)

// Credentials is the persisted session pair.
type Credentials struct {
	Token string
	User  identity.User
}

// Empty reports whether the pair is unusable for an authenticated session.
func (c Credentials) Empty() bool {
	return c.Token == "" || c.User.Empty()
}

// Store is the durable credential store. Save and Clear act on the token and
// user entries as one atomic unit. DeviceID returns a stable per-install
// identifier, minted on first use; it survives Clear.
type Store interface {
	Load(ctx context.Context) (Credentials, bool, error)
	Save(ctx context.Context, creds Credentials) error
	Clear(ctx context.Context) error
	DeviceID(ctx context.Context) (string, error)
}

var errIncompletePair = errors.New("credstore: incomplete credential pair")

// encodePair serializes the two entries. Rejects incomplete pairs so a store
// can never be asked to persist a half-session.
func encodePair(creds Credentials) (token, user []byte, err error) {
	if creds.Empty() {
		return nil, nil, errIncompletePair
	}
	userJSON, err := json.Marshal(creds.User)
	if err != nil {
		return nil, nil, fmt.Errorf("encode user: %w", err)
	}
	return []byte(creds.Token), userJSON, nil
}

// decodePair rebuilds Credentials from the raw entries. A missing or
// undecodable half means the pair is treated as absent, not partially valid.
func decodePair(token, user []byte) (Credentials, bool) {
	if len(token) == 0 || len(user) == 0 {
		return Credentials{}, false
	}
	var u identity.User
	if err := json.Unmarshal(user, &u); err != nil || u.Empty() {
		return Credentials{}, false
	}
	return Credentials{Token: string(token), User: u}, true
}
