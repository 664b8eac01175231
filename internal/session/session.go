// Package session holds the session record, the store contract and the
// manager that flow code talks to.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind categorises a session and decides which flow owns it.
type Kind string

const (
	KindLogin         Kind = "login"
	KindAuthAttempts  Kind = "auth_attempts"
	KindAuthenticated Kind = "authenticated"
	KindAddWallet     Kind = "add_wallet"
	KindTransfer      Kind = "transfer"
	KindRemoveWallet  Kind = "remove_wallet"
)

// BookkeepingKinds are authentication records that never count as an
// in-progress user flow.
var BookkeepingKinds = []Kind{KindAuthenticated, KindAuthAttempts}

// IsBookkeeping reports whether k is one of BookkeepingKinds.
func (k Kind) IsBookkeeping() bool {
	for _, b := range BookkeepingKinds {
		if k == b {
			return true
		}
	}
	return false
}

// Session is one persisted conversation record.
type Session struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	Kind      Kind      `json:"kind"`
	State     string    `json:"state"`
	Data      Data      `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ActiveAt reports whether the session is still visible at now.
func (s *Session) ActiveAt(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Data = s.Data.Clone()
	return &c
}

// Data is the open, JSON-backed payload of a session. Owners of a kind
// decode it into their own typed payload with Decode and build merge
// patches with Encode.
type Data map[string]json.RawMessage

// Encode turns a struct (or map) into a Data patch. Fields dropped by
// omitempty are absent from the patch, so merging it leaves them untouched.
func Encode(v any) (Data, error) {
	if v == nil {
		return Data{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode session data: %w", err)
	}
	d := Data{}
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("session data must be a JSON object: %w", err)
	}
	return d, nil
}

// MustEncode is Encode for payloads that are known to marshal.
func MustEncode(v any) Data {
	d, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Decode unmarshals the payload into v.
func (d Data) Decode(v any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode session data: %w", err)
	}
	return nil
}

// Merge returns a new Data holding d overlaid with patch. Top-level keys in
// patch replace those in d; every other key survives.
func (d Data) Merge(patch Data) Data {
	out := make(Data, len(d)+len(patch))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Update describes a merge-update. A nil State leaves the label unchanged.
type Update struct {
	State *string
	Data  Data
}

// StateUpdate is shorthand for an Update that only moves the state label.
func StateUpdate(state string) Update {
	return Update{State: &state}
}
