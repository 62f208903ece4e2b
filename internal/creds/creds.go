// ABOUTME: Credential blob model for messaging platform sessions
// ABOUTME: Holds registration state and the key-type/key-id record map

package creds

import (
	"encoding/json"
	"fmt"
)

// Registration holds the account registration state reported by the
// platform. Extra carries platform-owned state that this layer never
// interprets; it must survive a save/load round trip verbatim.
type Registration struct {
	ID         string          `json:"id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Registered bool            `json:"registered"`
	Extra      json.RawMessage `json:"extra,omitempty"`
}

// Credentials is the durable credential blob for one session. Keys maps
// key-type -> key-id -> record; records are opaque JSON owned by the
// transport protocol.
type Credentials struct {
	Registration *Registration         `json:"registration,omitempty"`
	Keys         map[string]KeyRecords `json:"keys,omitempty"`
}

// KeyRecords maps key id to an opaque key record.
type KeyRecords map[string]json.RawMessage

// New returns an empty credential set, signalling a fresh registration.
func New() *Credentials {
	return &Credentials{
		Keys: make(map[string]KeyRecords),
	}
}

// Registered reports whether the blob shows a completed registration.
func (c *Credentials) Registered() bool {
	return c != nil && c.Registration != nil && c.Registration.Registered
}

// Identity returns the authenticated platform identity, or empty strings
// if the session is not registered.
func (c *Credentials) Identity() (id, name string) {
	if c == nil || c.Registration == nil {
		return "", ""
	}
	return c.Registration.ID, c.Registration.Name
}

// Clone returns a deep copy. Mutating the copy never affects the original.
func (c *Credentials) Clone() *Credentials {
	out := New()
	if c == nil {
		return out
	}
	if c.Registration != nil {
		reg := *c.Registration
		if c.Registration.Extra != nil {
			reg.Extra = append(json.RawMessage(nil), c.Registration.Extra...)
		}
		out.Registration = &reg
	}
	for keyType, records := range c.Keys {
		copied := make(KeyRecords, len(records))
		for id, rec := range records {
			copied[id] = append(json.RawMessage(nil), rec...)
		}
		out.Keys[keyType] = copied
	}
	return out
}

// MergeKeys merges new and updated key records into the credential set.
// Existing records for other ids are untouched. A nil record value deletes
// the stored record for that id.
func (c *Credentials) MergeKeys(records map[string]KeyRecords) {
	if c.Keys == nil {
		c.Keys = make(map[string]KeyRecords)
	}
	for keyType, updates := range records {
		existing, ok := c.Keys[keyType]
		if !ok {
			existing = make(KeyRecords, len(updates))
			c.Keys[keyType] = existing
		}
		for id, rec := range updates {
			if rec == nil {
				delete(existing, id)
				continue
			}
			existing[id] = append(json.RawMessage(nil), rec...)
		}
	}
}

// Encode serializes the credential set to JSON.
func (c *Credentials) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding credentials: %w", err)
	}
	return data, nil
}

// Decode parses a credential blob. A blob that does not deserialize is an
// error; the store never commits one, so this only fires on external
// corruption.
func Decode(data []byte) (*Credentials, error) {
	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	if c.Keys == nil {
		c.Keys = make(map[string]KeyRecords)
	}
	return &c, nil
}
