package session

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/git2doc/internal/api"
	"github.com/Iron-Ham/git2doc/internal/errors"
)

// Identity is the authenticated user's profile as cached by the client.
// Usually exactly one of Email or Phone is set.
type Identity struct {
	ID       int64   `json:"id"`
	FullName string  `json:"fullName"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	IsAdmin  bool    `json:"isAdmin"`
}

// Contact returns the email if present, else the phone number.
func (i Identity) Contact() string {
	if i.Email != nil && *i.Email != "" {
		return *i.Email
	}
	if i.Phone != nil {
		return *i.Phone
	}
	return ""
}

// Equal reports whether two identities describe the same record.
func (i Identity) Equal(other Identity) bool {
	return i.ID == other.ID &&
		i.FullName == other.FullName &&
		i.IsAdmin == other.IsAdmin &&
		optionalEqual(i.Email, other.Email) &&
		optionalEqual(i.Phone, other.Phone)
}

func (i Identity) clone() *Identity {
	c := i
	if i.Email != nil {
		e := *i.Email
		c.Email = &e
	}
	if i.Phone != nil {
		p := *i.Phone
		c.Phone = &p
	}
	return &c
}

func optionalEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// identityFromUser copies u so the identity shares no pointers with the
// decoded response.
func identityFromUser(u api.User) Identity {
	ident := Identity{
		ID:       u.ID,
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		IsAdmin:  u.IsAdmin,
	}
	return *ident.clone()
}

func encodeIdentity(i Identity) ([]byte, error) {
	return json.Marshal(i)
}

func decodeIdentity(data []byte) (Identity, error) {
	var i Identity
	if err := json.Unmarshal(data, &i); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", errors.ErrSessionCorrupted, err)
	}
	if i.ID == 0 {
		return Identity{}, fmt.Errorf("%w: missing user id", errors.ErrSessionCorrupted)
	}
	return i, nil
}
