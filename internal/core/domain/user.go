package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Role is a permission label attached to a user by the certification backend.
type Role string

const (
	RoleEmpty      Role = "EMPTY" // guest, no real permissions
	RoleExpert     Role = "EXPERT"
	RoleDirector   Role = "DIRECTOR"
	RoleAccountant Role = "ACCOUNTANT"
	RoleRegistrar  Role = "REGISTRAR"
)

// KnownRoles lists the fixed role domain in display order.
var KnownRoles = []Role{RoleEmpty, RoleExpert, RoleDirector, RoleAccountant, RoleRegistrar}

// Valid reports whether r belongs to the fixed role domain.
func (r Role) Valid() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// RoleSet is the set of role tags held by a user. The backend sends either bare
// strings or objects carrying a "name" field; both decode into Role values and
// duplicates are collapsed. Names are kept verbatim: "director" is not DIRECTOR.
type RoleSet []Role

// Contains reports whether the set holds r.
func (rs RoleSet) Contains(r Role) bool {
	for _, have := range rs {
		if have == r {
			return true
		}
	}
	return false
}

func (rs *RoleSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*rs = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("roles: %w", err)
	}

	out := make(RoleSet, 0, len(raw))
	for i, item := range raw {
		r, err := decodeRole(item)
		if err != nil {
			return fmt.Errorf("roles[%d]: %w", i, err)
		}
		if r == "" || out.Contains(r) {
			continue
		}
		out = append(out, r)
	}
	*rs = out
	return nil
}

func decodeRole(item json.RawMessage) (Role, error) {
	var name string
	if err := json.Unmarshal(item, &name); err == nil {
		return Role(name), nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(item, &obj); err != nil {
		return "", fmt.Errorf("expected string or {name} object: %w", err)
	}
	return Role(obj.Name), nil
}

// User is the authenticated principal as returned by GET /users/profile.
type User struct {
	ID         int64   `json:"id"`
	SecondName string  `json:"secondName"`
	FirstName  string  `json:"firstName"`
	Patronymic string  `json:"patronymic,omitempty"`
	Email      string  `json:"email"`
	Roles      RoleSet `json:"roles"`
}

// FullName joins family name, given name and patronymic, skipping blanks.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.SecondName, u.FirstName, u.Patronymic} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
