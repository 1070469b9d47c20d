package devauth

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

var ErrBadCredentials = errors.New("incorrect username or password")

var validRoles = map[string]struct{}{
	"admin":       {},
	"team_leader": {},
	"employee":    {},
}

// User is one entry of the [[users]] list.
type User struct {
	ID           int64  `toml:"id"`
	Username     string `toml:"username"`
	Role         string `toml:"role"`
	PasswordHash string `toml:"password_hash"`
}

type usersFile struct {
	Users []User `toml:"users"`
}

// Directory looks users up by name. It is read-only after construction.
type Directory struct {
	byName map[string]User

	dummyOnce sync.Once
	dummy     string
}

// LoadUsers reads a TOML file of the form
//
//	[[users]]
//	id = 1
//	username = "alice"
//	role = "admin"
//	password_hash = "$argon2id$..."
func LoadUsers(path string) (*Directory, error) {
	var f usersFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("users file has unknown keys: %v", undecoded)
	}
	return NewDirectory(f.Users)
}

func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{byName: make(map[string]User, len(users))}
	ids := make(map[int64]struct{}, len(users))

	for i, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, fmt.Errorf("user %d: username is empty", i)
		}
		if _, ok := validRoles[u.Role]; !ok {
			return nil, fmt.Errorf("user %q: unknown role %q", u.Username, u.Role)
		}
		if _, err := parsePHC(u.PasswordHash); err != nil {
			return nil, fmt.Errorf("user %q: %w", u.Username, err)
		}
		if _, dup := d.byName[u.Username]; dup {
			return nil, fmt.Errorf("user %q: duplicate username", u.Username)
		}
		if _, dup := ids[u.ID]; dup {
			return nil, fmt.Errorf("user %q: duplicate id %d", u.Username, u.ID)
		}
		ids[u.ID] = struct{}{}
		d.byName[u.Username] = u
	}
	return d, nil
}

func (d *Directory) Len() int {
	return len(d.byName)
}

// Authenticate returns the user when password matches. Unknown users are
// verified against a throwaway hash so both failure paths cost the same.
func (d *Directory) Authenticate(username, password string) (User, error) {
	u, ok := d.byName[username]
	if !ok {
		_, _ = Verify(password, d.dummyHash())
		return User{}, ErrBadCredentials
	}

	match, err := Verify(password, u.PasswordHash)
	if err != nil {
		return User{}, err
	}
	if !match {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func (d *Directory) dummyHash() string {
	d.dummyOnce.Do(func() {
		h, err := NewHasher(DefaultHashConfig())
		if err == nil {
			d.dummy, _ = h.Hash("sessionguard-dummy-password")
		}
	})
	return d.dummy
}
