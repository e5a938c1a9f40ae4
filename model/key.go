package model

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

const (
	KindProfile    = "Profile"
	KindConference = "Conference"
	KindSession    = "Session"
)

// Key identifies an entity inside its ancestor path, e.g. Profile(alice)/Conference(42).
type Key struct {
	Kind   string
	ID     string
	Parent *Key
}

func NewKey(kind, id string, parent *Key) *Key {
	return &Key{Kind: kind, ID: id, Parent: parent}
}

func ProfileKey(userID string) *Key {
	return NewKey(KindProfile, userID, nil)
}

// Encode returns the websafe form of the key used by clients and as the stored document id.
func (k *Key) Encode() string {
	return base64.RawURLEncoding.EncodeToString([]byte(k.path()))
}

func (k *Key) path() string {
	elem := url.PathEscape(k.Kind) + ":" + url.PathEscape(k.ID)
	if k.Parent == nil {
		return elem
	}
	return k.Parent.path() + "/" + elem
}

// Ancestors returns the encoded keys of every ancestor, root first.
func (k *Key) Ancestors() []string {
	if k.Parent == nil {
		return []string{}
	}
	return append(k.Parent.Ancestors(), k.Parent.Encode())
}

func (k *Key) String() string {
	return k.path()
}

func DecodeKey(websafe string) (*Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(websafe)
	if err != nil {
		return nil, fmt.Errorf("malformed key %q: %w", websafe, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("malformed key %q: empty", websafe)
	}

	var key *Key
	for _, elem := range strings.Split(string(raw), "/") {
		kind, id, ok := strings.Cut(elem, ":")
		if !ok || kind == "" || id == "" {
			return nil, fmt.Errorf("malformed key %q: bad element %q", websafe, elem)
		}
		if kind, err = url.PathUnescape(kind); err != nil {
			return nil, fmt.Errorf("malformed key %q: %w", websafe, err)
		}
		if id, err = url.PathUnescape(id); err != nil {
			return nil, fmt.Errorf("malformed key %q: %w", websafe, err)
		}
		key = NewKey(kind, id, key)
	}
	return key, nil
}

// DecodeKindKey decodes websafe and checks that it names an entity of the given kind.
func DecodeKindKey(websafe, kind string) (*Key, error) {
	key, err := DecodeKey(websafe)
	if err != nil {
		return nil, err
	}
	if key.Kind != kind {
		return nil, fmt.Errorf("key %q is a %s key, want %s", websafe, key.Kind, kind)
	}
	return key, nil
}
