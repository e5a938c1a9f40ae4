package model

import "slices"

type Wishlist struct {
	UserID      string   `json:"-" bson:"_id"`
	SessionKeys []string `json:"sessionKeys" bson:"sessionKeys"`
}

// Add appends sessionKey unless it is already present and reports whether the wishlist changed.
func (w *Wishlist) Add(sessionKey string) bool {
	if slices.Contains(w.SessionKeys, sessionKey) {
		return false
	}
	w.SessionKeys = append(w.SessionKeys, sessionKey)
	return true
}
