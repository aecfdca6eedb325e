// Package uuidutil centralizes id generation: random v4 ids for row primary
// keys, and deterministic namespaced v5 ids wherever two independent runs
// must agree on an identifier for the same logical entity (review-author
// profiles, merge candidates).
package uuidutil

import (
	uuid "github.com/satori/go.uuid"
)

// NewV4 returns a random identifier string.
func NewV4() string {
	return uuid.NewV4().String()
}

// NewV5 returns a deterministic identifier derived from key, namespaced
// under the URL namespace (matching the convention of hashing a
// pipe-delimited string key such as "candidate|<left>|<right>").
func NewV5(key string) string {
	return uuid.NewV5(uuid.NamespaceURL, key).String()
}
