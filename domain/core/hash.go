package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	ParamsHash  Hash
	CodeVersion string
)

// Constructors
func NewParamsHash(data []byte) ParamsHash { return ParamsHash(NewHash(data)) }

// String conversions
func (h ParamsHash) String() string { return Hash(h).String() }

// ComputeParamsHash builds a stable fingerprint over a flat parameter map.
// Keys are sorted so insertion order never changes the hash.
func ComputeParamsHash(params map[string]any) ParamsHash {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", params[key]))
	}

	return NewParamsHash([]byte(data.String()))
}
