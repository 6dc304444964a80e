// Package hash computes the content hashes that key a unit's function
// table. A hash covers the fully-qualified item path, so two units built
// from the same names agree on the key without sharing any state.
package hash

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Hash is a 64-bit content hash of a fully-qualified item name.
type Hash uint64

// Empty is the hash of no item at all and never appears in a function table.
const Empty Hash = 0

// Item hashes a fully-qualified path such as ("math", "add").
func Item(path ...string) Hash {
	h := fnv.New64a()
	for i, p := range path {
		if i > 0 {
			h.Write([]byte{':', ':'}) //nolint:errcheck
		}
		h.Write([]byte(p)) //nolint:errcheck
	}
	return Hash(h.Sum64())
}

// Name hashes a single "::"-separated name.
func Name(name string) Hash {
	return Item(strings.Split(name, "::")...)
}

func (h Hash) String() string {
	return fmt.Sprintf("0x%016x", uint64(h))
}
