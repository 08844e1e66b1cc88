package badger

import (
	"github.com/poiesic/sitebot/core"
	"github.com/poiesic/sitebot/storage"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col:"
	pointPrefix      = "pt:"
)

// makeCollectionKey generates the metadata key for a collection.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makePointPrefix generates the prefix shared by every point of a collection.
// Format: pt:name\x00
// Collection names never contain NUL, so no prefix is a prefix of another.
func makePointPrefix(name string) []byte {
	buf := make([]byte, 0, len(pointPrefix)+len(name)+1)
	buf = append(buf, pointPrefix...)
	buf = append(buf, name...)
	return append(buf, 0)
}

// makePointKey generates a key for a point.
// Format: pt:name\x00id (id as 8 big-endian bytes)
func makePointKey(name string, id core.ID) []byte {
	return append(makePointPrefix(name), storage.MarshalID(id)...)
}
