// Package idgen provides the identifier strategies used by buildboard.
//
// Stored records get ObjectID-shaped identifiers (24 lowercase hex chars,
// time-prefixed) so that rows written by this service stay compatible with
// clients that were built against the document-store backend. Internal
// events use UUIDv7.
package idgen

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

var objectCounter atomic.Uint32

// ObjectID returns a Generator that produces 24-char hex identifiers laid
// out as 4 bytes of Unix seconds, 5 random bytes and a 3 byte counter.
// IDs sort by creation second.
func ObjectID() Generator {
	var process [5]byte
	if _, err := rand.Read(process[:]); err != nil {
		panic("idgen: crypto/rand failed: " + err.Error())
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("idgen: crypto/rand failed: " + err.Error())
	}
	objectCounter.CompareAndSwap(0, binary.BigEndian.Uint32(seed[:])&0xffffff)

	return func() string {
		var b [12]byte
		binary.BigEndian.PutUint32(b[0:4], uint32(time.Now().Unix()))
		copy(b[4:9], process[:])
		n := objectCounter.Add(1)
		b[9] = byte(n >> 16)
		b[10] = byte(n >> 8)
		b[11] = byte(n)
		return hex.EncodeToString(b[:])
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is used for stored records.
var Default Generator = ObjectID()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// IsObjectID reports whether s has the shape produced by ObjectID.
func IsObjectID(s string) bool {
	if len(s) != 24 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ObjectTime extracts the creation second embedded in an ObjectID.
func ObjectTime(s string) (time.Time, error) {
	if !IsObjectID(s) {
		return time.Time{}, fmt.Errorf("idgen: not an object id: %q", s)
	}
	b, _ := hex.DecodeString(s[:8])
	return time.Unix(int64(binary.BigEndian.Uint32(b)), 0).UTC(), nil
}
