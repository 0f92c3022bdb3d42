package command

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"slices"
)

// DedupHash fingerprints the logical identity of a command: issuer, type and
// params, never time. Two requests that differ only in params key order produce
// the same hash. Every field is length-prefixed so adjacent fields cannot blur
// into each other (issuer "12" + type "3x" must not collide with "1" + "23x").
func DedupHash(issuer string, t Type, params map[string]string) string {
	h := sha256.New()
	writeField(h, issuer)
	writeField(h, string(t))

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, params[k])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], uint64(len(s)))
	h.Write(buf[:n])
	h.Write([]byte(s))
}
