package common

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest hashes the given source buffers in order. Buffers are length-prefixed so that
// moving bytes between adjacent sources changes the result.
func Digest(sources ...[]byte) string {
	h, _ := blake2b.New256(nil)
	var n [8]byte
	for _, src := range sources {
		l := uint64(len(src))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write(src)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
