// Package symid computes the stable, content-addressed symbol_id
// described in §3/§4.5: a 128-bit BLAKE3 hash of the language tag, the
// canonical_fqn, and the byte span, rendered as 32 hex characters.
// Grounded on the retrieval pack's use of lukechampine.com/blake3 for
// content-addressed hashing (rclone-rclone, javanhut-IvaldiVCS).
package symid

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"

	"github.com/oldnordic/magellan/internal/graphmodel"
	"lukechampine.com/blake3"
)

// For computes symbol_id = BLAKE3_128(language || 0x00 || canonical_fqn
// || 0x00 || byte_start_le || byte_end_le), rendered as 32 hex chars.
// The full BLAKE3-256 digest is computed and truncated to the low 128
// bits, matching BLAKE3's defined behavior for shorter output lengths.
func For(lang graphmodel.Language, canonicalFQN string, byteStart, byteEnd int) string {
	var buf bytes.Buffer
	buf.WriteString(string(lang))
	buf.WriteByte(0)
	buf.WriteString(canonicalFQN)
	buf.WriteByte(0)

	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], uint64(int64(byteStart)))
	buf.Write(le[:])
	binary.LittleEndian.PutUint64(le[:], uint64(int64(byteEnd)))
	buf.Write(le[:])

	sum := blake3.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:16])
}
