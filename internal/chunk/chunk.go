// Package chunk implements the Chunk Store described in §4.8: for
// every extracted symbol, the verbatim source text of its byte span is
// captured alongside a content hash, so downstream consumers never
// need to re-read the source file. Grounded on the teacher's
// internal/core.FileContent dual-hash pattern (a fast xxhash for cheap
// equality pre-filtering, a durable SHA-256 for the actual dedup key).
package chunk

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"

	"github.com/oldnordic/magellan/internal/extract"
	"github.com/oldnordic/magellan/internal/graphmodel"
)

// FromSymbols builds one CodeChunk per symbol in symbols, slicing
// content at each symbol's byte span (§4.8: "keyed by (file,
// byte_start, byte_end)"). createdAt is passed in rather than sourced
// from the clock directly so chunk construction stays a pure function
// of its inputs.
func FromSymbols(file string, content []byte, symbols []graphmodel.Symbol, createdAt int64) []graphmodel.CodeChunk {
	chunks := make([]graphmodel.CodeChunk, 0, len(symbols))
	for _, s := range symbols {
		text, ok := extract.SafeSlice(content, s.Span.ByteStart, s.Span.ByteEnd)
		if !ok {
			continue
		}
		chunks = append(chunks, graphmodel.CodeChunk{
			File:        file,
			Span:        s.Span,
			Content:     text,
			ContentHash: sha256Hex(text),
			FastHash:    xxhash.Sum64String(text),
			SymbolName:  s.Name,
			SymbolKind:  s.Kind,
			CreatedAt:   createdAt,
		})
	}
	return chunks
}

// ForSpan extracts a single chunk for an arbitrary byte range, used by
// the chunk-by-span query (§4.12) rather than the per-symbol bulk path.
func ForSpan(file string, content []byte, span graphmodel.Span, createdAt int64) (graphmodel.CodeChunk, bool) {
	text, ok := extract.SafeSlice(content, span.ByteStart, span.ByteEnd)
	if !ok {
		return graphmodel.CodeChunk{}, false
	}
	return graphmodel.CodeChunk{
		File:        file,
		Span:        span,
		Content:     text,
		ContentHash: sha256Hex(text),
		FastHash:    xxhash.Sum64String(text),
		CreatedAt:   createdAt,
	}, true
}

func sha256Hex(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
