package badger

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Key prefixes for different data types
const (
	embeddingPrefix = "emb"
)

// makeEmbeddingKey generates a key for a cached vector.
// Format: prefix:model:blake2b-128(text)
func makeEmbeddingKey(model, text string) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	sum := h.Sum(nil)

	prefix := embeddingPrefix + ":" + model + ":"
	buf := make([]byte, 0, len(prefix)+hex.EncodedLen(len(sum)))
	buf = append(buf, prefix...)
	return hex.AppendEncode(buf, sum)
}

// makeEmbeddingPrefix returns the prefix shared by every cached vector.
func makeEmbeddingPrefix() []byte {
	return []byte(embeddingPrefix + ":")
}
