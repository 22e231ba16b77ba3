package artifact

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/vectorindex"
	"gopkg.in/yaml.v3"
)

const manifestFormat = 1

// Manifest describes one published version.
type Manifest struct {
	Format        int              `yaml:"format"`
	Version       string           `yaml:"version"`
	CreatedAt     time.Time        `yaml:"created_at"`
	Model         string           `yaml:"model"`
	IndexKind     vectorindex.Kind `yaml:"index_kind"`
	Dimensions    int              `yaml:"dimensions"`
	Count         int              `yaml:"count"`
	Skipped       int              `yaml:"skipped"`
	Source        string           `yaml:"source,omitempty"`
	IDChecksum    string           `yaml:"id_checksum"`
	IndexChecksum string           `yaml:"index_checksum"`
	BooksChecksum string           `yaml:"books_checksum"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Format != manifestFormat {
		return nil, fmt.Errorf("unsupported manifest format %d", m.Format)
	}
	return &m, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return writeFileSync(path, data)
}

func newHash() hash.Hash {
	h, _ := blake2b.New(32, nil)
	return h
}

// idChecksum hashes the ordered stable IDs of books.
func idChecksum(books []*core.BookRecord) string {
	h := newHash()
	var buf [8]byte
	for _, b := range books {
		binary.LittleEndian.PutUint64(buf[:], uint64(b.Id))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
