package vectorindex

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

const (
	magic         = "MSVI"
	formatVersion = 1
)

// Write persists idx to w. HNSW indexes also carry their graph so loading
// does not rebuild it.
func Write(w io.Writer, idx Index) error {
	kind := string(idx.Kind())
	dims, count := idx.Dims(), idx.Len()

	size := len(magic) +
		varint.Int.Size(formatVersion) +
		ord.String.Size(kind) +
		varint.Int.Size(dims) +
		varint.Int.Size(count) +
		count*dims*raw.Float32.Size(0)

	var h *HNSW
	if idx.Kind() == KindHNSW {
		var ok bool
		if h, ok = idx.(*HNSW); !ok {
			return fmt.Errorf("%w: %T", ErrUnknownKind, idx)
		}
		size += varint.Int.Size(h.cfg.M) +
			varint.Int.Size(h.cfg.EfSearch) +
			raw.Float64.Size(h.cfg.Ml) +
			varint.Int64.Size(h.cfg.Seed)
	}

	buf := make([]byte, size)
	n := copy(buf, magic)
	n += varint.Int.Marshal(formatVersion, buf[n:])
	n += ord.String.Marshal(kind, buf[n:])
	n += varint.Int.Marshal(dims, buf[n:])
	n += varint.Int.Marshal(count, buf[n:])
	for i := 0; i < count; i++ {
		for _, f := range idx.Vector(i) {
			n += raw.Float32.Marshal(f, buf[n:])
		}
	}
	if h != nil {
		n += varint.Int.Marshal(h.cfg.M, buf[n:])
		n += varint.Int.Marshal(h.cfg.EfSearch, buf[n:])
		n += raw.Float64.Marshal(h.cfg.Ml, buf[n:])
		varint.Int64.Marshal(h.cfg.Seed, buf[n:])
	}

	if _, err := w.Write(buf); err != nil {
		return err
	}
	if h != nil {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return h.graph.Export(w)
	}
	return nil
}

// Read loads an index previously persisted with Write.
func Read(r io.Reader) (Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	d := decoder{data: data}

	if !bytes.HasPrefix(data, []byte(magic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	d.n = len(magic)

	version := d.int()
	kindName := d.string()
	dims := d.int()
	count := d.int()
	if d.err != nil {
		return nil, d.err
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, version)
	}
	kind, err := ParseKind(kindName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if dims <= 0 || count < 0 || count > (len(data)-d.n)/(dims*4) {
		return nil, fmt.Errorf("%w: %d vectors of %d dimensions in %d bytes", ErrCorrupt, count, dims, len(data)-d.n)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		v := make([]float32, dims)
		for j := range v {
			v[j] = d.float32()
		}
		vectors[i] = v
	}
	if d.err != nil {
		return nil, d.err
	}

	if kind == KindFlat {
		f := NewFlat(dims)
		if err := f.Add(vectors...); err != nil {
			return nil, err
		}
		return f, nil
	}

	cfg := HNSWConfig{
		M:        d.int(),
		EfSearch: d.int(),
		Ml:       d.float64(),
		Seed:     d.int64(),
	}
	if d.err != nil {
		return nil, d.err
	}

	h := NewHNSW(dims, WithM(cfg.M), WithEfSearch(cfg.EfSearch), WithSeed(cfg.Seed))
	h.cfg.Ml = cfg.Ml
	if err := h.graph.Import(bytes.NewReader(data[d.n:])); err != nil {
		return nil, fmt.Errorf("%w: hnsw graph: %w", ErrCorrupt, err)
	}
	h.graph.Rng = rand.New(rand.NewSource(cfg.Seed))
	if h.graph.Len() != count {
		return nil, fmt.Errorf("%w: graph holds %d nodes, want %d", ErrCorrupt, h.graph.Len(), count)
	}
	h.vectors = vectors
	return h, nil
}

// decoder walks a byte slice, keeping the first error.
type decoder struct {
	data []byte
	n    int
	err  error
}

func (d *decoder) fail(what string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s at offset %d: %w", ErrCorrupt, what, d.n, err)
	}
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, m, err := varint.Int.Unmarshal(d.data[d.n:])
	if err != nil {
		d.fail("int", err)
		return 0
	}
	d.n += m
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, m, err := varint.Int64.Unmarshal(d.data[d.n:])
	if err != nil {
		d.fail("int64", err)
		return 0
	}
	d.n += m
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, m, err := ord.String.Unmarshal(d.data[d.n:])
	if err != nil {
		d.fail("string", err)
		return ""
	}
	d.n += m
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, m, err := raw.Float32.Unmarshal(d.data[d.n:])
	if err != nil {
		d.fail("float32", err)
		return 0
	}
	d.n += m
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, m, err := raw.Float64.Unmarshal(d.data[d.n:])
	if err != nil {
		d.fail("float64", err)
		return 0
	}
	d.n += m
	return v
}
