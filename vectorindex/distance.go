package vectorindex

import (
	"sync"

	"gonum.org/v1/gonum/blas/gonum"
)

var blasEngine = gonum.Implementation{}

var diffWorkspace = sync.Pool{
	New: func() any {
		s := make([]float32, 0, 512)
		return &s
	},
}

// SquaredL2 returns the squared Euclidean distance between a and b, which
// must have the same length.
func SquaredL2(a, b []float32) float32 {
	n := len(a)
	diffPtr := diffWorkspace.Get().(*[]float32)
	defer diffWorkspace.Put(diffPtr)

	if cap(*diffPtr) < n {
		*diffPtr = make([]float32, n)
	}
	diff := (*diffPtr)[:n]

	copy(diff, a)
	blasEngine.Saxpy(n, -1, b, 1, diff, 1)
	return blasEngine.Sdot(n, diff, 1, diff, 1)
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float32 {
	return blasEngine.Snrm2(len(v), v, 1)
}

// Normalize scales v to unit length in place. Zero vectors are left as is;
// callers that need a unit vector reject them with Norm first.
func Normalize(v []float32) {
	norm := Norm(v)
	if norm == 0 {
		return
	}
	blasEngine.Sscal(len(v), 1/norm, v, 1)
}

// Normalized returns a unit-length copy of v.
func Normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	Normalize(out)
	return out
}
