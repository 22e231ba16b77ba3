// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/moodshelf/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// VectorSize returns the encoded size of a vector: a varint length followed
// by fixed-width float32 components.
func VectorSize(vector []float32) int {
	size := varint.Int.Size(len(vector))
	for _, f := range vector {
		size += raw.Float32.Size(f)
	}
	return size
}

// MarshalVectorTo encodes vector into buf, which must hold at least
// VectorSize(vector) bytes. Returns the number of bytes written.
func MarshalVectorTo(vector []float32, buf []byte) int {
	n := varint.Int.Marshal(len(vector), buf)
	for _, f := range vector {
		n += raw.Float32.Marshal(f, buf[n:])
	}
	return n
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, VectorSize(vector))
	MarshalVectorTo(vector, buf)
	return buf
}

// UnmarshalVector decodes a vector from the front of data and returns it
// together with the number of bytes consumed.
func UnmarshalVector(data []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, n, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	if length < 0 || length > (len(data)-n)/4 {
		return nil, n, fmt.Errorf("%w: vector of %d components in %d bytes", ErrTruncatedData, length, len(data)-n)
	}
	vector := make([]float32, length)
	for i := range vector {
		f, m, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, n, fmt.Errorf("%w: component %d: %w", ErrSerializationFailed, i, err)
		}
		vector[i] = f
		n += m
	}
	return vector, n, nil
}
