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

// Package storage provides the persistence abstractions used while building
// the moodshelf index.
//
// The only repository today is the EmbeddingCache, which remembers the
// vector produced for a given (model, text) pair. Rebuilding the index from
// an unchanged catalog then costs no model calls. Vectors are encoded with
// mus-go: a varint length followed by raw float32 components.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return the interface type:
//
//	cache, err := badger.NewEmbeddingCache(backend)  // returns storage.EmbeddingCache
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/cache", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cache, err := badger.NewEmbeddingCache(backend)
//	vectors, err := cache.GetEmbeddings(ctx, "all-minilm", texts)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
