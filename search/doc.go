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

// Package search implements the online query path.
//
// Engine.Search embeds the query, normalizes it, asks the current index for
// topK times an oversample factor nearest neighbors, joins each neighbor to
// its book by position, scores the book's description for moods and then
// applies the mood and rating filters in that order. The surviving
// candidates keep the index's distance order and are cut to topK; filtering
// never reorders them.
//
// Similarity is 1 - squared L2 distance between unit vectors, i.e.
// 2*cos - 1, which ranges over [-3, 1]. Callers should treat it as a rank
// signal rather than a probability.
//
// Engines hold no per-query state and are safe for concurrent use.
package search
