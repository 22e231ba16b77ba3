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

package core

import "errors"

// Error kinds surfaced by the index builder and the query engine.
var (
	// ErrDataUnavailable indicates the raw source or persisted artifacts are missing or corrupt.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrEmbeddingFailure indicates the embedding provider failed or returned
	// vectors of the wrong dimensionality.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrInvalidArgument indicates malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReady indicates a query was attempted before any successful build.
	ErrNotReady = errors.New("index not ready")
)

// Domain validation errors
var (
	// ErrInvalidBookRecord indicates a BookRecord failed validation.
	ErrInvalidBookRecord = errors.New("invalid book record")

	// ErrEmptyTitle indicates the Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyAuthors indicates the Authors field is empty.
	ErrEmptyAuthors = errors.New("authors cannot be empty")

	// ErrEmptyDescription indicates the Description field is empty.
	ErrEmptyDescription = errors.New("description cannot be empty")

	// ErrRatingOutOfRange indicates a rating outside 0..5.
	ErrRatingOutOfRange = errors.New("rating must be between 0 and 5")

	// ErrUnknownMood indicates a mood label outside the supported set.
	ErrUnknownMood = errors.New("unknown mood")
)
