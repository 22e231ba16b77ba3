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

import (
	"fmt"
	"math"
	"strings"
)

// ValidateBookRecord validates a BookRecord according to domain rules.
//
// Validation rules:
//   - Title, Authors and Description must not be empty
//   - AverageRating must be within 0..5
//
// NOT validated (optional metadata):
//   - ISBN, Thumbnail, Categories
//   - PublishedYear, NumPages, RatingsCount
func ValidateBookRecord(record *BookRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidBookRecord)
	}

	if record.Title == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBookRecord, ErrEmptyTitle)
	}

	if record.Authors == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBookRecord, ErrEmptyAuthors)
	}

	if record.Description == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBookRecord, ErrEmptyDescription)
	}

	if !IsValidRating(record.AverageRating) {
		return fmt.Errorf("%w: %w", ErrInvalidBookRecord, ErrRatingOutOfRange)
	}

	return nil
}

// IsValidRating checks that a rating is a finite number within 0..5.
func IsValidRating(rating float64) bool {
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return false
	}
	return rating >= 0 && rating <= 5
}

// ParseMoodFilter resolves a mood filter value. The second return value is
// false when no filtering was requested ("" or "all").
func ParseMoodFilter(label string) (Mood, bool, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, MoodAll) {
		return -1, false, nil
	}
	mood, err := ParseMood(label)
	if err != nil {
		return -1, false, err
	}
	return mood, true, nil
}
