package core

import (
	"encoding/binary"
	"encoding/json"

	"github.com/go-crypt/x/blake2b"
)

// ID is a stable identifier for a book, derived from its content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// BookRecord is one row of the metadata table.
// Its row position matches the position of its vector in the index.
type BookRecord struct {
	Id            ID
	ISBN          string
	Title         string
	Authors       string
	Description   string
	Thumbnail     string
	Categories    string
	PublishedYear int     // 0 when absent
	AverageRating float64 // 0..5, 0 when absent
	NumPages      int     // 0 when absent
	RatingsCount  int     // 0 when absent
}

// StableID computes the content-derived identifier for the record.
func (b *BookRecord) StableID() ID {
	return IDFromContent(b.ISBN + "|" + b.Title + "|" + b.Authors)
}

// SearchResult is a book matched by a query, with its similarity and mood signals.
type SearchResult struct {
	Book       *BookRecord `json:"book"`
	Position   int         `json:"position"`
	Similarity float32     `json:"similarity_score"`
	Moods      MoodScores  `json:"moods"`
}

// MarshalJSON flattens the book fields next to the score fields.
func (r *SearchResult) MarshalJSON() ([]byte, error) {
	type bookJSON struct {
		ISBN          string     `json:"isbn13"`
		Title         string     `json:"title"`
		Authors       string     `json:"authors"`
		Description   string     `json:"description"`
		Thumbnail     string     `json:"thumbnail,omitempty"`
		Categories    string     `json:"categories,omitempty"`
		PublishedYear int        `json:"published_year,omitempty"`
		AverageRating float64    `json:"average_rating"`
		NumPages      int        `json:"num_pages,omitempty"`
		RatingsCount  int        `json:"ratings_count,omitempty"`
		Similarity    float32    `json:"similarity_score"`
		Moods         MoodScores `json:"moods"`
	}
	out := bookJSON{Similarity: r.Similarity, Moods: r.Moods}
	if b := r.Book; b != nil {
		out.ISBN = b.ISBN
		out.Title = b.Title
		out.Authors = b.Authors
		out.Description = b.Description
		out.Thumbnail = b.Thumbnail
		out.Categories = b.Categories
		out.PublishedYear = b.PublishedYear
		out.AverageRating = b.AverageRating
		out.NumPages = b.NumPages
		out.RatingsCount = b.RatingsCount
	}
	return json.Marshal(out)
}
