package mcpserver

// SearchBooksArgs are the arguments of the search_books tool.
type SearchBooksArgs struct {
	Query     string  `json:"query" jsonschema:"what the reader is looking for, in plain language"`
	TopK      int     `json:"top_k,omitempty" jsonschema:"maximum number of books to return (default 10)"`
	Mood      string  `json:"mood,omitempty" jsonschema:"only return books with this mood; see list_moods"`
	MinRating float64 `json:"min_rating,omitempty" jsonschema:"minimum average rating from 0 to 5"`
}

// BookHit is one search_books result.
type BookHit struct {
	ISBN          string             `json:"isbn13,omitempty"`
	Title         string             `json:"title"`
	Authors       string             `json:"authors"`
	Categories    string             `json:"categories,omitempty"`
	PublishedYear int                `json:"published_year,omitempty"`
	AverageRating float64            `json:"average_rating"`
	Description   string             `json:"description"`
	Similarity    float32            `json:"similarity_score"`
	Moods         map[string]float64 `json:"moods"`
}

// SearchBooksResult is the structured output of search_books.
type SearchBooksResult struct {
	Books []BookHit `json:"books"`
}

// ListMoodsArgs takes no arguments.
type ListMoodsArgs struct{}

// ListMoodsResult is the structured output of list_moods.
type ListMoodsResult struct {
	Moods []string `json:"moods"`
}
