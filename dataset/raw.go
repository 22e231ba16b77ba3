package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/moodshelf/core"
)

// Raw catalog column names.
const (
	ColISBN13        = "isbn13"
	ColISBN10        = "isbn10"
	ColTitle         = "title"
	ColSubtitle      = "subtitle"
	ColAuthors       = "authors"
	ColCategories    = "categories"
	ColThumbnail     = "thumbnail"
	ColDescription   = "description"
	ColPublishedYear = "published_year"
	ColAverageRating = "average_rating"
	ColNumPages      = "num_pages"
	ColRatingsCount  = "ratings_count"
)

var requiredColumns = []string{ColTitle, ColAuthors, ColDescription}

// RawColumns is the column order WriteRaw emits.
var RawColumns = []string{
	ColISBN13,
	ColISBN10,
	ColTitle,
	ColSubtitle,
	ColAuthors,
	ColCategories,
	ColThumbnail,
	ColDescription,
	ColPublishedYear,
	ColAverageRating,
	ColNumPages,
	ColRatingsCount,
}

// ErrMissingColumn is returned when the raw catalog lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RawBook is one row of the raw catalog. Text fields are trimmed; numeric
// fields that are empty or unparsable are zero.
type RawBook struct {
	Line          int // 1-based line in the source, header is line 1
	ISBN13        string
	ISBN10        string
	Title         string
	Subtitle      string
	Authors       string
	Categories    string
	Thumbnail     string
	Description   string
	PublishedYear int
	AverageRating float64
	NumPages      int
	RatingsCount  int
}

// Record projects the raw row onto the metadata fields kept at query time.
func (b *RawBook) Record() *core.BookRecord {
	isbn := b.ISBN13
	if isbn == "" {
		isbn = b.ISBN10
	}
	rec := &core.BookRecord{
		ISBN:          isbn,
		Title:         b.Title,
		Authors:       b.Authors,
		Description:   b.Description,
		Thumbnail:     b.Thumbnail,
		Categories:    b.Categories,
		PublishedYear: b.PublishedYear,
		AverageRating: b.AverageRating,
		NumPages:      b.NumPages,
		RatingsCount:  b.RatingsCount,
	}
	rec.Id = rec.StableID()
	return rec
}

// ReadRawFile reads the raw catalog at path.
func ReadRawFile(path string) ([]RawBook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrDataUnavailable, err)
	}
	defer f.Close()
	return ReadRaw(f)
}

// ReadRaw parses a raw catalog. Any read or header error is reported as
// core.ErrDataUnavailable.
func ReadRaw(r io.Reader) ([]RawBook, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty catalog", core.ErrDataUnavailable)
		}
		return nil, fmt.Errorf("%w: read header: %w", core.ErrDataUnavailable, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %w: %s", core.ErrDataUnavailable, ErrMissingColumn, name)
		}
	}

	var books []RawBook
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", core.ErrDataUnavailable, line, err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		books = append(books, RawBook{
			Line:          line,
			ISBN13:        get(ColISBN13),
			ISBN10:        get(ColISBN10),
			Title:         get(ColTitle),
			Subtitle:      get(ColSubtitle),
			Authors:       get(ColAuthors),
			Categories:    get(ColCategories),
			Thumbnail:     get(ColThumbnail),
			Description:   get(ColDescription),
			PublishedYear: parseInt(get(ColPublishedYear)),
			AverageRating: parseRating(get(ColAverageRating)),
			NumPages:      parseInt(get(ColNumPages)),
			RatingsCount:  parseInt(get(ColRatingsCount)),
		})
	}
	return books, nil
}

// WriteRaw writes books as a raw catalog with the RawColumns header.
func WriteRaw(w io.Writer, books []RawBook) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RawColumns); err != nil {
		return err
	}
	for _, b := range books {
		rating := ""
		if b.AverageRating != 0 {
			rating = strconv.FormatFloat(b.AverageRating, 'f', -1, 64)
		}
		err := cw.Write([]string{
			b.ISBN13,
			b.ISBN10,
			b.Title,
			b.Subtitle,
			b.Authors,
			b.Categories,
			b.Thumbnail,
			b.Description,
			formatOptionalInt(b.PublishedYear),
			rating,
			formatOptionalInt(b.NumPages),
			formatOptionalInt(b.RatingsCount),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseInt accepts integers and integral floats such as "2004.0".
func parseInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

func parseRating(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !core.IsValidRating(f) {
		return 0
	}
	return f
}
