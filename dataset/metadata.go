package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/poiesic/moodshelf/core"
)

// MetadataColumns is the fixed column order of the metadata table.
var MetadataColumns = []string{
	ColISBN13,
	ColTitle,
	ColAuthors,
	ColDescription,
	ColThumbnail,
	ColCategories,
	ColPublishedYear,
	ColAverageRating,
	ColNumPages,
	ColRatingsCount,
}

// WriteMetadata writes books in order, one row per position.
func WriteMetadata(w io.Writer, books []*core.BookRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetadataColumns); err != nil {
		return err
	}
	row := make([]string, len(MetadataColumns))
	for _, b := range books {
		row[0] = b.ISBN
		row[1] = b.Title
		row[2] = b.Authors
		row[3] = b.Description
		row[4] = b.Thumbnail
		row[5] = b.Categories
		row[6] = formatOptionalInt(b.PublishedYear)
		row[7] = strconv.FormatFloat(b.AverageRating, 'f', -1, 64)
		row[8] = formatOptionalInt(b.NumPages)
		row[9] = formatOptionalInt(b.RatingsCount)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMetadata reads a metadata table written by WriteMetadata. The header
// must match MetadataColumns exactly. Stable IDs are recomputed from content.
func ReadMetadata(r io.Reader) ([]*core.BookRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(MetadataColumns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: metadata header: %w", core.ErrDataUnavailable, err)
	}
	if !slices.Equal(header, MetadataColumns) {
		return nil, fmt.Errorf("%w: metadata columns %v, want %v", core.ErrDataUnavailable, header, MetadataColumns)
	}

	var books []*core.BookRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: metadata row %d: %w", core.ErrDataUnavailable, len(books), err)
		}

		b := &core.BookRecord{
			ISBN:        row[0],
			Title:       row[1],
			Authors:     row[2],
			Description: row[3],
			Thumbnail:   row[4],
			Categories:  row[5],
		}
		if b.PublishedYear, err = parseOptionalInt(row[6]); err == nil {
			if b.NumPages, err = parseOptionalInt(row[8]); err == nil {
				b.RatingsCount, err = parseOptionalInt(row[9])
			}
		}
		if err == nil {
			b.AverageRating, err = strconv.ParseFloat(row[7], 64)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: metadata row %d: %w", core.ErrDataUnavailable, len(books), err)
		}
		b.Id = b.StableID()
		books = append(books, b)
	}
	return books, nil
}

func formatOptionalInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func parseOptionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
