package main

import (
	"bufio"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/dataset"
	"github.com/poiesic/moodshelf/mood"
)

var sentences = []string{
	"A gentle breeze rustled the leaves of the old oak tree.",
	"She found a hidden key in the dusty attic.",
	"The city skyline glowed under the starry night sky.",
	"Rain drummed on the rooftop, creating a soothing rhythm.",
	"The ancient library held stories that never faded.",
	"A mysterious map led them to a forgotten treasure.",
	"The old clock chimed thirteen times in an abandoned town.",
	"A sudden thunderclap shattered the silence of the forest.",
	"The desert dunes shifted silently under a pale moon.",
	"They discovered an ancient rune carved deep within the stone.",
	"Her laughter echoed through the empty halls of the old manor.",
	"A lone wolf howled, echoing into the vast night.",
	"The lighthouse beam cut through fog, guiding sailors safely.",
	"The old map showed roads that no longer existed.",
	"She felt a chill run down her spine as the storm approached.",
	"The old photograph showed a family laughing in bright sunlight.",
	"They listened to waves crash against the rocky shore.",
	"The train rattled through tunnels carved into stone.",
}

var (
	titleWords = []string{"Silent", "Crimson", "Lost", "Hidden", "Winter", "Golden", "Broken", "Distant", "Last", "Secret"}
	titleNouns = []string{"Harbor", "Garden", "Letters", "Kingdom", "River", "Orchard", "Lantern", "Atlas", "Tide", "Manor"}
	firstNames = []string{"Ada", "Jonah", "Mira", "Tobias", "Lena", "Ravi", "Ines", "Callum", "Noor", "Sofia"}
	lastNames  = []string{"Hart", "Okafor", "Lindqvist", "Moreau", "Tanaka", "Reyes", "Whitlock", "Bauer", "Castellanos", "Quinn"}
	categories = []string{"Fiction", "Mystery", "Romance", "Fantasy", "History", "Biography", "Poetry", "Thriller"}
)

var (
	count      = flag.Int("count", 200, "number of books to generate")
	output     = flag.String("out", "books.csv", "output file, - for stdout")
	seed       = flag.Uint64("seed", 1, "random seed")
	incomplete = flag.Float64("incomplete", 0.05, "fraction of rows missing a required field")
	seedFile   = flag.String("src", "", "file of seed sentences, one per line")
)

func init() {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over the non-blank lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if !yield(line) {
				return
			}
		}
	}, nil
}

func pick[T any](r *rand.Rand, s []T) T {
	return s[r.IntN(len(s))]
}

// describe builds a description from two filler sentences and, usually, one
// sentence seeded with keywords for a randomly chosen mood.
func describe(r *rand.Rand, filler []string) string {
	parts := []string{pick(r, filler), pick(r, filler)}
	if r.IntN(4) != 0 {
		m := core.Mood(r.IntN(core.NumMoods))
		kw := mood.Keywords(m)
		parts = append(parts, fmt.Sprintf("A %s tale, %s and %s.",
			pick(r, kw), pick(r, kw), pick(r, kw)))
	}
	r.Shuffle(len(parts), func(i, j int) { parts[i], parts[j] = parts[j], parts[i] })
	return strings.Join(parts, " ")
}

func generate(r *rand.Rand, n int, filler []string, incomplete float64) []dataset.RawBook {
	books := make([]dataset.RawBook, 0, n)
	for i := range n {
		isbn := fmt.Sprintf("978%010d", i+1)
		b := dataset.RawBook{
			ISBN13:        isbn,
			ISBN10:        isbn[3:],
			Title:         fmt.Sprintf("The %s %s", pick(r, titleWords), pick(r, titleNouns)),
			Authors:       pick(r, firstNames) + " " + pick(r, lastNames),
			Categories:    pick(r, categories),
			Thumbnail:     fmt.Sprintf("http://books.example.com/covers/%s.jpg", isbn),
			Description:   describe(r, filler),
			PublishedYear: 1900 + r.IntN(125),
			AverageRating: float64(250+r.IntN(251)) / 100,
			NumPages:      80 + r.IntN(800),
			RatingsCount:  r.IntN(50000),
		}
		if r.IntN(3) == 0 {
			b.Authors += ";" + pick(r, firstNames) + " " + pick(r, lastNames)
		}
		if r.Float64() < incomplete {
			switch r.IntN(3) {
			case 0:
				b.Title = ""
			case 1:
				b.Authors = ""
			default:
				b.Description = ""
			}
		}
		books = append(books, b)
	}
	return books
}

func main() {
	flag.Parse()

	filler := sentences
	if *seedFile != "" {
		lines, err := linesFromFile(*seedFile)
		if err != nil {
			panic(err)
		}
		filler = nil
		for line := range lines {
			filler = append(filler, line)
		}
		if len(filler) == 0 {
			panic("seed file has no sentences")
		}
	}

	r := rand.New(rand.NewPCG(*seed, *seed))
	books := generate(r, *count, filler, *incomplete)

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		out = f
	}
	if err := dataset.WriteRaw(out, books); err != nil {
		panic(err)
	}

	slog.Info("catalog written", "books", len(books), "output", *output)
}
