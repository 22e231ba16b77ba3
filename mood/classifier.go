// Package mood scores free text against the fixed set of mood categories
// using keyword presence.
package mood

import (
	"strings"

	"github.com/poiesic/moodshelf/core"
)

const (
	// KeywordScore is added to a mood's score for each keyword found in the text.
	KeywordScore = 0.3

	// ScoreCap replaces any raw score above capThreshold.
	ScoreCap = 0.95

	// FilterThreshold is the score a result must strictly exceed to pass a mood filter.
	FilterThreshold = 0.3

	capThreshold = 0.9
)

// keywords holds ten lower-case keywords per mood, indexed by core.Mood.
var keywords = [core.NumMoods][]string{
	core.MoodJoyful:        {"joy", "happy", "happiness", "smile", "laugh", "fun", "delight", "cheerful", "light", "bright"},
	core.MoodSad:           {"sad", "grief", "sorrow", "tear", "cry", "loss", "death", "mourn", "tragedy", "broken"},
	core.MoodSuspenseful:   {"suspense", "secret", "hide", "hiding", "mystery", "threat", "tension", "wait", "fear", "dread"},
	core.MoodRomantic:      {"love", "romance", "heart", "kiss", "marriage", "passion", "relationship", "lover", "couple", "desire"},
	core.MoodDark:          {"dark", "evil", "kill", "murder", "blood", "horror", "death", "grim", "shadow", "violence"},
	core.MoodAdventurous:   {"adventure", "journey", "quest", "travel", "explore", "wild", "expedition", "hidden", "discovery", "voyage"},
	core.MoodFunny:         {"funny", "humor", "comedy", "laugh", "joke", "hilarious", "wit", "sarcasm", "amusing", "satire"},
	core.MoodInspirational: {"inspire", "hope", "faith", "dream", "life", "wisdom", "courage", "strength", "soul", "god"},
	core.MoodThriller:      {"thriller", "killer", "suspense", "danger", "psychological", "crime", "hunt", "chase", "conspiracy", "assassin"},
	core.MoodMystery:       {"mystery", "detective", "clue", "solve", "crime", "strange", "unexplained", "hidden", "secret", "investigation"},
	core.MoodEducational:   {"learn", "guide", "textbook", "study", "history", "science", "academic", "theory", "introduction", "lesson"},
	core.MoodTechnical:     {"software", "code", "programming", "data", "computer", "algorithm", "system", "guide", "engineering", "network"},
}

// Keywords returns a copy of the keyword list for m.
func Keywords(m core.Mood) []string {
	if !m.Valid() {
		return nil
	}
	out := make([]string, len(keywords[m]))
	copy(out, keywords[m])
	return out
}

// Classify scores text against every mood. Each keyword that occurs as a
// substring of the lower-cased text adds KeywordScore; a raw sum above 0.9
// is replaced by ScoreCap. Empty text scores zero everywhere.
func Classify(text string) core.MoodScores {
	var scores core.MoodScores
	if text == "" {
		return scores
	}

	lower := strings.ToLower(text)
	for m, words := range keywords {
		var score float64
		for _, word := range words {
			if strings.Contains(lower, word) {
				score += KeywordScore
			}
		}
		if score > capThreshold {
			score = ScoreCap
		}
		scores[m] = score
	}
	return scores
}

// ClassifyBatch classifies each text independently, preserving input order.
func ClassifyBatch(texts []string) []core.MoodScores {
	out := make([]core.MoodScores, len(texts))
	for i, text := range texts {
		out[i] = Classify(text)
	}
	return out
}

// Matches reports whether scores pass a filter on m.
func Matches(scores core.MoodScores, m core.Mood) bool {
	return scores.Get(m) > FilterThreshold
}
