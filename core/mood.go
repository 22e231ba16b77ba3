package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mood is one of a closed set of mood categories.
type Mood int

const (
	MoodJoyful Mood = iota
	MoodSad
	MoodSuspenseful
	MoodRomantic
	MoodDark
	MoodAdventurous
	MoodFunny
	MoodInspirational
	MoodThriller
	MoodMystery
	MoodEducational
	MoodTechnical

	// NumMoods is the size of the mood enumeration.
	NumMoods int = iota
)

// MoodAll is the filter value that disables mood filtering.
const MoodAll = "all"

var moodLabels = [NumMoods]string{
	"joyful",
	"sad",
	"suspenseful",
	"romantic",
	"dark",
	"adventurous",
	"funny",
	"inspirational",
	"thriller",
	"mystery",
	"educational",
	"technical",
}

// String returns the lower-case label of the mood.
func (m Mood) String() string {
	if m < 0 || int(m) >= NumMoods {
		return fmt.Sprintf("Mood(%d)", int(m))
	}
	return moodLabels[m]
}

// Valid reports whether m is a member of the enumeration.
func (m Mood) Valid() bool {
	return m >= 0 && int(m) < NumMoods
}

// Moods returns all moods in label order.
func Moods() []Mood {
	out := make([]Mood, NumMoods)
	for i := range out {
		out[i] = Mood(i)
	}
	return out
}

// MoodLabels returns the supported mood labels in enumeration order.
func MoodLabels() []string {
	out := make([]string, NumMoods)
	copy(out, moodLabels[:])
	return out
}

// ParseMood resolves a label to a Mood, ignoring case and surrounding space.
func ParseMood(label string) (Mood, error) {
	l := strings.ToLower(strings.TrimSpace(label))
	for i, name := range moodLabels {
		if name == l {
			return Mood(i), nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownMood, label)
}

// MoodScores holds one score per mood, indexed by Mood.
type MoodScores [NumMoods]float64

// Get returns the score for m, or 0 for an invalid mood.
func (s MoodScores) Get(m Mood) float64 {
	if !m.Valid() {
		return 0
	}
	return s[m]
}

// Map converts the scores to a label-keyed map.
func (s MoodScores) Map() map[string]float64 {
	out := make(map[string]float64, NumMoods)
	for i, v := range s {
		out[moodLabels[i]] = v
	}
	return out
}

// MarshalJSON encodes the scores as an object keyed by label.
func (s MoodScores) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes an object keyed by label. Unknown labels are rejected.
func (s *MoodScores) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out MoodScores
	for label, v := range m {
		mood, err := ParseMood(label)
		if err != nil {
			return err
		}
		out[mood] = v
	}
	*s = out
	return nil
}
