package emotion

import (
	"context"
	"strconv"
	"strings"
)

// Labels are the emotion classes in model output order: LABEL_i is Labels[i].
var Labels = []string{"sadness", "joy", "love", "anger", "fear", "surprise"}

// Scores holds one score per entry of Labels, in the same order.
type Scores [6]float64

type Classifier interface {
	Classify(ctx context.Context, text string) (Scores, error)
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// labelIndex maps "LABEL_3" or "anger" to its index in Labels.
func labelIndex(label string) (int, bool) {
	label = strings.ToLower(strings.TrimSpace(label))

	if rest, ok := strings.CutPrefix(label, "label_"); ok {
		i, err := strconv.Atoi(rest)
		if err != nil || i < 0 || i >= len(Labels) {
			return 0, false
		}
		return i, true
	}

	for i, name := range Labels {
		if name == label {
			return i, true
		}
	}

	return 0, false
}

// Top returns the highest scoring label.
func (s Scores) Top() (string, float64) {
	best := 0
	for i := range s {
		if s[i] > s[best] {
			best = i
		}
	}

	return Labels[best], s[best]
}

// Cells formats the scores as table cells.
func (s Scores) Cells() []string {
	cells := make([]string, len(s))
	for i, v := range s {
		cells[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	return cells
}

// EmptyCells is written when a text has no scores.
func EmptyCells() []string {
	return make([]string, len(Labels))
}
