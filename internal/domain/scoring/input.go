package scoring

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Clamp bounds x to [0, maxScore]. NaN and negative values become 0.
// Clamp(Clamp(x, m), m) == Clamp(x, m) for every x.
func Clamp(x, maxScore float64) float64 {
	if maxScore < 0 || math.IsNaN(maxScore) {
		maxScore = 0
	}
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > maxScore:
		return maxScore
	default:
		return x
	}
}

// parse reads a free-form numeric string. Surrounding space is ignored.
// Magnitudes beyond float64 parse to a signed infinity.
func parse(text string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) || !errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, false
		}
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ScoreInput is the entry state of one (team, criterion) cell: the text the
// judge typed and the last accepted value. Invalid intermediate text is kept
// for display but never reaches the accepted value.
type ScoreInput struct {
	text     string
	value    float64
	maxScore float64
}

// NewScoreInput starts an input at an already accepted value.
func NewScoreInput(value, maxScore float64) *ScoreInput {
	v := Clamp(value, maxScore)
	return &ScoreInput{text: format(v), value: v, maxScore: maxScore}
}

// Change records a keystroke-level edit. The text is accepted only when it
// parses to a number inside [0, maxScore]; it reports whether it was.
func (in *ScoreInput) Change(text string) bool {
	in.text = text
	v, ok := parse(text)
	if !ok || v < 0 || v > in.maxScore {
		return false
	}
	in.value = v
	return true
}

// Commit finalizes the retained text: unparseable or negative text becomes
// 0 and text above the bound becomes maxScore. Text that Change already
// accepted is left as typed.
func (in *ScoreInput) Commit() float64 {
	v, ok := parse(in.text)
	switch {
	case !ok || v < 0:
		in.value = 0
		in.text = format(0)
	case v > in.maxScore:
		in.value = in.maxScore
		in.text = format(in.maxScore)
	}
	return in.value
}

// Text is the retained display text.
func (in *ScoreInput) Text() string { return in.text }

// Value is the accepted score; always within [0, maxScore].
func (in *ScoreInput) Value() float64 { return in.value }

// MaxScore is the bound of this input.
func (in *ScoreInput) MaxScore() float64 { return in.maxScore }

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
