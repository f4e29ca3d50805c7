package sentiment

import (
	"fmt"
	"math"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/spacesedan/sentiscope/internal/models"
)

// Scorer rates cleaned text. Subjectivity is in [0, 1] and polarity in
// [-1, 1]. Implementations must be deterministic and return (0, 0) for
// blank text.
type Scorer interface {
	Score(text string) (subjectivity float64, polarity float64, err error)
}

// VaderScorer scores text with the VADER lexicon. The analyzer is read-only
// after construction and safe for concurrent use.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score maps VADER's compound score to polarity and the share of
// sentiment-bearing text (pos + neg) to subjectivity.
func (v *VaderScorer) Score(text string) (subjectivity float64, polarity float64, err error) {
	if strings.TrimSpace(text) == "" {
		return 0, 0, nil
	}

	defer func() {
		if r := recover(); r != nil {
			subjectivity, polarity = 0, 0
			err = fmt.Errorf("%w: %v", models.ErrScorerFailure, r)
		}
	}()

	scores := v.analyzer.PolarityScores(text)
	subjectivity = scores.Positive + scores.Negative
	polarity = scores.Compound
	if math.IsNaN(subjectivity) || math.IsNaN(polarity) {
		return 0, 0, fmt.Errorf("%w: analyzer returned NaN", models.ErrScorerFailure)
	}

	return clamp(subjectivity, 0, 1), clamp(polarity, -1, 1), nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
