package sentiment

import "github.com/spacesedan/sentiscope/internal/models"

// Classify maps polarity to a label. Zero is Neutral only on exact equality;
// there is deliberately no tolerance band around it.
func Classify(polarity float64) models.Label {
	if polarity < 0 {
		return models.LabelNegative
	}
	if polarity == 0 {
		return models.LabelNeutral
	}
	return models.LabelPositive
}
