package sentiment

import (
	"math"
	"testing"

	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		polarity float64
		want     models.Label
	}{
		{-1, models.LabelNegative},
		{-0.5, models.LabelNegative},
		{-math.SmallestNonzeroFloat64, models.LabelNegative},
		{0, models.LabelNeutral},
		{math.Copysign(0, -1), models.LabelNeutral},
		{math.SmallestNonzeroFloat64, models.LabelPositive},
		{1e-9, models.LabelPositive},
		{1, models.LabelPositive},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.polarity), "polarity %v", tt.polarity)
	}
}

// Values arbitrarily close to zero are not Neutral; only 0.0 itself is.
func TestClassifyExactZeroOnly(t *testing.T) {
	assert.Equal(t, models.LabelNeutral, Classify(0.0))
	assert.Equal(t, models.LabelPositive, Classify(1e-300))
	assert.Equal(t, models.LabelNegative, Classify(-1e-300))
}

func TestClassifyIsTotal(t *testing.T) {
	for p := -1.0; p <= 1.0; p += 0.001 {
		assert.True(t, Classify(p).Valid(), "polarity %v", p)
	}
}
