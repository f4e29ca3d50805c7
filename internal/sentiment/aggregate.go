package sentiment

import "github.com/spacesedan/sentiscope/internal/models"

// Aggregate counts records per label. Every label is present in the result
// and records carrying an unknown label are not counted.
func Aggregate(records []models.ClassifiedRecord) models.AggregateCounts {
	counts := models.NewAggregateCounts()
	for _, r := range records {
		if !r.Label.Valid() {
			continue
		}
		counts[r.Label]++
	}
	return counts
}
