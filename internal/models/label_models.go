package models

type Label string

const (
	LabelNegative Label = "Negative"
	LabelNeutral  Label = "Neutral"
	LabelPositive Label = "Positive"
)

// Labels returns every label in display order.
func Labels() []Label {
	return []Label{LabelNegative, LabelNeutral, LabelPositive}
}

func (l Label) Valid() bool {
	switch l {
	case LabelNegative, LabelNeutral, LabelPositive:
		return true
	}
	return false
}

// AggregateCounts maps each label to the number of records carrying it.
// All three labels are always present, zero counts included.
type AggregateCounts map[Label]int

func NewAggregateCounts() AggregateCounts {
	counts := make(AggregateCounts, 3)
	for _, l := range Labels() {
		counts[l] = 0
	}
	return counts
}

func (c AggregateCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
