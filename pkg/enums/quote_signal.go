package enums

// QuoteSignal summarises what a requirement's quotes say about it, ordered by precedence.
type QuoteSignal string

const (
	QuoteSignalNone         QuoteSignal = "none"
	QuoteSignalResponded    QuoteSignal = "responded"
	QuoteSignalRejectedOnly QuoteSignal = "rejected_only"
	QuoteSignalSelected     QuoteSignal = "selected"
)

var quoteSignalRank = map[QuoteSignal]int{
	QuoteSignalNone:         0,
	QuoteSignalResponded:    1,
	QuoteSignalRejectedOnly: 2,
	QuoteSignalSelected:     3,
}

// Outranks reports whether s takes precedence over other.
func (s QuoteSignal) Outranks(other QuoteSignal) bool {
	return quoteSignalRank[s] > quoteSignalRank[other]
}
