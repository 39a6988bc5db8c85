package domain

// NoDataSentinel is the formatted-context value when retrieval found nothing.
// The agent layer must treat it as "no matching content", never as an error.
const NoDataSentinel = "NO_DATA"

// RAGContext is the single value the agent layer consumes.
// Invariant: HasData == false iff Results is empty, and FormattedContext is
// NoDataSentinel iff !HasData.
type RAGContext struct {
	Query            string
	Results          []RetrievalResult // ordered, best first
	FormattedContext string
	Citations        []string
	HasData          bool
}

// EmptyContext returns the no-data context for a query.
func EmptyContext(query string) RAGContext {
	return RAGContext{
		Query:            query,
		FormattedContext: NoDataSentinel,
		HasData:          false,
	}
}
