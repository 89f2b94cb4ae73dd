package lumen

import (
	"context"
	"fmt"
)

// SearchCallback produces results for a matching query. The return value may
// be a *Result, a []*Result, a map, a scalar, a slice of any of those, a
// jsonrpc.Producer for incremental emission, or nil for no results; see
// jsonrpc.Normalize for the coercion rules.
type SearchCallback func(ctx context.Context, q *Query) (any, error)

// SearchErrorCallback handles a failure of its handler's callback. Its
// return value is normalized exactly like a normal callback result.
type SearchErrorCallback func(ctx context.Context, q *Query, err error) (any, error)

// SearchHandler binds a condition to a callback. A nil Condition matches
// every query.
type SearchHandler struct {
	Name      string
	Condition Condition
	Callback  SearchCallback
	OnError   SearchErrorCallback
}

func (h *SearchHandler) matches(q *Query) bool {
	if h.Condition == nil {
		return true
	}
	q.SetConditionData(nil)
	return h.Condition.Matches(q)
}

func (h *SearchHandler) name(index int) string {
	if h.Name != "" {
		return h.Name
	}
	return fmt.Sprintf("handler-%d", index)
}

// searchRegistry holds the ordered handler list. Registration order is the
// tie-break rule: the first handler whose condition matches wins, and at most
// one callback runs per query. The default handler runs only when nothing
// matches.
type searchRegistry struct {
	handlers     []*SearchHandler
	defaultEntry *SearchHandler
}

func (r *searchRegistry) register(h *SearchHandler) {
	r.handlers = append(r.handlers, h)
}

func (r *searchRegistry) setDefault(h *SearchHandler) {
	r.defaultEntry = h
}

// resolve picks the handler for a query, or nil when nothing applies.
func (r *searchRegistry) resolve(q *Query) *SearchHandler {
	for _, h := range r.handlers {
		if h.matches(q) {
			return h
		}
	}
	return r.defaultEntry
}
