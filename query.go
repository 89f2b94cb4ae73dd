package lumen

import "strings"

// rawQuery is the wire shape of a query request's first parameter. Hosts send
// "search"; the object-form shorthand uses "text".
type rawQuery struct {
	Search        string `json:"search"`
	Text          string `json:"text"`
	RawQuery      string `json:"rawQuery"`
	IsReQuery     bool   `json:"isReQuery"`
	ActionKeyword string `json:"actionKeyword"`
}

// Query is one search request from the host. Immutable once constructed,
// except for the condition-data slot a matching condition may fill before the
// handler runs.
type Query struct {
	text      string
	rawText   string
	keyword   string
	isRequery bool
	requestID int64
	words     []string

	conditionData any
}

func newQuery(raw rawQuery, requestID int64) *Query {
	text := raw.Search
	if text == "" {
		text = raw.Text
	}
	keyword := raw.ActionKeyword
	if keyword == "" {
		keyword = "*"
	}
	rawText := raw.RawQuery
	if rawText == "" {
		rawText = strings.TrimSpace(strings.TrimPrefix(keyword, "*") + " " + text)
	}
	return &Query{
		text:      text,
		rawText:   rawText,
		keyword:   keyword,
		isRequery: raw.IsReQuery,
		requestID: requestID,
		words:     strings.Fields(text),
	}
}

// withText derives a query carrying the given text but the same request
// otherwise. Search groups use it to hand sub-handlers the text with the
// group prefix stripped.
func (q *Query) withText(text string) *Query {
	derived := *q
	derived.text = text
	derived.words = strings.Fields(text)
	return &derived
}

// Text is the query text with the action keyword stripped.
func (q *Query) Text() string { return q.text }

// RawText is the complete query as typed, keyword included.
func (q *Query) RawText() string { return q.rawText }

// Keyword is the action keyword that triggered the plugin, "*" if none.
func (q *Query) Keyword() string { return q.keyword }

// IsRequery reports whether the host re-sent an unchanged query.
func (q *Query) IsRequery() bool { return q.isRequery }

// RequestID is the host-assigned token correlating this query's response and
// cancellation.
func (q *Query) RequestID() int64 { return q.requestID }

// Words is the tokenized query text.
func (q *Query) Words() []string { return q.words }

// ConditionData returns whatever the matching condition stored, such as the
// capture groups of a RegexCondition.
func (q *Query) ConditionData() any { return q.conditionData }

// SetConditionData stores per-match data for the handler to read. Called by
// conditions during matching.
func (q *Query) SetConditionData(v any) { q.conditionData = v }
