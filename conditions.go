package lumen

import (
	"regexp"
	"slices"
	"strings"
)

// Condition decides whether a search handler should run for a query.
// Conditions are pure predicates; a condition may stash match details on the
// query via SetConditionData before returning true.
type Condition interface {
	Matches(q *Query) bool
}

// ConditionFunc adapts a plain function into a Condition.
type ConditionFunc func(q *Query) bool

func (f ConditionFunc) Matches(q *Query) bool { return f(q) }

// PlainTextCondition matches on the query text: exact equality by default,
// containment when Substring is set.
type PlainTextCondition struct {
	Text      string
	Substring bool
}

func (c PlainTextCondition) Matches(q *Query) bool {
	if c.Substring {
		return strings.Contains(q.Text(), c.Text)
	}
	return q.Text() == c.Text
}

// RegexCondition matches the query text against a pattern and stores the
// submatches as the query's condition data.
type RegexCondition struct {
	Pattern *regexp.Regexp
}

func (c RegexCondition) Matches(q *Query) bool {
	match := c.Pattern.FindStringSubmatch(q.Text())
	if match == nil {
		return false
	}
	q.SetConditionData(match)
	return true
}

// KeywordCondition matches on the action keyword used to trigger the plugin.
// Exactly one of Allowed and Disallowed should be set.
type KeywordCondition struct {
	Allowed    []string
	Disallowed []string
}

func (c KeywordCondition) Matches(q *Query) bool {
	if len(c.Disallowed) > 0 {
		return !slices.Contains(c.Disallowed, q.Keyword())
	}
	return slices.Contains(c.Allowed, q.Keyword())
}

// AllCondition holds only if every child condition holds. Evaluation stops
// at the first false; the condition data of the children is collected in
// order for the handler.
type AllCondition struct {
	Conditions []Condition
}

func (c AllCondition) Matches(q *Query) bool {
	collected := make([]any, 0, len(c.Conditions))
	for _, child := range c.Conditions {
		q.SetConditionData(nil)
		if !child.Matches(q) {
			q.SetConditionData(nil)
			return false
		}
		collected = append(collected, q.ConditionData())
	}
	q.SetConditionData(collected)
	return true
}

// AnyCondition holds if at least one child condition holds. Evaluation stops
// at the first true; that child's condition data is kept.
type AnyCondition struct {
	Conditions []Condition
}

func (c AnyCondition) Matches(q *Query) bool {
	for _, child := range c.Conditions {
		q.SetConditionData(nil)
		if child.Matches(q) {
			return true
		}
	}
	q.SetConditionData(nil)
	return false
}
