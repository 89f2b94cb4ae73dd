package lumen

import (
	"regexp"
	"testing"
)

func queryFor(text, keyword string) *Query {
	return newQuery(rawQuery{Search: text, ActionKeyword: keyword}, 1)
}

func TestPlainTextCondition(t *testing.T) {
	tests := []struct {
		name string
		cond PlainTextCondition
		text string
		want bool
	}{
		{"exact match", PlainTextCondition{Text: "egg"}, "egg", true},
		{"exact mismatch", PlainTextCondition{Text: "egg"}, "eggs", false},
		{"substring match", PlainTextCondition{Text: "egg", Substring: true}, "scrambled eggs", true},
		{"substring mismatch", PlainTextCondition{Text: "egg", Substring: true}, "omelette", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Matches(queryFor(tt.text, "")); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRegexConditionStoresSubmatches(t *testing.T) {
	cond := RegexCondition{Pattern: regexp.MustCompile(`^convert (\d+) (\w+)$`)}
	q := queryFor("convert 12 eur", "")

	if !cond.Matches(q) {
		t.Fatal("pattern should match")
	}
	match, ok := q.ConditionData().([]string)
	if !ok || len(match) != 3 || match[1] != "12" || match[2] != "eur" {
		t.Errorf("condition data = %#v, want capture groups", q.ConditionData())
	}

	if cond.Matches(queryFor("convert eur", "")) {
		t.Error("non-matching text should not match")
	}
}

func TestKeywordCondition(t *testing.T) {
	tests := []struct {
		name    string
		cond    KeywordCondition
		keyword string
		want    bool
	}{
		{"allowed hit", KeywordCondition{Allowed: []string{"calc", "="}}, "calc", true},
		{"allowed miss", KeywordCondition{Allowed: []string{"calc"}}, "*", false},
		{"disallowed hit", KeywordCondition{Disallowed: []string{"*"}}, "*", false},
		{"disallowed miss", KeywordCondition{Disallowed: []string{"*"}}, "calc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Matches(queryFor("x", tt.keyword)); got != tt.want {
				t.Errorf("Matches(keyword=%q) = %v, want %v", tt.keyword, got, tt.want)
			}
		})
	}
}

func TestAllConditionCollectsChildData(t *testing.T) {
	cond := AllCondition{Conditions: []Condition{
		KeywordCondition{Allowed: []string{"*"}},
		RegexCondition{Pattern: regexp.MustCompile(`(\d+)`)},
	}}
	q := queryFor("take 5", "*")

	if !cond.Matches(q) {
		t.Fatal("all children match, condition should hold")
	}
	collected, ok := q.ConditionData().([]any)
	if !ok || len(collected) != 2 {
		t.Fatalf("condition data = %#v, want per-child slice", q.ConditionData())
	}
	if collected[0] != nil {
		t.Errorf("keyword child contributes no data, got %#v", collected[0])
	}
	if match, _ := collected[1].([]string); len(match) != 2 || match[1] != "5" {
		t.Errorf("regex child data = %#v", collected[1])
	}
}

func TestAllConditionShortCircuits(t *testing.T) {
	calls := 0
	counting := ConditionFunc(func(q *Query) bool { calls++; return true })
	cond := AllCondition{Conditions: []Condition{
		ConditionFunc(func(q *Query) bool { return false }),
		counting,
	}}

	q := queryFor("x", "")
	if cond.Matches(q) {
		t.Fatal("condition should fail")
	}
	if calls != 0 {
		t.Error("evaluation should stop at the first false child")
	}
	if q.ConditionData() != nil {
		t.Error("failed match must leave no condition data")
	}
}

func TestAnyConditionKeepsWinnersData(t *testing.T) {
	calls := 0
	cond := AnyCondition{Conditions: []Condition{
		ConditionFunc(func(q *Query) bool { return false }),
		RegexCondition{Pattern: regexp.MustCompile(`egg`)},
		ConditionFunc(func(q *Query) bool { calls++; return true }),
	}}

	q := queryFor("egg", "")
	if !cond.Matches(q) {
		t.Fatal("second child matches, condition should hold")
	}
	if calls != 0 {
		t.Error("evaluation should stop at the first true child")
	}
	if match, _ := q.ConditionData().([]string); len(match) != 1 {
		t.Errorf("winner's condition data lost: %#v", q.ConditionData())
	}

	empty := AnyCondition{}
	if empty.Matches(queryFor("egg", "")) {
		t.Error("empty any-condition must not match")
	}
}
