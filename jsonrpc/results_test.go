package jsonrpc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResultSlugStable(t *testing.T) {
	res := &Result{Title: "a"}
	first := res.Slug()
	if first == "" {
		t.Fatal("slug not assigned")
	}
	if res.Slug() != first {
		t.Error("slug changed between calls")
	}
	if other := (&Result{Title: "b"}).Slug(); other == first {
		t.Error("distinct results share a slug")
	}
}

func TestResultMarshalWireShape(t *testing.T) {
	res := &Result{
		Title:              "Open file",
		Sub:                "~/notes.txt",
		Icon:               "icons/file.png",
		TitleHighlightData: []int{0, 1},
		CopyText:           "~/notes.txt",
		Score:              50,
	}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"title", "subTitle", "icoPath", "titleHighlightData", "copyText", "score", "jsonRPCAction", "contextData"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire payload missing %q: %s", key, data)
		}
	}

	action := wire["jsonRPCAction"].(map[string]any)
	method, _ := action["method"].(string)
	if !strings.HasPrefix(method, ActionMethodPrefix) {
		t.Errorf("action method %q missing prefix %q", method, ActionMethodPrefix)
	}
	slug := strings.TrimPrefix(method, ActionMethodPrefix)

	ctxData := wire["contextData"].([]any)
	if len(ctxData) != 1 || ctxData[0] != slug {
		t.Errorf("contextData %v does not round-trip the slug %q", ctxData, slug)
	}
}

func TestResultMarshalProgressBar(t *testing.T) {
	tests := []struct {
		name      string
		bar       *ProgressBar
		wantColor string
	}{
		{"default color", &ProgressBar{Percentage: 40}, DefaultProgressBarColor},
		{"explicit color", &ProgressBar{Percentage: 40, Color: "#ff0000"}, "#ff0000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(&Result{ProgressBar: tt.bar})
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var wire map[string]any
			if err := json.Unmarshal(data, &wire); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if pct, _ := wire["ProgressBar"].(float64); pct != 40 {
				t.Errorf("ProgressBar = %v, want 40", wire["ProgressBar"])
			}
			if wire["ProgressBarColor"] != tt.wantColor {
				t.Errorf("ProgressBarColor = %v, want %s", wire["ProgressBarColor"], tt.wantColor)
			}
		})
	}
}

func TestResultMarshalOmitsUnsetScore(t *testing.T) {
	data, err := json.Marshal(&Result{Title: "x"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), `"score"`) {
		t.Errorf("unset score should be omitted: %s", data)
	}
}

func TestResultFromMap(t *testing.T) {
	res, err := ResultFromMap(map[string]any{
		"title":    "mapped",
		"subTitle": "sub",
		"score":    12,
		"glyph":    map[string]any{"Glyph": "", "FontFamily": "FA"},
	})
	if err != nil {
		t.Fatalf("ResultFromMap() error = %v", err)
	}
	if res.Title != "mapped" || res.Sub != "sub" || res.Score != 12 {
		t.Errorf("fields not decoded: %+v", res)
	}
	if res.Glyph == nil || res.Glyph.FontFamily != "FA" {
		t.Errorf("glyph not decoded: %+v", res.Glyph)
	}
}

func TestResultFromMapRejectsUnknownFields(t *testing.T) {
	_, err := ResultFromMap(map[string]any{"title": "x", "titel": "typo"})
	perr, ok := AsError(err)
	if !ok || perr.Code != CodeInvalidParams {
		t.Fatalf("want invalid-params for unknown field, got %v", err)
	}
}

func TestResultValidate(t *testing.T) {
	tests := []struct {
		name    string
		res     Result
		wantErr bool
	}{
		{"title only", Result{Title: "ok"}, false},
		{"progress bar without title", Result{ProgressBar: &ProgressBar{Percentage: 10}}, false},
		{"empty", Result{}, true},
		{"highlight in range", Result{Title: "héllo", TitleHighlightData: []int{4}}, false},
		{"highlight past rune length", Result{Title: "héllo", TitleHighlightData: []int{5}}, true},
		{"negative highlight", Result{Title: "ok", TitleHighlightData: []int{-1}}, true},
		{"progress over 100", Result{ProgressBar: &ProgressBar{Percentage: 101}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
