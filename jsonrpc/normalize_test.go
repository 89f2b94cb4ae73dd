package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeScalars(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantTitle string
	}{
		{"string", "You found the egg!", "You found the egg!"},
		{"bool", true, "true"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"float", 3.5, "3.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(context.Background(), tt.value)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if len(out.Results) != 1 {
				t.Fatalf("want 1 result, got %d", len(out.Results))
			}
			if out.Results[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", out.Results[0].Title, tt.wantTitle)
			}
		})
	}
}

func TestNormalizeNilIsEmpty(t *testing.T) {
	out, err := Normalize(context.Background(), nil)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out.Results == nil || len(out.Results) != 0 {
		t.Errorf("want empty non-nil result list, got %#v", out.Results)
	}
}

func TestNormalizeListIdempotent(t *testing.T) {
	in := []*Result{{Title: "a"}, {Title: "b"}}
	out, err := Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(out.Results) != 2 || out.Results[0] != in[0] || out.Results[1] != in[1] {
		t.Error("already-normalized list must pass through unchanged")
	}

	// Running the output through again changes nothing.
	again, err := Normalize(context.Background(), out.Results)
	if err != nil {
		t.Fatalf("second Normalize() error = %v", err)
	}
	if len(again.Results) != 2 || again.Results[0] != in[0] {
		t.Error("normalization is not idempotent")
	}
}

func TestNormalizeMixedList(t *testing.T) {
	out, err := Normalize(context.Background(), []any{
		"plain",
		&Result{Title: "typed"},
		map[string]any{"title": "mapped", "score": 10},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(out.Results) != 3 {
		t.Fatalf("want 3 results, got %d", len(out.Results))
	}
	if out.Results[2].Score != 10 {
		t.Errorf("map score not decoded: %d", out.Results[2].Score)
	}
}

func TestNormalizeRejections(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"unknown map field", map[string]any{"title": "x", "nonsense": 1}},
		{"unconvertible type", struct{ X int }{1}},
		{"missing title", &Result{Sub: "no title"}},
		{"highlight out of range", &Result{Title: "ab", TitleHighlightData: []int{5}}},
		{"nil result in list", []any{(*Result)(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(context.Background(), tt.value)
			perr, ok := AsError(err)
			if !ok {
				t.Fatalf("want *Error, got %v", err)
			}
			if perr.Code != CodeInvalidParams {
				t.Errorf("code = %d, want %d", perr.Code, CodeInvalidParams)
			}
		})
	}
}

func TestNormalizeErrorResponsePassesThrough(t *testing.T) {
	resp := NewErrorResponse(InternalError("boom", nil))
	out, err := Normalize(context.Background(), resp)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if out.Err != resp {
		t.Error("error response should land on the outcome's error branch")
	}
	if out.Response(nil) != resp {
		t.Error("Response() should surface the error branch")
	}
}

func TestNormalizeProducerOrder(t *testing.T) {
	produce := Producer(func(ctx context.Context, emit func(any) error) error {
		for i := 0; i < 40; i++ { // more than the internal buffer
			if err := emit(fmt.Sprintf("item-%02d", i)); err != nil {
				return err
			}
		}
		return nil
	})

	out, err := Normalize(context.Background(), produce)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(out.Results) != 40 {
		t.Fatalf("want 40 results, got %d", len(out.Results))
	}
	for i, res := range out.Results {
		if want := fmt.Sprintf("item-%02d", i); res.Title != want {
			t.Fatalf("emission order broken at %d: got %q", i, res.Title)
		}
	}
}

func TestNormalizeProducerFailureDiscardsPartials(t *testing.T) {
	errBoom := errors.New("boom")
	produce := Producer(func(ctx context.Context, emit func(any) error) error {
		if err := emit("first"); err != nil {
			return err
		}
		return errBoom
	})

	out, err := Normalize(context.Background(), produce)
	if !errors.Is(err, errBoom) {
		t.Fatalf("want producer error, got %v", err)
	}
	if len(out.Results) != 0 {
		t.Errorf("partial results must be discarded, got %d", len(out.Results))
	}
}

func TestNormalizeProducerBadItemStopsProducer(t *testing.T) {
	emitted := 0
	produce := Producer(func(ctx context.Context, emit func(any) error) error {
		for i := 0; i < 1000; i++ {
			emitted++
			if err := emit(struct{}{}); err != nil {
				return err
			}
		}
		return nil
	})

	_, err := Normalize(context.Background(), produce)
	if _, ok := AsError(err); !ok {
		t.Fatalf("want invalid-params error, got %v", err)
	}
	if emitted == 1000 {
		t.Error("producer should have been cancelled before finishing")
	}
}

func TestNormalizeProducerHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	produce := Producer(func(ctx context.Context, emit func(any) error) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := Normalize(ctx, produce)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestNormalizeBareFuncForm(t *testing.T) {
	fn := func(ctx context.Context, emit func(any) error) error {
		return emit("from func")
	}
	out, err := Normalize(context.Background(), fn)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Title != "from func" {
		t.Errorf("bare function form not treated as producer: %+v", out.Results)
	}
}
