package jsonrpc

import (
	"context"
	"fmt"
	"strconv"
)

// Producer is a search callback's incremental form: it emits items one at a
// time through emit and returns when the sequence is complete. Each
// invocation produces a fresh one-shot sequence. emit blocks when the
// normalizer's buffer is full and returns the context error once the query
// has been cancelled.
type Producer func(ctx context.Context, emit func(item any) error) error

// producerBuffer bounds the channel between a producer and the normalizer.
const producerBuffer = 16

// Outcome is the normalized form of a search callback's return value: either
// an ordered result list or an error reply, never both.
type Outcome struct {
	Results []*Result
	Err     *ErrorResponse
}

// Response converts the outcome into the reply payload for a query-shaped
// request, attaching the given settings changes on the success path.
func (o Outcome) Response(changes map[string]any) Response {
	if o.Err != nil {
		return o.Err
	}
	return &QueryResponse{Results: o.Results, SettingsChanges: changes}
}

// Normalize coerces a search callback's return value into an Outcome.
//
// Coercion rules, per item: *Result passes through; a map is decoded strictly
// into a Result; strings, numbers and booleans become title-only results;
// nil becomes an empty result set. A slice normalizes each element in order.
// A Producer is drained through a bounded channel, preserving emission order;
// if it fails mid-production the partial results are discarded and the error
// is returned so the caller can take the handler's error path. An
// *ErrorResponse value passes through as the outcome's error branch.
func Normalize(ctx context.Context, value any) (Outcome, error) {
	switch v := value.(type) {
	case nil:
		return Outcome{Results: []*Result{}}, nil
	case *ErrorResponse:
		return Outcome{Err: v}, nil
	case Producer:
		return drainProducer(ctx, v)
	case func(ctx context.Context, emit func(item any) error) error:
		return drainProducer(ctx, Producer(v))
	case []*Result:
		for _, res := range v {
			if err := res.Validate(); err != nil {
				return Outcome{}, err
			}
		}
		if v == nil {
			v = []*Result{}
		}
		return Outcome{Results: v}, nil
	case []any:
		results := make([]*Result, 0, len(v))
		for _, item := range v {
			res, err := normalizeItem(item)
			if err != nil {
				return Outcome{}, err
			}
			results = append(results, res)
		}
		return Outcome{Results: results}, nil
	default:
		res, err := normalizeItem(value)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Results: []*Result{res}}, nil
	}
}

// normalizeItem coerces one value into a single Result.
func normalizeItem(item any) (*Result, error) {
	switch v := item.(type) {
	case *Result:
		if v == nil {
			return nil, InvalidParams("nil result in handler output", nil)
		}
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return v, nil
	case Result:
		if err := v.Validate(); err != nil {
			return nil, err
		}
		return &v, nil
	case map[string]any:
		return ResultFromMap(v)
	case string:
		return &Result{Title: v}, nil
	case bool:
		return &Result{Title: strconv.FormatBool(v)}, nil
	case int:
		return &Result{Title: strconv.Itoa(v)}, nil
	case int64:
		return &Result{Title: strconv.FormatInt(v, 10)}, nil
	case float64:
		return &Result{Title: strconv.FormatFloat(v, 'f', -1, 64)}, nil
	default:
		return nil, InvalidParams(fmt.Sprintf("cannot convert %T into a result", item), nil)
	}
}

// drainProducer runs the producer in its own goroutine and normalizes items
// in emission order. The producer always gets to observe channel closure, so
// a failed normalization does not leak the goroutine.
func drainProducer(ctx context.Context, produce Producer) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := make(chan any, producerBuffer)
	done := make(chan error, 1)

	go func() {
		defer close(items)
		done <- produce(ctx, func(item any) error {
			select {
			case items <- item:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var results []*Result
	var normErr error
	for item := range items {
		if normErr != nil {
			continue // drain so the producer can finish
		}
		res, err := normalizeItem(item)
		if err != nil {
			normErr = err
			cancel()
			continue
		}
		results = append(results, res)
	}

	if err := <-done; err != nil && normErr == nil {
		if ctx.Err() != nil && err == ctx.Err() {
			return Outcome{}, err
		}
		normErr = err
	}
	if normErr != nil {
		return Outcome{}, normErr
	}
	if results == nil {
		results = []*Result{}
	}
	return Outcome{Results: results}, nil
}
