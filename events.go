package lumen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattjoyce/lumen/internal/log"
	"github.com/mattjoyce/lumen/jsonrpc"
)

// EventHandler is a callback bound to one named lifecycle event. A nil
// response is treated as a trivial success reply.
type EventHandler func(ctx context.Context, params []json.RawMessage) (jsonrpc.Response, error)

// ErrorHandler is the recovery hook for failed event callbacks. It receives
// the original event name, the failure, and the original params.
type ErrorHandler func(ctx context.Context, event string, err error, params []json.RawMessage) (jsonrpc.Response, error)

// eventDispatcher maps event names to exactly one callback each. Registering
// a name twice overwrites the previous callback.
type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]EventHandler
	onError  ErrorHandler
	logger   *slog.Logger
}

func newEventDispatcher() *eventDispatcher {
	return &eventDispatcher{
		handlers: make(map[string]EventHandler),
		logger:   log.WithComponent("events"),
	}
}

func (d *eventDispatcher) register(name string, h EventHandler) {
	d.mu.Lock()
	d.handlers[name] = h
	d.mu.Unlock()
}

func (d *eventDispatcher) setErrorHandler(h ErrorHandler) {
	d.mu.Lock()
	d.onError = h
	d.mu.Unlock()
}

func (d *eventDispatcher) get(name string) EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[name]
}

// dispatch runs the callback for name. An unregistered name is a no-op
// success. A failing callback re-enters via the error hook; if the hook is
// missing or also fails, a generic internal-error reply is produced. A
// cancelled context propagates so the run loop can suppress the reply.
func (d *eventDispatcher) dispatch(ctx context.Context, name string, params []json.RawMessage) (jsonrpc.Response, error) {
	h := d.get(name)
	if h == nil {
		d.logger.Debug("no callback registered for event", "event", name)
		return nil, nil
	}

	resp, err := d.call(ctx, name, h, params)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	return d.dispatchError(ctx, name, err, params)
}

// dispatchError routes a callback failure through the error hook.
func (d *eventDispatcher) dispatchError(ctx context.Context, event string, cause error, params []json.RawMessage) (jsonrpc.Response, error) {
	d.mu.RLock()
	hook := d.onError
	d.mu.RUnlock()

	if hook == nil {
		d.logger.Error("ignoring exception in event", "event", event, "error", cause)
		return jsonrpc.InternalErrorResponse(cause), nil
	}

	resp, err := func() (resp jsonrpc.Response, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("error hook panicked: %v", r)
			}
		}()
		return hook(ctx, event, cause, params)
	}()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		d.logger.Error("error hook failed", "event", event, "cause", cause, "error", err)
		return jsonrpc.InternalErrorResponse(cause), nil
	}
	if resp == nil {
		resp = jsonrpc.InternalErrorResponse(cause)
	}
	return resp, nil
}

// call invokes one callback, converting panics into errors so a handler can
// never unwind the run loop.
func (d *eventDispatcher) call(ctx context.Context, name string, h EventHandler, params []json.RawMessage) (resp jsonrpc.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event %q panicked: %v", name, r)
		}
	}()
	return h(ctx, params)
}
