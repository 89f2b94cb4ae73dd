package lumen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattjoyce/lumen/flow"
	"github.com/mattjoyce/lumen/internal/log"
	"github.com/mattjoyce/lumen/jsonrpc"
)

// Event names with built-in routing. Authors may register callbacks for
// Initialization (fired after initialize completes) and Close, and replace
// the error hook via OnError. Both names are distinct from the wire methods
// that fire them, so the built-in protocol handling stays in place when a
// callback is registered.
const (
	EventInitialization = "initialization"
	EventClose          = "shutdown"
)

// Options configure a Plugin.
type Options struct {
	// SettingsNoUpdate freezes host-pushed settings snapshots, for plugins
	// that manage settings through their own menu.
	SettingsNoUpdate bool
	// IgnoreCancellations drops the host's cancellation notifications.
	IgnoreCancellations bool
	// CancelSupersededQueries cancels the context of an in-flight query
	// handler when a newer query arrives, instead of letting it finish and
	// discarding its response.
	CancelSupersededQueries bool
	// LogLevel sets the diagnostic log level ("DEBUG", "INFO", "WARN",
	// "ERROR"). Defaults to INFO.
	LogLevel string
	// LogWriter overrides the diagnostic sink. Defaults to stderr; never
	// stdout, which carries the protocol.
	LogWriter io.Writer
}

// Plugin is the explicit context object threaded through the run loop and
// all dispatch entry points: the handler registries, the per-query result
// index, the settings snapshot, and the connection to the host.
type Plugin struct {
	opts   Options
	logger *slog.Logger

	client   *jsonrpc.Client
	api      *flow.API
	events   *eventDispatcher
	search   *searchRegistry
	settings *Settings

	mu        sync.Mutex
	results   map[string]*jsonrpc.Result
	metadata  *Metadata
	lastQuery *Query
}

// New creates a Plugin and wires the default lifecycle events.
func New(opts Options) *Plugin {
	p := &Plugin{
		opts:     opts,
		logger:   log.WithComponent("plugin"),
		events:   newEventDispatcher(),
		search:   &searchRegistry{},
		settings: newSettings(opts.SettingsNoUpdate),
		results:  make(map[string]*jsonrpc.Result),
	}
	p.client = jsonrpc.NewClient(p, jsonrpc.ClientOptions{
		IgnoreCancellations:     opts.IgnoreCancellations,
		CancelSupersededQueries: opts.CancelSupersededQueries,
	})
	p.api = flow.New(p.client)

	p.events.register(jsonrpc.MethodInitialize, p.handleInitialize)
	p.events.register(jsonrpc.MethodQuery, p.handleQuery)
	p.events.register(jsonrpc.MethodContextMenu, p.handleContextMenu)
	p.events.register(jsonrpc.MethodClose, p.handleClose)
	return p
}

// API exposes the launcher's remote calls.
func (p *Plugin) API() *flow.API { return p.api }

// Settings exposes the settings snapshot delivered by the host.
func (p *Plugin) Settings() *Settings { return p.settings }

// Metadata returns the host-supplied plugin metadata, nil before initialize.
func (p *Plugin) Metadata() *Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metadata
}

// LastQuery returns the most recent query the host sent, nil before the
// first one.
func (p *Plugin) LastQuery() *Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastQuery
}

// RegisterSearchHandler appends a handler to the registry. Handlers are
// evaluated in registration order; the first matching condition wins.
func (p *Plugin) RegisterSearchHandler(h *SearchHandler) {
	p.search.register(h)
	p.logger.Debug("registered search handler", "handler", h.name(len(p.search.handlers)-1))
}

// RegisterSearch is shorthand for registering a condition/callback pair. A
// nil condition matches every query.
func (p *Plugin) RegisterSearch(cond Condition, cb SearchCallback) {
	p.RegisterSearchHandler(&SearchHandler{Condition: cond, Callback: cb})
}

// RegisterSearchGroup mounts a prefix-routed handler group on the registry.
// The group matches any query whose first token is its prefix and routes the
// rest to its sub-handlers.
func (p *Plugin) RegisterSearchGroup(g *SearchGroup) {
	g.plugin = p
	p.RegisterSearchHandler(&SearchHandler{
		Name:      "group:" + g.prefix,
		Condition: ConditionFunc(g.matches),
		Callback:  g.callback,
	})
}

// SetDefaultSearchHandler designates the handler that runs when no
// registered condition matches.
func (p *Plugin) SetDefaultSearchHandler(h *SearchHandler) {
	p.search.setDefault(h)
}

// RegisterEvent binds a callback to an event name. Registering the same name
// twice overwrites the earlier callback.
func (p *Plugin) RegisterEvent(name string, h EventHandler) {
	switch name {
	case jsonrpc.MethodQuery, jsonrpc.MethodContextMenu, jsonrpc.MethodInitialize, jsonrpc.MethodClose:
		p.logger.Warn("overriding a built-in protocol event", "event", name)
	}
	p.events.register(name, h)
}

// OnInitialization registers a callback fired once, after the host's
// initialize request has been answered.
func (p *Plugin) OnInitialization(fn func(ctx context.Context) error) {
	p.events.register(EventInitialization, func(ctx context.Context, _ []json.RawMessage) (jsonrpc.Response, error) {
		return nil, fn(ctx)
	})
}

// OnClose registers a callback fired when the host requests shutdown. The
// reply to close is delivered even if fn fails.
func (p *Plugin) OnClose(fn func(ctx context.Context) error) {
	p.events.register(EventClose, func(ctx context.Context, _ []json.RawMessage) (jsonrpc.Response, error) {
		return &jsonrpc.ExecuteResponse{Hide: false}, fn(ctx)
	})
}

// OnError replaces the error-recovery hook invoked when an event callback or
// an un-handled search callback fails.
func (p *Plugin) OnError(h ErrorHandler) {
	p.events.setErrorHandler(h)
}

// Run serves the host connection on stdin/stdout until shutdown. This is the
// plugin's main loop; it returns when the host closes the stream.
func (p *Plugin) Run(ctx context.Context) error {
	log.Setup(p.opts.LogLevel, p.opts.LogWriter)
	return p.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve is Run with an explicit stream pair, for tests and harnesses.
func (p *Plugin) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return p.client.Serve(ctx, r, w)
}

// Route implements jsonrpc.Router: it maps a host-initiated call onto the
// action index or the event dispatcher.
func (p *Plugin) Route(ctx context.Context, method string, params []json.RawMessage) (jsonrpc.Response, error) {
	if strings.HasPrefix(method, jsonrpc.ActionMethodPrefix) {
		return p.handleAction(ctx, method)
	}

	if p.events.get(method) == nil {
		if method == jsonrpc.MethodClose {
			// The host deadlocks without a close reply, so the absence of a
			// callback still answers with a trivial success.
			return &jsonrpc.ExecuteResponse{Hide: false}, nil
		}
		return nil, jsonrpc.ErrUnknownMethod
	}

	resp, err := p.events.dispatch(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &jsonrpc.ExecuteResponse{Hide: false}
	}
	return resp, nil
}

// handleInitialize captures metadata, fires the author's initialization
// event, and acknowledges the host.
func (p *Plugin) handleInitialize(ctx context.Context, params []json.RawMessage) (jsonrpc.Response, error) {
	var init initializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params[0], &init); err != nil {
			return nil, jsonrpc.InvalidParams("malformed initialize params", err.Error())
		}
	}
	if len(init.CurrentPluginMetadata) > 0 {
		var meta Metadata
		if err := json.Unmarshal(init.CurrentPluginMetadata, &meta); err != nil {
			return nil, jsonrpc.InvalidParams("malformed plugin metadata", err.Error())
		}
		p.mu.Lock()
		p.metadata = &meta
		p.mu.Unlock()
	}

	if resp, err := p.events.dispatch(ctx, EventInitialization, nil); err != nil {
		return resp, err
	}
	return &jsonrpc.ExecuteResponse{Hide: false}, nil
}

// handleClose runs the author's close callback through the error path and
// always produces a reply.
func (p *Plugin) handleClose(ctx context.Context, params []json.RawMessage) (jsonrpc.Response, error) {
	resp, err := p.events.dispatch(ctx, EventClose, params)
	if err != nil && !errors.Is(err, context.Canceled) {
		return jsonrpc.InternalErrorResponse(err), nil
	}
	if resp == nil {
		resp = &jsonrpc.ExecuteResponse{Hide: false}
	}
	return resp, nil
}

// handleQuery drives the received → matching → executing → normalizing →
// responding pipeline for one query request.
func (p *Plugin) handleQuery(ctx context.Context, params []json.RawMessage) (jsonrpc.Response, error) {
	if len(params) == 0 {
		return nil, jsonrpc.InvalidParams("query request missing params", nil)
	}

	var raw rawQuery
	if err := json.Unmarshal(params[0], &raw); err != nil {
		return nil, jsonrpc.InvalidParams("malformed query payload", err.Error())
	}
	if len(params) > 1 {
		if err := p.settings.update(params[1]); err != nil {
			p.logger.Warn("discarding malformed settings snapshot", "error", err)
		}
	}

	requestID, _ := jsonrpc.RequestID(ctx)
	query := newQuery(raw, requestID)

	p.mu.Lock()
	p.lastQuery = query
	p.results = make(map[string]*jsonrpc.Result)
	p.mu.Unlock()

	outcome := p.runSearch(ctx, query)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.indexQueryResults(requestID, outcome.Results)
	return outcome.Response(p.settings.popChanges()), nil
}

// runSearch resolves and executes the handler for a query, routing failures
// through the handler's own error callback first, then the event error hook.
func (p *Plugin) runSearch(ctx context.Context, query *Query) jsonrpc.Outcome {
	handler := p.search.resolve(query)
	if handler == nil || handler.Callback == nil {
		return jsonrpc.Outcome{Results: []*jsonrpc.Result{}}
	}

	value, err := p.callSearch(ctx, handler, query)
	if err == nil {
		outcome, nerr := jsonrpc.Normalize(ctx, value)
		if nerr == nil {
			return outcome
		}
		err = nerr
	}
	if ctx.Err() != nil {
		return jsonrpc.Outcome{}
	}

	if handler.OnError != nil {
		value, herr := handler.OnError(ctx, query, err)
		if herr == nil {
			outcome, nerr := jsonrpc.Normalize(ctx, value)
			if nerr == nil {
				return outcome
			}
			herr = nerr
		}
		err = fmt.Errorf("search error callback failed: %w", herr)
	}

	resp, derr := p.events.dispatchError(ctx, "search:"+query.Text(), err, nil)
	if derr != nil {
		return jsonrpc.Outcome{Err: jsonrpc.InternalErrorResponse(derr)}
	}
	if eresp, ok := resp.(*jsonrpc.ErrorResponse); ok {
		return jsonrpc.Outcome{Err: eresp}
	}
	return jsonrpc.Outcome{Err: jsonrpc.InternalErrorResponse(err)}
}

// callSearch invokes the callback with panic containment.
func (p *Plugin) callSearch(ctx context.Context, h *SearchHandler, q *Query) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search handler panicked: %v", r)
		}
	}()
	return h.Callback(ctx, q)
}

// indexResults records the slug→result mapping for later action and
// context-menu requests. The index holds only the latest query's results.
func (p *Plugin) indexResults(results []*jsonrpc.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, res := range results {
		p.results[res.Slug()] = res
	}
}

// indexQueryResults is indexResults for a query-shaped request: a superseded
// query that completes late must not leak its slugs into the index that now
// belongs to the newer query.
func (p *Plugin) indexQueryResults(requestID int64, results []*jsonrpc.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastQuery != nil && p.lastQuery.RequestID() != requestID {
		return
	}
	for _, res := range results {
		p.results[res.Slug()] = res
	}
}

func (p *Plugin) lookupResult(slug string) *jsonrpc.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results[slug]
}

// handleAction runs the callback of the result named by the action method.
func (p *Plugin) handleAction(ctx context.Context, method string) (jsonrpc.Response, error) {
	slug := strings.TrimPrefix(method, jsonrpc.ActionMethodPrefix)
	result := p.lookupResult(slug)
	if result == nil {
		return nil, jsonrpc.ErrUnknownMethod
	}

	if result.Callback == nil {
		return &jsonrpc.ExecuteResponse{Hide: true}, nil
	}

	resp, err := p.callAction(ctx, result)
	if err == nil {
		if resp == nil {
			resp = &jsonrpc.ExecuteResponse{Hide: true}
		}
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return p.recoverResultError(ctx, result, method, err)
}

func (p *Plugin) callAction(ctx context.Context, result *jsonrpc.Result) (resp *jsonrpc.ExecuteResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action callback panicked: %v", r)
		}
	}()
	return result.Callback(ctx)
}

// handleContextMenu produces context-menu entries for a previously returned
// result. The first context-data entry is the result's slug.
func (p *Plugin) handleContextMenu(ctx context.Context, params []json.RawMessage) (jsonrpc.Response, error) {
	var contextData []string
	if len(params) > 0 {
		if err := json.Unmarshal(params[0], &contextData); err != nil {
			return nil, jsonrpc.InvalidParams("malformed context menu data", err.Error())
		}
	}

	empty := &jsonrpc.QueryResponse{Results: []*jsonrpc.Result{}, SettingsChanges: p.settings.popChanges()}
	if len(contextData) == 0 {
		return empty, nil
	}
	result := p.lookupResult(contextData[0])
	if result == nil || result.ContextMenu == nil {
		return empty, nil
	}

	value, err := p.callContextMenu(ctx, result)
	if err == nil {
		outcome, nerr := jsonrpc.Normalize(ctx, value)
		if nerr == nil {
			p.indexResults(outcome.Results)
			return outcome.Response(p.settings.popChanges()), nil
		}
		err = nerr
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return p.recoverResultError(ctx, result, jsonrpc.MethodContextMenu, err)
}

func (p *Plugin) callContextMenu(ctx context.Context, result *jsonrpc.Result) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("context menu callback panicked: %v", r)
		}
	}()
	return result.ContextMenu(ctx)
}

// recoverResultError routes a result callback failure through the result's
// own error hook, then the event error hook.
func (p *Plugin) recoverResultError(ctx context.Context, result *jsonrpc.Result, event string, cause error) (jsonrpc.Response, error) {
	if result.OnError != nil {
		resp, err := result.OnError(ctx, cause)
		if err == nil {
			if resp == nil {
				resp = &jsonrpc.ExecuteResponse{Hide: false}
			}
			return resp, nil
		}
		cause = fmt.Errorf("result error callback failed: %w", err)
	}
	return p.events.dispatchError(ctx, event, cause, nil)
}
