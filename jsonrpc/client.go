package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/lumen/internal/log"
)

// Router resolves a host-initiated call into a reply payload. Implementations
// must contain handler failures themselves; an error return is reserved for
// protocol-level outcomes (ErrUnknownMethod, a cancelled context) and
// anything else is answered with a generic internal error reply.
type Router interface {
	Route(ctx context.Context, method string, params []json.RawMessage) (Response, error)
}

// ErrUnknownMethod is returned by a Router when no handler is bound to the
// requested method. The run loop converts it into a method-not-found reply.
var ErrUnknownMethod = errors.New("jsonrpc: unknown method")

// ClientOptions tune the run loop's cancellation behavior.
type ClientOptions struct {
	// IgnoreCancellations drops $/cancelRequest notifications from the host.
	IgnoreCancellations bool
	// CancelSupersededQueries delivers a context cancellation to the previous
	// query's task when a newer query arrives. When unset the superseded task
	// runs to completion and only its reply is discarded.
	CancelSupersededQueries bool
}

// Client owns the stream pair for the process lifetime. It reads frames in
// arrival order, correlates replies to pending plugin-initiated calls, and
// dispatches host-initiated calls to the Router, one goroutine per request.
type Client struct {
	router Router
	opts   ClientOptions
	logger *slog.Logger

	enc *Encoder

	idMu   sync.Mutex
	nextID int64

	pendingMu sync.Mutex
	pending   map[int64]chan *Message
	closed    bool

	tasksMu        sync.Mutex
	tasks          map[int64]context.CancelFunc
	currentQueryID int64
}

// NewClient builds a Client that routes host calls through router.
func NewClient(router Router, opts ClientOptions) *Client {
	return &Client{
		router:  router,
		opts:    opts,
		logger:  log.WithComponent("jsonrpc"),
		pending: make(map[int64]chan *Message),
		tasks:   make(map[int64]context.CancelFunc),
	}
}

// allocID hands out the next outbound request id. Ids stay ahead of any id
// the host has used so the two sides never collide while a request is
// pending.
func (c *Client) allocID() int64 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.nextID++
	return c.nextID
}

// observeID advances the counter past a host-assigned request id.
func (c *Client) observeID(id int64) {
	c.idMu.Lock()
	if id > c.nextID {
		c.nextID = id
	}
	c.idMu.Unlock()
}

// Request issues a plugin-to-host call and suspends until the matching reply
// arrives, the context is done, or the stream is torn down. A host error
// reply is returned as a *Error.
func (c *Client) Request(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	id := c.allocID()
	ch := make(chan *Message, 1)

	c.pendingMu.Lock()
	enc := c.enc
	if c.closed || enc == nil {
		c.pendingMu.Unlock()
		return nil, ErrConnectionClosed
	}
	c.pending[id] = ch
	c.pendingMu.Unlock()

	if err := enc.EncodeRequest(id, method, params); err != nil {
		c.dropPending(id)
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if msg.Err != nil {
			return nil, msg.Err
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// resolve hands a host reply to its waiting caller. A reply with no pending
// waiter is logged and discarded.
func (c *Client) resolve(msg *Message) {
	id := *msg.ID
	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Warn("reply for unknown request", "id", id, "kind", msg.Kind().String())
		return
	}
	ch <- msg
}

// failAllPending closes every waiter at stream teardown so no caller is left
// suspended forever.
func (c *Client) failAllPending() {
	c.pendingMu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}

// Serve runs the message loop until the stream closes or ctx is cancelled.
// A clean host-initiated shutdown (EOF after close) returns nil.
func (c *Client) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	c.pendingMu.Lock()
	c.enc = NewEncoder(w)
	c.pendingMu.Unlock()
	dec := NewDecoder(r)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := new(errgroup.Group)
	var readErr error

	for {
		if ctx.Err() != nil {
			break
		}

		msg, err := dec.Decode()
		if err != nil {
			if perr, ok := AsError(err); ok {
				// Malformed frame: answer with a protocol error and keep
				// the connection open.
				c.logger.Warn("discarding malformed frame", "code", perr.Code, "error", perr.Message)
				if werr := c.enc.EncodeReply(nil, NewErrorResponse(perr)); werr != nil {
					readErr = werr
					break
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				readErr = fmt.Errorf("transport failed: %w", err)
			}
			break
		}

		c.handleMessage(ctx, g, msg)
	}

	cancel()
	c.failAllPending()
	if err := g.Wait(); err != nil && readErr == nil {
		readErr = err
	}
	return readErr
}

// handleMessage classifies one frame and routes it.
func (c *Client) handleMessage(ctx context.Context, g *errgroup.Group, msg *Message) {
	switch msg.Kind() {
	case KindResult, KindError:
		c.resolve(msg)
	case KindNotification:
		c.handleNotification(msg)
	case KindRequest:
		c.observeID(*msg.ID)
		g.Go(func() error {
			c.handleRequest(ctx, msg)
			return nil
		})
	case KindInvalid:
		// Has an id but no method, result or error member.
		c.logger.Warn("frame fits no message shape", "id", *msg.ID)
		resp := NewErrorResponse(InvalidRequest("frame has no method, result or error member", nil))
		if err := c.enc.EncodeReply(msg.ID, resp); err != nil {
			c.logger.Error("failed to write reply", "id", *msg.ID, "error", err)
		}
	}
}

// cancelParams is the payload of a $/cancelRequest notification.
type cancelParams struct {
	ID int64 `json:"id"`
}

func (c *Client) handleNotification(msg *Message) {
	if msg.Method != CancelRequestMethod {
		c.logger.Warn("unknown notification method", "method", msg.Method)
		return
	}
	if c.opts.IgnoreCancellations {
		c.logger.Debug("ignoring cancellation request")
		return
	}

	var params cancelParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		c.logger.Warn("malformed cancellation request", "error", err)
		return
	}
	c.cancelTask(params.ID)
}

func (c *Client) cancelTask(id int64) {
	c.tasksMu.Lock()
	cancel, ok := c.tasks[id]
	if ok {
		delete(c.tasks, id)
	}
	c.tasksMu.Unlock()

	if ok {
		cancel()
		c.logger.Debug("cancelled task", "id", id)
	} else {
		c.logger.Warn("cancellation for unknown task", "id", id)
	}
}

// beginTask registers a cancellable task for an incoming request. For query
// requests the previous in-flight query is superseded: its reply will be
// suppressed, and its context cancelled if the plugin opted in.
func (c *Client) beginTask(ctx context.Context, id int64, isQuery bool) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	var superseded context.CancelFunc
	c.tasksMu.Lock()
	c.tasks[id] = cancel
	if isQuery {
		if prev := c.currentQueryID; prev != 0 && c.opts.CancelSupersededQueries {
			superseded = c.tasks[prev]
		}
		c.currentQueryID = id
	}
	c.tasksMu.Unlock()

	if superseded != nil {
		superseded()
	}
	return ctx, cancel
}

func (c *Client) endTask(id int64) {
	c.tasksMu.Lock()
	delete(c.tasks, id)
	c.tasksMu.Unlock()
}

// queryIsCurrent reports whether a query reply is still observable, i.e. no
// newer query has arrived since the task started.
func (c *Client) queryIsCurrent(id int64) bool {
	c.tasksMu.Lock()
	defer c.tasksMu.Unlock()
	return c.currentQueryID == id
}

// handleRequest runs one host-initiated call to completion and writes its
// reply. It never lets a handler failure escape: panics and unexpected
// errors become internal-error replies.
func (c *Client) handleRequest(ctx context.Context, msg *Message) {
	id := *msg.ID
	isQuery := msg.Method == MethodQuery

	ctx = withRequestID(ctx, id)
	ctx, cancel := c.beginTask(ctx, id, isQuery)
	defer cancel()
	defer c.endTask(id)

	resp := c.routeRequest(ctx, msg)
	if resp == nil {
		// Cancelled task: superseded or explicitly cancelled, no reply.
		return
	}

	if isQuery && !c.queryIsCurrent(id) {
		c.logger.Debug("discarding superseded query response", "id", id)
		return
	}

	if err := c.enc.EncodeReply(&id, resp); err != nil {
		c.logger.Error("failed to write reply", "id", id, "error", err)
	}
}

func (c *Client) routeRequest(ctx context.Context, msg *Message) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked", "method", msg.Method, "panic", r)
			resp = InternalErrorResponse(fmt.Sprintf("%v", r))
		}
	}()

	params, err := msg.ParamsList()
	if err != nil {
		perr, _ := AsError(err)
		return NewErrorResponse(perr)
	}

	resp, err = c.router.Route(ctx, msg.Method, params)
	switch {
	case err == nil:
		if resp == nil {
			resp = &ExecuteResponse{Hide: false}
		}
		return resp
	case errors.Is(err, ErrUnknownMethod):
		c.logger.Warn("unknown request method", "method", msg.Method)
		return NewErrorResponse(MethodNotFound(msg.Method))
	case errors.Is(err, context.Canceled):
		return nil
	default:
		c.logger.Error("request handling failed", "method", msg.Method, "error", err)
		if perr, ok := AsError(err); ok {
			return NewErrorResponse(perr)
		}
		return InternalErrorResponse(err)
	}
}
