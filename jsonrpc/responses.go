package jsonrpc

// Response is the closed set of reply payloads a handler can produce.
// The three implementations are QueryResponse, ExecuteResponse and
// ErrorResponse; the encoder decides the result/error envelope member from
// the concrete type.
type Response interface {
	body() any
}

// QueryResponse answers a query or context-menu request with the results to
// display, plus any settings changes the plugin wants pushed to the host.
type QueryResponse struct {
	Results         []*Result
	SettingsChanges map[string]any
	DebugMessage    string
}

type queryResponseBody struct {
	Results         []*Result      `json:"result"`
	SettingsChanges map[string]any `json:"SettingsChange"`
	DebugMessage    string         `json:"debugMessage"`
}

func (r *QueryResponse) body() any {
	results := r.Results
	if results == nil {
		results = []*Result{}
	}
	changes := r.SettingsChanges
	if changes == nil {
		changes = map[string]any{}
	}
	return queryResponseBody{
		Results:         results,
		SettingsChanges: changes,
		DebugMessage:    r.DebugMessage,
	}
}

// ExecuteResponse answers action and lifecycle requests. Hide tells the host
// whether to close its window after the action.
type ExecuteResponse struct {
	Hide bool
}

type executeResponseBody struct {
	Hide bool `json:"hide"`
}

func (r *ExecuteResponse) body() any {
	return executeResponseBody{Hide: r.Hide}
}

// ErrorResponse answers a request with a protocol error.
type ErrorResponse struct {
	Err *Error
}

func (r *ErrorResponse) body() any {
	if r.Err == nil {
		return InternalError("internal error", nil)
	}
	return r.Err
}

// NewErrorResponse wraps a protocol error as a reply payload.
func NewErrorResponse(err *Error) *ErrorResponse {
	return &ErrorResponse{Err: err}
}

// InternalErrorResponse is the last-resort reply for unhandled failures.
func InternalErrorResponse(data any) *ErrorResponse {
	if derr, ok := data.(error); ok {
		data = derr.Error()
	}
	return &ErrorResponse{Err: InternalError("internal error", data)}
}
