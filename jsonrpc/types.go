package jsonrpc

import "encoding/json"

// MessageKind classifies one decoded frame.
type MessageKind int

const (
	// KindNotification is a host call with no id; no reply is expected.
	KindNotification MessageKind = iota
	// KindRequest is a host call with an id; exactly one reply is expected.
	KindRequest
	// KindResult is a host reply to a plugin-initiated call.
	KindResult
	// KindError is a host error reply to a plugin-initiated call.
	KindError
	// KindInvalid is a frame with an id but no method, result or error
	// member; it fits no protocol shape.
	KindInvalid
)

func (k MessageKind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindRequest:
		return "request"
	case KindResult:
		return "result"
	case KindError:
		return "error"
	case KindInvalid:
		return "invalid"
	}
	return "unknown"
}

// Message is one decoded protocol frame. Which fields are set depends on the
// kind: calls carry Method and Params, replies carry Result or Err.
type Message struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Err    *Error          `json:"error,omitempty"`
}

// Kind classifies the message. The rules follow the host protocol: a frame
// without an id is a notification, a frame with a method is a request, then
// result and error replies by the presence of their payload field. A frame
// with an id and none of those members is invalid.
func (m *Message) Kind() MessageKind {
	switch {
	case m.ID == nil:
		return KindNotification
	case m.Method != "":
		return KindRequest
	case m.Err != nil:
		return KindError
	case m.Result != nil:
		return KindResult
	default:
		return KindInvalid
	}
}

// ParamsList splits the params field into positional values. An object params
// payload is treated as a single positional value so hosts that send
// `"params": {...}` and hosts that send `"params": [...]` both route the same
// way.
func (m *Message) ParamsList() ([]json.RawMessage, error) {
	if len(m.Params) == 0 {
		return nil, nil
	}
	trimmed := firstByte(m.Params)
	if trimmed == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(m.Params, &list); err != nil {
			return nil, NewError(CodeInvalidRequest, "params is not a valid array", err.Error())
		}
		return list, nil
	}
	return []json.RawMessage{m.Params}, nil
}

func firstByte(raw json.RawMessage) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}

// request is the outbound plugin-to-host call envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// CancelRequestMethod is the notification method the host uses to cancel an
// in-flight request by id.
const CancelRequestMethod = "$/cancelRequest"

// Protocol verbs the run loop recognizes. ActionMethodPrefix prefixes the
// per-result action methods generated by the SDK.
const (
	MethodInitialize  = "initialize"
	MethodQuery       = "query"
	MethodContextMenu = "context_menu"
	MethodClose       = "close"

	ActionMethodPrefix = "lumen.action."
)
