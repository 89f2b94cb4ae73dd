package jsonrpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxFrameBytes caps the size of a single incoming frame.
const maxFrameBytes = 8 * 1024 * 1024

// Decoder reads line-framed JSON messages from the host.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps r. One frame is one line; blank lines are skipped.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(r, 64*1024)}
}

// Decode reads the next frame. Transport failures (including io.EOF at end of
// stream) are returned as-is. Malformed JSON or a frame that is not a JSON
// object produce a *Error with a parse/invalid-request code so the caller can
// answer with a protocol error reply and keep the connection open.
func (d *Decoder) Decode() (*Message, error) {
	line, err := d.readLine()
	if err != nil {
		return nil, err
	}

	if !json.Valid(line) {
		return nil, ParseError("malformed JSON frame", string(truncateFrame(line)))
	}

	if firstByte(line) != '{' {
		return nil, InvalidRequest("frame is not a JSON object", string(truncateFrame(line)))
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, InvalidRequest("frame does not match the message shape", err.Error())
	}

	return &msg, nil
}

// readLine returns the next non-empty line without its terminator.
func (d *Decoder) readLine() ([]byte, error) {
	for {
		line, err := d.scanLine()
		if err != nil {
			return nil, err
		}

		trimmed := bytes.TrimRight(line, "\r\n")
		if len(bytes.TrimSpace(trimmed)) == 0 {
			continue
		}
		return trimmed, nil
	}
}

// scanLine reads one line in buffer-sized chunks so an oversized frame is
// rejected as soon as it crosses the limit instead of after being buffered
// whole. The remainder of a rejected line is consumed to keep the stream in
// sync for the next frame.
func (d *Decoder) scanLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := d.r.ReadSlice('\n')
		if len(line)+len(chunk) > maxFrameBytes {
			if derr := d.discardLine(err); derr != nil {
				return nil, derr
			}
			return nil, ParseError("frame exceeds size limit", maxFrameBytes)
		}
		line = append(line, chunk...)

		switch err {
		case nil:
			return line, nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, nil
		default:
			return nil, fmt.Errorf("read frame: %w", err)
		}
	}
}

// discardLine consumes the rest of an oversized line.
func (d *Decoder) discardLine(err error) error {
	for err == bufio.ErrBufferFull {
		_, err = d.r.ReadSlice('\n')
	}
	switch err {
	case nil, io.EOF:
		return nil
	default:
		return fmt.Errorf("read frame: %w", err)
	}
}

func truncateFrame(line []byte) []byte {
	const keep = 256
	if len(line) <= keep {
		return line
	}
	return line[:keep]
}

// Encoder writes frames to the host. A mutex enforces the single-writer
// discipline: concurrently completing handler tasks cannot interleave
// partial frames.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// encode marshals v, appends the frame terminator, and writes it in one call.
func (e *Encoder) encode(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	data = append(data, '\r', '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// EncodeRequest writes an outbound plugin-to-host call.
func (e *Encoder) EncodeRequest(id int64, method string, params []any) error {
	if params == nil {
		params = []any{}
	}
	return e.encode(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
}

// replyEnvelope is the outbound reply wire shape. Exactly one of Result and
// Err is set. A nil ID answers a frame whose id could not be read.
type replyEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id"`
	Result  any    `json:"result,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// EncodeReply writes a success or error reply for the given request id.
func (e *Encoder) EncodeReply(id *int64, resp Response) error {
	env := replyEnvelope{JSONRPC: "2.0", ID: id}
	switch body := resp.body().(type) {
	case *Error:
		env.Err = body
	default:
		env.Result = body
	}
	return e.encode(env)
}
