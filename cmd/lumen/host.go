package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/mattjoyce/lumen/internal/log"
	"github.com/mattjoyce/lumen/jsonrpc"
)

// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
const terminationGracePeriod = 5 * time.Second

// host plays the launcher's side of the protocol against one plugin process.
type host struct {
	entrypoint string
	timeout    time.Duration
}

func newHost(entrypoint string, timeout time.Duration) *host {
	return &host{entrypoint: entrypoint, timeout: timeout}
}

// hostResult is the subset of the result wire shape the harness prints.
type hostResult struct {
	Title string `json:"title"`
	Sub   string `json:"subTitle"`
	Icon  string `json:"icoPath"`
	Score int    `json:"score"`
}

// queryReplyBody is the payload of a query reply.
type queryReplyBody struct {
	Results []hostResult `json:"result"`
}

// runQuery spawns the plugin, performs the initialize handshake, sends one
// query, and returns the results from the reply.
func (h *host) runQuery(ctx context.Context, text, keyword string) ([]hostResult, error) {
	logger := log.WithComponent("harness")

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.Command(h.entrypoint)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = nil // plugin diagnostics go to the terminal untouched

	logger.Debug("spawning plugin", "entrypoint", h.entrypoint, "timeout", h.timeout)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plugin: %w", err)
	}
	defer h.terminate(cmd, stdin, logger)

	type exchange struct {
		results []hostResult
		err     error
	}
	done := make(chan exchange, 1)
	go func() {
		results, err := h.exchange(stdin, stdout, text, keyword)
		done <- exchange{results: results, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("plugin did not answer within %v", h.timeout)
	case ex := <-done:
		return ex.results, ex.err
	}
}

// exchange runs the initialize and query requests over the plugin's pipes.
func (h *host) exchange(stdin io.WriteCloser, stdout io.Reader, text, keyword string) ([]hostResult, error) {
	enc := jsonrpc.NewEncoder(stdin)
	dec := jsonrpc.NewDecoder(stdout)

	if err := enc.EncodeRequest(1, jsonrpc.MethodInitialize, []any{
		map[string]any{"currentPluginMetadata": map[string]any{}},
	}); err != nil {
		return nil, fmt.Errorf("send initialize: %w", err)
	}
	if _, err := h.awaitReply(dec, enc, 1); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	rawQuery := map[string]any{
		"search":        text,
		"rawQuery":      text,
		"isReQuery":     false,
		"actionKeyword": keyword,
	}
	if err := enc.EncodeRequest(2, jsonrpc.MethodQuery, []any{rawQuery, map[string]any{}}); err != nil {
		return nil, fmt.Errorf("send query: %w", err)
	}
	result, err := h.awaitReply(dec, enc, 2)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var body queryReplyBody
	if err := json.Unmarshal(result, &body); err != nil {
		return nil, fmt.Errorf("malformed query reply: %w", err)
	}
	return body.Results, nil
}

// awaitReply reads frames until the reply for id arrives. Plugin-initiated
// requests received in the meantime get a benign success reply so the plugin
// is never left hanging on its own API calls.
func (h *host) awaitReply(dec *jsonrpc.Decoder, enc *jsonrpc.Encoder, id int64) (json.RawMessage, error) {
	for {
		msg, err := dec.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("plugin closed the stream before replying")
			}
			return nil, err
		}

		switch msg.Kind() {
		case jsonrpc.KindResult:
			if msg.ID != nil && *msg.ID == id {
				return msg.Result, nil
			}
		case jsonrpc.KindError:
			if msg.ID != nil && *msg.ID == id {
				return nil, msg.Err
			}
		case jsonrpc.KindRequest:
			log.Debug("plugin issued API call", "method", msg.Method)
			if err := enc.EncodeReply(msg.ID, &jsonrpc.ExecuteResponse{}); err != nil {
				return nil, fmt.Errorf("acknowledge %s: %w", msg.Method, err)
			}
		}
	}
}

// terminate shuts the plugin down: close stdin (EOF ends its run loop), then
// SIGTERM, then SIGKILL after the grace period.
func (h *host) terminate(cmd *exec.Cmd, stdin io.WriteCloser, logger interface{ Warn(string, ...any) }) {
	_ = stdin.Close()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return
	case <-time.After(time.Second):
	}

	if cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-done:
	case <-time.After(terminationGracePeriod):
		logger.Warn("plugin did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-done
	}
}
