// Package lumen is an SDK for writing launcher plugins. The host launcher
// spawns the plugin process once per session and drives it with JSON-RPC
// messages over stdin/stdout; lumen owns the message loop and routes queries,
// result actions and lifecycle events to the callbacks the plugin registers.
//
// A minimal plugin:
//
//	p := lumen.New(lumen.Options{})
//	p.RegisterSearch(lumen.PlainTextCondition{Text: "egg"}, func(ctx context.Context, q *lumen.Query) (any, error) {
//		return "You found the egg!", nil
//	})
//	p.Run(context.Background())
package lumen

import "github.com/mattjoyce/lumen/jsonrpc"

// Re-exported wire types, so simple plugins only import the root package.
type (
	// Result is one item shown to the user for a query.
	Result = jsonrpc.Result
	// ResultPreview is a result's optional secondary content block.
	ResultPreview = jsonrpc.ResultPreview
	// ProgressBar renders in place of a result title.
	ProgressBar = jsonrpc.ProgressBar
	// Glyph is a font-based alternative to a result icon.
	Glyph = jsonrpc.Glyph
	// ExecuteResponse is the reply to an action request.
	ExecuteResponse = jsonrpc.ExecuteResponse
	// ErrorResponse is an error reply payload.
	ErrorResponse = jsonrpc.ErrorResponse
	// Producer is the incremental form of a search callback.
	Producer = jsonrpc.Producer
)
