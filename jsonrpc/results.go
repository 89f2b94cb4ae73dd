package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Glyph is a font-based alternative to a result icon.
type Glyph struct {
	Text       string `json:"Glyph"`
	FontFamily string `json:"FontFamily"`
}

// ProgressBar renders in place of the result title. Percentage must be 0-100.
type ProgressBar struct {
	Percentage int
	Color      string
}

// DefaultProgressBarColor is used when a progress bar has no explicit color.
const DefaultProgressBarColor = "#26a0da"

// ResultPreview is the optional secondary content block shown for a result.
type ResultPreview struct {
	ImagePath   string `json:"previewImagePath"`
	Description string `json:"description,omitempty"`
	IsMedia     bool   `json:"isMedia"`
}

// Result is one item shown to the user in response to a query. Title is the
// only required field. Callback runs when the user invokes the result,
// ContextMenu when the user opens its context menu; both are optional and are
// dispatched through the opaque slug round-tripped in the wire payload.
type Result struct {
	Title              string
	Sub                string
	Icon               string
	TitleHighlightData []int
	TitleTooltip       string
	SubTooltip         string
	CopyText           string
	Score              int
	AutoCompleteText   string
	Preview            *ResultPreview
	ProgressBar        *ProgressBar
	RoundedIcon        bool
	Glyph              *Glyph

	// Callback handles the user acting on this result. A nil callback hides
	// the host window and does nothing else.
	Callback func(ctx context.Context) (*ExecuteResponse, error)
	// ContextMenu produces the context-menu entries for this result. The
	// return value goes through the same normalization as a search callback.
	ContextMenu func(ctx context.Context) (any, error)
	// OnError overrides the error reply when Callback or ContextMenu fails.
	OnError func(ctx context.Context, err error) (Response, error)

	slug string
}

// Slug returns the opaque token that identifies this result in action and
// context-menu requests. Assigned on first use, stable afterwards.
func (r *Result) Slug() string {
	if r.slug == "" {
		r.slug = uuid.NewString()
	}
	return r.slug
}

// Validate checks the invariants the host relies on: a present title and
// highlight offsets that index into it.
func (r *Result) Validate() error {
	if r.Title == "" && r.ProgressBar == nil {
		return InvalidParams("result is missing required field: title", nil)
	}
	titleLen := len([]rune(r.Title))
	for _, offset := range r.TitleHighlightData {
		if offset < 0 || offset >= titleLen {
			return InvalidParams(
				fmt.Sprintf("highlight offset %d out of range for title of length %d", offset, titleLen),
				nil,
			)
		}
	}
	if r.ProgressBar != nil {
		if p := r.ProgressBar.Percentage; p < 0 || p > 100 {
			return InvalidParams(fmt.Sprintf("progress bar percentage %d out of range", p), nil)
		}
	}
	return nil
}

// rawResult is the wire shape. Field names are fixed by the host protocol.
type rawResult struct {
	Title              string          `json:"title,omitempty"`
	Sub                string          `json:"subTitle,omitempty"`
	Icon               string          `json:"icoPath,omitempty"`
	TitleHighlightData []int           `json:"titleHighlightData,omitempty"`
	TitleTooltip       string          `json:"titleTooltip,omitempty"`
	SubTooltip         string          `json:"subtitleTooltip,omitempty"`
	CopyText           string          `json:"copyText,omitempty"`
	Score              int             `json:"score,omitempty"`
	AutoCompleteText   string          `json:"autoCompleteText,omitempty"`
	Preview            *ResultPreview  `json:"preview,omitempty"`
	ProgressBar        *int            `json:"ProgressBar,omitempty"`
	ProgressBarColor   string          `json:"ProgressBarColor,omitempty"`
	RoundedIcon        bool            `json:"roundedIcon,omitempty"`
	Glyph              *Glyph          `json:"glyph,omitempty"`
	Action             *rawAction      `json:"jsonRPCAction,omitempty"`
	ContextData        []string        `json:"contextData,omitempty"`
	SettingsChange     json.RawMessage `json:"-"`
}

type rawAction struct {
	Method string `json:"method"`
}

// MarshalJSON emits the host wire shape, embedding the slug in the action
// method and context data so later execute/context-menu calls can be
// correlated back to this exact result.
func (r *Result) MarshalJSON() ([]byte, error) {
	slug := r.Slug()
	raw := rawResult{
		Title:              r.Title,
		Sub:                r.Sub,
		Icon:               r.Icon,
		TitleHighlightData: r.TitleHighlightData,
		TitleTooltip:       r.TitleTooltip,
		SubTooltip:         r.SubTooltip,
		CopyText:           r.CopyText,
		Score:              r.Score,
		AutoCompleteText:   r.AutoCompleteText,
		Preview:            r.Preview,
		RoundedIcon:        r.RoundedIcon,
		Glyph:              r.Glyph,
		Action:             &rawAction{Method: ActionMethodPrefix + slug},
		ContextData:        []string{slug},
	}
	if r.ProgressBar != nil {
		pct := r.ProgressBar.Percentage
		raw.ProgressBar = &pct
		raw.ProgressBarColor = r.ProgressBar.Color
		if raw.ProgressBarColor == "" {
			raw.ProgressBarColor = DefaultProgressBarColor
		}
	}
	return json.Marshal(raw)
}

// ResultFromMap decodes a structured mapping into a Result. Unknown fields
// are rejected with an invalid-params error rather than silently dropped.
func ResultFromMap(m map[string]any) (*Result, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, InvalidParams("result mapping is not JSON-serializable", err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields() // Strict parsing
	var raw rawResult
	if err := dec.Decode(&raw); err != nil {
		return nil, InvalidParams("unknown or mistyped result field", err.Error())
	}

	res := &Result{
		Title:              raw.Title,
		Sub:                raw.Sub,
		Icon:               raw.Icon,
		TitleHighlightData: raw.TitleHighlightData,
		TitleTooltip:       raw.TitleTooltip,
		SubTooltip:         raw.SubTooltip,
		CopyText:           raw.CopyText,
		Score:              raw.Score,
		AutoCompleteText:   raw.AutoCompleteText,
		Preview:            raw.Preview,
		RoundedIcon:        raw.RoundedIcon,
		Glyph:              raw.Glyph,
	}
	if raw.ProgressBar != nil {
		res.ProgressBar = &ProgressBar{Percentage: *raw.ProgressBar, Color: raw.ProgressBarColor}
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}
