package lens

import (
	"time"

	"github.com/jonwraymond/tylolens/pii"
	"github.com/jonwraymond/tylolens/pricing"
)

// AppInfo identifies the instrumented application. It is immutable for the
// life of a Lens.
type AppInfo struct {
	Name        string `json:"name" yaml:"name"`
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// SpanKind classifies a span.
type SpanKind string

const (
	KindLLM  SpanKind = "llm"
	KindHTTP SpanKind = "http"
	KindMCP  SpanKind = "mcp"
	KindTool SpanKind = "tool"
)

// Trace is one observed unit of work. Spans are ordered by creation.
type Trace struct {
	TraceID   string         `json:"traceId"`
	App       AppInfo        `json:"app"`
	StartedAt time.Time      `json:"startedAt"`
	EndedAt   *time.Time     `json:"endedAt,omitempty"`
	Spans     []*Span        `json:"spans"`
	Analysis  *TraceAnalysis `json:"analysis,omitempty"`
}

// Span returns the span with the given id, or nil.
func (t *Trace) Span(id string) *Span {
	for _, s := range t.Spans {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Span is one observed call or unit of work.
type Span struct {
	ID         string         `json:"id"`
	TraceID    string         `json:"traceId"`
	ParentID   string         `json:"parentId,omitempty"`
	Kind       SpanKind       `json:"kind"`
	Name       string         `json:"name"`
	Model      string         `json:"model,omitempty"`
	StartTime  time.Time      `json:"startTime"`
	EndTime    *time.Time     `json:"endTime,omitempty"`
	DurationMs *int64         `json:"durationMs,omitempty"`
	Input      *SpanInput     `json:"input,omitempty"`
	Output     *SpanOutput    `json:"output,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
	Cost       *Cost          `json:"cost,omitempty"`
	Safety     *Safety        `json:"safety,omitempty"`
	Analysis   *SpanAnalysis  `json:"analysis,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Ended reports whether End has stamped the span.
func (s *Span) Ended() bool { return s.EndTime != nil }

// SpanInput describes what a call was asked to do.
type SpanInput struct {
	Prompt   string       `json:"prompt,omitempty"`
	Messages any          `json:"messages,omitempty"`
	Request  *HTTPRequest `json:"request,omitempty"`
}

// HTTPRequest describes an outbound HTTP request.
type HTTPRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// SpanOutput holds what a call produced.
type SpanOutput struct {
	Text     string        `json:"text,omitempty"`
	Response *HTTPResponse `json:"response,omitempty"`
}

// HTTPResponse describes an HTTP response.
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Usage holds token counts. All fields are non-negative.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Cost is the monetary breakdown of a call.
type Cost = pricing.Cost

// Safety is the privacy assessment of a call.
type Safety = pii.Safety

// SpanAnalysis holds per-span ethics metrics. Nil fields are unset.
type SpanAnalysis struct {
	Clarity            *float64 `json:"clarity,omitempty"`
	PIICount           *int     `json:"piiCount,omitempty"`
	PIIDensity         *float64 `json:"piiDensity,omitempty"`
	Tokens             *int     `json:"tokens,omitempty"`
	TScoreContribution *float64 `json:"tscoreContribution,omitempty"`
}

// Weights scale the clarity and PII terms of the transparency score.
type Weights struct {
	Clarity float64 `json:"clarity" yaml:"clarity"`
	PII     float64 `json:"pii" yaml:"pii"`
}

// Transparency is the trace-level transparency record.
type Transparency struct {
	Score         float64 `json:"score"`
	ScoreScaled   float64 `json:"scoreScaled"`
	Tokens        int     `json:"tokens"`
	ClaritySum    float64 `json:"claritySum"`
	PIIPenaltySum float64 `json:"piiPenaltySum"`
	Weights       Weights `json:"weights"`
	Formula       string  `json:"formula"`
}

// TraceAnalysis holds computed trace summaries.
type TraceAnalysis struct {
	Transparency *Transparency `json:"transparency,omitempty"`
}

// SpanStart describes a span to open.
type SpanStart struct {
	Kind     SpanKind
	Name     string
	Model    string
	ParentID string
	Input    *SpanInput
	Meta     map[string]any
}

// OutputUpdate is a partial output. Text replaces the running text when
// non-nil; Response is merged field by field.
type OutputUpdate struct {
	Text     *string
	Response *HTTPResponse
}

// UsageUpdate is a partial usage. Nil fields keep their prior value.
type UsageUpdate struct {
	InputTokens  *int
	OutputTokens *int
	TotalTokens  *int
}

// SpanUpdate is an incremental change applied by SpanHandle.Update.
type SpanUpdate struct {
	Output   *OutputUpdate
	Usage    *UsageUpdate
	Analysis *SpanAnalysis
	Meta     map[string]any
}

// SpanEnd carries the authoritative final state applied by SpanHandle.End.
type SpanEnd struct {
	Output   *SpanOutput
	Usage    *Usage
	Cost     *Cost
	Safety   *Safety
	Analysis *SpanAnalysis
	Meta     map[string]any
	Err      error
}

// DurationMs returns end-start in whole milliseconds, floored at zero.
func DurationMs(start, end time.Time) int64 {
	return max(0, end.Sub(start).Milliseconds())
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
