package model

import "time"

// Span is a read-only source record from which examples can be created.
// Attributes hold the flattened semantic-convention keys recorded by the
// tracer (e.g. "input.value", "llm.output_messages").
type Span struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	SpanKind   string         `json:"span_kind"`
	Attributes map[string]any `json:"attributes"`
	StartTime  time.Time      `json:"start_time"`
}

// AnnotatorKind identifies who produced a span annotation.
type AnnotatorKind string

const (
	AnnotatorHuman AnnotatorKind = "HUMAN"
	AnnotatorLLM   AnnotatorKind = "LLM"
	AnnotatorCode  AnnotatorKind = "CODE"
)

// SpanAnnotation is a labeled judgment attached to a span. User fields are
// populated from the joined author row when the annotation has one.
type SpanAnnotation struct {
	ID            int64          `json:"id"`
	SpanID        int64          `json:"span_id"`
	Name          string         `json:"name"`
	Label         *string        `json:"label,omitempty"`
	Score         *float64       `json:"score,omitempty"`
	Explanation   *string        `json:"explanation,omitempty"`
	Metadata      map[string]any `json:"metadata"`
	AnnotatorKind AnnotatorKind  `json:"annotator_kind"`
	UserID        *int64         `json:"user_id,omitempty"`
	Username      *string        `json:"username,omitempty"`
	Email         *string        `json:"email,omitempty"`
}
