package dataset

import (
	"encoding/json"

	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
)

// metadataAttributeKey is the span attribute holding the user-declared
// metadata sub-map; it is merged first so convention keys win on collision.
const metadataAttributeKey = "metadata"

// ExtractorFunc derives an example's input and output payloads from a span's
// structured attributes. The default covers the common span kinds; callers
// can inject their own derivation.
type ExtractorFunc func(span model.Span) (input, output map[string]any)

// DefaultExtractor derives input/output the way the tracer conventions
// intend: chat spans yield their message lists, everything else yields the
// raw input/output values (JSON payloads are expanded when they parse as
// objects).
func DefaultExtractor(span model.Span) (map[string]any, map[string]any) {
	input := map[string]any{}
	if msgs, ok := span.Attributes["llm.input_messages"]; ok {
		input["messages"] = msgs
	} else if v, ok := span.Attributes["input.value"]; ok {
		input = valuePayload("input", v, span.Attributes["input.mime_type"])
	}
	if vars, ok := span.Attributes["llm.prompt_template.variables"]; ok {
		input["prompt_template_variables"] = vars
	}

	output := map[string]any{}
	if msgs, ok := span.Attributes["llm.output_messages"]; ok {
		output["messages"] = msgs
	} else if docs, ok := span.Attributes["retrieval.documents"]; ok {
		output["documents"] = docs
	} else if v, ok := span.Attributes["output.value"]; ok {
		output = valuePayload("output", v, span.Attributes["output.mime_type"])
	}
	return input, output
}

// valuePayload wraps a raw attribute value under its key, expanding JSON
// object strings so round-tripped payloads stay structured.
func valuePayload(key string, v, mime any) map[string]any {
	if s, ok := v.(string); ok && mime == "application/json" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return obj
		}
	}
	return map[string]any{key: v}
}

// GroupAnnotations groups span annotations by name, serializing each with
// its author identity. The author's numeric id is exposed only as an opaque
// user handle.
func GroupAnnotations(anns []model.SpanAnnotation) map[string][]map[string]any {
	grouped := make(map[string][]map[string]any, len(anns))
	for _, a := range anns {
		var userHandle any
		if a.UserID != nil {
			userHandle = handle.Encode(handle.KindUser, *a.UserID)
		}
		grouped[a.Name] = append(grouped[a.Name], map[string]any{
			"label":          derefOr[string](a.Label),
			"score":          derefOr[float64](a.Score),
			"explanation":    derefOr[string](a.Explanation),
			"metadata":       a.Metadata,
			"annotator_kind": string(a.AnnotatorKind),
			"user_id":        userHandle,
			"username":       derefOr[string](a.Username),
			"email":          derefOr[string](a.Email),
		})
	}
	return grouped
}

// HarvestMetadata assembles span-derived example metadata: the span's own
// declared metadata sub-map, every recognized vocabulary attribute present
// on the span, the span kind, and the grouped annotations.
func HarvestMetadata(span model.Span, vocab Vocabulary, anns []model.SpanAnnotation) map[string]any {
	meta := map[string]any{}
	if declared, ok := span.Attributes[metadataAttributeKey].(map[string]any); ok {
		for k, v := range declared {
			meta[k] = v
		}
	}
	for k, v := range span.Attributes {
		if vocab.Recognized(k) {
			meta[k] = v
		}
	}
	meta["span_kind"] = span.SpanKind
	meta["annotations"] = GroupAnnotations(anns)
	return meta
}

func derefOr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
