package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelight/dataset-cli/internal/handle"
	"github.com/tracelight/dataset-cli/internal/model"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }
func i64Ptr(i int64) *int64     { return &i }

func TestDefaultExtractor_ChatSpan(t *testing.T) {
	span := model.Span{
		SpanKind: "LLM",
		Attributes: map[string]any{
			"llm.input_messages":  []any{map[string]any{"role": "user", "content": "hi"}},
			"llm.output_messages": []any{map[string]any{"role": "assistant", "content": "hello"}},
		},
	}
	in, out := DefaultExtractor(span)
	assert.Contains(t, in, "messages")
	assert.Contains(t, out, "messages")
}

func TestDefaultExtractor_JSONValues(t *testing.T) {
	span := model.Span{
		SpanKind: "CHAIN",
		Attributes: map[string]any{
			"input.value":      `{"q":"a"}`,
			"input.mime_type":  "application/json",
			"output.value":     `{"r":"b"}`,
			"output.mime_type": "application/json",
		},
	}
	in, out := DefaultExtractor(span)
	assert.Equal(t, map[string]any{"q": "a"}, in)
	assert.Equal(t, map[string]any{"r": "b"}, out)
}

func TestDefaultExtractor_PlainText(t *testing.T) {
	span := model.Span{
		SpanKind: "CHAIN",
		Attributes: map[string]any{
			"input.value":  "what is up",
			"output.value": "not much",
		},
	}
	in, out := DefaultExtractor(span)
	assert.Equal(t, map[string]any{"input": "what is up"}, in)
	assert.Equal(t, map[string]any{"output": "not much"}, out)
}

func TestDefaultExtractor_RetrieverDocuments(t *testing.T) {
	span := model.Span{
		SpanKind: "RETRIEVER",
		Attributes: map[string]any{
			"input.value":         "query",
			"retrieval.documents": []any{map[string]any{"document.content": "doc"}},
		},
	}
	_, out := DefaultExtractor(span)
	assert.Contains(t, out, "documents")
}

func TestGroupAnnotations(t *testing.T) {
	anns := []model.SpanAnnotation{
		{SpanID: 1, Name: "quality", Label: strPtr("good"), Score: f64Ptr(0.9), AnnotatorKind: model.AnnotatorHuman,
			UserID: i64Ptr(12), Username: strPtr("ada"), Email: strPtr("ada@example.com")},
		{SpanID: 1, Name: "quality", Label: strPtr("bad"), Score: f64Ptr(0.1), AnnotatorKind: model.AnnotatorLLM},
		{SpanID: 1, Name: "toxicity", Score: f64Ptr(0.0), AnnotatorKind: model.AnnotatorCode},
	}
	grouped := GroupAnnotations(anns)
	require.Len(t, grouped, 2)
	require.Len(t, grouped["quality"], 2)
	require.Len(t, grouped["toxicity"], 1)

	first := grouped["quality"][0]
	assert.Equal(t, "good", first["label"])
	assert.Equal(t, 0.9, first["score"])
	assert.Equal(t, handle.Encode(handle.KindUser, 12), first["user_id"])
	assert.Equal(t, "ada", first["username"])

	second := grouped["quality"][1]
	assert.Nil(t, second["user_id"])
	assert.Nil(t, second["username"])
}

func TestHarvestMetadata(t *testing.T) {
	vocab := NewVocabulary()
	span := model.Span{
		SpanKind: "LLM",
		Attributes: map[string]any{
			"metadata":         map[string]any{"env": "prod"},
			"llm.model_name":   "gpt-4o",
			"private.internal": "hidden",
		},
	}
	meta := HarvestMetadata(span, vocab, nil)

	assert.Equal(t, "prod", meta["env"])
	assert.Equal(t, "gpt-4o", meta["llm.model_name"])
	assert.NotContains(t, meta, "private.internal")
	assert.Equal(t, "LLM", meta["span_kind"])
	assert.Equal(t, map[string][]map[string]any{}, meta["annotations"])
}

func TestHarvestMetadata_ExtraVocabularyKeys(t *testing.T) {
	vocab := NewVocabulary("custom.key")
	span := model.Span{
		SpanKind:   "TOOL",
		Attributes: map[string]any{"custom.key": 7},
	}
	meta := HarvestMetadata(span, vocab, nil)
	assert.Equal(t, 7, meta["custom.key"])
}

func TestNewVocabulary_IgnoresEmptyExtras(t *testing.T) {
	base := NewVocabulary()
	withBlank := NewVocabulary("")
	assert.Equal(t, base.Len(), withBlank.Len())
}
