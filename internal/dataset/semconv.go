package dataset

// Vocabulary is the set of semantic-convention attribute keys harvested into
// example metadata when ingesting spans. The key set is owned by an external
// tracing convention and grows over time, so it is injected configuration
// rather than a hardcoded filter: deployments append recognized keys without
// touching the engine.
type Vocabulary struct {
	keys map[string]struct{}
}

// baseAttributeKeys are the convention keys recognized out of the box.
var baseAttributeKeys = []string{
	"input.value",
	"input.mime_type",
	"output.value",
	"output.mime_type",
	"llm.model_name",
	"llm.input_messages",
	"llm.output_messages",
	"llm.invocation_parameters",
	"llm.prompt_template.template",
	"llm.prompt_template.variables",
	"llm.prompt_template.version",
	"llm.token_count.prompt",
	"llm.token_count.completion",
	"llm.token_count.total",
	"message.role",
	"message.content",
	"message.contents",
	"retrieval.documents",
	"embedding.model_name",
	"embedding.embeddings",
	"tool.name",
	"tool.description",
	"tool.parameters",
	"tool_call.function.name",
	"tool_call.function.arguments",
}

// NewVocabulary builds the recognized key set from the base conventions plus
// any deployment-configured extras.
func NewVocabulary(extra ...string) Vocabulary {
	keys := make(map[string]struct{}, len(baseAttributeKeys)+len(extra))
	for _, k := range baseAttributeKeys {
		keys[k] = struct{}{}
	}
	for _, k := range extra {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return Vocabulary{keys: keys}
}

// Recognized reports whether the attribute key belongs to the vocabulary.
func (v Vocabulary) Recognized(key string) bool {
	_, ok := v.keys[key]
	return ok
}

// Len returns the number of recognized keys.
func (v Vocabulary) Len() int { return len(v.keys) }
