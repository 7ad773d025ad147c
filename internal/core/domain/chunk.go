package domain

// ChunkKind discriminates the variants of a stream Chunk so consumers can
// switch over them exhaustively.
type ChunkKind int

const (
	// ChunkStarted signals the transport connection was established.
	ChunkStarted ChunkKind = iota
	// ChunkTextDelta carries an incremental fragment of visible content.
	ChunkTextDelta
	// ChunkThinkingDelta carries an incremental fragment of reasoning content,
	// kept separate so callers can render or suppress it independently.
	ChunkThinkingDelta
	// ChunkComplete is the terminal success variant.
	ChunkComplete
	// ChunkError is the terminal (or per-event) failure variant.
	ChunkError
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkStarted:
		return "started"
	case ChunkTextDelta:
		return "text_delta"
	case ChunkThinkingDelta:
		return "thinking_delta"
	case ChunkComplete:
		return "complete"
	case ChunkError:
		return "error"
	default:
		return "unknown"
	}
}

// Chunk is one unit of parsed streaming output. Only the fields relevant to
// the Kind are populated.
type Chunk struct {
	Err   error
	Usage *TokenUsage
	Text  string
	Kind  ChunkKind
}

func StartedChunk() Chunk {
	return Chunk{Kind: ChunkStarted}
}

func TextDeltaChunk(text string) Chunk {
	return Chunk{Kind: ChunkTextDelta, Text: text}
}

func ThinkingDeltaChunk(text string) Chunk {
	return Chunk{Kind: ChunkThinkingDelta, Text: text}
}

func CompleteChunk(text string, usage *TokenUsage) Chunk {
	return Chunk{Kind: ChunkComplete, Text: text, Usage: usage}
}

func ErrorChunk(err error) Chunk {
	return Chunk{Kind: ChunkError, Err: err}
}

// TokenUsage is provider-reported token accounting. TotalTokens is advisory
// and not required to equal the sum of the other two.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
