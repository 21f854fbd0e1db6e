package summarizer

import (
	"context"
)

// FailureText is written in place of a summary when summarization fails.
const FailureText = "Error"

// Input describes the payload for a summary request.
type Input struct {
	// Text contains the article text to summarise.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
}

// Summarizer produces the key-message summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
