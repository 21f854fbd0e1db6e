package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	DefaultModel = openai.ChatModelGPT5Mini2025_08_07

	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	systemPrompt = `You process news articles to draw out their main messages.
Be parsimonious but accurate: every main message must survive.
You write for a senior executive audience.`

	userPromptTemplate = `Review the text and summarize it as at least 2 and at most 5 key messages.

Rules:
- Preserve the sentiment expressed towards each legal or natural person.
- Start each key message with a keyword in [square brackets] naming who or what it is about.
  Keep keywords clear nouns, e.g. a country name or a concept like "corruption".
- Follow the keyword with a short paragraph of 1 to 4 sentences.
- End each key message with the delimiter #. Use # for nothing else.
- Keep the whole output under 350 words.`
)

type Options struct {
	Model string
	// ReasoningEffort is sent only when set, e.g. "low".
	ReasoningEffort string
	// Flex requests the flex service tier.
	Flex bool
	// Topic narrows the summary, e.g. "Serbia and its relations with the UK".
	Topic string
}

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
	opts   Options
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(apiKey string, opts Options, clientOpts ...option.RequestOption) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}

	return &OpenAISummarizer{
		client: openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, clientOpts...)...),
		opts:   opts,
	}, nil
}

// Summarize produces bracket-labelled key messages separated by '#'.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		params := responses.ResponseNewParams{
			Model:           s.opts.Model,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(s.instructions()),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPrompt(input.SourceURL, text)),
			},
		}
		if s.opts.ReasoningEffort != "" {
			params.Reasoning = responses.ReasoningParam{
				Effort: openai.ReasoningEffort(s.opts.ReasoningEffort),
			}
		}
		if s.opts.Flex {
			params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
		}

		resp, err := s.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return summary, nil
	}
}

func (s *OpenAISummarizer) instructions() string {
	topic := strings.TrimSpace(s.opts.Topic)
	if topic == "" {
		return systemPrompt
	}

	return systemPrompt + "\nFocus on messages relating to " + topic + "."
}

func userPrompt(sourceURL string, text string) string {
	b := strings.Builder{}
	b.WriteString(userPromptTemplate)
	b.WriteString("\n\n")
	if sourceURL = strings.TrimSpace(sourceURL); sourceURL != "" {
		b.WriteString("Source:\n")
		b.WriteString(sourceURL)
		b.WriteString("\n")
	}
	b.WriteString("Text:\n")
	b.WriteString(text)

	return b.String()
}
