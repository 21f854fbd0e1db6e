package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultModel    = "Panda0116/emotion-classification-model"
	DefaultEndpoint = "https://router.huggingface.co/hf-inference/models/"
	DefaultTimeout  = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// HuggingFaceClassifier calls a hosted text-classification model.
type HuggingFaceClassifier struct {
	client   *http.Client
	modelURL string
	token    string
	log      *slog.Logger
}

func NewHuggingFaceClassifier(
	client *http.Client,
	endpoint string,
	model string,
	token string,
	log *slog.Logger,
) *HuggingFaceClassifier {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}

	return &HuggingFaceClassifier{
		client:   client,
		modelURL: strings.TrimRight(endpoint, "/") + "/" + strings.Trim(model, "/"),
		token:    strings.TrimSpace(token),
		log:      log,
	}
}

// StatusError is a failed inference request. StatusCode is 0 when no
// response arrived.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("do request: %v", e.Err)
	}

	return fmt.Sprintf("do request: unexpected status: %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Retryable covers network failures, throttling and a model that is still
// loading (503).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == 0 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= http.StatusInternalServerError
}

type classifyRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (c *HuggingFaceClassifier) Classify(ctx context.Context, text string) (Scores, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Scores{}, errors.New("text is empty")
	}

	payload, err := json.Marshal(classifyRequest{
		Inputs:     text,
		Parameters: map[string]any{"top_k": len(Labels)},
	})
	if err != nil {
		return Scores{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL, bytes.NewReader(payload))
	if err != nil {
		return Scores{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Scores{}, &StatusError{Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"modelURL", c.modelURL,
				"operation", "Classify")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Scores{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Scores{}, &StatusError{StatusCode: resp.StatusCode}
	}

	return decodeScores(body)
}

// decodeScores accepts both [[{label, score}]] and [{label, score}].
func decodeScores(body []byte) (Scores, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(body, &nested); err == nil {
		if len(nested) == 0 {
			return Scores{}, errors.New("response has no results")
		}
		return collect(nested[0])
	}

	var flat []labelScore
	if err := json.Unmarshal(body, &flat); err != nil {
		return Scores{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return collect(flat)
}

func collect(results []labelScore) (Scores, error) {
	var (
		scores Scores
		found  int
		errs   []error
	)

	for _, r := range results {
		i, ok := labelIndex(r.Label)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown label %q", r.Label))
			continue
		}
		scores[i] = r.Score
		found++
	}

	if found == 0 {
		return Scores{}, errors.Join(append(errs, errors.New("response has no known labels"))...)
	}

	return scores, nil
}
