package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"newspulse/internal/article"
	"newspulse/internal/emotion"
	"newspulse/internal/ratelimiter"
	"newspulse/internal/retry"
	"newspulse/internal/segment"
	"newspulse/internal/summarizer"
	"newspulse/internal/table"
)

var errEmptyURL = errors.New("url is empty")

// readColumn loads the table at path and resolves column in it.
func readColumn(path string, column string) (*table.Table, int, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, -1, err
	}

	idx, err := t.Column(column)
	if err != nil {
		return nil, -1, err
	}

	return t, idx, nil
}

// Extract adds the article text of every row's URL as the text column.
// A failed download is written as a failure cell and does not stop the stage.
func (r *Runner) Extract(ctx context.Context, input string, output string, urlColumn string) error {
	if r.extractor == nil {
		return errNoExtractor
	}
	if urlColumn == "" {
		urlColumn = ColumnURL
	}

	return r.track(ctx, StageExtract, input, output, func(string) (stageResult, error) {
		t, urlIdx, err := readColumn(input, urlColumn)
		if err != nil {
			return stageResult{}, err
		}
		textIdx := t.AddColumn(ColumnText)

		var failed int
		for i, row := range t.Rows {
			pageURL := strings.TrimSpace(row[urlIdx])

			text, extractErr := r.extractArticle(ctx, pageURL)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stageResult{rowsIn: len(t.Rows)}, ctxErr
			}

			if extractErr != nil {
				failed++
				r.log.WarnContext(ctx, "Failed to extract article",
					"error", extractErr,
					"url", pageURL,
					"row", i+1)
				text = article.FailureText(extractErr)
			}
			r.metrics.RecordArticle(extractErr == nil)

			row[textIdx] = text
		}

		if err = table.Write(output, t); err != nil {
			return stageResult{rowsIn: len(t.Rows)}, fmt.Errorf("write article table: %w", err)
		}

		if failed > 0 {
			r.log.InfoContext(ctx, "Some articles could not be extracted",
				"failedCount", failed,
				"rowCount", len(t.Rows))
		}

		return stageResult{rowsIn: len(t.Rows), rowsOut: len(t.Rows)}, nil
	})
}

func (r *Runner) extractArticle(ctx context.Context, pageURL string) (string, error) {
	if pageURL == "" {
		return "", errEmptyURL
	}

	if err := r.pacer.Wait(ctx, ratelimiter.HostKey(ratelimiter.KeyArticle, pageURL)); err != nil {
		return "", err
	}

	return r.extractor.Extract(ctx, pageURL)
}

// Summarize adds the key-message summary of the text column as newColumn.
// Empty text gives an empty summary; a failed call gives the failure cell.
func (r *Runner) Summarize(
	ctx context.Context,
	input string,
	output string,
	textColumn string,
	newColumn string,
) error {
	if r.summarizer == nil {
		return errNoSummarizer
	}
	if textColumn == "" {
		textColumn = ColumnText
	}
	if newColumn == "" {
		newColumn = ColumnProcessedText
	}

	return r.track(ctx, StageSummarize, input, output, func(string) (stageResult, error) {
		t, textIdx, err := readColumn(input, textColumn)
		if err != nil {
			return stageResult{}, err
		}
		urlIdx := slices.Index(t.Header, ColumnURL)
		summaryIdx := t.AddColumn(newColumn)

		for i, row := range t.Rows {
			text := strings.TrimSpace(row[textIdx])
			if text == "" || strings.HasPrefix(text, article.FailurePrefix) {
				row[summaryIdx] = ""
				continue
			}

			in := summarizer.Input{Text: text}
			if urlIdx >= 0 {
				in.SourceURL = row[urlIdx]
			}

			summary, summarizeErr := r.summarize(ctx, in)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stageResult{rowsIn: len(t.Rows)}, ctxErr
			}

			if summarizeErr != nil {
				r.log.WarnContext(ctx, "Failed to summarize text",
					"error", summarizeErr,
					"sourceURL", in.SourceURL,
					"row", i+1)
				summary = summarizer.FailureText
			}
			r.metrics.RecordSummary(summarizeErr == nil)

			row[summaryIdx] = summary
		}

		if err = table.Write(output, t); err != nil {
			return stageResult{rowsIn: len(t.Rows)}, fmt.Errorf("write summary table: %w", err)
		}

		return stageResult{rowsIn: len(t.Rows), rowsOut: len(t.Rows)}, nil
	})
}

func (r *Runner) summarize(ctx context.Context, in summarizer.Input) (string, error) {
	if err := r.pacer.Wait(ctx, ratelimiter.KeyOpenAI); err != nil {
		return "", err
	}

	return r.summarizer.Summarize(ctx, in)
}

// Segment replaces column with message_title and message, one row per
// message. Rows without messages produce no output rows.
func (r *Runner) Segment(ctx context.Context, input string, output string, column string) error {
	if column == "" {
		column = ColumnProcessedText
	}

	return r.track(ctx, StageSegment, input, output, func(string) (stageResult, error) {
		t, idx, err := readColumn(input, column)
		if err != nil {
			return stageResult{}, err
		}

		header := slices.Concat(t.Header[:idx], []string{ColumnMessageTitle, ColumnMessage}, t.Header[idx+1:])
		out := table.New(header...)

		var skipped int
		for _, row := range t.Rows {
			block := row[idx]
			if strings.TrimSpace(block) == summarizer.FailureText {
				skipped++
				continue
			}

			messages := segment.Segment(block)
			for _, msg := range messages {
				out.Append(slices.Concat(row[:idx], []string{msg.Label, msg.Body}, row[idx+1:])...)
			}
			r.metrics.RecordMessages(len(messages))
		}

		if skipped > 0 {
			r.log.InfoContext(ctx, "Skipped failed summaries",
				"skippedCount", skipped,
				"column", column)
		}

		if err = table.Write(output, out); err != nil {
			return stageResult{rowsIn: len(t.Rows)}, fmt.Errorf("write message table: %w", err)
		}

		return stageResult{rowsIn: len(t.Rows), rowsOut: len(out.Rows)}, nil
	})
}

// Score appends one column per emotion label with the classifier's score
// for column. Empty text or a failed call leaves the cells empty.
func (r *Runner) Score(ctx context.Context, input string, output string, column string) error {
	if r.classifier == nil {
		return errNoClassifier
	}
	if column == "" {
		column = ColumnMessage
	}

	return r.track(ctx, StageScore, input, output, func(string) (stageResult, error) {
		t, idx, err := readColumn(input, column)
		if err != nil {
			return stageResult{}, err
		}

		first := len(t.Header)
		for _, label := range emotion.Labels {
			t.AddColumn(label)
		}
		if len(t.Header)-first != len(emotion.Labels) {
			return stageResult{}, fmt.Errorf("table already has emotion columns (path = %s)", input)
		}

		for i, row := range t.Rows {
			cells := emotion.EmptyCells()

			if text := strings.TrimSpace(row[idx]); text != "" {
				scores, scoreErr := r.classify(ctx, text)
				if ctxErr := ctx.Err(); ctxErr != nil {
					return stageResult{rowsIn: len(t.Rows)}, ctxErr
				}

				if scoreErr != nil {
					r.log.WarnContext(ctx, "Failed to score message",
						"error", scoreErr,
						"row", i+1)
				} else {
					cells = scores.Cells()

					label, score := scores.Top()
					r.log.DebugContext(ctx, "Message is scored",
						"row", i+1,
						"topLabel", label,
						"topScore", score)
				}
				r.metrics.RecordScore(scoreErr == nil)
			}

			copy(row[first:], cells)
		}

		if err = table.Write(output, t); err != nil {
			return stageResult{rowsIn: len(t.Rows)}, fmt.Errorf("write score table: %w", err)
		}

		return stageResult{rowsIn: len(t.Rows), rowsOut: len(t.Rows)}, nil
	})
}

func (r *Runner) classify(ctx context.Context, text string) (emotion.Scores, error) {
	var scores emotion.Scores

	err := retry.Do(ctx, r.policy, func(ctx context.Context) error {
		if err := r.pacer.Wait(ctx, ratelimiter.KeyEmotion); err != nil {
			return err
		}

		var classifyErr error
		scores, classifyErr = r.classifier.Classify(ctx, text)

		return classifyErr
	})

	return scores, err
}
