package segment

import (
	"iter"
	"strings"

	"newspulse/internal/domain"
)

const (
	Delimiter = "#"

	labelOpen  = '['
	labelClose = ']'
)

// SplitMessages yields the trimmed, non-empty fragments of text separated by
// Delimiter, in order. The sequence is a single pass over text.
func SplitMessages(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for fragment := range strings.SplitSeq(text, Delimiter) {
			fragment = strings.TrimSpace(fragment)
			if fragment == "" {
				continue
			}

			if !yield(fragment) {
				return
			}
		}
	}
}

// ExtractLabel takes the first [...] pair of fragment as the label and the
// text after its closing bracket as the body. Anything before the opening
// bracket is dropped. Without a complete non-empty pair the whole trimmed
// fragment becomes the body.
func ExtractLabel(fragment string) domain.LabeledMessage {
	open := strings.IndexByte(fragment, labelOpen)
	if open < 0 {
		return domain.LabeledMessage{Body: strings.TrimSpace(fragment)}
	}

	rest := fragment[open+1:]

	closing := strings.IndexByte(rest, labelClose)
	if closing <= 0 {
		return domain.LabeledMessage{Body: strings.TrimSpace(fragment)}
	}

	return domain.LabeledMessage{
		Label: strings.TrimSpace(rest[:closing]),
		Body:  strings.TrimSpace(rest[closing+1:]),
	}
}

func Segment(text string) []domain.LabeledMessage {
	var messages []domain.LabeledMessage

	for fragment := range SplitMessages(text) {
		messages = append(messages, ExtractLabel(fragment))
	}

	return messages
}
