package relay

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/models"
	"deeptalk-backend/internal/provider"
)

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// EventKind distinguishes the signal kinds found in the provider stream.
type EventKind int

const (
	// ContentDelta carries a fragment of the assistant's answer text.
	ContentDelta EventKind = iota
	// ReasoningDelta carries a fragment of the model's thinking text.
	ReasoningDelta
	// UsageReport carries the provider's token accounting.
	UsageReport
	// Done marks the provider's termination sentinel.
	Done
	// Malformed marks a data line whose payload failed to parse.
	Malformed
)

// Event is one classified upstream event. Constructed from a single decoded
// line and consumed immediately; never persisted.
type Event struct {
	Kind  EventKind
	Text  string
	Usage *models.Usage
}

// Classifier turns decoded stream lines into events. One bad payload never
// aborts the stream: it is counted, logged, and skipped.
type Classifier struct {
	log       zerolog.Logger
	malformed int
}

func NewClassifier(log zerolog.Logger) *Classifier {
	return &Classifier{log: log.With().Str("component", "classifier").Logger()}
}

// MalformedCount reports how many unparseable data lines were skipped.
func (c *Classifier) MalformedCount() int { return c.malformed }

// Classify consumes one line and returns its events in provider order:
// reasoning before content when both appear on the same line. Lines without
// the data prefix (blank keep-alives, comments) yield nothing, as do framing
// lines carrying no delta fields.
func (c *Classifier) Classify(line string) []Event {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}

	payload := line[len(dataPrefix):]
	if payload == doneMarker {
		return []Event{{Kind: Done}}
	}

	var chunk provider.StreamChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		c.malformed++
		c.log.Warn().Err(err).Str("payload", truncatePayload(payload)).Msg("skipping malformed stream event")
		return []Event{{Kind: Malformed}}
	}

	var events []Event
	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" {
			events = append(events, Event{Kind: ReasoningDelta, Text: delta.ReasoningContent})
		}
		if delta.Content != "" {
			events = append(events, Event{Kind: ContentDelta, Text: delta.Content})
		}
	}
	if chunk.Usage != nil {
		events = append(events, Event{Kind: UsageReport, Usage: chunk.Usage})
	}
	return events
}

func truncatePayload(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
