package relay

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"deeptalk-backend/internal/models"
)

// Result is what one completed streaming turn produced.
type Result struct {
	Content   string
	Usage     *models.Usage
	Malformed int
}

// Run drives the reader → classifier → multiplexer pipeline for one turn.
// The caller must already have emitted the start signal. Each line is fully
// classified and relayed before the next read, so back-pressure falls
// through to the upstream connection.
//
// On success the done signal has been written and the accumulated content is
// returned. On any failure (upstream read error, client write error, or
// context cancellation on client disconnect) the error signal has been
// written, no further upstream reads occur, and an error is returned so the
// caller skips persistence.
func Run(ctx context.Context, body io.Reader, mux *Multiplexer, conversationID string, log zerolog.Logger) (*Result, error) {
	reader := NewLineReader(body)
	classifier := NewClassifier(log)
	acc := &Accumulator{}

	done := false
	for !done {
		if err := ctx.Err(); err != nil {
			mux.Fail("Stream cancelled")
			return nil, &ReadError{Err: err}
		}

		line, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("upstream stream read failed")
			mux.Fail("Stream processing failed")
			return nil, err
		}

		for _, ev := range classifier.Classify(line) {
			switch ev.Kind {
			case ReasoningDelta:
				if err := mux.Reasoning(ev.Text); err != nil {
					return nil, &ReadError{Err: err}
				}
			case ContentDelta:
				acc.AddContent(ev.Text)
				if err := mux.Content(ev.Text); err != nil {
					return nil, &ReadError{Err: err}
				}
			case UsageReport:
				acc.SetUsage(ev.Usage)
			case Done:
				// Early termination: lines after the sentinel are not processed.
				done = true
			case Malformed:
				// Counted by the classifier; the turn continues.
			}
			if done {
				break
			}
		}
	}

	if err := mux.Done(acc.Usage(), conversationID); err != nil {
		return nil, err
	}

	return &Result{
		Content:   acc.Content(),
		Usage:     acc.Usage(),
		Malformed: classifier.MalformedCount(),
	}, nil
}
