package relay

import (
	"strings"

	"deeptalk-backend/internal/models"
)

// Accumulator folds content deltas into the final assistant message text and
// keeps the latest usage report. Reasoning text is deliberately not
// accumulated: it is relayed to the client and then discarded.
type Accumulator struct {
	content strings.Builder
	usage   *models.Usage
}

func (a *Accumulator) AddContent(text string) {
	a.content.WriteString(text)
}

// SetUsage records a usage report, last write wins. The provider is expected
// to send at most one, at the end of the stream.
func (a *Accumulator) SetUsage(u *models.Usage) {
	a.usage = u
}

func (a *Accumulator) Content() string {
	return a.content.String()
}

func (a *Accumulator) Usage() *models.Usage {
	return a.usage
}
