package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/jamesainslie/dirsnap/pkg/dirsnap/event"
)

// Badge labels are padded to the same width so messages line up.
const (
	infoLabel = " INFO "
	okLabel   = "  OK  "
	errLabel  = " ERR! "
)

// consoleSink renders events as badge-prefixed lines.
type consoleSink struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
}

// ConsoleSink returns a sink that writes each event to w as a colored badge
// followed by the message. When quiet is set only errors are written.
func ConsoleSink(w io.Writer, quiet bool) event.Sink {
	return &consoleSink{w: w, quiet: quiet}
}

func (c *consoleSink) Emit(e event.Event) {
	if c.quiet && e.Level != event.Err {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.w, "%s %s\n", Badge(e.Level), e.Message)
}

// Badge renders the badge for an event level.
func Badge(level event.Level) string {
	switch level {
	case event.Ok:
		return OkBadge.Render(okLabel)
	case event.Err:
		return ErrBadge.Render(errLabel)
	default:
		return InfoBadge.Render(infoLabel)
	}
}
