package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerTick = 80 * time.Millisecond

// spinner animates a status line while a kernel runs, with the time spent
// so far. It draws on the status output it was started with, so tensor
// data on stdout stays clean.
type spinner struct {
	label string
	out   io.Writer
	start time.Time

	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	stop    sync.Once
	stopped chan struct{}

	mu    sync.Mutex
	drawn int // width of the last frame, cleared on stop
}

// startSpinner starts animating label. The animation ends when parent is done
// or one of the finish methods is called.
func startSpinner(parent context.Context, label string) *spinner {
	ctx, cancel := context.WithCancel(parent)
	s := &spinner{
		label:   label,
		out:     statusOut,
		start:   time.Now(),
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *spinner) loop() {
	defer close(s.stopped)
	ticker := time.NewTicker(spinnerTick)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.ctx.Done():
			s.clear()
			return
		case <-ticker.C:
			s.draw(s.frame(i, time.Since(s.start)))
		}
	}
}

// frame renders animation step i after elapsed time.
func (s *spinner) frame(i int, elapsed time.Duration) string {
	icon := styleIconSpinner.Render(spinnerFrames[i%len(spinnerFrames)])
	return fmt.Sprintf("%s %s %s", icon, s.label, StyleDim.Render(elapsed.Round(100*time.Millisecond).String()))
}

func (s *spinner) draw(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pad := ""
	if w := lipgloss.Width(line); w < s.drawn {
		pad = strings.Repeat(" ", s.drawn-w)
	} else {
		s.drawn = w
	}
	fmt.Fprint(s.out, "\r"+line+pad)
}

func (s *spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawn == 0 {
		return
	}
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", s.drawn))
	s.drawn = 0
}

// halt ends the animation and clears its line. It is safe to call more
// than once.
func (s *spinner) halt() {
	s.stop.Do(s.cancel)
	<-s.stopped
	s.clear()
}

// succeed ends the animation with a success line that carries the time
// spent.
func (s *spinner) succeed(msg string) {
	s.halt()
	printSuccess("%s %s", msg, StyleDim.Render(fmt.Sprintf("(%s)", time.Since(s.start).Round(time.Millisecond))))
}

// fail ends the animation with an error line.
func (s *spinner) fail(msg string) {
	s.halt()
	printError("%s", msg)
}

// interrupted reports whether the run's context ended before the
// spinner was finished.
func (s *spinner) interrupted() bool {
	return s.parent.Err() != nil
}
