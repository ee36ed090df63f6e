package style

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// spinFrames are the braille frames cycled while a ledger publish or
// coordinator call is in flight.
var spinFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧"}

// Spinner is the in-flight indicator for publish, fetch, and seal
// operations. It animates only when the writer is a terminal; piped
// output gets the message once so logs stay clean.
type Spinner struct {
	w     io.Writer
	msg   string
	done  chan struct{}
	wg    sync.WaitGroup
	isTTY bool
}

// StartSpinner shows msg with an animated spinner until Stop is called.
func StartSpinner(w io.Writer, msg string) *Spinner {
	s := &Spinner{
		w:    w,
		msg:  msg,
		done: make(chan struct{}),
	}

	if f, ok := w.(*os.File); ok {
		s.isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if !s.isTTY {
		fmt.Fprintf(w, "%s\n", msg)
		return s
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for i := 0; ; i++ {
			select {
			case <-s.done:
				fmt.Fprintf(s.w, "\r\033[K")
				return
			default:
				fmt.Fprintf(s.w, "\r%s %s", Dim.Render(spinFrames[i%len(spinFrames)]), s.msg)
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
	return s
}

// Stop ends the animation and clears the line. Safe on non-TTY writers.
func (s *Spinner) Stop() {
	if !s.isTTY {
		return
	}
	close(s.done)
	s.wg.Wait()
}
