package bench

import (
	"bufio"
	"io"
	"os"
)

// TriggerSource reports operator step requests without blocking.
type TriggerSource interface {
	TryGetEvent() bool
}

// AnalogSource yields raw pedal samples.
type AnalogSource interface {
	Read() uint16
}

// AnalogFunc adapts a function to AnalogSource.
type AnalogFunc func() uint16

func (f AnalogFunc) Read() uint16 { return f() }

// MultiTrigger merges several trigger sources. All sources are polled each
// time so none backs up.
type MultiTrigger []TriggerSource

func (m MultiTrigger) TryGetEvent() bool {
	fired := false
	for _, t := range m {
		if t.TryGetEvent() {
			fired = true
		}
	}
	return fired
}

// StdinTrigger turns keypresses on standard input into step events. A burst
// of buffered bytes (a key plus its newline) collapses into a single event.
type StdinTrigger struct {
	events chan struct{}
}

func NewStdinTrigger() *StdinTrigger {
	return newReaderTrigger(os.Stdin)
}

func newReaderTrigger(r io.Reader) *StdinTrigger {
	t := &StdinTrigger{events: make(chan struct{}, 16)}
	go func() {
		br := bufio.NewReader(r)
		for {
			if _, err := br.ReadByte(); err != nil {
				return
			}
			select {
			case t.events <- struct{}{}:
			default:
			}
		}
	}()
	return t
}

func (t *StdinTrigger) TryGetEvent() bool {
	fired := false
	for {
		select {
		case <-t.events:
			fired = true
		default:
			return fired
		}
	}
}
