// Package control watches GPIO button and rotary-encoder lines with
// github.com/warthog618/go-gpiocdev and turns their edges into
// events.Event values on the shared queue (§4.E). Debounce tables are
// out of scope; this package only consumes edges the kernel already
// reports as debounced.
package control

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sbcsynth/core/internal/events"
)

// Watcher owns one request per configured line and pushes button and
// encoder events onto Queue as they arrive.
type Watcher struct {
	chip  string
	lines []*gpiocdev.Line
	Queue *events.Queue
}

// New records chip (e.g. "gpiochip0") as the chip later line requests
// are made on; it opens nothing itself.
func New(chip string, queue *events.Queue) *Watcher {
	return &Watcher{chip: chip, Queue: queue}
}

// WatchButton requests offset as an input with both-edge detection and
// reports presses (falling, active-low per the teacher's convention)
// as events.NewButton(id, pressed, false).
func (w *Watcher) WatchButton(id, offset int) error {
	l, err := gpiocdev.RequestLine(w.chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			pressed := evt.Type == gpiocdev.LineEventFallingEdge
			w.Queue.Push(events.NewButton(id, pressed, false))
		}),
	)
	if err != nil {
		return fmt.Errorf("control: request button line %d: %w", offset, err)
	}

	w.lines = append(w.lines, l)

	return nil
}

// WatchEncoder requests a quadrature pair (lineA, lineB) and reports
// each detent as events.NewEncoder(+1 or -1), decoded from the classic
// A-leads-B / B-leads-A gray-code transition on A's falling edge.
func (w *Watcher) WatchEncoder(lineA, lineB int) error {
	bLine, err := gpiocdev.RequestLine(w.chip, lineB, gpiocdev.AsInput)
	if err != nil {
		return fmt.Errorf("control: request encoder B line %d: %w", lineB, err)
	}

	w.lines = append(w.lines, bLine)

	aLine, err := gpiocdev.RequestLine(w.chip, lineA,
		gpiocdev.AsInput,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			bVal, err := bLine.Value()
			if err != nil {
				return
			}

			w.Queue.Push(events.NewEncoder(quadratureDelta(bVal)))
		}),
	)
	if err != nil {
		return fmt.Errorf("control: request encoder A line %d: %w", lineA, err)
	}

	w.lines = append(w.lines, aLine)

	return nil
}

// quadratureDelta decodes one encoder detent from line A's falling
// edge and line B's level at that instant: B low means A led B
// (clockwise), B high means B led A (counter-clockwise).
func quadratureDelta(bVal int) int {
	if bVal != 0 {
		return -1
	}

	return 1
}

// Close releases every requested line.
func (w *Watcher) Close() error {
	var firstErr error

	for _, l := range w.lines {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	w.lines = nil

	return firstErr
}
