// Package events implements the fixed-capacity typed event bus between
// device/network producers and the Main task (§4.E), grounded on
// mt32-pi's CMainTask event queue
// (original_source/include/mainloop.h) and built on internal/ring for
// the actual FIFO storage and bounds.
package events

import "github.com/sbcsynth/core/internal/ring"

// Kind tags the variant carried by an Event.
type Kind int

const (
	Button Kind = iota
	Encoder
	SwitchSynth
	SwitchMt32RomSet
	SwitchSoundFont
	AllSoundOff
	DisplayImage

	numKinds
)

// kindNames is the declarative string table for Kind, replacing the
// source's preprocessor enum-with-strings (§9); init below checks it
// is kept in sync with the variant set.
var kindNames = [...]string{
	Button:           "Button",
	Encoder:          "Encoder",
	SwitchSynth:      "SwitchSynth",
	SwitchMt32RomSet: "SwitchMt32RomSet",
	SwitchSoundFont:  "SwitchSoundFont",
	AllSoundOff:      "AllSoundOff",
	DisplayImage:     "DisplayImage",
}

func init() {
	if len(kindNames) != int(numKinds) {
		panic("events: kindNames out of sync with Kind variants")
	}
}

// String returns the variant's name, or "Kind(invalid)" for an
// out-of-range value.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(invalid)"
	}

	return kindNames[k]
}

// Event is a tagged variant; only the fields relevant to Kind are
// meaningful (§ DATA MODEL).
type Event struct {
	Kind Kind

	// Button payload.
	ButtonID int
	Pressed  bool
	Repeat   bool

	// Encoder payload: signed step delta.
	Delta int

	// SwitchSynth / SwitchMt32RomSet / SwitchSoundFont payload: the
	// target index.
	Index int

	// DisplayImage payload: the image resource name.
	ImageName string
}

// NewButton builds a Button event.
func NewButton(id int, pressed, repeat bool) Event {
	return Event{Kind: Button, ButtonID: id, Pressed: pressed, Repeat: repeat}
}

// NewEncoder builds an Encoder event.
func NewEncoder(delta int) Event {
	return Event{Kind: Encoder, Delta: delta}
}

// NewSwitchSynth builds a SwitchSynth event selecting synth index i.
func NewSwitchSynth(i int) Event {
	return Event{Kind: SwitchSynth, Index: i}
}

// NewSwitchMt32RomSet builds a SwitchMt32RomSet event.
func NewSwitchMt32RomSet(i int) Event {
	return Event{Kind: SwitchMt32RomSet, Index: i}
}

// NewSwitchSoundFont builds a SwitchSoundFont event.
func NewSwitchSoundFont(i int) Event {
	return Event{Kind: SwitchSoundFont, Index: i}
}

// NewAllSoundOff builds an AllSoundOff event.
func NewAllSoundOff() Event {
	return Event{Kind: AllSoundOff}
}

// NewDisplayImage builds a DisplayImage event.
func NewDisplayImage(name string) Event {
	return Event{Kind: DisplayImage, ImageName: name}
}

// Capacity is the fixed EventQueue size (§4.E).
const Capacity = 32

// Queue is the shared event bus: any number of producers (control
// inputs, the AppleMIDI participant task, MiSTer polling, Main itself)
// enqueue; the Main task is the sole consumer.
type Queue struct {
	buf *ring.Buffer[Event]
}

// NewQueue returns an empty, Capacity-sized Queue.
func NewQueue() *Queue {
	return &Queue{buf: ring.New[Event](Capacity)}
}

// Push enqueues ev, returning false if the queue is full.
func (q *Queue) Push(ev Event) bool {
	return q.buf.Enqueue(ev)
}

// Pop dequeues the oldest event, ok is false if the queue is empty.
func (q *Queue) Pop() (Event, bool) {
	return q.buf.Dequeue()
}

// Len returns the number of events currently queued.
func (q *Queue) Len() int {
	return q.buf.Len()
}

// Dispatch drains the queue, calling handler for each event in order.
// This is the "single switch on the variant tag" consumer pattern from
// §4.E; handler is expected to do that switch.
func (q *Queue) Dispatch(handler func(Event)) {
	for {
		ev, ok := q.Pop()
		if !ok {
			return
		}

		handler(ev)
	}
}
