// Package rewind keeps a bounded history of machine states, so that the
// emulation can be stepped back in time.
package rewind

import (
	"github.com/go-faster/errors"

	"nescore/emu/log"
)

var modRewind = log.NewModule("rewind")

// ErrEmpty is returned when popping from an empty history.
var ErrEmpty = errors.New("rewind history is empty")

// Saver produces encoded machine states.
type Saver interface {
	SaveState() []byte
}

// Loader restores an encoded machine state. LoadState must leave the machine
// untouched on error.
type Loader interface {
	LoadState([]byte) error
}

// Rewind is a circular array of encoded states. When full, pushing a state
// forgets the oldest one.
type Rewind struct {
	entries [][]byte
	start   int // index of the oldest entry
	n       int // number of entries

	// a state is pushed by NewFrame every frequency frames
	frequency int
	frames    int
}

// New creates an history holding up to capacity states. A capacity of 0 is
// valid, nothing is ever stored.
func New(capacity int) *Rewind {
	return &Rewind{
		entries:   make([][]byte, max(capacity, 0)),
		frequency: 1,
	}
}

// SetFrequency sets the number of frames between 2 states pushed by NewFrame.
func (r *Rewind) SetFrequency(frames int) {
	r.frequency = max(frames, 1)
	r.frames = 0
}

// Len returns the number of stored states.
func (r *Rewind) Len() int { return r.n }

// Cap returns the maximum number of stored states.
func (r *Rewind) Cap() int { return len(r.entries) }

// Reset forgets all states.
func (r *Rewind) Reset() {
	clear(r.entries)
	r.start = 0
	r.n = 0
	r.frames = 0
}

// Push appends a state to the history. The oldest state is dropped if the
// history is full.
func (r *Rewind) Push(state []byte) {
	if len(r.entries) == 0 {
		return
	}

	end := (r.start + r.n) % len(r.entries)
	r.entries[end] = state
	if r.n == len(r.entries) {
		// full: push start index along
		r.start = (r.start + 1) % len(r.entries)
	} else {
		r.n++
	}

	modRewind.DebugZ("push state").
		Int("size", len(state)).
		Int("len", r.n).
		End()
}

// Peek returns the most recent state, without removing it.
func (r *Rewind) Peek() ([]byte, error) {
	if r.n == 0 {
		return nil, ErrEmpty
	}
	return r.entries[r.last()], nil
}

func (r *Rewind) last() int {
	return (r.start + r.n - 1) % len(r.entries)
}

// Pop restores the most recent state into m and removes it from the history.
// If m refuses the state, the history is left unchanged.
func (r *Rewind) Pop(m Loader) error {
	state, err := r.Peek()
	if err != nil {
		return err
	}
	if err := m.LoadState(state); err != nil {
		return errors.Wrap(err, "rewind")
	}

	r.entries[r.last()] = nil
	r.n--
	modRewind.DebugZ("pop state").Int("len", r.n).End()
	return nil
}

// NewFrame should be called once per emulated frame, it pushes the state of
// m every frequency frames.
func (r *Rewind) NewFrame(m Saver) {
	r.frames++
	if r.frames < r.frequency {
		return
	}
	r.frames = 0
	r.Push(m.SaveState())
}
