package rewind

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// machine is a fake machine whose whole state is a single byte.
type machine struct {
	state  byte
	refuse bool
	loads  int
}

func (m *machine) SaveState() []byte { return []byte{m.state} }

func (m *machine) LoadState(b []byte) error {
	if m.refuse {
		return errors.New("refused")
	}
	m.state = b[0]
	m.loads++
	return nil
}

func contents(r *Rewind) []byte {
	var all []byte
	for i := range r.n {
		all = append(all, r.entries[(r.start+i)%len(r.entries)][0])
	}
	return all
}

func TestPushEvictsOldest(t *testing.T) {
	r := New(3)
	for i := range 5 {
		r.Push([]byte{byte(i)})
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
	if r.Cap() != 3 {
		t.Errorf("Cap() = %d, want 3", r.Cap())
	}
	if diff := cmp.Diff([]byte{2, 3, 4}, contents(r)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestPopRestoresMostRecent(t *testing.T) {
	r := New(4)
	m := &machine{}
	for i := range 3 {
		m.state = byte(10 + i)
		r.Push(m.SaveState())
	}
	m.state = 99

	for _, want := range []byte{12, 11, 10} {
		if err := r.Pop(m); err != nil {
			t.Fatalf("Pop() error: %s", err)
		}
		if m.state != want {
			t.Errorf("state = %d, want %d", m.state, want)
		}
	}

	if err := r.Pop(m); !errors.Is(err, ErrEmpty) {
		t.Errorf("Pop() on empty history = %v, want %v", err, ErrEmpty)
	}
	if m.loads != 3 {
		t.Errorf("machine loaded %d states, want 3", m.loads)
	}
}

func TestPopRefused(t *testing.T) {
	r := New(2)
	r.Push([]byte{1})
	r.Push([]byte{2})

	m := &machine{state: 7, refuse: true}
	if err := r.Pop(m); err == nil {
		t.Fatal("Pop() should fail when the machine refuses the state")
	}
	if m.state != 7 {
		t.Errorf("state = %d, want 7 (untouched)", m.state)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2, a refused state stays in the history", r.Len())
	}
}

func TestWrapAround(t *testing.T) {
	r := New(3)
	m := &machine{}

	// Fill, pop some, then push again so that entries wrap.
	for i := range 3 {
		r.Push([]byte{byte(i)})
	}
	r.Pop(m)
	r.Pop(m)
	for i := range 3 {
		r.Push([]byte{byte(10 + i)})
	}

	if diff := cmp.Diff([]byte{10, 11, 12}, contents(r)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	state, err := r.Peek()
	if err != nil || state[0] != 12 {
		t.Errorf("Peek() = %v, %v, want [12]", state, err)
	}
}

func TestZeroCapacity(t *testing.T) {
	r := New(0)
	r.Push([]byte{1})
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, err := r.Peek(); !errors.Is(err, ErrEmpty) {
		t.Errorf("Peek() error = %v, want %v", err, ErrEmpty)
	}
}

func TestNewFrameFrequency(t *testing.T) {
	r := New(10)
	r.SetFrequency(3)
	m := &machine{}

	for i := range 10 {
		m.state = byte(i)
		r.NewFrame(m)
	}

	// Frames 2, 5 and 8 are pushed.
	if diff := cmp.Diff([]byte{2, 5, 8}, contents(r)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", r.Len())
	}
}
