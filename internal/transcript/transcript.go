// Package transcript keeps the client side of a conversation: the ordered
// messages shown to the user and whether the input accepts a new prompt.
package transcript

import (
	"errors"
	"sync"

	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

// Policy decides when a submitted turn gives the input back.
type Policy int

const (
	// LockUntilDone keeps the input disabled until the turn finishes,
	// successfully or not. Updates from a superseded turn are dropped.
	LockUntilDone Policy = iota
	// LockUntilFirstChunk re-enables the input as soon as a chunk arrives.
	// A second prompt submitted while the first is still streaming makes
	// both turns write to whichever assistant message is last.
	LockUntilFirstChunk
)

func (p Policy) String() string {
	if p == LockUntilFirstChunk {
		return "until-first-chunk"
	}
	return "until-done"
}

var (
	ErrEmptyPrompt = errors.New("transcript: empty prompt")
	ErrBusy        = errors.New("transcript: a reply is still streaming")
)

// Snapshot is a copy of the transcript state at one point in time.
type Snapshot struct {
	Messages     []types.Message
	InputEnabled bool
	Err          error
}

// Last returns the final message, if any.
func (s Snapshot) Last() (types.Message, bool) {
	if len(s.Messages) == 0 {
		return types.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

type Option func(*Transcript)

func WithPolicy(p Policy) Option {
	return func(t *Transcript) { t.policy = p }
}

// WithOnChange registers fn to receive a snapshot after every mutation.
// fn runs on the goroutine that caused the change, outside the lock.
func WithOnChange(fn func(Snapshot)) Option {
	return func(t *Transcript) { t.onChange = fn }
}

type Transcript struct {
	mu       sync.Mutex
	messages []types.Message
	enabled  bool
	seq      uint64
	policy   Policy
	lastErr  error
	onChange func(Snapshot)
}

func New(opts ...Option) *Transcript {
	t := &Transcript{enabled: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transcript) Policy() Policy { return t.policy }

// Submit appends prompt as a user message and disables the input. The
// returned Turn receives the assistant reply. An empty prompt changes
// nothing.
func (t *Transcript) Submit(prompt string) (*Turn, error) {
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return nil, ErrBusy
	}
	t.messages = append(t.messages, types.Message{Role: types.RoleUser, Content: prompt})
	t.enabled = false
	t.lastErr = nil
	t.seq++
	turn := &Turn{t: t, seq: t.seq, prompt: prompt}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
	return turn, nil
}

// Reset clears the messages and invalidates any turn still streaming.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.messages = nil
	t.enabled = true
	t.lastErr = nil
	t.seq++
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
}

func (t *Transcript) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Transcript) Messages() []types.Message {
	return t.Snapshot().Messages
}

func (t *Transcript) InputEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Transcript) snapshotLocked() Snapshot {
	return Snapshot{
		Messages:     append([]types.Message(nil), t.messages...),
		InputEnabled: t.enabled,
		Err:          t.lastErr,
	}
}

func (t *Transcript) notify(s Snapshot) {
	if t.onChange != nil {
		t.onChange(s)
	}
}

// Turn is one submitted prompt waiting for its reply.
type Turn struct {
	t      *Transcript
	seq    uint64
	prompt string
}

func (u *Turn) Prompt() string { return u.prompt }

// stale reports whether a newer Submit or Reset superseded u. Must hold t.mu.
func (u *Turn) stale() bool {
	return u.t.policy == LockUntilDone && u.seq != u.t.seq
}

// Update sets the reply so far. accumulated replaces the content of the
// trailing assistant message, or becomes a new assistant message when the
// transcript ends with something else.
func (u *Turn) Update(accumulated string) {
	t := u.t
	t.mu.Lock()
	if u.stale() {
		t.mu.Unlock()
		return
	}
	if n := len(t.messages); n > 0 && t.messages[n-1].Role == types.RoleAssistant {
		t.messages[n-1].Content = accumulated
	} else {
		t.messages = append(t.messages, types.Message{Role: types.RoleAssistant, Content: accumulated})
	}
	if t.policy == LockUntilFirstChunk {
		t.enabled = true
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
}

// Finish ends the turn and gives the input back, whatever err is.
func (u *Turn) Finish(err error) {
	t := u.t
	t.mu.Lock()
	if u.stale() {
		t.mu.Unlock()
		return
	}
	t.enabled = true
	t.lastErr = err
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.notify(snap)
}
