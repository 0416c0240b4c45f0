package transcript

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waseemkhan00777/askify-gemini/pkg/types"
)

func user(s string) types.Message      { return types.Message{Role: types.RoleUser, Content: s} }
func assistant(s string) types.Message { return types.Message{Role: types.RoleAssistant, Content: s} }

func TestSubmit_AppendsUserMessageFirst(t *testing.T) {
	var seen []Snapshot
	tr := New(WithOnChange(func(s Snapshot) { seen = append(seen, s) }))

	turn, err := tr.Submit("what is go?")
	require.NoError(t, err)
	require.Equal(t, "what is go?", turn.Prompt())
	require.Equal(t, []types.Message{user("what is go?")}, tr.Messages())
	require.False(t, tr.InputEnabled())
	require.Len(t, seen, 1)
	require.False(t, seen[0].InputEnabled)
}

func TestSubmit_EmptyPromptIsNoop(t *testing.T) {
	calls := 0
	tr := New(WithOnChange(func(Snapshot) { calls++ }))

	turn, err := tr.Submit("")
	require.ErrorIs(t, err, ErrEmptyPrompt)
	require.Nil(t, turn)
	require.Empty(t, tr.Messages())
	require.True(t, tr.InputEnabled())
	require.Zero(t, calls)
}

func TestUpdate_OverwritesTrailingAssistant(t *testing.T) {
	tr := New()
	turn, err := tr.Submit("hi")
	require.NoError(t, err)

	acc := ""
	for _, want := range []string{"Hel", "Hello, ", "Hello, world"} {
		acc = want
		turn.Update(acc)
		require.Equal(t, []types.Message{user("hi"), assistant(want)}, tr.Messages())
	}
	turn.Update(acc)
	require.Len(t, tr.Messages(), 2)

	turn.Finish(nil)
	snap := tr.Snapshot()
	require.True(t, snap.InputEnabled)
	require.NoError(t, snap.Err)
	last, ok := snap.Last()
	require.True(t, ok)
	require.Equal(t, assistant("Hello, world"), last)
}

func TestLockUntilDone(t *testing.T) {
	tr := New()
	require.Equal(t, LockUntilDone, tr.Policy())

	turn, err := tr.Submit("one")
	require.NoError(t, err)
	turn.Update("partial")
	require.False(t, tr.InputEnabled())

	_, err = tr.Submit("two")
	require.ErrorIs(t, err, ErrBusy)
	require.Len(t, tr.Messages(), 2)

	boom := errors.New("boom")
	turn.Finish(boom)
	require.True(t, tr.InputEnabled())
	require.ErrorIs(t, tr.Snapshot().Err, boom)

	_, err = tr.Submit("two")
	require.NoError(t, err)
	require.Nil(t, tr.Snapshot().Err)
}

func TestFinish_ReenablesWithoutAnyChunk(t *testing.T) {
	tr := New()
	turn, err := tr.Submit("one")
	require.NoError(t, err)

	turn.Finish(errors.New("connection refused"))
	require.True(t, tr.InputEnabled())
	require.Equal(t, []types.Message{user("one")}, tr.Messages())
}

func TestReset_DropsStaleTurn(t *testing.T) {
	tr := New()
	old, err := tr.Submit("one")
	require.NoError(t, err)
	old.Update("partial")

	tr.Reset()
	require.Empty(t, tr.Messages())
	require.True(t, tr.InputEnabled())

	cur, err := tr.Submit("two")
	require.NoError(t, err)

	old.Update("partial answer")
	old.Finish(nil)
	require.Equal(t, []types.Message{user("two")}, tr.Messages())
	require.False(t, tr.InputEnabled())

	cur.Update("fresh")
	cur.Finish(nil)
	require.Equal(t, []types.Message{user("two"), assistant("fresh")}, tr.Messages())
}

// Under LockUntilFirstChunk a second prompt can go out while the first
// reply is still streaming, and the two replies overwrite each other.
func TestLockUntilFirstChunk_Interleaves(t *testing.T) {
	tr := New(WithPolicy(LockUntilFirstChunk))

	first, err := tr.Submit("a")
	require.NoError(t, err)
	require.False(t, tr.InputEnabled())

	first.Update("x")
	require.True(t, tr.InputEnabled())

	second, err := tr.Submit("b")
	require.NoError(t, err)

	first.Update("xy")
	require.Equal(t, []types.Message{user("a"), assistant("x"), user("b"), assistant("xy")}, tr.Messages())

	second.Update("z")
	first.Update("xyz")
	second.Finish(nil)
	first.Finish(nil)

	require.Equal(t, []types.Message{user("a"), assistant("x"), user("b"), assistant("xyz")}, tr.Messages())
	require.True(t, tr.InputEnabled())
}

func TestPolicyString(t *testing.T) {
	require.Equal(t, "until-done", LockUntilDone.String())
	require.Equal(t, "until-first-chunk", LockUntilFirstChunk.String())
}
