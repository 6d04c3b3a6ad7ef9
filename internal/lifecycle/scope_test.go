package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_ReverseOrder(t *testing.T) {
	var order []string
	s := &Scope{}
	for _, name := range []string{"user_dict", "voice_model", "open_jtalk", "synthesizer"} {
		name := name
		s.Defer(name, func() error {
			order = append(order, name)
			return nil
		})
	}
	assert.Equal(t, 4, s.Len())

	require.NoError(t, s.Close())
	assert.Equal(t, []string{"synthesizer", "open_jtalk", "voice_model", "user_dict"}, order)
	assert.Equal(t, 0, s.Len())
}

func TestScope_RunsEveryReleaseAndJoinsErrors(t *testing.T) {
	errA := errors.New("a failed")
	errC := errors.New("c failed")
	ran := 0

	s := &Scope{}
	s.Defer("a", func() error { ran++; return errA })
	s.Defer("b", func() error { ran++; return nil })
	s.Defer("c", func() error { ran++; return errC })

	err := s.Close()
	require.Error(t, err)
	assert.Equal(t, 3, ran)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Contains(t, err.Error(), "release c")
}

func TestScope_PanickingReleaseDoesNotSkipOthers(t *testing.T) {
	var order []string
	s := &Scope{}
	s.Defer("library", func() error { order = append(order, "library"); return nil })
	s.Defer("synthesizer", func() error { panic("double free") })
	s.Defer("user_dict", func() error { order = append(order, "user_dict"); return nil })

	var err error
	require.NotPanics(t, func() { err = s.Close() })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReleasePanicked)
	assert.Contains(t, err.Error(), "release synthesizer")
	assert.Contains(t, err.Error(), "double free")
	assert.Equal(t, []string{"user_dict", "library"}, order)
}

func TestScope_CloseOnce(t *testing.T) {
	ran := 0
	s := &Scope{}
	s.Defer("x", func() error { ran++; return nil })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, ran)
}

func TestScope_DeferAfterClosePanics(t *testing.T) {
	s := &Scope{}
	require.NoError(t, s.Close())
	assert.Panics(t, func() {
		s.Defer("late", func() error { return nil })
	})
}

func TestScope_WithLedger(t *testing.T) {
	l := NewLedger()
	s := &Scope{}

	for _, h := range []uintptr{1, 2, 3} {
		h := h
		require.NoError(t, l.Acquire(kindDict, h))
		s.Defer("dict", func() error { return l.Release(kindDict, h) })
	}

	require.NoError(t, s.Close())
	require.NoError(t, l.Verify())

	events := l.Events()
	require.Len(t, events, 6)
	assert.Equal(t, uint64(3), events[3].Handle)
	assert.Equal(t, uint64(1), events[5].Handle)
}
