package backend

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valdt/dotmatrix/dotmatrix/memory"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

func TestHeadless(t *testing.T) {
	h := NewHeadless()
	require.NoError(t, h.Init(Config{Title: "TEST"}))

	frame := video.NewFrameBuffer()
	require.NoError(t, h.Update(frame))
	require.NoError(t, h.Update(frame))
	assert.Equal(t, uint64(2), h.Frames())
	assert.NoError(t, h.Cleanup())
}

func TestButtonForKey(t *testing.T) {
	tests := []struct {
		key    tcell.Key
		r      rune
		button memory.Button
	}{
		{tcell.KeyUp, 0, memory.ButtonUp},
		{tcell.KeyDown, 0, memory.ButtonDown},
		{tcell.KeyLeft, 0, memory.ButtonLeft},
		{tcell.KeyRight, 0, memory.ButtonRight},
		{tcell.KeyEnter, 0, memory.ButtonStart},
		{tcell.KeyRune, 'z', memory.ButtonB},
		{tcell.KeyRune, 'x', memory.ButtonA},
		{tcell.KeyRune, ' ', memory.ButtonSelect},
	}
	for _, tt := range tests {
		ev := tcell.NewEventKey(tt.key, tt.r, tcell.ModNone)
		button, ok := buttonForKey(ev)
		assert.True(t, ok)
		assert.Equal(t, tt.button, button)
	}

	_, ok := buttonForKey(tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone))
	assert.False(t, ok)
}

func TestKeyPressAndSynthesizedRelease(t *testing.T) {
	var pressed, released []memory.Button
	term := NewTerminal()
	term.config = Config{
		Press:   func(b memory.Button) { pressed = append(pressed, b) },
		Release: func(b memory.Button) { released = append(released, b) },
	}

	ev := tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)
	term.handleKey(ev)
	assert.Equal(t, []memory.Button{memory.ButtonA}, pressed)

	// key repeat refreshes the hold without a second press
	term.handleKey(ev)
	assert.Len(t, pressed, 1)

	// not yet expired
	term.expireKeys()
	assert.Empty(t, released)

	term.held[memory.ButtonA] = time.Now().Add(-2 * keyHoldTime)
	term.expireKeys()
	assert.Equal(t, []memory.Button{memory.ButtonA}, released)

	// a fresh press after release counts again
	term.handleKey(ev)
	assert.Len(t, pressed, 2)
}

func TestQuitKeys(t *testing.T) {
	quits := 0
	term := NewTerminal()
	term.config = Config{Quit: func() { quits++ }}

	term.handleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone))
	term.handleKey(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModNone))
	term.handleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	assert.Equal(t, 3, quits)
}

func TestCellColor(t *testing.T) {
	c := cellColor(video.Color(0xFF102030))
	r, g, b := c.RGB()
	assert.Equal(t, int32(0x10), r)
	assert.Equal(t, int32(0x20), g)
	assert.Equal(t, int32(0x30), b)
}
