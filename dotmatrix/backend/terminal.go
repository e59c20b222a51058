package backend

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/valdt/dotmatrix/dotmatrix/memory"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// keyHoldTime is how long a key press counts as held. Terminals only
// report presses, so releases are synthesized after this interval;
// key repeat keeps a held key alive.
const keyHoldTime = 150 * time.Millisecond

// Terminal renders into the controlling terminal with tcell, drawing
// two pixels per character cell using the upper half block glyph.
type Terminal struct {
	screen tcell.Screen
	config Config
	events chan tcell.Event
	held   map[memory.Button]time.Time
}

// NewTerminal returns a terminal host.
func NewTerminal() *Terminal {
	return &Terminal{
		events: make(chan tcell.Event, 64),
		held:   make(map[memory.Button]time.Time),
	}
}

func (t *Terminal) Init(config Config) error {
	t.config = config

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("terminal host: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("terminal host: %w", err)
	}
	t.screen = screen
	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				close(t.events)
				return
			}
			t.events <- ev
		}
	}()
	return nil
}

func (t *Terminal) Update(frame *video.FrameBuffer) error {
	t.pollInput()
	t.expireKeys()
	t.draw(frame)
	t.screen.Show()
	return nil
}

func (t *Terminal) Cleanup() error {
	if t.screen != nil {
		t.screen.Fini()
	}
	return nil
}

func (t *Terminal) pollInput() {
	for {
		select {
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			if key, isKey := ev.(*tcell.EventKey); isKey {
				t.handleKey(key)
			}
		default:
			return
		}
	}
}

func (t *Terminal) handleKey(ev *tcell.EventKey) {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
		if t.config.Quit != nil {
			t.config.Quit()
		}
		return
	}

	button, ok := buttonForKey(ev)
	if !ok {
		return
	}
	if _, holding := t.held[button]; !holding && t.config.Press != nil {
		t.config.Press(button)
	}
	t.held[button] = time.Now()
}

func (t *Terminal) expireKeys() {
	now := time.Now()
	for button, last := range t.held {
		if now.Sub(last) > keyHoldTime {
			delete(t.held, button)
			if t.config.Release != nil {
				t.config.Release(button)
			}
		}
	}
}

func buttonForKey(ev *tcell.EventKey) (memory.Button, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return memory.ButtonUp, true
	case tcell.KeyDown:
		return memory.ButtonDown, true
	case tcell.KeyLeft:
		return memory.ButtonLeft, true
	case tcell.KeyRight:
		return memory.ButtonRight, true
	case tcell.KeyEnter:
		return memory.ButtonStart, true
	}
	switch ev.Rune() {
	case 'z':
		return memory.ButtonB, true
	case 'x':
		return memory.ButtonA, true
	case ' ':
		return memory.ButtonSelect, true
	}
	return 0, false
}

func (t *Terminal) draw(frame *video.FrameBuffer) {
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			style := tcell.StyleDefault.
				Foreground(cellColor(frame.GetPixel(x, y))).
				Background(cellColor(frame.GetPixel(x, y+1)))
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}

func cellColor(c video.Color) tcell.Color {
	return tcell.NewRGBColor(
		int32(c>>16&0xFF),
		int32(c>>8&0xFF),
		int32(c&0xFF),
	)
}
