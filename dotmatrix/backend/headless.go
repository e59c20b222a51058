package backend

import (
	"log/slog"

	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// Headless is a host that renders nothing. Useful for tests, batch
// runs and running under a remote debugger.
type Headless struct {
	frames uint64
}

// NewHeadless returns a host without any output.
func NewHeadless() *Headless { return &Headless{} }

func (h *Headless) Init(config Config) error {
	slog.Debug("headless host ready", "title", config.Title)
	return nil
}

func (h *Headless) Update(frame *video.FrameBuffer) error {
	h.frames++
	return nil
}

// Frames reports how many frames were presented.
func (h *Headless) Frames() uint64 { return h.frames }

func (h *Headless) Cleanup() error { return nil }
