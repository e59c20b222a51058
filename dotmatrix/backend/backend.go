// Package backend contains the host-facing presentation layers. A Host
// renders frames and feeds input back into the machine; the emulation
// core never depends on one.
package backend

import (
	"github.com/valdt/dotmatrix/dotmatrix/memory"
	"github.com/valdt/dotmatrix/dotmatrix/video"
)

// Host is a complete presentation platform: rendering plus input.
type Host interface {
	// Init prepares the host. Required before the first Update.
	Init(config Config) error

	// Update renders one frame and processes pending host events,
	// reporting input through the configured callbacks.
	Update(frame *video.FrameBuffer) error

	// Cleanup releases host resources.
	Cleanup() error
}

// Config carries the callbacks a host uses to talk to the machine.
type Config struct {
	Title string

	Press   func(memory.Button)
	Release func(memory.Button)

	// Quit is called once when the user asks to close the emulator.
	Quit func()
}
