package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/valdt/dotmatrix/dotmatrix"
	"github.com/valdt/dotmatrix/dotmatrix/audio"
	"github.com/valdt/dotmatrix/dotmatrix/backend"
	"github.com/valdt/dotmatrix/dotmatrix/debugger"
)

func main() {
	app := cli.NewApp()
	app.Name = "dotmatrix"
	app.Usage = "game boy and game boy color emulator"
	app.ArgsUsage = "<rom file>"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "headless",
			Usage: "run without any display",
		},
		cli.UintFlag{
			Name:  "frames",
			Usage: "exit after emulating this many frames (0 = run until quit)",
		},
		cli.BoolFlag{
			Name:  "threaded-ppu",
			Usage: "render frames on a worker goroutine",
		},
		cli.StringFlag{
			Name:  "load-state",
			Usage: "restore a save state before starting",
		},
		cli.StringFlag{
			Name:  "save-state",
			Usage: "write a save state to this path on exit",
		},
		cli.StringFlag{
			Name:  "gdb",
			Usage: "listen for a remote debugger on this address (e.g. :9331)",
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "record audio output to this WAV file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log verbosity: debug, info, warn or error",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	setupLogging(c.String("log-level"))

	if c.NArg() < 1 {
		return cli.NewExitError("no ROM file given", 1)
	}
	romPath := c.Args().First()

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("read ROM: %w", err)
	}

	m, err := dotmatrix.New(rom, dotmatrix.Config{
		ThreadedPPU: c.Bool("threaded-ppu"),
	})
	if err != nil {
		return err
	}
	defer m.Close()

	savPath := romPath + ".sav"
	loadBattery(m, savPath)
	defer saveBattery(m, savPath)

	if path := c.String("load-state"); path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read save state: %w", err)
		}
		if err := m.LoadState(blob); err != nil {
			return fmt.Errorf("restore save state: %w", err)
		}
		slog.Info("save state restored", "path", path)
	}
	if path := c.String("save-state"); path != "" {
		defer func() {
			blob, err := m.SaveState()
			if err == nil {
				err = os.WriteFile(path, blob, 0o644)
			}
			if err != nil {
				slog.Error("save state failed", "path", path, "error", err)
				return
			}
			slog.Info("save state written", "path", path)
		}()
	}

	if path := c.String("wav"); path != "" {
		rec, err := audio.NewWAVRecorder(path, m.APU())
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	if address := c.String("gdb"); address != "" {
		return serveDebugger(m, address)
	}

	var host backend.Host
	if c.Bool("headless") {
		host = backend.NewHeadless()
	} else {
		host = backend.NewTerminal()
	}
	return runHost(m, host, uint64(c.Uint("frames")))
}

// serveDebugger hands the machine to a remote debugger and waits for a
// shutdown signal. The debug server's client drives all execution.
func serveDebugger(m *dotmatrix.Machine, address string) error {
	dbg := debugger.New(m)
	defer dbg.Detach()

	srv, err := debugger.Serve(address, dbg)
	if err != nil {
		return err
	}
	defer srv.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	dbg.Stop()
	return nil
}

func runHost(m *dotmatrix.Machine, host backend.Host, maxFrames uint64) error {
	quit := make(chan struct{})
	cfg := backend.Config{
		Title:   m.Title(),
		Press:   m.Press,
		Release: m.Release,
		Quit:    func() { close(quit) },
	}
	if err := host.Init(cfg); err != nil {
		return err
	}
	defer host.Cleanup()

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
		}

		if err := m.RunFrame(); err != nil {
			return err
		}
		if err := host.Update(m.Frame()); err != nil {
			return err
		}
		if maxFrames > 0 && m.Frames() >= maxFrames {
			return nil
		}
	}
}

func loadBattery(m *dotmatrix.Machine, path string) {
	if m.BatteryRAM() == nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	m.LoadBatteryRAM(data)
	slog.Info("battery save loaded", "path", path)
}

func saveBattery(m *dotmatrix.Machine, path string) {
	ram := m.BatteryRAM()
	if ram == nil {
		return
	}
	if err := os.WriteFile(path, ram, 0o644); err != nil {
		slog.Error("battery save failed", "path", path, "error", err)
		return
	}
	slog.Info("battery save written", "path", path)
}

func setupLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: l,
	})))
}
