// Package debugger provides instruction-level execution control over a
// running machine: breakpoints, write watchpoints, single stepping and
// a remote protocol server for external debugger frontends.
package debugger

import (
	"sort"
	"sync/atomic"

	"github.com/valdt/dotmatrix/dotmatrix/cpu"
)

// Target is the machine surface the debugger drives. It is implemented
// by the root Machine type.
type Target interface {
	Step() (int, error)
	Registers() cpu.Regs
	SetRegisters(cpu.Regs)
	Read(address uint16) uint8
	Write(address uint16, value uint8)
	SetWriteHook(fn func(address uint16, value uint8))
}

// BreakReason says why a run returned control.
type BreakReason uint8

const (
	// BreakStep: a single step completed.
	BreakStep BreakReason = iota
	// BreakBreakpoint: the PC reached a breakpoint, before executing
	// the instruction there.
	BreakBreakpoint
	// BreakWatch: a watched address was written, after the write
	// landed.
	BreakWatch
	// BreakStopped: Stop was called from another goroutine.
	BreakStopped
)

func (r BreakReason) String() string {
	switch r {
	case BreakStep:
		return "step"
	case BreakBreakpoint:
		return "breakpoint"
	case BreakWatch:
		return "watchpoint"
	case BreakStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Break describes where and why execution paused.
type Break struct {
	Reason BreakReason
	PC     uint16

	// watchpoint hits only
	WatchAddr  uint16
	WatchValue uint8
}

// Debugger owns the breakpoint and watchpoint sets for one target.
// All methods except Stop must be called from the goroutine driving the
// target.
type Debugger struct {
	target Target

	breakpoints map[uint16]struct{}
	watches     map[uint16]struct{}

	watchHit  *Break
	interrupt atomic.Bool
}

// New attaches a debugger to the target. The target's write hook is
// claimed; Detach releases it.
func New(target Target) *Debugger {
	d := &Debugger{
		target:      target,
		breakpoints: make(map[uint16]struct{}),
		watches:     make(map[uint16]struct{}),
	}
	target.SetWriteHook(d.observeWrite)
	return d
}

// Detach removes the write hook and leaves the target running free.
func (d *Debugger) Detach() {
	d.target.SetWriteHook(nil)
}

func (d *Debugger) observeWrite(address uint16, value uint8) {
	if _, ok := d.watches[address]; !ok {
		return
	}
	// first hit within an instruction wins
	if d.watchHit == nil {
		d.watchHit = &Break{
			Reason:     BreakWatch,
			WatchAddr:  address,
			WatchValue: value,
		}
	}
}

// AddBreakpoint arms a breakpoint at the given PC.
func (d *Debugger) AddBreakpoint(pc uint16) {
	d.breakpoints[pc] = struct{}{}
}

// RemoveBreakpoint disarms a breakpoint; unknown addresses are ignored.
func (d *Debugger) RemoveBreakpoint(pc uint16) {
	delete(d.breakpoints, pc)
}

// Breakpoints lists armed breakpoints in ascending order.
func (d *Debugger) Breakpoints() []uint16 {
	out := make([]uint16, 0, len(d.breakpoints))
	for pc := range d.breakpoints {
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddWatch arms a write watchpoint on the given address.
func (d *Debugger) AddWatch(address uint16) {
	d.watches[address] = struct{}{}
}

// RemoveWatch disarms a write watchpoint.
func (d *Debugger) RemoveWatch(address uint16) {
	delete(d.watches, address)
}

// Watches lists armed watchpoints in ascending order.
func (d *Debugger) Watches() []uint16 {
	out := make([]uint16, 0, len(d.watches))
	for address := range d.watches {
		out = append(out, address)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stop asks a RunUntilBreak in progress to return. Safe to call from
// any goroutine.
func (d *Debugger) Stop() {
	d.interrupt.Store(true)
}

// StepOne executes exactly one instruction. A watchpoint hit is
// reported but the instruction still completes, since the hook fires
// after the write lands.
func (d *Debugger) StepOne() (Break, error) {
	d.watchHit = nil
	if _, err := d.target.Step(); err != nil {
		return Break{}, err
	}
	pc := d.target.Registers().PC
	if hit := d.watchHit; hit != nil {
		hit.PC = pc
		return *hit, nil
	}
	return Break{Reason: BreakStep, PC: pc}, nil
}

// RunUntilBreak executes instructions until a breakpoint or watchpoint
// fires, Stop is called, or the target reports a fatal error. A
// breakpoint at the resume PC does not re-trigger before the first
// instruction runs.
func (d *Debugger) RunUntilBreak() (Break, error) {
	d.interrupt.Store(false)
	first := true
	for {
		pc := d.target.Registers().PC
		if !first {
			if _, ok := d.breakpoints[pc]; ok {
				return Break{Reason: BreakBreakpoint, PC: pc}, nil
			}
		}
		first = false

		if d.interrupt.Load() {
			return Break{Reason: BreakStopped, PC: pc}, nil
		}

		d.watchHit = nil
		if _, err := d.target.Step(); err != nil {
			return Break{}, err
		}
		if hit := d.watchHit; hit != nil {
			hit.PC = d.target.Registers().PC
			return *hit, nil
		}
	}
}
