// Package usbwatch monitors udev (github.com/jochenvg/go-udev) for USB
// mass-storage, MIDI-class, and serial-class hotplug and drives the
// orchestrator's attach/detach hooks (§4.M "USB plug-and-play").
package usbwatch

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/jochenvg/go-udev"

	"github.com/sbcsynth/core/internal/rom"
)

// Core is the subset of *orchestrator.Core this package drives, kept
// as a narrow interface (rather than importing the concrete type) so
// tests can substitute a fake without wiring a full orchestrator.Core.
type Core interface {
	OnMassStorageAttach(mounts []fs.FS, validator rom.Validator)
	OnMassStorageDetach(mounts []fs.FS)
	OnMidiClassAttach()
	OnMidiClassDetach()
	OnSerialAttach()
	OnSerialDetach()
}

// Watcher owns the udev monitor goroutine.
type Watcher struct {
	core      Core
	mounts    func() []fs.FS
	validator rom.Validator
	cancel    context.CancelFunc
}

// New builds a Watcher that asks mounts for the current mount set
// whenever a mass-storage event needs one, validating ROM images with
// validator.
func New(core Core, mounts func() []fs.FS, validator rom.Validator) *Watcher {
	return &Watcher{core: core, mounts: mounts, validator: validator}
}

// Run blocks, dispatching hotplug events to core until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	defer cancel()

	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")

	if err := mon.FilterAddMatchSubsystem("block"); err != nil {
		return fmt.Errorf("usbwatch: filter block: %w", err)
	}

	if err := mon.FilterAddMatchSubsystem("tty"); err != nil {
		return fmt.Errorf("usbwatch: filter tty: %w", err)
	}

	if err := mon.FilterAddMatchSubsystem("sound"); err != nil {
		return fmt.Errorf("usbwatch: filter sound: %w", err)
	}

	devCh, errCh, err := mon.DeviceChan(ctx)
	if err != nil {
		return fmt.Errorf("usbwatch: start monitor: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("usbwatch: monitor: %w", err)
			}
		case dev := <-devCh:
			if dev != nil {
				w.dispatch(dev)
			}
		}
	}
}

// Close stops a running Watcher.
func (w *Watcher) Close() {
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *Watcher) dispatch(dev udevDevice) {
	attach := dev.Action() == "add"

	switch dev.Subsystem() {
	case "block":
		if attach {
			w.core.OnMassStorageAttach(w.mounts(), w.validator)
		} else {
			w.core.OnMassStorageDetach(w.mounts())
		}

	case "sound":
		if attach {
			w.core.OnMidiClassAttach()
		} else {
			w.core.OnMidiClassDetach()
		}

	case "tty":
		if attach {
			w.core.OnSerialAttach()
		} else {
			w.core.OnSerialDetach()
		}
	}
}

// udevDevice is the subset of *udev.Device dispatch needs.
type udevDevice interface {
	Action() string
	Subsystem() string
}
