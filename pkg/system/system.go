// Package system is the assistant's operating-system action surface:
// launching apps, screenshots, power actions, battery and master volume,
// opening URLs, and sending chat messages through the desktop WhatsApp
// client.
//
// Every action is a single external process; [Exec] picks the right command
// for the running OS.
package system

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when an action has no implementation on the
// current operating system.
var ErrUnsupported = errors.New("system: unsupported on this platform")

// BatteryStatus describes the primary battery.
type BatteryStatus struct {
	Percent  int
	Charging bool
}

// Actions is the OS surface the command router drives.
type Actions interface {
	OpenApp(ctx context.Context, name string) error
	// Screenshot saves the screen and returns the file path.
	Screenshot(ctx context.Context) (string, error)
	Lock(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
	OpenSettings(ctx context.Context) error
	Battery(ctx context.Context) (BatteryStatus, error)
	// SetVolume sets the master output volume in percent (0..100).
	SetVolume(ctx context.Context, percent int) error
	OpenURL(ctx context.Context, url string) error
}

// Messenger delivers a text message to a phone number.
type Messenger interface {
	Send(ctx context.Context, phone, message string) error
}
