// Package mock provides test doubles for system.Actions and system.Messenger.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/chacha/pkg/system"
)

// Actions records every OS action as a short string such as "lock" or
// "open_url https://...".
type Actions struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every action.
	Err error

	// BatteryStatus is returned by Battery.
	BatteryStatus system.BatteryStatus

	// ScreenshotPath is returned by Screenshot.
	ScreenshotPath string

	// Calls lists recorded actions in order.
	Calls []string
}

func (a *Actions) record(format string, args ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls = append(a.Calls, fmt.Sprintf(format, args...))
	return a.Err
}

// Recorded returns a copy of Calls.
func (a *Actions) Recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.Calls...)
}

// OpenApp implements system.Actions.
func (a *Actions) OpenApp(_ context.Context, name string) error { return a.record("open_app %s", name) }

// Screenshot implements system.Actions.
func (a *Actions) Screenshot(context.Context) (string, error) {
	if err := a.record("screenshot"); err != nil {
		return "", err
	}
	return a.ScreenshotPath, nil
}

// Lock implements system.Actions.
func (a *Actions) Lock(context.Context) error { return a.record("lock") }

// Shutdown implements system.Actions.
func (a *Actions) Shutdown(context.Context) error { return a.record("shutdown") }

// Restart implements system.Actions.
func (a *Actions) Restart(context.Context) error { return a.record("restart") }

// OpenSettings implements system.Actions.
func (a *Actions) OpenSettings(context.Context) error { return a.record("settings") }

// Battery implements system.Actions.
func (a *Actions) Battery(context.Context) (system.BatteryStatus, error) {
	if err := a.record("battery"); err != nil {
		return system.BatteryStatus{}, err
	}
	return a.BatteryStatus, nil
}

// SetVolume implements system.Actions.
func (a *Actions) SetVolume(_ context.Context, percent int) error {
	return a.record("volume %d", percent)
}

// OpenURL implements system.Actions.
func (a *Actions) OpenURL(_ context.Context, url string) error { return a.record("open_url %s", url) }

// Messenger records sent messages.
type Messenger struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Send.
	Err error

	// Sent holds "phone: message" entries.
	Sent []string
}

// Send implements system.Messenger.
func (m *Messenger) Send(_ context.Context, phone, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, phone+": "+message)
	return m.Err
}

var (
	_ system.Actions   = (*Actions)(nil)
	_ system.Messenger = (*Messenger)(nil)
)
