package system

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

var (
	_ Actions   = (*Exec)(nil)
	_ Messenger = (*WhatsApp)(nil)
)

// Runner starts name with args. When wait is false the process is started
// and left running (GUI apps, browsers); when true Runner waits and returns
// combined output.
type Runner func(ctx context.Context, wait bool, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, wait bool, name string, args ...string) ([]byte, error) {
	if !wait {
		cmd := exec.Command(name, args...)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		go cmd.Wait() //nolint:errcheck // detached
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Exec implements [Actions] with external commands chosen per GOOS.
type Exec struct {
	goos          string
	run           Runner
	screenshotDir string
	sysfs         string
	now           func() time.Time
	apps          map[string]string
}

// ExecOption configures an [Exec].
type ExecOption func(*Exec)

// WithGOOS overrides runtime.GOOS.
func WithGOOS(goos string) ExecOption { return func(e *Exec) { e.goos = goos } }

// WithRunner replaces process execution.
func WithRunner(r Runner) ExecOption { return func(e *Exec) { e.run = r } }

// WithScreenshotDir sets where screenshots are written. Default ~/Desktop.
func WithScreenshotDir(dir string) ExecOption { return func(e *Exec) { e.screenshotDir = dir } }

// WithSysfsRoot overrides /sys for battery reads.
func WithSysfsRoot(root string) ExecOption { return func(e *Exec) { e.sysfs = root } }

// WithApps adds spoken-name to executable mappings for OpenApp.
func WithApps(apps map[string]string) ExecOption {
	return func(e *Exec) {
		for k, v := range apps {
			e.apps[strings.ToLower(k)] = v
		}
	}
}

// NewExec creates an [Exec] for the running OS.
func NewExec(opts ...ExecOption) *Exec {
	home, _ := os.UserHomeDir()
	e := &Exec{
		goos:          runtime.GOOS,
		run:           execRunner,
		screenshotDir: filepath.Join(home, "Desktop"),
		sysfs:         "/sys",
		now:           time.Now,
		apps:          map[string]string{},
	}
	for _, o := range opts {
		o(e)
	}
	for k, v := range defaultApps(e.goos) {
		if _, ok := e.apps[k]; !ok {
			e.apps[k] = v
		}
	}
	return e
}

func defaultApps(goos string) map[string]string {
	switch goos {
	case "windows":
		return map[string]string{"notepad": "notepad.exe", "calculator": "calc.exe", "paint": "mspaint.exe", "chrome": "chrome", "edge": "msedge"}
	case "darwin":
		return map[string]string{"calculator": "Calculator", "chrome": "Google Chrome", "notes": "Notes", "safari": "Safari"}
	default:
		return map[string]string{"calculator": "gnome-calculator", "chrome": "google-chrome", "firefox": "firefox", "notepad": "gedit", "terminal": "x-terminal-emulator"}
	}
}

func (e *Exec) start(ctx context.Context, name string, args ...string) error {
	_, err := e.run(ctx, false, name, args...)
	return err
}

func (e *Exec) wait(ctx context.Context, name string, args ...string) ([]byte, error) {
	return e.run(ctx, true, name, args...)
}

// OpenApp launches name, mapping known spoken names to executables.
func (e *Exec) OpenApp(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("system: open app: empty name")
	}
	target := name
	lower := strings.ToLower(name)
	if exe, ok := e.apps[lower]; ok {
		target = exe
	} else {
		for _, key := range slices.Sorted(maps.Keys(e.apps)) {
			if strings.Contains(lower, key) {
				target = e.apps[key]
				break
			}
		}
	}
	var err error
	switch e.goos {
	case "windows":
		err = e.start(ctx, "cmd", "/c", "start", "", target)
	case "darwin":
		err = e.start(ctx, "open", "-a", target)
	default:
		err = e.start(ctx, target)
	}
	if err != nil {
		return fmt.Errorf("system: open app %q: %w", name, err)
	}
	return nil
}

// Screenshot implements [Actions].
func (e *Exec) Screenshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(e.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("system: screenshot: %w", err)
	}
	path := filepath.Join(e.screenshotDir, fmt.Sprintf("screenshot_%d.png", e.now().Unix()))
	var err error
	switch e.goos {
	case "windows":
		script := "Add-Type -AssemblyName System.Windows.Forms,System.Drawing;" +
			"$b=[System.Windows.Forms.Screen]::PrimaryScreen.Bounds;" +
			"$i=New-Object System.Drawing.Bitmap $b.Width,$b.Height;" +
			"[System.Drawing.Graphics]::FromImage($i).CopyFromScreen($b.Location,[System.Drawing.Point]::Empty,$b.Size);" +
			"$i.Save('" + path + "')"
		_, err = e.wait(ctx, "powershell", "-NoProfile", "-Command", script)
	case "darwin":
		_, err = e.wait(ctx, "screencapture", "-x", path)
	default:
		_, err = e.wait(ctx, "gnome-screenshot", "-f", path)
	}
	if err != nil {
		return "", fmt.Errorf("system: screenshot: %w", err)
	}
	return path, nil
}

// Lock implements [Actions].
func (e *Exec) Lock(ctx context.Context) error {
	var err error
	switch e.goos {
	case "windows":
		_, err = e.wait(ctx, "rundll32.exe", "user32.dll,LockWorkStation")
	case "darwin":
		_, err = e.wait(ctx, "pmset", "displaysleepnow")
	default:
		_, err = e.wait(ctx, "loginctl", "lock-session")
	}
	if err != nil {
		return fmt.Errorf("system: lock: %w", err)
	}
	return nil
}

// Shutdown schedules a power-off with a short grace period.
func (e *Exec) Shutdown(ctx context.Context) error {
	var err error
	switch e.goos {
	case "windows":
		_, err = e.wait(ctx, "shutdown", "/s", "/t", "10")
	case "darwin":
		_, err = e.wait(ctx, "osascript", "-e", `tell app "System Events" to shut down`)
	default:
		_, err = e.wait(ctx, "shutdown", "-h", "+1")
	}
	if err != nil {
		return fmt.Errorf("system: shutdown: %w", err)
	}
	return nil
}

// Restart schedules a reboot with a short grace period.
func (e *Exec) Restart(ctx context.Context) error {
	var err error
	switch e.goos {
	case "windows":
		_, err = e.wait(ctx, "shutdown", "/r", "/t", "5")
	case "darwin":
		_, err = e.wait(ctx, "osascript", "-e", `tell app "System Events" to restart`)
	default:
		_, err = e.wait(ctx, "shutdown", "-r", "+1")
	}
	if err != nil {
		return fmt.Errorf("system: restart: %w", err)
	}
	return nil
}

// OpenSettings implements [Actions].
func (e *Exec) OpenSettings(ctx context.Context) error {
	var err error
	switch e.goos {
	case "windows":
		err = e.start(ctx, "cmd", "/c", "start", "ms-settings:")
	case "darwin":
		err = e.start(ctx, "open", "-b", "com.apple.systempreferences")
	default:
		err = e.start(ctx, "gnome-control-center")
	}
	if err != nil {
		return fmt.Errorf("system: open settings: %w", err)
	}
	return nil
}

// Battery implements [Actions]. Linux reads sysfs; Windows asks WMI.
func (e *Exec) Battery(ctx context.Context) (BatteryStatus, error) {
	switch e.goos {
	case "windows":
		out, err := e.wait(ctx, "powershell", "-NoProfile", "-Command",
			"$b=Get-CimInstance Win32_Battery; \"$($b.EstimatedChargeRemaining) $($b.BatteryStatus)\"")
		if err != nil {
			return BatteryStatus{}, fmt.Errorf("system: battery: %w", err)
		}
		f := strings.Fields(string(out))
		if len(f) != 2 {
			return BatteryStatus{}, fmt.Errorf("system: battery: no battery reported")
		}
		pct, err := strconv.Atoi(f[0])
		if err != nil {
			return BatteryStatus{}, fmt.Errorf("system: battery: %w", err)
		}
		// Win32_Battery status 2 means on AC power.
		return BatteryStatus{Percent: pct, Charging: f[1] == "2"}, nil
	case "linux":
		return e.sysfsBattery()
	default:
		return BatteryStatus{}, ErrUnsupported
	}
}

func (e *Exec) sysfsBattery() (BatteryStatus, error) {
	dirs, err := filepath.Glob(filepath.Join(e.sysfs, "class", "power_supply", "BAT*"))
	if err != nil || len(dirs) == 0 {
		return BatteryStatus{}, fmt.Errorf("system: battery: no battery found")
	}
	capRaw, err := os.ReadFile(filepath.Join(dirs[0], "capacity"))
	if err != nil {
		return BatteryStatus{}, fmt.Errorf("system: battery: %w", err)
	}
	pct, err := strconv.Atoi(strings.TrimSpace(string(capRaw)))
	if err != nil {
		return BatteryStatus{}, fmt.Errorf("system: battery: %w", err)
	}
	status, _ := os.ReadFile(filepath.Join(dirs[0], "status"))
	st := strings.TrimSpace(string(status))
	return BatteryStatus{Percent: pct, Charging: st == "Charging" || st == "Full"}, nil
}

// SetVolume implements [Actions].
func (e *Exec) SetVolume(ctx context.Context, percent int) error {
	percent = min(max(percent, 0), 100)
	var err error
	switch e.goos {
	case "windows":
		_, err = e.wait(ctx, "nircmd.exe", "setsysvolume", strconv.Itoa(65535*percent/100))
	case "darwin":
		_, err = e.wait(ctx, "osascript", "-e", fmt.Sprintf("set volume output volume %d", percent))
	default:
		_, err = e.wait(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", fmt.Sprintf("%d%%", percent))
	}
	if err != nil {
		return fmt.Errorf("system: set volume: %w", err)
	}
	return nil
}

// OpenURL opens url in the default browser.
func (e *Exec) OpenURL(ctx context.Context, url string) error {
	var err error
	switch e.goos {
	case "windows":
		err = e.start(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		err = e.start(ctx, "open", url)
	default:
		err = e.start(ctx, "xdg-open", url)
	}
	if err != nil {
		return fmt.Errorf("system: open url: %w", err)
	}
	return nil
}

// WhatsApp sends messages by opening a click-to-chat link, which hands the
// prefilled message to the installed WhatsApp client.
type WhatsApp struct {
	opener interface {
		OpenURL(ctx context.Context, url string) error
	}
}

// NewWhatsApp creates a [WhatsApp] messenger that opens links with actions.
func NewWhatsApp(actions Actions) *WhatsApp {
	return &WhatsApp{opener: actions}
}

// Send implements [Messenger].
func (w *WhatsApp) Send(ctx context.Context, phone, message string) error {
	if strings.TrimSpace(phone) == "" || strings.TrimSpace(message) == "" {
		return fmt.Errorf("system: whatsapp: phone and message are required")
	}
	if err := w.opener.OpenURL(ctx, WhatsAppURL(phone, message)); err != nil {
		return fmt.Errorf("system: whatsapp: %w", err)
	}
	return nil
}
