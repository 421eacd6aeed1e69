package router

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/chacha/internal/intent"
	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/internal/reminder"
	"github.com/MrWong99/chacha/pkg/media"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/system"
)

// Keyword sets scanned on the raw utterance.
var (
	volumeWords     = []string{"volume", "awaaz", "sound"}
	reminderPhrases = []string{"yaad dilana", "remind*", "alarm lagao", "set timer"}
	timePhrases     = []string{"time", "samay", "kitne baje"}
	datePhrases     = []string{"date", "tareekh", "tarikh"}
	batteryPhrases  = []string{"battery", "charge", "charging"}
	videoWords      = []string{"youtube", "song", "video"}
	detectPhrases   = []string{
		"ye kya", "what is this", "dekho ye kya", "batado ye", "chacha ye kya",
		"mere haath me kya", "dekho yah kya hai",
	}
	continuousStartPhrases = []string{
		"continue detecting", "continuous detect", "live detect", "lagatar dekho",
	}
	continuousStopPhrases = []string{
		"band karo", "stop detecting", "detection band", "detect band", "ruk jao",
	}
)

// Spoken lines.
const (
	MsgUnavailable      = "Yeh feature abhi available nahi hai."
	MsgReminderUnclear  = "Mujhe samajh nahi aaya kitne time baad ya kya yaad dilana hai."
	MsgMessageMissing   = "Contact ya message samajh nahi aaya."
	MsgMessageFailed    = "WhatsApp message bhejte waqt koi error aaya."
	MsgWhichApp         = "Which application should I open?"
	MsgScreenshotFailed = "Failed to take screenshot."
	MsgLocking          = "Locking the computer now."
	MsgLockFailed       = "Could not lock the computer."
	MsgShuttingDown     = "Shutting down in 10 seconds. Please save your work."
	MsgShutdownFailed   = "Could not schedule shutdown."
	MsgRestarting       = "Restarting system now."
	MsgRestartFailed    = "Could not restart the computer."
	MsgOpeningSettings  = "Opening Settings."
	MsgSettingsFailed   = "Could not open settings."
	MsgBatteryUnknown   = "Battery information mil nahi rahi hai."
	MsgNoMusic          = "Music folder mein koi gaana nahi mila."
	MsgMusicFailed      = "Music chalane mein dikkat aayi."
	MsgMediaVolumeAsk   = "Kitni awaaz chahiye, batayiye."
	MsgCameraStarting   = "Camera chalu kar raha hoon, ek second..."
	MsgWebsiteUnclear   = "Kaunsi website kholni hai, samajh nahi aaya."
	MsgBrowserFailed    = "Browser khol nahi paaya."
	MsgChatOffline      = "Sorry, I'm not connected to the AI right now."
	MsgChatEmpty        = "Sorry, I couldn't understand that."
	MsgChatFailed       = "Something went wrong with AI response."
	MsgVolumeFailed     = "Awaaz badal nahi paaya."
	MsgReminderFailed   = "Reminder set nahi ho paaya."
	chatSystemPrompt    = "You are Chacha, a friendly voice assistant. Understand tone (Hindi/English/Hinglish) and reply naturally, friendly, short."
	chatTemperature     = 0.7
)

func (r *Router) fastPathRules() []Rule {
	return []Rule{
		{
			Name: "continuous_stop",
			Match: func(c Command) bool {
				return r.deps.Vision != nil && r.deps.Vision.Running() && hasAny(c.Tokens, continuousStopPhrases...)
			},
			Handle: func(context.Context, Command) error {
				r.deps.Vision.Stop()
				return nil
			},
		},
		{
			Name: "volume",
			Match: func(c Command) bool {
				if !hasAny(c.Tokens, volumeWords...) {
					return false
				}
				_, ok := ExtractVolumeLevel(c.Text)
				return ok
			},
			Handle: r.handleVolume,
		},
		{
			Name:   "reminder",
			Match:  func(c Command) bool { return hasAny(c.Tokens, reminderPhrases...) },
			Handle: r.handleReminder,
		},
		{
			Name: "clock",
			Match: func(c Command) bool {
				return hasAny(c.Tokens, timePhrases...) || hasAny(c.Tokens, datePhrases...)
			},
			Handle: r.handleClock,
		},
	}
}

func isCategory(cats ...intent.Category) func(Command) bool {
	return func(c Command) bool {
		for _, cat := range cats {
			if c.Intent.Category == cat {
				return true
			}
		}
		return false
	}
}

func (r *Router) dispatchRules() []Rule {
	return []Rule{
		{Name: "send_message", Match: isCategory(intent.SendMessage), Handle: r.handleMessage},
		{Name: "open_app", Match: isCategory(intent.OpenApp), Handle: r.handleOpenApp},
		{Name: "screenshot", Match: isCategory(intent.TakeScreenshot), Handle: r.handleScreenshot},
		{Name: "lock", Match: isCategory(intent.LockPC), Handle: r.systemAction(MsgLocking, MsgLockFailed, system.Actions.Lock)},
		{Name: "shutdown", Match: isCategory(intent.ShutdownPC), Handle: r.systemAction(MsgShuttingDown, MsgShutdownFailed, system.Actions.Shutdown)},
		{Name: "restart", Match: isCategory(intent.RestartPC), Handle: r.systemAction(MsgRestarting, MsgRestartFailed, system.Actions.Restart)},
		{Name: "settings", Match: isCategory(intent.OpenSettings), Handle: r.systemAction(MsgOpeningSettings, MsgSettingsFailed, system.Actions.OpenSettings)},
		{Name: "battery", Match: func(c Command) bool { return hasAny(c.Tokens, batteryPhrases...) }, Handle: r.handleBattery},
		{Name: "youtube", Match: func(c Command) bool { return hasPhrase(c.Tokens, "youtube") }, Handle: r.handleNavigate},
		{Name: "media_volume", Match: isCategory(intent.SetVolume), Handle: r.handleMediaVolume},
		{Name: "play_music", Match: isCategory(intent.PlayMusic), Handle: r.mediaAction(func(m media.Controls) error { return m.Play(0) })},
		{Name: "next_music", Match: isCategory(intent.NextMusic), Handle: r.mediaAction(media.Controls.Next)},
		{Name: "stop_music", Match: isCategory(intent.StopMusic), Handle: r.mediaAction(media.Controls.Stop)},
		{Name: "resume_music", Match: isCategory(intent.ResumeMusic), Handle: r.mediaAction(media.Controls.Resume)},
		{Name: "pause_music", Match: isCategory(intent.PauseMusic), Handle: r.mediaAction(media.Controls.Pause)},
		{Name: "continuous_start", Match: func(c Command) bool { return hasAny(c.Tokens, continuousStartPhrases...) }, Handle: r.handleContinuousStart},
		{
			Name: "describe",
			Match: func(c Command) bool {
				return hasAny(c.Tokens, detectPhrases...) || c.Intent.Category == intent.DetectObject
			},
			Handle: r.handleDescribe,
		},
		{
			Name:   "navigate",
			Match:  isCategory(intent.Search, intent.OpenWebsite, intent.Website, intent.YouTube, intent.Google),
			Handle: r.handleNavigate,
		},
		{Name: "chat", Match: func(Command) bool { return true }, Handle: r.handleChat},
	}
}

func (r *Router) handleVolume(ctx context.Context, c Command) error {
	if r.deps.System == nil {
		return sorry(MsgUnavailable, nil)
	}
	level, _ := ExtractVolumeLevel(c.Text)
	if err := r.deps.System.SetVolume(ctx, level); err != nil {
		return sorry(MsgVolumeFailed, err)
	}
	switch {
	case firstInteger.MatchString(c.Text):
		r.say(ctx, fmt.Sprintf("Awaaz %d percent kar di.", level))
	case level == VolumeHighPercent:
		r.say(ctx, "Awaaz poori kar di.")
	default:
		r.say(ctx, "Awaaz kam kar di.")
	}
	return nil
}

func (r *Router) handleReminder(ctx context.Context, c Command) error {
	if r.deps.Reminders == nil {
		return sorry(MsgUnavailable, nil)
	}
	delay, msg := reminder.ExtractDelayAndMessage(c.Text)
	if delay <= 0 || msg == "" {
		return sorry(MsgReminderUnclear, nil)
	}
	if _, err := r.deps.Reminders.Schedule(delay, msg); err != nil {
		return sorry(MsgReminderFailed, err)
	}
	r.say(ctx, fmt.Sprintf("Theek hai, main %d second baad yaad dila dunga.", int(delay.Seconds())))
	return nil
}

func (r *Router) handleClock(ctx context.Context, c Command) error {
	now := r.deps.Now()
	if hasAny(c.Tokens, timePhrases...) {
		r.say(ctx, fmt.Sprintf("Abhi %s baj rahe hain.", now.Format("03:04 PM")))
		return nil
	}
	r.say(ctx, fmt.Sprintf("Aaj %s hai.", now.Format("Monday, 02 January 2006")))
	return nil
}

func (r *Router) handleMessage(ctx context.Context, c Command) error {
	name, body := strings.TrimSpace(c.Intent.Contact), strings.TrimSpace(c.Intent.Target)
	if name == "" || body == "" {
		return sorry(MsgMessageMissing, nil)
	}
	if r.deps.Messenger == nil || r.deps.Contacts == nil {
		return sorry(MsgUnavailable, nil)
	}
	contact, ok := r.deps.Contacts.Resolve(name)
	if !ok {
		return sorry(fmt.Sprintf("%s naam ka contact nahi mila. Naam dobara boliye.", name), nil)
	}
	r.say(ctx, fmt.Sprintf("%s ko WhatsApp par message bhej raha hoon.", contact.Name))
	if err := r.deps.Messenger.Send(ctx, contact.Phone, body); err != nil {
		return sorry(MsgMessageFailed, err)
	}
	r.say(ctx, fmt.Sprintf("Message %s ko bhej diya gaya hai.", contact.Name))
	return nil
}

func (r *Router) handleOpenApp(ctx context.Context, c Command) error {
	if r.deps.System == nil {
		return sorry(MsgUnavailable, nil)
	}
	app := strings.TrimSpace(c.Intent.Target)
	if app == "" {
		app = strings.TrimSpace(strings.ReplaceAll(c.Text, "open", ""))
	}
	if app == "" {
		return sorry(MsgWhichApp, nil)
	}
	r.say(ctx, fmt.Sprintf("Opening %s, please wait.", app))
	if err := r.deps.System.OpenApp(ctx, app); err != nil {
		return sorry(fmt.Sprintf("Sorry, I couldn't open %s.", app), err)
	}
	return nil
}

func (r *Router) handleScreenshot(ctx context.Context, _ Command) error {
	if r.deps.System == nil {
		return sorry(MsgUnavailable, nil)
	}
	path, err := r.deps.System.Screenshot(ctx)
	if err != nil {
		return sorry(MsgScreenshotFailed, err)
	}
	r.say(ctx, fmt.Sprintf("Screenshot saved to Desktop as %s.", filepath.Base(path)))
	return nil
}

// systemAction announces and then runs a power or settings action.
func (r *Router) systemAction(announce, failure string, action func(system.Actions, context.Context) error) func(context.Context, Command) error {
	return func(ctx context.Context, _ Command) error {
		if r.deps.System == nil {
			return sorry(MsgUnavailable, nil)
		}
		r.say(ctx, announce)
		if err := action(r.deps.System, ctx); err != nil {
			return sorry(failure, err)
		}
		return nil
	}
}

func (r *Router) handleBattery(ctx context.Context, _ Command) error {
	if r.deps.System == nil {
		return sorry(MsgUnavailable, nil)
	}
	st, err := r.deps.System.Battery(ctx)
	if err != nil {
		return sorry(MsgBatteryUnknown, err)
	}
	charging := "charging nahi ho rahi hai"
	if st.Charging {
		charging = "charging ho rahi hai"
	}
	r.say(ctx, fmt.Sprintf("Battery %d percent hai aur %s.", st.Percent, charging))
	return nil
}

func (r *Router) mediaAction(action func(media.Controls) error) func(context.Context, Command) error {
	return func(context.Context, Command) error {
		if r.deps.Media == nil {
			return sorry(MsgUnavailable, nil)
		}
		err := action(r.deps.Media)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, media.ErrEmptyPlaylist):
			return sorry(MsgNoMusic, err)
		default:
			return sorry(MsgMusicFailed, err)
		}
	}
}

func (r *Router) handleMediaVolume(ctx context.Context, c Command) error {
	if r.deps.Media == nil {
		return sorry(MsgUnavailable, nil)
	}
	level, ok := fractionLevel(c.Intent.Target)
	if !ok {
		level, ok = ExtractMediaVolume(c.Text)
	}
	if !ok {
		return sorry(MsgMediaVolumeAsk, nil)
	}
	if err := r.deps.Media.SetVolume(level); err != nil {
		return sorry(MsgMusicFailed, err)
	}
	r.say(ctx, fmt.Sprintf("Music ki awaaz %d percent kar di.", int(level*100+0.5)))
	return nil
}

func (r *Router) handleDescribe(ctx context.Context, _ Command) error {
	if r.deps.Vision == nil {
		return sorry(MsgUnavailable, nil)
	}
	r.say(ctx, MsgCameraStarting)
	if err := r.deps.Vision.StartCamera(ctx); err != nil {
		// The inspector answers "camera not ready" on its own.
		observe.Logger(ctx).Warn("router: camera start failed", "err", err)
	} else if !pause(ctx, r.deps.CameraWarmup) {
		return ctx.Err()
	}
	r.deps.Vision.AskAndDescribe(ctx)
	return nil
}

func (r *Router) handleContinuousStart(ctx context.Context, _ Command) error {
	if r.deps.Vision == nil {
		return sorry(MsgUnavailable, nil)
	}
	r.deps.Vision.Start(ctx)
	return nil
}

// handleNavigate opens a website, a YouTube search or a Google search.
func (r *Router) handleNavigate(ctx context.Context, c Command) error {
	if r.deps.System == nil {
		return sorry(MsgUnavailable, nil)
	}

	res := c.Intent
	if res.Source != intent.SourceLocal && res.Category != intent.OpenWebsite && res.Category != intent.Search {
		// Reached through the youtube keyword with an unrelated verdict.
		res = intent.LocalRules{}.Understand(c.Text)
	}
	query := strings.TrimSpace(res.Target)
	if query == "" {
		query = intent.LocalRules{}.Understand(c.Text).Target
	}

	var url string
	switch {
	case res.Category == intent.Website || res.Category == intent.OpenWebsite:
		url = system.WebsiteURL(query)
		if url == "" {
			return sorry(MsgWebsiteUnclear, nil)
		}
	case res.Category == intent.YouTube || hasAny(c.Tokens, videoWords...):
		r.say(ctx, fmt.Sprintf("YouTube par %s dhoond raha hoon.", query))
		url = system.YouTubeSearchURL(query)
	default:
		r.say(ctx, fmt.Sprintf("Google par %s search kar raha hoon.", query))
		url = system.GoogleSearchURL(query)
	}
	if err := r.deps.System.OpenURL(ctx, url); err != nil {
		return sorry(MsgBrowserFailed, err)
	}
	return nil
}

func (r *Router) handleChat(ctx context.Context, c Command) error {
	if r.deps.Chat == nil {
		return sorry(MsgChatOffline, nil)
	}
	req := llm.UserPrompt(chatSystemPrompt, "User said: "+c.Text)
	req.Temperature = chatTemperature
	start := time.Now()
	resp, err := r.deps.Chat.Complete(ctx, req)
	r.deps.Metrics.RecordLLM(ctx, "chat", time.Since(start).Seconds())
	if err != nil {
		return sorry(MsgChatFailed, err)
	}
	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Content)
	}
	if reply == "" {
		reply = MsgChatEmpty
	}
	r.say(ctx, reply)
	return nil
}

// pause sleeps for d and reports false if ctx ended first.
func pause(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
