// Package intent turns a free-form utterance into a structured [Resolved]
// intent.
//
// Two [Classifier] strategies exist: [LLMClassifier] asks a language model for
// a JSON verdict, and [LocalRules] applies a fixed, network-free rule list. A
// [Resolver] composes them: the remote verdict is used when it is decisive,
// otherwise the local rules decide.
package intent

import "context"

// Category is the closed set of actions an utterance can resolve to.
type Category string

// Categories a remote classifier may return.
const (
	Chat           Category = "chat"
	OpenApp        Category = "open_app"
	OpenWebsite    Category = "open_website"
	Search         Category = "search"
	PlayMusic      Category = "play_music"
	PauseMusic     Category = "pause_music"
	ResumeMusic    Category = "resume_music"
	StopMusic      Category = "stop_music"
	NextMusic      Category = "next_music"
	SendMessage    Category = "send_message"
	DetectObject   Category = "detect_object"
	TakeScreenshot Category = "take_screenshot"
	LockPC         Category = "lock_pc"
	ShutdownPC     Category = "shutdown_pc"
	RestartPC      Category = "restart_pc"
	OpenSettings   Category = "open_settings"
	SetVolume      Category = "set_volume"
)

// Categories only produced by [LocalRules].
const (
	Website Category = "website"
	YouTube Category = "youtube"
	Google  Category = "google"
)

// None is returned for empty input. No handler runs for it.
const None Category = "none"

// RemoteCategories lists every category an [LLMClassifier] accepts.
var RemoteCategories = []Category{
	Chat, OpenApp, OpenWebsite, Search, PlayMusic, PauseMusic, ResumeMusic,
	StopMusic, NextMusic, SendMessage, DetectObject, TakeScreenshot, LockPC,
	ShutdownPC, RestartPC, OpenSettings, SetVolume,
}

// Source names the strategy that produced a [Resolved] intent.
type Source string

const (
	SourceNone       Source = "none"
	SourceClassifier Source = "classifier"
	SourceLocal      Source = "local"
)

// Resolved is the outcome of classifying one utterance. It is created per
// utterance and never stored.
type Resolved struct {
	Category Category

	// Target is the free-form argument: a search query, app name, domain,
	// message body or object name. May be empty.
	Target string

	// Contact is the recipient of a message. Only meaningful for
	// [SendMessage].
	Contact string

	Source Source
}

// Classifier maps an utterance to an intent.
type Classifier interface {
	Classify(ctx context.Context, text string) (Resolved, error)
}
