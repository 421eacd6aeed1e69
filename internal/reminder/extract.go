package reminder

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DefaultDelay is used when an utterance names no delay.
const DefaultDelay = 10 * time.Second

// TimerMessage is spoken for a bare timer ("set timer for 2 minutes").
const TimerMessage = "time ho gaya"

// Phrases that introduce the reminder text.
var messageTriggers = []string{"yaad dilana", "remind"}

var units = map[string]time.Duration{
	"sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
}

// Dropped anywhere in the message.
var noiseWords = map[string]bool{
	"after": true, "baad": true, "alarm": true, "lagao": true, "set": true, "timer": true,
}

// Dropped from the start of the message.
var leadWords = map[string]bool{
	"me": true, "mujhe": true, "to": true, "that": true, "ki": true,
	"ke": true, "about": true, "for": true,
}

// ExtractDelayAndMessage parses "remind me after 5 minutes to call mummy"
// or "10 second baad yaad dilana ki chai bana lo" into a delay and the text
// to repeat.
//
// The first number followed by a seconds or minutes unit sets the delay;
// without one the delay is [DefaultDelay]. The message is whatever follows
// the word holding the last "yaad dilana" or "remind" (so "reminder" too)
// with timing words removed, and is
// empty when nothing follows. Utterances without such a phrase are timers
// and get [TimerMessage] when nothing else remains.
func ExtractDelayAndMessage(text string) (time.Duration, string) {
	text = strings.ToLower(strings.TrimSpace(text))
	delay := parseDelay(strings.Fields(text))

	rest, triggered := text, false
	for _, tr := range messageTriggers {
		if i := strings.LastIndex(text, tr); i >= 0 {
			rest, triggered = text[i+len(tr):], true
			// "reminder" and "reminders" belong to the trigger.
			if end := strings.IndexFunc(rest, unicode.IsSpace); end >= 0 {
				rest = rest[end:]
			} else {
				rest = ""
			}
			break
		}
	}

	msg := cleanMessage(strings.Fields(rest))
	if msg == "" && !triggered {
		msg = TimerMessage
	}
	return delay, msg
}

func parseDelay(tokens []string) time.Duration {
	for i := 1; i < len(tokens); i++ {
		unit, ok := units[tokens[i]]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(tokens[i-1]); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return DefaultDelay
}

func cleanMessage(tokens []string) string {
	kept := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		if _, isUnit := units[tok]; isUnit || noiseWords[tok] {
			continue
		}
		if _, err := strconv.Atoi(tok); err == nil && i+1 < len(tokens) {
			if _, next := units[tokens[i+1]]; next {
				continue
			}
		}
		kept = append(kept, tok)
	}
	for len(kept) > 0 && leadWords[kept[0]] {
		kept = kept[1:]
	}
	return strings.Join(kept, " ")
}
