package router

import (
	"regexp"
	"strconv"
	"strings"
)

// Keyword buckets for the system volume.
var (
	volumeHigh = []string{"full", "max", "poori", "zyada"}
	volumeLow  = []string{"kam", "ghata", "low"}
)

// Fixed levels for the keyword buckets, in percent.
const (
	VolumeHighPercent = 100
	VolumeLowPercent  = 30
)

var firstInteger = regexp.MustCompile(`\d+`)

// ExtractVolumeLevel returns the system volume in percent requested by
// text: the first integer (clamped to 0..100), else 100 for "full", "max",
// "poori" or "zyada", else 30 for "kam", "ghata" or "low". It reports false
// when text names no level.
func ExtractVolumeLevel(text string) (int, bool) {
	if m := firstInteger.FindString(text); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil {
			// Too many digits for an int.
			return 100, true
		}
		return min(max(n, 0), 100), true
	}
	tokens := tokenize(text)
	switch {
	case hasAny(tokens, volumeHigh...):
		return VolumeHighPercent, true
	case hasAny(tokens, volumeLow...):
		return VolumeLowPercent, true
	}
	return 0, false
}

// ExtractMediaVolume returns the player volume in 0..1 requested by text:
// 1 for "full", "hundred", "max" or "poori", 0 for "mute", "zero" or
// "band", else the first all-digit token divided by 100 and clamped. It
// reports false when text names no level.
func ExtractMediaVolume(text string) (float64, bool) {
	tokens := tokenize(text)
	switch {
	case hasAny(tokens, "full", "hundred", "max", "poori"):
		return 1, true
	case hasAny(tokens, "mute", "zero", "band"):
		return 0, true
	}
	for _, tok := range tokens {
		if n, err := strconv.Atoi(tok); err == nil {
			return min(max(float64(n)/100, 0), 1), true
		}
	}
	return 0, false
}

// fractionLevel parses a classifier target such as "0.5" as a player
// volume.
func fractionLevel(target string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(target), 64)
	if err != nil || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
