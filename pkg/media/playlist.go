package media

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DefaultExtensions are the audio file types picked up by [ScanDir].
var DefaultExtensions = []string{".mp3", ".wav", ".ogg"}

// ScanDir returns every file directly inside dir whose extension is in exts
// (case-insensitive), grouped by extension in exts order and sorted by name
// within a group. Subdirectories are skipped.
func ScanDir(dir string, exts []string) ([]string, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("media: scan %q: %w", dir, err)
	}
	var tracks []string
	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		var group []string
		for _, e := range entries {
			if !e.IsDir() && strings.ToLower(filepath.Ext(e.Name())) == ext {
				group = append(group, filepath.Join(dir, e.Name()))
			}
		}
		slices.Sort(group)
		tracks = append(tracks, group...)
	}
	return tracks, nil
}

// Shuffle randomises tracks in place.
func Shuffle(tracks []string) {
	rand.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
}
