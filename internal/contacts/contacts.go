// Package contacts holds the assistant's address book and corrects
// misheard contact names.
//
// Speech recognisers mangle names, especially Indian names spoken in a
// Hinglish sentence ("raahul" or "ruhul" for "Rahul"). [Book.Resolve] first
// tries an exact, case-insensitive lookup and then falls back to phonetic
// matching: Double Metaphone codes pick candidates, Jaro-Winkler similarity
// ranks them.
package contacts

import (
	"sort"
	"strings"
	"sync"
)

// Contact is one address book entry.
type Contact struct {
	Name  string
	Phone string
}

// Book is a concurrency-safe address book. The zero value is empty and
// usable.
type Book struct {
	mu      sync.RWMutex
	byName  map[string]Contact
	names   []string
	matcher *Matcher
}

// NewBook returns a Book holding entries (name to phone number).
func NewBook(entries map[string]string, opts ...Option) *Book {
	b := &Book{matcher: NewMatcher(opts...)}
	b.Replace(entries)
	return b
}

// Replace swaps the whole address book. Called when the configuration is
// reloaded.
func (b *Book) Replace(entries map[string]string) {
	byName := make(map[string]Contact, len(entries))
	names := make([]string, 0, len(entries))
	for name, phone := range entries {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		byName[strings.ToLower(name)] = Contact{Name: name, Phone: strings.TrimSpace(phone)}
		names = append(names, name)
	}
	sort.Strings(names)

	b.mu.Lock()
	b.byName, b.names = byName, names
	b.mu.Unlock()
}

// Len returns the number of contacts.
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.names)
}

// Resolve finds the contact best matching spoken.
func (b *Book) Resolve(spoken string) (Contact, bool) {
	key := strings.ToLower(strings.TrimSpace(spoken))
	if key == "" {
		return Contact{}, false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.byName[key]; ok {
		return c, true
	}
	m := b.matcher
	if m == nil {
		m = NewMatcher()
	}
	name, _, ok := m.Match(key, b.names)
	if !ok {
		return Contact{}, false
	}
	return b.byName[strings.ToLower(name)], true
}
