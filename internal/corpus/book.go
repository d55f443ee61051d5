package corpus

import (
	"strings"
	"time"

	"github.com/openvox/voxharvest/pkg/langcode"
)

// Book is one catalog audiobook. The catalog scan fills the identity and
// URL fields; the detail fetch fills the rest and attaches the chapters.
// A Book owns its Chapters.
type Book struct {
	AudioAsset

	PageURL          string
	AuthorURL        string
	Date             string
	ProofListener    string
	ProofListenerURL string
	Description      string
	Genre            string
	Group            string

	Chapters []*Chapter
}

// SetLanguage normalizes a free-text language name onto the asset.
func (a *AudioAsset) SetLanguage(name string) {
	a.LanguageCode = langcode.Normalize(name)
}

// Language returns the display name for the asset's language code.
func (a *AudioAsset) Language() string {
	return langcode.CanonicalName(a.LanguageCode)
}

// Chapter is one downloadable audio segment of a Book, attributed to a
// single reader.
type Chapter struct {
	AudioAsset

	Number        int
	ReaderName    string
	ReaderURL     string
	AuthorURL     string
	SourceText    string
	SourceTextURL string

	book *Book
}

// NewChapter creates a Chapter backed by its owning Book. The chapter
// inherits the book's download directory and language code if it does not
// have its own; this is a one-time default, not a live binding. The
// back-reference is lookup-only.
func NewChapter(book *Book) *Chapter {
	c := &Chapter{book: book}
	if book != nil {
		if c.LanguageCode == "" {
			c.LanguageCode = book.LanguageCode
		}
		if c.downloadDir == "" {
			c.downloadDir = book.downloadDir
		}
	}
	return c
}

// Book returns the owning Book for lookups.
func (c *Chapter) Book() *Book {
	return c.book
}

// ParseClock parses a "HH:MM:SS" duration string. Malformed input yields
// a zero duration rather than an error; catalog pages are not reliable
// enough to make this fatal.
func ParseClock(text string) time.Duration {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) != 3 {
		return 0
	}
	var total time.Duration
	for _, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		n, ok := parseClockPart(parts[0])
		if !ok {
			return 0
		}
		total += time.Duration(n) * unit
		parts = parts[1:]
	}
	return total
}

func parseClockPart(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}
