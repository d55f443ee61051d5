// Package dataset picks a diversity-constrained subset of fetched
// chapters for the clean-speech corpus.
package dataset

import (
	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/corpus"
	"github.com/openvox/voxharvest/pkg/logging"
)

// Selector bounds the dataset to MaxLanguages language buckets with at
// most ChaptersPerLanguage chapters each, and never accepts two chapters
// read by the same person anywhere in the selection.
type Selector struct {
	MaxLanguages        int
	ChaptersPerLanguage int

	logger zerolog.Logger
}

// NewSelector builds a Selector for the given caps.
func NewSelector(maxLanguages, chaptersPerLanguage int) *Selector {
	return &Selector{
		MaxLanguages:        maxLanguages,
		ChaptersPerLanguage: chaptersPerLanguage,
		logger:              logging.GetLogger("selector"),
	}
}

// Select walks the books' chapters grouped by language code in
// first-seen order and greedily accepts chapters whose reader has not
// been claimed yet. There is no backtracking: a bucket starved by reader
// collisions simply contributes fewer chapters.
func (s *Selector) Select(books []*corpus.Book) []*corpus.Chapter {
	buckets := make(map[string][]*corpus.Chapter)
	var order []string

	for _, book := range books {
		for _, chapter := range book.Chapters {
			code := chapter.LanguageCode
			if _, seen := buckets[code]; !seen {
				order = append(order, code)
			}
			buckets[code] = append(buckets[code], chapter)
		}
	}

	readers := make(map[string]bool)
	var selected []*corpus.Chapter

	for idx, code := range order {
		if idx >= s.MaxLanguages {
			break
		}

		accepted := 0
		for _, chapter := range buckets[code] {
			if accepted >= s.ChaptersPerLanguage {
				break
			}
			if readers[chapter.ReaderName] {
				continue
			}
			readers[chapter.ReaderName] = true
			selected = append(selected, chapter)
			accepted++
		}

		s.logger.Debug().
			Str("language", code).
			Int("available", len(buckets[code])).
			Int("accepted", accepted).
			Msg("language bucket selected")
	}

	s.logger.Info().
		Int("languages", min(len(order), s.MaxLanguages)).
		Int("chapters", len(selected)).
		Msg("dataset selection complete")
	return selected
}
