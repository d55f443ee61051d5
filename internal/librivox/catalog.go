// Package librivox scrapes the LibriVox audiobook catalog: the paginated
// title listing and the per-book detail pages with their chapter tables.
package librivox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/corpus"
	"github.com/openvox/voxharvest/internal/pool"
	"github.com/openvox/voxharvest/internal/transport"
	"github.com/openvox/voxharvest/pkg/logging"
)

// The "Browsing by Title" catalog endpoint, relative to the base URL.
const titlesQuery = "/search/get_results?primary_key=0&search_category=title&search_order=alpha&project_type=either&search_page=%d"

// noResults is the envelope's explicit empty-page marker.
const noResults = "No results"

// Scanner fetches the paginated catalog listing.
type Scanner struct {
	client *transport.Client
	cfg    config.Catalog
	logger zerolog.Logger
}

// NewScanner builds a Scanner over the shared transport.
func NewScanner(client *transport.Client, cfg config.Catalog) *Scanner {
	return &Scanner{
		client: client,
		cfg:    cfg,
		logger: logging.GetLogger("catalog"),
	}
}

type pageEnvelope struct {
	Status  string `json:"status"`
	Results string `json:"results"`
}

// FetchPage fetches one catalog page. parseBooks=false is the header-only
// probe: the envelope is inspected but no books are parsed. The boolean
// reports whether the page held results; any failure (non-200, malformed
// envelope, "No results") yields (nil, false).
func (s *Scanner) FetchPage(ctx context.Context, page int, parseBooks bool) ([]*corpus.Book, bool) {
	url := s.cfg.BaseURL + fmt.Sprintf(titlesQuery, page)
	s.logger.Debug().Int("page", page).Msg("fetching catalog page")

	resp, err := s.client.Get(ctx, url, scrapeHeaders(s.cfg.BaseURL))
	if err != nil {
		s.logger.Warn().Err(err).Int("page", page).Msg("catalog page fetch failed")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn().Int("page", page).Int("status", resp.StatusCode).Msg("catalog page rejected")
		return nil, false
	}

	var envelope pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		s.logger.Warn().Err(err).Int("page", page).Msg("malformed catalog envelope")
		return nil, false
	}
	if envelope.Status != "SUCCESS" || envelope.Results == noResults {
		return nil, false
	}

	if !parseBooks {
		return nil, true
	}

	books, err := parseCatalogResults(envelope.Results)
	if err != nil {
		s.logger.Warn().Err(err).Int("page", page).Msg("catalog page parse failed")
		return nil, false
	}
	s.logger.Debug().Int("page", page).Int("books", len(books)).Msg("fetched catalog page")
	return books, true
}

// Scan fetches every page in the configured range and concatenates the
// books from pages that succeeded. When probing is enabled the end bound
// is first extended past newly added pages. Failed pages are dropped; the
// result is best-effort, not guaranteed complete.
func (s *Scanner) Scan(ctx context.Context) []*corpus.Book {
	start, end := s.cfg.StartPage, s.cfg.EndPage

	if s.cfg.ProbeForEnd {
		for {
			if _, more := s.FetchPage(ctx, end+1, false); !more {
				break
			}
			end++
			s.logger.Debug().Int("page", end).Msg("found new catalog page")
		}
	}

	s.logger.Info().Int("start", start).Int("end", end).Msg("scanning catalog")

	n := end - start + 1
	results := make([][]*corpus.Book, n)
	pool.Run(s.cfg.ScanWorkers, n, func(i int) {
		books, ok := s.FetchPage(ctx, start+i, true)
		if ok {
			results[i] = books
		}
	})

	var all []*corpus.Book
	for _, books := range results {
		all = append(all, books...)
	}
	s.logger.Info().Int("books", len(all)).Msg("catalog scan complete")
	return all
}

func parseCatalogResults(fragment string) ([]*corpus.Book, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("parse catalog fragment: %w", err)
	}

	var books []*corpus.Book
	doc.Find("li.catalog-result").Each(func(_ int, result *goquery.Selection) {
		book := &corpus.Book{}

		data := result.Find("div.result-data")
		anchor := data.Find("a").First()
		book.Title = stripEnclosingQuotes(strings.TrimSpace(anchor.Text()))
		book.PageURL, _ = anchor.Attr("href")

		author := data.Find(".book-author").First()
		book.Author = strings.TrimSpace(author.Text())
		// Collective works have no author page; a missing href is fine.
		book.AuthorURL, _ = author.Find("a").Attr("href")

		download := result.Find(".download-btn").First()
		if href, ok := download.Find("a").Attr("href"); ok {
			_ = book.SetDownloadURL(href)
		}
		if sizeText := strings.TrimSpace(download.Find("span").Text()); sizeText != "" {
			if bytes, err := humanize.ParseBytes(sizeText); err == nil {
				book.Size = int64(bytes)
			}
		}

		books = append(books, book)
	})

	if len(books) == 0 {
		return nil, fmt.Errorf("no catalog results in fragment")
	}
	return books, nil
}

func stripEnclosingQuotes(s string) string {
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}
