package librivox

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
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

// ChapterFetcher enriches scanned books from their detail pages.
type ChapterFetcher struct {
	client *transport.Client
	cfg    config.Catalog
	logger zerolog.Logger
}

// NewChapterFetcher builds a ChapterFetcher over the shared transport.
func NewChapterFetcher(client *transport.Client, cfg config.Catalog) *ChapterFetcher {
	return &ChapterFetcher{
		client: client,
		cfg:    cfg,
		logger: logging.GetLogger("chapters"),
	}
}

// FetchBook fetches one book's detail page, fills in the metadata the
// catalog listing lacks, and returns the parsed chapters. Every failure
// mode (non-200 page, missing or empty chapter table, unknown table
// shape) is reported through the error and leaves the book with an empty
// chapter list; none of them is fatal to a batch.
func (f *ChapterFetcher) FetchBook(ctx context.Context, book *corpus.Book) ([]*corpus.Chapter, error) {
	f.logger.Debug().Str("book", truncate(book.Title, 70)).Msg("fetching book details")

	resp, err := f.client.Get(ctx, book.PageURL, scrapeHeaders(f.cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch book page %s: %w", book.PageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("book page %s returned status %d", book.PageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse book page %s: %w", book.PageURL, err)
	}

	f.fillBookMetadata(book, doc)
	return parseChapterTable(book, doc)
}

// EnrichBooks runs one detail fetch per book under the chapter worker
// pool and attaches results positionally. Books whose fetch failed keep
// an empty chapter list.
func (f *ChapterFetcher) EnrichBooks(ctx context.Context, books []*corpus.Book) {
	chapterLists := make([][]*corpus.Chapter, len(books))

	pool.Run(f.cfg.ChapterWorkers, len(books), func(i int) {
		chapters, err := f.FetchBook(ctx, books[i])
		if err != nil {
			f.logger.Warn().Err(err).Str("book", books[i].PageURL).Msg("chapter fetch failed")
			return
		}
		chapterLists[i] = chapters
	})

	total := 0
	for i, book := range books {
		book.Chapters = chapterLists[i]
		total += len(book.Chapters)
	}
	f.logger.Info().Int("books", len(books)).Int("chapters", total).Msg("chapter enrichment complete")
}

// fillBookMetadata reads the fixed-position product-details list and the
// genre/language/group paragraphs. None of this is crucial enough to fail
// the fetch.
func (f *ChapterFetcher) fillBookMetadata(book *corpus.Book, doc *goquery.Document) {
	details := doc.Find("dl.product-details dd")
	if details.Length() > 6 {
		book.Duration = corpus.ParseClock(details.Eq(0).Text())
		if book.Size == 0 {
			if bytes, err := humanize.ParseBytes(strings.TrimSpace(details.Eq(1).Text())); err == nil {
				book.Size = int64(bytes)
			}
		}
		book.Date = strings.TrimSpace(details.Eq(2).Text())

		listener := details.Eq(6).Find("a")
		if name := strings.TrimSpace(strings.ReplaceAll(listener.Text(), " ", "")); name != "" {
			book.ProofListener = name
			book.ProofListenerURL, _ = listener.Attr("href")
		}
	}

	book.Description = strings.TrimSpace(doc.Find("div.page.book-page div.description").Text())

	langGroupGenre := doc.Find("p.book-page-genre")
	if langGroupGenre.Length() == 0 {
		f.logger.Warn().Str("book", book.PageURL).Msg("genre/language/group section missing")
		return
	}
	book.Genre = strings.TrimSpace(strings.ReplaceAll(langGroupGenre.Eq(0).Text(), "Genre(s):", ""))
	if langGroupGenre.Length() > 1 {
		book.SetLanguage(strings.ReplaceAll(langGroupGenre.Eq(1).Text(), "Language:", ""))
	}
	if langGroupGenre.Length() > 2 {
		book.Group = strings.TrimSpace(strings.ReplaceAll(langGroupGenre.Eq(2).Text(), "Group:", ""))
	}
}

// Two chapter-table layouts exist in the wild, distinguished by column
// count. Seven columns carry per-row author, source text, and reader;
// four columns carry only a reader and inherit author and language from
// the book.
func parseChapterTable(book *corpus.Book, doc *goquery.Document) ([]*corpus.Chapter, error) {
	table := doc.Find("table.chapter-download")
	if table.Length() == 0 {
		return nil, fmt.Errorf("no chapter table on %s", book.PageURL)
	}

	rows := table.Find("tr").Slice(1, goquery.ToEnd) // first row is the header
	if rows.Length() == 0 {
		return nil, fmt.Errorf("empty chapter table on %s", book.PageURL)
	}

	columns := rows.First().Find("td").Length()
	var chapters []*corpus.Chapter

	switch columns {
	case 7:
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			chapter := newRowChapter(book, row, cells)

			chapter.Author = strings.TrimSpace(cells.Eq(2).Text())
			chapter.AuthorURL, _ = cells.Eq(2).Find("a").Attr("href")
			chapter.SourceText = strings.TrimSpace(cells.Eq(3).Text())
			chapter.SourceTextURL, _ = cells.Eq(3).Find("a").Attr("href")
			chapter.ReaderName = strings.TrimSpace(cells.Eq(4).Text())
			chapter.ReaderURL, _ = cells.Eq(4).Find("a").Attr("href")
			chapter.Duration = corpus.ParseClock(cells.Eq(5).Text())
			if code := strings.TrimSpace(cells.Eq(6).Text()); code != "" {
				chapter.LanguageCode = code
			}
			chapters = append(chapters, chapter)
		})

	case 4:
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			chapter := newRowChapter(book, row, cells)

			chapter.ReaderName = strings.TrimSpace(cells.Eq(2).Text())
			// Group readings have no reader profile link.
			chapter.ReaderURL, _ = cells.Eq(2).Find("a").Attr("href")
			chapter.Duration = corpus.ParseClock(cells.Eq(3).Text())
			chapter.Author = book.Author
			chapters = append(chapters, chapter)
		})

	default:
		return nil, fmt.Errorf("unknown chapter table shape (%d columns) on %s", columns, book.PageURL)
	}

	return chapters, nil
}

// newRowChapter builds a chapter from the fields both table shapes share:
// the numbered first cell and the chapter-name anchor.
func newRowChapter(book *corpus.Book, row *goquery.Selection, cells *goquery.Selection) *corpus.Chapter {
	chapter := corpus.NewChapter(book)

	name := row.Find("a.chapter-name").First()
	chapter.Title = strings.TrimSpace(name.Text())
	if href, ok := name.Attr("href"); ok {
		_ = chapter.SetDownloadURL(href)
	}

	numberCell := cells.Eq(0)
	numberText := strings.TrimSpace(strings.ReplaceAll(numberCell.Text(), numberCell.Find("a").Text(), ""))
	chapter.Number, _ = strconv.Atoi(numberText)

	return chapter
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
