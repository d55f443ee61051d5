package librivox

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvox/voxharvest/internal/corpus"
)

const bookPageHead = `
<div class="page book-page">
  <div class="description">A story of curious descents.</div>
</div>
<dl class="product-details clearfix">
  <dd>02:58:00</dd>
  <dd>86 MB</dd>
  <dd>2009-01-12</dd>
  <dd>filler</dd>
  <dd>filler</dd>
  <dd>filler</dd>
  <dd><a href="https://librivox.example/reader/99">&nbsp;Pat Verifier&nbsp;</a></dd>
</dl>
<p class="book-page-genre">Genre(s): Children's Fiction</p>
<p class="book-page-genre">Language: German</p>
<p class="book-page-genre">Group: Weekly Poetry</p>`

const sevenColumnTable = `
<table class="chapter-download">
  <tr><th>#</th><th>Title</th><th>Author</th><th>Source</th><th>Reader</th><th>Time</th><th>Language</th></tr>
  <tr>
    <td><a href="#play">play</a> 01</td>
    <td><a class="chapter-name" href="https://librivox.example/audio/ch01.mp3">Down the Rabbit-Hole</a></td>
    <td><a href="https://librivox.example/author/carroll">Lewis Carroll</a></td>
    <td><a href="https://librivox.example/etext/11">Gutenberg</a></td>
    <td><a href="https://librivox.example/reader/7">Kara Shallenberg</a></td>
    <td>00:12:05</td>
    <td>en</td>
  </tr>
  <tr>
    <td><a href="#play">play</a> 02</td>
    <td><a class="chapter-name" href="https://librivox.example/audio/ch02.mp3">The Pool of Tears</a></td>
    <td>Lewis Carroll</td>
    <td>Gutenberg</td>
    <td>Mark Nelson</td>
    <td>00:14:33</td>
    <td>en</td>
  </tr>
</table>`

const fourColumnTable = `
<table class="chapter-download">
  <tr><th>#</th><th>Title</th><th>Reader</th><th>Time</th></tr>
  <tr>
    <td><a href="#play">play</a> 01</td>
    <td><a class="chapter-name" href="https://librivox.example/audio/k01.mp3">Kapitel 1</a></td>
    <td><a href="https://librivox.example/reader/12">Hans Muster</a></td>
    <td>00:22:10</td>
  </tr>
  <tr>
    <td><a href="#play">play</a> 02</td>
    <td><a class="chapter-name" href="https://librivox.example/audio/k02.mp3">Kapitel 2</a></td>
    <td>Group Reading</td>
    <td>00:19:47</td>
  </tr>
</table>`

func newBookServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html><body>"+body+"</body></html>")
	}))
}

func fetchChapters(t *testing.T, body string, book *corpus.Book) ([]*corpus.Chapter, error) {
	t.Helper()
	srv := newBookServer(body)
	t.Cleanup(srv.Close)

	book.PageURL = srv.URL
	fetcher := NewChapterFetcher(testTransport(), scannerConfig(srv.URL))
	return fetcher.FetchBook(context.Background(), book)
}

func TestFetchBookSevenColumnTable(t *testing.T) {
	book := &corpus.Book{}
	book.Title = "Alice's Adventures in Wonderland"

	chapters, err := fetchChapters(t, bookPageHead+sevenColumnTable, book)
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	// Book metadata came from the detail page.
	assert.Equal(t, 2*time.Hour+58*time.Minute, book.Duration)
	assert.Equal(t, int64(86_000_000), book.Size)
	assert.Equal(t, "2009-01-12", book.Date)
	assert.Equal(t, "Pat Verifier", book.ProofListener)
	assert.Equal(t, "https://librivox.example/reader/99", book.ProofListenerURL)
	assert.Equal(t, "A story of curious descents.", book.Description)
	assert.Equal(t, "Children's Fiction", book.Genre)
	assert.Equal(t, "de", book.LanguageCode)
	assert.Equal(t, "Weekly Poetry", book.Group)

	// Row-level provenance: each chapter carries its own author and reader.
	first := chapters[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "Down the Rabbit-Hole", first.Title)
	assert.Equal(t, "https://librivox.example/audio/ch01.mp3", first.DownloadURL())
	assert.Equal(t, "Lewis Carroll", first.Author)
	assert.Equal(t, "https://librivox.example/author/carroll", first.AuthorURL)
	assert.Equal(t, "Gutenberg", first.SourceText)
	assert.Equal(t, "https://librivox.example/etext/11", first.SourceTextURL)
	assert.Equal(t, "Kara Shallenberg", first.ReaderName)
	assert.Equal(t, "https://librivox.example/reader/7", first.ReaderURL)
	assert.Equal(t, 12*time.Minute+5*time.Second, first.Duration)
	assert.Equal(t, "en", first.LanguageCode)

	second := chapters[1]
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, "Mark Nelson", second.ReaderName)
	assert.Empty(t, second.ReaderURL)
}

func TestFetchBookFourColumnTable(t *testing.T) {
	book := &corpus.Book{}
	book.Author = "Franz Kafka"

	chapters, err := fetchChapters(t, bookPageHead+fourColumnTable, book)
	require.NoError(t, err)
	require.Len(t, chapters, 2)

	// Book-level provenance: author and language are inherited.
	first := chapters[0]
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, "Kapitel 1", first.Title)
	assert.Equal(t, "Franz Kafka", first.Author)
	assert.Equal(t, "Hans Muster", first.ReaderName)
	assert.Equal(t, "https://librivox.example/reader/12", first.ReaderURL)
	assert.Equal(t, 22*time.Minute+10*time.Second, first.Duration)

	second := chapters[1]
	assert.Equal(t, "Group Reading", second.ReaderName)
	assert.Empty(t, second.ReaderURL, "group readings have no reader profile")
	assert.Equal(t, "Franz Kafka", second.Author)
}

func TestFetchBookMissingChapterTable(t *testing.T) {
	book := &corpus.Book{}
	chapters, err := fetchChapters(t, bookPageHead, book)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chapter table")
	assert.Empty(t, chapters)
	// Metadata before the table still lands.
	assert.Equal(t, "de", book.LanguageCode)
}

func TestFetchBookEmptyChapterTable(t *testing.T) {
	body := bookPageHead + `<table class="chapter-download"><tr><th>#</th></tr></table>`
	_, err := fetchChapters(t, body, &corpus.Book{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty chapter table")
}

func TestFetchBookUnknownTableShape(t *testing.T) {
	body := bookPageHead + `
<table class="chapter-download">
  <tr><th>#</th><th>Title</th></tr>
  <tr><td>01</td><td><a class="chapter-name" href="https://x.example/a.mp3">A</a></td></tr>
</table>`
	_, err := fetchChapters(t, body, &corpus.Book{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown chapter table shape")
}

func TestFetchBookNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	book := &corpus.Book{PageURL: srv.URL}
	fetcher := NewChapterFetcher(testTransport(), scannerConfig(srv.URL))
	_, err := fetcher.FetchBook(context.Background(), book)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestEnrichBooksMergesPositionally(t *testing.T) {
	good := newBookServer(bookPageHead + fourColumnTable)
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	first := &corpus.Book{PageURL: good.URL}
	second := &corpus.Book{PageURL: bad.URL}
	third := &corpus.Book{PageURL: good.URL}
	books := []*corpus.Book{first, second, third}

	fetcher := NewChapterFetcher(testTransport(), scannerConfig(good.URL))
	fetcher.EnrichBooks(context.Background(), books)

	assert.Len(t, first.Chapters, 2)
	assert.Empty(t, second.Chapters, "failed fetch leaves an empty chapter list")
	assert.Len(t, third.Chapters, 2)
	assert.Same(t, first, first.Chapters[0].Book())
}
