package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/manifest"
)

// catalogSite serves a one-page catalog with two books: Alice uses the
// seven-column chapter table, Kafka the four-column one.
func catalogSite(t *testing.T) *httptest.Server {
	var baseURL string

	mux := http.NewServeMux()
	mux.HandleFunc("/search/get_results", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("search_page") != "1" {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS", "results": "No results"})
			return
		}
		fragment := fmt.Sprintf(`
<li class="catalog-result">
  <div class="result-data">
    <a href="%[1]s/book/alice">Alice's Adventures</a>
    <p class="book-author"><a href="%[1]s/author/carroll">Lewis Carroll</a></p>
  </div>
  <div class="download-btn"><a href="%[1]s/zip/alice.zip">Download</a><span>86 MB</span></div>
</li>
<li class="catalog-result">
  <div class="result-data">
    <a href="%[1]s/book/kafka">Die Verwandlung</a>
    <p class="book-author"><a href="%[1]s/author/kafka">Franz Kafka</a></p>
  </div>
  <div class="download-btn"><a href="%[1]s/zip/kafka.zip">Download</a><span>40 MB</span></div>
</li>`, baseURL)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCESS", "results": fragment})
	})

	mux.HandleFunc("/book/alice", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<dl class="product-details clearfix">
  <dd>02:58:00</dd><dd>86 MB</dd><dd>2009-01-12</dd><dd>x</dd><dd>x</dd><dd>x</dd>
  <dd><a href="%[1]s/reader/99">Pat Verifier</a></dd>
</dl>
<p class="book-page-genre">Genre(s): Children's Fiction</p>
<p class="book-page-genre">Language: English</p>
<table class="chapter-download">
  <tr><th></th><th></th><th></th><th></th><th></th><th></th><th></th></tr>
  <tr>
    <td><a href="#">play</a> 01</td>
    <td><a class="chapter-name" href="%[1]s/audio/alice01.mp3">Down the Rabbit-Hole</a></td>
    <td>Lewis Carroll</td><td>Gutenberg</td>
    <td><a href="%[1]s/reader/7">Kara</a></td>
    <td>00:12:05</td><td>en</td>
  </tr>
  <tr>
    <td><a href="#">play</a> 02</td>
    <td><a class="chapter-name" href="%[1]s/audio/alice02.mp3">The Pool of Tears</a></td>
    <td>Lewis Carroll</td><td>Gutenberg</td>
    <td>Mark</td>
    <td>00:14:33</td><td>en</td>
  </tr>
</table></body></html>`, baseURL)
	})

	mux.HandleFunc("/book/kafka", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<dl class="product-details clearfix">
  <dd>01:40:00</dd><dd>40 MB</dd><dd>2011-05-02</dd><dd>x</dd><dd>x</dd><dd>x</dd><dd></dd>
</dl>
<p class="book-page-genre">Genre(s): Fiction</p>
<p class="book-page-genre">Language: German</p>
<table class="chapter-download">
  <tr><th></th><th></th><th></th><th></th></tr>
  <tr>
    <td><a href="#">play</a> 01</td>
    <td><a class="chapter-name" href="%[1]s/audio/kafka01.mp3">Kapitel 1</a></td>
    <td><a href="%[1]s/reader/12">Hans</a></td>
    <td>00:22:10</td>
  </tr>
</table></body></html>`, baseURL)
	})

	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 256))
	})

	srv := httptest.NewServer(mux)
	baseURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Catalog.BaseURL = baseURL
	cfg.Catalog.StartPage = 1
	cfg.Catalog.EndPage = 1
	cfg.Catalog.ProbeForEnd = false
	cfg.Catalog.ScanWorkers = 2
	cfg.Catalog.ChapterWorkers = 2
	cfg.Dataset.CleanDir = filepath.Join(t.TempDir(), "clean")
	cfg.Dataset.DownloadWorkers = 2
	cfg.Transport.MaxRetries = 1
	cfg.Transport.BackoffSeconds = 0.001
	cfg.Manifest.Path = filepath.Join(t.TempDir(), "manifest.db")
	return cfg
}

func TestRunSpeechEndToEnd(t *testing.T) {
	srv := catalogSite(t)
	cfg := testConfig(t, srv.URL)

	store, err := manifest.Open(context.Background(), cfg.Manifest.Path)
	require.NoError(t, err)
	defer store.Close()

	p := New(cfg, store)
	require.NoError(t, p.RunSpeech(context.Background()))

	snap := p.Progress().Snapshot()
	assert.Equal(t, 2, snap.BooksScanned)
	assert.Equal(t, 3, snap.ChaptersFetched)
	assert.Equal(t, 3, snap.ChaptersSelected)
	assert.Equal(t, 3, snap.FilesDownloaded)
	assert.Zero(t, snap.FilesFailed)
	assert.Equal(t, int64(3*256), snap.BytesDownloaded)

	entries, err := os.ReadDir(cfg.Dataset.CleanDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"en_alice01.mp3", "en_alice02.mp3", "de_kafka01.mp3"}, names,
		"filenames are language-prefixed with the book language inherited at construction")

	recorded, err := store.List(context.Background(), "speech")
	require.NoError(t, err)
	assert.Len(t, recorded, 3)
	for _, e := range recorded {
		assert.Equal(t, p.RunID(), e.RunID)
		assert.NotEmpty(t, e.Reader)
	}
}

func TestRunSpeechSecondRunSkipsDownloads(t *testing.T) {
	srv := catalogSite(t)
	cfg := testConfig(t, srv.URL)

	store, err := manifest.Open(context.Background(), cfg.Manifest.Path)
	require.NoError(t, err)
	defer store.Close()

	first := New(cfg, store)
	require.NoError(t, first.RunSpeech(context.Background()))

	second := New(cfg, store)
	require.NoError(t, second.RunSpeech(context.Background()))

	snap := second.Progress().Snapshot()
	assert.Zero(t, snap.FilesDownloaded, "already-present files are skipped")
	assert.Zero(t, snap.FilesFailed)
}

func TestRunSpeechWithoutManifest(t *testing.T) {
	srv := catalogSite(t)
	cfg := testConfig(t, srv.URL)

	p := New(cfg, nil)
	require.NoError(t, p.RunSpeech(context.Background()))
	assert.Equal(t, 3, p.Progress().Snapshot().FilesDownloaded)
}

func TestRunSpeechSurvivesBrokenAudio(t *testing.T) {
	srv := catalogSite(t)
	cfg := testConfig(t, srv.URL)

	// A regular file in the directory path makes every download fail.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0644))
	cfg.Dataset.CleanDir = filepath.Join(blocked, "sub")

	p := New(cfg, nil)
	require.NoError(t, p.RunSpeech(context.Background()), "download failures never abort the batch")
	snap := p.Progress().Snapshot()
	assert.Zero(t, snap.FilesDownloaded)
	assert.Equal(t, 3, snap.FilesFailed)
}

func TestSelectionHonorsCaps(t *testing.T) {
	srv := catalogSite(t)
	cfg := testConfig(t, srv.URL)
	cfg.Dataset.MaxLanguages = 1
	cfg.Dataset.ChaptersPerLanguage = 1

	p := New(cfg, nil)
	require.NoError(t, p.RunSpeech(context.Background()))

	snap := p.Progress().Snapshot()
	assert.Equal(t, 1, snap.ChaptersSelected)

	entries, err := os.ReadDir(cfg.Dataset.CleanDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "en_"), "first-seen language wins")
}
