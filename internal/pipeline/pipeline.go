// Package pipeline orchestrates the dataset build: catalog scan, chapter
// enrichment, diversity selection, parallel downloads, and the noise
// sampler, all over shared transport and configuration.
package pipeline

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/archive"
	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/corpus"
	"github.com/openvox/voxharvest/internal/dataset"
	"github.com/openvox/voxharvest/internal/librivox"
	"github.com/openvox/voxharvest/internal/manifest"
	"github.com/openvox/voxharvest/internal/pool"
	"github.com/openvox/voxharvest/internal/transport"
	"github.com/openvox/voxharvest/pkg/logging"
)

// Pipeline wires the acquisition components together for one run.
type Pipeline struct {
	cfg      *config.Config
	client   *transport.Client
	scanner  *librivox.Scanner
	fetcher  *librivox.ChapterFetcher
	selector *dataset.Selector
	sampler  *archive.Sampler
	store    *manifest.Store // may be nil

	runID    string
	progress *Progress
	logger   zerolog.Logger
}

// New builds a Pipeline from configuration. The manifest store is
// optional; a nil store disables manifest bookkeeping.
func New(cfg *config.Config, store *manifest.Store) *Pipeline {
	client := transport.New(transport.OptionsFromConfig(cfg.Transport))
	runID := uuid.New().String()

	p := &Pipeline{
		cfg:      cfg,
		client:   client,
		scanner:  librivox.NewScanner(client, cfg.Catalog),
		fetcher:  librivox.NewChapterFetcher(client, cfg.Catalog),
		selector: dataset.NewSelector(cfg.Dataset.MaxLanguages, cfg.Dataset.ChaptersPerLanguage),
		store:    store,
		runID:    runID,
		progress: newProgress(runID),
		logger:   logging.GetRunLogger("pipeline", runID),
	}

	archiveClient := archive.NewClient(client, cfg.Noise.BaseURL)
	p.sampler = archive.NewSampler(archiveClient, client, cfg.Noise)
	p.sampler.OnDownloaded = func(asset *corpus.AudioAsset) {
		p.progress.addDownload(asset.Size)
		p.record("noise", asset, "")
	}

	return p
}

// RunID identifies this pipeline instance in logs and the manifest.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Progress exposes the run counters for the status server.
func (p *Pipeline) Progress() *Progress {
	return p.progress
}

// Scan fetches the catalog and enriches every book with its chapters.
func (p *Pipeline) Scan(ctx context.Context) []*corpus.Book {
	p.progress.setStage("scanning catalog")
	books := p.scanner.Scan(ctx)
	p.progress.addBooks(len(books))

	for _, book := range books {
		if err := book.SetDirectory(p.cfg.Dataset.CleanDir); err != nil {
			p.logger.Warn().Err(err).Str("book", book.PageURL).Msg("cannot set download directory")
		}
	}

	p.progress.setStage("fetching chapters")
	p.fetcher.EnrichBooks(ctx, books)
	for _, book := range books {
		p.progress.addChapters(len(book.Chapters))
	}
	return books
}

// RunSpeech builds the clean-speech corpus: scan, select, download.
func (p *Pipeline) RunSpeech(ctx context.Context) error {
	books := p.Scan(ctx)

	p.progress.setStage("selecting dataset")
	selected := p.selector.Select(books)
	p.progress.setSelected(len(selected))

	p.progress.setStage("downloading chapters")
	p.downloadChapters(ctx, selected)

	snap := p.progress.Snapshot()
	p.logger.Info().
		Int("selected", snap.ChaptersSelected).
		Int("downloaded", snap.FilesDownloaded).
		Int("failed", snap.FilesFailed).
		Str("bytes", humanize.Bytes(uint64(snap.BytesDownloaded))).
		Msg("clean-speech run complete")
	return nil
}

// RunNoise builds the noise corpus through the weighted sampler.
func (p *Pipeline) RunNoise(ctx context.Context) error {
	p.progress.setStage("sampling noise corpus")
	stats := p.sampler.Run(ctx)
	p.logger.Info().
		Int("attempted", stats.Attempted).
		Int("downloaded", stats.Downloaded).
		Str("bytes", humanize.Bytes(uint64(stats.Bytes))).
		Msg("noise run complete")
	return nil
}

// Run builds both corpora. The flows share nothing but the transport, so
// they run side by side.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(2)

	var speechErr, noiseErr error
	go func() {
		defer wg.Done()
		speechErr = p.RunSpeech(ctx)
	}()
	go func() {
		defer wg.Done()
		noiseErr = p.RunNoise(ctx)
	}()
	wg.Wait()

	if speechErr != nil {
		return speechErr
	}
	return noiseErr
}

// downloadChapters fetches the selected chapters under the download
// worker pool. One chapter's failure never stops the batch.
func (p *Pipeline) downloadChapters(ctx context.Context, chapters []*corpus.Chapter) {
	pool.Run(p.cfg.Dataset.DownloadWorkers, len(chapters), func(i int) {
		chapter := chapters[i]

		if p.alreadyRecorded(ctx, chapter.DownloadPath()) && chapter.IsDownloaded() {
			p.logger.Debug().Str("path", chapter.DownloadPath()).Msg("manifest says present, skipping")
			return
		}

		if err := chapter.Download(ctx, p.client, false); err != nil {
			p.progress.addFailure()
			p.logger.Warn().Err(err).Str("chapter", chapter.Title).Msg("chapter download failed")
			return
		}

		p.progress.addDownload(chapter.Size)
		p.record("speech", &chapter.AudioAsset, chapter.ReaderName)
	})
}

func (p *Pipeline) alreadyRecorded(ctx context.Context, path string) bool {
	if p.store == nil || path == "" {
		return false
	}
	has, err := p.store.Has(ctx, path)
	if err != nil {
		p.logger.Warn().Err(err).Msg("manifest lookup failed")
		return false
	}
	return has
}

func (p *Pipeline) record(kind string, asset *corpus.AudioAsset, reader string) {
	if p.store == nil {
		return
	}
	err := p.store.Record(context.Background(), manifest.Entry{
		RunID:    p.runID,
		Kind:     kind,
		URL:      asset.DownloadURL(),
		Path:     asset.DownloadPath(),
		Language: asset.LanguageCode,
		Reader:   reader,
		Size:     asset.Size,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("path", asset.DownloadPath()).Msg("manifest record failed")
	}
}
