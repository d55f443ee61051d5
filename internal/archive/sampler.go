package archive

import (
	"context"
	"math"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/corpus"
	"github.com/openvox/voxharvest/pkg/logging"
)

const searchPageSize = 50

// Stats summarizes a sampler run.
type Stats struct {
	Attempted   int
	Downloaded  int
	Bytes       int64
	PerCategory map[string]int
}

// Sampler fills the noise corpus by sampling archive items across
// weighted subject categories.
type Sampler struct {
	archive    *Client
	downloader corpus.Downloader
	cfg        config.Noise
	logger     zerolog.Logger

	// OnDownloaded, when set, observes every successfully downloaded
	// asset. Used by the pipeline to feed the manifest.
	OnDownloaded func(asset *corpus.AudioAsset)
}

// NewSampler builds a Sampler. The downloader is the transport used for
// file bodies; archive metadata goes through the archive client.
func NewSampler(archive *Client, downloader corpus.Downloader, cfg config.Noise) *Sampler {
	return &Sampler{
		archive:    archive,
		downloader: downloader,
		cfg:        cfg,
		logger:     logging.GetLogger("sampler"),
	}
}

// Targets computes each category's item target as ceil(weight * total).
// The ceiling means targets may sum past the total; over-fetching is
// accepted, under-fetching is not. With uniform weights enabled, or no
// weights at all, the total divides equally.
func (s *Sampler) Targets(total int) map[string]int {
	targets := make(map[string]int, len(s.cfg.Categories))
	if len(s.cfg.Categories) == 0 {
		return targets
	}

	uniform := 1.0 / float64(len(s.cfg.Categories))
	for _, cat := range s.cfg.Categories {
		weight := cat.Weight
		if s.cfg.UniformWeights || weight == 0 {
			weight = uniform
		}
		targets[cat.Subject] = int(math.Ceil(weight * float64(total)))
	}
	return targets
}

// Run samples every category up to its target and downloads one audio
// file per accepted item into the noise directory. A failure in one item
// or category never aborts the others.
func (s *Sampler) Run(ctx context.Context) Stats {
	stats := Stats{PerCategory: make(map[string]int)}
	targets := s.Targets(s.cfg.TotalItems)

	for _, cat := range s.cfg.Categories {
		target := targets[cat.Subject]
		s.logger.Info().Str("category", cat.Subject).Int("target", target).Msg("sampling category")
		s.sampleCategory(ctx, cat.Subject, target, &stats)
	}

	s.logger.Info().
		Int("attempted", stats.Attempted).
		Int("downloaded", stats.Downloaded).
		Str("bytes", humanize.Bytes(uint64(stats.Bytes))).
		Msg("noise sampling complete")
	return stats
}

func (s *Sampler) sampleCategory(ctx context.Context, subject string, target int, stats *Stats) {
	accepted := 0
	for page := 1; accepted < target; page++ {
		identifiers, err := s.archive.SearchCategory(ctx, subject, searchPageSize, page)
		if err != nil {
			s.logger.Warn().Err(err).Str("category", subject).Msg("category search failed")
			return
		}
		if len(identifiers) == 0 {
			s.logger.Warn().Str("category", subject).Int("accepted", accepted).Int("target", target).
				Msg("category exhausted before target")
			return
		}

		for _, identifier := range identifiers {
			if accepted >= target {
				return
			}
			if s.sampleItem(ctx, subject, identifier, stats) {
				accepted++
				stats.PerCategory[subject]++
			}
		}
	}
}

// sampleItem downloads the item's best audio file. It reports whether the
// item counted toward the category target, which it does as soon as a
// usable file was picked; the byte accounting is rolled back if the
// download then fails.
func (s *Sampler) sampleItem(ctx context.Context, subject, identifier string, stats *Stats) bool {
	item, err := s.archive.GetItem(ctx, identifier)
	if err != nil {
		s.logger.Warn().Err(err).Str("item", identifier).Msg("item metadata failed")
		return false
	}

	file, ok := pickAudioFile(item.Files)
	if !ok {
		s.logger.Debug().Str("item", identifier).Msg("item has no accepted audio file")
		return false
	}

	asset := &corpus.AudioAsset{Title: identifier, Size: file.Size}
	if err := asset.SetDownloadURL(s.archive.DownloadURL(identifier, file.Name)); err != nil {
		s.logger.Warn().Err(err).Str("item", identifier).Msg("unusable download url")
		return false
	}
	if err := asset.SetDirectory(s.cfg.NoiseDir); err != nil {
		s.logger.Warn().Err(err).Str("item", identifier).Msg("cannot place item")
		return false
	}

	stats.Attempted++
	stats.Bytes += file.Size

	if err := asset.Download(ctx, s.downloader, false); err != nil {
		// Best-effort rollback of the accounting, not a transaction.
		_ = asset.RemoveDownload()
		stats.Bytes -= file.Size
		s.logger.Warn().Err(err).Str("item", identifier).Str("category", subject).Msg("item download failed")
		return true
	}

	stats.Downloaded++
	if s.OnDownloaded != nil {
		s.OnDownloaded(asset)
	}
	return true
}

// pickAudioFile returns the item's preferred audio file. Extensions are
// tried in priority order; within one extension the listing order
// decides. Only one format of an item is ever taken.
func pickAudioFile(files []File) (File, bool) {
	for _, ext := range corpus.AudioExtensions {
		for _, f := range files {
			if strings.EqualFold(path.Ext(f.Name), ext) {
				return f, true
			}
		}
	}
	return File{}, false
}
