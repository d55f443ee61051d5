// Package preprocess drives ffmpeg over the downloaded corpora: stereo
// merge and resampling, volume normalization, and noise augmentation by
// mixing clean speech into noise recordings.
package preprocess

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openvox/voxharvest/internal/config"
	"github.com/openvox/voxharvest/internal/corpus"
	"github.com/openvox/voxharvest/pkg/logging"
)

// Runner executes an external command. The default implementation shells
// out; tests substitute their own.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Processor converts the raw downloads into the normalized dataset.
type Processor struct {
	cfg    config.Preprocess
	runner Runner
	logger zerolog.Logger
}

// New builds a Processor that shells out to ffmpeg.
func New(cfg config.Preprocess) *Processor {
	return &Processor{
		cfg:    cfg,
		runner: execRunner{},
		logger: logging.GetLogger("preprocess"),
	}
}

// NewWithRunner builds a Processor with a custom command runner.
func NewWithRunner(cfg config.Preprocess, runner Runner) *Processor {
	p := New(cfg)
	p.runner = runner
	return p
}

// PrefixWidth computes the index-prefix width that keeps output
// filenames ("001_x.wav") unique across both corpora plus the augmented
// files. The width is passed explicitly to each stage.
func PrefixWidth(cleanDir, dirtyDir string, augmentCount int) int {
	numClean := countEntries(cleanDir)
	numDirty := countEntries(dirtyDir) + min(augmentCount, countEntries(cleanDir), countEntries(dirtyDir))
	return len(strconv.Itoa(max(numClean, numDirty)))
}

// Run executes the full post-processing flow: augment the noise corpus,
// merge everything to mono wav, then normalize volume levels.
func (p *Processor) Run(ctx context.Context, cleanDir, dirtyDir string) error {
	p.logger.Info().Msg("pre-processing dataset files")
	width := PrefixWidth(cleanDir, dirtyDir, p.cfg.AugmentCount)

	augmentedDir := filepath.Join(dirtyDir, "augmented")
	if err := p.Augment(ctx, cleanDir, dirtyDir, augmentedDir, width); err != nil {
		return err
	}

	cleanMono := filepath.Join(p.cfg.OutputDir, "clean_mono")
	dirtyMono := filepath.Join(p.cfg.OutputDir, "dirty_mono")
	for _, step := range []struct{ in, out string }{
		{cleanDir, cleanMono},
		{dirtyDir, dirtyMono},
		{augmentedDir, dirtyMono},
	} {
		if _, err := os.Stat(step.in); os.IsNotExist(err) {
			continue
		}
		if err := p.MergeChannels(ctx, step.in, step.out, width); err != nil {
			return err
		}
	}

	processedClean := filepath.Join(p.cfg.OutputDir, "clean_processed")
	processedDirty := filepath.Join(p.cfg.OutputDir, "dirty_processed")
	if err := p.NormalizeVolume(ctx, cleanMono, processedClean); err != nil {
		return err
	}
	if err := p.NormalizeVolume(ctx, dirtyMono, processedDirty); err != nil {
		return err
	}

	for _, tmp := range []string{cleanMono, dirtyMono} {
		if err := os.RemoveAll(tmp); err != nil {
			return fmt.Errorf("remove temp dir %s: %w", tmp, err)
		}
	}
	p.logger.Info().Msg("finished pre-processing dataset files")
	return nil
}

// MergeChannels converts every audio file in inDir to a mono wav at the
// configured sample rate, writing index-prefixed names into outDir.
func (p *Processor) MergeChannels(ctx context.Context, inDir, outDir string, width int) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	files, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", inDir, err)
	}

	for idx, file := range files {
		if file.IsDir() || !corpus.IsAudioFile(file.Name()) {
			continue
		}
		outPath := filepath.Join(outDir, monoFilename(file.Name(), idx, width))
		p.logger.Debug().Str("file", file.Name()).Msg("merging audio channels")

		err := p.runner.Run(ctx, "ffmpeg",
			"-i", filepath.Join(inDir, file.Name()),
			"-loglevel", "panic",
			"-ac", "1",
			"-ar", strconv.Itoa(p.cfg.SampleRate),
			"-threads", strconv.Itoa(p.cfg.Threads),
			outPath)
		if err != nil {
			p.logger.Warn().Err(err).Str("file", file.Name()).Msg("channel merge failed, skipping")
		}
	}
	return nil
}

// NormalizeVolume normalizes every file in inDir and moves the results
// into outDir. The normalizer writes into a "normalized" subdirectory of
// its input; that staging directory is drained and removed.
func (p *Processor) NormalizeVolume(ctx context.Context, inDir, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	files, err := os.ReadDir(inDir)
	if err != nil {
		return fmt.Errorf("read %s: %w", inDir, err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		err := p.runner.Run(ctx, "ffmpeg-normalize",
			filepath.Join(inDir, file.Name()),
			"--merge",
			"--dir",
			"-t", ".1",
			"--acodec", "pcm_s16le")
		if err != nil {
			p.logger.Warn().Err(err).Str("file", file.Name()).Msg("volume normalization failed, skipping")
		}
	}

	staging := filepath.Join(inDir, "normalized")
	normalized, err := os.ReadDir(staging)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", staging, err)
	}
	for _, file := range normalized {
		src := filepath.Join(staging, file.Name())
		dst := filepath.Join(outDir, file.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("move %s: %w", src, err)
		}
	}
	return os.RemoveAll(staging)
}

// Augment mixes random clean/noise pairs into additional noise examples.
// Mixed files take the duration of the shorter input.
func (p *Processor) Augment(ctx context.Context, cleanDir, dirtyDir, outDir string, width int) error {
	cleanFiles := audioEntries(cleanDir)
	dirtyFiles := audioEntries(dirtyDir)
	numAugment := min(len(cleanFiles), len(dirtyFiles), p.cfg.AugmentCount)
	if numAugment == 0 {
		return nil
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", outDir, err)
	}

	p.logger.Info().Int("files", numAugment).Msg("augmenting noise corpus")
	rand.Shuffle(len(cleanFiles), func(i, j int) { cleanFiles[i], cleanFiles[j] = cleanFiles[j], cleanFiles[i] })
	rand.Shuffle(len(dirtyFiles), func(i, j int) { dirtyFiles[i], dirtyFiles[j] = dirtyFiles[j], dirtyFiles[i] })

	for idx := 0; idx < numAugment; idx++ {
		clean, dirty := cleanFiles[idx], dirtyFiles[idx]
		mergedName := fmt.Sprintf("%0*d_%s%s_aug.wav", width, idx, prefixOf(clean, 5), prefixOf(dirty, 5))

		err := p.runner.Run(ctx, "ffmpeg",
			"-loglevel", "panic",
			"-i", filepath.Join(cleanDir, clean),
			"-i", filepath.Join(dirtyDir, dirty),
			"-filter_complex", "amerge",
			"-threads", strconv.Itoa(p.cfg.Threads),
			"-ac", "1",
			filepath.Join(outDir, mergedName))
		if err != nil {
			p.logger.Warn().Err(err).Str("clean", clean).Str("dirty", dirty).Msg("augmentation mix failed, skipping")
		}
	}
	return nil
}

// monoFilename builds the index-prefixed wav name for a converted file.
func monoFilename(name string, idx, width int) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	out := fmt.Sprintf("%0*d_%s.wav", width, idx, base)
	out = strings.ReplaceAll(out, " ", "_")
	out = strings.ReplaceAll(out, "-_", "_")
	return out
}

func prefixOf(name string, n int) string {
	if len(name) < n {
		return name
	}
	return name[:n]
}

func audioEntries(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && corpus.IsAudioFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func countEntries(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	return len(entries)
}
