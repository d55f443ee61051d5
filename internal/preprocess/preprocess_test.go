package preprocess

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvox/voxharvest/internal/config"
)

// fakeRunner records every command instead of executing it. It can also
// simulate tool output by writing files through the produce hook.
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	failOn  string
	produce func(name string, args []string)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	if f.failOn != "" {
		for _, arg := range args {
			if filepath.Base(arg) == f.failOn {
				return errors.New("simulated tool failure")
			}
		}
	}
	if f.produce != nil {
		f.produce(name, args)
	}
	return nil
}

func (f *fakeRunner) commandsNamed(name string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, call := range f.calls {
		if call[0] == name {
			out = append(out, call)
		}
	}
	return out
}

func testProcessor(t *testing.T) (*Processor, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	cfg := config.Preprocess{
		OutputDir:    t.TempDir(),
		SampleRate:   44100,
		AugmentCount: 20,
		Threads:      4,
	}
	return NewWithRunner(cfg, runner), runner
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
}

func TestMergeChannelsCommandLine(t *testing.T) {
	proc, runner := testProcessor(t)
	in := t.TempDir()
	out := t.TempDir()
	writeFiles(t, in, "en_alice.mp3")

	require.NoError(t, proc.MergeChannels(context.Background(), in, out, 2))

	calls := runner.commandsNamed("ffmpeg")
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"ffmpeg",
		"-i", filepath.Join(in, "en_alice.mp3"),
		"-loglevel", "panic",
		"-ac", "1",
		"-ar", "44100",
		"-threads", "4",
		filepath.Join(out, "00_en_alice.wav"),
	}, calls[0])
}

func TestMergeChannelsSkipsNonAudio(t *testing.T) {
	proc, runner := testProcessor(t)
	in := t.TempDir()
	writeFiles(t, in, "notes.txt", "en_a.mp3", "cover.jpg", "de_b.ogg")

	require.NoError(t, proc.MergeChannels(context.Background(), in, t.TempDir(), 1))

	calls := runner.commandsNamed("ffmpeg")
	require.Len(t, calls, 2)
}

func TestMergeChannelsNameSanitizing(t *testing.T) {
	assert.Equal(t, "003_my_tape.wav", monoFilename("my tape.mp3", 3, 3))
	assert.Equal(t, "1_a__b.wav", monoFilename("a - b.ogg", 1, 1))
}

func TestMergeChannelsToolFailureIsSkipped(t *testing.T) {
	proc, runner := testProcessor(t)
	runner.failOn = "en_bad.mp3"
	in := t.TempDir()
	writeFiles(t, in, "en_bad.mp3", "en_good.mp3")

	require.NoError(t, proc.MergeChannels(context.Background(), in, t.TempDir(), 1))
	assert.Len(t, runner.commandsNamed("ffmpeg"), 2)
}

func TestNormalizeVolumeDrainsStaging(t *testing.T) {
	proc, runner := testProcessor(t)
	in := t.TempDir()
	out := t.TempDir()
	writeFiles(t, in, "0_en_a.wav", "1_de_b.wav")

	staging := filepath.Join(in, "normalized")
	runner.produce = func(name string, args []string) {
		if name != "ffmpeg-normalize" {
			return
		}
		base := filepath.Base(args[0])
		require.NoError(t, os.MkdirAll(staging, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(staging, base), []byte("norm"), 0644))
	}

	require.NoError(t, proc.NormalizeVolume(context.Background(), in, out))

	calls := runner.commandsNamed("ffmpeg-normalize")
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0], "--acodec")
	assert.Contains(t, calls[0], "pcm_s16le")

	assert.FileExists(t, filepath.Join(out, "0_en_a.wav"))
	assert.FileExists(t, filepath.Join(out, "1_de_b.wav"))
	assert.NoDirExists(t, staging)
}

func TestNormalizeVolumeNoStagingDir(t *testing.T) {
	proc, _ := testProcessor(t)
	in := t.TempDir()
	writeFiles(t, in, "0_en_a.wav")

	require.NoError(t, proc.NormalizeVolume(context.Background(), in, t.TempDir()))
}

func TestAugmentPairCount(t *testing.T) {
	proc, runner := testProcessor(t)
	clean := t.TempDir()
	dirty := t.TempDir()
	out := t.TempDir()
	writeFiles(t, clean, "en_a.mp3", "en_b.mp3", "en_c.mp3")
	writeFiles(t, dirty, "noise1.mp3", "noise2.mp3")

	require.NoError(t, proc.Augment(context.Background(), clean, dirty, out, 2))

	// Bounded by the smaller corpus, not AugmentCount.
	calls := runner.commandsNamed("ffmpeg")
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Contains(t, call, "amerge")
		assert.Equal(t, "_aug.wav", call[len(call)-1][len(call[len(call)-1])-8:])
	}
}

func TestAugmentEmptyCorpusIsNoop(t *testing.T) {
	proc, runner := testProcessor(t)
	clean := t.TempDir()
	writeFiles(t, clean, "en_a.mp3")

	require.NoError(t, proc.Augment(context.Background(), clean, t.TempDir(), t.TempDir(), 2))
	assert.Empty(t, runner.calls)
}

func TestPrefixWidth(t *testing.T) {
	clean := t.TempDir()
	dirty := t.TempDir()
	writeFiles(t, clean, "a.mp3", "b.mp3", "c.mp3")
	writeFiles(t, dirty, "n1.mp3")

	// dirty grows by min(augment, clean, dirty) = 1, so max(3, 2) = 3.
	assert.Equal(t, 1, PrefixWidth(clean, dirty, 5))

	for i := 0; i < 9; i++ {
		writeFiles(t, dirty, string(rune('a'+i))+".mp3")
	}
	assert.Equal(t, 2, PrefixWidth(clean, dirty, 5))
}

func TestRunEndToEnd(t *testing.T) {
	proc, runner := testProcessor(t)
	clean := t.TempDir()
	dirty := t.TempDir()
	writeFiles(t, clean, "en_a.mp3")
	writeFiles(t, dirty, "noise1.mp3")

	require.NoError(t, proc.Run(context.Background(), clean, dirty))

	// One augmentation mix plus three merge passes over: clean (1 file),
	// dirty (1 file), augmented (0 real files since the fake runner writes
	// nothing).
	assert.NotEmpty(t, runner.commandsNamed("ffmpeg"))
	assert.DirExists(t, filepath.Join(proc.cfg.OutputDir, "clean_processed"))
	assert.DirExists(t, filepath.Join(proc.cfg.OutputDir, "dirty_processed"))
	assert.NoDirExists(t, filepath.Join(proc.cfg.OutputDir, "clean_mono"))
	assert.NoDirExists(t, filepath.Join(proc.cfg.OutputDir, "dirty_mono"))
}
