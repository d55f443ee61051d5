// Package config loads and validates the voxharvest configuration file.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/openvox/voxharvest/pkg/logging"
)

//go:embed sample_config.toml
var sampleConfig string

// Config is the root configuration for all voxharvest commands.
type Config struct {
	Logging    logging.LogConfig `toml:"logging"`
	Transport  Transport         `toml:"transport"`
	Catalog    Catalog           `toml:"catalog"`
	Dataset    Dataset           `toml:"dataset"`
	Noise      Noise             `toml:"noise"`
	Manifest   Manifest          `toml:"manifest"`
	Status     Status            `toml:"status"`
	Preprocess Preprocess        `toml:"preprocess"`
}

// Transport configures the retrying HTTP client shared by every fetcher.
type Transport struct {
	MaxRetries        int     `toml:"max_retries"`
	BackoffSeconds    float64 `toml:"backoff_seconds"`
	PoolConnections   int     `toml:"pool_connections"`
	PoolMaxPerHost    int     `toml:"pool_max_per_host"`
	MetadataTimeout   int     `toml:"metadata_timeout_seconds"`
	DownloadTimeout   int     `toml:"download_timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Catalog configures the audiobook catalog scan.
type Catalog struct {
	BaseURL        string `toml:"base_url"`
	StartPage      int    `toml:"start_page"`
	EndPage        int    `toml:"end_page"`
	ProbeForEnd    bool   `toml:"probe_for_end"`
	ScanWorkers    int    `toml:"scan_workers"`
	ChapterWorkers int    `toml:"chapter_workers"`
}

// Dataset configures clean-speech selection and download.
type Dataset struct {
	CleanDir            string `toml:"clean_dir"`
	MaxLanguages        int    `toml:"max_languages"`
	ChaptersPerLanguage int    `toml:"chapters_per_language"`
	DownloadWorkers     int    `toml:"download_workers"`
}

// Category pairs an archive subject with its share of the noise corpus.
type Category struct {
	Subject string  `toml:"subject"`
	Weight  float64 `toml:"weight"`
}

// Noise configures the weighted noise-corpus sampler.
type Noise struct {
	NoiseDir       string     `toml:"noise_dir"`
	BaseURL        string     `toml:"base_url"`
	TotalItems     int        `toml:"total_items"`
	UniformWeights bool       `toml:"uniform_weights"`
	Categories     []Category `toml:"categories"`
}

// Manifest configures the sqlite download manifest.
type Manifest struct {
	Path string `toml:"path"`
}

// Status configures the optional progress HTTP endpoint.
// An empty bind address disables the server.
type Status struct {
	Bind string `toml:"bind"`
}

// Preprocess configures the ffmpeg post-processing stage.
type Preprocess struct {
	OutputDir    string `toml:"output_dir"`
	SampleRate   int    `toml:"sample_rate"`
	AugmentCount int    `toml:"augment_count"`
	Threads      int    `toml:"threads"`
}

// Load reads the config file at path, falling back to defaults for a
// missing file and missing fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteSample writes the annotated sample config to path, refusing to
// clobber an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0644)
}
