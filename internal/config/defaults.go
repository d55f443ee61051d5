package config

import "github.com/openvox/voxharvest/pkg/logging"

// Catalog bound that was known good at the time of writing; probing
// extends it when probe_for_end is set.
const defaultEndPage = 445

// Default returns the built-in configuration. Directory fields default to
// paths under ./data so a bare run stays inside the working tree.
func Default() *Config {
	return &Config{
		Logging: *logging.DefaultLogConfig(),
		Transport: Transport{
			MaxRetries:        17,
			BackoffSeconds:    0.2,
			PoolConnections:   20,
			PoolMaxPerHost:    50,
			MetadataTimeout:   10,
			DownloadTimeout:   600,
			RequestsPerSecond: 4,
		},
		Catalog: Catalog{
			BaseURL:        "https://librivox.org",
			StartPage:      1,
			EndPage:        defaultEndPage,
			ProbeForEnd:    true,
			ScanWorkers:    6,
			ChapterWorkers: 6,
		},
		Dataset: Dataset{
			CleanDir:            "data/clean_files",
			MaxLanguages:        20,
			ChaptersPerLanguage: 15,
			DownloadWorkers:     7,
		},
		Noise: Noise{
			NoiseDir:   "data/dirty_files",
			BaseURL:    "https://archive.org",
			TotalItems: 100,
			Categories: []Category{
				{Subject: "music", Weight: 0.117},
				{Subject: "instrumental", Weight: 0.315},
				{Subject: "78rpm", Weight: 0.076},
				{Subject: "ambient", Weight: 0.38},
				{Subject: "noise", Weight: 0.085},
				{Subject: "drone", Weight: 0.03},
			},
		},
		Manifest: Manifest{
			Path: "data/manifest.db",
		},
		Status: Status{
			Bind: "",
		},
		Preprocess: Preprocess{
			OutputDir:    "data/processed",
			SampleRate:   44100,
			AugmentCount: 20,
			Threads:      4,
		},
	}
}
