package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the loaded configuration for values that would make a
// run misbehave rather than fail fast.
func (c *Config) Validate() error {
	var problems []string

	if c.Transport.MaxRetries < 0 {
		problems = append(problems, "transport.max_retries must not be negative")
	}
	if c.Transport.BackoffSeconds < 0 {
		problems = append(problems, "transport.backoff_seconds must not be negative")
	}
	if c.Transport.MetadataTimeout <= 0 {
		problems = append(problems, "transport.metadata_timeout_seconds must be positive")
	}
	if c.Transport.DownloadTimeout <= 0 {
		problems = append(problems, "transport.download_timeout_seconds must be positive")
	}

	if c.Catalog.BaseURL == "" {
		problems = append(problems, "catalog.base_url must be set")
	}
	if c.Catalog.StartPage < 1 {
		problems = append(problems, "catalog.start_page must be at least 1")
	}
	if c.Catalog.EndPage < c.Catalog.StartPage {
		problems = append(problems, "catalog.end_page must not precede catalog.start_page")
	}
	if c.Catalog.ScanWorkers < 1 || c.Catalog.ChapterWorkers < 1 {
		problems = append(problems, "catalog worker counts must be at least 1")
	}

	if c.Dataset.MaxLanguages < 1 {
		problems = append(problems, "dataset.max_languages must be at least 1")
	}
	if c.Dataset.ChaptersPerLanguage < 1 {
		problems = append(problems, "dataset.chapters_per_language must be at least 1")
	}
	if c.Dataset.DownloadWorkers < 1 {
		problems = append(problems, "dataset.download_workers must be at least 1")
	}

	if c.Noise.TotalItems < 0 {
		problems = append(problems, "noise.total_items must not be negative")
	}
	for i, cat := range c.Noise.Categories {
		if cat.Subject == "" {
			problems = append(problems, fmt.Sprintf("noise.categories[%d].subject must be set", i))
		}
		if cat.Weight < 0 {
			problems = append(problems, fmt.Sprintf("noise.categories[%d].weight must not be negative", i))
		}
	}

	if c.Preprocess.SampleRate <= 0 {
		problems = append(problems, "preprocess.sample_rate must be positive")
	}
	if c.Preprocess.Threads < 1 {
		problems = append(problems, "preprocess.threads must be at least 1")
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
