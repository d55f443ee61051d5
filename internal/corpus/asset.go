// Package corpus holds the audiobook entities and the shared download
// lifecycle for their audio payloads.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// Configuration errors reported before any I/O happens.
var (
	ErrNoDirectory = errors.New("no download directory set")
	ErrNoURL       = errors.New("no download URL set")
)

// AudioExtensions lists the accepted audio formats in priority order.
// The archive sampler picks download candidates with it and the
// preprocessor uses it to filter input directories.
var AudioExtensions = []string{".mp3", ".aac", ".mp4", ".ogg", ".wav", ".opus"}

// IsAudioFile reports whether the filename carries an accepted audio
// extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, accepted := range AudioExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// Downloader is the slice of the transport client the asset lifecycle
// needs. Satisfied by *transport.Client.
type Downloader interface {
	GetStream(ctx context.Context, url string, headers http.Header) (*http.Response, error)
}

// AudioAsset is the downloadable-file capability shared by Book and
// Chapter through embedding. Identity fields are plain; the storage
// fields stay private so every change flows through the relocation
// logic and the path invariant holds.
type AudioAsset struct {
	Title        string
	Author       string
	LanguageCode string
	Duration     time.Duration
	Size         int64

	downloadURL      string
	downloadDir      string
	downloadFilename string
}

// DownloadURL returns the remote location of the audio payload.
func (a *AudioAsset) DownloadURL() string {
	return a.downloadURL
}

// SetDownloadURL stores the remote location and, if no filename was ever
// set, derives one from the URL's last path segment, prefixed with the
// language code when one is known. First write wins: a later SetDownloadURL
// never renames the asset.
func (a *AudioAsset) SetDownloadURL(rawURL string) error {
	a.downloadURL = strings.TrimSpace(rawURL)

	if a.downloadFilename != "" {
		return nil
	}

	parsed, err := url.Parse(a.downloadURL)
	if err != nil {
		return fmt.Errorf("parse download url %q: %w", rawURL, err)
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("download url %q has no usable filename", rawURL)
	}
	if a.LanguageCode != "" {
		name = a.LanguageCode + "_" + name
	}
	a.downloadFilename = name
	return nil
}

// DownloadDir returns the directory the payload is (or will be) stored in.
func (a *AudioAsset) DownloadDir() string {
	return a.downloadDir
}

// DownloadFilename returns the payload's filename within DownloadDir.
func (a *AudioAsset) DownloadFilename() string {
	return a.downloadFilename
}

// DownloadPath joins the directory and filename, or returns "" while
// either is unset.
func (a *AudioAsset) DownloadPath() string {
	if a.downloadDir == "" || a.downloadFilename == "" {
		return ""
	}
	return filepath.Join(a.downloadDir, a.downloadFilename)
}

// IsDownloaded reports whether a file exists at the asset's download path.
func (a *AudioAsset) IsDownloaded() bool {
	p := a.DownloadPath()
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// SetDirectory points the asset at a new directory, physically moving an
// already-downloaded file there.
func (a *AudioAsset) SetDirectory(dir string) error {
	return a.Relocate(dir, "")
}

// SetFilename renames the asset, physically moving an already-downloaded
// file to the new name.
func (a *AudioAsset) SetFilename(name string) error {
	return a.Relocate("", name)
}

// Relocate updates the download directory and/or filename ("" keeps the
// current value). If the asset is on disk the file is moved first, so on
// success the stored path always points at the file and the old path is
// gone. On a failed move the metadata is left untouched.
func (a *AudioAsset) Relocate(newDir, newName string) error {
	newDir = strings.TrimSpace(newDir)
	newName = strings.TrimSpace(newName)
	if newDir == "" {
		newDir = a.downloadDir
	}
	if newName == "" {
		newName = a.downloadFilename
	}
	if newDir == a.downloadDir && newName == a.downloadFilename {
		return nil
	}

	if a.IsDownloaded() {
		target := filepath.Join(newDir, newName)
		if newDir != "" {
			if err := os.MkdirAll(newDir, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", newDir, err)
			}
		}
		if err := os.Rename(a.DownloadPath(), target); err != nil {
			return fmt.Errorf("move %s to %s: %w", a.DownloadPath(), target, err)
		}
	}

	a.downloadDir = newDir
	a.downloadFilename = newName
	return nil
}

// Download fetches the payload to the asset's download path.
//
// An already-present file short-circuits with no network call unless
// overwrite is set. The body is streamed to a temporary file and renamed
// into place; any failure removes the partial file so a later idempotence
// check cannot be fooled by a truncated download.
func (a *AudioAsset) Download(ctx context.Context, client Downloader, overwrite bool) error {
	if a.downloadDir == "" {
		return ErrNoDirectory
	}
	if a.downloadURL == "" {
		return ErrNoURL
	}

	if a.IsDownloaded() && !overwrite {
		log.Debug().Str("path", a.DownloadPath()).Msg("file exists, skipping re-download")
		return nil
	}

	if err := os.MkdirAll(a.downloadDir, 0755); err != nil {
		return fmt.Errorf("create download directory %s: %w", a.downloadDir, err)
	}

	resp, err := client.GetStream(ctx, a.downloadURL, nil)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", a.downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", a.downloadURL, resp.StatusCode)
	}

	if a.Size == 0 && resp.ContentLength > 0 {
		a.Size = resp.ContentLength
	}

	finalPath := a.DownloadPath()
	tempPath := finalPath + ".part"

	log.Debug().
		Str("file", a.downloadFilename).
		Str("dir", a.downloadDir).
		Str("size", humanize.Bytes(uint64(a.Size))).
		Msg("downloading")

	tempFile, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tempPath, err)
	}

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("stream %s: %w", a.downloadURL, err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("close %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("finalize %s: %w", finalPath, err)
	}

	// Report success only from the file's own existence.
	if !a.IsDownloaded() {
		return fmt.Errorf("download of %s completed but %s is missing", a.downloadURL, finalPath)
	}
	return nil
}

// RemoveDownload deletes the on-disk file, if any. Used by the sampler's
// accounting rollback.
func (a *AudioAsset) RemoveDownload() error {
	p := a.DownloadPath()
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
