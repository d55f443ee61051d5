package pipeline

import (
	"sync"
	"time"
)

// Progress holds the run counters shared between pipeline workers and
// the status server. Workers only increment; readers get a copy.
type Progress struct {
	mu sync.Mutex

	runID            string
	stage            string
	startedAt        time.Time
	booksScanned     int
	chaptersFetched  int
	chaptersSelected int
	filesDownloaded  int
	filesFailed      int
	bytesDownloaded  int64
}

// Snapshot is a point-in-time copy of the run counters.
type Snapshot struct {
	RunID            string    `json:"run_id"`
	Stage            string    `json:"stage"`
	StartedAt        time.Time `json:"started_at"`
	BooksScanned     int       `json:"books_scanned"`
	ChaptersFetched  int       `json:"chapters_fetched"`
	ChaptersSelected int       `json:"chapters_selected"`
	FilesDownloaded  int       `json:"files_downloaded"`
	FilesFailed      int       `json:"files_failed"`
	BytesDownloaded  int64     `json:"bytes_downloaded"`
}

func newProgress(runID string) *Progress {
	return &Progress{runID: runID, startedAt: time.Now()}
}

func (p *Progress) setStage(stage string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

func (p *Progress) addBooks(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booksScanned += n
}

func (p *Progress) addChapters(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chaptersFetched += n
}

func (p *Progress) setSelected(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chaptersSelected = n
}

func (p *Progress) addDownload(bytes int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesDownloaded++
	p.bytesDownloaded += bytes
}

func (p *Progress) addFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesFailed++
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		RunID:            p.runID,
		Stage:            p.stage,
		StartedAt:        p.startedAt,
		BooksScanned:     p.booksScanned,
		ChaptersFetched:  p.chaptersFetched,
		ChaptersSelected: p.chaptersSelected,
		FilesDownloaded:  p.filesDownloaded,
		FilesFailed:      p.filesFailed,
		BytesDownloaded:  p.bytesDownloaded,
	}
}
