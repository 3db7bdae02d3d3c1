package homepage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
)

// Creator is the part of the sync client the importer needs
type Creator interface {
	Create(ctx context.Context, title, url string) (domain.Bookmark, error)
	Snapshot() []domain.Bookmark
}

// Result summarizes one import run
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Importer creates bookmarks from a Homepage bookmarks.yaml through the
// sync client, skipping URLs the user already has.
type Importer struct {
	loader *Loader
	logger logger.Logger

	// One run at a time, so overlapping runs never create the same URL twice.
	mu sync.Mutex
}

// NewImporter creates a new importer for filePath
func NewImporter(filePath string, log logger.Logger) *Importer {
	return &Importer{
		loader: NewLoader(filePath),
		logger: log,
	}
}

// Import loads the file and creates every missing bookmark. Failed
// creates do not stop the run; they are joined into the returned error.
func (im *Importer) Import(ctx context.Context, c Creator) (Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	var res Result

	config, err := im.loader.Load()
	if err != nil {
		return res, err
	}

	var errs []error
	for _, d := range MapDrafts(config) {
		// The view changes while we import (other devices, the HTTP API),
		// so look again before every create. Pending records count.
		if hasURL(c.Snapshot(), d.URL) {
			res.Skipped++
			continue
		}
		if _, err := c.Create(ctx, d.Title, d.URL); err != nil {
			if errors.Is(err, domain.ErrUnauthenticated) {
				return res, err
			}
			res.Failed++
			errs = append(errs, fmt.Errorf("import %s: %w", d.URL, err))
			continue
		}
		res.Created++
	}

	im.logger.Info("homepage bookmarks imported",
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed))

	return res, errors.Join(errs...)
}

func hasURL(records []domain.Bookmark, url string) bool {
	return slices.ContainsFunc(records, func(b domain.Bookmark) bool { return b.URL == url })
}
