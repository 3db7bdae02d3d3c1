package homepage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkstash/internal/domain"
	"github.com/MrSnakeDoc/linkstash/internal/logger"
	"github.com/MrSnakeDoc/linkstash/internal/reconcile"
	"github.com/MrSnakeDoc/linkstash/internal/store/memory"
)

type fakeCreator struct {
	records []domain.Bookmark
	failURL string
	err     error
}

func (f *fakeCreator) Create(_ context.Context, title, url string) (domain.Bookmark, error) {
	if f.err != nil {
		return domain.Bookmark{}, f.err
	}
	if url == f.failURL {
		return domain.Bookmark{}, domain.RemoteRejected("create", errors.New("boom"))
	}
	b := domain.Bookmark{ID: url, Title: title, URL: url, CreatedAt: time.Now()}
	f.records = append(f.records, b)
	return b, nil
}

func (f *fakeCreator) Snapshot() []domain.Bookmark { return f.records }

const importYAML = `---
- Developer:
    - Github:
        - href: https://github.com/
    - Go docs:
        - href: https://go.dev/doc/
    - Reddit:
        - href: https://reddit.com/
`

func TestImporterImport(t *testing.T) {
	creator := &fakeCreator{
		records: []domain.Bookmark{{ID: "a", Title: "GH", URL: "https://github.com/"}},
		failURL: "https://reddit.com/",
	}

	im := NewImporter(writeYAML(t, importYAML), logger.Nop())
	res, err := im.Import(context.Background(), creator)

	if !errors.Is(err, domain.ErrRemoteRejected) {
		t.Errorf("Import() error = %v, want the failed create joined", err)
	}
	want := Result{Created: 1, Skipped: 1, Failed: 1}
	if res != want {
		t.Errorf("Import() = %+v, want %+v", res, want)
	}
	if len(creator.records) != 2 {
		t.Errorf("records = %d, want 2", len(creator.records))
	}

	// A second run only retries what failed.
	creator.failURL = ""
	res, err = im.Import(context.Background(), creator)
	if err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if want := (Result{Created: 1, Skipped: 2}); res != want {
		t.Errorf("second Import() = %+v, want %+v", res, want)
	}
}

func TestImporterStopsWhenSignedOut(t *testing.T) {
	creator := &fakeCreator{err: domain.ErrUnauthenticated}

	res, err := NewImporter(writeYAML(t, importYAML), logger.Nop()).Import(context.Background(), creator)
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Import() error = %v, want ErrUnauthenticated", err)
	}
	if res.Failed != 0 || res.Created != 0 {
		t.Errorf("Import() = %+v, want nothing attempted after sign-out", res)
	}
}

func TestImporterMissingFile(t *testing.T) {
	_, err := NewImporter("/nonexistent/bookmarks.yaml", logger.Nop()).Import(context.Background(), &fakeCreator{})
	if err == nil {
		t.Error("Import() with missing file should fail")
	}
}

// slowStore delays creates so that overlapping imports interleave
type slowStore struct {
	*memory.Store
	delay time.Duration
}

func (s slowStore) CreateRecord(ctx context.Context, d domain.Draft) (domain.Bookmark, error) {
	time.Sleep(s.delay)
	return s.Store.CreateRecord(ctx, d)
}

func TestImporterOverlappingRunsCreateOnce(t *testing.T) {
	store := memory.NewStore()
	client := reconcile.NewClient(slowStore{Store: store, delay: 20 * time.Millisecond}, reconcile.Options{})
	defer client.Close()

	ctx := context.Background()
	if _, err := client.SignIn(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	im := NewImporter(writeYAML(t, importYAML), logger.Nop())

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := im.Import(ctx, client)
			if err != nil {
				t.Errorf("Import() error = %v", err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	if got := store.Count(); got != 3 {
		t.Errorf("store count after two overlapping imports = %d, want 3", got)
	}
	if created := results[0].Created + results[1].Created; created != 3 {
		t.Errorf("created across runs = %d, want 3 (%+v)", created, results)
	}
	if skipped := results[0].Skipped + results[1].Skipped; skipped != 3 {
		t.Errorf("skipped across runs = %d, want 3 (%+v)", skipped, results)
	}
}

// growingCreator reports a URL as present once another writer added it
// mid-run.
type growingCreator struct {
	fakeCreator
	inject domain.Bookmark
	calls  int
}

func (g *growingCreator) Create(ctx context.Context, title, url string) (domain.Bookmark, error) {
	g.calls++
	if g.calls == 1 {
		g.records = append(g.records, g.inject)
	}
	return g.fakeCreator.Create(ctx, title, url)
}

func TestImporterRechecksViewBeforeEachCreate(t *testing.T) {
	// Drafts follow file order: Github, Go docs, Reddit.
	creator := &growingCreator{inject: domain.Bookmark{ID: "other", URL: "https://reddit.com/"}}

	res, err := NewImporter(writeYAML(t, importYAML), logger.Nop()).Import(context.Background(), creator)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if want := (Result{Created: 2, Skipped: 1}); res != want {
		t.Errorf("Import() = %+v, want %+v", res, want)
	}
}
