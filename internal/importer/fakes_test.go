package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/domain"
)

// fakeCatalog is an in-memory Store. Staged articles become visible to the
// batch that staged them and are published on Commit.
type fakeCatalog struct {
	mu sync.Mutex

	events      []domain.Event
	editions    []domain.Edition
	articles    []domain.Article
	subscribers []domain.Subscriber
	nextID      int64

	listSubscribersErr error
	beginErr           error
	lookupErr          error
	stageErr           error
	commitErr          error

	commits   int
	rollbacks int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		events:   []domain.Event{{ID: 1, Name: "SBES"}, {ID: 2, Name: "ICSE"}},
		editions: []domain.Edition{{ID: 10, EventID: 1, Year: 2024}, {ID: 11, EventID: 1, Year: 2019}},
		nextID:   100,
	}
}

func (c *fakeCatalog) Begin(context.Context) (Batch, error) {
	if c.beginErr != nil {
		return nil, c.beginErr
	}
	return &fakeBatch{c: c}, nil
}

func (c *fakeCatalog) ListSubscribers(context.Context) ([]domain.Subscriber, error) {
	if c.listSubscribersErr != nil {
		return nil, c.listSubscribersErr
	}
	return c.subscribers, nil
}

func (c *fakeCatalog) committedArticles() []domain.Article {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Article(nil), c.articles...)
}

type fakeBatch struct {
	c      *fakeCatalog
	staged []domain.Article
}

func (b *fakeBatch) FindEventByName(_ context.Context, name string) (*domain.Event, error) {
	if b.c.lookupErr != nil {
		return nil, b.c.lookupErr
	}
	for _, e := range b.c.events {
		if e.Name == name {
			e := e
			return &e, nil
		}
	}
	return nil, domain.NewNotFoundError("event", name)
}

func (b *fakeBatch) FindEdition(_ context.Context, eventID int64, year int) (*domain.Edition, error) {
	for _, e := range b.c.editions {
		if e.EventID == eventID && e.Year == year {
			e := e
			return &e, nil
		}
	}
	return nil, domain.NewNotFoundError("edition", fmt.Sprintf("%d/%d", eventID, year))
}

func (b *fakeBatch) FindFirstEdition(_ context.Context, eventID int64) (*domain.Edition, error) {
	var matches []domain.Edition
	for _, e := range b.c.editions {
		if e.EventID == eventID {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, domain.NewNotFoundError("edition", domain.FormatID(eventID))
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Year != matches[j].Year {
			return matches[i].Year < matches[j].Year
		}
		return matches[i].ID < matches[j].ID
	})
	return &matches[0], nil
}

func (b *fakeBatch) FindArticle(_ context.Context, title string, editionID int64) (*domain.Article, error) {
	for _, a := range append(b.c.committedArticles(), b.staged...) {
		if a.Title == title && a.EditionID == editionID {
			a := a
			return &a, nil
		}
	}
	return nil, domain.NewNotFoundError("article", title)
}

func (b *fakeBatch) StageArticle(_ context.Context, article *domain.Article) error {
	if b.c.stageErr != nil {
		return b.c.stageErr
	}
	b.c.nextID++
	article.ID = b.c.nextID
	b.staged = append(b.staged, *article)
	return nil
}

func (b *fakeBatch) Commit(context.Context) error {
	if b.c.commitErr != nil {
		return b.c.commitErr
	}
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.c.articles = append(b.c.articles, b.staged...)
	b.staged = nil
	b.c.commits++
	return nil
}

func (b *fakeBatch) Rollback(context.Context) error {
	b.staged = nil
	b.c.rollbacks++
	return nil
}

// fakePDF is the smallest content that passes the header check.
var fakePDF = []byte("%PDF-1.4\n%fake test document\n%%EOF\n")

// zipOf builds a ZIP archive holding the given files.
func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var metricsSeq atomic.Int64

// uniqueNamespace avoids duplicate registration on the default Prometheus registry.
func uniqueNamespace(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, metricsSeq.Add(1))
}
