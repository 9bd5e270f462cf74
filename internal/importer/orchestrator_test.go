package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibliotheca/catalog-service/internal/archive"
	"github.com/bibliotheca/catalog-service/internal/domain"
	"github.com/bibliotheca/catalog-service/internal/notify"
	"github.com/bibliotheca/catalog-service/internal/observability"
	"github.com/bibliotheca/catalog-service/internal/pdf"
	"github.com/bibliotheca/catalog-service/internal/storage"
)

const paper1 = `@inproceedings{paper1,
  title     = {Distributed Consensus Revisited},
  author    = {Ana Silva and Bruno Costa},
  booktitle = {SBES},
  year      = {2024},
  pages     = {1--10}
}
`

const paper2 = `@inproceedings{paper2,
  title     = {Fault Injection for Microservices},
  author    = {Carla Souza},
  booktitle = {SBES},
  year      = {2024}
}
`

type sentMail struct {
	to, subject string
}

// harness wires an Orchestrator over real extraction, PDF checks and file
// storage with an in-memory catalog.
type harness struct {
	orch        *Orchestrator
	catalog     *fakeCatalog
	store       *storage.FileStore
	scratchRoot string
	metrics     *observability.Metrics
	notifier    *notify.Notifier

	mu      sync.Mutex
	sent    []sentMail
	sendErr error
	// hold, when set, keeps every send waiting until it is closed.
	hold chan struct{}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		catalog:     newFakeCatalog(),
		scratchRoot: t.TempDir(),
		metrics:     observability.NewMetrics(uniqueNamespace("test_importer")),
	}

	store, err := storage.NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	h.store = store

	sender := notify.SenderFunc(func(_ context.Context, to, subject, _ string) error {
		if h.hold != nil {
			<-h.hold
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, sentMail{to: to, subject: subject})
		return h.sendErr
	})

	h.notifier = notify.NewNotifier(sender, h.metrics, 0, zerolog.Nop())
	h.orch = NewOrchestrator(
		cfg,
		h.catalog,
		archive.NewExtractor(archive.Config{ScratchDir: h.scratchRoot}, zerolog.Nop()),
		NewAssociator(store, pdf.NewInspector(0), zerolog.Nop()),
		h.notifier,
		h.metrics,
		zerolog.Nop(),
	)
	h.orch.newID = func() string { return "import-1" }
	return h
}

// run imports and then waits for background notifications.
func (h *harness) run(t *testing.T, bib string, files map[string][]byte) (*domain.ImportResult, error) {
	t.Helper()
	result, err := h.orch.Import(context.Background(), []byte(bib), zipOf(t, files))
	require.NoError(t, h.notifier.Wait(context.Background()))
	return result, err
}

func (h *harness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func (h *harness) storedFiles(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.store.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (h *harness) assertScratchCleaned(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.scratchRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory must be removed")
}

func TestImport_SingleArticleScenario(t *testing.T) {
	h := newHarness(t, Config{})
	h.catalog.subscribers = []domain.Subscriber{
		{ID: 1, Name: "Ana Silva", Email: "ana@example.com"},
		{ID: 2, Name: "Daniel Lima", Email: "daniel@example.com"},
	}

	result, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
	require.NoError(t, err)

	assert.Equal(t, "import-1", result.ImportID)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, []string{"Distributed Consensus Revisited"}, result.ImportedTitles)
	assert.Zero(t, result.SkippedCount)
	assert.Empty(t, result.SkippedReport)

	articles := h.catalog.committedArticles()
	require.Len(t, articles, 1)
	a := articles[0]
	assert.Equal(t, "Ana Silva and Bruno Costa", a.Authors)
	assert.Equal(t, int64(10), a.EditionID)
	assert.Equal(t, 1, *a.StartPage)
	assert.Equal(t, 10, *a.EndPage)
	assert.Equal(t, filepath.Join(h.store.Dir(), "SBES_paper1.pdf"), a.PDFPath)

	assert.Equal(t, []string{"SBES_paper1.pdf"}, h.storedFiles(t))
	require.Len(t, h.sent, 1)
	assert.Equal(t, "ana@example.com", h.sent[0].to)
	assert.Equal(t, "New article by Ana Silva: Distributed Consensus Revisited", h.sent[0].subject)

	assert.Equal(t, 1, h.catalog.commits)
	h.assertScratchCleaned(t)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ImportsCompleted))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RecordsImported))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PDFsStored))
}

func TestImport_AllEntriesWithPDFs(t *testing.T) {
	h := newHarness(t, Config{})

	result, err := h.run(t, paper1+paper2, map[string][]byte{
		"paper1.pdf": fakePDF,
		"paper2.pdf": fakePDF,
		"notes.txt":  []byte("ignored"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ImportedCount)
	assert.Zero(t, result.SkippedCount)
	assert.Equal(t, []string{"Distributed Consensus Revisited", "Fault Injection for Microservices"}, result.ImportedTitles)
	assert.ElementsMatch(t, []string{"SBES_paper1.pdf", "SBES_paper2.pdf"}, h.storedFiles(t))
}

func TestImport_PerRecordSkips(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		bib        string
		files      map[string][]byte
		wantID     string
		wantReason string
		wantCode   domain.SkipCode
	}{
		{
			name:       "no edition for year",
			bib:        strings.Replace(paper1, "2024", "2023", 1),
			files:      map[string][]byte{"paper1.pdf": fakePDF},
			wantID:     "paper1",
			wantReason: "no edition for that event/year",
			wantCode:   domain.SkipEditionNotFound,
		},
		{
			name:       "event not found",
			bib:        strings.Replace(paper1, "{SBES}", "{FSE}", 1),
			files:      map[string][]byte{"paper1.pdf": fakePDF},
			wantID:     "paper1",
			wantReason: "event not found",
			wantCode:   domain.SkipEventNotFound,
		},
		{
			name:       "event without editions",
			bib:        strings.Replace(strings.Replace(paper1, "{SBES}", "{ICSE}", 1), "  year      = {2024},\n", "", 1),
			files:      map[string][]byte{"paper1.pdf": fakePDF},
			wantID:     "paper1",
			wantReason: "no edition registered for event",
			wantCode:   domain.SkipNoEdition,
		},
		{
			name:       "pdf missing from archive",
			bib:        paper1,
			files:      map[string][]byte{"other.pdf": fakePDF},
			wantID:     "paper1",
			wantReason: "no matching PDF in archive",
			wantCode:   domain.SkipPDFMissing,
		},
		{
			name:       "pdf file name differs in case",
			bib:        paper1,
			files:      map[string][]byte{"PAPER1.PDF": fakePDF},
			wantID:     "paper1",
			wantReason: "no matching PDF in archive",
			wantCode:   domain.SkipPDFMissing,
		},
		{
			name:       "invalid pdf content",
			bib:        paper1,
			files:      map[string][]byte{"paper1.pdf": []byte("<html>not a pdf</html>")},
			wantID:     "paper1",
			wantReason: "invalid PDF file",
			wantCode:   domain.SkipPDFInvalid,
		},
		{
			name:       "missing title",
			bib:        "@inproceedings{notitle, booktitle = {SBES}, year = {2024}}",
			files:      map[string][]byte{"notitle.pdf": fakePDF},
			wantID:     "notitle",
			wantReason: "missing title",
			wantCode:   domain.SkipMissingTitle,
		},
		{
			name:       "title too short",
			bib:        "@inproceedings{short, title = {Go}, booktitle = {SBES}, year = {2024}}",
			files:      map[string][]byte{"short.pdf": fakePDF},
			wantID:     "short",
			wantReason: "title too short",
			wantCode:   domain.SkipTitleTooShort,
		},
		{
			name:       "year required but absent",
			cfg:        Config{RequireYear: true},
			bib:        strings.Replace(paper1, "  year      = {2024},\n", "", 1),
			files:      map[string][]byte{"paper1.pdf": fakePDF},
			wantID:     "paper1",
			wantReason: "missing year",
			wantCode:   domain.SkipMissingYear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.cfg)
			h.catalog.subscribers = []domain.Subscriber{{ID: 1, Name: "Ana Silva", Email: "ana@example.com"}}

			result, err := h.run(t, tt.bib, tt.files)
			require.NoError(t, err)

			assert.Zero(t, result.ImportedCount)
			assert.Empty(t, result.ImportedTitles)
			assert.Equal(t, 1, result.SkippedCount)
			require.Len(t, result.SkippedReport, 1)
			assert.Equal(t, tt.wantID, result.SkippedReport[0].Identifier)
			assert.Equal(t, tt.wantReason, result.SkippedReport[0].Reason)
			assert.Equal(t, tt.wantCode, result.SkippedReport[0].Code)

			assert.Empty(t, h.catalog.committedArticles())
			assert.Empty(t, h.storedFiles(t), "skipped records must not leave files behind")
			assert.Empty(t, h.sent)
			h.assertScratchCleaned(t)
			assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RecordsSkipped.WithLabelValues(string(tt.wantCode))))
		})
	}
}

func TestImport_AbsentYearUsesEarliestEdition(t *testing.T) {
	h := newHarness(t, Config{})

	bib := strings.Replace(paper1, "  year      = {2024},\n", "", 1)
	result, err := h.run(t, bib, map[string][]byte{"paper1.pdf": fakePDF})
	require.NoError(t, err)
	require.Equal(t, 1, result.ImportedCount)

	articles := h.catalog.committedArticles()
	require.Len(t, articles, 1)
	assert.Equal(t, int64(11), articles[0].EditionID)
	assert.Nil(t, articles[0].Year)
}

func TestImport_DuplicatesWithinBatch(t *testing.T) {
	t.Run("same title and edition keeps the first", func(t *testing.T) {
		h := newHarness(t, Config{})
		again := strings.Replace(paper1, "paper1,", "paper1b,", 1)

		result, err := h.run(t, paper1+again, map[string][]byte{"paper1.pdf": fakePDF, "paper1b.pdf": fakePDF})
		require.NoError(t, err)

		assert.Equal(t, 1, result.ImportedCount)
		require.Len(t, result.SkippedReport, 1)
		assert.Equal(t, "paper1b", result.SkippedReport[0].Identifier)
		assert.Equal(t, "already cataloged in this edition", result.SkippedReport[0].Reason)
		assert.Equal(t, []string{"SBES_paper1.pdf"}, h.storedFiles(t))
	})

	t.Run("repeated citation key is skipped", func(t *testing.T) {
		h := newHarness(t, Config{})
		sameKey := strings.Replace(paper2, "paper2,", "paper1,", 1)

		result, err := h.run(t, paper1+sameKey, map[string][]byte{"paper1.pdf": fakePDF})
		require.NoError(t, err)

		assert.Equal(t, 1, result.ImportedCount)
		require.Len(t, result.SkippedReport, 1)
		assert.Equal(t, "duplicate citation key in batch", result.SkippedReport[0].Reason)
	})
}

func TestImport_IsIdempotent(t *testing.T) {
	h := newHarness(t, Config{})
	files := map[string][]byte{"paper1.pdf": fakePDF, "paper2.pdf": fakePDF}

	first, err := h.run(t, paper1+paper2, files)
	require.NoError(t, err)
	require.Equal(t, 2, first.ImportedCount)

	second, err := h.run(t, paper1+paper2, files)
	require.NoError(t, err)
	assert.Zero(t, second.ImportedCount)
	assert.Equal(t, 2, second.SkippedCount)
	for _, s := range second.SkippedReport {
		assert.Equal(t, domain.SkipDuplicate, s.Code)
	}
	assert.Len(t, h.catalog.committedArticles(), 2)
	assert.Len(t, h.storedFiles(t), 2)
}

func TestImport_FatalErrors(t *testing.T) {
	t.Run("corrupted archive", func(t *testing.T) {
		h := newHarness(t, Config{})

		result, err := h.orch.Import(context.Background(), []byte(paper1), []byte("definitely not a zip"))
		require.Error(t, err)
		assert.Nil(t, result)

		var importErr *domain.ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Equal(t, StageExtract, importErr.Stage)
		assert.True(t, errors.Is(err, domain.ErrInvalidArchive))

		assert.Empty(t, h.catalog.committedArticles())
		assert.Empty(t, h.storedFiles(t))
		h.assertScratchCleaned(t)
		assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ImportsFailed.WithLabelValues(StageExtract)))
	})

	t.Run("malformed bibtex", func(t *testing.T) {
		h := newHarness(t, Config{})

		_, err := h.run(t, "@inproceedings{paper1, title = {Unclosed", map[string][]byte{"paper1.pdf": fakePDF})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidBibTeX))
		h.assertScratchCleaned(t)
	})

	t.Run("empty bibtex", func(t *testing.T) {
		h := newHarness(t, Config{})

		_, err := h.run(t, "% just a comment\n", map[string][]byte{"paper1.pdf": fakePDF})
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidBibTeX))
	})

	t.Run("commit failure rolls back and removes stored PDFs", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.subscribers = []domain.Subscriber{{ID: 1, Name: "Ana Silva", Email: "ana@example.com"}}
		h.catalog.commitErr = errors.New("unique violation")

		result, err := h.run(t, paper1+paper2, map[string][]byte{"paper1.pdf": fakePDF, "paper2.pdf": fakePDF})
		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, errors.Is(err, domain.ErrCommitFailed))

		var importErr *domain.ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Equal(t, StageCommit, importErr.Stage)

		assert.Equal(t, 1, h.catalog.rollbacks)
		assert.Empty(t, h.catalog.committedArticles())
		assert.Empty(t, h.storedFiles(t))
		assert.Empty(t, h.sent, "rolled back articles must not notify")
		h.assertScratchCleaned(t)
	})

	t.Run("stage failure aborts the batch", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.stageErr = errors.New("insert failed")

		_, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
		require.Error(t, err)

		var importErr *domain.ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Equal(t, StageStage, importErr.Stage)
		assert.Equal(t, 1, h.catalog.rollbacks)
		assert.Empty(t, h.storedFiles(t))
	})

	t.Run("lookup failure aborts the batch", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.lookupErr = errors.New("connection reset")

		_, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
		require.Error(t, err)

		var importErr *domain.ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Equal(t, StageResolve, importErr.Stage)
		assert.Equal(t, 1, h.catalog.rollbacks)
	})

	t.Run("begin failure", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.beginErr = errors.New("too many connections")

		_, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
		require.Error(t, err)

		var importErr *domain.ImportError
		require.True(t, errors.As(err, &importErr))
		assert.Equal(t, StageBegin, importErr.Stage)
		h.assertScratchCleaned(t)
	})
}

func TestImport_NotificationsAreBestEffort(t *testing.T) {
	t.Run("send failure does not affect the result", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.subscribers = []domain.Subscriber{{ID: 1, Name: "ana silva", Email: "ana@example.com"}}
		h.sendErr = errors.New("smtp unavailable")

		result, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ImportedCount)
		assert.Len(t, h.sent, 1)
		assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.NotificationsFailed))
	})

	t.Run("subscriber listing failure does not affect the result", func(t *testing.T) {
		h := newHarness(t, Config{})
		h.catalog.listSubscribersErr = errors.New("timeout")

		result, err := h.run(t, paper1, map[string][]byte{"paper1.pdf": fakePDF})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ImportedCount)
		assert.Empty(t, h.sent)
	})
}

func TestImport_ReturnsBeforeNotificationsAreDelivered(t *testing.T) {
	h := newHarness(t, Config{})
	h.catalog.subscribers = []domain.Subscriber{{ID: 1, Name: "Ana Silva", Email: "ana@example.com"}}
	h.hold = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	result, err := h.orch.Import(ctx, []byte(paper1), zipOf(t, map[string][]byte{"paper1.pdf": fakePDF}))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Zero(t, h.sentCount(), "delivery must not block the import result")

	// the caller going away must not cancel delivery
	cancel()
	close(h.hold)
	require.NoError(t, h.notifier.Wait(context.Background()))
	assert.Equal(t, 1, h.sentCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.NotificationsSent))
}

func TestImport_OutOfRangeNumbersStayPerRecord(t *testing.T) {
	h := newHarness(t, Config{})

	huge := `@inproceedings{paper3,
  title     = {Scaling Laws for Build Caches},
  author    = {Daniel Lima},
  booktitle = {SBES},
  year      = {3000000000},
  pages     = {1--99999999999}
}
`
	result, err := h.run(t, paper1+huge, map[string][]byte{"paper1.pdf": fakePDF, "paper3.pdf": fakePDF})
	require.NoError(t, err)
	assert.Equal(t, 2, result.ImportedCount)

	articles := h.catalog.committedArticles()
	require.Len(t, articles, 2)
	assert.Equal(t, int64(10), articles[0].EditionID)
	// an unusable year is treated as absent and falls back to the earliest edition
	assert.Equal(t, int64(11), articles[1].EditionID)
	assert.Nil(t, articles[1].Year)
	assert.Equal(t, 1, *articles[1].StartPage)
	assert.Nil(t, articles[1].EndPage)

	t.Run("skipped when a year is required", func(t *testing.T) {
		h := newHarness(t, Config{RequireYear: true})

		result, err := h.run(t, paper1+huge, map[string][]byte{"paper1.pdf": fakePDF, "paper3.pdf": fakePDF})
		require.NoError(t, err)
		assert.Equal(t, 1, result.ImportedCount)
		require.Len(t, result.SkippedReport, 1)
		assert.Equal(t, "paper3", result.SkippedReport[0].Identifier)
		assert.Equal(t, domain.SkipMissingYear, result.SkippedReport[0].Code)
	})
}

func TestImport_UnstorableTextIsRejectedAtParse(t *testing.T) {
	h := newHarness(t, Config{})

	bib := paper1 + "@inproceedings{paper2, title = {Fault\x00Injection}, booktitle = {SBES}, year = {2024}}"
	_, err := h.run(t, bib, map[string][]byte{"paper1.pdf": fakePDF})
	require.Error(t, err)

	var importErr *domain.ImportError
	require.True(t, errors.As(err, &importErr))
	assert.Equal(t, StageParse, importErr.Stage)
	assert.True(t, errors.Is(err, domain.ErrInvalidBibTeX))
	assert.Empty(t, h.catalog.committedArticles())
}
