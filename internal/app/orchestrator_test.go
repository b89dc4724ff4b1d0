package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"carwatch/internal/config"
	"carwatch/internal/fetcher"
	"carwatch/internal/observability"
	"carwatch/internal/scraper"
	"carwatch/internal/storage"
	"carwatch/internal/storage/file"
)

type fakeSource struct {
	mu    sync.Mutex
	pages []string
	err   error
	calls int
}

func (f *fakeSource) Fetch(_ context.Context, urlStr string) (*fetcher.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	page := f.pages[0]
	if len(f.pages) > 1 {
		f.pages = f.pages[1:]
	}
	return &fetcher.FetchResponse{StatusCode: 200, Body: []byte(page), URL: urlStr}, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingNotifier) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func page(items ...string) string {
	var b strings.Builder
	b.WriteString("<select>")
	for _, item := range items {
		b.WriteString("<option>" + item + "</option>")
	}
	b.WriteString("</select>")
	return b.String()
}

type harness struct {
	orch     *Orchestrator
	source   *fakeSource
	notifier *recordingNotifier
	store    *file.Store
	path     string
}

func newHarness(t *testing.T, source *fakeSource) *harness {
	t.Helper()
	cfg := &config.Config{
		WatchURL:  "https://configurateur.example.fr/modeles",
		Scheduler: config.SchedulerConfig{Mode: "oneshot"},
	}
	path := filepath.Join(t.TempDir(), "last_list.txt")
	store := file.NewStore(path)
	n := &recordingNotifier{}
	logger := observability.NewWriterLogger(io.Discard, "error")

	return &harness{
		orch:     NewOrchestrator(cfg, logger, source, scraper.NewScraper(&scraper.Selectors{Item: "option"}, nil), store, n),
		source:   source,
		notifier: n,
		store:    store,
		path:     path,
	}
}

func (h *harness) saved(t *testing.T) scraper.ItemList {
	t.Helper()
	items, found, err := h.store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	return items
}

func TestFirstRunSendsHeartbeatAndPersists(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A", "B")}})

	stats, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, stats.FirstRun)
	require.True(t, stats.Persisted)
	require.True(t, stats.Notified)
	require.Equal(t, []string{"🚀 Surveillance lancée – 2 voitures détectées."}, h.notifier.texts)
	require.Equal(t, scraper.ItemList{"A", "B"}, h.saved(t))
}

func TestChangeIsReportedAndStateReplaced(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A", "B", "C"), page("A", "C", "D")}})

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	stats, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, stats.FirstRun)
	require.Equal(t, 1, stats.Added)
	require.Equal(t, 1, stats.Removed)
	require.Len(t, h.notifier.texts, 2)
	report := h.notifier.texts[1]
	require.Contains(t, report, "🟢 Ajoutés :\n• D")
	require.Contains(t, report, "🔴 Retirés :\n• B")
	require.Equal(t, scraper.ItemList{"A", "C", "D"}, h.saved(t))
}

func TestUnchangedListDoesNotNotify(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A", "B", "C"), page("C", "A", "B")}})

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	stats, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	require.False(t, stats.Notified)
	require.True(t, stats.Persisted)
	require.Len(t, h.notifier.texts, 1)
	require.Equal(t, scraper.ItemList{"C", "A", "B"}, h.saved(t))
}

func TestHeartbeatEveryRun(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A"), page("A")}})
	h.orch.cfg.Notify.HeartbeatEveryRun = true

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{
		"🚀 Surveillance lancée – 1 voitures détectées.",
		"🚀 Surveillance lancée – 1 voitures détectées.",
	}, h.notifier.texts)
}

func TestFailedFetchNeverPersists(t *testing.T) {
	source := &fakeSource{pages: []string{page("A", "B")}}
	h := newHarness(t, source)

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	before, err := os.ReadFile(h.path)
	require.NoError(t, err)

	source.err = &fetcher.FetchError{Kind: fetcher.KindHTTPStatus, Status: 503, Attempts: 1}
	stats, err := h.orch.RunOnce(context.Background())

	var fetchErr *fetcher.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.False(t, stats.Persisted)
	require.Equal(t, "fetch failed", stats.StoppedReason)

	after, err := os.ReadFile(h.path)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, "⚠️ Erreur : non-retryable HTTP error (status 503)", h.notifier.texts[len(h.notifier.texts)-1])
}

func TestFailedFirstFetchCreatesNoState(t *testing.T) {
	h := newHarness(t, &fakeSource{err: errors.New("dial tcp: no such host")})

	_, err := h.orch.RunOnce(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(h.path)
	require.True(t, os.IsNotExist(statErr))
}

func TestNotifyFailureDoesNotBlockPersistence(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A"), page("B")}})
	h.notifier.err = errors.New("telegram down")

	_, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	stats, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)

	require.False(t, stats.Notified)
	require.True(t, stats.Persisted)
	require.Equal(t, scraper.ItemList{"B"}, h.saved(t))
}

func TestDryRunDoesNotPersist(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A")}})
	h.orch.SetDryRun(true)

	stats, err := h.orch.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, stats.Persisted)

	_, statErr := os.Stat(h.path)
	require.True(t, os.IsNotExist(statErr))
}

func TestLockedStateSkipsRun(t *testing.T) {
	source := &fakeSource{pages: []string{page("A")}}
	h := newHarness(t, source)

	unlock, err := file.NewStore(h.path).Lock()
	require.NoError(t, err)
	defer func() { _ = unlock() }()

	_, err = h.orch.RunOnce(context.Background())
	require.ErrorIs(t, err, storage.ErrLocked)
	require.Zero(t, source.Calls())
	require.Empty(t, h.notifier.texts)
}

func TestIntervalModeStopsOnCancel(t *testing.T) {
	h := newHarness(t, &fakeSource{pages: []string{page("A")}})
	h.orch.cfg.Scheduler = config.SchedulerConfig{Mode: "interval", IntervalS: 3600}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.orch.Run(ctx) }()

	require.Eventually(t, func() bool { return h.source.Calls() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
