package polling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestTracker(start time.Time) (*Tracker, *fakeClock) {
	clock := &fakeClock{t: start}
	tr := NewTracker()
	tr.now = clock.now
	return tr, clock
}

type fakeLister struct {
	mu      sync.Mutex
	calls   int
	batches [][]aws.ObjectInfo
	err     error
}

func (f *fakeLister) List(ctx context.Context, prefix string) ([]aws.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// ==========================
// Name Matching Tests
// ==========================

func TestBaseName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1717243200_invoice_march.pdf", "invoice-march"},
		{"datasets/documents/42_acme_inv.v2.pdf", "acme-inv"},
		{"plain.pdf", "plain"},
		{"2024_report", "report"},
		{"no_digits_prefix.png", "no-digits-prefix"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseName(tt.in))
		})
	}
}

func TestResultKeyFor(t *testing.T) {
	assert.Equal(t, "bda-result/invoice-march-result.json", ResultKeyFor("bda-result/", "1717243200_invoice_march.pdf"))
}

func TestFindResultForFile(t *testing.T) {
	results := []ResultFile{
		{Key: "r/invoice-march-result.json", FileName: "invoice-march-result.json", LastModified: base.Add(-time.Hour)},
		{Key: "r/job1-invoice-march-result.json", FileName: "job1-invoice-march-result.json", LastModified: base.Add(2 * time.Minute)},
		{Key: "r/job2-invoice-march-result.json", FileName: "job2-invoice-march-result.json", LastModified: base.Add(time.Minute)},
		{Key: "r/other-result.json", FileName: "other-result.json", LastModified: base.Add(3 * time.Minute)},
	}

	t.Run("most recent after upload", func(t *testing.T) {
		got, ok := FindResultForFile("99_invoice_march.pdf", results, base)
		require.True(t, ok)
		assert.Equal(t, "r/job1-invoice-march-result.json", got.Key)
	})

	t.Run("no upload time considers all", func(t *testing.T) {
		got, ok := FindResultForFile("invoice_march.pdf", results[:1], time.Time{})
		require.True(t, ok)
		assert.Equal(t, "r/invoice-march-result.json", got.Key)
	})

	t.Run("stale results are ignored", func(t *testing.T) {
		_, ok := FindResultForFile("invoice_march.pdf", results[:1], base)
		assert.False(t, ok)
	})

	t.Run("unrelated file", func(t *testing.T) {
		_, ok := FindResultForFile("receipt.pdf", results, time.Time{})
		assert.False(t, ok)
	})

	t.Run("empty name", func(t *testing.T) {
		_, ok := FindResultForFile(".pdf", results, time.Time{})
		assert.False(t, ok)
	})
}

// ==========================
// Tracker Tests
// ==========================

func TestTracker_TrackAndMarkFound(t *testing.T) {
	tr, clock := newTestTracker(base)

	first := tr.Track("a.pdf")
	clock.t = base.Add(time.Second)
	again := tr.Track("a.pdf")
	assert.Equal(t, first, again)
	tr.Track("b.pdf")

	status := tr.Status()
	assert.True(t, status.IsPolling)
	assert.Equal(t, 2, status.PendingCount)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, status.PendingFiles)

	assert.True(t, tr.MarkFound("a.pdf"))
	assert.False(t, tr.MarkFound("a.pdf"))
	assert.False(t, tr.MarkFound("missing.pdf"))
	assert.Equal(t, []string{"b.pdf"}, tr.Status().PendingFiles)

	// A file uploaded again after its result was found is tracked anew.
	tr.Track("a.pdf")
	assert.Equal(t, 2, tr.Status().PendingCount)
}

func TestTracker_PurgeOlderThan(t *testing.T) {
	tr, clock := newTestTracker(base)
	tr.Track("old-found.pdf")
	tr.Track("old-pending.pdf")
	clock.t = base.Add(4 * time.Minute)
	tr.Track("recent-found.pdf")
	tr.MarkFound("old-found.pdf")
	tr.MarkFound("recent-found.pdf")

	clock.t = base.Add(6 * time.Minute)
	assert.Equal(t, 1, tr.PurgeOlderThan(DefaultCleanupWindow))

	pending := tr.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "old-pending.pdf", pending[0].FileName)
	assert.Len(t, tr.uploads, 2)
}

func TestTracker_Abandon(t *testing.T) {
	tr, _ := newTestTracker(base)
	tr.Track("a.pdf")
	tr.Track("a.pdf")
	tr.Track("b.pdf")

	assert.True(t, tr.Abandon("a.pdf"))
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, tr.Status().PendingFiles)
	assert.True(t, tr.Abandon("a.pdf"))
	assert.Equal(t, []string{"b.pdf"}, tr.Status().PendingFiles)
	assert.False(t, tr.Abandon("a.pdf"))

	tr.MarkFound("b.pdf")
	assert.False(t, tr.Abandon("b.pdf"))
	assert.Len(t, tr.uploads, 1)
}

func TestTracker_EmptyStatus(t *testing.T) {
	status := NewTracker().Status()
	assert.False(t, status.IsPolling)
	assert.Zero(t, status.PendingCount)
	assert.NotNil(t, status.PendingFiles)
}

// ==========================
// Poller Tests
// ==========================

func TestPoller_AwaitFindsResult(t *testing.T) {
	lister := &fakeLister{batches: [][]aws.ObjectInfo{
		{{Key: "bda-result/unrelated-result.json", LastModified: base.Add(time.Minute)}},
		{
			{Key: "bda-result/invoice-a-result.json", LastModified: base.Add(time.Minute)},
			{Key: "bda-result/invoice-a.txt", LastModified: base.Add(2 * time.Minute)},
		},
	}}
	p := NewPoller(lister, "bda-result/", time.Millisecond, nil, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := p.Await(ctx, "7_invoice_a.pdf", base)
	require.NoError(t, err)
	assert.Equal(t, "bda-result/invoice-a-result.json", got.Key)
	assert.Equal(t, "invoice-a-result.json", got.FileName)
	assert.Equal(t, 2, lister.calls)
	assert.False(t, p.Tracker().Status().IsPolling)
}

func TestPoller_AwaitTimesOut(t *testing.T) {
	lister := &fakeLister{err: errors.New("access denied")}
	p := NewPoller(lister, "bda-result/", time.Millisecond, nil, logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Await(ctx, "invoice_a.pdf", time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResultNotReady)

	status := p.Tracker().Status()
	assert.False(t, status.IsPolling)
	assert.Empty(t, status.PendingFiles)
}

func TestPoller_AwaitTimeoutKeepsOtherWaiter(t *testing.T) {
	tr, clock := newTestTracker(base)
	p := NewPoller(&fakeLister{}, "bda-result/", time.Millisecond, tr, logger.NewTestLogger(t))

	tr.Track("shared.pdf")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx, "shared.pdf", time.Time{})
	require.ErrorIs(t, err, ErrResultNotReady)
	assert.Equal(t, []string{"shared.pdf"}, tr.Status().PendingFiles)

	require.True(t, tr.Abandon("shared.pdf"))
	clock.t = base.Add(24 * time.Hour)
	tr.PurgeOlderThan(DefaultCleanupWindow)
	assert.False(t, tr.Status().IsPolling)
	assert.Empty(t, tr.uploads)
}
