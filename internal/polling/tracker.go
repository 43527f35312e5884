// Package polling waits for extraction results of uploaded documents.
package polling

import (
	"sync"
	"time"
)

// DefaultCleanupWindow is how long a found upload is kept for reference.
const DefaultCleanupWindow = 5 * time.Minute

// Upload is one document waiting for, or already matched to, a result.
type Upload struct {
	FileName   string    `json:"fileName"`
	UploadTime time.Time `json:"uploadTime"`
	Found      bool      `json:"found"`

	waiters int
}

// Status summarizes the uploads still waiting.
type Status struct {
	IsPolling    bool     `json:"isPolling"`
	PendingCount int      `json:"pendingCount"`
	PendingFiles []string `json:"pendingFiles"`
}

// Tracker is a pending-upload session. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	uploads []*Upload
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Track records fileName as uploaded now and returns the upload time. A
// file that is already pending keeps its original entry and gains a waiter.
func (t *Tracker) Track(fileName string) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, u := range t.uploads {
		if u.FileName == fileName && !u.Found {
			u.waiters++
			return u.UploadTime
		}
	}
	u := &Upload{FileName: fileName, UploadTime: t.now(), waiters: 1}
	t.uploads = append(t.uploads, u)
	return u.UploadTime
}

// MarkFound stops waiting for fileName. It reports whether the file was
// being tracked.
func (t *Tracker) MarkFound(fileName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	marked := false
	for _, u := range t.uploads {
		if u.FileName == fileName && !u.Found {
			u.Found = true
			marked = true
		}
	}
	return marked
}

// Abandon gives up one wait on fileName. The pending entry is dropped once
// no waiter is left. It reports whether fileName was pending.
func (t *Tracker) Abandon(fileName string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, u := range t.uploads {
		if u.FileName != fileName || u.Found {
			continue
		}
		u.waiters--
		if u.waiters <= 0 {
			copy(t.uploads[i:], t.uploads[i+1:])
			t.uploads[len(t.uploads)-1] = nil
			t.uploads = t.uploads[:len(t.uploads)-1]
		}
		return true
	}
	return false
}

// PurgeOlderThan drops found uploads that were uploaded more than window
// ago and returns how many were removed. Pending uploads are never dropped.
func (t *Tracker) PurgeOlderThan(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-window)
	kept := t.uploads[:0]
	for _, u := range t.uploads {
		if !u.Found || u.UploadTime.After(cutoff) {
			kept = append(kept, u)
		}
	}
	removed := len(t.uploads) - len(kept)
	for i := len(kept); i < len(t.uploads); i++ {
		t.uploads[i] = nil
	}
	t.uploads = kept
	return removed
}

// Pending returns copies of the uploads still waiting, oldest first.
func (t *Tracker) Pending() []Upload {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Upload
	for _, u := range t.uploads {
		if !u.Found {
			out = append(out, *u)
		}
	}
	return out
}

func (t *Tracker) Status() Status {
	pending := t.Pending()
	status := Status{
		IsPolling:    len(pending) > 0,
		PendingCount: len(pending),
		PendingFiles: make([]string, len(pending)),
	}
	for i, u := range pending {
		status.PendingFiles[i] = u.FileName
	}
	return status
}
