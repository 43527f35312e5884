package polling

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/common/logger"
)

const DefaultInterval = 5 * time.Second

// ErrResultNotReady is returned when the wait ends before a result appears.
var ErrResultNotReady = errors.New("extraction result not ready")

// ResultLister lists stored objects under a prefix.
type ResultLister interface {
	List(ctx context.Context, prefix string) ([]aws.ObjectInfo, error)
}

// Poller re-lists the result prefix until the result of an upload appears.
type Poller struct {
	lister   ResultLister
	prefix   string
	interval time.Duration
	tracker  *Tracker
	logger   logger.Logger
}

func NewPoller(lister ResultLister, prefix string, interval time.Duration, tracker *Tracker, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Poller{lister: lister, prefix: prefix, interval: interval, tracker: tracker, logger: log}
}

func (p *Poller) Tracker() *Tracker {
	return p.tracker
}

// Results lists the stored extraction results.
func (p *Poller) Results(ctx context.Context) ([]ResultFile, error) {
	objects, err := p.lister.List(ctx, p.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]ResultFile, 0, len(objects))
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, ResultSuffix) {
			continue
		}
		out = append(out, ResultFile{
			Key:          obj.Key,
			FileName:     path.Base(obj.Key),
			LastModified: obj.LastModified,
		})
	}
	return out, nil
}

// Await tracks fileName and checks for its result every interval until
// one is found or ctx ends. A zero uploadTime accepts results of any age.
// When ctx ends first the wait is abandoned in the tracker.
func (p *Poller) Await(ctx context.Context, fileName string, uploadTime time.Time) (ResultFile, error) {
	p.tracker.Track(fileName)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		results, err := p.Results(ctx)
		if err != nil {
			p.logger.Warn("Listing extraction results failed", map[string]interface{}{
				"fileName": fileName,
				"attempt":  attempts,
				"error":    err.Error(),
			})
		} else if found, ok := FindResultForFile(fileName, results, uploadTime); ok {
			p.tracker.MarkFound(fileName)
			p.logger.Info("Extraction result found", map[string]interface{}{
				"fileName": fileName,
				"key":      found.Key,
				"attempts": attempts,
			})
			return found, nil
		}

		select {
		case <-ctx.Done():
			p.tracker.Abandon(fileName)
			return ResultFile{}, fmt.Errorf("%w: %s after %d checks", ErrResultNotReady, fileName, attempts)
		case <-ticker.C:
		}
	}
}
