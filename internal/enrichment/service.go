package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoice-workers/internal/common/logger"
	"invoice-workers/internal/common/metrics"
	"invoice-workers/internal/extraction"
	"invoice-workers/internal/matching"
	"invoice-workers/internal/registry"
)

const (
	DefaultCacheTTL = 5 * time.Minute
	cacheKeyPrefix  = "enrichment:supplier-match:"
)

// Result is one enriched document.
type Result struct {
	Document extraction.Document
	Block    SupplierMatchBlock
	Cached   bool
}

// Service enriches documents and caches the supplier_match block in Redis,
// keyed by the document content and registry version. A nil cache disables
// caching. Cache failures are logged and never fail enrichment.
type Service struct {
	enricher *Enricher
	cache    redis.Cmdable
	ttl      time.Duration
	logger   logger.Logger
}

type ServiceOptions struct {
	Enricher *Enricher
	Cache    redis.Cmdable
	TTL      time.Duration
	Logger   logger.Logger
}

func NewService(opts ServiceOptions) *Service {
	if opts.Enricher == nil {
		opts.Enricher = NewEnricher(nil, nil)
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Service{
		enricher: opts.Enricher,
		cache:    opts.Cache,
		ttl:      opts.TTL,
		logger:   opts.Logger,
	}
}

func (s *Service) Enricher() *Enricher {
	return s.enricher
}

// Enrich attaches a supplier match computed against snap.
func (s *Service) Enrich(ctx context.Context, doc extraction.Document, snap *registry.Snapshot, fallbackVendor string) Result {
	var records []matching.SupplierRecord
	version := ""
	if snap != nil {
		records = snap.Records
		version = snap.Version
	}

	key := ""
	if s.cache != nil {
		key = s.cacheKey(doc, version, fallbackVendor)
		if block, ok := s.lookup(ctx, key); ok {
			out := doc.Clone()
			out[extraction.KeySupplierMatch] = block
			return Result{Document: out, Block: block, Cached: true}
		}
	}

	out, block := s.enricher.Enrich(doc, records, fallbackVendor)
	if key != "" {
		s.store(ctx, key, block)
	}
	return Result{Document: out, Block: block}
}

func (s *Service) lookup(ctx context.Context, key string) (SupplierMatchBlock, bool) {
	val, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Enrichment cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			metrics.EnrichmentCacheLookups.WithLabelValues("error").Inc()
		} else {
			metrics.EnrichmentCacheLookups.WithLabelValues("miss").Inc()
		}
		return SupplierMatchBlock{}, false
	}

	var block SupplierMatchBlock
	if err := json.Unmarshal([]byte(val), &block); err != nil {
		s.logger.Warn("Discarding undecodable enrichment cache entry", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		metrics.EnrichmentCacheLookups.WithLabelValues("error").Inc()
		return SupplierMatchBlock{}, false
	}
	if block.TopMatches == nil {
		block.TopMatches = []matching.SupplierMatch{}
	}
	metrics.EnrichmentCacheLookups.WithLabelValues("hit").Inc()
	return block, true
}

func (s *Service) store(ctx context.Context, key string, block SupplierMatchBlock) {
	data, err := json.Marshal(block)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("Enrichment cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// cacheKey hashes the document with the matching options so a change to
// either misses the cache.
func (s *Service) cacheKey(doc extraction.Document, version, fallbackVendor string) string {
	h := sha256.New()
	data, err := json.Marshal(doc)
	if err != nil {
		data = []byte(fmt.Sprint(doc))
	}
	h.Write(data)
	opts := s.enricher.matcher.Options()
	fmt.Fprintf(h, "|%s|%d|%g|%g", fallbackVendor, opts.TopN, opts.FuzzyFloor, opts.AcceptanceThreshold)
	return cacheKeyPrefix + version + ":" + hex.EncodeToString(h.Sum(nil))
}
