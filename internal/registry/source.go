package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"invoice-workers/internal/common/aws"
	"invoice-workers/internal/matching"
)

// Snapshot is one loaded copy of the registry. Version changes whenever
// the records do, so it can key caches of match results.
type Snapshot struct {
	Records  []matching.SupplierRecord
	Version  string
	Source   string
	LoadedAt time.Time
}

// NewSnapshot computes the version of records.
func NewSnapshot(records []matching.SupplierRecord, source string, loadedAt time.Time) *Snapshot {
	h := sha256.New()
	for _, rec := range records {
		h.Write([]byte(rec.Code))
		h.Write([]byte{0x1f})
		h.Write([]byte(rec.Name))
		for _, alias := range rec.AliasNames {
			h.Write([]byte{0x1f})
			h.Write([]byte(alias))
		}
		h.Write([]byte{0x1e})
	}
	return &Snapshot{
		Records:  records,
		Version:  hex.EncodeToString(h.Sum(nil))[:16],
		Source:   source,
		LoadedAt: loadedAt,
	}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Source loads the current registry.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// ObjectReader is the storage dependency of S3Source.
type ObjectReader interface {
	Get(ctx context.Context, key string) (*aws.Object, error)
}

// S3Source reads the supplier list CSV from object storage.
type S3Source struct {
	store ObjectReader
	key   string
	now   func() time.Time
}

func NewS3Source(store ObjectReader, key string) *S3Source {
	return &S3Source{store: store, key: key, now: time.Now}
}

func (s *S3Source) Load(ctx context.Context) (*Snapshot, error) {
	obj, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, aws.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.key)
		}
		return nil, err
	}

	records, err := ParseCSV(bytes.NewReader(obj.Body))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, s.key)
	}
	return NewSnapshot(records, "s3:"+s.key, s.now()), nil
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Querier is the database dependency of PostgresSource.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// PostgresSource reads suppliers from a table with columns
// supplier_code, name_1 and name_2.
type PostgresSource struct {
	db    Querier
	table string
	now   func() time.Time
}

func NewPostgresSource(db Querier, table string) (*PostgresSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid supplier table name %q", table)
	}
	return &PostgresSource{db: db, table: table, now: time.Now}, nil
}

func (s *PostgresSource) Load(ctx context.Context) (*Snapshot, error) {
	query := fmt.Sprintf(
		`SELECT supplier_code, name_1, COALESCE(name_2, '') FROM %s WHERE supplier_code <> '' AND name_1 <> '' ORDER BY supplier_code`,
		s.table,
	)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	var records []matching.SupplierRecord
	for rows.Next() {
		var code, name, second string
		if err := rows.Scan(&code, &name, &second); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		records = append(records, newRecord(code, name, second))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppliers: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrEmpty, s.table)
	}
	return NewSnapshot(records, "postgres:"+s.table, s.now()), nil
}
