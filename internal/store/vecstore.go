package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/reimburseai/invoice-analyzer/internal/models"
)

// VecStore is a brute-force vector index backed by SQLite BLOBs. Vectors are
// normalized on insert and kept in memory, so dot product equals cosine
// similarity and search is exact. At the scale of one company's expense
// records this is sub-millisecond.
type VecStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu      sync.RWMutex
	vectors map[string][]float32
	records map[string]models.StoredRecord
}

// ScoredRecord pairs a stored record with its similarity score
type ScoredRecord struct {
	Record models.StoredRecord
	Score  float64
}

// NewVecStore creates the records table if needed and loads existing rows
// into memory. The caller owns the database handle.
func NewVecStore(db *sql.DB, logger *zap.Logger) (*VecStore, error) {
	vs := &VecStore{
		db:      db,
		logger:  logger,
		vectors: make(map[string][]float32),
		records: make(map[string]models.StoredRecord),
	}

	if err := vs.migrate(); err != nil {
		return nil, fmt.Errorf("vecstore migrate: %w", err)
	}

	if err := vs.loadAll(); err != nil {
		return nil, fmt.Errorf("vecstore load: %w", err)
	}

	logger.Info("Vector store ready", zap.Int("records", len(vs.records)))

	return vs, nil
}

func (vs *VecStore) migrate() error {
	_, err := vs.db.Exec(`
		CREATE TABLE IF NOT EXISTS records (
			id            TEXT PRIMARY KEY,
			employee_name TEXT NOT NULL,
			date          TEXT,
			document_type TEXT NOT NULL,
			text          TEXT NOT NULL,
			embedding     BLOB NOT NULL,
			dimensions    INTEGER NOT NULL,
			created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_records_employee ON records(employee_name);
	`)
	return err
}

func (vs *VecStore) loadAll() error {
	rows, err := vs.db.Query(`SELECT id, employee_name, date, document_type, text, embedding, dimensions FROM records`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.StoredRecord
		var date sql.NullString
		var blob []byte
		var dims int

		if err := rows.Scan(&rec.ID, &rec.Metadata.EmployeeName, &date, &rec.Metadata.DocumentType, &rec.Text, &blob, &dims); err != nil {
			return err
		}
		rec.Metadata.Date = date.String

		vs.vectors[rec.ID] = blobToFloat32(blob, dims)
		vs.records[rec.ID] = rec
	}
	return rows.Err()
}

// Upsert writes a record and its vector keyed by the record's stable ID.
// Repeated upserts of the same ID replace the row instead of duplicating it;
// this is the concurrency-safety mechanism in lieu of store-side locks.
func (vs *VecStore) Upsert(ctx context.Context, rec models.StoredRecord, vector []float32) error {
	normalized := normalize(vector)
	blob := float32ToBlob(normalized)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	_, err := vs.db.ExecContext(ctx, `
		INSERT INTO records (id, employee_name, date, document_type, text, embedding, dimensions)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			employee_name=excluded.employee_name,
			date=excluded.date,
			document_type=excluded.document_type,
			text=excluded.text,
			embedding=excluded.embedding,
			dimensions=excluded.dimensions
	`, rec.ID, rec.Metadata.EmployeeName, rec.Metadata.Date, rec.Metadata.DocumentType, rec.Text, blob, len(normalized))
	if err != nil {
		return err
	}

	vs.vectors[rec.ID] = normalized
	vs.records[rec.ID] = rec
	return nil
}

// Search ranks one employee's records by cosine similarity to the query
// vector. The employee filter is applied before ranking, so a semantically
// closer record belonging to someone else can never be returned. An unknown
// employee yields an empty slice, not an error.
func (vs *VecStore) Search(ctx context.Context, employeeName string, queryVec []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		topK = 5
	}
	normalizedQuery := normalize(queryVec)

	vs.mu.RLock()
	var scored []ScoredRecord
	for id, rec := range vs.records {
		if !strings.EqualFold(rec.Metadata.EmployeeName, employeeName) {
			continue
		}
		vec := vs.vectors[id]
		if len(vec) != len(normalizedQuery) {
			continue
		}
		scored = append(scored, ScoredRecord{
			Record: rec,
			Score:  dotProduct(normalizedQuery, vec),
		})
	}
	vs.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// ListEmployees returns the distinct employee names with stored records
func (vs *VecStore) ListEmployees(ctx context.Context) ([]string, error) {
	rows, err := vs.db.QueryContext(ctx, `SELECT DISTINCT employee_name FROM records ORDER BY employee_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetByEmployee returns all records for one employee, matched
// case-insensitively
func (vs *VecStore) GetByEmployee(ctx context.Context, employeeName string) ([]models.StoredRecord, error) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	var recs []models.StoredRecord
	for _, rec := range vs.records {
		if strings.EqualFold(rec.Metadata.EmployeeName, employeeName) {
			recs = append(recs, rec)
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func float32ToBlob(vec []float32) []byte {
	blob := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

func blobToFloat32(blob []byte, dims int) []float32 {
	vec := make([]float32, dims)
	for i := 0; i < dims && i*4+4 <= len(blob); i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
