package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite" // SQLite driver
)

// LocalStore implements Store on embedded SQLite via Bun. It backs
// development deployments and the end-to-end tests; the secure filter is
// evaluated structurally instead of being compiled to OData.
type LocalStore struct {
	db *bun.DB
}

// unitRow is the persisted shape of a Unit. Principals and vector are
// JSON-encoded text columns; SQLite has no native array type.
type unitRow struct {
	bun.BaseModel `bun:"table:units"`

	ID                string `bun:"id,pk"`
	DocumentID        string `bun:"document_id,notnull"`
	Source            string `bun:"source"`
	Content           string `bun:"content,notnull"`
	AllowedPrincipals string `bun:"allowed_principals,notnull"`
	Vector            string `bun:"vector,notnull"`
}

// NewLocalStore opens (or creates) a SQLite-backed store at dsn, e.g.
// "file:rag.db" or "file::memory:?cache=shared".
func NewLocalStore(dsn string) (*LocalStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Serialized access keeps the in-memory DSN coherent across conns.
	sqldb.SetMaxOpenConns(1)

	return &LocalStore{db: bun.NewDB(sqldb, sqlitedialect.New())}, nil
}

// Close releases the underlying database handle.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// EnsureIndex creates the units table if missing. dims is unused: SQLite
// stores vectors as JSON text regardless of dimensionality.
func (s *LocalStore) EnsureIndex(ctx context.Context, dims int) error {
	_, err := s.db.NewCreateTable().Model((*unitRow)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("create units table: %w", err)
	}
	return nil
}

// Reset drops the units table.
func (s *LocalStore) Reset(ctx context.Context) error {
	_, err := s.db.NewDropTable().Model((*unitRow)(nil)).IfExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("drop units table: %w", err)
	}
	return nil
}

// ReplaceDocument deletes the document's previous units and inserts the new
// batch in one transaction.
func (s *LocalStore) ReplaceDocument(ctx context.Context, documentID string, units []Unit) error {
	rows := make([]unitRow, 0, len(units))
	for _, u := range units {
		row, err := toRow(u)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*unitRow)(nil)).
			Where("document_id = ?", documentID).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete superseded units: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("insert units: %w", err)
		}
		return nil
	})
}

// Search scans all units, applies the filter structurally, and ranks the
// survivors by cosine similarity. Linear scan is fine at local-store scale.
func (s *LocalStore) Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Unit, error) {
	if filter != nil && filter.MatchesNothing() {
		return nil, nil
	}

	var rows []unitRow
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan units: %w", err)
	}

	query := toFloat64(vector)
	queryNorm := math.Sqrt(floats.Dot(query, query))

	type scored struct {
		unit  Unit
		score float64
	}
	matches := make([]scored, 0, len(rows))

	for _, row := range rows {
		unit, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		if filter != nil && !filter.Matches(unit.AllowedPrincipals) {
			continue
		}
		matches = append(matches, scored{unit: unit, score: cosine(query, queryNorm, unit.Vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}

	units := make([]Unit, 0, len(matches))
	for _, m := range matches {
		units = append(units, m.unit)
	}
	return units, nil
}

func toRow(u Unit) (unitRow, error) {
	principals, err := json.Marshal(u.AllowedPrincipals)
	if err != nil {
		return unitRow{}, fmt.Errorf("encode principals: %w", err)
	}
	vector, err := json.Marshal(u.Vector)
	if err != nil {
		return unitRow{}, fmt.Errorf("encode vector: %w", err)
	}
	return unitRow{
		ID:                u.ID,
		DocumentID:        u.DocumentID,
		Source:            u.Source,
		Content:           u.Text,
		AllowedPrincipals: string(principals),
		Vector:            string(vector),
	}, nil
}

func fromRow(row unitRow) (Unit, error) {
	u := Unit{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		Source:     row.Source,
		Text:       row.Content,
	}
	if err := json.Unmarshal([]byte(row.AllowedPrincipals), &u.AllowedPrincipals); err != nil {
		return Unit{}, fmt.Errorf("decode principals for unit %s: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Vector), &u.Vector); err != nil {
		return Unit{}, fmt.Errorf("decode vector for unit %s: %w", row.ID, err)
	}
	return u, nil
}

func cosine(query []float64, queryNorm float64, candidate []float32) float64 {
	if len(candidate) != len(query) || queryNorm == 0 {
		return -1
	}
	c := toFloat64(candidate)
	norm := math.Sqrt(floats.Dot(c, c))
	if norm == 0 {
		return -1
	}
	return floats.Dot(query, c) / (queryNorm * norm)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
