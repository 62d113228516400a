package pack

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
)

// Store is a read-only handle on a packed database.
type Store struct {
	db *sql.DB
}

// Open opens a packed database for querying.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "open database %s", path)
	}
	return &Store{db: db}, nil
}

// Close releases the handle.
func (s *Store) Close() error { return s.db.Close() }

// TPT loads one identity record with its ordered steps.
func (s *Store) TPT(ctx context.Context, id string) (*ontology.TPT, error) {
	var t ontology.TPT
	err := s.db.QueryRowContext(ctx,
		`SELECT id, taxon, part, family, hash FROM tpts WHERE id = ?`, id,
	).Scan(&t.ID, &t.Taxon, &t.Part, &t.Family, &t.Hash)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeInvalidID, "no tpt %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "query tpt %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT transform, params FROM tpt_steps WHERE tpt_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "query steps of %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var step ontology.CanonicalStep
		var params string
		if err := rows.Scan(&step.Transform, &params); err != nil {
			return nil, errors.Wrap(errors.CodeStageIO, err, "scan step of %s", id)
		}
		if params != "null" && params != "" {
			if err := json.Unmarshal([]byte(params), &step.Params); err != nil {
				return nil, errors.Wrap(errors.CodeStageIO, err, "decode step params of %s", id)
			}
		}
		t.Steps = append(t.Steps, step)
	}
	return &t, rows.Err()
}

// HasSubstrate reports whether (taxon, part) is a packed substrate.
func (s *Store) HasSubstrate(ctx context.Context, taxon, part string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM substrates WHERE taxon = ? AND part = ?`, taxon, part,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.CodeStageIO, err, "query substrate")
	}
	return true, nil
}

// TaxonHasAncestor answers the ancestor membership question with a single
// closure-table lookup.
func (s *Store) TaxonHasAncestor(ctx context.Context, descendant, ancestor string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM taxon_closure WHERE descendant = ? AND ancestor = ?`, descendant, ancestor,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(errors.CodeStageIO, err, "query closure")
	}
	return true, nil
}

// SearchTaxa runs a full-text query over taxon display names and returns
// matching ids.
func (s *Store) SearchTaxa(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM taxa_fts WHERE taxa_fts MATCH ? ORDER BY rank`, query)
	if err != nil {
		return nil, errors.Wrap(errors.CodeStageIO, err, "search taxa")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(errors.CodeStageIO, err, "scan search hit")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountTPTs returns the number of packed identity records.
func (s *Store) CountTPTs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tpts`).Scan(&n); err != nil {
		return 0, errors.Wrap(errors.CodeStageIO, err, "count tpts")
	}
	return n, nil
}
