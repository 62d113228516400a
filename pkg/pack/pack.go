// Package pack assembles the published build artifacts into a single
// relational SQLite store, the terminal artifact downstream consumers query.
//
// The database is written in one transaction with all inserts in sorted-id
// order, so identical inputs produce byte-identical databases. The stage
// runner owns temp-path publication; Build only ever sees the temp path.
package pack

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/larderlab/larder/pkg/errors"
	"github.com/larderlab/larder/pkg/ontology"
	"github.com/larderlab/larder/pkg/substrate"
)

// Data is everything that goes into the store.
type Data struct {
	Taxa         []ontology.Taxon
	Parts        []ontology.Part
	Transforms   []ontology.Transform
	Substrates   []ontology.Substrate
	TaxonClosure []substrate.ClosureRow
	PartClosure  []substrate.ClosureRow
	TPTs         []ontology.TPT
}

const schema = `
CREATE TABLE taxa (
	id           TEXT PRIMARY KEY,
	parent       TEXT,
	rank         TEXT NOT NULL,
	display_name TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'active',
	succeeded_by TEXT
);

CREATE TABLE parts (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	category     TEXT NOT NULL,
	parent       TEXT,
	display_name TEXT NOT NULL
);

CREATE TABLE transforms (
	id           TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	identity     INTEGER NOT NULL,
	ord          INTEGER NOT NULL,
	params       TEXT NOT NULL
);

CREATE TABLE substrates (
	taxon TEXT NOT NULL,
	part  TEXT NOT NULL,
	PRIMARY KEY (taxon, part)
);

CREATE TABLE taxon_closure (
	descendant TEXT NOT NULL,
	ancestor   TEXT NOT NULL,
	depth      INTEGER NOT NULL,
	PRIMARY KEY (descendant, ancestor)
);

CREATE TABLE part_closure (
	descendant TEXT NOT NULL,
	ancestor   TEXT NOT NULL,
	depth      INTEGER NOT NULL,
	PRIMARY KEY (descendant, ancestor)
);

CREATE TABLE tpts (
	id     TEXT PRIMARY KEY,
	taxon  TEXT NOT NULL,
	part   TEXT NOT NULL,
	family TEXT NOT NULL,
	hash   TEXT NOT NULL
);

CREATE TABLE tpt_steps (
	tpt_id    TEXT NOT NULL,
	position  INTEGER NOT NULL,
	transform TEXT NOT NULL,
	params    TEXT NOT NULL,
	PRIMARY KEY (tpt_id, position)
);

CREATE INDEX idx_tpts_taxon_part ON tpts (taxon, part);
CREATE INDEX idx_taxon_closure_ancestor ON taxon_closure (ancestor);
CREATE INDEX idx_part_closure_ancestor ON part_closure (ancestor);

CREATE VIRTUAL TABLE taxa_fts USING fts5(id UNINDEXED, display_name);
CREATE VIRTUAL TABLE parts_fts USING fts5(id UNINDEXED, display_name);
`

// Build writes the complete store to path. The target must not exist.
func Build(ctx context.Context, path string, data *Data) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "open database %s", path)
	}
	defer db.Close()

	// Deterministic output: no WAL sidecar files, no autovacuum reordering.
	for _, pragma := range []string{
		"PRAGMA journal_mode = MEMORY",
		"PRAGMA synchronous = OFF",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "apply pragma")
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "create schema")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "begin transaction")
	}
	defer tx.Rollback()

	if err := insertAll(tx, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.CodeStageIO, err, "commit")
	}
	return nil
}

func insertAll(tx *sql.Tx, data *Data) error {
	taxa := sortedBy(data.Taxa, func(t ontology.Taxon) string { return t.ID })
	for _, t := range taxa {
		if _, err := tx.Exec(
			`INSERT INTO taxa (id, parent, rank, display_name, status, succeeded_by) VALUES (?, ?, ?, ?, ?, ?)`,
			t.ID, nullable(t.Parent), t.Rank, t.DisplayName, statusOrActive(t.Status), nullable(t.SucceededBy),
		); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert taxon %s", t.ID)
		}
		if _, err := tx.Exec(`INSERT INTO taxa_fts (id, display_name) VALUES (?, ?)`, t.ID, t.DisplayName); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "index taxon %s", t.ID)
		}
	}

	parts := sortedBy(data.Parts, func(p ontology.Part) string { return p.ID })
	for _, p := range parts {
		if _, err := tx.Exec(
			`INSERT INTO parts (id, kind, category, parent, display_name) VALUES (?, ?, ?, ?, ?)`,
			p.ID, string(p.Kind), p.Category, nullable(p.Parent), p.DisplayName,
		); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert part %s", p.ID)
		}
		if _, err := tx.Exec(`INSERT INTO parts_fts (id, display_name) VALUES (?, ?)`, p.ID, p.DisplayName); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "index part %s", p.ID)
		}
	}

	transforms := sortedBy(data.Transforms, func(t ontology.Transform) string { return t.ID })
	for _, t := range transforms {
		params, err := json.Marshal(t.Params)
		if err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "encode params of %s", t.ID)
		}
		if _, err := tx.Exec(
			`INSERT INTO transforms (id, display_name, identity, ord, params) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.DisplayName, boolInt(t.Identity), t.Order, string(params),
		); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert transform %s", t.ID)
		}
	}

	subs := sortedBy(data.Substrates, func(s ontology.Substrate) string { return s.Key() })
	for _, s := range subs {
		if _, err := tx.Exec(`INSERT INTO substrates (taxon, part) VALUES (?, ?)`, s.Taxon, s.Part); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert substrate %s", s.Key())
		}
	}

	if err := insertClosure(tx, "taxon_closure", data.TaxonClosure); err != nil {
		return err
	}
	if err := insertClosure(tx, "part_closure", data.PartClosure); err != nil {
		return err
	}

	tpts := sortedBy(data.TPTs, func(t ontology.TPT) string { return t.ID })
	for _, t := range tpts {
		if _, err := tx.Exec(
			`INSERT INTO tpts (id, taxon, part, family, hash) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Taxon, t.Part, t.Family, t.Hash,
		); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert tpt %s", t.ID)
		}
		for i, step := range t.Steps {
			params, err := json.Marshal(step.Params)
			if err != nil {
				return errors.Wrap(errors.CodeStageIO, err, "encode step params of %s", t.ID)
			}
			if _, err := tx.Exec(
				`INSERT INTO tpt_steps (tpt_id, position, transform, params) VALUES (?, ?, ?, ?)`,
				t.ID, i, step.Transform, string(params),
			); err != nil {
				return errors.Wrap(errors.CodeStageIO, err, "insert step %d of %s", i, t.ID)
			}
		}
	}
	return nil
}

func insertClosure(tx *sql.Tx, table string, rows []substrate.ClosureRow) error {
	sorted := make([]substrate.ClosureRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Descendant != sorted[j].Descendant {
			return sorted[i].Descendant < sorted[j].Descendant
		}
		return sorted[i].Ancestor < sorted[j].Ancestor
	})
	for _, row := range sorted {
		if _, err := tx.Exec(
			`INSERT INTO `+table+` (descendant, ancestor, depth) VALUES (?, ?, ?)`,
			row.Descendant, row.Ancestor, row.Depth,
		); err != nil {
			return errors.Wrap(errors.CodeStageIO, err, "insert %s row %s->%s", table, row.Descendant, row.Ancestor)
		}
	}
	return nil
}

func sortedBy[T any](in []T, key func(T) string) []T {
	out := make([]T, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusOrActive(s ontology.TaxonStatus) string {
	if s == "" {
		return string(ontology.TaxonActive)
	}
	return string(s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
