// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package storm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-engine/pkg/types"
)

// infoTable indexes the excerpts collected during research so each section
// writer can pull the most relevant ones. It lives in an in-memory SQLite
// database for the duration of one draft stage.
type infoTable struct {
	db *sql.DB
}

// hit is one excerpt and the citation index of its source.
type hit struct {
	Source  int
	Excerpt string
}

// stopWords are skipped when turning headings into full-text queries.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"its": true, "into": true, "about": true, "other": true, "this": true,
	"that": true, "are": true, "was": true, "were": true, "their": true,
}

// newInfoTable loads every excerpt of sources into a fresh index. The source
// at position i is cited as [i+1].
func newInfoTable(ctx context.Context, sources []types.Snippet) (*infoTable, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening information table: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	t := &infoTable{db: db}
	if err := t.load(ctx, sources); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

func (t *infoTable) load(ctx context.Context, sources []types.Snippet) error {
	if _, err := t.db.ExecContext(ctx,
		`CREATE VIRTUAL TABLE snippets USING fts4(title, excerpt, source, notindexed=source)`,
	); err != nil {
		return fmt.Errorf("creating information table: %w", err)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snippets (title, excerpt, source) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range sources {
		for _, ex := range s.Excerpts {
			if strings.TrimSpace(ex) == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, s.Title, ex, i+1); err != nil {
				return fmt.Errorf("indexing %s: %w", s.URL, err)
			}
		}
	}
	return tx.Commit()
}

// Close releases the in-memory database.
func (t *infoTable) Close() error {
	return t.db.Close()
}

// Search returns up to k excerpts matching any term of query, ranked by
// the number of term occurrences. A query with no usable terms falls back
// to the first k excerpts in source order.
func (t *infoTable) Search(ctx context.Context, query string, k int) ([]hit, error) {
	match := matchExpression(query)

	var (
		rows *sql.Rows
		err  error
	)
	if match == "" {
		rows, err = t.db.QueryContext(ctx,
			`SELECT source, excerpt FROM snippets ORDER BY docid LIMIT ?`, k)
	} else {
		rows, err = t.db.QueryContext(ctx,
			`SELECT source, excerpt, length(offsets(snippets)) AS weight
			 FROM snippets WHERE snippets MATCH ?
			 ORDER BY weight DESC, docid ASC LIMIT ?`, match, k)
	}
	if err != nil {
		return nil, fmt.Errorf("querying information table: %w", err)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var h hit
		if match == "" {
			err = rows.Scan(&h.Source, &h.Excerpt)
		} else {
			var weight int
			err = rows.Scan(&h.Source, &h.Excerpt, &weight)
		}
		if err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// matchExpression turns free text into an FTS OR-query of quoted terms.
func matchExpression(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool)
	var terms []string
	for _, w := range words {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
