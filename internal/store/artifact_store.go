package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"uiforge/internal/logging"
	"uiforge/internal/render"
	"uiforge/internal/schema"
	"uiforge/internal/types"
)

// ArtifactPath is the route prefix under which published documents are
// served.
const ArtifactPath = "/api/artifacts/"

// StoredArtifact is a published artifact.
type StoredArtifact struct {
	ID       string `json:"id"`
	RunID    string `json:"run_id"`
	Title    string `json:"title,omitempty"`
	Markup   string `json:"html,omitempty"`
	Styles   string `json:"css,omitempty"`
	Script   string `json:"js,omitempty"`
	Raw      string `json:"raw"`
	Document string `json:"-"`

	// Structured is false when only best-effort text was available.
	Structured bool      `json:"structured"`
	CreatedAt  time.Time `json:"created_at"`
}

// Artifact returns the structured artifact, or nil for a raw-text entry.
func (a *StoredArtifact) Artifact() *schema.UIArtifact {
	if !a.Structured {
		return nil
	}
	return &schema.UIArtifact{Markup: a.Markup, Styles: a.Styles, Script: a.Script}
}

// ArtifactStore publishes final artifacts under fresh identifiers and serves
// them back as standalone documents.
type ArtifactStore struct {
	store   *Store
	baseURL string
}

// NewArtifactStore creates an ArtifactStore. publicBaseURL prefixes the
// URLs returned by Publish.
func NewArtifactStore(s *Store, publicBaseURL string) *ArtifactStore {
	return &ArtifactStore{store: s, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// URL returns the public reference of an artifact id.
func (as *ArtifactStore) URL(id string) string {
	return as.baseURL + ArtifactPath + id
}

// Publish renders and stores an artifact. artifact may be nil, in which case
// raw is published as best-effort text.
func (as *ArtifactStore) Publish(ctx context.Context, runID string, artifact *schema.UIArtifact, raw string) (types.Publication, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Publish")
	defer timer.Stop()

	if artifact == nil && strings.TrimSpace(raw) == "" {
		return types.Publication{}, fmt.Errorf("nothing to publish for run %s", runID)
	}

	rec := &StoredArtifact{
		ID:        uuid.NewString(),
		RunID:     runID,
		Raw:       raw,
		CreatedAt: time.Now().UTC(),
	}
	if artifact != nil {
		doc, err := render.Document(artifact)
		if err != nil {
			return types.Publication{}, err
		}
		rec.Structured = true
		rec.Markup, rec.Styles, rec.Script = artifact.Markup, artifact.Styles, artifact.Script
		rec.Document = doc
		rec.Title = render.Title(artifact.Markup)
	} else {
		rec.Document = render.Raw(raw)
		rec.Title = render.Title(rec.Document)
	}

	_, err := as.store.db.ExecContext(ctx, `
		INSERT INTO artifacts
		(id, run_id, title, markup, styles, script, raw, document, structured, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Title, rec.Markup, rec.Styles, rec.Script,
		rec.Raw, rec.Document, rec.Structured, rec.CreatedAt.UnixMilli(),
	)
	if err != nil {
		logging.StoreError("failed to store artifact for run %s: %v", runID, err)
		return types.Publication{}, fmt.Errorf("failed to store artifact: %w", err)
	}

	logging.Store("artifact %s stored (run=%s structured=%v %d bytes)", rec.ID, runID, rec.Structured, len(rec.Document))
	return types.Publication{ID: rec.ID, URL: as.URL(rec.ID)}, nil
}

// Get returns the artifact with the given id, or ErrNotFound.
func (as *ArtifactStore) Get(ctx context.Context, id string) (*StoredArtifact, error) {
	row := as.store.db.QueryRowContext(ctx, `
		SELECT id, run_id, title, markup, styles, script, raw, document, structured, created_at
		FROM artifacts WHERE id = ?`, id)

	rec, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recent artifacts without their documents.
func (as *ArtifactStore) List(ctx context.Context, limit int) ([]StoredArtifact, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := as.store.db.QueryContext(ctx, `
		SELECT id, run_id, title, '', '', '', '', '', structured, created_at
		FROM artifacts
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []StoredArtifact
	for rows.Next() {
		rec, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(sc scanner) (*StoredArtifact, error) {
	var (
		rec       StoredArtifact
		title     sql.NullString
		markup    sql.NullString
		styles    sql.NullString
		script    sql.NullString
		createdAt int64
	)
	if err := sc.Scan(&rec.ID, &rec.RunID, &title, &markup, &styles, &script,
		&rec.Raw, &rec.Document, &rec.Structured, &createdAt); err != nil {
		return nil, err
	}
	rec.Title = title.String
	rec.Markup, rec.Styles, rec.Script = markup.String, styles.String, script.String
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}
