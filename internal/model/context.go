package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ContextStore defines persistence operations for context documents.
type ContextStore interface {
	Create(ctx context.Context, doc Context) (Context, error)
	GetByName(ctx context.Context, userID uuid.UUID, name string) (Context, error)
	List(ctx context.Context, userID uuid.UUID, tags []string) ([]ContextSummary, error)
	// UpdateContent snapshots the current payload into history and applies the
	// new content in one transaction, guarded by the expected version.
	// Returns ErrVersionConflict when the row moved on since it was loaded.
	UpdateContent(ctx context.Context, id uuid.UUID, expectedVersion int, content ContextContent) (Context, error)
	GetHistory(ctx context.Context, contextID uuid.UUID) ([]ContextHistory, error)
	Delete(ctx context.Context, userID uuid.UUID, name string) error
}

// Context is a named, versioned document of project knowledge owned by one user.
type Context struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"user_id"`
	Name      string         `json:"name"`
	Summary   string         `json:"summary,omitempty"`
	Tags      []string       `json:"tags"`
	Content   ContextContent `json:"content"`
	Version   int            `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ContextSummary is the listing projection: everything but the payload.
type ContextSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary,omitempty"`
	Tags      []string  `json:"tags"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContextHistory is an immutable snapshot of a document payload taken
// immediately before a mutation.
type ContextHistory struct {
	ContextID  uuid.UUID      `json:"context_id"`
	Version    int            `json:"version"`
	Content    ContextContent `json:"content"`
	InsertedAt time.Time      `json:"inserted_at"`
}

// ContextContent is the recognized document payload. Every field is optional;
// a zero value means the field was not supplied.
type ContextContent struct {
	Background  string   `json:"background,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
	Decisions   []string `json:"decisions,omitempty"`
	OpenItems   []string `json:"open_items,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// Append concatenates incoming fields onto c: list fields are appended,
// free-text fields are joined with a blank line.
func (c ContextContent) Append(in ContextContent) ContextContent {
	out := c
	out.Background = joinText(c.Background, in.Background)
	out.Assumptions = append(append([]string(nil), c.Assumptions...), in.Assumptions...)
	out.Decisions = append(append([]string(nil), c.Decisions...), in.Decisions...)
	out.OpenItems = append(append([]string(nil), c.OpenItems...), in.OpenItems...)
	out.Notes = joinText(c.Notes, in.Notes)
	return out
}

// Merge overwrites fields of c with the supplied (non-zero) fields of in.
func (c ContextContent) Merge(in ContextContent) ContextContent {
	out := c
	if in.Background != "" {
		out.Background = in.Background
	}
	if in.Assumptions != nil {
		out.Assumptions = in.Assumptions
	}
	if in.Decisions != nil {
		out.Decisions = in.Decisions
	}
	if in.OpenItems != nil {
		out.OpenItems = in.OpenItems
	}
	if in.Notes != "" {
		out.Notes = in.Notes
	}
	return out
}

func joinText(existing, added string) string {
	switch {
	case added == "":
		return existing
	case existing == "":
		return added
	default:
		return existing + "\n\n" + added
	}
}
