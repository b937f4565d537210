package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
)

// ContextService implements the versioned document operations.
type ContextService struct {
	contextStore model.ContextStore
	archive      model.Archive
	logger       *logger.Logger
}

// NewContext creates the context document service. archive may be nil, in
// which case deletes do not export history.
func NewContext(contextStore model.ContextStore, archive model.Archive, logger *logger.Logger) *ContextService {
	return &ContextService{
		contextStore: contextStore,
		archive:      archive,
		logger:       logger,
	}
}

// CreateContextParams contains parameters to create a context document.
type CreateContextParams struct {
	UserID  uuid.UUID
	Name    string
	Summary string
	Tags    []string
	Content model.ContextContent
}

// Create inserts a new document at version 1. Returns ErrAlreadyExists when
// the user already has a document with that name.
func (s *ContextService) Create(ctx context.Context, params CreateContextParams) (model.Context, error) {
	if params.Name == "" {
		return model.Context{}, fmt.Errorf("context name is required")
	}

	doc, err := s.contextStore.Create(ctx, model.Context{
		ID:      uuid.New(),
		UserID:  params.UserID,
		Name:    params.Name,
		Summary: params.Summary,
		Tags:    params.Tags,
		Content: params.Content,
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			return model.Context{}, model.ErrAlreadyExists
		}
		return model.Context{}, fmt.Errorf("failed to create context: %w", err)
	}

	s.logger.Info("Context service: created context",
		"user_id", params.UserID,
		"name", params.Name)

	return doc, nil
}

// Get loads a document by name.
func (s *ContextService) Get(ctx context.Context, userID uuid.UUID, name string) (model.Context, error) {
	doc, err := s.contextStore.GetByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Context{}, model.ErrNotFound
		}
		return model.Context{}, fmt.Errorf("failed to get context: %w", err)
	}

	return doc, nil
}

// List returns document summaries ordered by most-recently-updated first,
// optionally filtered to documents containing every given tag.
func (s *ContextService) List(ctx context.Context, userID uuid.UUID, tags []string) ([]model.ContextSummary, error) {
	summaries, err := s.contextStore.List(ctx, userID, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts: %w", err)
	}

	return summaries, nil
}

// Append concatenates new content onto a document: list fields are appended,
// free-text fields joined with a blank line. The pre-mutation payload is
// snapshotted into history and the version incremented.
func (s *ContextService) Append(ctx context.Context, userID uuid.UUID, name string, content model.ContextContent) (model.Context, error) {
	return s.mutate(ctx, userID, name, func(current model.ContextContent) model.ContextContent {
		return current.Append(content)
	})
}

// Replace shallow-merges new content into a document: supplied fields
// overwrite, omitted fields are kept. Snapshots and increments like Append.
func (s *ContextService) Replace(ctx context.Context, userID uuid.UUID, name string, content model.ContextContent) (model.Context, error) {
	return s.mutate(ctx, userID, name, func(current model.ContextContent) model.ContextContent {
		return current.Merge(content)
	})
}

func (s *ContextService) mutate(ctx context.Context, userID uuid.UUID, name string, apply func(model.ContextContent) model.ContextContent) (model.Context, error) {
	doc, err := s.contextStore.GetByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Context{}, model.ErrNotFound
		}
		return model.Context{}, fmt.Errorf("failed to get context: %w", err)
	}

	updated, err := s.contextStore.UpdateContent(ctx, doc.ID, doc.Version, apply(doc.Content))
	if err != nil {
		if errors.Is(err, model.ErrVersionConflict) {
			s.logger.Warn("Context service: concurrent mutation detected",
				"user_id", userID,
				"name", name,
				"version", doc.Version)
			return model.Context{}, model.ErrVersionConflict
		}
		return model.Context{}, fmt.Errorf("failed to update context: %w", err)
	}

	return updated, nil
}

// contextExport is the archived shape written to object storage on delete.
type contextExport struct {
	Context    model.Context          `json:"context"`
	History    []model.ContextHistory `json:"history"`
	ArchivedAt time.Time              `json:"archived_at"`
}

// Delete removes a document by name. History rows cascade in the database;
// before deleting, the document and its history are exported to the archive
// for audit. Export failures are logged but do not block the delete.
func (s *ContextService) Delete(ctx context.Context, userID uuid.UUID, name string) error {
	doc, err := s.contextStore.GetByName(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to get context: %w", err)
	}

	if s.archive != nil {
		s.exportForAudit(ctx, doc)
	}

	if err := s.contextStore.Delete(ctx, userID, name); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to delete context: %w", err)
	}

	s.logger.Info("Context service: deleted context",
		"user_id", userID,
		"name", name)

	return nil
}

func (s *ContextService) exportForAudit(ctx context.Context, doc model.Context) {
	history, err := s.contextStore.GetHistory(ctx, doc.ID)
	if err != nil {
		s.logger.Error("Context service: failed to load history for archive",
			"context_id", doc.ID,
			"error", err.Error())
		return
	}

	data, err := json.Marshal(contextExport{
		Context:    doc,
		History:    history,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Error("Context service: failed to marshal archive export",
			"context_id", doc.ID,
			"error", err.Error())
		return
	}

	key := fmt.Sprintf("user-%s/context-%s/v%d.json", doc.UserID, doc.ID, doc.Version)
	if err := s.archive.Store(ctx, key, data); err != nil {
		s.logger.Error("Context service: failed to store archive export",
			"context_id", doc.ID,
			"key", key,
			"error", err.Error())
		return
	}

	s.logger.Info("Context service: archived context before delete",
		"context_id", doc.ID,
		"key", key,
		"history_rows", len(history))
}
