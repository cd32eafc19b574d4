package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecoterra/siteapi/internal/domain"
)

// CatalogService exposes list/create/update/delete over one record kind.
// U is the partial-update body for T.
type CatalogService[T any, U domain.Patch[T]] struct {
	kind   string
	store  domain.Store[T]
	logger *slog.Logger
}

type (
	TeamService    = CatalogService[domain.TeamMember, domain.TeamMemberPatch]
	ProjectService = CatalogService[domain.Project, domain.ProjectPatch]
)

// NewCatalogService creates a service over store; kind names the records in logs and errors
func NewCatalogService[T any, U domain.Patch[T]](kind string, store domain.Store[T], logger *slog.Logger) *CatalogService[T, U] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService[T, U]{kind: kind, store: store, logger: logger}
}

func NewTeamService(store domain.TeamRepository, logger *slog.Logger) *TeamService {
	return NewCatalogService[domain.TeamMember, domain.TeamMemberPatch]("team member", store, logger)
}

func NewProjectService(store domain.ProjectRepository, logger *slog.Logger) *ProjectService {
	return NewCatalogService[domain.Project, domain.ProjectPatch]("project", store, logger)
}

// Kind returns the record name used in messages
func (s *CatalogService[T, U]) Kind() string { return s.kind }

func (s *CatalogService[T, U]) List(ctx context.Context) ([]T, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.kind, err)
	}
	return items, nil
}

func (s *CatalogService[T, U]) Get(ctx context.Context, id string) (T, error) {
	item, err := s.store.Get(ctx, id)
	if err != nil {
		return item, fmt.Errorf("get %s: %w", s.kind, err)
	}
	return item, nil
}

// Create stores item under a fresh id; any id on item is discarded
func (s *CatalogService[T, U]) Create(ctx context.Context, item T) (T, error) {
	created, err := s.store.Create(ctx, item)
	if err != nil {
		return created, fmt.Errorf("create %s: %w", s.kind, err)
	}
	s.logger.Info("record created", slog.String("kind", s.kind), slog.String("id", recordID(&created)))
	return created, nil
}

// Update shallow-merges patch into the stored record
func (s *CatalogService[T, U]) Update(ctx context.Context, id string, patch U) (T, error) {
	updated, err := s.store.Update(ctx, id, func(item *T) { patch.Apply(item) })
	if err != nil {
		return updated, fmt.Errorf("update %s: %w", s.kind, err)
	}
	s.logger.Info("record updated", slog.String("kind", s.kind), slog.String("id", id))
	return updated, nil
}

func (s *CatalogService[T, U]) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	s.logger.Info("record deleted", slog.String("kind", s.kind), slog.String("id", id))
	return nil
}

func recordID(v any) string {
	if r, ok := v.(interface{ RecordID() string }); ok {
		return r.RecordID()
	}
	return ""
}
