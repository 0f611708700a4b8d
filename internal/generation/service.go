package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"novelforge/internal/domain"
	"novelforge/internal/domain/jsoncfg"
)

// CreateInput is everything needed to register a new novel.
type CreateInput struct {
	OwnerID    string
	Parameters jsoncfg.NovelParameters
	DriveMode  domain.DriveMode
	// Language is the caller's preferred narrative language, used when the
	// parameters do not name one.
	Language string
}

// Service handles the owner-facing lifecycle of novels: creation, lookup and
// deletion. Generation itself is driven by the Orchestrator.
type Service struct {
	repo   domain.NovelRepository
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(repo domain.NovelRepository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Create validates the parameters and stores a novel in the initializing
// state. Invalid input returns a *domain.ValidationError and stores nothing.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Novel, error) {
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	mode := in.DriveMode
	switch mode {
	case "":
		mode = domain.DriveServer
	case domain.DriveServer, domain.DriveClient:
	default:
		return nil, domain.NewValidationError("drive_mode", "must be %q or %q", domain.DriveServer, domain.DriveClient)
	}

	params := in.Parameters.Clone()
	if reset := params.Normalize(in.Language); len(reset) > 0 {
		s.logger.Warn().Strs("fields", reset).Msg("generation: out-of-range sliders reset to default")
	}
	if err := params.Validate(); err != nil {
		var fe *jsoncfg.FieldError
		if errors.As(err, &fe) {
			return nil, domain.NewValidationError(fe.Field, "%s", fe.Message)
		}
		return nil, domain.NewValidationError("parameters", "%s", err.Error())
	}

	novel := domain.NewNovel(s.newID(), ownerID, params, mode, s.now())
	if err := s.repo.Create(ctx, novel); err != nil {
		return nil, fmt.Errorf("create novel: %w", err)
	}
	s.logger.Info().Str("novel_id", novel.ID).Str("owner_id", ownerID).Str("drive_mode", string(mode)).Msg("generation: novel created")
	return novel, nil
}

// Get returns the novel if it belongs to ownerID. Novels owned by someone
// else are reported as not found.
func (s *Service) Get(ctx context.Context, id, ownerID string) (*domain.Novel, error) {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

// Delete removes the novel and everything generated for it.
func (s *Service) Delete(ctx context.Context, id, ownerID string) error {
	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	s.logger.Info().Str("novel_id", id).Msg("generation: novel deleted")
	return nil
}
