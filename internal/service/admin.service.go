package service

import (
	"context"
	"fmt"

	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/repo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type AdminService interface {
	ListMine(ctx context.Context, principal domain.Principal, limit int) ([]domain.Intent, error)
	ListAll(ctx context.Context, principal domain.Principal, filter repo.IntentFilter) ([]domain.Intent, error)
	UpdateStatus(ctx context.Context, principal domain.Principal, id uuid.UUID, to domain.Status) (*domain.Intent, error)
}

type adminService struct {
	intentRepo repo.IntentRepo
	isAdmin    func(userID string) bool
	log        *zap.Logger
}

func NewAdminService(intentRepo repo.IntentRepo, isAdmin func(userID string) bool, log *zap.Logger) AdminService {
	return &adminService{intentRepo: intentRepo, isAdmin: isAdmin, log: log}
}

func (s *adminService) ListMine(ctx context.Context, principal domain.Principal, limit int) ([]domain.Intent, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	return s.intentRepo.ListByOwner(ctx, principal.ID, clampLimit(limit))
}

func (s *adminService) ListAll(ctx context.Context, principal domain.Principal, filter repo.IntentFilter) ([]domain.Intent, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidIntentType, filter.Type)
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.intentRepo.List(ctx, filter)
}

func (s *adminService) UpdateStatus(ctx context.Context, principal domain.Principal, id uuid.UUID, to domain.Status) (*domain.Intent, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}

	intent, err := s.intentRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, domain.ErrNotFound
	}
	if !domain.CanTransition(intent, to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, intent.Status, to)
	}

	ok, err := s.intentRepo.UpdateStatus(ctx, nil, id, intent.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// status moved underneath us
		return nil, fmt.Errorf("%w: %s changed concurrently", domain.ErrInvalidTransition, id)
	}

	s.log.Info("intent status updated",
		zap.String("reference_id", id.String()),
		zap.String("from", string(intent.Status)),
		zap.String("to", string(to)),
		zap.String("admin_id", principal.ID),
	)
	return s.intentRepo.FindById(ctx, id)
}

func (s *adminService) authorize(principal domain.Principal) error {
	if !principal.Authenticated() {
		return domain.ErrUnauthorized
	}
	if !s.isAdmin(principal.ID) {
		return domain.ErrForbidden
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
