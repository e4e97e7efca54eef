package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/commission-service/internal/domain"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/repository"
	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

// Clock returns the current time. Tests replace it to pin month boundaries.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// storeError classifies errors coming out of a repository or transaction.
// Domain errors pass through untouched.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("record", nil)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("record already exists", nil)
	case errors.Is(err, repository.ErrInvalidValue):
		return apperrors.NewValidationError("value out of range", nil)
	default:
		return apperrors.NewStoreUnavailable(err)
	}
}

// lookupError maps a missing row to a NotFound for resource and classifies
// everything else with storeError.
func lookupError(err error, resource, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return storeError(err)
}

func requireAdmin(actor domain.Actor, action string) error {
	if !actor.IsAdmin() {
		return apperrors.NewForbidden("only admins may " + action)
	}
	return nil
}

func publish(ctx context.Context, dispatcher events.Dispatcher, evts ...events.Event) {
	if dispatcher == nil {
		return
	}
	for _, event := range evts {
		_ = dispatcher.Publish(ctx, event)
	}
}

func saleSnapshot(s *domain.Sale) map[string]any {
	snapshot := domain.RateSnapshot(s)
	snapshot["sale_status"] = string(s.Status)
	snapshot["commission_status"] = string(s.CommissionStatus)
	snapshot["amount"] = s.Amount.StringFixed(2)
	return snapshot
}
