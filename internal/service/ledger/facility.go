package ledger

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
)

const maxFacilityIDLength = 128

func (s *Service) RegisterFacility(ctx context.Context, caller domain.Address, req domain.RegisterFacilityRequest) (*domain.Facility, error) {
	var registered domain.Facility
	err := s.write(ctx, "RegisterFacility", caller, func(t *txn) error {
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		if strings.TrimSpace(req.ID) == "" {
			return domain.E(domain.KindInvalidInput, t.op, "facility id is required")
		}
		if len(req.ID) > maxFacilityIDLength {
			return domain.E(domain.KindInvalidInput, t.op, "facility id longer than %d characters", maxFacilityIDLength)
		}
		energyType, err := domain.ParseEnergyType(req.EnergyType)
		if err != nil {
			return err
		}
		if strings.TrimSpace(req.DisplayName) == "" {
			return domain.E(domain.KindInvalidInput, t.op, "display name is required")
		}
		if strings.TrimSpace(req.Location) == "" {
			return domain.E(domain.KindInvalidInput, t.op, "location is required")
		}
		if req.Capacity == 0 {
			return domain.E(domain.KindInvalidInput, t.op, "capacity must be positive")
		}
		if _, exists := t.facility(req.ID); exists {
			return domain.E(domain.KindDuplicateFacility, t.op, "facility %q already registered", req.ID)
		}

		registered = domain.Facility{
			ID:           req.ID,
			Ordinal:      len(t.base.order),
			DisplayName:  req.DisplayName,
			Location:     req.Location,
			EnergyType:   energyType,
			Capacity:     req.Capacity,
			Active:       true,
			RegisteredAt: t.now,
			RegisteredBy: caller,
		}
		t.putFacility(registered)
		snapshot := registered
		t.emit(domain.Event{
			Type:       domain.EventFacilityRegistered,
			FacilityID: registered.ID,
			EnergyType: string(registered.EnergyType),
			Facility:   &snapshot,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Facility registered",
		zap.String("facility_id", registered.ID),
		zap.String("energy_type", string(registered.EnergyType)),
		zap.Uint64("capacity", registered.Capacity),
	)
	return &registered, nil
}

func (s *Service) SetFacilityActive(ctx context.Context, caller domain.Address, id string, active bool) (*domain.Facility, error) {
	return s.updateFacilityStatus(ctx, "SetFacilityActive", caller, id, func(bool) bool { return active })
}

// ToggleFacilityStatus flips the active flag of a facility.
func (s *Service) ToggleFacilityStatus(ctx context.Context, caller domain.Address, id string) (*domain.Facility, error) {
	return s.updateFacilityStatus(ctx, "ToggleFacilityStatus", caller, id, func(current bool) bool { return !current })
}

func (s *Service) updateFacilityStatus(ctx context.Context, op string, caller domain.Address, id string, next func(bool) bool) (*domain.Facility, error) {
	var updated domain.Facility
	err := s.write(ctx, op, caller, func(t *txn) error {
		if err := s.requireOwner(t, caller); err != nil {
			return err
		}
		f, ok := t.facility(id)
		if !ok {
			return domain.E(domain.KindUnknownFacility, t.op, "facility %q not registered", id)
		}
		f.Active = next(f.Active)
		t.putFacility(f)
		active, snapshot := f.Active, f
		t.emit(domain.Event{
			Type:       domain.EventFacilityStatusChanged,
			FacilityID: f.ID,
			Active:     &active,
			Facility:   &snapshot,
		})
		updated = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Facility status changed",
		zap.String("facility_id", updated.ID),
		zap.Bool("active", updated.Active),
	)
	return &updated, nil
}

func (s *Service) GetFacility(ctx context.Context, id string) (*domain.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.state.facilities[id]
	if !ok {
		return nil, domain.E(domain.KindUnknownFacility, "GetFacility", "facility %q not registered", id)
	}
	return &f, nil
}

func (s *Service) FacilityCount(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.order)
}

// ListFacilityIDs returns facility ids in registration order.
func (s *Service) ListFacilityIDs(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.state.order))
	copy(ids, s.state.order)
	return ids
}

func (s *Service) ListFacilities(ctx context.Context) []domain.Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Facility, 0, len(s.state.order))
	for _, id := range s.state.order {
		out = append(out, s.state.facilities[id])
	}
	return out
}
