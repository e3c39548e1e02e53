package memstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func (s *Store) CreateStaff(_ context.Context, st model.Staff) (model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[st.TenantID]; !ok {
		return model.Staff{}, model.ErrNotFound
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.tick()
	}
	st.Active = true
	s.staff[st.ID] = st
	return st, nil
}

func (s *Store) SetStaffActive(_ context.Context, tenantID, staffID string, active bool) (model.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return model.Staff{}, model.ErrNotFound
	}
	st.Active = active
	s.staff[staffID] = st
	return st, nil
}

func (s *Store) CreateService(_ context.Context, svc model.Service) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[svc.TenantID]; !ok {
		return model.Service{}, model.ErrNotFound
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	s.services[svc.ID] = svc
	return svc, nil
}

func (s *Store) AssignStaffToService(_ context.Context, tenantID, staffID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPair(tenantID, staffID, serviceID); err != nil {
		return err
	}
	if s.assignments[serviceID] == nil {
		s.assignments[serviceID] = map[string]bool{}
	}
	s.assignments[serviceID][staffID] = true
	return nil
}

func (s *Store) UnassignStaffFromService(_ context.Context, tenantID, staffID, serviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPair(tenantID, staffID, serviceID); err != nil {
		return err
	}
	delete(s.assignments[serviceID], staffID)
	return nil
}

func (s *Store) checkPair(tenantID, staffID, serviceID string) error {
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return model.ErrNotFound
	}
	svc, ok := s.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return model.ErrNotFound
	}
	return nil
}

// ReplaceTimeBlocks swaps the whole weekly schedule of one staff member.
func (s *Store) ReplaceTimeBlocks(_ context.Context, tenantID, staffID string, blocks []model.TimeBlock) ([]model.TimeBlock, error) {
	for _, b := range blocks {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	out := make([]model.TimeBlock, 0, len(blocks))
	for _, b := range blocks {
		b.ID = uuid.NewString()
		b.TenantID = tenantID
		b.StaffID = staffID
		b.Note = strings.TrimSpace(b.Note)
		out = append(out, b)
	}
	s.blocks[staffID] = out
	return append([]model.TimeBlock(nil), out...), nil
}

func (s *Store) UpsertEntitlements(_ context.Context, ent model.Entitlements) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent.UpdatedAt = time.Now().UTC()
	s.entitlements[ent.TenantID] = ent
	return nil
}

func (s *Store) GetEntitlements(_ context.Context, tenantID string) (model.Entitlements, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ent, ok := s.entitlements[tenantID]
	return ent, ok, nil
}

func (s *Store) CountActiveStaff(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.staff {
		if st.TenantID == tenantID && st.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountAppointmentsInRange(_ context.Context, tenantID string, startInclusive, endExclusive time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.appointments {
		if a.TenantID == tenantID && a.Live() && !a.StartAt.Before(startInclusive) && a.StartAt.Before(endExclusive) {
			n++
		}
	}
	return n, nil
}
