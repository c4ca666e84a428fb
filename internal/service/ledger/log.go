package ledger

import (
	"context"

	"github.com/voltx/rec-hub/internal/domain"
)

func (s *Service) GetEntry(ctx context.Context, index uint64) (*domain.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index >= uint64(len(s.state.entries)) {
		return nil, domain.E(domain.KindUnknownEntry, "GetEntry", "no entry at index %d", index)
	}
	e := s.state.entries[index]
	return &e, nil
}

func (s *Service) EntryCount(ctx context.Context) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.state.entries))
}

// AccountEntryIndices lists, in append order, every entry the account sent or received.
func (s *Service) AccountEntryIndices(ctx context.Context, account domain.Address) []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	indices := s.state.byAccount[account]
	out := make([]uint64, len(indices))
	copy(out, indices)
	return out
}

// ListEntries returns up to limit entries starting at offset.
func (s *Service) ListEntries(ctx context.Context, offset, limit uint64) []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := uint64(len(s.state.entries))
	if offset >= total || limit == 0 {
		return []domain.Entry{}
	}
	end := offset + limit
	if end > total || end < offset {
		end = total
	}
	out := make([]domain.Entry, end-offset)
	copy(out, s.state.entries[offset:end])
	return out
}

// Certificate returns the mint entry at index together with its facility.
func (s *Service) Certificate(ctx context.Context, index uint64) (*domain.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index >= uint64(len(s.state.entries)) {
		return nil, domain.E(domain.KindUnknownEntry, "Certificate", "no entry at index %d", index)
	}
	e := s.state.entries[index]
	if e.Kind != domain.EntryKindMint {
		return nil, domain.E(domain.KindInvalidInput, "Certificate", "entry %d is a %s, not a certificate issuance", index, e.Kind)
	}
	return &domain.Certificate{
		Entry:    e,
		Facility: s.state.facilities[e.FacilityID],
	}, nil
}
