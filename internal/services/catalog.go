package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"hisab/internal/amqp"
	"hisab/internal/core"
	"hisab/internal/storage"
)

// nameKey folds a display name for duplicate detection: NFC, case folded,
// inner whitespace collapsed.
func nameKey(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.Join(strings.Fields(name), " ")))
}

func (s *AccountingService) CreateParty(ctx context.Context, p core.Party) (core.Party, error) {
	if err := p.Validate(); err != nil {
		return core.Party{}, err
	}
	if err := s.ensureUniqueParty(ctx, p); err != nil {
		return core.Party{}, err
	}
	saved, err := s.storage.CreateParty(ctx, p)
	if err != nil {
		return core.Party{}, err
	}
	s.afterParty(ctx, "create", saved)
	return saved, nil
}

func (s *AccountingService) UpdateParty(ctx context.Context, p core.Party) (core.Party, error) {
	if err := p.Validate(); err != nil {
		return core.Party{}, err
	}
	if err := s.ensureUniqueParty(ctx, p); err != nil {
		return core.Party{}, err
	}
	saved, err := s.storage.UpdateParty(ctx, p)
	if err != nil {
		return core.Party{}, err
	}
	s.afterParty(ctx, "update", saved)
	return saved, nil
}

// DeleteParty removes a party without history. Parties with transactions are
// refused with core.ErrConflict and must be deactivated.
func (s *AccountingService) DeleteParty(ctx context.Context, kind core.PartyKind, id int64) error {
	p, err := s.storage.GetParty(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteParty(ctx, kind, id); err != nil {
		return err
	}
	s.afterParty(ctx, "delete", p)
	return nil
}

func (s *AccountingService) GetParty(ctx context.Context, kind core.PartyKind, id int64) (core.Party, error) {
	return s.storage.GetParty(ctx, kind, id)
}

func (s *AccountingService) ListParties(ctx context.Context, f storage.PartyFilter) ([]core.Party, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	return s.storage.ListParties(ctx, f)
}

func (s *AccountingService) ensureUniqueParty(ctx context.Context, p core.Party) error {
	existing, err := s.storage.ListParties(ctx, storage.PartyFilter{Kind: p.Kind, IncludeInactive: true})
	if err != nil {
		return err
	}
	key := nameKey(p.Name)
	for _, e := range existing {
		if e.ID != p.ID && nameKey(e.Name) == key {
			return fmt.Errorf("%s %q already exists (id %d): %w", p.Kind, strings.TrimSpace(p.Name), e.ID, core.ErrConflict)
		}
	}
	return nil
}

func (s *AccountingService) afterParty(ctx context.Context, action string, p core.Party) {
	s.InvalidateReports()
	s.logActivity(ctx, action, string(p.Kind), p.ID, p.Name)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.PartyChanged, p.ID).ForParty(string(p.Kind), p.ID, ""))
}

func (s *AccountingService) CreateService(ctx context.Context, svc core.Service) (core.Service, error) {
	if err := svc.Validate(); err != nil {
		return core.Service{}, err
	}
	if err := s.ensureUniqueService(ctx, svc); err != nil {
		return core.Service{}, err
	}
	saved, err := s.storage.CreateService(ctx, svc)
	if err != nil {
		return core.Service{}, err
	}
	s.logActivity(ctx, "create", "service", saved.ID, saved.Name)
	return saved, nil
}

func (s *AccountingService) UpdateService(ctx context.Context, svc core.Service) (core.Service, error) {
	if err := svc.Validate(); err != nil {
		return core.Service{}, err
	}
	if err := s.ensureUniqueService(ctx, svc); err != nil {
		return core.Service{}, err
	}
	saved, err := s.storage.UpdateService(ctx, svc)
	if err != nil {
		return core.Service{}, err
	}
	s.InvalidateReports()
	s.logActivity(ctx, "update", "service", saved.ID, saved.Name)
	return saved, nil
}

func (s *AccountingService) DeleteService(ctx context.Context, id int64) error {
	if err := s.storage.DeleteService(ctx, id); err != nil {
		return err
	}
	s.InvalidateReports()
	s.logActivity(ctx, "delete", "service", id, "")
	return nil
}

func (s *AccountingService) GetService(ctx context.Context, id int64) (core.Service, error) {
	return s.storage.GetService(ctx, id)
}

func (s *AccountingService) ListServices(ctx context.Context, includeInactive bool) ([]core.Service, error) {
	return s.storage.ListServices(ctx, includeInactive)
}

func (s *AccountingService) ensureUniqueService(ctx context.Context, svc core.Service) error {
	existing, err := s.storage.ListServices(ctx, true)
	if err != nil {
		return err
	}
	key := nameKey(svc.Name)
	for _, e := range existing {
		if e.ID != svc.ID && nameKey(e.Name) == key {
			return fmt.Errorf("service %q already exists (id %d): %w", strings.TrimSpace(svc.Name), e.ID, core.ErrConflict)
		}
	}
	return nil
}
