package tender

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SupplierParams are the contact details of a registered supplier. All fields are required.
type SupplierParams struct {
	Name     string
	WhatsApp string
	Email    string
}

func (p SupplierParams) validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name", ErrMissingField)
	case strings.TrimSpace(p.WhatsApp) == "":
		return fmt.Errorf("%w: whatsapp", ErrMissingField)
	case strings.TrimSpace(p.Email) == "":
		return fmt.Errorf("%w: email", ErrMissingField)
	}
	return nil
}

// CreateSuppliers registers a batch of suppliers. Every entry is validated before
// any is stored, so a bad entry rejects the whole batch.
func (s *Service) CreateSuppliers(ctx context.Context, params []SupplierParams) ([]Supplier, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: suppliers", ErrMissingField)
	}
	for i, p := range params {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("supplier %d: %w", i, err)
		}
	}

	out := make([]Supplier, 0, len(params))
	for _, p := range params {
		sup, err := s.createSupplier(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, *sup)
	}
	return out, nil
}

// CreateSupplier registers one supplier.
func (s *Service) CreateSupplier(ctx context.Context, p SupplierParams) (*Supplier, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.createSupplier(ctx, p)
}

func (s *Service) createSupplier(ctx context.Context, p SupplierParams) (*Supplier, error) {
	now := s.now().UTC()
	sup := &Supplier{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(p.Name),
		WhatsApp:  strings.TrimSpace(p.WhatsApp),
		Email:     strings.TrimSpace(p.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateSupplier(ctx, sup); err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}

	s.logger.Info("supplier registered", zap.String("supplier_id", sup.ID))
	return sup, nil
}

// GetSupplier loads a supplier by ID.
func (s *Service) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	return s.store.GetSupplier(ctx, id)
}

// ListSuppliers returns the registry, newest first.
func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

// UpdateSupplier replaces a supplier's contact details.
func (s *Service) UpdateSupplier(ctx context.Context, id string, p SupplierParams) (*Supplier, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	sup, err := s.store.GetSupplier(ctx, id)
	if err != nil {
		return nil, err
	}
	sup.Name = strings.TrimSpace(p.Name)
	sup.WhatsApp = strings.TrimSpace(p.WhatsApp)
	sup.Email = strings.TrimSpace(p.Email)
	sup.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateSupplier(ctx, sup); err != nil {
		return nil, fmt.Errorf("update supplier: %w", err)
	}
	return sup, nil
}

// DeleteSupplier removes a supplier from the registry. Invitations already issued stay valid.
func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	if err := s.store.DeleteSupplier(ctx, id); err != nil {
		return err
	}
	s.logger.Info("supplier deleted", zap.String("supplier_id", id))
	return nil
}
