package tender

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// SupplierStore persists the supplier registry.
type SupplierStore interface {
	CreateSupplier(ctx context.Context, s *Supplier) error
	GetSupplier(ctx context.Context, id string) (*Supplier, error)
	// ListSuppliers returns suppliers newest first.
	ListSuppliers(ctx context.Context) ([]Supplier, error)
	UpdateSupplier(ctx context.Context, s *Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
}

// Store persists suppliers, tenders, invitations and bids.
//
// TransitionTender is the only way to change a stored tender: it applies mutate atomically
// if the tender's status still equals from, and returns ErrTenderNotActive otherwise.
//
// UpsertBid must enforce one bid per supplier per tender: a second bid from the
// same supplier replaces the first and keeps its ID and SubmittedAt. It rechecks, atomically
// with the write, that the tender accepts bids at the bid's UpdatedAt.
// ListBids returns bids in first-submission order so rankings are reproducible.
type Store interface {
	SupplierStore

	CreateTender(ctx context.Context, t *Tender) error
	GetTender(ctx context.Context, id string) (*Tender, error)
	// ListTenders returns tenders newest first.
	ListTenders(ctx context.Context) ([]Tender, error)
	TransitionTender(ctx context.Context, id string, from Status, mutate func(*Tender)) (*Tender, error)

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, token string) (*Invitation, error)
	MarkInvitationViewed(ctx context.Context, token string) (*Invitation, error)
	CountInvitations(ctx context.Context, tenderID string) (int, error)

	UpsertBid(ctx context.Context, bid *StoredBid) (*StoredBid, error)
	ListBids(ctx context.Context, tenderID string) ([]StoredBid, error)
}

// MemoryStore is an in-process Store guarded by a RWMutex.
type MemoryStore struct {
	mu          sync.RWMutex
	suppliers   map[string]Supplier
	tenders     map[string]Tender
	invitations map[string]Invitation
	bids        map[string][]StoredBid // tender ID -> bids in first-submission order
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		suppliers:   make(map[string]Supplier),
		tenders:     make(map[string]Tender),
		invitations: make(map[string]Invitation),
		bids:        make(map[string][]StoredBid),
	}
}

func (m *MemoryStore) CreateSupplier(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.suppliers[s.ID]; exists {
		return ErrSupplierExists
	}
	m.suppliers[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSupplier(_ context.Context, id string) (*Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.suppliers[id]
	if !ok {
		return nil, ErrSupplierNotFound
	}
	return &s, nil
}

func (m *MemoryStore) ListSuppliers(_ context.Context) ([]Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Supplier) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryStore) UpdateSupplier(_ context.Context, s *Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.suppliers[s.ID]; !ok {
		return ErrSupplierNotFound
	}
	m.suppliers[s.ID] = *s
	return nil
}

func (m *MemoryStore) DeleteSupplier(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.suppliers[id]; !ok {
		return ErrSupplierNotFound
	}
	delete(m.suppliers, id)
	return nil
}

func (m *MemoryStore) CreateTender(_ context.Context, t *Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenders[t.ID]; exists {
		return ErrTenderExists
	}
	m.tenders[t.ID] = cloneTender(t)
	return nil
}

func (m *MemoryStore) GetTender(_ context.Context, id string) (*Tender, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenders[id]
	if !ok {
		return nil, ErrTenderNotFound
	}
	out := cloneTender(&t)
	return &out, nil
}

func (m *MemoryStore) ListTenders(_ context.Context) ([]Tender, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Tender, 0, len(m.tenders))
	for _, t := range m.tenders {
		out = append(out, cloneTender(&t))
	}
	slices.SortFunc(out, func(a, b Tender) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (m *MemoryStore) TransitionTender(_ context.Context, id string, from Status, mutate func(*Tender)) (*Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.tenders[id]
	if !ok {
		return nil, ErrTenderNotFound
	}
	if current.Status != from {
		return nil, ErrTenderNotActive
	}

	next := cloneTender(&current)
	mutate(&next)
	m.tenders[id] = cloneTender(&next)
	return &next, nil
}

func (m *MemoryStore) CreateInvitation(_ context.Context, inv *Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenders[inv.TenderID]; !ok {
		return ErrTenderNotFound
	}
	m.invitations[inv.Token] = *inv
	return nil
}

func (m *MemoryStore) GetInvitation(_ context.Context, token string) (*Invitation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invitations[token]
	if !ok {
		return nil, ErrInvalidInvitation
	}
	return &inv, nil
}

func (m *MemoryStore) MarkInvitationViewed(_ context.Context, token string) (*Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inv, ok := m.invitations[token]
	if !ok {
		return nil, ErrInvalidInvitation
	}
	inv.Status = InvitationViewed
	m.invitations[token] = inv
	return &inv, nil
}

func (m *MemoryStore) CountInvitations(_ context.Context, tenderID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tenders[tenderID]; !ok {
		return 0, ErrTenderNotFound
	}
	n := 0
	for _, inv := range m.invitations {
		if inv.TenderID == tenderID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpsertBid(_ context.Context, bid *StoredBid) (*StoredBid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tenders[bid.TenderID]
	if !ok {
		return nil, ErrTenderNotFound
	}
	if !t.AcceptsBids(bid.UpdatedAt) {
		return nil, ErrTenderNotActive
	}

	bids := m.bids[bid.TenderID]
	for i := range bids {
		if bids[i].SupplierID == bid.SupplierID {
			updated := *bid
			updated.ID = bids[i].ID
			updated.SubmittedAt = bids[i].SubmittedAt
			bids[i] = updated
			return &updated, nil
		}
	}

	m.bids[bid.TenderID] = append(bids, *bid)
	stored := *bid
	return &stored, nil
}

func (m *MemoryStore) ListBids(_ context.Context, tenderID string) ([]StoredBid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.tenders[tenderID]; !ok {
		return nil, ErrTenderNotFound
	}
	return slices.Clone(m.bids[tenderID]), nil
}

func cloneTender(t *Tender) Tender {
	out := *t
	if t.Preferences != nil {
		prefs := *t.Preferences
		out.Preferences = &prefs
	}
	return out
}
