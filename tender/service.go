package tender

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
)

// Service runs tender operations against a Store.
type Service struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil logger is replaced with a no-op logger.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.now()
}

// CreateParams are the buyer-supplied fields of a new tender.
type CreateParams struct {
	ProductName      string
	Units            int
	PaymentCondition string
	DurationHours    int
	Preferences      *core.PreferenceVector
	// SupplierIDs are registered suppliers to invite once the tender is open.
	SupplierIDs []string
}

// CreateTender opens a new active tender expiring DurationHours from now and invites
// every supplier in SupplierIDs. Unknown suppliers reject the tender before it is stored.
func (s *Service) CreateTender(ctx context.Context, p CreateParams) (*Tender, []Invitation, error) {
	switch {
	case strings.TrimSpace(p.ProductName) == "":
		return nil, nil, fmt.Errorf("%w: product_name", ErrMissingField)
	case p.Units <= 0:
		return nil, nil, fmt.Errorf("%w: units", ErrMissingField)
	case strings.TrimSpace(p.PaymentCondition) == "":
		return nil, nil, fmt.Errorf("%w: payment_condition", ErrMissingField)
	case p.DurationHours <= 0:
		return nil, nil, fmt.Errorf("%w: duration_hours", ErrMissingField)
	}

	supplierIDs := make([]string, 0, len(p.SupplierIDs))
	for _, id := range p.SupplierIDs {
		if slices.Contains(supplierIDs, id) {
			continue
		}
		if _, err := s.store.GetSupplier(ctx, id); err != nil {
			return nil, nil, fmt.Errorf("supplier %q: %w", id, err)
		}
		supplierIDs = append(supplierIDs, id)
	}

	now := s.now().UTC()
	t := &Tender{
		ID:               uuid.NewString(),
		ProductName:      p.ProductName,
		Units:            p.Units,
		PaymentCondition: p.PaymentCondition,
		DurationHours:    p.DurationHours,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Duration(p.DurationHours) * time.Hour),
		Status:           StatusActive,
		Preferences:      p.Preferences,
	}

	if err := s.store.CreateTender(ctx, t); err != nil {
		return nil, nil, fmt.Errorf("create tender: %w", err)
	}

	s.logger.Info("tender created",
		zap.String("tender_id", t.ID),
		zap.String("product", t.ProductName),
		zap.Time("expires_at", t.ExpiresAt),
		zap.Int("invited", len(supplierIDs)))

	invitations := make([]Invitation, 0, len(supplierIDs))
	for _, id := range supplierIDs {
		inv, err := s.issueInvitation(ctx, t.ID, id)
		if err != nil {
			return t, invitations, err
		}
		invitations = append(invitations, *inv)
	}
	return t, invitations, nil
}

// GetTender loads a tender by ID.
func (s *Service) GetTender(ctx context.Context, id string) (*Tender, error) {
	return s.store.GetTender(ctx, id)
}

// ListTenders returns every tender, newest first, with its bid and invitation counts.
func (s *Service) ListTenders(ctx context.Context) ([]TenderSummary, error) {
	tenders, err := s.store.ListTenders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}

	out := make([]TenderSummary, 0, len(tenders))
	for _, t := range tenders {
		bids, err := s.store.ListBids(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("list bids for %s: %w", t.ID, err)
		}
		invited, err := s.store.CountInvitations(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("count invitations for %s: %w", t.ID, err)
		}
		out = append(out, TenderSummary{Tender: t, BidCount: len(bids), InvitationCount: invited})
	}
	return out, nil
}

// Invite issues an invitation token for a registered supplier on an active tender.
func (s *Service) Invite(ctx context.Context, tenderID, supplierID string) (*Invitation, error) {
	if strings.TrimSpace(supplierID) == "" {
		return nil, fmt.Errorf("%w: supplier_id", ErrMissingField)
	}

	t, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if !t.AcceptsBids(s.now()) {
		return nil, ErrTenderNotActive
	}
	if _, err := s.store.GetSupplier(ctx, supplierID); err != nil {
		return nil, err
	}
	return s.issueInvitation(ctx, tenderID, supplierID)
}

func (s *Service) issueInvitation(ctx context.Context, tenderID, supplierID string) (*Invitation, error) {
	inv := &Invitation{
		Token:      uuid.NewString(),
		TenderID:   tenderID,
		SupplierID: supplierID,
		Status:     InvitationPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.logger.Info("supplier invited", zap.String("tender_id", tenderID), zap.String("supplier_id", supplierID))
	return inv, nil
}

// ValidateInvitation opens the invitation behind token: it is marked viewed and returned
// with its tender, the supplier and the supplier's current bid, if any.
func (s *Service) ValidateInvitation(ctx context.Context, token string) (*InvitationDetails, error) {
	if token == "" {
		return nil, ErrInvalidInvitation
	}
	inv, err := s.store.MarkInvitationViewed(ctx, token)
	if err != nil {
		return nil, err
	}
	t, err := s.store.GetTender(ctx, inv.TenderID)
	if err != nil {
		return nil, err
	}

	details := &InvitationDetails{Invitation: *inv, Tender: *t}

	sup, err := s.store.GetSupplier(ctx, inv.SupplierID)
	switch {
	case err == nil:
		details.Supplier = sup
	case !errors.Is(err, ErrSupplierNotFound):
		return nil, err
	}

	bids, err := s.store.ListBids(ctx, inv.TenderID)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	for i := range bids {
		if bids[i].SupplierID == inv.SupplierID {
			details.CurrentBid = &bids[i]
			break
		}
	}
	return details, nil
}

// ResolveInvitation returns the invitation behind token.
func (s *Service) ResolveInvitation(ctx context.Context, token string) (*Invitation, error) {
	if token == "" {
		return nil, ErrInvalidInvitation
	}
	return s.store.GetInvitation(ctx, token)
}

// SubmitParams are the supplier-supplied fields of a bid.
type SubmitParams struct {
	SupplierID       string
	Price            decimal.Decimal
	DeliveryDays     core.OptionalInt
	WarrantyMonths   core.OptionalInt
	QualityScore     core.OptionalInt
	PaymentCondition string
	Units            int
	Notes            string
}

// SubmitBid creates the supplier's bid or replaces its previous one.
// The tender must be active and not yet expired.
func (s *Service) SubmitBid(ctx context.Context, tenderID string, p SubmitParams) (*StoredBid, error) {
	switch {
	case p.SupplierID == "":
		return nil, fmt.Errorf("%w: supplier_id", ErrMissingField)
	case !core.PriceIsPositive(p.Price):
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidBid)
	case strings.TrimSpace(p.PaymentCondition) == "":
		return nil, fmt.Errorf("%w: payment_condition", ErrMissingField)
	case p.Units <= 0:
		return nil, fmt.Errorf("%w: units", ErrMissingField)
	}

	t, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !t.AcceptsBids(now) {
		return nil, ErrTenderNotActive
	}

	bid := &StoredBid{
		Bid: core.Bid{
			ID:             uuid.NewString(),
			SupplierID:     p.SupplierID,
			Price:          p.Price,
			DeliveryDays:   p.DeliveryDays,
			WarrantyMonths: p.WarrantyMonths,
			QualityScore:   p.QualityScore,
		},
		TenderID:         tenderID,
		PaymentCondition: p.PaymentCondition,
		Units:            p.Units,
		Notes:            p.Notes,
		SubmittedAt:      now,
		UpdatedAt:        now,
	}

	// The store rechecks the status, so a bid racing Close or Award is rejected.
	stored, err := s.store.UpsertBid(ctx, bid)
	if err != nil {
		return nil, fmt.Errorf("store bid: %w", err)
	}

	s.logger.Info("bid submitted",
		zap.String("tender_id", tenderID),
		zap.String("bid_id", stored.ID),
		zap.String("supplier_id", stored.SupplierID),
		zap.String("price", stored.Price.String()),
		zap.Bool("update", stored.SubmittedAt.Before(now)))
	return stored, nil
}

// SubmitWithInvitation resolves token to its supplier and tender, then submits the bid.
func (s *Service) SubmitWithInvitation(ctx context.Context, token string, p SubmitParams) (*StoredBid, error) {
	inv, err := s.ResolveInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	p.SupplierID = inv.SupplierID
	return s.SubmitBid(ctx, inv.TenderID, p)
}

// Snapshot returns the tender's current bids and effective preferences.
func (s *Service) Snapshot(ctx context.Context, tenderID string) ([]core.Bid, core.PreferenceVector, error) {
	t, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, core.PreferenceVector{}, err
	}
	stored, err := s.store.ListBids(ctx, tenderID)
	if err != nil {
		return nil, core.PreferenceVector{}, fmt.Errorf("list bids: %w", err)
	}

	bids := make([]core.Bid, len(stored))
	for i := range stored {
		bids[i] = stored[i].Bid
	}
	return bids, t.EffectivePreferences(), nil
}

// Standings is a ranking of a tender's bids at one point in time.
type Standings struct {
	Bids        []core.Bid
	Preferences core.PreferenceVector
	Result      *core.TenderResult
}

// Leaderboard ranks the tender's current bids.
func (s *Service) Leaderboard(ctx context.Context, tenderID string) (*Standings, error) {
	bids, prefs, err := s.Snapshot(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	result := core.RunTender(bids, prefs)

	if len(result.ExcludedBids) > 0 {
		s.logger.Warn("bids excluded from leaderboard",
			zap.String("tender_id", tenderID),
			zap.Int("excluded", len(result.ExcludedBids)))
	}
	return &Standings{Bids: bids, Preferences: prefs, Result: result}, nil
}

// CompetitiveBids returns the anonymised leaderboard for the supplier holding token.
func (s *Service) CompetitiveBids(ctx context.Context, token string) ([]core.CompetitiveBid, error) {
	inv, err := s.ResolveInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	standings, err := s.Leaderboard(ctx, inv.TenderID)
	if err != nil {
		return nil, err
	}
	return core.CompetitiveView(standings.Result.Ranking, inv.SupplierID), nil
}

// Close stops bidding on an active tender. Closed and awarded tenders are left untouched.
func (s *Service) Close(ctx context.Context, tenderID string) (*Tender, error) {
	t, err := s.store.TransitionTender(ctx, tenderID, StatusActive, func(t *Tender) {
		t.Status = StatusClosed
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tender closed", zap.String("tender_id", tenderID))
	return t, nil
}

// Award marks bidID as the winning bid. The tender must still be active and the
// bid must belong to it. Concurrent awards race on the active status and only one wins.
func (s *Service) Award(ctx context.Context, tenderID, bidID string) (*Tender, *StoredBid, error) {
	if bidID == "" {
		return nil, nil, fmt.Errorf("%w: bid_id", ErrMissingField)
	}

	t, err := s.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != StatusActive {
		return nil, nil, ErrTenderNotActive
	}

	bids, err := s.store.ListBids(ctx, tenderID)
	if err != nil {
		return nil, nil, fmt.Errorf("list bids: %w", err)
	}
	var winning *StoredBid
	for i := range bids {
		if bids[i].ID == bidID {
			winning = &bids[i]
			break
		}
	}
	if winning == nil {
		return nil, nil, ErrBidNotFound
	}

	t, err = s.store.TransitionTender(ctx, tenderID, StatusActive, func(t *Tender) {
		t.WinningBidID = bidID
		t.Status = StatusAwarded
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("tender awarded",
		zap.String("tender_id", tenderID),
		zap.String("bid_id", bidID),
		zap.String("supplier_id", winning.SupplierID),
		zap.String("price", winning.Price.String()))
	return t, winning, nil
}
