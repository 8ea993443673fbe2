// Package tender manages the lifecycle of tenders around the value ranking engine:
// supplier registry, creation, invitations, bid submission, leaderboards, closing and award.
package tender

import (
	"errors"
	"time"

	"github.com/cloudx-io/opentender/core"
)

// Status is the lifecycle state of a tender.
type Status string

// Tender statuses. StatusExpired is only reported by DisplayStatus and never stored.
const (
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
	StatusAwarded Status = "awarded"
	StatusExpired Status = "expired"
)

// Tender is a time-boxed request for competing supplier bids.
type Tender struct {
	ID               string                 `json:"id"`
	ProductName      string                 `json:"product_name"`
	Units            int                    `json:"units"`
	PaymentCondition string                 `json:"payment_condition"`
	DurationHours    int                    `json:"duration_hours"`
	CreatedAt        time.Time              `json:"created_at"`
	ExpiresAt        time.Time              `json:"expires_at"`
	Status           Status                 `json:"status"`
	WinningBidID     string                 `json:"winning_bid_id,omitempty"`
	Preferences      *core.PreferenceVector `json:"preferences,omitempty"`
}

// AcceptsBids reports whether suppliers may still submit or update bids at now.
func (t *Tender) AcceptsBids(now time.Time) bool {
	return t.Status == StatusActive && now.Before(t.ExpiresAt)
}

// DisplayStatus is the status shown to clients: an active tender past its deadline is expired.
func (t *Tender) DisplayStatus(now time.Time) Status {
	if t.Status == StatusActive && !now.Before(t.ExpiresAt) {
		return StatusExpired
	}
	return t.Status
}

// EffectivePreferences returns the tender's preferences, or the defaults if none were recorded.
func (t *Tender) EffectivePreferences() core.PreferenceVector {
	if t.Preferences == nil {
		return core.DefaultPreferences()
	}
	return *t.Preferences
}

// TenderSummary is a tender with its bid and invitation counts, as listed to the buyer.
type TenderSummary struct {
	Tender
	BidCount        int `json:"bid_count"`
	InvitationCount int `json:"invitation_count"`
}

// Supplier is a registered supplier that can be invited to tenders.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WhatsApp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvitationStatus tracks whether a supplier has opened an invitation.
type InvitationStatus string

// Invitation statuses.
const (
	InvitationPending InvitationStatus = "pending"
	InvitationViewed  InvitationStatus = "viewed"
)

// Invitation links a supplier to a tender through an opaque token.
type Invitation struct {
	Token      string           `json:"token"`
	TenderID   string           `json:"tender_id"`
	SupplierID string           `json:"supplier_id"`
	Status     InvitationStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// InvitationDetails is what a supplier sees when opening an invitation.
type InvitationDetails struct {
	Invitation Invitation
	Tender     Tender
	Supplier   *Supplier  // nil if the supplier was removed from the registry
	CurrentBid *StoredBid // nil until the supplier bids
}

// StoredBid is a supplier's current bid as persisted by a Store.
type StoredBid struct {
	core.Bid
	TenderID         string    `json:"tender_id"`
	PaymentCondition string    `json:"payment_condition"`
	Units            int       `json:"units"`
	Notes            string    `json:"notes,omitempty"`
	SubmittedAt      time.Time `json:"submitted_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Errors returned by the service and stores.
var (
	ErrTenderNotFound    = errors.New("tender not found")
	ErrTenderNotActive   = errors.New("tender is no longer active")
	ErrBidNotFound       = errors.New("bid not found")
	ErrInvalidInvitation = errors.New("invalid invitation")
	ErrInvalidBid        = errors.New("invalid bid")
	ErrMissingField      = errors.New("missing required field")
	ErrTenderExists      = errors.New("tender already exists")
	ErrSupplierNotFound  = errors.New("supplier not found")
	ErrSupplierExists    = errors.New("supplier already exists")
)
