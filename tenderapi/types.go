package tenderapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/opentender/core"
)

// Request and response type discriminators carried in the "type" field.
const (
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
	TypeKeyRequest  = "key_request"
	TypeKeyResponse = "key_response"

	TypeCreateTender        = "create_tender"
	TypeTenderResponse      = "tender_response"
	TypeInviteRequest       = "invite_request"
	TypeInviteResponse      = "invite_response"
	TypeSubmitBid           = "submit_bid"
	TypeSubmitBidResponse   = "submit_bid_response"
	TypeRankRequest         = "rank_request"
	TypeLeaderboardRequest  = "leaderboard_request"
	TypeRankResponse        = "rank_response"
	TypeCompetitiveRequest  = "competitive_request"
	TypeCompetitiveResponse = "competitive_response"
	TypeCloseRequest        = "close_request"
	TypeAwardRequest        = "award_request"
	TypeAwardResponse       = "award_response"

	TypeListTenders        = "list_tenders"
	TypeTenderListResponse = "tender_list_response"
	TypeValidateInvitation = "validate_invitation"
	TypeInvitationResponse = "invitation_response"

	TypeCreateSuppliers      = "create_suppliers"
	TypeListSuppliers        = "list_suppliers"
	TypeUpdateSupplier       = "update_supplier"
	TypeDeleteSupplier       = "delete_supplier"
	TypeSupplierResponse     = "supplier_response"
	TypeSupplierListResponse = "supplier_list_response"
	TypeDeleteResponse       = "delete_response"
)

// BaseRequest is decoded first to route a request by type.
type BaseRequest struct {
	Type string `json:"type"`
}

// ErrorResponse is returned for any request that could not be served.
type ErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorResponse builds an ErrorResponse with the error type set.
func NewErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Type: TypeError, Message: message}
}

// PingResponse answers a ping.
type PingResponse struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// KeyResponse distributes the PEM public key that verifies ranking receipts.
type KeyResponse struct {
	Type         string `json:"type"`
	KeyAlgorithm string `json:"key_algorithm"` // e.g., "ECDSA-P384"
	PublicKey    string `json:"public_key"`    // PEM format
}

// TenderView is the wire representation of a tender.
type TenderView struct {
	ID               string                `json:"id"`
	ProductName      string                `json:"product_name"`
	Units            int                   `json:"units"`
	PaymentCondition string                `json:"payment_condition"`
	DurationHours    int                   `json:"duration_hours"`
	CreatedAt        time.Time             `json:"created_at"`
	ExpiresAt        time.Time             `json:"expires_at"`
	Status           string                `json:"status"`
	WinningBidID     string                `json:"winning_bid_id,omitempty"`
	Preferences      core.PreferenceVector `json:"preferences"`
}

// CreateTenderRequest opens a new tender. Preferences are optional; priorities missing
// from a partial vector take their default. Every selected supplier is invited.
type CreateTenderRequest struct {
	Type              string                 `json:"type"`
	ProductName       string                 `json:"product_name"`
	Units             int                    `json:"units"`
	PaymentCondition  string                 `json:"payment_condition"`
	DurationHours     int                    `json:"duration_hours"`
	Preferences       *core.PreferenceVector `json:"preferences,omitempty"`
	SelectedSuppliers []string               `json:"selected_suppliers,omitempty"`
}

// InvitationView is the wire representation of an invitation.
type InvitationView struct {
	SupplierID string `json:"supplier_id"`
	Token      string `json:"token"`
	Status     string `json:"status"`
}

// TenderResponse returns the current state of a tender, plus the invitations issued
// when it was created.
type TenderResponse struct {
	Type        string           `json:"type"`
	Tender      TenderView       `json:"tender"`
	Invitations []InvitationView `json:"invitations,omitempty"`
}

// ListTendersRequest lists every tender, newest first.
type ListTendersRequest struct {
	Type string `json:"type"`
}

// TenderSummaryView is a listed tender with its activity counts.
type TenderSummaryView struct {
	TenderView
	BidCount        int `json:"bid_count"`
	InvitationCount int `json:"invitation_count"`
}

// TenderListResponse carries the tender listing.
type TenderListResponse struct {
	Type    string              `json:"type"`
	Tenders []TenderSummaryView `json:"tenders"`
}

// SupplierInput holds the contact details of a supplier. All fields are required.
type SupplierInput struct {
	Name     string `json:"name"`
	WhatsApp string `json:"whatsapp"`
	Email    string `json:"email"`
}

// SupplierView is the wire representation of a registered supplier.
type SupplierView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	WhatsApp  string    `json:"whatsapp"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSuppliersRequest registers a batch of suppliers.
type CreateSuppliersRequest struct {
	Type      string          `json:"type"`
	Suppliers []SupplierInput `json:"suppliers"`
}

// ListSuppliersRequest lists the registry, newest first.
type ListSuppliersRequest struct {
	Type string `json:"type"`
}

// SupplierListResponse answers create_suppliers and list_suppliers.
type SupplierListResponse struct {
	Type      string         `json:"type"`
	Suppliers []SupplierView `json:"suppliers"`
}

// UpdateSupplierRequest replaces a supplier's contact details.
type UpdateSupplierRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	SupplierInput
}

// SupplierResponse returns one supplier.
type SupplierResponse struct {
	Type     string       `json:"type"`
	Supplier SupplierView `json:"supplier"`
}

// DeleteSupplierRequest removes a supplier from the registry.
type DeleteSupplierRequest struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

// ValidateInvitationRequest opens an invitation link and marks it viewed.
type ValidateInvitationRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// InvitationResponse is what the supplier behind an invitation sees: the tender, its own
// details and its current bid, if any.
type InvitationResponse struct {
	Type       string         `json:"type"`
	Invitation InvitationView `json:"invitation"`
	Tender     TenderView     `json:"tender"`
	Supplier   *SupplierView  `json:"supplier,omitempty"`
	CurrentBid *core.Bid      `json:"current_bid,omitempty"`
}

// InviteRequest creates a tokenized invitation for one supplier.
type InviteRequest struct {
	Type       string `json:"type"`
	TenderID   string `json:"tender_id"`
	SupplierID string `json:"supplier_id"`
}

// InviteResponse carries the invitation token the supplier bids with.
type InviteResponse struct {
	Type       string `json:"type"`
	TenderID   string `json:"tender_id"`
	SupplierID string `json:"supplier_id"`
	Token      string `json:"token"`
}

// SubmitBidRequest creates or updates the supplier's bid identified by the invitation token.
type SubmitBidRequest struct {
	Type             string           `json:"type"`
	Token            string           `json:"token"`
	Price            decimal.Decimal  `json:"price"`
	DeliveryDays     core.OptionalInt `json:"delivery_days"`
	WarrantyMonths   core.OptionalInt `json:"warranty_months"`
	QualityScore     core.OptionalInt `json:"quality_score"`
	PaymentCondition string           `json:"payment_condition"`
	Units            int              `json:"units"`
	Notes            string           `json:"notes,omitempty"`
}

// SubmitBidResponse confirms a bid and reports its standing right after submission.
type SubmitBidResponse struct {
	Type  string  `json:"type"`
	BidID string  `json:"bid_id"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Total int     `json:"total_bids"`
}

// RankRequest ranks an explicit bid set without touching any store.
// A nil Preferences uses core.DefaultPreferences.
type RankRequest struct {
	Type        string                 `json:"type"`
	TenderID    string                 `json:"tender_id"`
	Bids        []core.Bid             `json:"bids"`
	Preferences *core.PreferenceVector `json:"preferences,omitempty"`
}

// LeaderboardRequest ranks the stored bids of a tender.
type LeaderboardRequest struct {
	Type     string `json:"type"`
	TenderID string `json:"tender_id"`
}

// RankResponse carries a full ranking and its signed receipt.
type RankResponse struct {
	Type              string             `json:"type"`
	Success           bool               `json:"success"`
	Message           string             `json:"message"`
	TenderID          string             `json:"tender_id"`
	Result            *core.TenderResult `json:"result,omitempty"`
	ReceiptCOSEBase64 ReceiptCOSEBase64  `json:"receipt_cose_base64,omitempty"`
	ProcessingTime    int64              `json:"processing_time_ms"`
}

// CompetitiveRequest asks for the anonymised leaderboard as seen by an invited supplier.
type CompetitiveRequest struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// CompetitiveResponse lists every bid by rank without supplier identities.
type CompetitiveResponse struct {
	Type string                `json:"type"`
	Bids []core.CompetitiveBid `json:"bids"`
}

// CloseRequest stops further bidding on a tender.
type CloseRequest struct {
	Type     string `json:"type"`
	TenderID string `json:"tender_id"`
}

// AwardRequest selects the winning bid of a tender.
type AwardRequest struct {
	Type     string `json:"type"`
	TenderID string `json:"tender_id"`
	BidID    string `json:"bid_id"`
}

// AwardResponse returns the awarded tender and its winning bid.
type AwardResponse struct {
	Type       string     `json:"type"`
	Message    string     `json:"message"`
	Tender     TenderView `json:"tender"`
	WinningBid core.Bid   `json:"winning_bid"`
}
