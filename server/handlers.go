package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/receipt"
	"github.com/cloudx-io/opentender/tender"
	"github.com/cloudx-io/opentender/tenderapi"
)

type handlerFunc func(ctx context.Context, raw []byte) (any, error)

func (s *Server) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		tenderapi.TypePing:               s.handlePing,
		tenderapi.TypeKeyRequest:         s.handleKeyRequest,
		tenderapi.TypeCreateTender:       s.handleCreateTender,
		tenderapi.TypeInviteRequest:      s.handleInvite,
		tenderapi.TypeSubmitBid:          s.handleSubmitBid,
		tenderapi.TypeRankRequest:        s.handleRank,
		tenderapi.TypeLeaderboardRequest: s.handleLeaderboard,
		tenderapi.TypeCompetitiveRequest: s.handleCompetitive,
		tenderapi.TypeCloseRequest:       s.handleClose,
		tenderapi.TypeAwardRequest:       s.handleAward,
		tenderapi.TypeListTenders:        s.handleListTenders,
		tenderapi.TypeValidateInvitation: s.handleValidateInvitation,
		tenderapi.TypeCreateSuppliers:    s.handleCreateSuppliers,
		tenderapi.TypeListSuppliers:      s.handleListSuppliers,
		tenderapi.TypeUpdateSupplier:     s.handleUpdateSupplier,
		tenderapi.TypeDeleteSupplier:     s.handleDeleteSupplier,
	}
}

func decode[T any](raw []byte) (T, error) {
	var req T
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("failed to decode request: %w", err)
	}
	return req, nil
}

func (s *Server) handlePing(context.Context, []byte) (any, error) {
	return tenderapi.PingResponse{
		Type:      tenderapi.TypePong,
		Message:   "tender server is healthy",
		Timestamp: time.Now().Unix(),
	}, nil
}

func (s *Server) handleKeyRequest(context.Context, []byte) (any, error) {
	publicKeyPEM, err := s.issuer.Keys().PublicKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}
	return tenderapi.KeyResponse{
		Type:         tenderapi.TypeKeyResponse,
		KeyAlgorithm: receipt.KeyAlgorithm,
		PublicKey:    publicKeyPEM,
	}, nil
}

func (s *Server) handleCreateTender(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.CreateTenderRequest](raw)
	if err != nil {
		return nil, err
	}
	t, invitations, err := s.service.CreateTender(ctx, tender.CreateParams{
		ProductName:      req.ProductName,
		Units:            req.Units,
		PaymentCondition: req.PaymentCondition,
		DurationHours:    req.DurationHours,
		Preferences:      req.Preferences,
		SupplierIDs:      req.SelectedSuppliers,
	})
	if err != nil {
		return nil, err
	}

	resp := tenderapi.TenderResponse{
		Type:   tenderapi.TypeTenderResponse,
		Tender: tenderView(t, s.service.Now()),
	}
	for i := range invitations {
		resp.Invitations = append(resp.Invitations, invitationView(&invitations[i]))
	}
	return resp, nil
}

func (s *Server) handleListTenders(ctx context.Context, _ []byte) (any, error) {
	summaries, err := s.service.ListTenders(ctx)
	if err != nil {
		return nil, err
	}
	now := s.service.Now()
	views := make([]tenderapi.TenderSummaryView, len(summaries))
	for i := range summaries {
		views[i] = tenderapi.TenderSummaryView{
			TenderView:      tenderView(&summaries[i].Tender, now),
			BidCount:        summaries[i].BidCount,
			InvitationCount: summaries[i].InvitationCount,
		}
	}
	return tenderapi.TenderListResponse{Type: tenderapi.TypeTenderListResponse, Tenders: views}, nil
}

func (s *Server) handleValidateInvitation(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.ValidateInvitationRequest](raw)
	if err != nil {
		return nil, err
	}
	details, err := s.service.ValidateInvitation(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	resp := tenderapi.InvitationResponse{
		Type:       tenderapi.TypeInvitationResponse,
		Invitation: invitationView(&details.Invitation),
		Tender:     tenderView(&details.Tender, s.service.Now()),
	}
	if details.Supplier != nil {
		view := supplierView(details.Supplier)
		resp.Supplier = &view
	}
	if details.CurrentBid != nil {
		resp.CurrentBid = &details.CurrentBid.Bid
	}
	return resp, nil
}

func (s *Server) handleCreateSuppliers(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.CreateSuppliersRequest](raw)
	if err != nil {
		return nil, err
	}
	params := make([]tender.SupplierParams, len(req.Suppliers))
	for i, in := range req.Suppliers {
		params[i] = supplierParams(in)
	}
	created, err := s.service.CreateSuppliers(ctx, params)
	if err != nil {
		return nil, err
	}
	return supplierList(created), nil
}

func (s *Server) handleListSuppliers(ctx context.Context, _ []byte) (any, error) {
	suppliers, err := s.service.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	return supplierList(suppliers), nil
}

func (s *Server) handleUpdateSupplier(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.UpdateSupplierRequest](raw)
	if err != nil {
		return nil, err
	}
	sup, err := s.service.UpdateSupplier(ctx, req.ID, supplierParams(req.SupplierInput))
	if err != nil {
		return nil, err
	}
	return tenderapi.SupplierResponse{Type: tenderapi.TypeSupplierResponse, Supplier: supplierView(sup)}, nil
}

func (s *Server) handleDeleteSupplier(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.DeleteSupplierRequest](raw)
	if err != nil {
		return nil, err
	}
	if err := s.service.DeleteSupplier(ctx, req.ID); err != nil {
		return nil, err
	}
	return tenderapi.DeleteResponse{Type: tenderapi.TypeDeleteResponse, Success: true}, nil
}

func (s *Server) handleInvite(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.InviteRequest](raw)
	if err != nil {
		return nil, err
	}
	inv, err := s.service.Invite(ctx, req.TenderID, req.SupplierID)
	if err != nil {
		return nil, err
	}
	return tenderapi.InviteResponse{
		Type:       tenderapi.TypeInviteResponse,
		TenderID:   inv.TenderID,
		SupplierID: inv.SupplierID,
		Token:      inv.Token,
	}, nil
}

func (s *Server) handleSubmitBid(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.SubmitBidRequest](raw)
	if err != nil {
		return nil, err
	}
	bid, err := s.service.SubmitWithInvitation(ctx, req.Token, tender.SubmitParams{
		Price:            req.Price,
		DeliveryDays:     req.DeliveryDays,
		WarrantyMonths:   req.WarrantyMonths,
		QualityScore:     req.QualityScore,
		PaymentCondition: req.PaymentCondition,
		Units:            req.Units,
		Notes:            req.Notes,
	})
	if err != nil {
		return nil, err
	}

	standings, err := s.service.Leaderboard(ctx, bid.TenderID)
	if err != nil {
		return nil, err
	}
	resp := tenderapi.SubmitBidResponse{
		Type:  tenderapi.TypeSubmitBidResponse,
		BidID: bid.ID,
		Total: len(standings.Result.Ranking),
	}
	if ranked := core.FindRanked(standings.Result.Ranking, bid.ID); ranked != nil {
		resp.Rank = ranked.Rank
		resp.Score = ranked.Score
	}
	return resp, nil
}

// handleRank ranks the bids carried in the request. Nothing is stored.
func (s *Server) handleRank(_ context.Context, raw []byte) (any, error) {
	start := time.Now()
	req, err := decode[tenderapi.RankRequest](raw)
	if err != nil {
		return nil, err
	}
	prefs := tenderapi.ResolvePreferences(req.Preferences)
	return s.rankResponse(req.TenderID, req.Bids, prefs, core.RunTender(req.Bids, prefs), start)
}

func (s *Server) handleLeaderboard(ctx context.Context, raw []byte) (any, error) {
	start := time.Now()
	req, err := decode[tenderapi.LeaderboardRequest](raw)
	if err != nil {
		return nil, err
	}
	standings, err := s.service.Leaderboard(ctx, req.TenderID)
	if err != nil {
		return nil, err
	}
	return s.rankResponse(req.TenderID, standings.Bids, standings.Preferences, standings.Result, start)
}

func (s *Server) rankResponse(tenderID string, bids []core.Bid, prefs core.PreferenceVector, result *core.TenderResult, start time.Time) (any, error) {
	signed, payload, err := s.issuer.Issue(tenderID, bids, prefs, result)
	if err != nil {
		return nil, fmt.Errorf("failed to issue receipt: %w", err)
	}
	s.metrics.IncReceiptsIssued()

	message := "no eligible bids"
	if result.Winner != nil {
		message = fmt.Sprintf("ranked %d bids", len(result.Ranking))
	}
	s.logger.Info("ranking complete",
		zap.String("tender_id", tenderID),
		zap.String("receipt_id", payload.ReceiptID),
		zap.Int("ranked", len(result.Ranking)),
		zap.Int("excluded", len(result.ExcludedBids)))

	return tenderapi.RankResponse{
		Type:              tenderapi.TypeRankResponse,
		Success:           true,
		Message:           message,
		TenderID:          tenderID,
		Result:            result,
		ReceiptCOSEBase64: signed.EncodeBase64(),
		ProcessingTime:    time.Since(start).Milliseconds(),
	}, nil
}

func (s *Server) handleCompetitive(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.CompetitiveRequest](raw)
	if err != nil {
		return nil, err
	}
	bids, err := s.service.CompetitiveBids(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	return tenderapi.CompetitiveResponse{Type: tenderapi.TypeCompetitiveResponse, Bids: bids}, nil
}

func (s *Server) handleClose(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.CloseRequest](raw)
	if err != nil {
		return nil, err
	}
	t, err := s.service.Close(ctx, req.TenderID)
	if err != nil {
		return nil, err
	}
	return tenderapi.TenderResponse{Type: tenderapi.TypeTenderResponse, Tender: tenderView(t, s.service.Now())}, nil
}

func (s *Server) handleAward(ctx context.Context, raw []byte) (any, error) {
	req, err := decode[tenderapi.AwardRequest](raw)
	if err != nil {
		return nil, err
	}
	t, bid, err := s.service.Award(ctx, req.TenderID, req.BidID)
	if err != nil {
		return nil, err
	}
	return tenderapi.AwardResponse{
		Type:       tenderapi.TypeAwardResponse,
		Message:    "Tender awarded successfully",
		Tender:     tenderView(t, s.service.Now()),
		WinningBid: bid.Bid,
	}, nil
}

// tenderView reports an active tender past its deadline as expired.
func tenderView(t *tender.Tender, now time.Time) tenderapi.TenderView {
	return tenderapi.TenderView{
		ID:               t.ID,
		ProductName:      t.ProductName,
		Units:            t.Units,
		PaymentCondition: t.PaymentCondition,
		DurationHours:    t.DurationHours,
		CreatedAt:        t.CreatedAt,
		ExpiresAt:        t.ExpiresAt,
		Status:           string(t.DisplayStatus(now)),
		WinningBidID:     t.WinningBidID,
		Preferences:      t.EffectivePreferences(),
	}
}

func invitationView(inv *tender.Invitation) tenderapi.InvitationView {
	return tenderapi.InvitationView{
		SupplierID: inv.SupplierID,
		Token:      inv.Token,
		Status:     string(inv.Status),
	}
}

func supplierParams(in tenderapi.SupplierInput) tender.SupplierParams {
	return tender.SupplierParams{Name: in.Name, WhatsApp: in.WhatsApp, Email: in.Email}
}

func supplierView(sup *tender.Supplier) tenderapi.SupplierView {
	return tenderapi.SupplierView{
		ID:        sup.ID,
		Name:      sup.Name,
		WhatsApp:  sup.WhatsApp,
		Email:     sup.Email,
		CreatedAt: sup.CreatedAt,
		UpdatedAt: sup.UpdatedAt,
	}
}

func supplierList(suppliers []tender.Supplier) tenderapi.SupplierListResponse {
	views := make([]tenderapi.SupplierView, len(suppliers))
	for i := range suppliers {
		views[i] = supplierView(&suppliers[i])
	}
	return tenderapi.SupplierListResponse{Type: tenderapi.TypeSupplierListResponse, Suppliers: views}
}
