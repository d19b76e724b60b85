package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/limbo/stakesave/pkg/httputil"
)

type EmergencyWithdrawRequest struct {
	Recipient string `json:"recipient"`
}

type ApproveRequest struct {
	Asset  string `json:"asset"`
	Amount int64  `json:"amount"`
}

func (s *Server) EmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("emergency withdraw error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req EmergencyWithdrawRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("emergency withdraw error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	asset := chi.URLParam(r, "asset")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	amount, err := s.adminService.EmergencyWithdrawRewardPool(ctx, identity, asset, req.Recipient)
	if err != nil {
		writeServiceError(w, logger, "emergency withdraw", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{
		"asset":     asset,
		"recipient": req.Recipient,
		"amount":    amount,
	})
	logger.Warn("reward pool drained", slog.String("asset", asset), slog.Int64("amount", amount))
}

func (s *Server) Approve(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("approve error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req ApproveRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("approve error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	err = s.allowanceService.Approve(ctx, identity, req.Asset, req.Amount)
	if err != nil {
		writeServiceError(w, logger, "approve", err)
		return
	}
	httputil.WriteNoContent(w)
}
