package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	errorvalues "github.com/limbo/stakesave/internal/error_values"
	"github.com/limbo/stakesave/internal/service"
	"github.com/limbo/stakesave/pkg/entity"
	"github.com/limbo/stakesave/pkg/httputil"
)

const requestTimeout = time.Second * 10

type CreatePlanRequest struct {
	Asset          string `json:"asset"`
	DailyAmount    int64  `json:"daily_amount"`
	TotalDays      int64  `json:"total_days"`
	PenaltyStake   int64  `json:"penalty_stake"`
	PenaltyPercent *int64 `json:"penalty_percent,omitempty"`
	Level          string `json:"level,omitempty"`
}

type GetPlansResponse struct {
	Owner string         `json:"owner"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Plans []*entity.Plan `json:"plans"`
}

type WithdrawResponse struct {
	PlanID int64 `json:"plan_id"`
	entity.Payout
	Total int64 `json:"total"`
}

func (s *Server) CreatePlan(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("create plan error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req CreatePlanRequest
	defer r.Body.Close()
	err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		logger.Error("create plan error: invalid request body")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	plan, err := s.plansService.CreatePlan(ctx, identity, &service.CreatePlanRequest{
		Asset:          req.Asset,
		DailyAmount:    req.DailyAmount,
		TotalDays:      req.TotalDays,
		PenaltyStake:   req.PenaltyStake,
		PenaltyPercent: req.PenaltyPercent,
		Level:          req.Level,
	})
	if err != nil {
		writeServiceError(w, logger, "create plan", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusCreated, plan)
	logger.Info("plan created", slog.Int64("plan_id", plan.ID))
}

func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("get plans error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = identity
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 50 {
		limit = 10
	}
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	plans, err := s.plansService.ListPlans(ctx, owner, service.PaginationOpts{
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeServiceError(w, logger, "get plans", err)
		return
	}
	if plans == nil {
		plans = []*entity.Plan{}
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetPlansResponse{
		Owner: owner,
		Page:  page,
		Limit: limit,
		Plans: plans,
	})
}

func (s *Server) PlanCount(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	count, err := s.plansService.PlanCount(ctx)
	if err != nil {
		writeServiceError(w, logger, "plan count", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"count": count})
}

func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	plan, err := s.plansService.GetPlan(ctx, planID)
	if err != nil {
		writeServiceError(w, logger, "get plan", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, plan)
}

func (s *Server) GetPlanStatus(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	status, err := s.plansService.GetPlanStatus(ctx, planID)
	if err != nil {
		writeServiceError(w, logger, "get plan status", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, status)
}

func (s *Server) PayDaily(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("pay daily error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	plan, err := s.plansService.PayDaily(ctx, identity, planID)
	if err != nil {
		writeServiceError(w, logger, "pay daily", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, plan)
	logger.Info("daily payment accepted", slog.Int64("plan_id", planID), slog.Int64("current_day", plan.CurrentDay))
}

func (s *Server) CheckPenalty(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	check, err := s.plansService.CheckAndDeductPenalty(ctx, planID)
	if err != nil {
		writeServiceError(w, logger, "penalty check", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, check)
}

func (s *Server) MarkFailed(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("mark failed error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	plan, err := s.plansService.MarkFailed(ctx, identity, planID)
	if err != nil {
		writeServiceError(w, logger, "mark failed", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, plan)
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	identity, err := GetIdentityFromContext(r)
	if err != nil {
		logger.Error("withdraw error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	planID, ok := planIDFromPath(w, r, logger)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	payout, err := s.plansService.Withdraw(ctx, identity, planID)
	if err != nil {
		writeServiceError(w, logger, "withdraw", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, WithdrawResponse{
		PlanID: planID,
		Payout: *payout,
		Total:  payout.Total(),
	})
	logger.Info("plan withdrawn", slog.Int64("plan_id", planID), slog.Int64("total", payout.Total()))
}

func (s *Server) GetRewardPool(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()
	pool, err := s.plansService.RewardPoolBalance(ctx, chi.URLParam(r, "asset"))
	if err != nil {
		writeServiceError(w, logger, "get reward pool", err)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, pool)
}

func (s *Server) GetLevels(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"levels": s.plansService.Levels()})
}

func planIDFromPath(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	planID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || planID < 1 {
		logger.Error("invalid plan id in path")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid plan id", nil)
		return 0, false
	}
	return planID, true
}

// writeServiceError maps service sentinels onto HTTP statuses
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var paramErr *errorvalues.ParamError
	switch {
	case errors.As(err, &paramErr):
		logger.Error(op+" error: invalid parameter", slog.String("field", paramErr.Field))
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid parameter", errors.New(paramErr.Field))
	case errors.Is(err, errorvalues.ErrInvalidParameter):
		logger.Error(op + " error: invalid parameter")
		httputil.WriteErrorResponse(w, http.StatusBadRequest, "invalid parameter", nil)
	case errors.Is(err, errorvalues.ErrNotPlanOwner), errors.Is(err, errorvalues.ErrNotAuthorized):
		logger.Error(op+" error: forbidden", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, errorvalues.ErrPlanNotFound):
		logger.Error(op + " error: unexist plan")
		httputil.WriteErrorResponse(w, http.StatusNotFound, "plan doesn't exist", nil)
	case errors.Is(err, errorvalues.ErrAlreadyTerminal),
		errors.Is(err, errorvalues.ErrAlreadyWithdrawn),
		errors.Is(err, errorvalues.ErrPlanNotCompleted),
		errors.Is(err, errorvalues.ErrGracePeriodActive),
		errors.Is(err, errorvalues.ErrNoMissedPayment):
		logger.Error(op+" error: conflicting plan state", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, errorvalues.ErrTransferDenied), errors.Is(err, errorvalues.ErrInsufficientPool):
		logger.Error(op+" error: transfer rejected", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusUnprocessableEntity, "transfer rejected", err)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error(op + " error: timeout")
		httputil.WriteErrorResponse(w, http.StatusGatewayTimeout, "request timed out", nil)
	default:
		logger.Error(op+" error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error during "+op, nil)
	}
}
