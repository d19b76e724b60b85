package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/limbo/stakesave/internal/metrics"
	"github.com/limbo/stakesave/internal/service"
	"github.com/limbo/stakesave/pkg/httputil"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	mx               *chi.Mux
	plansService     service.PlansServiceI
	adminService     service.AdminServiceI
	allowanceService service.AllowanceServiceI
	jwtService       JWTServiceI
}

type ServicesList struct {
	PlansService     service.PlansServiceI
	AdminService     service.AdminServiceI
	AllowanceService service.AllowanceServiceI
	JwtService       JWTServiceI
}

func New(servicesOptions *ServicesList) *Server {
	s := &Server{
		mx:               chi.NewMux(),
		plansService:     servicesOptions.PlansService,
		adminService:     servicesOptions.AdminService,
		allowanceService: servicesOptions.AllowanceService,
		jwtService:       servicesOptions.JwtService,
	}
	s.mountRoutes()
	return s
}

func (s *Server) mountRoutes() {
	s.mx.Use(s.RequestIDMiddleware, s.SettingUpLoggerMiddleware, s.MetricsMiddleware)

	s.mx.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONResponse(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	s.mx.Handle("/metrics", metrics.Handler())

	s.mx.Route("/api/v1", func(r chi.Router) {
		// Public reads and the permissionless penalty check
		r.Get("/plans/count", s.PlanCount)
		r.Get("/plans/{id}", s.GetPlan)
		r.Get("/plans/{id}/status", s.GetPlanStatus)
		r.Post("/plans/{id}/penalty-checks", s.CheckPenalty)
		r.Get("/reward-pools/{asset}", s.GetRewardPool)
		r.Get("/levels", s.GetLevels)

		r.Group(func(r chi.Router) {
			r.Use(s.AuthMiddleware, s.LoggerExtensionMiddleware)
			r.Post("/plans", s.CreatePlan)
			r.Get("/plans", s.ListPlans)
			r.Post("/plans/{id}/payments", s.PayDaily)
			r.Post("/plans/{id}/failure", s.MarkFailed)
			r.Post("/plans/{id}/withdrawal", s.Withdraw)
			r.Post("/allowances", s.Approve)
			r.Post("/admin/reward-pools/{asset}/withdrawal", s.EmergencyWithdraw)
		})
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mx.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mx,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server started", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("api server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New("server shutdown error: " + err.Error())
	}
	return nil
}
