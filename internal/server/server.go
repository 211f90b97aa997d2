// Package server exposes the market over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
	"github.com/alanyoungcy/nftmart/internal/server/handler"
	"github.com/alanyoungcy/nftmart/internal/server/middleware"
	"github.com/alanyoungcy/nftmart/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// Operator is the only account admin routes serve.
	Operator     domain.AccountID
	SignatureTTL time.Duration
	// RateLimit requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Events may be nil when no event journal is configured.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Listings *handler.ListingHandler
	Orders   *handler.OrderHandler
	Auctions *handler.AuctionHandler
	Assets   *handler.AssetHandler
	Admin    *handler.AdminHandler
	Events   *handler.EventHandler
}

// Guards are the shared-state collaborators of the middleware chain. Either
// may be nil.
type Guards struct {
	Limiter domain.RateLimiter
	Replay  domain.ReplayGuard
}

// Server is the HTTP + WebSocket API server of the marketplace.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, logging, rate limit, signature auth) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, guards Guards, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAccount(cfg.Operator, h)
	}

	mux.HandleFunc("GET /healthz", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /v1/status", handlers.Status.GetStatus)
	mux.HandleFunc("GET /v1/params", handlers.Status.GetParams)
	mux.HandleFunc("GET /v1/categories/{id}", handlers.Status.GetCategory)
	mux.HandleFunc("GET /v1/listings", handlers.Listings.ListListings)

	mux.HandleFunc("POST /v1/orders", handlers.Orders.SubmitOrder)
	mux.HandleFunc("GET /v1/orders/{owner}/{id}", handlers.Orders.GetOrder)
	mux.HandleFunc("POST /v1/orders/{owner}/{id}/take", handlers.Orders.TakeOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}", handlers.Orders.RemoveOrder)

	mux.HandleFunc("POST /v1/offers", handlers.Orders.SubmitOffer)
	mux.HandleFunc("GET /v1/offers/{owner}/{id}", handlers.Orders.GetOffer)
	mux.HandleFunc("POST /v1/offers/{owner}/{id}/take", handlers.Orders.TakeOffer)
	mux.HandleFunc("DELETE /v1/offers/{id}", handlers.Orders.RemoveOffer)

	mux.HandleFunc("POST /v1/auctions/british", handlers.Auctions.SubmitBritishAuction)
	mux.HandleFunc("GET /v1/auctions/british/{owner}/{id}", handlers.Auctions.GetBritishAuction)
	mux.HandleFunc("POST /v1/auctions/british/{owner}/{id}/bids", handlers.Auctions.BidBritishAuction)
	mux.HandleFunc("POST /v1/auctions/british/{owner}/{id}/redeem", handlers.Auctions.RedeemBritishAuction)
	mux.HandleFunc("DELETE /v1/auctions/british/{id}", handlers.Auctions.RemoveBritishAuction)

	mux.HandleFunc("POST /v1/auctions/dutch", handlers.Auctions.SubmitDutchAuction)
	mux.HandleFunc("GET /v1/auctions/dutch/{owner}/{id}", handlers.Auctions.GetDutchAuction)
	mux.HandleFunc("POST /v1/auctions/dutch/{owner}/{id}/bids", handlers.Auctions.BidDutchAuction)
	mux.HandleFunc("POST /v1/auctions/dutch/{owner}/{id}/redeem", handlers.Auctions.RedeemDutchAuction)
	mux.HandleFunc("DELETE /v1/auctions/dutch/{id}", handlers.Auctions.RemoveDutchAuction)

	mux.HandleFunc("POST /v1/classes", handlers.Assets.CreateClass)
	mux.HandleFunc("GET /v1/classes/{class}", handlers.Assets.GetClass)
	mux.HandleFunc("POST /v1/classes/{class}/tokens", handlers.Assets.Mint)
	mux.HandleFunc("GET /v1/classes/{class}/tokens/{token}", handlers.Assets.GetToken)
	mux.HandleFunc("PUT /v1/classes/{class}/tokens/{token}/royalty", handlers.Assets.UpdateTokenRoyalty)
	mux.HandleFunc("PUT /v1/classes/{class}/tokens/{token}/beneficiary", handlers.Assets.UpdateTokenRoyaltyBeneficiary)
	mux.HandleFunc("GET /v1/accounts/{account}/balance", handlers.Assets.GetBalance)
	mux.HandleFunc("GET /v1/accounts/{account}/tokens/{class}/{token}", handlers.Assets.GetHolding)

	mux.Handle("POST /v1/admin/categories", admin(handlers.Admin.CreateCategory))
	mux.Handle("PUT /v1/admin/params", admin(handlers.Admin.UpdateParams))
	mux.Handle("POST /v1/admin/whitelist", admin(handlers.Admin.AddWhitelist))
	mux.Handle("DELETE /v1/admin/whitelist/{account}", admin(handlers.Admin.RemoveWhitelist))
	mux.Handle("POST /v1/admin/deposits", admin(handlers.Admin.Deposit))

	if handlers.Events != nil {
		mux.HandleFunc("GET /v1/events", handlers.Events.ListEvents)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.SignatureAuth(middleware.SignatureConfig{
		TTL:    cfg.SignatureTTL,
		Guard:  guards.Replay,
		Logger: logger,
	})(h)
	if guards.Limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(guards.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
