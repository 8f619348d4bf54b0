// Package main is the entry point for the lending engine API, an HTTP
// boundary over the smart wallet and lending providers: market discovery,
// position reads, wallet creation and sponsored open/close flows.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ethereum-optimism/actions-sub002/internal/aggregate"
	"github.com/ethereum-optimism/actions-sub002/internal/chain"
	"github.com/ethereum-optimism/actions-sub002/internal/config"
	"github.com/ethereum-optimism/actions-sub002/internal/export"
	"github.com/ethereum-optimism/actions-sub002/internal/lend"
	"github.com/ethereum-optimism/actions-sub002/internal/lend/aave"
	"github.com/ethereum-optimism/actions-sub002/internal/lend/morpho"
	"github.com/ethereum-optimism/actions-sub002/internal/otel"
	"github.com/ethereum-optimism/actions-sub002/internal/signer"
	"github.com/ethereum-optimism/actions-sub002/internal/types"
	"github.com/ethereum-optimism/actions-sub002/internal/wallet"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server is the HTTP API over the lending providers and wallet factory.
type Server struct {
	config config.Config

	chains         *chain.Manager
	providers      map[types.Protocol]*lend.Provider
	walletProvider *wallet.SmartWalletProvider
	signer         signer.Signer

	server    *http.Server
	metrics   *serverMetrics
	rateLimit *rate.Limiter
	exporter  *export.Exporter
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	lendOperations  *prometheus.CounterVec
	walletDeploys   *prometheus.CounterVec
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lend_engine_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lend_engine_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		lendOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lend_engine_operations_total",
				Help: "Total number of lending operations submitted",
			},
			[]string{"protocol", "kind", "status"},
		),
		walletDeploys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lend_engine_wallet_deployments_total",
				Help: "Total number of per-chain wallet deployments",
			},
			[]string{"status"},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.lendOperations,
		m.walletDeploys,
	)

	return m
}

// main is the entry point for the application
func main() {
	_ = godotenv.Load()
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Configuration error: %v", err)
	}

	shutdownTracer := otel.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	server, err := NewServer(cfg)
	if err != nil {
		logrus.Fatalf("Startup error: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewServer wires the chain manager, protocol providers and wallet factory
// from configuration. Configuration problems fail here, before any request
// is served.
func NewServer(cfg config.Config) (*Server, error) {
	manager, err := chain.NewManager(cfg.File.Chains)
	if err != nil {
		return nil, fmt.Errorf("chain configuration: %w", err)
	}

	if cfg.SignerKey == "" {
		return nil, fmt.Errorf("SIGNER_KEY is required")
	}
	sgn, err := signer.NewLocalSignerFromHex(cfg.SignerKey)
	if err != nil {
		return nil, fmt.Errorf("signer key: %w", err)
	}

	providers := map[types.Protocol]*lend.Provider{}

	morphoAllowlist, err := marketConfigs(cfg.MarketsFor(types.ProtocolMorpho))
	if err != nil {
		return nil, err
	}
	if len(morphoAllowlist) > 0 {
		adapter := morpho.NewAdapter(manager, morpho.NewDataClient(cfg.MorphoAPIURL))
		p, err := lend.NewProvider(adapter, manager, morphoAllowlist)
		if err != nil {
			return nil, fmt.Errorf("morpho provider: %w", err)
		}
		providers[types.ProtocolMorpho] = p
	}

	aaveAllowlist, err := marketConfigs(cfg.MarketsFor(types.ProtocolAave))
	if err != nil {
		return nil, err
	}
	if len(aaveAllowlist) > 0 {
		adapter := aave.NewAdapter(manager, aaveAllowlist)
		p, err := lend.NewProvider(adapter, manager, aaveAllowlist)
		if err != nil {
			return nil, fmt.Errorf("aave provider: %w", err)
		}
		providers[types.ProtocolAave] = p
	}

	lendProviders := make([]*lend.Provider, 0, len(providers))
	for _, p := range providers {
		lendProviders = append(lendProviders, p)
	}

	walletProvider := wallet.NewSmartWalletProvider(
		wallet.NetworkFromManager(manager),
		lendProviders,
		cfg.AttributionSuffix,
	)

	logrus.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"chains":    len(cfg.File.Chains),
		"markets":   len(cfg.File.Markets),
		"protocols": len(providers),
	}).Info("Server initialized")

	exporter, err := export.NewExporter(export.ExporterConfig{
		Enabled:        cfg.WebhookURL != "",
		ExportInterval: cfg.ExportInterval,
		WebhookURL:     cfg.WebhookURL,
		WebhookAPIKey:  cfg.WebhookAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("event exporter: %w", err)
	}

	return &Server{
		config:         cfg,
		chains:         manager,
		providers:      providers,
		walletProvider: walletProvider,
		signer:         sgn,
		metrics:        registerMetrics(),
		rateLimit:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		exporter:       exporter,
	}, nil
}

// marketConfigs resolves config file market entries into typed allowlist
// entries, failing on unknown asset symbols.
func marketConfigs(entries []config.MarketEntry) ([]types.MarketConfig, error) {
	out := make([]types.MarketConfig, 0, len(entries))
	for _, e := range entries {
		asset, ok := types.LookupAsset(e.Asset)
		if !ok {
			return nil, fmt.Errorf("market %s: unknown asset %q", e.Name, e.Asset)
		}
		out = append(out, types.MarketConfig{
			ID:       types.MarketID{Address: common.HexToAddress(e.Address), ChainID: e.ChainID},
			Name:     e.Name,
			Asset:    asset,
			Protocol: types.Protocol(strings.ToLower(e.Protocol)),
		})
	}
	return out, nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/v1/markets", s.instrument("markets", s.handleMarkets))
	mux.HandleFunc("/v1/market", s.instrument("market", s.handleMarket))
	mux.HandleFunc("/v1/position", s.instrument("position", s.handlePosition))
	mux.HandleFunc("/v1/lend/open", s.instrument("lend_open", s.handleLendOpen))
	mux.HandleFunc("/v1/lend/close", s.instrument("lend_close", s.handleLendClose))
	mux.HandleFunc("/v1/wallets", s.instrument("wallets", s.handleWalletCreate))
	mux.HandleFunc("/v1/wallets/address", s.instrument("wallet_address", s.handleWalletAddress))

	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}
	s.exporter.Stop()

	logrus.Info("Server stopped")
}

// instrument wraps a handler with rate limiting, request IDs, timing and
// request counting.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)

		if !s.rateLimit.Allow() {
			s.errorResponse(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			s.metrics.requestCounter.WithLabelValues(route, "429").Inc()
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)

		s.metrics.requestCounter.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		s.metrics.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"route":      route,
			"status":     sw.status,
			"latency_ms": time.Since(start).Milliseconds(),
		}).Debug("Request handled")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	protocols := make([]string, 0, len(s.providers))
	for p := range s.providers {
		protocols = append(protocols, string(p))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "operational",
		"uptime":    time.Since(startTime).String(),
		"chains":    s.chains.SupportedChains(),
		"protocols": protocols,
	})
}

// handleMarkets lists the allowlisted markets for a protocol with live data,
// optionally filtered by chain and asset symbol.
func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	provider, ok := s.provider(w, r.URL.Query().Get("protocol"))
	if !ok {
		return
	}

	var filter lend.MarketFilter
	if raw := r.URL.Query().Get("chainId"); raw != "" {
		chainID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid chainId")
			return
		}
		filter.ChainID = &chainID
	}
	if symbol := r.URL.Query().Get("asset"); symbol != "" {
		asset, ok := types.LookupAsset(symbol)
		if !ok {
			s.errorResponse(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown asset %q", symbol))
			return
		}
		filter.Asset = &asset
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	markets, err := provider.GetMarkets(ctx, filter)
	if err != nil {
		s.lendError(w, err)
		return
	}
	views := make([]marketView, 0, len(markets))
	for i := range markets {
		views = append(views, newMarketView(&markets[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"markets": views,
		"summary": aggregate.Summarize(markets),
	})
}

// handleMarket returns a live snapshot of one market.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	provider, ok := s.provider(w, r.URL.Query().Get("protocol"))
	if !ok {
		return
	}
	marketID, ok := s.marketID(w, r.URL.Query().Get("address"), r.URL.Query().Get("chainId"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	market, err := provider.GetMarket(ctx, marketID)
	if err != nil {
		s.lendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newMarketView(market))
}

// handlePosition returns a wallet's position in one market.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	provider, ok := s.provider(w, r.URL.Query().Get("protocol"))
	if !ok {
		return
	}
	marketID, ok := s.marketID(w, r.URL.Query().Get("market"), r.URL.Query().Get("chainId"))
	if !ok {
		return
	}
	rawWallet := r.URL.Query().Get("wallet")
	if !common.IsHexAddress(rawWallet) {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid wallet address")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	position, err := provider.GetPosition(ctx, common.HexToAddress(rawWallet), &marketID)
	if err != nil {
		s.lendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newPositionView(position))
}

// lendRequest is the body for open and close position calls. Amount is a
// human-readable decimal string. WalletNonce selects the server-signed smart
// account to act from.
type lendRequest struct {
	Protocol    string `json:"protocol"`
	ChainID     uint64 `json:"chainId"`
	Market      string `json:"market"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	WalletNonce uint64 `json:"walletNonce"`
}

func (s *Server) handleLendOpen(w http.ResponseWriter, r *http.Request) {
	s.handleLend(w, r, types.LendOpenPosition)
}

func (s *Server) handleLendClose(w http.ResponseWriter, r *http.Request) {
	s.handleLend(w, r, types.LendClosePosition)
}

func (s *Server) handleLend(w http.ResponseWriter, r *http.Request, kind types.LendTransactionKind) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req lendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	provider, ok := s.provider(w, req.Protocol)
	if !ok {
		return
	}
	marketID, ok := s.marketID(w, req.Market, strconv.FormatUint(req.ChainID, 10))
	if !ok {
		return
	}
	asset, ok := types.LookupAsset(req.Asset)
	if !ok {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown asset %q", req.Asset))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid amount %q", req.Amount))
		return
	}

	wlt, err := s.serverWallet(req.WalletNonce)
	if err != nil {
		s.lendError(w, err)
		return
	}
	ns, err := wlt.Lend(provider.Protocol())
	if err != nil {
		s.lendError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	var (
		hash   common.Hash
		lendTx *types.LendTransaction
	)
	switch kind {
	case types.LendOpenPosition:
		hash, lendTx, err = ns.OpenPosition(ctx, lend.OpenPositionParams{
			Amount:   amount,
			Asset:    asset,
			MarketID: marketID,
		})
	default:
		hash, lendTx, err = ns.ClosePosition(ctx, lend.ClosePositionParams{
			Amount:   amount,
			Asset:    &asset,
			MarketID: marketID,
		})
	}
	if err != nil {
		s.metrics.lendOperations.WithLabelValues(req.Protocol, string(kind), "error").Inc()
		s.lendError(w, err)
		return
	}
	s.metrics.lendOperations.WithLabelValues(req.Protocol, string(kind), "success").Inc()
	s.exporter.Record(export.OperationEvent{
		Kind:       string(kind),
		Protocol:   req.Protocol,
		ChainID:    marketID.ChainID,
		Market:     marketID.Address.Hex(),
		Amount:     lendTx.Amount.String(),
		UserOpHash: hash.Hex(),
		OccurredAt: time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userOpHash": hash.Hex(),
		"amount":     lendTx.Amount.String(),
		"asset":      lendTx.AssetAddress.Hex(),
		"marketId":   lendTx.MarketID,
		"apy":        lendTx.APY,
		"kind":       lendTx.Transactions.Kind,
	})
}

// serverWallet builds the signer-owned smart account for a nonce. The
// account address is deterministic, so repeated calls agree.
func (s *Server) serverWallet(nonce uint64) (*wallet.SmartWallet, error) {
	lendProviders := make([]*lend.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		lendProviders = append(lendProviders, p)
	}
	return wallet.NewSmartWallet(wallet.SmartWalletConfig{
		Network:           wallet.NetworkFromManager(s.chains),
		Signer:            s.signer,
		Nonce:             new(big.Int).SetUint64(nonce),
		AttributionSuffix: s.config.AttributionSuffix,
		LendProviders:     lendProviders,
	})
}

// walletCreateRequest is the body for wallet creation. ChainIDs defaults to
// every configured chain.
type walletCreateRequest struct {
	Nonce    uint64   `json:"nonce"`
	ChainIDs []uint64 `json:"chainIds"`
}

func (s *Server) handleWalletCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}
	var req walletCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	result, err := s.walletProvider.CreateWallet(ctx, wallet.CreateWalletParams{
		Signer:             s.signer,
		Nonce:              new(big.Int).SetUint64(req.Nonce),
		DeploymentChainIDs: req.ChainIDs,
	})
	if err != nil {
		s.lendError(w, err)
		return
	}
	addr, err := result.Wallet.Address(ctx)
	if err != nil {
		s.lendError(w, err)
		return
	}

	deployments := make([]map[string]interface{}, 0, len(result.Deployments))
	for _, d := range result.Deployments {
		entry := map[string]interface{}{
			"chainId": d.ChainID,
			"success": d.Success,
		}
		if d.Success {
			s.metrics.walletDeploys.WithLabelValues("success").Inc()
			s.exporter.Record(export.OperationEvent{
				Kind:       "walletDeployment",
				ChainID:    d.ChainID,
				Wallet:     addr.Hex(),
				OccurredAt: time.Now().UTC(),
			})
		} else {
			s.metrics.walletDeploys.WithLabelValues("error").Inc()
			entry["error"] = d.Err.Error()
		}
		deployments = append(deployments, entry)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":     addr.Hex(),
		"deployments": deployments,
	})
}

func (s *Server) handleWalletAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	nonce := uint64(0)
	if raw := r.URL.Query().Get("nonce"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid nonce")
			return
		}
		nonce = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	owners := []wallet.Owner{wallet.AddressOwner(s.signer.Address())}
	addr, err := s.walletProvider.GetWalletAddress(ctx, owners, new(big.Int).SetUint64(nonce))
	if err != nil {
		s.lendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

// provider resolves the protocol query parameter to a configured provider,
// writing the error response itself on failure.
func (s *Server) provider(w http.ResponseWriter, raw string) (*lend.Provider, bool) {
	p, ok := s.providers[types.Protocol(strings.ToLower(raw))]
	if !ok {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("unknown or unconfigured protocol %q", raw))
		return nil, false
	}
	return p, true
}

func (s *Server) marketID(w http.ResponseWriter, rawAddress, rawChainID string) (types.MarketID, bool) {
	if !common.IsHexAddress(rawAddress) {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid market address")
		return types.MarketID{}, false
	}
	chainID, err := strconv.ParseUint(rawChainID, 10, 64)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "bad_request", "invalid chainId")
		return types.MarketID{}, false
	}
	return types.MarketID{Address: common.HexToAddress(rawAddress), ChainID: chainID}, true
}

// lendError maps domain errors to HTTP statuses: caller mistakes are 4xx,
// upstream protocol and bundler failures are 502.
func (s *Server) lendError(w http.ResponseWriter, err error) {
	var (
		configErr       *lend.ConfigurationError
		walletConfigErr *wallet.ConfigurationError
		validationErr   *lend.ValidationError
		notAllowedErr   *lend.MarketNotAllowedError
		mismatchErr     *lend.AssetMismatchError
		chainErr        *chain.UnsupportedChainError
		protocolErr     *lend.ProtocolError
		sendErr         *wallet.SendError
	)
	switch {
	case errors.As(err, &validationErr):
		s.errorResponse(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.As(err, &configErr), errors.As(err, &walletConfigErr):
		s.errorResponse(w, http.StatusBadRequest, "configuration_error", err.Error())
	case errors.As(err, &chainErr):
		s.errorResponse(w, http.StatusBadRequest, "unsupported_chain", err.Error())
	case errors.As(err, &notAllowedErr):
		s.errorResponse(w, http.StatusForbidden, "market_not_allowed", err.Error())
	case errors.As(err, &mismatchErr):
		s.errorResponse(w, http.StatusBadRequest, "asset_mismatch", err.Error())
	case errors.Is(err, wallet.ErrUnsupportedOperation):
		s.errorResponse(w, http.StatusBadRequest, "unsupported_operation", err.Error())
	case errors.As(err, &protocolErr), errors.As(err, &sendErr):
		s.errorResponse(w, http.StatusBadGateway, "upstream_error", err.Error())
	default:
		s.errorResponse(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// errorResponse writes a structured error body.
func (s *Server) errorResponse(w http.ResponseWriter, statusCode int, code, message string) {
	logrus.Warnf("Request failed (%d %s): %s", statusCode, code, message)
	writeJSON(w, statusCode, map[string]string{
		"error":   code,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
