// Package api exposes the campaign core over HTTP and websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"stacks-fundraising/internal/campaign"
	"stacks-fundraising/internal/devnet"
	"stacks-fundraising/internal/domain"
	"stacks-fundraising/internal/executor"
	"stacks-fundraising/internal/network"
	"stacks-fundraising/internal/signer"
	"stacks-fundraising/internal/txbuilder"
	"stacks-fundraising/internal/wallet"
)

// Campaign is the service the handlers call.
type Campaign interface {
	Env() network.Environment
	Snapshot() (*campaign.Snapshot, error)
	Prices() (domain.PriceData, error)
	PurchaseStatus(ctx context.Context) (*domain.PurchaseStatus, error)
	Submit(ctx context.Context, action txbuilder.Action) executor.Outcome
}

// SignBridge receives verdicts for pending sign requests.
type SignBridge interface {
	Finish(id, txID string) error
	Cancel(id string) error
	Pending() []signer.SignRequest
}

// Options holds the optional collaborators of the router.
type Options struct {
	Bridge  SignBridge
	Wallets *devnet.Selector
	// WS serves the notification websocket.
	WS      http.Handler
	Metrics http.Handler
	// DownloadURL is released to addresses that purchased.
	DownloadURL string
}

// Server routes API requests.
type Server struct {
	svc  Campaign
	opts Options
}

// NewRouter returns the API router.
func NewRouter(svc Campaign, opts Options) *mux.Router {
	s := &Server{svc: svc, opts: opts}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	if opts.WS != nil {
		r.Handle("/ws", opts.WS)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(wallet.Middleware(s.devnetAddress))
	api.HandleFunc("/campaign", s.handleCampaign).Methods(http.MethodGet)
	api.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	api.HandleFunc("/purchase", s.handlePurchase).Methods(http.MethodGet)
	api.HandleFunc("/download", s.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/tx/{action}", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/sign", s.handlePendingSigns).Methods(http.MethodGet)
	api.HandleFunc("/sign/{id}/finish", s.handleSignFinish).Methods(http.MethodPost)
	api.HandleFunc("/sign/{id}/cancel", s.handleSignCancel).Methods(http.MethodPost)
	api.HandleFunc("/devnet/wallets", s.handleWallets).Methods(http.MethodGet)
	api.HandleFunc("/devnet/wallets/{label}", s.handleSelectWallet).Methods(http.MethodPost)
	return r
}

func (s *Server) devnetAddress() string {
	if s.opts.Wallets == nil || s.svc.Env() != network.Development {
		return ""
	}
	return s.opts.Wallets.Current().Address
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleCampaign(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	prices, err := s.svc.Prices()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// PurchaseResponse is the body of GET /api/purchase.
type PurchaseResponse struct {
	HasPurchased bool                   `json:"hasPurchased"`
	Status       *domain.PurchaseStatus `json:"status"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.PurchaseStatus(r.Context())
	switch {
	case errors.Is(err, domain.ErrPreconditionUnmet):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, PurchaseResponse{HasPurchased: domain.HasPurchased(status), Status: status})
}

// DownloadResponse is the body of GET /api/download.
type DownloadResponse struct {
	DownloadURL string `json:"downloadUrl"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if s.opts.DownloadURL == "" {
		writeError(w, http.StatusNotFound, errors.New("no download configured"))
		return
	}
	status, err := s.svc.PurchaseStatus(r.Context())
	switch {
	case errors.Is(err, domain.ErrPreconditionUnmet):
		writeError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err)
		return
	case !domain.HasPurchased(status):
		writeError(w, http.StatusForbidden, errors.New("no purchase found for address"))
		return
	}
	writeJSON(w, http.StatusOK, DownloadResponse{DownloadURL: s.opts.DownloadURL})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	action, ok := txbuilder.ParseAction(mux.Vars(r)["action"])
	if !ok {
		writeError(w, http.StatusNotFound, txbuilder.ErrUnknownAction)
		return
	}

	// The body is ignored: purchases are always priced from the campaign.
	out := s.svc.Submit(r.Context(), action)
	writeJSON(w, outcomeStatus(out), out)
}

func outcomeStatus(out executor.Outcome) int {
	if out.State != executor.Failed {
		return http.StatusOK
	}
	switch {
	case errors.Is(out.Err, domain.ErrPreconditionUnmet):
		return http.StatusBadRequest
	case errors.Is(out.Err, campaign.ErrSalePricesNotFound):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handlePendingSigns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Bridge == nil {
		writeJSON(w, http.StatusOK, []signer.SignRequest{})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Bridge.Pending())
}

// FinishRequest is the body of POST /api/sign/{id}/finish.
type FinishRequest struct {
	TxID string `json:"txId"`
}

func (s *Server) handleSignFinish(w http.ResponseWriter, r *http.Request) {
	if s.opts.Bridge == nil {
		writeError(w, http.StatusNotFound, signer.ErrUnknownRequest)
		return
	}
	var body FinishRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.TxID == "" {
		writeError(w, http.StatusBadRequest, errors.New("txId is required"))
		return
	}
	s.verdict(w, s.opts.Bridge.Finish(mux.Vars(r)["id"], body.TxID))
}

func (s *Server) handleSignCancel(w http.ResponseWriter, r *http.Request) {
	if s.opts.Bridge == nil {
		writeError(w, http.StatusNotFound, signer.ErrUnknownRequest)
		return
	}
	s.verdict(w, s.opts.Bridge.Cancel(mux.Vars(r)["id"]))
}

func (s *Server) verdict(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, signer.ErrUnknownRequest):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// WalletsResponse is the body of GET /api/devnet/wallets.
type WalletsResponse struct {
	Current devnet.Wallet   `json:"current"`
	Wallets []devnet.Wallet `json:"wallets"`
}

func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	if !s.devnetEnabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, WalletsResponse{
		Current: s.opts.Wallets.Current(),
		Wallets: s.opts.Wallets.Wallets(),
	})
}

func (s *Server) handleSelectWallet(w http.ResponseWriter, r *http.Request) {
	if !s.devnetEnabled(w) {
		return
	}
	selected, err := s.opts.Wallets.Select(mux.Vars(r)["label"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	log.WithFields(log.Fields{"wallet": selected.Label, "address": selected.Address}).Info("devnet wallet selected")
	writeJSON(w, http.StatusOK, selected)
}

func (s *Server) devnetEnabled(w http.ResponseWriter) bool {
	if s.opts.Wallets == nil || s.svc.Env() != network.Development {
		writeError(w, http.StatusNotFound, errors.New("devnet wallets are not available"))
		return false
	}
	return true
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: domain.ErrorKind(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}
