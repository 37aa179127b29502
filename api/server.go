// Package api exposes settlement and ledger reads over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bitfsorg/libmarket-go/auth"
	"github.com/bitfsorg/libmarket-go/ledger"
	"github.com/bitfsorg/libmarket-go/settlement"
)

var log = logging.Logger("api")

const maxBodyBytes = 1 << 20

// Settler runs settlements and applies signed ledger grants.
// *settlement.Engine implements it.
type Settler interface {
	IssueAndSell(ctx context.Context, req settlement.Request) (*settlement.Receipt, error)
	TransferAndSell(ctx context.Context, req settlement.Request) (*settlement.Receipt, error)

	Approve(ctx context.Context, a *auth.ApprovalAuthorization) error
	Deposit(ctx context.Context, d *auth.DepositAuthorization) error
	RegisterCollection(ctx context.Context, c *auth.CollectionAuthorization) error
}

// Server serves the HTTP API.
type Server struct {
	settler  Settler
	ledger   ledger.Ledger
	gatherer prometheus.Gatherer
}

// NewServer creates a Server. A nil gatherer disables /metrics.
func NewServer(s Settler, l ledger.Ledger, g prometheus.Gatherer) *Server {
	return &Server{settler: s, ledger: l, gatherer: g}
}

// Routes returns the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(api chi.Router) {
		api.Post("/settlements/issue", s.handleSettle(settlement.KindIssue))
		api.Post("/settlements/transfer", s.handleSettle(settlement.KindTransfer))
		api.Post("/collections", s.handleRegisterCollection)
		api.Post("/collections/{collection}/approvals", s.handleApprove)
		api.Get("/collections/{collection}/tokens/{id}", s.handleToken)
		api.Post("/accounts/{addr}/deposits", s.handleDeposit)
		api.Get("/accounts/{addr}/balance", s.handleBalance)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Infow("api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleSettle(kind settlement.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var body SettleRequest
		if err := readJSON(r, &body); err != nil {
			writeError(w, r, http.StatusBadRequest, "BadBody", err.Error())
			return
		}
		req, err := body.Request()
		if err != nil {
			writeSettlementError(w, r, settlement.InvalidRequest(err))
			return
		}

		var receipt *settlement.Receipt
		if kind == settlement.KindIssue {
			receipt, err = s.settler.IssueAndSell(r.Context(), req)
		} else {
			receipt, err = s.settler.TransferAndSell(r.Context(), req)
		}
		if err != nil {
			writeSettlementError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, FromReceipt(receipt))
	}
}

func (s *Server) handleRegisterCollection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body Collection
	if err := readJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadBody", err.Error())
		return
	}
	c, err := body.Authorization()
	if err != nil {
		writeSettlementError(w, r, settlement.InvalidRequest(err))
		return
	}
	if err := s.settler.RegisterCollection(r.Context(), c); err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"collection": c.Collection.Hex(),
		"owner":      c.Owner.Hex(),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	collection, err := ParseAddress("collection", chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body Approval
	if err := readJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadBody", err.Error())
		return
	}
	a, err := body.Authorization(collection)
	if err != nil {
		writeSettlementError(w, r, settlement.InvalidRequest(err))
		return
	}
	if err := s.settler.Approve(r.Context(), a); err != nil {
		writeSettlementError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection.Hex(),
		"owner":      a.Owner.Hex(),
		"spender":    a.Spender.Hex(),
		"approved":   a.Approved,
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	account, err := ParseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body Deposit
	if err := readJSON(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "BadBody", err.Error())
		return
	}
	d, err := body.Authorization(account)
	if err != nil {
		writeSettlementError(w, r, settlement.InvalidRequest(err))
		return
	}
	if err := s.settler.Deposit(r.Context(), d); err != nil {
		writeSettlementError(w, r, err)
		return
	}
	s.handleBalance(w, r)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	collection, err := ParseAddress("collection", chi.URLParam(r, "collection"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	id, err := ParseAmount("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	var tok *ledger.Token
	err = s.ledger.View(r.Context(), func(tx ledger.Tx) error {
		var err error
		tok, err = tx.Token(collection, id)
		return err
	})
	if errors.Is(err, ledger.ErrTokenNotFound) {
		writeError(w, r, http.StatusNotFound, "NotFound", err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "LedgerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &Token{
		Collection: tok.Collection.Hex(),
		TokenID:    tok.ID.String(),
		Owner:      tok.Owner.Hex(),
		URI:        tok.URI,
		Royalty:    FromRoyaltyInfo(tok.Royalty),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := ParseAddress("addr", chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}
	var balance string
	err = s.ledger.View(r.Context(), func(tx ledger.Tx) error {
		b, err := tx.Balance(addr)
		if err != nil {
			return err
		}
		balance = b.String()
		return nil
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "LedgerError", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": addr.Hex(), "balance": balance})
}

// statusFor maps a settlement code to an HTTP status.
func statusFor(code settlement.Code) int {
	switch code {
	case settlement.CodeInsufficientPayment:
		return http.StatusPaymentRequired
	case settlement.CodeMintExpired, settlement.CodeMintSignatureInvalid,
		settlement.CodeListingExpired, settlement.CodeListingInvalid,
		settlement.CodeOperatorExpired, settlement.CodeOperatorSignatureInvalid,
		settlement.CodeGrantExpired, settlement.CodeGrantSignatureInvalid,
		settlement.CodeNotApproved:
		return http.StatusForbidden
	case settlement.CodeAlreadyIssued, settlement.CodeAuthorizationReplayed,
		settlement.CodeCollectionExists:
		return http.StatusConflict
	case settlement.CodeOperatorUnavailable:
		return http.StatusServiceUnavailable
	case settlement.CodeTransferFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugw("write response", "error", err)
	}
}

// writeSettlementError reports err under its settlement code.
func writeSettlementError(w http.ResponseWriter, r *http.Request, err error) {
	code := settlement.CodeOf(err)
	if code == "" {
		code = settlement.CodeInvalid
	}
	writeError(w, r, statusFor(code), string(code), err.Error())
}

// writeError writes the error body under the id RequestID stamped on the
// request.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	id := middleware.GetReqID(r.Context())
	if id == "" {
		id = "req_" + uuid.NewString()
	}
	writeJSON(w, status, map[string]any{
		"request_id": id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
