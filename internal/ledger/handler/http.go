// Package handler exposes the ledger over HTTP JSON.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	accountdomain "smartbanker/backend/internal/account/domain"
	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/ledger/service"
	"smartbanker/backend/internal/persistence"
	"smartbanker/backend/internal/platform/httpjson"
)

// Ledger is the part of service.Ledger the handler uses.
type Ledger interface {
	Deposit(ctx context.Context, username string, amount decimal.Decimal) (*accountdomain.Projection, error)
	Withdraw(ctx context.Context, username string, amount decimal.Decimal) (*accountdomain.Projection, error)
	Account(ctx context.Context, username string) (*accountdomain.Projection, error)
}

// Renderer renders account statements.
type Renderer interface {
	Render(w io.Writer, p *accountdomain.Projection, at time.Time) error
	ContentType() string
	Filename(username string, at time.Time) string
}

// Handler serves the ledger routes.
type Handler struct {
	ledger    Ledger
	statement Renderer
	nowF      func() time.Time
}

// NewHandler returns a Handler. statement may be nil; then the statement route is not mounted.
func NewHandler(ledger Ledger, statement Renderer) *Handler {
	return &Handler{ledger: ledger, statement: statement, nowF: time.Now}
}

type amountRequest struct {
	Username string          `json:"username"`
	Amount   decimal.Decimal `json:"amount"`
}

var amountSchema = httpjson.MustSchema[amountRequest]()

type accountResponse struct {
	httpjson.Envelope
	User *accountdomain.Projection `json:"user"`
}

// Register mounts the ledger routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/user-data/{username}", h.UserData).Methods(http.MethodGet)
	r.HandleFunc("/api/deposit", h.Deposit).Methods(http.MethodPost)
	r.HandleFunc("/api/withdraw", h.Withdraw).Methods(http.MethodPost)
	if h.statement != nil {
		r.HandleFunc("/api/statement/{username}", h.Statement).Methods(http.MethodGet)
	}
}

// UserData returns the sanitized account.
func (h *Handler) UserData(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Account(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpjson.JSON(w, http.StatusOK, accountResponse{Envelope: httpjson.Envelope{Success: true}, User: p})
}

// Deposit credits the account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Deposit, "Deposit successful!")
}

// Withdraw debits the account.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Withdraw, "Withdrawal successful!")
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, string, decimal.Decimal) (*accountdomain.Projection, error), message string) {
	req, err := amountSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := op(r.Context(), req.Username, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpjson.JSON(w, http.StatusOK, accountResponse{Envelope: httpjson.Envelope{Success: true, Message: message}, User: p})
}

// Statement returns the plain-text statement as an attachment.
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	p, err := h.ledger.Account(r.Context(), username)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.nowF()
	w.Header().Set("Content-Type", h.statement.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.statement.Filename(p.Username, now)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := h.statement.Render(w, p, now); err != nil {
		slog.ErrorContext(r.Context(), "render statement failed", "username", username, "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpjson.ErrValidation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidAmount):
		httpjson.Error(w, http.StatusBadRequest, "Invalid amount.")
	case errors.Is(err, service.ErrInsufficientFunds):
		httpjson.Error(w, http.StatusBadRequest, "Insufficient balance.")
	case errors.Is(err, service.ErrPolicyDenied):
		httpjson.Error(w, http.StatusForbidden, "Operation not permitted.")
	case errors.Is(err, accountrepo.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, persistence.ErrStorageFailure):
		slog.ErrorContext(r.Context(), "ledger storage failure", "path", r.URL.Path, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "Could not save the transaction. Please try again.")
	default:
		slog.ErrorContext(r.Context(), "ledger request failed", "path", r.URL.Path, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error.")
	}
}
