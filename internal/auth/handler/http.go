// Package handler exposes signup, the login steps and password recovery over HTTP JSON.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	accountdomain "smartbanker/backend/internal/account/domain"
	accountrepo "smartbanker/backend/internal/account/repository"
	"smartbanker/backend/internal/auth/domain"
	"smartbanker/backend/internal/auth/service"
	"smartbanker/backend/internal/mfa"
	"smartbanker/backend/internal/platform/httpjson"
)

// FlowMachine is the part of service.Machine the handler drives.
type FlowMachine interface {
	Signup(ctx context.Context, in service.SignupInput) (*accountdomain.Projection, error)
	Login(ctx context.Context, username, passwordDigest string) (*domain.Result, error)
	VerifyCode(ctx context.Context, token, code string) (*domain.Result, error)
	VerifyPin(ctx context.Context, token, pinDigest string) (*domain.Result, error)
	BeginRecovery(ctx context.Context, username, email string) (*domain.Result, error)
	ResetPassword(ctx context.Context, token, username, newPasswordDigest string) (*domain.Result, error)
	Flow(token string) (*domain.Flow, error)
}

// PinChecker verifies a PIN without a flow. Implemented by the ledger.
type PinChecker interface {
	VerifyPin(ctx context.Context, username, pinDigest string) error
}

// Handler serves the auth routes.
type Handler struct {
	machine FlowMachine
	pins    PinChecker
}

// NewHandler returns a Handler. pins serves /api/verify-pin calls that carry no flow token.
func NewHandler(machine FlowMachine, pins PinChecker) *Handler {
	return &Handler{machine: machine, pins: pins}
}

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Bank     string `json:"bank"`
	Account  string `json:"account"`
	Pin      string `json:"pin"`
	Email    string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type verifyOTPRequest struct {
	FlowToken string `json:"flowToken"`
	OTP       string `json:"otp"`
}

type verifyPinRequest struct {
	Username  string `json:"username"`
	Pin       string `json:"pin"`
	FlowToken string `json:"flowToken,omitempty"`
}

type recoveryStartRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type resetPasswordRequest struct {
	Username    string `json:"username"`
	NewPassword string `json:"newPassword"`
	FlowToken   string `json:"flowToken"`
}

var (
	signupSchema        = httpjson.MustSchema[signupRequest]()
	loginSchema         = httpjson.MustSchema[loginRequest]()
	verifyOTPSchema     = httpjson.MustSchema[verifyOTPRequest]()
	verifyPinSchema     = httpjson.MustSchema[verifyPinRequest]()
	recoveryStartSchema = httpjson.MustSchema[recoveryStartRequest]()
	resetPasswordSchema = httpjson.MustSchema[resetPasswordRequest]()
)

type flowResponse struct {
	httpjson.Envelope
	User      *accountdomain.Projection `json:"user,omitempty"`
	FlowToken string                    `json:"flowToken,omitempty"`
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/verify-otp", h.VerifyOTP).Methods(http.MethodPost)
	r.HandleFunc("/api/verify-pin", h.VerifyPin).Methods(http.MethodPost)
	r.HandleFunc("/api/recovery/start", h.StartRecovery).Methods(http.MethodPost)
	r.HandleFunc("/api/reset-password", h.ResetPassword).Methods(http.MethodPost)
}

// Signup creates an account.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	req, err := signupSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, err = h.machine.Signup(r.Context(), service.SignupInput{
		Username:       req.Username,
		PasswordDigest: req.Password,
		PinDigest:      req.Pin,
		Name:           req.Name,
		Age:            req.Age,
		Bank:           req.Bank,
		AccountNumber:  req.Account,
		Email:          req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpjson.OK(w, "Account created successfully!")
}

// Login checks the password and sends a login code.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := loginSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.machine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFlow(w, "Login successful!", res)
}

// VerifyOTP checks the one-time code of a login or recovery flow.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	req, err := verifyOTPSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.machine.VerifyCode(r.Context(), req.FlowToken, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFlow(w, "OTP verified!", res)
}

// VerifyPin checks a PIN. Without flowToken it is a plain check against the account; with one
// it advances the login or recovery flow.
func (h *Handler) VerifyPin(w http.ResponseWriter, r *http.Request) {
	req, err := verifyPinSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.FlowToken == "" {
		if err := h.pins.VerifyPin(r.Context(), req.Username, req.Pin); err != nil {
			writeError(w, r, err)
			return
		}
		httpjson.OK(w, "PIN verified!")
		return
	}
	flow, err := h.machine.Flow(req.FlowToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Username != "" && req.Username != flow.Username {
		writeError(w, r, service.ErrInvalidFlowState)
		return
	}
	res, err := h.machine.VerifyPin(r.Context(), req.FlowToken, req.Pin)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFlow(w, "PIN verified!", res)
}

// StartRecovery matches username and email and sends a recovery code.
func (h *Handler) StartRecovery(w http.ResponseWriter, r *http.Request) {
	req, err := recoveryStartSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.machine.BeginRecovery(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeFlow(w, "OTP sent to your registered email.", res)
}

// ResetPassword sets a new password at the end of a recovery flow.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	req, err := resetPasswordSchema.Decode(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.machine.ResetPassword(r.Context(), req.FlowToken, req.Username, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	httpjson.OK(w, "Password reset successfully!")
}

func writeFlow(w http.ResponseWriter, message string, res *domain.Result) {
	httpjson.JSON(w, http.StatusOK, flowResponse{
		Envelope:  httpjson.Envelope{Success: true, Message: message},
		User:      res.Account,
		FlowToken: res.Token,
	})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var dup *accountrepo.DuplicateError
	switch {
	case errors.As(err, &dup) && dup.Field == "email":
		httpjson.Error(w, http.StatusConflict, "Email already registered.")
	case errors.Is(err, accountrepo.ErrDuplicateIdentity):
		httpjson.Error(w, http.StatusConflict, "Username already exists.")
	case errors.Is(err, accountdomain.ErrUnderage):
		httpjson.Error(w, http.StatusBadRequest, "You must be at least 18 years old to register.")
	case errors.Is(err, accountdomain.ErrInvalidEmail):
		httpjson.Error(w, http.StatusBadRequest, "Invalid email address.")
	case errors.Is(err, accountdomain.ErrMissingField):
		httpjson.Error(w, http.StatusBadRequest, "All fields are required.")
	case errors.Is(err, httpjson.ErrValidation), errors.Is(err, service.ErrInvalidInput):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, accountrepo.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, service.ErrInvalidCredential):
		httpjson.Error(w, http.StatusUnauthorized, "Invalid username or password.")
	case errors.Is(err, service.ErrInvalidOrExpiredCode):
		httpjson.Error(w, http.StatusUnauthorized, "Invalid or expired OTP.")
	case errors.Is(err, accountdomain.ErrInvalidPin):
		httpjson.Error(w, http.StatusUnauthorized, "Incorrect PIN.")
	case errors.Is(err, service.ErrInvalidFlowState):
		httpjson.Error(w, http.StatusUnauthorized, "Session step is invalid or has expired. Please start again.")
	case errors.Is(err, mfa.ErrDeliveryFailed):
		slog.ErrorContext(r.Context(), "otp delivery failed", "path", r.URL.Path, "error", err)
		httpjson.Error(w, http.StatusBadGateway, "Failed to send OTP. Please try again.")
	default:
		slog.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		httpjson.Error(w, http.StatusInternalServerError, "Internal server error.")
	}
}
