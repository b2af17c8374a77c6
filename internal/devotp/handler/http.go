// Package handler serves the dev-only OTP lookup. It is registered only when dev OTP mode is on
// and APP_ENV is not production.
package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"smartbanker/backend/internal/devotp"
	"smartbanker/backend/internal/platform/httpjson"
)

const devOTPNote = "DEV MODE ONLY"

// Handler reads codes from a devotp.Store.
type Handler struct {
	store devotp.Store
}

// NewHandler returns a Handler over store.
func NewHandler(store devotp.Store) *Handler {
	return &Handler{store: store}
}

type otpResponse struct {
	httpjson.Envelope
	OTP  string `json:"otp"`
	Note string `json:"note"`
}

// Register mounts GET /dev/otp/{username} on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/dev/otp/{username}", h.GetOTP).Methods(http.MethodGet)
}

// GetOTP returns the live code for the username, or 404 if missing or expired.
func (h *Handler) GetOTP(w http.ResponseWriter, r *http.Request) {
	otp, ok := h.store.Get(r.Context(), mux.Vars(r)["username"])
	if !ok {
		httpjson.Error(w, http.StatusNotFound, "OTP not found or expired")
		return
	}
	httpjson.JSON(w, http.StatusOK, otpResponse{
		Envelope: httpjson.Envelope{Success: true},
		OTP:      otp,
		Note:     devOTPNote,
	})
}
