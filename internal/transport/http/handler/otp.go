package handler

import (
	"encoding/json"
	"net/http"

	"github.com/festhive-otp/internal/application/verification"
	"github.com/festhive-otp/internal/domain"
	"github.com/festhive-otp/internal/pkg/validate"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 4 << 10

// OTPHandler handles the request, resend and verify actions of the OTP flow.
type OTPHandler struct {
	svc verification.Service
}

func NewOTPHandler(svc verification.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

func (h *OTPHandler) Action(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	switch action := chi.URLParam(r, "action"); action {
	case "request", "resend":
		var req domain.RequestOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Identity = domain.NormalizeIdentity(req.Identity)
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		res, err := h.svc.Request(r.Context(), req.Identity, action == "resend")
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case "verify":
		var req domain.VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Identity = domain.NormalizeIdentity(req.Identity)
		if err := validate.Struct(&req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		res, err := h.svc.Confirm(r.Context(), req.Identity, req.Code)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
