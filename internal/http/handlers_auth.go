package httpx

import (
	"errors"
	"net/http"

	"github.com/ark074/SecureWipe3/internal/service"
)

// AuthHandlers provides HTTP handlers for operator authentication.
type AuthHandlers struct {
	Svc *service.AuthService
}

// Login exchanges the operator PIN for a bearer token.
// POST /api/login {"pin": "..."}.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.Login(r.Context(), req.PIN)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPIN) {
			WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_pin", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
