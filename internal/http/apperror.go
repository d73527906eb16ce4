package httpx

import (
	"net/http"

	apperrors "github.com/ark074/SecureWipe3/internal/errors"
)

// statusForCode maps application error codes to HTTP statuses.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeSerialization:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeKeyLoad, apperrors.ErrCodeSigning, apperrors.ErrCodeCertificate:
		return http.StatusInternalServerError
	case apperrors.ErrCodeDelivery:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		// Client went away; 499 is conventional but non-standard.
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders an application error as a JSON response, mapping its
// code to an HTTP status.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	if code == "" {
		code = apperrors.ErrCodeInternal
	}
	WriteError(w, ErrorParams{Code: statusForCode(code), ErrCode: string(code), Err: err})
}
