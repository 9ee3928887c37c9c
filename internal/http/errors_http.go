package httpx

import (
	"errors"
	"net/http"

	"github.com/zecrep/aggregator/internal/data"
	apperrors "github.com/zecrep/aggregator/internal/errors"
	"github.com/zecrep/aggregator/internal/domain/model"
)

// WriteServiceError maps service and data layer errors onto HTTP responses.
func WriteServiceError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error":   "validation",
			"field":   ve.Field,
			"message": ve.Message,
		})
		return
	}

	switch {
	case errors.Is(err, data.ErrJobNotFound),
		errors.Is(err, data.ErrTierNotFound),
		errors.Is(err, data.ErrSubscriptionNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
		return
	case errors.Is(err, data.ErrSubscriptionExists):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "conflict", Err: err})
		return
	}

	mapped := apperrors.MapDBError(err)
	var appErr *apperrors.AppError
	if errors.As(mapped, &appErr) {
		WriteError(w, ErrorParams{Code: statusForCode(appErr.Code), ErrCode: string(appErr.Code), Err: appErr})
		return
	}

	WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err})
}

func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return 499 // client closed request
	default:
		return http.StatusInternalServerError
	}
}
