package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
	"github.com/rl1809/inventory-reconciler/internal/core/service"
	"github.com/rl1809/inventory-reconciler/internal/port"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int, fields map[string]string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
		Fields:    fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// apiError is the transport-neutral view of a service error.
type apiError struct {
	Status  int
	Code    string
	Message string
	Fields  map[string]string
}

func classify(err error) apiError {
	var (
		persistErr *service.PersistError
		batchErr   *service.BatchValidationError
		validErr   *service.ValidationError
		fieldErr   *service.FieldError
	)

	switch {
	case errors.As(err, &persistErr):
		return apiError{http.StatusBadGateway, "PERSIST_FAILED", persistErr.Message, nil}
	case errors.As(err, &batchErr):
		return apiError{http.StatusUnprocessableEntity, "VALIDATION_FAILED", batchErr.Error(), batchErr.Reasons}
	case errors.As(err, &validErr):
		return apiError{http.StatusUnprocessableEntity, "QUANTITY_EXCEEDS_AVAILABLE", validErr.Reason,
			map[string]string{validErr.Item: validErr.Reason}}
	case errors.As(err, &fieldErr):
		return apiError{http.StatusUnprocessableEntity, "INVALID_FIELDS", fieldErr.Error(), fieldErr.Fields}
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrNegativeQuantity):
		return apiError{http.StatusBadRequest, "INVALID_QUANTITY", err.Error(), nil}
	case errors.Is(err, service.ErrInvalidFilter):
		return apiError{http.StatusBadRequest, "INVALID_FILTER", err.Error(), nil}
	case errors.Is(err, service.ErrMissingSession):
		return apiError{http.StatusBadRequest, "MISSING_SESSION", "missing " + sessionIDHeader + " header", nil}
	case errors.Is(err, service.ErrNoActiveWarehouse):
		return apiError{http.StatusConflict, "NO_ACTIVE_WAREHOUSE", "Please select a warehouse first", nil}
	case errors.Is(err, service.ErrWarehouseNotFound):
		return apiError{http.StatusNotFound, "WAREHOUSE_NOT_FOUND", err.Error(), nil}
	case errors.Is(err, service.ErrItemNotFound):
		return apiError{http.StatusNotFound, "ITEM_NOT_FOUND", err.Error(), nil}
	case errors.Is(err, service.ErrOrderNotFound):
		return apiError{http.StatusNotFound, "ORDER_NOT_FOUND", err.Error(), nil}
	case errors.Is(err, service.ErrStaleSnapshot):
		return apiError{http.StatusConflict, "STALE_SNAPSHOT", err.Error(), nil}
	case errors.Is(err, service.ErrDuplicateRequest):
		return apiError{http.StatusConflict, "DUPLICATE_REQUEST", "duplicate request", nil}
	case errors.Is(err, service.ErrTransferInProgress):
		return apiError{http.StatusConflict, "TRANSFER_IN_PROGRESS", err.Error(), nil}
	case errors.Is(err, domain.ErrInvalidDate):
		return apiError{http.StatusBadGateway, "INVALID_STORE_DATA", err.Error(), nil}
	case errors.Is(err, port.ErrNotFound):
		return apiError{http.StatusNotFound, "NOT_FOUND", err.Error(), nil}
	case errors.Is(err, port.ErrRejected):
		return apiError{http.StatusUnprocessableEntity, "STORE_REJECTED", err.Error(), nil}
	case errors.Is(err, port.ErrStoreUnavailable):
		return apiError{http.StatusBadGateway, "STORE_UNAVAILABLE", "store unavailable", nil}
	default:
		return apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", nil}
	}
}
