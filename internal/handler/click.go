package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/catclicker/catclicker/internal/handler/dto"
	"github.com/catclicker/catclicker/internal/middleware"
	"github.com/catclicker/catclicker/internal/service"
)

// DefaultLeaderboardLimit is used when ?limit is missing or not a positive
// number.
const DefaultLeaderboardLimit = 10

const msgInvalidRequest = "Invalid request data"

// ClickHandler handles the game API.
type ClickHandler struct {
	svc    *service.ClickService
	logger *slog.Logger
}

// NewClickHandler creates a new ClickHandler.
func NewClickHandler(svc *service.ClickService, logger *slog.Logger) *ClickHandler {
	return &ClickHandler{
		svc:    svc,
		logger: logger,
	}
}

// Submit handles POST /api/clicks.
func (h *ClickHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitClicksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleDecodeError(w, err)
		return
	}

	res, err := h.svc.SubmitClicks(r.Context(), service.SubmitInput{
		CountryCode: req.CountryCode,
		CountryName: req.CountryName,
		Clicks:      req.Clicks,
		SessionID:   req.SessionID,
		UsingVPN:    req.UsingVPN,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSubmitClicksResponse(res))
}

// Stats handles GET /api/users/{sessionId}/stats.
func (h *ClickHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Stats(r.Context(), chi.URLParam(r, "sessionId"))
	writeJSON(w, http.StatusOK, dto.ToStatsResponse(st))
}

// TopCountries handles GET /api/countries/top.
func (h *ClickHandler) TopCountries(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	writeJSON(w, http.StatusOK, h.svc.TopCountries(r.Context(), limit))
}

// Country handles GET /api/countries/{code}.
func (h *ClickHandler) Country(w http.ResponseWriter, r *http.Request) {
	country, err := h.svc.Country(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToCountryResponse(country))
}

// Session handles GET /api/session.
func (h *ClickHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.SessionResponse{SessionID: h.svc.NewSessionID()})
}

// CountryInfo handles GET /api/country-info. It always answers 200.
func (h *ClickHandler) CountryInfo(w http.ResponseWriter, r *http.Request) {
	ip := middleware.ClientIP(r)
	info := h.svc.CountryInfo(r.Context(), ip)

	h.logger.Debug("country_info",
		"request_id", middleware.GetRequestID(r.Context()),
		"country_code", info.Code,
		"source", info.Source,
		"banned", info.Banned,
		"using_vpn", info.UsingVPN,
	)

	writeJSON(w, http.StatusOK, dto.ToCountryInfoResponse(info))
}

// handleDecodeError maps JSON decoding failures to 400/413 responses.
func (h *ClickHandler) handleDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &maxErr):
		h.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Message: msgInvalidRequest,
			Errors: []service.FieldError{{
				Field:   typeErr.Field,
				Message: "expected " + jsonKind(typeErr.Type.Kind()) + ", received " + typeErr.Value,
			}},
		})
	case errors.Is(err, io.EOF):
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Message: msgInvalidRequest,
			Errors:  []service.FieldError{{Field: "body", Message: "is required"}},
		})
	default:
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Message: msgInvalidRequest,
			Errors:  []service.FieldError{{Field: "body", Message: "malformed JSON"}},
		})
	}
}

func jsonKind(k reflect.Kind) string {
	switch k {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	default:
		return k.String()
	}
}

// handleServiceError maps service errors to HTTP responses.
func (h *ClickHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	var denied *service.DeniedError

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
			Message: msgInvalidRequest,
			Errors:  verr.Fields,
		})
	case errors.As(err, &denied):
		writeJSON(w, http.StatusForbidden, dto.DeniedResponse{
			Success:    false,
			Banned:     true,
			Message:    denied.Decision.Reason,
			DiscordURL: denied.Decision.SupportURL,
		})
	case errors.Is(err, service.ErrClicksOverflow):
		h.writeError(w, http.StatusUnprocessableEntity, "CLICKS_OVERFLOW", "Click total limit reached")
	case errors.Is(err, service.ErrCountryNotFound):
		writeJSON(w, http.StatusNotFound, dto.MessageResponse{Message: "Country not found"})
	default:
		h.logger.Error("internal_error",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
			"path", r.URL.Path,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *ClickHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
