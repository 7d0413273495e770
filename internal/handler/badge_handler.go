package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"payshield-service/internal/models"
	"payshield-service/internal/service"
	"payshield-service/internal/util"
)

const maxBodyBytes = 1 << 20

// BadgeHandler exposes enrollment, verification and mailbox token storage.
type BadgeHandler struct {
	enrollment   *service.EnrollmentService
	verification *service.VerificationService
	tokens       *service.TokenService
	logger       *zap.Logger
}

func NewBadgeHandler(services *service.ServiceFactory, logger *zap.Logger) *BadgeHandler {
	return &BadgeHandler{
		enrollment:   services.EnrollmentService(),
		verification: services.VerificationService(),
		tokens:       services.TokenService(),
		logger:       logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

// RegisterRoutes registers the badge routes
func (h *BadgeHandler) RegisterRoutes(router chi.Router) {
	router.Route("/vendors", func(r chi.Router) {
		r.Post("/", h.EnrollVendor)
		r.Get("/{email}", h.GetVendor)
		r.Get("/{email}/verifications", h.ListVerifications)
	})
	router.Route("/verifications", func(r chi.Router) {
		r.Post("/", h.RecordVerification)
		r.Get("/{attemptID}", h.GetVerification)
	})
	router.Route("/oauth/tokens", func(r chi.Router) {
		r.Put("/", h.SaveToken)
		r.Get("/{email}", h.GetToken)
	})
}

// EnrollVendor handles POST /vendors
func (h *BadgeHandler) EnrollVendor(w http.ResponseWriter, r *http.Request) {
	var req service.EnrollRequest
	if !h.decode(w, r, &req) {
		return
	}

	profile, err := h.enrollment.Enroll(r.Context(), req)
	if err != nil {
		h.respondWithError(w, err, "Failed to enroll vendor")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, successResponse(profile, "Vendor enrolled"))
}

// GetVendor handles GET /vendors/{email}
func (h *BadgeHandler) GetVendor(w http.ResponseWriter, r *http.Request) {
	profile, err := h.verification.VendorForVerification(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.respondWithError(w, err, "Cannot verify vendor")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(profile, ""))
}

// ListVerifications handles GET /vendors/{email}/verifications?limit=N
func (h *BadgeHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.respondWithError(w, service.ErrInvalidInput, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	history, err := h.verification.History(r.Context(), chi.URLParam(r, "email"), limit)
	if err != nil {
		h.respondWithError(w, err, "Failed to load verification history")
		return
	}
	if history == nil {
		history = []*models.VerificationAttempt{}
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(history, ""))
}

// RecordVerification handles POST /verifications
func (h *BadgeHandler) RecordVerification(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req service.RecordAttemptRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IPAddress == nil {
		if ip := remoteIP(r.RemoteAddr); ip != "" {
			req.IPAddress = &ip
		}
	}
	if req.UserAgent == nil && r.UserAgent() != "" {
		ua := r.UserAgent()
		req.UserAgent = &ua
	}

	attempt, err := h.verification.RecordAttempt(r.Context(), req)
	if err != nil {
		h.respondWithError(w, err, "Failed to record verification attempt")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, successResponse(attempt, "Verification attempt recorded"))
	h.logger.Debug("verification attempt recorded via HTTP",
		util.String("attempt_id", attempt.ID),
		util.Bool("success", attempt.Success),
		util.Duration("duration", time.Since(start)))
}

// GetVerification handles GET /verifications/{attemptID}
func (h *BadgeHandler) GetVerification(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.verification.Attempt(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.respondWithError(w, err, "Failed to load verification attempt")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(attempt, ""))
}

// SaveToken handles PUT /oauth/tokens
func (h *BadgeHandler) SaveToken(w http.ResponseWriter, r *http.Request) {
	var token models.OAuthToken
	if !h.decode(w, r, &token) {
		return
	}
	if err := h.tokens.Save(r.Context(), &token); err != nil {
		h.respondWithError(w, err, "Failed to save oauth token")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "OAuth token saved"))
}

// GetToken handles GET /oauth/tokens/{email}
func (h *BadgeHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.AccessToken(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.respondWithError(w, err, "No usable oauth token")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(token, ""))
}

func (h *BadgeHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.logger.Warn("invalid request body", util.ErrorField(err), util.String("path", r.URL.Path))
		h.respondWithJSON(w, http.StatusBadRequest, Response{Error: "invalid request body", Message: err.Error()})
		return false
	}
	return true
}

func (h *BadgeHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError reports only the public sentinel; wrapped storage detail goes to the log.
func (h *BadgeHandler) respondWithError(w http.ResponseWriter, err error, message string) {
	statusCode, public := classify(err)
	if statusCode >= http.StatusInternalServerError {
		h.logger.Error("HTTP error response", util.ErrorField(err), util.Int("status_code", statusCode))
	} else {
		h.logger.Warn("HTTP error response", util.ErrorField(err), util.Int("status_code", statusCode))
	}
	h.respondWithJSON(w, statusCode, Response{Error: public, Message: message})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{service.ErrInvalidInput, http.StatusBadRequest},
	{service.ErrVendorAlreadyExists, http.StatusConflict},
	{service.ErrEnrollmentNotPersisted, http.StatusServiceUnavailable},
	{service.ErrAttemptNotPersisted, http.StatusServiceUnavailable},
	{service.ErrTokenNotPersisted, http.StatusServiceUnavailable},
	{service.ErrUnknownVendor, http.StatusNotFound},
	{service.ErrAttemptNotFound, http.StatusNotFound},
	{service.ErrNoValidToken, http.StatusNotFound},
}

func classify(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.err == service.ErrInvalidInput {
				return e.status, err.Error()
			}
			return e.status, e.err.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// remoteIP returns the client address without its port, or "" when it is not an IP.
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}
