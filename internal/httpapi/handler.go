// Package httpapi implements the HTTP handlers for the matching engine.
//
// All identity-bound routes expect an x-user-id header forwarded by the
// Gateway; the engine does not authenticate, it trusts the header.
//
// Routes:
//
//	POST /jobs/{id}/allocate               → run a matching pass for a job
//	GET  /jobs/browse                      → open jobs ranked for the caller
//	GET  /convocations/{id}                → convocation with effective status
//	POST /convocations/{id}/accept         → worker accepts the offer
//	POST /convocations/{id}/reject         → worker declines the offer
//	POST /convocations/{id}/checkin        → start work (proximity-checked)
//	POST /convocations/{id}/checkout       → finish work, compute payment
//	POST /convocations/{id}/settle         → run or retry settlement
//	GET  /convocations/{id}/settlement     → per-step settlement record
//	GET  /notifications                    → caller's inbox, newest first
//	POST /notifications/read               → mark one or all as read
//	GET  /payments/history                 → caller's paid convocations
//	GET  /payments/stats                   → earnings aggregation
//	GET  /payments/estimate                → breakdown + taxes for a rate/hours pair
//	GET  /geocode                          → resolve an address to coordinates
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fernandolim41/picopro-clt/internal/convocation"
	"github.com/fernandolim41/picopro-clt/internal/geocode"
	"github.com/fernandolim41/picopro-clt/internal/matching"
	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/notification"
	"github.com/fernandolim41/picopro-clt/internal/payment"
	"github.com/fernandolim41/picopro-clt/internal/settlement"
	"github.com/fernandolim41/picopro-clt/internal/store"

	"github.com/shopspring/decimal"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	allocator     *matching.Allocator
	lifecycle     *convocation.Service
	settlements   *settlement.Orchestrator
	notifications *notification.Center
	convocations  store.ConvocationStore
	geocoder      geocode.Service
}

// NewHandler returns a configured Handler. geocoder may be nil; the
// /geocode route then answers 503.
func NewHandler(allocator *matching.Allocator, lifecycle *convocation.Service,
	settlements *settlement.Orchestrator, notifications *notification.Center,
	convocations store.ConvocationStore, geocoder geocode.Service) *Handler {
	return &Handler{
		allocator:     allocator,
		lifecycle:     lifecycle,
		settlements:   settlements,
		notifications: notifications,
		convocations:  convocations,
		geocoder:      geocoder,
	}
}

// RegisterRoutes mounts all engine routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/jobs/", h.handleJobAction)
	mux.HandleFunc("/jobs/browse", h.browseJobs)
	mux.HandleFunc("/convocations/", h.handleConvocationAction)
	mux.HandleFunc("/notifications", h.listNotifications)
	mux.HandleFunc("/notifications/read", h.markNotificationsRead)
	mux.HandleFunc("/payments/history", h.paymentHistory)
	mux.HandleFunc("/payments/stats", h.paymentStats)
	mux.HandleFunc("/payments/estimate", h.paymentEstimate)
	mux.HandleFunc("/geocode", h.geocodeAddress)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handleJobAction handles POST /jobs/{id}/allocate
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[2] != "allocate" {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	h.allocateJob(w, r, parts[1])
}

// handleConvocationAction handles GET /convocations/{id},
// GET /convocations/{id}/settlement and POST /convocations/{id}/{action}.
func (h *Handler) handleConvocationAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getConvocation(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "settlement" && r.Method == http.MethodGet:
		h.getSettlement(w, r, parts[1])
	case len(parts) == 3 && r.Method == http.MethodPost:
		h.convocationAction(w, r, parts[1], parts[2])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

func (h *Handler) convocationAction(w http.ResponseWriter, r *http.Request, id, action string) {
	switch action {
	case "accept":
		h.acceptConvocation(w, r, id)
	case "reject":
		h.rejectConvocation(w, r, id)
	case "checkin":
		h.checkIn(w, r, id)
	case "checkout":
		h.checkOut(w, r, id)
	case "settle":
		h.settle(w, r, id)
	default:
		jsonError(w, fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
	}
}

// ─── Jobs ─────────────────────────────────────────────────────────────────────

func (h *Handler) allocateJob(w http.ResponseWriter, r *http.Request, jobID string) {
	var body struct {
		RadiusKm        float64 `json:"radiusKm"`
		MaxConvocations int     `json:"maxConvocations"`
		MinScore        int     `json:"minScore"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	result, err := h.allocator.Allocate(r.Context(), jobID, matching.Options{
		RadiusKm:        body.RadiusKm,
		MaxConvocations: body.MaxConvocations,
		MinScore:        body.MinScore,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, result)
}

func (h *Handler) browseJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	workerID, ok := callerID(w, r)
	if !ok {
		return
	}

	radius := 0.0
	if s := r.URL.Query().Get("radiusKm"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			jsonError(w, "radiusKm must be a positive number", http.StatusBadRequest)
			return
		}
		radius = v
	}

	matches, err := h.allocator.BrowseJobs(r.Context(), workerID, radius)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if matches == nil {
		matches = []matching.JobMatch{}
	}
	jsonOK(w, matches)
}

// ─── Convocations ─────────────────────────────────────────────────────────────

func (h *Handler) getConvocation(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) acceptConvocation(w http.ResponseWriter, r *http.Request, id string) {
	workerID, ok := callerID(w, r)
	if !ok {
		return
	}
	c, err := h.lifecycle.Accept(r.Context(), id, workerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) rejectConvocation(w http.ResponseWriter, r *http.Request, id string) {
	workerID, ok := callerID(w, r)
	if !ok {
		return
	}
	c, err := h.lifecycle.Reject(r.Context(), id, workerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request, id string) {
	workerID, ok := callerID(w, r)
	if !ok {
		return
	}
	loc, ok := decodeLocation(w, r)
	if !ok {
		return
	}
	c, err := h.lifecycle.CheckIn(r.Context(), id, workerID, loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, c)
}

func (h *Handler) checkOut(w http.ResponseWriter, r *http.Request, id string) {
	workerID, ok := callerID(w, r)
	if !ok {
		return
	}
	loc, ok := decodeLocation(w, r)
	if !ok {
		return
	}
	c, err := h.lifecycle.CheckOut(r.Context(), id, workerID, loc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, c)
}

// ─── Settlement ───────────────────────────────────────────────────────────────

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.settlements.Settle(r.Context(), id)
	if err != nil && rec == nil {
		writeDomainError(w, err)
		return
	}
	if err != nil {
		// Partial settlement: the record shows which steps still fail.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  err.Error(),
			"record": rec,
		})
		return
	}
	jsonOK(w, rec)
}

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.settlements.Record(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

// ─── Notifications ────────────────────────────────────────────────────────────

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	jsonOK(w, map[string]any{
		"notifications": h.notifications.Pull(userID),
		"unread":        h.notifications.UnreadCount(userID),
	})
}

func (h *Handler) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var body struct {
		ID string `json:"id"` // empty means all
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	if body.ID == "" {
		h.notifications.MarkAllRead(userID)
	} else {
		h.notifications.MarkRead(userID, body.ID)
	}
	jsonOK(w, map[string]int{"unread": h.notifications.UnreadCount(userID)})
}

// ─── Payments ─────────────────────────────────────────────────────────────────

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	company := r.URL.Query().Get("role") == "company"

	paid, err := h.convocations.ListPaidConvocations(r.Context(), userID, company)
	if err != nil {
		log.Printf("[httpapi] paymentHistory query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, paid)
}

func (h *Handler) paymentStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	company := r.URL.Query().Get("role") == "company"

	paid, err := h.convocations.ListPaidConvocations(r.Context(), userID, company)
	if err != nil {
		log.Printf("[httpapi] paymentStats query error: %v", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, payment.Aggregate(paid, time.Now().UTC()))
}

func (h *Handler) paymentEstimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rate, err := decimal.NewFromString(r.URL.Query().Get("hourlyRate"))
	if err != nil || rate.LessThanOrEqual(decimal.Zero) {
		jsonError(w, "hourlyRate must be a positive decimal", http.StatusBadRequest)
		return
	}
	hours, err := strconv.Atoi(r.URL.Query().Get("hours"))
	if err != nil || hours < 1 {
		jsonError(w, "hours must be a positive integer", http.StatusBadRequest)
		return
	}

	breakdown := payment.Calculate(rate, hours)
	jsonOK(w, map[string]any{
		"breakdown": breakdown,
		"taxes":     payment.EstimateTaxes(breakdown.TotalPayment),
	})
}

// ─── Geocoding ────────────────────────────────────────────────────────────────

func (h *Handler) geocodeAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.geocoder == nil {
		jsonError(w, "geocoding is not configured", http.StatusServiceUnavailable)
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		jsonError(w, "address query parameter is required", http.StatusBadRequest)
		return
	}

	loc, err := h.geocoder.Forward(r.Context(), address)
	if errors.Is(err, geocode.ErrAddressNotFound) {
		jsonError(w, "address not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[httpapi] geocode error: %v", err)
		jsonError(w, "geocoding failed", http.StatusBadGateway)
		return
	}
	jsonOK(w, loc)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func decodeLocation(w http.ResponseWriter, r *http.Request) (model.Location, bool) {
	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Latitude == nil || body.Longitude == nil {
		jsonError(w, "body must contain latitude and longitude", http.StatusBadRequest)
		return model.Location{}, false
	}
	return model.Location{Latitude: *body.Latitude, Longitude: *body.Longitude}, true
}

// writeDomainError maps the engine's error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validationErr *convocation.ValidationError
		invalidErr    *convocation.InvalidTransitionError
		staleErr      *convocation.StaleStateError
		deadlineErr   *convocation.DeadlineExceededError
		tooFarErr     *convocation.LocationTooFarError
		timeoutErr    *settlement.TimeoutError
	)
	switch {
	case errors.Is(err, convocation.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.As(err, &validationErr):
		jsonError(w, validationErr.Error(), http.StatusBadRequest)
	case errors.Is(err, matching.ErrJobNotOpen):
		jsonError(w, err.Error(), http.StatusConflict)
	case errors.As(err, &invalidErr):
		jsonError(w, invalidErr.Error(), http.StatusConflict)
	case errors.As(err, &staleErr):
		jsonError(w, staleErr.Error(), http.StatusConflict)
	case errors.As(err, &deadlineErr):
		jsonError(w, deadlineErr.Error(), http.StatusGone)
	case errors.As(err, &tooFarErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"error":      tooFarErr.Error(),
			"distanceKm": tooFarErr.DistanceKm,
			"maxKm":      tooFarErr.MaxDistanceKm,
		})
	case errors.As(err, &timeoutErr):
		jsonError(w, timeoutErr.Error(), http.StatusBadGateway)
	default:
		log.Printf("[httpapi] internal error: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
