package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"fuel-commission/internal/audit"
	"fuel-commission/internal/auth"
	commissionapp "fuel-commission/internal/commission/application"
	commission "fuel-commission/internal/commission/domain"
)

const (
	dateLayout     = "2006-01-02"
	maxRequestBody = 1 << 20
)

// Handler provides commission HTTP endpoints.
type Handler struct {
	lifecycle *commissionapp.LifecycleService
	reader    *commissionapp.ScopedReader
	audit     audit.Logger
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures the handler.
type Option func(*Handler)

// WithAuditLogger records write actions and exports.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) { h.audit = logger }
}

// WithLogger sets the handler logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler constructs a handler.
func NewHandler(lifecycle *commissionapp.LifecycleService, reader *commissionapp.ScopedReader, opts ...Option) (*Handler, error) {
	if lifecycle == nil {
		return nil, errors.New("commission handler: nil lifecycle")
	}
	if reader == nil {
		return nil, errors.New("commission handler: nil reader")
	}
	h := &Handler{lifecycle: lifecycle, reader: reader, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the commission routes. Fixed paths go before {id}.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1/commissions").Subrouter()
	api.HandleFunc("", h.handleList).Methods(http.MethodGet)
	api.HandleFunc("/calculate", h.handleCalculate).Methods(http.MethodPost)
	api.HandleFunc("/open-period", h.handleOpenPeriod).Methods(http.MethodPost)
	api.HandleFunc("/stats", h.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/progressive", h.handleProgressive).Methods(http.MethodGet)
	api.HandleFunc("/export.{format:xlsx|csv}", h.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}/approve", h.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/{id}/pay", h.handlePay).Methods(http.MethodPost)
	api.HandleFunc("/{id}/cancel", h.handleCancel).Methods(http.MethodPost)
}

type calculatePayload struct {
	Period     string   `json:"period"`
	StationIDs []string `json:"station_ids"`
	Correction bool     `json:"correction"`
	Notes      string   `json:"notes"`
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var payload calculatePayload
	if err := decodeBody(w, r, &payload, false); err != nil {
		respondServiceError(w, err)
		return
	}
	period, err := commission.ParsePeriod(payload.Period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	report, err := h.lifecycle.Calculate(r.Context(), actor, commissionapp.CalculateRequest{
		Period:     period,
		StationIDs: payload.StationIDs,
		Correction: payload.Correction,
		Notes:      payload.Notes,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.recordAudit(r, actor, audit.Entry{Action: audit.ActionCalculate, Period: period.String()}, map[string]any{
		"station_ids": payload.StationIDs,
		"correction":  payload.Correction,
		"succeeded":   report.Succeeded,
		"failed":      report.Failed,
	})
	respondJSON(w, http.StatusOK, report)
}

type openPeriodPayload struct {
	Period     string   `json:"period"`
	StationIDs []string `json:"station_ids"`
}

func (h *Handler) handleOpenPeriod(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var payload openPeriodPayload
	if err := decodeBody(w, r, &payload, false); err != nil {
		respondServiceError(w, err)
		return
	}
	period, err := commission.ParsePeriod(payload.Period)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	report, err := h.lifecycle.OpenPeriod(r.Context(), actor, period, payload.StationIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.recordAudit(r, actor, audit.Entry{Action: audit.ActionOpenPeriod, Period: period.String()}, map[string]any{
		"station_ids": payload.StationIDs,
		"opened":      report.Succeeded,
	})
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	q := r.URL.Query()
	page := commission.ParsePage(q.Get("page"), q.Get("page_size"))
	result, err := h.reader.List(r.Context(), actor, filter, page)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rec, err := h.reader.Get(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	stats, err := h.reader.Stats(r.Context(), actor, filter)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleProgressive(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	period, err := optionalPeriod(r.URL.Query().Get("period"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if period.IsZero() {
		period = commission.PeriodOf(h.now())
	}
	projections, err := h.reader.Progressive(r.Context(), actor, period, r.URL.Query().Get("station_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if projections == nil {
		projections = []commission.Projection{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"period":   period,
		"stations": projections,
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	rec, err := h.lifecycle.Approve(r.Context(), actor, mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.recordAudit(r, actor, recordEntry(audit.ActionApprove, rec), nil)
	respondJSON(w, http.StatusOK, rec)
}

type payPayload struct {
	PaymentMethod   string `json:"payment_method"`
	ReferenceNumber string `json:"reference_number"`
	PaymentDate     string `json:"payment_date"`
	Notes           string `json:"notes"`
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var payload payPayload
	if err := decodeBody(w, r, &payload, false); err != nil {
		respondServiceError(w, err)
		return
	}
	details := commission.PaymentDetails{
		Method:          payload.PaymentMethod,
		ReferenceNumber: payload.ReferenceNumber,
		Notes:           payload.Notes,
	}
	if payload.PaymentDate != "" {
		date, err := parseDate(payload.PaymentDate)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		details.PaymentDate = date
	}
	rec, err := h.lifecycle.MarkPaid(r.Context(), actor, mux.Vars(r)["id"], details)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.recordAudit(r, actor, recordEntry(audit.ActionPay, rec), map[string]any{
		"payment_method":   details.Method,
		"reference_number": details.ReferenceNumber,
		"payment_date":     details.PaymentDate.Format(dateLayout),
	})
	respondJSON(w, http.StatusOK, rec)
}

type cancelPayload struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var payload cancelPayload
	if err := decodeBody(w, r, &payload, true); err != nil {
		respondServiceError(w, err)
		return
	}
	rec, err := h.lifecycle.Cancel(r.Context(), actor, mux.Vars(r)["id"], payload.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.recordAudit(r, actor, recordEntry(audit.ActionCancel, rec), map[string]any{
		"reason": payload.Reason,
	})
	respondJSON(w, http.StatusOK, rec)
}

// recordEntry describes a single-record action by the state it left behind.
func recordEntry(action audit.Action, rec *commission.Record) audit.Entry {
	return audit.Entry{
		Action:    action,
		DealerID:  rec.DealerID,
		RecordID:  rec.ID,
		StationID: rec.StationID,
		Period:    rec.Period.String(),
		Status:    string(rec.Status),
		Amount:    rec.TotalCommission.StringFixed(2),
	}
}

func (h *Handler) recordAudit(r *http.Request, actor auth.Actor, entry audit.Entry, metadata map[string]any) {
	if h.audit == nil {
		return
	}
	if metadata != nil {
		entry.Metadata, _ = json.Marshal(metadata)
	}
	entry.ID = audit.NewID()
	entry.Actor = actor.Subject
	entry.Role = string(actor.Role)
	entry.OMCID = actor.OMCID
	if entry.DealerID == "" {
		entry.DealerID = actor.DealerID
	}
	entry.PayloadDigest = audit.DigestJSON(entry.Metadata)
	entry.IP = audit.ClientIP(r)
	entry.UserAgent = r.UserAgent()
	entry.CreatedAt = h.now().UTC()
	// Audit writes must not fail a completed action.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()
	if err := h.audit.Log(ctx, entry); err != nil {
		h.logger.Error().Err(err).Str("action", string(entry.Action)).Str("record_id", entry.RecordID).Msg("audit log failed")
	}
}

func actorFrom(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return auth.Actor{}, false
	}
	return actor, true
}

func parseFilter(r *http.Request) (commission.Filter, error) {
	q := r.URL.Query()
	period, err := optionalPeriod(q.Get("period"))
	if err != nil {
		return commission.Filter{}, err
	}
	filter := commission.Filter{
		Period:    period,
		StationID: strings.TrimSpace(q.Get("station_id")),
		OMCID:     strings.TrimSpace(q.Get("omc_id")),
		DealerID:  strings.TrimSpace(q.Get("dealer_id")),
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := commission.ParseStatus(raw)
		if !ok {
			return commission.Filter{}, fmt.Errorf("%w: unknown status %q", commission.ErrValidation, raw)
		}
		filter.Status = status
	}
	return filter, nil
}

func optionalPeriod(value string) (commission.Period, error) {
	if value == "" {
		return commission.Period{}, nil
	}
	return commission.ParsePeriod(value)
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: payment_date must be YYYY-MM-DD or RFC3339", commission.ErrValidation)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.ContentLength == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: request body required", commission.ErrValidation)
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid json: %v", commission.ErrValidation, err)
	}
	return nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, commission.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, commission.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, commission.ErrInvalidStateTransition):
		status = http.StatusConflict
	case errors.Is(err, commission.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, commission.ErrUpstreamDataUnavailable):
		status = http.StatusFailedDependency
	case errors.Is(err, commission.ErrConcurrencyConflict):
		status = http.StatusConflict
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	respondError(w, status, commission.ErrorCode(err), message)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": code, "message": message})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
