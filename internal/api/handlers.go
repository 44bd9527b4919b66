package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"llmspub/internal/app"
	"llmspub/internal/pub"
)

// Handlers holds dependencies for the API handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type publishRequest struct {
	OutputType       string `json:"output_type"`
	WebsiteURL       string `json:"website_url"`
	ConfirmOverwrite bool   `json:"confirm_overwrite"`
	SummaryContent   string `json:"summary_content"`
	FullContent      string `json:"full_content"`
}

// Publish writes caller-supplied content to the public artifacts.
func (h *Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.app.Publisher.Publish(r.Context(), h.app.OwnerID(), pub.PublishRequest{
		OutputType:       pub.OutputType(req.OutputType),
		WebsiteURL:       req.WebsiteURL,
		ConfirmOverwrite: req.ConfirmOverwrite,
		SummaryContent:   req.SummaryContent,
		FullContent:      req.FullContent,
	})
	if err != nil {
		writePublishError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type generateRequest struct {
	OutputType       string `json:"output_type"`
	WebsiteURL       string `json:"website_url"`
	ConfirmOverwrite bool   `json:"confirm_overwrite"`
}

// Generate runs a full generation job and publishes the result, the same
// sequence a scheduled run performs.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.WebsiteURL == "" {
		http.Error(w, "website_url is required", http.StatusBadRequest)
		return
	}
	outputType := pub.OutputType(req.OutputType)
	if !outputType.Valid() {
		http.Error(w, "invalid output_type", http.StatusBadRequest)
		return
	}

	gen, err := h.app.Generator.Run(r.Context(), req.WebsiteURL, outputType)
	if err != nil {
		h.app.Logger.Error("generation failed", "url", req.WebsiteURL, "error", err)
		http.Error(w, "generation failed", http.StatusBadGateway)
		return
	}

	result, err := h.app.Publisher.Publish(r.Context(), h.app.OwnerID(), pub.PublishRequest{
		OutputType:       outputType,
		WebsiteURL:       req.WebsiteURL,
		ConfirmOverwrite: req.ConfirmOverwrite,
		SummaryContent:   gen.Summary,
		FullContent:      gen.Full,
	})
	if err != nil {
		writePublishError(w, err)
		return
	}

	// Remember the source so scheduled runs can regenerate it.
	if err := h.app.Schedules.RememberSource(h.app.OwnerID(), req.WebsiteURL, outputType); err != nil {
		h.app.Logger.Warn("remembering publish source failed", "error", err)
	}
	writeJSON(w, http.StatusOK, result)
}

// CheckFiles reports which artifacts of an output type already exist.
func (h *Handlers) CheckFiles(w http.ResponseWriter, r *http.Request) {
	outputType := pub.OutputType(r.URL.Query().Get("output_type"))
	if !outputType.Valid() {
		http.Error(w, "invalid output_type", http.StatusBadRequest)
		return
	}
	existing, err := h.app.Publisher.CheckExisting(outputType)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		existing = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"existing": existing})
}

// ListHistory returns the owner's newest history entries.
func (h *Handlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	entries, err := h.app.History(limit)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*pub.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHistoryEntry returns one history entry with its stored content.
func (h *Handlers) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	entry, err := h.app.Store().GetHistoryEntry(id)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if entry == nil || entry.OwnerID != h.app.OwnerID() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// DeleteHistoryEntry removes an entry and its no-longer-referenced files.
func (h *Handlers) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	res, err := h.app.Ledger.Delete(h.app.OwnerID(), id)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetSchedule returns the owner's schedule configuration.
func (h *Handlers) GetSchedule(w http.ResponseWriter, _ *http.Request) {
	cfg, err := h.app.Schedules.Get(h.app.OwnerID())
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type scheduleRequest struct {
	Enabled    bool   `json:"enabled"`
	Frequency  string `json:"frequency"`
	DayOfWeek  int    `json:"day_of_week"`
	DayOfMonth int    `json:"day_of_month"`
	OutputType string `json:"output_type"`
	WebsiteURL string `json:"website_url"`
}

// SaveSchedule replaces the owner's schedule settings.
func (h *Handlers) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := &pub.ScheduleConfig{
		OwnerID:    h.app.OwnerID(),
		Enabled:    req.Enabled,
		Frequency:  req.Frequency,
		DayOfWeek:  req.DayOfWeek,
		DayOfMonth: req.DayOfMonth,
		OutputType: pub.OutputType(req.OutputType),
		WebsiteURL: req.WebsiteURL,
	}
	if err := h.app.Schedules.Save(cfg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PauseSchedule suspends scheduled runs.
func (h *Handlers) PauseSchedule(w http.ResponseWriter, _ *http.Request) {
	h.scheduleAction(w, h.app.Schedules.Pause)
}

// ResumeSchedule reactivates a paused schedule.
func (h *Handlers) ResumeSchedule(w http.ResponseWriter, _ *http.Request) {
	h.scheduleAction(w, h.app.Schedules.Resume)
}

// CancelSchedule disarms the schedule, keeping its settings.
func (h *Handlers) CancelSchedule(w http.ResponseWriter, _ *http.Request) {
	h.scheduleAction(w, h.app.Schedules.Cancel)
}

func (h *Handlers) scheduleAction(w http.ResponseWriter, action func(string) error) {
	if err := action(h.app.OwnerID()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListRuns returns the owner's newest scheduled-run records.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	records, err := h.app.RunLog(limit)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*pub.RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

type verifySendRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// SendVerification asks the verification service to email a one-time code.
func (h *Handlers) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req verifySendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.app.SendVerification(r.Context(), req.Name, req.Email); err != nil {
		http.Error(w, "verification service unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type verifyConfirmRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// ConfirmVerification checks a one-time code.
func (h *Handlers) ConfirmVerification(w http.ResponseWriter, r *http.Request) {
	var req verifyConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ok, err := h.app.ConfirmVerification(r.Context(), req.Email, req.OTP)
	if err != nil {
		http.Error(w, "verification service unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": ok})
}

// writePublishError maps publish failures to HTTP statuses.
func writePublishError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pub.ErrBusy):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pub.ErrOverwriteNotConfirmed):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
