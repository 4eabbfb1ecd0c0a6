package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"chartbuilder-go/internal/models"
	"chartbuilder-go/internal/schema"
	"chartbuilder-go/internal/service"
	"chartbuilder-go/internal/state"
)

// Handler wires the transformation pipeline to HTTP. All chart math lives in
// internal/service; handlers only decode requests, sequence runs through the
// shared state, and encode results.
type Handler struct {
	State *state.AppState

	// srcMu guards the active upstream connection (database or API). A
	// fetch holds the read lock for its full duration so a connect can
	// never close the source out from under an in-flight request.
	srcMu  sync.RWMutex
	source service.Source
}

func NewHandler(st *state.AppState) *Handler {
	return &Handler{State: st}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	r.Post("/api/infer", h.InferFields)

	r.Get("/api/datasets/{datasetID}", h.GetDataset)
	r.Put("/api/datasets/{datasetID}/config", h.UpdateConfig)
	r.Post("/api/datasets/{datasetID}/run", h.RunDataset)

	r.Post("/api/datasets/{datasetID}/conditions", h.AddCondition)
	r.Put("/api/datasets/{datasetID}/conditions/{conditionID}", h.EditCondition)
	r.Post("/api/datasets/{datasetID}/conditions/{conditionID}/save", h.SaveCondition)
	r.Post("/api/datasets/{datasetID}/conditions/{conditionID}/revert", h.RevertCondition)
	r.Delete("/api/datasets/{datasetID}/conditions/{conditionID}", h.DeleteCondition)

	r.Post("/api/datasets/{datasetID}/columns/move", h.MoveColumn)
	r.Put("/api/datasets/{datasetID}/columns/order", h.ConfirmColumnOrder)

	r.Post("/api/source/connect", h.ConnectSource)
}

// ============================================================================
// Health
// ============================================================================

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Inference
// ============================================================================

// InferFields returns the field catalog for a posted JSON value.
func (h *Handler) InferFields(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data       any `json:"data"`
		SampleSize int `json:"sample_size,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	opt := schema.DefaultOptions()
	if req.SampleSize > 0 {
		opt.SampleSize = req.SampleSize
	}
	fields := schema.InferWithOptions(req.Data, opt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"fields": fields})
}

// ============================================================================
// Datasets
// ============================================================================

// GetDataset returns the working config and last committed result.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	result, ok := h.State.LastResult(id)
	if !ok {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}

	cfg, _ := h.State.GetConfig(id)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":     id,
		"config": cfg,
		"result": result,
	})
}

// UpdateConfig replaces the dataset config wholesale. Condition deltas must
// go through the condition endpoints so save/revert semantics hold; a config
// pushed here keeps only saved conditions.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	var cfg models.DatasetConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	cfg.Conditions = models.SavedConditions(cfg.Conditions)

	h.State.UpdateConfig(id, cfg)
	h.State.SnapshotConditions(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// RunDataset executes the pipeline for one dataset. The raw JSON comes
// either inline in the request or from the connected source. Runs are
// sequenced at issuance; a run that lost the race to a newer one returns
// 409 and commits nothing.
func (h *Handler) RunDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	var req struct {
		Data       any                `json:"data,omitempty"`
		UseSource  bool               `json:"use_source,omitempty"`
		Mode       string             `json:"mode,omitempty"`
		Global     []models.Condition `json:"global_conditions,omitempty"`
		DateRange  *service.DateRange `json:"date_range,omitempty"`
		SampleSize int                `json:"sample_size,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	seq := h.State.IssueSeq(id)
	firstLoad := !h.State.IsLoaded(id)

	data := req.Data
	if req.UseSource {
		fetched, err := h.fetchFromSource(r)
		if err != nil {
			if err == errNoSource {
				http.Error(w, "No source connected", http.StatusBadRequest)
			} else {
				http.Error(w, fmt.Sprintf("Fetch failed: %v", err), http.StatusBadGateway)
			}
			return
		}
		data = fetched
	}

	cfg, _ := h.State.GetConfig(id)
	mode := req.Mode
	if mode == "" {
		mode = models.ModeChart
	}

	sample := schema.DefaultOptions()
	if req.SampleSize > 0 {
		sample.SampleSize = req.SampleSize
	}

	result := service.Run(service.RunInput{
		Data:      data,
		Config:    cfg,
		Mode:      mode,
		Global:    req.Global,
		DateRange: req.DateRange,
		FirstLoad: firstLoad,
		Sample:    sample,
		Seq:       seq,
	})

	if !h.State.CommitResult(id, &result) {
		log.Printf("dataset %s: discarding stale run (seq %d)", id, seq)
		http.Error(w, "Superseded by a newer run", http.StatusConflict)
		return
	}

	// Persist the axes the auto-selector proposed on first load.
	if firstLoad {
		updated := cfg
		if updated.XAxis == "" || updated.YAxis == "" {
			defaults := schema.SelectDefaults(result.Fields, updated)
			if defaults.SetXAxis {
				updated.XAxis = defaults.XAxis
			}
			if defaults.SetYAxis {
				updated.YAxis = defaults.YAxis
			}
			if defaults.SetOperation {
				updated.YAxisOperation = defaults.YAxisOperation
			}
			h.State.UpdateConfig(id, updated)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ============================================================================
// Conditions
// ============================================================================

// AddCondition appends a new empty, unsaved condition.
func (h *Handler) AddCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	cond, err := service.NewCondition()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error creating condition: %v", err), http.StatusInternalServerError)
		return
	}

	cfg, _ := h.State.GetConfig(id)
	cfg.Conditions = append(append([]models.Condition{}, cfg.Conditions...), cond)
	h.State.UpdateConfig(id, cfg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cond)
}

// EditCondition applies a partial edit to a pending condition.
func (h *Handler) EditCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	conditionID := chi.URLParam(r, "conditionID")

	var req struct {
		Field    *string          `json:"field,omitempty"`
		Operator *models.Operator `json:"operator,omitempty"`
		Value    *string          `json:"value,omitempty"`
		Exposed  *bool            `json:"exposed,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	cfg, ok := h.State.GetConfig(id)
	if !ok {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}

	cfg.Conditions = service.ApplyConditionEdit(cfg.Conditions, service.ConditionEdit{
		ID:       conditionID,
		Field:    req.Field,
		Operator: req.Operator,
		Value:    req.Value,
		Exposed:  req.Exposed,
	})
	h.State.UpdateConfig(id, cfg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.Conditions)
}

// SaveCondition promotes a pending condition to saved, validating it against
// the last inferred field catalog.
func (h *Handler) SaveCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	conditionID := chi.URLParam(r, "conditionID")

	result, ok := h.State.LastResult(id)
	if !ok {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}

	var fields []models.FieldDescriptor
	if result != nil {
		fields = result.Fields
	}

	cfg, _ := h.State.GetConfig(id)
	next, err := service.SaveCondition(cfg.Conditions, conditionID, fields)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg.Conditions = next
	h.State.UpdateConfig(id, cfg)
	h.State.SnapshotConditions(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.Conditions)
}

// RevertCondition restores a pending edit to its last saved snapshot.
func (h *Handler) RevertCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	conditionID := chi.URLParam(r, "conditionID")

	cfg, ok := h.State.GetConfig(id)
	if !ok {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}

	cfg.Conditions = service.RevertCondition(cfg.Conditions, h.State.GetConditionSnapshot(id), conditionID)
	h.State.UpdateConfig(id, cfg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.Conditions)
}

// DeleteCondition removes a condition outright.
func (h *Handler) DeleteCondition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")
	conditionID := chi.URLParam(r, "conditionID")

	cfg, ok := h.State.GetConfig(id)
	if !ok {
		http.Error(w, "Dataset not found", http.StatusNotFound)
		return
	}

	cfg.Conditions = service.DeleteCondition(cfg.Conditions, conditionID)
	h.State.UpdateConfig(id, cfg)
	h.State.SnapshotConditions(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.Conditions)
}

// ============================================================================
// Table columns
// ============================================================================

// MoveColumn splices one column to a new position in the working order and
// returns the result without persisting it; the client confirms via the
// order endpoint or discards by simply not confirming.
func (h *Handler) MoveColumn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	var req struct {
		Order []string `json:"order"`
		From  int      `json:"from"`
		To    int      `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	order := req.Order
	if len(order) == 0 {
		cfg, _ := h.State.GetConfig(id)
		order = cfg.ColumnsOrder
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"order": service.MoveColumn(order, req.From, req.To),
	})
}

// ConfirmColumnOrder persists the final column order on the dataset config.
func (h *Handler) ConfirmColumnOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "datasetID")

	var req struct {
		Order []string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	cfg, _ := h.State.GetConfig(id)
	cfg.ColumnsOrder = req.Order
	h.State.UpdateConfig(id, cfg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// ============================================================================
// Sources
// ============================================================================

var errNoSource = errors.New("no source connected")

// fetchFromSource retrieves the raw document from the active connection,
// holding the read lock across the fetch so a concurrent connect cannot
// close the source mid-request.
func (h *Handler) fetchFromSource(r *http.Request) (any, error) {
	h.srcMu.RLock()
	defer h.srcMu.RUnlock()

	if h.source == nil {
		return nil, errNoSource
	}
	return h.source.Fetch(r.Context())
}

// ConnectSource establishes the active upstream connection, closing the
// previous one. The swap waits for in-flight fetches to release the lock.
func (h *Handler) ConnectSource(w http.ResponseWriter, r *http.Request) {
	var cfg service.SourceConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	src, err := service.NewSource(cfg)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to connect: %v", err), http.StatusInternalServerError)
		return
	}

	h.srcMu.Lock()
	if h.source != nil {
		h.source.Close()
	}
	h.source = src
	h.srcMu.Unlock()

	json.NewEncoder(w).Encode(map[string]string{"status": "connected"})
}
