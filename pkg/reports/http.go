package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/adpulse-ai/platform/pkg/common/logger"
	"github.com/adpulse-ai/platform/pkg/common/models"
	"github.com/adpulse-ai/platform/pkg/jobs"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	validator *Validator
	queue     jobs.Enqueuer
	store     Store
	maxBody   int64
}

func NewHTTPHandler(validator *Validator, queue jobs.Enqueuer, store Store, maxBody int64) *HTTPHandler {
	return &HTTPHandler{validator: validator, queue: queue, store: store, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/reports/generate", h.handleGenerate).Methods(http.MethodPost)
	router.HandleFunc("/reports/requests/{id}", h.handleStatus).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var body GenerateWrapper
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logger.Log.WithError(err).Warn("invalid generate payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req := body.ToModel()
	if err := h.validator.Validate(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := GenerateJob(req)
	if err := h.queue.Enqueue(r.Context(), job, 0); err != nil {
		logger.Log.WithError(err).Error("failed to enqueue generate job")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := models.GenerateResponse{
		JobID:     job.ID,
		Status:    "accepted",
		Timestamp: time.Now().UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid request id", http.StatusBadRequest)
		return
	}

	req, err := h.store.Get(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "report request not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch report request")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}
