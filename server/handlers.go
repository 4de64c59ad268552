package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManagementMO/dreamwell-assessment/agent/contract"
	"github.com/ManagementMO/dreamwell-assessment/agent/orchestrator"
	"github.com/ManagementMO/dreamwell-assessment/agent/store"
)

const (
	codeNotFound   = "not_found"
	codeBadRequest = "bad_request"
	codeInternal   = "internal"

	defaultListLimit = 10
)

type handlers struct {
	threads   store.ThreadStore
	brands    store.BrandStore
	generator Generator
	version   string
	logger    zerolog.Logger
}

// envelope is the uniform response shape. Exactly one of Data and Error is
// set.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error:   &apiError{Code: code, Message: msg},
	})
}

// writeStoreError maps collaborator errors onto envelope error categories.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contract.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, contract.ErrInvalidArgument), errors.Is(err, contract.ErrPrecondition):
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
	})
}

func (h *handlers) handleListEmails(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	summaries, err := h.threads.ListThreads(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"emails": summaries,
		"total":  len(summaries),
	})
}

func (h *handlers) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	thread, err := h.threads.GetThread(r.Context(), threadID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, thread)
}

type generateRequest struct {
	ThreadID string `json:"thread_id"`
	BrandID  string `json:"brand_id,omitempty"`
}

// handleGenerate runs the orchestrator for one thread. A run that degrades
// (iteration cap, reasoning failure with partial content) is still a
// successful HTTP response; the run status inside the payload tells the
// caller what happened.
func (h *handlers) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "thread_id is required")
		return
	}

	thread, err := h.threads.GetThread(r.Context(), req.ThreadID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	brandID := req.BrandID
	if brandID == "" {
		brandID = thread.Brand
	}

	result, err := h.generator.Run(r.Context(), orchestrator.Request{
		Thread:  thread,
		BrandID: brandID,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.logger.Info().
		Str("thread", req.ThreadID).
		Str("status", string(result.Status)).
		Str("category", result.Category).
		Msg("draft generated")
	writeData(w, http.StatusOK, result)
}

type sendRequest struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
}

// handleSend appends the reply to the thread and marks it processed.
func (h *handlers) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	if req.ThreadID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "thread_id and content are required")
		return
	}

	thread, err := h.threads.GetThread(r.Context(), req.ThreadID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	msg := store.Message{
		From:    fmt.Sprintf("outreach@%s.example", thread.Brand),
		To:      thread.InfluencerMail,
		Subject: replySubject(thread),
		Body:    req.Content,
	}
	if err := h.threads.AppendReply(r.Context(), req.ThreadID, msg); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := h.threads.MarkProcessed(r.Context(), req.ThreadID); err != nil {
		writeStoreError(w, err)
		return
	}

	sent, err := h.threads.GetThread(r.Context(), req.ThreadID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"thread_id": req.ThreadID,
		"status":    sent.Status,
		"sent_at":   sent.LatestTimestamp(),
	})
}

func replySubject(t *store.Thread) string {
	if len(t.Messages) == 0 {
		return "Partnership"
	}
	return "Re: " + t.Messages[0].Subject
}
