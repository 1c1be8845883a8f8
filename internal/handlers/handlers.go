// Package handlers implements the JSON API over the importer, the
// merchant normalizer and the job queue.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/aaron777collins/smartbudget-sub003/internal/auth"
	"github.com/aaron777collins/smartbudget-sub003/internal/database"
	"github.com/aaron777collins/smartbudget-sub003/internal/filestore"
	"github.com/aaron777collins/smartbudget-sub003/internal/importer"
	"github.com/aaron777collins/smartbudget-sub003/internal/jobs"
	"github.com/aaron777collins/smartbudget-sub003/internal/logger"
	"github.com/aaron777collins/smartbudget-sub003/internal/models"
	"github.com/aaron777collins/smartbudget-sub003/internal/normalizer"
	"github.com/aaron777collins/smartbudget-sub003/internal/version"
)

type Handler struct {
	db          *database.DB
	auth        *auth.Auth
	files       *filestore.Store
	normalizer  *normalizer.Normalizer
	useDatabase bool
}

func New(db *database.DB, a *auth.Auth, files *filestore.Store, norm *normalizer.Normalizer, useDatabase bool) *Handler {
	return &Handler{
		db:          db,
		auth:        a,
		files:       files,
		normalizer:  norm,
		useDatabase: useDatabase,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// Auth endpoints

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user_id": id})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.auth.SetSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := h.auth.TokenFromRequest(r); token != "" {
		h.auth.DeleteSession(r.Context(), token)
	}
	h.auth.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Import endpoints

// ImportStatement accepts a multipart statement upload, stores the
// file and enqueues an import_statement job. The response carries the
// job for polling.
func (h *Handler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	l := logger.FromContext(r.Context())

	if err := r.ParseMultipartForm(importer.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	if header.Size > importer.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds 10MB limit")
		return
	}

	stored, err := h.files.Save(header.Filename, file)
	if err != nil {
		l.Error("import_file_save_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	var accountID int64
	if v := r.FormValue("account_id"); v != "" {
		accountID, _ = strconv.ParseInt(v, 10, 64)
	}

	job, err := h.db.CreateJob(userID, models.JobTypeImportStatement, jobs.ImportStatementPayload{
		FileName:  stored,
		AccountID: accountID,
	}, 0)
	if err != nil {
		h.files.Delete(stored)
		l.Error("import_job_create_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	l.Info("import_job_created", "job_id", job.ID, "filename", header.Filename)
	writeJSON(w, http.StatusAccepted, job)
}

// ImportPreview parses a statement synchronously without persisting
// anything, so the UI can show what an import would produce.
func (h *Handler) ImportPreview(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(importer.MaxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, importer.MaxFileSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}
	if int64(len(data)) > importer.MaxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds 10MB limit")
		return
	}

	result, err := jobs.ParseStatement(header.Filename, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Normalizer endpoints

// Normalize runs a batch of raw merchant strings through the pipeline
// synchronously. Batches over the limit are rejected.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Merchants   []string `json:"merchants"`
		UseDatabase *bool    `json:"use_database"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	useDB := h.useDatabase
	if req.UseDatabase != nil {
		useDB = *req.UseDatabase
	}

	results, stats, err := h.normalizer.NormalizeMerchants(req.Merchants, useDB)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"stats":   stats,
	})
}

// NormalizeAsync enqueues a normalize_merchants job for batches the
// caller does not want to wait on. Results land on the completed job.
func (h *Handler) NormalizeAsync(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Merchants []string `json:"merchants"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Merchants) == 0 {
		writeError(w, http.StatusBadRequest, "merchants required")
		return
	}
	if len(req.Merchants) > normalizer.MaxBatchSize {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("batch of %d exceeds limit of %d", len(req.Merchants), normalizer.MaxBatchSize))
		return
	}

	job, err := h.db.CreateJob(userID, models.JobTypeNormalizeMerchants, jobs.NormalizeMerchantsPayload{
		Merchants:   req.Merchants,
		UseDatabase: h.useDatabase,
	}, len(req.Merchants))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// TrainMerchants enqueues a train_merchants job recording user
// corrections into the knowledge base.
func (h *Handler) TrainMerchants(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var payload jobs.TrainMerchantsPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(payload.Corrections) == 0 {
		writeError(w, http.StatusBadRequest, "corrections required")
		return
	}

	job, err := h.db.CreateJob(userID, models.JobTypeTrainMerchants, payload, len(payload.Corrections))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// Job endpoints

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	filter := models.JobFilter{
		Status: models.JobStatus(q.Get("status")),
		Type:   models.JobType(q.Get("type")),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	jobList, total, err := h.db.ListJobs(userID, filter)
	if err != nil {
		logger.FromContext(r.Context()).Error("job_list_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobList == nil {
		jobList = []models.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobList,
		"total": total,
	})
}

// GetJob returns one of the caller's jobs. Jobs that do not exist and
// jobs owned by someone else produce the same 404.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	job, err := h.db.GetJob(r.PathValue("id"), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob cancels a pending or running job. A job in a terminal
// state yields 409; absent or not-owned yields 404.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	id := r.PathValue("id")
	l := logger.FromContext(r.Context())

	job, err := h.db.GetJob(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	cancelled, err := h.db.CancelJob(id, userID)
	if err != nil {
		l.Error("job_cancel_error", "job_id", id, "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	if !cancelled {
		writeError(w, http.StatusConflict, "job is not cancellable")
		return
	}

	l.Info("job_cancelled", "job_id", id)
	job, err = h.db.GetJob(id, userID)
	if err != nil || job == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Transactions

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	txns, total, err := h.db.ListTransactions(userID, limit, offset)
	if err != nil {
		logger.FromContext(r.Context()).Error("transaction_list_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txns,
		"total":        total,
	})
}

// Accounts

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		LastFour string `json:"last_four"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}

	acct := &models.Account{UserID: userID, Name: req.Name, Type: req.Type, LastFour: req.LastFour}
	id, err := h.db.CreateAccount(acct)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}
	acct.ID = id
	writeJSON(w, http.StatusCreated, acct)
}

// Version reports build information.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	})
}
