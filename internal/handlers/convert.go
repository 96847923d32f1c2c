// convert.go handles uploads, progress polling, downloads and history.
//
// POST /upload                  charge a credit and queue a conversion
// GET  /progress/:task_id       poll a conversion
// GET  /preview-data/:task_id   first rows or pages of the result
// GET  /download/:filename      fetch the converted file
// GET  /history                 the user's recent conversions
// GET  /cleanup                 sweep expired files and tasks
package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/converter"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
	pdfservice "github.com/jerin288/jdt-tool-web/internal/services/pdf"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
	"github.com/jerin288/jdt-tool-web/internal/services/worker"
)

// historyLimit caps GET /history.
const historyLimit = 50

// outputFilePattern matches the names the converter produces. Anything
// else in a download path is rejected before touching the filesystem.
var outputFilePattern = regexp.MustCompile(`^converted_[0-9a-f]{8}\.(xlsx|csv)$`)

// allowedPDFTypes are the Content-Types browsers send for PDFs. Some send
// the generic octet-stream; the magic-byte check still applies.
var allowedPDFTypes = map[string]bool{
	"":                         true,
	"application/pdf":          true,
	"application/x-pdf":        true,
	"application/octet-stream": true,
}

// Upload accepts a PDF, charges one credit and queues the conversion.
// POST /upload
//
// Accepts multipart upload with the file in "pdf_file" and the options as
// form fields.
func (h *Handler) Upload(c *gin.Context) {
	user := middleware.GetUser(c)
	maxSize := h.Settings.MaxUploadBytes

	// Limit request body size; the extra megabyte leaves room for the
	// multipart framing and option fields.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1<<20)

	file, header, err := c.Request.FormFile("pdf_file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
			return
		}
		respondError(c, http.StatusBadRequest, "no_file", "No file uploaded")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		respondError(c, http.StatusBadRequest, "no_file", "No file selected")
		return
	}
	if header.Size > maxSize {
		respondError(c, http.StatusRequestEntityTooLarge, "file_too_large", "File is too large")
		return
	}
	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		respondError(c, http.StatusBadRequest, "invalid_file_type", "Please upload a PDF file")
		return
	}
	if !allowedPDFTypes[strings.ToLower(header.Header.Get("Content-Type"))] {
		respondError(c, http.StatusBadRequest, "invalid_file_type", "Invalid file type. Please upload a PDF file")
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_options", err.Error())
		return
	}

	// Validate PDF magic bytes before anything is written to disk
	head := make([]byte, 5)
	n, _ := io.ReadFull(file, head)
	if !pdfservice.ValidatePDF(head[:n]) {
		respondError(c, http.StatusBadRequest, "invalid_pdf", "The uploaded file does not appear to be a valid PDF")
		return
	}

	taskID := uuid.NewString()
	pdfPath := filepath.Join(h.Settings.WorkDir, "upload_"+taskID+".pdf")
	if err := saveUpload(pdfPath, io.MultiReader(bytes.NewReader(head[:n]), file)); err != nil {
		logging.Error("❌ Failed to save upload", "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to save the uploaded file")
		return
	}

	ctx := c.Request.Context()
	conv := &models.Conversion{
		ID:           taskID,
		Filename:     sanitizeFilename(filepath.Base(header.Filename)),
		OutputFormat: string(opts.OutputFormat),
	}
	bal, err := h.Ledger.Charge(ctx, user.ID, conv)
	if err != nil {
		removeQuietly(pdfPath)
		if errors.Is(err, ledger.ErrInsufficientCredits) {
			respondError(c, http.StatusForbidden, "out_of_credits",
				"You are out of credits. Invite friends with your referral code or come back tomorrow for free daily credits.")
			return
		}
		logging.Error("❌ Failed to charge credit", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to start conversion")
		return
	}

	// The task must exist before a worker can report progress on it.
	if err := h.Tasks.Start(ctx, taskID, user.ID); err != nil {
		logging.Warn("failed to publish task", "task_id", taskID, "error", err)
	}

	err = h.Worker.Submit(worker.Job{
		TaskID:    taskID,
		UserID:    user.ID,
		PDFPath:   pdfPath,
		Filename:  conv.Filename,
		Options:   opts,
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.rejectQueued(c, conv, pdfPath, err)
		return
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		TaskID:           taskID,
		CreditsRemaining: bal.AvailableCredits(),
	})
}

// rejectQueued undoes a charge when the worker pool cannot take the job.
func (h *Handler) rejectQueued(c *gin.Context, conv *models.Conversion, pdfPath string, cause error) {
	ctx := c.Request.Context()
	removeQuietly(pdfPath)

	msg := "The server is busy. Your credit has been refunded, please try again shortly."
	if err := h.Tasks.Fail(ctx, conv.ID, msg); err != nil {
		logging.Warn("failed to publish failure", "task_id", conv.ID, "error", err)
	}
	if err := h.DB.FailConversion(ctx, conv.ID, msg); err != nil {
		logging.Warn("failed to record failure", "task_id", conv.ID, "error", err)
	}
	if _, err := h.Ledger.Refund(ctx, conv.ID, "queue full"); err != nil {
		logging.Error("❌ Refund failed", "task_id", conv.ID, "error", err)
	}

	logging.Warn("⚠️  Upload rejected", "task_id", conv.ID, "reason", cause)
	code := "queue_full"
	if errors.Is(cause, worker.ErrStopped) {
		code = "unavailable"
	}
	respondError(c, http.StatusServiceUnavailable, code, msg)
}

// parseOptions reads conversion options from the form. Fields that are
// missing keep their defaults.
func parseOptions(c *gin.Context) (converter.Options, error) {
	opts := converter.DefaultOptions()
	if v := strings.TrimSpace(c.PostForm("page_range")); v != "" {
		opts.PageRange = v
	}
	if v := strings.TrimSpace(c.PostForm("extract_mode")); v != "" {
		opts.ExtractMode = converter.ExtractMode(strings.ToLower(v))
	}
	if v := strings.TrimSpace(c.PostForm("output_format")); v != "" {
		opts.OutputFormat = converter.Format(strings.ToLower(v))
	}
	opts.MergeTables = formBool(c, "merge_tables", opts.MergeTables)
	opts.IncludeHeaders = formBool(c, "include_headers", opts.IncludeHeaders)
	opts.CleanData = formBool(c, "clean_data", opts.CleanData)
	opts.Password = c.PostForm("password")
	return opts, opts.Validate()
}

func formBool(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetPostForm(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1", "yes":
		return true
	default:
		return false
	}
}

func saveUpload(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		removeQuietly(path)
		return err
	}
	return f.Close()
}

func removeQuietly(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("failed to remove file", "path", path, "error", err)
	}
}

// ownTask loads a task and hides it from everyone but its owner.
func (h *Handler) ownTask(c *gin.Context) (*models.Task, bool) {
	task, err := h.Tasks.Get(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		if !errors.Is(err, progress.ErrNotFound) {
			logging.Error("❌ Failed to read task", "task_id", c.Param("task_id"), "error", err)
		}
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "message": "Task not found"})
		return nil, false
	}
	if user := middleware.GetUser(c); user == nil || task.UserID != user.ID {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found", "message": "Task not found"})
		return nil, false
	}
	return task, true
}

// Progress reports a conversion's state.
// GET /progress/:task_id
func (h *Handler) Progress(c *gin.Context) {
	task, ok := h.ownTask(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, task)
}

// PreviewData returns the preview captured when the conversion finished.
// GET /preview-data/:task_id
func (h *Handler) PreviewData(c *gin.Context) {
	task, ok := h.ownTask(c)
	if !ok {
		return
	}
	if task.Status != models.StatusCompleted || task.Preview.Empty() {
		respondError(c, http.StatusNotFound, "no_preview", "No preview data available")
		return
	}
	c.JSON(http.StatusOK, task.Preview)
}

// Download sends a converted file to its owner and schedules its removal.
// GET /download/:filename
func (h *Handler) Download(c *gin.Context) {
	user := middleware.GetUser(c)
	filename := c.Param("filename")
	if !outputFilePattern.MatchString(filename) {
		respondError(c, http.StatusBadRequest, "invalid_filename", "Invalid file name")
		return
	}

	conv, err := h.DB.GetConversionByOutputFile(c.Request.Context(), filename)
	if err != nil || conv.UserID != user.ID {
		respondError(c, http.StatusNotFound, "not_found", "File not found")
		return
	}

	path := filepath.Join(h.Settings.WorkDir, filename)
	if _, err := os.Stat(path); err != nil {
		respondError(c, http.StatusNotFound, "not_found", "File not found")
		return
	}

	downloadName := "converted.csv"
	contentType := "text/csv"
	if strings.HasSuffix(filename, ".xlsx") {
		downloadName = "converted.xlsx"
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}

	h.scheduleRemoval(path)
	c.Header("Content-Type", contentType)
	c.FileAttachment(path, downloadName)
}

// scheduleRemoval deletes path after the download retention period. The
// delay gives slow clients time to finish; the janitor catches anything
// left behind.
func (h *Handler) scheduleRemoval(path string) {
	if _, loaded := h.pendingRemoval.LoadOrStore(path, struct{}{}); loaded {
		return
	}
	time.AfterFunc(h.Settings.DownloadRetention, func() {
		defer h.pendingRemoval.Delete(path)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logging.Warn("failed to delete downloaded file", "path", path, "error", err)
			}
			return
		}
		logging.Info("🗑️  Deleted downloaded file", "path", path)
	})
}

// History lists the user's latest conversions, oldest first.
// GET /history
func (h *Handler) History(c *gin.Context) {
	user := middleware.GetUser(c)
	convs, err := h.DB.ListConversions(c.Request.Context(), user.ID, historyLimit)
	if err != nil {
		logging.Error("❌ Failed to list conversions", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load history")
		return
	}

	entries := make([]models.HistoryEntry, 0, len(convs))
	for _, conv := range convs {
		entries = append(entries, models.HistoryEntry{
			TaskID:      conv.ID,
			Filename:    conv.Filename,
			Status:      conv.Status,
			Timestamp:   conv.CreatedAt,
			OutputFile:  conv.OutputFile,
			CanDownload: h.canDownload(conv),
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *Handler) canDownload(conv models.Conversion) bool {
	if conv.Status != models.StatusCompleted || conv.OutputFile == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(h.Settings.WorkDir, conv.OutputFile))
	return err == nil
}

// Cleanup sweeps expired work files and tasks.
// GET /cleanup
func (h *Handler) Cleanup(c *gin.Context) {
	rep, err := h.Janitor.Run(c.Request.Context())
	if err != nil {
		logging.Error("❌ Cleanup failed", "error", err)
		respondError(c, http.StatusInternalServerError, "cleanup_failed", "Cleanup failed")
		return
	}
	c.JSON(http.StatusOK, rep)
}

// sanitizeFilename removes characters that aren't safe for filenames.
// Go Pattern: Keep it simple: replace unsafe characters with hyphens
// and trim the result. The name is only shown back to the user; files
// on disk are named by task id.
func sanitizeFilename(name string) string {
	// Replace common unsafe characters
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-",
		"?", "-", "\"", "-", "<", "-", ">", "-",
		"|", "-", "\n", " ", "\r", "",
	)
	name = replacer.Replace(name)

	// Collapse multiple hyphens/spaces
	for strings.Contains(name, "  ") {
		name = strings.ReplaceAll(name, "  ", " ")
	}
	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	name = strings.TrimSpace(name)

	// Limit length, keeping the extension readable
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		cut := 100 - len(ext)
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut] + ext
	}

	if name == "" {
		name = "document.pdf"
	}
	return name
}
