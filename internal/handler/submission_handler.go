package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/examvault/internal/middleware"
	"github.com/stemsi/examvault/internal/model"
	"github.com/stemsi/examvault/internal/response"
	"github.com/stemsi/examvault/internal/service"
)

// SubmissionHandler receives uploaded submission packages and serves stored
// analyses.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	maxUploadBytes    int64
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService, maxUploadBytes int64) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		maxUploadBytes:    maxUploadBytes,
	}
}

// Upload handles POST /submissions. The body is one multipart request per
// full exam submission: identifier fields plus a "package" file part
// carrying the SubmissionPackage JSON. Retries are safe — reprocessing an
// analyzed session returns the stored result.
func (h *SubmissionHandler) Upload(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, _, err := c.Request.FormFile("package")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrPackageMalformed)
		return
	}
	defer file.Close()

	var pkg model.SubmissionPackage
	if err := json.NewDecoder(file).Decode(&pkg); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrPackageMalformed)
		return
	}

	if pkg.SessionID == uuid.Nil || pkg.ExamID == uuid.Nil || len(pkg.Submissions) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	if !metadataMatchesPackage(c.PostForm, &pkg) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	// The package is bound to the authenticated uploader regardless of what
	// the client claims.
	pkg.UserID = claims.UserID

	receipt, err := h.submissionService.Process(c.Request.Context(), &pkg)
	if err != nil {
		if errors.Is(err, service.ErrProcessingInProgress) {
			response.Fail(c, http.StatusConflict, response.ErrDuplicateSubmission)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, receipt)
}

// metadataMatchesPackage cross-checks the multipart identifier fields
// against the decoded package part. The JSON part is authoritative; any
// field the uploader sends must agree with it. Absent fields are fine.
func metadataMatchesPackage(field func(string) string, pkg *model.SubmissionPackage) bool {
	if v := field("exam_id"); v != "" && v != pkg.ExamID.String() {
		return false
	}
	if v := field("session_id"); v != "" && v != pkg.SessionID.String() {
		return false
	}
	if v := field("started_at"); v != "" && v != pkg.StartedAt.Format(time.RFC3339) {
		return false
	}
	if v := field("finished_at"); v != "" && v != pkg.FinishedAt.Format(time.RFC3339) {
		return false
	}
	return true
}

// GetAnalyzed handles GET /admin/submissions/:session_id.
func (h *SubmissionHandler) GetAnalyzed(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	analyzed, err := h.submissionService.GetAnalyzed(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, analyzed)
}
