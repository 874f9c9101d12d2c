package api

import (
	"errors"
	"net/http"
	"path/filepath"

	apperrors "unipal-workers/internal/common/errors"
	"unipal-workers/internal/documents"
	"unipal-workers/internal/export"
	"unipal-workers/internal/models"
	"unipal-workers/internal/pipeline"
	"unipal-workers/internal/store"

	"github.com/gin-gonic/gin"
)

type recommendationResponse struct {
	SessionID        string                   `json:"sessionId"`
	ApplicationState models.ApplicationState  `json:"applicationState"`
	Messages         []pipeline.StatusMessage `json:"messages"`
	ExportPath       string                   `json:"exportPath,omitempty"`
}

type errorResponse struct {
	Error       *apperrors.StandardError `json:"error"`
	FieldErrors interface{}              `json:"fieldErrors,omitempty"`
	Messages    []pipeline.StatusMessage `json:"messages,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// recommend runs the pipeline for the posted profile. ?export=xlsx also
// writes the shortlist spreadsheet.
func (s *Server) recommend(c *gin.Context) {
	if s.opts.Runner == nil {
		err := s.opts.Unavailable
		if err == nil {
			err = apperrors.NewConfigInvalidError("recommendation pipeline is not configured")
		}
		s.writeError(c, err)
		return
	}

	var profile models.StudentProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: apperrors.NewInvalidJobInputError(err)})
		return
	}

	session := pipeline.NewSession(profile)
	defer session.Close()

	state, err := s.opts.Runner.Run(c.Request.Context(), session)
	if err != nil {
		resp := errorResponse{Error: apperrors.AsStandard(err), Messages: session.MessagesSnapshot()}
		if session.Validation != nil {
			resp.FieldErrors = session.Validation.Errors
		}
		c.JSON(statusFor(resp.Error), resp)
		return
	}

	resp := recommendationResponse{
		SessionID:        session.ID,
		ApplicationState: state,
		Messages:         session.MessagesSnapshot(),
	}

	if c.Query("export") == "xlsx" {
		path, err := export.WriteShortlist(filepath.Join(s.opts.ExportDir, session.ID), state)
		if err != nil {
			s.logger.Warn("shortlist export failed", map[string]interface{}{"sessionId": session.ID, "error": err})
		} else {
			resp.ExportPath = path
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) getStudent(c *gin.Context) {
	if s.opts.Students == nil {
		s.writeError(c, apperrors.NewConfigInvalidError("student store is not configured"))
		return
	}

	contact := c.Param("contact")
	profile, err := s.opts.Students.Get(c.Request.Context(), contact)
	if errors.Is(err, store.ErrStudentNotFound) {
		s.writeError(c, apperrors.NewStudentNotFoundError(contact))
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"studentProfile": profile})
}

func (s *Server) clearStudents(c *gin.Context) {
	var deleted int64
	if s.opts.Students != nil {
		n, err := s.opts.Students.Clear(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
		deleted = n
	}
	if s.opts.Snapshot != nil {
		if err := s.opts.Snapshot.Clear(); err != nil {
			s.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) checklist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"documents": documents.StandardChecklist()})
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := apperrors.AsStandard(err)
	status := statusFor(stdErr)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"path":      c.FullPath(),
			"errorCode": string(stdErr.Code),
			"error":     err,
		})
	}
	c.JSON(status, errorResponse{Error: stdErr})
}

func statusFor(stdErr *apperrors.StandardError) int {
	switch {
	case stdErr.Code == apperrors.ErrCodeStudentNotFound:
		return http.StatusNotFound
	case apperrors.GetErrorCategory(stdErr.Code) == "VALIDATION":
		return http.StatusBadRequest
	case apperrors.GetErrorCategory(stdErr.Code) == "CONFIGURATION":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
