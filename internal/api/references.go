package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/reference"
)

func (s *Server) handleListReferences(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}

	var category domain.ReportType
	if raw := c.Query("category"); raw != "" {
		rt, err := domain.ParseReportType(raw)
		if err != nil {
			s.respondError(c, err)
			return
		}
		category = rt
	}

	refs, err := s.deps.References.List(c.Request.Context(), category, c.Query("test_name"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reference_values": refs, "count": len(refs)})
}

func (s *Server) handleCreateReference(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}

	var ref domain.ReferenceValue
	if err := c.ShouldBindJSON(&ref); err != nil {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("body", "invalid JSON body", err.Error())})
		return
	}
	ref.ID = ""
	if err := s.deps.References.Create(c.Request.Context(), &ref); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (s *Server) handleGetReference(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}
	ref, err := s.deps.References.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (s *Server) handleUpdateReference(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}

	var patch reference.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("body", "invalid JSON body", err.Error())})
		return
	}
	ref, err := s.deps.References.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

func (s *Server) handleDeleteReference(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}
	if err := s.deps.References.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExportReferences(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="reference-values.json"`)
	if err := s.deps.References.Export(c.Request.Context(), c.Writer); err != nil {
		s.respondError(c, err)
	}
}

func (s *Server) handleImportReferences(c *gin.Context) {
	if s.deps.References == nil {
		s.respondUnavailable(c, "reference storage")
		return
	}
	if c.Request.ContentLength == 0 {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("body", errMissingBody.Error(), nil)})
		return
	}
	imported, skipped, err := s.deps.References.Import(c.Request.Context(), c.Request.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imported": imported, "skipped": skipped})
}
