package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/labpanel-mcp-server/internal/domain"
	"github.com/labpanel-mcp-server/internal/ocr"
	"github.com/labpanel-mcp-server/internal/service"
)

// analyzeRequest is the JSON form of an analyze call.
type analyzeRequest struct {
	Text       string `json:"text"`
	FileName   string `json:"file_name"`
	ReportType string `json:"report_type"`
	Persist    *bool  `json:"persist"`

	Patient *patientRequest `json:"patient_info"`
}

// patientRequest overrides patient fields extracted from the report.
type patientRequest struct {
	Name   *string `json:"name"`
	Age    *int    `json:"age"`
	Gender string  `json:"gender"`
}

type statusRequest struct {
	Status domain.ReportStatus `json:"status"`
}

// handleAnalyze accepts either a multipart upload in the "file" field or a
// JSON body with extracted text.
func (s *Server) handleAnalyze(c *gin.Context) {
	if s.deps.Analyzer == nil {
		s.respondUnavailable(c, "analyzer")
		return
	}

	params, ok := s.analyzeParams(c)
	if !ok {
		return
	}

	result, err := s.deps.Analyzer.Analyze(c.Request.Context(), params)
	if err != nil {
		s.respondError(c, err)
		return
	}

	status := http.StatusOK
	if result.ReportID != "" {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (s *Server) analyzeParams(c *gin.Context) (service.AnalyzeParams, bool) {
	params := service.AnalyzeParams{Persist: s.deps.Reports != nil}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("file", "No file uploaded", nil)})
			return params, false
		}
		mimeType := header.Header.Get("Content-Type")
		if errs := ocr.ValidateUpload(header.Filename, mimeType, header.Size, s.uploadLimits); len(errs) > 0 {
			s.respondValidation(c, errs)
			return params, false
		}

		f, err := header.Open()
		if err != nil {
			s.respondError(c, err)
			return params, false
		}
		defer f.Close()
		content, err := io.ReadAll(f)
		if err != nil {
			s.respondError(c, err)
			return params, false
		}

		params.FileName = header.Filename
		params.MimeType = mimeType
		params.Content = content
		if !s.applyReportType(c, &params, c.PostForm("report_type")) {
			return params, false
		}
		if v := c.PostForm("persist"); v != "" {
			params.Persist = params.Persist && v != "false"
		}

		override := &patientRequest{Gender: c.PostForm("patient_gender")}
		if v := c.PostForm("patient_name"); v != "" {
			override.Name = &v
		}
		if v := c.PostForm("patient_age"); v != "" {
			age, err := strconv.Atoi(v)
			if err != nil {
				s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("patient_age", "age must be an integer", v)})
				return params, false
			}
			override.Age = &age
		}
		return params, s.applyPatient(c, &params, override)
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("body", "invalid JSON body", err.Error())})
		return params, false
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("text", "text is required", nil)})
		return params, false
	}
	params.Text = req.Text
	params.FileName = req.FileName
	params.MimeType = "text/plain"
	if req.Persist != nil {
		params.Persist = params.Persist && *req.Persist
	}
	if !s.applyReportType(c, &params, req.ReportType) {
		return params, false
	}
	return params, s.applyPatient(c, &params, req.Patient)
}

// applyPatient sets params.Patient when the request overrides any field.
func (s *Server) applyPatient(c *gin.Context, params *service.AnalyzeParams, req *patientRequest) bool {
	if req == nil || (req.Name == nil && req.Age == nil && req.Gender == "") {
		return true
	}
	var errs []domain.ValidationError
	patient := &domain.PatientInfo{Name: req.Name, Age: req.Age}
	if req.Age != nil && (*req.Age < 0 || *req.Age > 150) {
		errs = append(errs, *domain.NewValidationError("patient_info.age", "age must be between 0 and 150", *req.Age))
	}
	if req.Gender != "" {
		g, ok := domain.ParseGender(req.Gender)
		if !ok {
			errs = append(errs, *domain.NewValidationError("patient_info.gender", "gender must be male, female or other", req.Gender))
		}
		patient.Gender = &g
	}
	if len(errs) > 0 {
		s.respondValidation(c, errs)
		return false
	}
	params.Patient = patient
	return true
}

func (s *Server) applyReportType(c *gin.Context, params *service.AnalyzeParams, raw string) bool {
	if raw == "" {
		return true
	}
	rt, err := domain.ParseReportType(raw)
	if err != nil {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("report_type", err.Error(), raw)})
		return false
	}
	params.ReportType = rt
	return true
}

func (s *Server) handleListReports(c *gin.Context) {
	if s.deps.Reports == nil {
		s.respondUnavailable(c, "report storage")
		return
	}

	filter := domain.ReportFilter{Status: domain.ReportStatus(c.Query("status"))}
	if raw := c.Query("report_type"); raw != "" {
		rt, err := domain.ParseReportType(raw)
		if err != nil {
			s.respondError(c, err)
			return
		}
		filter.ReportType = rt
	}
	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		s.respondError(c, err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		s.respondError(c, err)
		return
	}

	reports, err := s.deps.Reports.ListReports(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) handleGetReport(c *gin.Context) {
	if s.deps.Reports == nil {
		s.respondUnavailable(c, "report storage")
		return
	}
	report, err := s.deps.Reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleUpdateReportStatus(c *gin.Context) {
	if s.deps.Reports == nil {
		s.respondUnavailable(c, "report storage")
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondValidation(c, []domain.ValidationError{*domain.NewValidationError("body", "invalid JSON body", err.Error())})
		return
	}
	if !req.Status.IsValid() {
		s.respondError(c, domain.ErrInvalidReportStatus)
		return
	}

	id := c.Param("id")
	if err := s.deps.Reports.UpdateReportStatus(c.Request.Context(), id, req.Status); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (s *Server) handleDeleteReport(c *gin.Context) {
	if s.deps.Reports == nil {
		s.respondUnavailable(c, "report storage")
		return
	}
	if err := s.deps.Reports.DeleteReport(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer", raw)
	}
	return n, nil
}

var errMissingBody = errors.New("request body is required")
