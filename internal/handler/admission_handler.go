package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/internal/service"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
	"github.com/sekolahku/sims-api/pkg/response"
)

// AdmissionHandler exposes the admission workflow endpoints.
type AdmissionHandler struct {
	admissions *service.AdmissionService
	maxUpload  int64
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions *service.AdmissionService, maxUpload int64) *AdmissionHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &AdmissionHandler{admissions: admissions, maxUpload: maxUpload}
}

// List godoc
// @Summary List admissions
// @Tags Admissions
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search by applicant name"
// @Param grade query string false "Filter by grade applied"
// @Param dateFrom query string false "Application date from (YYYY-MM-DD)"
// @Param dateTo query string false "Application date to (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	var filter models.AdmissionFilter
	filter.Status = models.AdmissionStatus(strings.ToUpper(c.Query("status")))
	filter.Search = c.Query("search")
	filter.GradeApplied = c.Query("grade")
	if raw := c.Query("dateFrom"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &from
		}
	}
	if raw := c.Query("dateTo"); raw != "" {
		if to, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &to
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	admissions, pagination, err := h.admissions.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admissions, pagination)
}

// Get godoc
// @Summary Get admission by ID
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	admission, err := h.admissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// Submit godoc
// @Summary Submit admission application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body service.SubmitAdmissionRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /admissions [post]
func (h *AdmissionHandler) Submit(c *gin.Context) {
	var req service.SubmitAdmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	admission, err := h.admissions.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, admission)
}

// UpdateStatus godoc
// @Summary Transition admission status
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Admission ID"
// @Param payload body service.UpdateAdmissionStatusRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/status [patch]
func (h *AdmissionHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateAdmissionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.Status = models.AdmissionStatus(strings.ToUpper(string(req.Status)))
	if claims := claimsFromContext(c); claims != nil {
		req.ActorID = claims.UserID
	}
	outcome, err := h.admissions.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// UploadDocument godoc
// @Summary Upload admission document
// @Tags Admissions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Admission ID"
// @Param document formData file true "Document file"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/document [post]
func (h *AdmissionHandler) UploadDocument(c *gin.Context) {
	file, err := c.FormFile("document")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document file is required"))
		return
	}
	if file.Size > h.maxUpload {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "document exceeds maximum size"))
		return
	}

	src, err := file.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
		return
	}
	defer src.Close()

	admission, err := h.admissions.UploadDocument(c.Request.Context(), c.Param("id"), file.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, admission, nil)
}

// DocumentURL godoc
// @Summary Issue signed document download token
// @Tags Admissions
// @Produce json
// @Param id path string true "Admission ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/{id}/document/url [get]
func (h *AdmissionHandler) DocumentURL(c *gin.Context) {
	token, err := h.admissions.DocumentURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token}, nil)
}

// DownloadDocument godoc
// @Summary Download admission document via signed token
// @Tags Admissions
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /documents/download [get]
func (h *AdmissionHandler) DownloadDocument(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	reader, name, err := h.admissions.OpenDocument(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

// OfferLetter godoc
// @Summary Download admission offer letter PDF
// @Tags Admissions
// @Produce application/pdf
// @Param id path string true "Admission ID"
// @Success 200 {file} binary
// @Router /admissions/{id}/offer-letter [get]
func (h *AdmissionHandler) OfferLetter(c *gin.Context) {
	payload, err := h.admissions.OfferLetter(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="offer-letter.pdf"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// StatusCounts godoc
// @Summary Admission counts per status
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/stats [get]
func (h *AdmissionHandler) StatusCounts(c *gin.Context) {
	counts, err := h.admissions.StatusCounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}
