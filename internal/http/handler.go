package http

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"speedcam-service/internal/config"
	"speedcam-service/internal/detector"
	"speedcam-service/internal/domain/traffic"
	"speedcam-service/internal/report"
	"speedcam-service/internal/service"
)

type Handler struct {
	violations *service.ViolationService
	detector   *detector.PlateDetector
	config     *config.Config
	log        zerolog.Logger
}

func NewHandler(
	violations *service.ViolationService,
	plateDetector *detector.PlateDetector,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		violations: violations,
		detector:   plateDetector,
		config:     cfg,
		log:        log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.POST("/frames", h.ingestFrame)
		public.GET("/violations", h.listViolations)
		public.GET("/violations/export", h.exportViolations)
		public.GET("/owners", h.getOwner)
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/owners", h.createOwner)
	}
}

// maxFrameBytes caps a single ingested image so an oversized upload cannot
// exhaust memory. Camera stills are well under this.
const maxFrameBytes = 10 << 20

type frameRequest struct {
	ImageBase64 string `json:"image_base64"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// ingestFrame accepts one frame (base64 JSON or a multipart "image" part)
// and runs it through the full pipeline synchronously.
func (h *Handler) ingestFrame(c *gin.Context) {
	// Base64 overhead and multipart framing stay within 2x the frame cap.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*maxFrameBytes)

	frame, err := h.frameFromRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	det, candidates, err := h.detector.Detect(c.Request.Context(), frame)
	if err != nil {
		h.log.Error().Err(err).Msg("ocr failed for ingested frame")
		c.JSON(http.StatusBadGateway, errorResponse("ocr unavailable"))
		return
	}
	if det == nil {
		c.JSON(http.StatusOK, gin.H{
			"detected":   false,
			"candidates": len(candidates),
		})
		return
	}

	result, err := h.violations.ProcessDetection(c.Request.Context(), det, frame, candidates)
	if err != nil {
		if errors.Is(err, traffic.ErrUnknownPlate) {
			c.JSON(http.StatusNotFound, gin.H{
				"detected":  true,
				"detection": det,
				"error":     "license plate is not registered",
			})
			return
		}
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"detected":  true,
		"detection": det,
		"result":    result,
	})
}

func (h *Handler) frameFromRequest(c *gin.Context) (*traffic.Frame, error) {
	contentType := c.ContentType()

	if strings.HasPrefix(contentType, "multipart/") {
		fileHeader, err := c.FormFile("image")
		if err != nil {
			return nil, errors.New("multipart field 'image' is required")
		}
		if fileHeader.Size > maxFrameBytes {
			return nil, errors.New("image exceeds maximum frame size")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, err
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxFrameBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > maxFrameBytes {
			return nil, errors.New("image exceeds maximum frame size")
		}
		return &traffic.Frame{Data: data, CapturedAt: time.Now()}, nil
	}

	var req frameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	if req.ImageBase64 == "" {
		return nil, errors.New("image_base64 is required")
	}
	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		return nil, errors.New("image_base64 is not valid base64")
	}
	return &traffic.Frame{
		Data:       data,
		Width:      req.Width,
		Height:     req.Height,
		CapturedAt: time.Now(),
	}, nil
}

func (h *Handler) listViolations(c *gin.Context) {
	plateQuery, from, to := queryFilters(c)

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	violations, err := h.violations.FindViolations(c.Request.Context(), plateQuery, from, to, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(violations))
}

func (h *Handler) exportViolations(c *gin.Context) {
	plateQuery, from, to := queryFilters(c)

	violations, err := h.violations.ExportViolations(c.Request.Context(), plateQuery, from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}

	workbook, err := report.BuildViolationsWorkbook(violations)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build violations workbook")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer workbook.Close()

	var buf bytes.Buffer
	if _, err := workbook.WriteTo(&buf); err != nil {
		h.log.Error().Err(err).Msg("failed to serialize violations workbook")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	filename := "violations-" + time.Now().Format("20060102-150405") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *Handler) getOwner(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, errorResponse("plate parameter is required"))
		return
	}

	owner, err := h.violations.GetOwner(c.Request.Context(), plate)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(owner))
}

type createOwnerRequest struct {
	LicensePlate      string     `json:"license_plate" binding:"required"`
	OwnerName         string     `json:"owner_name" binding:"required"`
	Phone             string     `json:"phone"`
	LicenseExpiryDate *time.Time `json:"license_expiry_date"`
	City              string     `json:"city"`
	Region            string     `json:"region"`
	Country           string     `json:"country"`
}

func (h *Handler) createOwner(c *gin.Context) {
	var req createOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	owner := &traffic.Owner{
		LicensePlate:      req.LicensePlate,
		OwnerName:         req.OwnerName,
		Phone:             req.Phone,
		LicenseExpiryDate: req.LicenseExpiryDate,
		City:              req.City,
		Region:            req.Region,
		Country:           req.Country,
	}
	if err := h.violations.CreateOwner(c.Request.Context(), owner); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":        "ok",
		"license_plate": owner.LicensePlate,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func queryFilters(c *gin.Context) (plate, from, to *string) {
	if p := strings.TrimSpace(c.Query("plate")); p != "" {
		plate = &p
	}
	if f := strings.TrimSpace(c.Query("from")); f != "" {
		from = &f
	}
	if t := strings.TrimSpace(c.Query("to")); t != "" {
		to = &t
	}
	return plate, from, to
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
