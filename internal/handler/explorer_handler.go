package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quizroom/quizroom-backend/internal/model"
	"github.com/quizroom/quizroom-backend/internal/response"
	"github.com/quizroom/quizroom-backend/internal/validator"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExplorerHandler serves the tag-subject relationship reports.
type ExplorerHandler struct {
	explorerService ExplorerService
	log             zerolog.Logger
}

// NewExplorerHandler creates a new ExplorerHandler.
func NewExplorerHandler(explorerService ExplorerService, log zerolog.Logger) *ExplorerHandler {
	return &ExplorerHandler{
		explorerService: explorerService,
		log:             log.With().Str("component", "explorer_handler").Logger(),
	}
}

// List godoc
// GET /api/v1/explorer/relationships?subject_id=&tag_id=&search=&page=&per_page=
func (h *ExplorerHandler) List(c *gin.Context) {
	var q model.RelationshipQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rels, pagination, err := h.explorerService.List(c.Request.Context(), q.Filter())
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, rels, pagination)
}

// Summary godoc
// GET /api/v1/explorer/summary?top=5
func (h *ExplorerHandler) Summary(c *gin.Context) {
	topN := 0
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"top": "top must be a positive integer"})
			return
		}
		topN = n
	}

	summary, err := h.explorerService.Summary(c.Request.Context(), topN)
	if err != nil {
		failFromError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// Export godoc
// GET /api/v1/explorer/export
// Downloads the filtered relationships as an XLSX workbook.
func (h *ExplorerHandler) Export(c *gin.Context) {
	var q model.RelationshipQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	// Buffer so a failure halfway can still be reported as JSON.
	var buf bytes.Buffer
	if err := h.explorerService.ExportXLSX(c.Request.Context(), q.Filter(), &buf); err != nil {
		failFromError(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("relationships-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
