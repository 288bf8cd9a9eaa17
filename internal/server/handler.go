package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livechart/internal/correlate"
	"livechart/internal/export"
	"livechart/internal/live"
	"livechart/internal/poller"
	"livechart/internal/types"
)

type handler struct {
	session *live.Session
	logger  *zap.Logger
}

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, poller.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrControlRejected),
		errors.Is(err, live.ErrNoSelection),
		errors.Is(err, poller.ErrIdle),
		errors.Is(err, poller.ErrRefreshRunning):
		return http.StatusConflict
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrNetworkFailure), errors.Is(err, types.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	msg := err.Error()
	var rej *types.ControlRejectedError
	if errors.As(err, &rej) {
		msg = rej.Reason
	}
	c.JSON(statusFor(err), gin.H{"error": msg})
}

func (h *handler) instruments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	out, err := h.session.SearchInstruments(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) resolutions(c *gin.Context) {
	c.JSON(http.StatusOK, types.Resolutions)
}

func (h *handler) selectSeries(c *gin.Context) {
	var req struct {
		Instrument string `json:"instrument" binding:"required"`
		Resolution string `json:"resolution" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.Select(req.Instrument, req.Resolution); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Frame())
}

func (h *handler) deselect(c *gin.Context) {
	h.session.Deselect()
	c.JSON(http.StatusOK, h.session.Frame())
}

func (h *handler) refresh(c *gin.Context) {
	if err := h.session.Refresh(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Frame())
}

func (h *handler) series(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Frame())
}

func (h *handler) annotations(c *gin.Context) {
	buys, sells := correlate.Partition(h.session.Annotations())
	if buys == nil {
		buys = []types.AnnotationPoint{}
	}
	if sells == nil {
		sells = []types.AnnotationPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"buys": buys, "sells": sells})
}

func (h *handler) start(c *gin.Context) {
	msg, err := h.session.StartTrading(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *handler) stop(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	msg, err := h.session.StopTrading(c.Request.Context(), req.Symbol)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *handler) status(c *gin.Context) {
	st, err := h.session.Status(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) listLogs(c *gin.Context) {
	source, err := types.ParseLogSource(c.Query("source"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files, err := h.session.ListLogs(c.Request.Context(), source)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *handler) openLog(c *gin.Context) {
	source, err := types.ParseLogSource(c.Param("source"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.session.OpenLog(c.Request.Context(), source, c.Param("file"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// logSummary aggregates a log's trades per symbol, as csv (default) or json.
func (h *handler) logSummary(c *gin.Context) {
	source, err := types.ParseLogSource(c.Param("source"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := h.session.OpenLog(c.Request.Context(), source, c.Param("file"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if view.Statistics == nil {
		h.fail(c, types.ErrNotFound)
		return
	}

	rows := export.Summarize(view.Trades)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, rows)
		return
	}
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := export.WriteSummary(c.Writer, rows, "csv"); err != nil {
		h.logger.Error("log summary failed", zap.Error(err))
		_ = c.Error(err)
	}
}

func (h *handler) exportSeries(c *gin.Context) {
	saver := export.NewSaver(c.DefaultQuery("format", "csv"))
	if saver == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv, parquet or json"})
		return
	}

	frame := h.session.Frame()
	if frame.Key.IsZero() {
		h.fail(c, live.ErrNoSelection)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.%s",
		export.FileSafe(frame.Key.Instrument), frame.Key.Resolution,
		time.Now().UTC().Format("20060102_150405"), saver.Extension())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", saver.ContentType())
	c.Status(http.StatusOK)

	if err := saver.Write(c.Writer, export.RowsFromBars(frame.Bars, frame.Annotations)); err != nil {
		h.logger.Error("series export failed", zap.Error(err))
		_ = c.Error(err)
	}
}
