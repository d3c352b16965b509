// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package api

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"net/http"
	"strings"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/engine"
	"github.com/ZSC714725/pairview/internal/player"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/gin-gonic/gin"
)

// Player is what the handlers drive. *player.Player implements it.
type Player interface {
	Open(side, path string) error
	Play() error
	Pause()
	Toggle() (bool, error)
	Step(delta int) error
	Seek(pos int) error
	SetOffset(offset int) int
	Resize(size decoder.Size)
	SetMode(mode string) error
	LoadMetrics(path string) error
	EnableMetrics(names []string) error
	Snapshot() player.State
	Frame() image.Image
	Workers() []worker.Stats
}

// Handler holds dependencies
type Handler struct {
	player Player
}

// NewHandler creates API handler
func NewHandler(p Player) *Handler {
	return &Handler{player: p}
}

func errResp(c *gin.Context, code int, msg, detail string) {
	c.JSON(code, ErrorResponse{Code: code, Message: msg, Detail: detail})
}

// playerErr maps player and engine errors to a response
func playerErr(c *gin.Context, err error) {
	var openErr *engine.OpenError
	switch {
	case errors.As(err, &openErr):
		errResp(c, http.StatusBadRequest, "Can't open source", err.Error())
	case errors.Is(err, engine.ErrBadSide):
		errResp(c, http.StatusNotFound, "Unknown side", "Known: left, right")
	case errors.Is(err, player.ErrNotReady):
		errResp(c, http.StatusConflict, "Sources not ready", err.Error())
	case errors.Is(err, player.ErrUnknownMode):
		errResp(c, http.StatusBadRequest, "Unknown mode", err.Error())
	case errors.Is(err, player.ErrUnknownStat):
		errResp(c, http.StatusBadRequest, "Unknown metric", err.Error())
	case errors.Is(err, engine.ErrClosed):
		errResp(c, http.StatusServiceUnavailable, "Engine closed", err.Error())
	default:
		errResp(c, http.StatusInternalServerError, "Engine error", err.Error())
	}
}

// GetState GET /api/v1/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// GetFrame GET /api/v1/frame.png
func (h *Handler) GetFrame(c *gin.Context) {
	img := h.player.Frame()
	if img == nil {
		errResp(c, http.StatusNotFound, "No frame rendered yet", "")
		return
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		errResp(c, http.StatusInternalServerError, "Encode failed", err.Error())
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GetWorkers GET /api/v1/workers
func (h *Handler) GetWorkers(c *gin.Context) {
	stats := h.player.Workers()
	reports := make([]WorkerReport, 0, len(stats))
	for _, st := range stats {
		reports = append(reports, workerReport(st))
	}
	c.JSON(http.StatusOK, reports)
}

// OpenSource POST /api/v1/source/:side
func (h *Handler) OpenSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.player.Open(c.Param("side"), req.Path); err != nil {
		playerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// Playback PUT /api/v1/playback
func (h *Handler) Playback(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}

	var playing bool
	var err error
	switch req.Command {
	case "play":
		err = h.player.Play()
		playing = err == nil
	case "pause":
		h.player.Pause()
	case "toggle":
		playing, err = h.player.Toggle()
	default:
		errResp(c, http.StatusBadRequest, "Unknown command", "Known: play, pause, toggle")
		return
	}

	if err != nil {
		playerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, PlaybackResponse{Playing: playing})
}

// Seek PUT /api/v1/playback/seek
func (h *Handler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.player.Seek(*req.Position); err != nil {
		playerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// Step PUT /api/v1/playback/step
func (h *Handler) Step(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.player.Step(req.Delta); err != nil {
		playerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// SetOffset PUT /api/v1/offset
func (h *Handler) SetOffset(c *gin.Context) {
	var req OffsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	h.player.SetOffset(*req.Offset)
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// SetView PUT /api/v1/view
func (h *Handler) SetView(c *gin.Context) {
	var req ViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.player.SetMode(req.Mode); err != nil {
		playerErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// SetCanvas PUT /api/v1/canvas
func (h *Handler) SetCanvas(c *gin.Context) {
	var req CanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	h.player.Resize(decoder.Size{W: req.Width, H: req.Height})
	c.JSON(http.StatusOK, h.player.Snapshot())
}

// SetMetrics PUT /api/v1/metrics
func (h *Handler) SetMetrics(c *gin.Context) {
	var req MetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errResp(c, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if req.Enabled != nil {
		if err := h.player.EnableMetrics(req.Enabled); err != nil {
			playerErr(c, err)
			return
		}
	}
	if req.File != "" {
		if err := h.player.LoadMetrics(req.File); err != nil {
			errResp(c, http.StatusBadRequest, "Can't load metrics", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, h.player.Snapshot())
}

func workerReport(st worker.Stats) WorkerReport {
	r := WorkerReport{
		ID:         st.ID,
		Side:       st.Side,
		Source:     st.Source,
		Isolation:  st.Isolation,
		State:      st.State,
		Pid:        st.Pid,
		CPU:        st.CPU,
		Memory:     st.Memory,
		PeakMemory: st.PeakMemory,
		Log:        make([][2]string, 0, len(st.Log)),
	}
	if !st.Started.IsZero() {
		r.Runtime = int64(time.Since(st.Started).Seconds())
	}
	for _, line := range st.Log {
		ts, data, _ := strings.Cut(line, " ")
		r.Log = append(r.Log, [2]string{ts, data})
	}
	return r
}
