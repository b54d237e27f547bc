// Package server exposes the dashboard as a JSON API for a front end.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jra3/sprintdash/internal/aggregate"
	"github.com/jra3/sprintdash/internal/config"
	"github.com/jra3/sprintdash/internal/dashboard"
)

// SettingsPath is where front ends send the user when the connection is not
// configured.
const SettingsPath = "/settings"

type Handler struct {
	Dash *dashboard.Dashboard
	Log  *zap.Logger
}

// NewRouter wires the API routes with request logging and panic recovery.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(ginzap.Ginzap(h.Log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(h.Log, true))

	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/sprints", h.Sprints)
		api.GET("/points", h.Points)
		api.POST("/refresh", h.Refresh)
		api.GET("/config", h.GetConfig)
		api.PUT("/config", h.PutConfig)
		api.GET("/config/export", h.ExportConfig)
		api.POST("/config/import", h.ImportConfig)
		api.GET("/boards/remote", h.RemoteBoards)
		api.GET("/alerts", h.Alerts)
		api.DELETE("/alerts/:index", h.DismissAlert)
	}
	return router
}

// Serve runs the API on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, h *Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewRouter(h),
	}

	errCh := make(chan error, 1)
	go func() {
		h.Log.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.Log.Info("Shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func (h *Handler) Health(c *gin.Context) {
	_, loaded := h.Dash.Items()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "loaded": loaded})
}

func (h *Handler) Sprints(c *gin.Context) {
	v, ok := h.view(c, dashboard.TabTickets)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":    v.Items,
		"options":  v.Options,
		"filter":   v.Filter,
		"loadedAt": v.LoadedAt,
	})
}

func (h *Handler) Points(c *gin.Context) {
	v, ok := h.view(c, dashboard.TabPoints)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sprints":  v.Sprints,
		"rows":     v.Rows,
		"matrix":   v.Matrix,
		"options":  v.Options,
		"filter":   v.Filter,
		"loadedAt": v.LoadedAt,
	})
}

// view reloads when nothing is loaded or the cache has expired, then applies
// the query filter.
func (h *Handler) view(c *gin.Context, tab string) (dashboard.View, bool) {
	ctx := c.Request.Context()
	if err := h.Dash.Ensure(ctx); err != nil {
		h.fail(c, err)
		return dashboard.View{}, false
	}
	if err := h.Dash.State().SetActiveTab(ctx, tab); err != nil {
		h.Log.Warn("could not record active tab", zap.Error(err))
	}
	return h.Dash.View(filterFromQuery(c)), true
}

func filterFromQuery(c *gin.Context) aggregate.Filter {
	return aggregate.Filter{
		User:   c.QueryArray("user"),
		Board:  c.QueryArray("board"),
		Sprint: c.QueryArray("sprint"),
	}
}

type refreshRequest struct {
	Boards []string `json:"boards"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
			return
		}
	}

	res, err := h.Dash.Refresh(c.Request.Context(), req.Boards)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sprints":    len(res.Items),
		"generation": res.Generation,
		"expiresAt":  res.ExpiresAt,
	})
}

// configResponse never carries the API key itself.
type configResponse struct {
	config.JiraConfig
	APIKey    string   `json:"apiKey,omitempty"`
	HasAPIKey bool     `json:"hasApiKey"`
	Missing   []string `json:"missing"`
}

func (h *Handler) GetConfig(c *gin.Context) {
	stored := h.Dash.State().StoredConfig()
	effective := h.Dash.State().Config()
	c.JSON(http.StatusOK, configResponse{
		JiraConfig: stored,
		HasAPIKey:  effective.APIKey != "",
		Missing:    effective.Missing(),
	})
}

func (h *Handler) PutConfig(c *gin.Context) {
	var cfg config.JiraConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON payload"})
		return
	}
	if cfg.APIKey == "" {
		// Clients that only saw the redacted config keep the stored key.
		cfg.APIKey = h.Dash.State().StoredConfig().APIKey
	}
	if err := h.Dash.State().SetConfig(c.Request.Context(), cfg); err != nil {
		h.fail(c, err)
		return
	}
	h.Dash.State().AddAlert(dashboard.SeveritySuccess, "Options saved")
	h.GetConfig(c)
}

func (h *Handler) ExportConfig(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.DefaultQuery("confirm", "false"))
	data, err := config.Export(h.Dash.State().StoredConfig(), confirm)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="jira-config.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (h *Handler) ImportConfig(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}
	cfg, err := config.Import(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Dash.State().SetConfig(c.Request.Context(), cfg); err != nil {
		h.fail(c, err)
		return
	}
	h.Dash.State().AddAlert(dashboard.SeveritySuccess, "Options imported")
	h.GetConfig(c)
}

func (h *Handler) RemoteBoards(c *gin.Context) {
	boards, err := h.Dash.RemoteBoards(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": boards})
}

func (h *Handler) Alerts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"alerts": h.Dash.State().Alerts()})
}

func (h *Handler) DismissAlert(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alert index must be a number"})
		return
	}
	if err := h.Dash.State().RemoveAlert(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps pipeline errors to responses: missing configuration redirects to
// the settings, validation problems are the client's, anything else is an
// upstream failure.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dashboard.ErrConfigMissing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "redirect": SettingsPath})
	case errors.Is(err, dashboard.ErrStaleFetch):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, config.ErrDuplicateBoard):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
