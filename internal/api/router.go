// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package api

import (
	"time"

	"github.com/ZSC714725/pairview/internal/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the handler routes, CORS and the metrics endpoint.
// A nil gatherer serves the default registry.
func NewRouter(h *Handler, gatherer prom.Gatherer, log logger.Logger) *gin.Engine {
	if gatherer == nil {
		gatherer = prom.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), cors.Default(), accessLog(logger.OrNop(log)))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/state", h.GetState)
		v1.GET("/frame.png", h.GetFrame)
		v1.GET("/workers", h.GetWorkers)

		v1.POST("/source/:side", h.OpenSource)

		v1.PUT("/playback", h.Playback)
		v1.PUT("/playback/seek", h.Seek)
		v1.PUT("/playback/step", h.Step)
		v1.PUT("/offset", h.SetOffset)

		v1.PUT("/view", h.SetView)
		v1.PUT("/canvas", h.SetCanvas)
		v1.PUT("/metrics", h.SetMetrics)
	}
	return r
}

func accessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
