// Package handler wires the HTTP surface: anonymous session minting, the
// WebSocket upgrade, and the monitoring endpoints.
package handler

import (
	"peerlink/backend/internal/config"
	"peerlink/backend/internal/matchhub"
	"peerlink/backend/internal/stats"
)

// Handler holds the dependencies shared by all routes.
type Handler struct {
	Hub   *matchhub.Hub
	Stats *stats.Collector
	Cfg   config.Config
}

func NewHandler(hub *matchhub.Hub, collector *stats.Collector, cfg config.Config) *Handler {
	return &Handler{Hub: hub, Stats: collector, Cfg: cfg}
}
