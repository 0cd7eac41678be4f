package main

import (
	"encoding/json"
	"net/http"

	"github.com/bioharz/homee-exporter/internal/connection"
	"github.com/bioharz/homee-exporter/internal/router"
	"github.com/bioharz/homee-exporter/internal/version"
)

type statusSource interface {
	Status() connection.Status
}

type statsSource interface {
	Stats() router.RouterStats
}

type healthResponse struct {
	Status     string             `json:"status"`
	Version    string             `json:"version"`
	Connection connection.Status  `json:"connection"`
	Router     router.RouterStats `json:"router"`
}

// newHealthHandler reports healthy while the hub connection is open.
func newHealthHandler(conn statusSource, rtr statsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := healthResponse{
			Status:     "healthy",
			Version:    version.Version,
			Connection: conn.Status(),
			Router:     rtr.Stats(),
		}

		switch health.Connection.State {
		case connection.StateOpen.String():
		case connection.StateConnecting.String():
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}
