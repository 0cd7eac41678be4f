package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bioharz/homee-exporter/internal/connection"
	"github.com/bioharz/homee-exporter/internal/router"
)

type fakeStatus connection.Status

func (f fakeStatus) Status() connection.Status { return connection.Status(f) }

type fakeStats router.RouterStats

func (f fakeStats) Stats() router.RouterStats { return router.RouterStats(f) }

func TestHealthHandler(t *testing.T) {
	closedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		status     connection.Status
		wantStatus string
		wantCode   int
	}{
		{
			name:       "open",
			status:     connection.Status{State: "open", Session: "s1"},
			wantStatus: "healthy",
			wantCode:   http.StatusOK,
		},
		{
			name:       "connecting",
			status:     connection.Status{State: "connecting"},
			wantStatus: "degraded",
			wantCode:   http.StatusOK,
		},
		{
			name: "errored",
			status: connection.Status{
				State:     "errored",
				LastClose: &connection.CloseRecord{Session: "s1", Code: 1006, Remote: true, ClosedAt: closedAt},
			},
			wantStatus: "unhealthy",
			wantCode:   http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHealthHandler(fakeStatus(tt.status), fakeStats{MessagesReceived: 4, DecodeErrors: 1})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var got healthResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Connection.State != tt.status.State {
				t.Errorf("connection.state = %q, want %q", got.Connection.State, tt.status.State)
			}
			if got.Router.MessagesReceived != 4 || got.Router.DecodeErrors != 1 {
				t.Errorf("router = %+v, want received 4, decode errors 1", got.Router)
			}
			if tt.status.LastClose != nil {
				if got.Connection.LastClose == nil || got.Connection.LastClose.Code != 1006 {
					t.Errorf("last_close = %+v, want code 1006", got.Connection.LastClose)
				}
			}
		})
	}
}
