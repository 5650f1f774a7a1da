package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	appName string
}

func NewHealthHandler(db Pinger, appName string) *HealthHandler {
	return &HealthHandler{db: db, appName: appName}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	App      string `json:"app"`
}

// Health always answers 200; the database field carries the ping result.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "connected"
	if err := h.db.PingContext(ctx); err != nil {
		database = "error: " + err.Error()
	}

	respondWithJSON(w, http.StatusOK, HealthResponse{
		Status:   "healthy",
		Database: database,
		App:      h.appName,
	})
}
