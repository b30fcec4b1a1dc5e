package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler answers liveness probes. The database is the only hard
// dependency; redis is reported but never fails the check.
type HealthHandler struct {
	DB  *sql.DB
	RDB *redis.Client
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	dbState := "ok"
	if err := h.DB.PingContext(ctx); err != nil {
		dbState = "down"
		status = http.StatusServiceUnavailable
	}

	redisState := "disabled"
	if h.RDB != nil {
		redisState = "ok"
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			redisState = "down"
		}
	}

	return c.JSON(status, echo.Map{"database": dbState, "redis": redisState})
}
