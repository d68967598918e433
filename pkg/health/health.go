package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/jeeves-autolight/pkg/mqtt"
	"github.com/saaga0h/jeeves-autolight/pkg/postgres"
	"github.com/saaga0h/jeeves-autolight/pkg/redis"
)

// detailTimeout bounds the dependency checks of the detailed endpoint
const detailTimeout = 2 * time.Second

// DetailsFunc returns service specific runtime state for the detailed endpoint
type DetailsFunc func(ctx context.Context) (interface{}, error)

// Checker provides health check functionality for agents
type Checker struct {
	mqtt     mqtt.Client
	redis    redis.Client
	postgres postgres.Client
	details  DetailsFunc
	logger   *slog.Logger
}

// Option configures a Checker
type Option func(*Checker)

// WithPostgres adds the Postgres connection to the detailed report
func WithPostgres(client postgres.Client) Option {
	return func(c *Checker) {
		c.postgres = client
	}
}

// WithDetails attaches runtime state to the detailed report
func WithDetails(fn DetailsFunc) Option {
	return func(c *Checker) {
		c.details = fn
	}
}

// NewChecker creates a new health checker with the given dependencies
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		mqtt:   mqttClient,
		redis:  redisClient,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Services  *Services   `json:"services,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// Services represents the status of external dependencies
type Services struct {
	Redis    string `json:"redis"`
	MQTT     string `json:"mqtt"`
	Postgres string `json:"postgres,omitempty"`
}

// HandlerFunc returns an HTTP handler function for health checks.
// Returns 200 if the process is alive without checking dependencies.
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc returns a handler that checks all dependencies and
// includes the runtime details
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), detailTimeout)
		defer cancel()

		services := h.checkServices(ctx)

		// Determine overall status
		status := "healthy"
		statusCode := http.StatusOK
		if services.Redis != "connected" || services.MQTT != "connected" {
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}

		if h.details != nil {
			details, err := h.details(ctx)
			if err != nil {
				h.logger.Warn("Failed to collect health details", "error", err)
			} else {
				response.Details = details
			}
		}

		h.write(w, statusCode, response)
	}
}

func (h *Checker) checkServices(ctx context.Context) *Services {
	services := &Services{
		Redis: "disconnected",
		MQTT:  "disconnected",
	}

	if h.mqtt != nil && h.mqtt.IsConnected() {
		services.MQTT = "connected"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err == nil {
			services.Redis = "connected"
		} else {
			h.logger.Debug("Redis health ping failed", "error", err)
		}
	}

	// Postgres only backs the optional switch log, so it never degrades the status
	if h.postgres != nil {
		switch {
		case !h.postgres.IsConnected():
			services.Postgres = "closed"
		default:
			services.Postgres = "disconnected"
			if hs, err := h.postgres.HealthCheck(ctx); err == nil && hs.Connected {
				services.Postgres = "connected"
			}
		}
	}

	return services
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
