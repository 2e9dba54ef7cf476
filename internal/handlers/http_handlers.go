package handlers

import (
	"encoding/csv"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"giveaway/internal/models"
	"giveaway/internal/services"
)

// HTTPHandler holds the dependencies for the HTTP handlers, like the giveaway service.
type HTTPHandler struct {
	service *services.GiveawayService
	hub     *Hub
}

// NewHTTPHandler creates a new HTTPHandler.
func NewHTTPHandler(service *services.GiveawayService, hub *Hub) *HTTPHandler {
	return &HTTPHandler{
		service: service,
		hub:     hub,
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/pool", h.GetPool)
	router.POST("/refresh", h.Refresh)
	router.POST("/draw", h.PerformDraw)
	router.GET("/distribution", h.GetDistribution)
	router.GET("/results", h.GetResults)
	router.DELETE("/results", h.ClearResults)
	router.GET("/export-results-csv", h.ExportResultsCSV)
	router.GET("/ws", h.hub.ServeWS)
}

type ticketCount struct {
	Ticket models.Ticket `json:"ticket"`
	Count  int           `json:"count"`
}

type poolResponse struct {
	Channel string        `json:"channel"`
	Size    int           `json:"size"`
	Tickets []ticketCount `json:"tickets"`
}

func newPoolResponse(channel string, pool models.Pool) poolResponse {
	counts := pool.Counts()
	tickets := make([]ticketCount, 0, len(counts))
	for t, n := range counts {
		tickets = append(tickets, ticketCount{Ticket: t, Count: n})
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Ticket < tickets[j].Ticket })
	return poolResponse{Channel: channel, Size: len(pool), Tickets: tickets}
}

// GetPool returns the current pool grouped by ticket.
func (h *HTTPHandler) GetPool(c *gin.Context) {
	c.JSON(http.StatusOK, newPoolResponse(h.service.Channel(), h.service.Pool()))
}

// Refresh rebuilds the pool from the platform. The previous pool is kept
// when the rebuild fails.
func (h *HTTPHandler) Refresh(c *gin.Context) {
	pool, err := h.service.Prepare(c.Request.Context())
	if err != nil {
		logger.Errorf("Error refreshing pool: %v", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	h.hub.Broadcast(Announcement{Type: "pool", Pool: len(pool)})
	c.JSON(http.StatusOK, newPoolResponse(h.service.Channel(), pool))
}

// PerformDraw draws one winner and announces it on the websocket feed.
func (h *HTTPHandler) PerformDraw(c *gin.Context) {
	result, err := h.service.Draw()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	logger.Infof("Congrats %s you won the giveaway", result.Winner)
	h.hub.Broadcast(Announcement{Type: "winner", Result: result, At: result.At})
	c.JSON(http.StatusOK, result)
}

// GetDistribution runs the resampling diagnostic on the current pool.
func (h *HTTPHandler) GetDistribution(c *gin.Context) {
	trials := services.DefaultTrials
	if raw := c.Query("trials"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "trials must be a positive integer"})
			return
		}
		trials = n
	}

	report, err := h.service.Distribution(trials)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetResults lists the draws made since the server started.
func (h *HTTPHandler) GetResults(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Results())
}

// ClearResults forgets the recorded draws.
func (h *HTTPHandler) ClearResults(c *gin.Context) {
	h.service.ClearResults()
	c.Status(http.StatusNoContent)
}

// ExportResultsCSV handles the request to download the draw results as a CSV file.
func (h *HTTPHandler) ExportResultsCSV(c *gin.Context) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment;filename=giveaway_results.csv")

	// Add BOM to ensure UTF-8 compatibility in Excel
	c.Writer.Write([]byte("\xef\xbb\xbf"))

	w := csv.NewWriter(c.Writer)

	if err := w.Write([]string{"id", "channel", "winner", "tickets", "pool_size", "drawn_at"}); err != nil {
		logger.Infof("Error writing CSV header: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
		return
	}

	for _, result := range h.service.Results() {
		row := []string{
			result.ID,
			result.Channel,
			string(result.Winner),
			strconv.Itoa(result.Tickets),
			strconv.Itoa(result.PoolSize),
			result.At.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			logger.Infof("Error writing CSV row: %v", err)
			c.String(http.StatusInternalServerError, "Error writing CSV")
			return
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		logger.Infof("Error flushing CSV writer: %v", err)
		c.String(http.StatusInternalServerError, "Error writing CSV")
	}
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	var (
		authErr      *models.AuthError
		upstreamErr  *models.UpstreamError
		transportErr *models.TransportError
		decodeErr    *models.DecodeError
	)
	switch {
	case errors.Is(err, models.ErrEmptyPool):
		return http.StatusConflict
	case errors.Is(err, models.ErrPoolNotBuilt):
		return http.StatusServiceUnavailable
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &upstreamErr), errors.As(err, &transportErr), errors.As(err, &decodeErr),
		errors.Is(err, models.ErrPageLimit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
