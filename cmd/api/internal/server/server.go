package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/api/internal/query"
	"github.com/takuya-f/kabu-recorder/pkg/cache"
	"github.com/takuya-f/kabu-recorder/pkg/models"
	"github.com/takuya-f/kabu-recorder/pkg/store"
)

// RangeFetcher is the query service surface the handlers depend on
type RangeFetcher interface {
	FetchRange(ctx context.Context, symbol, datePrefix string, cursor *store.Key) ([]models.Record, *store.Key, error)
}

// SnapshotReader serves the latest cached record per symbol; may be nil
type SnapshotReader interface {
	GetLatest(ctx context.Context, symbol string) ([]byte, error)
}

type Server struct {
	fetcher   RangeFetcher
	snapshots SnapshotReader
	logger    *zap.Logger
}

// NewRouter wires the API routes onto a gin engine.
func NewRouter(fetcher RangeFetcher, snapshots SnapshotReader, corsOrigins []string, logger *zap.Logger) *gin.Engine {
	s := &Server{
		fetcher:   fetcher,
		snapshots: snapshots,
		logger:    logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.GET("/api/price_volume_data/:symbol", s.handlePriceVolume)
	r.GET("/api/board_data/:symbol", s.handleBoard)
	r.GET("/api/latest/:symbol", s.handleLatest)

	return r
}

func (s *Server) handlePriceVolume(c *gin.Context) {
	records, next, ok := s.fetchRange(c)
	if !ok {
		return
	}
	s.respond(c, query.PriceVolumeView(records), next)
}

func (s *Server) handleBoard(c *gin.Context) {
	records, next, ok := s.fetchRange(c)
	if !ok {
		return
	}
	s.respond(c, query.BoardView(records), next)
}

func (s *Server) handleLatest(c *gin.Context) {
	symbol := c.Param("symbol")

	if s.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "snapshot cache is not configured"})
		return
	}

	payload, err := s.snapshots.GetLatest(c.Request.Context(), symbol)
	if errors.Is(err, cache.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "no snapshot for symbol " + symbol})
		return
	}
	if err != nil {
		s.logger.Error("Snapshot read failed", zap.String("symbol", symbol), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read snapshot"})
		return
	}

	c.Data(http.StatusOK, "application/json", payload)
}

// fetchRange handles the request plumbing shared by both range endpoints:
// parameter validation, cursor decoding, and error mapping. The bool result
// is false when a response was already written.
func (s *Server) fetchRange(c *gin.Context) ([]models.Record, *store.Key, bool) {
	symbol := c.Param("symbol")
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "date query parameter is required"})
		return nil, nil, false
	}

	cursor, err := query.DecodeCursor(c.Query("last_evaluated_key"), symbol, date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, nil, false
	}

	records, next, err := s.fetcher.FetchRange(c.Request.Context(), symbol, date, cursor)
	if err != nil {
		s.logger.Error("Range query failed",
			zap.String("symbol", symbol),
			zap.String("date", date),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to fetch data: " + err.Error()})
		return nil, nil, false
	}

	s.logger.Debug("Range query served",
		zap.String("symbol", symbol),
		zap.String("date", date),
		zap.Int("records", len(records)),
		zap.Bool("truncated", next != nil))

	return records, next, true
}

func (s *Server) respond(c *gin.Context, data any, next *store.Key) {
	var lastKey any
	if next != nil {
		encoded, err := query.EncodeCursor(next)
		if err != nil {
			s.logger.Error("Cursor encode failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to encode continuation cursor"})
			return
		}
		lastKey = encoded
	}

	c.JSON(http.StatusOK, gin.H{
		"data":               data,
		"last_evaluated_key": lastKey,
	})
}
