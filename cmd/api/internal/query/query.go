package query

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/pkg/models"
	"github.com/takuya-f/kabu-recorder/pkg/store"
)

// DefaultSizeBudget caps how much data one FetchRange call accumulates
// before yielding a continuation cursor.
const DefaultSizeBudget = 50 * 1024 * 1024

// Service walks the store's pages for a (symbol, datePrefix) range so
// callers never have to round-trip per store page themselves.
type Service struct {
	store      store.RecordStore
	sizeBudget int
	logger     *zap.Logger
}

func NewService(recordStore store.RecordStore, sizeBudget int, logger *zap.Logger) *Service {
	if sizeBudget <= 0 {
		sizeBudget = DefaultSizeBudget
	}
	return &Service{
		store:      recordStore,
		sizeBudget: sizeBudget,
		logger:     logger,
	}
}

// FetchRange accumulates records whose sort key begins with datePrefix,
// issuing as many store queries as needed, starting from cursor when given.
// It stops when the store has no further page (nil next cursor) or when the
// accumulated size estimate reaches the budget (next cursor = the store's
// own resume key for the first un-fetched page).
func (s *Service) FetchRange(ctx context.Context, symbol, datePrefix string, cursor *store.Key) ([]models.Record, *store.Key, error) {
	all := make([]models.Record, 0)
	totalSize := 0
	startKey := cursor

	for {
		records, lastKey, err := s.store.Query(ctx, symbol, datePrefix, startKey)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch range for %s/%s: %w", symbol, datePrefix, err)
		}

		all = append(all, records...)
		for i := range records {
			totalSize += records[i].ApproxSize()
		}

		if lastKey == nil {
			s.logger.Debug("Range exhausted", zap.String("symbol", symbol), zap.Int("records", len(all)))
			return all, nil, nil
		}
		if totalSize >= s.sizeBudget {
			s.logger.Debug("Size budget reached",
				zap.String("symbol", symbol),
				zap.Int("records", len(all)),
				zap.Int("approx_bytes", totalSize))
			return all, lastKey, nil
		}

		startKey = lastKey
	}
}
