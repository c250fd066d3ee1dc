package store

import (
	"context"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

// Key is a resume point inside a symbol's time series: the table's
// partition/sort key pair, round-trippable through a query cursor.
type Key struct {
	Symbol string `dynamodbav:"symbol" json:"symbol"`
	Time   string `dynamodbav:"get_time" json:"get_time"`
}

// RecordStore is the range-store contract the write and read paths share.
// Put is an idempotent overwrite keyed by (symbol, get_time). Query returns
// one store page of records whose sort key begins with timePrefix, together
// with the store's resume key for the next page, or nil when exhausted.
type RecordStore interface {
	Put(ctx context.Context, rec *models.Record) error
	Query(ctx context.Context, symbol, timePrefix string, startKey *Key) ([]models.Record, *Key, error)
}
