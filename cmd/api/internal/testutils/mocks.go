package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/takuya-f/kabu-recorder/pkg/models"
	"github.com/takuya-f/kabu-recorder/pkg/store"
)

// StorePage is one page a MockRecordStore serves.
type StorePage struct {
	Records []models.Record
	LastKey *store.Key
}

// MockRecordStore serves scripted pages in order and records the resume keys
// it was called with, so tests can assert the pagination hand-off.
type MockRecordStore struct {
	Pages    []StorePage
	QueryErr error
	PutErr   error

	Mu        sync.Mutex
	Puts      []*models.Record
	StartKeys []*store.Key
	pageIndex int
	putIndex  map[store.Key]int
}

var _ store.RecordStore = (*MockRecordStore)(nil)

// Put stores the record keyed by (symbol, get_time); a duplicate key
// overwrites in place, matching the real table's put semantics.
func (m *MockRecordStore) Put(ctx context.Context, rec *models.Record) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}

	if m.putIndex == nil {
		m.putIndex = make(map[store.Key]int)
	}
	key := store.Key{Symbol: rec.Symbol, Time: rec.Time}
	if i, ok := m.putIndex[key]; ok {
		m.Puts[i] = rec
		return nil
	}
	m.putIndex[key] = len(m.Puts)
	m.Puts = append(m.Puts, rec)
	return nil
}

func (m *MockRecordStore) Query(ctx context.Context, symbol, timePrefix string, startKey *store.Key) ([]models.Record, *store.Key, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	if m.QueryErr != nil {
		return nil, nil, m.QueryErr
	}

	m.StartKeys = append(m.StartKeys, startKey)

	if m.pageIndex >= len(m.Pages) {
		return nil, nil, nil
	}

	page := m.Pages[m.pageIndex]
	m.pageIndex++

	// Honor the key condition so scripted pages behave like the real store.
	matched := make([]models.Record, 0, len(page.Records))
	for _, rec := range page.Records {
		if rec.Symbol == symbol && strings.HasPrefix(rec.Time, timePrefix) {
			matched = append(matched, rec)
		}
	}
	return matched, page.LastKey, nil
}

func (m *MockRecordStore) QueryCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.StartKeys)
}

// Rewind resets page progress so a follow-up FetchRange call with a cursor
// can be scripted with fresh pages.
func (m *MockRecordStore) Rewind(pages []StorePage) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Pages = pages
	m.pageIndex = 0
}
