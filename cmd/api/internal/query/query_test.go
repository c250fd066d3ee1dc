package query_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/takuya-f/kabu-recorder/cmd/api/internal/query"
	"github.com/takuya-f/kabu-recorder/cmd/api/internal/testutils"
	"github.com/takuya-f/kabu-recorder/pkg/models"
	"github.com/takuya-f/kabu-recorder/pkg/store"
)

func rec(symbol, ts string) models.Record {
	return models.Record{
		Symbol:       symbol,
		Time:         ts,
		CurrentPrice: decimal.RequireFromString("1234.5"),
	}
}

func TestFetchRange_SinglePage(t *testing.T) {
	mock := &testutils.MockRecordStore{Pages: []testutils.StorePage{
		{Records: []models.Record{
			rec("6537", "20240115-090000.000000"),
			rec("6537", "20240115-090001.000000"),
		}},
	}}
	svc := query.NewService(mock, 0, zap.NewNop())

	records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", nil)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("records = %d, want 2", len(records))
	}
	if next != nil {
		t.Errorf("next cursor = %v, want nil", next)
	}
}

func TestFetchRange_AutoPaginatesAcrossStorePages(t *testing.T) {
	key1 := &store.Key{Symbol: "6537", Time: "20240115-090001.000000"}
	key2 := &store.Key{Symbol: "6537", Time: "20240115-090003.000000"}

	mock := &testutils.MockRecordStore{Pages: []testutils.StorePage{
		{Records: []models.Record{rec("6537", "20240115-090000.000000"), rec("6537", "20240115-090001.000000")}, LastKey: key1},
		{Records: []models.Record{rec("6537", "20240115-090002.000000"), rec("6537", "20240115-090003.000000")}, LastKey: key2},
		{Records: []models.Record{rec("6537", "20240115-090004.000000")}},
	}}
	svc := query.NewService(mock, 0, zap.NewNop())

	records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", nil)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("records = %d, want 5 (all pages concatenated)", len(records))
	}
	if next != nil {
		t.Errorf("next cursor = %v, want nil when range exhausted", next)
	}

	// The caller never round-trips: three store queries in one call, each
	// resumed from the previous page's key.
	if mock.QueryCount() != 3 {
		t.Fatalf("store queries = %d, want 3", mock.QueryCount())
	}
	if mock.StartKeys[0] != nil {
		t.Error("first query should start from the beginning")
	}
	if mock.StartKeys[1] == nil || mock.StartKeys[1].Time != key1.Time {
		t.Errorf("second query resumed from %v, want %v", mock.StartKeys[1], key1)
	}
	if mock.StartKeys[2] == nil || mock.StartKeys[2].Time != key2.Time {
		t.Errorf("third query resumed from %v, want %v", mock.StartKeys[2], key2)
	}

	// Ascending order and no duplicates across the concatenation.
	seen := map[string]bool{}
	prev := ""
	for _, r := range records {
		if seen[r.Time] {
			t.Fatalf("duplicate record %s", r.Time)
		}
		seen[r.Time] = true
		if r.Time < prev {
			t.Fatalf("records out of order: %s after %s", r.Time, prev)
		}
		prev = r.Time
	}
}

func TestFetchRange_SizeBudgetYieldsCursor(t *testing.T) {
	resume := &store.Key{Symbol: "6537", Time: "20240115-090001.000000"}

	big := rec("6537", "20240115-090000.000000")
	big.SymbolName = strings.Repeat("x", 4096)

	mock := &testutils.MockRecordStore{Pages: []testutils.StorePage{
		{Records: []models.Record{big}, LastKey: resume},
		{Records: []models.Record{rec("6537", "20240115-090002.000000")}},
	}}
	// Budget far below one record's size: the loop must stop after page one.
	svc := query.NewService(mock, 1024, zap.NewNop())

	records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", nil)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}

	if len(records) != 1 {
		t.Errorf("records = %d, want only the first page", len(records))
	}
	if next == nil || next.Time != resume.Time {
		t.Errorf("next cursor = %v, want the store's resume key %v", next, resume)
	}
	if mock.QueryCount() != 1 {
		t.Errorf("store queries = %d, want 1", mock.QueryCount())
	}
}

func TestFetchRange_ResumesFromCursor(t *testing.T) {
	cursor := &store.Key{Symbol: "6537", Time: "20240115-090001.000000"}
	mock := &testutils.MockRecordStore{Pages: []testutils.StorePage{
		{Records: []models.Record{rec("6537", "20240115-090002.000000")}},
	}}
	svc := query.NewService(mock, 0, zap.NewNop())

	records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", cursor)
	if err != nil {
		t.Fatalf("FetchRange: %v", err)
	}
	if len(records) != 1 || next != nil {
		t.Errorf("got %d records, next=%v", len(records), next)
	}
	if mock.StartKeys[0] == nil || mock.StartKeys[0].Time != cursor.Time {
		t.Errorf("query did not resume from the cursor: %v", mock.StartKeys[0])
	}
}

func TestFetchRange_EmptyResult(t *testing.T) {
	mock := &testutils.MockRecordStore{}
	svc := query.NewService(mock, 0, zap.NewNop())

	records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", nil)
	if err != nil {
		t.Fatalf("empty range should not error: %v", err)
	}
	if len(records) != 0 || next != nil {
		t.Errorf("got %d records, next=%v, want empty and nil", len(records), next)
	}
}

func TestFetchRange_StoreErrorSurfaces(t *testing.T) {
	mock := &testutils.MockRecordStore{QueryErr: errors.New("provisioned throughput exceeded")}
	svc := query.NewService(mock, 0, zap.NewNop())

	_, _, err := svc.FetchRange(context.Background(), "6537", "20240115", nil)
	if err == nil {
		t.Fatal("store failure must surface to the caller")
	}
}

func TestFetchRange_CursorRoundTripDrainsRange(t *testing.T) {
	// Feed every returned cursor back in until none is issued; the
	// concatenation must equal the full result set exactly once, in order.
	var allPages []testutils.StorePage
	for i := 0; i < 6; i++ {
		r := rec("6537", fmt.Sprintf("20240115-09000%d.000000", i))
		r.SymbolName = strings.Repeat("y", 2048)
		page := testutils.StorePage{Records: []models.Record{r}}
		if i < 5 {
			page.LastKey = &store.Key{Symbol: "6537", Time: r.Time}
		}
		allPages = append(allPages, page)
	}

	mock := &testutils.MockRecordStore{Pages: allPages}
	svc := query.NewService(mock, 1, zap.NewNop()) // every call stops after one page

	var collected []models.Record
	var cursor *store.Key
	for calls := 0; ; calls++ {
		if calls > 10 {
			t.Fatal("pagination did not terminate")
		}
		records, next, err := svc.FetchRange(context.Background(), "6537", "20240115", cursor)
		if err != nil {
			t.Fatalf("FetchRange: %v", err)
		}
		collected = append(collected, records...)
		if next == nil {
			break
		}
		cursor = next
	}

	if len(collected) != 6 {
		t.Fatalf("collected %d records, want 6", len(collected))
	}
	for i, r := range collected {
		want := fmt.Sprintf("20240115-09000%d.000000", i)
		if r.Time != want {
			t.Errorf("record %d = %s, want %s", i, r.Time, want)
		}
	}
}
