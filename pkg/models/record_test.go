package models_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestRecord_ItemRoundTrip(t *testing.T) {
	rec := &models.Record{
		Symbol:                   "6537",
		Time:                     "20240115-093015.123456",
		CurrentPrice:             dec(t, "1234.5"),
		TradingVolume:            dec(t, "98200"),
		VWAP:                     dec(t, "1230.1472"),
		SymbolName:               "WealthNavi",
		CurrentPriceChangeStatus: "0058",
		OpeningPriceTime:         "2024-01-15T09:00:00+09:00",
	}
	rec.Sells[0] = models.DepthLevel{
		Price: dec(t, "1234.6"),
		Qty:   dec(t, "500"),
		Sign:  "0101",
		Time:  "2024-01-15T09:30:15+09:00",
	}

	item := rec.Item()

	if got := item["Sell1_Price"].(*types.AttributeValueMemberN).Value; got != "1234.6" {
		t.Errorf("Sell1_Price attribute = %q, want 1234.6", got)
	}
	if got := item["Buy10_Sign"].(*types.AttributeValueMemberS).Value; got != "" {
		t.Errorf("unset sign should flatten to empty string before defaults, got %q", got)
	}

	back, err := models.RecordFromItem(item)
	if err != nil {
		t.Fatalf("RecordFromItem: %v", err)
	}

	if back.Symbol != "6537" || back.Time != "20240115-093015.123456" {
		t.Errorf("key mismatch: %s / %s", back.Symbol, back.Time)
	}
	if !back.CurrentPrice.Equal(rec.CurrentPrice) {
		t.Errorf("CurrentPrice = %s, want %s", back.CurrentPrice, rec.CurrentPrice)
	}
	if !back.Sells[0].Qty.Equal(dec(t, "500")) {
		t.Errorf("Sell1 qty = %s, want 500", back.Sells[0].Qty)
	}
	if !back.Sells[9].Price.IsZero() {
		t.Errorf("unpopulated level should read back as zero, got %s", back.Sells[9].Price)
	}
}

func TestRecordFromItem_MissingKeys(t *testing.T) {
	_, err := models.RecordFromItem(map[string]types.AttributeValue{
		"get_time": &types.AttributeValueMemberS{Value: "20240115-090000.000000"},
	})
	if err == nil {
		t.Error("expected error for item without symbol")
	}
}

func TestRecordFromItem_SparseItemFillsDefaults(t *testing.T) {
	item := map[string]types.AttributeValue{
		"symbol":   &types.AttributeValueMemberS{Value: "7049"},
		"get_time": &types.AttributeValueMemberS{Value: "20240115-090000.000000"},
	}

	rec, err := models.RecordFromItem(item)
	if err != nil {
		t.Fatalf("RecordFromItem: %v", err)
	}

	if !rec.CurrentPrice.IsZero() {
		t.Errorf("missing numeric should default to zero, got %s", rec.CurrentPrice)
	}
	if rec.SymbolName != models.DefaultSign {
		t.Errorf("missing string should default to %q, got %q", models.DefaultSign, rec.SymbolName)
	}
	for i := 0; i < models.DepthLevels; i++ {
		if rec.Buys[i].Sign != models.DefaultSign || !rec.Buys[i].Qty.IsZero() {
			t.Fatalf("level %d not defaulted: %+v", i+1, rec.Buys[i])
		}
	}
}

func TestRecord_ApproxSizeGrowsWithContent(t *testing.T) {
	small := &models.Record{Symbol: "6537", Time: "20240115-090000.000000"}
	big := &models.Record{
		Symbol:     "6537",
		Time:       "20240115-090000.000000",
		SymbolName: "A symbol display name considerably longer than the default",
	}

	if small.ApproxSize() <= 0 {
		t.Error("size estimate should be positive")
	}
	if big.ApproxSize() <= small.ApproxSize() {
		t.Error("longer payload should estimate larger")
	}
}
