package query

import (
	"fmt"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

// PricePoint is the price/volume summary projection of one record.
type PricePoint struct {
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    float64 `json:"volume"`
	VWAP      float64 `json:"VWAP"`
	HighPrice float64 `json:"HighPrice"`
	LowPrice  float64 `json:"LowPrice"`
}

// PriceVolumeView projects fetched records into the price/volume summary.
func PriceVolumeView(records []models.Record) []PricePoint {
	out := make([]PricePoint, 0, len(records))
	for i := range records {
		rec := &records[i]
		out = append(out, PricePoint{
			Timestamp: rec.Time,
			Price:     rec.CurrentPrice.InexactFloat64(),
			Volume:    rec.TradingVolume.InexactFloat64(),
			VWAP:      rec.VWAP.InexactFloat64(),
			HighPrice: rec.HighPrice.InexactFloat64(),
			LowPrice:  rec.LowPrice.InexactFloat64(),
		})
	}
	return out
}

// BoardView projects fetched records into the full order-book depth shape:
// per record a flat object of timestamp, the 20 price/quantity pairs and the
// over-sell/under-buy imbalance quantities. Defaulted levels come through as
// zeroes, matching the fixed-schema guarantee of stored records.
func BoardView(records []models.Record) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for i := range records {
		rec := &records[i]
		row := map[string]any{
			"timestamp":   rec.Time,
			"OverSellQty": rec.OverSellQty.InexactFloat64(),
			"UnderBuyQty": rec.UnderBuyQty.InexactFloat64(),
		}
		for lvl := 0; lvl < models.DepthLevels; lvl++ {
			row[fmt.Sprintf("Sell%d_Price", lvl+1)] = rec.Sells[lvl].Price.InexactFloat64()
			row[fmt.Sprintf("Sell%d_Qty", lvl+1)] = rec.Sells[lvl].Qty.InexactFloat64()
			row[fmt.Sprintf("Buy%d_Price", lvl+1)] = rec.Buys[lvl].Price.InexactFloat64()
			row[fmt.Sprintf("Buy%d_Qty", lvl+1)] = rec.Buys[lvl].Qty.InexactFloat64()
		}
		out = append(out, row)
	}
	return out
}
