package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

var (
	// ErrMissingField marks a push message without one of the mandatory
	// identity fields (Symbol, CurrentPrice, CurrentPriceTime).
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidNumeric marks a mandatory numeric field that failed exact
	// decimal parsing. Non-mandatory numerics degrade to zero instead.
	ErrInvalidNumeric = errors.New("invalid numeric field")

	// ErrInvalidTimestamp marks an unparsable CurrentPriceTime.
	ErrInvalidTimestamp = errors.New("invalid timestamp field")
)

// sortKeyLayout renders a feed timestamp lexically sortable with
// microsecond precision, e.g. 20240115-093015.123456.
const sortKeyLayout = "20060102-150405.000000"

// Transform validates one decoded push message and maps it into a record.
// It is a pure function: the only side effect is the returned record.
//
// Mandatory fields reject the whole message when absent or unparsable.
// Everything else degrades per field: numerics to zero, strings to "N/A",
// so partial board data never blocks ingestion of the rest of the message.
func Transform(raw map[string]any) (*models.Record, error) {
	symbol, ok := stringField(raw, "Symbol")
	if !ok || symbol == "" {
		return nil, fmt.Errorf("%w: Symbol", ErrMissingField)
	}

	priceRaw, ok := raw["CurrentPrice"]
	if !ok || priceRaw == nil {
		return nil, fmt.Errorf("%w: CurrentPrice", ErrMissingField)
	}
	price, err := decimalValue(priceRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: CurrentPrice: %v", ErrInvalidNumeric, err)
	}

	timeStr, ok := stringField(raw, "CurrentPriceTime")
	if !ok || timeStr == "" {
		return nil, fmt.Errorf("%w: CurrentPriceTime", ErrMissingField)
	}
	ts, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: CurrentPriceTime %q", ErrInvalidTimestamp, timeStr)
	}

	rec := &models.Record{
		Symbol:       symbol,
		Time:         ts.Format(sortKeyLayout),
		CurrentPrice: price,

		HighPrice:           decimalOrZero(raw, "HighPrice"),
		LowPrice:            decimalOrZero(raw, "LowPrice"),
		VWAP:                decimalOrZero(raw, "VWAP"),
		TradingVolume:       decimalOrZero(raw, "TradingVolume"),
		TradingValue:        decimalOrZero(raw, "TradingValue"),
		BidQty:              decimalOrZero(raw, "BidQty"),
		BidPrice:            decimalOrZero(raw, "BidPrice"),
		MarketOrderSellQty:  decimalOrZero(raw, "MarketOrderSellQty"),
		AskQty:              decimalOrZero(raw, "AskQty"),
		AskPrice:            decimalOrZero(raw, "AskPrice"),
		MarketOrderBuyQty:   decimalOrZero(raw, "MarketOrderBuyQty"),
		OverSellQty:         decimalOrZero(raw, "OverSellQty"),
		UnderBuyQty:         decimalOrZero(raw, "UnderBuyQty"),
		ChangePreviousClose: decimalOrZero(raw, "ChangePreviousClose"),

		SymbolName:               stringOrDefault(raw, "SymbolName"),
		CurrentPriceChangeStatus: stringOrDefault(raw, "CurrentPriceChangeStatus"),
		OpeningPriceTime:         stringOrDefault(raw, "OpeningPriceTime"),
	}

	for i := 0; i < models.DepthLevels; i++ {
		rec.Sells[i] = depthLevel(raw, fmt.Sprintf("Sell%d", i+1))
		rec.Buys[i] = depthLevel(raw, fmt.Sprintf("Buy%d", i+1))
	}

	return rec, nil
}

// depthLevel extracts one Sell{n}/Buy{n} sub-object with independent
// per-field defaults. An absent level yields a fully defaulted level.
func depthLevel(raw map[string]any, key string) models.DepthLevel {
	lvl := models.DepthLevel{
		Sign: models.DefaultSign,
		Time: models.DefaultSign,
	}

	sub, ok := raw[key].(map[string]any)
	if !ok {
		return lvl
	}

	lvl.Price = decimalOrZero(sub, "Price")
	lvl.Qty = decimalOrZero(sub, "Qty")
	lvl.Sign = stringOrDefault(sub, "Sign")
	lvl.Time = stringOrDefault(sub, "Time")
	return lvl
}

// decimalValue parses a JSON value into an exact decimal. The feed mixes
// string and number representations, so both are accepted. Binary floats
// only appear when the caller decoded without UseNumber.
func decimalValue(v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case string:
		return decimal.NewFromString(val)
	case json.Number:
		return decimal.NewFromString(val.String())
	case float64:
		return decimal.NewFromFloat(val), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}

func decimalOrZero(raw map[string]any, key string) decimal.Decimal {
	v, ok := raw[key]
	if !ok || v == nil {
		return decimal.Zero
	}
	d, err := decimalValue(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func stringField(raw map[string]any, key string) (string, bool) {
	s, ok := raw[key].(string)
	return s, ok
}

func stringOrDefault(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok && s != "" {
		return s
	}
	return models.DefaultSign
}
