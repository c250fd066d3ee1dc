package models

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// DepthLevels is the number of price tiers per side of the order book.
const DepthLevels = 10

// DefaultSign is stored for sign/time fields the feed did not populate,
// so every persisted record carries the full fixed schema.
const DefaultSign = "N/A"

// DepthLevel is one ranked price/quantity tier on the buy or sell side.
type DepthLevel struct {
	Price decimal.Decimal `json:"Price"`
	Qty   decimal.Decimal `json:"Qty"`
	Sign  string          `json:"Sign"`
	Time  string          `json:"Time"`
}

// Record is one market snapshot for a symbol at a point in time.
// Symbol is the partition key; Time is the sort key in the lexically
// sortable form YYYYMMDD-HHMMSS.ffffff.
type Record struct {
	Symbol string `json:"symbol"`
	Time   string `json:"get_time"`

	CurrentPrice        decimal.Decimal `json:"current_price"`
	HighPrice           decimal.Decimal `json:"HighPrice"`
	LowPrice            decimal.Decimal `json:"LowPrice"`
	VWAP                decimal.Decimal `json:"VWAP"`
	TradingVolume       decimal.Decimal `json:"TradingVolume"`
	TradingValue        decimal.Decimal `json:"TradingValue"`
	BidQty              decimal.Decimal `json:"BidQty"`
	BidPrice            decimal.Decimal `json:"BidPrice"`
	MarketOrderSellQty  decimal.Decimal `json:"MarketOrderSellQty"`
	AskQty              decimal.Decimal `json:"AskQty"`
	AskPrice            decimal.Decimal `json:"AskPrice"`
	MarketOrderBuyQty   decimal.Decimal `json:"MarketOrderBuyQty"`
	OverSellQty         decimal.Decimal `json:"OverSellQty"`
	UnderBuyQty         decimal.Decimal `json:"UnderBuyQty"`
	ChangePreviousClose decimal.Decimal `json:"ChangePreviousClose"`

	SymbolName               string `json:"SymbolName"`
	CurrentPriceChangeStatus string `json:"CurrentPriceChangeStatus"`
	OpeningPriceTime         string `json:"OpeningPriceTime"`

	Sells [DepthLevels]DepthLevel `json:"Sells"`
	Buys  [DepthLevels]DepthLevel `json:"Buys"`
}

// Item flattens the record into the table's attribute layout. Depth levels
// become Sell1_Price..Buy10_Time so the item schema matches what downstream
// consumers of the table already read. Numeric attributes are written as
// DynamoDB numbers from exact decimal strings.
func (r *Record) Item() map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		"symbol":                   strAttr(r.Symbol),
		"get_time":                 strAttr(r.Time),
		"current_price":            numAttr(r.CurrentPrice),
		"HighPrice":                numAttr(r.HighPrice),
		"LowPrice":                 numAttr(r.LowPrice),
		"VWAP":                     numAttr(r.VWAP),
		"TradingVolume":            numAttr(r.TradingVolume),
		"TradingValue":             numAttr(r.TradingValue),
		"BidQty":                   numAttr(r.BidQty),
		"BidPrice":                 numAttr(r.BidPrice),
		"MarketOrderSellQty":       numAttr(r.MarketOrderSellQty),
		"AskQty":                   numAttr(r.AskQty),
		"AskPrice":                 numAttr(r.AskPrice),
		"MarketOrderBuyQty":        numAttr(r.MarketOrderBuyQty),
		"OverSellQty":              numAttr(r.OverSellQty),
		"UnderBuyQty":              numAttr(r.UnderBuyQty),
		"ChangePreviousClose":      numAttr(r.ChangePreviousClose),
		"SymbolName":               strAttr(r.SymbolName),
		"CurrentPriceChangeStatus": strAttr(r.CurrentPriceChangeStatus),
		"OpeningPriceTime":         strAttr(r.OpeningPriceTime),
	}

	for i := 0; i < DepthLevels; i++ {
		writeLevel(item, fmt.Sprintf("Sell%d", i+1), r.Sells[i])
		writeLevel(item, fmt.Sprintf("Buy%d", i+1), r.Buys[i])
	}

	return item
}

// RecordFromItem rebuilds a record from a flattened item. Attributes missing
// from the item fall back to zero quantities and "N/A" strings, so callers
// always see the full schema regardless of what was stored.
func RecordFromItem(item map[string]types.AttributeValue) (*Record, error) {
	symbol, ok := readStr(item, "symbol")
	if !ok {
		return nil, fmt.Errorf("item has no symbol attribute")
	}
	getTime, ok := readStr(item, "get_time")
	if !ok {
		return nil, fmt.Errorf("item has no get_time attribute")
	}

	r := &Record{
		Symbol:                   symbol,
		Time:                     getTime,
		CurrentPrice:             readNum(item, "current_price"),
		HighPrice:                readNum(item, "HighPrice"),
		LowPrice:                 readNum(item, "LowPrice"),
		VWAP:                     readNum(item, "VWAP"),
		TradingVolume:            readNum(item, "TradingVolume"),
		TradingValue:             readNum(item, "TradingValue"),
		BidQty:                   readNum(item, "BidQty"),
		BidPrice:                 readNum(item, "BidPrice"),
		MarketOrderSellQty:       readNum(item, "MarketOrderSellQty"),
		AskQty:                   readNum(item, "AskQty"),
		AskPrice:                 readNum(item, "AskPrice"),
		MarketOrderBuyQty:        readNum(item, "MarketOrderBuyQty"),
		OverSellQty:              readNum(item, "OverSellQty"),
		UnderBuyQty:              readNum(item, "UnderBuyQty"),
		ChangePreviousClose:      readNum(item, "ChangePreviousClose"),
		SymbolName:               readStrDefault(item, "SymbolName"),
		CurrentPriceChangeStatus: readStrDefault(item, "CurrentPriceChangeStatus"),
		OpeningPriceTime:         readStrDefault(item, "OpeningPriceTime"),
	}

	for i := 0; i < DepthLevels; i++ {
		r.Sells[i] = readLevel(item, fmt.Sprintf("Sell%d", i+1))
		r.Buys[i] = readLevel(item, fmt.Sprintf("Buy%d", i+1))
	}

	return r, nil
}

// ApproxSize estimates the record's serialized size in bytes by summing the
// attribute value lengths. It is a budget heuristic, not a wire-size guarantee.
func (r *Record) ApproxSize() int {
	total := 0
	for name, av := range r.Item() {
		total += len(name)
		switch v := av.(type) {
		case *types.AttributeValueMemberS:
			total += len(v.Value)
		case *types.AttributeValueMemberN:
			total += len(v.Value)
		}
	}
	return total
}

func writeLevel(item map[string]types.AttributeValue, prefix string, lvl DepthLevel) {
	item[prefix+"_Price"] = numAttr(lvl.Price)
	item[prefix+"_Qty"] = numAttr(lvl.Qty)
	item[prefix+"_Sign"] = strAttr(lvl.Sign)
	item[prefix+"_Time"] = strAttr(lvl.Time)
}

func readLevel(item map[string]types.AttributeValue, prefix string) DepthLevel {
	return DepthLevel{
		Price: readNum(item, prefix+"_Price"),
		Qty:   readNum(item, prefix+"_Qty"),
		Sign:  readStrDefault(item, prefix+"_Sign"),
		Time:  readStrDefault(item, prefix+"_Time"),
	}
}

func strAttr(s string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: s}
}

func numAttr(d decimal.Decimal) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: d.String()}
}

func readStr(item map[string]types.AttributeValue, name string) (string, bool) {
	if av, ok := item[name].(*types.AttributeValueMemberS); ok {
		return av.Value, true
	}
	return "", false
}

func readStrDefault(item map[string]types.AttributeValue, name string) string {
	if s, ok := readStr(item, name); ok {
		return s
	}
	return DefaultSign
}

func readNum(item map[string]types.AttributeValue, name string) decimal.Decimal {
	if av, ok := item[name].(*types.AttributeValueMemberN); ok {
		if d, err := decimal.NewFromString(av.Value); err == nil {
			return d
		}
	}
	return decimal.Zero
}
