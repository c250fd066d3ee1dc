// Package feedsim synthesizes a kabu-station style push feed for local
// development: random-walk board snapshots streamed over a websocket, plus
// stub token/registration endpoints so the ingestor can run end to end
// without a real trading terminal.
package feedsim

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

const depthLevels = 10

type Simulator struct {
	logger     *zap.Logger
	symbols    []string
	basePrices map[string]float64
	interval   time.Duration
	rand       Rand
	clock      Clock

	mu      sync.Mutex
	highs   map[string]float64
	lows    map[string]float64
	volumes map[string]float64
}

func NewSimulator(
	logger *zap.Logger,
	symbols []string,
	basePrices map[string]float64,
	interval time.Duration,
	rnd Rand,
	clock Clock,
) *Simulator {
	return &Simulator{
		logger:     logger,
		symbols:    symbols,
		basePrices: basePrices,
		interval:   interval,
		rand:       rnd,
		clock:      clock,
		highs:      make(map[string]float64),
		lows:       make(map[string]float64),
		volumes:    make(map[string]float64),
	}
}

// Run streams push messages to one peer until the context ends or the
// write fails (peer gone).
func (s *Simulator) Run(ctx context.Context, w MessageWriter) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := json.Marshal(s.NextMessage())
		if err != nil {
			s.logger.Error("marshal push message", zap.Error(err))
			return
		}

		if err := w.WriteMessage(payload); err != nil {
			s.logger.Info("peer disconnected", zap.Error(err))
			return
		}

		s.clock.Sleep(s.interval)
	}
}

// NextMessage builds one board snapshot for a randomly picked symbol,
// random-walking its price around the configured base.
func (s *Simulator) NextMessage() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := s.symbols[s.rand.Intn(len(s.symbols))]
	fluctuation := (s.rand.Float64() * 10) - 5
	price := round1(s.basePrices[symbol] + fluctuation)
	now := s.clock.Now()

	high, ok := s.highs[symbol]
	if !ok || price > high {
		high = price
	}
	s.highs[symbol] = high

	low, ok := s.lows[symbol]
	if !ok || price < low {
		low = price
	}
	s.lows[symbol] = low

	s.volumes[symbol] += float64((s.rand.Intn(50) + 1) * 100)
	volume := s.volumes[symbol]

	msg := map[string]any{
		"Symbol":                   symbol,
		"SymbolName":               symbol + " simulated",
		"Exchange":                 1,
		"ExchangeName":             "東証プ",
		"CurrentPrice":             price,
		"CurrentPriceTime":         now.Format(time.RFC3339Nano),
		"CurrentPriceChangeStatus": "0058",
		"ChangePreviousClose":      round1(price - s.basePrices[symbol]),
		"OpeningPriceTime":         now.Format(time.RFC3339Nano),
		"HighPrice":                high,
		"LowPrice":                 low,
		"VWAP":                     round1((high + low) / 2),
		"TradingVolume":            volume,
		"TradingValue":             round1(volume * price),
		"BidQty":                   float64((s.rand.Intn(20) + 1) * 100),
		"BidPrice":                 round1(price - 0.5),
		"AskQty":                   float64((s.rand.Intn(20) + 1) * 100),
		"AskPrice":                 round1(price + 0.5),
		"MarketOrderSellQty":       float64(0),
		"MarketOrderBuyQty":        float64(0),
		"OverSellQty":              float64((s.rand.Intn(100) + 1) * 100),
		"UnderBuyQty":              float64((s.rand.Intn(100) + 1) * 100),
	}

	for i := 0; i < depthLevels; i++ {
		step := 0.5 * float64(i+1)
		sell := map[string]any{
			"Price": round1(price + step),
			"Qty":   float64((s.rand.Intn(50) + 1) * 100),
		}
		buy := map[string]any{
			"Price": round1(price - step),
			"Qty":   float64((s.rand.Intn(50) + 1) * 100),
		}
		if i == 0 {
			sell["Sign"] = "0101"
			sell["Time"] = now.Format(time.RFC3339Nano)
			buy["Sign"] = "0101"
			buy["Time"] = now.Format(time.RFC3339Nano)
		}
		msg[fmt.Sprintf("Sell%d", i+1)] = sell
		msg[fmt.Sprintf("Buy%d", i+1)] = buy
	}

	return msg
}

// Handler upgrades the request and streams push messages until the peer
// disconnects or ctx is cancelled.
func (s *Simulator) Handler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			s.logger.Warn("upgrade failed", zap.Error(err))
			return
		}

		s.logger.Info("feed client connected", zap.String("remote", conn.RemoteAddr().String()))

		go func() {
			defer conn.Close()
			s.Run(ctx, wsWriter{conn: conn})
		}()
	}
}

// TokenHandler issues a fixed session token, accepting any API password.
func (s *Simulator) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ResultCode": 0, "Token": "feedsim-token"})
	}
}

// UnregisterAllHandler acknowledges clearing the registration list.
func (s *Simulator) UnregisterAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"RegistList": []any{}})
	}
}

// RegisterHandler echoes the requested symbols back as the active list.
func (s *Simulator) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Symbols []map[string]any `json:"Symbols"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "malformed register request"})
			return
		}

		s.logger.Info("register request", zap.Int("symbols", len(req.Symbols)))
		writeJSON(w, http.StatusOK, map[string]any{"RegistList": req.Symbols})
	}
}

type wsWriter struct{ conn net.Conn }

func (w wsWriter) WriteMessage(payload []byte) error {
	return wsutil.WriteServerText(w.conn, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
