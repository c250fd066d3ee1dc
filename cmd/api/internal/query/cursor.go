package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/takuya-f/kabu-recorder/pkg/store"
)

// ErrInvalidCursor marks a cursor that does not deserialize or was issued
// for a different (symbol, date) pair.
var ErrInvalidCursor = errors.New("invalid cursor")

// DecodeCursor parses an opaque cursor previously produced by EncodeCursor.
// An empty cursor means "start from the beginning" and yields nil. A cursor
// is only valid for the symbol/datePrefix pair it was issued for.
func DecodeCursor(raw, symbol, datePrefix string) (*store.Key, error) {
	if raw == "" {
		return nil, nil
	}

	var key store.Key
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if key.Symbol == "" || key.Time == "" {
		return nil, fmt.Errorf("%w: missing key attributes", ErrInvalidCursor)
	}
	if key.Symbol != symbol {
		return nil, fmt.Errorf("%w: cursor issued for symbol %q", ErrInvalidCursor, key.Symbol)
	}
	if !strings.HasPrefix(key.Time, datePrefix) {
		return nil, fmt.Errorf("%w: cursor outside requested date range", ErrInvalidCursor)
	}

	return &key, nil
}

// EncodeCursor renders a resume key as an opaque string the caller can pass
// back verbatim.
func EncodeCursor(key *store.Key) (string, error) {
	payload, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return string(payload), nil
}
