package ingestor

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/takuya-f/kabu-recorder/pkg/models"
)

// FeedConn abstracts one live feed connection
type FeedConn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// FeedDialer abstracts connection establishment for deterministic testing
type FeedDialer interface {
	Dial(ctx context.Context, url string) (FeedConn, error)
}

// RecordWriter is the slice of the store the write path needs
type RecordWriter interface {
	Put(ctx context.Context, rec *models.Record) error
}

// SnapshotWriter caches the latest record per symbol; may be absent
type SnapshotWriter interface {
	SetLatest(ctx context.Context, rec *models.Record) error
}

// State of the feed connection lifecycle
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// WebsocketDialer adapts gorilla/websocket to the FeedDialer interface
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (FeedConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &websocketConn{conn: conn}, nil
}

type websocketConn struct {
	conn *websocket.Conn
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	_, payload, err := c.conn.ReadMessage()
	return payload, err
}

func (c *websocketConn) Close() error {
	return c.conn.Close()
}
