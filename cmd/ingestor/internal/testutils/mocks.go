package testutils

import (
	"context"
	"io"
	"sync"

	"github.com/takuya-f/kabu-recorder/cmd/ingestor/internal/ingestor"
	"github.com/takuya-f/kabu-recorder/pkg/models"
)

// ScriptedConn replays a fixed series of feed frames, then fails with Err
// (io.EOF by default) to simulate the connection dropping.
type ScriptedConn struct {
	Frames [][]byte
	Err    error

	Mu     sync.Mutex
	index  int
	Closed bool
}

func (c *ScriptedConn) ReadMessage() ([]byte, error) {
	c.Mu.Lock()
	defer c.Mu.Unlock()

	if c.Closed {
		return nil, io.ErrClosedPipe
	}
	if c.index >= len(c.Frames) {
		if c.Err != nil {
			return nil, c.Err
		}
		return nil, io.EOF
	}

	frame := c.Frames[c.index]
	c.index++
	return frame, nil
}

func (c *ScriptedConn) Close() error {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Closed = true
	return nil
}

// Remaining reports how many scripted frames have not been read yet.
func (c *ScriptedConn) Remaining() int {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return len(c.Frames) - c.index
}

// DialResult is one scripted outcome of a Dial attempt.
type DialResult struct {
	Conn ingestor.FeedConn
	Err  error
}

// ScriptedDialer hands out scripted connections in order. Once the script is
// exhausted every further attempt fails, so tests cancel ctx to stop the loop.
type ScriptedDialer struct {
	Results []DialResult

	Mu    sync.Mutex
	Calls int
}

func (d *ScriptedDialer) Dial(ctx context.Context, url string) (ingestor.FeedConn, error) {
	d.Mu.Lock()
	defer d.Mu.Unlock()

	if d.Calls >= len(d.Results) {
		d.Calls++
		return nil, io.EOF
	}

	res := d.Results[d.Calls]
	d.Calls++
	return res.Conn, res.Err
}

func (d *ScriptedDialer) DialCount() int {
	d.Mu.Lock()
	defer d.Mu.Unlock()
	return d.Calls
}

// MockRecordStore captures puts and optionally fails them. Like the real
// table, a put to an existing (symbol, get_time) key overwrites in place.
type MockRecordStore struct {
	PutErr error

	Mu       sync.Mutex
	Records  []*models.Record
	Attempts int
	byKey    map[string]int
}

func (m *MockRecordStore) Put(ctx context.Context, rec *models.Record) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Attempts++
	if m.PutErr != nil {
		return m.PutErr
	}

	if m.byKey == nil {
		m.byKey = make(map[string]int)
	}
	key := rec.Symbol + "/" + rec.Time
	if i, ok := m.byKey[key]; ok {
		m.Records[i] = rec
		return nil
	}
	m.byKey[key] = len(m.Records)
	m.Records = append(m.Records, rec)
	return nil
}

// PutCount reports the number of distinct stored records.
func (m *MockRecordStore) PutCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Records)
}

// PutAttempts reports how many times Put was called, duplicates included.
func (m *MockRecordStore) PutAttempts() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Attempts
}

// Stored returns a copy of the captured records.
func (m *MockRecordStore) Stored() []*models.Record {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]*models.Record, len(m.Records))
	copy(out, m.Records)
	return out
}

// MockSnapshotCache records the latest snapshot per symbol.
type MockSnapshotCache struct {
	SetErr error

	Mu     sync.Mutex
	Latest map[string]*models.Record
}

func NewMockSnapshotCache() *MockSnapshotCache {
	return &MockSnapshotCache{Latest: make(map[string]*models.Record)}
}

func (m *MockSnapshotCache) SetLatest(ctx context.Context, rec *models.Record) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Latest[rec.Symbol] = rec
	return nil
}
