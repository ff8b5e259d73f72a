// Package testutil provides in-memory fakes for handler tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/threatlens/console-backend/internal/models"
	"github.com/threatlens/console-backend/internal/storage"
	"github.com/threatlens/console-backend/internal/transport"
)

// MockStorage implements storage.Store in memory.
type MockStorage struct {
	mu       sync.RWMutex
	files    map[string]*models.FileInfo
	fileData map[string][]byte
}

// NewMockStorage creates an empty mock store.
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(name, contentType string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, contentType, data)
}

func (m *MockStorage) SaveBytes(name, contentType string, data []byte) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := generateTestID()
	info := &models.FileInfo{
		ID:          id,
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		ReceivedAt:  time.Now(),
	}

	m.files[id] = info
	m.fileData[id] = data
	return info, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return info, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var list []*models.FileInfo
	for _, info := range m.files {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ReceivedAt.After(list[j].ReceivedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return errors.New("file not found")
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) Rename(id string, newName string) (*models.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.files[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	info.Name = newName
	return info, nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	return "/mock/path/" + id, nil
}

func (m *MockStorage) Open(id string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// FileCount returns the number of stored files.
func (m *MockStorage) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

var (
	testIDCounter int
	testIDMutex   sync.Mutex
)

func generateTestID() string {
	testIDMutex.Lock()
	defer testIDMutex.Unlock()
	testIDCounter++
	return fmt.Sprintf("test-id-%d", testIDCounter)
}

// MockTransport implements transport.Ingest with a scripted outcome.
type MockTransport struct {
	mu sync.Mutex

	// Err, when set, is returned from Send after progress is reported.
	Err error
	// Progress pairs of (sent, total) reported before finishing.
	Progress [][2]int64

	sends []transport.SendRequest
}

func (m *MockTransport) Send(ctx context.Context, req *transport.SendRequest) error {
	m.mu.Lock()
	m.sends = append(m.sends, *req)
	progress := m.Progress
	err := m.Err
	m.mu.Unlock()

	for _, p := range progress {
		if req.OnProgress != nil {
			req.OnProgress(p[0], p[1])
		}
	}
	return err
}

// SendCount returns how many transfers were attempted.
func (m *MockTransport) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sends)
}

// LastSend returns the most recent request, if any.
func (m *MockTransport) LastSend() (transport.SendRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sends) == 0 {
		return transport.SendRequest{}, false
	}
	return m.sends[len(m.sends)-1], true
}

var _ transport.Ingest = (*MockTransport)(nil)

// MockSink records notifications.
type MockSink struct {
	mu            sync.Mutex
	notifications []Notification
}

// Notification is one recorded sink call.
type Notification struct {
	Message string
	Key     string
}

func (m *MockSink) Notify(message, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, Notification{Message: message, Key: key})
}

// Notifications returns a copy of all recorded calls.
func (m *MockSink) Notifications() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.notifications))
	copy(out, m.notifications)
	return out
}
