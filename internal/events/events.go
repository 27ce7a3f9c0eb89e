package events

import (
	"sync"

	"forma-server/internal/metrics"
)

// Type identifies the kind of event delivered on the progress channel.
type Type string

const (
	// TypeScanProgress is a throttled scan progress snapshot.
	TypeScanProgress Type = "scan_progress"
	// TypeAssetAdded signals a newly catalogued asset.
	TypeAssetAdded Type = "asset_added"
	// TypeAssetUpdated signals metadata or file changes on an asset.
	TypeAssetUpdated Type = "asset_updated"
	// TypeAssetRemoved signals a soft-deleted asset.
	TypeAssetRemoved Type = "asset_removed"
	// TypeFolderUpdated signals a watched folder state change.
	TypeFolderUpdated Type = "folder_updated"
)

// ScanProgress is a transient snapshot of an in-flight folder scan.
// Each snapshot supersedes the previous one; nothing is persisted.
type ScanProgress struct {
	FolderID    int64  `json:"folderId"`
	FolderPath  string `json:"folderPath"`
	TotalFiles  int    `json:"totalFiles"`
	Processed   int    `json:"processedFiles"`
	CurrentFile string `json:"currentFile,omitempty"`
	ModelsFound int    `json:"modelsFound"`
	Done        bool   `json:"done"`
}

// Event is a single notification on the progress channel.
type Event struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const subscriberBuffer = 64

// Bus fans events out to subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a new observer. The returned channel receives events
// until the cancel function is called. The channel is buffered; events are
// dropped when the buffer is full.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()

	metrics.EventSubscribers.Set(float64(count))

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			count := len(b.subs)
			b.mu.Unlock()
			close(ch)
			metrics.EventSubscribers.Set(float64(count))
		})
	}

	return ch, cancel
}

// Publish delivers an event to all current subscribers without blocking.
func (b *Bus) Publish(evt Event) {
	metrics.EventsPublished.WithLabelValues(string(evt.Type)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// PublishProgress publishes a scan progress snapshot.
func (b *Bus) PublishProgress(p ScanProgress) {
	b.Publish(Event{Type: TypeScanProgress, Payload: p})
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
