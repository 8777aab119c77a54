package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultUploadCacheCapacity = 256

// Upload is the most recent file a session uploaded, kept in memory so it
// can be served before the catalog or disk have it.
type Upload struct {
	SessionID  string
	Data       []byte
	Filename   string
	MimeType   string
	Size       int64
	UploadedAt time.Time
}

// UploadCache maps session ids to their latest upload. It is bounded by
// entry count and evicts the least recently used session.
type UploadCache struct {
	entries *lru.Cache[string, Upload]
}

func NewUploadCache(capacity int) (*UploadCache, error) {
	if capacity <= 0 {
		capacity = defaultUploadCacheCapacity
	}
	entries, err := lru.New[string, Upload](capacity)
	if err != nil {
		return nil, fmt.Errorf("create upload cache failed: %w", err)
	}
	return &UploadCache{entries: entries}, nil
}

// Set replaces the session's cached upload; the last write wins.
func (c *UploadCache) Set(sessionID string, upload Upload) {
	upload.SessionID = sessionID
	if upload.Size == 0 {
		upload.Size = int64(len(upload.Data))
	}
	c.entries.Add(sessionID, upload)
}

func (c *UploadCache) Get(sessionID string) (Upload, bool) {
	return c.entries.Get(sessionID)
}

func (c *UploadCache) Clear(sessionID string) {
	c.entries.Remove(sessionID)
}

func (c *UploadCache) Len() int {
	return c.entries.Len()
}
