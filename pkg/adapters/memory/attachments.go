package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wattlebot/wattle/pkg/domain"
	"github.com/wattlebot/wattle/pkg/ports"
)

// AttachmentResolver implements ports.AttachmentResolver over a static
// id-to-URL map.
type AttachmentResolver struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewAttachmentResolver creates a resolver over the given mapping.
func NewAttachmentResolver(urls map[string]string) *AttachmentResolver {
	cp := make(map[string]string, len(urls))
	for k, v := range urls {
		cp[k] = v
	}
	return &AttachmentResolver{urls: cp}
}

// Put registers or replaces one attachment URL.
func (r *AttachmentResolver) Put(id, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[id] = url
}

// Resolve returns the retrievable reference for an attachment ID.
func (r *AttachmentResolver) Resolve(ctx context.Context, attachmentID string) (ports.AttachmentRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[attachmentID]
	if !ok {
		return ports.AttachmentRef{}, fmt.Errorf("%w: %s", domain.ErrAttachmentNotFound, attachmentID)
	}
	return ports.AttachmentRef{ID: attachmentID, URL: url}, nil
}
