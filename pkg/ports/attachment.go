package ports

import "context"

// AttachmentRef is a retrievable reference to a stored attachment.
// The engine never embeds raw bytes in envelopes.
type AttachmentRef struct {
	ID  string
	URL string
}

// AttachmentResolver turns an attachment ID into a retrievable reference.
// Returns domain.ErrAttachmentNotFound for unknown IDs.
type AttachmentResolver interface {
	Resolve(ctx context.Context, attachmentID string) (AttachmentRef, error)
}
