package ports

import "context"

// ContentQuery selects content-store elements for list/carousel rendering
// and free-text retrieval.
type ContentQuery struct {
	// Entity restricts results to one content type (empty means all).
	Entity string

	// Filter holds field equality constraints.
	Filter map[string]any

	// Text is a free-text search query (RAG-style retrieval).
	Text string
}

// ContentElementData is one raw content element before field projection.
type ContentElementData struct {
	ID     string
	Title  string
	Fields map[string]any
}

// ContentPage is one page of query results plus the stable total.
type ContentPage struct {
	Elements []ContentElementData
	Total    int
}

// ContentStore is the inbound dependency used by the renderer for
// list/carousel projections and by retrieval plugins for free-text search.
// Returns domain.ErrNoContent when the query yields nothing.
type ContentStore interface {
	Search(ctx context.Context, query ContentQuery, skip, limit int) (ContentPage, error)
}
