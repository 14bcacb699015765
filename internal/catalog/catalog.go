package catalog

import (
	"context"
	"errors"
	"io"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

var (
	ErrNotFound    = errors.New("not found in catalog")
	ErrUnsupported = errors.New("catalog backend not enabled")
)

// Catalog is a source of downloadable tracks.
type Catalog interface {
	Download(ctx context.Context, trackID string) (io.ReadCloser, error)
}

// Searcher turns a user query into playable tracks. Song queries return the
// matches in relevance order; album and playlist queries return the tracks of
// the first matching album or playlist.
type Searcher interface {
	Find(ctx context.Context, query string, kind media.Kind, limit int) ([]media.TrackRef, error)
}

type Backend interface {
	Catalog
	Searcher
}

// LinkExpander turns a link from a streaming service into search terms that
// can be looked up in the library.
type LinkExpander interface {
	IsLink(s string) bool
	SearchTerms(ctx context.Context, link string, limit int) ([]string, error)
}
