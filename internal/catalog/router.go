package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

// URLBackend is a secondary backend that owns some URLs outright.
type URLBackend interface {
	Backend
	Handles(query string) bool
}

// Router sends work to the library backend, to yt-dlp for ids carrying
// media.YouTubePrefix and YouTube URLs, and expands Spotify links into library
// searches.
type Router struct {
	library Backend
	youtube URLBackend
	links   LinkExpander
}

type RouterOption func(*Router)

func WithYouTube(b URLBackend) RouterOption { return func(r *Router) { r.youtube = b } }

func WithLinkExpander(l LinkExpander) RouterOption { return func(r *Router) { r.links = l } }

func NewRouter(library Backend, opts ...RouterOption) *Router {
	r := &Router{library: library}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Router) Download(ctx context.Context, trackID string) (io.ReadCloser, error) {
	if strings.HasPrefix(trackID, media.YouTubePrefix) {
		if r.youtube == nil {
			return nil, fmt.Errorf("%s: %w", trackID, ErrUnsupported)
		}
		return r.youtube.Download(ctx, trackID)
	}
	return r.library.Download(ctx, trackID)
}

func (r *Router) Find(ctx context.Context, query string, kind media.Kind, limit int) ([]media.TrackRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNotFound
	}

	switch {
	case r.links != nil && r.links.IsLink(query):
		return r.expand(ctx, query, limit)
	case r.youtube != nil && r.youtube.Handles(query):
		return r.youtube.Find(ctx, query, kind, limit)
	}

	tracks, err := r.library.Find(ctx, query, kind, limit)
	if err == nil && len(tracks) > 0 {
		return tracks, nil
	}
	if r.youtube != nil && kind == media.KindSong {
		slog.Debug("library miss, searching youtube", "query", query, "err", err)
		return r.youtube.Find(ctx, query, kind, limit)
	}
	if err == nil {
		err = ErrNotFound
	}
	return nil, err
}

// expand looks up every track of a streaming link in the library and keeps the
// first hit of each. Misses are skipped.
func (r *Router) expand(ctx context.Context, link string, limit int) ([]media.TrackRef, error) {
	terms, err := r.links.SearchTerms(ctx, link, limit)
	if err != nil {
		return nil, err
	}
	out := make([]media.TrackRef, 0, len(terms))
	for _, term := range terms {
		hits, err := r.library.Find(ctx, term, media.KindSong, 1)
		if err != nil || len(hits) == 0 {
			slog.Debug("no library match for link track", "term", term, "err", err)
			continue
		}
		out = append(out, hits[0])
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
