package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/config"
)

// Client talks to an OpenSubsonic server with token authentication.
type Client struct {
	base     string
	user     string
	password string
	name     string

	http    *http.Client
	limiter *rate.Limiter
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithRateLimit caps outgoing requests per second. 0 disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

func NewClient(baseURL, user, password, clientName string, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		user:     user,
		password: password,
		name:     clientName,
		http:     &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func NewFromConfig(cfg *config.Config) *Client {
	// downloads are bounded by the cache's own timeout
	h := &http.Client{Timeout: cfg.DownloadTimeout}
	return NewClient(cfg.SubsonicURL, cfg.SubsonicUser, cfg.SubsonicPassword, cfg.SubsonicClient,
		WithHTTPClient(h), WithRateLimit(cfg.SubsonicRateLimit))
}

func (c *Client) endpoint(method string, params url.Values) string {
	salt := make([]byte, 6)
	_, _ = rand.Read(salt)
	s := hex.EncodeToString(salt)
	sum := md5.Sum([]byte(c.password + s))

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("u", c.user)
	q.Set("t", hex.EncodeToString(sum[:]))
	q.Set("s", s)
	q.Set("v", apiVersion)
	q.Set("c", c.name)
	q.Set("f", "json")
	return c.base + "/rest/" + method + "?" + q.Encode()
}

func (c *Client) get(ctx context.Context, method string, params url.Values) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(method, params), nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (*response, error) {
	resp, err := c.get(ctx, method, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", method, ErrBadResponse, err)
	}
	r := &env.Response
	if r.Status != "ok" {
		if r.Error != nil {
			return nil, r.Error
		}
		return nil, fmt.Errorf("%s: %w: status %q", method, ErrBadResponse, r.Status)
	}
	return r, nil
}

// Ping checks that the server is reachable and accepts our credentials.
func (c *Client) Ping(ctx context.Context) error {
	r, err := c.call(ctx, "ping", nil)
	if err != nil {
		return err
	}
	slog.Info("subsonic server reachable", "url", c.base, "version", r.Version, "server", r.Type, "serverVersion", r.ServerVersion)
	return nil
}

func (c *Client) Search(ctx context.Context, query string, n SearchCounts) (*SearchResult, error) {
	params := url.Values{
		"query":       {query},
		"songCount":   {strconv.Itoa(n.Songs)},
		"albumCount":  {strconv.Itoa(n.Albums)},
		"artistCount": {strconv.Itoa(n.Artists)},
	}
	r, err := c.call(ctx, "search3", params)
	if err != nil {
		return nil, err
	}
	if r.SearchResult3 == nil {
		return &SearchResult{}, nil
	}
	return r.SearchResult3, nil
}

func (c *Client) GetAlbum(ctx context.Context, id string) (*Album, error) {
	r, err := c.call(ctx, "getAlbum", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if r.Album == nil {
		return nil, catalog.ErrNotFound
	}
	return r.Album, nil
}

func (c *Client) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	r, err := c.call(ctx, "getPlaylists", nil)
	if err != nil {
		return nil, err
	}
	if r.Playlists == nil {
		return nil, nil
	}
	return r.Playlists.Playlist, nil
}

func (c *Client) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	r, err := c.call(ctx, "getPlaylist", url.Values{"id": {id}})
	if err != nil {
		return nil, err
	}
	if r.Playlist == nil {
		return nil, catalog.ErrNotFound
	}
	return r.Playlist, nil
}

// Download returns the original file for id. Servers that refuse /download
// (no download permission, or Funkwhale) are retried through /stream.
func (c *Client) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	body, err := c.media(ctx, "download", id)
	if err == nil {
		return body, nil
	}
	if errors.Is(err, catalog.ErrNotFound) || ctx.Err() != nil {
		return nil, err
	}
	slog.Warn("download endpoint failed, falling back to stream", "trackID", id, "err", err)
	return c.media(ctx, "stream", id)
}

func (c *Client) media(ctx context.Context, method, id string) (io.ReadCloser, error) {
	resp, err := c.get(ctx, method, url.Values{"id": {id}})
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, id, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: http %d", method, id, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if strings.Contains(ct, "json") || strings.Contains(ct, "xml") {
		defer resp.Body.Close()
		return nil, decodeMediaError(resp.Body, ct)
	}
	return resp.Body, nil
}

func decodeMediaError(r io.Reader, contentType string) error {
	if strings.Contains(contentType, "xml") {
		var x xmlResponse
		if err := xml.NewDecoder(r).Decode(&x); err != nil || x.Error == nil {
			return fmt.Errorf("%w: unexpected xml body", ErrBadResponse)
		}
		return x.Error
	}
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil || env.Response.Error == nil {
		return fmt.Errorf("%w: unexpected json body", ErrBadResponse)
	}
	return env.Response.Error
}
