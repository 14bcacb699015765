package youtube

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/sonroyaalmerol/kumasonic/internal/catalog"
	"github.com/sonroyaalmerol/kumasonic/internal/config"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

var installOnce sync.Once

// Install fetches a yt-dlp binary when none is on PATH. It panics if that
// fails, like ytdlp.MustInstall.
func Install(ctx context.Context) {
	installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})
}

// Client resolves YouTube searches and URLs through yt-dlp.
type Client struct {
	scratch string
	cookies string
	poToken string
}

func New(cfg *config.Config) *Client {
	return &Client{
		scratch: filepath.Join(cfg.CacheDir, "tmp"),
		cookies: cfg.YouTubeCookiesPath,
		poToken: cfg.YouTubePOToken,
	}
}

// Handles reports whether q is a YouTube URL.
func (c *Client) Handles(q string) bool {
	u, err := url.Parse(strings.TrimSpace(q))
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.TrimPrefix(u.Host, "www.") {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().NoCheckCertificates().IgnoreConfig()
	if c.cookies != "" {
		cmd = cmd.Cookies(c.cookies)
	}
	args := "youtube:player-client=default,mweb"
	if c.poToken != "" {
		args += ";po_token=" + c.poToken
	}
	return cmd.ExtractorArgs(args)
}

// Find implements catalog.Searcher. Playlist URLs expand to their entries,
// video URLs to one track, anything else is a YouTube search.
func (c *Client) Find(ctx context.Context, query string, _ media.Kind, limit int) ([]media.TrackRef, error) {
	if limit <= 0 {
		limit = 1
	}
	target := query
	cmd := c.command().DumpJSON()
	switch {
	case !c.Handles(query):
		target = fmt.Sprintf("ytsearch%d:%s", limit, query)
		cmd = cmd.FlatPlaylist()
	case isPlaylistURL(query):
		cmd = cmd.FlatPlaylist().PlaylistItems(fmt.Sprintf("1-%d", limit))
	default:
		cmd = cmd.NoPlaylist()
	}

	res, err := cmd.Run(ctx, target)
	if err != nil {
		if strings.Contains(err.Error(), "Sign in to confirm") {
			return nil, fmt.Errorf("yt-dlp (PO token may be required): %w", err)
		}
		return nil, fmt.Errorf("yt-dlp run: %w", err)
	}
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}

	var out []media.TrackRef
	for _, info := range infos {
		out = appendInfo(out, info)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("youtube %q: %w", query, catalog.ErrNotFound)
	}
	return out, nil
}

func appendInfo(out []media.TrackRef, info *ytdlp.ExtractedInfo) []media.TrackRef {
	if info == nil {
		return out
	}
	if len(info.Entries) > 0 {
		for _, e := range info.Entries {
			out = appendInfo(out, e)
		}
		return out
	}
	if info.ID == "" || b(info.IsLive) {
		return out
	}
	return append(out, media.TrackRef{
		ID:       media.YouTubePrefix + info.ID,
		Title:    s(info.Title),
		Artist:   s(info.Uploader),
		Duration: int(f(info.Duration)),
	})
}

// Download has yt-dlp write the best audio stream of the video into a scratch
// file. The returned reader deletes the file on Close.
func (c *Client) Download(ctx context.Context, trackID string) (io.ReadCloser, error) {
	vid := strings.TrimPrefix(trackID, media.YouTubePrefix)
	if vid == "" || vid == trackID {
		return nil, fmt.Errorf("%q is not a youtube track id", trackID)
	}
	base := "yt-" + uuid.NewString()
	tmpl := filepath.Join(c.scratch, base+".%(ext)s")

	_, err := c.command().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoPlaylist().
		NoWarnings().
		Output(tmpl).
		Run(ctx, "https://www.youtube.com/watch?v="+vid)
	if err != nil {
		removeMatching(c.scratch, base)
		return nil, fmt.Errorf("yt-dlp download %s: %w", vid, err)
	}

	path, err := findOutput(c.scratch, base)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("yt-dlp download finished", "trackID", trackID, "path", path)
	return &scratchFile{File: fh}, nil
}

func isPlaylistURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if strings.HasPrefix(u.Path, "/playlist") {
		return true
	}
	q := u.Query()
	return q.Get("list") != "" && q.Get("v") == ""
}

func findOutput(dir, base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, base+".*"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fmt.Errorf("yt-dlp produced no file for %s", base)
}

func removeMatching(dir, base string) {
	matches, _ := filepath.Glob(filepath.Join(dir, base+".*"))
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

type scratchFile struct {
	*os.File
}

func (sf *scratchFile) Close() error {
	err := sf.File.Close()
	if rerr := os.Remove(sf.Name()); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func s(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func f(ptr *float64) float64 {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func b(ptr *bool) bool {
	if ptr == nil {
		return false
	}
	return *ptr
}
