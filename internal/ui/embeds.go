package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/kumasonic/internal/media"
	"github.com/sonroyaalmerol/kumasonic/internal/player"
	"github.com/sonroyaalmerol/kumasonic/internal/utils"
)

var (
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrPageOutOfRange = errors.New("the queue isn't that big")
)

const (
	colorPlaying = 0x006400
	colorPaused  = 0x8B0000
	colorNothing = 0x992222

	maxDescription = 4000
)

func trackLine(t media.TrackRef) string {
	line := "**" + utils.EscapeMd(t.Title) + "**"
	if t.Title == "" {
		line = "`" + t.ID + "`"
	}
	if t.Artist != "" {
		line += " - " + utils.EscapeMd(t.Artist)
	}
	return line
}

func duration(t media.TrackRef) string {
	if t.Duration <= 0 {
		return "?"
	}
	return utils.PrettyTime(t.Duration)
}

func source(t media.TrackRef) string {
	if t.IsYouTube() {
		return "YouTube"
	}
	return "Library"
}

// NowPlayingEmbed renders the current track. elapsed is in seconds.
func NowPlayingEmbed(snap player.Snapshot, elapsed int) *discordgo.MessageEmbed {
	cur := snap.NowPlaying
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "No playing song found",
			Color:       colorNothing,
		}
	}
	button := "▶️"
	title := "Now Playing"
	color := colorPlaying
	if snap.Status != player.StatusPlaying {
		button = "⏸️"
		title = "Paused"
		color = colorPaused
	}

	desc := trackLine(*cur) + "\n"
	if cur.Album != "" {
		desc += "_" + utils.EscapeMd(cur.Album) + "_\n"
	}
	desc += "\n" + button + " " + progressLine(*cur, elapsed)

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Source: %s · Volume: %d%%", source(*cur), snap.VolumePercent),
		},
	}
}

func progressLine(cur media.TrackRef, elapsed int) string {
	return fmt.Sprintf("%s `[ %s/%s ]`", progressBar(10, elapsed, cur.Duration), utils.PrettyTime(elapsed), duration(cur))
}

// progressBar draws width segments with a knob at elapsed/total seconds. An
// unknown total keeps the knob at the start.
func progressBar(width, elapsed, total int) string {
	if width <= 0 {
		return ""
	}
	knob := 0
	if total > 0 && elapsed > 0 {
		knob = min(elapsed*width/total, width-1)
	}
	return strings.Repeat("▬", knob) + "🔘" + strings.Repeat("▬", width-knob-1)
}

// PageBounds returns the slice bounds of a 1-based page over total items.
func PageBounds(total, page, pageSize int) (begin, end, maxPage int, err error) {
	if pageSize < 1 {
		pageSize = 1
	}
	maxPage = (total + pageSize - 1) / pageSize
	if maxPage == 0 {
		maxPage = 1
	}
	if page < 1 || page > maxPage {
		return 0, 0, maxPage, ErrPageOutOfRange
	}
	begin = (page - 1) * pageSize
	end = min(begin+pageSize, total)
	return begin, end, maxPage, nil
}

// QueueEmbed lists one page of the upcoming tracks under the current one.
func QueueEmbed(snap player.Snapshot, elapsed, page, pageSize int) (*discordgo.MessageEmbed, error) {
	if snap.NowPlaying == nil && len(snap.Queue) == 0 {
		return nil, ErrQueueEmpty
	}
	begin, end, maxPage, err := PageBounds(len(snap.Queue), page, pageSize)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	if cur := snap.NowPlaying; cur != nil {
		b.WriteString(trackLine(*cur))
		b.WriteString("\n")
		b.WriteString(progressLine(*cur, elapsed))
		b.WriteString("\n\n")
	} else {
		b.WriteString("_Nothing playing, use /resume to start the queue._\n\n")
	}
	if end > begin {
		b.WriteString("**Up next:**\n")
		for idx, t := range snap.Queue[begin:end] {
			fmt.Fprintf(&b, "`%d.` %s `[ %s ]`\n", begin+idx+1, trackLine(t), duration(t))
		}
	}

	total := 0
	for _, t := range snap.Queue {
		total += t.Duration
	}

	title := "Queue"
	switch snap.Status {
	case player.StatusPlaying:
		title = "Now Playing"
	case player.StatusPaused:
		title = "Paused"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: truncate(b.String(), maxDescription),
		Color:       colorPlaying,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: queueInfo(len(snap.Queue)), Inline: true},
			{Name: "Total length", Value: totalLenStr(total), Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, maxPage), Inline: true},
		},
	}, nil
}

// SearchEmbed lists search results without queueing them.
func SearchEmbed(query string, tracks []media.TrackRef) *discordgo.MessageEmbed {
	var b strings.Builder
	for idx, t := range tracks {
		fmt.Fprintf(&b, "`%d.` %s `[ %s ]`", idx+1, trackLine(t), duration(t))
		if t.Album != "" {
			b.WriteString(" · _" + utils.EscapeMd(t.Album) + "_")
		}
		b.WriteString("\n")
	}
	if len(tracks) == 0 {
		b.WriteString("no results")
	}
	return &discordgo.MessageEmbed{
		Title:       "Results for " + truncate(query, 200),
		Description: truncate(b.String(), maxDescription),
		Color:       colorPlaying,
	}
}

func queueInfo(n int) string {
	switch n {
	case 0:
		return "-"
	case 1:
		return "1 song"
	}
	return fmt.Sprintf("%d songs", n)
}

func totalLenStr(sec int) string {
	if sec <= 0 {
		return "-"
	}
	return utils.PrettyTime(sec)
}

func truncate(s string, n int) string {
	if cut := utils.Truncate(s, n-1); len(cut) < len(s) {
		return cut + "…"
	}
	return s
}
