package repository

import (
	"database/sql"
	"errors"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

var (
	ErrFavoriteExists   = errors.New("a favorite with that name already exists")
	ErrFavoriteNotFound = errors.New("favorite not found")
)

type Repo struct {
	db *sql.DB
}

type Settings struct {
	GuildID               string
	PlaylistLimit         int
	SecondsWaitAfterEmpty int
	LeaveIfNoListeners    bool
	QAddEphemeral         bool
	AutoAnnounceNext      bool
	DefaultVolume         int
	DefaultQueuePageSize  int
}

type Favorite struct {
	ID      int64
	GuildID string
	Author  string
	Name    string
	Query   string
	Kind    media.Kind
}
