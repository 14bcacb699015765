package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/sonroyaalmerol/kumasonic/internal/media"
)

var ErrFavoriteName = errors.New("favorite name and query must not be empty")

type FavoritesService struct {
	repo *Repo
}

func NewFavoritesService(repo *Repo) *FavoritesService {
	return &FavoritesService{repo: repo}
}

func (f *FavoritesService) Create(ctx context.Context, guild, author, name, query string, kind media.Kind) error {
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if name == "" || query == "" {
		return ErrFavoriteName
	}
	kind = media.ParseKind(string(kind))
	return f.repo.AddFavorite(ctx, &Favorite{
		GuildID: guild, Author: author, Name: name, Query: query, Kind: kind,
	})
}

func (f *FavoritesService) Remove(ctx context.Context, guild, name string) error {
	n, err := f.repo.RemoveFavorite(ctx, guild, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrFavoriteNotFound
	}
	return nil
}

func (f *FavoritesService) Use(ctx context.Context, guild, name string) (*Favorite, error) {
	return f.repo.FindFavorite(ctx, guild, strings.TrimSpace(name))
}

func (f *FavoritesService) List(ctx context.Context, guild string) ([]Favorite, error) {
	return f.repo.ListFavorites(ctx, guild)
}
