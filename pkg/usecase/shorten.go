package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
)

// ShortenOrOriginal resolves a short link for url. The original url is returned when no
// shortener is configured or the shortener yields nothing usable.
func ShortenOrOriginal(ctx context.Context, shortener interfaces.URLShortener, url string) string {
	if shortener == nil || url == "" {
		return url
	}

	short := shortener.Shorten(ctx, url)
	if short == "" {
		ctxlog.From(ctx).Debug("Shortener returned empty link, using original", "url", url)
		return url
	}
	return short
}
