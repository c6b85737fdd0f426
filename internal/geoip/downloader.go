// Package geoip keeps a MaxMind country database up to date and resolves
// server addresses to ISO country codes.
package geoip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/config"
)

const downloadTimeout = 2 * time.Minute

// ErrDownload is returned when the database URL answers with a non-200 status.
var ErrDownload = errors.New("geoip: download failed")

// Setup refreshes the database if needed and opens it. An empty path
// disables country lookup and yields a nil provider.
func Setup(ctx context.Context, cfg config.GeoIP) (*Provider, error) {
	if cfg.Path == "" {
		log.Info().Msg("GeoIP disabled")
		return nil, nil
	}

	if cfg.URL != "" {
		if err := EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
			// a stale database is still better than none
			log.Error().Err(err).Msg("failed to refresh GeoIP database")
		}
	}

	return Open(cfg.Path)
}

// EnsureDB checks if the GeoIP database exists at path and is younger than maxAge.
// Otherwise it downloads a new copy from url.
func EnsureDB(ctx context.Context, path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)

	switch {
	case err == nil && time.Since(info.ModTime()) < maxAge:
		log.Debug().Str("path", path).Msg("GeoIP database is up to date")
		return nil
	case err == nil:
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return err
	}

	return downloadFile(ctx, path, url)
}

// downloadFile fetches url into a temporary file, checks that it opens as a
// MaxMind database and then renames it over path.
func downloadFile(ctx context.Context, path, url string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrDownload, url, resp.StatusCode)
	}

	tmpPath := path + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	db, err := geoip2.Open(tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("%w: invalid database: %w", ErrDownload, err)
	}
	_ = db.Close()

	return os.Rename(tmpPath, path)
}
