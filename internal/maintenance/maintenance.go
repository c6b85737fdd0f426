// Package maintenance provides one-shot CLI tasks over the stored server records.
package maintenance

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/config"
	"github.com/woozymasta/gamestatus/internal/models"
)

// Store is the record persistence the tasks need.
type Store interface {
	ListByProtocol(protocol models.Protocol) ([]models.ServerRecord, error)
	SetDetected(id string, protocol models.Protocol, port int) (bool, error)
}

// Querier runs status queries.
type Querier interface {
	Fetch(ctx context.Context, rec *models.ServerRecord) models.Status
	FetchAll(ctx context.Context, recs []*models.ServerRecord) map[string]models.Status
}

// Run checks if any maintenance flags are set and executes the corresponding task.
// Returns true if a task was executed, indicating the program should exit.
func Run(ctx context.Context, cfg *config.Config, store Store, q Querier, out io.Writer) bool {
	switch {
	case cfg.Storage.Query != "":
		if err := QueryOne(ctx, q, cfg.Storage.Query, out); err != nil {
			log.Error().Err(err).Str("target", cfg.Storage.Query).Msg("query failed")
		}
		return true

	case cfg.Storage.CheckAll != "":
		protocol, err := parseProtocolFilter(cfg.Storage.CheckAll)
		if err != nil {
			log.Error().Err(err).Msg("invalid protocol filter")
			return true
		}

		log.Info().Stringer("protocol_filter", protocol).Msg("re-checking stored servers...")
		if err := CheckAll(ctx, store, q, protocol, out); err != nil {
			log.Error().Err(err).Msg("check failed")
		}
		return true
	}

	return false
}

// parseProtocolFilter handles the optional value of --db-check-all.
// The "any" default becomes an empty filter, meaning no filter.
func parseProtocolFilter(input string) (models.Protocol, error) {
	if input == config.AnyProtocol {
		return "", nil
	}
	return models.ParseProtocol(input)
}

// QueryOne queries a single "scheme://host:port" target and prints its status.
func QueryOne(ctx context.Context, q Querier, target string, out io.Writer) error {
	rec, err := models.ParseTarget(target)
	if err != nil {
		return err
	}

	status := q.Fetch(ctx, &rec)
	return PrintStatus(out, rec, status)
}

// CheckAll re-queries every stored record matching protocol, persists
// detected protocols and prints a summary table.
func CheckAll(ctx context.Context, store Store, q Querier, protocol models.Protocol, out io.Writer) error {
	records, err := store.ListByProtocol(protocol)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		log.Info().Msg("no servers found for maintenance")
		return nil
	}

	ptrs := make([]*models.ServerRecord, len(records))
	before := make([]models.Protocol, len(records))
	for i := range records {
		ptrs[i] = &records[i]
		before[i] = records[i].Protocol
	}

	log.Info().Int("count", len(records)).Msg("starting check")
	statuses := q.FetchAll(ctx, ptrs)

	var online, detected int
	for i, rec := range records {
		if statuses[rec.ID].Online {
			online++
		}
		if before[i] != models.ProtocolAuto || rec.Protocol == models.ProtocolAuto {
			continue
		}

		logCtx := log.With().Str("id", rec.ID).Str("address", rec.Address).Logger()
		if _, err := store.SetDetected(rec.ID, rec.Protocol, rec.Port); err != nil {
			logCtx.Error().Err(err).Msg("failed to persist detected protocol")
			continue
		}
		detected++
		logCtx.Debug().Stringer("protocol", rec.Protocol).Int("port", rec.Port).Msg("protocol detected")
	}

	renderCheckTable(out, records, statuses)

	log.Info().
		Int("total", len(records)).
		Int("online", online).
		Int("detected", detected).
		Msg("maintenance task completed")

	return nil
}
