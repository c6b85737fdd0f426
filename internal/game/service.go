// Package game queries game servers over their native protocols and
// normalizes every answer into models.Status.
package game

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/woozymasta/gamestatus/internal/config"
	"github.com/woozymasta/gamestatus/internal/fivem"
	"github.com/woozymasta/gamestatus/internal/models"
)

var (
	// ErrUnsupported is logged for records whose protocol cannot be queried.
	ErrUnsupported = errors.New("unsupported protocol")

	// ErrRepeatedChallenge is returned when a server answers a challenged request with another challenge.
	ErrRepeatedChallenge = errors.New("server answered the challenge with another challenge")

	// ErrNoData is returned when a server answered without usable status.
	ErrNoData = errors.New("no status data")
)

// CountryResolver maps an IP address to an ISO country code.
type CountryResolver interface {
	Country(addr netip.Addr) string
}

// Service runs status queries. It is safe for concurrent use.
type Service struct {
	fivem    *fivem.Client
	geo      CountryResolver
	resolver *net.Resolver
	group    singleflight.Group
	cfg      config.Query
}

// New returns a Service. fm and geo may be nil; FiveM records are then
// offline and statuses carry no country.
func New(cfg config.Query, fm *fivem.Client, geo CountryResolver) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultQueryTimeout
	}

	return &Service{
		cfg:      cfg,
		fivem:    fm,
		geo:      geo,
		resolver: net.DefaultResolver,
	}
}

// outcome is shared by every caller waiting on the same record.
type outcome struct {
	detected models.Protocol
	status   models.Status
	port     int
}

// Fetch queries rec and returns its status. It never fails: unreachable or
// unparsable servers yield models.Offline. Concurrent calls for the same
// record ID share one network exchange. When rec uses auto detection and a
// protocol answers, rec.Protocol (and rec.Port when 0) are updated in place.
func (s *Service) Fetch(ctx context.Context, rec *models.ServerRecord) models.Status {
	if rec == nil {
		return models.Offline
	}

	key := rec.ID
	if key == "" {
		key = models.AdHocID(rec.Protocol, rec.Address, rec.Port)
	}

	snapshot := *rec
	v, _, shared := s.group.Do(key, func() (any, error) {
		// the shared query must finish even if the first caller gives up
		return s.fetch(context.WithoutCancel(ctx), snapshot), nil
	})

	out := v.(outcome)
	if shared {
		log.Trace().Str("id", key).Msg("joined in-flight query")
	}

	if out.detected != "" && rec.Protocol == models.ProtocolAuto {
		rec.Protocol = out.detected
		if rec.Port == 0 {
			rec.Port = out.port
		}
	}

	return out.status
}

// FetchAll queries every record in parallel and returns statuses keyed by record ID.
func (s *Service) FetchAll(ctx context.Context, recs []*models.ServerRecord) map[string]models.Status {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]models.Status, len(recs))
	)

	for _, rec := range recs {
		if rec == nil {
			continue
		}

		wg.Add(1)
		go func(rec *models.ServerRecord) {
			defer wg.Done()

			status := s.Fetch(ctx, rec)

			mu.Lock()
			results[rec.ID] = status
			mu.Unlock()
		}(rec)
	}
	wg.Wait()

	return results
}

// fetch dispatches on the record protocol.
func (s *Service) fetch(ctx context.Context, rec models.ServerRecord) outcome {
	logger := s.logger(rec)

	if rec.Protocol == models.ProtocolAuto {
		return s.detect(ctx, rec, logger)
	}

	status, err := s.query(ctx, rec.Protocol, rec)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			logger.Warn().Err(err).Msg("query skipped")
		} else {
			logger.Debug().Err(err).Msg("server offline")
		}
		return outcome{status: models.Offline}
	}

	logger.Debug().Int("players", deref(status.PlayersOnline)).Msg("server online")
	return outcome{status: status}
}

// query runs one protocol against rec and decorates the online status.
func (s *Service) query(ctx context.Context, p models.Protocol, rec models.ServerRecord) (status models.Status, err error) {
	defer func() {
		// decoding bugs must not take down the caller
		if r := recover(); r != nil {
			status, err = models.Offline, fmt.Errorf("%s query panicked: %v", p, r)
		}
	}()

	switch p {
	case models.ProtocolJava:
		status, err = s.fetchJava(ctx, rec)
	case models.ProtocolBedrock:
		status, err = s.fetchBedrock(ctx, rec)
	case models.ProtocolSource:
		status, err = s.fetchSource(ctx, rec)
	case models.ProtocolFiveM:
		status, err = s.fetchFiveM(ctx, rec)
	case models.ProtocolFiveMCode:
		status, err = s.fetchFiveMCode(ctx, rec)
	default:
		return models.Offline, fmt.Errorf("%w: %q", ErrUnsupported, p)
	}
	if err != nil {
		return models.Offline, err
	}
	if !status.Online {
		return models.Offline, ErrNoData
	}

	status.Protocol = p
	status.Country = s.country(ctx, rec.Address)

	return status, nil
}

// country resolves host and looks up its country. Any failure leaves it unset.
func (s *Service) country(ctx context.Context, host string) *string {
	if s.geo == nil || host == "" {
		return nil
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		addrs, err := s.resolver.LookupNetIP(rctx, "ip", host)
		if err != nil || len(addrs) == 0 {
			return nil
		}
		addr = addrs[0]
	}

	return models.NonEmpty(s.geo.Country(addr))
}

func (s *Service) logger(rec models.ServerRecord) zerolog.Logger {
	return log.With().
		Str("id", rec.ID).
		Stringer("protocol", rec.Protocol).
		Str("addr", rec.HostPort(rec.Protocol)).
		Logger()
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
