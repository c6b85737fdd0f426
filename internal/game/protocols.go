package game

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/models"
	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
	"github.com/woozymasta/gamestatus/internal/transport"
)

func (s *Service) fetchJava(ctx context.Context, rec models.ServerRecord) (models.Status, error) {
	port := rec.EffectivePort(models.ProtocolJava)

	client := transport.NewTCPClient(rec.Address, uint16(port), transport.TCPOptions{
		Protocol: s.cfg.JavaProtocol,
	})
	defer func() { _ = client.Close() }()

	rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	status, latency, err := client.Query(rctx)
	if err != nil {
		return models.Offline, err
	}

	return javaStatus(status, latency), nil
}

func (s *Service) fetchBedrock(ctx context.Context, rec models.ServerRecord) (models.Status, error) {
	client := s.udpClient(rec, models.ProtocolBedrock)
	defer func() { _ = client.Close() }()

	rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := client.Start(rctx); err != nil {
		return models.Offline, err
	}

	reply, err := client.Exchange(rctx, transport.MessageBedrockPing, nil)
	if err != nil {
		return models.Offline, err
	}
	if reply.Pong == nil {
		return models.Offline, ErrNoData
	}

	return bedrockStatus(reply.Pong, reply.Latency), nil
}

// fetchSource runs INFO then PLAYER. A failed PLAYER round trip keeps the
// server online with an empty player list.
func (s *Service) fetchSource(ctx context.Context, rec models.ServerRecord) (models.Status, error) {
	client := s.udpClient(rec, models.ProtocolSource)
	defer func() { _ = client.Close() }()

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	err := client.Start(sctx)
	cancel()
	if err != nil {
		return models.Offline, err
	}

	reply, err := s.sourceRoundTrip(ctx, client, transport.MessageInfo)
	if err != nil {
		return models.Offline, err
	}
	info, ok := reply.Response.(*a2s.Info)
	if !ok {
		return models.Offline, fmt.Errorf("%w: unexpected %T", ErrNoData, reply.Response)
	}

	status := sourceStatus(info, reply.Latency)

	client.ClearFragments()
	reply, err = s.sourceRoundTrip(ctx, client, transport.MessagePlayer)
	if err != nil {
		log.Debug().Err(err).Str("addr", rec.HostPort(models.ProtocolSource)).Msg("player list unavailable")
		return status, nil
	}
	if list, ok := reply.Response.(*a2s.PlayerList); ok {
		status.Players = sourcePlayers(list)
	}

	return status, nil
}

// sourceRoundTrip sends one request and, if challenged, exactly one retry.
// Each attempt gets its own timeout window.
func (s *Service) sourceRoundTrip(ctx context.Context, client *transport.UDPClient, m transport.Message) (transport.UDPReply, error) {
	reply, err := s.exchange(ctx, client, m, nil)
	if err != nil {
		return reply, err
	}

	challenge, ok := reply.Challenge()
	if !ok {
		return reply, nil
	}

	reply, err = s.exchange(ctx, client, m, challenge)
	if err != nil {
		return reply, err
	}
	if _, again := reply.Challenge(); again {
		return reply, ErrRepeatedChallenge
	}

	return reply, nil
}

func (s *Service) exchange(ctx context.Context, client *transport.UDPClient, m transport.Message, challenge []byte) (transport.UDPReply, error) {
	rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return client.Exchange(rctx, m, challenge)
}

// FetchRules queries the A2S_RULES list of a Source server.
func (s *Service) FetchRules(ctx context.Context, rec models.ServerRecord) ([]a2s.Rule, error) {
	if rec.Protocol != models.ProtocolSource {
		return nil, fmt.Errorf("%w: rules need %q, got %q", ErrUnsupported, models.ProtocolSource, rec.Protocol)
	}

	client := s.udpClient(rec, models.ProtocolSource)
	defer func() { _ = client.Close() }()

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	err := client.Start(sctx)
	cancel()
	if err != nil {
		return nil, err
	}

	reply, err := s.sourceRoundTrip(ctx, client, transport.MessageRules)
	if err != nil {
		return nil, err
	}
	rules, ok := reply.Response.(*a2s.Rules)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %T", ErrNoData, reply.Response)
	}

	return rules.Rules, nil
}

func (s *Service) fetchFiveM(ctx context.Context, rec models.ServerRecord) (models.Status, error) {
	if s.fivem == nil {
		return models.Offline, fmt.Errorf("%w: fivem client not configured", ErrUnsupported)
	}

	snap, err := s.fivem.Fetch(ctx, rec.Address, rec.EffectivePort(models.ProtocolFiveM))
	if err != nil {
		return models.Offline, err
	}
	if snap.Dynamic == nil || !bool(snap.Dynamic.Online) {
		return models.Offline, ErrNoData
	}

	return fivemStatus(snap), nil
}

func (s *Service) fetchFiveMCode(ctx context.Context, rec models.ServerRecord) (models.Status, error) {
	if s.fivem == nil {
		return models.Offline, fmt.Errorf("%w: fivem client not configured", ErrUnsupported)
	}

	srv, err := s.fivem.LookupCode(ctx, rec.Address)
	if err != nil {
		return models.Offline, err
	}
	if srv == nil {
		return models.Offline, ErrNoData
	}

	status := cfxStatus(srv)

	if iv := srv.Data.IconVersion; iv != nil {
		icon, err := s.fivem.Favicon(ctx, rec.Address, int(*iv))
		if err != nil {
			log.Debug().Err(err).Str("code", rec.Address).Msg("fivem icon unavailable")
		} else {
			status.Favicon = models.NonEmpty(icon)
		}
	}

	return status, nil
}

func (s *Service) udpClient(rec models.ServerRecord, p models.Protocol) *transport.UDPClient {
	return transport.NewUDPClient(rec.HostPort(p), transport.UDPOptions{
		BufferSize: int(s.cfg.BufferSize),
		SplitLimit: s.cfg.SplitLimit,
	})
}

func millis(d time.Duration) *int {
	return models.Ptr(int(d.Milliseconds()))
}
