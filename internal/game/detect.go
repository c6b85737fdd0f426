package game

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/woozymasta/gamestatus/internal/models"
)

// detectOrder is the tie-break order for equal scores.
var detectOrder = []models.Protocol{
	models.ProtocolJava,
	models.ProtocolBedrock,
	models.ProtocolSource,
	models.ProtocolFiveM,
}

type portRange struct {
	lo, hi int
}

var portRanges = map[models.Protocol]portRange{
	models.ProtocolJava:    {25565, 25575},
	models.ProtocolBedrock: {19132, 19140},
	models.ProtocolSource:  {27015, 27050},
	models.ProtocolFiveM:   {30120, 30130},
}

// sourceGames are name fragments that hint at a Source engine (A2S) server.
var sourceGames = []string{
	"source", "csgo", "cs2", "cs:", "counter", "tf2", "team fortress", "gmod", "garry",
	"rust", "dayz", "arma", "ark", "l4d", "left 4 dead", "insurgency", "valheim",
}

// Candidate is one protocol with its detection score.
type Candidate struct {
	Protocol models.Protocol
	Score    int
}

// Rank scores every detectable protocol for rec, highest first.
func Rank(rec models.ServerRecord) []Candidate {
	name := strings.ToLower(rec.Name)

	candidates := make([]Candidate, 0, len(detectOrder))
	for _, p := range detectOrder {
		score := 0

		if rec.Port != 0 {
			if rec.Port == p.DefaultPort() {
				score += 100
			} else if r := portRanges[p]; rec.Port >= r.lo && rec.Port <= r.hi {
				score += 50
			}
		}

		switch p {
		case models.ProtocolJava:
			if containsAny(name, "mc", "minecraft") {
				score += 50
			}
		case models.ProtocolBedrock:
			if containsAny(name, "bedrock") {
				score += 50
			}
		case models.ProtocolSource:
			if containsAny(name, sourceGames...) {
				score += 50
			}
		case models.ProtocolFiveM:
			if containsAny(name, "gta", "red", "fivem") {
				score += 50
			}
			if containsAny(name, "rp", "roleplay") {
				score += 20
			}
		}

		candidates = append(candidates, Candidate{Protocol: p, Score: score})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return b.Score - a.Score
	})

	return candidates
}

// detect tries each ranked protocol until one answers online.
func (s *Service) detect(ctx context.Context, rec models.ServerRecord, logger zerolog.Logger) outcome {
	for _, c := range Rank(rec) {
		status, err := s.query(ctx, c.Protocol, rec)
		if err != nil {
			logger.Trace().Err(err).Stringer("candidate", c.Protocol).Int("score", c.Score).Msg("detect miss")
			continue
		}

		out := outcome{status: status, detected: c.Protocol, port: rec.Port}
		if rec.Port == 0 {
			out.port = c.Protocol.DefaultPort()
		}

		logger.Debug().Stringer("detected", c.Protocol).Int("port", out.port).Msg("protocol detected")
		return out
	}

	logger.Debug().Msg("detection failed, server offline")
	return outcome{status: models.Offline}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
