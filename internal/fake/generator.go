// Package fake provides utilities for generating random server records for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/models"
)

// Store receives the generated records.
type Store interface {
	CreateRecord(rec models.ServerRecord) (models.ServerRecord, error)
}

type template struct {
	protocol models.Protocol
	names    []string
	port     int
}

var templates = []template{
	{models.ProtocolJava, []string{"MC Survival", "Minecraft Skyblock", "MC Creative Hub"}, models.PortJava},
	{models.ProtocolBedrock, []string{"Bedrock Realm", "Bedrock Bedwars"}, models.PortBedrock},
	{models.ProtocolSource, []string{"CS2 Retakes", "TF2 Payload", "Rust Vanilla", "DayZ Chernarus"}, models.PortSource},
	{models.ProtocolFiveM, []string{"Los Santos RP", "GTA Drift"}, models.PortFiveM},
	{models.ProtocolAuto, []string{"Mystery Server", "Community Box"}, 0},
}

// GenerateData populates the store with count randomized records across all
// protocols. It returns the number of records actually created.
func GenerateData(store Store, count int) int {
	created := 0

	for i := range count {
		t := templates[rand.Intn(len(templates))]

		port := t.port
		// 30% of records use a non-default port, which auto detection must score lower
		if port != 0 && rand.Float32() < 0.3 {
			port += 1 + rand.Intn(9)
		}

		rec := models.ServerRecord{
			Name:     fmt.Sprintf("%s #%d", t.names[rand.Intn(len(t.names))], i+1),
			Address:  fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(254)+1),
			Protocol: t.protocol,
			Port:     port,
		}

		if _, err := store.CreateRecord(rec); err != nil {
			log.Warn().Err(err).Str("address", rec.Address).Msg("failed to generate fake record")
			continue
		}
		created++
	}

	log.Info().Int("requested", count).Int("created", created).Msg("fake records generated")
	return created
}
