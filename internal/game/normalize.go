package game

import (
	"strings"
	"time"

	"github.com/woozymasta/gamestatus/internal/fivem"
	"github.com/woozymasta/gamestatus/internal/models"
	"github.com/woozymasta/gamestatus/internal/motd"
	"github.com/woozymasta/gamestatus/internal/protocol/a2s"
	"github.com/woozymasta/gamestatus/internal/protocol/bedrock"
	"github.com/woozymasta/gamestatus/internal/protocol/java"
)

func javaStatus(st *java.Status, latency time.Duration) models.Status {
	status := models.Status{
		Online:        true,
		PlayersOnline: models.Ptr(st.Players.Online),
		PlayersMax:    models.Ptr(st.Players.Max),
		Version:       models.NonEmpty(st.Version.Name),
		Ping:          millis(latency),
		Favicon:       models.NonEmpty(st.Favicon),
		MOTD:          st.Description.Segments(),
	}

	for _, p := range st.Players.Sample {
		status.Players = append(status.Players, models.PlayerInfo{Name: p.Name})
	}

	return status
}

func bedrockStatus(pong *bedrock.Pong, latency time.Duration) models.Status {
	return models.Status{
		Online:        true,
		PlayersOnline: models.Ptr(pong.Players),
		PlayersMax:    models.Ptr(pong.MaxPlayers),
		Game:          models.NonEmpty(pong.Edition),
		Version:       models.NonEmpty(pong.Version.Name),
		Ping:          millis(latency),
		MOTD:          motd.ParseLegacy(pong.MOTD()),
	}
}

func sourceStatus(info *a2s.Info, latency time.Duration) models.Status {
	status := models.Status{
		Online:        true,
		PlayersOnline: models.Ptr(int(info.Players)),
		PlayersMax:    models.Ptr(int(info.MaxPlayers)),
		Players:       []models.PlayerInfo{},
		Name:          models.NonEmpty(info.Name),
		Game:          models.NonEmpty(info.Game),
		Map:           models.NonEmpty(info.Map),
		Version:       models.NonEmpty(info.Version),
		Ping:          millis(latency),
		Keywords:      info.Keywords,
	}

	if os := strings.ToLower(string(rune(info.OS))); os == "w" || os == "l" || os == "m" {
		status.OS = &os
	} else if os == "o" {
		// some engines report macOS as 'o'
		os = "m"
		status.OS = &os
	}

	return status
}

func sourcePlayers(list *a2s.PlayerList) []models.PlayerInfo {
	players := make([]models.PlayerInfo, 0, len(list.Players))
	for _, p := range list.Players {
		players = append(players, models.PlayerInfo{
			Name:     p.Name,
			Score:    models.Ptr(int(p.Score)),
			Duration: models.Ptr(float64(p.Duration)),
		})
	}
	return players
}

func fivemStatus(snap fivem.Snapshot) models.Status {
	d := snap.Dynamic
	status := models.Status{
		Online:        true,
		PlayersOnline: d.Clients.Ptr(),
		PlayersMax:    d.MaxClients.Ptr(),
		Name:          models.NonEmpty(d.Hostname),
		Game:          models.NonEmpty(d.GameType),
		Map:           models.NonEmpty(d.MapName),
	}

	if info := snap.Info; info != nil {
		status.Version = models.NonEmpty(info.Server)
		status.Keywords = info.Vars.TagList()
		if info.Icon != "" {
			status.Favicon = models.Ptr("data:image/png;base64," + info.Icon)
		}
		if status.PlayersMax == nil {
			status.PlayersMax = info.Vars.MaxClients.Ptr()
		}
	}

	status.Players = fivemPlayers(snap.Players)

	return status
}

func cfxStatus(srv *fivem.CfxServer) models.Status {
	d := srv.Data
	return models.Status{
		Online:        true,
		PlayersOnline: d.Clients.Ptr(),
		PlayersMax:    d.MaxClients.Ptr(),
		Name:          models.NonEmpty(d.Hostname),
		Game:          models.NonEmpty(d.GameType),
		Map:           models.NonEmpty(d.MapName),
		Version:       models.NonEmpty(d.Server),
		Keywords:      d.Vars.TagList(),
		Players:       fivemPlayers(d.Players),
	}
}

func fivemPlayers(in []fivem.Player) []models.PlayerInfo {
	if in == nil {
		return nil
	}
	players := make([]models.PlayerInfo, 0, len(in))
	for _, p := range in {
		players = append(players, models.PlayerInfo{
			Name: p.Name,
			Ping: models.Ptr(int(p.Ping)),
		})
	}
	return players
}
