package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProtocol(t *testing.T) {
	t.Parallel()

	tests := map[string]Protocol{
		"mc":        ProtocolJava,
		"Minecraft": ProtocolJava,
		"bedrock":   ProtocolBedrock,
		"a2s":       ProtocolSource,
		"FIVEM":     ProtocolFiveM,
		"cfx":       ProtocolFiveMCode,
		"":          ProtocolAuto,
		"n/a":       ProtocolUnknown,
	}
	for in, want := range tests {
		got, err := ParseProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProtocol("quake")
	assert.ErrorIs(t, err, ErrUnknownProtocol)
}

func TestDefaultPortAndEffectivePort(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 25565, ProtocolJava.DefaultPort())
	assert.Equal(t, 19132, ProtocolBedrock.DefaultPort())
	assert.Equal(t, 27015, ProtocolSource.DefaultPort())
	assert.Equal(t, 30120, ProtocolFiveM.DefaultPort())
	assert.Zero(t, ProtocolAuto.DefaultPort())

	rec := ServerRecord{Address: "example.com"}
	assert.Equal(t, 25565, rec.EffectivePort(ProtocolJava))
	assert.Equal(t, "example.com:27015", rec.HostPort(ProtocolSource))

	rec.Port = 70000
	assert.Equal(t, 65535, rec.EffectivePort(ProtocolJava))
	rec.Port = 2302
	assert.Equal(t, 2302, rec.EffectivePort(ProtocolSource))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ServerRecord{Address: "a", Protocol: ProtocolJava}.Validate())
	assert.Error(t, ServerRecord{Address: " ", Protocol: ProtocolJava}.Validate())
	assert.Error(t, ServerRecord{Address: "a", Port: -1}.Validate())
	assert.Error(t, ServerRecord{Address: "a", Protocol: "doom"}.Validate())
}

func TestAdHocIDStable(t *testing.T) {
	t.Parallel()

	a := AdHocID(ProtocolJava, "Play.Example.com", 25565)
	b := AdHocID(ProtocolJava, "play.example.com", 25565)
	c := AdHocID(ProtocolBedrock, "play.example.com", 25565)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, len("adhoc-")+16)
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	rec, err := ParseTarget("mc://play.example.com:25566")
	require.NoError(t, err)
	assert.Equal(t, ProtocolJava, rec.Protocol)
	assert.Equal(t, "play.example.com", rec.Address)
	assert.Equal(t, 25566, rec.Port)
	assert.Equal(t, "mc://play.example.com:25566", rec.Target())

	rec, err = ParseTarget("10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, ProtocolAuto, rec.Protocol)
	assert.Zero(t, rec.Port)

	rec, err = ParseTarget("source://[::1]:27016")
	require.NoError(t, err)
	assert.Equal(t, "::1", rec.Address)
	assert.Equal(t, "source://[::1]:27016", rec.Target())

	_, err = ParseTarget("doom://host")
	assert.ErrorIs(t, err, ErrUnknownProtocol)

	_, err = ParseTarget("mc://host:99999")
	assert.Error(t, err)
}

func TestOfflineIsCanonical(t *testing.T) {
	t.Parallel()

	assert.True(t, Offline.IsOffline())
	assert.Nil(t, Offline.PlayersOnline)
	assert.Nil(t, Offline.Players)
	assert.Empty(t, Offline.PlainMOTD())
	assert.Equal(t, Status{}, Offline)
}
