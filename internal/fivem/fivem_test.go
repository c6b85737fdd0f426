package fivem

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLenientInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Int
	}{
		{`12`, 12},
		{`"48"`, 48},
		{`" 7 "`, 7},
		{`"abc"`, 0},
		{`null`, 0},
		{`true`, 0},
		{`3.0`, 3},
	}

	for _, tt := range tests {
		var got Int
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &got), tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	var p *Int
	assert.Nil(t, p.Ptr())
	v := Int(5)
	assert.Equal(t, 5, *(&v).Ptr())
}

func TestLenientBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Bool
	}{
		{`true`, true},
		{`false`, false},
		{`"true"`, true},
		{`"false"`, false},
		{`"1"`, true},
		{`"0"`, false},
		{`"yes"`, true},
		{`""`, false},
		{`1`, true},
		{`0`, false},
	}

	for _, tt := range tests {
		var got Bool
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &got), tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return New(Options{
		BaseURL: srv.URL,
		CfxURL:  srv.URL + "/cfx/",
		IconURL: srv.URL + "/icon",
		Timeout: time.Second,
	})
}

func TestFetchSnapshot(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/fivem/1.2.3.4:30120", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"address":"1.2.3.4:30120","online":true,"clients":"12","hostname":"My RP","gametype":"Roleplay","mapname":"Los Santos","sv_maxclients":"64"}`))
	})
	mux.HandleFunc("/fivem/info/1.2.3.4:30120", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"server":"FXServer-master v1.0.0.7290 linux","version":42,"vars":{"sv_maxClients":"64","sv_lan":"false","tags":"rp, economy ,,jobs","sv_projectName":"My RP"}}`))
	})
	mux.HandleFunc("/fivem/players/1.2.3.4:30120", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"players":[{"endpoint":"127.0.0.1","id":1,"identifiers":["license:abc"],"name":"Franklin","ping":"38"}]}`))
	})

	c := newTestClient(t, mux)
	snap, err := c.Fetch(context.Background(), "1.2.3.4", 30120)
	require.NoError(t, err)

	require.NotNil(t, snap.Dynamic)
	assert.True(t, bool(snap.Dynamic.Online))
	assert.Equal(t, 12, *snap.Dynamic.Clients.Ptr())
	assert.Equal(t, 64, *snap.Dynamic.MaxClients.Ptr())
	assert.Equal(t, "My RP", snap.Dynamic.Hostname)

	require.NotNil(t, snap.Info)
	assert.Equal(t, []string{"rp", "economy", "jobs"}, snap.Info.Vars.TagList())
	require.NotNil(t, snap.Info.Vars.Lan)
	assert.False(t, bool(*snap.Info.Vars.Lan))

	require.Len(t, snap.Players, 1)
	assert.Equal(t, "Franklin", snap.Players[0].Name)
	assert.Equal(t, Int(38), snap.Players[0].Ping)
}

func TestNotFoundSentinel(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Nope\n"))
	})

	c := newTestClient(t, mux)

	dyn, err := c.Dynamic(context.Background(), "5.6.7.8", 30120)
	require.NoError(t, err)
	assert.Nil(t, dyn)

	players, err := c.Players(context.Background(), "5.6.7.8", 30120)
	require.NoError(t, err)
	assert.Nil(t, players)

	snap, err := c.Fetch(context.Background(), "5.6.7.8", 30120)
	require.NoError(t, err)
	assert.Nil(t, snap.Dynamic)
}

func TestErrorsAndTimeout(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/fivem/9.9.9.9:1", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/fivem/info/9.9.9.9:1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	mux.HandleFunc("/fivem/players/9.9.9.9:1", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(3 * time.Second):
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(Options{BaseURL: srv.URL, Timeout: 100 * time.Millisecond})

	_, err := c.Dynamic(context.Background(), "9.9.9.9", 1)
	assert.ErrorIs(t, err, ErrStatus)

	_, err = c.Info(context.Background(), "9.9.9.9", 1)
	assert.Error(t, err)

	_, err = c.Players(context.Background(), "9.9.9.9", 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLookupCodeAndFavicon(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/cfx/abc123", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"EndPoint":"abc123","Data":{"clients":3,"sv_maxclients":"32","hostname":"^1Cfx Server","gametype":"Freeroam","mapname":"fivem-map","iconVersion":"77","vars":{"tags":"drift"},"players":[{"name":"Trevor","id":"2","ping":50}]}}`))
	})
	mux.HandleFunc("/icon/abc123/77.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})

	c := newTestClient(t, mux)

	srv, err := c.LookupCode(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, srv)
	assert.Equal(t, "abc123", srv.EndPoint)
	assert.Equal(t, 3, *srv.Data.Clients.Ptr())
	assert.Equal(t, 32, *srv.Data.MaxClients.Ptr())
	assert.Equal(t, 77, *srv.Data.IconVersion.Ptr())
	require.Len(t, srv.Data.Players, 1)
	assert.Equal(t, Int(2), srv.Data.Players[0].ID)

	icon, err := c.Favicon(context.Background(), "abc123", 77)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,iVBORw==", icon)
}
