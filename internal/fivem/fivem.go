// Package fivem is a small client for the FiveM server tracker and the cfx.re server list.
package fivem

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Defaults for the public endpoints.
const (
	DefaultBaseURL = "https://api.gameservertracker.io"
	DefaultCfxURL  = "https://servers-frontend.fivem.net/api/servers/single"
	DefaultIconURL = "https://servers-live.fivem.net/servers/icon"
	DefaultTimeout = 2 * time.Second
	DefaultPort    = 30120

	// notFound is the tracker body for unknown servers.
	notFound = "Nope"

	maxBody = 4 << 20
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("fivem: unexpected http status")

// Options configure a Client. Zero values fall back to the defaults.
type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	CfxURL     string
	IconURL    string
	UserAgent  string
	Timeout    time.Duration
}

// Client queries FiveM server data over HTTP.
type Client struct {
	http      *http.Client
	baseURL   string
	cfxURL    string
	iconURL   string
	userAgent string
	timeout   time.Duration
}

// New returns a Client.
func New(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.CfxURL == "" {
		opts.CfxURL = DefaultCfxURL
	}
	if opts.IconURL == "" {
		opts.IconURL = DefaultIconURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		http:      opts.HTTPClient,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		cfxURL:    strings.TrimRight(opts.CfxURL, "/"),
		iconURL:   strings.TrimRight(opts.IconURL, "/"),
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}
}

// Dynamic is the tracker's live server state.
type Dynamic struct {
	Clients    *Int   `json:"clients"`
	MaxClients *Int   `json:"sv_maxclients"`
	Address    string `json:"address"`
	GameType   string `json:"gametype"`
	Hostname   string `json:"hostname"`
	IV         string `json:"iv"`
	MapName    string `json:"mapname"`
	Online     Bool   `json:"online"`
}

// Vars are the server convars exposed in info.json.
type Vars struct {
	DisableClientReplays     *Bool  `json:"sv_disableClientReplays"`
	EnforceGameBuild         *Int   `json:"sv_enforceGameBuild"`
	EnhancedHostSupport      *Bool  `json:"sv_enhancedHostSupport"`
	Lan                      *Bool  `json:"sv_lan"`
	MaxClients               *Int   `json:"sv_maxClients"`
	PureLevel                *Int   `json:"sv_pureLevel"`
	ReplaceExeToSwitchBuilds *Bool  `json:"sv_replaceExeToSwitchBuilds"`
	ScriptHookAllowed        *Bool  `json:"sv_scriptHookAllowed"`
	LicenseKeyToken          string `json:"sv_licenseKeyToken"`
	PoolSizesIncrease        string `json:"sv_poolSizesIncrease"`
	ProjectDesc              string `json:"sv_projectDesc"`
	ProjectName              string `json:"sv_projectName"`
	Tags                     string `json:"tags"`
}

// TagList splits the comma separated tags convar.
func (v Vars) TagList() []string {
	var tags []string
	for _, tag := range strings.Split(v.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Info is the server's static info.json.
type Info struct {
	EnhancedHostSupport *Bool    `json:"enhancedHostSupport"`
	Version             *Int     `json:"version"`
	Icon                string   `json:"icon"`
	RequestSteamTicket  string   `json:"requestSteamTicket"`
	Server              string   `json:"server"`
	Resources           []string `json:"resources"`
	Vars                Vars     `json:"vars"`
}

// Player is one entry of players.json.
type Player struct {
	Endpoint    string   `json:"endpoint"`
	Name        string   `json:"name"`
	Identifiers []string `json:"identifiers"`
	ID          Int      `json:"id"`
	Ping        Int      `json:"ping"`
}

type playersResponse struct {
	Players []Player `json:"players"`
}

// Dynamic fetches live state. A nil result with nil error means the tracker does not know the server.
func (c *Client) Dynamic(ctx context.Context, address string, port int) (*Dynamic, error) {
	var out Dynamic
	found, err := c.getJSON(ctx, c.trackerURL("", address, port), &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Info fetches static server info. A nil result with nil error means no data.
func (c *Client) Info(ctx context.Context, address string, port int) (*Info, error) {
	var out Info
	found, err := c.getJSON(ctx, c.trackerURL("info", address, port), &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Players fetches the player list. A nil result with nil error means no data.
func (c *Client) Players(ctx context.Context, address string, port int) ([]Player, error) {
	var out playersResponse
	found, err := c.getJSON(ctx, c.trackerURL("players", address, port), &out)
	if err != nil || !found {
		return nil, err
	}
	if out.Players == nil {
		out.Players = []Player{}
	}
	return out.Players, nil
}

// Snapshot is the combined result of the three tracker calls.
type Snapshot struct {
	Dynamic *Dynamic
	Info    *Info
	Players []Player
}

// Fetch runs the three tracker calls in parallel. Only the dynamic call is
// required; info and players failures leave their fields empty.
func (c *Client) Fetch(ctx context.Context, address string, port int) (Snapshot, error) {
	var (
		snap       Snapshot
		dynamicErr error
		wg         sync.WaitGroup
	)

	logger := log.With().Str("addr", net.JoinHostPort(address, strconv.Itoa(port))).Logger()

	wg.Add(3)
	go func() {
		defer wg.Done()
		snap.Dynamic, dynamicErr = c.Dynamic(ctx, address, port)
	}()
	go func() {
		defer wg.Done()
		info, err := c.Info(ctx, address, port)
		if err != nil {
			logger.Debug().Err(err).Msg("fivem info unavailable")
		}
		snap.Info = info
	}()
	go func() {
		defer wg.Done()
		players, err := c.Players(ctx, address, port)
		if err != nil {
			logger.Debug().Err(err).Msg("fivem players unavailable")
		}
		snap.Players = players
	}()
	wg.Wait()

	return snap, dynamicErr
}

// CfxServer is the cfx.re server list entry resolved from a join code.
type CfxServer struct {
	Data     CfxData `json:"Data"`
	EndPoint string  `json:"EndPoint"`
}

// CfxData is the payload of a CfxServer.
type CfxData struct {
	Clients     *Int     `json:"clients"`
	MaxClients  *Int     `json:"sv_maxclients"`
	IconVersion *Int     `json:"iconVersion"`
	Hostname    string   `json:"hostname"`
	GameType    string   `json:"gametype"`
	MapName     string   `json:"mapname"`
	Server      string   `json:"server"`
	Resources   []string `json:"resources"`
	Players     []Player `json:"players"`
	Vars        Vars     `json:"vars"`
}

// LookupCode resolves a cfx.re join code. A nil result with nil error means no data.
func (c *Client) LookupCode(ctx context.Context, code string) (*CfxServer, error) {
	var out CfxServer
	found, err := c.getJSON(ctx, c.cfxURL+"/"+url.PathEscape(code), &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// Favicon downloads the server icon and returns it as a data URI.
func (c *Client) Favicon(ctx context.Context, code string, iconVersion int) (string, error) {
	u := fmt.Sprintf("%s/%s/%d.png", c.iconURL, url.PathEscape(code), iconVersion)

	body, err := c.get(ctx, u)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", nil
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(body), nil
}

func (c *Client) trackerURL(kind, address string, port int) string {
	target := url.PathEscape(address) + ":" + strconv.Itoa(port)
	if kind == "" {
		return c.baseURL + "/fivem/" + target
	}
	return c.baseURL + "/fivem/" + kind + "/" + target
}

// getJSON decodes the body at u into v. It reports false for the "not found" sentinel.
func (c *Client) getJSON(ctx context.Context, u string, v any) (bool, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return false, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == notFound {
		return false, nil
	}

	if err := json.Unmarshal(trimmed, v); err != nil {
		return false, fmt.Errorf("fivem decode %s: %w", u, err)
	}
	return true, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("fivem read %s: %w", u, err)
	}

	if resp.StatusCode == http.StatusNotFound && strings.TrimSpace(string(body)) == notFound {
		return body, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", ErrStatus, u, resp.StatusCode)
	}

	return body, nil
}
