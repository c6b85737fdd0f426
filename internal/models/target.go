package models

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ParseTarget parses "scheme://host[:port]" into an unsaved record, for example
// "mc://play.example.com", "source://10.0.0.1:27016" or "fivem-ctx://abc123".
// A missing scheme means auto detection.
func ParseTarget(raw string) (ServerRecord, error) {
	var rec ServerRecord

	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = string(ProtocolAuto) + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return rec, fmt.Errorf("parse target %q: %w", raw, err)
	}

	if rec.Protocol, err = ParseProtocol(u.Scheme); err != nil {
		return rec, err
	}

	rec.Address = u.Hostname()
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 0 || port > 65535 {
			return rec, fmt.Errorf("parse target %q: invalid port %q", raw, p)
		}
		rec.Port = port
	}

	rec.Name = rec.Address
	rec.ID = AdHocID(rec.Protocol, rec.Address, rec.Port)

	return rec, rec.Validate()
}

// Target formats the record back into "scheme://host:port".
func (r ServerRecord) Target() string {
	host := r.Address
	if r.Port != 0 {
		host = net.JoinHostPort(r.Address, strconv.Itoa(r.Port))
	}
	return string(r.Protocol) + "://" + host
}
