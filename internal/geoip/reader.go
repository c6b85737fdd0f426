package geoip

import (
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// Provider answers country lookups for server addresses.
// A nil Provider is valid and resolves nothing.
type Provider struct {
	db *geoip2.Reader
}

// Open loads the MMDB file at path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close releases the database.
func (p *Provider) Close() error {
	if p == nil {
		return nil
	}
	return p.db.Close()
}

// Country returns the ISO code of addr, e.g. "DE".
// Addresses without a public route (loopback, private, link-local, unspecified)
// and addresses missing from the database yield "".
func (p *Provider) Country(addr netip.Addr) string {
	if p == nil || !routable(addr) {
		return ""
	}

	record, err := p.db.Country(net.IP(addr.Unmap().AsSlice()))
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

func routable(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast()
}
