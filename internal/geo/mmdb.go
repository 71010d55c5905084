package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MMDB answers lookups from local MaxMind databases.
type MMDB struct {
	city *geoip2.Reader
	anon *geoip2.Reader // optional Anonymous-IP database
}

// OpenMMDB opens the City database and, when anonPath is set, the
// Anonymous-IP database used for VPN detection.
func OpenMMDB(cityPath, anonPath string) (*MMDB, error) {
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open city database: %w", err)
	}

	m := &MMDB{city: city}
	if anonPath != "" {
		anon, err := geoip2.Open(anonPath)
		if err != nil {
			city.Close()
			return nil, fmt.Errorf("failed to open anonymous-ip database: %w", err)
		}
		m.anon = anon
	}
	return m, nil
}

// Name implements Provider.
func (m *MMDB) Name() string { return "mmdb" }

// Lookup implements Provider.
func (m *MMDB) Lookup(_ context.Context, ip string) (Location, error) {
	netIP := net.ParseIP(ip)
	if netIP == nil {
		return Location{}, ErrInvalidIP
	}

	record, err := m.city.City(netIP)
	if err != nil {
		return Location{}, fmt.Errorf("city lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" {
		return Location{}, ErrNoResult
	}

	loc := Location{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
		City:        record.City.Names["en"],
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = record.Subdivisions[0].Names["en"]
	}

	if m.anon != nil {
		anon, err := m.anon.AnonymousIP(netIP)
		if err != nil {
			return Location{}, fmt.Errorf("anonymous-ip lookup failed: %w", err)
		}
		loc.UsingVPN = anon.IsAnonymousVPN || anon.IsPublicProxy || anon.IsHostingProvider ||
			anon.IsTorExitNode || anon.IsResidentialProxy
	}

	return loc, nil
}

// Close closes the database readers.
func (m *MMDB) Close() error {
	var err error
	if m.city != nil {
		err = m.city.Close()
	}
	if m.anon != nil {
		if e := m.anon.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
