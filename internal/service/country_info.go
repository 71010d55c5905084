package service

import (
	"context"

	"github.com/catclicker/catclicker/internal/geo"
)

// CountryInfo is the geolocation-derived admission picture for a client.
type CountryInfo struct {
	Code              string
	Name              string
	IP                string
	City              string
	Region            string
	Allowed           bool
	Banned            bool
	PermanentlyBanned bool
	TemporarilyBanned bool
	BanMessage        string // empty when not banned
	SupportURL        string // empty when not banned
	UsingVPN          bool
	Source            string
}

// CountryInfo resolves ip and evaluates the policy for its country. It
// never fails; geolocation outages degrade to the default location.
func (s *ClickService) CountryInfo(ctx context.Context, ip string) CountryInfo {
	loc := s.locator.Resolve(ctx, ip)
	st := s.admitter.Inspect(loc.CountryCode, loc.UsingVPN)

	info := CountryInfo{
		Code:              loc.CountryCode,
		Name:              loc.CountryName,
		IP:                loc.IP,
		City:              loc.City,
		Region:            loc.Region,
		Allowed:           st.Allowed,
		Banned:            !st.Allowed,
		PermanentlyBanned: st.PermanentlyBanned,
		TemporarilyBanned: st.TemporarilyBanned,
		UsingVPN:          st.UsingVPN,
		Source:            loc.Source,
	}
	if info.Banned {
		info.BanMessage = st.Reason
		info.SupportURL = st.SupportURL
	}
	if info.IP == "" {
		info.IP = geo.Unknown
	}
	return info
}

type defaultLocator struct{}

func (defaultLocator) Resolve(_ context.Context, ip string) geo.Location {
	return geo.DefaultLocation(ip)
}
