package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultIPInfoURL is the ipinfo.io endpoint.
const DefaultIPInfoURL = "https://ipinfo.io"

// IPInfo queries ipinfo.io.
type IPInfo struct {
	baseURL string
	token   string
	client  *http.Client
}

type ipinfoResponse struct {
	Country     string `json:"country"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Region      string `json:"region"`
	Hosting     bool   `json:"hosting"`
	VPN         bool   `json:"vpn"`
	Proxy       bool   `json:"proxy"`
	Privacy     *struct {
		VPN     bool `json:"vpn"`
		Proxy   bool `json:"proxy"`
		Tor     bool `json:"tor"`
		Hosting bool `json:"hosting"`
	} `json:"privacy"`
}

// NewIPInfo creates an ipinfo provider. token is optional.
func NewIPInfo(baseURL, token string, timeout time.Duration) *IPInfo {
	if baseURL == "" {
		baseURL = DefaultIPInfoURL
	}
	return &IPInfo{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Provider.
func (p *IPInfo) Name() string { return "ipinfo" }

// Lookup implements Provider. Hosting, VPN or proxy flags count as VPN use,
// whether reported at the top level or in the privacy block.
func (p *IPInfo) Lookup(ctx context.Context, ip string) (Location, error) {
	endpoint := fmt.Sprintf("%s/%s/json", p.baseURL, url.PathEscape(ip))
	if p.token != "" {
		endpoint += "?token=" + url.QueryEscape(p.token)
	}

	var resp ipinfoResponse
	if err := getJSON(ctx, p.client, endpoint, &resp); err != nil {
		return Location{}, err
	}
	if resp.Country == "" {
		return Location{}, ErrNoResult
	}

	usingVPN := resp.Hosting || resp.VPN || resp.Proxy
	if resp.Privacy != nil {
		usingVPN = usingVPN || resp.Privacy.VPN || resp.Privacy.Proxy || resp.Privacy.Tor || resp.Privacy.Hosting
	}

	name := resp.CountryName
	if name == "" {
		name = resp.Country
	}

	return Location{
		CountryCode: resp.Country,
		CountryName: name,
		City:        resp.City,
		Region:      resp.Region,
		UsingVPN:    usingVPN,
	}, nil
}
