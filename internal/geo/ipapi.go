package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIPAPIURL is the free ip-api.com endpoint.
const DefaultIPAPIURL = "http://ip-api.com"

const ipapiFields = "status,message,country,countryCode,regionName,city,proxy,hosting,query"

// IPAPI queries ip-api.com.
type IPAPI struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

type ipapiResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	Proxy       bool   `json:"proxy"`
	Hosting     bool   `json:"hosting"`
}

// NewIPAPI creates an ip-api provider. A positive ratePerSec throttles
// outgoing calls; calls over the budget fail fast with ErrRateLimited.
func NewIPAPI(baseURL string, timeout time.Duration, ratePerSec float64) *IPAPI {
	if baseURL == "" {
		baseURL = DefaultIPAPIURL
	}

	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)+1)
	}

	return &IPAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Name implements Provider.
func (p *IPAPI) Name() string { return "ip-api" }

// Lookup implements Provider. Proxy or hosting flags count as VPN use.
func (p *IPAPI) Lookup(ctx context.Context, ip string) (Location, error) {
	if p.limiter != nil && !p.limiter.Allow() {
		return Location{}, ErrRateLimited
	}

	endpoint := fmt.Sprintf("%s/json/%s?fields=%s", p.baseURL, url.PathEscape(ip), ipapiFields)

	var resp ipapiResponse
	if err := getJSON(ctx, p.client, endpoint, &resp); err != nil {
		return Location{}, err
	}
	if resp.Status != "success" {
		return Location{}, fmt.Errorf("%w: %s", ErrNoResult, resp.Message)
	}
	if resp.CountryCode == "" {
		return Location{}, ErrNoResult
	}

	return Location{
		CountryCode: resp.CountryCode,
		CountryName: resp.Country,
		City:        resp.City,
		Region:      resp.RegionName,
		UsingVPN:    resp.Proxy || resp.Hosting,
	}, nil
}
