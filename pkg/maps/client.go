package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/palletwine/palletwine-backend/pkg/errors"
)

const (
	defaultBaseURL        = "https://maps.googleapis.com/maps/api"
	responseBodyReadLimit = 1024

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

var (
	errAPIKeyRequired = errors.New("google maps api key is required")

	// ErrNoResults means the geocoder understood the query but found nothing.
	ErrNoResults = errors.New("geocode returned no results")
)

// Client wraps the Google Geocoding API used to resolve delivery addresses.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	region     string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Maps API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithRegion biases results towards a ccTLD region such as "se".
func WithRegion(region string) Option {
	return func(c *Client) {
		c.region = strings.ToLower(strings.TrimSpace(region))
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(apiKey)
	if trimmedKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		apiKey:     trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// GeocodeResult is the first match returned for an address query.
type GeocodeResult struct {
	FormattedAddress string
	Location         LatLng
	PostalCode       string
	City             string
	CountryCode      string
}

// LatLng is the latitude/longitude pair returned by Google.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []addressComponent `json:"address_components"`
	} `json:"results"`
}

// Geocode resolves a free-form address. A query the geocoder cannot place
// returns ErrNoResults; transport and quota failures are DEPENDENCY_ERRORs.
func (c *Client) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google maps client not configured")
	}
	query := strings.TrimSpace(address)
	if query == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is required")
	}

	params := url.Values{}
	params.Set("address", query)
	params.Set("key", c.apiKey)
	if c.region != "" {
		params.Set("region", c.region)
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + "/geocode/json?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geocode request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geocode request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "geocode request failed")
	}

	var apiResp geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geocode response")
	}

	switch apiResp.Status {
	case statusOK:
	case statusZeroResults:
		return nil, ErrNoResults
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%s: %s", apiResp.Status, apiResp.ErrorMessage), "geocode rejected")
	}
	if len(apiResp.Results) == 0 {
		return nil, ErrNoResults
	}

	first := apiResp.Results[0]
	result := &GeocodeResult{
		FormattedAddress: first.FormattedAddress,
		Location: LatLng{
			Latitude:  first.Geometry.Location.Lat,
			Longitude: first.Geometry.Location.Lng,
		},
	}
	for _, comp := range first.AddressComponents {
		switch {
		case hasType(comp.Types, "postal_code"):
			result.PostalCode = comp.LongName
		case hasType(comp.Types, "postal_town"), hasType(comp.Types, "locality"):
			if result.City == "" {
				result.City = comp.LongName
			}
		case hasType(comp.Types, "country"):
			result.CountryCode = comp.ShortName
		}
	}
	return result, nil
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
