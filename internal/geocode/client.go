package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/varoOP/crimedb/internal/domain"
)

const DefaultBaseURL = "https://api.postcodes.io"

// ErrNotFound is returned when the location does not resolve to coordinates.
var ErrNotFound = errors.New("location not found")

// Client resolves UK postcodes using postcodes.io.
type Client struct {
	log        zerolog.Logger
	baseURL    string
	httpClient *http.Client
}

var _ domain.CoordinateResolver = (*Client)(nil)

// NewClient creates a postcodes.io client.
func NewClient(log zerolog.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		log:     log.With().Str("module", "geocode").Logger(),
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type postcodeResponse struct {
	Status int `json:"status"`
	Result *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"result"`
}

// Resolve looks up the coordinates of a postcode.
func (c *Client) Resolve(ctx context.Context, location string) (domain.Coordinates, error) {
	postcode := domain.NormalizeLocationKey(location)
	if postcode == "" {
		return domain.Coordinates{}, errors.Wrap(ErrNotFound, "empty location")
	}

	u := fmt.Sprintf("%s/postcodes/%s", c.baseURL, url.PathEscape(postcode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Coordinates{}, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, errors.Wrapf(err, "postcode lookup for %s", postcode)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Coordinates{}, errors.Wrapf(ErrNotFound, "postcode %s", postcode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return domain.Coordinates{}, errors.Errorf("postcodes API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr postcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return domain.Coordinates{}, errors.Wrap(err, "decode response")
	}

	if pr.Status != http.StatusOK || pr.Result == nil || pr.Result.Latitude == nil || pr.Result.Longitude == nil {
		return domain.Coordinates{}, errors.Wrapf(ErrNotFound, "postcode %s has no coordinates", postcode)
	}

	coords := domain.Coordinates{Lat: *pr.Result.Latitude, Lng: *pr.Result.Longitude}
	c.log.Debug().Str("postcode", postcode).Float64("lat", coords.Lat).Float64("lng", coords.Lng).Msg("Resolved postcode")

	return coords, nil
}
