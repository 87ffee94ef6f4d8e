// internal/weather/client.go
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Observation is the only weather output the reporter consumes.
type Observation struct {
	Temperature float64 // °C
	Description string
	Fresh       bool
	At          time.Time
}

// Config is the lookup config for one location.
type Config struct {
	APIKey    string
	BaseURL   string
	Latitude  float64
	Longitude float64
	Timeout   time.Duration
}

// Client talks to the OpenWeatherMap current-weather API.
type Client struct {
	baseURL string
	apiKey  string
	lat     float64
	lon     float64
	http    *http.Client
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("weather: api key required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("weather: base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		lat:     cfg.Latitude,
		lon:     cfg.Longitude,
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

type currentResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
}

// Current fetches the current conditions at the configured coordinates.
func (c *Client) Current(ctx context.Context) (Observation, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return Observation{}, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Observation{}, fmt.Errorf("weather: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Observation{}, fmt.Errorf("weather: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Observation{}, fmt.Errorf("weather: decode response: %w", err)
	}
	if data.Main.Temp == nil {
		return Observation{}, errors.New("weather: response has no temperature")
	}

	detail := "unknown"
	if len(data.Weather) > 0 {
		detail = data.Weather[0].Description
		if detail == "" {
			detail = data.Weather[0].Main
		}
	}

	return Observation{
		Temperature: *data.Main.Temp,
		Description: fmt.Sprintf("%s with cloud coverage of %d percent", detail, data.Clouds.All),
		Fresh:       true,
		At:          c.now(),
	}, nil
}
