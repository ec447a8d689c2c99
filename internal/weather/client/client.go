package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DailyForecast is one day of forecast data from the upstream API.
type DailyForecast struct {
	Date                     time.Time
	TemperatureMin           float64
	TemperatureMax           float64
	Humidity                 *float64
	SolarRadiation           *float64
	WindSpeed                *float64
	PrecipitationProbability *float64
}

// Client fetches forecasts from an Open-Meteo compatible endpoint. Each
// fetch runs inside a trace span carrying the rink coordinates.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTracer injects a tracer, mainly for tests.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// New constructs a forecast client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("icegrid/weather")
	}
	return c
}

// apiResponse mirrors the upstream daily-forecast payload.
type apiResponse struct {
	Daily struct {
		Time                        []string   `json:"time"`
		TemperatureMin              []float64  `json:"temperature_2m_min"`
		TemperatureMax              []float64  `json:"temperature_2m_max"`
		HumidityMean                []*float64 `json:"relative_humidity_2m_mean"`
		ShortwaveRadiationSum       []*float64 `json:"shortwave_radiation_sum"`
		WindSpeedMax                []*float64 `json:"wind_speed_10m_max"`
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Fetch retrieves the daily forecast for the given coordinates.
func (c *Client) Fetch(ctx context.Context, latitude, longitude float64) ([]DailyForecast, error) {
	ctx, span := c.tracer.Start(ctx, "weather.fetch", trace.WithAttributes(
		attribute.Float64("weather.latitude", latitude),
		attribute.Float64("weather.longitude", longitude),
	))
	defer span.End()

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(longitude, 'f', 4, 64))
	q.Set("daily", "temperature_2m_min,temperature_2m_max,relative_humidity_2m_mean,shortwave_radiation_sum,wind_speed_10m_max,precipitation_probability_max")
	q.Set("timezone", "UTC")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("build forecast request: %w", err))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("fetch forecast: %w", err))
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		return nil, c.fail(span, fmt.Errorf("forecast API returned %d", resp.StatusCode))
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, c.fail(span, fmt.Errorf("decode forecast response: %w", err))
	}

	days := payload.Daily
	if len(days.Time) != len(days.TemperatureMin) || len(days.Time) != len(days.TemperatureMax) {
		return nil, c.fail(span, fmt.Errorf("forecast response arrays are misaligned"))
	}

	out := make([]DailyForecast, 0, len(days.Time))
	for i, raw := range days.Time {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, c.fail(span, fmt.Errorf("parse forecast date %q: %w", raw, err))
		}
		f := DailyForecast{
			Date:           date,
			TemperatureMin: days.TemperatureMin[i],
			TemperatureMax: days.TemperatureMax[i],
		}
		f.Humidity = pick(days.HumidityMean, i)
		f.SolarRadiation = pick(days.ShortwaveRadiationSum, i)
		f.WindSpeed = pick(days.WindSpeedMax, i)
		f.PrecipitationProbability = pick(days.PrecipitationProbabilityMax, i)
		out = append(out, f)
	}
	span.SetAttributes(attribute.Int("weather.days", len(out)))
	return out, nil
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func pick(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}
