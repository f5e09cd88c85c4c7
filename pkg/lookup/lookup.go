// Package lookup fetches the third-party data behind the !weather and
// !price chat commands.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultWeatherURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultPriceURL   = "https://rest.coinapi.io/v1/exchangerate"
	DefaultCity       = "Antarctica"

	defaultTimeout = 15 * time.Second
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// Weather reports current conditions for a fixed city.
type Weather struct {
	apiKey  string
	city    string
	baseURL string
	client  *http.Client
}

type WeatherOption func(*Weather)

func WithWeatherBaseURL(u string) WeatherOption {
	return func(w *Weather) { w.baseURL = u }
}

func WithWeatherHTTPClient(c *http.Client) WeatherOption {
	return func(w *Weather) { w.client = c }
}

func NewWeather(apiKey, city string, opts ...WeatherOption) *Weather {
	if city == "" {
		city = DefaultCity
	}
	w := &Weather{
		apiKey:  apiKey,
		city:    city,
		baseURL: DefaultWeatherURL,
		client:  newHTTPClient(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Conditions is the subset of the OpenWeather response the bridge reports.
type Conditions struct {
	City        string
	Temp        float64
	FeelsLike   float64
	Description string
	WindSpeed   float64
}

type weatherResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (w *Weather) City() string { return w.city }

// Current fetches the current conditions in metric units.
func (w *Weather) Current(ctx context.Context) (Conditions, error) {
	q := url.Values{}
	q.Set("q", w.city)
	q.Set("appid", w.apiKey)
	q.Set("units", "metric")

	var resp weatherResponse
	if err := getJSON(ctx, w.client, w.baseURL+"?"+q.Encode(), nil, &resp); err != nil {
		return Conditions{}, fmt.Errorf("weather for %s: %w", w.city, err)
	}
	if len(resp.Weather) == 0 {
		return Conditions{}, fmt.Errorf("weather for %s: response has no conditions", w.city)
	}
	return Conditions{
		City:        w.city,
		Temp:        resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		Description: resp.Weather[0].Description,
		WindSpeed:   resp.Wind.Speed,
	}, nil
}

// Format renders the conditions as the bold one-line chat reply.
func (c Conditions) Format() string {
	return fmt.Sprintf("**The current temperature in %s is %s°C. Feels like %s°C. %s. Wind speed: %s m/s.**",
		c.City, number(c.Temp), number(c.FeelsLike), capitalize(c.Description), number(c.WindSpeed))
}

// Prices looks up exchange rates against USD.
type Prices struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type PriceOption func(*Prices)

func WithPriceBaseURL(u string) PriceOption {
	return func(p *Prices) { p.baseURL = u }
}

func WithPriceHTTPClient(c *http.Client) PriceOption {
	return func(p *Prices) { p.client = c }
}

func NewPrices(apiKey string, opts ...PriceOption) *Prices {
	p := &Prices{
		apiKey:  apiKey,
		baseURL: DefaultPriceURL,
		client:  newHTTPClient(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type rateResponse struct {
	Rate *float64 `json:"rate"`
}

// Rate returns the USD price of symbol. The symbol is upper-cased for the
// request.
func (p *Prices) Rate(ctx context.Context, symbol string) (float64, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return 0, fmt.Errorf("empty symbol")
	}

	header := http.Header{}
	header.Set("X-CoinAPI-Key", p.apiKey)

	var resp rateResponse
	endpoint := p.baseURL + "/" + url.PathEscape(sym) + "/USD"
	if err := getJSON(ctx, p.client, endpoint, header, &resp); err != nil {
		return 0, fmt.Errorf("price for %s: %w", sym, err)
	}
	if resp.Rate == nil {
		return 0, fmt.Errorf("price for %s: response has no rate", sym)
	}
	return *resp.Rate, nil
}

func number(f float64) string {
	s := strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
