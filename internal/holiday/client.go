package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://date.nager.at/api/v3"
	DefaultTimeout = 5 * time.Second
)

// SupportedCountries are the ISO 3166-1 alpha-2 codes we query Nager.Date for.
var SupportedCountries = map[string]struct{}{
	// North America
	"US": {}, "CA": {},
	// Europe
	"GB": {}, "DE": {}, "FR": {}, "IT": {}, "ES": {}, "NL": {}, "BE": {}, "CH": {},
	"AT": {}, "SE": {}, "NO": {}, "DK": {}, "FI": {}, "IE": {},
	// Asia Pacific
	"JP": {}, "KR": {}, "AU": {}, "NZ": {}, "SG": {}, "HK": {},
	// Southeast Asia
	"TH": {}, "VN": {}, "MY": {}, "ID": {}, "PH": {},
	// Middle East
	"AE": {}, "IL": {},
	"CN": {},
}

// Config for the Nager.Date client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxFailures     int
	BreakerCooldown time.Duration
}

// Status describes one date for one country.
type Status struct {
	Date        string `json:"date"`
	IsHoliday   bool   `json:"is_holiday"`
	IsWeekend   bool   `json:"is_weekend"`
	HolidayName string `json:"holiday_name,omitempty"`
	Supported   bool   `json:"is_supported_country"`
}

type publicHoliday struct {
	Date      string `json:"date"`
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// Client looks up public holidays from Nager.Date, one request per country and year.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      YearCache
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg Config, cache YearCache, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	if cache == nil {
		cache = NewLocalYearCache(24*time.Hour, time.Hour)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "nager-date",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Holiday API circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

func IsSupported(country string) bool {
	_, ok := SupportedCountries[normalize(country)]
	return ok
}

func normalize(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// LookupHolidays returns the subset of dates that are public holidays in country.
// Dates are grouped by year so each year costs at most one upstream request.
// Unsupported countries yield an empty map without a request.
func (c *Client) LookupHolidays(ctx context.Context, country string, dates []string) (map[string]string, error) {
	country = normalize(country)
	result := make(map[string]string)
	if !IsSupported(country) {
		c.logger.Debug("Holiday lookup for unsupported country",
			zap.String("country", country),
			zap.Int("dates", len(dates)))
		return result, nil
	}

	byYear := make(map[int][]string)
	for _, d := range dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", d)
		}
		byYear[t.Year()] = append(byYear[t.Year()], d)
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	for _, year := range years {
		holidays, err := c.year(ctx, country, year)
		if err != nil {
			return nil, err
		}
		for _, d := range byYear[year] {
			if name, ok := holidays[d]; ok {
				result[d] = name
			}
		}
	}

	c.logger.Debug("Holiday lookup completed",
		zap.String("country", country),
		zap.Int("dates_requested", len(dates)),
		zap.Int("holidays_found", len(result)))
	return result, nil
}

// Status reports holiday and weekend information for a single date.
func (c *Client) Status(ctx context.Context, country, date string) (*Status, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	st := &Status{
		Date:      date,
		IsWeekend: d.Weekday() == time.Saturday || d.Weekday() == time.Sunday,
		Supported: IsSupported(country),
	}
	if !st.Supported {
		return st, nil
	}
	holidays, err := c.LookupHolidays(ctx, country, []string{date})
	if err != nil {
		return nil, err
	}
	if name, ok := holidays[date]; ok {
		st.IsHoliday = true
		st.HolidayName = name
	}
	return st, nil
}

func (c *Client) year(ctx context.Context, country string, year int) (map[string]string, error) {
	if holidays, ok := c.cache.Get(ctx, country, year); ok {
		return holidays, nil
	}

	v, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchYear(ctx, country, year)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("holiday API unavailable: %w", err)
		}
		return nil, err
	}
	holidays := v.(map[string]string)

	if err := c.cache.Set(ctx, country, year, holidays); err != nil {
		c.logger.Warn("Failed to cache holidays",
			zap.Error(err),
			zap.String("country", country),
			zap.Int("year", year))
	}
	return holidays, nil
}

func (c *Client) fetchYear(ctx context.Context, country string, year int) (map[string]string, error) {
	url := fmt.Sprintf("%s/PublicHolidays/%d/%s", c.baseURL, year, country)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build holiday request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Holiday API request failed",
			zap.Error(err),
			zap.String("country", country),
			zap.Int("year", year),
			zap.Duration("elapsed", time.Since(start)))
		return nil, fmt.Errorf("holiday API request: %w", err)
	}
	defer res.Body.Close()

	c.logger.Info("Holiday API response received",
		zap.String("country", country),
		zap.Int("year", year),
		zap.Int("status_code", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("holiday API returned status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var entries []publicHoliday
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode holiday response: %w", err)
	}

	holidays := make(map[string]string, len(entries))
	for _, h := range entries {
		if h.Date == "" {
			continue
		}
		name := h.LocalName
		if name == "" {
			name = h.Name
		}
		if name == "" {
			name = "Holiday"
		}
		holidays[h.Date] = name
	}
	return holidays, nil
}
