package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"simflow/internal/domain"
	"simflow/internal/logger"
)

const APISource = "PVGIS v5.3"

// ErrLookup marks failures that are the caller's or the provider's fault
// rather than ours; the HTTP layer maps them to 400.
var ErrLookup = errors.New("weather lookup failed")

// Databases describes PVGIS coverage regions.
var Databases = map[string]string{
	"PVGIS-SARAH3": "Europe, Central Asia, Africa, parts of South America",
	"PVGIS-SARAH2": "Europe, Asia, Africa, South America below 20°S",
	"PVGIS-NSRDB":  "Americas above 20°S",
	"PVGIS-ERA5":   "Worldwide coverage (lower resolution)",
}

type Config struct {
	BaseURL    string
	OutputDir  string
	Timeout    time.Duration
	UseHorizon bool
}

type Request struct {
	Latitude     float64
	Longitude    float64
	LocationName string
	StartYear    int
	EndYear      int
}

// Header is the metadata parsed from the first EPW lines.
type Header struct {
	City        string
	State       string
	Country     string
	DataSource  string
	WMOID       string
	Latitude    *float64
	Longitude   *float64
	Timezone    *float64
	Elevation   *float64
	Comments1   string
	Comments2   string
	DataPeriods string
}

type Result struct {
	EPWPath      string
	Latitude     float64
	Longitude    float64
	LocationName string
	Header       Header
	Coverage     Coverage
	FetchedAt    time.Time
}

// Client downloads TMY data from PVGIS and stores it as EnergyPlus ready EPW.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logger.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log.With(logger.String("component", "pvgis_client")),
	}
}

func (c *Client) Fetch(ctx context.Context, req Request) (*Result, error) {
	if math.IsNaN(req.Latitude) || req.Latitude < -90 || req.Latitude > 90 {
		return nil, fmt.Errorf("%w: latitude must be between -90 and 90, got %v", ErrLookup, req.Latitude)
	}
	if math.IsNaN(req.Longitude) || req.Longitude < -180 || req.Longitude > 180 {
		return nil, fmt.Errorf("%w: longitude must be between -180 and 180, got %v", ErrLookup, req.Longitude)
	}

	c.logger.Info("fetching weather data",
		logger.Float64("latitude", req.Latitude),
		logger.Float64("longitude", req.Longitude))

	content, err := c.download(ctx, req)
	if err != nil {
		return nil, err
	}

	content = FixEPW(content, req.Latitude, req.Longitude, req.LocationName)

	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create weather directory: %w", err)
	}
	path := filepath.Join(c.cfg.OutputDir, FileName(req.LocationName, req.Latitude, req.Longitude))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to save weather file: %w", err)
	}

	c.logger.Info("weather file saved", logger.String("path", path))

	name := req.LocationName
	if name == "" {
		name = fmt.Sprintf("Location (%.4f, %.4f)", req.Latitude, req.Longitude)
	}
	return &Result{
		EPWPath:      path,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: name,
		Header:       ParseHeader(content),
		Coverage:     CheckCoverage(req.Latitude, req.Longitude),
		FetchedAt:    time.Now(),
	}, nil
}

func (c *Client) download(ctx context.Context, req Request) (string, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	params.Set("outputformat", "epw")
	params.Set("browser", "0")
	if c.cfg.UseHorizon {
		params.Set("usehorizon", "1")
	}
	if req.StartYear > 0 {
		params.Set("startyear", strconv.Itoa(req.StartYear))
	}
	if req.EndYear > 0 {
		params.Set("endyear", strconv.Itoa(req.EndYear))
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/tmy?" + params.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", fmt.Errorf("%w: PVGIS API request timed out after %s", ErrLookup, c.cfg.Timeout)
		}
		return "", fmt.Errorf("%w: network error fetching weather data: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read PVGIS response: %v", ErrLookup, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: PVGIS API error: %s", ErrLookup, apiMessage(body))
	}

	content := string(body)
	if !strings.HasPrefix(content, "LOCATION") {
		return "", fmt.Errorf("%w: invalid EPW response from PVGIS: %s", ErrLookup, truncate(content, 100))
	}
	return content, nil
}

func apiMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return truncate(string(body), 200)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FileName is <safe name>_<lat>_<lon>.epw, or weather_<lat>_<lon>.epw.
func FileName(name string, lat, lon float64) string {
	if name == "" {
		return fmt.Sprintf("weather_%.4f_%.4f.epw", lat, lon)
	}
	return fmt.Sprintf("%s_%.4f_%.4f.epw", domain.SafeName(name), lat, lon)
}

// FixEPW rewrites the LOCATION and DATA PERIODS lines so EnergyPlus accepts
// PVGIS output.
func FixEPW(content string, lat, lon float64, name string) string {
	tz := int(math.Round(lon / 15))
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "LOCATION"):
			parts := strings.Split(strings.TrimRight(line, "\r"), ",")
			if len(parts) < 10 {
				continue
			}
			city := name
			if city == "" {
				city = fmt.Sprintf("Lat%.2f_Lon%.2f", lat, lon)
			}
			lines[i] = strings.Join([]string{
				"LOCATION", city, "-", "PVGIS",
				parts[4], parts[5], parts[6], parts[7],
				strconv.Itoa(tz), parts[9],
			}, ",")
		case strings.HasPrefix(line, "DATA PERIODS"):
			if len(strings.Split(line, ",")) >= 7 {
				lines[i] = "DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31"
			}
		}
	}
	return strings.Join(lines, "\n")
}

// ParseHeader reads metadata from the first eight EPW lines.
func ParseHeader(content string) Header {
	var h Header
	lines := strings.SplitN(content, "\n", 9)
	if len(lines) > 8 {
		lines = lines[:8]
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "LOCATION"):
			parts := strings.Split(line, ",")
			if len(parts) < 10 {
				continue
			}
			h.City, h.State, h.Country = parts[1], parts[2], parts[3]
			h.DataSource, h.WMOID = parts[4], parts[5]
			h.Latitude = parseFloat(parts[6])
			h.Longitude = parseFloat(parts[7])
			h.Timezone = parseFloat(parts[8])
			h.Elevation = parseFloat(parts[9])
		case strings.HasPrefix(line, "COMMENTS 1"):
			h.Comments1 = strings.TrimPrefix(line, "COMMENTS 1,")
		case strings.HasPrefix(line, "COMMENTS 2"):
			h.Comments2 = strings.TrimPrefix(line, "COMMENTS 2,")
		case strings.HasPrefix(line, "DATA PERIODS"):
			h.DataPeriods = strings.TrimPrefix(line, "DATA PERIODS,")
		}
	}
	return h
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
