package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"simflow/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEPW = "LOCATION,unknown,unknown,unknown,PVGIS-SARAH3,999999,52.205,0.122,0.0,14.0\n" +
	"DESIGN CONDITIONS,0\n" +
	"TYPICAL/EXTREME PERIODS,0\n" +
	"GROUND TEMPERATURES,0\n" +
	"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0\n" +
	"COMMENTS 1,PVGIS TMY\n" +
	"COMMENTS 2,years 2005-2023\n" +
	"DATA PERIODS,1,1,Data,Sunday,1/1,12/31\n" +
	"2005,1,1,1,0,*,5.1,3.2,88\n"

func TestFetch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tmy", r.URL.Path)
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(sampleEPW))
	}))
	defer srv.Close()

	out := t.TempDir()
	c := NewClient(Config{BaseURL: srv.URL, OutputDir: out, UseHorizon: true}, srv.Client(), logger.NewNopLogger())

	res, err := c.Fetch(context.Background(), Request{Latitude: 52.2053, Longitude: 0.1218, LocationName: "Cambridge UK"})
	require.NoError(t, err)

	assert.Contains(t, query, "outputformat=epw")
	assert.Contains(t, query, "browser=0")
	assert.Contains(t, query, "usehorizon=1")
	assert.Equal(t, filepath.Join(out, "Cambridge_UK_52.2053_0.1218.epw"), res.EPWPath)
	assert.Equal(t, "PVGIS-SARAH3", res.Header.DataSource)
	assert.Equal(t, "Cambridge UK", res.Header.City)
	assert.Equal(t, "PVGIS-SARAH3", res.Coverage.RecommendedDatabase)

	saved, err := os.ReadFile(res.EPWPath)
	require.NoError(t, err)
	lines := strings.Split(string(saved), "\n")
	assert.Equal(t, "LOCATION,Cambridge UK,-,PVGIS,PVGIS-SARAH3,999999,52.205,0.122,0,14.0", lines[0])
	assert.Equal(t, "DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31", lines[7])
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json message", 400, `{"message":"Location over the sea. Please, check your input."}`, "Location over the sea"},
		{"plain body", 502, "bad gateway", "bad gateway"},
		{"not an epw", 200, "<html>maintenance</html>", "invalid EPW response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL, OutputDir: t.TempDir()}, srv.Client(), logger.NewNopLogger())
			_, err := c.Fetch(context.Background(), Request{Latitude: 10, Longitude: 10})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLookup))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("out of range latitude", func(t *testing.T) {
		c := NewClient(Config{BaseURL: "http://unused", OutputDir: t.TempDir()}, nil, logger.NewNopLogger())
		_, err := c.Fetch(context.Background(), Request{Latitude: 91})
		assert.ErrorIs(t, err, ErrLookup)
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "weather_1.5000_-2.2500.epw", FileName("", 1.5, -2.25))
	assert.Equal(t, "S_o_Paulo_-23.5500_-46.6300.epw", FileName("São Paulo", -23.55, -46.63))
}

func TestFixEPWWithoutName(t *testing.T) {
	fixed := FixEPW(sampleEPW, -33.87, 151.21, "")
	first := strings.SplitN(fixed, "\n", 2)[0]
	assert.Equal(t, "LOCATION,Lat-33.87_Lon151.21,-,PVGIS,PVGIS-SARAH3,999999,52.205,0.122,10,14.0", first)
}

func TestCheckCoverage(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		wantDBs   []string
		wantLower bool
	}{
		{"europe", 52.2, 0.12, []string{"PVGIS-SARAH3", "PVGIS-ERA5"}, false},
		{"americas", 40.7, -74.0, []string{"PVGIS-NSRDB", "PVGIS-ERA5"}, false},
		{"australia", -33.87, 151.21, []string{"PVGIS-ERA5"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CheckCoverage(tt.lat, tt.lon)
			assert.Equal(t, tt.wantDBs, c.AvailableDatabases)
			assert.Equal(t, tt.wantDBs[0], c.RecommendedDatabase)
			hasLower := false
			for _, n := range c.Notes {
				if strings.Contains(n, "lower resolution") {
					hasLower = true
				}
			}
			assert.Equal(t, tt.wantLower, hasLower)
		})
	}
}
