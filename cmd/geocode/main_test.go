package main

import (
	"bytes"
	"flag"
	"testing"
	"time"

	"github.com/couchcryptid/geocoder-service/internal/config"
	"github.com/couchcryptid/geocoder-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		GoogleDomain:   "maps.googleapis.com",
		GoogleProtocol: "https",
		GoogleTimeout:  10 * time.Second,
	}
}

func TestParseFlags_RequiresOneQuery(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-address", "x", "-latlng", "1,2"},
	} {
		_, err := parseFlags(args, testConfig())
		require.Error(t, err, "args %v", args)
	}
}

func TestParseFlags_ConnectionDefaultsFromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.GoogleClientID = "gme-test"
	cfg.GoogleSecretKey = "vNIXE0xscrmjlyV-12Nj_BvUPaw="

	opts, err := parseFlags([]string{"-address", "Paris", "-protocol", "http", "-all"}, cfg)
	require.NoError(t, err)

	assert.Equal(t, "Paris", opts.address)
	assert.True(t, opts.all)
	assert.Equal(t, "maps.googleapis.com", opts.client.Domain)
	assert.Equal(t, "http", opts.client.Protocol)
	assert.Equal(t, "gme-test", opts.client.ClientID)
	assert.Equal(t, 10*time.Second, opts.client.Timeout)
}

func TestRun_URLOnly(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "gme-test")
	t.Setenv("GOOGLE_SECRET_KEY", "vNIXE0xscrmjlyV-12Nj_BvUPaw=")

	var out bytes.Buffer
	err := run([]string{"-latlng", "40.714224,-73.961452", "-url-only"}, &out)
	require.NoError(t, err)

	assert.Equal(t,
		"https://maps.googleapis.com/maps/api/geocode/json"+
			"?client=gme-test&latlng=40.714224%2C-73.961452&sensor=false"+
			"&signature=E3uNBpxTe3J3GXtuN5caTMHumqY=\n",
		out.String())
}

func TestRun_Help(t *testing.T) {
	err := run([]string{"-h"}, &bytes.Buffer{})
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestDistanceKm(t *testing.T) {
	paris := domain.Coordinate{Lat: 48.8566, Lng: 2.3522}
	london := domain.Coordinate{Lat: 51.5074, Lng: -0.1278}

	assert.InDelta(t, 343.5, distanceKm(paris, london), 1)
	assert.InDelta(t, 0, distanceKm(paris, paris), 1e-9)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(domain.ConfigError("bad")))
	assert.Equal(t, 3, exitCode(domain.StatusError(domain.StatusZeroResults)))
	assert.Equal(t, 3, exitCode(domain.StatusError(domain.StatusOverQueryLimit)))
	assert.Equal(t, 1, exitCode(domain.ParseError("decode response", nil)))
}
