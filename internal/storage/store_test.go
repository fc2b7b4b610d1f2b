package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "flights.db"), opts...)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func year(y int64) *int64 { return &y }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedSightings(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	inputs := []SightingInput{
		{
			FlightNumber: "BA123", Airline: "British Airways", Registration: "G-EUPT", SerialNumber: "1782",
			Manufacturer: "Airbus", Model: "A319", Manufactured: year(2001), Embarkation: "LHR", Destination: "CDG",
			Altitude: 30000, Date: date(2024, time.January, 10), Location: "Heathrow",
		},
		{
			FlightNumber: "BA124", Airline: "British Airways", Registration: "G-EUPT", SerialNumber: "1782",
			Manufacturer: "Airbus", Model: "A319", Manufactured: year(2001), Embarkation: "CDG", Destination: "LHR",
			Altitude: 32000, Date: date(2024, time.January, 12), Location: "Heathrow", IsMyFlight: true,
		},
		{
			FlightNumber: "EZY801", Airline: "easyJet", Registration: "G-EZAA", SerialNumber: "2380",
			Embarkation: "LGW", Destination: "BCN", Altitude: 28000, Date: date(2024, time.February, 3), Location: "Gatwick",
		},
	}
	for _, in := range inputs {
		_, err := s.AddSighting(ctx, in)
		require.NoError(t, err)
	}
}

func TestAddAndListSightings(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	sightings, err := s.ListSightings(context.Background(), 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, sightings, 3)

	first := sightings[0]
	assert.Equal(t, "BA123", first.Flight.Number)
	assert.Equal(t, "British Airways", first.Flight.Airline.Name)
	assert.Equal(t, "G-EUPT", first.Aircraft.Registration)
	require.NotNil(t, first.Aircraft.Model)
	assert.Equal(t, "A319", first.Aircraft.Model.Name)
	assert.Equal(t, "Airbus", first.Aircraft.Model.Manufacturer.Name)
	assert.Equal(t, int64(2001), *first.Aircraft.Manufactured)
	assert.Equal(t, date(2024, time.January, 10), first.Date)
	assert.False(t, first.IsMyFlight)

	// Registration is shared so the aircraft is reused.
	assert.Equal(t, first.Aircraft.ID, sightings[1].Aircraft.ID)
	assert.True(t, sightings[1].IsMyFlight)

	last := sightings[2]
	assert.Nil(t, last.Aircraft.Model)
	assert.Nil(t, last.Aircraft.Manufactured)
}

func TestListSightingsPaging(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	page, err := s.ListSightings(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "EZY801", page[0].Flight.Number)
}

func TestAddSightingRequiresKeyFields(t *testing.T) {
	s := newTestStore(t)
	_, err := s.AddSighting(context.Background(), SightingInput{Airline: "KLM"})
	assert.Error(t, err)
}

func TestAddAndListAirports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddAirport(ctx, "lhr", "London Heathrow", "United Kingdom")
	require.NoError(t, err)
	_, err = s.AddAirport(ctx, "CDG", "Paris Charles de Gaulle", "France")
	require.NoError(t, err)
	_, err = s.AddAirport(ctx, "LGW", "London Gatwick", "United Kingdom")
	require.NoError(t, err)

	airports, err := s.ListAirports(ctx, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, airports, 3)
	assert.Equal(t, "CDG", airports[0].Code)
	assert.Equal(t, "LHR", airports[2].Code)
	assert.Equal(t, airports[1].Country.ID, airports[2].Country.ID)

	again, err := s.AddAirport(ctx, "LHR", "Duplicate", "United Kingdom")
	require.NoError(t, err)
	assert.Equal(t, airports[2].ID, again.ID)
	assert.Equal(t, "London Heathrow", again.Name)

	airports, err = s.ListAirports(ctx, 1, Unbounded)
	require.NoError(t, err)
	assert.Len(t, airports, 3)

	_, err = s.GetAirport(ctx, "JFK")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestScopeSharesDatabase(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	scoped, release, err := s.Scope(ctx)
	require.NoError(t, err)
	_, err = scoped.AddAirport(ctx, "AMS", "Amsterdam Schiphol", "Netherlands")
	require.NoError(t, err)
	require.NoError(t, release())

	got, err := s.GetAirport(ctx, "AMS")
	require.NoError(t, err)
	assert.Equal(t, "Netherlands", got.Country.Name)
}
