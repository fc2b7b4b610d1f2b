package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAirlineStatistics(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	rows, err := s.AirlineStatistics(context.Background(), nil, nil, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, AirlineStatistics{
		Name: "British Airways", Sightings: 2, Flights: 2, Locations: 1, Aircraft: 1, Models: 1, Manufacturers: 1,
	}, rows[0])
	assert.Equal(t, AirlineStatistics{
		Name: "easyJet", Sightings: 1, Flights: 1, Locations: 1, Aircraft: 1,
	}, rows[1])
}

func TestStatisticsDateRange(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)
	ctx := context.Background()

	from := date(2024, time.February, 1)
	rows, err := s.LocationStatistics(ctx, &from, nil, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Gatwick", rows[0].Name)

	to := date(2024, time.January, 10)
	rows, err = s.LocationStatistics(ctx, nil, &to, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Heathrow", rows[0].Name)
	assert.Equal(t, 1, rows[0].Sightings)
}

func TestModelAndManufacturerStatisticsSkipUnknownModels(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)
	ctx := context.Background()

	models, err := s.ModelStatistics(ctx, nil, nil, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, ModelStatistics{Model: "A319", Manufacturer: "Airbus", Sightings: 2, Flights: 2, Locations: 1, Aircraft: 1}, models[0])

	mfs, err := s.ManufacturerStatistics(ctx, nil, nil, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, "Airbus", mfs[0].Name)
	assert.Equal(t, 1, mfs[0].Models)
}

func TestFlightsByMonth(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	rows, err := s.FlightsByMonth(context.Background(), nil, nil, 1, Unbounded)
	require.NoError(t, err)
	assert.Equal(t, []FlightsByMonth{
		{Year: 2024, Month: 1, Sightings: 2, Flights: 2},
		{Year: 2024, Month: 2, Sightings: 1, Flights: 1},
	}, rows)
}

func TestMyFlights(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	rows, err := s.MyFlights(context.Background(), nil, nil, 1, Unbounded)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, MyFlights{
		Date: date(2024, time.January, 12), Airline: "British Airways", Number: "BA124",
		Embarkation: "CDG", Destination: "LHR", Registration: "G-EUPT", Model: "A319", Manufacturer: "Airbus",
	}, rows[0])
}

func TestSightingStatistics(t *testing.T) {
	s := newTestStore(t)
	seedSightings(t, s)

	st, err := s.SightingStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SightingStatistics{
		Aircraft: 2, Manufacturers: 1, Models: 1, Airlines: 2, Flights: 3, Sightings: 3, Locations: 2,
	}, *st)
}
