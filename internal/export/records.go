package export

import (
	"time"

	"flightrecorder/internal/storage"
)

// FlattenedSighting is the denormalised row written to and read from sighting files.
type FlattenedSighting struct {
	FlightNumber string
	Airline      string
	Registration string
	SerialNumber string
	Manufacturer string
	Model        string
	Age          *int64
	Embarkation  string
	Destination  string
	Altitude     int64
	Date         time.Time
	Location     string
	IsMyFlight   bool
}

// FlattenedAirport is the row written to and read from airport files.
type FlattenedAirport struct {
	Code    string
	Name    string
	Country string
}

// FlattenSighting denormalises a sighting. Age is measured in whole years from now and
// left empty when the year of manufacture is unknown.
func FlattenSighting(s *storage.Sighting, now time.Time) FlattenedSighting {
	f := FlattenedSighting{
		FlightNumber: s.Flight.Number,
		Airline:      s.Flight.Airline.Name,
		Registration: s.Aircraft.Registration,
		SerialNumber: s.Aircraft.SerialNumber,
		Embarkation:  s.Flight.Embarkation,
		Destination:  s.Flight.Destination,
		Altitude:     s.Altitude,
		Date:         s.Date,
		Location:     s.Location.Name,
		IsMyFlight:   s.IsMyFlight,
	}
	if m := s.Aircraft.Model; m != nil {
		f.Model = m.Name
		f.Manufacturer = m.Manufacturer.Name
	}
	if s.Aircraft.Manufactured != nil {
		age := int64(now.Year()) - *s.Aircraft.Manufactured
		f.Age = &age
	}
	return f
}

// FlattenSightings flattens every sighting against the same reference time.
func FlattenSightings(sightings []*storage.Sighting, now time.Time) []FlattenedSighting {
	out := make([]FlattenedSighting, 0, len(sightings))
	for _, s := range sightings {
		out = append(out, FlattenSighting(s, now))
	}
	return out
}

// FlattenAirport denormalises an airport with its country name.
func FlattenAirport(a *storage.Airport) FlattenedAirport {
	return FlattenedAirport{Code: a.Code, Name: a.Name, Country: a.Country.Name}
}

// FlattenAirports flattens every airport.
func FlattenAirports(airports []*storage.Airport) []FlattenedAirport {
	out := make([]FlattenedAirport, 0, len(airports))
	for _, a := range airports {
		out = append(out, FlattenAirport(a))
	}
	return out
}

// Input converts the row back into a storage input, deriving the year of
// manufacture from Age relative to now.
func (f FlattenedSighting) Input(now time.Time) storage.SightingInput {
	in := storage.SightingInput{
		FlightNumber: f.FlightNumber,
		Airline:      f.Airline,
		Registration: f.Registration,
		SerialNumber: f.SerialNumber,
		Manufacturer: f.Manufacturer,
		Model:        f.Model,
		Embarkation:  f.Embarkation,
		Destination:  f.Destination,
		Altitude:     f.Altitude,
		Date:         f.Date,
		Location:     f.Location,
		IsMyFlight:   f.IsMyFlight,
	}
	if f.Age != nil {
		year := int64(now.Year()) - *f.Age
		in.Manufactured = &year
	}
	return in
}

var SightingColumns = []Column[FlattenedSighting]{
	{"Flight", func(f FlattenedSighting) any { return f.FlightNumber }},
	{"Airline", func(f FlattenedSighting) any { return f.Airline }},
	{"Registration", func(f FlattenedSighting) any { return f.Registration }},
	{"Serial Number", func(f FlattenedSighting) any { return f.SerialNumber }},
	{"Manufacturer", func(f FlattenedSighting) any { return f.Manufacturer }},
	{"Type", func(f FlattenedSighting) any { return f.Model }},
	{"Age", func(f FlattenedSighting) any { return f.Age }},
	{"From", func(f FlattenedSighting) any { return f.Embarkation }},
	{"To", func(f FlattenedSighting) any { return f.Destination }},
	{"Height", func(f FlattenedSighting) any { return f.Altitude }},
	{"Date", func(f FlattenedSighting) any { return f.Date }},
	{"Location", func(f FlattenedSighting) any { return f.Location }},
	{"My Flight", func(f FlattenedSighting) any { return f.IsMyFlight }},
}

var AirportColumns = []Column[FlattenedAirport]{
	{"Code", func(a FlattenedAirport) any { return a.Code }},
	{"Name", func(a FlattenedAirport) any { return a.Name }},
	{"Country", func(a FlattenedAirport) any { return a.Country }},
}

var JobStatusColumns = []Column[*storage.JobStatus]{
	{"Job Name", func(j *storage.JobStatus) any { return j.Name }},
	{"Parameters", func(j *storage.JobStatus) any { return j.Parameters }},
	{"Started", func(j *storage.JobStatus) any { return j.Start }},
	{"Completed", func(j *storage.JobStatus) any { return j.End }},
	{"Errors", func(j *storage.JobStatus) any { return j.Error }},
}

var AirlineStatisticsColumns = []Column[storage.AirlineStatistics]{
	{"Airline", func(r storage.AirlineStatistics) any { return r.Name }},
	{"Sightings", func(r storage.AirlineStatistics) any { return r.Sightings }},
	{"Flights", func(r storage.AirlineStatistics) any { return r.Flights }},
	{"Locations", func(r storage.AirlineStatistics) any { return r.Locations }},
	{"Aircraft", func(r storage.AirlineStatistics) any { return r.Aircraft }},
	{"Models", func(r storage.AirlineStatistics) any { return r.Models }},
	{"Manufacturers", func(r storage.AirlineStatistics) any { return r.Manufacturers }},
}

var LocationStatisticsColumns = []Column[storage.LocationStatistics]{
	{"Location", func(r storage.LocationStatistics) any { return r.Name }},
	{"Sightings", func(r storage.LocationStatistics) any { return r.Sightings }},
	{"Flights", func(r storage.LocationStatistics) any { return r.Flights }},
	{"Aircraft", func(r storage.LocationStatistics) any { return r.Aircraft }},
	{"Models", func(r storage.LocationStatistics) any { return r.Models }},
	{"Manufacturers", func(r storage.LocationStatistics) any { return r.Manufacturers }},
}

var ManufacturerStatisticsColumns = []Column[storage.ManufacturerStatistics]{
	{"Manufacturer", func(r storage.ManufacturerStatistics) any { return r.Name }},
	{"Sightings", func(r storage.ManufacturerStatistics) any { return r.Sightings }},
	{"Flights", func(r storage.ManufacturerStatistics) any { return r.Flights }},
	{"Locations", func(r storage.ManufacturerStatistics) any { return r.Locations }},
	{"Aircraft", func(r storage.ManufacturerStatistics) any { return r.Aircraft }},
	{"Models", func(r storage.ManufacturerStatistics) any { return r.Models }},
}

var ModelStatisticsColumns = []Column[storage.ModelStatistics]{
	{"Model", func(r storage.ModelStatistics) any { return r.Model }},
	{"Manufacturer", func(r storage.ModelStatistics) any { return r.Manufacturer }},
	{"Sightings", func(r storage.ModelStatistics) any { return r.Sightings }},
	{"Flights", func(r storage.ModelStatistics) any { return r.Flights }},
	{"Locations", func(r storage.ModelStatistics) any { return r.Locations }},
	{"Aircraft", func(r storage.ModelStatistics) any { return r.Aircraft }},
}

var FlightsByMonthColumns = []Column[storage.FlightsByMonth]{
	{"Year", func(r storage.FlightsByMonth) any { return r.Year }},
	{"Month", func(r storage.FlightsByMonth) any { return r.Month }},
	{"Sightings", func(r storage.FlightsByMonth) any { return r.Sightings }},
	{"Flights", func(r storage.FlightsByMonth) any { return r.Flights }},
}

var MyFlightsColumns = []Column[storage.MyFlights]{
	{"Date", func(r storage.MyFlights) any { return r.Date }},
	{"Airline", func(r storage.MyFlights) any { return r.Airline }},
	{"Number", func(r storage.MyFlights) any { return r.Number }},
	{"Embarkation", func(r storage.MyFlights) any { return r.Embarkation }},
	{"Destination", func(r storage.MyFlights) any { return r.Destination }},
	{"Registration", func(r storage.MyFlights) any { return r.Registration }},
	{"Model", func(r storage.MyFlights) any { return r.Model }},
	{"Manufacturer", func(r storage.MyFlights) any { return r.Manufacturer }},
}
