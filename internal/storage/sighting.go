package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Airline struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Manufacturer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Model struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Manufacturer Manufacturer `json:"manufacturer"`
}

// Aircraft is an airframe identified by registration. Model and year of
// manufacture are optional.
type Aircraft struct {
	ID           int64  `json:"id"`
	Registration string `json:"registration"`
	SerialNumber string `json:"serialNumber"`
	Manufactured *int64 `json:"manufactured,omitempty"`
	Model        *Model `json:"model,omitempty"`
}

type Flight struct {
	ID          int64   `json:"id"`
	Number      string  `json:"number"`
	Embarkation string  `json:"embarkation"`
	Destination string  `json:"destination"`
	Airline     Airline `json:"airline"`
}

// Sighting is one logged observation of an aircraft on a flight.
type Sighting struct {
	ID         int64     `json:"id"`
	Altitude   int64     `json:"altitude"`
	Date       time.Time `json:"date"`
	IsMyFlight bool      `json:"isMyFlight"`
	Location   Location  `json:"location"`
	Flight     Flight    `json:"flight"`
	Aircraft   Aircraft  `json:"aircraft"`
}

// SightingInput carries the denormalised fields of a sighting to be stored.
// Related entities are matched by name and created when missing.
type SightingInput struct {
	FlightNumber string
	Airline      string
	Registration string
	SerialNumber string
	Manufacturer string
	Model        string
	Manufactured *int64
	Embarkation  string
	Destination  string
	Altitude     int64
	Date         time.Time
	Location     string
	IsMyFlight   bool
}

const sightingSelect = `
	SELECT s.id, s.altitude, s.date, s.is_my_flight,
		l.id, l.name,
		f.id, f.number, f.embarkation, f.destination,
		al.id, al.name,
		a.id, a.registration, a.serial_number, a.manufactured,
		m.id, m.name, mf.id, mf.name
	FROM sightings s
	JOIN locations l ON l.id = s.location_id
	JOIN flights f ON f.id = s.flight_id
	JOIN airlines al ON al.id = f.airline_id
	JOIN aircraft a ON a.id = s.aircraft_id
	LEFT JOIN models m ON m.id = a.model_id
	LEFT JOIN manufacturers mf ON mf.id = m.manufacturer_id`

// ListSightings returns one page of sightings with their related entities, in date order.
func (s *Store) ListSightings(ctx context.Context, page, size int) ([]*Sighting, error) {
	rows, err := s.q.QueryContext(ctx,
		sightingSelect+` ORDER BY s.date, s.id LIMIT ? OFFSET ?`,
		limit(size), offset(page, size))
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()

	var out []*Sighting
	for rows.Next() {
		sg, err := scanSighting(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// GetSighting retrieves a sighting by id.
func (s *Store) GetSighting(ctx context.Context, id int64) (*Sighting, error) {
	sg, err := scanSighting(s.q.QueryRowContext(ctx, sightingSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sighting %d: %w", id, ErrNotFound)
	}
	return sg, err
}

func scanSighting(r scanner) (*Sighting, error) {
	var (
		sg           Sighting
		date         string
		myFlight     int64
		manufactured sql.NullInt64
		modelID      sql.NullInt64
		modelName    sql.NullString
		mfID         sql.NullInt64
		mfName       sql.NullString
	)
	err := r.Scan(&sg.ID, &sg.Altitude, &date, &myFlight,
		&sg.Location.ID, &sg.Location.Name,
		&sg.Flight.ID, &sg.Flight.Number, &sg.Flight.Embarkation, &sg.Flight.Destination,
		&sg.Flight.Airline.ID, &sg.Flight.Airline.Name,
		&sg.Aircraft.ID, &sg.Aircraft.Registration, &sg.Aircraft.SerialNumber, &manufactured,
		&modelID, &modelName, &mfID, &mfName)
	if err != nil {
		return nil, err
	}

	d, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("sighting %d date: %w", sg.ID, err)
	}
	sg.Date = d
	sg.IsMyFlight = myFlight != 0
	if manufactured.Valid {
		year := manufactured.Int64
		sg.Aircraft.Manufactured = &year
	}
	if modelID.Valid {
		sg.Aircraft.Model = &Model{
			ID:           modelID.Int64,
			Name:         modelName.String,
			Manufacturer: Manufacturer{ID: mfID.Int64, Name: mfName.String},
		}
	}
	return &sg, nil
}

// AddSighting stores a sighting, creating any airline, flight, manufacturer, model,
// aircraft or location it refers to that does not exist yet.
func (s *Store) AddSighting(ctx context.Context, in SightingInput) (*Sighting, error) {
	if in.FlightNumber == "" || in.Airline == "" || in.Registration == "" || in.Location == "" {
		return nil, errors.New("flight number, airline, registration and location are required")
	}

	airlineID, err := s.findOrCreate(ctx,
		`SELECT id FROM airlines WHERE name = ?`,
		`INSERT INTO airlines(name) VALUES(?)`, in.Airline)
	if err != nil {
		return nil, fmt.Errorf("airline %q: %w", in.Airline, err)
	}

	flightID, err := s.findOrCreate(ctx,
		`SELECT id FROM flights WHERE airline_id = ? AND number = ? AND embarkation = ? AND destination = ?`,
		`INSERT INTO flights(airline_id, number, embarkation, destination) VALUES(?,?,?,?)`,
		airlineID, in.FlightNumber, in.Embarkation, in.Destination)
	if err != nil {
		return nil, fmt.Errorf("flight %q: %w", in.FlightNumber, err)
	}

	var modelID *int64
	if in.Manufacturer != "" && in.Model != "" {
		mfID, err := s.findOrCreate(ctx,
			`SELECT id FROM manufacturers WHERE name = ?`,
			`INSERT INTO manufacturers(name) VALUES(?)`, in.Manufacturer)
		if err != nil {
			return nil, fmt.Errorf("manufacturer %q: %w", in.Manufacturer, err)
		}
		id, err := s.findOrCreate(ctx,
			`SELECT id FROM models WHERE manufacturer_id = ? AND name = ?`,
			`INSERT INTO models(manufacturer_id, name) VALUES(?,?)`, mfID, in.Model)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", in.Model, err)
		}
		modelID = &id
	}

	aircraftID, err := s.findOrCreate(ctx,
		`SELECT id FROM aircraft WHERE registration = ?`,
		`INSERT INTO aircraft(registration, serial_number, manufactured, model_id) VALUES(?,?,?,?)`,
		in.Registration, in.SerialNumber, nullableInt(in.Manufactured), nullableInt(modelID))
	if err != nil {
		return nil, fmt.Errorf("aircraft %q: %w", in.Registration, err)
	}

	locationID, err := s.findOrCreate(ctx,
		`SELECT id FROM locations WHERE name = ?`,
		`INSERT INTO locations(name) VALUES(?)`, in.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", in.Location, err)
	}

	myFlight := 0
	if in.IsMyFlight {
		myFlight = 1
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO sightings(location_id, flight_id, aircraft_id, altitude, date, is_my_flight) VALUES(?,?,?,?,?,?)`,
		locationID, flightID, aircraftID, in.Altitude, in.Date.Format(dateLayout), myFlight)
	if err != nil {
		return nil, fmt.Errorf("insert sighting: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetSighting(ctx, id)
}

// findOrCreate returns the id of the row matched by lookup, inserting it first when
// there is none. lookup is bound to the leading args it has placeholders for.
func (s *Store) findOrCreate(ctx context.Context, lookup, insert string, args ...any) (int64, error) {
	n := placeholders(lookup)
	var id int64
	err := s.q.QueryRowContext(ctx, lookup, args[:n]...).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	res, err := s.q.ExecContext(ctx, insert, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func placeholders(query string) int {
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
		}
	}
	return n
}
