package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type AirlineStatistics struct {
	Name          string `json:"name"`
	Sightings     int    `json:"sightings"`
	Flights       int    `json:"flights"`
	Locations     int    `json:"locations"`
	Aircraft      int    `json:"aircraft"`
	Models        int    `json:"models"`
	Manufacturers int    `json:"manufacturers"`
}

type LocationStatistics struct {
	Name          string `json:"name"`
	Sightings     int    `json:"sightings"`
	Flights       int    `json:"flights"`
	Aircraft      int    `json:"aircraft"`
	Models        int    `json:"models"`
	Manufacturers int    `json:"manufacturers"`
}

type ManufacturerStatistics struct {
	Name      string `json:"name"`
	Sightings int    `json:"sightings"`
	Flights   int    `json:"flights"`
	Locations int    `json:"locations"`
	Aircraft  int    `json:"aircraft"`
	Models    int    `json:"models"`
}

type ModelStatistics struct {
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	Sightings    int    `json:"sightings"`
	Flights      int    `json:"flights"`
	Locations    int    `json:"locations"`
	Aircraft     int    `json:"aircraft"`
}

type FlightsByMonth struct {
	Year      int `json:"year"`
	Month     int `json:"month"`
	Sightings int `json:"sightings"`
	Flights   int `json:"flights"`
}

type MyFlights struct {
	Date         time.Time `json:"date"`
	Airline      string    `json:"airline"`
	Number       string    `json:"number"`
	Embarkation  string    `json:"embarkation"`
	Destination  string    `json:"destination"`
	Registration string    `json:"registration"`
	Model        string    `json:"model"`
	Manufacturer string    `json:"manufacturer"`
}

// SightingStatistics holds whole-database entity counts.
type SightingStatistics struct {
	Aircraft      int `json:"aircraft"`
	Manufacturers int `json:"manufacturers"`
	Models        int `json:"models"`
	Airlines      int `json:"airlines"`
	Flights       int `json:"flights"`
	Sightings     int `json:"sightings"`
	Locations     int `json:"locations"`
}

// sightingGraph joins every sighting to the entities the statistics reports count.
// Aircraft without a model still contribute to the sighting counts.
const sightingGraph = `
	FROM sightings s
	JOIN locations l ON l.id = s.location_id
	JOIN flights f ON f.id = s.flight_id
	JOIN airlines al ON al.id = f.airline_id
	JOIN aircraft a ON a.id = s.aircraft_id
	LEFT JOIN models m ON m.id = a.model_id
	LEFT JOIN manufacturers mf ON mf.id = m.manufacturer_id
	WHERE s.date BETWEEN ? AND ?`

// AirlineStatistics summarises sightings per airline between the optional dates.
func (s *Store) AirlineStatistics(ctx context.Context, from, to *time.Time, page, size int) ([]AirlineStatistics, error) {
	q := `SELECT al.name, COUNT(s.id), COUNT(DISTINCT f.id), COUNT(DISTINCT l.id),
		COUNT(DISTINCT a.id), COUNT(DISTINCT m.id), COUNT(DISTINCT mf.id)` +
		sightingGraph + ` GROUP BY al.id, al.name ORDER BY al.name LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (AirlineStatistics, error) {
		var r AirlineStatistics
		err := rows.Scan(&r.Name, &r.Sightings, &r.Flights, &r.Locations, &r.Aircraft, &r.Models, &r.Manufacturers)
		return r, err
	})
}

// LocationStatistics summarises sightings per location between the optional dates.
func (s *Store) LocationStatistics(ctx context.Context, from, to *time.Time, page, size int) ([]LocationStatistics, error) {
	q := `SELECT l.name, COUNT(s.id), COUNT(DISTINCT f.id), COUNT(DISTINCT a.id),
		COUNT(DISTINCT m.id), COUNT(DISTINCT mf.id)` +
		sightingGraph + ` GROUP BY l.id, l.name ORDER BY l.name LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (LocationStatistics, error) {
		var r LocationStatistics
		err := rows.Scan(&r.Name, &r.Sightings, &r.Flights, &r.Aircraft, &r.Models, &r.Manufacturers)
		return r, err
	})
}

// ManufacturerStatistics summarises sightings per aircraft manufacturer between the optional dates.
func (s *Store) ManufacturerStatistics(ctx context.Context, from, to *time.Time, page, size int) ([]ManufacturerStatistics, error) {
	q := `SELECT mf.name, COUNT(s.id), COUNT(DISTINCT f.id), COUNT(DISTINCT l.id),
		COUNT(DISTINCT a.id), COUNT(DISTINCT m.id)` +
		sightingGraph + ` AND mf.id IS NOT NULL GROUP BY mf.id, mf.name ORDER BY mf.name LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (ManufacturerStatistics, error) {
		var r ManufacturerStatistics
		err := rows.Scan(&r.Name, &r.Sightings, &r.Flights, &r.Locations, &r.Aircraft, &r.Models)
		return r, err
	})
}

// ModelStatistics summarises sightings per aircraft model between the optional dates.
func (s *Store) ModelStatistics(ctx context.Context, from, to *time.Time, page, size int) ([]ModelStatistics, error) {
	q := `SELECT m.name, mf.name, COUNT(s.id), COUNT(DISTINCT f.id), COUNT(DISTINCT l.id),
		COUNT(DISTINCT a.id)` +
		sightingGraph + ` AND m.id IS NOT NULL GROUP BY m.id, m.name, mf.name ORDER BY mf.name, m.name LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (ModelStatistics, error) {
		var r ModelStatistics
		err := rows.Scan(&r.Model, &r.Manufacturer, &r.Sightings, &r.Flights, &r.Locations, &r.Aircraft)
		return r, err
	})
}

// FlightsByMonth counts sightings and distinct flights per calendar month between the optional dates.
func (s *Store) FlightsByMonth(ctx context.Context, from, to *time.Time, page, size int) ([]FlightsByMonth, error) {
	q := `SELECT CAST(substr(s.date, 1, 4) AS INTEGER), CAST(substr(s.date, 6, 2) AS INTEGER),
		COUNT(s.id), COUNT(DISTINCT f.id)` +
		sightingGraph + ` GROUP BY substr(s.date, 1, 7) ORDER BY substr(s.date, 1, 7) LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (FlightsByMonth, error) {
		var r FlightsByMonth
		err := rows.Scan(&r.Year, &r.Month, &r.Sightings, &r.Flights)
		return r, err
	})
}

// MyFlights lists the sightings flagged as flights the user was on, between the optional dates.
func (s *Store) MyFlights(ctx context.Context, from, to *time.Time, page, size int) ([]MyFlights, error) {
	q := `SELECT s.date, al.name, f.number, f.embarkation, f.destination, a.registration,
		COALESCE(m.name, ''), COALESCE(mf.name, '')` +
		sightingGraph + ` AND s.is_my_flight = 1 ORDER BY s.date, s.id LIMIT ? OFFSET ?`
	return runReport(ctx, s, q, from, to, page, size, func(rows *sql.Rows) (MyFlights, error) {
		var (
			r    MyFlights
			date string
		)
		if err := rows.Scan(&date, &r.Airline, &r.Number, &r.Embarkation, &r.Destination,
			&r.Registration, &r.Model, &r.Manufacturer); err != nil {
			return r, err
		}
		d, err := time.ParseInLocation(dateLayout, date, time.UTC)
		r.Date = d
		return r, err
	})
}

// SightingStatistics counts the rows of each sighting-related entity.
func (s *Store) SightingStatistics(ctx context.Context) (*SightingStatistics, error) {
	var st SightingStatistics
	err := s.q.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM aircraft),
		(SELECT COUNT(*) FROM manufacturers),
		(SELECT COUNT(*) FROM models),
		(SELECT COUNT(*) FROM airlines),
		(SELECT COUNT(*) FROM flights),
		(SELECT COUNT(*) FROM sightings),
		(SELECT COUNT(*) FROM locations)`).
		Scan(&st.Aircraft, &st.Manufacturers, &st.Models, &st.Airlines, &st.Flights, &st.Sightings, &st.Locations)
	if err != nil {
		return nil, fmt.Errorf("sighting statistics: %w", err)
	}
	return &st, nil
}

func runReport[T any](ctx context.Context, s *Store, query string, from, to *time.Time, page, size int, scan func(*sql.Rows) (T, error)) ([]T, error) {
	lo, hi := dateBounds(from, to)
	rows, err := s.q.QueryContext(ctx, query, lo, hi, limit(size), offset(page, size))
	if err != nil {
		return nil, fmt.Errorf("run report: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
