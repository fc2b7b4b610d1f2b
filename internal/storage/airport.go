package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Country struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Airport struct {
	ID      int64   `json:"id"`
	Code    string  `json:"code"`
	Name    string  `json:"name"`
	Country Country `json:"country"`
}

const airportSelect = `
	SELECT a.id, a.code, a.name, c.id, c.name
	FROM airports a
	JOIN countries c ON c.id = a.country_id`

// ListAirports returns one page of airports ordered by code.
func (s *Store) ListAirports(ctx context.Context, page, size int) ([]*Airport, error) {
	rows, err := s.q.QueryContext(ctx,
		airportSelect+` ORDER BY a.code LIMIT ? OFFSET ?`,
		limit(size), offset(page, size))
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	defer rows.Close()

	var out []*Airport
	for rows.Next() {
		var a Airport
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Country.ID, &a.Country.Name); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// GetAirport looks an airport up by its IATA code.
func (s *Store) GetAirport(ctx context.Context, code string) (*Airport, error) {
	var a Airport
	err := s.q.QueryRowContext(ctx, airportSelect+` WHERE a.code = ?`, strings.ToUpper(code)).
		Scan(&a.ID, &a.Code, &a.Name, &a.Country.ID, &a.Country.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("airport %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// AddAirport stores an airport, creating its country when missing. Codes are upper-cased.
// An airport whose code is already stored is returned unchanged.
func (s *Store) AddAirport(ctx context.Context, code, name, country string) (*Airport, error) {
	if len(code) != 3 || name == "" || country == "" {
		return nil, fmt.Errorf("invalid airport %q: a 3 letter code, name and country are required", code)
	}
	existing, err := s.GetAirport(ctx, code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	countryID, err := s.findOrCreate(ctx,
		`SELECT id FROM countries WHERE name = ?`,
		`INSERT INTO countries(name) VALUES(?)`, country)
	if err != nil {
		return nil, fmt.Errorf("country %q: %w", country, err)
	}

	code = strings.ToUpper(code)
	if _, err := s.q.ExecContext(ctx,
		`INSERT INTO airports(code, name, country_id) VALUES(?,?,?)`,
		code, name, countryID); err != nil {
		return nil, fmt.Errorf("insert airport %s: %w", code, err)
	}
	return s.GetAirport(ctx, code)
}
