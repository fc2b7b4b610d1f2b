package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flightrecorder/internal/storage"
)

// ErrInvalidRecordFormat is wrapped by every RecordFormatError.
var ErrInvalidRecordFormat = errors.New("invalid record format")

// RecordFormatError reports the first line of an import file that does not match
// the record grammar. Line numbers are 1-based and count the header line.
type RecordFormatError struct {
	File string
	Line int
}

func (e *RecordFormatError) Error() string {
	return fmt.Sprintf("Invalid record format at line %d of %s", e.Line, e.File)
}

func (e *RecordFormatError) Unwrap() error { return ErrInvalidRecordFormat }

var (
	sightingPattern = regexp.MustCompile(`^("[a-zA-Z0-9\-() /']+",){6}"[0-9]+",("[a-zA-Z0-9\-() /']+",){3}"[0-9]+/[0-9]+/[0-9]+","[a-zA-Z0-9\-() /']+","(True|False)"$`)
	airportPattern  = regexp.MustCompile(`^"[a-zA-Z]{3}",".*",".*"$`)
)

// splitQuoted splits a line of double-quoted fields that contain no embedded quotes.
func splitQuoted(line string) []string {
	line = strings.TrimSuffix(strings.TrimPrefix(line, `"`), `"`)
	return strings.Split(line, `","`)
}

// ParseSighting parses one sighting record. ok is false when the line does not
// match the sighting grammar.
func ParseSighting(line string) (FlattenedSighting, bool) {
	if !sightingPattern.MatchString(line) {
		return FlattenedSighting{}, false
	}
	f := splitQuoted(line)
	if len(f) != len(SightingColumns) {
		return FlattenedSighting{}, false
	}

	age, err := strconv.ParseInt(f[6], 10, 64)
	if err != nil {
		return FlattenedSighting{}, false
	}
	altitude, err := strconv.ParseInt(f[9], 10, 64)
	if err != nil {
		return FlattenedSighting{}, false
	}
	date, err := time.ParseInLocation(DateFormat, normaliseDate(f[10]), time.UTC)
	if err != nil {
		return FlattenedSighting{}, false
	}

	return FlattenedSighting{
		FlightNumber: f[0],
		Airline:      f[1],
		Registration: f[2],
		SerialNumber: f[3],
		Manufacturer: f[4],
		Model:        f[5],
		Age:          &age,
		Embarkation:  f[7],
		Destination:  f[8],
		Altitude:     altitude,
		Date:         date,
		Location:     f[11],
		IsMyFlight:   f[12] == "True",
	}, true
}

// normaliseDate zero-pads the day and month of a d/m/yyyy date.
func normaliseDate(v string) string {
	parts := strings.Split(v, "/")
	for i := 0; i < len(parts)-1; i++ {
		if len(parts[i]) == 1 {
			parts[i] = "0" + parts[i]
		}
	}
	return strings.Join(parts, "/")
}

// ParseAirport parses one airport record. ok is false when the line does not
// match the airport grammar.
func ParseAirport(line string) (FlattenedAirport, bool) {
	if !airportPattern.MatchString(line) {
		return FlattenedAirport{}, false
	}
	f := splitQuoted(line)
	if len(f) != len(AirportColumns) {
		return FlattenedAirport{}, false
	}
	return FlattenedAirport{Code: f[0], Name: f[1], Country: f[2]}, true
}

// SightingStore is the subset of the store a sightings import writes to.
type SightingStore interface {
	AddSighting(ctx context.Context, in storage.SightingInput) (*storage.Sighting, error)
}

// AirportStore is the subset of the store an airports import writes to.
type AirportStore interface {
	AddAirport(ctx context.Context, code, name, country string) (*storage.Airport, error)
}

// SightingsImporter loads sighting files produced by the sightings export.
type SightingsImporter struct {
	Store    SightingStore
	Now      func() time.Time
	OnRecord func(count int64, s FlattenedSighting)
}

// ImportFile imports every record of the file at path.
func (im *SightingsImporter) ImportFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, path)
}

// Import reads records from r, skipping the header line. It stops at the first
// record that does not match the grammar and returns a *RecordFormatError naming it.
func (im *SightingsImporter) Import(ctx context.Context, r io.Reader, name string) (int64, error) {
	now := time.Now
	if im.Now != nil {
		now = im.Now
	}
	return importLines(ctx, r, name, func(ctx context.Context, line string, count int64) (bool, error) {
		rec, ok := ParseSighting(line)
		if !ok {
			return false, nil
		}
		if _, err := im.Store.AddSighting(ctx, rec.Input(now())); err != nil {
			return true, err
		}
		if im.OnRecord != nil {
			im.OnRecord(count, rec)
		}
		return true, nil
	})
}

// AirportsImporter loads airport files.
type AirportsImporter struct {
	Store    AirportStore
	OnRecord func(count int64, a FlattenedAirport)
}

// ImportFile imports every record of the file at path.
func (im *AirportsImporter) ImportFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f, path)
}

// Import reads records from r, skipping the header line, and stops at the first
// record that does not match the grammar.
func (im *AirportsImporter) Import(ctx context.Context, r io.Reader, name string) (int64, error) {
	return importLines(ctx, r, name, func(ctx context.Context, line string, count int64) (bool, error) {
		rec, ok := ParseAirport(line)
		if !ok {
			return false, nil
		}
		if _, err := im.Store.AddAirport(ctx, rec.Code, rec.Name, rec.Country); err != nil {
			return true, err
		}
		if im.OnRecord != nil {
			im.OnRecord(count, rec)
		}
		return true, nil
	})
}

// importLines feeds each non-header line to store. store reports ok=false when the
// line fails the grammar.
func importLines(ctx context.Context, r io.Reader, name string, store func(context.Context, string, int64) (bool, error)) (int64, error) {
	sc := bufio.NewScanner(r)
	var (
		line  int
		count int64
	)
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}
		ok, err := store(ctx, text, count+1)
		if !ok {
			return count, &RecordFormatError{File: name, Line: line}
		}
		if err != nil {
			return count, fmt.Errorf("line %d of %s: %w", line, name, err)
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("read %s: %w", name, err)
	}
	return count, nil
}
