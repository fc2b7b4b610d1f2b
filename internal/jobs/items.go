package jobs

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SightingsExportJob = "Sightings Export"
	AirportsExportJob  = "Airports Export"
)

// dateParam is the layout of the optional report bounds in the parameters text.
const dateParam = "2006-01-02"

// SightingsExportItem requests a file of every sighting.
type SightingsExportItem struct {
	ID       uuid.UUID
	JobName  string
	FileName string
}

// NewSightingsExportItem returns a sightings export item writing to fileName.
func NewSightingsExportItem(fileName string) *SightingsExportItem {
	return &SightingsExportItem{ID: uuid.New(), JobName: SightingsExportJob, FileName: fileName}
}

func (i *SightingsExportItem) Name() string { return i.JobName }

// String renders the parameters text stored with the job status.
func (i *SightingsExportItem) String() string {
	return fmt.Sprintf("JobName = %s, FileName = %s", i.JobName, i.FileName)
}

// AirportsExportItem requests a file of every airport.
type AirportsExportItem struct {
	ID       uuid.UUID
	JobName  string
	FileName string
}

// NewAirportsExportItem returns an airports export item writing to fileName.
func NewAirportsExportItem(fileName string) *AirportsExportItem {
	return &AirportsExportItem{ID: uuid.New(), JobName: AirportsExportJob, FileName: fileName}
}

func (i *AirportsExportItem) Name() string { return i.JobName }

// String renders the parameters text stored with the job status.
func (i *AirportsExportItem) String() string {
	return fmt.Sprintf("JobName = %s, FileName = %s", i.JobName, i.FileName)
}

// ReportExportItem requests a report file, optionally restricted to a date range.
type ReportExportItem struct {
	ID       uuid.UUID
	JobName  string
	FileName string
	Kind     ReportKind
	Start    *time.Time
	End      *time.Time
}

// NewReportExportItem names the job after the report kind, e.g. "Airline Statistics Export".
func NewReportExportItem(kind ReportKind, fileName string, start, end *time.Time) *ReportExportItem {
	return &ReportExportItem{
		ID:       uuid.New(),
		JobName:  kind.Title() + " Export",
		FileName: fileName,
		Kind:     kind,
		Start:    start,
		End:      end,
	}
}

func (i *ReportExportItem) Name() string { return i.JobName }

// String renders the parameters text stored with the job status.
func (i *ReportExportItem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "JobName = %s, FileName = %s", i.JobName, i.FileName)
	if i.Kind != nil {
		fmt.Fprintf(&b, ", Type = %s", i.Kind.Name())
	}
	fmt.Fprintf(&b, ", Start = %s, End = %s", formatBound(i.Start), formatBound(i.End))
	return b.String()
}

func formatBound(t *time.Time) string {
	if t == nil {
		return "null"
	}
	return t.Format(dateParam)
}
