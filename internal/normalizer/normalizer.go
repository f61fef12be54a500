// Package normalizer maps a raw bulletin matrix onto the canonical
// five-column schema.
package normalizer

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"fjacquet/aqi-bulletin/internal/bulletinerror"
	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const pollutantSeparator = ", "

// pollutantMarkers are tested in order; every marker found in the raw cell
// appends its token, so one cell can yield the same token twice.
var pollutantMarkers = []struct {
	marker string
	token  string
}{
	{"3", models.PollutantO3},
	{"Z", models.PollutantO3},
	{"CO", models.PollutantCO},
	{"NO", models.PollutantNO2},
	{"SO", models.PollutantSO2},
	{"10", models.PollutantPM10},
	{"2.5", models.PollutantPM25},
}

var serialHeaders = map[string]bool{
	"sno":          true,
	"slno":         true,
	"srno":         true,
	"sn":           true,
	"serialno":     true,
	"serialnumber": true,
}

// Options controls optional normalization behavior.
type Options struct {
	// DedupePollutants keeps only the first occurrence of each pollutant token.
	DedupePollutants bool
}

// Stats summarizes one normalization pass.
type Stats struct {
	InputRows     int
	Rows          int
	Dropped       int
	SerialDropped bool
}

// Normalizer converts raw extractions into bulletin tables.
type Normalizer struct {
	opts   Options
	title  cases.Caser
	logger logging.Logger
}

// New creates a Normalizer.
func New(opts Options, logger logging.Logger) *Normalizer {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Normalizer{
		opts:   opts,
		title:  cases.Title(language.Und),
		logger: logger,
	}
}

// Normalize produces the canonical table for date from raw. A column count
// other than five after removing the serial-number column is reported as a
// *bulletinerror.GenuineFailureError wrapping a *bulletinerror.SchemaDriftError.
// Rows whose index is not an integer are dropped and counted.
func (n *Normalizer) Normalize(date time.Time, raw models.RawExtraction) (models.BulletinTable, Stats, error) {
	header := raw.Header()
	serial := -1
	for i, h := range header {
		if IsSerialNumberHeader(h) {
			serial = i
			break
		}
	}

	columns := len(header)
	if serial >= 0 {
		columns--
	}
	if columns != len(models.CanonicalColumns) {
		return models.BulletinTable{}, Stats{}, &bulletinerror.GenuineFailureError{
			Date:   date,
			Reason: bulletinerror.ReasonSchemaDrift,
			Cause: &bulletinerror.SchemaDriftError{
				Columns:  columns,
				Expected: len(models.CanonicalColumns),
				Header:   header,
			},
		}
	}

	body := raw.Body()
	stats := Stats{InputRows: len(body), SerialDropped: serial >= 0}
	table := models.BulletinTable{Date: date, Rows: make([]models.BulletinRow, 0, len(body))}

	for i, row := range body {
		cells := project(row, serial, len(header))

		index, err := strconv.Atoi(strings.TrimSpace(cells[2]))
		if err != nil {
			stats.Dropped++
			n.logger.Debug("Dropping row with invalid index",
				logging.F(logging.FieldDate, dateutils.ToISODate(date)),
				logging.F(logging.FieldRow, i+1),
				logging.F("index", cells[2]))
			continue
		}

		table.Rows = append(table.Rows, models.BulletinRow{
			City:       n.NormalizeCity(cells[0]),
			Level:      cells[1],
			Index:      index,
			Pollutants: n.NormalizePollutants(cells[3]),
			Stations:   NormalizeStations(cells[4]),
		})
	}
	stats.Rows = len(table.Rows)

	n.logger.Debug("Normalized bulletin",
		logging.F(logging.FieldDate, dateutils.ToISODate(date)),
		logging.F(logging.FieldCount, stats.Rows),
		logging.F(logging.FieldDropped, stats.Dropped))

	return table, stats, nil
}

// project removes the serial column and pads ragged rows to width.
func project(row []string, serial, width int) []string {
	cells := make([]string, 0, width)
	for i := 0; i < width; i++ {
		if i == serial {
			continue
		}
		if i < len(row) {
			cells = append(cells, row[i])
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

// IsSerialNumberHeader reports whether h names a serial-number column,
// ignoring case, whitespace and punctuation.
func IsSerialNumberHeader(h string) bool {
	var sb strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return serialHeaders[sb.String()]
}

// NormalizeCity replaces carriage returns and underscores with spaces and
// title-cases the result. Surrounding whitespace is kept.
// Title-casing follows Unicode word boundaries, so an apostrophe does not
// start a new word: "O'BRIEN" becomes "O'brien", not "O'Brien".
func (n *Normalizer) NormalizeCity(city string) string {
	if city == "" {
		return city
	}
	city = strings.NewReplacer("\r", " ", "_", " ").Replace(city)
	return n.title.String(city)
}

// NormalizePollutants maps the raw pollutant cell onto canonical tokens.
func (n *Normalizer) NormalizePollutants(cell string) string {
	if cell == "" {
		return cell
	}
	tokens := make([]string, 0, len(pollutantMarkers))
	seen := make(map[string]bool, len(pollutantMarkers))
	for _, m := range pollutantMarkers {
		if !strings.Contains(cell, m.marker) {
			continue
		}
		if n.opts.DedupePollutants && seen[m.token] {
			continue
		}
		seen[m.token] = true
		tokens = append(tokens, m.token)
	}
	return strings.Join(tokens, pollutantSeparator)
}

// NormalizeStations drops the " #" marker and any "/total" denominator.
func NormalizeStations(cell string) string {
	if cell == "" {
		return cell
	}
	cell = strings.ReplaceAll(cell, " #", "")
	if i := strings.Index(cell, "/"); i >= 0 {
		cell = cell[:i]
	}
	return cell
}
