// Package writer persists normalized bulletins and the raw artifacts they
// were derived from.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/fileutils"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"

	"github.com/gocarina/gocsv"
)

// RecordExtension is the file extension of a persisted bulletin.
const RecordExtension = ".csv"

// CSVWriter writes one CSV record per date into a directory.
type CSVWriter struct {
	dir    string
	logger logging.Logger
}

// NewCSVWriter creates a CSVWriter rooted at dir.
func NewCSVWriter(dir string, logger logging.Logger) *CSVWriter {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &CSVWriter{dir: dir, logger: logger}
}

// Path returns the record location for date.
func (w *CSVWriter) Path(date time.Time) string {
	return filepath.Join(w.dir, dateutils.ToISODate(date)+RecordExtension)
}

// Exists reports whether a readable record for date is already on disk.
// A file that does not parse back as a record does not count.
func (w *CSVWriter) Exists(date time.Time) bool {
	path := w.Path(date)
	if !fileutils.FileExists(path) {
		return false
	}
	if _, err := ReadRecord(path); err != nil {
		w.logger.WithError(err).Warn("Ignoring unreadable bulletin record",
			logging.F(logging.FieldOutputFile, path))
		return false
	}
	return true
}

// Write replaces the record for table.Date with the rows of table and
// returns the path written. The header is written even when table is empty.
func (w *CSVWriter) Write(table models.BulletinTable) (string, error) {
	path := w.Path(table.Date)
	rows := table.Rows
	if rows == nil {
		rows = []models.BulletinRow{}
	}

	err := fileutils.WriteFileAtomic(path, models.PermissionFile, func(out io.Writer) error {
		csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(out))
		if err := gocsv.MarshalCSV(&rows, csvWriter); err != nil {
			return fmt.Errorf("error marshaling bulletin to CSV: %w", err)
		}
		csvWriter.Flush()
		return csvWriter.Error()
	})
	if err != nil {
		w.logger.WithError(err).Error("Failed to write bulletin record",
			logging.F(logging.FieldOutputFile, path))
		return "", fmt.Errorf("error writing bulletin record: %w", err)
	}

	w.logger.Info("Wrote bulletin record",
		logging.F(logging.FieldOutputFile, path),
		logging.F(logging.FieldCount, len(rows)))
	return path, nil
}

// ReadRecord loads a record previously written by CSVWriter.
func ReadRecord(path string) ([]models.BulletinRow, error) {
	file, err := os.Open(path) // #nosec G304 -- path built from configured output directory
	if err != nil {
		return nil, fmt.Errorf("error opening bulletin record: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	var rows []models.BulletinRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("error parsing bulletin record: %w", err)
	}
	return rows, nil
}
