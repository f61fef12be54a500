package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fjacquet/aqi-bulletin/internal/dateutils"
	"fjacquet/aqi-bulletin/internal/fileutils"
	"fjacquet/aqi-bulletin/internal/locator"
	"fjacquet/aqi-bulletin/internal/logging"
	"fjacquet/aqi-bulletin/internal/models"

	"github.com/gocarina/gocsv"
)

// RawDumper writes the untouched extraction matrix next to the record, for
// diagnosing extraction problems.
type RawDumper struct {
	dir    string
	logger logging.Logger
}

// NewRawDumper creates a RawDumper rooted at dir.
func NewRawDumper(dir string, logger logging.Logger) *RawDumper {
	return &RawDumper{dir: dir, logger: logger}
}

// Path returns the dump location for date.
func (d *RawDumper) Path(date time.Time) string {
	return filepath.Join(d.dir, dateutils.ToISODate(date)+".raw"+RecordExtension)
}

// Dump writes raw for date and returns the path written.
func (d *RawDumper) Dump(date time.Time, raw models.RawExtraction) (string, error) {
	p := d.Path(date)
	err := fileutils.WriteFileAtomic(p, models.PermissionFile, func(out io.Writer) error {
		csvWriter := gocsv.NewSafeCSVWriter(csv.NewWriter(out))
		for _, row := range raw.Rows {
			if err := csvWriter.Write(row); err != nil {
				return err
			}
		}
		csvWriter.Flush()
		return csvWriter.Error()
	})
	if err != nil {
		return "", fmt.Errorf("error writing raw dump: %w", err)
	}
	d.logger.Debug("Wrote raw extraction",
		logging.F(logging.FieldOutputFile, p),
		logging.F(logging.FieldCount, len(raw.Rows)))
	return p, nil
}

// PDFArchive keeps a copy of every fetched bulletin PDF.
type PDFArchive struct {
	dir    string
	logger logging.Logger
}

// NewPDFArchive creates a PDFArchive rooted at dir.
func NewPDFArchive(dir string, logger logging.Logger) *PDFArchive {
	return &PDFArchive{dir: dir, logger: logger}
}

// Path returns where the document fetched from location is archived. The
// bulletin date is taken from the published file name when possible.
func (a *PDFArchive) Path(location string) string {
	if date, err := locator.ParseFileName(location); err == nil {
		return filepath.Join(a.dir, dateutils.ToISODate(date)+".pdf")
	}
	name := path.Base(strings.ReplaceAll(location, "\\", "/"))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return filepath.Join(a.dir, name)
}

// Archive implements extractor.Archiver.
func (a *PDFArchive) Archive(location string, data []byte) error {
	p := a.Path(location)
	if err := fileutils.WriteFileAtomicBytes(p, data, models.PermissionFile); err != nil {
		return fmt.Errorf("error archiving %s: %w", location, err)
	}
	a.logger.Debug("Archived bulletin PDF",
		logging.F(logging.FieldFile, p),
		logging.F(logging.FieldBytes, len(data)))
	return nil
}
