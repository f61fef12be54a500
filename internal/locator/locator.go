// Package locator derives where the bulletin for a given date is published.
package locator

import (
	"fmt"
	"path"
	"strings"
	"time"

	"fjacquet/aqi-bulletin/internal/dateutils"
)

const (
	// DefaultBaseURL is the directory the bulletins are uploaded to.
	DefaultBaseURL = "https://cpcb.nic.in/upload/Downloads"

	filePrefix = "AQI_Bulletin_"
	fileSuffix = ".pdf"
)

// Locator maps calendar dates to bulletin locations under a base path.
type Locator struct {
	base string
}

// New returns a Locator rooted at base. A trailing slash is ignored.
func New(base string) *Locator {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	return &Locator{base: strings.TrimRight(base, "/")}
}

// Base returns the normalized base path.
func (l *Locator) Base() string {
	return l.base
}

// URL returns the location of the bulletin for date.
func (l *Locator) URL(date time.Time) string {
	return l.base + "/" + FileName(date)
}

// FileName returns the published file name for date.
func FileName(date time.Time) string {
	return filePrefix + dateutils.Compact(date) + fileSuffix
}

// ParseFileName recovers the bulletin date from a file name or path such as
// ".../AQI_Bulletin_20240501.pdf".
func ParseFileName(name string) (time.Time, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(strings.ToLower(base), fileSuffix) {
		return time.Time{}, fmt.Errorf("%q is not a bulletin file name", name)
	}
	digits := base[len(filePrefix) : len(base)-len(fileSuffix)]
	date, err := time.Parse(dateutils.DateLayoutCompact, digits)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q does not carry a YYYYMMDD date: %w", name, err)
	}
	return date, nil
}
