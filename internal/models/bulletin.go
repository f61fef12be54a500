// Package models holds the data types shared by the bulletin pipeline.
package models

import (
	"time"
)

// BulletinRow is one city's entry in a daily bulletin.
type BulletinRow struct {
	City       string `csv:"city" json:"city"`
	Level      string `csv:"level" json:"level"`
	Index      int    `csv:"index" json:"index"`
	Pollutants string `csv:"pollutant" json:"pollutant"`
	Stations   string `csv:"stations" json:"stations"`
}

// BulletinTable is the normalized bulletin for a single civil date.
type BulletinTable struct {
	Date time.Time
	Rows []BulletinRow
}

// Len returns the number of rows in the table.
func (t BulletinTable) Len() int {
	return len(t.Rows)
}

// RawExtraction is the untyped cell matrix pulled out of a bulletin PDF.
// The first row is the header.
type RawExtraction struct {
	Source string
	Pages  int
	Rows   [][]string
}

// Header returns the first row, or nil when the matrix is empty.
func (r RawExtraction) Header() []string {
	if len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Body returns every row after the header.
func (r RawExtraction) Body() [][]string {
	if len(r.Rows) < 2 {
		return nil
	}
	return r.Rows[1:]
}
