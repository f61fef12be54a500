package models

// Canonical column names of a normalized bulletin, in output order.
const (
	ColumnCity      = "city"
	ColumnLevel     = "level"
	ColumnIndex     = "index"
	ColumnPollutant = "pollutant"
	ColumnStations  = "stations"
)

// CanonicalColumns is the fixed header of every persisted bulletin record.
var CanonicalColumns = []string{
	ColumnCity,
	ColumnLevel,
	ColumnIndex,
	ColumnPollutant,
	ColumnStations,
}

// Canonical pollutant tokens.
const (
	PollutantO3   = "O3"
	PollutantCO   = "CO"
	PollutantNO2  = "NO2"
	PollutantSO2  = "SO2"
	PollutantPM10 = "PM10"
	PollutantPM25 = "PM2.5"
)

// File permissions
const (
	PermissionFile      = 0644
	PermissionDirectory = 0750
)
