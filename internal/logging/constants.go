package logging

// Standardized field names for structured logging.
// Keeping them in one place keeps the bulletin run logs greppable.
const (
	FieldDate       = "date"
	FieldURL        = "url"
	FieldFile       = "file_path"
	FieldStage      = "stage"
	FieldOutcome    = "outcome"
	FieldReason     = "reason"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldCount      = "count"
	FieldDropped    = "dropped_rows"
	FieldColumns    = "columns"
	FieldPages      = "pages"
	FieldTables     = "tables"
	FieldBytes      = "bytes"
	FieldRow        = "row"
	FieldTopic      = "topic"
	FieldOutputFile = "output_file"
	FieldUTCOffset  = "utc_offset"
	FieldCutoff     = "publish_cutoff"
	FieldLocalTime  = "local_time"
	FieldBatchID    = "batch_id"
	FieldRange      = "range"
)
