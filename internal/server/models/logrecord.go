package models

import "time"

// LogRecord is one row of the store-backed log sink.
type LogRecord struct {
	Time    time.Time
	Level   string
	Message string
}
