package driver

import (
	"strings"
	"time"
)

// ValueEncoder converts a column value into the form written to clients.
// It is chosen once at startup and passed to whatever renders rows.
type ValueEncoder interface {
	Encode(column Column, value any) any
}

// ValueEncoderFunc adapts a function to ValueEncoder.
type ValueEncoderFunc func(column Column, value any) any

func (f ValueEncoderFunc) Encode(column Column, value any) any {
	return f(column, value)
}

// ISOEncoder writes dates and times as ISO 8601 strings and bytes as text.
type ISOEncoder struct{}

func (ISOEncoder) Encode(column Column, value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return formatTime(strings.ToUpper(column.DatabaseType), typed)
	default:
		return value
	}
}

func formatTime(databaseType string, value time.Time) string {
	switch {
	case databaseType == "DATE":
		return value.Format(time.DateOnly)
	case databaseType == "TIME":
		return value.Format("15:04:05.999999")
	case databaseType == "TIMESTAMPTZ" || strings.Contains(databaseType, "WITH TIME ZONE"):
		return value.Format(time.RFC3339Nano)
	case strings.HasPrefix(databaseType, "TIMESTAMP"):
		return value.Format("2006-01-02T15:04:05.999999")
	default:
		return value.Format(time.RFC3339Nano)
	}
}
