package driver

import (
	"testing"
	"time"
)

func TestISOEncoder(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 123456000, time.UTC)
	tests := []struct {
		databaseType string
		value        any
		want         any
	}{
		{"DATE", at, "2024-03-09"},
		{"TIME", at, "14:05:06.123456"},
		{"TIMESTAMP", at, "2024-03-09T14:05:06.123456"},
		{"TIMESTAMP_NS", at, "2024-03-09T14:05:06.123456"},
		{"TIMESTAMPTZ", at, "2024-03-09T14:05:06.123456Z"},
		{"BLOB", []byte("raw"), "raw"},
		{"INTEGER", int32(7), int32(7)},
		{"VARCHAR", nil, nil},
	}
	for _, tt := range tests {
		got := ISOEncoder{}.Encode(Column{Name: "c", DatabaseType: tt.databaseType}, tt.value)
		if got != tt.want {
			t.Fatalf("Encode(%s) = %#v, want %#v", tt.databaseType, got, tt.want)
		}
	}
}

func TestRowMarshalJSON(t *testing.T) {
	columns := []Column{{Name: "d", DatabaseType: "DATE"}, {Name: "n", DatabaseType: "BIGINT"}}
	row := newRow([]any{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), int64(3)}, columns, columnIndex(columns))

	body, err := row.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	if string(body) != `["2024-01-02",3]` {
		t.Fatalf("MarshalJSON() = %s", body)
	}
}

func TestValueEncoderFunc(t *testing.T) {
	upper := ValueEncoderFunc(func(column Column, value any) any { return column.Name })
	columns := []Column{{Name: "a"}, {Name: "b"}}
	row := newRow([]any{1, 2}, columns, columnIndex(columns))
	got := row.Encode(upper)
	if got[0] != "a" || got[1] != "b" {
		t.Fatalf("Encode() = %v", got)
	}
}
