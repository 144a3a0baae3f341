package core

import (
	"testing"
	"time"
)

func TestNormalizeTime(t *testing.T) {
	want := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	rome := time.FixedZone("CET", 3600)

	cases := []struct {
		name string
		in   any
		want *time.Time
	}{
		{"time", want.In(rome), &want},
		{"rfc3339", "2024-01-02T10:30:00Z", &want},
		{"rfc3339 offset", "2024-01-02T11:30:00+01:00", &want},
		{"unix millis", want.UnixMilli(), &want},
		{"json float millis", float64(want.UnixMilli()), &want},
		{"seconds map", map[string]any{"seconds": float64(want.Unix()), "nanos": float64(0)}, &want},
		{"firestore map", map[string]any{"_seconds": want.Unix(), "_nanoseconds": 0}, &want},
		{"nil", nil, nil},
		{"empty string", "", nil},
		{"garbage", "yesterday", nil},
		{"zero time", time.Time{}, nil},
		{"unsupported", true, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeTime(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(*tc.want) || got.Location() != time.UTC {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
