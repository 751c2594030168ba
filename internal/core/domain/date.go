package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const displayDateLayout = "02-01-2006"

var bargainDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02",
}

// ParseBargainDate accepts the timestamp formats the store emits. Anything else is a data error.
func ParseBargainDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range bargainDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormatBargainDate renders DD-MM-YYYY.
func FormatBargainDate(t time.Time) (string, error) {
	if t.IsZero() {
		return "", ErrInvalidDate
	}
	return t.Format(displayDateLayout), nil
}
