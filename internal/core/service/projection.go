package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rl1809/inventory-reconciler/internal/core/domain"
)

const StatusAll = "All"

type TimePeriod string

const (
	PeriodAll        TimePeriod = "All"
	PeriodLast7Days  TimePeriod = "last7Days"
	PeriodLast30Days TimePeriod = "last30Days"
	PeriodCustom     TimePeriod = "custom"
)

type OrderFilter struct {
	WarehouseID string
	Status      string
	Period      TimePeriod
	From        time.Time
	To          time.Time
}

// ParseOrderFilter builds a filter from query-string values. A date-only "to" covers the whole day.
func ParseOrderFilter(status, period, from, to string) (OrderFilter, error) {
	f := OrderFilter{Status: strings.TrimSpace(status)}

	switch TimePeriod(strings.TrimSpace(period)) {
	case "", PeriodAll:
		f.Period = PeriodAll
	case PeriodLast7Days:
		f.Period = PeriodLast7Days
	case PeriodLast30Days:
		f.Period = PeriodLast30Days
	case PeriodCustom:
		f.Period = PeriodCustom
	default:
		return OrderFilter{}, fmt.Errorf("%w: unknown time period %q", ErrInvalidFilter, period)
	}

	if f.Status != "" && f.Status != StatusAll && !domain.OrderStatus(f.Status).Valid() {
		return OrderFilter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, status)
	}

	if f.Period != PeriodCustom {
		return f, nil
	}

	var err error
	if from = strings.TrimSpace(from); from != "" {
		if f.From, err = domain.ParseBargainDate(from); err != nil {
			return OrderFilter{}, fmt.Errorf("%w: from: %w", ErrInvalidFilter, err)
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if f.To, err = domain.ParseBargainDate(to); err != nil {
			return OrderFilter{}, fmt.Errorf("%w: to: %w", ErrInvalidFilter, err)
		}
		if len(to) == len("2006-01-02") {
			f.To = f.To.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return f, nil
}

// Project scopes orders to the filter's warehouse, applies status and time period filters,
// then sorts by bargain date, newest first. The input slice is not modified.
func Project(orders []domain.Order, f OrderFilter, now time.Time) []domain.Order {
	var since time.Time
	switch f.Period {
	case PeriodLast7Days:
		since = now.AddDate(0, 0, -7)
	case PeriodLast30Days:
		since = now.AddDate(0, 0, -30)
	}
	customRange := f.Period == PeriodCustom && !f.From.IsZero() && !f.To.IsZero()

	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.Warehouse != f.WarehouseID {
			continue
		}
		if f.Status != "" && f.Status != StatusAll && string(o.Status) != f.Status {
			continue
		}

		d := o.CompanyBargainDate
		if !since.IsZero() && d.Before(since) {
			continue
		}
		if customRange && (d.Before(f.From) || d.After(f.To)) {
			continue
		}
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompanyBargainDate.After(out[j].CompanyBargainDate)
	})
	return out
}
