/*
daily.go - Per-worker daily received/delivered cash

PURPOSE:
  For a worker and a calendar day, how much cash did the worker take over
  from colleagues, and how much did they hand on.

DELIVERED:
  Sum of handovers created from the worker's shifts dated that day, whatever
  their resolution.

RECEIVED (two sources, union, each handover counted once):
  1. Handovers claimed into one of the worker's shifts dated that day.
  2. Handovers addressed to the worker and resolved (status != pending)
     during that day, unless their receiving shift belongs to a different
     day (it is counted on that day instead). This includes a handover a
     manager confirmed on the worker's behalf: the cash was addressed to the
     worker and has left the pending state.

SEE ALSO:
  - handover.go: where received_at/to_shift_id are set
*/
package cashdesk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailySummaryCalculator computes DailySummary values.
type DailySummaryCalculator struct {
	deps
}

// SummaryFor returns the received/delivered totals of worker on day.
func (c *DailySummaryCalculator) SummaryFor(ctx context.Context, worker StaffID, day time.Time) (DailySummary, error) {
	d := Day(day)
	shifts, err := c.store.ListShifts(ctx, ShiftFilter{WorkerID: worker, Day: &d})
	if err != nil {
		return DailySummary{}, err
	}

	dayShifts := make(map[ShiftID]bool, len(shifts))
	ids := make([]ShiftID, 0, len(shifts))
	for _, s := range shifts {
		dayShifts[s.ID] = true
		ids = append(ids, s.ID)
	}

	out := DailySummary{
		WorkerID:  worker,
		Day:       d,
		Received:  decimal.Zero,
		Delivered: decimal.Zero,
		Net:       decimal.Zero,
	}

	if len(ids) > 0 {
		delivered, err := c.store.ListHandovers(ctx, HandoverFilter{FromShiftIDs: ids})
		if err != nil {
			return DailySummary{}, err
		}
		for _, h := range delivered {
			out.Delivered = out.Delivered.Add(h.Amount)
		}
	}

	seen := make(map[HandoverID]bool)
	if len(ids) > 0 {
		claimed, err := c.store.ListHandovers(ctx, HandoverFilter{ToShiftIDs: ids})
		if err != nil {
			return DailySummary{}, err
		}
		for _, h := range claimed {
			if h.Status != HandoverReceivedByStaff || seen[h.ID] {
				continue
			}
			seen[h.ID] = true
			out.Received = out.Received.Add(h.Amount)
		}
	}

	start, end := DayBounds(d)
	direct, err := c.store.ListHandovers(ctx, HandoverFilter{
		ToStaffID:    worker,
		Statuses:     []HandoverStatus{HandoverReceivedByStaff, HandoverReceivedByManager},
		ReceivedFrom: &start,
		ReceivedTo:   &end,
	})
	if err != nil {
		return DailySummary{}, err
	}
	for _, h := range direct {
		if seen[h.ID] {
			continue
		}
		if h.ToShiftID != "" && !dayShifts[h.ToShiftID] {
			other, err := c.store.GetShift(ctx, h.ToShiftID)
			if err != nil {
				return DailySummary{}, err
			}
			if !SameDay(other.ShiftDate, d) {
				continue
			}
		}
		seen[h.ID] = true
		out.Received = out.Received.Add(h.Amount)
	}

	out.Net = out.Received.Sub(out.Delivered)
	return out, nil
}
