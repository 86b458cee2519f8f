/*
query.go - WorkLog listing for reporting

PURPOSE:
  Answers filtered, paginated listing queries over worklogs. The filter
  semantics derive from the same claim rule as eligibility:

    REMITTED   every live segment is claimed by a PAID remittance
    UNREMITTED at least one segment is unclaimed or claimed by a non-PAID
               remittance, or the worklog has no segments at all

  Partial payment is UNREMITTED: a worklog with three PAID segments and two
  outstanding ones still shows up as unpaid work. The amount reported is
  always the full total (all live segments plus linked adjustments), never
  merely the unpaid remainder.
*/
package settlement

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// QueryService answers worklog listing queries.
type QueryService struct {
	Store Store
}

// List returns the page of worklogs matching the filter and the total number
// of matches before paging. skip below zero is treated as zero; limit of zero
// or less means no page cap.
func (q *QueryService) List(ctx context.Context, filter WorkLogFilter, skip, limit int) ([]WorkLogListing, int, error) {
	details, err := q.Store.LoadWorkLogDetails(ctx)
	if err != nil {
		return nil, 0, err
	}

	var matches []WorkLogListing
	for _, d := range details {
		listing := classify(d)
		switch filter {
		case FilterRemitted:
			if !listing.Remitted {
				continue
			}
		case FilterUnremitted:
			if listing.Remitted {
				continue
			}
		}
		matches = append(matches, listing)
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].WorkLog, matches[j].WorkLog
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	total := len(matches)

	if skip < 0 {
		skip = 0
	}
	if skip >= total {
		return []WorkLogListing{}, total, nil
	}
	page := matches[skip:]
	if limit > 0 && len(page) > limit {
		page = page[:limit]
	}

	return page, total, nil
}

// classify derives the listing view for one worklog. Soft-deleted segments
// count for neither the amount nor the remitted decision.
func classify(d WorkLogDetail) WorkLogListing {
	total := decimal.Zero
	live := 0
	paid := 0

	for _, seg := range d.Segments {
		if seg.Deleted() {
			continue
		}
		live++
		total = total.Add(seg.Gross())
		if d.ClaimStatus[seg.ID] == RemittancePaid {
			paid++
		}
	}

	for _, adj := range d.Adjustments {
		total = total.Add(adj.Signed())
	}

	return WorkLogListing{
		WorkLog:     d.WorkLog,
		TotalAmount: total,
		Remitted:    live > 0 && paid == live,
	}
}
