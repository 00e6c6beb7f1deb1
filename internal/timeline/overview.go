// ABOUTME: Aggregates milestone records into the timeline overview
// ABOUTME: Counts by status relative to a given calendar day

package timeline

import "github.com/2389/airway-api/internal/store"

// Overview summarises milestones as of one calendar day.
type Overview struct {
	TotalMilestones     int         `json:"total_milestones"`
	CompletedMilestones int         `json:"completed_milestones"`
	UpcomingMilestones  int         `json:"upcoming_milestones"`
	OverdueMilestones   int         `json:"overdue_milestones"`
	NextDeadline        *store.Date `json:"next_deadline"`
}

// Summarize computes the overview of milestones as of today.
//
// A milestone due today that is not completed is neither upcoming nor
// overdue, but it is a candidate for NextDeadline.
func Summarize(milestones []*store.Milestone, today store.Date) Overview {
	var ov Overview
	ov.TotalMilestones = len(milestones)

	for _, m := range milestones {
		if m.Fields.Completed {
			ov.CompletedMilestones++
			continue
		}

		due := m.Fields.DueDate
		switch {
		case due.After(today):
			ov.UpcomingMilestones++
		case due.Before(today):
			ov.OverdueMilestones++
		}

		if !due.Before(today) && (ov.NextDeadline == nil || due.Before(*ov.NextDeadline)) {
			next := due
			ov.NextDeadline = &next
		}
	}

	return ov
}
