// Package report derives attendance grades from the aggregated read-model.
// It never queries the store and never mutates the model it reads.
package report

import (
	"errors"

	"github.com/example/attendance-tracker/internal/application"
)

// AllUsers is the UserID of the system-wide summary report.
const AllUsers = "ALL"

// ErrNoRecords indicates the requested user has no attendance entry in the
// read-model. A user whose entry exists but is empty gets a zero-count report.
var ErrNoRecords = errors.New("report: no attendance records")

// Grade is the letter grade assigned to an attendance count.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// thresholds lists the lowest count earning each grade, best first.
var thresholds = []struct {
	min   int
	grade Grade
}{
	{20, GradeA},
	{15, GradeB},
	{10, GradeC},
	{5, GradeD},
}

// GradeFor returns the grade for an attendance count.
func GradeFor(count int) Grade {
	for _, t := range thresholds {
		if count >= t.min {
			return t.grade
		}
	}
	return GradeF
}

// Report is one derived grade line.
type Report struct {
	UserID          string `json:"user_id"`
	AttendanceCount int    `json:"attendance_count"`
	Grade           Grade  `json:"grade"`
}

// Generate builds reports from model. With an empty userID it returns one
// report per user present in the attendance projection, ordered by user id.
// Otherwise it returns the single report for userID, or ErrNoRecords.
func Generate(model application.ReadModel, userID string) ([]Report, error) {
	if userID != "" {
		records, ok := model.Attendance[userID]
		if !ok {
			return nil, ErrNoRecords
		}
		return []Report{newReport(userID, len(records))}, nil
	}

	ids := model.AttendanceUserIDs()
	reports := make([]Report, 0, len(ids))
	for _, id := range ids {
		reports = append(reports, newReport(id, len(model.Attendance[id])))
	}
	return reports, nil
}

// Summary returns the system-wide report. AttendanceCount is the total of
// all users' records; the grade uses the floored per-user mean so it stays
// on the per-user scale.
func Summary(model application.ReadModel) (Report, error) {
	if len(model.Attendance) == 0 {
		return Report{}, ErrNoRecords
	}

	total := 0
	for _, records := range model.Attendance {
		total += len(records)
	}
	return Report{
		UserID:          AllUsers,
		AttendanceCount: total,
		Grade:           GradeFor(total / len(model.Attendance)),
	}, nil
}

func newReport(userID string, count int) Report {
	return Report{UserID: userID, AttendanceCount: count, Grade: GradeFor(count)}
}
