package report

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/fleet"
	"github.com/example/attendance-tracker/internal/testfixtures"
)

func modelWithCounts(counts map[string]int) application.ReadModel {
	model := application.NewReadModel()
	for userID, n := range counts {
		model.Users[userID] = application.User{ID: userID, Role: application.RoleUser}
		records := make(map[string]application.AttendanceRecord, n)
		for _, date := range testfixtures.Dates(testfixtures.ReferenceTime(), n) {
			records[date] = application.AttendanceRecord{ID: date, Date: date, Status: application.DefaultAttendanceStatus}
		}
		model.Attendance[userID] = records
	}
	return model
}

func TestGradeFor_Boundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		count int
		want  Grade
	}{
		{0, GradeF},
		{4, GradeF},
		{5, GradeD},
		{9, GradeD},
		{10, GradeC},
		{14, GradeC},
		{15, GradeB},
		{19, GradeB},
		{20, GradeA},
		{25, GradeA},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(fmt.Sprintf("count_%d", tc.count), func(t *testing.T) {
			t.Parallel()
			if got := GradeFor(tc.count); got != tc.want {
				t.Fatalf("expected grade %s for %d, got %s", tc.want, tc.count, got)
			}

			model := modelWithCounts(map[string]int{"u1": tc.count})
			reports, err := Generate(model, "u1")
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if len(reports) != 1 || reports[0].Grade != tc.want || reports[0].AttendanceCount != tc.count {
				t.Fatalf("unexpected report: %+v", reports)
			}
		})
	}
}

func TestGenerate_AllUsersOrderedByID(t *testing.T) {
	t.Parallel()

	model := modelWithCounts(map[string]int{"carol": 3, "alice": 21, "bob": 12})
	// A user without an attendance entry is not reported.
	model.Users["dave"] = application.User{ID: "dave"}

	reports, err := Generate(model, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := []Report{
		{UserID: "alice", AttendanceCount: 21, Grade: GradeA},
		{UserID: "bob", AttendanceCount: 12, Grade: GradeC},
		{UserID: "carol", AttendanceCount: 3, Grade: GradeF},
	}
	if !reflect.DeepEqual(reports, want) {
		t.Fatalf("expected %+v, got %+v", want, reports)
	}
}

func TestGenerate_EmptyModel(t *testing.T) {
	t.Parallel()

	reports, err := Generate(application.NewReadModel(), "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected no reports, got %+v", reports)
	}
}

func TestGenerate_UnknownUser(t *testing.T) {
	t.Parallel()

	model := modelWithCounts(map[string]int{"u1": 3})
	reports, err := Generate(model, "ghost")
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords, got %v", err)
	}
	if reports != nil {
		t.Fatalf("expected nil reports, got %+v", reports)
	}

	// An empty entry is a zero-count report, not an error.
	model.Attendance["u2"] = map[string]application.AttendanceRecord{}
	reports, err = Generate(model, "u2")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reports[0].AttendanceCount != 0 || reports[0].Grade != GradeF {
		t.Fatalf("unexpected zero-count report: %+v", reports[0])
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	t.Parallel()

	model := modelWithCounts(map[string]int{"a": 20, "b": 7, "c": 15})
	before := model.Clone()

	first, err := Generate(model, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	second, err := Generate(model, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical reports, got %+v and %+v", first, second)
	}
	if !reflect.DeepEqual(model, before) {
		t.Fatal("expected read-model to be untouched")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()

	t.Run("uses floored mean for grade", func(t *testing.T) {
		t.Parallel()
		// 20 + 9 = 29 records, mean 14.5 floors to 14.
		model := modelWithCounts(map[string]int{"a": 20, "b": 9})
		got, err := Summary(model)
		if err != nil {
			t.Fatalf("Summary failed: %v", err)
		}
		want := Report{UserID: AllUsers, AttendanceCount: 29, Grade: GradeC}
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("empty model", func(t *testing.T) {
		t.Parallel()
		if _, err := Summary(application.NewReadModel()); !errors.Is(err, ErrNoRecords) {
			t.Fatalf("expected ErrNoRecords, got %v", err)
		}
	})
}

func TestReports_FromLiveProjection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := testfixtures.NewMemoryStore(t)
	seeder := testfixtures.NewSeeder(t, store)
	agg := fleet.New(fleet.Config{Store: store})
	t.Cleanup(agg.Stop)

	flush := func() {
		t.Helper()
		flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := agg.Flush(flushCtx); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
	}

	seeder.User(testfixtures.WithUserID("A"))
	seeder.AttendanceDays("A", 20)
	if err := agg.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	flush()

	reports, err := Generate(agg.Snapshot(), "A")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if reports[0].AttendanceCount != 20 || reports[0].Grade != GradeA {
		t.Fatalf("expected 20 records graded A, got %+v", reports[0])
	}

	seeder.User(testfixtures.WithUserID("B"))
	seeder.AttendanceDays("B", 15)
	flush()

	reports, err = Generate(agg.Snapshot(), "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	want := []Report{
		{UserID: "A", AttendanceCount: 20, Grade: GradeA},
		{UserID: "B", AttendanceCount: 15, Grade: GradeB},
	}
	if !reflect.DeepEqual(reports, want) {
		t.Fatalf("expected %+v, got %+v", want, reports)
	}

	seeder.DeleteUser("B")
	flush()

	reports, err = Generate(agg.Snapshot(), "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !reflect.DeepEqual(reports, want[:1]) {
		t.Fatalf("expected only A after removing B, got %+v", reports)
	}
	if _, err := Generate(agg.Snapshot(), "B"); !errors.Is(err, ErrNoRecords) {
		t.Fatalf("expected ErrNoRecords for removed user, got %v", err)
	}
}
