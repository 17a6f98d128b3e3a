package application

import (
	"reflect"
	"testing"
)

func TestReadModelCloneIsDeep(t *testing.T) {
	t.Parallel()

	model := NewReadModel()
	model.Users["u1"] = User{ID: "u1", Role: RoleUser}
	model.Attendance["u1"] = map[string]AttendanceRecord{"2024-05-01": {ID: "2024-05-01", Date: "2024-05-01", Status: "present"}}
	model.Leave["u1"] = map[string]LeaveRequest{"2024-05-02": {ID: "2024-05-02", Status: LeaveStatusPending}}
	model.Revision = 7

	clone := model.Clone()
	clone.Attendance["u1"]["2024-05-01"] = AttendanceRecord{Status: "absent"}
	clone.Leave["u1"]["2024-05-03"] = LeaveRequest{}
	delete(clone.Users, "u1")

	if model.Attendance["u1"]["2024-05-01"].Status != "present" {
		t.Fatalf("expected original attendance untouched")
	}
	if len(model.Leave["u1"]) != 1 {
		t.Fatalf("expected original leave untouched, got %d entries", len(model.Leave["u1"]))
	}
	if _, ok := model.Users["u1"]; !ok {
		t.Fatalf("expected original users untouched")
	}
	if clone.Revision != 7 {
		t.Fatalf("expected revision to be copied, got %d", clone.Revision)
	}
}

func TestReadModelOrdering(t *testing.T) {
	t.Parallel()

	model := NewReadModel()
	for _, id := range []string{"carol", "alice", "bob"} {
		model.Users[id] = User{ID: id}
	}
	model.Attendance["bob"] = map[string]AttendanceRecord{
		"2024-05-03": {ID: "2024-05-03"},
		"2024-05-01": {ID: "2024-05-01"},
	}

	if got := model.UserIDs(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Fatalf("unexpected user order: %v", got)
	}
	if got := model.AttendanceUserIDs(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Fatalf("unexpected attendance users: %v", got)
	}
	records := model.SortedAttendance("bob")
	if len(records) != 2 || records[0].ID != "2024-05-01" {
		t.Fatalf("unexpected attendance order: %v", records)
	}
	if got := model.SortedLeave("nobody"); len(got) != 0 {
		t.Fatalf("expected no leave for unknown user, got %v", got)
	}
}

func TestLeaveStatus(t *testing.T) {
	t.Parallel()

	if !LeaveStatusApproved.IsDecision() || !LeaveStatusRejected.IsDecision() {
		t.Fatal("expected approved and rejected to be decisions")
	}
	if LeaveStatusPending.IsDecision() {
		t.Fatal("expected pending not to be a decision")
	}
	if LeaveStatus("maybe").Valid() {
		t.Fatal("expected unknown status to be invalid")
	}
}
