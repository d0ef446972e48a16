package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestComputeDeadline(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		priority TicketPriority
		workType WorkType
		want     time.Duration
	}{
		{"urgent video", TicketPriorityUrgent, WorkTypeVideo, 3 * time.Hour},
		{"urgent image", TicketPriorityUrgent, WorkTypeImage, 2 * time.Hour},
		{"urgent text", TicketPriorityUrgent, WorkTypeText, 2 * time.Hour},
		{"high", TicketPriorityHigh, WorkTypeVideo, 24 * time.Hour},
		{"medium", TicketPriorityMedium, WorkTypeImage, 72 * time.Hour},
		{"low", TicketPriorityLow, WorkTypeOther, 168 * time.Hour},
		{"unknown priority falls back to medium", TicketPriority("weird"), WorkTypeOther, 72 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDeadline(tt.priority, tt.workType, now)
			if !got.Equal(now.Add(tt.want)) {
				t.Errorf("expected %s, got %s", now.Add(tt.want), got)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		action Action
		status TicketStatus
		want   bool
	}{
		{ActionApproved, TicketStatusRequested, true},
		{ActionApproved, TicketStatusApproved, false},
		{ActionFinalApproved, TicketStatusPendingCreative, true},
		{ActionFinalApproved, TicketStatusRequested, false},
		{ActionRejected, TicketStatusRequested, true},
		{ActionRejected, TicketStatusPendingCreative, true},
		{ActionRejected, TicketStatusRejected, false},
		{ActionRejected, TicketStatusApproved, false},
		{ActionAssigned, TicketStatusApproved, true},
		{ActionAssigned, TicketStatusRequested, false},
		{ActionStarted, TicketStatusApproved, true},
		{ActionCompleted, TicketStatusInProgress, true},
		{ActionCompleted, TicketStatusApproved, false},
		{ActionConfirmed, TicketStatusCompleted, true},
		{ActionRevisionRequested, TicketStatusCompleted, true},
	}

	for _, tt := range tests {
		ticket := &Ticket{Status: tt.status}
		if got := CanTransition(tt.action, ticket); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.action, tt.status, got, tt.want)
		}
	}
}

func TestCanTransition_TerminalAndDeleted(t *testing.T) {
	confirmed := &Ticket{Status: TicketStatusCompleted, ConfirmedByRequester: true}
	if CanTransition(ActionConfirmed, confirmed) {
		t.Error("confirmed ticket must be terminal")
	}
	if !confirmed.IsTerminal() {
		t.Error("expected confirmed ticket to be terminal")
	}

	deleted := &Ticket{Status: TicketStatusRequested, IsDeleted: true}
	if CanTransition(ActionApproved, deleted) {
		t.Error("deleted ticket must not transition")
	}
}

func TestCheckSourceWrapsSentinel(t *testing.T) {
	err := CheckSource(ActionStarted, &Ticket{Status: TicketStatusRequested})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := CheckSource(ActionStarted, &Ticket{Status: TicketStatusApproved}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRoleCapabilities(t *testing.T) {
	if !CanApprove(RoleManager) || !CanApprove(RoleAdmin) {
		t.Error("managers and admins approve")
	}
	if CanApprove(RoleMember) {
		t.Error("members must not approve")
	}
	if CanRollback(RoleManager) {
		t.Error("only admins roll back")
	}
	if Role("owner").Valid() {
		t.Error("unexpected role accepted")
	}
}

func TestActorManagesDepartment(t *testing.T) {
	manager := Actor{UserID: "m1", Role: RoleManager, DepartmentID: strPtr("design")}
	if !manager.ManagesDepartment("design") {
		t.Error("manager should manage own department")
	}
	if manager.ManagesDepartment("video") {
		t.Error("manager should not manage another department")
	}
	admin := Actor{UserID: "a1", Role: RoleAdmin}
	if !admin.ManagesDepartment("video") {
		t.Error("admin manages every department")
	}
	member := Actor{UserID: "u1", Role: RoleMember, DepartmentID: strPtr("design")}
	if member.ManagesDepartment("design") {
		t.Error("member does not manage")
	}
}

func TestActorManagesProduct(t *testing.T) {
	user := &User{ID: "m1", Role: RoleManager, ProductIDs: []string{"app"}}
	manager := ActorFromUser(user)
	user.ProductIDs[0] = "changed"
	if !manager.ManagesProduct(strPtr("app")) {
		t.Error("manager should manage products they belong to")
	}
	if manager.ManagesProduct(strPtr("web")) || manager.ManagesProduct(nil) {
		t.Error("manager should not manage other or missing products")
	}
	member := Actor{UserID: "u1", Role: RoleMember, ProductIDs: []string{"app"}}
	if member.ManagesProduct(strPtr("app")) {
		t.Error("product members do not approve")
	}
}

func TestTicketValidate(t *testing.T) {
	now := time.Now()
	valid := &Ticket{Status: TicketStatusCompleted, Priority: TicketPriorityLow, AssigneeID: strPtr("u"), CompletedAt: &now}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]*Ticket{
		"unknown status":    {Status: "done", Priority: TicketPriorityLow},
		"early assignee":    {Status: TicketStatusRequested, Priority: TicketPriorityLow, AssigneeID: strPtr("u")},
		"missing completed": {Status: TicketStatusCompleted, Priority: TicketPriorityLow},
		"stray completed":   {Status: TicketStatusInProgress, Priority: TicketPriorityLow, CompletedAt: &now},
		"early confirm":     {Status: TicketStatusInProgress, Priority: TicketPriorityLow, ConfirmedByRequester: true},
	}
	for name, ticket := range cases {
		if err := ticket.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	deadline := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	original := &Ticket{
		ID:            "t1",
		Title:         "Banner",
		Status:        TicketStatusApproved,
		AssigneeID:    strPtr("u2"),
		Priority:      TicketPriorityHigh,
		WorkType:      WorkTypeImage,
		Deadline:      &deadline,
		DepartmentID:  "design",
		RevisionCount: 2,
	}

	snap := NewSnapshot(original)
	*original.AssigneeID = "mutated"
	if *snap.AssigneeID != "u2" {
		t.Fatalf("snapshot shares pointer with ticket: %s", *snap.AssigneeID)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded TicketSnapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	target := &Ticket{ID: "t1", Title: "Banner", Status: TicketStatusInProgress}
	if err := decoded.ApplyTo(target); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if target.Status != TicketStatusApproved || *target.AssigneeID != "u2" || target.RevisionCount != 2 {
		t.Errorf("unexpected restored ticket: %+v", target)
	}
	if !target.Deadline.Equal(deadline) {
		t.Errorf("deadline not restored: %v", target.Deadline)
	}
}

func TestSnapshotRejectsUnknownVersion(t *testing.T) {
	snap := TicketSnapshot{Version: 99, Status: TicketStatusRequested}
	if err := snap.ApplyTo(&Ticket{}); err == nil {
		t.Fatal("expected version error")
	}
}

func TestDispatchResultFlags(t *testing.T) {
	res := DispatchResult{Outcomes: []ChannelOutcome{
		{Channel: ChannelInApp, Status: OutcomeSent},
		{Channel: ChannelGroup, Status: OutcomeFailed, Reason: "timeout"},
		{Channel: ChannelEmail, Status: OutcomeSkipped},
	}}
	flags := res.Flags()
	if !flags.InApp || flags.Group || flags.Email {
		t.Errorf("unexpected flags: %+v", flags)
	}
	if o, ok := res.Outcome(ChannelGroup); !ok || o.Status != OutcomeFailed {
		t.Errorf("unexpected group outcome: %+v", o)
	}
	if !res.AnySent() {
		t.Error("expected AnySent")
	}
}
