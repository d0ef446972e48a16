package service

import (
	"context"
	"testing"

	"github.com/spec-kit/request-desk/internal/domain"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input TicketCreateInput
		code  string
	}{
		{"missing title", TicketCreateInput{DepartmentID: "d1", Title: "  "}, apperrors.CodeValidation},
		{"missing department", TicketCreateInput{Title: "Banner"}, apperrors.CodeValidation},
		{"unknown priority", TicketCreateInput{DepartmentID: "d1", Title: "Banner", Priority: "asap"}, apperrors.CodeValidation},
		{"unknown work type", TicketCreateInput{DepartmentID: "d1", Title: "Banner", WorkType: "hologram"}, apperrors.CodeValidation},
		{"unknown department", TicketCreateInput{DepartmentID: "d9", Title: "Banner"}, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tickets.CreateTicket(ctx, f.requester, tt.input)
			expectCode(t, err, tt.code)
		})
	}

	ticket, err := f.tickets.CreateTicket(ctx, f.requester, TicketCreateInput{DepartmentID: "d1", Title: " Banner "})
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Title != "Banner" || ticket.Priority != domain.TicketPriorityMedium || ticket.WorkType != domain.WorkTypeOther {
		t.Fatalf("unexpected defaults %+v", ticket)
	}
	if ticket.Deadline != nil {
		t.Fatal("deadline is only set on approval")
	}
}

func TestTicketVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	for _, actor := range []domain.Actor{f.requester, f.manager, f.admin} {
		if _, err := f.tickets.GetTicket(ctx, actor, ticket.ID); err != nil {
			t.Fatalf("%s should see the ticket: %v", actor.UserID, err)
		}
	}
	for _, actor := range []domain.Actor{f.outsider, f.designer} {
		_, err := f.tickets.GetTicket(ctx, actor, ticket.ID)
		expectCode(t, err, apperrors.CodeForbidden)
	}

	if _, err := f.tickets.AddCollaborator(ctx, f.requester, ticket.ID, "dsg"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.tickets.GetTicket(ctx, f.designer, ticket.ID); err != nil {
		t.Fatalf("collaborator should see the ticket: %v", err)
	}
	_, err := f.tickets.AddCollaborator(ctx, f.requester, ticket.ID, "dsg")
	expectCode(t, err, apperrors.CodeConflict)
	_, err = f.tickets.AddCollaborator(ctx, f.designer, ticket.ID, "adm")
	expectCode(t, err, apperrors.CodeForbidden)

	if err := f.tickets.RemoveCollaborator(ctx, f.manager, ticket.ID, "dsg"); err != nil {
		t.Fatal(err)
	}
	_, err = f.tickets.GetTicket(ctx, f.designer, ticket.ID)
	expectCode(t, err, apperrors.CodeForbidden)
}

func TestListTicketsScopesByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	f.createTicket(t, "d2", domain.TicketPriorityMedium)

	all, err := f.tickets.ListTickets(ctx, f.admin, TicketListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("admin should see every ticket, got %d", len(all))
	}

	scoped, err := f.tickets.ListTickets(ctx, f.manager, TicketListFilter{DepartmentID: strPtr("d2")})
	if err != nil {
		t.Fatal(err)
	}
	if len(scoped) != 1 || scoped[0].ID != mine.ID {
		t.Fatalf("manager is scoped to their department, got %d tickets", len(scoped))
	}

	own, err := f.tickets.ListTickets(ctx, f.requester, TicketListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 2 {
		t.Fatalf("requester should see their own tickets, got %d", len(own))
	}
	none, err := f.tickets.ListTickets(ctx, f.designer, TicketListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("members only see their own requests, got %d", len(none))
	}
}

func TestSoftDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	expectCode(t, f.tickets.SoftDelete(ctx, f.manager, ticket.ID), apperrors.CodeForbidden)

	if _, err := f.workflow.Approve(ctx, f.manager, ticket.ID); err != nil {
		t.Fatal(err)
	}
	expectCode(t, f.tickets.SoftDelete(ctx, f.requester, ticket.ID), apperrors.CodeForbidden)

	if err := f.tickets.SoftDelete(ctx, f.admin, ticket.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	expectCode(t, f.tickets.SoftDelete(ctx, f.admin, ticket.ID), apperrors.CodeNotFound)

	entries := f.history(t, ticket.ID)
	if last := entries[len(entries)-1]; last.Action != domain.ActionDeleted {
		t.Fatalf("deletion should be audited, got %s", last.Action)
	}
}

func TestCommentThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)
	other := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	_, err := f.tickets.AddComment(ctx, f.requester, ticket.ID, "   ", nil)
	expectCode(t, err, apperrors.CodeValidation)

	root, err := f.tickets.AddComment(ctx, f.requester, ticket.ID, "Please use the new palette", nil)
	if err != nil {
		t.Fatal(err)
	}
	reply, err := f.tickets.AddComment(ctx, f.manager, ticket.ID, "Noted", &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reply.ParentID == nil || *reply.ParentID != root.ID {
		t.Fatalf("reply should reference its parent, got %v", reply.ParentID)
	}

	_, err = f.tickets.AddComment(ctx, f.requester, other.ID, "wrong thread", &root.ID)
	expectCode(t, err, apperrors.CodeValidation)
	_, err = f.tickets.AddComment(ctx, f.outsider, ticket.ID, "drive-by", nil)
	expectCode(t, err, apperrors.CodeForbidden)

	thread, err := f.tickets.ListComments(ctx, f.manager, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(thread) != 2 || thread[0].ID != root.ID {
		t.Fatalf("expected thread in creation order, got %d comments", len(thread))
	}
	if got := f.stored(t, ticket.ID).Status; got != domain.TicketStatusRequested {
		t.Fatalf("comments must not change status, got %s", got)
	}
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	_, err := f.tickets.AddAttachment(ctx, f.requester, ticket.ID, AttachmentInput{FileName: "brief.pdf"})
	expectCode(t, err, apperrors.CodeValidation)
	_, err = f.tickets.AddAttachment(ctx, f.requester, ticket.ID, AttachmentInput{StorageKey: "k", FileName: "brief.pdf", SizeBytes: -1})
	expectCode(t, err, apperrors.CodeValidation)

	att, err := f.tickets.AddAttachment(ctx, f.requester, ticket.ID, AttachmentInput{StorageKey: "uploads/brief.pdf", FileName: "brief.pdf", MimeType: "application/pdf", SizeBytes: 2048})
	if err != nil {
		t.Fatal(err)
	}
	list, err := f.tickets.ListAttachments(ctx, f.manager, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != att.ID || list[0].UploadedByID != "req" {
		t.Fatalf("unexpected attachments %+v", list)
	}
}

func TestHistoryRequiresVisibility(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t, "d1", domain.TicketPriorityMedium)

	_, err := f.tickets.History(context.Background(), f.outsider, ticket.ID)
	expectCode(t, err, apperrors.CodeForbidden)

	entries, err := f.tickets.History(context.Background(), f.requester, ticket.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Snapshot.Status != domain.TicketStatusRequested {
		t.Fatalf("unexpected history %+v", entries)
	}
}
