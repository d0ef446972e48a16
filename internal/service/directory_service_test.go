package service

import (
	"context"
	"slices"
	"testing"

	"github.com/spec-kit/request-desk/internal/domain"
	apperrors "github.com/spec-kit/request-desk/pkg/util/errorutil"
)

func TestCreateDepartment(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store)
	ctx := context.Background()

	_, err := dir.CreateDepartment(ctx, f.manager, "Sales", "", nil)
	expectCode(t, err, apperrors.CodeForbidden)
	_, err = dir.CreateDepartment(ctx, f.admin, " ", "", nil)
	expectCode(t, err, apperrors.CodeValidation)
	_, err = dir.CreateDepartment(ctx, f.admin, "Sales", "", strPtr("dsg"))
	expectCode(t, err, apperrors.CodeValidation)
	_, err = dir.CreateDepartment(ctx, f.admin, "Sales", "", strPtr("ghost"))
	expectCode(t, err, apperrors.CodeNotFound)

	dept, err := dir.CreateDepartment(ctx, f.admin, "Sales", "Field teams", strPtr("fin"))
	if err != nil {
		t.Fatal(err)
	}
	depts, err := dir.ListDepartments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(depts) != 3 {
		t.Fatalf("expected three departments, got %d", len(depts))
	}

	ticket, err := f.tickets.CreateTicket(ctx, f.requester, TicketCreateInput{DepartmentID: dept.ID, Title: "Trade show booth"})
	if err != nil {
		t.Fatal(err)
	}
	if !ticket.HasSecondStage() {
		t.Fatal("tickets of the new department need a final approval")
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	dir := NewDirectoryService(f.store)
	ctx := context.Background()

	tests := []struct {
		name  string
		actor domain.Actor
		input UserCreateInput
		code  string
	}{
		{"non admin", f.manager, UserCreateInput{Name: "Sam"}, apperrors.CodeForbidden},
		{"missing name", f.admin, UserCreateInput{}, apperrors.CodeValidation},
		{"bad email", f.admin, UserCreateInput{Name: "Sam", Email: "not-an-email"}, apperrors.CodeValidation},
		{"bad role", f.admin, UserCreateInput{Name: "Sam", Role: "owner"}, apperrors.CodeValidation},
		{"manager without department", f.admin, UserCreateInput{Name: "Sam", Role: domain.RoleManager}, apperrors.CodeValidation},
		{"unknown department", f.admin, UserCreateInput{Name: "Sam", DepartmentID: strPtr("d9")}, apperrors.CodeNotFound},
		{"duplicate email", f.admin, UserCreateInput{Name: "Sam", Email: "Milo@Example.com"}, apperrors.CodeConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.CreateUser(ctx, tt.actor, tt.input)
			expectCode(t, err, tt.code)
		})
	}

	user, err := dir.CreateUser(ctx, f.admin, UserCreateInput{Name: "Sam", Email: "sam@example.com", DepartmentID: strPtr("d1"), EmailNotifications: true})
	if err != nil {
		t.Fatal(err)
	}
	if user.Role != domain.RoleMember || !user.CanReceiveWork() || !user.EmailNotifications {
		t.Fatalf("unexpected user %+v", user)
	}

	owner, err := dir.CreateUser(ctx, f.admin, UserCreateInput{Name: "Pia", Role: domain.RoleManager, DepartmentID: strPtr("d2"), ProductIDs: []string{" app ", "web", "app", ""}})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(owner.ProductIDs, []string{"app", "web"}) {
		t.Fatalf("product ids should be trimmed and deduplicated, got %v", owner.ProductIDs)
	}
	if !domain.ActorFromUser(owner).ManagesProduct(strPtr("web")) {
		t.Fatal("product membership should reach the actor")
	}

	noEmail, err := dir.CreateUser(ctx, f.admin, UserCreateInput{Name: "Kim", EmailNotifications: true})
	if err != nil {
		t.Fatal(err)
	}
	if noEmail.EmailNotifications {
		t.Fatal("email notifications need an address")
	}
	got, err := dir.GetUser(ctx, noEmail.ID)
	if err != nil || got.Name != "Kim" {
		t.Fatalf("get user: %v %+v", err, got)
	}
}
