// Package plantest provides a behavioural test suite shared by every
// plan.Store implementation.
package plantest

import (
	"context"
	"errors"
	"testing"
	"time"

	"quickplan/internal/calendar"
	"quickplan/internal/plan"
)

// RunStoreContract 对 newStore 返回的存储执行通用行为测试。
func RunStoreContract(t *testing.T, newStore func(t *testing.T) plan.Store) {
	t.Helper()

	t.Run("PlanLifecycle", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		p := &plan.Plan{Name: "Climbing trip", URLID: "aB3dE6gH", Description: "June"}
		if err := store.CreatePlan(ctx, p); err != nil {
			t.Fatalf("CreatePlan returned error: %v", err)
		}
		if p.ID == 0 || p.CreatedAt.IsZero() {
			t.Fatalf("CreatePlan did not fill id/created_at: %+v", p)
		}

		got, err := store.GetPlanByURLID(ctx, "aB3dE6gH")
		if err != nil {
			t.Fatalf("GetPlanByURLID returned error: %v", err)
		}
		if got.ID != p.ID || got.Name != "Climbing trip" || got.Description != "June" {
			t.Fatalf("unexpected plan: %+v", got)
		}
		if _, err := store.GetPlan(ctx, p.ID); err != nil {
			t.Fatalf("GetPlan returned error: %v", err)
		}

		dup := &plan.Plan{Name: "Other", URLID: "aB3dE6gH"}
		if err := store.CreatePlan(ctx, dup); !errors.Is(err, plan.ErrConflict) {
			t.Fatalf("expected conflict for duplicate url id, got %v", err)
		}

		if err := store.DeletePlan(ctx, p.ID); err != nil {
			t.Fatalf("DeletePlan returned error: %v", err)
		}
		if _, err := store.GetPlanByURLID(ctx, "aB3dE6gH"); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}
		if err := store.DeletePlan(ctx, p.ID); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("expected not found deleting twice, got %v", err)
		}
	})

	t.Run("Users", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		p := mustPlan(t, store, "usrPlan1")

		alice := &plan.User{PlanID: p.ID, WebID: "web-alice", Name: "Alice"}
		if err := store.CreateUser(ctx, alice); err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		bob := &plan.User{PlanID: p.ID, WebID: "web-bob", Name: "Bob"}
		if err := store.CreateUser(ctx, bob); err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		if err := store.CreateUser(ctx, &plan.User{PlanID: p.ID, WebID: "web-alice-2", Name: "Alice"}); !errors.Is(err, plan.ErrConflict) {
			t.Fatalf("expected conflict for duplicate name, got %v", err)
		}
		if err := store.CreateUser(ctx, &plan.User{PlanID: p.ID + 1000, WebID: "web-x", Name: "X"}); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("expected not found for unknown plan, got %v", err)
		}

		users, err := store.ListUsers(ctx, p.ID)
		if err != nil {
			t.Fatalf("ListUsers returned error: %v", err)
		}
		if len(users) != 2 || users[0].Name != "Alice" || users[1].Name != "Bob" {
			t.Fatalf("unexpected users: %+v", users)
		}

		got, err := store.GetUserByWebID(ctx, p.ID, "web-bob")
		if err != nil || got.ID != bob.ID {
			t.Fatalf("GetUserByWebID: %+v, %v", got, err)
		}
		if _, err := store.GetUserByWebID(ctx, p.ID, "missing"); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("expected not found for unknown web id, got %v", err)
		}
	})

	t.Run("Dates", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		p := mustPlan(t, store, "datePln1")
		user := &plan.User{PlanID: p.ID, WebID: "web-lyra", Name: "Lyra"}
		if err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}

		dates := []calendar.Date{
			calendar.NewDate(2024, time.September, 5),
			calendar.NewDate(2024, time.October, 20),
			calendar.NewDate(2024, time.February, 22),
			calendar.NewDate(2024, time.March, 21),
		}
		ids, err := store.CreateUserDates(ctx, user.ID, dates)
		if err != nil {
			t.Fatalf("CreateUserDates returned error: %v", err)
		}
		if len(ids) != len(dates) {
			t.Fatalf("expected %d ids, got %d", len(dates), len(ids))
		}
		for _, d := range dates {
			if _, err := store.GetUserDate(ctx, user.ID, d); err != nil {
				t.Fatalf("GetUserDate(%s) returned error: %v", d, err)
			}
		}

		dup := &plan.UserDate{UserID: user.ID, Date: dates[0]}
		if err := store.CreateUserDate(ctx, dup); !errors.Is(err, plan.ErrConflict) {
			t.Fatalf("expected conflict for duplicate date, got %v", err)
		}

		listed, err := store.ListPlanDates(ctx, p.ID, calendar.NewDate(2024, time.February, 1), calendar.NewDate(2024, time.March, 31))
		if err != nil {
			t.Fatalf("ListPlanDates returned error: %v", err)
		}
		if len(listed) != 2 || listed[0].Date != dates[2] || listed[1].Date != dates[3] || listed[0].UserName != "Lyra" {
			t.Fatalf("unexpected plan dates: %+v", listed)
		}

		existing, err := store.GetUserDate(ctx, user.ID, dates[1])
		if err != nil {
			t.Fatalf("GetUserDate returned error: %v", err)
		}
		if err := store.DeleteUserDate(ctx, existing.ID); err != nil {
			t.Fatalf("DeleteUserDate returned error: %v", err)
		}
		if _, err := store.GetUserDate(ctx, user.ID, dates[1]); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("expected not found after delete, got %v", err)
		}

		if err := store.DeletePlan(ctx, p.ID); err != nil {
			t.Fatalf("DeletePlan returned error: %v", err)
		}
		if _, err := store.GetUserDate(ctx, user.ID, dates[0]); !errors.Is(err, plan.ErrNotFound) {
			t.Fatalf("dates should be removed with their plan, got %v", err)
		}
	})
}

func mustPlan(t *testing.T, store plan.Store, urlID string) *plan.Plan {
	t.Helper()
	p := &plan.Plan{Name: "plan " + urlID, URLID: urlID}
	if err := store.CreatePlan(context.Background(), p); err != nil {
		t.Fatalf("CreatePlan returned error: %v", err)
	}
	return p
}
