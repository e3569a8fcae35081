package devserver

import (
	"context"
	"fmt"

	"github.com/srmsweets/hrportal/internal/models"
)

var seedEmployees = []models.Employee{
	{EmployeeID: "E100", Name: "Ravi Kumar", Branch: "Chennai"},
	{EmployeeID: "E200", Name: "Anita Rao", Branch: "Bengaluru"},
	{EmployeeID: "E300", Name: "Priya Menon", Branch: "Kochi"},
	{EmployeeID: "E400", Name: "Arjun Das", Branch: "Hyderabad"},
}

// Seed fills an empty database with employees, pending requests and two
// groups owned by hr. It does nothing when groups already exist.
func (s *Store) Seed(ctx context.Context, hr models.Identity) error {
	empty, err := s.Empty(ctx)
	if err != nil || !empty {
		return err
	}

	for _, e := range seedEmployees {
		if err := s.UpsertEmployee(ctx, e); err != nil {
			return err
		}
	}
	for _, r := range []struct{ employee, kind, status string }{
		{"E100", "LEAVE", "PENDING"},
		{"E300", "ATTENDANCE", "PENDING"},
		{"E200", "LEAVE", "APPROVED"},
	} {
		if _, err := s.AddRequest(ctx, r.employee, r.kind, r.status); err != nil {
			return err
		}
	}

	managers, err := s.CreateGroup(ctx, models.CreateGroupInput{
		Name:      "Branch Managers",
		Members:   []string{"E100", "E200", hr.UserID},
		CreatedBy: hr.UserID,
	})
	if err != nil {
		return fmt.Errorf("seed group: %w", err)
	}
	for _, m := range []struct{ id, name, content string }{
		{hr.UserID, hr.DisplayName, "Please share this week's attendance summary."},
		{"E100", "Ravi Kumar", "Chennai summary uploaded."},
		{"E200", "Anita Rao", "Bengaluru will send ours by noon."},
	} {
		if _, err := s.SendMessage(ctx, managers.ID, m.id, m.name, m.content); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}

	if _, err := s.CreateGroup(ctx, models.CreateGroupInput{
		Name:      "Payroll Desk",
		Members:   []string{"E300", hr.UserID},
		CreatedBy: "E300",
	}); err != nil {
		return fmt.Errorf("seed group: %w", err)
	}
	return nil
}
