package application

import (
	"context"
	"strings"

	"gym-membership/internal/usecase"
)

// DefaultPlans is the starter catalog installed by `gymctl plans seed`.
var DefaultPlans = []usecase.PlanInput{
	{Name: "Monthly", Duration: "month", Price: 39000, Features: []string{"Gym floor access", "Locker room"}},
	{Name: "Quarterly", Duration: "3 months", Price: 105000, Features: []string{"Gym floor access", "Locker room", "Group classes"}, Popular: true},
	{Name: "Half-Year", Duration: "6 months", Price: 200000, Features: []string{"Gym floor access", "Locker room", "Group classes", "1 PT session"}},
	{Name: "Annual", Duration: "year", Price: 380000, Features: []string{"Gym floor access", "Locker room", "Group classes", "4 PT sessions", "Sauna"}},
}

// SeedPlans creates every plan whose name is not in the catalog yet and returns
// how many were added. Running it twice adds nothing.
func SeedPlans(ctx context.Context, plans usecase.PlanUseCase, catalog []usecase.PlanInput) (int, error) {
	existing, err := plans.List(ctx, true)
	if err != nil {
		return 0, err
	}
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[strings.ToLower(p.Name)] = true
	}
	added := 0
	for _, in := range catalog {
		if have[strings.ToLower(in.Name)] {
			continue
		}
		if _, err := plans.Create(ctx, in); err != nil {
			return added, err
		}
		have[strings.ToLower(in.Name)] = true
		added++
	}
	return added, nil
}
