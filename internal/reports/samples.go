// ABOUTME: Sample reports loaded into a fresh registry
// ABOUTME: Mirrors the demonstration data the community app ships with

package reports

import "time"

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Samples returns the demonstration reports.
func Samples() []Report {
	return []Report{
		{
			ID:            "RPT-001",
			Title:         "Road Repair Needed",
			Description:   "Potholes on KN 15 Ave need urgent attention. The road has become dangerous for both vehicles and pedestrians.",
			Category:      "infrastructure",
			Status:        StatusPending,
			Priority:      PriorityHigh,
			District:      "Gasabo",
			Sector:        "Kacyiru",
			Location:      "KN 15 Ave, near Nakumatt",
			SubmittedBy:   "John Doe",
			SubmittedDate: mustTime("2024-11-25T10:30:00Z"),
			AssignedTo:    "Marie Chantal Rwakazina",
			LastUpdate:    mustTime("2024-11-25T14:20:00Z"),
			Comments:      []Comment{},
		},
		{
			ID:            "RPT-002",
			Title:         "Street Light Not Working",
			Description:   "Multiple street lights along KG 203 St are not functioning, creating safety concerns.",
			Category:      "infrastructure",
			Status:        StatusInProgress,
			Priority:      PriorityMedium,
			District:      "Kicukiro",
			Sector:        "Gatenga",
			Location:      "KG 203 St, Gatenga Commercial Center",
			SubmittedBy:   "Alice Uwimana",
			SubmittedDate: mustTime("2024-11-24T16:45:00Z"),
			AssignedTo:    "Uwimana Claire",
			LastUpdate:    mustTime("2024-11-25T09:15:00Z"),
			Comments:      []Comment{},
		},
	}
}
