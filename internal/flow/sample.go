package flow

import "github.com/skillcheck-dev/skillcheck/internal/model"

func score(v float64) *float64 { return &v }

// SampleAssessments is the built-in listing shown when sample fallback is
// enabled and the backend cannot be reached.
func SampleAssessments() []model.Assessment {
	return []model.Assessment{
		{
			ID:              1,
			Title:           "JavaScript Fundamentals",
			Description:     "Test your knowledge of JavaScript basics including variables, functions, and control flow.",
			LanguageName:    "JavaScript",
			DurationMinutes: 30,
			PassingScore:    70,
			IsPublished:     true,
		},
		{
			ID:              2,
			Title:           "React Basics",
			Description:     "Evaluate your understanding of React components, props, state, and hooks.",
			LanguageName:    "JavaScript",
			DurationMinutes: 45,
			PassingScore:    70,
			IsPublished:     true,
		},
		{
			ID:              3,
			Title:           "Advanced CSS",
			Description:     "Test your knowledge of advanced CSS concepts including Flexbox, Grid, and animations.",
			LanguageName:    "CSS",
			DurationMinutes: 40,
			PassingScore:    60,
			IsPublished:     true,
		},
		{
			ID:              4,
			Title:           "Node.js API Development",
			Description:     "Demonstrate your ability to build RESTful APIs using Node.js and Express.",
			LanguageName:    "JavaScript",
			DurationMinutes: 90,
			PassingScore:    75,
			IsPublished:     true,
		},
	}
}

// SampleAttempts pairs with SampleAssessments.
func SampleAttempts() []model.UserAssessment {
	return []model.UserAssessment{
		{ID: 1, Assessment: 1, Status: model.StatusPassed, Score: score(85)},
		{ID: 2, Assessment: 2, Status: model.StatusPassed, Score: score(92)},
		{ID: 3, Assessment: 3, Status: model.StatusInProgress},
	}
}

// SampleDashboard is the dashboard shown when sample fallback is enabled
// and the backend cannot be reached.
func SampleDashboard() *model.DashboardStats {
	return &model.DashboardStats{
		Stats: model.DashboardCounts{
			CompletedAssessments:  2,
			InProgressAssessments: 1,
			NotStartedAssessments: 1,
		},
		RecentAssessments: []model.RecentAssessment{
			{ID: 1, Title: "JavaScript Fundamentals", Status: model.StatusPassed, Score: score(85), Date: "2023-11-15"},
			{ID: 2, Title: "React Basics", Status: model.StatusPassed, Score: score(92), Date: "2023-11-10"},
			{ID: 3, Title: "Advanced CSS", Status: model.StatusInProgress, Date: "2023-11-20"},
		},
	}
}
