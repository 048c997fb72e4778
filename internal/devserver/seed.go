package devserver

import (
	"github.com/skillcheck-dev/skillcheck/internal/model"
)

// Seeded credentials.
const (
	SeedAdminEmail    = "admin@example.com"
	SeedAdminPassword = "admin12345"
	SeedUserEmail     = "user@example.com"
	SeedUserPassword  = "user12345"
)

type seedQuestion struct {
	text     string
	subtopic string
	options  []string
	correct  int
	points   int
}

type seedAssessment struct {
	title       string
	description string
	language    string
	duration    int
	passing     int
	published   bool
	questions   []seedQuestion
}

var seedCatalog = map[string][]string{
	"Go":     {"Types", "Concurrency", "Error Handling"},
	"Python": {"Syntax", "Collections"},
}

var seedAssessments = []seedAssessment{
	{
		title:       "Go Basics",
		description: "Types, zero values and the standard toolchain.",
		language:    "Go",
		duration:    20,
		passing:     60,
		published:   true,
		questions: []seedQuestion{
			{"What is the zero value of an int?", "Types", []string{"0", "nil", "undefined", "-1"}, 0, 1},
			{"Which type is a sequence of bytes?", "Types", []string{"rune", "string", "float64"}, 1, 1},
			{"What does a function return to signal failure?", "Error Handling", []string{"an exception", "an error value", "a panic code"}, 1, 2},
		},
	},
	{
		title:       "Go Concurrency",
		description: "Goroutines, channels and synchronization.",
		language:    "Go",
		duration:    30,
		passing:     70,
		published:   true,
		questions: []seedQuestion{
			{"Which keyword starts a goroutine?", "Concurrency", []string{"go", "async", "spawn"}, 0, 1},
			{"What happens when sending on a closed channel?", "Concurrency", []string{"it blocks", "it panics", "it is ignored"}, 1, 1},
			{"Which type waits for a group of goroutines?", "Concurrency", []string{"sync.Mutex", "sync.WaitGroup", "sync.Once"}, 1, 1},
			{"How do you check the cause of a wrapped error?", "Error Handling", []string{"errors.Is", "err == cause", "reflect.DeepEqual"}, 0, 1},
		},
	},
	{
		title:       "Python Fundamentals",
		description: "Core syntax and built-in collections.",
		language:    "Python",
		duration:    25,
		passing:     70,
		published:   false,
		questions: []seedQuestion{
			{"Which collection is immutable?", "Collections", []string{"list", "tuple", "dict"}, 1, 1},
			{"How is a block delimited?", "Syntax", []string{"braces", "indentation", "begin/end"}, 1, 1},
		},
	},
}

func seed(s *store) error {
	if _, err := s.createUser(model.User{
		Username: "admin", FirstName: "Ada", LastName: "Admin",
		Email: SeedAdminEmail, Role: model.RoleAdmin,
	}, SeedAdminPassword); err != nil {
		return err
	}
	if _, err := s.createUser(model.User{
		Username: "user", FirstName: "Sam", LastName: "Student",
		Email: SeedUserEmail, Role: model.RoleUser,
	}, SeedUserPassword); err != nil {
		return err
	}

	languages := make(map[string]int)
	subtopics := make(map[string]int)
	for _, name := range []string{"Go", "Python"} {
		l := s.addLanguage(model.Language{Name: name})
		languages[name] = l.ID
		for _, st := range seedCatalog[name] {
			subtopics[st] = s.addSubtopic(model.Subtopic{Name: st, Language: l.ID}).ID
		}
	}

	for _, sa := range seedAssessments {
		a := model.Assessment{
			Title:           sa.title,
			Description:     sa.description,
			Language:        languages[sa.language],
			DurationMinutes: sa.duration,
			PassingScore:    sa.passing,
			IsPublished:     sa.published,
		}
		for _, sq := range sa.questions {
			subtopic := subtopics[sq.subtopic]
			q := model.Question{Text: sq.text, Subtopic: &subtopic, Points: sq.points}
			for i, opt := range sq.options {
				correct := i == sq.correct
				q.Choices = append(q.Choices, model.Choice{Text: opt, IsCorrect: &correct})
			}
			a.Questions = append(a.Questions, q)
		}
		s.putAssessment(0, a)
	}
	return nil
}
