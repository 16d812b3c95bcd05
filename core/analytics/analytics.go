package analytics

import (
	"context"
	"math"
	"time"

	"github.com/organquest/backend/core/user"
)

type (
	// Repository abstracts the read-only student queries behind the aggregator.
	Repository interface {
		// QueryStudentsByGrades returns student accounts in the given grades.
		// No grades means all grades.
		QueryStudentsByGrades(ctx context.Context, grades ...string) ([]user.User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FirstDayEngagement counts students who used the app on the calendar day they
// signed up.
type FirstDayEngagement struct {
	Total      int     `json:"total"`
	Active     int     `json:"active"`
	Percentage float64 `json:"percentage"`
}

// Report is the grade-scoped analytics snapshot shown on the admin dashboard.
type Report struct {
	TotalStudents        int                `json:"totalStudents"`
	ActiveStudents       int                `json:"activeStudents"`
	InactiveStudents     int                `json:"inactiveStudents"`
	TotalQuizzesTaken    int                `json:"totalQuizzesTaken"`
	TotalOrgansExplored  int                `json:"totalOrgansExplored"`
	AvgQuizzesPerStudent float64            `json:"avgQuizzesPerStudent"`
	OverallAverageScore  int                `json:"overallAverageScore"`
	GradeDistribution    map[string]int     `json:"gradeDistribution"`
	FirstDayEngagement   FirstDayEngagement `json:"firstDayEngagement"`
}

// FirstDayProgress is the per-student slice of first-day activity used to
// decorate admin student listings.
type FirstDayProgress struct {
	QuizzesTaken   int  `json:"quizzesTaken"`
	OrgansExplored int  `json:"organsExplored"`
	HasActivity    bool `json:"hasActivity"`
}

// StudentMetrics decorates a student account with derived engagement fields.
type StudentMetrics struct {
	user.User
	HasProgress      bool             `json:"hasProgress"`
	FirstDayProgress FirstDayProgress `json:"firstDayProgress"`
}

// Compute folds all students visible to the scope into a Report. It is a pure
// read; a student created moments ago with no activity still counts toward
// TotalStudents and InactiveStudents.
func (svc *Service) Compute(ctx context.Context, scope user.Scope) (Report, error) {
	students, err := svc.repo.QueryStudentsByGrades(ctx, scope.Grades...)
	if err != nil {
		return Report{}, err
	}

	report := Report{GradeDistribution: make(map[string]int)}
	for _, grade := range user.Grades {
		report.GradeDistribution[grade] = 0
	}

	var (
		quizTakers    int     // students with at least one quiz
		pctSum        float64 // sum of per-student mean percentages
		firstDayTotal int
	)
	for _, usr := range students {
		report.TotalStudents++
		report.TotalQuizzesTaken += usr.Stats.TotalQuizzesTaken
		report.TotalOrgansExplored += usr.Stats.OrgansExplored
		report.GradeDistribution[usr.Grade]++

		if usr.HasProgress() {
			report.ActiveStudents++
		}
		if len(usr.QuizResults) > 0 {
			quizTakers++
			pctSum += meanScorePercent(usr.QuizResults)
		}
		if firstDay := FirstDayProgressFor(usr); firstDay.HasActivity {
			firstDayTotal++
		}
	}
	report.InactiveStudents = report.TotalStudents - report.ActiveStudents

	if quizTakers > 0 {
		report.AvgQuizzesPerStudent = round1(float64(report.TotalQuizzesTaken) / float64(quizTakers))
		// average of each student's own average, so prolific quizzers do not
		// dominate the class score
		report.OverallAverageScore = int(pctSum/float64(quizTakers) + 0.5)
	}

	report.FirstDayEngagement = FirstDayEngagement{
		Total:  report.TotalStudents,
		Active: firstDayTotal,
	}
	if report.TotalStudents > 0 {
		// whole percent, unlike AvgQuizzesPerStudent's one decimal
		report.FirstDayEngagement.Percentage = math.Round(float64(firstDayTotal) / float64(report.TotalStudents) * 100)
	}
	return report, nil
}

// ListStudentMetrics decorates the given students with engagement fields.
func ListStudentMetrics(students []user.User) []StudentMetrics {
	metrics := make([]StudentMetrics, 0, len(students))
	for _, usr := range students {
		metrics = append(metrics, StudentMetrics{
			User:             usr,
			HasProgress:      usr.HasProgress(),
			FirstDayProgress: FirstDayProgressFor(usr),
		})
	}
	return metrics
}

// FirstDayProgressFor counts the quiz and explore events that fell within the
// calendar day of the account's creation, in the creation instant's location.
func FirstDayProgressFor(usr user.User) FirstDayProgress {
	dayStart, dayEnd := firstDayWindow(usr.CreatedAt)

	var fdp FirstDayProgress
	for _, res := range usr.QuizResults {
		if within(res.CompletedAt, dayStart, dayEnd) {
			fdp.QuizzesTaken++
		}
	}
	for _, entry := range usr.OrganProgress {
		if entry.Explored && entry.ExploredAt.Valid && within(entry.ExploredAt.Time, dayStart, dayEnd) {
			fdp.OrgansExplored++
		}
	}
	fdp.HasActivity = fdp.QuizzesTaken > 0 || fdp.OrgansExplored > 0
	return fdp
}

func firstDayWindow(createdAt time.Time) (time.Time, time.Time) {
	y, m, d := createdAt.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, createdAt.Location())
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), createdAt.Location())
	return start, end
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func meanScorePercent(results []user.QuizResult) float64 {
	var sum float64
	for _, res := range results {
		sum += res.Percentage()
	}
	return sum / float64(len(results))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
