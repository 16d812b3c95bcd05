package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/organquest/backend/core/user"
)

type fakeRepo struct {
	students []user.User
}

func (repo *fakeRepo) QueryStudentsByGrades(_ context.Context, grades ...string) ([]user.User, error) {
	if len(grades) == 0 {
		return repo.students, nil
	}
	var matched []user.User
	for _, usr := range repo.students {
		for _, grade := range grades {
			if usr.Grade == grade {
				matched = append(matched, usr)
				break
			}
		}
	}
	return matched, nil
}

func student(uname, grade string, createdAt time.Time) user.User {
	return user.User{
		Username:  uname,
		Role:      user.RoleStudent,
		Grade:     grade,
		Avatar:    1,
		CreatedAt: createdAt,
	}
}

func withQuiz(usr user.User, score, total int, at time.Time) user.User {
	usr.QuizResults = append(usr.QuizResults, user.QuizResult{
		QuizType:       "multiple-choice",
		Score:          score,
		TotalQuestions: total,
		CompletedAt:    at,
	})
	usr.Stats.TotalQuizzesTaken++
	usr.Stats.TotalScore += score
	if score > usr.Stats.HighScore {
		usr.Stats.HighScore = score
	}
	return usr
}

func withOrgan(usr user.User, name string, at time.Time) user.User {
	entry := user.OrganProgressEntry{OrganName: name, Explored: true}
	entry.ExploredAt.SetValid(at)
	usr.OrganProgress = append(usr.OrganProgress, entry)
	usr.Stats.OrgansExplored++
	return usr
}

func TestService_Compute(t *testing.T) {
	signup := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	later := signup.AddDate(0, 0, 3)

	repo := &fakeRepo{students: []user.User{
		// quizzed on day one: 8/10 and 6/10 -> own average 70%
		withQuiz(withQuiz(student("amina", user.Grade4th, signup), 8, 10, signup.Add(time.Hour)), 6, 10, signup.Add(2*time.Hour)),
		// quizzed later only: 9/10 -> own average 90%
		withQuiz(student("ben", user.Grade5th, signup), 9, 10, later),
		// explored but never quizzed
		withOrgan(student("chloe", user.Grade5th, signup), "heart", signup.Add(30*time.Minute)),
		// never did anything
		student("dede", user.Grade6th, signup),
	}}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), user.Scope{})
	assert.NoError(t, err)

	assert.Equal(t, 4, report.TotalStudents)
	assert.Equal(t, 3, report.ActiveStudents)
	assert.Equal(t, 1, report.InactiveStudents)
	assert.Equal(t, 3, report.TotalQuizzesTaken)
	assert.Equal(t, 1, report.TotalOrgansExplored)

	// denominator is quiz takers (2), not all students
	assert.Equal(t, 1.5, report.AvgQuizzesPerStudent)
	// mean of student means: (70 + 90) / 2, not a mean over all results
	assert.Equal(t, 80, report.OverallAverageScore)

	assert.Equal(t, map[string]int{
		user.Grade4th: 1,
		user.Grade5th: 2,
		user.Grade6th: 1,
	}, report.GradeDistribution)

	// amina and chloe were active on their signup day; ben only three days later
	assert.Equal(t, 4, report.FirstDayEngagement.Total)
	assert.Equal(t, 2, report.FirstDayEngagement.Active)
	assert.Equal(t, 50.0, report.FirstDayEngagement.Percentage)
}

func TestService_Compute_firstDayRounding(t *testing.T) {
	signup := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{students: []user.User{
		withQuiz(student("amina", user.Grade4th, signup), 8, 10, signup),
		student("ben", user.Grade5th, signup),
		student("chloe", user.Grade5th, signup),
	}}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), user.Scope{})
	assert.NoError(t, err)
	// 1 of 3 rounds to a whole percent, not 33.3
	assert.Equal(t, 33.0, report.FirstDayEngagement.Percentage)
}

func TestService_Compute_scoped(t *testing.T) {
	signup := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := &fakeRepo{students: []user.User{
		withQuiz(student("amina", user.Grade4th, signup), 8, 10, signup),
		withQuiz(student("ben", user.Grade5th, signup), 2, 10, signup),
	}}
	svc := NewService(repo)

	report, err := svc.Compute(context.Background(), user.Scope{Grades: []string{user.Grade4th}})
	assert.NoError(t, err)
	assert.Equal(t, 1, report.TotalStudents)
	assert.Equal(t, 80, report.OverallAverageScore)
	assert.Equal(t, 0, report.GradeDistribution[user.Grade5th])
}

func TestService_Compute_empty(t *testing.T) {
	svc := NewService(&fakeRepo{})

	report, err := svc.Compute(context.Background(), user.Scope{})
	assert.NoError(t, err)
	assert.Equal(t, 0, report.TotalStudents)
	assert.Equal(t, 0.0, report.AvgQuizzesPerStudent)
	assert.Equal(t, 0, report.OverallAverageScore)
	assert.Equal(t, 0.0, report.FirstDayEngagement.Percentage)
}

func TestFirstDayProgressFor_dayBoundary(t *testing.T) {
	signup := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	endOfDay := time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	usr := withQuiz(student("amina", user.Grade4th, signup), 5, 10, endOfDay)
	usr = withQuiz(usr, 7, 10, nextDay)
	usr = withOrgan(usr, "brain", signup.Add(time.Hour))

	fdp := FirstDayProgressFor(usr)
	assert.True(t, fdp.HasActivity)
	assert.Equal(t, 1, fdp.QuizzesTaken) // midnight submission is day two
	assert.Equal(t, 1, fdp.OrgansExplored)
}

func TestListStudentMetrics(t *testing.T) {
	signup := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	students := []user.User{
		withQuiz(student("amina", user.Grade4th, signup), 8, 10, signup.Add(time.Hour)),
		student("ben", user.Grade5th, signup),
	}

	metrics := ListStudentMetrics(students)
	assert.Len(t, metrics, 2)
	assert.True(t, metrics[0].HasProgress)
	assert.True(t, metrics[0].FirstDayProgress.HasActivity)
	assert.Equal(t, 1, metrics[0].FirstDayProgress.QuizzesTaken)
	assert.False(t, metrics[1].HasProgress)
	assert.False(t, metrics[1].FirstDayProgress.HasActivity)
}
