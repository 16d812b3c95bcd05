package progress

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/organquest/backend/core/user"
)

const defaultLeaderboardSize = 10

type (
	// Repository abstracts the progress-related persistence operations.
	// Stat counters are updated by the store itself so that concurrent
	// submissions for the same account never lose increments.
	Repository interface {
		GetAccountByID(ctx context.Context, id string) (user.User, error)
		// SetOrganExplored marks organName explored on the account if it is not
		// already, and returns the updated account. Calling it for an organ that
		// is already explored is a no-op.
		SetOrganExplored(ctx context.Context, accountID, organName string, at time.Time) (user.User, error)
		// AppendQuizResult appends the result and folds it into the account's
		// stat counters atomically, returning the updated account.
		AppendQuizResult(ctx context.Context, accountID string, res user.QuizResult) (user.User, error)
		TopStudentsByHighScore(ctx context.Context, limit int) ([]user.User, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// RecordOrganExplored marks an organ as explored for the account. Re-exploring
// an organ succeeds and reports AlreadyExplored instead of changing anything.
func (svc *Service) RecordOrganExplored(ctx context.Context, accountID, organName string) (ExploreResult, error) {
	payload := ExploreOrgan{OrganName: organName}
	if err := svc.validate.Struct(payload); err != nil {
		return ExploreResult{}, err
	}

	usr, err := svc.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return ExploreResult{}, err
	}

	if entry, ok := findOrganEntry(usr, organName); ok && entry.Explored {
		return ExploreResult{
			OrganName:          organName,
			AlreadyExplored:    true,
			TotalExplored:      usr.Stats.OrgansExplored,
			TotalOrgans:        len(OrganNames),
			ProgressPercentage: progressPercent(usr.Stats.OrgansExplored),
		}, nil
	}

	usr, err = svc.repo.SetOrganExplored(ctx, accountID, organName, time.Now().UTC())
	if err != nil {
		return ExploreResult{}, err
	}
	return ExploreResult{
		OrganName:          organName,
		TotalExplored:      usr.Stats.OrgansExplored,
		TotalOrgans:        len(OrganNames),
		ProgressPercentage: progressPercent(usr.Stats.OrgansExplored),
	}, nil
}

// ListOrgans returns the exploration state of every organ in the fixed set,
// in canonical order. Organs the account has never touched appear unexplored.
func (svc *Service) ListOrgans(ctx context.Context, accountID string) (OrganList, error) {
	usr, err := svc.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return OrganList{}, err
	}

	organs := make([]OrganStatus, 0, len(OrganNames))
	for _, name := range OrganNames {
		status := OrganStatus{Name: name}
		if entry, ok := findOrganEntry(usr, name); ok {
			status.Explored = entry.Explored
			status.ExploredAt = entry.ExploredAt
		}
		organs = append(organs, status)
	}
	return OrganList{
		Organs:             organs,
		TotalExplored:      usr.Stats.OrgansExplored,
		TotalOrgans:        len(OrganNames),
		ProgressPercentage: progressPercent(usr.Stats.OrgansExplored),
	}, nil
}

// Summary aggregates the account's stats, organ progress and the five most
// recent quiz results (newest first).
func (svc *Service) Summary(ctx context.Context, accountID string) (Summary, error) {
	usr, err := svc.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}

	avg, _ := usr.AverageScorePercent()
	recent := recentQuizzes(usr.QuizResults, 5)
	return Summary{
		Stats: SummaryStats{
			OrgansExplored:    usr.Stats.OrgansExplored,
			QuizzesTaken:      usr.Stats.TotalQuizzesTaken,
			TotalQuizzesTaken: usr.Stats.TotalQuizzesTaken,
			AverageScore:      avg,
			TotalScore:        usr.Stats.TotalScore,
			HighScore:         usr.Stats.HighScore,
		},
		OrganProgress: ProgressOverview{
			Explored:   usr.Stats.OrgansExplored,
			Total:      len(OrganNames),
			Percentage: progressPercent(usr.Stats.OrgansExplored),
		},
		RecentQuizzes: recent,
	}, nil
}

// SubmitQuiz records a completed quiz and returns the updated counters.
// The high score only ever goes up.
func (svc *Service) SubmitQuiz(ctx context.Context, accountID string, nqr NewQuizResult) (SubmitResult, error) {
	if err := svc.validate.Struct(nqr); err != nil {
		return SubmitResult{}, err
	}

	res := user.QuizResult{
		QuizType:       nqr.QuizType,
		Score:          nqr.Score,
		TotalQuestions: nqr.TotalQuestions,
		CompletedAt:    time.Now().UTC(),
	}
	usr, err := svc.repo.AppendQuizResult(ctx, accountID, res)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{
		CurrentScore:      nqr.Score,
		HighScore:         usr.Stats.HighScore,
		TotalQuizzesTaken: usr.Stats.TotalQuizzesTaken,
	}, nil
}

// History returns all of the account's quiz results, newest first, with the
// current stat counters.
func (svc *Service) History(ctx context.Context, accountID string) (History, error) {
	usr, err := svc.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return History{}, err
	}
	return History{
		QuizResults: recentQuizzes(usr.QuizResults, len(usr.QuizResults)),
		Stats:       usr.Stats,
	}, nil
}

// Leaderboard returns the top students ranked by high score. A non-positive
// limit falls back to the default size.
func (svc *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	students, err := svc.repo.TopStudentsByHighScore(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(students))
	for i, usr := range students {
		entries = append(entries, LeaderboardEntry{
			Rank:         i + 1,
			Username:     usr.Username,
			Avatar:       usr.Avatar,
			HighScore:    usr.Stats.HighScore,
			TotalQuizzes: usr.Stats.TotalQuizzesTaken,
		})
	}
	return entries, nil
}

func findOrganEntry(usr user.User, name string) (user.OrganProgressEntry, bool) {
	for _, entry := range usr.OrganProgress {
		if entry.OrganName == name {
			return entry, true
		}
	}
	return user.OrganProgressEntry{}, false
}

func recentQuizzes(results []user.QuizResult, n int) []user.QuizResult {
	sorted := append([]user.QuizResult(nil), results...)
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func progressPercent(explored int) int {
	return int(float64(explored)/float64(len(OrganNames))*100 + 0.5)
}
