package progress

import (
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/organquest/backend/core/user"
)

// The fixed set of explorable organs. Progress percentages are always computed
// against this set, not against the entries present on an account.
var OrganNames = []string{
	"heart", "brain", "lungs", "liver", "kidney",
	"stomach", "intestine", "bladder", "pancreas",
	"spleen", "eyes", "tongue", "thyroid-gland",
	"diaphragm", "pelvis-femur",
}

// Quiz types
const (
	QuizMultipleChoice = "multiple-choice"
	QuizTimedChallenge = "timed-challenge"
	QuizMemoryMatching = "memory-matching"
)

var QuizTypes = []string{QuizMultipleChoice, QuizTimedChallenge, QuizMemoryMatching}

var sortedOrganNames = func() []string {
	names := append([]string(nil), OrganNames...)
	sort.Strings(names)
	return names
}()

func IsValidOrgan(name string) bool {
	idx := sort.SearchStrings(sortedOrganNames, name)
	return idx < len(sortedOrganNames) && sortedOrganNames[idx] == name
}

// ExploreOrgan is the payload marking an organ as explored.
type ExploreOrgan struct {
	OrganName string `json:"organName" validate:"required,organ"`
}

// ExploreResult reports the outcome of an explore event. AlreadyExplored
// distinguishes the idempotent no-op from a fresh exploration.
type ExploreResult struct {
	OrganName          string `json:"organName"`
	AlreadyExplored    bool   `json:"alreadyExplored,omitempty"`
	TotalExplored      int    `json:"totalExplored"`
	TotalOrgans        int    `json:"totalOrgans"`
	ProgressPercentage int    `json:"progressPercentage"`
}

// OrganStatus is one organ of the fixed set, with its exploration state.
type OrganStatus struct {
	Name       string    `json:"name"`
	Explored   bool      `json:"explored"`
	ExploredAt null.Time `json:"exploredAt"`
}

type OrganList struct {
	Organs             []OrganStatus `json:"organs"`
	TotalExplored      int           `json:"totalExplored"`
	TotalOrgans        int           `json:"totalOrgans"`
	ProgressPercentage int           `json:"progressPercentage"`
}

// NewQuizResult is the payload of a quiz submission.
type NewQuizResult struct {
	QuizType       string `json:"quizType" validate:"required,quiztype"`
	Score          int    `json:"score" validate:"gte=0"`
	TotalQuestions int    `json:"totalQuestions" validate:"required,gte=1"`
}

type SubmitResult struct {
	CurrentScore      int `json:"currentScore"`
	HighScore         int `json:"highScore"`
	TotalQuizzesTaken int `json:"totalQuizzesTaken"`
}

type SummaryStats struct {
	OrgansExplored    int `json:"organsExplored"`
	QuizzesTaken      int `json:"quizzesTaken"`
	TotalQuizzesTaken int `json:"totalQuizzesTaken"`
	AverageScore      int `json:"averageScore"`
	TotalScore        int `json:"totalScore"`
	HighScore         int `json:"highScore"`
}

type ProgressOverview struct {
	Explored   int `json:"explored"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type Summary struct {
	Stats         SummaryStats      `json:"stats"`
	OrganProgress ProgressOverview  `json:"organProgress"`
	RecentQuizzes []user.QuizResult `json:"recentQuizzes"`
}

type History struct {
	QuizResults []user.QuizResult `json:"quizResults"`
	Stats       user.Stats        `json:"stats"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	Username    string `json:"username"`
	Avatar      int    `json:"avatar"`
	HighScore   int    `json:"highScore"`
	TotalQuizzes int   `json:"totalQuizzes"`
}
