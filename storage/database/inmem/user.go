package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/organquest/backend/core/user"
)

// accountRepository is a mutex-guarded in-memory store. It backs the API
// tests and local development without a database.
type accountRepository struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

func NewAccountRepository() *accountRepository {
	return &accountRepository{table: make(map[string]*user.User)}
}

var _ user.Repository = (*accountRepository)(nil)

// copyAccount deep-copies so callers never alias the stored slices.
func copyAccount(usr user.User) user.User {
	usr.OrganProgress = append([]user.OrganProgressEntry{}, usr.OrganProgress...)
	usr.QuizResults = append([]user.QuizResult{}, usr.QuizResults...)
	return usr
}

func (repo *accountRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.table))
	for _, u := range repo.table {
		users = append(users, copyAccount(*u))
	}
	return users
}

func (repo *accountRepository) CheckUsernameUniqueness(_ context.Context, username string, excluded ...user.User) error {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	for _, usr := range repo.table {
		if usr.Username == username && !isExcluded(*usr, excluded) {
			return user.ErrUsernameExists
		}
	}
	return nil
}

func (repo *accountRepository) CreateAccount(_ context.Context, usr user.User) (user.User, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	usr = copyAccount(usr)
	repo.table[usr.ID] = &usr
	return copyAccount(usr), nil
}

func (repo *accountRepository) GetAccountByID(_ context.Context, id string) (user.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	if usr, ok := repo.table[id]; ok {
		return copyAccount(*usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *accountRepository) GetAccountByUsername(_ context.Context, username string) (user.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	for _, usr := range repo.table {
		if usr.Username == username {
			return copyAccount(*usr), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *accountRepository) FilterStudents(_ context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	var matched []user.User
	for _, usr := range repo.query() {
		if !usr.IsStudent() || !filter.Scope.Allows(usr.Grade) {
			continue
		}
		if filter.Grade != "" && usr.Grade != filter.Grade {
			continue
		}
		if filter.Age > 0 && usr.Age != filter.Age {
			continue
		}
		if filter.Search != "" && !matchesSearch(usr, filter.Search) {
			continue
		}
		matched = append(matched, usr)
	}

	sortAccounts(matched, filter.SortBy, filter.SortOrder)

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []user.User{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (repo *accountRepository) QueryAccountsByRole(_ context.Context, roles ...string) ([]user.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	var matched []user.User
	for _, usr := range repo.query() {
		for _, role := range roles {
			if usr.Role == role {
				matched = append(matched, usr)
				break
			}
		}
	}
	sortAccounts(matched, "createdAt", "asc")
	return matched, nil
}

func (repo *accountRepository) UpdateAccount(_ context.Context, usr user.User) (user.User, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if _, ok := repo.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.UpdatedAt = time.Now().UTC()
	usr = copyAccount(usr)
	repo.table[usr.ID] = &usr
	return copyAccount(usr), nil
}

func (repo *accountRepository) DeleteAccount(_ context.Context, id string) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if _, ok := repo.table[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.table, id)
	return nil
}

// SetOrganExplored flips (or creates) the organ entry and bumps the explored
// counter; a second call for the same organ changes nothing.
func (repo *accountRepository) SetOrganExplored(_ context.Context, accountID, organName string, at time.Time) (user.User, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	usr, ok := repo.table[accountID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	for i, entry := range usr.OrganProgress {
		if entry.OrganName == organName {
			if !entry.Explored {
				usr.OrganProgress[i].Explored = true
				usr.OrganProgress[i].ExploredAt.SetValid(at)
				usr.Stats.OrgansExplored++
				usr.UpdatedAt = time.Now().UTC()
			}
			return copyAccount(*usr), nil
		}
	}
	entry := user.OrganProgressEntry{OrganName: organName, Explored: true}
	entry.ExploredAt.SetValid(at)
	usr.OrganProgress = append(usr.OrganProgress, entry)
	usr.Stats.OrgansExplored++
	usr.UpdatedAt = time.Now().UTC()
	return copyAccount(*usr), nil
}

// AppendQuizResult appends the result and folds the stat counters in one
// critical section.
func (repo *accountRepository) AppendQuizResult(_ context.Context, accountID string, res user.QuizResult) (user.User, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	usr, ok := repo.table[accountID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	usr.QuizResults = append(usr.QuizResults, res)
	usr.Stats.TotalQuizzesTaken++
	usr.Stats.TotalScore += res.Score
	if res.Score > usr.Stats.HighScore {
		usr.Stats.HighScore = res.Score
	}
	usr.UpdatedAt = time.Now().UTC()
	return copyAccount(*usr), nil
}

func (repo *accountRepository) TopStudentsByHighScore(_ context.Context, limit int) ([]user.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	var students []user.User
	for _, usr := range repo.query() {
		if usr.IsStudent() {
			students = append(students, usr)
		}
	}
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].Stats.HighScore != students[j].Stats.HighScore {
			return students[i].Stats.HighScore > students[j].Stats.HighScore
		}
		return students[i].Username < students[j].Username
	})
	if len(students) > limit {
		students = students[:limit]
	}
	return students, nil
}

func (repo *accountRepository) QueryStudentsByGrades(_ context.Context, grades ...string) ([]user.User, error) {
	repo.mutex.RLock()
	defer repo.mutex.RUnlock()

	var students []user.User
	for _, usr := range repo.query() {
		if !usr.IsStudent() {
			continue
		}
		if len(grades) == 0 {
			students = append(students, usr)
			continue
		}
		for _, grade := range grades {
			if usr.Grade == grade {
				students = append(students, usr)
				break
			}
		}
	}
	return students, nil
}

func isExcluded(usr user.User, excluded []user.User) bool {
	for _, ex := range excluded {
		if usr.ID == ex.ID {
			return true
		}
	}
	return false
}

func matchesSearch(usr user.User, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(usr.Username), search) ||
		strings.Contains(strings.ToLower(usr.FullName), search)
}

func sortAccounts(users []user.User, sortBy, sortOrder string) {
	less := func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) }
	switch sortBy {
	case "username":
		less = func(i, j int) bool { return users[i].Username < users[j].Username }
	case "fullName":
		less = func(i, j int) bool { return users[i].FullName < users[j].FullName }
	case "age":
		less = func(i, j int) bool { return users[i].Age < users[j].Age }
	case "highScore":
		less = func(i, j int) bool { return users[i].Stats.HighScore < users[j].Stats.HighScore }
	}
	if sortOrder == "desc" {
		asc := less
		less = func(i, j int) bool { return asc(j, i) }
	}
	sort.SliceStable(users, less)
}
