package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/organquest/backend/core/user"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

type accountRow struct {
	ID                string    `db:"id"`
	FullName          string    `db:"full_name"`
	Username          string    `db:"username"`
	PasswordHash      []byte    `db:"password_hash"`
	Age               int       `db:"age"`
	Grade             string    `db:"grade"`
	Avatar            int       `db:"avatar"`
	Language          string    `db:"language"`
	Role              string    `db:"role"`
	AssignedGrade     string    `db:"assigned_grade"`
	Email             string    `db:"email"`
	TotalQuizzesTaken int       `db:"total_quizzes_taken"`
	TotalScore        int       `db:"total_score"`
	HighScore         int       `db:"high_score"`
	OrgansExplored    int       `db:"organs_explored"`
	LastLogin         null.Time `db:"last_login"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type organRow struct {
	AccountID  string    `db:"account_id"`
	OrganName  string    `db:"organ_name"`
	Explored   bool      `db:"explored"`
	ExploredAt null.Time `db:"explored_at"`
}

type quizRow struct {
	ID             int64     `db:"id"`
	AccountID      string    `db:"account_id"`
	QuizType       string    `db:"quiz_type"`
	Score          int       `db:"score"`
	TotalQuestions int       `db:"total_questions"`
	CompletedAt    time.Time `db:"completed_at"`
}

const accountColumns = `id, full_name, username, password_hash, age, grade, avatar, language,
role, assigned_grade, email, total_quizzes_taken, total_score, high_score, organs_explored,
last_login, created_at, updated_at`

func (row accountRow) toUser() user.User {
	return user.User{
		ID:            row.ID,
		FullName:      row.FullName,
		Username:      row.Username,
		PasswordHash:  row.PasswordHash,
		Age:           row.Age,
		Grade:         row.Grade,
		Avatar:        row.Avatar,
		Language:      row.Language,
		Role:          row.Role,
		AssignedGrade: row.AssignedGrade,
		Email:         row.Email,
		Stats: user.Stats{
			TotalQuizzesTaken: row.TotalQuizzesTaken,
			TotalScore:        row.TotalScore,
			HighScore:         row.HighScore,
			OrgansExplored:    row.OrgansExplored,
		},
		OrganProgress: []user.OrganProgressEntry{},
		QuizResults:   []user.QuizResult{},
		LastLogin:     row.LastLogin,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func (repo *accountRepository) CheckUsernameUniqueness(ctx context.Context, username string, excluded ...user.User) error {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE username = ?`
	args := []interface{}{username}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, usr := range excluded {
			ids = append(ids, usr.ID)
		}
		query += ` AND id NOT IN (?)`
		var err error
		if query, args, err = sqlx.In(query+`)`, username, ids); err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
	} else {
		query += `)`
	}

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if exists {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo *accountRepository) CreateAccount(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO accounts (id, full_name, username, password_hash, age, grade, avatar, language,
			role, assigned_grade, email, last_login, created_at, updated_at)
		VALUES (:id, :full_name, :username, :password_hash, :age, :grade, :avatar, :language,
			:role, :assigned_grade, :email, :last_login, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, query, repo.toRow(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "creating account")
	}
	return repo.GetAccountByID(ctx, usr.ID)
}

func (repo *accountRepository) toRow(usr user.User) accountRow {
	return accountRow{
		ID:            usr.ID,
		FullName:      usr.FullName,
		Username:      usr.Username,
		PasswordHash:  usr.PasswordHash,
		Age:           usr.Age,
		Grade:         usr.Grade,
		Avatar:        usr.Avatar,
		Language:      usr.Language,
		Role:          usr.Role,
		AssignedGrade: usr.AssignedGrade,
		Email:         usr.Email,
		LastLogin:     usr.LastLogin,
		CreatedAt:     usr.CreatedAt,
		UpdatedAt:     usr.UpdatedAt,
	}
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (user.User, error) {
	return repo.getAccount(ctx, `id = $1`, id)
}

func (repo *accountRepository) GetAccountByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getAccount(ctx, `username = $1`, username)
}

func (repo *accountRepository) getAccount(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row accountRow
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting account")
	}

	usr := row.toUser()
	users, err := repo.loadChildren(ctx, []user.User{usr})
	if err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

// loadChildren attaches organ progress and quiz results to the accounts.
func (repo *accountRepository) loadChildren(ctx context.Context, users []user.User) ([]user.User, error) {
	if len(users) == 0 {
		return users, nil
	}
	ids := make([]string, 0, len(users))
	byID := make(map[string]int, len(users))
	for i, usr := range users {
		ids = append(ids, usr.ID)
		byID[usr.ID] = i
	}

	query, args, err := sqlx.In(`SELECT account_id, organ_name, explored, explored_at
		FROM organ_progress WHERE account_id IN (?) ORDER BY organ_name`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building organ progress query")
	}
	var organs []organRow
	if err = repo.db.SelectContext(ctx, &organs, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "loading organ progress")
	}
	for _, row := range organs {
		i := byID[row.AccountID]
		users[i].OrganProgress = append(users[i].OrganProgress, user.OrganProgressEntry{
			OrganName:  row.OrganName,
			Explored:   row.Explored,
			ExploredAt: row.ExploredAt,
		})
	}

	query, args, err = sqlx.In(`SELECT id, account_id, quiz_type, score, total_questions, completed_at
		FROM quiz_results WHERE account_id IN (?) ORDER BY completed_at, id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building quiz results query")
	}
	var quizzes []quizRow
	if err = repo.db.SelectContext(ctx, &quizzes, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "loading quiz results")
	}
	for _, row := range quizzes {
		i := byID[row.AccountID]
		users[i].QuizResults = append(users[i].QuizResults, user.QuizResult{
			QuizType:       row.QuizType,
			Score:          row.Score,
			TotalQuestions: row.TotalQuestions,
			CompletedAt:    row.CompletedAt,
		})
	}
	return users, nil
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"username":  "username",
	"fullName":  "full_name",
	"age":       "age",
	"highScore": "high_score",
}

func (repo *accountRepository) FilterStudents(ctx context.Context, filter user.QueryFilter) ([]user.User, int, error) {
	where := []string{`role = 'student'`}
	var args []interface{}

	if !filter.Scope.All() {
		where = append(where, `grade IN (?)`)
		args = append(args, filter.Scope.Grades)
	}
	if filter.Grade != "" {
		where = append(where, `grade = ?`)
		args = append(args, filter.Grade)
	}
	if filter.Age > 0 {
		where = append(where, `age = ?`)
		args = append(args, filter.Age)
	}
	if filter.Search != "" {
		where = append(where, `(username ILIKE ? OR full_name ILIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	countQuery, countArgs, err := sqlx.In(`SELECT COUNT(*) FROM accounts WHERE `+whereClause, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building student count query")
	}
	var total int
	if err = repo.db.GetContext(ctx, &total, repo.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "counting students")
	}

	orderCol, ok := sortColumns[filter.SortBy]
	if !ok {
		orderCol = "created_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		accountColumns, whereClause, orderCol, direction, filter.Limit, (filter.Page-1)*filter.Limit)
	query, queryArgs, err := sqlx.In(query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building student query")
	}

	var rows []accountRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), queryArgs...); err != nil {
		return nil, 0, errors.Wrap(err, "filtering students")
	}
	users, err := repo.loadChildren(ctx, rowsToUsers(rows))
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (repo *accountRepository) QueryAccountsByRole(ctx context.Context, roles ...string) ([]user.User, error) {
	query, args, err := sqlx.In(`SELECT `+accountColumns+` FROM accounts
		WHERE role IN (?) ORDER BY created_at`, roles)
	if err != nil {
		return nil, errors.Wrap(err, "building role query")
	}
	var rows []accountRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying accounts by role")
	}
	return repo.loadChildren(ctx, rowsToUsers(rows))
}

// UpdateAccount saves the account's identity and profile columns. Stat
// counters are owned by SetOrganExplored/AppendQuizResult and never written
// here.
func (repo *accountRepository) UpdateAccount(ctx context.Context, usr user.User) (user.User, error) {
	const query = `
		UPDATE accounts SET full_name = :full_name, username = :username,
			password_hash = :password_hash, age = :age, grade = :grade, avatar = :avatar,
			language = :language, role = :role, assigned_grade = :assigned_grade,
			email = :email, last_login = :last_login, updated_at = now()
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, query, repo.toRow(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetAccountByID(ctx, usr.ID)
}

func (repo *accountRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// SetOrganExplored upserts the organ entry and bumps the explored counter in
// one transaction; the conditional upsert makes re-explores no-ops.
func (repo *accountRepository) SetOrganExplored(ctx context.Context, accountID, organName string, at time.Time) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO organ_progress (account_id, organ_name, explored, explored_at)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (account_id, organ_name) DO UPDATE
			SET explored = TRUE, explored_at = $3
			WHERE organ_progress.explored = FALSE`,
		accountID, organName, at)
	if err != nil {
		return user.User{}, errors.Wrap(err, "marking organ explored")
	}

	if n, _ := res.RowsAffected(); n > 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE accounts SET organs_explored = organs_explored + 1, updated_at = now()
			WHERE id = $1`, accountID)
		if err != nil {
			return user.User{}, errors.Wrap(err, "updating explored counter")
		}
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing organ explore")
	}
	return repo.GetAccountByID(ctx, accountID)
}

// AppendQuizResult inserts the result and folds the stat counters with
// single-statement increments, so concurrent submissions never lose updates.
func (repo *accountRepository) AppendQuizResult(ctx context.Context, accountID string, quiz user.QuizResult) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quiz_results (account_id, quiz_type, score, total_questions, completed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		accountID, quiz.QuizType, quiz.Score, quiz.TotalQuestions, quiz.CompletedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting quiz result")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET
			total_quizzes_taken = total_quizzes_taken + 1,
			total_score = total_score + $2,
			high_score = GREATEST(high_score, $2),
			updated_at = now()
		WHERE id = $1`, accountID, quiz.Score)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating quiz counters")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	if err = tx.Commit(); err != nil {
		return user.User{}, errors.Wrap(err, "committing quiz result")
	}
	return repo.GetAccountByID(ctx, accountID)
}

func (repo *accountRepository) TopStudentsByHighScore(ctx context.Context, limit int) ([]user.User, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts
		WHERE role = 'student' ORDER BY high_score DESC, username LIMIT $1`
	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	return repo.loadChildren(ctx, rowsToUsers(rows))
}

func (repo *accountRepository) QueryStudentsByGrades(ctx context.Context, grades ...string) ([]user.User, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE role = 'student'`
	var args []interface{}
	if len(grades) > 0 {
		var err error
		if query, args, err = sqlx.In(query+` AND grade IN (?)`, grades); err != nil {
			return nil, errors.Wrap(err, "building grade query")
		}
		query = repo.db.Rebind(query)
	}
	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying students by grade")
	}
	return repo.loadChildren(ctx, rowsToUsers(rows))
}

func rowsToUsers(rows []accountRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users
}
