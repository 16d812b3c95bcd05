package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/user"
)

// NewConfig returns a self-contained test configuration.
func NewConfig() *core.Config {
	conf := &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "OrganQuest",
		Build:     "test",
		SecretKey: "poq8WkXkjbbSBBSM9pVmCsN3",
		DefaultFromEmail: mail.Address{
			Name:    "OrganQuest",
			Address: "noreply@organquest.test",
		},
	}
	conf.Server.JWTExpirationDelta = 30 * 24 * time.Hour
	conf.Server.ShutdownTimeout = 5 * time.Second
	return conf
}

// CreateStudent persists a student account directly through the repository.
func CreateStudent(
	t *testing.T,
	repo user.Repository,
	fullName, uname, pwd, grade string,
	age int,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		FullName:      fullName,
		Username:      uname,
		Age:           age,
		Grade:         grade,
		Avatar:        1,
		Language:      "english",
		Role:          user.RoleStudent,
		OrganProgress: []user.OrganProgressEntry{},
		QuizResults:   []user.QuizResult{},
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	return createAccount(t, repo, usr, pwd)
}

// CreateAdmin persists an admin scoped to assignedGrade ("all" for every grade).
func CreateAdmin(
	t *testing.T,
	repo user.Repository,
	fullName, uname, pwd, assignedGrade string,
) user.User {
	t.Helper()

	usr := baseAdmin(fullName, uname)
	usr.Role = user.RoleAdmin
	usr.AssignedGrade = assignedGrade
	return createAccount(t, repo, usr, pwd)
}

// CreateSuperuser persists a superuser account.
func CreateSuperuser(t *testing.T, repo user.Repository, fullName, uname, pwd string) user.User {
	t.Helper()

	usr := baseAdmin(fullName, uname)
	usr.Role = user.RoleSuperuser
	return createAccount(t, repo, usr, pwd)
}

func baseAdmin(fullName, uname string) user.User {
	now := time.Now().UTC()
	return user.User{
		FullName:      fullName,
		Username:      uname,
		Age:           30,
		Grade:         user.Grade4th,
		Avatar:        1,
		Language:      "english",
		OrganProgress: []user.OrganProgressEntry{},
		QuizResults:   []user.QuizResult{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func createAccount(t *testing.T, repo user.Repository, usr user.User, pwd string) user.User {
	t.Helper()

	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createAccount() failed: %v", err)
		}
	}
	usr, err := repo.CreateAccount(context.Background(), usr)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return usr
}
