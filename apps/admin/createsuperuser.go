package main

import (
	"context"
	"time"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/user"
)

// createSuperuser creates a superuser account, or promotes the existing
// account with that username.
func (cli *commandLine) createSuperuser(fullName, uname, email, pwd string) error {
	ctx := context.Background()
	fullName = core.CleanString(fullName)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.acctRepo.GetAccountByUsername(ctx, uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := time.Now().UTC()
		usr = user.User{
			FullName:      fullName,
			Username:      uname,
			Age:           30,
			Grade:         user.Grade4th,
			Avatar:        1,
			Language:      "english",
			Email:         email,
			Role:          user.RoleSuperuser,
			OrganProgress: []user.OrganProgressEntry{},
			QuizResults:   []user.QuizResult{},
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.acctRepo.CreateAccount(ctx, usr)
		return err
	}

	usr.FullName = fullName
	usr.Role = user.RoleSuperuser
	if email != "" {
		usr.Email = email
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = cli.acctRepo.UpdateAccount(ctx, usr)
	return err
}
