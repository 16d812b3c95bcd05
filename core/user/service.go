package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/organquest/backend/core"
)

var (
	// errors
	ErrNotFound           = errors.New("account not found")
	ErrUsernameExists     = errors.New("Username already taken. Please choose another one.")
	ErrInvalidCredentials = errors.New("Invalid username or password")
	ErrSuperuserImmutable = errors.New("Cannot delete superuser")
	ErrStudentForbidden   = errors.New("Access denied to this student")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, excluded ...User) error
		CreateAccount(ctx context.Context, usr User) (User, error)
		GetAccountByID(ctx context.Context, id string) (User, error)
		GetAccountByUsername(ctx context.Context, username string) (User, error)
		// FilterStudents applies AND on available QueryFilter fields and returns the
		// page of matching student accounts along with the unpaged total.
		FilterStudents(ctx context.Context, filter QueryFilter) ([]User, int, error)
		QueryAccountsByRole(ctx context.Context, roles ...string) ([]User, error)
		UpdateAccount(ctx context.Context, usr User) (User, error)
		DeleteAccount(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		conf     *core.Config
		validate *validator.Validate
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	return &Service{
		repo:     repo,
		mailSvc:  mailSvc,
		conf:     conf,
		validate: validate,
	}
}

func (svc *Service) CheckUsernameUniqueness(uname string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, exclUsers...); err != nil {
		if err == ErrUsernameExists {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a new student account.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FullName:      nu.FullName,
		Username:      nu.Username,
		Age:           nu.Age,
		Grade:         nu.Grade,
		Avatar:        nu.Avatar,
		Language:      nu.Language,
		Role:          RoleStudent,
		OrganProgress: []OrganProgressEntry{},
		QuizResults:   []QuizResult{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateAccount(ctx, usr)
}

// Authenticate checks the given credentials and stamps the account's last login.
// Bad username and bad password are indistinguishable to the caller.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.repo.GetAccountByUsername(ctx, core.CleanString(uname, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin.SetValid(time.Now().UTC())
	return svc.repo.UpdateAccount(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetAccountByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetAccountByUsername(ctx, core.CleanString(uname, true /* lower */))
}

// UpdateProfile applies the partial profile update to the given account.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if uu.Username != "" {
		usr.Username = uu.Username
	}
	if uu.Age != 0 {
		usr.Age = uu.Age
	}
	if uu.Avatar != 0 {
		usr.Avatar = uu.Avatar
	}
	if uu.Language != "" {
		usr.Language = uu.Language
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(ctx, usr)
}

func (svc *Service) FilterStudents(ctx context.Context, filter QueryFilter) ([]User, int, error) {
	filter.Clean()
	return svc.repo.FilterStudents(ctx, filter)
}

// GetStudent fetches a student account, applying the caller's grade scope.
func (svc *Service) GetStudent(ctx context.Context, id string, scope Scope) (User, error) {
	usr, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() {
		return User{}, ErrNotFound
	}
	if !scope.Allows(usr.Grade) {
		return User{}, ErrStudentForbidden
	}
	return usr, nil
}

func (svc *Service) QueryAdmins(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAccountsByRole(ctx, RoleAdmin, RoleSuperuser)
}

// CreateAdmin creates an admin account scoped to the given grade and, when an
// email address was provided, mails the credentials to the new admin.
func (svc *Service) CreateAdmin(ctx context.Context, na NewAdmin) (User, error) {
	now := time.Now().UTC()
	usr := User{
		FullName:      na.FullName,
		Username:      na.Username,
		Age:           30, // placeholder; unused for admins
		Grade:         Grade4th,
		Avatar:        1,
		Language:      "english",
		Role:          RoleAdmin,
		AssignedGrade: na.AssignedGrade,
		Email:         na.Email,
		OrganProgress: []OrganProgressEntry{},
		QuizResults:   []QuizResult{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(na.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateAccount(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if usr.Email != "" {
		svc.sendAdminWelcomeEmail(usr, na.Password)
	}
	return usr, nil
}

// UpdateAdmin changes an admin's assigned grade and/or password.
func (svc *Service) UpdateAdmin(ctx context.Context, id string, ua UpdateAdmin) (User, error) {
	usr, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsAdmin() {
		return User{}, ErrNotFound
	}
	if ua.AssignedGrade != "" {
		usr.AssignedGrade = ua.AssignedGrade
	}
	if ua.Password != "" {
		if err = usr.SetPassword(ua.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAccount(ctx, usr)
}

// DeleteAdmin removes an admin account. Superusers cannot be deleted.
func (svc *Service) DeleteAdmin(ctx context.Context, id string) error {
	usr, err := svc.repo.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}
	if usr.IsSuperuser() {
		return ErrSuperuserImmutable
	}
	if !usr.IsAdmin() {
		return ErrNotFound
	}
	return svc.repo.DeleteAccount(ctx, id)
}

func (svc *Service) sendAdminWelcomeEmail(usr User, pwd string) {
	body := fmt.Sprintf(
		"Hi %s,\n\nAn admin account was created for you on %s.\n\n"+
			"Username: %s\nPassword: %s\nAssigned grade: %s\n\n"+
			"Sign in at %s and change your password.\n",
		usr.FullName, svc.conf.AppName, usr.Username, pwd, usr.AssignedGrade, svc.conf.FrontendBaseURL,
	)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject: "Your admin account",
		BodyStr: body,
	})
}
