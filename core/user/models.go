package user

import (
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/organquest/backend/core"
)

// Roles
const (
	RoleStudent   = "student"
	RoleAdmin     = "admin"
	RoleSuperuser = "superuser"
)

// Grades
const (
	Grade4th = "4th"
	Grade5th = "5th"
	Grade6th = "6th"

	// GradeAll is only valid as an admin's assigned scope.
	GradeAll = "all"
)

var (
	AllRoles = []string{RoleStudent, RoleAdmin, RoleSuperuser}

	Grades         = []string{Grade4th, Grade5th, Grade6th}
	AssignedGrades = []string{Grade4th, Grade5th, Grade6th, GradeAll}

	Languages = []string{"english", "filipino", "spanish", "mandarin"}
)

// Stats is denormalized per-account progress counters, recomputed with each
// contributing write.
type Stats struct {
	TotalQuizzesTaken int `json:"totalQuizzesTaken"`
	TotalScore        int `json:"totalScore"`
	HighScore         int `json:"highScore"`
	OrgansExplored    int `json:"organsExplored"`
}

// OrganProgressEntry records a single organ's exploration state.
// One entry per organ per account; re-exploration never duplicates it.
type OrganProgressEntry struct {
	OrganName  string    `json:"organName"`
	Explored   bool      `json:"explored"`
	ExploredAt null.Time `json:"exploredAt"`
}

// QuizResult is an append-only record of one completed quiz.
type QuizResult struct {
	QuizType       string    `json:"quizType"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CompletedAt    time.Time `json:"completedAt"`
}

// Percentage is this result's score as a percentage of its question count.
func (qr QuizResult) Percentage() float64 {
	return float64(qr.Score) / float64(qr.TotalQuestions) * 100
}

type User struct {
	ID            string `json:"id"`
	FullName      string `json:"fullName"`
	Username      string `json:"username"`
	PasswordHash  []byte `json:"-"`
	Age           int    `json:"age"`
	Grade         string `json:"grade"`
	Avatar        int    `json:"avatar"`
	Language      string `json:"language"`
	Role          string `json:"role"`
	AssignedGrade string `json:"assignedGrade,omitempty"` // admins only
	Email         string `json:"email,omitempty"`         // admins only

	Stats         Stats                `json:"stats"`
	OrganProgress []OrganProgressEntry `json:"organProgress"`
	QuizResults   []QuizResult         `json:"quizResults"`

	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
	LastLogin null.Time `json:"lastLogin,omitempty"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool   { return u.Role == RoleStudent }
func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin || u.Role == RoleSuperuser }
func (u *User) IsSuperuser() bool { return u.Role == RoleSuperuser }

// HasProgress reports whether the account has any quiz or exploration activity.
func (u *User) HasProgress() bool {
	return u.Stats.TotalQuizzesTaken > 0 || u.Stats.OrgansExplored > 0
}

// AverageScorePercent is the mean of this account's per-quiz percentages,
// rounded to the nearest integer. ok is false when no quizzes were taken;
// such accounts must not be folded into population averages as 0%.
func (u *User) AverageScorePercent() (avg int, ok bool) {
	if len(u.QuizResults) == 0 {
		return 0, false
	}
	var sum float64
	for _, qr := range u.QuizResults {
		sum += qr.Percentage()
	}
	return roundPercent(sum / float64(len(u.QuizResults))), true
}

func roundPercent(p float64) int {
	return int(p + 0.5)
}

// Scope is the set of grades a request is allowed to see.
// An empty grade list means unrestricted (superuser, or admin assigned "all").
type Scope struct {
	Grades []string
}

// ScopeFor resolves the visibility scope of an account once per request.
func ScopeFor(usr User) Scope {
	if usr.IsSuperuser() || usr.AssignedGrade == "" || usr.AssignedGrade == GradeAll {
		return Scope{}
	}
	return Scope{Grades: []string{usr.AssignedGrade}}
}

func (s Scope) All() bool { return len(s.Grades) == 0 }

func (s Scope) Allows(grade string) bool {
	if s.All() {
		return true
	}
	for _, g := range s.Grades {
		if g == grade {
			return true
		}
	}
	return false
}

// NewUser contains information needed to register a new student account.
type NewUser struct {
	FullName string `json:"fullName" validate:"required,min=2,max=100"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum_"`
	Password string `json:"password" validate:"required"`
	Age      int    `json:"age" validate:"required,min=1,max=120"`
	Grade    string `json:"grade" validate:"required,grade"`
	Avatar   int    `json:"avatar" validate:"required,min=1,max=4"`
	Language string `json:"language" validate:"required,language"`
}

func (nu *NewUser) Validate(svc *Service) error {
	nu.FullName = core.CleanString(nu.FullName)
	nu.Username = core.CleanString(nu.Username, true /* lower */)

	if err := svc.validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUsernameUniqueness(nu.Username)
}

// UpdateUser defines the profile fields an account may change about itself.
type UpdateUser struct {
	Username string `json:"username" validate:"omitempty,min=3,max=30,alphanum_"`
	Age      int    `json:"age" validate:"omitempty,min=1,max=120"`
	Avatar   int    `json:"avatar" validate:"omitempty,min=1,max=4"`
	Language string `json:"language" validate:"omitempty,language"`
}

func (uu *UpdateUser) Validate(origUsr User, svc *Service) error {
	uname := core.CleanString(uu.Username, true /* lower */)
	if uname == origUsr.Username {
		uname = ""
	}
	uu.Username = uname

	if err := svc.validate.Struct(uu); err != nil {
		return err
	}
	if uu.Username != "" {
		return svc.CheckUsernameUniqueness(uu.Username, origUsr)
	}
	return nil
}

// NewAdmin contains information needed by a superuser to create an admin account.
type NewAdmin struct {
	FullName      string `json:"fullName" validate:"required,min=2,max=100"`
	Username      string `json:"username" validate:"required,min=3,max=30,alphanum_"`
	Password      string `json:"password" validate:"required"`
	AssignedGrade string `json:"assignedGrade" validate:"required,assignedgrade"`
	Email         string `json:"email" validate:"omitempty,email"`
}

func (na *NewAdmin) Validate(svc *Service) error {
	na.FullName = core.CleanString(na.FullName)
	na.Username = core.CleanString(na.Username, true /* lower */)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := svc.validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckUsernameUniqueness(na.Username)
}

// UpdateAdmin defines what a superuser may change on an admin account.
type UpdateAdmin struct {
	AssignedGrade string `json:"assignedGrade" validate:"omitempty,assignedgrade"`
	Password      string `json:"password"`
}

func (ua *UpdateAdmin) Validate(svc *Service) error {
	return svc.validate.Struct(ua)
}

// QueryFilter narrows and pages the admin student listing.
// Filters apply with AND; Search does a case-insensitive match on
// FullName or Username.
type QueryFilter struct {
	Search    string `query:"search"`
	Grade     string `query:"grade"`
	Age       int    `query:"age"`
	SortBy    string `query:"sortBy"`
	SortOrder string `query:"sortOrder"`
	Page      int    `query:"page"`
	Limit     int    `query:"limit"`

	// Scope restricts results regardless of the other filters.
	Scope Scope `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	if qf.SortBy == "" {
		qf.SortBy = "createdAt"
	}
	if qf.SortOrder != "asc" {
		qf.SortOrder = "desc"
	}
	if qf.Page < 1 {
		qf.Page = 1
	}
	if qf.Limit < 1 || qf.Limit > 100 {
		qf.Limit = 50
	}
	if qf.Grade != "" && !qf.Scope.Allows(qf.Grade) {
		// a grade filter cannot widen an admin's assigned scope
		qf.Grade = ""
	}
}
