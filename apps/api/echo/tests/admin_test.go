package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/organquest/backend/core/analytics"
	"github.com/organquest/backend/core/user"
	testutil "github.com/organquest/backend/tests"
)

type studentPage struct {
	Students []analytics.StudentMetrics `json:"students"`
	Total    int                        `json:"total"`
	Page     int                        `json:"page"`
	Limit    int                        `json:"limit"`
}

func Test_adminApi_roleGating(t *testing.T) {
	app := setup(t)
	student := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	admin := testutil.CreateAdmin(t, app.repo, "Mr Okoro", "okoro", "", "4th")
	studentToken := app.getToken(t, student)
	adminToken := app.getToken(t, admin)

	t.Run("no token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/admin/students", nil)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("student token", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/students", studentToken)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin cannot reach superuser routes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/admins", adminToken)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func Test_adminApi_studentQuery(t *testing.T) {
	app := setup(t)
	testutil.CreateStudent(t, app.repo, "Amina Diallo", "amina", "", "4th", 9)
	testutil.CreateStudent(t, app.repo, "Ben Carter", "ben", "", "5th", 10)
	testutil.CreateStudent(t, app.repo, "Chloe Mbeki", "chloe", "", "5th", 11)

	query := func(token, qs string) studentPage {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/students"+qs, token)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		var page studentPage
		decodeData(t, rec, &page)
		return page
	}

	t.Run("superuser sees all grades", func(t *testing.T) {
		super := testutil.CreateSuperuser(t, app.repo, "Head Teacher", "head", "")
		token := app.getToken(t, super)

		page := query(token, "")
		assert.Equal(t, 3, page.Total)
		assert.Len(t, page.Students, 3)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 50, page.Limit)

		page = query(token, "?grade=5th")
		assert.Equal(t, 2, page.Total)

		page = query(token, "?search=mbeki")
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "chloe", page.Students[0].Username)
	})

	t.Run("scoped admin sees only the assigned grade", func(t *testing.T) {
		admin := testutil.CreateAdmin(t, app.repo, "Mr Okoro", "okoro", "", "4th")
		token := app.getToken(t, admin)

		page := query(token, "")
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "amina", page.Students[0].Username)

		// a grade filter cannot widen the scope
		page = query(token, "?grade=5th")
		assert.Equal(t, 1, page.Total)
		assert.Equal(t, "amina", page.Students[0].Username)
	})

	t.Run("admin assigned all grades", func(t *testing.T) {
		admin := testutil.CreateAdmin(t, app.repo, "Ms Banda", "banda", "", user.GradeAll)
		token := app.getToken(t, admin)

		page := query(token, "")
		assert.Equal(t, 3, page.Total)
	})
}

func Test_adminApi_studentRetrieve(t *testing.T) {
	app := setup(t)
	student := testutil.CreateStudent(t, app.repo, "Amina Diallo", "amina", "", "5th", 9)
	admin := testutil.CreateAdmin(t, app.repo, "Mr Okoro", "okoro", "", "4th")
	super := testutil.CreateSuperuser(t, app.repo, "Head Teacher", "head", "")

	t.Run("in scope", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/students/"+student.ID, app.getToken(t, super))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var data struct {
			Student analytics.StudentMetrics `json:"student"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, "amina", data.Student.Username)
		assert.False(t, data.Student.HasProgress)
	})

	t.Run("out of scope is forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/students/"+student.ID, app.getToken(t, admin))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/students/nope", app.getToken(t, super))
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_adminApi_analytics(t *testing.T) {
	app := setup(t)
	super := testutil.CreateSuperuser(t, app.repo, "Head Teacher", "head", "")
	amina := testutil.CreateStudent(t, app.repo, "Amina Diallo", "amina", "", "4th", 9)
	testutil.CreateStudent(t, app.repo, "Ben Carter", "ben", "", "5th", 10)

	token := app.getToken(t, amina)
	body := marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": 8, "totalQuestions": 10})
	req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/admin/analytics", app.getToken(t, super))
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var report analytics.Report
	decodeData(t, rec, &report)
	assert.Equal(t, 2, report.TotalStudents)
	assert.Equal(t, 1, report.ActiveStudents)
	assert.Equal(t, 1, report.InactiveStudents)
	assert.Equal(t, 1, report.TotalQuizzesTaken)
	assert.Equal(t, 80, report.OverallAverageScore)
	assert.Equal(t, 1, report.GradeDistribution["4th"])
	assert.Equal(t, 1, report.GradeDistribution["5th"])
	assert.Equal(t, float64(50), report.FirstDayEngagement.Percentage)
}

func Test_adminApi_manageAdmins(t *testing.T) {
	app := setup(t)
	super := testutil.CreateSuperuser(t, app.repo, "Head Teacher", "head", "")
	token := app.getToken(t, super)

	var adminID string

	t.Run("create", func(t *testing.T) {
		body := marshallObj(t, user.NewAdmin{
			FullName:      "Mr Okoro",
			Username:      "okoro",
			Password:      "s3cureAdminPwd",
			AssignedGrade: "4th",
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/create-admin", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var data struct {
			Admin user.User `json:"admin"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, "okoro", data.Admin.Username)
		assert.Equal(t, user.RoleAdmin, data.Admin.Role)
		assert.Equal(t, "4th", data.Admin.AssignedGrade)
		adminID = data.Admin.ID
	})

	t.Run("create with bad grade", func(t *testing.T) {
		body := marshallObj(t, user.NewAdmin{
			FullName:      "Ms Banda",
			Username:      "banda",
			Password:      "s3cureAdminPwd",
			AssignedGrade: "7th",
		})
		req, rec := newAuthRequest(http.MethodPost, "/api/admin/create-admin", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/admin/admins", token)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var data struct {
			Admins []user.User `json:"admins"`
		}
		decodeData(t, rec, &data)
		assert.Len(t, data.Admins, 2) // superuser included
		unames := []string{data.Admins[0].Username, data.Admins[1].Username}
		assert.Contains(t, unames, "okoro")
		assert.Contains(t, unames, "head")
	})

	t.Run("update grade", func(t *testing.T) {
		body := marshallObj(t, user.UpdateAdmin{AssignedGrade: user.GradeAll})
		req, rec := newAuthRequest(http.MethodPut, "/api/admin/admins/"+adminID, token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		var data struct {
			Admin user.User `json:"admin"`
		}
		decodeData(t, rec, &data)
		assert.Equal(t, user.GradeAll, data.Admin.AssignedGrade)
	})

	t.Run("delete", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/admin/admins/"+adminID, token)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)

		_, err := app.repo.GetAccountByID(context.Background(), adminID)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("superuser cannot be deleted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/api/admin/admins/"+super.ID, token)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
