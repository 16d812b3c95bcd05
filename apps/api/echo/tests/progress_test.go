package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/organquest/backend/core/progress"
	testutil "github.com/organquest/backend/tests"
)

func Test_progressApi_organExplored(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	token := app.getToken(t, usr)

	explore := func(organ string) (*progress.ExploreResult, int) {
		body := marshallObj(t, map[string]string{"organName": organ})
		req, rec := newAuthRequest(http.MethodPost, "/api/progress/organ", token, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return nil, rec.Code
		}
		res := new(progress.ExploreResult)
		decodeData(t, rec, res)
		return res, rec.Code
	}

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/progress/organ", marshallObj(t, map[string]string{"organName": "heart"}))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("first explore", func(t *testing.T) {
		res, code := explore("heart")
		assert.Equal(t, http.StatusOK, code)
		assert.False(t, res.AlreadyExplored)
		assert.Equal(t, 1, res.TotalExplored)
		assert.Equal(t, 7, res.ProgressPercentage) // round(1/15*100)
	})

	t.Run("re-explore is a distinct no-op", func(t *testing.T) {
		res, code := explore("heart")
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.AlreadyExplored)
		assert.Equal(t, 1, res.TotalExplored)
	})

	t.Run("unknown organ", func(t *testing.T) {
		_, code := explore("femur")
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func Test_progressApi_organList(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	token := app.getToken(t, usr)

	body := marshallObj(t, map[string]string{"organName": "brain"})
	req, rec := newAuthRequest(http.MethodPost, "/api/progress/organ", token, body)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/progress/organs", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var list progress.OrganList
	decodeData(t, rec, &list)
	assert.Len(t, list.Organs, 15)
	assert.Equal(t, 1, list.TotalExplored)
	assert.Equal(t, 15, list.TotalOrgans)

	var explored int
	for _, organ := range list.Organs {
		if organ.Explored {
			explored++
			assert.Equal(t, "brain", organ.Name)
		}
	}
	assert.Equal(t, 1, explored)
}

func Test_progressApi_summary(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	token := app.getToken(t, usr)

	submit := func(score int) {
		body := marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": score, "totalQuestions": 10})
		req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	for _, score := range []int{8, 5} {
		submit(score)
	}

	req, rec := newAuthRequest(http.MethodGet, "/api/progress/summary", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var summary progress.Summary
	decodeData(t, rec, &summary)
	assert.Equal(t, 2, summary.Stats.TotalQuizzesTaken)
	assert.Equal(t, 13, summary.Stats.TotalScore)
	assert.Equal(t, 8, summary.Stats.HighScore)
	assert.Equal(t, 65, summary.Stats.AverageScore)
	assert.Len(t, summary.RecentQuizzes, 2)
	assert.Equal(t, 5, summary.RecentQuizzes[0].Score) // newest first
}
