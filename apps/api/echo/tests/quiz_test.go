package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/organquest/backend/core/progress"
	testutil "github.com/organquest/backend/tests"
)

func Test_quizApi_submit(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	token := app.getToken(t, usr)

	submit := func(quizType string, score, total int) (*progress.SubmitResult, int) {
		body := marshallObj(t, map[string]interface{}{"quizType": quizType, "score": score, "totalQuestions": total})
		req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return nil, rec.Code
		}
		res := new(progress.SubmitResult)
		decodeData(t, rec, res)
		return res, rec.Code
	}

	t.Run("auth required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/quiz/submit", marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": 8, "totalQuestions": 10}))
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)}, rec)
	})

	t.Run("first result sets the high score", func(t *testing.T) {
		res, code := submit("multiple-choice", 8, 10)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, 8, res.CurrentScore)
		assert.Equal(t, 8, res.HighScore)
		assert.Equal(t, 1, res.TotalQuizzesTaken)
	})

	t.Run("lower score keeps the high score", func(t *testing.T) {
		res, code := submit("timed-challenge", 5, 10)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, 5, res.CurrentScore)
		assert.Equal(t, 8, res.HighScore)
		assert.Equal(t, 2, res.TotalQuizzesTaken)

		got, err := app.repo.GetAccountByID(context.Background(), usr.ID)
		assert.NoError(t, err)
		assert.Equal(t, 13, got.Stats.TotalScore)
	})

	t.Run("unknown quiz type", func(t *testing.T) {
		_, code := submit("essay", 3, 10)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("missing totalQuestions", func(t *testing.T) {
		body := marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": 3})
		req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_quizApi_history(t *testing.T) {
	app := setup(t)
	usr := testutil.CreateStudent(t, app.repo, "Alice Kalanga", "alice", "", "4th", 10)
	token := app.getToken(t, usr)

	for _, score := range []int{4, 9, 6} {
		body := marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": score, "totalQuestions": 10})
		req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	req, rec := newAuthRequest(http.MethodGet, "/api/quiz/history", token)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var history progress.History
	decodeData(t, rec, &history)
	assert.Len(t, history.QuizResults, 3)
	assert.Equal(t, 6, history.QuizResults[0].Score) // newest first
	assert.Equal(t, 4, history.QuizResults[2].Score)
	assert.Equal(t, 3, history.Stats.TotalQuizzesTaken)
	assert.Equal(t, 9, history.Stats.HighScore)
}

func Test_quizApi_leaderboard(t *testing.T) {
	app := setup(t)

	students := []struct {
		username string
		score    int
	}{
		{"amina", 7},
		{"ben", 9},
		{"chloe", 9},
		{"dede", 0},
	}
	for _, s := range students {
		usr := testutil.CreateStudent(t, app.repo, "Student "+s.username, s.username, "", "4th", 10)
		if s.score == 0 {
			continue
		}
		token := app.getToken(t, usr)
		body := marshallObj(t, map[string]interface{}{"quizType": "multiple-choice", "score": s.score, "totalQuestions": 10})
		req, rec := newAuthRequest(http.MethodPost, "/api/quiz/submit", token, body)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	// no token needed
	req, rec := newRequest(http.MethodGet, "/api/quiz/leaderboard", nil)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Leaderboard []progress.LeaderboardEntry `json:"leaderboard"`
	}
	decodeData(t, rec, &data)
	entries := data.Leaderboard
	assert.Len(t, entries, 4)
	assert.Equal(t, "ben", entries[0].Username) // ties break on username
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "chloe", entries[1].Username)
	assert.Equal(t, "amina", entries[2].Username)
	assert.Equal(t, "dede", entries[3].Username)

	req, rec = newRequest(http.MethodGet, "/api/quiz/leaderboard?limit=2", nil)
	app.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	data.Leaderboard = nil
	decodeData(t, rec, &data)
	assert.Len(t, data.Leaderboard, 2)
}
