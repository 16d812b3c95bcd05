package tests

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/organquest/backend/apps/api/echo"
	"github.com/organquest/backend/core"
	"github.com/organquest/backend/core/analytics"
	"github.com/organquest/backend/core/progress"
	"github.com/organquest/backend/core/user"
	emailsvc "github.com/organquest/backend/services/email"
	inmemdb "github.com/organquest/backend/storage/database/inmem"
	testutil "github.com/organquest/backend/tests"
)

var errMissingToken = envelopeErr{Success: false, Message: "missing or malformed token"}

type testApp struct {
	server Server
	conf   *core.Config
	repo   user.Repository
	usrSvc *user.Service
}

// setup builds a fresh server on an empty in-memory store.
func setup(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	repo := inmemdb.NewAccountRepository()

	validate := validator.New()
	lang := en.New()
	uni := ut.New(lang, lang)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	progress.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(repo, mailSvc, conf, validate)

	server := NewServer(ServerDeps{
		Conf:         conf,
		Logger:       core.NewConsoleLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags)),
		UserSvc:      usrSvc,
		ProgressSvc:  progress.NewService(repo, validate),
		AnalyticsSvc: analytics.NewService(repo),
		Validate:     validate,
		Translator:   translator,
	})
	return &testApp{server: server, conf: conf, repo: repo, usrSvc: usrSvc}
}

type envelopeErr struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := GenerateToken(app.conf, GetUserClaims(app.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decodeData unmarshals the "data" member of a response envelope into dest.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decodeData() failed: %v", err)
	}
	if !env.Success {
		t.Fatalf("decodeData(): response not successful: %s", rec.Body.String())
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decodeData() failed: %v", err)
	}
}
