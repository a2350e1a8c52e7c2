package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/hash"
	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/middleware/auth"
	"github.com/uniregistry/course_registration/internal/models"
	"github.com/uniregistry/course_registration/internal/tokens"
)

func initTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.Instructor{},
		&models.Course{},
		&models.CourseSection{},
		&models.StudentCourse{},
		&models.SectionInstructor{},
	)
	require.NoError(t, err)
	return db
}

func newTokenService() *tokens.Service {
	return tokens.New([]byte("access_secret"), []byte("reset_secret"), 10*time.Minute)
}

type fakeMailer struct {
	to   string
	link string
	fail bool
}

func (m *fakeMailer) SendPasswordReset(to, link string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.to = to
	m.link = link
	return nil
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	DB     *gorm.DB
	Tokens *tokens.Service
	Guard  *auth.Guard
	Mailer *fakeMailer
	Auth   *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db := initTestDB(t)
	svc := newTokenService()
	mailer := &fakeMailer{}
	guard := &auth.Guard{DB: db, Tokens: svc}

	return &testEnv{
		T:      t,
		E:      echo.New(),
		DB:     db,
		Tokens: svc,
		Guard:  guard,
		Mailer: mailer,
		Auth: &AuthHandler{
			DB:             db,
			Tokens:         svc,
			Mailer:         mailer,
			FrontendDomain: "http://frontend.test",
			ResetPath:      "/reset-password",
		},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(username, email, password string, role models.Role, nationalID int64) models.User {
	env.T.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(env.T, err)

	user := models.User{
		Username:     username,
		Email:        email,
		NationalID:   nationalID,
		PhoneNumber:  nationalID,
		PasswordHash: pwHash,
		Role:         role,
	}
	require.NoError(env.T, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) tokenFor(user models.User) string {
	env.T.Helper()
	token, err := env.Tokens.IssueAccessToken(user.ID, user.Role, time.Now())
	require.NoError(env.T, err)
	return token
}

func requireAPIError(t *testing.T, err error, code httperr.Code, status int) *httperr.Error {
	t.Helper()
	var apiErr *httperr.Error
	require.True(t, errors.As(err, &apiErr), "expected *httperr.Error, got %v", err)
	require.Equal(t, code, apiErr.Code)
	require.Equal(t, status, apiErr.Status)
	return apiErr
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
