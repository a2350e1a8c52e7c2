package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/models"
)

func registerPayload(email, username string, nationalID int64) map[string]interface{} {
	return map[string]interface{}{
		"first_name":   "Test",
		"last_name":    "Student",
		"national_id":  nationalID,
		"student_id":   nationalID + 4000,
		"email":        email,
		"username":     username,
		"phone_number": nationalID + 9000,
		"password":     "password",
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/auth/register", registerPayload("a@x.com", "student_a", 100), "")
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "student_a", body["username"])
	require.Equal(t, string(models.RoleStudent), body["role"])
	require.NotEmpty(t, body["id"])

	var student models.Student
	require.NoError(t, env.DB.First(&student, "student_id = ?", 4100).Error)
}

func TestRegisterDuplicateFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/register", registerPayload("a@x.com", "student_a", 100), "")
	require.NoError(t, env.Auth.Register(c))

	// second user reuses the email only
	_, c = env.doJSONRequest(http.MethodPost, "/auth/register", registerPayload("a@x.com", "student_b", 200), "")
	err := env.Auth.Register(c)
	apiErr := requireAPIError(t, err, httperr.CodeDuplicateEntity, http.StatusBadRequest)
	require.Equal(t, []string{"email"}, apiErr.DuplicateFields)

	// full duplicate collides on every unique field
	_, c = env.doJSONRequest(http.MethodPost, "/auth/register", registerPayload("a@x.com", "student_a", 100), "")
	err = env.Auth.Register(c)
	apiErr = requireAPIError(t, err, httperr.CodeDuplicateEntity, http.StatusBadRequest)
	require.Contains(t, apiErr.DuplicateFields, "email")
	require.Contains(t, apiErr.DuplicateFields, "username")
	require.Contains(t, apiErr.DuplicateFields, "phone_number")
	require.Contains(t, apiErr.DuplicateFields, "national_id")
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)

	rec, c := env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "student_a", "password": "password"}, "")
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "bearer", body["token_type"])
	raw, ok := body["access_token"].(string)
	require.True(t, ok)

	_, role, err := env.Tokens.ValidateAccessToken(raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.RoleStudent, role)
}

func TestLoginBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "student_a", "password": "wrong"}, "")
	err := env.Auth.Login(c)
	requireAPIError(t, err, httperr.CodeInvalidCredentials, http.StatusUnauthorized)

	_, c = env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "nobody", "password": "password"}, "")
	err = env.Auth.Login(c)
	requireAPIError(t, err, httperr.CodeInvalidCredentials, http.StatusUnauthorized)
}

func TestLoginEmptyFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "", "password": "password"}, "")
	requireAPIError(t, env.Auth.Login(c), httperr.CodeValidationError, http.StatusBadRequest)

	_, c = env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "student_a", "password": ""}, "")
	requireAPIError(t, env.Auth.Login(c), httperr.CodeValidationError, http.StatusBadRequest)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": "nobody@x.com"}, "")
	err := env.Auth.ForgotPassword(c)
	requireAPIError(t, err, httperr.CodeInvalidEmail, http.StatusBadRequest)
}

func TestForgotPasswordSendsLink(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)

	rec, c := env.doJSONRequest(http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": "a@x.com"}, "")
	require.NoError(t, env.Auth.ForgotPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, "a@x.com", env.Mailer.to)
	require.True(t, strings.HasPrefix(env.Mailer.link, "http://frontend.test/reset-password?secret_token="))

	token := resetTokenFromLink(t, env.Mailer.link)
	email, ok := env.Tokens.DecodeResetToken(token, time.Now())
	require.True(t, ok)
	require.Equal(t, "a@x.com", email)
}

// A mail transport failure is a server error, distinct from the
// unknown-address business failure.
func TestForgotPasswordMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)
	env.Mailer.fail = true

	_, c := env.doJSONRequest(http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": "a@x.com"}, "")
	err := env.Auth.ForgotPassword(c)
	requireAPIError(t, err, httperr.CodeUnknownError, http.StatusInternalServerError)
}

func resetTokenFromLink(t *testing.T, link string) string {
	t.Helper()
	const marker = "secret_token="
	idx := strings.Index(link, marker)
	require.NotEqual(t, -1, idx)
	return link[idx+len(marker):]
}

func TestResetPasswordEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "old_password", models.RoleStudent, 100)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": "a@x.com"}, "")
	require.NoError(t, env.Auth.ForgotPassword(c))
	token := resetTokenFromLink(t, env.Mailer.link)

	rec, c := env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token":     token,
		"new_password":     "new_password",
		"confirm_password": "new_password",
	}, "")
	require.NoError(t, env.Auth.ResetPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// new password works
	rec, c = env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "student_a", "password": "new_password"}, "")
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// old password no longer does
	_, c = env.doJSONRequest(http.MethodPost, "/auth/login",
		map[string]string{"username": "student_a", "password": "old_password"}, "")
	requireAPIError(t, env.Auth.Login(c), httperr.CodeInvalidCredentials, http.StatusUnauthorized)
}

func TestResetPasswordValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)

	resetToken, err := env.Tokens.IssueResetToken("a@x.com", time.Now())
	require.NoError(t, err)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token": resetToken, "new_password": "", "confirm_password": "x",
	}, "")
	requireAPIError(t, env.Auth.ResetPassword(c), httperr.CodeValidationError, http.StatusBadRequest)

	_, c = env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token": resetToken, "new_password": "one", "confirm_password": "two",
	}, "")
	requireAPIError(t, env.Auth.ResetPassword(c), httperr.CodePasswordsNotSame, http.StatusBadRequest)

	_, c = env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token": "garbage", "new_password": "new", "confirm_password": "new",
	}, "")
	requireAPIError(t, env.Auth.ResetPassword(c), httperr.CodeInvalidResetLink, http.StatusBadRequest)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	env.createUser("student_a", "a@x.com", "password", models.RoleStudent, 100)

	resetToken, err := env.Tokens.IssueResetToken("a@x.com", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token": resetToken, "new_password": "new", "confirm_password": "new",
	}, "")
	requireAPIError(t, env.Auth.ResetPassword(c), httperr.CodeInvalidResetLink, http.StatusBadRequest)
}

// A valid token whose subject no longer maps to a user row must not
// report success.
func TestResetPasswordUserGone(t *testing.T) {
	env := newTestEnv(t)

	resetToken, err := env.Tokens.IssueResetToken("ghost@x.com", time.Now())
	require.NoError(t, err)

	_, c := env.doJSONRequest(http.MethodPost, "/auth/reset-password", map[string]string{
		"secret_token": resetToken, "new_password": "new", "confirm_password": "new",
	}, "")
	requireAPIError(t, env.Auth.ResetPassword(c), httperr.CodeNotFound, http.StatusNotFound)
}
