package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/events"
	"github.com/uniregistry/course_registration/internal/hash"
	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/logging"
	"github.com/uniregistry/course_registration/internal/mail"
	"github.com/uniregistry/course_registration/internal/models"
	"github.com/uniregistry/course_registration/internal/tokens"
)

type AuthHandler struct {
	DB             *gorm.DB
	Tokens         *tokens.Service
	Mailer         mail.Mailer
	Producer       *events.Producer
	FrontendDomain string
	ResetPath      string
}

type RegisterRequest struct {
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	NationalID  int64     `json:"national_id"`
	StudentID   int64     `json:"student_id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	PhoneNumber int64     `json:"phone_number"`
	BirthDay    time.Time `json:"birth_day"`
	Password    string    `json:"password"`
}

func (h *AuthHandler) publish(c echo.Context, topic string, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return httperr.Validation("username, email and password are required")
	}

	duplicates, err := duplicateUserFields(h.DB, req.Email, req.Username, req.PhoneNumber, req.NationalID)
	if err != nil {
		return httperr.Unknown()
	}
	if len(duplicates) > 0 {
		return httperr.Duplicate(duplicates...)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return httperr.Validation("invalid password")
	}

	user := models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		NationalID:   req.NationalID,
		Email:        req.Email,
		Username:     req.Username,
		PhoneNumber:  req.PhoneNumber,
		BirthDay:     req.BirthDay,
		PasswordHash: pwHash,
		Role:         models.RoleStudent,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		student := models.Student{StudentID: req.StudentID, ForUser: user.ID}
		return tx.Create(&student).Error
	})
	if err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_registered",
		"userID":   user.ID,
		"username": user.Username,
		"role":     user.Role,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"role":       user.Role,
		"student_id": req.StudentID,
	})
}

func duplicateUserFields(db *gorm.DB, email, username string, phone, nationalID int64) ([]string, error) {
	var existing []models.User
	err := db.
		Where("email = ?", email).
		Or("username = ?", username).
		Or("phone_number = ?", phone).
		Or("national_id = ?", nationalID).
		Find(&existing).Error
	if err != nil {
		return nil, err
	}

	var fields []string
	seen := map[string]bool{}
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	for _, u := range existing {
		if u.Email == email {
			add("email")
		}
		if u.Username == username {
			add("username")
		}
		if u.PhoneNumber == phone {
			add("phone_number")
		}
		if u.NationalID == nationalID {
			add("national_id")
		}
	}
	return fields, nil
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.Username == "" {
		return httperr.Validation("username is empty")
	}
	if req.Password == "" {
		return httperr.Validation("password is empty")
	}

	var user models.User
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.InvalidCredentials()
		}
		return httperr.Unknown()
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return httperr.InvalidCredentials()
	}

	accessToken, err := h.Tokens.IssueAccessToken(user.ID, user.Role, time.Now())
	if err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":     "user_logged_in",
		"userID":   user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "forgot_password")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusBadRequest, httperr.CodeInvalidEmail, "Invalid Email address")
		}
		return httperr.Unknown()
	}

	resetToken, err := h.Tokens.IssueResetToken(user.Email, time.Now())
	if err != nil {
		return httperr.Unknown()
	}

	link := mail.ResetLink(h.FrontendDomain, h.ResetPath, resetToken)
	if err := h.Mailer.SendPasswordReset(user.Email, link); err != nil {
		l.Error("reset mail send failed", "error", err)
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":   "password_reset_requested",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Password reset link has been sent to your email address",
	})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		SecretToken     string `json:"secret_token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.NewPassword == "" || req.ConfirmPassword == "" {
		return httperr.Validation("password fields must not be empty")
	}

	email, ok := h.Tokens.DecodeResetToken(req.SecretToken, time.Now())
	if !ok {
		return httperr.New(http.StatusBadRequest, httperr.CodeInvalidResetLink,
			"Invalid Password Reset Payload or Reset Link Expired")
	}

	if req.NewPassword != req.ConfirmPassword {
		return httperr.New(http.StatusBadRequest, httperr.CodePasswordsNotSame,
			"New password and confirm password are not same.")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return httperr.Validation("invalid password")
	}

	result := h.DB.Model(&models.User{}).Where("email = ?", email).Update("password_hash", pwHash)
	if result.Error != nil {
		return httperr.Unknown()
	}
	if result.RowsAffected == 0 {
		return httperr.NotFound("Could not find user")
	}

	h.publish(c, events.TopicUserEvents, email, map[string]interface{}{
		"type":  "password_reset",
		"email": email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "Password updated",
	})
}
