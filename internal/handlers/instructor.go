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
	"github.com/uniregistry/course_registration/internal/middleware/auth"
	"github.com/uniregistry/course_registration/internal/models"
)

type InstructorHandler struct {
	DB       *gorm.DB
	Guard    *auth.Guard
	Producer *events.Producer
}

func (h *InstructorHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

func (h *InstructorHandler) CreateInstructor(c echo.Context) error {
	var req struct {
		FirstName   string    `json:"first_name"`
		LastName    string    `json:"last_name"`
		NationalID  int64     `json:"national_id"`
		Email       string    `json:"email"`
		Username    string    `json:"username"`
		PhoneNumber int64     `json:"phone_number"`
		BirthDay    time.Time `json:"birth_day"`
		Password    string    `json:"password"`
	}
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
		Role:         models.RoleInstructor,
	}

	var instructor models.Instructor
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		instructor = models.Instructor{ForUser: user.ID}
		return tx.Create(&instructor).Error
	})
	if err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":          "instructor_created",
		"userID":        user.ID,
		"instructor_id": instructor.ID,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":            user.ID,
		"username":      user.Username,
		"email":         user.Email,
		"instructor_id": instructor.ID,
	})
}

// EnrollSection marks a weekly slot as available teaching time for the
// calling instructor.
func (h *InstructorHandler) EnrollSection(c echo.Context) error {
	instructor, err := h.Guard.CurrentInstructor(c)
	if err != nil {
		return err
	}

	var req struct {
		SectionID uint `json:"section_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	var section models.CourseSection
	if err := h.DB.First(&section, req.SectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusBadRequest, httperr.CodeSectionNotFound, "Section not found")
		}
		return httperr.Unknown()
	}

	var count int64
	err = h.DB.Model(&models.SectionInstructor{}).
		Where("section_id = ? AND instructor_id = ?", req.SectionID, instructor.ID).
		Count(&count).Error
	if err != nil {
		return httperr.Unknown()
	}
	if count > 0 {
		return httperr.New(http.StatusBadRequest, httperr.CodeSectionEnrolled, "Section already enrolled")
	}

	enrollment := models.SectionInstructor{SectionID: req.SectionID, InstructorID: instructor.ID}
	if err := h.DB.Create(&enrollment).Error; err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicEnrollmentEvents, fmt.Sprint(instructor.ID), map[string]interface{}{
		"type":          "section_enrolled",
		"instructor_id": instructor.ID,
		"section_id":    req.SectionID,
	})

	return c.JSON(http.StatusOK, echo.Map{"section_id": req.SectionID})
}

func (h *InstructorHandler) EnrolledSections(c echo.Context) error {
	instructor, err := h.Guard.CurrentInstructor(c)
	if err != nil {
		return err
	}

	var sections []models.CourseSection
	err = h.DB.Model(&models.CourseSection{}).
		Joins("JOIN section_instructors ON section_instructors.section_id = course_sections.id").
		Where("section_instructors.instructor_id = ?", instructor.ID).
		Find(&sections).Error
	if err != nil {
		return httperr.Unknown()
	}

	return c.JSON(http.StatusOK, sections)
}
