package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
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

type StudentHandler struct {
	DB       *gorm.DB
	Guard    *auth.Guard
	Producer *events.Producer
}

func (h *StudentHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

// CreateStudent is the admin path for enrolling a student. The initial
// password is the student's national id, the student changes it through
// the reset flow.
func (h *StudentHandler) CreateStudent(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.StudentID == 0 || req.Email == "" {
		return httperr.Validation("student_id and email are required")
	}
	if req.Username == "" {
		req.Username = strconv.FormatInt(req.StudentID, 10)
	}

	duplicates, err := duplicateUserFields(h.DB, req.Email, req.Username, req.PhoneNumber, req.NationalID)
	if err != nil {
		return httperr.Unknown()
	}
	if len(duplicates) > 0 {
		return httperr.Duplicate(duplicates...)
	}

	pwHash, err := hash.HashPassword(strconv.FormatInt(req.NationalID, 10))
	if err != nil {
		return httperr.Validation("invalid national_id")
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
		return tx.Create(&models.Student{StudentID: req.StudentID, ForUser: user.ID}).Error
	})
	if err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]interface{}{
		"type":       "student_created",
		"userID":     user.ID,
		"student_id": req.StudentID,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         user.ID,
		"username":   user.Username,
		"email":      user.Email,
		"student_id": req.StudentID,
	})
}

func (h *StudentHandler) DeleteStudent(c echo.Context) error {
	studentID, err := strconv.ParseInt(c.Param("student_id"), 10, 64)
	if err != nil {
		return httperr.Validation("invalid student id")
	}

	var student models.Student
	if err := h.DB.First(&student, "student_id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusNotFound, httperr.CodeStudentNotFound, "Student not found")
		}
		return httperr.Unknown()
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", studentID).Delete(&models.StudentCourse{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Student{}, "student_id = ?", studentID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, student.ForUser).Error
	})
	if err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicUserEvents, fmt.Sprint(student.ForUser), map[string]interface{}{
		"type":       "student_deleted",
		"student_id": studentID,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *StudentHandler) ReserveCourse(c echo.Context) error {
	student, err := h.Guard.CurrentStudent(c)
	if err != nil {
		return err
	}

	var req struct {
		CourseID uint `json:"course_id"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	var course models.Course
	if err := h.DB.First(&course, req.CourseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusBadRequest, httperr.CodeCourseNotFound, "course not found.")
		}
		return httperr.Unknown()
	}

	var count int64
	err = h.DB.Model(&models.StudentCourse{}).
		Where("student_id = ? AND course_id = ?", student.StudentID, req.CourseID).
		Count(&count).Error
	if err != nil {
		return httperr.Unknown()
	}
	if count > 0 {
		return httperr.Duplicate("course_id")
	}

	reservation := models.StudentCourse{StudentID: student.StudentID, CourseID: req.CourseID}
	if err := h.DB.Create(&reservation).Error; err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicEnrollmentEvents, fmt.Sprint(student.StudentID), map[string]interface{}{
		"type":       "course_reserved",
		"student_id": student.StudentID,
		"course_id":  req.CourseID,
	})

	return c.JSON(http.StatusOK, echo.Map{"course_name": course.Name})
}

func (h *StudentHandler) ReservedCourses(c echo.Context) error {
	student, err := h.Guard.CurrentStudent(c)
	if err != nil {
		return err
	}

	var courses []models.Course
	err = h.DB.Model(&models.Course{}).
		Joins("JOIN student_courses ON student_courses.course_id = courses.id").
		Where("student_courses.student_id = ?", student.StudentID).
		Find(&courses).Error
	if err != nil {
		return httperr.Unknown()
	}

	return c.JSON(http.StatusOK, courses)
}

func (h *StudentHandler) UnreserveCourse(c echo.Context) error {
	student, err := h.Guard.CurrentStudent(c)
	if err != nil {
		return err
	}

	courseID, err := strconv.Atoi(c.Param("course_id"))
	if err != nil {
		return httperr.Validation("invalid course id")
	}

	result := h.DB.Where("student_id = ? AND course_id = ?", student.StudentID, courseID).
		Delete(&models.StudentCourse{})
	if result.Error != nil {
		return httperr.Unknown()
	}
	if result.RowsAffected == 0 {
		return httperr.NotFound("course is not reserved")
	}

	h.publish(c, events.TopicEnrollmentEvents, fmt.Sprint(student.StudentID), map[string]interface{}{
		"type":       "course_unreserved",
		"student_id": student.StudentID,
		"course_id":  courseID,
	})

	return c.NoContent(http.StatusNoContent)
}
