package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/events"
	"github.com/uniregistry/course_registration/internal/httperr"
	"github.com/uniregistry/course_registration/internal/logging"
	"github.com/uniregistry/course_registration/internal/models"
	"github.com/uniregistry/course_registration/internal/service/search"
	"github.com/uniregistry/course_registration/internal/util"
)

type CourseHandler struct {
	DB       *gorm.DB
	Producer *events.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *CourseHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish error", "topic", topic, "error", err)
	}
}

// CreateSection registers a weekly time slot. Each (day, start, end)
// triple exists at most once.
func (h *CourseHandler) CreateSection(c echo.Context) error {
	var req struct {
		WeekDay   int `json:"week_day"`
		StartTime int `json:"start_time"`
		EndTime   int `json:"end_time"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.WeekDay < 0 || req.WeekDay > 6 {
		return httperr.Validation("week_day must be between 0 and 6")
	}
	if req.StartTime >= req.EndTime {
		return httperr.Validation("start_time must be before end_time")
	}

	var count int64
	err := h.DB.Model(&models.CourseSection{}).
		Where("day_of_week = ? AND start_time = ? AND end_time = ?", req.WeekDay, req.StartTime, req.EndTime).
		Count(&count).Error
	if err != nil {
		return httperr.Unknown()
	}
	if count > 0 {
		return httperr.New(http.StatusBadRequest, httperr.CodeSectionExists, "Section already exists")
	}

	section := models.CourseSection{
		DayOfWeek: req.WeekDay,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := h.DB.Create(&section).Error; err != nil {
		return httperr.Unknown()
	}

	h.publish(c, events.TopicCourseEvents, fmt.Sprint(section.ID), map[string]interface{}{
		"type":       "section_created",
		"section_id": section.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{"section_id": section.ID})
}

func (h *CourseHandler) CreateCourse(c echo.Context) error {
	var req struct {
		Name          string `json:"name"`
		ShortName     string `json:"short_name"`
		InstructorID  uint   `json:"instructor_id"`
		SectionsCount int    `json:"sections_count"`
		Unit          int    `json:"unit"`
		Importance    int    `json:"importance"`
	}
	if err := c.Bind(&req); err != nil {
		return httperr.Validation("invalid body")
	}

	if req.Name == "" || req.ShortName == "" {
		return httperr.Validation("name and short_name are required")
	}
	if req.SectionsCount < 1 || req.SectionsCount > 2 {
		return httperr.Validation("sections_count must be 1 or 2")
	}
	if req.Unit < 1 || req.Unit > 3 {
		return httperr.Validation("unit must be between 1 and 3")
	}

	var instructor models.Instructor
	if err := h.DB.First(&instructor, req.InstructorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusBadRequest, httperr.CodeInstructorNotFound, "Instructor not found.")
		}
		return httperr.Unknown()
	}

	course := models.Course{
		Name:          req.Name,
		ShortName:     req.ShortName,
		InstructorID:  req.InstructorID,
		SectionsCount: req.SectionsCount,
		Unit:          req.Unit,
		Importance:    req.Importance,
	}
	if err := h.DB.Create(&course).Error; err != nil {
		return httperr.Unknown()
	}

	if h.ES != nil {
		if err := search.IndexCourse(c.Request().Context(), h.ES, h.Index, course); err != nil {
			logging.FromContext(c.Request().Context()).Error("es index error", "course_id", course.ID, "error", err)
		}
	}

	h.publish(c, events.TopicCourseEvents, fmt.Sprint(course.ID), map[string]interface{}{
		"type":      "course_created",
		"course_id": course.ID,
		"name":      course.Name,
	})

	return c.JSON(http.StatusCreated, course)
}

func (h *CourseHandler) GetCourse(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.Validation("invalid course id")
	}

	var course models.Course
	if err := h.DB.First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return httperr.New(http.StatusBadRequest, httperr.CodeCourseNotFound, "course not found.")
		}
		return httperr.Unknown()
	}

	return c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) GetCourses(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)

	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Course{}).Count(&total).Error; err != nil {
		return httperr.Unknown()
	}

	var items []models.Course
	if err := h.DB.Model(&models.Course{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return httperr.Unknown()
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": items,
		"meta": map[string]interface{}{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *CourseHandler) DeleteCourse(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return httperr.Validation("invalid course id")
	}

	result := h.DB.Delete(&models.Course{}, id)
	if result.Error != nil {
		return httperr.Unknown()
	}
	if result.RowsAffected == 0 {
		return httperr.NotFound("course not found.")
	}

	if err := h.DB.Where("course_id = ?", id).Delete(&models.StudentCourse{}).Error; err != nil {
		return httperr.Unknown()
	}

	if h.ES != nil {
		if err := search.DeleteCourse(c.Request().Context(), h.ES, h.Index, uint(id)); err != nil {
			logging.FromContext(c.Request().Context()).Error("es delete error", "course_id", id, "error", err)
		}
	}

	h.publish(c, events.TopicCourseEvents, fmt.Sprint(id), map[string]interface{}{
		"type":      "course_deleted",
		"course_id": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}
