package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/uniregistry/course_registration/internal/handlers"
	"github.com/uniregistry/course_registration/internal/middleware/auth"
	"github.com/uniregistry/course_registration/internal/models"
)

type Deps struct {
	DB                *gorm.DB
	Guard             *auth.Guard
	AuthHandler       *handlers.AuthHandler
	CourseHandler     *handlers.CourseHandler
	StudentHandler    *handlers.StudentHandler
	InstructorHandler *handlers.InstructorHandler
	SearchHandler     *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	adminOnly := d.Guard.RequireRoles(models.RoleAdmin)
	studentOnly := d.Guard.RequireRoles(models.RoleStudent)
	instructorOnly := d.Guard.RequireRoles(models.RoleInstructor)

	v1 := e.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", d.AuthHandler.Register)
	authGroup.POST("/login", d.AuthHandler.Login)
	authGroup.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	authGroup.POST("/reset-password", d.AuthHandler.ResetPassword)

	courses := v1.Group("/courses")
	courses.GET("/search", d.SearchHandler.Search)
	courses.GET("/:id", d.CourseHandler.GetCourse)
	courses.GET("", d.CourseHandler.GetCourses)
	courses.PUT("/sections", d.CourseHandler.CreateSection, adminOnly)
	courses.POST("", d.CourseHandler.CreateCourse, adminOnly)
	courses.DELETE("/:id", d.CourseHandler.DeleteCourse, adminOnly)

	students := v1.Group("/students")
	students.POST("", d.StudentHandler.CreateStudent, adminOnly)
	students.DELETE("/:student_id", d.StudentHandler.DeleteStudent, adminOnly)
	students.POST("/courses", d.StudentHandler.ReserveCourse, studentOnly)
	students.GET("/courses", d.StudentHandler.ReservedCourses, studentOnly)
	students.DELETE("/courses/:course_id", d.StudentHandler.UnreserveCourse, studentOnly)

	instructors := v1.Group("/instructors")
	instructors.POST("", d.InstructorHandler.CreateInstructor, adminOnly)
	instructors.POST("/sections", d.InstructorHandler.EnrollSection, instructorOnly)
	instructors.GET("/sections", d.InstructorHandler.EnrolledSections, instructorOnly)
}
