package models

import (
	"time"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName    string    `gorm:"not null"                 json:"first_name"`
	LastName     string    `gorm:"not null"                 json:"last_name"`
	NationalID   int64     `gorm:"unique;not null"          json:"national_id"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	Username     string    `gorm:"unique;not null"          json:"username"`
	PhoneNumber  int64     `gorm:"unique;not null"          json:"phone_number"`
	BirthDay     time.Time `json:"birth_day"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         Role      `gorm:"not null"                 json:"role"`
}

type Student struct {
	StudentID int64 `gorm:"primaryKey"     json:"student_id"`
	ForUser   uint  `gorm:"index;not null" json:"for_user"`
}

type Instructor struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	ForUser uint `gorm:"index;not null"           json:"for_user"`
}

type Course struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string `gorm:"not null"                 json:"name"`
	ShortName     string `gorm:"not null"                 json:"short_name"`
	InstructorID  uint   `gorm:"index;not null"           json:"instructor_id"`
	SectionsCount int    `gorm:"not null"                 json:"sections_count"`
	Unit          int    `gorm:"not null"                 json:"unit"`
	Importance    int    `json:"importance"`
}

// CourseSection is a weekly time slot. One row exists per
// (day, start, end) triple; courses and instructors attach to it
// through join rows.
type CourseSection struct {
	ID        uint `gorm:"primaryKey;autoIncrement"              json:"id"`
	DayOfWeek int  `gorm:"not null;uniqueIndex:idx_section_slot" json:"day_of_week"`
	StartTime int  `gorm:"not null;uniqueIndex:idx_section_slot" json:"start_time"`
	EndTime   int  `gorm:"not null;uniqueIndex:idx_section_slot" json:"end_time"`
}

type StudentCourse struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"                json:"id"`
	StudentID int64 `gorm:"not null;uniqueIndex:idx_student_course" json:"student_id"`
	CourseID  uint  `gorm:"not null;uniqueIndex:idx_student_course" json:"course_id"`
}

type SectionInstructor struct {
	ID           uint `gorm:"primaryKey;autoIncrement"                    json:"id"`
	SectionID    uint `gorm:"not null;uniqueIndex:idx_section_instructor" json:"section_id"`
	InstructorID uint `gorm:"not null;uniqueIndex:idx_section_instructor" json:"instructor_id"`
}
