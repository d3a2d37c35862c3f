package study

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Directory is the external profile store consulted during session
// resolution and the auth flows. Implemented by airtable.Client wrappers.
type Directory interface {
	FindInstructor(ctx context.Context, id string) (*Instructor, error)
	FindInstructorByEmail(ctx context.Context, email string) (*Instructor, error)
	FindAdmin(ctx context.Context, id string) (*Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (*Admin, error)
}

// CourseDirectory covers the course and assessment lookups the dashboard
// routes need beyond plain profile resolution.
type CourseDirectory interface {
	CoursesByInstructor(ctx context.Context, instructorID string, excludeSessions []string) ([]Course, error)
	InstructorTeachesCourse(ctx context.Context, instructorID, courseID string, excludeSessions []string) (bool, error)
	UpdateCourseEnrollment(ctx context.Context, courseID string, enrollmentCount int) error
	PreAssessmentsByClass(ctx context.Context, classID string) ([]PreAssessmentSubmission, error)
	PreAssessmentBySubmissionID(ctx context.Context, submissionID string) (*PreAssessmentSubmission, error)
	PostAssessmentsByClass(ctx context.Context, classID string) ([]PostAssessmentSubmission, error)
	RequestStudentGroupRemoval(ctx context.Context, studentID, classID string) (int, error)
	SetInstructorNoticeSeen(ctx context.Context, instructorID string) error
}

// Mailer delivers rendered HTML messages. Implementations live in the email
// subpackage.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] STUDY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] STUDY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] STUDY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
