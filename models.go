package study

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// GenericStatus is the body for endpoints that only acknowledge success.
type GenericStatus struct {
	Status string `json:"status"`
}

var okStatus = GenericStatus{Status: "ok"}

// MagicLoginRequest asks for a passwordless login link.
type MagicLoginRequest struct {
	Email   string `json:"email"`
	Forward string `json:"forward"`
}

func (r MagicLoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// LoginAsRequest asks for an admin "login as instructor" link.
type LoginAsRequest struct {
	InstructorEmail string `json:"instructor_email"`
	AdminEmail      string `json:"admin_email"`
	Forward         string `json:"forward"`
}

func (r LoginAsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InstructorEmail, validation.Required, is.Email),
		validation.Field(&r.AdminEmail, validation.Required, is.Email),
	)
}

// UpdateEnrollmentRequest updates a course's enrollment count.
type UpdateEnrollmentRequest struct {
	EnrollmentCount int `json:"enrollment_count"`
}

func (r UpdateEnrollmentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EnrollmentCount, validation.Min(0)),
	)
}

// NoticeSeenRequest marks a one-time notice as seen.
type NoticeSeenRequest struct {
	Key string `json:"key"`
}

func (r NoticeSeenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required),
	)
}

// Instructor is the profile record from the study database.
type Instructor struct {
	RecordID          string
	FirstName         string
	LastName          string
	AcademicEmail     string
	PersonalEmail     string
	HonorariumStatus  string
	MailingAddress    string
	Institutions      []string
	ProfileNoticeSeen *bool
}

// Admin is a study administrator allowed to mint delegated login links.
type Admin struct {
	RecordID  string
	Email     string
	FirstName string
}

// Course is a course record from the study database.
type Course struct {
	RecordID                   string
	Name                       string
	Sessions                   []string
	Status                     string
	Randomization              string
	StartDate                  string
	EndDate                    string
	EnrollmentCount            *int
	CompletionRateTarget       *float64
	PreAssessmentURL           string
	PostAssessmentURL          string
	PingPongGroupURL           string
	PreAssessmentStudentCount  *int
	PostAssessmentStudentCount *int
}

// PreAssessmentSubmission is a student's pre-assessment row.
type PreAssessmentSubmission struct {
	SubmissionID  string
	Status        string
	FirstName     string
	LastName      string
	Email         string
	SubmittedAt   string
	StudentID     string
	ClassID       string
	RemovalStatus []string
}

// PostAssessmentSubmission is a student's post-assessment row.
type PostAssessmentSubmission struct {
	SubmissionID string
	Status       string
	StudentID    string
	SubmittedAt  string
	Name         string
	Email        string
	ErrorType    string
}

// InstructorResponse is the profile projection attached to valid sessions.
type InstructorResponse struct {
	ID               string `json:"id"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	AcademicEmail    string `json:"academic_email,omitempty"`
	PersonalEmail    string `json:"personal_email,omitempty"`
	HonorariumStatus string `json:"honorarium_status,omitempty"`
	MailingAddress   string `json:"mailing_address,omitempty"`
	Institution      string `json:"institution,omitempty"`
}

// FeatureFlags carries feature toggles and one-time notices for the
// dashboard. Keys use dotted, versioned names, e.g.
// notice.profile_moved.v1 or banner.maintenance_2025_09.v1.
type FeatureFlags struct {
	Flags map[string]bool `json:"flags"`
}

// CourseResponse is the outward course projection. Several fields are only
// populated for accepted courses.
type CourseResponse struct {
	ID                         string   `json:"id"`
	Name                       string   `json:"name,omitempty"`
	Status                     string   `json:"status,omitempty"`
	Randomization              string   `json:"randomization,omitempty"`
	StartDate                  string   `json:"start_date,omitempty"`
	EndDate                    string   `json:"end_date,omitempty"`
	EnrollmentCount            *int     `json:"enrollment_count,omitempty"`
	CompletionRateTarget       *float64 `json:"completion_rate_target,omitempty"`
	PreAssessmentURL           string   `json:"preassessment_url,omitempty"`
	PostAssessmentURL          string   `json:"postassessment_url,omitempty"`
	PingPongGroupURL           string   `json:"pingpong_group_url,omitempty"`
	PreAssessmentStudentCount  *int     `json:"preassessment_student_count,omitempty"`
	PostAssessmentStudentCount *int     `json:"postassessment_student_count,omitempty"`
}

// CoursesResponse wraps the course list endpoint.
type CoursesResponse struct {
	Courses []CourseResponse `json:"courses"`
}

// PreAssessmentSubmissionResponse is the outward pre-assessment row.
type PreAssessmentSubmissionResponse struct {
	ID             string `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	SubmissionDate string `json:"submission_date"`
	StudentID      string `json:"student_id,omitempty"`
	ClassID        string `json:"class_id,omitempty"`
	Removed        bool   `json:"removed"`
}

// PostAssessmentSubmissionResponse is the outward post-assessment row. The
// status is normalized to OK, PEND, NRC, or PRE.
type PostAssessmentSubmissionResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	SubmissionDate string `json:"submission_date"`
	StudentID      string `json:"student_id,omitempty"`
	ClassID        string `json:"class_id,omitempty"`
	Status         string `json:"status"`
	Removed        bool   `json:"removed"`
}

// AssessmentSubmissionsResponse wraps the per-class assessment listing.
type AssessmentSubmissionsResponse struct {
	PreAssessmentSubmissions  []PreAssessmentSubmissionResponse  `json:"pre_assessment_submissions"`
	PostAssessmentSubmissions []PostAssessmentSubmissionResponse `json:"post_assessment_submissions"`
}

// NewInstructorResponse builds the session projection from a directory
// record.
func NewInstructorResponse(in *Instructor) *InstructorResponse {
	if in == nil {
		return nil
	}
	return &InstructorResponse{
		ID:               in.RecordID,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		AcademicEmail:    in.AcademicEmail,
		PersonalEmail:    in.PersonalEmail,
		HonorariumStatus: in.HonorariumStatus,
		MailingAddress:   in.MailingAddress,
		Institution:      strings.Join(in.Institutions, ", "),
	}
}
