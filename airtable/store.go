package airtable

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

// Column names in the study base. These track the Airtable schema, not the
// Go projections.
const (
	fieldFirstName        = "First Name"
	fieldLastName         = "Last Name"
	fieldAcademicEmail    = "Academic Email"
	fieldPersonalEmail    = "Personal Email"
	fieldHonorarium       = "Honorarium?"
	fieldMailingAddress   = "Mailing Address"
	fieldInstitutionName  = "Institution Name"
	fieldProfileNotice    = "notice.profile_moved.v1"
	fieldAdminEmail       = "Email"
	fieldCourseName       = "Name"
	fieldCourseSessions   = "Session(s)"
	fieldReviewStatus     = "Review Status"
	fieldRandomization    = "Randomization Result"
	fieldStartDate        = "Start Date"
	fieldEndDate          = "End Date"
	fieldEnrollment       = "Enrollment"
	fieldCompletionTarget = "Completion Target (Public)"
	fieldPreURL           = "Pre-Assessment URL"
	fieldPostURL          = "PostAssessment Link"
	fieldGroupURL         = "PingPong Group URL"
	fieldInstructorLink   = "Instructor"
	fieldPreStudentCount  = "Pre-Assessment Student Count"
	fieldPostStudentCount = "Post: Student Count"
	fieldResponseID       = "Response ID"
	fieldAutomationStatus = "Automation Status"
	fieldCompletedAt      = "Completed At (ET)"
	fieldClassLookup      = "Class"
	fieldStudentID        = "Student ID"
	fieldClassID          = "Class ID"
	fieldExcludeStatus    = "Exclude Status"
	fieldPostStatus       = "Status"
	fieldPostClassLink    = "Class Link"
	fieldPostName         = "Name"
	fieldPostEmail        = "Email"
	fieldPostErrorType    = "Type"
	fieldAssocClassID     = "Airtable Class ID"
)

const removalRequested = "Requested to Remove"

// Store implements the study directory interfaces against the Airtable
// base named in the study configuration.
type Store struct {
	client *Client
	cfg    study.StudyConfig
}

func NewStore(client *Client, cfg study.StudyConfig) *Store {
	return &Store{client: client, cfg: cfg}
}

// FindInstructor fetches an instructor by record id. Airtable answers 403
// for ids outside the base, so both 403 and 404 map to the caller-facing
// not-found error.
func (s *Store) FindInstructor(ctx context.Context, id string) (*study.Instructor, error) {
	rec, err := s.client.GetRecord(ctx, s.cfg.InstructorTableID, id)
	if err != nil {
		switch StatusOf(err) {
		case http.StatusForbidden, http.StatusNotFound:
			return nil, study.ErrInstructorNotFound
		}
		return nil, err
	}
	return recordToInstructor(rec), nil
}

// FindInstructorByEmail matches the normalized email against both the
// academic and personal address columns. Returns nil without error when
// nothing matches.
func (s *Store) FindInstructorByEmail(ctx context.Context, email string) (*study.Instructor, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	formula := OR(
		EQ(fieldAcademicEmail, normalized),
		EQ(fieldPersonalEmail, normalized),
	)

	rec, err := s.client.FirstRecord(ctx, s.cfg.InstructorTableID, formula)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return recordToInstructor(rec), nil
}

func (s *Store) FindAdmin(ctx context.Context, id string) (*study.Admin, error) {
	rec, err := s.client.GetRecord(ctx, s.cfg.AdminTableID, id)
	if err != nil {
		switch StatusOf(err) {
		case http.StatusForbidden, http.StatusNotFound:
			return nil, nil
		}
		return nil, err
	}
	return recordToAdmin(rec), nil
}

func (s *Store) FindAdminByEmail(ctx context.Context, email string) (*study.Admin, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	rec, err := s.client.FirstRecord(ctx, s.cfg.AdminTableID, EQ(fieldAdminEmail, normalized))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return recordToAdmin(rec), nil
}

// CoursesByInstructor lists the instructor's courses, dropping any course
// whose session list mentions one of excludeSessions.
func (s *Store) CoursesByInstructor(ctx context.Context, instructorID string, excludeSessions []string) ([]study.Course, error) {
	formula := EQ(fieldInstructorLink, instructorID)
	if len(excludeSessions) > 0 {
		terms := make([]Formula, len(excludeSessions))
		for i, session := range excludeSessions {
			terms[i] = FIND(session, fieldCourseSessions)
		}
		formula = AND(formula, NOT(OR(terms...)))
	}

	records, err := s.client.ListRecords(ctx, s.cfg.ClassTableID, formula)
	if err != nil {
		return nil, err
	}

	courses := make([]study.Course, 0, len(records))
	for i := range records {
		courses = append(courses, recordToCourse(&records[i]))
	}
	return courses, nil
}

func (s *Store) InstructorTeachesCourse(ctx context.Context, instructorID, courseID string, excludeSessions []string) (bool, error) {
	courses, err := s.CoursesByInstructor(ctx, instructorID, excludeSessions)
	if err != nil {
		return false, err
	}
	for _, course := range courses {
		if course.RecordID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) UpdateCourseEnrollment(ctx context.Context, courseID string, enrollmentCount int) error {
	err := s.client.UpdateRecord(ctx, s.cfg.ClassTableID, courseID, Fields{
		fieldEnrollment: enrollmentCount,
	})
	if err != nil {
		switch StatusOf(err) {
		case http.StatusForbidden, http.StatusNotFound:
			return errors.New("Course not found.", errors.CategoryNotFound).
				WithCode(errors.CodeNotFound)
		}
		return err
	}
	return nil
}

// PreAssessmentsByClass lists processed pre-assessment submissions for the
// class. Unprocessed rows are automation noise and stay hidden.
func (s *Store) PreAssessmentsByClass(ctx context.Context, classID string) ([]study.PreAssessmentSubmission, error) {
	formula := AND(
		EQ(fieldClassLookup, classID),
		EQ(fieldAutomationStatus, "Processed"),
	)

	records, err := s.client.ListRecords(ctx, s.cfg.PreAssessmentTableID, formula)
	if err != nil {
		return nil, err
	}

	out := make([]study.PreAssessmentSubmission, 0, len(records))
	for i := range records {
		out = append(out, recordToPreSubmission(&records[i]))
	}
	return out, nil
}

func (s *Store) PreAssessmentBySubmissionID(ctx context.Context, submissionID string) (*study.PreAssessmentSubmission, error) {
	rec, err := s.client.FirstRecord(ctx, s.cfg.PreAssessmentTableID, EQ(fieldResponseID, submissionID))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	sub := recordToPreSubmission(rec)
	return &sub, nil
}

func (s *Store) PostAssessmentsByClass(ctx context.Context, classID string) ([]study.PostAssessmentSubmission, error) {
	records, err := s.client.ListRecords(ctx, s.cfg.PostAssessmentTableID, EQ(fieldPostClassLink, classID))
	if err != nil {
		return nil, err
	}

	out := make([]study.PostAssessmentSubmission, 0, len(records))
	for i := range records {
		out = append(out, recordToPostSubmission(&records[i]))
	}
	return out, nil
}

// RequestStudentGroupRemoval marks every association row for the student
// in the class as removal requested and reports how many rows changed.
func (s *Store) RequestStudentGroupRemoval(ctx context.Context, studentID, classID string) (int, error) {
	formula := AND(
		EQ(fieldStudentID, studentID),
		EQ(fieldAssocClassID, classID),
	)

	records, err := s.client.ListRecords(ctx, s.cfg.UserClassAssociationTableID, formula)
	if err != nil {
		return 0, err
	}

	for i := range records {
		err := s.client.UpdateRecord(ctx, s.cfg.UserClassAssociationTableID, records[i].ID, Fields{
			fieldExcludeStatus: removalRequested,
		})
		if err != nil {
			return i, err
		}
	}
	return len(records), nil
}

func (s *Store) SetInstructorNoticeSeen(ctx context.Context, instructorID string) error {
	return s.client.UpdateRecord(ctx, s.cfg.InstructorTableID, instructorID, Fields{
		fieldProfileNotice: true,
	})
}

func recordToInstructor(rec *Record) *study.Instructor {
	var seen *bool
	if _, ok := rec.Fields[fieldProfileNotice]; ok {
		v := rec.Fields.Bool(fieldProfileNotice)
		seen = &v
	}

	return &study.Instructor{
		RecordID:          rec.ID,
		FirstName:         rec.Fields.Str(fieldFirstName),
		LastName:          rec.Fields.Str(fieldLastName),
		AcademicEmail:     rec.Fields.Str(fieldAcademicEmail),
		PersonalEmail:     rec.Fields.Str(fieldPersonalEmail),
		HonorariumStatus:  rec.Fields.Str(fieldHonorarium),
		MailingAddress:    rec.Fields.Str(fieldMailingAddress),
		Institutions:      rec.Fields.StrList(fieldInstitutionName),
		ProfileNoticeSeen: seen,
	}
}

func recordToAdmin(rec *Record) *study.Admin {
	return &study.Admin{
		RecordID:  rec.ID,
		Email:     rec.Fields.Str(fieldAdminEmail),
		FirstName: rec.Fields.Str(fieldFirstName),
	}
}

func recordToCourse(rec *Record) study.Course {
	return study.Course{
		RecordID:                   rec.ID,
		Name:                       rec.Fields.Str(fieldCourseName),
		Sessions:                   rec.Fields.StrList(fieldCourseSessions),
		Status:                     rec.Fields.Str(fieldReviewStatus),
		Randomization:              rec.Fields.Str(fieldRandomization),
		StartDate:                  rec.Fields.Str(fieldStartDate),
		EndDate:                    rec.Fields.Str(fieldEndDate),
		EnrollmentCount:            rec.Fields.Int(fieldEnrollment),
		CompletionRateTarget:       rec.Fields.Float(fieldCompletionTarget),
		PreAssessmentURL:           rec.Fields.Str(fieldPreURL),
		PostAssessmentURL:          rec.Fields.Str(fieldPostURL),
		PingPongGroupURL:           rec.Fields.Str(fieldGroupURL),
		PreAssessmentStudentCount:  rec.Fields.Int(fieldPreStudentCount),
		PostAssessmentStudentCount: rec.Fields.Int(fieldPostStudentCount),
	}
}

func recordToPreSubmission(rec *Record) study.PreAssessmentSubmission {
	return study.PreAssessmentSubmission{
		SubmissionID:  rec.Fields.Str(fieldResponseID),
		Status:        rec.Fields.Str(fieldAutomationStatus),
		FirstName:     rec.Fields.Str(fieldFirstName),
		LastName:      rec.Fields.Str(fieldLastName),
		Email:         rec.Fields.Str(fieldAcademicEmail),
		SubmittedAt:   rec.Fields.Str(fieldCompletedAt),
		StudentID:     rec.Fields.FirstStr(fieldStudentID),
		ClassID:       rec.Fields.FirstStr(fieldClassID),
		RemovalStatus: rec.Fields.StrList(fieldExcludeStatus),
	}
}

func recordToPostSubmission(rec *Record) study.PostAssessmentSubmission {
	return study.PostAssessmentSubmission{
		SubmissionID: rec.Fields.Str(fieldResponseID),
		Status:       rec.Fields.Str(fieldPostStatus),
		StudentID:    rec.Fields.FirstStr(fieldStudentID),
		SubmittedAt:  rec.Fields.Str(fieldCompletedAt),
		Name:         rec.Fields.Str(fieldPostName),
		Email:        rec.Fields.Str(fieldPostEmail),
		ErrorType:    rec.Fields.Str(fieldPostErrorType),
	}
}
