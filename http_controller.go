package study

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// ExcludedCourseSessions are course sessions hidden from every listing and
// permission check.
var ExcludedCourseSessions = []string{"Fall 2025"}

// Link lifetimes in seconds.
const (
	magicLinkTTL = 86_400
	loginAsTTL   = 3_600
)

const (
	unknownEmailDetail       = "We couldn't find you in the study database. Ensure that you're using your institutional email address. If you're still having trouble, please contact the study administrator."
	instructorNotFoundDetail = "We couldn't find you in the study database. Please contact the study administrator."
	adminDeniedDetail        = "Access denied. Please contact the study administrator."
	delegateNotFoundDetail   = "We couldn't find the instructor in the study database. Please contact the study administrator."
)

// StudyStore is everything the route handlers need from the external
// tabular store.
type StudyStore interface {
	Directory
	CourseDirectory
}

// LoginMessage is the template payload for the login-link email.
type LoginMessage struct {
	Title     string
	Subtitle  string
	Kind      string
	CTA       string
	Underline string
	Expires   string
	Link      string
	Email     string
	LegalText string
}

// MessageRenderer renders the login-link email body. Implemented by
// email.Renderer.
type MessageRenderer interface {
	RenderLoginMessage(msg LoginMessage) (string, error)
}

// Controller owns the study API route handlers.
type Controller struct {
	store    StudyStore
	codec    *Codec
	links    *Links
	mailer   Mailer
	renderer MessageRenderer
	logger   Logger
}

func NewController(store StudyStore, codec *Codec, links *Links, mailer Mailer, renderer MessageRenderer, logger Logger) *Controller {
	if logger == nil {
		logger = defLogger{}
	}
	return &Controller{
		store:    store,
		codec:    codec,
		links:    links,
		mailer:   mailer,
		renderer: renderer,
		logger:   logger,
	}
}

// RegisterRoutes mounts the study API on r. The session resolver must
// already be installed on the same group.
func (ct *Controller) RegisterRoutes(r fiber.Router) {
	loggedIn := RequireValid(LoggedIn{})

	r.Get("/me", ct.GetMe)
	r.Post("/me/notices/seen", loggedIn, ct.SetNoticeSeen)
	r.Post("/login/magic", ct.LoginMagic)
	r.Post("/admin/login-as", ct.LoginAs)
	r.Get("/auth", ct.Auth)
	r.Get("/auth/admin", ct.AuthAdmin)
	r.Get("/courses", loggedIn, ct.GetCourses)
	r.Get("/preassessment/:classID/students", loggedIn, ct.GetPreAssessmentStudents)
	r.Patch("/courses/:classID/enrollment", loggedIn, ct.UpdateEnrollment)
	r.Delete("/preassessment/:classID/students/:submissionID", loggedIn, ct.DeleteSubmission)
}

// GetMe returns the resolved session state as-is.
func (ct *Controller) GetMe(c *fiber.Ctx) error {
	return c.JSON(SessionFromCtx(c))
}

// SetNoticeSeen marks a one-time notice as seen for the current
// instructor. Currently supports notice.profile_moved.v1.
func (ct *Controller) SetNoticeSeen(c *fiber.Ctx) error {
	var req NoticeSeenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if req.Key != NoticeProfileMovedKey {
		return fiber.NewError(fiber.StatusBadRequest, "Unknown notice key")
	}

	userID := SessionFromCtx(c).Token.Sub
	if err := ct.store.SetInstructorNoticeSeen(c.UserContext(), userID); err != nil {
		return err
	}
	return c.JSON(okStatus)
}

// LoginMagic emails a passwordless login link to a known instructor.
func (ct *Controller) LoginMagic(c *fiber.Ctx) error {
	var req MagicLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Forward == "" {
		req.Forward = "/"
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	instructor, err := ct.store.FindInstructorByEmail(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	if instructor == nil {
		return fiber.NewError(fiber.StatusUnauthorized, unknownEmailDetail)
	}

	if err := ct.sendLoginLink(c.UserContext(), instructor.RecordID, req.Email, req.Forward, NowFromCtx(c)); err != nil {
		return err
	}

	return c.JSON(okStatus)
}

// LoginAs emails the admin a delegated link that logs in as the
// instructor. The minted subject is the composite
// "<instructorID>:<adminID>".
func (ct *Controller) LoginAs(c *fiber.Ctx) error {
	var req LoginAsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Forward == "" {
		req.Forward = "/"
	}
	if err := req.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	admin, err := ct.store.FindAdminByEmail(c.UserContext(), req.AdminEmail)
	if err != nil {
		return err
	}
	if admin == nil {
		return fiber.NewError(fiber.StatusForbidden, "Access denied.")
	}

	instructor, err := ct.store.FindInstructorByEmail(c.UserContext(), req.InstructorEmail)
	if err != nil {
		return err
	}
	if instructor == nil {
		return fiber.NewError(fiber.StatusNotFound, "Instructor not found.")
	}

	if err := ct.sendLoginAsLink(c.UserContext(), instructor, admin, req.Forward, NowFromCtx(c)); err != nil {
		return err
	}

	return c.JSON(okStatus)
}

// Auth continues the magic-link flow from a token in the query params. A
// valid token upgrades into a session redirect; an expired token triggers
// the re-link recovery flow; anything else is a 401.
func (ct *Controller) Auth(c *fiber.Ctx) error {
	dest := c.Query("redirect", "/")
	nowfn := NowFromCtx(c)

	token, err := ct.codec.Decode(c.Query("token"), nowfn)
	if err != nil {
		if te, ok := AsTimeError(err); ok {
			return ct.recoverExpiredLogin(c, te.UserID, dest, nowfn)
		}
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	if _, err := ct.store.FindInstructor(c.UserContext(), token.Sub); err != nil {
		if errors.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, instructorNotFoundDetail)
		}
		return err
	}

	return ct.links.RedirectWithSession(c, dest, token.Sub, DefaultSessionTTL, nowfn)
}

// AuthAdmin continues the delegated auth flow. The token subject is the
// composite "<instructorID>:<adminID>"; the resulting session belongs to
// the instructor.
func (ct *Controller) AuthAdmin(c *fiber.Ctx) error {
	dest := c.Query("redirect", "/")
	nowfn := NowFromCtx(c)

	token, err := ct.codec.Decode(c.Query("token"), nowfn)
	if err != nil {
		if te, ok := AsTimeError(err); ok {
			return ct.recoverExpiredLoginAs(c, te.UserID, dest, nowfn)
		}
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	instructorID, adminID, err := splitDelegatedSubject(token.Sub)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, err.Error())
	}

	admin, err := ct.store.FindAdmin(c.UserContext(), adminID)
	if err != nil && !errors.IsNotFound(err) {
		return err
	}
	if admin == nil {
		return fiber.NewError(fiber.StatusForbidden, adminDeniedDetail)
	}

	if _, err := ct.store.FindInstructor(c.UserContext(), instructorID); err != nil {
		if errors.IsNotFound(err) {
			return fiber.NewError(fiber.StatusNotFound, delegateNotFoundDetail)
		}
		return err
	}

	return ct.links.RedirectWithSession(c, dest, instructorID, DefaultSessionTTL, nowfn)
}

// GetCourses lists the current instructor's courses.
func (ct *Controller) GetCourses(c *fiber.Ctx) error {
	instructor, err := ct.currentInstructor(c)
	if err != nil {
		return err
	}

	courses, err := ct.store.CoursesByInstructor(c.UserContext(), instructor.RecordID, ExcludedCourseSessions)
	if err != nil {
		return err
	}

	out := CoursesResponse{Courses: make([]CourseResponse, 0, len(courses))}
	for _, course := range courses {
		out.Courses = append(out.Courses, processCourse(course))
	}
	return c.JSON(out)
}

// GetPreAssessmentStudents lists pre- and post-assessment submissions for
// a class the instructor teaches.
func (ct *Controller) GetPreAssessmentStudents(c *fiber.Ctx) error {
	classID := c.Params("classID")

	instructor, err := ct.currentInstructor(c)
	if err != nil {
		return err
	}

	teaches, err := ct.store.InstructorTeachesCourse(c.UserContext(), instructor.RecordID, classID, ExcludedCourseSessions)
	if err != nil {
		return err
	}
	if !teaches {
		return fiber.NewError(fiber.StatusForbidden, "You do not have permission to view this class's pre-assessment students.")
	}

	preStudents, err := ct.store.PreAssessmentsByClass(c.UserContext(), classID)
	if err != nil {
		return err
	}
	postStudents, err := ct.store.PostAssessmentsByClass(c.UserContext(), classID)
	if err != nil {
		return err
	}

	sort.Slice(preStudents, func(i, j int) bool {
		a, b := preStudents[i], preStudents[j]
		al, bl := strings.ToLower(a.LastName), strings.ToLower(b.LastName)
		if al != bl {
			return al < bl
		}
		return strings.ToLower(a.FirstName) < strings.ToLower(b.FirstName)
	})

	sort.Slice(postStudents, func(i, j int) bool {
		return strings.ToLower(postSortKey(postStudents[i])) < strings.ToLower(postSortKey(postStudents[j]))
	})

	out := AssessmentSubmissionsResponse{
		PreAssessmentSubmissions:  make([]PreAssessmentSubmissionResponse, 0, len(preStudents)),
		PostAssessmentSubmissions: make([]PostAssessmentSubmissionResponse, 0, len(postStudents)),
	}

	for _, student := range preStudents {
		out.PreAssessmentSubmissions = append(out.PreAssessmentSubmissions, PreAssessmentSubmissionResponse{
			ID:             student.SubmissionID,
			FirstName:      student.FirstName,
			LastName:       student.LastName,
			Email:          student.Email,
			SubmissionDate: student.SubmittedAt,
			StudentID:      student.StudentID,
			ClassID:        student.ClassID,
			Removed:        len(student.RemovalStatus) > 0 && student.RemovalStatus[0] != "",
		})
	}

	for _, submission := range postStudents {
		status, removed := normalizePostStatus(submission)
		out.PostAssessmentSubmissions = append(out.PostAssessmentSubmissions, PostAssessmentSubmissionResponse{
			ID:             submission.SubmissionID,
			Name:           submission.Name,
			Email:          submission.Email,
			SubmissionDate: submission.SubmittedAt,
			StudentID:      submission.StudentID,
			ClassID:        classID,
			Status:         status,
			Removed:        removed,
		})
	}

	return c.JSON(out)
}

// UpdateEnrollment updates the enrollment count for a course taught by the
// current instructor.
func (ct *Controller) UpdateEnrollment(c *fiber.Ctx) error {
	classID := c.Params("classID")

	var req UpdateEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.EnrollmentCount < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Enrollment must be a non-negative integer.")
	}

	instructor, err := ct.currentInstructor(c)
	if err != nil {
		return err
	}

	teaches, err := ct.store.InstructorTeachesCourse(c.UserContext(), instructor.RecordID, classID, ExcludedCourseSessions)
	if err != nil {
		return err
	}
	if !teaches {
		return fiber.NewError(fiber.StatusForbidden, "You do not have permission to update this course.")
	}

	if err := ct.store.UpdateCourseEnrollment(c.UserContext(), classID, req.EnrollmentCount); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(okStatus)
}

// DeleteSubmission requests removal of a student and their group
// associations for a class the instructor teaches.
func (ct *Controller) DeleteSubmission(c *fiber.Ctx) error {
	classID := c.Params("classID")
	submissionID := c.Params("submissionID")

	instructor, err := ct.currentInstructor(c)
	if err != nil {
		return err
	}

	teaches, err := ct.store.InstructorTeachesCourse(c.UserContext(), instructor.RecordID, classID, ExcludedCourseSessions)
	if err != nil {
		return err
	}
	if !teaches {
		return fiber.NewError(fiber.StatusForbidden, "You do not have permission to update this course.")
	}

	submission, err := ct.store.PreAssessmentBySubmissionID(c.UserContext(), submissionID)
	if err != nil {
		return err
	}
	if submission == nil || submission.ClassID == "" || submission.StudentID == "" || submission.ClassID != classID {
		return fiber.NewError(fiber.StatusNotFound, "Student not found.")
	}

	if _, err := ct.store.RequestStudentGroupRemoval(c.UserContext(), submission.StudentID, submission.ClassID); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	return c.JSON(okStatus)
}

func (ct *Controller) currentInstructor(c *fiber.Ctx) (*Instructor, error) {
	userID := SessionFromCtx(c).Token.Sub
	instructor, err := ct.store.FindInstructor(c.UserContext(), userID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, fiber.NewError(fiber.StatusNotFound, instructorNotFoundDetail)
		}
		return nil, err
	}
	return instructor, nil
}

func (ct *Controller) sendLoginLink(ctx context.Context, instructorID, toEmail, forward string, nowfn NowFunc) error {
	link, err := ct.links.GenerateAuthLink(instructorID, forward, magicLinkTTL, nowfn, AudienceStudy)
	if err != nil {
		return err
	}

	body, err := ct.renderer.RenderLoginMessage(LoginMessage{
		Title:     "Welcome back!",
		Subtitle:  "Click the button below to log in to the College Study dashboard. No password required. It's secure and easy.",
		Kind:      "login link",
		CTA:       "Login to your Study Dashboard",
		Expires:   humanDuration(magicLinkTTL, nowfn),
		Link:      link,
		Email:     toEmail,
		LegalText: "because you requested a login link from the College Study",
	})
	if err != nil {
		return err
	}

	return ct.mailer.Send(ctx, toEmail, "Log back in to your Study Dashboard", body)
}

func (ct *Controller) sendLoginAsLink(ctx context.Context, instructor *Instructor, admin *Admin, forward string, nowfn NowFunc) error {
	subject := instructor.RecordID + ":" + admin.RecordID
	link, err := ct.links.GenerateAuthLink(subject, forward, loginAsTTL, nowfn, AudienceStudyAdmin)
	if err != nil {
		return err
	}

	body, err := ct.renderer.RenderLoginMessage(LoginMessage{
		Title:     "Login as " + instructor.FirstName + " " + instructor.LastName,
		Subtitle:  "Click the button below to log in to the College Study dashboard as this instructor. No password required. It's secure and easy.",
		Kind:      "login link",
		CTA:       "Login as instructor",
		Expires:   humanDuration(loginAsTTL, nowfn),
		Link:      link,
		Email:     admin.Email,
		LegalText: "because you requested a login link from the College Study",
	})
	if err != nil {
		return err
	}

	return ct.mailer.Send(ctx, admin.Email, "Here's the Study Dashboard login link you requested", body)
}

// recoverExpiredLogin re-mails a fresh link when an expired token still
// identifies a reachable instructor; otherwise the user lands back on the
// login page with the expired marker.
func (ct *Controller) recoverExpiredLogin(c *fiber.Ctx, userID, forward string, nowfn NowFunc) error {
	expiredRedirect := "/login?expired=true&forward=" + url.QueryEscape(forward)

	instructor, err := ct.store.FindInstructor(c.UserContext(), userID)
	if err != nil || instructor.AcademicEmail == "" {
		return c.Redirect(expiredRedirect, fiber.StatusSeeOther)
	}

	if err := ct.sendLoginLink(c.UserContext(), instructor.RecordID, instructor.AcademicEmail, forward, nowfn); err != nil {
		ct.logger.Error("failed to re-send login link for %s: %v", userID, err)
		return c.Redirect(expiredRedirect, fiber.StatusSeeOther)
	}

	return c.Redirect("/login?new_link=true", fiber.StatusSeeOther)
}

func (ct *Controller) recoverExpiredLoginAs(c *fiber.Ctx, subject, forward string, nowfn NowFunc) error {
	expiredRedirect := "/login?expired=true&forward=" + url.QueryEscape(forward)

	instructorID, adminID, err := splitDelegatedSubject(subject)
	if err != nil {
		return c.Redirect(expiredRedirect, fiber.StatusSeeOther)
	}

	instructor, ierr := ct.store.FindInstructor(c.UserContext(), instructorID)
	admin, aerr := ct.store.FindAdmin(c.UserContext(), adminID)
	if ierr != nil || aerr != nil || instructor.AcademicEmail == "" || admin == nil || admin.Email == "" {
		return c.Redirect(expiredRedirect, fiber.StatusSeeOther)
	}

	if err := ct.sendLoginAsLink(c.UserContext(), instructor, admin, forward, nowfn); err != nil {
		ct.logger.Error("failed to re-send login-as link for %s: %v", subject, err)
		return c.Redirect(expiredRedirect, fiber.StatusSeeOther)
	}

	return c.Redirect("/login?new_link=true", fiber.StatusSeeOther)
}

func splitDelegatedSubject(sub string) (instructorID, adminID string, err error) {
	parts := strings.SplitN(sub, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("malformed delegated subject", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized)
	}
	return parts[0], parts[1], nil
}

// processCourse maps the raw review status onto the public projection.
// Fields that only make sense for accepted courses stay empty otherwise.
func processCourse(course Course) CourseResponse {
	status := "in_review"
	switch course.Status {
	case "Rejected":
		status = "rejected"
	case "Withdrawn":
		status = "withdrawn"
	case "Accepted — Treatment", "Accepted — Control":
		status = "accepted"
	}

	accepted := status == "accepted"

	randomization := ""
	if accepted {
		switch course.Randomization {
		case "Treatment":
			randomization = "treatment"
		case "Control":
			randomization = "control"
		}
	}

	out := CourseResponse{
		ID:              course.RecordID,
		Name:            course.Name,
		Status:          status,
		Randomization:   randomization,
		StartDate:       course.StartDate,
		EndDate:         course.EndDate,
		EnrollmentCount: course.EnrollmentCount,
	}

	if accepted {
		if course.CompletionRateTarget != nil {
			target := *course.CompletionRateTarget * 100
			out.CompletionRateTarget = &target
		}
		out.PreAssessmentURL = course.PreAssessmentURL
		out.PostAssessmentURL = course.PostAssessmentURL
		out.PingPongGroupURL = course.PingPongGroupURL
		out.PreAssessmentStudentCount = course.PreAssessmentStudentCount
		out.PostAssessmentStudentCount = course.PostAssessmentStudentCount
	}

	return out
}

// normalizePostStatus collapses the raw automation status and error type
// into OK, PEND, NRC, or PRE, plus whether the student was removed.
func normalizePostStatus(submission PostAssessmentSubmission) (string, bool) {
	raw := strings.TrimSpace(submission.Status)
	errType := strings.TrimSpace(submission.ErrorType)
	removed := raw == "Removed from Class"

	switch raw {
	case "Complete":
		return "OK", removed
	case "Error":
		switch errType {
		case "OK", "NRC", "PRE":
			return errType, removed
		}
	}
	return "PEND", removed
}

func postSortKey(submission PostAssessmentSubmission) string {
	if submission.Name != "" {
		return submission.Name
	}
	return submission.Email
}

func humanDuration(seconds int, nowfn NowFunc) string {
	now := nowfn()
	return strings.TrimSpace(humanize.RelTime(now.Add(time.Duration(seconds)*time.Second), now, "", ""))
}
