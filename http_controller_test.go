package study

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory StudyStore. Lookups miss with the same
// shape the airtable store uses: a rich not-found error for instructors
// fetched by id, nil results everywhere else.
type fakeStore struct {
	instructors       map[string]*Instructor
	instructorsByMail map[string]*Instructor
	admins            map[string]*Admin
	adminsByMail      map[string]*Admin
	courses           []Course
	teaches           bool
	pre               []PreAssessmentSubmission
	post              []PostAssessmentSubmission
	preByID           map[string]*PreAssessmentSubmission
	noticesSeen       []string
	enrollments       map[string]int
	removals          []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		instructors:       map[string]*Instructor{},
		instructorsByMail: map[string]*Instructor{},
		admins:            map[string]*Admin{},
		adminsByMail:      map[string]*Admin{},
		preByID:           map[string]*PreAssessmentSubmission{},
		enrollments:       map[string]int{},
		teaches:           true,
	}
}

func (f *fakeStore) FindInstructor(_ context.Context, id string) (*Instructor, error) {
	if in, ok := f.instructors[id]; ok {
		return in, nil
	}
	return nil, ErrInstructorNotFound
}

func (f *fakeStore) FindInstructorByEmail(_ context.Context, email string) (*Instructor, error) {
	return f.instructorsByMail[email], nil
}

func (f *fakeStore) FindAdmin(_ context.Context, id string) (*Admin, error) {
	return f.admins[id], nil
}

func (f *fakeStore) FindAdminByEmail(_ context.Context, email string) (*Admin, error) {
	return f.adminsByMail[email], nil
}

func (f *fakeStore) CoursesByInstructor(_ context.Context, _ string, _ []string) ([]Course, error) {
	return f.courses, nil
}

func (f *fakeStore) InstructorTeachesCourse(_ context.Context, _, _ string, _ []string) (bool, error) {
	return f.teaches, nil
}

func (f *fakeStore) UpdateCourseEnrollment(_ context.Context, courseID string, count int) error {
	f.enrollments[courseID] = count
	return nil
}

func (f *fakeStore) PreAssessmentsByClass(_ context.Context, _ string) ([]PreAssessmentSubmission, error) {
	return f.pre, nil
}

func (f *fakeStore) PreAssessmentBySubmissionID(_ context.Context, id string) (*PreAssessmentSubmission, error) {
	return f.preByID[id], nil
}

func (f *fakeStore) PostAssessmentsByClass(_ context.Context, _ string) ([]PostAssessmentSubmission, error) {
	return f.post, nil
}

func (f *fakeStore) RequestStudentGroupRemoval(_ context.Context, studentID, classID string) (int, error) {
	f.removals = append(f.removals, studentID+"/"+classID)
	return 1, nil
}

func (f *fakeStore) SetInstructorNoticeSeen(_ context.Context, instructorID string) error {
	f.noticesSeen = append(f.noticesSeen, instructorID)
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	if m.fail {
		return assert.AnError
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

type fakeRenderer struct{}

func (fakeRenderer) RenderLoginMessage(msg LoginMessage) (string, error) {
	return msg.Title + "|" + msg.Link, nil
}

func newTestEnv(t *testing.T) (*fakeStore, *fakeMailer, *Codec, func(*http.Request) *http.Response) {
	t.Helper()

	store := newFakeStore()
	mailer := &fakeMailer{}
	codec := newTestCodec(t, testKeyA)

	cfg := &Config{StudyPublicURL: testBaseURL}
	app := NewApp(AppOptions{
		Config:     cfg,
		Resolver:   NewResolver(codec, store, nil),
		Controller: NewController(store, codec, NewLinks(codec, cfg.StudyPublicURL), mailer, fakeRenderer{}, nil),
		Clock:      FixedNow(testEpoch),
	})

	do := func(req *http.Request) *http.Response {
		res, err := app.Test(req)
		require.NoError(t, err)
		return res
	}
	return store, mailer, codec, do
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionRequest(t *testing.T, codec *Codec, method, path string) *http.Request {
	t.Helper()
	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	return req
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func detailOf(t *testing.T, res *http.Response) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, res, &body)
	return body.Detail
}

func TestHealth(t *testing.T) {
	_, _, _, do := newTestEnv(t)

	res := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body GenericStatus
	decodeBody(t, res, &body)
	assert.Equal(t, "ok", body.Status)
}

func TestGetMeWithoutCookie(t *testing.T) {
	_, _, _, do := newTestEnv(t)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/me", nil))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var state SessionState
	decodeBody(t, res, &state)
	assert.Equal(t, SessionMissing, state.Status)
}

func TestGetMeWithValidSession(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	res := do(sessionRequest(t, codec, http.MethodGet, "/api/study/me"))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var state SessionState
	decodeBody(t, res, &state)
	assert.Equal(t, SessionValid, state.Status)
	require.NotNil(t, state.Instructor)
	assert.Equal(t, "Kay", state.Instructor.FirstName)
	require.NotNil(t, state.FeatureFlags)
	assert.True(t, state.FeatureFlags.Flags[NoticeProfileMovedKey])
}

func TestLoginMagicUnknownEmail(t *testing.T) {
	_, mailer, _, do := newTestEnv(t)

	res := do(jsonRequest(http.MethodPost, "/api/study/login/magic",
		MagicLoginRequest{Email: "nobody@example.edu"}))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, detailOf(t, res), "institutional email address")
	assert.Empty(t, mailer.sent)
}

func TestLoginMagicRejectsBadEmail(t *testing.T) {
	_, _, _, do := newTestEnv(t)

	res := do(jsonRequest(http.MethodPost, "/api/study/login/magic",
		MagicLoginRequest{Email: "not-an-email"}))
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestLoginMagicSendsLink(t *testing.T) {
	store, mailer, codec, do := newTestEnv(t)
	store.instructorsByMail["kay@example.edu"] = testInstructor()

	res := do(jsonRequest(http.MethodPost, "/api/study/login/magic",
		MagicLoginRequest{Email: "kay@example.edu", Forward: "/dashboard"}))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	assert.Equal(t, "kay@example.edu", mail.to)
	assert.Equal(t, "Log back in to your Study Dashboard", mail.subject)
	assert.Contains(t, mail.body, "Welcome back!")
	assert.Contains(t, mail.body, "/api/study/auth?token=")
	assert.Contains(t, mail.body, "redirect="+url.QueryEscape("/dashboard"))

	// The embedded token is for the instructor, valid for a day.
	link := mail.body[strings.Index(mail.body, "|")+1:]
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	decoded, err := codec.Decode(parsed.Query().Get("token"), FixedNow(testEpoch))
	require.NoError(t, err)
	assert.Equal(t, "rec123", decoded.Sub)
	assert.Equal(t, int64(86_400), decoded.TTL())
}

func TestLoginAs(t *testing.T) {
	store, mailer, codec, do := newTestEnv(t)
	store.adminsByMail["admin@example.edu"] = &Admin{RecordID: "recAdmin", Email: "admin@example.edu"}
	store.instructorsByMail["kay@example.edu"] = testInstructor()

	res := do(jsonRequest(http.MethodPost, "/api/study/admin/login-as", LoginAsRequest{
		InstructorEmail: "kay@example.edu",
		AdminEmail:      "admin@example.edu",
	}))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	assert.Equal(t, "admin@example.edu", mail.to)
	assert.Contains(t, mail.body, "Login as Kay Adams")
	assert.Contains(t, mail.body, "/api/study/auth/admin?token=")

	link := mail.body[strings.Index(mail.body, "|")+1:]
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	decoded, err := codec.Decode(parsed.Query().Get("token"), FixedNow(testEpoch))
	require.NoError(t, err)
	assert.Equal(t, "rec123:recAdmin", decoded.Sub)
	assert.Equal(t, int64(3_600), decoded.TTL())
}

func TestLoginAsUnknownAdmin(t *testing.T) {
	store, _, _, do := newTestEnv(t)
	store.instructorsByMail["kay@example.edu"] = testInstructor()

	res := do(jsonRequest(http.MethodPost, "/api/study/admin/login-as", LoginAsRequest{
		InstructorEmail: "kay@example.edu",
		AdminEmail:      "stranger@example.edu",
	}))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Access denied.", detailOf(t, res))
}

func TestLoginAsUnknownInstructor(t *testing.T) {
	store, _, _, do := newTestEnv(t)
	store.adminsByMail["admin@example.edu"] = &Admin{RecordID: "recAdmin", Email: "admin@example.edu"}

	res := do(jsonRequest(http.MethodPost, "/api/study/admin/login-as", LoginAsRequest{
		InstructorEmail: "nobody@example.edu",
		AdminEmail:      "admin@example.edu",
	}))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "Instructor not found.", detailOf(t, res))
}

func TestAuthRedirectsWithSession(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123", 600, FixedNow(testEpoch))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet,
		"/api/study/auth?token="+token+"&redirect="+url.QueryEscape("/dashboard"), nil))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, testBaseURL+"/dashboard", res.Header.Get("Location"))

	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.Equal(t, DefaultSessionTTL, cookies[0].MaxAge)
}

func TestAuthGarbageToken(t *testing.T) {
	_, _, _, do := newTestEnv(t)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth?token=garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestAuthUnknownInstructor(t *testing.T) {
	_, _, _, do := newTestEnv(t)
	codec := newTestCodec(t, testKeyA)

	token, err := codec.Encode("recGhost", 600, FixedNow(testEpoch))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth?token="+token, nil))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, ErrInstructorNotFound.Message, detailOf(t, res))
}

func TestAuthExpiredTokenResendsLink(t *testing.T) {
	store, mailer, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	// Minted ten days before the pinned request clock.
	token, err := codec.Encode("rec123", 600, FixedNow(testEpoch.AddDate(0, 0, -10)))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet,
		"/api/study/auth?token="+token+"&redirect="+url.QueryEscape("/dashboard"), nil))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?new_link=true", res.Header.Get("Location"))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "kay@example.edu", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "redirect="+url.QueryEscape("/dashboard"))
}

func TestAuthExpiredTokenUnknownInstructor(t *testing.T) {
	_, mailer, codec, do := newTestEnv(t)

	token, err := codec.Encode("recGhost", 600, FixedNow(testEpoch.AddDate(0, 0, -10)))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet,
		"/api/study/auth?token="+token+"&redirect="+url.QueryEscape("/dashboard"), nil))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?expired=true&forward="+url.QueryEscape("/dashboard"), res.Header.Get("Location"))
	assert.Empty(t, mailer.sent)
}

func TestAuthExpiredTokenSendFailure(t *testing.T) {
	store, mailer, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	mailer.fail = true

	token, err := codec.Encode("rec123", 600, FixedNow(testEpoch.AddDate(0, 0, -10)))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth?token="+token, nil))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Header.Get("Location"), "/login?expired=true"))
}

func TestAuthAdmin(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.admins["recAdmin"] = &Admin{RecordID: "recAdmin", Email: "admin@example.edu"}

	token, err := codec.Encode("rec123:recAdmin", 3600, FixedNow(testEpoch))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth/admin?token="+token, nil))
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	// The session belongs to the instructor, not the admin.
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	decoded, err := codec.DecodeSession(cookies[0].Value, FixedNow(testEpoch))
	require.NoError(t, err)
	assert.Equal(t, "rec123", decoded.Sub)
}

func TestAuthAdminUnknownAdmin(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123:recGhost", 3600, FixedNow(testEpoch))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth/admin?token="+token, nil))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "Access denied. Please contact the study administrator.", detailOf(t, res))
}

func TestAuthAdminMalformedSubject(t *testing.T) {
	_, _, codec, do := newTestEnv(t)

	token, err := codec.Encode("rec123", 3600, FixedNow(testEpoch))
	require.NoError(t, err)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/auth/admin?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestGetCoursesRequiresSession(t *testing.T) {
	_, _, _, do := newTestEnv(t)

	res := do(httptest.NewRequest(http.MethodGet, "/api/study/courses", nil))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, detailOf(t, res), "Missing valid session token: missing")
}

func TestGetCoursesProjection(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	enrollment := 42
	target := 0.8
	preCount := 30
	store.courses = []Course{
		{
			RecordID:                  "recAccepted",
			Name:                      "Intro Biology",
			Status:                    "Accepted — Treatment",
			Randomization:             "Treatment",
			StartDate:                 "2025-09-01",
			EnrollmentCount:           &enrollment,
			CompletionRateTarget:      &target,
			PreAssessmentURL:          "https://forms.example/pre",
			PingPongGroupURL:          "https://platform.example/group",
			PreAssessmentStudentCount: &preCount,
		},
		{
			RecordID:             "recPending",
			Name:                 "Chemistry",
			Status:               "Ready for Review",
			Randomization:        "Control",
			CompletionRateTarget: &target,
			PreAssessmentURL:     "https://forms.example/pre2",
		},
		{RecordID: "recRejected", Name: "Physics", Status: "Rejected"},
		{RecordID: "recGone", Name: "History", Status: "Withdrawn"},
	}

	res := do(sessionRequest(t, codec, http.MethodGet, "/api/study/courses"))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body CoursesResponse
	decodeBody(t, res, &body)
	require.Len(t, body.Courses, 4)

	accepted := body.Courses[0]
	assert.Equal(t, "accepted", accepted.Status)
	assert.Equal(t, "treatment", accepted.Randomization)
	require.NotNil(t, accepted.CompletionRateTarget)
	assert.InDelta(t, 80.0, *accepted.CompletionRateTarget, 0.001)
	assert.Equal(t, "https://forms.example/pre", accepted.PreAssessmentURL)
	assert.Equal(t, "https://platform.example/group", accepted.PingPongGroupURL)
	require.NotNil(t, accepted.PreAssessmentStudentCount)
	assert.Equal(t, 30, *accepted.PreAssessmentStudentCount)

	// Courses still in review hide the accepted-only fields.
	pending := body.Courses[1]
	assert.Equal(t, "in_review", pending.Status)
	assert.Empty(t, pending.Randomization)
	assert.Nil(t, pending.CompletionRateTarget)
	assert.Empty(t, pending.PreAssessmentURL)

	assert.Equal(t, "rejected", body.Courses[2].Status)
	assert.Equal(t, "withdrawn", body.Courses[3].Status)
}

func TestGetPreAssessmentStudents(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.pre = []PreAssessmentSubmission{
		{SubmissionID: "R-2", FirstName: "ana", LastName: "zimmer", Email: "ana@example.edu"},
		{SubmissionID: "R-1", FirstName: "Bo", LastName: "Adams", Email: "bo@example.edu",
			RemovalStatus: []string{"Removed from Class"}},
	}
	store.post = []PostAssessmentSubmission{
		{SubmissionID: "P-2", Name: "zed", Email: "zed@example.edu", Status: "Complete"},
		{SubmissionID: "P-1", Name: "", Email: "amy@example.edu", Status: "Error", ErrorType: "NRC"},
		{SubmissionID: "P-3", Name: "Mia", Email: "mia@example.edu", Status: "Removed from Class"},
	}

	res := do(sessionRequest(t, codec, http.MethodGet, "/api/study/preassessment/class-1/students"))
	assert.Equal(t, http.StatusOK, res.StatusCode)

	var body AssessmentSubmissionsResponse
	decodeBody(t, res, &body)

	// Pre sorted by last, then first name, case-insensitively.
	require.Len(t, body.PreAssessmentSubmissions, 2)
	assert.Equal(t, "R-1", body.PreAssessmentSubmissions[0].ID)
	assert.True(t, body.PreAssessmentSubmissions[0].Removed)
	assert.Equal(t, "R-2", body.PreAssessmentSubmissions[1].ID)
	assert.False(t, body.PreAssessmentSubmissions[1].Removed)

	// Post sorted by name, falling back to email for blank names.
	require.Len(t, body.PostAssessmentSubmissions, 3)
	assert.Equal(t, "P-1", body.PostAssessmentSubmissions[0].ID)
	assert.Equal(t, "NRC", body.PostAssessmentSubmissions[0].Status)
	assert.Equal(t, "P-3", body.PostAssessmentSubmissions[1].ID)
	assert.Equal(t, "PEND", body.PostAssessmentSubmissions[1].Status)
	assert.True(t, body.PostAssessmentSubmissions[1].Removed)
	assert.Equal(t, "P-2", body.PostAssessmentSubmissions[2].ID)
	assert.Equal(t, "OK", body.PostAssessmentSubmissions[2].Status)
}

func TestGetPreAssessmentStudentsForbidden(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.teaches = false

	res := do(sessionRequest(t, codec, http.MethodGet, "/api/study/preassessment/class-1/students"))
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, detailOf(t, res), "pre-assessment students")
}

func TestUpdateEnrollment(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPatch, "/api/study/courses/recCourse/enrollment",
		UpdateEnrollmentRequest{EnrollmentCount: 35})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	res := do(req)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 35, store.enrollments["recCourse"])
}

func TestUpdateEnrollmentRejectsNegative(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPatch, "/api/study/courses/recCourse/enrollment",
		UpdateEnrollmentRequest{EnrollmentCount: -1})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	res := do(req)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Enrollment must be a non-negative integer.", detailOf(t, res))
}

func TestUpdateEnrollmentForbiddenForOtherCourses(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.teaches = false

	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPatch, "/api/study/courses/recCourse/enrollment",
		UpdateEnrollmentRequest{EnrollmentCount: 10})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	res := do(req)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "You do not have permission to update this course.", detailOf(t, res))
}

func TestDeleteSubmission(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.preByID["R-1"] = &PreAssessmentSubmission{
		SubmissionID: "R-1", StudentID: "stu-1", ClassID: "class-1",
	}

	res := do(sessionRequest(t, codec, http.MethodDelete, "/api/study/preassessment/class-1/students/R-1"))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"stu-1/class-1"}, store.removals)
}

func TestDeleteSubmissionClassMismatch(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()
	store.preByID["R-1"] = &PreAssessmentSubmission{
		SubmissionID: "R-1", StudentID: "stu-1", ClassID: "class-2",
	}

	res := do(sessionRequest(t, codec, http.MethodDelete, "/api/study/preassessment/class-1/students/R-1"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "Student not found.", detailOf(t, res))
	assert.Empty(t, store.removals)
}

func TestNoticeSeen(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/api/study/me/notices/seen",
		NoticeSeenRequest{Key: NoticeProfileMovedKey})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	res := do(req)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"rec123"}, store.noticesSeen)
}

func TestNoticeSeenUnknownKey(t *testing.T) {
	store, _, codec, do := newTestEnv(t)
	store.instructors["rec123"] = testInstructor()

	token, err := codec.Encode("rec123", DefaultSessionTTL, FixedNow(testEpoch))
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/api/study/me/notices/seen",
		NoticeSeenRequest{Key: "banner.maintenance_2025_09.v1"})
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	res := do(req)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Unknown notice key", detailOf(t, res))
	assert.Empty(t, store.noticesSeen)
}
