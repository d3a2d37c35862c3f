package sync

import (
	"context"

	"github.com/goliatone/go-study/airtable"
)

// Tables holding the pending platform work. These live in the same base as
// the study tables but are addressed by name.
const (
	classRequestTable  = "PingPong Classes"
	studentRecordTable = "PingPong UserRecords"
	externalLoginTable = "PingPong ExternalLogins"
)

// Request statuses written back as jobs progress.
const (
	StatusReadyForAdd = "Ready for Add"
	StatusAddToClass  = "Add to Class"
	StatusReadyToAdd  = "Ready to Add"
	StatusAdded       = "Added"
	StatusError       = "Error"
)

const (
	fieldStatus         = "Status"
	fieldStatusNotes    = "Status Notes"
	fieldUpdateStatus   = "Update Class Status"
	fieldPlatformID     = "PingPong ID"
	fieldRemoveAdmin    = "Remove Admin"
	fieldClassName      = "Class Name"
	fieldClassTerm      = "Class Term"
	fieldInstitution    = "Class Institution"
	fieldTeacherEmail   = "Teacher Email"
	fieldStudentEmail   = "Email (from User)"
	fieldStudentClassID = "PingPong ID (from Class)"
	fieldPrimaryEmail   = "Primary Email"
	fieldLoginEmail     = "Login Email"
)

// ClassRequest is a pending class creation row.
type ClassRequest struct {
	RecordID     string
	Name         string
	Term         string
	Institution  string
	TeacherEmail string
	PlatformID   string
}

// StudentRequest is a pending student enrollment row.
type StudentRequest struct {
	RecordID string
	Email    string
	ClassID  string
}

// ExternalLoginRequest is a pending login-alias row.
type ExternalLoginRequest struct {
	RecordID     string
	CurrentEmail string
	NewEmail     string
}

// Catalog reads and updates the pending-work tables.
type Catalog struct {
	client *airtable.Client
}

func NewCatalog(client *airtable.Client) *Catalog {
	return &Catalog{client: client}
}

func (c *Catalog) PendingClassRequests(ctx context.Context) ([]ClassRequest, error) {
	records, err := c.client.ListRecords(ctx, classRequestTable, airtable.EQ(fieldStatus, StatusReadyForAdd))
	if err != nil {
		return nil, err
	}

	out := make([]ClassRequest, 0, len(records))
	for i := range records {
		out = append(out, recordToClassRequest(&records[i]))
	}
	return out, nil
}

// ClassesAwaitingAdminRemoval lists created classes where the automation
// account still holds a seat.
func (c *Catalog) ClassesAwaitingAdminRemoval(ctx context.Context) ([]ClassRequest, error) {
	records, err := c.client.ListRecords(ctx, classRequestTable,
		airtable.Field(fieldRemoveAdmin)+"=FALSE()")
	if err != nil {
		return nil, err
	}

	out := make([]ClassRequest, 0, len(records))
	for i := range records {
		out = append(out, recordToClassRequest(&records[i]))
	}
	return out, nil
}

func (c *Catalog) PendingStudents(ctx context.Context) ([]StudentRequest, error) {
	records, err := c.client.ListRecords(ctx, studentRecordTable, airtable.EQ(fieldStatus, StatusAddToClass))
	if err != nil {
		return nil, err
	}

	out := make([]StudentRequest, 0, len(records))
	for i := range records {
		out = append(out, StudentRequest{
			RecordID: records[i].ID,
			Email:    records[i].Fields.FirstStr(fieldStudentEmail),
			ClassID:  records[i].Fields.FirstStr(fieldStudentClassID),
		})
	}
	return out, nil
}

func (c *Catalog) PendingExternalLogins(ctx context.Context) ([]ExternalLoginRequest, error) {
	records, err := c.client.ListRecords(ctx, externalLoginTable, airtable.EQ(fieldStatus, StatusReadyToAdd))
	if err != nil {
		return nil, err
	}

	out := make([]ExternalLoginRequest, 0, len(records))
	for i := range records {
		out = append(out, ExternalLoginRequest{
			RecordID:     records[i].ID,
			CurrentEmail: records[i].Fields.Str(fieldPrimaryEmail),
			NewEmail:     records[i].Fields.Str(fieldLoginEmail),
		})
	}
	return out, nil
}

// MarkClassAdded records the platform id and completes the request.
func (c *Catalog) MarkClassAdded(ctx context.Context, recordID, platformID string) error {
	return c.client.UpdateRecord(ctx, classRequestTable, recordID, airtable.Fields{
		fieldStatus:       StatusAdded,
		fieldUpdateStatus: "Complete",
		fieldPlatformID:   platformID,
		fieldRemoveAdmin:  true,
	})
}

func (c *Catalog) MarkClassFailed(ctx context.Context, recordID string, cause error) error {
	return c.client.UpdateRecord(ctx, classRequestTable, recordID, airtable.Fields{
		fieldStatus:      StatusError,
		fieldStatusNotes: cause.Error(),
	})
}

func (c *Catalog) MarkAdminRemoved(ctx context.Context, recordID string) error {
	return c.client.UpdateRecord(ctx, classRequestTable, recordID, airtable.Fields{
		fieldRemoveAdmin: true,
	})
}

func (c *Catalog) MarkStudentAdded(ctx context.Context, recordID string) error {
	return c.client.UpdateRecord(ctx, studentRecordTable, recordID, airtable.Fields{
		fieldStatus: StatusAdded,
	})
}

func (c *Catalog) MarkStudentFailed(ctx context.Context, recordID string, cause error) error {
	return c.client.UpdateRecord(ctx, studentRecordTable, recordID, airtable.Fields{
		fieldStatus:      StatusError,
		fieldStatusNotes: cause.Error(),
	})
}

func (c *Catalog) MarkExternalLoginAdded(ctx context.Context, recordID string) error {
	return c.client.UpdateRecord(ctx, externalLoginTable, recordID, airtable.Fields{
		fieldStatus: StatusAdded,
	})
}

func (c *Catalog) MarkExternalLoginFailed(ctx context.Context, recordID string, cause error) error {
	return c.client.UpdateRecord(ctx, externalLoginTable, recordID, airtable.Fields{
		fieldStatus:      StatusError,
		fieldStatusNotes: cause.Error(),
	})
}

func recordToClassRequest(rec *airtable.Record) ClassRequest {
	return ClassRequest{
		RecordID:     rec.ID,
		Name:         rec.Fields.FirstStr(fieldClassName),
		Term:         rec.Fields.Str(fieldClassTerm),
		Institution:  rec.Fields.Str(fieldInstitution),
		TeacherEmail: rec.Fields.FirstStr(fieldTeacherEmail),
		PlatformID:   rec.Fields.Str(fieldPlatformID),
	}
}
