package sync

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

// Processor drains the pending-work tables. Each job handles its rows
// independently: one bad row is marked Error and the rest still run.
type Processor struct {
	catalog  *Catalog
	platform *PlatformClient
	logger   study.Logger
}

func NewProcessor(catalog *Catalog, platform *PlatformClient, logger study.Logger) *Processor {
	return &Processor{catalog: catalog, platform: platform, logger: logger}
}

// Run executes every job once. Job-level failures are logged and do not
// stop the remaining jobs.
func (p *Processor) Run(ctx context.Context) {
	runID := uuid.New().String()
	p.logger.Info("sync run %s starting", runID)

	jobs := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"class_requests", p.ProcessClassRequests},
		{"students_to_add", p.ProcessStudentsToAdd},
		{"remove_self_from_classes", p.ProcessRemoveSelfFromClasses},
		{"external_logins_to_add", p.ProcessExternalLoginsToAdd},
	}

	for _, job := range jobs {
		if err := job.fn(ctx); err != nil {
			p.logger.Error("sync run %s: job %s failed: %v", runID, job.name, err)
		}
	}

	p.logger.Info("sync run %s finished", runID)
}

// ProcessClassRequests creates a platform class for every request marked
// ready: the institution is found or created, the class is created, the
// teacher is enrolled as moderator, and the automation account removes
// itself.
func (p *Processor) ProcessClassRequests(ctx context.Context) error {
	requests, err := p.catalog.PendingClassRequests(ctx)
	if err != nil {
		return err
	}

	for _, request := range requests {
		if err := p.createClass(ctx, request); err != nil {
			p.logger.Error("failed to process class request %s: %v", request.RecordID, err)
			if markErr := p.catalog.MarkClassFailed(ctx, request.RecordID, err); markErr != nil {
				p.logger.Error("failed to record class request error for %s: %v", request.RecordID, markErr)
			}
			continue
		}
	}
	return nil
}

func (p *Processor) createClass(ctx context.Context, request ClassRequest) error {
	institution, err := p.getOrCreateInstitution(ctx, request.Institution)
	if err != nil {
		return err
	}

	class, err := p.platform.CreateClass(ctx, institution.ID, request.Name, request.Term)
	if err != nil {
		return err
	}
	p.logger.Debug("class %q created in %q", class.Name, institution.Name)

	err = p.platform.AddUserToClass(ctx, class.ID, request.TeacherEmail,
		ClassRoles{Teacher: true}, true)
	if err != nil {
		return err
	}
	p.logger.Debug("added teacher %q to class %q (%d)", request.TeacherEmail, class.Name, class.ID)

	if err := p.removeSelf(ctx, class.ID); err != nil {
		return err
	}

	return p.catalog.MarkClassAdded(ctx, request.RecordID, strconv.Itoa(class.ID))
}

func (p *Processor) getOrCreateInstitution(ctx context.Context, name string) (*Institution, error) {
	institutions, err := p.platform.ListInstitutions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range institutions {
		if institutions[i].Name == name {
			return &institutions[i], nil
		}
	}

	institution, err := p.platform.CreateInstitution(ctx, name)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("institution %q did not exist, created", name)
	return institution, nil
}

// ProcessStudentsToAdd enrolls pending students into their platform class.
func (p *Processor) ProcessStudentsToAdd(ctx context.Context) error {
	students, err := p.catalog.PendingStudents(ctx)
	if err != nil {
		return err
	}

	for _, student := range students {
		if err := p.addStudent(ctx, student); err != nil {
			p.logger.Error("failed to process student %s: %v", student.RecordID, err)
			if markErr := p.catalog.MarkStudentFailed(ctx, student.RecordID, err); markErr != nil {
				p.logger.Error("failed to record student error for %s: %v", student.RecordID, markErr)
			}
			continue
		}
		if err := p.catalog.MarkStudentAdded(ctx, student.RecordID); err != nil {
			p.logger.Error("failed to mark student %s added: %v", student.RecordID, err)
		}
	}
	return nil
}

func (p *Processor) addStudent(ctx context.Context, student StudentRequest) error {
	classID, err := strconv.Atoi(student.ClassID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "student row has no usable class id")
	}

	err = p.platform.AddUserToClass(ctx, classID, student.Email, ClassRoles{Student: true}, false)
	if err != nil {
		return err
	}
	p.logger.Debug("added student %q to class %d", student.Email, classID)
	return nil
}

// ProcessRemoveSelfFromClasses retries the self-removal for classes where
// the automation account is still enrolled. Failures are logged only; the
// row stays pending for the next run.
func (p *Processor) ProcessRemoveSelfFromClasses(ctx context.Context) error {
	classes, err := p.catalog.ClassesAwaitingAdminRemoval(ctx)
	if err != nil {
		return err
	}

	for _, class := range classes {
		classID, err := strconv.Atoi(class.PlatformID)
		if err != nil {
			p.logger.Error("class request %s has no usable platform id: %v", class.RecordID, err)
			continue
		}
		if err := p.removeSelf(ctx, classID); err != nil {
			p.logger.Error("failed to remove automation account from class %d: %v", classID, err)
			continue
		}
		if err := p.catalog.MarkAdminRemoved(ctx, class.RecordID); err != nil {
			p.logger.Error("failed to mark admin removed for %s: %v", class.RecordID, err)
		}
	}
	return nil
}

func (p *Processor) removeSelf(ctx context.Context, classID int) error {
	me, err := p.platform.Me(ctx)
	if err != nil {
		return err
	}
	if err := p.platform.DeleteUserFromClass(ctx, classID, me.ID); err != nil {
		return err
	}
	p.logger.Debug("removed %q from class %d", me.Email, classID)
	return nil
}

// ProcessExternalLoginsToAdd registers extra login addresses for existing
// platform users.
func (p *Processor) ProcessExternalLoginsToAdd(ctx context.Context) error {
	requests, err := p.catalog.PendingExternalLogins(ctx)
	if err != nil {
		return err
	}

	for _, request := range requests {
		if err := p.addExternalLogin(ctx, request); err != nil {
			p.logger.Error("failed to process external login %s: %v", request.RecordID, err)
			if markErr := p.catalog.MarkExternalLoginFailed(ctx, request.RecordID, err); markErr != nil {
				p.logger.Error("failed to record external login error for %s: %v", request.RecordID, markErr)
			}
			continue
		}
		if err := p.catalog.MarkExternalLoginAdded(ctx, request.RecordID); err != nil {
			p.logger.Error("failed to mark external login %s added: %v", request.RecordID, err)
		}
	}
	return nil
}

func (p *Processor) addExternalLogin(ctx context.Context, request ExternalLoginRequest) error {
	user, err := p.platform.GetUserByEmail(ctx, request.CurrentEmail)
	if err != nil {
		return err
	}
	return p.platform.AddLoginEmail(ctx, user.ID, request.NewEmail)
}
