package booking

import (
	"context"
	"log/slog"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

// Duration bounds for a confirmed appointment, in minutes.
const (
	minDurationMins = 15
	maxDurationMins = 480
)

const defaultOpTimeout = 10 * time.Second

// Tx is the explicit unit-of-work handle threaded through every mutating
// operation. Side effects registered against it (outbox events, reminder
// jobs) become visible only when it commits.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// AppointmentStore owns appointment persistence, the overlap query and the
// locking contract. FindBlocking must be called after LockStaffCalendar on
// the same Tx so that two writers targeting one staff member serialize.
type AppointmentStore interface {
	Begin(ctx context.Context) (Tx, error)
	FindByID(ctx context.Context, id string) (model.Appointment, error)
	GetForUpdate(ctx context.Context, tx Tx, id string) (model.Appointment, error)
	LockStaffCalendar(ctx context.Context, tx Tx, staffID string) error
	FindBlocking(ctx context.Context, tx Tx, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error)
	Create(ctx context.Context, tx Tx, appt *model.Appointment) error
	Update(ctx context.Context, tx Tx, appt *model.Appointment) error
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
}

type CustomerStore interface {
	FindByID(ctx context.Context, id string) (model.Customer, error)
}

// StaffDirectory resolves an active STAFF/ADMIN user. Inactive or missing
// users yield a NotFoundError.
type StaffDirectory interface {
	FindActive(ctx context.Context, id string) (model.Staff, error)
}

type ServiceCatalog interface {
	FindActive(ctx context.Context, id string) (model.DetailService, error)
}

// Notifier registers a notification against the transaction; it fires only
// if the transaction commits. A nil tx means dispatch immediately.
type Notifier interface {
	Schedule(ctx context.Context, tx Tx, snap Snapshot, kind model.NotificationKind) error
}

// ReminderQueue manages pre-appointment reminder jobs inside the booking
// transaction.
type ReminderQueue interface {
	Enqueue(ctx context.Context, tx Tx, snap Snapshot) error
	CancelPending(ctx context.Context, tx Tx, appointmentID string) error
}

// Snapshot is the read model returned by every operation: the appointment
// plus the customer summary the notification templates need.
type Snapshot struct {
	ID            string
	CustomerID    string
	CustomerName  string
	CustomerPhone string
	StaffID       string
	CarBrand      string
	CarModel      string
	Description   string
	StartTime     time.Time
	EndTime       time.Time
	DurationMins  int
	Price         string
	Status        model.Status
	CancelReason  string
}

type Service struct {
	store     AppointmentStore
	customers CustomerStore
	staff     StaffDirectory
	catalog   ServiceCatalog
	notifier  Notifier
	reminders ReminderQueue
	logger    *slog.Logger
	opTimeout time.Duration
	now       func() time.Time
}

func NewService(store AppointmentStore, customers CustomerStore, staff StaffDirectory, catalog ServiceCatalog, notifier Notifier, reminders ReminderQueue, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		customers: customers,
		staff:     staff,
		catalog:   catalog,
		notifier:  notifier,
		reminders: reminders,
		logger:    logger,
		opTimeout: defaultOpTimeout,
		now:       time.Now,
	}
}

type CreateRequestedInput struct {
	CustomerID  string
	ServiceID   string
	CarBrand    string
	CarModel    string
	Description string
	StartTime   time.Time
}

// CreateRequested records a customer-initiated booking in REQUESTED state.
// The detail service's default duration and base price seed a placeholder
// window until staff confirm with the real values. No overlap check runs:
// nothing is blocked until a staff member is committed.
func (s *Service) CreateRequested(ctx context.Context, in CreateRequestedInput) (Snapshot, error) {
	if in.CarBrand == "" {
		return Snapshot{}, invalidf("carBrand", "required")
	}
	if !in.StartTime.After(s.now()) {
		return Snapshot{}, invalidf("startTime", "must be in the future")
	}

	svc, err := s.catalog.FindActive(ctx, in.ServiceID)
	if err != nil {
		return Snapshot{}, err
	}

	appt := model.Appointment{
		CustomerID:  in.CustomerID,
		CarBrand:    in.CarBrand,
		CarModel:    in.CarModel,
		Description: in.Description,
		Price:       svc.BasePrice,
		StartTime:   in.StartTime,
		EndTime:     in.StartTime.Add(time.Duration(svc.DefaultDuration) * time.Minute),
		Status:      model.StatusRequested,
	}

	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		if err := s.store.Create(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, appt)
	})
}

type CreateConfirmedInput struct {
	CustomerID   string
	StaffID      string
	CarBrand     string
	CarModel     string
	Description  string
	StartTime    time.Time
	DurationMins int
	Price        string
}

// CreateConfirmed records a staff-initiated booking directly in CONFIRMED
// state, running the full staff and conflict checks.
func (s *Service) CreateConfirmed(ctx context.Context, in CreateConfirmedInput) (Snapshot, error) {
	if in.CarBrand == "" {
		return Snapshot{}, invalidf("carBrand", "required")
	}
	if !in.StartTime.After(s.now()) {
		return Snapshot{}, invalidf("startTime", "must be in the future")
	}
	if err := validDuration(in.DurationMins); err != nil {
		return Snapshot{}, err
	}
	staff, err := s.staff.FindActive(ctx, in.StaffID)
	if err != nil {
		return Snapshot{}, err
	}

	appt := model.Appointment{
		CustomerID:  in.CustomerID,
		StaffID:     staff.ID,
		CarBrand:    in.CarBrand,
		CarModel:    in.CarModel,
		Description: in.Description,
		Price:       in.Price,
		StartTime:   in.StartTime,
		EndTime:     in.StartTime.Add(time.Duration(in.DurationMins) * time.Minute),
		Status:      model.StatusConfirmed,
	}

	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		if err := s.checkNoOverlap(ctx, tx, staff.ID, appt.StartTime, appt.EndTime, ""); err != nil {
			return Snapshot{}, err
		}
		if err := s.store.Create(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}
		snap, err := s.snapshot(ctx, appt)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.notifier.Schedule(ctx, tx, snap, model.NotifyConfirm); err != nil {
			return Snapshot{}, err
		}
		if err := s.enqueueReminders(ctx, tx, snap); err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	})
}

// Confirm moves a REQUESTED appointment to CONFIRMED: assigns the staff
// member, applies the agreed duration and price, and verifies the window is
// free on that staff member's calendar.
func (s *Service) Confirm(ctx context.Context, id, staffID string, durationMins int, price string) (Snapshot, error) {
	if err := validDuration(durationMins); err != nil {
		return Snapshot{}, err
	}
	staff, err := s.staff.FindActive(ctx, staffID)
	if err != nil {
		return Snapshot{}, err
	}

	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if appt.Status != model.StatusRequested {
			return Snapshot{}, &InvalidTransitionError{From: appt.Status, To: model.StatusConfirmed}
		}

		end := appt.StartTime.Add(time.Duration(durationMins) * time.Minute)
		if err := s.checkNoOverlap(ctx, tx, staff.ID, appt.StartTime, end, appt.ID); err != nil {
			return Snapshot{}, err
		}

		appt.StaffID = staff.ID
		appt.EndTime = end
		if price != "" {
			appt.Price = price
		}
		appt.Status = model.StatusConfirmed
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}

		snap, err := s.snapshot(ctx, appt)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.notifier.Schedule(ctx, tx, snap, model.NotifyConfirm); err != nil {
			return Snapshot{}, err
		}
		if err := s.enqueueReminders(ctx, tx, snap); err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	})
}

// Reschedule moves a CONFIRMED appointment to a new future window,
// preserving its duration. The appointment's own row is excluded from the
// conflict check so overlapping its previous window is fine.
func (s *Service) Reschedule(ctx context.Context, id string, newStart time.Time) (Snapshot, error) {
	if !newStart.After(s.now()) {
		return Snapshot{}, invalidf("startTime", "must be in the future")
	}

	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if appt.Status != model.StatusConfirmed {
			return Snapshot{}, &InvalidTransitionError{From: appt.Status, To: model.StatusConfirmed}
		}

		duration := appt.Duration()
		newEnd := newStart.Add(duration)
		if appt.StaffID != "" {
			if err := s.checkNoOverlap(ctx, tx, appt.StaffID, newStart, newEnd, appt.ID); err != nil {
				return Snapshot{}, err
			}
		}

		appt.StartTime = newStart
		appt.EndTime = newEnd
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}

		snap, err := s.snapshot(ctx, appt)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.notifier.Schedule(ctx, tx, snap, model.NotifyUpdate); err != nil {
			return Snapshot{}, err
		}
		if s.reminders != nil {
			if err := s.reminders.CancelPending(ctx, tx, appt.ID); err != nil {
				return Snapshot{}, err
			}
		}
		if err := s.enqueueReminders(ctx, tx, snap); err != nil {
			return Snapshot{}, err
		}
		return snap, nil
	})
}

// Cancel moves the appointment to CANCELED. Cancelling an already-CANCELED
// appointment is a no-op returning the current snapshot, which keeps caller
// retries harmless.
func (s *Service) Cancel(ctx context.Context, id, reason string) (Snapshot, error) {
	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if appt.Status == model.StatusCanceled {
			return s.snapshot(ctx, appt)
		}
		if err := guardTransition(appt.Status, model.StatusCanceled); err != nil {
			return Snapshot{}, err
		}

		appt.Status = model.StatusCanceled
		appt.CancelReason = reason
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}

		snap, err := s.snapshot(ctx, appt)
		if err != nil {
			return Snapshot{}, err
		}
		if err := s.notifier.Schedule(ctx, tx, snap, model.NotifyCancel); err != nil {
			return Snapshot{}, err
		}
		if s.reminders != nil {
			if err := s.reminders.CancelPending(ctx, tx, appt.ID); err != nil {
				return Snapshot{}, err
			}
		}
		return snap, nil
	})
}

// Start moves a REQUESTED or CONFIRMED appointment to IN_PROGRESS. Starting
// before the scheduled time is allowed but logged; the desk sometimes takes
// a car in early.
func (s *Service) Start(ctx context.Context, id string) (Snapshot, error) {
	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if err := guardTransition(appt.Status, model.StatusInProgress); err != nil {
			return Snapshot{}, err
		}
		if s.now().Before(appt.StartTime) {
			s.logger.Warn("appointment started before scheduled time",
				"appointment_id", appt.ID, "start_time", appt.StartTime)
		}

		appt.Status = model.StatusInProgress
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, appt)
	})
}

// Complete moves an IN_PROGRESS appointment to COMPLETED; completing twice
// is a no-op.
func (s *Service) Complete(ctx context.Context, id string) (Snapshot, error) {
	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if appt.Status == model.StatusCompleted {
			return s.snapshot(ctx, appt)
		}
		if err := guardTransition(appt.Status, model.StatusCompleted); err != nil {
			return Snapshot{}, err
		}

		appt.Status = model.StatusCompleted
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, appt)
	})
}

// MarkNoShow moves a CONFIRMED appointment to NOSHOW, only once the
// scheduled start has passed; marking twice is a no-op.
func (s *Service) MarkNoShow(ctx context.Context, id string) (Snapshot, error) {
	return s.inTx(ctx, func(ctx context.Context, tx Tx) (Snapshot, error) {
		appt, err := s.store.GetForUpdate(ctx, tx, id)
		if err != nil {
			return Snapshot{}, err
		}
		if appt.Status == model.StatusNoShow {
			return s.snapshot(ctx, appt)
		}
		if err := guardTransition(appt.Status, model.StatusNoShow); err != nil {
			return Snapshot{}, err
		}
		if !s.now().After(appt.StartTime) {
			return Snapshot{}, invalidf("startTime", "cannot mark no-show before the appointment start")
		}

		appt.Status = model.StatusNoShow
		if err := s.store.Update(ctx, tx, &appt); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(ctx, appt)
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (Snapshot, error) {
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(ctx, appt)
}

func (s *Service) ListBetween(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	if !to.After(from) {
		return nil, invalidf("range", "end must be after start")
	}
	appts, err := s.store.ListBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	customers := map[string]model.Customer{}
	snaps := make([]Snapshot, 0, len(appts))
	for _, appt := range appts {
		c, ok := customers[appt.CustomerID]
		if !ok {
			c, err = s.customers.FindByID(ctx, appt.CustomerID)
			if err != nil {
				return nil, err
			}
			customers[appt.CustomerID] = c
		}
		snaps = append(snaps, buildSnapshot(appt, c))
	}
	return snaps, nil
}

// checkNoOverlap serializes against other writers on the same staff
// calendar, then decides over the locked snapshot.
func (s *Service) checkNoOverlap(ctx context.Context, tx Tx, staffID string, start, end time.Time, excludeID string) error {
	if err := s.store.LockStaffCalendar(ctx, tx, staffID); err != nil {
		return err
	}
	existing, err := s.store.FindBlocking(ctx, tx, staffID, start, end, excludeID)
	if err != nil {
		return err
	}
	if c := EarliestOverlap(start, end, excludeID, existing); c != nil {
		return &ConflictError{ConflictingID: c.AppointmentID, ConflictingStart: c.StartTime}
	}
	return nil
}

func (s *Service) enqueueReminders(ctx context.Context, tx Tx, snap Snapshot) error {
	if s.reminders == nil {
		return nil
	}
	return s.reminders.Enqueue(ctx, tx, snap)
}

// inTx runs op inside a bounded transaction; op must not commit or roll
// back itself.
func (s *Service) inTx(ctx context.Context, op func(ctx context.Context, tx Tx) (Snapshot, error)) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	snap, err := op(ctx, tx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Service) snapshot(ctx context.Context, appt model.Appointment) (Snapshot, error) {
	c, err := s.customers.FindByID(ctx, appt.CustomerID)
	if err != nil {
		return Snapshot{}, err
	}
	return buildSnapshot(appt, c), nil
}

func buildSnapshot(appt model.Appointment, c model.Customer) Snapshot {
	return Snapshot{
		ID:            appt.ID,
		CustomerID:    c.ID,
		CustomerName:  c.DisplayName(),
		CustomerPhone: c.Phone,
		StaffID:       appt.StaffID,
		CarBrand:      appt.CarBrand,
		CarModel:      appt.CarModel,
		Description:   appt.Description,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		DurationMins:  int(appt.Duration() / time.Minute),
		Price:         appt.Price,
		Status:        appt.Status,
		CancelReason:  appt.CancelReason,
	}
}

func validDuration(mins int) error {
	if mins < minDurationMins || mins > maxDurationMins {
		return invalidf("durationMinutes", "must be within [%d,%d]", minDurationMins, maxDurationMins)
	}
	return nil
}
