package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/garagedesk/garagedesk/internal/model"
)

// fakeEnv is the committed state shared by all fakes. Mutations staged on a
// fakeTx become visible only when that transaction commits, which mirrors
// the isolation the real storage layer provides.
type fakeEnv struct {
	mu         sync.Mutex
	appts      map[string]model.Appointment
	customers  map[string]model.Customer
	staff      map[string]model.Staff
	services   map[string]model.DetailService
	staffLocks map[string]*sync.Mutex
	nextID     int
	updateErr  error

	sent            []sentEvent
	reminderAdds    []string
	reminderCancels []string
}

type sentEvent struct {
	AppointmentID string
	Kind          model.NotificationKind
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		appts:      map[string]model.Appointment{},
		customers:  map[string]model.Customer{},
		staff:      map[string]model.Staff{},
		services:   map[string]model.DetailService{},
		staffLocks: map[string]*sync.Mutex{},
	}
}

type fakeTx struct {
	env       *fakeEnv
	held      []*sync.Mutex
	mutations []func(*fakeEnv)
	events    []sentEvent
	adds      []string
	cancels   []string
	done      bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.env.mu.Lock()
	for _, m := range t.mutations {
		m(t.env)
	}
	t.env.sent = append(t.env.sent, t.events...)
	t.env.reminderAdds = append(t.env.reminderAdds, t.adds...)
	t.env.reminderCancels = append(t.env.reminderCancels, t.cancels...)
	t.env.mu.Unlock()
	for _, l := range t.held {
		l.Unlock()
	}
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	for _, l := range t.held {
		l.Unlock()
	}
	return nil
}

type fakeApptStore struct{ env *fakeEnv }

func (s *fakeApptStore) Begin(context.Context) (Tx, error) {
	return &fakeTx{env: s.env}, nil
}

func (s *fakeApptStore) FindByID(_ context.Context, id string) (model.Appointment, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	appt, ok := s.env.appts[id]
	if !ok {
		return model.Appointment{}, &NotFoundError{Kind: "appointment", ID: id}
	}
	return appt, nil
}

func (s *fakeApptStore) GetForUpdate(ctx context.Context, _ Tx, id string) (model.Appointment, error) {
	return s.FindByID(ctx, id)
}

func (s *fakeApptStore) LockStaffCalendar(_ context.Context, tx Tx, staffID string) error {
	ft := tx.(*fakeTx)
	s.env.mu.Lock()
	l, ok := s.env.staffLocks[staffID]
	if !ok {
		l = &sync.Mutex{}
		s.env.staffLocks[staffID] = l
	}
	s.env.mu.Unlock()
	l.Lock()
	ft.held = append(ft.held, l)
	return nil
}

func (s *fakeApptStore) FindBlocking(_ context.Context, _ Tx, staffID string, start, end time.Time, excludeID string) ([]model.Appointment, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.env.appts {
		if a.StaffID != staffID || a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		if a.StartTime.Before(end) && start.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeApptStore) Create(_ context.Context, tx Tx, appt *model.Appointment) error {
	ft := tx.(*fakeTx)
	s.env.mu.Lock()
	s.env.nextID++
	appt.ID = "appt-" + strconv.Itoa(s.env.nextID)
	s.env.mu.Unlock()
	copied := *appt
	ft.mutations = append(ft.mutations, func(env *fakeEnv) {
		env.appts[copied.ID] = copied
	})
	return nil
}

func (s *fakeApptStore) Update(_ context.Context, tx Tx, appt *model.Appointment) error {
	if s.env.updateErr != nil {
		return s.env.updateErr
	}
	ft := tx.(*fakeTx)
	copied := *appt
	ft.mutations = append(ft.mutations, func(env *fakeEnv) {
		env.appts[copied.ID] = copied
	})
	return nil
}

func (s *fakeApptStore) ListBetween(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	var out []model.Appointment
	for _, a := range s.env.appts {
		if a.StartTime.Before(to) && from.Before(a.EndTime) {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeCustomerStore struct{ env *fakeEnv }

func (s *fakeCustomerStore) FindByID(_ context.Context, id string) (model.Customer, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	c, ok := s.env.customers[id]
	if !ok {
		return model.Customer{}, &NotFoundError{Kind: "customer", ID: id}
	}
	return c, nil
}

type fakeStaffDirectory struct{ env *fakeEnv }

func (s *fakeStaffDirectory) FindActive(_ context.Context, id string) (model.Staff, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	st, ok := s.env.staff[id]
	if !ok || !st.IsActive {
		return model.Staff{}, &NotFoundError{Kind: "staff", ID: id}
	}
	return st, nil
}

type fakeCatalog struct{ env *fakeEnv }

func (s *fakeCatalog) FindActive(_ context.Context, id string) (model.DetailService, error) {
	s.env.mu.Lock()
	defer s.env.mu.Unlock()
	svc, ok := s.env.services[id]
	if !ok || !svc.IsActive {
		return model.DetailService{}, &NotFoundError{Kind: "service", ID: id}
	}
	return svc, nil
}

type fakeNotifier struct{ env *fakeEnv }

func (n *fakeNotifier) Schedule(_ context.Context, tx Tx, snap Snapshot, kind model.NotificationKind) error {
	evt := sentEvent{AppointmentID: snap.ID, Kind: kind}
	if tx == nil {
		n.env.mu.Lock()
		n.env.sent = append(n.env.sent, evt)
		n.env.mu.Unlock()
		return nil
	}
	ft := tx.(*fakeTx)
	ft.events = append(ft.events, evt)
	return nil
}

type fakeReminders struct{ env *fakeEnv }

func (r *fakeReminders) Enqueue(_ context.Context, tx Tx, snap Snapshot) error {
	tx.(*fakeTx).adds = append(tx.(*fakeTx).adds, snap.ID)
	return nil
}

func (r *fakeReminders) CancelPending(_ context.Context, tx Tx, appointmentID string) error {
	tx.(*fakeTx).cancels = append(tx.(*fakeTx).cancels, appointmentID)
	return nil
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestService(env *fakeEnv) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(
		&fakeApptStore{env: env},
		&fakeCustomerStore{env: env},
		&fakeStaffDirectory{env: env},
		&fakeCatalog{env: env},
		&fakeNotifier{env: env},
		&fakeReminders{env: env},
		logger,
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func seedEnv() *fakeEnv {
	env := newFakeEnv()
	env.customers["cust-1"] = model.Customer{ID: "cust-1", Phone: "+33612345678", FirstName: "Marie", IsActive: true}
	env.staff["staff-1"] = model.Staff{ID: "staff-1", Username: "leo", Role: model.RoleStaff, IsActive: true}
	env.services["svc-1"] = model.DetailService{
		ID: "svc-1", Name: "Full detail", MinDurationMins: 30,
		DefaultDuration: 60, MaxDurationMins: 240, BasePrice: "89.00", IsActive: true,
	}
	return env
}

func seedAppointment(env *fakeEnv, id string, status model.Status, staffID string, start, end time.Time) {
	env.appts[id] = model.Appointment{
		ID: id, CustomerID: "cust-1", StaffID: staffID, CarBrand: "Renault",
		StartTime: start, EndTime: end, Status: status,
	}
}

func eventsFor(env *fakeEnv, id string) []sentEvent {
	env.mu.Lock()
	defer env.mu.Unlock()
	var out []sentEvent
	for _, e := range env.sent {
		if e.AppointmentID == id {
			out = append(out, e)
		}
	}
	return out
}

func TestCreateRequestedUsesCatalogDefaults(t *testing.T) {
	env := seedEnv()
	svc := newTestService(env)

	start := at(10, 0)
	snap, err := svc.CreateRequested(context.Background(), CreateRequestedInput{
		CustomerID: "cust-1", ServiceID: "svc-1", CarBrand: "Renault", StartTime: start,
	})
	if err != nil {
		t.Fatalf("CreateRequested: %v", err)
	}
	if snap.Status != model.StatusRequested {
		t.Fatalf("expected REQUESTED, got %s", snap.Status)
	}
	if !snap.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("placeholder end should use default duration, got %s", snap.EndTime)
	}
	if snap.Price != "89.00" {
		t.Fatalf("placeholder price should use base price, got %s", snap.Price)
	}
	// A request is not confirmed yet: no notification, no reminders.
	if got := eventsFor(env, snap.ID); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
	if len(env.reminderAdds) != 0 {
		t.Fatalf("expected no reminders, got %v", env.reminderAdds)
	}
}

func TestConfirmSendsExactlyOneConfirmEvent(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusRequested, "", at(10, 0), at(11, 0))
	svc := newTestService(env)

	snap, err := svc.Confirm(context.Background(), "appt-A", "staff-1", 60, "120.00")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if snap.Status != model.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", snap.Status)
	}
	if snap.StaffID != "staff-1" {
		t.Fatalf("expected staff assignment, got %q", snap.StaffID)
	}
	if snap.Price != "120.00" {
		t.Fatalf("expected agreed price, got %s", snap.Price)
	}

	got := eventsFor(env, "appt-A")
	if len(got) != 1 || got[0].Kind != model.NotifyConfirm {
		t.Fatalf("expected exactly one CONFIRM event, got %v", got)
	}
	if len(env.reminderAdds) != 1 || env.reminderAdds[0] != "appt-A" {
		t.Fatalf("expected one reminder enqueue, got %v", env.reminderAdds)
	}
}

func TestConfirmConflictEmitsNothing(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-busy", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	seedAppointment(env, "appt-new", model.StatusRequested, "", at(10, 30), at(11, 30))
	svc := newTestService(env)

	_, err := svc.Confirm(context.Background(), "appt-new", "staff-1", 60, "")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ConflictingID != "appt-busy" {
		t.Fatalf("expected conflict with appt-busy, got %s", conflict.ConflictingID)
	}
	if !conflict.ConflictingStart.Equal(at(10, 0)) {
		t.Fatalf("expected conflicting start 10:00, got %s", conflict.ConflictingStart)
	}

	env.mu.Lock()
	status := env.appts["appt-new"].Status
	env.mu.Unlock()
	if status != model.StatusRequested {
		t.Fatalf("failed confirm must leave status REQUESTED, got %s", status)
	}
	if got := eventsFor(env, "appt-new"); len(got) != 0 {
		t.Fatalf("aborted transaction must emit no events, got %v", got)
	}
}

func TestConcurrentConfirmOnlyOneWins(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusRequested, "", at(10, 0), at(11, 0))
	seedAppointment(env, "appt-B", model.StatusRequested, "", at(10, 30), at(11, 30))
	svc := newTestService(env)

	results := make(map[string]error, 2)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range []string{"appt-A", "appt-B"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := svc.Confirm(context.Background(), id, "staff-1", 60, "")
			mu.Lock()
			results[id] = err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	var winner, loser string
	switch {
	case results["appt-A"] == nil && results["appt-B"] != nil:
		winner, loser = "appt-A", "appt-B"
	case results["appt-B"] == nil && results["appt-A"] != nil:
		winner, loser = "appt-B", "appt-A"
	default:
		t.Fatalf("expected exactly one winner, got A=%v B=%v", results["appt-A"], results["appt-B"])
	}

	var conflict *ConflictError
	if !errors.As(results[loser], &conflict) {
		t.Fatalf("loser must get ConflictError, got %v", results[loser])
	}
	if conflict.ConflictingID != winner {
		t.Fatalf("loser must see winner %s, got %s", winner, conflict.ConflictingID)
	}

	if got := eventsFor(env, winner); len(got) != 1 || got[0].Kind != model.NotifyConfirm {
		t.Fatalf("winner must emit one CONFIRM, got %v", got)
	}
	if got := eventsFor(env, loser); len(got) != 0 {
		t.Fatalf("loser must emit nothing, got %v", got)
	}
}

func TestRescheduleExcludesOwnWindow(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	svc := newTestService(env)

	snap, err := svc.Reschedule(context.Background(), "appt-A", at(10, 15))
	if err != nil {
		t.Fatalf("rescheduling over own window must succeed: %v", err)
	}
	if !snap.StartTime.Equal(at(10, 15)) || !snap.EndTime.Equal(at(11, 15)) {
		t.Fatalf("duration must be preserved, got [%s, %s)", snap.StartTime, snap.EndTime)
	}
	if snap.Status != model.StatusConfirmed {
		t.Fatalf("reschedule keeps CONFIRMED, got %s", snap.Status)
	}

	got := eventsFor(env, "appt-A")
	if len(got) != 1 || got[0].Kind != model.NotifyUpdate {
		t.Fatalf("expected one UPDATE event, got %v", got)
	}
	if len(env.reminderCancels) != 1 || env.reminderCancels[0] != "appt-A" {
		t.Fatalf("old reminders must be cancelled, got %v", env.reminderCancels)
	}
	if len(env.reminderAdds) != 1 || env.reminderAdds[0] != "appt-A" {
		t.Fatalf("new reminders must be enqueued, got %v", env.reminderAdds)
	}
}

func TestRescheduleBlockedByOther(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	seedAppointment(env, "appt-B", model.StatusConfirmed, "staff-1", at(14, 0), at(15, 0))
	svc := newTestService(env)

	_, err := svc.Reschedule(context.Background(), "appt-A", at(14, 30))
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ConflictingID != "appt-B" {
		t.Fatalf("expected conflict with appt-B, got %s", conflict.ConflictingID)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	svc := newTestService(env)

	snap, err := svc.Cancel(context.Background(), "appt-A", "customer called")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if snap.Status != model.StatusCanceled || snap.CancelReason != "customer called" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	again, err := svc.Cancel(context.Background(), "appt-A", "another reason")
	if err != nil {
		t.Fatalf("second cancel must be a no-op: %v", err)
	}
	if again.CancelReason != "customer called" {
		t.Fatalf("no-op cancel must keep the original reason, got %q", again.CancelReason)
	}

	got := eventsFor(env, "appt-A")
	if len(got) != 1 || got[0].Kind != model.NotifyCancel {
		t.Fatalf("expected exactly one CANCEL event, got %v", got)
	}
	if len(env.reminderCancels) != 1 {
		t.Fatalf("expected one reminder cancellation, got %v", env.reminderCancels)
	}
}

func TestStaleVersionSurfacesTransient(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	env.updateErr = &TransientError{Cause: errors.New("stale version")}
	svc := newTestService(env)

	_, err := svc.Cancel(context.Background(), "appt-A", "customer called")
	var te *TransientError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if got := eventsFor(env, "appt-A"); len(got) != 0 {
		t.Fatalf("rolled-back cancel must emit nothing, got %v", got)
	}
	if env.appts["appt-A"].Status != model.StatusConfirmed {
		t.Fatalf("appointment must stay CONFIRMED, got %s", env.appts["appt-A"].Status)
	}
}

func TestInvalidTransitionsRejected(t *testing.T) {
	cases := []struct {
		name string
		from model.Status
		op   func(svc *Service, id string) error
	}{
		{"complete requested", model.StatusRequested, func(svc *Service, id string) error {
			_, err := svc.Complete(context.Background(), id)
			return err
		}},
		{"cancel completed", model.StatusCompleted, func(svc *Service, id string) error {
			_, err := svc.Cancel(context.Background(), id, "")
			return err
		}},
		{"confirm confirmed", model.StatusConfirmed, func(svc *Service, id string) error {
			_, err := svc.Confirm(context.Background(), id, "staff-1", 60, "")
			return err
		}},
		{"start completed", model.StatusCompleted, func(svc *Service, id string) error {
			_, err := svc.Start(context.Background(), id)
			return err
		}},
		{"reschedule in progress", model.StatusInProgress, func(svc *Service, id string) error {
			_, err := svc.Reschedule(context.Background(), id, at(14, 0))
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := seedEnv()
			seedAppointment(env, "appt-A", tc.from, "staff-1", at(10, 0), at(11, 0))
			svc := newTestService(env)

			err := tc.op(svc, "appt-A")
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidTransitionError, got %v", err)
			}
		})
	}
}

func TestStartAndComplete(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	svc := newTestService(env)

	snap, err := svc.Start(context.Background(), "appt-A")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap.Status != model.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", snap.Status)
	}

	snap, err = svc.Complete(context.Background(), "appt-A")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if snap.Status != model.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", snap.Status)
	}

	// Lifecycle-only transitions never notify the customer.
	if got := eventsFor(env, "appt-A"); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

func TestNoShowGuard(t *testing.T) {
	env := seedEnv()
	// Start is still in the future relative to the fixed clock.
	seedAppointment(env, "appt-A", model.StatusConfirmed, "staff-1", at(10, 0), at(11, 0))
	svc := newTestService(env)

	_, err := svc.MarkNoShow(context.Background(), "appt-A")
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("premature no-show must be a validation error, got %v", err)
	}

	past := testNow.Add(-2 * time.Hour)
	seedAppointment(env, "appt-B", model.StatusConfirmed, "staff-1", past, past.Add(time.Hour))
	snap, err := svc.MarkNoShow(context.Background(), "appt-B")
	if err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if snap.Status != model.StatusNoShow {
		t.Fatalf("expected NOSHOW, got %s", snap.Status)
	}

	// Marking again is a no-op.
	if _, err := svc.MarkNoShow(context.Background(), "appt-B"); err != nil {
		t.Fatalf("repeated no-show must be a no-op: %v", err)
	}
}

func TestConfirmDurationBounds(t *testing.T) {
	env := seedEnv()
	seedAppointment(env, "appt-A", model.StatusRequested, "", at(10, 0), at(11, 0))
	svc := newTestService(env)

	for _, mins := range []int{0, 14, 481} {
		_, err := svc.Confirm(context.Background(), "appt-A", "staff-1", mins, "")
		var invalid *ValidationError
		if !errors.As(err, &invalid) {
			t.Fatalf("duration %d must be rejected, got %v", mins, err)
		}
	}

	if _, err := svc.Confirm(context.Background(), "appt-A", "staff-1", 15, ""); err != nil {
		t.Fatalf("minimum duration must be accepted: %v", err)
	}
}

func TestCreateConfirmedRequiresActiveStaff(t *testing.T) {
	env := seedEnv()
	env.staff["staff-2"] = model.Staff{ID: "staff-2", Username: "max", Role: model.RoleStaff, IsActive: false}
	svc := newTestService(env)

	_, err := svc.CreateConfirmed(context.Background(), CreateConfirmedInput{
		CustomerID: "cust-1", StaffID: "staff-2", CarBrand: "Renault",
		StartTime: at(10, 0), DurationMins: 60,
	})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("inactive staff must be rejected, got %v", err)
	}
}

func TestCreateRequestedRejectsPastStart(t *testing.T) {
	env := seedEnv()
	svc := newTestService(env)

	_, err := svc.CreateRequested(context.Background(), CreateRequestedInput{
		CustomerID: "cust-1", ServiceID: "svc-1", CarBrand: "Renault",
		StartTime: testNow.Add(-time.Hour),
	})
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("past start must be rejected, got %v", err)
	}
}
