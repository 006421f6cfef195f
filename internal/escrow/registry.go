package escrow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/taskescrow/internal/identity"
	"git.home.luguber.info/inful/taskescrow/internal/logfields"
	"git.home.luguber.info/inful/taskescrow/internal/metrics"
	"git.home.luguber.info/inful/taskescrow/internal/storage"
)

const (
	OpCreateTask   = "create_task"
	OpCompleteTask = "complete_task"
	OpInitialize   = "initialize"
)

type namedObserver struct {
	name     string
	observer Observer
}

// Registry executes escrow operations against a record store.
type Registry struct {
	store     storage.Store
	program   identity.Identity
	verifier  identity.Verifier
	recorder  metrics.Recorder
	observers []namedObserver
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithRecorder sets the metrics recorder (default: metrics.NoopRecorder).
func WithRecorder(r metrics.Recorder) Option {
	return func(reg *Registry) {
		if r != nil {
			reg.recorder = r
		}
	}
}

// WithObserver registers an observer notified after each committed operation.
func WithObserver(name string, o Observer) Option {
	return func(reg *Registry) {
		if o != nil {
			reg.observers = append(reg.observers, namedObserver{name: name, observer: o})
		}
	}
}

// WithVerifier replaces the signature verifier (default: identity.Ed25519Verifier).
func WithVerifier(v identity.Verifier) Option {
	return func(reg *Registry) {
		if v != nil {
			reg.verifier = v
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.logger = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(reg *Registry) {
		if now != nil {
			reg.now = now
		}
	}
}

// NewRegistry builds a registry bound to ProgramID.
func NewRegistry(store storage.Store, opts ...Option) *Registry {
	reg := &Registry{
		store:    store,
		program:  ProgramID(),
		verifier: identity.Ed25519Verifier{},
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Program returns the program identity the registry signs messages against.
func (r *Registry) Program() identity.Identity {
	return r.program
}

// CreateTask allocates accounts.Task and stores an open escrow owned by the
// proven depositor. The amount is recorded as given.
func (r *Registry) CreateTask(ctx context.Context, accounts CreateTaskAccounts, amount uint64) (TaskEscrow, error) {
	start := time.Now()
	defer func() { r.recorder.ObserveOperation(OpCreateTask, time.Since(start)) }()

	slot := accounts.Task.String()
	msg := CreateTaskMessage(r.program, accounts.Task, accounts.Recipient, amount)
	if !identity.VerifyProof(r.verifier, accounts.Depositor, msg) {
		r.recorder.IncOperationResult(OpCreateTask, metrics.ResultUnauthorized)
		r.logger.Warn("Rejected create_task: depositor proof invalid",
			logfields.Slot(slot),
			logfields.Depositor(accounts.Depositor.Signer.String()))
		return TaskEscrow{}, ErrInsufficientAuthorization.
			WithContext("slot", slot).
			WithContext("depositor", accounts.Depositor.Signer.String())
	}

	record := TaskEscrow{
		Depositor: accounts.Depositor.Signer,
		Recipient: accounts.Recipient,
		Amount:    amount,
	}

	if err := r.store.Allocate(ctx, slot, record.Encode()); err != nil {
		if errors.Is(err, storage.ErrSlotOccupied) {
			r.recorder.IncOperationResult(OpCreateTask, metrics.ResultConflict)
			r.logger.Info("Rejected create_task: slot occupied", logfields.Slot(slot))
			return TaskEscrow{}, ErrAllocationConflict.WithContext("slot", slot)
		}
		r.recorder.IncOperationResult(OpCreateTask, metrics.ResultFailed)
		r.logger.Error("create_task failed", logfields.Slot(slot), logfields.Error(err))
		return TaskEscrow{}, err
	}

	r.recorder.IncOperationResult(OpCreateTask, metrics.ResultSuccess)
	r.logger.Info("Task escrow created",
		logfields.Slot(slot),
		logfields.Depositor(record.Depositor.String()),
		logfields.Recipient(record.Recipient.String()),
		logfields.Amount(record.Amount))

	r.notify(ctx, Event{
		Type:   EventTaskCreated,
		Slot:   accounts.Task,
		Record: record,
	})
	return record, nil
}

// CompleteTask sets the completion flag on accounts.Task. It is idempotent
// and performs no caller authorization.
func (r *Registry) CompleteTask(ctx context.Context, accounts CompleteTaskAccounts) error {
	start := time.Now()
	defer func() { r.recorder.ObserveOperation(OpCompleteTask, time.Since(start)) }()

	slot := accounts.Task.String()
	var before, after TaskEscrow
	_, err := r.store.Update(ctx, slot, func(current []byte) ([]byte, error) {
		rec, err := Decode(current)
		if err != nil {
			return nil, err
		}
		before = rec
		rec.IsCompleted = true
		after = rec
		return rec.Encode(), nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			r.recorder.IncOperationResult(OpCompleteTask, metrics.ResultNotFound)
			r.logger.Info("Rejected complete_task: no such task", logfields.Slot(slot))
			return ErrRecordNotFound.WithContext("slot", slot)
		}
		r.recorder.IncOperationResult(OpCompleteTask, metrics.ResultFailed)
		r.logger.Error("complete_task failed", logfields.Slot(slot), logfields.Error(err))
		return err
	}

	r.recorder.IncOperationResult(OpCompleteTask, metrics.ResultSuccess)
	r.logger.Info("Task escrow completed",
		logfields.Slot(slot),
		slog.Bool("was_completed", before.IsCompleted))

	r.notify(ctx, Event{
		Type:         EventTaskCompleted,
		Slot:         accounts.Task,
		Record:       after,
		WasCompleted: before.IsCompleted,
	})
	return nil
}

// Initialize is the deployment handshake. It always succeeds and touches no record.
func (r *Registry) Initialize(ctx context.Context, _ InitializeAccounts) error {
	start := time.Now()
	defer func() { r.recorder.ObserveOperation(OpInitialize, time.Since(start)) }()

	r.logger.Info(Greeting(r.program), logfields.ProgramID(r.program.String()))
	r.recorder.IncOperationResult(OpInitialize, metrics.ResultSuccess)
	r.notify(ctx, Event{Type: EventProgramInitialized})
	return nil
}

// Greeting is the handshake diagnostic line.
func Greeting(program identity.Identity) string {
	return "Greetings from: " + program.String()
}

// Lookup returns the record stored at slot.
func (r *Registry) Lookup(ctx context.Context, slot identity.Identity) (TaskEscrow, error) {
	data, err := r.store.Load(ctx, slot.String())
	if err != nil {
		if errors.Is(err, storage.ErrSlotNotFound) {
			return TaskEscrow{}, ErrRecordNotFound.WithContext("slot", slot.String())
		}
		return TaskEscrow{}, err
	}
	return Decode(data)
}

// Stats counts records by state.
type Stats struct {
	Open      int `json:"open"`
	Completed int `json:"completed"`
	Corrupt   int `json:"corrupt,omitempty"`
}

// Total returns the number of decodable records.
func (s Stats) Total() int {
	return s.Open + s.Completed
}

// Stats scans the store, counts records by state and publishes the counts
// to the recorder.
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := r.store.Scan(ctx, func(key string, data []byte) error {
		rec, err := Decode(data)
		if err != nil {
			st.Corrupt++
			r.logger.Warn("Skipping undecodable record", logfields.Slot(key), logfields.Error(err))
			return nil
		}
		if rec.IsCompleted {
			st.Completed++
		} else {
			st.Open++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}
	r.recorder.SetRecords(string(StateOpen), st.Open)
	r.recorder.SetRecords(string(StateCompleted), st.Completed)
	return st, nil
}

func (r *Registry) notify(ctx context.Context, event Event) {
	event.ProgramID = r.program
	event.OccurredAt = r.now().UTC()
	for _, o := range r.observers {
		if err := o.observer.Observe(ctx, event); err != nil {
			r.recorder.IncObserverFailure(o.name)
			r.logger.Warn("Observer failed",
				slog.String("observer", o.name),
				logfields.EventType(string(event.Type)),
				logfields.Slot(event.Slot.String()),
				logfields.Error(err))
		}
	}
}
