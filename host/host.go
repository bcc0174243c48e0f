// Package host is a reference runtime for aggregate engines. It supplies the
// guarantee the engine documents as a precondition: a single-consumer mailbox
// per entity identity, so commands for one entity are processed strictly one
// at a time, with recovery completed before the first dispatch.
package host

import (
	"context"
	"sync"

	apperrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	rcron "github.com/robfig/cron/v3"

	"github.com/goliatone/go-aggregate"
)

const (
	ErrCodeHostClosed      = "HOST_CLOSED"
	ErrCodeActivation      = "HOST_ACTIVATION_FAILED"
	ErrCodeMailboxCanceled = "HOST_MAILBOX_CANCELED"
	ErrCodeSnapshotSweep   = "HOST_SNAPSHOT_SWEEP_FAILED"
)

const defaultMailboxDepth = 16

// EngineFactory builds the engine for one entity identity. Called once per
// activation, on the entity's own goroutine.
type EngineFactory[S any, E aggregate.Event, C aggregate.Command] func(id string) (*aggregate.Engine[S, E, C], error)

type submitResult struct {
	outcome aggregate.Outcome
	err     error
}

// envelope carries either one command or one control function through the
// entity mailbox. Control functions run on the entity goroutine with the
// same single-writer guarantee as commands.
type envelope[S any, E aggregate.Event, C aggregate.Command] struct {
	ctx     context.Context
	cmd     C
	control func(*aggregate.Engine[S, E, C]) error
	done    chan submitResult
}

type entityRef[S any, E aggregate.Event, C aggregate.Command] struct {
	id    string
	inbox chan envelope[S, E, C]
	// done signals shutdown to both the run goroutine and parked senders.
	// The inbox itself is never closed, so a Submit racing Close can never
	// send on a closed channel.
	done chan struct{}
}

// Host routes commands to per-entity engines, activating entities on first
// use. Safe for concurrent use; serialization happens per entity, not
// globally.
type Host[S any, E aggregate.Event, C aggregate.Command] struct {
	mu       sync.Mutex
	id       string
	factory  EngineFactory[S, E, C]
	entities map[string]*entityRef[S, E, C]
	logger   aggregate.Logger
	depth    int
	cron     *rcron.Cron
	schedule string
	closed   bool
	wg       sync.WaitGroup
}

// Option customizes the host.
type Option[S any, E aggregate.Event, C aggregate.Command] func(*Host[S, E, C])

// WithLogger sets the host logger.
func WithLogger[S any, E aggregate.Event, C aggregate.Command](logger aggregate.Logger) Option[S, E, C] {
	return func(h *Host[S, E, C]) {
		h.logger = logger
	}
}

// WithMailboxDepth sets the per-entity command buffer.
func WithMailboxDepth[S any, E aggregate.Event, C aggregate.Command](depth int) Option[S, E, C] {
	return func(h *Host[S, E, C]) {
		if depth > 0 {
			h.depth = depth
		}
	}
}

// WithSnapshotSchedule enables a periodic snapshot sweep over active
// entities, using a standard cron expression.
func WithSnapshotSchedule[S any, E aggregate.Event, C aggregate.Command](expr string) Option[S, E, C] {
	return func(h *Host[S, E, C]) {
		h.schedule = expr
	}
}

// New constructs a host around an engine factory.
func New[S any, E aggregate.Event, C aggregate.Command](factory EngineFactory[S, E, C], opts ...Option[S, E, C]) (*Host[S, E, C], error) {
	if factory == nil {
		return nil, apperrors.New("engine factory cannot be nil", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeActivation)
	}

	h := &Host[S, E, C]{
		id:       uuid.NewString(),
		factory:  factory,
		entities: make(map[string]*entityRef[S, E, C]),
		depth:    defaultMailboxDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.logger == nil {
		h.logger = aggregate.NewFmtLogger(nil)
	}
	if fl, ok := h.logger.(aggregate.FieldsLogger); ok {
		h.logger = fl.WithFields(map[string]any{"host": h.id})
	}

	if h.schedule != "" {
		h.cron = rcron.New()
		if _, err := h.cron.AddFunc(h.schedule, h.snapshotSweep); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "invalid snapshot schedule").
				WithTextCode(ErrCodeActivation).
				WithMetadata(map[string]any{"schedule": h.schedule})
		}
		h.cron.Start()
	}

	return h, nil
}

// Submit delivers one command to the entity, activating it when necessary,
// and waits for the engine's verdict. The reply itself (if any) travels over
// the command's own ReplyTo channel.
func (h *Host[S, E, C]) Submit(ctx context.Context, entityID string, cmd C) (aggregate.Outcome, error) {
	ref, err := h.entity(entityID)
	if err != nil {
		return aggregate.OutcomeNoReply, err
	}
	return h.post(ctx, ref, envelope[S, E, C]{ctx: ctx, cmd: cmd, done: make(chan submitResult, 1)})
}

// Ask builds a reply-enforced command around a fresh ReplyTo, submits it, and
// awaits the reply. A context cancellation abandons the reply; the entity's
// state still advances if the events were already durable.
func Ask[R any, S any, E aggregate.Event, C aggregate.Command](
	ctx context.Context,
	h *Host[S, E, C],
	entityID string,
	build func(*aggregate.ReplyTo[R]) C,
) (R, error) {
	var zero R

	to := aggregate.NewReplyTo[R]()
	if _, err := h.Submit(ctx, entityID, build(to)); err != nil {
		return zero, err
	}

	select {
	case reply := <-to.Recv():
		return reply, nil
	case <-ctx.Done():
		return zero, apperrors.Wrap(ctx.Err(), apperrors.CategoryExternal, "caller gave up before reply").
			WithTextCode(ErrCodeMailboxCanceled).
			WithMetadata(map[string]any{"entity_id": entityID})
	}
}

// SnapshotAll runs Engine.Snapshot on every active entity, serialized through
// each entity's mailbox.
func (h *Host[S, E, C]) SnapshotAll(ctx context.Context) error {
	h.mu.Lock()
	refs := make([]*entityRef[S, E, C], 0, len(h.entities))
	for _, ref := range h.entities {
		refs = append(refs, ref)
	}
	h.mu.Unlock()

	var errs []error
	for _, ref := range refs {
		env := envelope[S, E, C]{
			ctx: ctx,
			control: func(engine *aggregate.Engine[S, E, C]) error {
				return engine.Snapshot(ctx)
			},
			done: make(chan submitResult, 1),
		}
		if _, err := h.post(ctx, ref, env); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		err := apperrors.New("snapshot sweep failed for some entities", apperrors.CategoryExternal).
			WithTextCode(ErrCodeSnapshotSweep).
			WithMetadata(map[string]any{"failed": len(errs)})
		err.Source = errs[0]
		return err
	}
	return nil
}

// Close stops the snapshot scheduler, signals every entity to shut down, and
// waits for in-flight commands to finish. The command being processed at
// close time completes normally; queued and late submits fail with a
// host-closed error.
func (h *Host[S, E, C]) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	refs := h.entities
	h.entities = make(map[string]*entityRef[S, E, C])
	h.mu.Unlock()

	if h.cron != nil {
		h.cron.Stop()
	}
	for _, ref := range refs {
		close(ref.done)
	}
	h.wg.Wait()
}

func (h *Host[S, E, C]) entity(entityID string) (*entityRef[S, E, C], error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, closedError(entityID)
	}
	if ref, ok := h.entities[entityID]; ok {
		return ref, nil
	}

	ref := &entityRef[S, E, C]{
		id:    entityID,
		inbox: make(chan envelope[S, E, C], h.depth),
		done:  make(chan struct{}),
	}
	h.entities[entityID] = ref
	h.wg.Add(1)
	go h.run(ref)
	return ref, nil
}

// run is the entity's single writer: it recovers the engine, then drains the
// mailbox one envelope at a time. A failed or panicked entity keeps its
// mailbox and answers every later envelope with the activation error until
// the host closes; it does not guess at state.
func (h *Host[S, E, C]) run(ref *entityRef[S, E, C]) {
	defer h.wg.Done()

	var current *envelope[S, E, C]
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("entity %s panicked: %v", ref.id, r)
			res := activationError(ref.id, apperrors.New("entity panicked", apperrors.CategoryHandler).
				WithTextCode(ErrCodeActivation))
			if current != nil {
				current.done <- res
			}
			h.answerUntilClosed(ref, res)
		}
	}()

	engine, err := h.factory(ref.id)
	if err == nil {
		err = engine.Recover(context.Background())
	}
	if err != nil {
		h.logger.Error("activation failed for %s: %v", ref.id, err)
		h.answerUntilClosed(ref, activationError(ref.id, err))
		return
	}

	closedRes := submitResult{err: closedError(ref.id)}
	for {
		// shutdown wins over further queued commands
		select {
		case <-ref.done:
			flush(ref.inbox, closedRes)
			return
		default:
		}

		select {
		case env := <-ref.inbox:
			current = &env
			switch {
			case env.ctx != nil && env.ctx.Err() != nil:
				env.done <- submitResult{err: apperrors.Wrap(env.ctx.Err(), apperrors.CategoryExternal, "command abandoned before dispatch").
					WithTextCode(ErrCodeMailboxCanceled)}
			case env.control != nil:
				env.done <- submitResult{err: env.control(engine)}
			default:
				outcome, serr := engine.Submit(env.ctx, env.cmd)
				env.done <- submitResult{outcome: outcome, err: serr}
			}
			current = nil
		case <-ref.done:
			flush(ref.inbox, closedRes)
			return
		}
	}
}

func (h *Host[S, E, C]) post(ctx context.Context, ref *entityRef[S, E, C], env envelope[S, E, C]) (aggregate.Outcome, error) {
	select {
	case ref.inbox <- env:
	case <-ref.done:
		return aggregate.OutcomeNoReply, closedError(ref.id)
	case <-ctx.Done():
		return aggregate.OutcomeNoReply, apperrors.Wrap(ctx.Err(), apperrors.CategoryExternal, "mailbox enqueue canceled").
			WithTextCode(ErrCodeMailboxCanceled).
			WithMetadata(map[string]any{"entity_id": ref.id})
	}

	select {
	case res := <-env.done:
		return res.outcome, res.err
	case <-ref.done:
		// a verdict may have raced with shutdown; prefer it
		select {
		case res := <-env.done:
			return res.outcome, res.err
		default:
		}
		return aggregate.OutcomeNoReply, closedError(ref.id)
	case <-ctx.Done():
		// the entity may still process the command; any reply is discarded
		return aggregate.OutcomeNoReply, apperrors.Wrap(ctx.Err(), apperrors.CategoryExternal, "caller gave up while command in flight").
			WithTextCode(ErrCodeMailboxCanceled).
			WithMetadata(map[string]any{"entity_id": ref.id})
	}
}

func (h *Host[S, E, C]) snapshotSweep() {
	if err := h.SnapshotAll(context.Background()); err != nil {
		h.logger.Error("scheduled snapshot sweep: %v", err)
	}
}

// answerUntilClosed keeps a dead entity responsive: every envelope is answered
// with res until the host shuts down, then buffered stragglers are flushed.
func (h *Host[S, E, C]) answerUntilClosed(ref *entityRef[S, E, C], res submitResult) {
	for {
		select {
		case env := <-ref.inbox:
			env.done <- res
		case <-ref.done:
			flush(ref.inbox, res)
			return
		}
	}
}

// flush answers already-buffered envelopes without blocking on new ones.
func flush[S any, E aggregate.Event, C aggregate.Command](inbox chan envelope[S, E, C], res submitResult) {
	for {
		select {
		case env := <-inbox:
			env.done <- res
		default:
			return
		}
	}
}

func activationError(entityID string, err error) submitResult {
	return submitResult{err: apperrors.Wrap(err, apperrors.CategoryExternal, "entity activation failed").
		WithTextCode(ErrCodeActivation).
		WithMetadata(map[string]any{"entity_id": entityID})}
}

func closedError(entityID string) error {
	return apperrors.New("host is closed", apperrors.CategoryConflict).
		WithTextCode(ErrCodeHostClosed).
		WithMetadata(map[string]any{"entity_id": entityID})
}
