package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/healthops/alert"
	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/observe"
	"github.com/jonwraymond/healthops/remedy"
	"github.com/jonwraymond/healthops/retry"
	"github.com/jonwraymond/healthops/schedule"
)

// State is the service lifecycle state.
type State int

const (
	// StateUninitialized is the zero state; only Initialize is permitted.
	StateUninitialized State = iota
	// StateInitialized permits registration, ad-hoc execution, and Start.
	StateInitialized
	// StateRunning indicates the scheduling loop is live.
	StateRunning
	// StateStopped indicates the loop was stopped; Start is permitted again.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures the service façade.
type Config struct {
	// Environment labels this deployment; checks restricted to other
	// environments never run.
	Environment string

	// TickInterval is the scheduler loop resolution. Default: 1 second.
	TickInterval time.Duration

	// MaxParallel bounds concurrent parallel-allowed checks. Zero means
	// available hardware concurrency.
	MaxParallel int

	// EventBuffer is each subscriber's channel buffer. Default: 64.
	EventBuffer int
}

// Service is the engine façade. All methods are safe for concurrent use.
type Service struct {
	cfg     Config
	logger  *zap.Logger
	metrics observe.Metrics

	registry  *health.Registry
	scheduler *schedule.Scheduler
	handlers  *alert.HandlerRegistry
	bus       *Bus

	mu    sync.Mutex
	state State

	// Hook-path state uses its own locks: scheduler hooks run while Stop
	// holds mu waiting for the cycle to finish.
	overallMu   sync.Mutex
	overall     health.Status
	overallSeen bool

	handlerMu   sync.Mutex
	handlerCtx  context.Context
	handlerStop context.CancelFunc

	schedOpts []schedule.Option
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithObserver wires an Observer's logger, meter, and tracer into the
// engine.
func WithObserver(obs observe.Observer) ServiceOption {
	return func(s *Service) {
		s.logger = obs.Logger()
		if m, err := observe.NewMetrics(obs.Meter()); err == nil {
			s.metrics = m
		}
		s.schedOpts = append(s.schedOpts, schedule.WithTracer(obs.Tracer()))
	}
}

// WithMetrics sets the engine metrics recorder.
func WithMetrics(m observe.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithSchedulerOptions appends extra scheduler options, applied at
// Initialize.
func WithSchedulerOptions(opts ...schedule.Option) ServiceOption {
	return func(s *Service) { s.schedOpts = append(s.schedOpts, opts...) }
}

// New creates an uninitialized service.
func New(cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: observe.NopMetrics(),
		state:   StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize builds the engine: registry, coordinators, scheduler, and
// event bus. It must be called exactly once, before any other operation.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return ErrAlreadyInitialized
	}

	s.registry = health.NewRegistry()
	s.handlers = alert.NewHandlerRegistry()
	s.bus = NewBus(s.cfg.EventBuffer, func() {
		s.metrics.RecordEventDropped(context.Background())
	})

	retrier := retry.New()
	remedies := remedy.NewCoordinator(retrier)

	opts := []schedule.Option{
		schedule.WithConfig(schedule.Config{
			TickInterval: s.cfg.TickInterval,
			MaxParallel:  s.cfg.MaxParallel,
			Environment:  s.cfg.Environment,
		}),
		schedule.WithLogger(s.logger.Named("scheduler")),
		schedule.WithMetrics(s.metrics),
		schedule.WithRetrier(retrier),
		schedule.WithRemediation(remedies),
		schedule.WithHooks(schedule.Hooks{
			OnResult:      s.onResult,
			OnAlert:       s.onAlert,
			OnEscalation:  s.onEscalation,
			OnRemediation: s.onRemediation,
		}),
	}
	opts = append(opts, s.schedOpts...)
	s.scheduler = schedule.New(s.registry, opts...)

	s.state = StateInitialized
	s.logger.Info("service initialized", zap.String("environment", s.cfg.Environment))
	return nil
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the scheduling loop. It is rejected unless the service is
// Initialized or Stopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

func (s *Service) startLocked(ctx context.Context) error {
	switch s.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateRunning:
		return ErrAlreadyRunning
	}

	handlerCtx, handlerStop := context.WithCancel(context.Background())
	if err := s.scheduler.Start(ctx); err != nil {
		handlerStop()
		return err
	}
	s.handlerMu.Lock()
	s.handlerCtx = handlerCtx
	s.handlerStop = handlerStop
	s.handlerMu.Unlock()
	s.state = StateRunning
	s.logger.Info("service started")
	return nil
}

// Stop halts the scheduling loop. With graceful true the in-flight cycle is
// allowed to finish within the context's deadline; otherwise in-flight work
// is cancelled immediately.
func (s *Service) Stop(ctx context.Context, graceful bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx, graceful)
}

func (s *Service) stopLocked(ctx context.Context, graceful bool) error {
	if s.state != StateRunning {
		return ErrNotRunning
	}
	if err := s.scheduler.Stop(ctx, graceful); err != nil {
		return err
	}
	s.handlerMu.Lock()
	s.handlerStop()
	s.handlerMu.Unlock()
	s.state = StateStopped
	s.logger.Info("service stopped")
	return nil
}

// Restart gracefully stops and restarts the scheduling loop.
func (s *Service) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stopLocked(ctx, true); err != nil {
		return err
	}
	return s.startLocked(ctx)
}

// Close shuts the event bus down. The service must be stopped first.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bus != nil {
		s.bus.Close()
	}
}

// Register adds a check with its policy. Permitted in any state except
// Uninitialized; a check registered while running becomes eligible from the
// next scheduling tick.
func (s *Service) Register(check health.Check, cfg health.Config) (*health.Registration, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	reg, err := s.registry.Register(check, cfg)
	if err != nil {
		return nil, err
	}
	ev := newEvent(EventCheckRegistered)
	ev.CheckName = check.Name()
	s.bus.Publish(ev)
	s.logger.Info("check registered",
		zap.String("check", check.Name()),
		zap.String("category", check.Category()))
	return reg, nil
}

// Unregister removes a check and discards its state and history. Returns
// false when the name is unknown.
func (s *Service) Unregister(name string) bool {
	if s.requireInitialized() != nil {
		return false
	}
	if !s.registry.Unregister(name) {
		return false
	}
	s.scheduler.Forget(name)
	s.scheduler.Remediations().UnregisterHandler(name)
	ev := newEvent(EventCheckUnregistered)
	ev.CheckName = name
	s.bus.Publish(ev)
	s.logger.Info("check unregistered", zap.String("check", name))
	return true
}

// UpdateConfig replaces a registered check's policy; the new policy takes
// effect from the next cycle.
func (s *Service) UpdateConfig(name string, cfg health.Config) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	if err := s.registry.UpdateConfig(name, cfg); err != nil {
		return err
	}
	ev := newEvent(EventConfigUpdated)
	ev.CheckName = name
	s.bus.Publish(ev)
	return nil
}

// Contains reports whether a check with the given name is registered.
func (s *Service) Contains(name string) bool {
	if s.requireInitialized() != nil {
		return false
	}
	return s.registry.Contains(name)
}

// RegisterAlertHandler adds a named alert handler with its criteria.
func (s *Service) RegisterAlertHandler(name string, h alert.Handler, criteria alert.Criteria) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	return s.handlers.Register(name, h, criteria)
}

// UnregisterAlertHandler removes a named alert handler.
func (s *Service) UnregisterAlertHandler(name string) bool {
	if s.requireInitialized() != nil {
		return false
	}
	return s.handlers.Unregister(name)
}

// RegisterRemediationHandler associates a remediation handler with a check
// name.
func (s *Service) RegisterRemediationHandler(checkName string, h remedy.Handler) error {
	if err := s.requireInitialized(); err != nil {
		return err
	}
	return s.scheduler.Remediations().RegisterHandler(checkName, h)
}

// ExecuteCheck runs one registered check immediately through the full
// pipeline, outside the scheduling loop.
func (s *Service) ExecuteCheck(ctx context.Context, name string) (health.Result, error) {
	if err := s.requireInitialized(); err != nil {
		return health.Result{}, err
	}
	return s.scheduler.ExecuteCheck(ctx, name)
}

// RunAll executes every registered check once, policy-free, and returns the
// results in registration order.
func (s *Service) RunAll(ctx context.Context) ([]health.Result, error) {
	if err := s.requireInitialized(); err != nil {
		return nil, err
	}
	return s.registry.RunAll(ctx, time.Now().UTC()), nil
}

// OverallStatus is the worst status among all enabled, non-skipped checks'
// latest results.
func (s *Service) OverallStatus() health.Status {
	if s.requireInitialized() != nil {
		return health.StatusHealthy
	}
	return s.scheduler.OverallStatus()
}

// CategoryStatus is the OverallStatus reduction scoped to one category.
func (s *Service) CategoryStatus(category string) health.Status {
	if s.requireInitialized() != nil {
		return health.StatusHealthy
	}
	return s.scheduler.CategoryStatus(category)
}

// LatestResult returns the newest recorded result for the named check.
func (s *Service) LatestResult(name string) (health.Result, bool) {
	if s.requireInitialized() != nil {
		return health.Result{}, false
	}
	return s.scheduler.LatestResult(name)
}

// History returns the named check's retained results, oldest first.
func (s *Service) History(name string) []health.Result {
	if s.requireInitialized() != nil {
		return nil
	}
	return s.scheduler.History(name)
}

// Subscribe registers an event subscriber. The returned cancel function
// removes the subscription.
func (s *Service) Subscribe() (<-chan Event, func()) {
	if s.requireInitialized() != nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	return s.bus.Subscribe()
}

func (s *Service) requireInitialized() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return ErrNotInitialized
	}
	return nil
}

// onResult is the scheduler hook for every recorded result.
func (s *Service) onResult(res health.Result) {
	t := EventCheckExecuted
	switch {
	case res.Skipped:
		t = EventCheckSkipped
	case res.Status == health.StatusUnhealthy:
		t = EventCheckFailed
	}
	ev := newEvent(t)
	ev.CheckName = res.CheckName
	ev.Result = &res
	ev.CorrelationID = res.CorrelationID
	s.bus.Publish(ev)

	s.publishOverallTransition()
}

// publishOverallTransition emits overall-status-changed on reduction
// transitions only.
func (s *Service) publishOverallTransition() {
	current := s.scheduler.OverallStatus()

	s.overallMu.Lock()
	changed := !s.overallSeen || current != s.overall
	s.overall = current
	s.overallSeen = true
	s.overallMu.Unlock()

	if !changed {
		return
	}
	ev := newEvent(EventOverallStatusChanged)
	ev.Overall = current
	s.bus.Publish(ev)
	s.logger.Info("overall status changed", zap.String("status", current.String()))
}

func (s *Service) onAlert(a alert.Alert) {
	ev := newEvent(EventAlertRaised)
	ev.CheckName = a.CheckName
	ev.Alert = &a
	ev.Result = &a.Result
	ev.CorrelationID = a.CorrelationID
	s.bus.Publish(ev)
	s.dispatchAlert(a)
}

func (s *Service) onEscalation(a alert.Alert) {
	ev := newEvent(EventAlertEscalated)
	ev.CheckName = a.CheckName
	ev.Alert = &a
	ev.Result = &a.Result
	ev.CorrelationID = a.CorrelationID
	s.bus.Publish(ev)
	s.dispatchAlert(a)
}

// dispatchAlert invokes matching alert handlers off the scheduling path so
// a slow handler cannot stall a cycle.
func (s *Service) dispatchAlert(a alert.Alert) {
	s.handlerMu.Lock()
	ctx := s.handlerCtx
	s.handlerMu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	go s.handlers.Dispatch(ctx, a)
}

func (s *Service) onRemediation(att remedy.Attempt) {
	ev := newEvent(EventRemediationAttempted)
	ev.CheckName = att.CheckName
	ev.Remediation = &att
	ev.CorrelationID = att.CorrelationID
	s.bus.Publish(ev)

	if att.Verification != nil {
		vev := newEvent(EventRemediationVerified)
		vev.CheckName = att.CheckName
		vev.Remediation = &att
		vev.Result = att.Verification
		vev.CorrelationID = att.CorrelationID
		s.bus.Publish(vev)
	}
}
