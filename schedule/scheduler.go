package schedule

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/healthops/alert"
	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/observe"
	"github.com/jonwraymond/healthops/remedy"
	"github.com/jonwraymond/healthops/retry"
)

// Config configures the scheduler.
type Config struct {
	// TickInterval is the scheduling loop resolution. Default: 1 second.
	TickInterval time.Duration

	// MaxParallel bounds how many parallel-allowed checks run
	// concurrently. Zero means available hardware concurrency.
	MaxParallel int

	// Environment is the label matched against each check's
	// Environments list. A check restricted to other environments is
	// never due.
	Environment string
}

// Hooks are optional callbacks invoked as the scheduler processes checks.
// They are called synchronously from the executing goroutine and must be
// fast; consumers needing decoupling should hand off to their own channel.
type Hooks struct {
	OnResult      func(res health.Result)
	OnAlert       func(a alert.Alert)
	OnEscalation  func(a alert.Alert)
	OnRemediation func(att remedy.Attempt)
}

// Scheduler is the top-level execution driver.
type Scheduler struct {
	cfg      Config
	registry *health.Registry
	retrier  *retry.Coordinator
	alerts   *alert.Evaluator
	remedies *remedy.Coordinator
	hooks    Hooks
	logger   *zap.Logger
	metrics  observe.Metrics
	tracer   trace.Tracer
	now      func() time.Time

	sem   *semaphore.Weighted
	seqMu sync.Mutex // serializes checks with AllowParallel=false

	mu      sync.RWMutex
	states  map[string]*executionState
	running bool
	cancel  context.CancelFunc
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithConfig sets the scheduler config.
func WithConfig(cfg Config) Option {
	return func(s *Scheduler) { s.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithMetrics sets the engine metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithTracer sets the tracer used for execution spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// WithHooks sets the scheduler hooks.
func WithHooks(h Hooks) Option {
	return func(s *Scheduler) { s.hooks = h }
}

// WithRetrier sets the retry coordinator.
func WithRetrier(r *retry.Coordinator) Option {
	return func(s *Scheduler) { s.retrier = r }
}

// WithAlertEvaluator sets the alert evaluator.
func WithAlertEvaluator(e *alert.Evaluator) Option {
	return func(s *Scheduler) { s.alerts = e }
}

// WithRemediation sets the remediation coordinator.
func WithRemediation(c *remedy.Coordinator) Option {
	return func(s *Scheduler) { s.remedies = c }
}

// WithClock overrides the scheduler's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler over the given registry.
func New(registry *health.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      Config{TickInterval: time.Second},
		registry: registry,
		retrier:  retry.New(),
		alerts:   alert.NewEvaluator(),
		logger:   zap.NewNop(),
		metrics:  observe.NopMetrics(),
		tracer:   tracenoop.NewTracerProvider().Tracer("noop"),
		now:      time.Now,
		states:   make(map[string]*executionState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.TickInterval <= 0 {
		s.cfg.TickInterval = time.Second
	}
	if s.cfg.MaxParallel <= 0 {
		s.cfg.MaxParallel = runtime.NumCPU()
	}
	if s.remedies == nil {
		s.remedies = remedy.NewCoordinator(s.retrier)
	}
	s.sem = semaphore.NewWeighted(int64(s.cfg.MaxParallel))
	return s
}

// Remediations returns the remediation coordinator so callers can register
// handlers.
func (s *Scheduler) Remediations() *remedy.Coordinator {
	return s.remedies
}

// Start launches the scheduling loop. It returns ErrAlreadyRunning when the
// loop is already live.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.running = true

	s.logger.Info("scheduler starting",
		zap.Duration("tick_interval", s.cfg.TickInterval),
		zap.Int("max_parallel", s.cfg.MaxParallel))

	go s.loop(runCtx, s.stopCh, s.doneCh)
	return nil
}

// Stop halts the scheduling loop. Graceful stop lets the in-flight cycle
// finish; otherwise in-flight executions are cancelled at their next
// suspension point. The wait is bounded by the given context.
func (s *Scheduler) Stop(ctx context.Context, graceful bool) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.running = false
	cancel, stopCh, doneCh := s.cancel, s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	if !graceful {
		cancel()
	}

	select {
	case <-doneCh:
	case <-ctx.Done():
		cancel()
		<-doneCh
	}
	cancel()
	s.logger.Info("scheduler stopped", zap.Bool("graceful", graceful))
	return nil
}

// Running reports whether the scheduling loop is live.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case tick := <-ticker.C:
			s.RunCycle(ctx, tick.UTC())
		}
	}
}

// cycleState collects the results produced so far in one cycle so that
// dependency gating sees fresh values.
type cycleState struct {
	mu      sync.Mutex
	results map[string]health.Result
}

func (c *cycleState) put(res health.Result) {
	c.mu.Lock()
	c.results[res.CheckName] = res
	c.mu.Unlock()
}

func (c *cycleState) get(name string) (health.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.results[name]
	return res, ok
}

// RunCycle executes every due check once, honoring dependency order and
// parallelism limits, and returns the cycle's final results. It is the unit
// of work the scheduling loop performs per tick and is also usable directly
// for on-demand sweeps.
func (s *Scheduler) RunCycle(ctx context.Context, at time.Time) []health.Result {
	start := s.now()

	due := make([]*health.Registration, 0)
	for _, reg := range s.registry.Snapshot() {
		cfg := reg.Config()
		if !s.inEnvironment(cfg) {
			continue
		}
		if s.stateFor(reg).due(at) {
			due = append(due, reg)
		}
	}
	if len(due) == 0 {
		return nil
	}

	cycle := &cycleState{results: make(map[string]health.Result, len(due))}
	var (
		resMu   sync.Mutex
		results []health.Result
	)
	collect := func(res health.Result) {
		cycle.put(res)
		resMu.Lock()
		results = append(results, res)
		resMu.Unlock()
	}

	for _, level := range planLevels(due) {
		var wg sync.WaitGroup
		for _, reg := range level {
			if ctx.Err() != nil {
				break
			}
			if reg.Config().AllowParallel {
				if err := s.sem.Acquire(ctx, 1); err != nil {
					break
				}
				wg.Add(1)
				go func(reg *health.Registration) {
					defer wg.Done()
					defer s.sem.Release(1)
					collect(s.runOne(ctx, reg, at, cycle))
				}(reg)
			} else {
				collect(s.runOne(ctx, reg, at, cycle))
			}
		}
		wg.Wait()
		if ctx.Err() != nil {
			break
		}
	}

	s.metrics.RecordCycle(ctx, time.Since(start), len(results))
	return results
}

// ExecuteCheck runs a single registered check immediately through the full
// retry, alert, and remediation pipeline, outside the scheduling loop.
// Dependency gating still applies against the latest known results.
func (s *Scheduler) ExecuteCheck(ctx context.Context, name string) (health.Result, error) {
	reg, ok := s.registry.Lookup(name)
	if !ok {
		return health.Result{}, fmt.Errorf("%w: %s", health.ErrCheckNotFound, name)
	}
	cycle := &cycleState{results: make(map[string]health.Result)}
	return s.runOne(ctx, reg, s.now().UTC(), cycle), nil
}

// runOne drives one check through its full cycle step: dependency gate,
// retried execution, alert evaluation, and remediation.
func (s *Scheduler) runOne(ctx context.Context, reg *health.Registration, at time.Time, cycle *cycleState) health.Result {
	cfg := reg.Config()
	check := reg.Check()
	name := reg.Name()
	state := s.stateFor(reg)
	nextDue := at.Add(cfg.Interval)

	if dep, blocked := s.blockedBy(cfg, cycle); blocked {
		res := health.Skipped(name, "dependency "+dep+" is not healthy").
			WithCategory(check.Category())
		state.record(res, at, nextDue)
		s.metrics.RecordSkip(ctx, name)
		s.logger.Debug("check skipped",
			zap.String("check", name),
			zap.String("dependency", dep))
		if s.hooks.OnResult != nil {
			s.hooks.OnResult(res)
		}
		return res
	}

	if !cfg.AllowParallel {
		s.seqMu.Lock()
		defer s.seqMu.Unlock()
	}

	execCtx, span := s.tracer.Start(ctx, "healthcheck.execute",
		trace.WithAttributes(
			attribute.String("check.name", name),
			attribute.String("check.category", check.Category()),
		))
	res, attempts := s.retrier.Execute(execCtx, check, cfg, at)
	span.SetAttributes(
		attribute.String("check.status", res.Status.String()),
		attribute.Int("check.attempts", attempts),
	)
	span.End()

	state.record(res, at, nextDue)
	s.metrics.RecordExecution(ctx, name, res.Category, res.Status, res.Duration, attempts)
	s.logResult(res, attempts)
	if s.hooks.OnResult != nil {
		s.hooks.OnResult(res)
	}

	s.evaluate(ctx, cfg, res)
	return s.remediate(ctx, reg, cfg, res, at, nextDue)
}

// evaluate feeds one result through alert policy and dispatches hook
// callbacks for whatever fired.
func (s *Scheduler) evaluate(ctx context.Context, cfg health.Config, res health.Result) {
	decision := s.alerts.Evaluate(cfg, res)
	if decision.Alert != nil {
		s.metrics.RecordAlert(ctx, res.CheckName, false)
		s.logger.Warn("alert raised",
			zap.String("check", res.CheckName),
			zap.Int("consecutive_failures", decision.Alert.ConsecutiveFailures))
		if s.hooks.OnAlert != nil {
			s.hooks.OnAlert(*decision.Alert)
		}
	}
	if decision.Escalation != nil {
		s.metrics.RecordAlert(ctx, res.CheckName, true)
		s.logger.Error("alert escalated", zap.String("check", res.CheckName))
		if s.hooks.OnEscalation != nil {
			s.hooks.OnEscalation(*decision.Escalation)
		}
	}
}

// remediate runs the remediation pipeline and records the verification
// result, when any, as the check's newest state.
func (s *Scheduler) remediate(ctx context.Context, reg *health.Registration, cfg health.Config, res health.Result, at, nextDue time.Time) health.Result {
	s.remedies.Observe(res)

	attempt := s.remedies.Remediate(ctx, reg.Check(), cfg, res)
	if attempt == nil {
		return res
	}

	s.metrics.RecordRemediation(ctx, res.CheckName, attempt.Outcome.Succeeded)
	s.logger.Info("remediation attempted",
		zap.String("check", res.CheckName),
		zap.Int("attempt", attempt.Number),
		zap.Bool("succeeded", attempt.Outcome.Succeeded))
	if s.hooks.OnRemediation != nil {
		s.hooks.OnRemediation(*attempt)
	}

	if attempt.Verification == nil {
		return res
	}

	// The verification result flows through the pipeline like any other
	// execution.
	verification := *attempt.Verification
	s.stateFor(reg).record(verification, at, nextDue)
	s.metrics.RecordExecution(ctx, verification.CheckName, verification.Category,
		verification.Status, verification.Duration, verification.Attempts)
	if s.hooks.OnResult != nil {
		s.hooks.OnResult(verification)
	}
	s.evaluate(ctx, cfg, verification)
	s.remedies.Observe(verification)
	return verification
}

func (s *Scheduler) logResult(res health.Result, attempts int) {
	fields := []zap.Field{
		zap.String("check", res.CheckName),
		zap.String("status", res.Status.String()),
		zap.Duration("duration", res.Duration),
		zap.Int("attempts", attempts),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	switch res.Status {
	case health.StatusUnhealthy:
		s.logger.Warn("check failed", fields...)
	default:
		s.logger.Debug("check executed", fields...)
	}
}

// blockedBy reports whether a dependency gate blocks execution, preferring
// results from the current cycle over the previous one.
func (s *Scheduler) blockedBy(cfg health.Config, cycle *cycleState) (string, bool) {
	if !cfg.SkipOnUnhealthyDependencies {
		return "", false
	}
	for _, dep := range cfg.DependsOn {
		res, ok := cycle.get(dep)
		if !ok {
			res, ok = s.latestFor(dep)
		}
		if !ok {
			continue
		}
		if res.Skipped || res.Status.AtLeast(health.StatusDegraded) {
			return dep, true
		}
	}
	return "", false
}

func (s *Scheduler) inEnvironment(cfg health.Config) bool {
	return len(cfg.Environments) == 0 || slices.Contains(cfg.Environments, s.cfg.Environment)
}

func (s *Scheduler) stateFor(reg *health.Registration) *executionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[reg.Name()]
	if !ok {
		cfg := reg.Config()
		st = newExecutionState(reg.RegisteredAt().Add(cfg.InitialDelay), cfg)
		s.states[reg.Name()] = st
	}
	return st
}

func (s *Scheduler) latestFor(name string) (health.Result, bool) {
	s.mu.RLock()
	st, ok := s.states[name]
	s.mu.RUnlock()
	if !ok {
		return health.Result{}, false
	}
	return st.latest()
}

// LatestResult returns the newest recorded result for the named check.
func (s *Scheduler) LatestResult(name string) (health.Result, bool) {
	return s.latestFor(name)
}

// History returns a read-only snapshot of the named check's retained
// results, oldest first.
func (s *Scheduler) History(name string) []health.Result {
	s.mu.RLock()
	st, ok := s.states[name]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return st.snapshot(s.now())
}

// Forget discards all scheduler state for the named check: execution state,
// history, and any open alert episode. Called on unregister.
func (s *Scheduler) Forget(name string) {
	s.mu.Lock()
	delete(s.states, name)
	s.mu.Unlock()
	s.alerts.Reset(name)
}

// OverallStatus is the worst status among the latest results of all
// registered, non-skipped checks.
func (s *Scheduler) OverallStatus() health.Status {
	return s.reduceStatus(func(*health.Registration) bool { return true })
}

// CategoryStatus is the OverallStatus reduction scoped to one category.
func (s *Scheduler) CategoryStatus(category string) health.Status {
	return s.reduceStatus(func(reg *health.Registration) bool {
		return reg.Check().Category() == category
	})
}

func (s *Scheduler) reduceStatus(include func(*health.Registration) bool) health.Status {
	worst := health.StatusHealthy
	for _, reg := range s.registry.Snapshot() {
		if !include(reg) {
			continue
		}
		res, ok := s.latestFor(reg.Name())
		if !ok || res.Skipped {
			continue
		}
		worst = health.WorstOf(worst, res.Status)
	}
	return worst
}
