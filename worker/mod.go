// Package worker implements the loop that runs a proxy. The worker registers
// the proxy, polls its tasks and re-encrypts them until it is stopped, after
// which the proxy is deactivated or unregistered.
//
// Each iteration performs at most one query of the tasks and one answer to a
// task. A task that cannot be opened is skipped, a wallet without funds is
// topped up by the funder, and the other failures are logged until the next
// iteration. A task that failed waits until the other tasks had their turn.
package worker

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/pre"
	"go.dedis.ch/pre/contract"
	"go.dedis.ch/pre/crypto"
	"go.dedis.ch/pre/ledger"
	"golang.org/x/xerrors"
)

const (
	defaultPollInterval     = 5 * time.Second
	defaultWithdrawInterval = time.Minute
	defaultShutdownTimeout  = 30 * time.Second
)

var (
	promTaskQuery = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "task_query_seconds",
		Help:      "time to query the tasks of the proxy",
	})

	promTaskProcessing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "task_processing_seconds",
		Help:      "time to re-encrypt a task and provide the fragment",
	})

	promTasks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "tasks_total",
		Help:      "number of tasks handled by the worker per result",
	}, []string{"result"})

	promFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "contract_failures_total",
		Help:      "number of failed calls to the contract",
	}, []string{"call"})

	promWithdrawals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "withdrawals_total",
		Help:      "number of automatic withdrawals of stake",
	})

	promPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pre",
		Subsystem: "worker",
		Name:      "pending_tasks",
		Help:      "number of tasks returned by the last query",
	})
)

func init() {
	pre.PromCollectors = append(pre.PromCollectors, promTaskQuery, promTaskProcessing,
		promTasks, promFailures, promWithdrawals, promPending)
}

// Proxy is the agent driven by the worker.
type Proxy interface {
	Address() string

	Register(ctx context.Context) (*ledger.Coin, error)

	Unregister(ctx context.Context, deactivateOnly bool) error

	Status(ctx context.Context) (*contract.ProxyStatus, error)

	WithdrawStake(ctx context.Context, amount *uint64) error

	GetReencryptionRequests(ctx context.Context) ([]contract.ProxyTask, error)

	ProcessReencryptionRequest(ctx context.Context, task contract.ProxyTask) error

	SkipTask(ctx context.Context, task contract.ProxyTask) error
}

// Funder tops up the wallet of the proxy.
type Funder func(ctx context.Context) error

// Config is the configuration of the worker. Zero durations take a default.
type Config struct {
	PollInterval time.Duration

	// AutoWithdraw enables the withdrawal of the stake above the minimum,
	// checked at most once per WithdrawInterval.
	AutoWithdraw     bool
	WithdrawInterval time.Duration

	// DeactivateOnly keeps the proxy and its stake in the contract when the
	// worker stops.
	DeactivateOnly bool

	// RunOnce stops the worker after the first iteration.
	RunOnce bool

	// ShutdownTimeout bounds the time to unregister the proxy.
	ShutdownTimeout time.Duration
}

// Worker runs a proxy.
type Worker struct {
	proxy  Proxy
	cfg    Config
	funder Funder
	logger zerolog.Logger

	lastWithdraw time.Time
	// failed holds the tasks that failed since they were last picked, so that
	// the other tasks get their turn.
	failed map[string]struct{}
}

// Option is the type of options to create a worker.
type Option func(*Worker)

// WithFunder sets the funder called when the wallet of the proxy lacks funds.
func WithFunder(funder Funder) Option {
	return func(w *Worker) {
		w.funder = funder
	}
}

// WithLogger overrides the logger of the worker.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker returns a worker of the proxy.
func NewWorker(proxy Proxy, cfg Config, opts ...Option) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WithdrawInterval <= 0 {
		cfg.WithdrawInterval = defaultWithdrawInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	w := &Worker{
		proxy:  proxy,
		cfg:    cfg,
		logger: pre.Logger.With().Str("proxy", proxy.Address()).Logger(),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run registers the proxy and processes its tasks until the context is done.
// The proxy is always deactivated, and unregistered unless configured
// otherwise, before the function returns. A cancellation of the context is a
// normal stop.
func (w *Worker) Run(ctx context.Context) (err error) {
	err = w.register(ctx)
	if err != nil {
		return xerrors.Errorf("failed to register: %w", err)
	}

	w.logger.Info().Msg("worker started")

	defer func() {
		cleanupErr := w.cleanup()
		if cleanupErr != nil {
			err = multierror.Append(err, cleanupErr)
		}
	}()

	for {
		busy := w.iterate(ctx)

		if w.cfg.RunOnce {
			return nil
		}

		if busy {
			// Pending tasks are handled without waiting.
			if ctx.Err() != nil {
				return nil
			}

			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

func (w *Worker) register(ctx context.Context) error {
	stake, err := w.proxy.Register(ctx)
	if xerrors.Is(err, contract.ErrWalletInsufficientFunds) && w.funder != nil {
		err = w.fund(ctx)
		if err != nil {
			return err
		}

		stake, err = w.proxy.Register(ctx)
	}

	if err != nil {
		return err
	}

	if stake != nil {
		w.logger.Info().Stringer("stake", stake).Msg("proxy staked")
	}

	return nil
}

// cleanup leaves the contract with a context of its own since the one of the
// loop is usually done.
func (w *Worker) cleanup() error {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.ShutdownTimeout)
	defer cancel()

	promPending.Set(0)

	err := w.proxy.Unregister(ctx, w.cfg.DeactivateOnly)
	if err != nil {
		return xerrors.Errorf("failed to unregister: %w", err)
	}

	w.logger.Info().Bool("deactivate-only", w.cfg.DeactivateOnly).Msg("worker stopped")

	return nil
}

// iterate runs one iteration of the loop and returns true when more tasks are
// waiting.
func (w *Worker) iterate(ctx context.Context) bool {
	if w.cfg.AutoWithdraw {
		w.withdraw(ctx)
	}

	start := time.Now()
	tasks, err := w.proxy.GetReencryptionRequests(ctx)
	promTaskQuery.Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() == nil {
			promFailures.WithLabelValues("query").Inc()
			w.logger.Warn().Err(err).Msg("failed to query tasks")
		}

		return false
	}

	promPending.Set(float64(len(tasks)))

	if len(tasks) == 0 {
		return false
	}

	task := w.next(tasks)

	if w.process(ctx, task) {
		delete(w.failed, taskKey(task))
	} else {
		w.failed[taskKey(task)] = struct{}{}
	}

	for _, t := range tasks {
		_, found := w.failed[taskKey(t)]
		if !found && taskKey(t) != taskKey(task) {
			return true
		}
	}

	return false
}

// next returns the first task that did not fail since it was last picked. When
// every task failed, the rotation starts over.
func (w *Worker) next(tasks []contract.ProxyTask) contract.ProxyTask {
	current := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		key := taskKey(task)

		_, found := w.failed[key]
		if found {
			current[key] = struct{}{}
		}
	}

	// Tasks that are no longer assigned are forgotten.
	w.failed = current

	for _, task := range tasks {
		_, found := w.failed[taskKey(task)]
		if !found {
			return task
		}
	}

	w.failed = make(map[string]struct{})

	return tasks[0]
}

func taskKey(task contract.ProxyTask) string {
	return task.DataID + ":" + hex.EncodeToString(task.DelegateePubkey)
}

// process answers the task and returns true when the task is no longer
// assigned to the proxy.
func (w *Worker) process(ctx context.Context, task contract.ProxyTask) bool {
	logger := w.logger.With().Str("data", task.DataID).Logger()

	start := time.Now()
	err := w.proxy.ProcessReencryptionRequest(ctx, task)
	promTaskProcessing.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		promTasks.WithLabelValues("processed").Inc()
		logger.Debug().Msg("task processed")

		return true
	case ctx.Err() != nil:
		logger.Debug().Err(err).Msg("task interrupted")
	case mustSkip(err):
		promTasks.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("task cannot be processed")

		err = w.proxy.SkipTask(ctx, task)
		if err != nil {
			promFailures.WithLabelValues("execution").Inc()
			logger.Warn().Err(err).Msg("failed to skip task")
			return false
		}

		promTasks.WithLabelValues("skipped").Inc()

		return true
	case xerrors.Is(err, contract.ErrWalletInsufficientFunds):
		logger.Warn().Msg("wallet lacks funds")

		if w.funder != nil {
			err = w.fund(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to fund wallet")
			}
		}
	default:
		promFailures.WithLabelValues("execution").Inc()
		logger.Warn().Err(err).Msg("failed to process task")
	}

	return false
}

func (w *Worker) withdraw(ctx context.Context) {
	if !w.lastWithdraw.IsZero() && time.Since(w.lastWithdraw) < w.cfg.WithdrawInterval {
		return
	}

	w.lastWithdraw = time.Now()

	status, err := w.proxy.Status(ctx)
	if err != nil {
		promFailures.WithLabelValues("query").Inc()
		w.logger.Warn().Err(err).Msg("failed to read status")
		return
	}

	if status == nil || status.WithdrawableStakeAmount == 0 {
		return
	}

	amount := status.WithdrawableStakeAmount

	err = w.proxy.WithdrawStake(ctx, &amount)
	if err != nil {
		promFailures.WithLabelValues("execution").Inc()
		w.logger.Warn().Err(err).Msg("failed to withdraw stake")
		return
	}

	promWithdrawals.Inc()
	w.logger.Info().Uint64("amount", amount).Msg("stake withdrawn")
}

func (w *Worker) fund(ctx context.Context) error {
	err := w.funder(ctx)
	if err != nil {
		return xerrors.Errorf("failed to fund: %v", err)
	}

	w.logger.Info().Msg("wallet funded")

	return nil
}

// mustSkip returns true when the task itself is faulty. Such a task would fail
// again so it is abandoned.
func mustSkip(err error) bool {
	return xerrors.Is(err, crypto.ErrDecryption) ||
		xerrors.Is(err, crypto.ErrIncorrectFormatOfDelegationString) ||
		xerrors.Is(err, contract.ErrFragmentVerificationFailed)
}
