package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohmanhakim/lore-crawler/internal/crawler"
	"github.com/rohmanhakim/lore-crawler/internal/store"
	"github.com/rohmanhakim/lore-crawler/pkg/failure"
	"github.com/rohmanhakim/lore-crawler/pkg/urlutil"
)

/*
Scheduler is the sole control-plane authority over background crawls.

Guarantees:
- Four priority queues (critical, high, normal, low); dispatch always
  takes from the highest non-empty queue, FIFO within a queue.
- Running jobs are never preempted; priority affects dispatch only.
- A fixed worker pool caps in-flight jobs.
- Each job runs under its own deadline; on timeout the crawler is
  cancelled cooperatively and the job re-queues while attempts remain.
- Retries are granted only for timeouts and transient failures;
  everything else fails the job.
- completed and cancelled are terminal.

Job state and metrics are mirrored into the store on every transition,
so status survives process restarts.
*/

// Runner abstracts the crawler so tests can drive the scheduler with
// scripted jobs.
type Runner interface {
	Run(ctx context.Context, jobID, seedURL string, cfg crawler.CrawlConfig) (store.JobMetrics, failure.ClassifiedError)
}

type Options struct {
	Workers       int
	TaskTimeout   time.Duration
	RetryAttempts int
}

func DefaultOptions() Options {
	return Options{
		Workers:       3,
		TaskTimeout:   300 * time.Second,
		RetryAttempts: 3,
	}
}

type Scheduler struct {
	store  *store.Store
	runner Runner
	log    zerolog.Logger
	opts   Options

	mu      sync.Mutex
	cond    *sync.Cond
	queues  [4][]*job
	jobs    map[string]*job
	cancels map[string]context.CancelFunc
	stopped bool

	wg sync.WaitGroup
}

func New(st *store.Store, runner Runner, log zerolog.Logger, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	s := &Scheduler{
		store:   st,
		runner:  runner,
		log:     log,
		opts:    opts,
		jobs:    make(map[string]*job),
		cancels: make(map[string]context.CancelFunc),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker pool. Workers exit when Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.opts.Workers; i++ {
		s.wg.Add(1)
		go s.workerLoop(ctx, i)
	}
}

// Stop drains the pool: queued jobs stay queued (and persisted), running
// jobs are cancelled cooperatively, and the call blocks until every
// worker has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
}

// Submit validates and enqueues a job, returning its id.
func (s *Scheduler) Submit(ctx context.Context, spec JobSpec) (string, error) {
	if strings.TrimSpace(spec.SeedURL) == "" {
		return "", &SchedulerError{Message: "seed URL is empty", Cause: ErrCauseBadSpec}
	}
	parsed, err := url.Parse(spec.SeedURL)
	if err != nil || !urlutil.IsHTTP(*parsed) || parsed.Host == "" {
		return "", &SchedulerError{
			Message: fmt.Sprintf("seed %q is not an absolute HTTP(S) URL", spec.SeedURL),
			Cause:   ErrCauseBadSpec,
		}
	}
	if spec.Priority < store.PriorityCritical || spec.Priority > store.PriorityLow {
		spec.Priority = store.PriorityNormal
	}
	if spec.JobID == "" {
		spec.JobID = uuid.NewString()
	}

	now := time.Now()
	j := &job{
		spec:        spec,
		state:       store.JobStateQueued,
		createdAt:   now,
		scheduledAt: now,
	}

	configJSON, err := spec.Config.ToJSON()
	if err != nil {
		return "", &SchedulerError{Message: err.Error(), Cause: ErrCauseBadSpec}
	}
	if err := s.store.RecordJob(ctx, store.CrawlJob{
		JobID:     spec.JobID,
		SeedURL:   spec.SeedURL,
		Config:    configJSON,
		State:     store.JobStateQueued,
		Priority:  spec.Priority,
		CreatedAt: now,
	}); err != nil {
		if se, ok := err.(*store.StoreError); ok && se.Cause == store.ErrCauseConstraint {
			return "", &SchedulerError{Message: se.Message, Cause: ErrCauseDuplicateJob}
		}
		return "", err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return "", &SchedulerError{Message: "scheduler is stopped", Cause: ErrCauseStopped}
	}
	if _, exists := s.jobs[spec.JobID]; exists {
		s.mu.Unlock()
		return "", &SchedulerError{
			Message: fmt.Sprintf("job %q already submitted", spec.JobID),
			Cause:   ErrCauseDuplicateJob,
		}
	}
	s.jobs[spec.JobID] = j
	s.enqueueLocked(j)
	s.cond.Signal()
	s.mu.Unlock()

	s.log.Info().
		Str("job_id", spec.JobID).
		Str("seed", spec.SeedURL).
		Int("priority", int(spec.Priority)).
		Msg("job queued")
	return spec.JobID, nil
}

// Status reports one job, or every known job when jobID is empty.
func (s *Scheduler) Status(jobID string) ([]JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if jobID != "" {
		j, ok := s.jobs[jobID]
		if !ok {
			return nil, &SchedulerError{
				Message: fmt.Sprintf("no job %q", jobID),
				Cause:   ErrCauseUnknownJob,
			}
		}
		return []JobStatus{j.status(now)}, nil
	}

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, j.status(now))
	}
	return statuses, nil
}

// Cancel requests cooperative cancellation. A queued job cancels
// immediately; a running job stops at its next suspension point.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return &SchedulerError{
			Message: fmt.Sprintf("no job %q", jobID),
			Cause:   ErrCauseUnknownJob,
		}
	}

	switch j.state {
	case store.JobStateQueued:
		s.removeFromQueueLocked(j)
		j.cancelRequested = true
		s.transitionLocked(j, store.JobStateCancelled, "")
		return nil

	case store.JobStateRunning:
		j.cancelRequested = true
		if cancel, running := s.cancels[jobID]; running {
			cancel()
		}
		return nil

	default:
		return &SchedulerError{
			Message: fmt.Sprintf("job %q is %s", jobID, j.state),
			Cause:   ErrCauseTerminalState,
		}
	}
}

func (s *Scheduler) enqueueLocked(j *job) {
	idx := priorityIndex(j.spec.Priority)
	s.queues[idx] = append(s.queues[idx], j)
}

func (s *Scheduler) removeFromQueueLocked(j *job) {
	idx := priorityIndex(j.spec.Priority)
	queue := s.queues[idx]
	for i, queued := range queue {
		if queued == j {
			s.queues[idx] = append(queue[:i], queue[i+1:]...)
			return
		}
	}
}

// nextLocked pops the highest-priority queued job, FIFO within a queue.
func (s *Scheduler) nextLocked() *job {
	for idx := range s.queues {
		if len(s.queues[idx]) > 0 {
			j := s.queues[idx][0]
			s.queues[idx] = s.queues[idx][1:]
			return j
		}
	}
	return nil
}

func (s *Scheduler) workerLoop(ctx context.Context, workerIndex int) {
	defer s.wg.Done()
	log := s.log.With().Int("worker", workerIndex).Logger()

	for {
		s.mu.Lock()
		for !s.stopped && s.queuedCountLocked() == 0 {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		j := s.nextLocked()
		if j == nil {
			s.mu.Unlock()
			continue
		}

		j.attempts++
		j.startedAt = time.Now()
		j.endedAt = time.Time{}
		s.transitionLocked(j, store.JobStateRunning, "")

		runCtx, cancel := context.WithTimeout(ctx, s.opts.TaskTimeout)
		s.cancels[j.spec.JobID] = cancel
		s.mu.Unlock()

		log.Debug().
			Str("job_id", j.spec.JobID).
			Int("attempt", j.attempts).
			Msg("job dispatched")

		metrics, runErr := s.runner.Run(runCtx, j.spec.JobID, j.spec.SeedURL, j.spec.Config)
		timedOut := runCtx.Err() == context.DeadlineExceeded
		cancel()

		s.mu.Lock()
		delete(s.cancels, j.spec.JobID)
		j.metrics = metrics
		j.endedAt = time.Now()
		s.settleLocked(log, j, runErr, timedOut)
		s.mu.Unlock()
	}
}

// settleLocked applies the post-run state transition. Retries are
// granted only on timeout and transient failures.
func (s *Scheduler) settleLocked(log zerolog.Logger, j *job, runErr failure.ClassifiedError, timedOut bool) {
	switch {
	case runErr == nil:
		s.transitionLocked(j, store.JobStateCompleted, "")
		log.Info().Str("job_id", j.spec.JobID).Int("pages", j.metrics.PagesFetched).Msg("job completed")

	case j.cancelRequested:
		s.transitionLocked(j, store.JobStateCancelled, runErr.Error())
		log.Info().Str("job_id", j.spec.JobID).Msg("job cancelled")

	case timedOut:
		if j.attempts <= s.opts.RetryAttempts {
			s.transitionLocked(j, store.JobStateTimedOut, runErr.Error())
			s.requeueLocked(j)
			log.Warn().Str("job_id", j.spec.JobID).Int("attempt", j.attempts).Msg("job timed out; re-queued")
		} else {
			s.transitionLocked(j, store.JobStateFailed, "timed out, attempts exhausted")
			log.Warn().Str("job_id", j.spec.JobID).Msg("job failed after timeout retries")
		}

	case failure.Retryable(failure.KindOf(runErr)):
		if j.attempts <= s.opts.RetryAttempts {
			s.requeueLocked(j)
			log.Warn().Str("job_id", j.spec.JobID).Int("attempt", j.attempts).Msg("transient failure; re-queued")
		} else {
			s.transitionLocked(j, store.JobStateFailed, runErr.Error())
			log.Warn().Str("job_id", j.spec.JobID).Msg("job failed after transient retries")
		}

	default:
		s.transitionLocked(j, store.JobStateFailed, runErr.Error())
		log.Warn().Str("job_id", j.spec.JobID).Str("error", runErr.Error()).Msg("job failed")
	}
}

func (s *Scheduler) requeueLocked(j *job) {
	j.scheduledAt = time.Now()
	s.transitionLocked(j, store.JobStateQueued, j.errText)
	s.enqueueLocked(j)
	s.cond.Signal()
}

func (s *Scheduler) queuedCountLocked() int {
	count := 0
	for idx := range s.queues {
		count += len(s.queues[idx])
	}
	return count
}

// transitionLocked updates in-memory state and mirrors it to the store.
// Persistence failures degrade to a log line; the in-memory machine is
// authoritative within the process.
func (s *Scheduler) transitionLocked(j *job, state store.JobState, errText string) {
	j.state = state
	if errText != "" {
		j.errText = errText
	}

	update := store.CrawlJob{
		JobID:     j.spec.JobID,
		SeedURL:   j.spec.SeedURL,
		State:     state,
		Priority:  j.spec.Priority,
		CreatedAt: j.createdAt,
		StartedAt: j.startedAt,
		EndedAt:   j.endedAt,
		Attempts:  j.attempts,
		Error:     j.errText,
		Metrics:   j.metrics,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpdateJob(ctx, update); err != nil {
		s.log.Warn().Err(err).Str("job_id", j.spec.JobID).Msg("job state persistence failed")
	}
}
