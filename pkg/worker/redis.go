package worker

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/observability"
)

// DefaultPrefix namespaces the Redis keys and channels.
const DefaultPrefix = "forceweave"

// Key layout:
//
//	<prefix>:jobs          list of encoded init messages
//	<prefix>:job:<id>      replies for one job
//	<prefix>:cancel:<id>   cancel signal for one job
func jobsKey(prefix string) string            { return prefix + ":jobs" }
func replyChannel(prefix, id string) string  { return prefix + ":job:" + id }
func cancelChannel(prefix, id string) string { return prefix + ":cancel:" + id }

// =============================================================================
// Redis - Client Side
// =============================================================================

// Redis hands jobs to remote [Server] processes through Redis.
type Redis struct {
	client redis.UniversalClient
	prefix string
	logger *log.Logger
}

// NewRedis returns a spawner using client. An empty prefix selects
// DefaultPrefix.
func NewRedis(client redis.UniversalClient, prefix string, logger *log.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Redis{client: client, prefix: prefix, logger: logger}
}

// Name returns "redis".
func (*Redis) Name() string { return "redis" }

// Available pings the server.
func (r *Redis) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err() == nil
}

// Spawn allocates a job id and subscribes to its reply channel. The job is
// queued by the first Post.
func (r *Redis) Spawn(ctx context.Context) (Worker, error) {
	id := uuid.NewString()
	ps := r.client.Subscribe(ctx, replyChannel(r.prefix, id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "subscribe to job %s", id)
	}
	wctx, cancel := context.WithCancel(context.Background())
	w := &redisWorker{
		r:      r,
		id:     id,
		ps:     ps,
		ctx:    wctx,
		cancel: cancel,
		out:    make(chan Message, messageBuffer),
	}
	go w.forward()
	return w, nil
}

type redisWorker struct {
	r      *Redis
	id     string
	ps     *redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	out    chan Message
	once   sync.Once
}

func (w *redisWorker) Post(ctx context.Context, m Message) error {
	m.Job = w.id
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	if err := w.r.client.LPush(ctx, jobsKey(w.r.prefix), payload).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "queue job %s", w.id)
	}
	w.r.logger.Debug("queued job", "job", w.id, "nodes", len(m.Nodes))
	return nil
}

func (w *redisWorker) Messages() <-chan Message { return w.out }

func (w *redisWorker) Terminate() {
	w.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := w.r.client.Publish(ctx, cancelChannel(w.r.prefix, w.id), "cancel").Err(); err != nil {
			w.r.logger.Debug("publish cancel failed", "job", w.id, "error", err)
		}
		w.cancel()
		_ = w.ps.Close()
	})
}

func (w *redisWorker) forward() {
	defer close(w.out)
	ch := w.ps.Channel()
	for {
		select {
		case <-w.ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			m, err := Decode([]byte(raw.Payload))
			if err != nil {
				w.r.logger.Warn("dropping worker message", "job", w.id, "code", errors.GetCode(err), "error", err)
				continue
			}
			select {
			case w.out <- m:
			case <-w.ctx.Done():
				return
			}
			if m.Type == TypeComplete || m.Type == TypeError {
				w.once.Do(func() {
					w.cancel()
					_ = w.ps.Close()
				})
				return
			}
		}
	}
}

// =============================================================================
// Server - Job Consumer
// =============================================================================

// Server consumes jobs from Redis, runs them and publishes replies.
type Server struct {
	Client      redis.UniversalClient
	Prefix      string
	Concurrency int
	PollTimeout time.Duration
	Logger      *log.Logger
}

// NewServer returns a server with one job slot per CPU.
func NewServer(client redis.UniversalClient, prefix string, logger *log.Logger) *Server {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		Client:      client,
		Prefix:      prefix,
		Concurrency: max(1, runtime.NumCPU()),
		PollTimeout: 5 * time.Second,
		Logger:      logger,
	}
}

// Serve blocks consuming jobs until ctx ends. Jobs in flight are cancelled
// with ctx.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.Concurrency) + 1)
	s.Logger.Info("worker serving", "queue", jobsKey(s.Prefix), "concurrency", s.Concurrency)

	g.Go(func() error {
		for {
			res, err := s.Client.BRPop(gctx, s.PollTimeout, jobsKey(s.Prefix)).Result()
			switch {
			case gctx.Err() != nil:
				return nil
			case stderrors.Is(err, redis.Nil):
				continue
			case err != nil:
				s.Logger.Warn("poll failed", "error", err)
				select {
				case <-gctx.Done():
					return nil
				case <-time.After(time.Second):
				}
				continue
			}
			payload := res[1]
			// Blocks while every job slot is busy.
			g.Go(func() error {
				s.handle(gctx, []byte(payload))
				return nil
			})
		}
	})
	return g.Wait()
}

func (s *Server) handle(ctx context.Context, payload []byte) {
	m, err := Decode(payload)
	if err != nil {
		s.Logger.Warn("dropping job", "code", errors.GetCode(err), "error", err)
		return
	}
	if m.Job == "" {
		s.Logger.Warn("dropping job without id")
		return
	}
	logger := s.Logger.With("job", m.Job)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	cancelSub := s.Client.Subscribe(jobCtx, cancelChannel(s.Prefix, m.Job))
	defer cancelSub.Close()
	go func() {
		select {
		case <-cancelSub.Channel():
			logger.Info("job cancelled")
			cancel()
		case <-jobCtx.Done():
		}
	}()

	start := time.Now()
	observability.Worker().OnJob(ctx, "redis", len(m.Nodes))
	logger.Info("job started", "nodes", len(m.Nodes), "links", len(m.Links))
	err = Run(jobCtx, m, func(reply Message) { s.publish(ctx, m.Job, reply) })
	observability.Worker().OnJobComplete(ctx, "redis", time.Since(start), err)

	switch {
	case err == nil:
		logger.Info("job complete", "duration", time.Since(start))
	case jobCtx.Err() != nil:
		logger.Debug("job aborted", "error", err)
	default:
		logger.Warn("job failed", "error", err)
		s.publish(ctx, m.Job, Message{Type: TypeError, Job: m.Job, Error: err.Error()})
	}
}

func (s *Server) publish(ctx context.Context, job string, m Message) {
	payload, err := Encode(m)
	if err != nil {
		s.Logger.Warn("encode reply failed", "job", job, "error", err)
		return
	}
	if err := s.Client.Publish(ctx, replyChannel(s.Prefix, job), payload).Err(); err != nil {
		s.Logger.Warn("publish reply failed", "job", job, "error", err)
	}
}
