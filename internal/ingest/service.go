package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/sxmlstream/internal/assembler"
	"github.com/danmuck/sxmlstream/internal/observability"
	"github.com/danmuck/sxmlstream/internal/source"
	"github.com/danmuck/sxmlstream/internal/xmltext"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config defines the ingest runtime.
type Config struct {
	Name        string
	ListenAddr  string
	AdminAddr   string
	CorsOrigins []string
	// AdminToken, when set, is required as a bearer token on every admin
	// route except /health and /metrics.
	AdminToken string
	Assembler  assembler.Config
	ChunkSize  int
	// ReadTimeout bounds one idle read on a TCP connection; 0 disables it.
	ReadTimeout time.Duration
	// ExtractTags are looked up in every completed message.
	ExtractTags  []string
	DecodeValues bool
	// InboxLimit bounds the inbox; the oldest envelope is dropped first.
	InboxLimit int
	Backoff    source.BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Name:       "sxmlctl",
		Assembler:  assembler.DefaultConfig(),
		ChunkSize:  DefaultChunkSize,
		InboxLimit: 1024,
		Backoff:    source.DefaultBackoff(),
	}
}

// Service feeds streams through per-stream assemblers into one inbox.
type Service struct {
	cfg    Config
	inbox  *assembler.Queue[Envelope]
	nextID atomic.Uint64
	logger zerolog.Logger

	connMu      sync.Mutex
	conns       map[net.Conn]struct{}
	clientCount atomic.Int64

	routerOnce sync.Once
	router     *gin.Engine
	started    time.Time
}

func NewService(cfg Config) (*Service, error) {
	if _, err := assembler.New(cfg.Assembler, nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultConfig().Name
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	observability.RegisterMetrics()
	return &Service{
		cfg:     cfg,
		inbox:   assembler.NewBoundedQueue[Envelope](cfg.InboxLimit),
		logger:  log.With().Str("component", "ingest").Str("service", cfg.Name).Logger(),
		conns:   make(map[net.Conn]struct{}),
		started: time.Now(),
	}, nil
}

func (s *Service) Config() Config {
	return s.cfg
}

// Binding attaches a source to the service.
type Binding struct {
	Source  source.Source
	Restart bool
}

// Run serves the TCP listener, the admin API and every bound source until
// ctx is done or the listener fails.
func (s *Service) Run(ctx context.Context, bindings []Binding) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	if addr := strings.TrimSpace(s.cfg.ListenAddr); addr != "" {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("ingest listen %s: %w", addr, err)
		}
		s.logger.Info().Str("addr", ln.Addr().String()).Str("start_tag", s.cfg.Assembler.StartTag).Msg("ingest listening")
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- s.Serve(ctx, ln)
		}()
	}

	if addr := strings.TrimSpace(s.cfg.AdminAddr); addr != "" {
		srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info().Str("addr", addr).Msg("admin listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin serve: %w", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var sourceWG sync.WaitGroup
	for _, b := range bindings {
		sourceWG.Add(1)
		go func(b Binding) {
			defer sourceWG.Done()
			if err := s.RunSource(ctx, b.Source, b.Restart); err != nil {
				s.logger.Warn().Str("source", b.Source.Name()).Err(err).Msg("source stopped")
			}
		}(b)
	}

	// without a listener the run ends once every source has finished
	var sourcesDone chan struct{}
	if strings.TrimSpace(s.cfg.ListenAddr) == "" && strings.TrimSpace(s.cfg.AdminAddr) == "" {
		sourcesDone = make(chan struct{})
		go func() {
			sourceWG.Wait()
			close(sourcesDone)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case <-sourcesDone:
	case runErr = <-errCh:
	}
	cancel()
	sourceWG.Wait()
	wg.Wait()
	return runErr
}

// Serve accepts TCP connections on ln until ctx is done.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	go func() {
		<-ctx.Done()
		s.closeAllConns()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.trackConn(conn)
		go s.handleConn(ctx, conn)
	}
}

func (s *Service) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	defer s.untrackConn(conn)
	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	s.logger.Info().Str("remote", remote).Int64("active_clients", active).Msg("client connected")
	defer func() {
		remaining := s.clientCount.Add(-1)
		s.logger.Info().Str("remote", remote).Int64("active_clients", remaining).Msg("client disconnected")
	}()

	var r io.Reader = conn
	if s.cfg.ReadTimeout > 0 {
		r = deadlineReader{conn: conn, timeout: s.cfg.ReadTimeout}
	}
	if err := s.ingestStream(ctx, "tcp:"+remote, tcpMetricsLabel, r); err != nil && ctx.Err() == nil {
		s.logger.Warn().Str("remote", remote).Err(err).Msg("client stream ended")
	}
}

// RunSource streams src into the inbox. With restart set the source is
// reopened with backoff whenever its stream ends.
func (s *Service) RunSource(ctx context.Context, src source.Source, restart bool) error {
	name := src.Name()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 1
	for {
		rc, err := src.Open(ctx)
		if err != nil {
			if !restart {
				return fmt.Errorf("open source %s: %w", name, err)
			}
			s.logger.Warn().Str("source", name).Int("attempt", attempt).Err(err).Msg("source open failed")
		} else {
			attempt = 1
			s.logger.Info().Str("source", name).Msg("source opened")
			streamErr := s.IngestStream(ctx, name, rc)
			closeErr := rc.Close()
			if streamErr == nil {
				streamErr = closeErr
			}
			if !restart {
				if ctx.Err() != nil {
					return nil
				}
				return streamErr
			}
			if streamErr != nil && ctx.Err() == nil {
				s.logger.Warn().Str("source", name).Err(streamErr).Msg("source stream ended")
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		delay := source.NextBackoffDelay(s.cfg.Backoff, attempt, rng)
		attempt++
		observability.RecordSourceRestart(name)
		if !source.Sleep(ctx, delay) {
			return nil
		}
	}
}

// tcpMetricsLabel is the source label shared by every TCP client, keeping
// per-connection addresses out of metric series.
const tcpMetricsLabel = "tcp"

// IngestStream feeds r through a fresh assembler until the stream ends.
func (s *Service) IngestStream(ctx context.Context, name string, r io.Reader) error {
	return s.ingestStream(ctx, name, name, r)
}

// ingestStream tags envelopes and logs with name and metrics with label.
func (s *Service) ingestStream(ctx context.Context, name, label string, r io.Reader) error {
	asm, err := s.newAssembler(name, label)
	if err != nil {
		return err
	}
	feeder := &streamFeeder{svc: s, name: name, label: label, asm: asm}
	err = Pump(ctx, r, feeder, s.cfg.ChunkSize)
	if n := asm.BufferLen(); n > 0 {
		s.logger.Debug().Str("source", name).Int("bytes", n).Msg("stream ended with partial message")
	}
	return err
}

func (s *Service) newAssembler(name, label string) (*assembler.Assembler, error) {
	logger := s.logger.With().Str("source", name).Logger()
	var asm *assembler.Assembler
	logs := assembler.ObserverFuncs{
		OnCompleted: func() {
			logger.Trace().Msg("message completed")
		},
		OnParseError: func(perr assembler.ParseError) {
			ev := logger.Warn().Str("kind", perr.String())
			if asm != nil {
				ev = ev.Int("buffered", asm.BufferLen()).Int("max_buffer_size", asm.MaxBufferSize())
			}
			ev.Msg("stream parse error")
		},
	}
	metrics := assembler.ObserverFuncs{
		OnParseError: func(perr assembler.ParseError) {
			observability.RecordParseError(label, perr.String())
		},
	}
	// queueing modes are drained by streamFeeder instead
	dispatch := assembler.ObserverFuncs{
		OnReady: func(msg string) {
			if asm != nil && !asm.Mode().Queues() {
				s.accept(name, label, msg)
			}
		},
	}
	a, err := assembler.New(s.cfg.Assembler, assembler.MultiObserver{logs, metrics, dispatch})
	if err != nil {
		return nil, err
	}
	asm = a
	return asm, nil
}

// streamFeeder moves queued messages into the inbox after every chunk.
type streamFeeder struct {
	svc   *Service
	name  string
	label string
	asm   *assembler.Assembler
}

func (f *streamFeeder) AddData(chunk string) error {
	observability.RecordChunk(f.label, len(chunk))
	err := f.asm.AddData(chunk)
	if errors.Is(err, assembler.MessageTooLarge) {
		// resync on the next start tag rather than refusing the stream forever
		f.asm.EmptyBuffer()
	}
	for {
		msg, ok := f.asm.NextMessage()
		if !ok {
			break
		}
		f.svc.accept(f.name, f.label, msg)
	}
	return err
}

func (s *Service) accept(name, label, body string) {
	env := Envelope{
		ID:         s.nextID.Add(1),
		Source:     name,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}
	if len(s.cfg.ExtractTags) > 0 {
		env.Values = make(map[string][]string, len(s.cfg.ExtractTags))
		for _, tag := range s.cfg.ExtractTags {
			if s.cfg.DecodeValues {
				env.Values[tag] = xmltext.DecodedTagsValues(body, tag)
			} else {
				env.Values[tag] = xmltext.TagsValues(body, tag)
			}
		}
	}
	dropped := s.inbox.Push(env)
	observability.RecordMessage(label)
	observability.SetInboxPending(s.inbox.Len(), dropped)
	ev := s.logger.Info().Str("source", name).Uint64("id", env.ID).Int("bytes", len(body))
	if dropped {
		ev = ev.Bool("inbox_evicted", true)
	}
	ev.Msg("message received")
}

// NextEnvelope pops the oldest completed message.
func (s *Service) NextEnvelope() (Envelope, bool) {
	env, ok := s.inbox.Pop()
	if ok {
		observability.SetInboxPending(s.inbox.Len(), false)
	}
	return env, ok
}

func (s *Service) Pending() int {
	return s.inbox.Len()
}

// PendingEnvelopes copies the inbox without consuming it, oldest first.
func (s *Service) PendingEnvelopes() []Envelope {
	return s.inbox.Snapshot()
}

// ClearInbox drops every pending envelope and reports how many were dropped.
func (s *Service) ClearInbox() int {
	n := s.inbox.Clear()
	observability.SetInboxPending(0, false)
	return n
}

func (s *Service) ActiveClients() int64 {
	return s.clientCount.Load()
}

func (s *Service) trackConn(conn net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, conn)
}

func (s *Service) closeAllConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}
