package redistmpl

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/rs/xid"

	"github.com/raniellyferreira/redistmpl/reply"
	"github.com/raniellyferreira/redistmpl/scope"
	"github.com/raniellyferreira/redistmpl/template"
	"github.com/raniellyferreira/redistmpl/transport"
)

type enabledState int

const (
	enabledUnknown enabledState = iota
	enabledYes
	enabledNo
)

// Session owns one Redis connection together with its last error and
// pipeline depth. A session is safe for concurrent use, but pipelined
// commands appended from several goroutines are drained in append order
// regardless of which goroutine asks.
type Session struct {
	id        xid.ID
	config    *config
	compiler  template.Compiler
	marshaler reply.Marshaler

	mu        sync.Mutex
	templates *lru.Cache // command + vars -> *template.Template
	conn      transport.Conn
	pipeline  pipelineTracker
	lastErr   ErrorState

	// Resource-driven sessions only
	enabled     enabledState
	res         resource
	disabledErr *Error
}

// New creates a new Session with the given options. No connection is made.
//
// Example:
//
//	s, err := redistmpl.New(
//		redistmpl.WithDialect(template.Printf),
//		redistmpl.WithErrorPolicy(redistmpl.PolicyAbort),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Free()
func New(opts ...Option) (*Session, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	compiler, err := template.NewCompiler(cfg.dialect, template.WithMaxSubstitutions(cfg.maxSubstitutions))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	templates, err := lru.New(templateCacheSize)
	if err != nil {
		return nil, err
	}

	return &Session{
		id:        xid.New(),
		config:    cfg,
		compiler:  compiler,
		marshaler: reply.Marshaler{Nil: cfg.nilPolicy},
		templates: templates,
	}, nil
}

// ID returns the unique identifier of the session
func (s *Session) ID() string {
	return s.id.String()
}

// Policy returns the configured error policy
func (s *Session) Policy() ErrorPolicy {
	return s.config.errorPolicy
}

// Dialect returns the configured template dialect
func (s *Session) Dialect() template.Dialect {
	return s.config.dialect
}

// Connect opens a connection to host:port
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.fail(newError(CodeAlreadyConnected, "already connected", nil))
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := s.dialLocked(ctx, addr, s.config.connectTimeout); err != nil {
		return s.fail(err)
	}
	return nil
}

// Free closes the connection if one is open and discards pending pipeline
// replies. It is safe to call at any time.
func (s *Session) Free() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		s.closeLocked()
		s.config.logger.Info("connection freed", s.field())
	}
	s.pipeline.Reset()
	s.config.metrics.RecordPipelineDepth(0)
}

// Connected reports whether a connection is open
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Enabled reports whether the session can be used. Sessions without a
// connection resource are always enabled. Resource-driven sessions load the
// resource once and connect if needed; a missing or invalid resource disables
// the session for its lifetime.
func (s *Session) Enabled(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.resourceFS == nil {
		return true
	}
	return s.ensureConnectedLocked(ctx) == nil
}

// Command compiles command with vars, resolves the variables through r and
// executes the result. A reply of kind error is returned together with a
// CommandError.
func (s *Session) Command(ctx context.Context, command, vars string, r scope.Resolver) (reply.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return reply.Node{}, err
	}
	argv, err := s.buildLocked(command, vars, r)
	if err != nil {
		return reply.Node{}, err
	}
	return s.doLocked(ctx, argv)
}

// Append compiles and resolves a command like Command, but queues it on the
// pipeline instead of waiting for its reply.
func (s *Session) Append(ctx context.Context, command, vars string, r scope.Resolver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return err
	}
	argv, err := s.buildLocked(command, vars, r)
	if err != nil {
		return err
	}

	if err := s.conn.Append(ctx, argv); err != nil {
		s.config.metrics.RecordCommand(commandName(argv), OutcomeTransportError, 0)
		s.dropLocked(err)
		return s.fail(newError(CodeCommandError, err.Error(), err))
	}
	s.pipeline.Push()
	s.config.metrics.RecordPipelineDepth(s.pipeline.Depth())
	s.config.logger.Debug("command appended", s.field(),
		Field{Key: "command", Value: commandName(argv)},
		Field{Key: "depth", Value: s.pipeline.Depth()})
	return nil
}

// GetReply drains the oldest pipelined reply. It returns the pipeline depth
// before the drain; a depth of zero means nothing was pending and the node is
// nil. Error replies are returned as data without an error.
func (s *Session) GetReply(ctx context.Context) (reply.Node, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return reply.Node{}, 0, err
	}

	before, ok := s.pipeline.Pop()
	if !ok {
		return reply.Nil(), 0, nil
	}
	s.config.metrics.RecordPipelineDepth(s.pipeline.Depth())

	start := time.Now()
	n, err := s.conn.Receive(ctx)
	if err != nil {
		s.config.metrics.RecordCommand("PIPELINE", OutcomeTransportError, time.Since(start))
		s.dropLocked(err)
		return reply.Node{}, before, s.fail(newError(CodeCommandError, err.Error(), err))
	}
	outcome := OutcomeOK
	if n.IsError() {
		outcome = OutcomeErrorReply
	}
	s.config.metrics.RecordCommand("PIPELINE", outcome, time.Since(start))
	return n, before, nil
}

// Do executes an argument vector as is, without template compilation
func (s *Session) Do(ctx context.Context, argv ...[]byte) (reply.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(ctx); err != nil {
		return reply.Node{}, err
	}
	if len(argv) == 0 || len(argv[0]) == 0 {
		return reply.Node{}, s.fail(newError(CodeMalformedCommand, "blank command", template.ErrBlankCommand))
	}
	return s.doLocked(ctx, argv)
}

// PipelineDepth returns the number of appended commands not yet drained
func (s *Session) PipelineDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Depth()
}

// LastError returns the most recent failure
func (s *Session) LastError() ErrorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the recorded failure
func (s *Session) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = ErrorState{}
}

// Marshal writes n into t using the configured nil policy
func (s *Session) Marshal(n reply.Node, t reply.Target) {
	s.marshaler.Marshal(n, t)
}

// doLocked executes argv on the open connection. Callers hold s.mu.
func (s *Session) doLocked(ctx context.Context, argv [][]byte) (reply.Node, error) {
	name := commandName(argv)
	if depth := s.pipeline.Depth(); depth > 0 {
		return reply.Node{}, s.fail(newError(CodeCommandError,
			fmt.Sprintf("%d pipelined replies must be drained before %s", depth, name), nil))
	}

	start := time.Now()
	n, err := s.conn.Do(ctx, argv)
	elapsed := time.Since(start)
	if err != nil {
		s.config.metrics.RecordCommand(name, OutcomeTransportError, elapsed)
		s.dropLocked(err)
		return reply.Node{}, s.fail(newError(CodeCommandError, err.Error(), err))
	}
	if n.IsError() {
		s.config.metrics.RecordCommand(name, OutcomeErrorReply, elapsed)
		return n, s.fail(newError(CodeCommandError, string(n.Str), nil))
	}
	s.config.metrics.RecordCommand(name, OutcomeOK, elapsed)
	return n, nil
}

// buildLocked compiles command and resolves its variables. The most recently
// used templates are cached per command and variable list.
func (s *Session) buildLocked(command, vars string, r scope.Resolver) ([][]byte, error) {
	key := command + "\x00" + vars
	var tmpl *template.Template
	if cached, ok := s.templates.Get(key); ok {
		tmpl = cached.(*template.Template)
	} else {
		compiled, err := s.compiler.Compile(command, vars)
		if err != nil {
			return nil, s.fail(malformed(err))
		}
		s.templates.Add(key, compiled)
		tmpl = compiled
	}

	argv, err := tmpl.Build(r)
	if err != nil {
		return nil, s.fail(malformed(err))
	}
	return argv, nil
}

// ensureConnectedLocked returns nil when a connection is open, connecting
// resource-driven sessions on first use. Callers hold s.mu.
func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	if s.config.resourceFS == nil {
		return s.fail(newError(CodeNotConnected, "not connected, call Connect first", nil))
	}

	switch s.enabled {
	case enabledNo:
		return s.fail(s.disabledErr)
	case enabledUnknown:
		res, rerr := loadResource(s.config.resourceFS, s.config.resourceName)
		if rerr != nil {
			s.enabled = enabledNo
			s.disabledErr = rerr
			s.config.logger.Info("session disabled", Fields(
				"session", s.id.String(),
				"code", rerr.Code.String(),
				"reason", rerr.Message)...)
			return s.fail(rerr)
		}
		s.res = res
		s.enabled = enabledYes
	}

	if err := s.dialLocked(ctx, s.res.addr(), resourceConnectTimeout); err != nil {
		return s.fail(err)
	}
	if s.res.db != 0 {
		if err := s.selectLocked(ctx, s.res.db); err != nil {
			s.closeLocked()
			return s.fail(err)
		}
	}
	return nil
}

// dialLocked opens a connection. A failed dial leaves no connection behind.
func (s *Session) dialLocked(ctx context.Context, addr string, timeout time.Duration) *Error {
	conn, err := s.config.dialer.Dial(ctx, addr, timeout)
	if err != nil {
		s.config.logger.Debug("connect failed", Fields("session", s.id.String(), "addr", addr, "error", err)...)
		return newError(CodeConnectError, err.Error(), errors.Wrapf(err, "connect %s", addr))
	}
	s.conn = conn
	s.pipeline.Reset()
	s.config.logger.Info("connected", s.field(), Field{Key: "addr", Value: addr})
	return nil
}

func (s *Session) selectLocked(ctx context.Context, db int) *Error {
	n, err := s.conn.Do(ctx, [][]byte{[]byte("SELECT"), []byte(strconv.Itoa(db))})
	if err != nil {
		return newError(CodeConnectError, err.Error(), errors.Wrapf(err, "select %d", db))
	}
	if n.IsError() {
		return newError(CodeConnectError, string(n.Str), nil)
	}
	return nil
}

// closeLocked closes the connection and forgets it. Callers hold s.mu.
func (s *Session) closeLocked() {
	if err := s.conn.Close(); err != nil {
		s.config.logger.Debug("close failed", s.field(), Field{Key: "error", Value: err})
	}
	s.conn = nil
}

// dropLocked discards a connection after a transport failure. Its pending
// replies can no longer be read. Resource-driven sessions reconnect on the
// next command.
func (s *Session) dropLocked(cause error) {
	s.closeLocked()
	s.pipeline.Reset()
	s.config.metrics.RecordPipelineDepth(0)
	s.config.logger.Info("connection dropped", s.field(), Field{Key: "error", Value: cause})
}

// fail records err as the last error and returns it. Callers hold s.mu.
// Under the recover policy callers handle failures through LastError, so
// they are logged at Debug.
func (s *Session) fail(err *Error) error {
	s.lastErr = ErrorState{Code: err.Code, Message: err.Message}
	s.config.metrics.RecordError(err.Code.String())
	if err.Code == CodeConfigNotFound {
		return err
	}
	log := s.config.logger.Debug
	if s.config.errorPolicy.ShouldAbort(err) {
		log = s.config.logger.Error
	}
	log("operation failed", s.field(),
		Field{Key: "code", Value: err.Code.String()},
		Field{Key: "error", Value: err.Message})
	return err
}

func (s *Session) field() Field {
	return Field{Key: "session", Value: s.id.String()}
}

func commandName(argv [][]byte) string {
	if len(argv) == 0 {
		return ""
	}
	return strings.ToUpper(string(argv[0]))
}
