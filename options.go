package redistmpl

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raniellyferreira/redistmpl/reply"
	"github.com/raniellyferreira/redistmpl/template"
	"github.com/raniellyferreira/redistmpl/transport"
)

const (
	// resourceConnectTimeout bounds the lazy connect of resource-configured sessions
	resourceConnectTimeout = time.Second

	// templateCacheSize is the number of compiled templates a session keeps
	templateCacheSize = 256
)

// ErrorPolicy decides what a host binding does with a failed operation
type ErrorPolicy int

const (
	// PolicyRecover reports failures through return values and LastError
	PolicyRecover ErrorPolicy = iota

	// PolicyAbort additionally aborts the calling script or program
	PolicyAbort
)

// String returns the configuration name of the policy
func (p ErrorPolicy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "recover"
}

// ParseErrorPolicy parses "recover" or "abort". An empty string is recover.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "recover":
		return PolicyRecover, nil
	case "abort":
		return PolicyAbort, nil
	default:
		return PolicyRecover, fmt.Errorf("unknown error policy %q", s)
	}
}

// ShouldAbort reports whether err must abort the host under this policy.
// A missing connection resource only disables the session and never aborts.
func (p ErrorPolicy) ShouldAbort(err error) bool {
	if err == nil || p != PolicyAbort {
		return false
	}
	return CodeOf(err) != CodeConfigNotFound
}

// config holds the configuration for a Session
type config struct {
	dialect          template.Dialect
	maxSubstitutions int
	errorPolicy      ErrorPolicy
	nilPolicy        reply.NilPolicy

	dialer         transport.Dialer
	connectTimeout time.Duration

	// Resource-driven connection
	resourceFS   fs.FS
	resourceName string

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		dialect:        template.Token,
		errorPolicy:    PolicyRecover,
		nilPolicy:      reply.NilMarker,
		dialer:         transport.Default,
		connectTimeout: 5 * time.Second,
		logger:         NewLogrusLogger(nil),
		metrics:        noopMetrics{},
	}
}

// Option represents a configuration option for a Session
type Option func(*config) error

// WithDialect selects the placeholder dialect for command templates
//
// Example:
//
//	WithDialect(template.Printf)
func WithDialect(d template.Dialect) Option {
	return func(c *config) error {
		if d != template.Token && d != template.Printf {
			return fmt.Errorf("%w: dialect %d", ErrInvalidOption, int(d))
		}
		c.dialect = d
		return nil
	}
}

// WithMaxSubstitutions caps the number of placeholders in a template.
// Zero removes the cap (default).
func WithMaxSubstitutions(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return fmt.Errorf("%w: max substitutions %d", ErrInvalidOption, n)
		}
		c.maxSubstitutions = n
		return nil
	}
}

// WithErrorPolicy sets the error policy applied by host bindings
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(c *config) error {
		c.errorPolicy = p
		return nil
	}
}

// WithNilPolicy sets how nil replies are written by Marshal
func WithNilPolicy(p reply.NilPolicy) Option {
	return func(c *config) error {
		c.nilPolicy = p
		return nil
	}
}

// WithDialer sets the transport used to open connections
//
// Example:
//
//	WithDialer(transport.GoRedis{})
func WithDialer(d transport.Dialer) Option {
	return func(c *config) error {
		if d == nil {
			return fmt.Errorf("%w: nil dialer", ErrInvalidOption)
		}
		c.dialer = d
		return nil
	}
}

// WithConnectTimeout sets the timeout used by Connect
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: connect timeout %s", ErrInvalidOption, timeout)
		}
		c.connectTimeout = timeout
		return nil
	}
}

// WithResource makes the session connect lazily using the resource file at
// path, containing host:port or host:port:db
//
// Example:
//
//	WithResource("/etc/redistmpl/connection")
func WithResource(path string) Option {
	return func(c *config) error {
		if path == "" {
			return fmt.Errorf("%w: empty resource path", ErrInvalidOption)
		}
		c.resourceFS = os.DirFS(filepath.Dir(path))
		c.resourceName = filepath.Base(path)
		return nil
	}
}

// WithResourceFS is WithResource reading name from fsys
func WithResourceFS(fsys fs.FS, name string) Option {
	return func(c *config) error {
		if fsys == nil || name == "" {
			return fmt.Errorf("%w: resource filesystem and name are required", ErrInvalidOption)
		}
		c.resourceFS = fsys
		c.resourceName = name
		return nil
	}
}

// WithLogger sets a custom logger for the session
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidOption)
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		if collector == nil {
			collector = noopMetrics{}
		}
		c.metrics = collector
		return nil
	}
}
