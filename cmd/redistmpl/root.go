package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raniellyferreira/redistmpl"
	"github.com/raniellyferreira/redistmpl/config"
	"github.com/raniellyferreira/redistmpl/metrics"
)

// globalFlags are shared by every subcommand and override the config file
type globalFlags struct {
	configPath  string
	host        string
	port        int
	transport   string
	dialect     string
	onError     string
	metricsAddr string
}

func (g *globalFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	fs.StringVarP(&g.host, "host", "H", "", "Redis host")
	fs.IntVarP(&g.port, "port", "p", 6379, "Redis port")
	fs.StringVar(&g.transport, "transport", "", "transport: radix, goredis or resp")
	fs.StringVar(&g.dialect, "dialect", "", "template dialect: token or printf")
	fs.StringVar(&g.onError, "on-error", "", "error policy: recover or abort")
	fs.StringVar(&g.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

// load reads the config file and environment, then applies flags that were set
func (g *globalFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("host") {
		cfg.Host = g.host
	}
	if fs.Changed("port") {
		cfg.Port = g.port
	}
	if fs.Changed("transport") {
		cfg.Transport = g.transport
	}
	if fs.Changed("dialect") {
		cfg.Dialect = g.dialect
	}
	if fs.Changed("on-error") {
		cfg.OnError = g.onError
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// env is what a subcommand needs to run: a session, its config and a logger
type env struct {
	cfg     *config.Config
	session *redistmpl.Session
	log     *logrus.Logger
	close   func()
}

// open builds a session from the effective configuration and connects it when
// a host is configured. A connect failure is returned only when the error
// policy asks to abort.
func (g *globalFlags) open(cmd *cobra.Command) (*env, error) {
	cfg, err := g.load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, redistmpl.WithLogger(redistmpl.NewLogrusLogger(logger)))

	e := &env{cfg: cfg, log: logger, close: func() {}}
	if g.metricsAddr != "" {
		stop, collector, err := serveMetrics(g.metricsAddr, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, redistmpl.WithMetrics(collector))
		e.close = stop
	}

	s, err := redistmpl.New(opts...)
	if err != nil {
		e.close()
		return nil, err
	}
	e.session = s

	if cfg.Host != "" {
		if err := s.Connect(cmd.Context(), cfg.Host, cfg.Port); err != nil {
			if s.Policy().ShouldAbort(err) {
				e.Close()
				return nil, err
			}
			logger.WithError(err).Warn("connect failed")
		}
	}
	return e, nil
}

func (e *env) Close() {
	if e.session != nil {
		e.session.Free()
	}
	e.close()
}

func serveMetrics(addr string, logger *logrus.Logger) (func(), *metrics.Collector, error) {
	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "register metrics")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server stopped")
		}
	}()
	logger.WithField("addr", addr).Info("serving metrics")

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return stop, collector, nil
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "redistmpl",
		Short:         "run Redis command templates and Lua scripts",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	flags.register(root.PersistentFlags())

	root.AddCommand(
		newExecCommand(flags),
		newRunCommand(flags),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "redistmpl", redistmpl.VersionString())
		},
	}
}
