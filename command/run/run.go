// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package run

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/saucelabs/mateproxy"
	"github.com/saucelabs/mateproxy/bind"
	"github.com/saucelabs/mateproxy/capture"
	"github.com/saucelabs/mateproxy/header"
	"github.com/saucelabs/mateproxy/httplog"
	"github.com/saucelabs/mateproxy/internal/version"
	"github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/log/stdlog"
	"github.com/saucelabs/mateproxy/runctx"
	"github.com/saucelabs/mateproxy/utils/cobrautil"
	"github.com/saucelabs/mateproxy/utils/httphandler"
	"github.com/saucelabs/mateproxy/utils/promutil"
	"github.com/spf13/cobra"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
)

type command struct {
	promReg             *promutil.Registry
	routes              []*mateproxy.Route
	routesFile          *url.URL
	httpTransportConfig *mateproxy.HTTPTransportConfig
	requestHeaders      []header.Header
	reverseProxyConfig  *mateproxy.ReverseProxyConfig
	captureSink         capture.SinkType
	captureConfig       *capture.Config
	captureRedisConfig  *capture.RedisConfig
	httpServerConfig    *mateproxy.HTTPServerConfig
	apiServerConfig     *mateproxy.HTTPServerConfig
	logConfig           *log.Config

	dryRun bool
	goleak bool
}

func (c *command) runE(cmd *cobra.Command, _ []string) (cmdErr error) {
	if f := c.logConfig.File; f != nil {
		defer f.Close()
	}
	onError, err := c.registerErrorsMetric()
	if err != nil {
		return fmt.Errorf("register errors metric: %w", err)
	}
	logger := stdlog.New(c.logConfig, stdlog.WithOnError(onError))

	defer func() {
		if cmdErr != nil {
			logger.Errorf("fatal error exiting: %s", cmdErr)
			cmd.SilenceErrors = true
		}
	}()

	logger.Infof("MateProxy %s (%s)", version.Version, version.Commit)
	logger.Debugf("resource limits: GOMAXPROCS=%d GOMEMLIMIT=%s", runtime.GOMAXPROCS(0), os.Getenv("GOMEMLIMIT"))

	var ep []mateproxy.APIEndpoint

	{
		var (
			cfg []byte
			err error
		)

		cfg, err = cobrautil.FlagsDescriber{
			Format:          cobrautil.Plain,
			ShowChangedOnly: true,
			ShowHidden:      true,
		}.DescribeFlags(cmd.Flags())
		if err != nil {
			return err
		}
		if len(cfg) > 0 {
			logger.Infof("configuration\n%s", cfg)
		} else {
			logger.Infof("using default configuration")
		}

		cfg, err = cobrautil.FlagsDescriber{
			Format:          cobrautil.Plain,
			ShowChangedOnly: false,
			ShowHidden:      true,
		}.DescribeFlags(cmd.Flags())
		if err != nil {
			return err
		}
		logger.Debugf("all configuration\n%s\n\n", cfg)

		ep = append(ep, mateproxy.APIEndpoint{
			Path:    "/configz",
			Handler: httphandler.SendFile("text/plain", cfg),
		})
	}

	if err := c.httpTransportConfig.Validate(); err != nil {
		return fmt.Errorf("http transport: %w", err)
	}

	if c.routesFile != nil {
		routes, err := c.readRoutesFile(cmd.Context())
		if err != nil {
			return fmt.Errorf("read routes file: %w", err)
		}
		logger.Infof("loaded %d routes from %s", len(routes), c.routesFile.Redacted())
		c.routes = append(c.routes, routes...)
	}

	routes, err := mateproxy.NewRouteTable(c.routes)
	if err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	c.httpServerConfig.RouteLabel = routes.RouteLabel
	ep = append(ep, mateproxy.APIEndpoint{
		Path:    "/routez",
		Handler: httphandler.SendFileString("text/plain", routesString(routes)),
	})

	var ready mateproxy.ReadyFunc

	g := runctx.NewGroup()
	g.OnSignal = func(sig os.Signal) {
		logger.Infof("received signal %s, shutting down", sig)
	}

	var cpt *capture.Capturer
	if c.captureSink != capture.SinkNone {
		var sink capture.Sink
		switch c.captureSink {
		case capture.SinkLog:
			sink = capture.NewLogSink(logger.Named("capture"))
		case capture.SinkRedis:
			rs, err := capture.NewRedisSink(c.captureRedisConfig)
			if err != nil {
				return fmt.Errorf("capture redis: %w", err)
			}
			defer rs.Close()
			ready = rs.Ping
			sink = rs
		default:
			return fmt.Errorf("unsupported capture sink %q", c.captureSink)
		}

		cpt, err = capture.New(c.captureConfig, sink, logger.Named("capture"))
		if err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		g.Add(cpt.Run)
	}

	{
		c.reverseProxyConfig.RequestHeaders = c.requestHeaders

		rt, tunnel := mateproxy.NewRouteTransports(c.httpTransportConfig)
		rp, err := mateproxy.NewReverseProxy(c.reverseProxyConfig, routes, rt, tunnel, cpt, logger.Named("proxy"))
		if err != nil {
			return err
		}
		defer rp.Close()

		s, err := mateproxy.NewHTTPServer(c.httpServerConfig, rp, logger.Named("proxy"))
		if err != nil {
			return err
		}
		defer s.Close()
		s.RegisterOnShutdown(rp.Close)
		g.Add(s.Run)
	}

	{
		if err := c.registerGoMaxProcsMetric(); err != nil {
			return fmt.Errorf("register GOMAXPROCS metrics: %w", err)
		}
		if err := c.registerProcMetrics(); err != nil {
			return fmt.Errorf("register process metrics: %w", err)
		}
		if err := c.registerVersionMetric(); err != nil {
			return fmt.Errorf("register version metric: %w", err)
		}

		ep := append([]mateproxy.APIEndpoint{
			{
				Path:    "/version",
				Handler: httphandler.Version(version.Version, version.Time, version.Commit),
			},
		}, ep...)
		h := mateproxy.NewAPIHandler("MateProxy "+version.Version, c.promReg, ready, ep...)

		if c.apiServerConfig.Addr != "" {
			a, err := mateproxy.NewHTTPServer(c.apiServerConfig, h, logger.Named("api"))
			if err != nil {
				return err
			}
			defer a.Close()
			g.Add(a.Run)
		}
	}

	if c.goleak {
		defer func() {
			if err := goleak.Find(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "goleak: %s", err)
				os.Exit(1)
			}
		}()
	}

	if c.dryRun {
		return nil
	}

	return g.Run()
}

// readRoutesFile reads routes with a transport that is not instrumented,
// fetching the file is not proxy traffic.
func (c *command) readRoutesFile(ctx context.Context) ([]*mateproxy.Route, error) {
	cfg := *c.httpTransportConfig
	cfg.PromRegistry = nil
	tr := mateproxy.NewHTTPTransport(&cfg, mateproxy.NewDialer(&cfg.DialConfig), cfg.InsecureSkipVerify)
	defer tr.CloseIdleConnections()

	return mateproxy.ReadRoutes(ctx, c.routesFile, tr)
}

func routesString(t *mateproxy.RouteTable) string {
	var sb strings.Builder
	for _, r := range t.Routes() {
		sb.WriteString(r.FlagString())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (c *command) registerErrorsMetric() (func(name string), error) {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: promNs,
		Name:      "errors_total",
		Help:      "Number of errors",
	}, []string{"name"})

	if err := c.promReg.Register(m); err != nil {
		return nil, err
	}

	return func(name string) {
		m.WithLabelValues(name).Inc()
	}, nil
}

func (c *command) registerGoMaxProcsMetric() error {
	return c.promReg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "go_env",
		Name:      "gomaxprocs",
		Help:      "Number of maximum goroutines that can be executed simultaneously",
	}, func() float64 {
		return float64(runtime.GOMAXPROCS(0))
	}))
}

func (c *command) registerProcMetrics() error {
	return multierr.Combine(
		// Note that ProcessCollector is only available in Linux and Windows.
		c.promReg.Register(collectors.NewProcessCollector(
			collectors.ProcessCollectorOpts{Namespace: promNs})),
		c.promReg.Register(collectors.NewGoCollector()),
	)
}

func (c *command) registerVersionMetric() error {
	return c.promReg.Register(c.constMetric("version", "MateProxy version, value is always 1", prometheus.Labels{
		"version": version.Version,
		"commit":  version.Commit,
		"time":    version.Time,
	}))
}

func (c *command) constMetric(name, help string, labels prometheus.Labels) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   promNs,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, func() float64 {
		return 1
	})
}

const promNs = "mateproxy"

func Command() *cobra.Command {
	c := makeCommand()

	cmd := &cobra.Command{
		Use:     "run [--address <host:port>] [--route <path>=<upstream>]... [--routes-file <path or url>]",
		Short:   "Start HTTP reverse proxy server",
		Long:    long,
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    c.runE,
	}

	fs := cmd.Flags()
	bind.Routes(fs, &c.routes)
	bind.RoutesFile(fs, &c.routesFile)
	bind.RequestHeaders(fs, &c.requestHeaders)
	bind.HTTPTransportConfig(fs, c.httpTransportConfig)
	bind.HTTPServerConfig(fs, c.httpServerConfig, "", mateproxy.HTTPScheme, mateproxy.HTTPSScheme)
	bind.HTTPServerConfig(fs, c.apiServerConfig, "api", mateproxy.HTTPScheme)
	bind.Capture(fs, &c.captureSink, c.captureConfig)
	bind.CaptureRedisConfig(fs, c.captureRedisConfig)
	bind.LogConfig(fs, c.logConfig)
	bind.HTTPLogConfig(fs, []bind.NamedParam[httplog.Mode]{
		{Name: "proxy", Param: &c.httpServerConfig.LogHTTPMode},
		{Name: "api", Param: &c.apiServerConfig.LogHTTPMode},
	})

	bind.AutoMarkFlagFilename(cmd)

	fs.BoolVar(&c.dryRun, "dry-run", false, "Validate the configuration and exit without starting the servers. ")
	fs.BoolVar(&c.goleak, "goleak", false, "enable goleak")

	bind.MarkFlagHidden(cmd,
		"goleak",
	)

	return cmd
}

// Metrics returns the registry populated with all metrics of a proxy
// with a single route and the capture enabled.
func Metrics() (*promutil.Registry, error) {
	c := makeCommand()
	c.logConfig = &log.Config{
		Level: log.ErrorLevel,
		File:  os.NewFile(10, os.DevNull),
	}
	c.httpServerConfig.Addr = "localhost:0"
	c.apiServerConfig.Addr = "localhost:0"
	c.captureSink = capture.SinkLog
	c.dryRun = true

	r, err := mateproxy.ParseRoute("/=http://localhost")
	if err != nil {
		return nil, err
	}
	c.routes = []*mateproxy.Route{r}

	cmd := &cobra.Command{
		Use:                "run",
		RunE:               c.runE,
		DisableFlagParsing: true,
	}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}

	return c.promReg, nil
}

func makeCommand() command {
	c := command{
		promReg:             promutil.NewRegistry(),
		httpTransportConfig: mateproxy.DefaultHTTPTransportConfig(),
		reverseProxyConfig:  mateproxy.DefaultReverseProxyConfig(),
		captureSink:         capture.SinkNone,
		captureConfig:       capture.DefaultConfig(),
		captureRedisConfig:  capture.DefaultRedisConfig(),
		httpServerConfig:    mateproxy.DefaultHTTPServerConfig(),
		apiServerConfig:     mateproxy.DefaultHTTPServerConfig(),
		logConfig:           log.DefaultConfig(),
	}
	c.httpTransportConfig.PromRegistry = c.promReg
	c.httpTransportConfig.PromNamespace = promNs
	c.reverseProxyConfig.PromRegistry = c.promReg
	c.reverseProxyConfig.PromNamespace = promNs
	c.captureConfig.PromRegistry = c.promReg
	c.captureConfig.PromNamespace = promNs
	c.httpServerConfig.PromRegistry = c.promReg
	c.httpServerConfig.PromNamespace = promNs
	c.apiServerConfig.Addr = "localhost:10000"

	return c
}

const long = `Start HTTP reverse proxy server.
Requests are dispatched to upstreams by the longest matching path prefix.
The X-Forwarded-* headers sent to the upstream are controlled per route.
WebSocket upgrade requests are tunneled to the upstream.
Exchanges can be captured to the log or to Redis, captured bodies are decompressed and normalized.
`

const example = `  # Route /api to a local backend and everything else to a static server
  mateproxy run -r "/api=http://localhost:8081" -r "/=http://localhost:8082"

  # WebSocket route preserving the client Host header
  mateproxy run -r "/ws=ws://localhost:9000/socket;host=preserve-host"

  # Routes from a file with exchanges captured to Redis
  mateproxy run --routes-file routes.yaml --capture redis --capture-redis-address localhost:6379
`
