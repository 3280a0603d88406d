// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bind

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mmatczuk/anyflag"
	"github.com/saucelabs/mateproxy"
	"github.com/saucelabs/mateproxy/capture"
	"github.com/saucelabs/mateproxy/fileurl"
	"github.com/saucelabs/mateproxy/header"
	"github.com/saucelabs/mateproxy/httplog"
	"github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/ruleset"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func ConfigFile(fs *pflag.FlagSet, configFile *string) {
	fs.StringVarP(configFile,
		"config-file", "c", *configFile, "<path>"+
			"Configuration file to load options from. "+
			"The supported formats are: JSON, YAML, TOML, HCL, and Java properties. "+
			"The file format is determined by the file extension, if not specified the default format is YAML. "+
			"The following precedence order of configuration sources is used: command flags, environment variables, config file, default values. ")
}

func Routes(fs *pflag.FlagSet, routes *[]*mateproxy.Route) {
	fs.VarP(anyflag.NewSliceValueWithRedact[*mateproxy.Route](*routes, routes, mateproxy.ParseRoute, RedactRoute),
		"route", "r", "<path>=<upstream>[;<option>...]"+
			"Route requests with the path prefix to the upstream URL. "+
			"The upstream scheme can be http, https, ws or wss, the upstream path is prepended to the request path. "+
			"Prefixes match on whole path segments and the longest matching prefix wins. "+
			"Options: name=<name>, copy-xforwarded=<true|false>, add-xforwarded=<true|false>, "+
			"host=<upstream|preserve-host|first-x-forwarded-host|last-x-forwarded-host>, insecure. "+
			"The flag can be specified multiple times. "+
			"Example: -r \"/api=http://backend:8080/v1;name=api;host=preserve-host\". ")
}

func RoutesFile(fs *pflag.FlagSet, routesFile **url.URL) {
	fs.Var(anyflag.NewValueWithRedact[*url.URL](*routesFile, routesFile, fileurl.ParseFilePathOrURL, RedactURL),
		"routes-file", "<path or URL>"+
			"YAML file with routes, the routes are added to the routes given with the --route flag. "+
			"It can be a local file or a URL, you can also use '-' to read from stdin. ")
}

func RequestHeaders(fs *pflag.FlagSet, headers *[]header.Header) {
	fs.VarP(anyflag.NewSliceValueWithRedact[header.Header](*headers, headers, header.ParseHeader, RedactHeader),
		"header", "H", "<header>"+
			"Modify HTTP headers of requests sent to upstreams, headers are modified after the X-Forwarded headers are set. "+
			"Use the format \"name: value\" to add a header value, "+
			"\"name:= value\" to replace all values of the header, "+
			"\"name;\" to set the header to empty value, "+
			"\"-name\" to remove the header, "+
			"\"-name*\" to remove headers by prefix. "+
			"The header name will be normalized to canonical form. "+
			"The header value should not contain any newlines or carriage returns. "+
			"The flag can be specified multiple times. "+
			"Example: -H \"X-Api-Key:= secret\" -H \"-Cookie\" -H \"-X-Debug-*\". ")
}

func HTTPTransportConfig(fs *pflag.FlagSet, cfg *mateproxy.HTTPTransportConfig) {
	fs.DurationVar(&cfg.DialTimeout,
		"http-dial-timeout", cfg.DialTimeout,
		"The maximum amount of time a dial will wait for a connect to complete. "+
			"With or without a timeout, the operating system may impose its own earlier timeout. For instance, TCP timeouts are often around 3 minutes. ")

	fs.DurationVar(&cfg.KeepAlive,
		"http-keep-alive", cfg.KeepAlive,
		"The interval between TCP keep-alive probes on upstream connections. "+
			"Zero disables keep-alive probes. ")

	fs.DurationVar(&cfg.TLSHandshakeTimeout,
		"http-tls-handshake-timeout", cfg.TLSHandshakeTimeout,
		"The maximum amount of time waiting to wait for a TLS handshake. Zero means no limit.")

	fs.IntVar(&cfg.MaxIdleConnsPerHost,
		"http-max-idle-conns-per-host", cfg.MaxIdleConnsPerHost,
		"The maximum number of idle (keep-alive) connections to keep per upstream host. ")

	fs.IntVar(&cfg.MaxConnsPerHost,
		"http-max-conns-per-host", cfg.MaxConnsPerHost,
		"The maximum number of connections per upstream host, including connections in the dialing, active, and idle states. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.IdleConnTimeout,
		"http-idle-conn-timeout", cfg.IdleConnTimeout,
		"The maximum amount of time an idle (keep-alive) connection will remain idle before closing itself. "+
			"It must be positive. ")

	fs.DurationVar(&cfg.ResponseHeaderTimeout,
		"http-response-header-timeout", cfg.ResponseHeaderTimeout,
		"The amount of time to wait for a server's response headers after fully writing the request (including its body, if any). "+
			"This time does not include the time to read the response body. "+
			"Zero means no limit. ")

	fs.BoolVar(&cfg.InsecureSkipVerify, "insecure", cfg.InsecureSkipVerify,
		"Don't verify the upstream certificate chain and host name. "+
			"It applies to all routes, use the route insecure option to skip verification for selected routes only. ")
}

func HTTPServerConfig(fs *pflag.FlagSet, cfg *mateproxy.HTTPServerConfig, prefix string, schemes ...mateproxy.Scheme) {
	namePrefix := prefix
	if namePrefix != "" {
		namePrefix += "-"
	}

	fs.StringVarP(&cfg.Addr,
		namePrefix+"address", "", cfg.Addr, "<host:port>"+
			"The server address to listen on. "+
			"If the host is empty, the server will listen on all available interfaces. ")

	if len(schemes) > 1 {
		names := make([]string, len(schemes))
		for i, s := range schemes {
			names[i] = s.String()
		}

		fs.VarP(anyflag.NewValue[mateproxy.Scheme](cfg.Protocol, &cfg.Protocol,
			anyflag.EnumParser[mateproxy.Scheme](schemes...)),
			namePrefix+"protocol", "", "<"+strings.Join(names, "|")+">"+
				"The server protocol. "+
				"For https, the TLS certificate and key files are required. ")

		fs.StringVar(&cfg.CertFile,
			namePrefix+"tls-cert-file", cfg.CertFile, "<path>"+
				"TLS certificate to use if the server protocol is https. ")

		fs.StringVar(&cfg.KeyFile,
			namePrefix+"tls-key-file", cfg.KeyFile, "<path>"+
				"TLS private key to use if the server protocol is https. ")
	}

	fs.DurationVar(&cfg.ReadHeaderTimeout,
		namePrefix+"read-header-timeout", cfg.ReadHeaderTimeout,
		"The amount of time allowed to read request headers.")

	fs.DurationVar(&cfg.ReadTimeout,
		namePrefix+"read-timeout", cfg.ReadTimeout,
		"The maximum duration for reading the entire request, including the body. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.WriteTimeout,
		namePrefix+"write-timeout", cfg.WriteTimeout,
		"The maximum duration before timing out writes of the response. "+
			"Zero means no limit. ")

	fs.DurationVar(&cfg.IdleTimeout,
		namePrefix+"idle-timeout", cfg.IdleTimeout,
		"The maximum amount of time to wait for the next request when keep-alives are enabled. ")

	fs.DurationVar(&cfg.ShutdownTimeout,
		namePrefix+"shutdown-timeout", cfg.ShutdownTimeout,
		"The maximum amount of time to wait for in-flight requests to finish on shutdown. ")
}

func HTTPLogConfig(fs *pflag.FlagSet, cfg []NamedParam[httplog.Mode]) {
	v := newHTTPLogValue(cfg)
	fs.Var(v, "log-http", "<["+strings.Join(v.names(), "|")+":]none|short-url|url|headers|errors>,..."+
		"HTTP request and response logging mode. "+
		"Setting this to none disables logging. "+
		"The short-url mode logs the path only, "+
		"the url mode logs the method, URL, status code and duration, "+
		"the headers mode logs the request and response headers, "+
		"the errors mode logs the request and response headers if the status code is greater than or equal to 500. "+
		"Modes for different servers can be specified separated by commas, e.g. \"proxy:url,api:none\". ")
}

func LogConfig(fs *pflag.FlagSet, cfg *log.Config) {
	fs.Var(NewFileFlag(&cfg.File, log.OpenFile),
		"log-file", "<path>"+
			"Path to the log file, if empty, logs to stdout. ")

	logLevel := []log.Level{
		log.ErrorLevel,
		log.InfoLevel,
		log.DebugLevel,
	}
	fs.Var(anyflag.NewValue[log.Level](cfg.Level, &cfg.Level, anyflag.EnumParser[log.Level](logLevel...)),
		"log-level", "<error|info|debug>"+
			"Log level. ")
}

func Capture(fs *pflag.FlagSet, sink *capture.SinkType, cfg *capture.Config) {
	sinks := []capture.SinkType{
		capture.SinkNone,
		capture.SinkLog,
		capture.SinkRedis,
	}
	fs.Var(anyflag.NewValue[capture.SinkType](*sink, sink, anyflag.EnumParser[capture.SinkType](sinks...)),
		"capture", "<none|log|redis>"+
			"Capture proxied requests and responses, including bodies. "+
			"Setting this to log writes one log line per exchange, "+
			"setting this to redis stores exchanges in Redis. "+
			"WebSocket tunnels are never captured. ")

	fs.Var(anyflag.NewSliceValue[ruleset.RegexpListItem](cfg.Rules, &cfg.Rules, ruleset.ParseRegexpListItem),
		"capture-path", "[-]<regexp>,..."+
			"Request paths to capture. "+
			"Prefix the regexp with '-' to exclude matching paths. "+
			"If no include rule is given, all paths are captured. "+
			"Example: --capture-path \"^/api\" --capture-path \"-^/api/health$\". ")

	fs.Var(anyflag.NewValue[int64](cfg.MaxBodySize, &cfg.MaxBodySize, parseSize),
		"capture-max-body-size", "<size>"+
			"The maximum size of a captured body, longer bodies are truncated and not transformed. "+
			"The size can be given with a unit suffix, e.g. 512KB or 1MiB. ")

	fs.IntVar(&cfg.QueueSize,
		"capture-queue-size", cfg.QueueSize,
		"The number of exchanges waiting to be stored, when the queue is full exchanges are dropped. ")

	fs.IntVar(&cfg.Workers,
		"capture-workers", cfg.Workers,
		"The number of workers storing exchanges. ")
}

func CaptureRedisConfig(fs *pflag.FlagSet, cfg *capture.RedisConfig) {
	fs.StringVar(&cfg.Addr,
		"capture-redis-address", cfg.Addr, "<host:port>"+
			"Redis server address. ")

	fs.Var(anyflag.NewValueWithRedact[string](cfg.Password, &cfg.Password, parseString, RedactSecret),
		"capture-redis-password", "<password>"+
			"Redis password. ")

	fs.IntVar(&cfg.DB,
		"capture-redis-db", cfg.DB,
		"Redis database number. ")

	fs.StringVar(&cfg.KeyPrefix,
		"capture-redis-key-prefix", cfg.KeyPrefix,
		"Prefix of the Redis keys, an exchange is stored under <prefix><id> and recent exchange IDs under <prefix>index. ")

	fs.DurationVar(&cfg.Expiration,
		"capture-redis-expiration", cfg.Expiration,
		"Time to live of a stored exchange. "+
			"Zero means exchanges do not expire. ")

	fs.Int64Var(&cfg.MaxRecords,
		"capture-redis-max-records", cfg.MaxRecords,
		"The number of exchange IDs kept in the index list. "+
			"Zero disables the index. ")
}

func parseSize(val string) (int64, error) {
	v, err := humanize.ParseBytes(val)
	if err != nil {
		return 0, err
	}
	if v > 1<<40 {
		return 0, fmt.Errorf("size %s is too large", val)
	}
	return int64(v), nil
}

func parseString(val string) (string, error) {
	return val, nil
}

func MarkFlagHidden(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.Flags().MarkHidden(name); err != nil {
			panic(err)
		}
	}
}

func AutoMarkFlagFilename(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if strings.HasPrefix(f.Usage, "<path") ||
			strings.HasSuffix(f.Name, "-file") ||
			strings.HasSuffix(f.Name, "-dir") {
			MarkFlagFilename(cmd, f.Name)
		}
	})
}

func MarkFlagFilename(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagFilename(name); err != nil {
			panic(err)
		}
	}
}
