// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package capture records proxied exchanges and hands them over to a Sink.
// Recording never blocks the proxied exchange, when the queue is full exchanges are dropped.
package capture

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/saucelabs/mateproxy/log"
	"github.com/saucelabs/mateproxy/ruleset"
)

// Sink consumes captured exchanges.
type Sink interface {
	Capture(ctx context.Context, e *Exchange) error
}

// SinkFunc is an adapter to allow the use of ordinary functions as Sinks.
type SinkFunc func(ctx context.Context, e *Exchange) error

func (f SinkFunc) Capture(ctx context.Context, e *Exchange) error {
	return f(ctx, e)
}

type Config struct {
	// Rules select request paths to capture, rules prefixed with "-" exclude paths.
	// With no include rules all paths are captured.
	Rules []ruleset.RegexpListItem

	// MaxBodySize is the number of bytes of a body kept, longer bodies are truncated.
	MaxBodySize int64

	// QueueSize is the number of exchanges waiting for the sink.
	QueueSize int

	// Workers is the number of goroutines delivering exchanges to the sink.
	Workers int

	PromNamespace string
	PromRegistry  prometheus.Registerer
}

func DefaultConfig() *Config {
	return &Config{
		MaxBodySize: 1 << 20,
		QueueSize:   1024,
		Workers:     1,
	}
}

func (c *Config) Validate() error {
	if c.MaxBodySize < 0 {
		return errors.New("max body size must not be negative")
	}
	if c.QueueSize <= 0 {
		return errors.New("queue size must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

// Capturer records exchanges matching the configured rules.
// A nil *Capturer is valid and records nothing.
type Capturer struct {
	config  Config
	sink    Sink
	match   *ruleset.RegexpMatcher
	queue   chan *Exchange
	log     log.Logger
	metrics *metrics
}

func New(cfg *Config, sink Sink, log log.Logger) (*Capturer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}

	return &Capturer{
		config:  *cfg,
		sink:    sink,
		match:   ruleset.NewRegexpMatcherFromList(cfg.Rules),
		queue:   make(chan *Exchange, cfg.QueueSize),
		log:     log,
		metrics: newMetrics(cfg.PromRegistry, cfg.PromNamespace),
	}, nil
}

// Run delivers exchanges to the sink until ctx is canceled.
// Exchanges still queued when ctx is canceled are not delivered.
func (c *Capturer) Run(ctx context.Context) error {
	c.log.Infof("capture started workers=%d queue=%d max_body_size=%d", c.config.Workers, c.config.QueueSize, c.config.MaxBodySize)

	var wg sync.WaitGroup
	for i := 0; i < c.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.work(ctx)
		}()
	}
	wg.Wait()

	if n := len(c.queue); n > 0 {
		c.log.Infof("capture stopped, discarded %d queued exchanges", n)
	}

	return nil
}

func (c *Capturer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.queue:
			c.deliver(ctx, e)
		}
	}
}

func (c *Capturer) deliver(ctx context.Context, e *Exchange) {
	if err := c.sink.Capture(ctx, e); err != nil {
		c.metrics.result(sinkError)
		c.log.Errorf("capture failed id=%s url=%s: %s", e.ID, e.URL, err)
		return
	}
	c.metrics.result(captured)
}

func (c *Capturer) enqueue(e *Exchange) {
	select {
	case c.queue <- e:
	default:
		c.metrics.result(dropped)
		c.log.Debugf("capture queue full, dropping id=%s url=%s", e.ID, e.URL)
	}
}

// Start starts recording an exchange for req, it returns nil if req is not captured.
// The route name and upstream URL are only stored in the Exchange.
func (c *Capturer) Start(req *http.Request, route string, upstream *url.URL) *Recording {
	if c == nil || !c.match.Match(req.URL.Path) {
		return nil
	}

	e := &Exchange{
		ID:            newID(),
		Route:         route,
		Method:        req.Method,
		URL:           req.URL.RequestURI(),
		RemoteAddr:    req.RemoteAddr,
		Start:         time.Now(),
		RequestHeader: req.Header.Clone(),
	}
	if upstream != nil {
		e.Upstream = upstream.Redacted()
	}

	return &Recording{
		c:   c,
		ex:  e,
		req: &limitedBuffer{max: c.config.MaxBodySize},
		res: &limitedBuffer{max: c.config.MaxBodySize},
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b[:])
}

// Recording collects data of a single exchange while it is proxied.
// All methods are safe to call on a nil *Recording.
type Recording struct {
	c   *Capturer
	ex  *Exchange
	req *limitedBuffer
	res *limitedBuffer
}

// RequestBody returns body that copies the data read from it to the recording.
func (r *Recording) RequestBody(body io.ReadCloser) io.ReadCloser {
	if r == nil || body == nil {
		return body
	}
	return &teeReadCloser{
		Reader: io.TeeReader(body, r.req),
		Closer: body,
	}
}

// Response records the response status and header.
func (r *Recording) Response(status int, h http.Header) {
	if r == nil {
		return
	}
	r.ex.StatusCode = status
	r.ex.ResponseHeader = h.Clone()
}

// ResponseBody returns body that copies the data read from it to the recording.
func (r *Recording) ResponseBody(body io.Reader) io.Reader {
	if r == nil || body == nil {
		return body
	}
	return io.TeeReader(body, r.res)
}

// Finish completes the recording and queues the exchange for the sink.
// It must be called once the response body was relayed to the client.
func (r *Recording) Finish(err error) {
	if r == nil {
		return
	}

	e := r.ex
	e.Duration = time.Since(e.Start)
	e.Err = err
	e.RequestBody, e.RequestBodyTruncated = r.req.snapshot()
	e.ResponseBody, e.ResponseBodyTruncated = r.res.snapshot()
	if e.ResponseHeader == nil {
		e.ResponseHeader = make(http.Header)
	}

	r.c.enqueue(e)
}

type teeReadCloser struct {
	io.Reader
	io.Closer
}

// limitedBuffer keeps up to max bytes written to it.
// Write never fails so that recording does not affect the proxied stream.
// It is safe for concurrent use, http.Transport may write the request body
// while the response is being read.
type limitedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if room := b.max - int64(b.buf.Len()); int64(len(p)) > room {
		if room < 0 {
			room = 0
		}
		p = p[:room]
		b.truncated = true
	}
	b.buf.Write(p)

	return n, nil
}

func (b *limitedBuffer) snapshot() ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return bytes.Clone(b.buf.Bytes()), b.truncated
}
