// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/multierr"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// KeyPrefix is prepended to all keys, exchanges are stored under <prefix><id>
	// and the list of recent exchange IDs under <prefix>index.
	KeyPrefix string

	// Expiration is the time to live of a stored exchange, zero means no expiration.
	Expiration time.Duration

	// MaxRecords is the length of the index list, zero means the index is not maintained.
	MaxRecords int64
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:       "localhost:6379",
		KeyPrefix:  "MateProxy:Requests:",
		Expiration: time.Hour,
		MaxRecords: 100,
	}
}

func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Expiration < 0 {
		return errors.New("redis expiration must not be negative")
	}
	if c.MaxRecords < 0 {
		return errors.New("redis max records must not be negative")
	}
	return nil
}

// RedisSink stores exchanges in Redis hashes.
// Bodies are stored transformed, if the transformation fails the raw body is stored.
type RedisSink struct {
	config RedisConfig
	client *redis.Client
}

func NewRedisSink(cfg *RedisConfig) (*RedisSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &RedisSink{
		config: *cfg,
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}, nil
}

// Ping checks the connection to Redis.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}

func (s *RedisSink) key(id string) string {
	return s.config.KeyPrefix + id
}

func (s *RedisSink) indexKey() string {
	return s.config.KeyPrefix + "index"
}

func (s *RedisSink) Capture(ctx context.Context, e *Exchange) error {
	req, reqErr := e.TransformedRequestBody()
	res, resErr := e.TransformedResponseBody()

	fields := map[string]interface{}{
		"id":          e.ID,
		"route":       e.Route,
		"method":      e.Method,
		"url":         e.URL,
		"upstream":    e.Upstream,
		"remote_addr": e.RemoteAddr,
		"start":       e.Start.UTC().Format(time.RFC3339Nano),
		"duration_ms": strconv.FormatInt(e.Duration.Milliseconds(), 10),
		"status":      strconv.Itoa(e.StatusCode),

		"request_headers":      headerString(e.RequestHeader),
		"request_content_type": req.ContentType,
		"request_transformed":  strconv.FormatBool(req.Transformed),
		"request_truncated":    strconv.FormatBool(e.RequestBodyTruncated),
		"request_body":         req.Data,

		"response_headers":      headerString(e.ResponseHeader),
		"response_content_type": res.ContentType,
		"response_transformed":  strconv.FormatBool(res.Transformed),
		"response_truncated":    strconv.FormatBool(e.ResponseBodyTruncated),
		"response_body":         res.Data,
	}
	if e.Err != nil {
		fields["error"] = e.Err.Error()
	}

	key := s.key(e.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		if s.config.Expiration > 0 {
			pipe.Expire(ctx, key, s.config.Expiration)
		}
		if s.config.MaxRecords > 0 {
			pipe.LPush(ctx, s.indexKey(), e.ID)
			pipe.LTrim(ctx, s.indexKey(), 0, s.config.MaxRecords-1)
		}
		return nil
	})
	if err != nil {
		err = fmt.Errorf("redis: %w", err)
	}

	return multierr.Combine(err, transformErrors(reqErr, resErr))
}

// headerString returns the header in wire format with keys sorted.
func headerString(h http.Header) string {
	var buf bytes.Buffer
	h.Write(&buf) //nolint:errcheck // bytes.Buffer never fails
	return buf.String()
}
