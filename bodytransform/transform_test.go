// Copyright 2022-2024 Sauce Labs Inc., all rights reserved.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package bodytransform

import (
	"bytes"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

func gzipBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func deflateBytes(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestJSONContentType(t *testing.T) {
	tests := []struct {
		contentType []string
		ok          bool
	}{
		{[]string{"application/vnd.api+json"}, true},
		{[]string{"application/problem+json; charset=utf-8"}, true},
		{[]string{"APPLICATION/HAL+JSON"}, true},
		{[]string{"application/ld+json ;profile=x"}, true},
		{[]string{"application/json"}, false},
		{[]string{"text/plain"}, false},
		{[]string{"application/vnd.api+jsonx"}, false},
		{[]string{"text/vnd.api+json"}, false},
		{[]string{"application/xml; profile=a+json"}, false},
		{[]string{"application/+json"}, false},
		{[]string{"application/vnd.api+json", "application/vnd.api+json"}, false},
		{nil, false},
	}

	body := []byte(`{"a":1}`)
	for _, tc := range tests {
		var name string
		if len(tc.contentType) > 0 {
			name = tc.contentType[0]
		}
		t.Run(name, func(t *testing.T) {
			var tr JSONContentType
			if got := tr.CanTransform(nil, tc.contentType); got != tc.ok {
				t.Fatalf("CanTransform: expected %v, got %v", tc.ok, got)
			}

			res, ok, err := tr.TryTransform(nil, body, tc.contentType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.ok {
				t.Fatalf("TryTransform: expected %v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			want := Result{
				Body:                body,
				OriginalContentType: tc.contentType[0],
				ContentType:         "application/json",
			}
			if diff := cmp.Diff(want, res); diff != "" {
				t.Fatalf("unexpected result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecompressor(t *testing.T) {
	payload := bytes.Repeat([]byte("mateproxy decompressor payload "), 100)

	tests := []struct {
		name     string
		encoding []string
		body     []byte
		ok       bool
	}{
		{"gzip", []string{"gzip"}, gzipBytes(t, payload), true},
		{"gzip upper case", []string{"GZIP"}, gzipBytes(t, payload), true},
		{"deflate", []string{"deflate"}, deflateBytes(t, payload), true},
		{"br", []string{"br"}, payload, false},
		{"identity", []string{"identity"}, payload, false},
		{"missing", nil, payload, false},
		{"multiple values", []string{"gzip", "gzip"}, gzipBytes(t, payload), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tc.encoding {
				h.Add("Content-Encoding", v)
			}
			ct := []string{"text/plain"}

			d := &Decompressor{}
			if got := d.CanTransform(h, ct); got != tc.ok {
				t.Fatalf("CanTransform: unexpected %v", got)
			}

			res, ok, err := d.TryTransform(h, tc.body, ct)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tc.ok {
				t.Fatalf("TryTransform: expected %v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			if !bytes.Equal(res.Body, payload) {
				t.Fatalf("decompressed body mismatch")
			}
			if res.ContentType != "text/plain" || res.OriginalContentType != "text/plain" {
				t.Fatalf("unexpected content type: %+v", res)
			}
		})
	}
}

func TestDecompressorCorrupt(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	gz := gzipBytes(t, payload)

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip garbage", "gzip", []byte("definitely not gzip")},
		{"gzip truncated", "gzip", gz[:len(gz)/2]},
		{"deflate garbage", "deflate", []byte{0xff, 0xff, 0xff, 0xff}},
		{"gzip empty", "gzip", nil},
		{"deflate empty", "deflate", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{"Content-Encoding": []string{tc.encoding}}
			_, ok, err := (&Decompressor{}).TryTransform(h, tc.body, nil)
			if ok {
				t.Fatal("expected no transformation")
			}
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestDecompressorMaxSize(t *testing.T) {
	h := http.Header{"Content-Encoding": []string{"gzip"}}
	body := gzipBytes(t, bytes.Repeat([]byte("a"), 1024))

	_, _, err := (&Decompressor{MaxSize: 100}).TryTransform(h, body, nil)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	if _, ok, err := (&Decompressor{MaxSize: 1024}).TryTransform(h, body, nil); err != nil || !ok {
		t.Fatalf("expected success at limit, got ok=%v err=%v", ok, err)
	}
}

type fakeTransformer struct {
	can    bool
	ok     bool
	err    error
	ct     string
	suffix string
	seen   *[]string
}

func (f fakeTransformer) CanTransform(_ http.Header, _ []string) bool {
	return f.can
}

func (f fakeTransformer) TryTransform(_ http.Header, body []byte, contentType []string) (Result, bool, error) {
	if f.seen != nil {
		*f.seen = append(*f.seen, string(body)+"|"+contentType[0])
	}
	if f.err != nil || !f.ok {
		return Result{}, false, f.err
	}
	return Result{
		Body:                append(append([]byte{}, body...), f.suffix...),
		OriginalContentType: contentType[0],
		ContentType:         f.ct,
	}, true, nil
}

func TestChainFeedForward(t *testing.T) {
	var seen []string
	c := Chain{
		fakeTransformer{ok: true, ct: "b", suffix: "1", seen: &seen},
		fakeTransformer{ok: false, seen: &seen},
		fakeTransformer{ok: true, ct: "c", suffix: "2", seen: &seen},
	}

	res, ok, err := c.TryTransform(nil, []byte("x"), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transformation")
	}

	want := Result{Body: []byte("x12"), OriginalContentType: "b", ContentType: "c"}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x|a", "x1|b", "x1|b"}, seen); diff != "" {
		t.Errorf("unexpected inputs (-want +got):\n%s", diff)
	}
}

func TestChainNoTransformation(t *testing.T) {
	c := Chain{fakeTransformer{}, fakeTransformer{}}
	res, ok, err := c.TryTransform(nil, []byte("x"), []string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no transformation")
	}
	if diff := cmp.Diff(Result{}, res); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestChainError(t *testing.T) {
	boom := errors.New("boom")
	c := Chain{fakeTransformer{ok: true, ct: "b"}, fakeTransformer{err: boom}}
	if _, _, err := c.TryTransform(nil, []byte("x"), []string{"a"}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestChainCanTransform(t *testing.T) {
	if (Chain{}).CanTransform(nil, nil) {
		t.Error("empty chain should not transform")
	}
	if (Chain{fakeTransformer{}, fakeTransformer{}}).CanTransform(nil, nil) {
		t.Error("expected false")
	}
	if !(Chain{fakeTransformer{}, fakeTransformer{can: true}}).CanTransform(nil, nil) {
		t.Error("expected true")
	}

	// Decompressed payload type is not considered, only the original one.
	h := http.Header{"Content-Encoding": []string{"br"}}
	if DefaultResponseChain().CanTransform(h, []string{"text/html"}) {
		t.Error("expected false for unsupported encoding and non json type")
	}
}

func TestDefaultResponseChain(t *testing.T) {
	payload := []byte(`{"data":{"id":"1","type":"users"}}`)
	h := http.Header{
		"Content-Encoding": []string{"gzip"},
		"Content-Type":     []string{"application/vnd.api+json"},
	}
	ct := h.Values("Content-Type")

	c := DefaultResponseChain()
	if !c.CanTransform(h, ct) {
		t.Fatal("expected chain to apply")
	}

	res, ok, err := c.TryTransform(h, gzipBytes(t, payload), ct)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transformation")
	}
	want := Result{
		Body:                payload,
		OriginalContentType: "application/vnd.api+json",
		ContentType:         "application/json",
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestDefaultRequestChain(t *testing.T) {
	h := http.Header{"Content-Encoding": []string{"gzip"}}
	body := []byte("not compressed, request chain does not decompress")

	res, ok, err := DefaultRequestChain().TryTransform(h, body, []string{"application/merge-patch+json"})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected transformation")
	}
	if !bytes.Equal(res.Body, body) || res.ContentType != "application/json" {
		t.Fatalf("unexpected result: %+v", res)
	}
}
