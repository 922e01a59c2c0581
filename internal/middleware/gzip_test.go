package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// echoHandler отвечает телом запроса, как обработчик создания заказа.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// invoiceHandler пишет тело без явного WriteHeader.
func invoiceHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<h1>Invoice ORD-20260201-ABC123</h1>"))
}

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(s)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return &buf
}

func TestGzipMiddleware(t *testing.T) {
	const orderJSON = `{"items":[{"productRef":"sku-kurta","quantity":1}],"total":"1499"}`

	type want struct {
		statusCode      int
		contentEncoding string
		contentType     string
		body            string
	}

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		body       string
		compressed bool
		headers    map[string]string
		want       want
	}{
		{
			name:    "json response compressed",
			handler: echoHandler,
			body:    orderJSON,
			headers: map[string]string{"Accept-Encoding": "gzip"},
			want: want{
				statusCode:      http.StatusCreated,
				contentEncoding: "gzip",
				contentType:     "application/json",
				body:            orderJSON,
			},
		},
		{
			name:    "client does not accept gzip",
			handler: echoHandler,
			body:    orderJSON,
			want: want{
				statusCode:  http.StatusCreated,
				contentType: "application/json",
				body:        orderJSON,
			},
		},
		{
			name:       "compressed request body",
			handler:    echoHandler,
			body:       orderJSON,
			compressed: true,
			headers:    map[string]string{"Content-Encoding": "gzip", "Accept-Encoding": "gzip"},
			want: want{
				statusCode:      http.StatusCreated,
				contentEncoding: "gzip",
				contentType:     "application/json",
				body:            orderJSON,
			},
		},
		{
			name:    "implicit status on first write",
			handler: invoiceHandler,
			headers: map[string]string{"Accept-Encoding": "gzip, deflate"},
			want: want{
				statusCode:      http.StatusOK,
				contentEncoding: "gzip",
				contentType:     "text/html; charset=utf-8",
				body:            "<h1>Invoice ORD-20260201-ABC123</h1>",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requestBody io.Reader = strings.NewReader(tt.body)
			if tt.compressed {
				requestBody = gzipBytes(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/admin/orders", requestBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			w := httptest.NewRecorder()
			GzipMiddleware(tt.handler).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.want.statusCode {
				t.Fatalf("status: got %d want %d", res.StatusCode, tt.want.statusCode)
			}
			if ct := res.Header.Get("Content-Type"); ct != tt.want.contentType {
				t.Fatalf("content-type: got %q want %q", ct, tt.want.contentType)
			}
			if ce := res.Header.Get("Content-Encoding"); ce != tt.want.contentEncoding {
				t.Fatalf("content-encoding: got %q want %q", ce, tt.want.contentEncoding)
			}

			var reader io.Reader = res.Body
			if tt.want.contentEncoding == "gzip" {
				gr, err := gzip.NewReader(res.Body)
				if err != nil {
					t.Fatalf("new gzip reader: %v", err)
				}
				defer gr.Close()
				reader = gr
			}

			body, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(body) != tt.want.body {
				t.Fatalf("body: got %q want %q", string(body), tt.want.body)
			}
		})
	}
}

func TestGzipMiddleware_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/orders", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	called := false
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", w.Code, http.StatusBadRequest)
	}
	if called {
		t.Fatal("next handler must not run for a malformed body")
	}
}
