package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestWrap_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("middle"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner"}, calls)
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "missing", incoming: "", keep: false},
		{name: "valid", incoming: "abc-123", keep: true},
		{name: "control characters", incoming: "abc\x01", keep: false},
		{name: "too long", incoming: strings.Repeat("a", 129), keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.keep {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
				assert.Len(t, seen, 36)
			}
		})
	}
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := chi.NewRouter()
	r.Get("/api/retailers/{retailerID}/offers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("[]"))
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	h := Wrap(r, RequestID(), InjectLogger(zap.New(core)), LogRequests())

	req := httptest.NewRequest(http.MethodGet, "/api/retailers/r1/offers", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "/api/retailers/{retailerID}/offers", first["route"])
	assert.Equal(t, "req-1", first["request_id"])
	assert.EqualValues(t, http.StatusOK, first["status"])
	assert.EqualValues(t, 2, first["bytes"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.EqualValues(t, http.StatusBadGateway, entries[1].ContextMap()["status"])
}

func TestInjectLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := Wrap(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Debug("inside")
	}), RequestID(), InjectLogger(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-2")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-2", logs.All()[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}), InjectLogger(zap.New(core)), Recovery())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kaboom", logs.All()[0].ContextMap()["panic"])
}

func TestLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	ok, remaining, reset := l.Allow("r1")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, now.Add(time.Minute), reset)

	ok, remaining, _ = l.Allow("r1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, _ = l.Allow("r1")
	assert.False(t, ok, "third hit in the same window")

	ok, _, _ = l.Allow("r2")
	assert.True(t, ok, "keys are independent")

	// Half way into the next window the previous two hits weigh one.
	now = now.Add(90 * time.Second)
	ok, remaining, _ = l.Allow("r1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)
	ok, _, _ = l.Allow("r1")
	assert.False(t, ok)

	// After a full idle window the history is gone.
	now = now.Add(2 * time.Minute)
	ok, remaining, _ = l.Allow("r1")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	l := NewLimiter(1, time.Minute)
	l.now = func() time.Time { return now }
	l.Allow("a")

	l.sweep(now.Add(time.Minute))
	assert.Len(t, l.buckets, 1)
	l.sweep(now.Add(2 * time.Minute))
	assert.Empty(t, l.buckets)
}

func TestRateLimit_PerRetailer(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	r := chi.NewRouter()
	r.With(RateLimit(l, URLParam("retailerID"))).
		Post("/api/retailers/{retailerID}/quote", okHandler().ServeHTTP)

	do := func(retailer string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/retailers/"+retailer+"/quote", nil))
		return w
	}

	first := do("r1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, first.Header().Get("X-RateLimit-Reset"))

	assert.Equal(t, http.StatusOK, do("r2").Code)

	limited := do("r1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(limited.Body).Decode(&body))
	assert.Equal(t, float64(429), body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_EmptyKeyIsNotLimited(t *testing.T) {
	h := RateLimit(NewLimiter(1, time.Minute), func(*http.Request) string { return "" })(okHandler())

	for range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{name: "forwarded chain", header: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, remote: "10.0.0.1:1", want: "203.0.113.50"},
		{name: "real ip", header: map[string]string{"X-Real-IP": "198.51.100.7"}, remote: "10.0.0.1:1", want: "198.51.100.7"},
		{name: "remote addr", remote: "10.0.0.1:1234", want: "10.0.0.1"},
		{name: "remote without port", remote: "10.0.0.1", want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantOrigin  string
		wantCreds   bool
		wantMaxAge  string
		wantHandled bool
	}{
		{
			name:        "wildcard",
			cfg:         CORSConfig{Origins: []string{"*"}},
			method:      http.MethodGet,
			origin:      "https://shop.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "*",
			wantHandled: true,
		},
		{
			name:        "credentials echo origin",
			cfg:         CORSConfig{AllowCredentials: true},
			method:      http.MethodPost,
			origin:      "https://shop.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://shop.example.com",
			wantCreds:   true,
			wantHandled: true,
		},
		{
			name:        "listed origin case insensitive",
			cfg:         CORSConfig{Origins: []string{"https://Shop.Example.com/"}},
			method:      http.MethodGet,
			origin:      "https://shop.example.com",
			wantStatus:  http.StatusOK,
			wantOrigin:  "https://shop.example.com",
			wantHandled: true,
		},
		{
			name:        "unlisted origin",
			cfg:         CORSConfig{Origins: []string{"https://shop.example.com"}},
			method:      http.MethodGet,
			origin:      "https://evil.example.com",
			wantStatus:  http.StatusOK,
			wantHandled: true,
		},
		{
			name:       "preflight",
			cfg:        CORSConfig{Origins: []string{"https://shop.example.com"}, MaxAge: 24 * time.Hour},
			method:     http.MethodOptions,
			origin:     "https://shop.example.com",
			preflight:  true,
			wantStatus: http.StatusNoContent,
			wantOrigin: "https://shop.example.com",
			wantMaxAge: "86400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled := false
			h := CORS(tt.cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				handled = true
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/api/retailers/r1/quote", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
				req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantHandled, handled)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials") == "true")
			assert.Equal(t, tt.wantMaxAge, w.Header().Get("Access-Control-Max-Age"))
			assert.Contains(t, w.Header().Values("Vary"), "Origin")
			if tt.preflight {
				assert.Equal(t, corsAllowMethods, w.Header().Get("Access-Control-Allow-Methods"))
				assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
			}
		})
	}
}
