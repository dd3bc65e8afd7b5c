package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestNewIPAllowList(t *testing.T) {
	tests := []struct {
		name    string
		entries []string
		wantErr bool
	}{
		{"empty", nil, false},
		{"blank entries ignored", []string{"", "  "}, false},
		{"exact and cidr", []string{"203.0.113.7", "198.51.100.0/24", "2001:db8::/32"}, false},
		{"bad address", []string{"203.0.113"}, true},
		{"bad cidr", []string{"10.0.0.0/33"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIPAllowList(tt.entries, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIPAllowListAllows(t *testing.T) {
	l, err := NewIPAllowList([]string{"203.0.113.7", "198.51.100.0/24", "2001:db8::/32"}, "")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		addr string
		want bool
	}{
		{"203.0.113.7", true},
		{"203.0.113.8", false},
		{"198.51.100.200", true},
		{"198.51.101.1", false},
		{"::ffff:198.51.100.9", true},
		{"2001:db8::1", true},
		{"2001:db9::1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := l.Allows(netip.MustParseAddr(tt.addr)); got != tt.want {
				t.Errorf("Allows(%s) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

func TestIPAllowListMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	tests := []struct {
		name      string
		entries   []string
		header    string
		remote    string
		forwarded string
		wantCode  int
		wantBody  string
	}{
		{"empty list allows all", nil, "", "192.0.2.1:5000", "", http.StatusOK, "ok"},
		{"allowed remote", []string{"192.0.2.0/24"}, "", "192.0.2.1:5000", "", http.StatusOK, "ok"},
		{"denied remote", []string{"192.0.2.0/24"}, "", "192.0.3.1:5000", "", http.StatusForbidden, "Access denied"},
		{"forwarded header used", []string{"203.0.113.7"}, "X-Forwarded-For", "10.0.0.1:5000", "203.0.113.7, 10.0.0.1", http.StatusOK, "ok"},
		{"forwarded header ignored when not configured", []string{"203.0.113.7"}, "", "10.0.0.1:5000", "203.0.113.7", http.StatusForbidden, "Access denied"},
		{"garbage forwarded value", []string{"203.0.113.7"}, "X-Forwarded-For", "203.0.113.7:1", "unknown", http.StatusForbidden, "Access denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewIPAllowList(tt.entries, tt.header)
			if err != nil {
				t.Fatal(err)
			}
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			w := httptest.NewRecorder()
			l.Middleware(next).ServeHTTP(w, r)

			body, _ := io.ReadAll(w.Result().Body)
			if w.Code != tt.wantCode || string(body) != tt.wantBody {
				t.Errorf("got %d %q, want %d %q", w.Code, body, tt.wantCode, tt.wantBody)
			}
		})
	}
}
