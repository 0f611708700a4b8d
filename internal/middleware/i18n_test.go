package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// i18nResult captures what the middleware stored for one request.
type i18nResult struct {
	lang    string
	country string
}

func runI18N(t *testing.T, fallback string, lookup CountryLookup, headers map[string]string) i18nResult {
	t.Helper()
	var got i18nResult
	handler := I18N(fallback, lookup)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.lang = LanguageFromContext(r.Context())
		got.country = CountryFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/novels", nil)
	req.RemoteAddr = "203.0.113.4:443"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestI18NLanguagePrecedence(t *testing.T) {
	noLookup := CountryLookup(nil)
	cases := []struct {
		name     string
		fallback string
		lookup   CountryLookup
		headers  map[string]string
		want     i18nResult
	}{
		{
			name:    "explicit locale beats everything",
			headers: map[string]string{"X-Locale": "ID", "Accept-Language": "fr", "X-Country-Code": "us"},
			want:    i18nResult{lang: "id", country: "US"},
		},
		{
			name:    "highest weighted accept-language tag",
			headers: map[string]string{"Accept-Language": "en;q=0.5, fr-CA;q=0.9"},
			want:    i18nResult{lang: "fr", country: "CA"},
		},
		{
			name:    "underscore locales",
			headers: map[string]string{"X-Locale": "pt_BR"},
			want:    i18nResult{lang: "pt", country: "BR"},
		},
		{
			name:    "country header picks the language",
			headers: map[string]string{"CF-IPCountry": "br"},
			want:    i18nResult{lang: "pt", country: "BR"},
		},
		{
			name:   "geoip lookup picks the language",
			lookup: func(ip string) (string, error) { return "id", nil },
			want:   i18nResult{lang: "id", country: "ID"},
		},
		{
			name:     "configured fallback",
			fallback: "de",
			lookup:   noLookup,
			want:     i18nResult{lang: "de"},
		},
		{
			name:    "unparseable locale falls through",
			headers: map[string]string{"X-Locale": "!!"},
			want:    i18nResult{lang: "en"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := runI18N(t, tc.fallback, tc.lookup, tc.headers); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestResolveCountryLookup(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.4:80"

	var seen string
	got := ResolveCountry(req, func(ip string) (string, error) {
		seen = ip
		return "my", nil
	})
	if got != "MY" || seen != "203.0.113.4" {
		t.Fatalf("ResolveCountry = %q after looking up %q", got, seen)
	}

	got = ResolveCountry(req, func(string) (string, error) { return "", errors.New("database closed") })
	if got != "" {
		t.Fatalf("lookup failure should leave the country empty, got %q", got)
	}
	if ResolveCountry(nil, nil) != "" {
		t.Fatal("nil request should resolve to no country")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{name: "first valid forwarded entry", forwarded: " bogus, 203.0.113.1 , 198.51.100.2 ", remote: "198.51.100.10:1234", want: "203.0.113.1"},
		{name: "invalid forwarded falls back", forwarded: "unknown", remote: "198.51.100.10:1234", want: "198.51.100.10"},
		{name: "ipv6", forwarded: "2001:db8::1", remote: net.JoinHostPort("2001:db8::2", "443"), want: "2001:db8::1"},
		{name: "remote without port", remote: "203.0.113.1", want: "203.0.113.1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := ClientIP(req); got != tc.want {
				t.Fatalf("ClientIP() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLanguageFromContextDefault(t *testing.T) {
	if got := LanguageFromContext(context.Background()); got != "en" {
		t.Fatalf("LanguageFromContext() = %q, want en", got)
	}
	if got := CountryFromContext(context.Background()); got != "" {
		t.Fatalf("CountryFromContext() = %q, want empty", got)
	}
}
