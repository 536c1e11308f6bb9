package utils

import (
	"fmt"
	"net/http"
	"net/http/httputil"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (fn roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return fn(r)
}

// DebugRoundTripper dumps every request and response to stdout.
func DebugRoundTripper() http.RoundTripper {
	return DebugRoundTripperWithUnderlying(http.DefaultTransport)
}

// DebugRoundTripperWithUnderlying wraps u with request/response dumping.
// The Authorization header carries the API key and is redacted.
func DebugRoundTripperWithUnderlying(u http.RoundTripper) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		auth := r.Header.Get("Authorization")
		if auth != "" {
			r.Header.Set("Authorization", "Basic [redacted]")
		}
		d, _ := httputil.DumpRequest(r, true)
		if auth != "" {
			r.Header.Set("Authorization", auth)
		}
		fmt.Println(string(d))
		res, err := u.RoundTrip(r)
		if err == nil {
			d, _ := httputil.DumpResponse(res, true)
			fmt.Println(string(d))
		}
		return res, err
	})
}
