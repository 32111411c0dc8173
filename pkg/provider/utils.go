package provider

import (
	"fmt"
	"net/http"
	"strings"
)

type boundHeadersTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *boundHeadersTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	return t.base.RoundTrip(req)
}

// clientWithHeaders returns an http.Client which sets the given headers on
// each request sent through the base transport
func clientWithHeaders(base http.RoundTripper, headers map[string]string) *http.Client {
	return &http.Client{
		Transport: &boundHeadersTransport{
			headers: headers,
			base:    base,
		},
	}
}

// commandLine renders a command for log and error messages
func commandLine(binary string, args []string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", binary, strings.Join(args, " ")))
}
