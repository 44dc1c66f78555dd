// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"net/url"
)

// proxyTransport returns a transport routing through proxyURL, or nil
// when the URL does not parse.
func proxyTransport(proxyURL string) *http.Transport {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return &http.Transport{Proxy: http.ProxyURL(u)}
}
