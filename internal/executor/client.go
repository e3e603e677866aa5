// Package executor provides the HTTP client used for every call to the task
// API, including the interceptor stage that refreshes expired credentials.
package executor

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// DefaultTimeout bounds every outbound request.
const DefaultTimeout = 10 * time.Second

// NewHTTPClient creates an HTTP client with optional proxy configuration.
func NewHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: DefaultTimeout}
	if timeout > 0 {
		client.Timeout = timeout
	}

	if proxyURL != "" {
		transport := buildProxyTransport(proxyURL)
		if transport != nil {
			client.Transport = transport
		}
	}

	return client
}

// buildProxyTransport creates an HTTP transport for the given proxy URL.
// SOCKS5, HTTP and HTTPS proxies are supported; anything else yields nil and
// the client falls back to a direct connection.
func buildProxyTransport(proxyURL string) *http.Transport {
	parsedURL, err := url.Parse(proxyURL)
	if err != nil {
		log.Errorf("parse proxy URL failed: %v", err)
		return nil
	}

	switch parsedURL.Scheme {
	case "socks5", "socks5h":
		var proxyAuth *proxy.Auth
		if parsedURL.User != nil {
			password, _ := parsedURL.User.Password()
			proxyAuth = &proxy.Auth{User: parsedURL.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", parsedURL.Host, proxyAuth, proxy.Direct)
		if err != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", err)
			return nil
		}
		return &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				if cd, ok := dialer.(proxy.ContextDialer); ok {
					return cd.DialContext(ctx, network, addr)
				}
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		return &http.Transport{Proxy: http.ProxyURL(parsedURL)}
	default:
		log.Errorf("unsupported proxy scheme: %s", parsedURL.Scheme)
		return nil
	}
}
