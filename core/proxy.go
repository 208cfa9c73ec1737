package core

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"langaccessor/logger"
	"langaccessor/models"

	"github.com/andybalholm/brotli"
	"github.com/elazarl/goproxy"
)

// maxTitleSniffBytes bounds how much of an HTML response is buffered to find its title.
const maxTitleSniffBytes = 2 << 20

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// RuleMatcher finds the installed rule for a request.
type RuleMatcher interface {
	Match(host string, resourceType models.ResourceType) (models.Rule, bool)
}

// Proxy is a forward proxy that applies installed header rules to outgoing requests.
type Proxy struct {
	matcher RuleMatcher
	tabs    *ActiveTabTracker
	ca      *tls.Certificate
	server  *goproxy.ProxyHttpServer
}

type ProxyOption func(*Proxy)

// WithMITM intercepts HTTPS with certificates signed by ca. Without it CONNECT tunnels
// are passed through and HTTPS requests are not rewritten.
func WithMITM(ca *tls.Certificate) ProxyOption {
	return func(p *Proxy) { p.ca = ca }
}

// WithUpstreamTransport replaces the transport used to reach origin servers.
func WithUpstreamTransport(tr *http.Transport) ProxyOption {
	return func(p *Proxy) { p.server.Tr = tr }
}

// NewProxy builds the proxy. tabs may be nil.
func NewProxy(matcher RuleMatcher, tabs *ActiveTabTracker, opts ...ProxyOption) *Proxy {
	server := goproxy.NewProxyHttpServer()
	server.Logger = log.New(io.Discard, "", 0)
	// Keep the browser's encodings so response bodies reach it untouched.
	server.KeepAcceptEncoding = true

	p := &Proxy{matcher: matcher, tabs: tabs, server: server}
	for _, opt := range opts {
		opt(p)
	}

	if p.ca != nil {
		tlsConfig := goproxy.TLSConfigFromCA(p.ca)
		server.OnRequest().HandleConnect(goproxy.FuncHttpsHandler(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
			logger.ProxyDebug("CONNECT %s (session %d): intercepting", host, ctx.Session)
			return &goproxy.ConnectAction{Action: goproxy.ConnectMitm, TLSConfig: tlsConfig}, host
		}))
	}
	server.OnRequest().DoFunc(p.onRequest)
	server.OnResponse().DoFunc(p.onResponse)
	return p
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.server.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: p}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.ProxyError("Proxy: graceful shutdown failed: %v", err)
		}
	}()

	logger.ProxyInfo("Proxy: listening on %s (HTTPS interception: %t)", addr, p.ca != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("proxy listen on %s: %w", addr, err)
	}
	return nil
}

// requestInfo travels from onRequest to onResponse in ctx.UserData.
type requestInfo struct {
	url          string
	resourceType models.ResourceType
}

func (p *Proxy) onRequest(r *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	if r.URL == nil {
		return r, nil
	}
	rt := ClassifyRequest(r)
	host := r.URL.Hostname()
	if host == "" {
		host = r.Host
	}
	ctx.UserData = &requestInfo{url: r.URL.String(), resourceType: rt}

	if rt == models.ResourceMainFrame && p.tabs != nil {
		p.tabs.Record(r.URL, time.Now())
	}

	rule, ok := p.matcher.Match(host, rt)
	if !ok {
		logger.ProxyDebug("REQ: %s %s (%s) - no rule", r.Method, r.URL.String(), rt)
		return r, nil
	}
	ApplyRule(rule, r.Header)
	logger.ProxyInfo("REQ: %s %s (%s) - rule %d applied, accept-language=%q", r.Method, r.URL.String(), rt, rule.ID, r.Header.Get("Accept-Language"))
	return r, nil
}

func (p *Proxy) onResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	info, ok := ctx.UserData.(*requestInfo)
	if !ok || info == nil || resp == nil || p.tabs == nil || info.resourceType != models.ResourceMainFrame {
		return resp
	}
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return resp
	}
	if resp.ContentLength > maxTitleSniffBytes {
		return resp
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTitleSniffBytes+1))
	if err != nil {
		logger.ProxyError("RESP: reading body of %s: %v", info.url, err)
		resp.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(body), resp.Body), Closer: resp.Body}
		return resp
	}
	if len(body) > maxTitleSniffBytes {
		resp.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(body), resp.Body), Closer: resp.Body}
		return resp
	}
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))

	title, err := extractTitle(body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		logger.ProxyDebug("RESP: no title for %s: %v", info.url, err)
		return resp
	}
	if title != "" {
		p.tabs.SetTitle(info.url, title)
	}
	return resp
}

type replayBody struct {
	io.Reader
	io.Closer
}

// extractTitle decodes body according to contentEncoding and returns the text of its
// <title> element, whitespace collapsed.
func extractTitle(body []byte, contentEncoding string) (string, error) {
	var r io.Reader = bytes.NewReader(body)
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
	case "br":
		r = brotli.NewReader(r)
	case "gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return "", fmt.Errorf("opening gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		return "", fmt.Errorf("unsupported content encoding %q", contentEncoding)
	}
	decoded, err := io.ReadAll(io.LimitReader(r, maxTitleSniffBytes))
	if err != nil {
		return "", fmt.Errorf("decoding body: %w", err)
	}
	m := titlePattern.FindSubmatch(decoded)
	if m == nil {
		return "", nil
	}
	return strings.Join(strings.Fields(html.UnescapeString(string(m[1]))), " "), nil
}

// ClassifyRequest derives the resource type of r from its fetch metadata headers.
func ClassifyRequest(r *http.Request) models.ResourceType {
	switch strings.ToLower(r.Header.Get("Sec-Fetch-Dest")) {
	case "document":
		return models.ResourceMainFrame
	case "iframe", "frame":
		return models.ResourceSubFrame
	case "empty":
		return models.ResourceXMLHTTPRequest
	case "":
	default:
		return models.ResourceOther
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return models.ResourceXMLHTTPRequest
	}
	if strings.Contains(strings.ToLower(r.Header.Get("Accept")), "text/html") {
		return models.ResourceMainFrame
	}
	return models.ResourceOther
}
