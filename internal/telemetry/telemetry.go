// Package telemetry reports analysis failures and simulated errors to Sentry.
// Reporting is fire-and-forget: it never returns an error and never panics.
package telemetry

import (
	"fmt"
	"net/http"
	"regexp"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	httpClientTimeout = 10 * time.Second
	maxBreadcrumbs    = 20
)

// Reporter receives errors and notable messages
type Reporter interface {
	CaptureError(err error, tags map[string]string)
	CaptureMessage(msg string, tags map[string]string)
	Flush(timeout time.Duration) bool
	Enabled() bool
}

// Options configures the Sentry reporter
type Options struct {
	DSN         string
	Environment string
	Release     string
}

// New returns a Sentry reporter, or a no-op reporter when no DSN is set
func New(opts Options) (Reporter, error) {
	if opts.DSN == "" {
		return Nop{}, nil
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "debugops@" + opts.Release,
		Environment:      opts.Environment,
		ServerName:       runtime.GOOS + "-" + runtime.GOARCH,
		AttachStacktrace: true,
		SampleRate:       1.0,
		MaxBreadcrumbs:   maxBreadcrumbs,
		HTTPClient: &http.Client{
			Timeout: httpClientTimeout,
		},
		IgnoreErrors: []string{
			"context canceled",
		},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			scrubEvent(event)
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// SentryReporter sends events through its own hub
type SentryReporter struct {
	hub *sentry.Hub
}

// CaptureError reports err with the given tags
func (r *SentryReporter) CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	defer r.recover()
	r.hub.WithScope(func(scope *sentry.Scope) {
		setTags(scope, tags)
		r.hub.CaptureException(err)
	})
}

// CaptureMessage reports msg with the given tags
func (r *SentryReporter) CaptureMessage(msg string, tags map[string]string) {
	defer r.recover()
	r.hub.WithScope(func(scope *sentry.Scope) {
		setTags(scope, tags)
		r.hub.CaptureMessage(msg)
	})
}

// Flush waits up to timeout for queued events to be sent
func (r *SentryReporter) Flush(timeout time.Duration) bool {
	defer r.recover()
	return r.hub.Flush(timeout)
}

func (r *SentryReporter) Enabled() bool {
	return true
}

func (r *SentryReporter) recover() {
	if p := recover(); p != nil {
		zap.S().Warnf("Telemetry reporting panicked: %v", p)
	}
}

func setTags(scope *sentry.Scope, tags map[string]string) {
	for k, v := range tags {
		scope.SetTag(k, scrubPII(v))
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) CaptureError(error, map[string]string)  {}
func (Nop) CaptureMessage(string, map[string]string) {}
func (Nop) Flush(time.Duration) bool                 { return true }
func (Nop) Enabled() bool                            { return false }

// ========== PII scrubbing ==========

var (
	homePathPattern = regexp.MustCompile(`(?i)(/home/|/Users/|C:\\Users\\)([^/\\:]+)`)
	apiKeyPattern   = regexp.MustCompile(`(?i)(sk-ant-api\d+-|sk-|AIza|xoxb-|api[_-]?key[=:]\s*)([A-Za-z0-9_-]{10,})`)
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	bearerPattern   = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._-]+`)
)

// scrubPII removes usernames in paths, credentials and email addresses
func scrubPII(s string) string {
	s = homePathPattern.ReplaceAllString(s, "${1}[user]")
	s = apiKeyPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = bearerPattern.ReplaceAllString(s, "${1}[REDACTED]")
	s = emailPattern.ReplaceAllString(s, "[email]")
	return s
}

func scrubEvent(event *sentry.Event) {
	event.Message = scrubPII(event.Message)

	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
		scrubStacktrace(event.Exception[i].Stacktrace)
	}
	for i := range event.Threads {
		scrubStacktrace(event.Threads[i].Stacktrace)
	}

	for i := range event.Breadcrumbs {
		event.Breadcrumbs[i].Message = scrubPII(event.Breadcrumbs[i].Message)
	}

	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}

	for key, value := range event.Tags {
		event.Tags[key] = scrubPII(value)
	}
}

// scrubStacktrace cleans frame paths and the source lines sentry attaches as context
func scrubStacktrace(st *sentry.Stacktrace) {
	if st == nil {
		return
	}
	for j := range st.Frames {
		frame := &st.Frames[j]
		frame.AbsPath = scrubPII(frame.AbsPath)
		frame.Filename = scrubPII(frame.Filename)
		frame.ContextLine = scrubPII(frame.ContextLine)
		for k := range frame.PreContext {
			frame.PreContext[k] = scrubPII(frame.PreContext[k])
		}
		for k := range frame.PostContext {
			frame.PostContext[k] = scrubPII(frame.PostContext[k])
		}
	}
}
