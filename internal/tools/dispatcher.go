package tools

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mkessler-io/motionbridge/internal/backend"
)

// Recorder receives one record per dispatched call. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RecordInvocation(session, tool string, args map[string]interface{}, ok bool, errMsg string, elapsed time.Duration)
}

// ProgressFunc is notified as a long-running dispatch advances. The transport
// layer uses it to push poll progress onto a session's event stream.
type ProgressFunc func(stage string, detail interface{})

// Dispatcher resolves tool calls to backend requests and normalizes their
// outcomes. Every failure mode (guard rejection, timeout, non-2xx status,
// unparseable payload) comes back inside the CallResult; Dispatch never
// panics past its own boundary.
type Dispatcher struct {
	registry *Registry
	backend  *backend.Client
	recorder Recorder // optional

	pollTimeout  time.Duration
	pollInterval time.Duration
}

// NewDispatcher wires a dispatcher to a populated registry and a backend
// client. recorder may be nil.
func NewDispatcher(registry *Registry, client *backend.Client, recorder Recorder) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		backend:  client,
		recorder: recorder,
	}
}

// SetPollBounds overrides the per-tool poll timeout and interval. Zero values
// keep the tool's own defaults.
func (d *Dispatcher) SetPollBounds(timeout, interval time.Duration) {
	d.pollTimeout = timeout
	d.pollInterval = interval
}

// Dispatch runs one tool call end to end.
func (d *Dispatcher) Dispatch(ctx context.Context, req CallRequest) CallResult {
	return d.dispatch(ctx, req, nil)
}

// DispatchWithProgress is Dispatch with poll-progress notifications.
func (d *Dispatcher) DispatchWithProgress(ctx context.Context, req CallRequest, progress ProgressFunc) CallResult {
	return d.dispatch(ctx, req, progress)
}

func (d *Dispatcher) dispatch(ctx context.Context, req CallRequest, progress ProgressFunc) CallResult {
	start := time.Now()
	res := d.run(ctx, req, progress)
	if d.recorder != nil {
		d.recorder.RecordInvocation(req.Session, req.Name, req.Args, res.OK, res.Error, time.Since(start))
	}
	return res
}

func (d *Dispatcher) run(ctx context.Context, req CallRequest, progress ProgressFunc) CallResult {
	fail := func(format string, args ...interface{}) CallResult {
		return CallResult{ID: req.ID, Name: req.Name, Error: fmt.Sprintf(format, args...)}
	}

	desc, ok := d.registry.Describe(req.Name)
	if !ok {
		return fail("unknown tool %q", req.Name)
	}

	if rej := Validate(desc, req.Args); rej != nil {
		return fail("%s", rej.Error())
	}

	ep, ok := endpoints[req.Name]
	if !ok {
		return fail("tool %q has no backend mapping", req.Name)
	}

	path, query, body, err := ep.resolve(req.Args)
	if err != nil {
		return fail("%s", err.Error())
	}

	payload, err := d.backend.Do(ctx, ep.method, path, query, body)
	if err != nil {
		return fail("%s", err.Error())
	}

	if ep.longRun == nil {
		return CallResult{ID: req.ID, Name: req.Name, OK: true, Value: payload}
	}

	// Start call succeeded; the real result comes from the status endpoint.
	lr := ep.longRun
	timeout, interval := lr.timeout, lr.interval
	if d.pollTimeout > 0 {
		timeout = d.pollTimeout
	}
	if d.pollInterval > 0 {
		interval = d.pollInterval
	}

	if progress != nil {
		progress("started", payload)
	}
	log.Printf("dispatch: %s started, polling %s for up to %s", req.Name, lr.statusPath, timeout)

	// The poll loop outlives the originating request: a client that
	// disconnects mid-operation must not cancel status calls against the
	// backend, so the loop is bounded only by its own timeout.
	pollCtx := context.WithoutCancel(ctx)
	poll := PollUntil(pollCtx, func(ctx context.Context) (interface{}, error) {
		v, err := d.backend.Do(ctx, lr.statusMethod, lr.statusPath, nil, nil)
		if err == nil && progress != nil {
			progress("polling", v)
		}
		return v, err
	}, lr.done, timeout, interval)

	// A timed-out poll is not an error: return the best last-known payload
	// and let the caller decide how to present it.
	return CallResult{
		ID:   req.ID,
		Name: req.Name,
		OK:   true,
		Value: map[string]interface{}{
			"result":     poll.Value,
			"timed_out":  poll.TimedOut,
			"elapsed_ms": poll.Elapsed.Milliseconds(),
			"polls":      poll.Polls,
		},
	}
}

// resolve substitutes the call arguments into the endpoint's path template,
// splits the rest between body fields and query parameters, and reports any
// unresolved path segment.
func (ep endpoint) resolve(args map[string]interface{}) (string, url.Values, interface{}, error) {
	path := ep.path
	used := make(map[string]bool, len(args))

	for name, v := range args {
		seg := "{" + name + "}"
		if strings.Contains(path, seg) {
			path = strings.ReplaceAll(path, seg, url.PathEscape(argString(v)))
			used[name] = true
		}
	}
	if i := strings.IndexByte(path, '{'); i >= 0 {
		end := strings.IndexByte(path[i:], '}')
		if end < 0 {
			end = len(path) - i - 1
		}
		return "", nil, nil, fmt.Errorf("missing argument for path parameter %s", path[i:i+end+1])
	}

	var body map[string]interface{}
	for _, f := range ep.bodyFields {
		if v, ok := args[f]; ok {
			if body == nil {
				body = make(map[string]interface{})
			}
			body[f] = v
			used[f] = true
		}
	}

	var query url.Values
	for name, v := range args {
		if used[name] {
			continue
		}
		if query == nil {
			query = url.Values{}
		}
		query.Set(name, argString(v))
	}

	if body == nil {
		return path, query, nil, nil
	}
	return path, query, body, nil
}

func argString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
