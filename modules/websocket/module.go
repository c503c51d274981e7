package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/burstmission/internal/ctxlog"
	"github.com/vk/burstmission/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultTimeout bounds the connect and the optional request round trip.
const DefaultTimeout = 15 * time.Second

const schema = `{
  "type": "object",
  "required": ["url"],
  "properties": {
    "url": {"type": "string", "pattern": "^(https?|wss?)://"},
    "namespace": {"type": "string"},
    "insecure_skip_verify": {"type": "boolean"},
    "emit_event": {"type": "string"},
    "emit_data": {},
    "on_event": {"type": "string"},
    "timeout": {"type": "string"}
  },
  "dependentRequired": {"on_event": ["emit_event"]}
}`

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the parameters of websocket_connect. With emit_event set
// the tool emits once after connecting; with on_event also set it waits for
// that event and returns its payload.
type Input struct {
	URL                string        `param:"url"`
	Namespace          string        `param:"namespace"`
	InsecureSkipVerify bool          `param:"insecure_skip_verify"`
	EmitEvent          string        `param:"emit_event"`
	EmitData           any           `param:"emit_data"`
	OnEvent            string        `param:"on_event"`
	Timeout            time.Duration `param:"timeout"`
}

// Output describes the session.
type Output struct {
	Connected    bool   `json:"connected"`
	SID          string `json:"sid"`
	ResponseData any    `json:"response_data,omitempty"`
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool(registry.NewFunc("websocket_connect", schema, Connect))
}

// Connect opens a socket.io connection over the websocket transport, runs
// the optional request and disconnects.
func Connect(ctx context.Context, params map[string]any) (any, error) {
	var in Input
	if err := registry.Decode(params, &in); err != nil {
		return nil, err
	}
	if in.OnEvent != "" && in.EmitEvent == "" {
		return nil, errors.New("on_event requires emit_event")
	}
	if in.Timeout <= 0 {
		in.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	io, err := dial(ctx, &in)
	if err != nil {
		return nil, err
	}
	defer io.Disconnect()

	out := Output{Connected: true, SID: io.Id()}
	if in.EmitEvent == "" {
		return out, nil
	}

	logger := ctxlog.FromContext(ctx).With("tool", "websocket_connect", "sid", out.SID)
	logger.Info("Executing request", "emitEvent", in.EmitEvent, "onEvent", in.OnEvent)

	done := make(chan any, 1)
	if in.OnEvent != "" {
		io.Once(types.EventName(in.OnEvent), func(data ...any) {
			logger.Debug("EVENT HANDLER: Success event received", "event", in.OnEvent)
			var payload any
			if len(data) > 0 {
				payload = data[0]
			}
			done <- payload
		})
	}

	var emitErr error
	if in.EmitData != nil {
		emitErr = io.Emit(in.EmitEvent, in.EmitData)
	} else {
		emitErr = io.Emit(in.EmitEvent)
	}
	if emitErr != nil {
		return nil, fmt.Errorf("failed to emit event '%s': %w", in.EmitEvent, emitErr)
	}
	if in.OnEvent == "" {
		return out, nil
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("timed out after %v waiting for event '%s'", in.Timeout, in.OnEvent)
	case payload := <-done:
		logger.Info("Successfully received response event", "event", in.OnEvent)
		out.ResponseData = payload
		return out, nil
	}
}

// dial connects and waits for the first connect or connect_error event.
func dial(ctx context.Context, in *Input) (*socket.Socket, error) {
	logger := ctxlog.FromContext(ctx).With("tool", "websocket_connect", "url", in.URL)
	logger.Info("Creating new client instance...")

	parsedURL, err := url.Parse(in.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	scheme := parsedURL.Scheme
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetReconnection(false)
	opts.SetTimeout(in.Timeout)
	if in.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)

	baseURL := fmt.Sprintf("%s://%s", scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(in.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Debug("EVENT HANDLER: 'connect' event fired")
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connection refused")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("EVENT HANDLER: 'connect_error' event fired", "error", err)
		select {
		case connectChan <- err:
		default:
		}
	})

	logger.Debug("Initiating connection...")
	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		logger.Info("Successfully connected", "sid", io.Id())
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", in.Timeout)
	}
}
