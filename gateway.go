package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/token"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxResponseBytes = 8 << 20

// sessionSource is the part of the Manager the Gateway depends on.
type sessionSource interface {
	dispatchState() (token string, epoch uint64)
	ForceLogout(epoch uint64, token string) bool
}

// Gateway is the single path for outbound API calls. It attaches the current
// token, classifies failures and turns an unauthorized response into at most
// one forced logout per session epoch.
type Gateway struct {
	baseURL   string
	http      *http.Client
	session   sessionSource
	notifier  Notifier
	navigator Navigator
	logger    *slog.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	userAgent string
	routes    RoutesConfig
	tokenCfg  TokenConfig
	msgs      MessagesConfig
	now       func() time.Time
}

// envelope is the response wrapper used by the backend.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

// Get issues a GET for path with optional query parameters.
func (g *Gateway) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return g.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST with a JSON body.
func (g *Gateway) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT with a JSON body.
func (g *Gateway) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return g.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues a DELETE for path.
func (g *Gateway) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return g.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

// DecodeInto performs req and unmarshals the payload into out. An empty
// payload leaves out untouched.
func (g *Gateway) DecodeInto(ctx context.Context, req Request, out any) error {
	data, err := g.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		apiErr := &APIError{
			Kind:      KindMalformedResponse,
			Status:    http.StatusOK,
			Message:   g.msgs.MalformedResponse,
			RequestID: RequestIDFromContext(ctx),
			Err:       err,
		}
		g.fail(ctx, req, apiErr)
		return apiErr
	}
	return nil
}

// CurrentUser fetches the profile of the token holder.
func (g *Gateway) CurrentUser(ctx context.Context) (*UserProfile, error) {
	return g.currentUser(ctx, false)
}

func (g *Gateway) currentUser(ctx context.Context, quiet bool) (*UserProfile, error) {
	var user UserProfile
	req := Request{Method: http.MethodGet, Path: g.routes.ProfileEndpoint, Quiet: quiet}
	if err := g.DecodeInto(ctx, req, &user); err != nil {
		return nil, err
	}
	if user.Username == "" {
		apiErr := &APIError{
			Kind:    KindMalformedResponse,
			Status:  http.StatusOK,
			Message: g.msgs.MalformedResponse,
			Err:     errors.New("profile without username"),
		}
		g.fail(ctx, req, apiErr)
		return nil, apiErr
	}
	if r, ok := ParseRole(string(user.Role)); ok {
		user.Role = r
	}
	return &user, nil
}

// Do sends req and returns the response payload, unwrapped from the
// backend envelope when one is present.
//
// Every failure except caller cancellation is returned as an *APIError.
// Cancellation returns an error wrapping ctx.Err() and is not reported.
func (g *Gateway) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if g == nil {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	requestID := requestIDOrNew(ctx)
	ctx = WithRequestID(ctx, requestID)

	ctx, span := g.tracer.Start(ctx, "authclient.gateway "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
			attribute.String("authclient.request_id", requestID),
		),
	)
	defer span.End()

	data, err := g.do(ctx, req, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	return data, err
}

func (g *Gateway) do(ctx context.Context, req Request, requestID string) (json.RawMessage, error) {
	tok, epoch := g.session.dispatchState()
	exempt := isForcedLogoutExempt(ctx)
	pinned, isPinned := bearerFromContext(ctx)
	if isPinned {
		tok = pinned
		exempt = true
	}

	if tok != "" && !isPinned && g.tokenCfg.LocalExpiryCheck && token.ExpiredAt(tok, g.now(), g.tokenCfg.Leeway) {
		g.logger.Debug("gateway: token expired locally", "method", req.Method, "path", req.Path, "request_id", requestID)
		apiErr := &APIError{
			Kind:      KindUnauthorized,
			Status:    http.StatusUnauthorized,
			Message:   g.msgs.SessionExpired,
			RequestID: requestID,
		}
		g.metrics.Inc(MetricRequestUnauthorized)
		g.unauthorized(req, apiErr, tok, epoch, exempt)
		return nil, apiErr
	}

	httpReq, err := g.newRequest(ctx, req, tok, requestID)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}

	start := g.now()
	resp, err := g.http.Do(httpReq)
	elapsed := g.now().Sub(start)
	g.metrics.Observe(MetricRequestLatency, elapsed)
	if err != nil {
		return nil, g.transportFailure(ctx, req, requestID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, g.transportFailure(ctx, req, requestID, err)
	}

	g.logger.Debug("gateway: response",
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", elapsed,
	)

	if len(body) > maxResponseBytes {
		apiErr := &APIError{
			Kind:      KindMalformedResponse,
			Status:    resp.StatusCode,
			Message:   g.msgs.MalformedResponse,
			RequestID: requestID,
			Err:       errors.New("response body too large"),
		}
		g.fail(ctx, req, apiErr)
		return nil, apiErr
	}

	payload, env, decodeErr := unwrap(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			apiErr := &APIError{
				Kind:      KindMalformedResponse,
				Status:    resp.StatusCode,
				Message:   g.msgs.MalformedResponse,
				RequestID: requestID,
				Err:       decodeErr,
			}
			g.fail(ctx, req, apiErr)
			return nil, apiErr
		}
		if env != nil && !env.Success {
			fields := fieldErrors(env.Errors)
			apiErr := &APIError{
				Kind:          KindClientError,
				Status:        resp.StatusCode,
				Message:       message(env.Message, g.msgs.RequestFailed),
				FieldErrors:   fields,
				RequestID:     requestID,
				serverMessage: env.Message != "",
			}
			g.fail(ctx, req, apiErr)
			return nil, apiErr
		}
		g.metrics.Inc(MetricRequestSuccess)
		return payload, nil
	}

	var serverMsg string
	var fields map[string]string
	if env != nil {
		serverMsg = env.Message
		fields = fieldErrors(env.Errors)
	}
	kind := classifyStatus(resp.StatusCode, fields)
	apiErr := &APIError{
		Kind:          kind,
		Status:        resp.StatusCode,
		Message:       message(serverMsg, g.defaultMessage(kind)),
		FieldErrors:   fields,
		RequestID:     requestID,
		serverMessage: serverMsg != "",
	}

	if kind == KindUnauthorized {
		g.metrics.Inc(MetricRequestUnauthorized)
		g.unauthorized(req, apiErr, tok, epoch, exempt)
		return nil, apiErr
	}

	g.fail(ctx, req, apiErr)
	return nil, apiErr
}

func (g *Gateway) newRequest(ctx context.Context, req Request, tok, requestID string) (*http.Request, error) {
	target := strings.TrimRight(g.baseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tok)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	if g.userAgent != "" {
		httpReq.Header.Set("User-Agent", g.userAgent)
	}
	return httpReq, nil
}

// transportFailure classifies an error where no complete response arrived.
func (g *Gateway) transportFailure(ctx context.Context, req Request, requestID string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		g.logger.Debug("gateway: request canceled", "method", req.Method, "path", req.Path, "request_id", requestID)
		return fmt.Errorf("%s %s: %w", req.Method, req.Path, ctx.Err())
	}
	apiErr := &APIError{
		Kind:      KindNetworkUnreachable,
		Message:   g.msgs.NetworkError,
		RequestID: requestID,
		Err:       err,
	}
	g.fail(ctx, req, apiErr)
	return apiErr
}

// unauthorized runs the 401 path. Only the first 401 of a session epoch
// carrying the session's own token ends the session.
func (g *Gateway) unauthorized(req Request, apiErr *APIError, tok string, epoch uint64, exempt bool) {
	if exempt {
		return
	}
	if tok == "" {
		if !req.Quiet {
			g.notifier.Notify(LevelError, message(apiErr.Message, g.msgs.SessionExpired))
		}
		return
	}
	if g.session.ForceLogout(epoch, tok) {
		g.navigator.Redirect(g.routes.LoginPath, RedirectOptions{Replace: true})
		return
	}
	g.metrics.Inc(MetricUnauthorizedSuppressed)
	g.logger.Debug("gateway: stale unauthorized response ignored", "path", req.Path, "request_id", apiErr.RequestID, "epoch", epoch)
}

// fail records a non-401 classified failure and notifies unless quiet.
func (g *Gateway) fail(_ context.Context, req Request, apiErr *APIError) {
	g.metrics.Inc(requestMetric(apiErr.Kind))
	g.logger.Debug("gateway: request failed",
		"method", req.Method,
		"path", req.Path,
		"kind", apiErr.Kind.String(),
		"status", apiErr.Status,
		"request_id", apiErr.RequestID,
	)
	if req.Quiet {
		return
	}
	g.notifier.Notify(LevelError, g.notification(apiErr))
}

func (g *Gateway) notification(apiErr *APIError) string {
	switch apiErr.Kind {
	case KindForbidden:
		return g.msgs.AccessDenied
	case KindNotFound:
		return g.msgs.NotFound
	case KindServerError:
		return g.msgs.ServerError
	case KindNetworkUnreachable:
		return g.msgs.NetworkError
	case KindMalformedResponse:
		return g.msgs.MalformedResponse
	default:
		return message(apiErr.Message, g.msgs.RequestFailed)
	}
}

func (g *Gateway) defaultMessage(kind ErrorKind) string {
	switch kind {
	case KindUnauthorized:
		return g.msgs.SessionExpired
	case KindForbidden:
		return g.msgs.AccessDenied
	case KindNotFound:
		return g.msgs.NotFound
	case KindServerError:
		return g.msgs.ServerError
	case KindValidationFailed:
		return g.msgs.ValidationFailed
	default:
		return g.msgs.RequestFailed
	}
}

// unwrap decodes body. It returns the payload, the envelope when the body
// was wrapped, and an error when the body is not JSON. An empty body yields
// a nil payload.
func unwrap(body []byte) (json.RawMessage, *envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil, nil
	}
	if !json.Valid(trimmed) {
		return nil, nil, errors.New("response is not valid JSON")
	}
	if trimmed[0] != '{' {
		return json.RawMessage(trimmed), nil, nil
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, nil, err
	}
	if _, wrapped := keys["success"]; !wrapped {
		return json.RawMessage(trimmed), nil, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &env, nil
	}
	return env.Data, &env, nil
}

// fieldErrors reads the envelope's errors member. Non-string values are
// rendered with their JSON text.
func fieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil || len(generic) == 0 {
		return nil
	}
	out := make(map[string]string, len(generic))
	for field, v := range generic {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[field] = s
			continue
		}
		out[field] = string(v)
	}
	return out
}

// joinFieldErrors renders field messages in field order.
func joinFieldErrors(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	msgs := make([]string, 0, len(names))
	for _, f := range names {
		msgs = append(msgs, fields[f])
	}
	return strings.Join(msgs, "; ")
}
