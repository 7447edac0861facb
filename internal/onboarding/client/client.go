package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/clock"
	"github.com/smallbiznis/egsbridge/internal/observability/metrics"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

const (
	OperationComplianceCSID  = "compliance_csid"
	OperationComplianceCheck = "compliance_check"
	OperationProductionCSID  = "production_csid"

	headerOTP           = "OTP"
	headerAcceptVersion = "Accept-Version"
	apiVersion          = "V2"

	maxReasonLength = 512
)

// Config controls timeouts and the retry policy of compliance checks.
type Config struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	return c
}

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     Config                    `optional:"true"`
	Sleeper    clock.Sleeper             `optional:"true"`
	HTTPClient *http.Client              `optional:"true"`
	Metrics    *metrics.AuthorityMetrics `optional:"true"`
}

// Client is the HTTP gateway to the authority onboarding API.
type Client struct {
	http    *http.Client
	log     *zap.Logger
	cfg     Config
	sleeper clock.Sleeper
	metrics *metrics.AuthorityMetrics
	tracer  trace.Tracer
}

func New(p Params) *Client {
	cfg := p.Config.withDefaults()
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = clock.NewSleeper()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    httpClient,
		log:     log.Named("onboarding.client"),
		cfg:     cfg,
		sleeper: sleeper,
		metrics: p.Metrics,
		tracer:  otel.Tracer("egsbridge/onboarding/client"),
	}
}

// NewAuthorityClient exposes the client through the domain interface.
func NewAuthorityClient(c *Client) domain.AuthorityClient {
	return c
}

type request struct {
	operation string
	url       string
	header    http.Header
	body      []byte
}

func (r request) build(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(r.body))
	if err != nil {
		return nil, err
	}
	req.Header = r.header.Clone()
	return req, nil
}

func baseHeader() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", "en")
	h.Set(headerAcceptVersion, apiVersion)
	h.Set("Content-Type", "application/json")
	return h
}

func basicAuth(cred domain.Credentials) string {
	raw := cred.BinarySecurityToken + ":" + cred.Secret
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// IssueComplianceCSID exchanges a CSR and a one-time password for the
// compliance credential.
func (c *Client) IssueComplianceCSID(ctx context.Context, endpoint, otp, csr string) (*domain.IssuanceResponse, error) {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return nil, domain.ErrMissingOTP
	}
	if strings.TrimSpace(csr) == "" {
		return nil, domain.ErrMissingCSR
	}
	body, err := json.Marshal(map[string]string{"csr": csr})
	if err != nil {
		return nil, &domain.AuthorityError{Operation: OperationComplianceCSID, Kind: domain.FailureSerialization, Err: err}
	}
	header := baseHeader()
	header.Set(headerOTP, otp)
	return c.issue(ctx, request{
		operation: OperationComplianceCSID,
		url:       endpoint,
		header:    header,
		body:      body,
	})
}

// IssueProductionCSID exchanges the compliance request id for the
// production credential.
func (c *Client) IssueProductionCSID(ctx context.Context, endpoint string, cred domain.Credentials, requestID string) (*domain.IssuanceResponse, error) {
	if cred.BinarySecurityToken == "" || cred.Secret == "" {
		return nil, domain.ErrMissingComplianceCredential
	}
	body, err := json.Marshal(map[string]domain.RequestID{"compliance_request_id": domain.RequestID(requestID)})
	if err != nil {
		return nil, &domain.AuthorityError{Operation: OperationProductionCSID, Kind: domain.FailureSerialization, Err: err}
	}
	header := baseHeader()
	header.Set("Authorization", basicAuth(cred))
	return c.issue(ctx, request{
		operation: OperationProductionCSID,
		url:       endpoint,
		header:    header,
		body:      body,
	})
}

func (c *Client) issue(ctx context.Context, req request) (*domain.IssuanceResponse, error) {
	ctx, span := c.tracer.Start(ctx, "authority."+req.operation)
	defer span.End()

	status, body, err := c.do(ctx, req)
	if err != nil {
		return nil, c.finish(span, &domain.AuthorityError{
			Operation: req.operation,
			Kind:      classify(ctx, err),
			Attempts:  1,
			Err:       err,
		})
	}
	if failure := statusFailure(req.operation, status, body); failure != nil {
		failure.Attempts = 1
		return nil, c.finish(span, failure)
	}

	var resp domain.IssuanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, c.finish(span, &domain.AuthorityError{
			Operation: req.operation,
			Kind:      domain.FailureSerialization,
			Status:    status,
			Attempts:  1,
			Err:       err,
		})
	}
	if resp.BinarySecurityToken == "" || resp.Secret == "" {
		return nil, c.finish(span, &domain.AuthorityError{
			Operation: req.operation,
			Kind:      domain.FailureRejected,
			Status:    status,
			Reason:    firstNonEmpty(resp.DispositionMessage, "credential missing from response"),
			Attempts:  1,
		})
	}

	c.metrics.IncCall(req.operation, metrics.AuthorityOutcomeSuccess)
	span.SetAttributes(attribute.Int("authority.attempts", 1))
	return &resp, nil
}

// CheckCompliance submits one sample. Transport failures are retried with
// exponential backoff; every other failure ends the call. A nil Response in
// the result means the sample was never judged.
func (c *Client) CheckCompliance(ctx context.Context, endpoint string, cred domain.Credentials, payload domain.ComplianceRequest) domain.CheckResult {
	ctx, span := c.tracer.Start(ctx, "authority."+OperationComplianceCheck)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		failure := &domain.AuthorityError{Operation: OperationComplianceCheck, Kind: domain.FailureSerialization, Err: err}
		return domain.CheckResult{Err: c.finish(span, failure)}
	}
	header := baseHeader()
	header.Set("Authorization", basicAuth(cred))
	req := request{
		operation: OperationComplianceCheck,
		url:       endpoint,
		header:    header,
		body:      body,
	}

	policy := c.retryPolicy()
	for attempt := 1; ; attempt++ {
		status, respBody, err := c.do(ctx, req)
		if err != nil {
			kind := classify(ctx, err)
			if kind.Retryable() && attempt < c.cfg.MaxAttempts {
				delay := policy.NextBackOff()
				c.log.Warn("compliance check failed, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
				c.metrics.IncRetry(req.operation)
				if serr := c.sleeper.Sleep(ctx, delay); serr != nil {
					failure := &domain.AuthorityError{Operation: req.operation, Kind: domain.FailureCancelled, Attempts: attempt, Err: serr}
					return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
				}
				continue
			}
			failure := &domain.AuthorityError{Operation: req.operation, Kind: kind, Attempts: attempt, Err: err}
			return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			failure := statusFailure(req.operation, status, respBody)
			failure.Attempts = attempt
			return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
		}
		if status >= http.StatusInternalServerError && attempt < c.cfg.MaxAttempts {
			delay := policy.NextBackOff()
			c.log.Warn("compliance check unavailable, retrying",
				zap.Int("attempt", attempt),
				zap.Int("status", status),
				zap.Duration("delay", delay),
			)
			c.metrics.IncRetry(req.operation)
			if serr := c.sleeper.Sleep(ctx, delay); serr != nil {
				failure := &domain.AuthorityError{Operation: req.operation, Kind: domain.FailureCancelled, Status: status, Attempts: attempt, Err: serr}
				return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
			}
			continue
		}
		if status >= http.StatusInternalServerError {
			failure := &domain.AuthorityError{
				Operation: req.operation,
				Kind:      domain.FailureTransport,
				Status:    status,
				Reason:    extractReason(respBody),
				Attempts:  attempt,
			}
			return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
		}

		var resp domain.ComplianceResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			failure := &domain.AuthorityError{Operation: req.operation, Kind: domain.FailureSerialization, Status: status, Attempts: attempt, Err: err}
			return domain.CheckResult{Attempts: attempt, Err: c.finish(span, failure)}
		}

		outcome := metrics.AuthorityOutcomeSuccess
		if status >= http.StatusBadRequest {
			outcome = metrics.AuthorityOutcomeRejected
		}
		c.metrics.IncCall(req.operation, outcome)
		span.SetAttributes(
			attribute.Int("authority.attempts", attempt),
			attribute.Int("http.status_code", status),
		)
		return domain.CheckResult{Response: &resp, Attempts: attempt}
	}
}

// retryPolicy doubles from 2*BaseDelay without jitter, so 2s then 4s with
// the defaults. Delays run through the injected sleeper.
func (c *Client) retryPolicy() backoff.BackOff {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     2 * c.cfg.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         backoff.DefaultMaxInterval,
	}
	policy.Reset()
	return policy
}

func (c *Client) do(ctx context.Context, req request) (int, []byte, error) {
	httpReq, err := req.build(ctx)
	if err != nil {
		return 0, nil, err
	}
	started := time.Now()
	resp, err := c.http.Do(httpReq)
	c.metrics.ObserveAttempt(req.operation, time.Since(started))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) finish(span trace.Span, failure *domain.AuthorityError) error {
	c.metrics.IncCall(failure.Operation, string(failure.Kind))
	span.SetAttributes(
		attribute.Int("authority.attempts", failure.Attempts),
		attribute.String("authority.failure", string(failure.Kind)),
	)
	span.SetStatus(codes.Error, failure.Error())
	c.log.Warn("authority call failed",
		zap.String("operation", failure.Operation),
		zap.String("kind", string(failure.Kind)),
		zap.Int("status", failure.Status),
		zap.Int("attempts", failure.Attempts),
		zap.String("reason", failure.Reason),
		zap.Error(failure.Err),
	)
	return failure
}

func statusFailure(operation string, status int, body []byte) *domain.AuthorityError {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.AuthorityError{
			Operation: operation,
			Kind:      domain.FailureAuthentication,
			Status:    status,
			Reason:    extractReason(body),
		}
	case status >= http.StatusInternalServerError:
		return &domain.AuthorityError{
			Operation: operation,
			Kind:      domain.FailureTransport,
			Status:    status,
			Reason:    extractReason(body),
		}
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return &domain.AuthorityError{
			Operation: operation,
			Kind:      domain.FailureRejected,
			Status:    status,
			Reason:    extractReason(body),
		}
	}
	return nil
}

// classify maps a failed round trip to a failure kind. A cancelled caller
// context wins over whatever error the transport reported.
func classify(ctx context.Context, err error) domain.FailureKind {
	if ctx.Err() != nil {
		return domain.FailureCancelled
	}
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
	)
	switch {
	case errors.As(err, &unknownAuthority),
		errors.As(err, &invalidCert),
		errors.As(err, &hostname),
		errors.As(err, &verification):
		return domain.FailureAuthentication
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return domain.FailureSerialization
	}
	return domain.FailureTransport
}

type errorBody struct {
	Message            string `json:"message"`
	Code               string `json:"code"`
	DispositionMessage string `json:"dispositionMessage"`
	Errors             []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func extractReason(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		messages := make([]string, 0, len(parsed.Errors)+1)
		if msg := firstNonEmpty(parsed.Message, parsed.DispositionMessage); msg != "" {
			messages = append(messages, msg)
		}
		for _, e := range parsed.Errors {
			if e.Message != "" {
				messages = append(messages, e.Message)
			}
		}
		if len(messages) > 0 {
			return truncate(strings.Join(messages, "; "))
		}
		if parsed.Code != "" {
			return parsed.Code
		}
	}
	return truncate(string(body))
}

// truncate bounds s to maxReasonLength bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxReasonLength {
		return s
	}
	cut := maxReasonLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(" + strconv.Itoa(len(s)-cut) + " more bytes)"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
