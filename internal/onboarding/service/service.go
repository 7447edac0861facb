package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/chain"
	"github.com/smallbiznis/egsbridge/internal/clock"
	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/observability/metrics"
	"github.com/smallbiznis/egsbridge/internal/onboarding/artifact"
	"github.com/smallbiznis/egsbridge/internal/onboarding/csr"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
	"github.com/smallbiznis/egsbridge/internal/onboarding/lock"
)

const (
	credentialCompliance = "compliance"
	credentialProduction = "production"

	outcomeSuccess = "success"
	outcomeInvalid = "invalid"
)

// Config tunes onboarding runs.
type Config struct {
	Policy         domain.PCSIDPolicy
	LockTTL        time.Duration
	SessionTimeout time.Duration
}

func NewConfig(cfg config.Config) Config {
	return Config{
		Policy:         domain.ParsePCSIDPolicy(cfg.Onboarding.PCSIDPolicy),
		LockTTL:        cfg.Onboarding.LockTTL,
		SessionTimeout: cfg.Onboarding.SessionTimeout,
	}
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Config    Config
	Client    domain.AuthorityClient
	Samples   domain.SampleBuilder
	Endpoints domain.EndpointSource
	Repo      domain.Repository
	Locker    domain.Locker
	Generator csr.Generator    `optional:"true"`
	Clock     clock.Clock      `optional:"true"`
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	cfg       Config
	client    domain.AuthorityClient
	samples   domain.SampleBuilder
	endpoints domain.EndpointSource
	repo      domain.Repository
	locker    domain.Locker
	generator csr.Generator
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func NewService(p Params) domain.Service {
	generator := p.Generator
	if generator == nil {
		generator = csr.NewGenerator()
	}
	c := p.Clock
	if c == nil {
		c = clock.NewClock()
	}
	cfg := p.Config
	if cfg.Policy == "" {
		cfg.Policy = domain.PolicyAny
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = 3 * time.Minute
	}
	return &Service{
		log:       p.Log.Named("onboarding.orchestrator"),
		cfg:       cfg,
		client:    p.Client,
		samples:   p.Samples,
		endpoints: p.Endpoints,
		repo:      p.Repo,
		locker:    p.Locker,
		generator: generator,
		clock:     c,
		metrics:   p.Metrics,
	}
}

func (s *Service) GenerateCSR(ctx context.Context, req domain.GenerateCSRRequest) (*domain.GenerateCSRResponse, error) {
	input, err := csr.Prepare(req.CSR, req.Environment)
	if err != nil {
		return nil, err
	}
	generated, err := s.generator.Generate(ctx, input, req.Environment)
	if err != nil {
		return nil, err
	}
	return &domain.GenerateCSRResponse{
		CSR:           generated.CSR,
		PrivateKeyPEM: generated.PrivateKeyPEM,
		Input:         input,
		Messages:      generated.Messages,
	}, nil
}

// IssueCompliance exchanges the unit's CSR and an OTP for its compliance
// credential.
func (s *Service) IssueCompliance(ctx context.Context, req domain.IssueComplianceRequest) (*domain.IssueComplianceResponse, error) {
	cert := req.Certificate
	if cert.GeneratedCSR == "" {
		return nil, domain.ErrMissingCSR
	}
	if req.OTP == "" {
		return nil, domain.ErrMissingOTP
	}

	endpoints := s.endpoints.Endpoints(cert.EnvironmentType).Override(cert)
	resp, err := s.client.IssueComplianceCSID(ctx, endpoints.ComplianceCSID, req.OTP, cert.GeneratedCSR)
	if err != nil {
		s.metrics.RecordCredentialIssuance(ctx, credentialCompliance, failureOutcome(err))
		return nil, err
	}
	s.metrics.RecordCredentialIssuance(ctx, credentialCompliance, outcomeSuccess)

	now := s.clock.Now()
	cert.CCSIDBinaryToken = resp.BinarySecurityToken
	cert.CCSIDSecret = resp.Secret
	cert.CCSIDComplianceRequestID = string(resp.RequestID)

	s.log.Info("compliance credential issued",
		zap.String("unit", cert.Key()),
		zap.String("environment", string(cert.EnvironmentType)),
		zap.String("request_id", cert.CCSIDComplianceRequestID),
		artifact.Secret("token", resp.BinarySecurityToken),
	)

	s.persist(ctx, cert, func(state *domain.CredentialState) {
		state.Tier = domain.TierCompliance
		state.ComplianceRequestID = cert.CCSIDComplianceRequestID
		state.CCSIDIssuedAt = &now
		state.PCSIDIssuedAt = nil
		state.FlowOutcomes = nil
		genesis := chain.Genesis()
		state.ChainCounter = genesis.Counter
		state.ChainHash = genesis.Hash
	})

	return &domain.IssueComplianceResponse{
		Credential: domain.Credential{
			BinarySecurityToken: resp.BinarySecurityToken,
			Secret:              resp.Secret,
			RequestID:           cert.CCSIDComplianceRequestID,
			IssuedAt:            now,
		},
		Certificate: cert,
	}, nil
}

// Onboard runs the compliance flows enabled for the unit and, when the
// policy allows, requests its production credential. Flow failures are
// reported in the result. The returned error is non-nil only when the run
// could not start or production issuance failed; in the latter case the
// result is returned as well.
func (s *Service) Onboard(ctx context.Context, req domain.OnboardRequest) (*domain.RunResult, error) {
	cert := req.Certificate
	if !cert.HasComplianceCredential() {
		return nil, domain.ErrMissingComplianceCredential
	}
	functions := cert.Functions()
	if !functions.Any() {
		return nil, domain.ErrNoEnabledFlow
	}

	key := lock.Key(cert.Key(), string(cert.EnvironmentType))
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire onboarding lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrOnboardingInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release onboarding lock failed", zap.String("unit", cert.Key()), zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SessionTimeout)
	defer cancel()

	endpoints := s.endpoints.Endpoints(cert.EnvironmentType).Override(cert)
	cred := domain.Credentials{BinarySecurityToken: cert.CCSIDBinaryToken, Secret: cert.CCSIDSecret}

	result := &domain.RunResult{Tier: domain.TierCompliance, Chain: chain.Genesis()}
	running := chain.Genesis()
	advanced := false
	for _, flow := range enabledFlows(functions) {
		start := chain.Genesis()
		if advanced {
			start = running
		}
		outcome := s.runFlow(ctx, flow, start, cert, endpoints.ComplianceCheck, cred)
		if outcome.Completed {
			running = outcome.Chain
			advanced = true
		}
		result.Flows = append(result.Flows, outcome)
	}
	result.Chain = running

	var issueErr error
	if s.eligible(result.Flows) {
		result.Tier = domain.TierComplianceChecked
		issueErr = s.issueProduction(ctx, &cert, endpoints.ProductionCSID, cred, result)
	}
	result.Certificate = cert

	s.persist(ctx, cert, func(state *domain.CredentialState) {
		state.Tier = result.Tier
		state.ComplianceRequestID = cert.CCSIDComplianceRequestID
		state.SetOutcomes(result.Flows)
		state.ChainCounter = result.Chain.Counter
		state.ChainHash = result.Chain.Hash
		if result.Production != nil {
			issued := result.Production.IssuedAt
			state.PCSIDIssuedAt = &issued
		}
	})
	s.metrics.RecordOnboardingRun(ctx, string(cert.EnvironmentType), string(result.Tier))

	s.log.Info("onboarding run finished",
		zap.String("unit", cert.Key()),
		zap.String("environment", string(cert.EnvironmentType)),
		zap.String("tier", string(result.Tier)),
		zap.Int64("icv", result.Chain.Counter),
		zap.Int("flows", len(result.Flows)),
	)

	if issueErr != nil {
		return result, issueErr
	}
	return result, nil
}

func (s *Service) runFlow(
	ctx context.Context,
	flow domain.Flow,
	start chain.State,
	cert certificate.Info,
	endpoint string,
	cred domain.Credentials,
) domain.FlowOutcome {
	outcome := domain.FlowOutcome{Flow: flow, Chain: start.Normalize()}
	log := s.log.With(zap.String("unit", cert.Key()), zap.String("flow", string(flow)))

	for _, kind := range domain.SampleSequence {
		if err := ctx.Err(); err != nil {
			outcome.FailedAt = kind
			outcome.Reason = string(domain.FailureCancelled)
			s.metrics.RecordComplianceCheck(ctx, string(flow), string(domain.FailureCancelled))
			return outcome
		}

		sample, err := s.samples.Build(ctx, domain.SampleSpec{
			Flow:        flow,
			Kind:        kind,
			Chain:       outcome.Chain,
			Certificate: cert,
		})
		if err != nil {
			log.Warn("compliance sample could not be built", zap.String("kind", string(kind)), zap.Error(err))
			outcome.FailedAt = kind
			outcome.Reason = outcomeInvalid
			s.metrics.RecordComplianceCheck(ctx, string(flow), outcomeInvalid)
			return outcome
		}

		res := s.client.CheckCompliance(ctx, endpoint, cred, sample.Request())
		if res.Response == nil {
			reason := failureOutcome(res.Err)
			log.Warn("compliance check produced no result",
				zap.String("kind", string(kind)),
				zap.String("reason", reason),
				zap.Int("attempts", res.Attempts),
				zap.Error(res.Err),
			)
			outcome.FailedAt = kind
			outcome.Reason = reason
			s.metrics.RecordComplianceCheck(ctx, string(flow), reason)
			return outcome
		}
		if !flow.Accepts(res.Response) {
			log.Warn("compliance sample rejected",
				zap.String("kind", string(kind)),
				zap.String("reason", string(domain.FailureRejected)),
				zap.String("clearance_status", res.Response.ClearanceStatus),
				zap.String("reporting_status", res.Response.ReportingStatus),
				zap.Int("errors", len(res.Response.ValidationResults.ErrorMessages)),
			)
			outcome.FailedAt = kind
			outcome.Reason = string(domain.FailureRejected)
			s.metrics.RecordComplianceCheck(ctx, string(flow), string(domain.FailureRejected))
			return outcome
		}

		outcome.Chain = outcome.Chain.Advance(sample.InvoiceHash)
		outcome.Accepted++
		s.metrics.RecordComplianceCheck(ctx, string(flow), outcomeSuccess)
		log.Debug("compliance sample accepted",
			zap.String("kind", string(kind)),
			zap.Int64("icv", outcome.Chain.Counter),
		)
	}

	outcome.Completed = true
	return outcome
}

func (s *Service) eligible(flows []domain.FlowOutcome) bool {
	completed := 0
	for _, f := range flows {
		if f.Completed {
			completed++
		}
	}
	if s.cfg.Policy == domain.PolicyAny {
		return completed > 0
	}
	return completed > 0 && completed == len(flows)
}

func (s *Service) issueProduction(
	ctx context.Context,
	cert *certificate.Info,
	endpoint string,
	cred domain.Credentials,
	result *domain.RunResult,
) error {
	resp, err := s.client.IssueProductionCSID(ctx, endpoint, cred, cert.CCSIDComplianceRequestID)
	if err != nil {
		s.metrics.RecordCredentialIssuance(ctx, credentialProduction, failureOutcome(err))
		return err
	}
	s.metrics.RecordCredentialIssuance(ctx, credentialProduction, outcomeSuccess)

	now := s.clock.Now()
	cert.PCSIDBinaryToken = resp.BinarySecurityToken
	cert.PCSIDSecret = resp.Secret
	cert.RegisteredDate = &now

	result.Tier = domain.TierProduction
	result.Production = &domain.Credential{
		BinarySecurityToken: resp.BinarySecurityToken,
		Secret:              resp.Secret,
		RequestID:           string(resp.RequestID),
		IssuedAt:            now,
	}
	s.log.Info("production credential issued",
		zap.String("unit", cert.Key()),
		artifact.Secret("token", resp.BinarySecurityToken),
	)
	return nil
}

// Finish prepares the unit for production use: the stored certificate loses
// its API secret, the chain restarts at genesis and the operator bundle is
// rendered.
func (s *Service) Finish(ctx context.Context, req domain.FinishRequest) (*domain.FinishResult, error) {
	cert := req.Certificate
	if !cert.HasProductionCredential() {
		return nil, domain.ErrMissingProductionCredential
	}

	stored := cert
	stored.APISecret = ""
	encoded, err := certificate.Encode(stored)
	if err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}

	files, err := artifact.Files(cert, encoded)
	if err != nil {
		return nil, err
	}

	genesis := chain.Genesis()
	s.persist(ctx, cert, func(state *domain.CredentialState) {
		state.Tier = domain.TierProduction
		state.ChainCounter = genesis.Counter
		state.ChainHash = genesis.Hash
	})

	return &domain.FinishResult{
		EncodedCertificate: encoded,
		Chain:              genesis,
		Files:              files,
		BundleName:         artifact.BundleName(cert),
	}, nil
}

func (s *Service) GetState(ctx context.Context, key, environment string) (*domain.CredentialState, error) {
	if key == "" || environment == "" {
		return nil, domain.ErrInvalidRequest
	}
	return s.repo.Get(ctx, key, environment)
}

// persist applies mutate to the stored state of the unit. Credentials live
// in the certificate handed back to the caller, so a failed write is logged
// and never fails the operation.
func (s *Service) persist(ctx context.Context, cert certificate.Info, mutate func(*domain.CredentialState)) {
	ctx = context.WithoutCancel(ctx)
	key := cert.Key()
	env := string(cert.EnvironmentType)

	state, err := s.repo.Get(ctx, key, env)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			s.log.Error("load onboarding state failed", zap.String("unit", key), zap.Error(err))
			return
		}
		state = &domain.CredentialState{CertificateKey: key, Environment: env, Tier: domain.TierNone}
	}
	mutate(state)
	if err := s.repo.Save(ctx, state); err != nil {
		s.log.Error("save onboarding state failed", zap.String("unit", key), zap.Error(err))
	}
}

func enabledFlows(f certificate.Functions) []domain.Flow {
	flows := make([]domain.Flow, 0, 2)
	if f.Clearance() {
		flows = append(flows, domain.FlowClearance)
	}
	if f.Reporting() {
		flows = append(flows, domain.FlowReporting)
	}
	return flows
}

func failureOutcome(err error) string {
	var authErr *domain.AuthorityError
	if errors.As(err, &authErr) {
		return string(authErr.Kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return string(domain.FailureCancelled)
	}
	if err == nil {
		return string(domain.FailureTransport)
	}
	return outcomeInvalid
}
