package access

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/medtrust/console/internal/domain/auditlog"
	"github.com/medtrust/console/internal/domain/network"
	"github.com/medtrust/console/internal/platform/notify"
)

// TrustReader re-reads the actor's trust score after a settled attempt so
// the displayed score reflects the server-side adjustment.
type TrustReader interface {
	TrustScore(ctx context.Context) (int, error)
}

// LogRefresher re-fetches the actor's audit feed. It runs after every
// settled or failed attempt so the log view never lags the attempt that
// produced it.
type LogRefresher interface {
	Refresh(ctx context.Context) error
}

// NetworkSource reports the most recent network position.
type NetworkSource interface {
	Current() network.Status
}

// Orchestrator runs the access-request flow for one signed-in actor:
// client-side precondition gates, single-flight submission, and the
// settlement side effects (audit write, trust re-read, log refresh).
type Orchestrator struct {
	actorName string
	actorRole string

	gw       Gateway
	trust    TrustReader
	logs     LogRefresher
	network  NetworkSource
	notifier notify.Notifier
	log      zerolog.Logger

	loginOnce sync.Once

	mu          sync.Mutex
	patient     string
	state       State
	lastOutcome *Response
}

type Config struct {
	ActorName string
	ActorRole string
	Gateway   Gateway
	Trust     TrustReader
	Logs      LogRefresher
	Network   NetworkSource
	Notifier  notify.Notifier
	Logger    zerolog.Logger
}

func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		actorName: cfg.ActorName,
		actorRole: cfg.ActorRole,
		gw:        cfg.Gateway,
		trust:     cfg.Trust,
		logs:      cfg.Logs,
		network:   cfg.Network,
		notifier:  cfg.Notifier,
		log:       cfg.Logger.With().Str("component", "access").Logger(),
	}
}

// SelectPatient switches the request context to another patient. Any
// justification being collected for the previous patient is discarded.
func (o *Orchestrator) SelectPatient(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.patient = strings.TrimSpace(name)
	if o.state == StateCollecting {
		o.state = StateIdle
	}
}

func (o *Orchestrator) SelectedPatient() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.patient
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastOutcome returns the most recently settled response, or nil before
// the first settlement.
func (o *Orchestrator) LastOutcome() *Response {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastOutcome
}

// Begin gates an attempt without touching the network. It returns
// ErrJustificationRequired when the tier needs a justification collected
// first, leaving the orchestrator in the collecting state.
func (o *Orchestrator) Begin(tier Tier) error {
	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return ErrRequestInFlight
	}
	patient := o.patient
	o.mu.Unlock()

	if err := checkPreconditions(tier, patient, o.network.Current()); err != nil {
		o.notify(notify.LevelWarning, err.(*PreconditionError).Reason)
		return err
	}
	if tier.RequiresJustification() {
		o.mu.Lock()
		o.state = StateCollecting
		o.mu.Unlock()
		return ErrJustificationRequired
	}
	return nil
}

// Cancel abandons justification collection and returns to idle.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateCollecting {
		o.state = StateIdle
	}
}

// Submit runs one access attempt end to end. Preconditions are re-checked
// at the moment of submission, a second submit while one is in flight
// returns ErrRequestInFlight without a network call, and regardless of how
// the primary call ends the audit feed is refreshed before Submit returns.
// The audit write and trust re-read only run when the attempt settled, and
// their own failures never fail the attempt.
func (o *Orchestrator) Submit(ctx context.Context, tier Tier, justification string) (*Response, error) {
	justification = strings.TrimSpace(justification)

	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	patient := o.patient
	if err := checkPreconditions(tier, patient, o.network.Current()); err != nil {
		o.mu.Unlock()
		o.notify(notify.LevelWarning, err.(*PreconditionError).Reason)
		return nil, err
	}
	if tier.RequiresJustification() && justification == "" {
		o.state = StateCollecting
		o.mu.Unlock()
		return nil, ErrJustificationRequired
	}
	o.state = StateSubmitting
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.state = StateIdle
		o.mu.Unlock()
	}()

	o.log.Info().
		Str("tier", string(tier)).
		Str("patient", patient).
		Msg("submitting access request")

	resp, err := o.gw.RequestAccess(ctx, tier, Request{
		ActorName:     o.actorName,
		ActorRole:     o.actorRole,
		PatientName:   patient,
		Justification: justification,
	})
	if err != nil {
		// The attempt never settled, so there is nothing to audit and no
		// trust adjustment to pick up. The feed still refreshes.
		o.log.Error().Err(err).Str("tier", string(tier)).Msg("access request failed")
		o.notify(notify.LevelError, "Access request failed, the server could not be reached")
		o.refreshLogs(ctx)
		return nil, err
	}

	if resp.Success {
		o.notify(notify.LevelSuccess, resp.Message)
	} else {
		o.notify(notify.LevelError, resp.Message)
	}

	status := auditlog.StatusDenied
	if resp.Success {
		status = auditlog.StatusGranted
	}
	rec := auditlog.WriteRequest{
		Name:          o.actorName,
		Role:          o.actorRole,
		ActorName:     o.actorName,
		ActorRole:     o.actorRole,
		PatientName:   patient,
		Action:        tier.Action(),
		Justification: justification,
		Status:        status,
	}
	if err := o.gw.RecordAudit(ctx, rec); err != nil {
		o.log.Debug().Err(err).Msg("audit write failed")
	}
	if o.trust != nil {
		if _, err := o.trust.TrustScore(ctx); err != nil {
			o.log.Debug().Err(err).Msg("trust refresh failed")
		}
	}
	o.refreshLogs(ctx)

	o.mu.Lock()
	o.lastOutcome = resp
	o.mu.Unlock()
	return resp, nil
}

// LogLogin records the sign-in event once per session. Failures are
// logged and dropped; a missing login row never blocks the console.
func (o *Orchestrator) LogLogin(ctx context.Context) {
	o.loginOnce.Do(func() {
		rec := auditlog.WriteRequest{
			Name:          o.actorName,
			Role:          o.actorRole,
			ActorName:     o.actorName,
			ActorRole:     o.actorRole,
			PatientName:   "N/A",
			Action:        "LOGIN",
			Justification: "User logged into system",
			Status:        auditlog.StatusSuccess,
		}
		if err := o.gw.RecordAudit(ctx, rec); err != nil {
			o.log.Debug().Err(err).Msg("login audit write failed")
		}
	})
}

func (o *Orchestrator) refreshLogs(ctx context.Context) {
	if o.logs == nil {
		return
	}
	if err := o.logs.Refresh(ctx); err != nil {
		o.log.Debug().Err(err).Msg("log refresh failed")
	}
}

func (o *Orchestrator) notify(level notify.Level, msg string) {
	if o.notifier != nil {
		o.notifier.Notify(level, msg)
	}
}
