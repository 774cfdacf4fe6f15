package access

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Advisory statuses returned by the justification precheck. Unavailable is
// synthesized client-side when the precheck endpoint cannot be reached; it
// is advisory only and never blocks submission.
const (
	AdvisoryValid        = "valid"
	AdvisoryWeak         = "weak"
	AdvisoryInsufficient = "insufficient"
	AdvisoryUnavailable  = "unavailable"
)

type Advisory struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

const DefaultPrecheckDebounce = 600 * time.Millisecond

// Prechecker turns justification keystrokes into debounced advisory
// lookups. Each Observe call resets the timer, so only the last text in a
// burst reaches the backend.
type Prechecker struct {
	gw    Gateway
	delay time.Duration
	log   zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

func NewPrechecker(gw Gateway, delay time.Duration, log zerolog.Logger) *Prechecker {
	if delay <= 0 {
		delay = DefaultPrecheckDebounce
	}
	return &Prechecker{gw: gw, delay: delay, log: log.With().Str("component", "precheck").Logger()}
}

// Observe schedules an advisory for text, delivering it through deliver
// after the debounce window. Empty text short-circuits to insufficient
// without any network traffic. A newer Observe supersedes an older one
// even if the older lookup is already running.
func (p *Prechecker) Observe(ctx context.Context, text string, deliver func(Advisory)) {
	text = strings.TrimSpace(text)

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	if text == "" {
		deliver(Advisory{Status: AdvisoryInsufficient, Message: "Justification is required"})
		return
	}

	p.mu.Lock()
	p.timer = time.AfterFunc(p.delay, func() {
		adv := p.lookup(ctx, text)
		p.mu.Lock()
		stale := seq != p.seq
		p.mu.Unlock()
		if !stale {
			deliver(adv)
		}
	})
	p.mu.Unlock()
}

// Stop cancels any pending lookup.
func (p *Prechecker) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.seq++
}

func (p *Prechecker) lookup(ctx context.Context, text string) Advisory {
	adv, err := p.gw.Precheck(ctx, text)
	if err != nil || adv == nil {
		p.log.Debug().Err(err).Msg("precheck unavailable")
		return Advisory{Status: AdvisoryUnavailable, Message: "Justification analysis unavailable"}
	}
	switch adv.Status {
	case AdvisoryValid, AdvisoryWeak, AdvisoryInsufficient:
		return *adv
	}
	return Advisory{Status: AdvisoryUnavailable, Message: "Justification analysis unavailable"}
}
