package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/delaycast/delaycast/server/internal/config"
	"github.com/delaycast/delaycast/server/internal/predict"
)

const (
	defaultCooldown   = 15 * time.Minute
	maxHistoryLen     = 200
	recentWindowHours = 1
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	Condition  string     `json:"condition"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Engine evaluates alert rules against service stats and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig

	mu       sync.Mutex
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // last fire time per rule (for cooldown)
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	model    func() predict.ModelInfo // optional; adds model context to webhooks
	now      func() time.Time
	wg       sync.WaitGroup // in-flight deliveries
}

// New creates an Engine from the alert configuration.
// An Engine with empty rules is valid; Evaluate becomes a no-op.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// WithModel makes webhook notifications carry the serving model's schema
// version and training time. It must be called before Run.
func (e *Engine) WithModel(fn func() predict.ModelInfo) *Engine {
	e.model = fn
	return e
}

// Evaluate tests all configured rules against st.
// Alerts that fire are stored and webhook delivery is triggered asynchronously.
// Alerts that were firing but whose condition is now false are resolved.
func (e *Engine) Evaluate(st predict.Stats) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	for _, rule := range e.rules {
		fires, value := evalCondition(rule.Condition, st)

		e.mu.Lock()
		var out *Alert
		if fires {
			out = e.fire(rule, value, now)
		} else {
			out = e.resolve(rule.Name, now)
		}
		e.mu.Unlock()

		if out != nil && len(e.webhooks) > 0 {
			n := e.notification(out, st)
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.deliver(n)
			}()
		}
	}
}

// fire records a firing alert unless the rule is cooling down or already
// firing. It returns a copy to deliver, or nil. e.mu must be held.
func (e *Engine) fire(rule config.AlertRule, value float64, now time.Time) *Alert {
	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if _, firing := e.active[rule.Name]; firing {
		e.active[rule.Name].Value = value
		return nil
	}
	if last, ok := e.lastFire[rule.Name]; ok && now.Sub(last) <= cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	a := &Alert{
		ID:        fmt.Sprintf("%s:%d", rule.Name, now.UnixNano()),
		RuleName:  rule.Name,
		Condition: rule.Condition,
		Severity:  sev,
		Value:     value,
		Message:   fmt.Sprintf("[%s] %s fired: %s (value %.2f)", sev, rule.Name, rule.Condition, value),
		FiredAt:   now,
		State:     "firing",
	}
	e.active[rule.Name] = a
	e.lastFire[rule.Name] = now

	slog.Warn("alerts: fired", "rule", rule.Name, "value", value, "severity", sev)
	cp := *a
	return &cp
}

// resolve moves a firing alert to history. e.mu must be held.
func (e *Engine) resolve(name string, now time.Time) *Alert {
	a, ok := e.active[name]
	if !ok {
		return nil
	}
	resolved := now
	a.State = "resolved"
	a.ResolvedAt = &resolved
	delete(e.active, name)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}

	slog.Info("alerts: resolved", "rule", name)
	cp := *a
	return &cp
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Run evaluates source() every interval until ctx is cancelled, then waits
// for in-flight webhook deliveries.
func (e *Engine) Run(ctx context.Context, interval time.Duration, source func() predict.Stats) {
	t := time.NewTicker(interval)
	defer t.Stop()
	defer e.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.Evaluate(source())
		}
	}
}
