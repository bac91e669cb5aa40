package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/delaycast/delaycast/server/internal/predict"
)

// Notification is the body posted to http webhooks. Slack and Teams
// receive the same content rendered as their native cards.
type Notification struct {
	Service string        `json:"service"`
	Alert   Alert         `json:"alert"`
	Stats   predict.Stats `json:"stats"`
	Model   *ModelContext `json:"model,omitempty"`
}

// ModelContext identifies the model that was serving when the rule changed state.
type ModelContext struct {
	Trained       bool       `json:"trained"`
	SchemaVersion string     `json:"schema_version"`
	TrainedAt     *time.Time `json:"trained_at,omitempty"`
	Operators     int        `json:"operators"`
	// TrainingDelayRate is the delay percentage of the training data, the
	// baseline for delay_rate rules.
	TrainingDelayRate float64 `json:"training_delay_rate"`
}

// fact is one labelled line of a chat card.
type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (e *Engine) notification(a *Alert, st predict.Stats) Notification {
	n := Notification{Service: "delaycast", Alert: *a, Stats: st}
	if e.model != nil {
		info := e.model()
		mc := &ModelContext{
			Trained:       info.Trained,
			SchemaVersion: info.SchemaVersion,
			TrainedAt:     info.TrainedAt,
			Operators:     len(info.Operators),
		}
		if info.Report != nil {
			mc.TrainingDelayRate = info.Report.DelayRate
		}
		n.Model = mc
	}
	return n
}

// title is the one-line headline of a notification.
func (n Notification) title() string {
	verb := "fired"
	if n.Alert.State == "resolved" {
		verb = "resolved"
	}
	return fmt.Sprintf("delaycast: %s %s", n.Alert.RuleName, verb)
}

func (n Notification) facts() []fact {
	st := n.Stats
	out := []fact{
		{"Condition", fmt.Sprintf("`%s`", n.Alert.Condition)},
		{"Value", strconvFloat(n.Alert.Value)},
		{"Delay rate", fmt.Sprintf("%.1f%% of %d flights", st.DelayRate, st.Flights)},
		{"Reject rate", fmt.Sprintf("%.1f%% of %d requests", st.RejectRate, st.Requests)},
		{"Fallbacks", fmt.Sprintf("%d", st.Fallbacks)},
	}
	if m := n.Model; m != nil {
		model := "not trained"
		if m.Trained {
			model = fmt.Sprintf("schema %s, %d operators", m.SchemaVersion, m.Operators)
			if m.TrainedAt != nil {
				model += ", trained " + m.TrainedAt.UTC().Format(time.RFC3339)
			}
		}
		out = append(out, fact{"Model", model})
		if m.Trained {
			out = append(out, fact{"Training delay rate", fmt.Sprintf("%.1f%%", m.TrainingDelayRate)})
		}
	}
	return out
}

func strconvFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// deliver sends n to all configured targets. Errors are logged only.
func (e *Engine) deliver(n Notification) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}

		var body []byte
		switch wh.Type {
		case "slack":
			body = slackBody(n)
		case "teams":
			body = teamsBody(n)
		case "http":
			body, _ = json.Marshal(n)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.post(url, body); err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", n.Alert.RuleName,
				"err", err,
			)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type,
			"rule", n.Alert.RuleName,
			"state", n.Alert.State,
		)
	}
}

// slackBody renders n as a Block Kit message. "text" is the notification
// fallback shown by clients that do not render blocks.
func slackBody(n Notification) []byte {
	facts := n.facts()
	fields := make([]map[string]string, 0, len(facts))
	for _, f := range facts {
		fields = append(fields, map[string]string{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*%s*\n%s", f.Name, f.Value),
		})
	}
	// Slack allows at most 10 fields per section.
	if len(fields) > 10 {
		fields = fields[:10]
	}
	body, _ := json.Marshal(map[string]any{
		"text": fmt.Sprintf("%s %s", severityLabel(n.Alert.Severity), n.title()),
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]string{"type": "plain_text", "text": n.title()},
			},
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": n.Alert.Message},
			},
			{"type": "section", "fields": fields},
		},
	})
	return body
}

// teamsBody renders n as an Office 365 MessageCard with one facts section.
func teamsBody(n Notification) []byte {
	color := severityColor(n.Alert.Severity)
	if n.Alert.State == "resolved" {
		color = resolvedColor
	}
	body, _ := json.Marshal(map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": color,
		"summary":    n.title(),
		"title":      n.title(),
		"text":       n.Alert.Message,
		"sections": []map[string]any{
			{"facts": n.facts()},
		},
	})
	return body
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

const resolvedColor = "2EB67D"

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
