// Package alerts implements the rule evaluation engine and webhook delivery
// for prediction drift alerts. Rules are evaluated against the prediction
// service stats. Each state change is posted to Teams, Slack, or generic HTTP
// targets with the rule condition, the stats that triggered it, and the
// serving model's schema version and training time.
package alerts
