package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is the desired relay state a rule applies.
type Action string

const (
	ActionOn  Action = "ON"
	ActionOff Action = "OFF"
)

// Desired returns the boolean relay state the action maps to.
func (a Action) Desired() bool {
	return a == ActionOn
}

// Valid reports whether the action is one of the two known values.
func (a Action) Valid() bool {
	return a == ActionOn || a == ActionOff
}

// RuleScopeAll is the only supported rule scope: every known relay.
const RuleScopeAll = "ALL"

// Time layouts shared by the evaluator and the trigger surface.
const (
	ClockLayout     = "15:04"        // HH:mm label compared against rule times
	MinuteKeyLayout = "200601021504" // yyyyMMddHHmm idempotency bucket
)

var timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ScheduleRule is a persisted time-of-day instruction to set all relays to a
// given state once per matching minute.
type ScheduleRule struct {
	ID        string `json:"id" bson:"_id"`
	Relay     string `json:"relay" bson:"relay"` // always RuleScopeAll
	Time      string `json:"time" bson:"time"`   // "HH:MM", 24-hour
	Action    Action `json:"action" bson:"action"`
	CreatedAt int64  `json:"createdAt" bson:"created_at"` // epoch millis, display ordering only

	// LastExecutedMinute records the minute bucket of the last commit this
	// rule produced. It is the single source of truth for "already ran this
	// minute"; once it equals the current bucket the rule cannot commit
	// again until the clock moves on.
	LastExecutedMinute string `json:"_lastExecutedMinute,omitempty" bson:"last_executed_minute,omitempty"`
	LastRunAt          string `json:"lastRunAt,omitempty" bson:"last_run_at,omitempty"` // RFC3339, display only
}

// Validate checks the fields mutated by creation and edits. The evaluator
// relies on this running at the write boundary and only defensively skips
// rules that slipped past it.
func (r *ScheduleRule) Validate() error {
	if r.Relay == "" {
		r.Relay = RuleScopeAll
	}
	if r.Relay != RuleScopeAll {
		return fmt.Errorf("unsupported relay scope: %s", r.Relay)
	}
	if !r.Action.Valid() {
		return fmt.Errorf("invalid action: %q (must be ON or OFF)", r.Action)
	}
	normalized, err := NormalizeClock(r.Time)
	if err != nil {
		return err
	}
	r.Time = normalized
	return nil
}

// NormalizeClock validates an HH:MM (or H:MM) wall-clock label and returns
// it zero-padded. Hour must be 00-23, minute 00-59.
func NormalizeClock(value string) (string, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return "", errors.New("time must be in HH:MM format")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return "", errors.New("time must be in HH:MM format")
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 {
		return "", errors.New("time must be in HH:MM format")
	}
	if hour < 0 || hour > 23 {
		return "", fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return "", fmt.Errorf("minute out of range: %d", minute)
	}
	normalized := fmt.Sprintf("%02d:%02d", hour, minute)
	if !timePattern.MatchString(normalized) {
		return "", errors.New("time must be in HH:MM format")
	}
	return normalized, nil
}

// RuleStamp is the execution marker the evaluator queues for a rule that
// produced work this minute. Persisting it is what makes retries within the
// same minute no-ops.
type RuleStamp struct {
	RuleID    string
	MinuteKey string
	RunAt     time.Time
}

// ScheduleLog is an append-only audit record for one executed rule.
type ScheduleLog struct {
	ID         primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	RuleID     string             `json:"id" bson:"rule_id"`
	Relay      string             `json:"relay" bson:"relay"`
	Time       string             `json:"time" bson:"time"`
	Action     Action             `json:"action" bson:"action"`
	ExecutedAt time.Time          `json:"executedAt" bson:"executed_at"`
}
