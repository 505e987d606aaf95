package sheetsync

import "strings"

// Subscription statuses written to the status column.
const (
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// UserRecord is one row of the user table.
type UserRecord struct {
	// Email is the normalized (trimmed, lower-cased) primary key
	Email string

	// Status is the subscription status as stored. Empty means the row predates
	// status tracking and is treated as active.
	Status string

	// SubscriptionID is the optional secondary key (case-sensitive)
	SubscriptionID string
}

// EffectiveStatus returns the stored status, or StatusActive for legacy rows.
// A cell holding only whitespace counts as empty.
func (r UserRecord) EffectiveStatus() string {
	if strings.TrimSpace(r.Status) == "" {
		return StatusActive
	}
	return r.Status
}

// Paid reports whether the record grants access. The status is compared
// case-insensitively and untrimmed.
func (r UserRecord) Paid() bool {
	return strings.ToLower(r.EffectiveStatus()) == StatusActive
}

// PaidStatus is the answer to a paid-status lookup.
type PaidStatus struct {
	Paid   bool   `json:"paid"`
	Status string `json:"status,omitempty"`
}

// Intent is a normalized instruction derived from a provider event.
// The set of implementations is closed: Activate, UpdateStatus and Ignore.
type Intent interface {
	// Kind returns a short label used for logs and metrics
	Kind() string
	intent()
}

// Activate creates or re-activates the record for Email.
type Activate struct {
	Email          string
	SubscriptionID string
}

// UpdateStatus sets the status of the record holding SubscriptionID.
type UpdateStatus struct {
	SubscriptionID string
	Status         string
}

// Ignore is an event that does not change any record.
type Ignore struct {
	Reason string
}

func (Activate) Kind() string     { return "activate" }
func (UpdateStatus) Kind() string { return "update_status" }
func (Ignore) Kind() string       { return "ignore" }

func (Activate) intent()     {}
func (UpdateStatus) intent() {}
func (Ignore) intent()       {}

// Outcome describes what applying an intent did to the table.
type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeNotFound Outcome = "not_found"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeFailed   Outcome = "failed"
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeSubscriptionID trims a subscription id. Ids are case-sensitive.
func NormalizeSubscriptionID(id string) string {
	return strings.TrimSpace(id)
}
