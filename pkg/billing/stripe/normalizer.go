package stripe

import (
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v83"

	"github.com/mihaimyh/sheetsync/pkg/sheetsync"
)

// Stripe event types the normalizer understands.
const (
	eventCheckoutSessionCompleted   = "checkout.session.completed"
	eventCustomerSubscriptionUpdate = "customer.subscription.updated"
	eventCustomerSubscriptionDelete = "customer.subscription.deleted"
	eventCustomerDeleted            = "customer.deleted"
)

// Ignore reasons.
const (
	reasonUnhandledType    = "unhandled event type"
	reasonMalformedPayload = "malformed payload"
	reasonNoEmail          = "no email"
	reasonNoSubscriptionID = "no subscription id"
	reasonCustomerDeleted  = "customer deleted"
)

// Normalizer maps verified Stripe events to intents. It never touches the store
// and never fails: events it cannot use become sheetsync.Ignore.
type Normalizer struct {
	emailFieldKey string
	logger        sheetsync.Logger
}

// NewNormalizer creates a normalizer. emailFieldKey selects the checkout custom
// field carrying the email; when empty the first text custom field is used.
func NewNormalizer(emailFieldKey string, logger sheetsync.Logger) *Normalizer {
	if logger == nil {
		logger = &sheetsync.NoopLogger{}
	}
	return &Normalizer{
		emailFieldKey: strings.TrimSpace(emailFieldKey),
		logger:        logger,
	}
}

// Normalize returns the intent for event.
func (n *Normalizer) Normalize(event *stripe.Event) sheetsync.Intent {
	if event == nil || event.Data == nil {
		n.logger.Warn("stripe event without data")
		return sheetsync.Ignore{Reason: reasonMalformedPayload}
	}

	switch string(event.Type) {
	case eventCheckoutSessionCompleted:
		return n.checkoutCompleted(event)
	case eventCustomerSubscriptionUpdate:
		return n.subscriptionChanged(event, "")
	case eventCustomerSubscriptionDelete:
		// Deletion always means canceled, whatever status the payload carries.
		return n.subscriptionChanged(event, sheetsync.StatusCanceled)
	case eventCustomerDeleted:
		// The event carries no subscription id and no customer to email mapping is
		// kept, so there is nothing to address. Cancellation arrives through
		// customer.subscription.deleted.
		n.logger.Info("customer deleted, no row change", field("event_id", event.ID))
		return sheetsync.Ignore{Reason: reasonCustomerDeleted}
	default:
		n.logger.Debug("ignoring stripe event", field("event_id", event.ID), field("type", string(event.Type)))
		return sheetsync.Ignore{Reason: reasonUnhandledType}
	}
}

// checkoutPayload holds the checkout session fields the mapping reads. Fields
// outside it may change shape between API versions without affecting decoding.
type checkoutPayload struct {
	ID              string           `json:"id"`
	CustomerEmail   string           `json:"customer_email"`
	CustomerDetails *customerDetails `json:"customer_details"`
	CustomFields    []*customField   `json:"custom_fields"`
	Subscription    *expandableID    `json:"subscription"`
}

// customerDetails carries email, or email_address on some payloads.
type customerDetails struct {
	Email        string `json:"email"`
	EmailAddress string `json:"email_address"`
}

type customField struct {
	Key  string                                 `json:"key"`
	Type stripe.CheckoutSessionCustomFieldType `json:"type"`
	Text *struct {
		Value string `json:"value"`
	} `json:"text"`
	Dropdown *struct {
		Value string `json:"value"`
	} `json:"dropdown"`
}

// value returns the entered value of a text or dropdown field.
func (f *customField) value() string {
	switch f.Type {
	case stripe.CheckoutSessionCustomFieldTypeText:
		if f.Text != nil {
			return f.Text.Value
		}
	case stripe.CheckoutSessionCustomFieldTypeDropdown:
		if f.Dropdown != nil {
			return f.Dropdown.Value
		}
	}
	return ""
}

// expandableID is a reference Stripe sends either as an id string or as the
// expanded object.
type expandableID struct {
	ID string
}

func (e *expandableID) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		e.ID = id
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

// subscriptionPayload holds the subscription fields the mapping reads.
type subscriptionPayload struct {
	ID     string                    `json:"id"`
	Status stripe.SubscriptionStatus `json:"status"`
}

func (n *Normalizer) checkoutCompleted(event *stripe.Event) sheetsync.Intent {
	var session checkoutPayload
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		n.logger.Warn("malformed checkout session payload",
			field("event_id", event.ID), field("error", err.Error()))
		return sheetsync.Ignore{Reason: reasonMalformedPayload}
	}

	email := n.resolveEmail(&session)
	if email == "" {
		n.logger.Warn("checkout session without email",
			field("event_id", event.ID), field("session_id", session.ID))
		return sheetsync.Ignore{Reason: reasonNoEmail}
	}

	subscriptionID := ""
	if session.Subscription != nil {
		subscriptionID = strings.TrimSpace(session.Subscription.ID)
	}
	return sheetsync.Activate{Email: email, SubscriptionID: subscriptionID}
}

// resolveEmail returns the first non-empty candidate, trimmed: the configured
// custom field (or the first text custom field), then customer_email, then
// customer_details.email, then customer_details.email_address.
func (n *Normalizer) resolveEmail(session *checkoutPayload) string {
	candidates := []string{n.customFieldEmail(session), session.CustomerEmail}
	if d := session.CustomerDetails; d != nil {
		candidates = append(candidates, d.Email, d.EmailAddress)
	}

	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func (n *Normalizer) customFieldEmail(session *checkoutPayload) string {
	for _, f := range session.CustomFields {
		if f == nil {
			continue
		}
		if n.emailFieldKey != "" {
			if f.Key == n.emailFieldKey {
				return f.value()
			}
			continue
		}
		if f.Type == stripe.CheckoutSessionCustomFieldTypeText && strings.TrimSpace(f.value()) != "" {
			return f.value()
		}
	}
	return ""
}

// subscriptionChanged maps a subscription event to UpdateStatus. A non-empty
// status overrides the payload's.
func (n *Normalizer) subscriptionChanged(event *stripe.Event, status string) sheetsync.Intent {
	var sub subscriptionPayload
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		n.logger.Warn("malformed subscription payload",
			field("event_id", event.ID), field("error", err.Error()))
		return sheetsync.Ignore{Reason: reasonMalformedPayload}
	}

	id := strings.TrimSpace(sub.ID)
	if id == "" {
		n.logger.Warn("subscription event without id", field("event_id", event.ID))
		return sheetsync.Ignore{Reason: reasonNoSubscriptionID}
	}
	if status == "" {
		status = string(sub.Status)
	}
	if status == "" {
		n.logger.Warn("subscription event without status",
			field("event_id", event.ID), field("subscription_id", id))
		return sheetsync.Ignore{Reason: reasonMalformedPayload}
	}
	return sheetsync.UpdateStatus{SubscriptionID: id, Status: status}
}

func field(key string, value interface{}) sheetsync.Field {
	return sheetsync.Field{Key: key, Value: value}
}
