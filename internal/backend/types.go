package backend

import "time"

// CustomerProfile is an immutable snapshot returned by FetchProfile
type CustomerProfile struct {
	ID             string   `json:"customer_id"`
	Name           string   `json:"name"`
	Phone          string   `json:"phone"`
	Plan           string   `json:"plan"`
	Status         string   `json:"status"`
	Balance        float64  `json:"balance"`
	Region         string   `json:"region"`
	Language       string   `json:"language"`
	ActiveSince    string   `json:"active_since"`
	BillCycleDay   string   `json:"bill_cycle"`
	LinkedAccounts []string `json:"linked_accounts,omitempty"`
}

// PlanOffering is one entry in a regional plan catalog
type PlanOffering struct {
	Name     string  `json:"name" yaml:"name"`
	Price    float64 `json:"price" yaml:"price"`
	Data     string  `json:"data" yaml:"data"`
	Voice    string  `json:"voice,omitempty" yaml:"voice"`
	SMS      string  `json:"sms,omitempty" yaml:"sms"`
	Validity string  `json:"validity" yaml:"validity"`
	Region   string  `json:"region" yaml:"-"`
}

// BillingRecord is one billing period
type BillingRecord struct {
	Period string  `json:"month"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// ChannelStatus describes one service channel (voice, data or SMS)
type ChannelStatus struct {
	Status string  `json:"status"`
	Quota  string  `json:"quota,omitempty"`
	Used   float64 `json:"used_gb,omitempty"`
	Limit  float64 `json:"limit_gb,omitempty"`
}

// ServiceStatusSnapshot is a real-time probe result; it is never cached
type ServiceStatusSnapshot struct {
	CustomerID string        `json:"customer_id"`
	Voice      ChannelStatus `json:"voice"`
	Data       ChannelStatus `json:"data"`
	SMS        ChannelStatus `json:"sms"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// Healthy reports whether every channel is active
func (s ServiceStatusSnapshot) Healthy() bool {
	return s.Voice.Status == StatusActive && s.Data.Status == StatusActive && s.SMS.Status == StatusActive
}

// ChangeTicket acknowledges a submitted plan change
type ChangeTicket struct {
	ID            string `json:"ticket_id"`
	CustomerID    string `json:"customer_id"`
	Plan          string `json:"plan"`
	EffectiveDate string `json:"effective_date"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

const (
	StatusActive    = "Active"
	StatusPaid      = "Paid"
	TicketSubmitted = "submitted"

	// DateLayout is used for effective dates
	DateLayout = "2006-01-02"
)
