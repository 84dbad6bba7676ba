package backend

import (
	"context"
	"time"
)

// Capability names used in events, metrics and breaker labels
const (
	CapProfile        = "get_customer_profile"
	CapCatalog        = "check_plan_availability"
	CapBilling        = "get_billing_history"
	CapServiceStatus  = "check_service_status"
	CapPlanChange     = "submit_plan_change_request"
	DefaultBudget     = 500.0
	DefaultBillMonths = 6
)

// ProfileReader looks up customer profiles
type ProfileReader interface {
	FetchProfile(ctx context.Context, customerID string) (CustomerProfile, error)
}

// CatalogReader lists regional plan offerings priced at or below budget,
// cheapest first. An unknown region yields an empty catalog.
type CatalogReader interface {
	FetchPlanCatalog(ctx context.Context, region string, budget float64) ([]PlanOffering, error)
}

// BillingReader returns billing records, newest first, at most months long
type BillingReader interface {
	FetchBillingHistory(ctx context.Context, customerID string, months int) ([]BillingRecord, error)
}

// StatusProber probes live service status
type StatusProber interface {
	FetchServiceStatus(ctx context.Context, customerID string) (ServiceStatusSnapshot, error)
}

// Provisioner submits plan changes
type Provisioner interface {
	SubmitPlanChange(ctx context.Context, customerID, plan string, effectiveDate time.Time) (ChangeTicket, error)
}

// Client bundles every capability the orchestrator depends on
type Client interface {
	ProfileReader
	CatalogReader
	BillingReader
	StatusProber
	Provisioner
}
