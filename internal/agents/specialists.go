package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
)

// Handler names, also used as event sources
const (
	NameBilling     = "billing_agent"
	NamePlanAdvisor = "plan_advisor"
	NameTechnical   = "technical_support"
	NameCompliance  = "compliance_auditor"
)

// BillingHandler explains charges using the profile and billing history
type BillingHandler struct {
	specialist
	months int
}

// NewBillingHandler creates the billing specialist
func NewBillingHandler(deps Deps) *BillingHandler {
	return &BillingHandler{specialist: newSpecialist(NameBilling, billingInstruction, deps), months: backend.DefaultBillMonths}
}

// Handle implements Handler
func (h *BillingHandler) Handle(ctx context.Context, customerID, query string, hc HandlerContext) (string, error) {
	facts := &factSheet{customerID: customerID}
	gather(ctx, &h.specialist, facts, hc, KeyProfile, func(ctx context.Context) (backend.CustomerProfile, error) {
		return h.deps.Client.FetchProfile(ctx, customerID)
	})
	gather(ctx, &h.specialist, facts, hc, KeyBilling, func(ctx context.Context) ([]backend.BillingRecord, error) {
		return h.deps.Client.FetchBillingHistory(ctx, customerID, h.months)
	})
	return h.respond(ctx, query, hc, facts)
}

// PlanAdvisorHandler recommends offerings from the customer's regional catalog
type PlanAdvisorHandler struct {
	specialist
	budget func() float64
}

// NewPlanAdvisorHandler creates the plan advisor; budget supplies the
// current catalog ceiling (it may change on config reload).
func NewPlanAdvisorHandler(deps Deps, budget func() float64) *PlanAdvisorHandler {
	if budget == nil {
		budget = func() float64 { return backend.DefaultBudget }
	}
	return &PlanAdvisorHandler{specialist: newSpecialist(NamePlanAdvisor, planAdvisorInstruction, deps), budget: budget}
}

// Handle implements Handler
func (h *PlanAdvisorHandler) Handle(ctx context.Context, customerID, query string, hc HandlerContext) (string, error) {
	facts := &factSheet{customerID: customerID}
	profile, ok := gather(ctx, &h.specialist, facts, hc, KeyProfile, func(ctx context.Context) (backend.CustomerProfile, error) {
		return h.deps.Client.FetchProfile(ctx, customerID)
	})
	if ok {
		gather(ctx, &h.specialist, facts, hc, KeyCatalog, func(ctx context.Context) ([]backend.PlanOffering, error) {
			return h.deps.Client.FetchPlanCatalog(ctx, profile.Region, h.budget())
		})
	}
	if ticket, ok := hc.Data[KeyTicket]; ok {
		facts.add(KeyTicket, ticket)
	}
	if p, ok := hc.Data[KeyPipeline]; ok {
		facts.add(KeyPipeline, p)
	}
	return h.respond(ctx, query, hc, facts)
}

// TechnicalHandler walks the customer through troubleshooting
type TechnicalHandler struct {
	specialist
}

// NewTechnicalHandler creates the technical support specialist
func NewTechnicalHandler(deps Deps) *TechnicalHandler {
	return &TechnicalHandler{specialist: newSpecialist(NameTechnical, technicalInstruction, deps)}
}

// Handle implements Handler
func (h *TechnicalHandler) Handle(ctx context.Context, customerID, query string, hc HandlerContext) (string, error) {
	facts := &factSheet{customerID: customerID}
	status, ok := gather(ctx, &h.specialist, facts, hc, KeyServiceStatus, func(ctx context.Context) (backend.ServiceStatusSnapshot, error) {
		return h.deps.Client.FetchServiceStatus(ctx, customerID)
	})
	if ok && !status.Healthy() {
		facts.note("At least one service channel is not active; mention it before device troubleshooting.")
	}
	if r, ok := hc.Data[KeyResolution]; ok {
		facts.add(KeyResolution, r)
	}
	return h.respond(ctx, query, hc, facts)
}

// ComplianceHandler reviews the account against regulatory rules
type ComplianceHandler struct {
	specialist
	policy *CompliancePolicy
	months int
}

// NewComplianceHandler creates the compliance auditor
func NewComplianceHandler(deps Deps, policy *CompliancePolicy) *ComplianceHandler {
	return &ComplianceHandler{
		specialist: newSpecialist(NameCompliance, complianceInstruction, deps),
		policy:     policy,
		months:     backend.DefaultBillMonths,
	}
}

// Handle implements Handler
func (h *ComplianceHandler) Handle(ctx context.Context, customerID, query string, hc HandlerContext) (string, error) {
	facts := &factSheet{customerID: customerID}
	in := ComplianceInput{Query: query}

	if profile, ok := gather(ctx, &h.specialist, facts, hc, KeyProfile, func(ctx context.Context) (backend.CustomerProfile, error) {
		return h.deps.Client.FetchProfile(ctx, customerID)
	}); ok {
		in.Profile = profile
	}
	if bills, ok := gather(ctx, &h.specialist, facts, hc, KeyBilling, func(ctx context.Context) ([]backend.BillingRecord, error) {
		return h.deps.Client.FetchBillingHistory(ctx, customerID, h.months)
	}); ok {
		in.Billing = bills
	}
	if status, ok := hc.Data[KeyServiceStatus]; ok {
		facts.add(KeyServiceStatus, status)
	}

	if h.policy != nil {
		violations, err := h.policy.Evaluate(ctx, in)
		if err != nil {
			h.degrade(facts, "compliance_findings", err)
		} else {
			if len(violations) == 0 {
				facts.add("compliance_findings", "no issues found")
			} else {
				facts.add("compliance_findings", violations)
			}
			if h.deps.Events != nil {
				h.deps.Events.LogEvent(NameCompliance, observability.EventToolCall, map[string]interface{}{
					"customer_id": customerID,
					"policy":      complianceQuery,
					"violations":  len(violations),
				})
			}
			h.deps.Logger.Debug("Compliance policy evaluated",
				zap.String("customer_id", customerID),
				zap.Strings("violations", violations))
		}
	}
	return h.respond(ctx, query, hc, facts)
}
