package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient serves a Dataset from memory. Faults and latency can be
// injected per capability.
type MockClient struct {
	now func() time.Time

	mu      sync.RWMutex
	data    Dataset
	faults  map[string]error
	latency map[string]time.Duration
	calls   map[string]int

	tickets *ticketIssuer
}

// NewMockClient creates a client over data
func NewMockClient(data Dataset) *MockClient {
	c := &MockClient{
		now:     time.Now,
		data:    data,
		faults:  make(map[string]error),
		latency: make(map[string]time.Duration),
		calls:   make(map[string]int),
	}
	c.tickets = newTicketIssuer(func() time.Time { return c.now() })
	return c
}

// SetFault makes every call to capability return err; nil clears it
func (c *MockClient) SetFault(capability string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.faults, capability)
		return
	}
	c.faults[capability] = err
}

// SetLatency delays every call to capability by d
func (c *MockClient) SetLatency(capability string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency[capability] = d
}

// SetCatalog replaces the offerings for a region
func (c *MockClient) SetCatalog(region string, plans []PlanOffering) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data.Catalogs == nil {
		c.data.Catalogs = make(map[string][]PlanOffering)
	}
	c.data.Catalogs[region] = append([]PlanOffering(nil), plans...)
}

// Calls returns how many times capability was invoked
func (c *MockClient) Calls(capability string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[capability]
}

func (c *MockClient) enter(ctx context.Context, capability string) error {
	c.mu.Lock()
	c.calls[capability]++
	fault := c.faults[capability]
	delay := c.latency[capability]
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return unavailable(capability, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return unavailable(capability, err)
	}
	return fault
}

// FetchProfile implements ProfileReader
func (c *MockClient) FetchProfile(ctx context.Context, customerID string) (CustomerProfile, error) {
	if err := c.enter(ctx, CapProfile); err != nil {
		return CustomerProfile{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.data.Customers[customerID]
	if !ok {
		return CustomerProfile{}, notFound(CapProfile, "customer %s not found", customerID)
	}
	p.LinkedAccounts = append([]string(nil), p.LinkedAccounts...)
	return p, nil
}

// FetchPlanCatalog implements CatalogReader
func (c *MockClient) FetchPlanCatalog(ctx context.Context, region string, budget float64) ([]PlanOffering, error) {
	if err := c.enter(ctx, CapCatalog); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	plans := make([]PlanOffering, 0, len(c.data.Catalogs[region]))
	for _, p := range c.data.Catalogs[region] {
		if p.Price <= budget {
			p.Region = region
			plans = append(plans, p)
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Price != plans[j].Price {
			return plans[i].Price < plans[j].Price
		}
		return plans[i].Name < plans[j].Name
	})
	return plans, nil
}

// FetchBillingHistory implements BillingReader
func (c *MockClient) FetchBillingHistory(ctx context.Context, customerID string, months int) ([]BillingRecord, error) {
	if err := c.enter(ctx, CapBilling); err != nil {
		return nil, err
	}
	if months <= 0 {
		months = DefaultBillMonths
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.data.Customers[customerID]; !ok {
		return nil, notFound(CapBilling, "customer %s not found", customerID)
	}
	bills := c.data.Billing[customerID]
	if len(bills) > months {
		bills = bills[:months]
	}
	return append([]BillingRecord{}, bills...), nil
}

// FetchServiceStatus implements StatusProber
func (c *MockClient) FetchServiceStatus(ctx context.Context, customerID string) (ServiceStatusSnapshot, error) {
	if err := c.enter(ctx, CapServiceStatus); err != nil {
		return ServiceStatusSnapshot{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.data.Customers[customerID]; !ok {
		return ServiceStatusSnapshot{}, notFound(CapServiceStatus, "customer %s not found", customerID)
	}
	status, ok := c.data.Status[customerID]
	if !ok {
		status = defaultStatus(customerID)
	}
	status.FetchedAt = c.now()
	return status, nil
}

// SubmitPlanChange implements Provisioner. The plan must exist in the
// customer's regional catalog.
func (c *MockClient) SubmitPlanChange(ctx context.Context, customerID, plan string, effectiveDate time.Time) (ChangeTicket, error) {
	if err := c.enter(ctx, CapPlanChange); err != nil {
		return ChangeTicket{}, err
	}
	c.mu.RLock()
	profile, ok := c.data.Customers[customerID]
	var offered bool
	if ok {
		for _, p := range c.data.Catalogs[profile.Region] {
			if strings.EqualFold(p.Name, plan) {
				offered = true
				plan = p.Name
				break
			}
		}
	}
	c.mu.RUnlock()

	switch {
	case !ok:
		return ChangeTicket{}, notFound(CapPlanChange, "customer %s not found", customerID)
	case strings.TrimSpace(plan) == "":
		return ChangeTicket{}, submissionFailed(CapPlanChange, "no plan given")
	case !offered:
		return ChangeTicket{}, submissionFailed(CapPlanChange, "plan %s is not offered in %s", plan, profile.Region)
	case plan == profile.Plan:
		return ChangeTicket{}, submissionFailed(CapPlanChange, "customer %s is already on %s", customerID, plan)
	}

	return ChangeTicket{
		ID:            c.tickets.next(customerID),
		CustomerID:    customerID,
		Plan:          plan,
		EffectiveDate: effectiveDate.Format(DateLayout),
		Status:        TicketSubmitted,
		Message:       fmt.Sprintf("Plan change request submitted for %s", customerID),
	}, nil
}

// ticketIssuer hands out change ticket ids that are never reused
type ticketIssuer struct {
	now  func() time.Time
	mu   sync.Mutex
	seen map[string]struct{}
}

func newTicketIssuer(now func() time.Time) *ticketIssuer {
	return &ticketIssuer{now: now, seen: make(map[string]struct{})}
}

func (t *ticketIssuer) next(customerID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		id := fmt.Sprintf("TKT-%s-%s-%s", customerID, t.now().Format("20060102150405"), uuid.NewString()[:8])
		if _, dup := t.seen[id]; !dup {
			t.seen[id] = struct{}{}
			return id
		}
	}
}
