package backend

// Dataset is the record set served by MockClient
type Dataset struct {
	Customers map[string]CustomerProfile
	Catalogs  map[string][]PlanOffering // region -> offerings
	Billing   map[string][]BillingRecord
	Status    map[string]ServiceStatusSnapshot
}

// DefaultDataset returns the demo customers, catalogs and bills
func DefaultDataset() Dataset {
	return Dataset{
		Customers: map[string]CustomerProfile{
			"CUST001": {
				ID:             "CUST001",
				Name:           "Rajesh Kumar",
				Phone:          "+919876543210",
				Plan:           "Premium-199",
				Status:         StatusActive,
				Balance:        2500,
				Region:         "Delhi",
				Language:       "Hindi",
				ActiveSince:    "2023-01-15",
				BillCycleDay:   "5th",
				LinkedAccounts: []string{"CUST002", "CUST003"},
			},
			"CUST002": {
				ID:             "CUST002",
				Name:           "Priya Singh",
				Phone:          "+919876543211",
				Plan:           "Standard-99",
				Status:         StatusActive,
				Balance:        1200,
				Region:         "Mumbai",
				Language:       "Marathi",
				ActiveSince:    "2023-06-20",
				BillCycleDay:   "10th",
				LinkedAccounts: []string{"CUST001"},
			},
		},
		Catalogs: map[string][]PlanOffering{
			"Delhi": {
				{Name: "Premium-199", Price: 199, Data: "3GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "28 days"},
				{Name: "Premium-399", Price: 399, Data: "5GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "56 days"},
				{Name: "Basic-99", Price: 99, Data: "1.5GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "28 days"},
			},
			"Mumbai": {
				{Name: "Premium-199", Price: 199, Data: "3GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "28 days"},
				{Name: "Premium-299", Price: 299, Data: "4GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "28 days"},
				{Name: "Basic-99", Price: 99, Data: "1.5GB/day", Voice: "Unlimited", SMS: "100/day", Validity: "28 days"},
			},
		},
		Billing: map[string][]BillingRecord{
			"CUST001": {
				{Period: "Nov-2024", Amount: 199, Status: StatusPaid},
				{Period: "Oct-2024", Amount: 199, Status: StatusPaid},
				{Period: "Sep-2024", Amount: 199, Status: StatusPaid},
			},
			"CUST002": {
				{Period: "Nov-2024", Amount: 99, Status: StatusPaid},
				{Period: "Oct-2024", Amount: 99, Status: StatusPaid},
				{Period: "Sep-2024", Amount: 99, Status: StatusPaid},
			},
		},
		Status: map[string]ServiceStatusSnapshot{
			"CUST001": defaultStatus("CUST001"),
			"CUST002": defaultStatus("CUST002"),
		},
	}
}

func defaultStatus(customerID string) ServiceStatusSnapshot {
	return ServiceStatusSnapshot{
		CustomerID: customerID,
		Voice:      ChannelStatus{Status: StatusActive, Quota: "Unlimited"},
		Data:       ChannelStatus{Status: StatusActive, Used: 1.5, Limit: 3.0},
		SMS:        ChannelStatus{Status: StatusActive, Quota: "100/day"},
	}
}
