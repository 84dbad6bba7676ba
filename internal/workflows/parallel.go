package workflows

import (
	"context"
	"fmt"
	"sync"

	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/agents"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/backend"
	"github.com/yogi2022/Kaggle-Agents-Intensive-Capstone-Project-telecom-enterprise-agent/internal/observability"
)

// GatherResult holds the merged output of a parallel gather. Data only
// contains keys whose call succeeded; Failed holds the rest.
type GatherResult struct {
	Data   map[string]interface{}
	Failed map[string]error
}

type gatherTask struct {
	key   string
	fetch func(ctx context.Context) (interface{}, error)
}

// ParallelGather fetches billing history, service status and profile
// concurrently and waits for all three.
func ParallelGather(ctx context.Context, client backend.Client, events backend.EventLogger, customerID string, months int) GatherResult {
	tasks := []gatherTask{
		{key: agents.KeyBilling, fetch: func(ctx context.Context) (interface{}, error) {
			return client.FetchBillingHistory(ctx, customerID, months)
		}},
		{key: agents.KeyServiceStatus, fetch: func(ctx context.Context) (interface{}, error) {
			return client.FetchServiceStatus(ctx, customerID)
		}},
		{key: agents.KeyProfile, fetch: func(ctx context.Context) (interface{}, error) {
			return client.FetchProfile(ctx, customerID)
		}},
	}

	result := GatherResult{
		Data:   make(map[string]interface{}, len(tasks)),
		Failed: make(map[string]error),
	}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		go func(task gatherTask) {
			defer wg.Done()
			v, err := runTask(ctx, task)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[task.key] = err
				return
			}
			result.Data[task.key] = v
		}(task)
	}
	wg.Wait()

	if events != nil {
		for key, err := range result.Failed {
			events.LogEvent(string(WorkflowParallel), observability.EventPartialResult, map[string]interface{}{
				"customer_id": customerID,
				"missing":     key,
				"kind":        string(backend.KindOf(err)),
				"error":       err.Error(),
			})
		}
	}
	return result
}

func runTask(ctx context.Context, task gatherTask) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", task.key, r)
		}
	}()
	return task.fetch(ctx)
}
