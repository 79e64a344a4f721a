package core

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContextIterationAdvance(t *testing.T) {
	c := NewExecutionContext("agent", "session-1", "")
	assert.Equal(t, 0, c.Iteration())

	c.AdvanceIteration()
	c.AdvanceIteration()
	assert.Equal(t, 2, c.Iteration())
}

func TestExecutionContextHistoryIsCopied(t *testing.T) {
	c := NewExecutionContext("agent", "session-1", "")
	c.AppendCycle(Cycle{Iteration: 0, ModelThought: "first"})

	got := c.History()
	require.Len(t, got, 1)
	got[0].ModelThought = "mutated"

	assert.Equal(t, "first", c.History()[0].ModelThought)
}

func TestExecutionContextRecordToolCallConcurrent(t *testing.T) {
	c := NewExecutionContext("agent", "session-1", "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordToolCall(ToolCallRecord{ID: "call", StartedAt: time.Now()})
		}()
	}
	wg.Wait()

	assert.Len(t, c.ToolCalls(), 50)
}

func TestUsageAggregateEqualsBreakdownSum(t *testing.T) {
	c := NewExecutionContext("parent", "session-1", "")

	c.AddUsage(Usage{Requests: 1, InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	c.AddUsageFromSource("child", Usage{Requests: 2, InputTokens: 7, OutputTokens: 3, TotalTokens: 10, Cost: Cost{Total: 0.5}})
	c.AddUsageFromSource("child", Usage{Requests: 1, InputTokens: 1, OutputTokens: 1, TotalTokens: 2})

	total := c.Usage()
	assert.Equal(t, 4, total.Requests)
	assert.Equal(t, 18, total.InputTokens)
	assert.Equal(t, 9, total.OutputTokens)
	assert.Equal(t, 27, total.TotalTokens)
	assert.InDelta(t, 0.5, total.Cost.Total, 1e-9)

	breakdown := c.UsageBreakdown()
	require.NotNil(t, breakdown)

	var sum Usage
	for _, u := range breakdown {
		sum.Requests += u.Requests
		sum.InputTokens += u.InputTokens
		sum.OutputTokens += u.OutputTokens
		sum.TotalTokens += u.TotalTokens
	}
	assert.Equal(t, total.Requests, sum.Requests)
	assert.Equal(t, total.InputTokens, sum.InputTokens)
	assert.Equal(t, total.OutputTokens, sum.OutputTokens)
	assert.Equal(t, total.TotalTokens, sum.TotalTokens)
}

func TestUsageBreakdownPrunedForSelfOnly(t *testing.T) {
	c := NewExecutionContext("solo", "session-1", "")
	c.AddUsage(Usage{Requests: 3, InputTokens: 30})

	assert.Nil(t, c.UsageBreakdown())

	c.AddUsageFromSource("delegate", Usage{Requests: 1})
	breakdown := c.UsageBreakdown()
	require.Len(t, breakdown, 2)
	assert.Equal(t, 3, breakdown["solo"].Requests)
	assert.Equal(t, 1, breakdown["delegate"].Requests)
}

func TestUsageBreakdownEmptyContext(t *testing.T) {
	c := NewExecutionContext("agent", "session-1", "")
	assert.Nil(t, c.UsageBreakdown())
	assert.Equal(t, Usage{}, c.Usage())
}
