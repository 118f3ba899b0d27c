package relevance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-deptdocs-be/pkg/llm"
	"ai-deptdocs-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// judgeLLM answers every verdict call with replyFor and tracks the peak
// number of simultaneous calls.
type judgeLLM struct {
	replyFor func(prompt string) (string, error)
	delay    time.Duration

	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (j *judgeLLM) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	j.calls.Add(1)
	cur := j.inFlight.Add(1)
	defer j.inFlight.Add(-1)
	for {
		peak := j.peak.Load()
		if cur <= peak || j.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	if j.delay > 0 {
		select {
		case <-time.After(j.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return j.replyFor(prompt)
}

func (j *judgeLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return j.Generate(ctx, history[len(history)-1].Content, options...)
}

func (j *judgeLLM) Stream(context.Context, []llm.Message, ...llm.Option) (<-chan string, <-chan error) {
	ch := make(chan string)
	errCh := make(chan error, 1)
	close(ch)
	close(errCh)
	return ch, errCh
}

func alwaysRelevant(string) (string, error) {
	return `{"explanation": "menjawab langsung", "is_relevant": true}`, nil
}

func candidates(n int, distance float64) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			Chunk:   store.Chunk{ID: fmt.Sprintf("chunk-%d", i), Distance: distance},
			Content: fmt.Sprintf("konten %d", i),
		}
	}
	return out
}

func TestEvaluator_Filter_BoundedConcurrency(t *testing.T) {
	fake := &judgeLLM{replyFor: alwaysRelevant, delay: 20 * time.Millisecond}
	e := NewEvaluator(fake, VerdictPolicy{}, nil, Config{Workers: 3}, nil)

	got := e.Filter(context.Background(), "pertanyaan", candidates(12, 0.5))

	assert.Len(t, got, 12)
	assert.LessOrEqual(t, fake.peak.Load(), int32(3))
}

func TestEvaluator_Filter_PreservesOrder(t *testing.T) {
	fake := &judgeLLM{replyFor: alwaysRelevant, delay: 5 * time.Millisecond}
	e := NewEvaluator(fake, VerdictPolicy{}, nil, Config{Workers: 4}, nil)

	got := e.Filter(context.Background(), "pertanyaan", candidates(8, 0.5))

	require.Len(t, got, 8)
	for i, c := range got {
		assert.Equal(t, fmt.Sprintf("chunk-%d", i), c.Chunk.ID)
	}
}

func TestEvaluator_Filter_VerdictFailureExcludesCandidate(t *testing.T) {
	var mu sync.Mutex
	n := 0
	fake := &judgeLLM{replyFor: func(string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 1 {
			return "", errors.New("upstream down")
		}
		return alwaysRelevant("")
	}}
	e := NewEvaluator(fake, VerdictPolicy{}, nil, Config{Workers: 1}, nil)

	got := e.Filter(context.Background(), "pertanyaan", candidates(3, 0.5))

	assert.Len(t, got, 2)
}

func TestEvaluator_Filter_MalformedVerdictExcludesCandidate(t *testing.T) {
	fake := &judgeLLM{replyFor: func(string) (string, error) {
		return "tidak yakin, tanpa json", nil
	}}
	e := NewEvaluator(fake, VerdictPolicy{}, nil, Config{Workers: 2}, nil)

	got := e.Filter(context.Background(), "pertanyaan", candidates(2, 0.5))

	assert.Empty(t, got)
}

func TestEvaluator_Filter_TimeoutExcludesCandidate(t *testing.T) {
	fake := &judgeLLM{replyFor: alwaysRelevant, delay: 200 * time.Millisecond}
	e := NewEvaluator(fake, VerdictPolicy{}, nil, Config{Workers: 2, VerdictTimeout: 20 * time.Millisecond}, nil)

	got := e.Filter(context.Background(), "pertanyaan", candidates(2, 0.5))

	assert.Empty(t, got)
}

func TestEvaluator_Filter_CacheSkipsRepeatCalls(t *testing.T) {
	fake := &judgeLLM{replyFor: alwaysRelevant}
	cache := NewMemoryCache(time.Minute)
	e := NewEvaluator(fake, VerdictPolicy{}, cache, Config{Workers: 2}, nil)

	cands := candidates(4, 0.5)
	first := e.Filter(context.Background(), "pertanyaan", cands)
	require.Len(t, first, 4)
	callsAfterFirst := fake.calls.Load()

	second := e.Filter(context.Background(), "  PERTANYAAN  ", cands)
	assert.Len(t, second, 4)
	assert.Equal(t, callsAfterFirst, fake.calls.Load())
}

func TestEvaluator_Filter_HybridSkipsVerdictUnderThreshold(t *testing.T) {
	fake := &judgeLLM{replyFor: func(string) (string, error) {
		return `{"explanation": "tidak membantu", "is_relevant": false}`, nil
	}}
	e := NewEvaluator(fake, HybridPolicy{Threshold: 0.3}, nil, Config{Workers: 2}, nil)

	cands := []Candidate{
		{Chunk: store.Chunk{ID: "close", Distance: 0.1}},
		{Chunk: store.Chunk{ID: "far", Distance: 0.9}},
	}
	got := e.Filter(context.Background(), "pertanyaan", cands)

	require.Len(t, got, 1)
	assert.Equal(t, "close", got[0].Chunk.ID)
	assert.Equal(t, int32(1), fake.calls.Load())
}

func TestAcceptancePolicies(t *testing.T) {
	relevant := &Verdict{Relevant: true}
	irrelevant := &Verdict{Relevant: false}

	tests := []struct {
		name     string
		policy   AcceptancePolicy
		distance float64
		verdict  *Verdict
		want     bool
	}{
		{"threshold accepts close", ThresholdPolicy{Threshold: 0.5}, 0.4, nil, true},
		{"threshold rejects far", ThresholdPolicy{Threshold: 0.5}, 0.6, nil, false},
		{"llm accepts relevant", VerdictPolicy{}, 0.9, relevant, true},
		{"llm rejects irrelevant", VerdictPolicy{}, 0.1, irrelevant, false},
		{"llm rejects missing verdict", VerdictPolicy{}, 0.1, nil, false},
		{"hybrid close without verdict", HybridPolicy{Threshold: 0.3}, 0.2, nil, true},
		{"hybrid far needs relevant verdict", HybridPolicy{Threshold: 0.3}, 0.8, relevant, true},
		{"hybrid far rejects irrelevant", HybridPolicy{Threshold: 0.3}, 0.8, irrelevant, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Accept(tt.distance, tt.verdict))
		})
	}
}

func TestPolicyFromName(t *testing.T) {
	assert.IsType(t, ThresholdPolicy{}, PolicyFromName("threshold", 0.5))
	assert.IsType(t, VerdictPolicy{}, PolicyFromName("llm", 0.5))
	assert.IsType(t, HybridPolicy{}, PolicyFromName("", 0.5))
	assert.IsType(t, HybridPolicy{}, PolicyFromName("hybrid", 0.5))
}
