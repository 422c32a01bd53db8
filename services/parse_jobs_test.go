package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"papermap/providers"
)

// fakeParseProvider zählt Submits und Polls und liefert pro Poll-Aufruf ein
// vorgegebenes Skript ab.
type fakeParseProvider struct {
	mu         sync.Mutex
	submits    int
	polls      int
	submitResp func(paperID string) (*providers.SubmitResult, error)
	pollScript func(call int) (*providers.PollResult, error)
}

func (f *fakeParseProvider) Submit(_ context.Context, paperID, _ string) (*providers.SubmitResult, error) {
	f.mu.Lock()
	f.submits++
	f.mu.Unlock()
	if f.submitResp != nil {
		return f.submitResp(paperID)
	}
	return &providers.SubmitResult{Status: "processing", JobID: "job-" + paperID}, nil
}

func (f *fakeParseProvider) Poll(_ context.Context, _ string) (*providers.PollResult, error) {
	f.mu.Lock()
	f.polls++
	call := f.polls
	f.mu.Unlock()
	if f.pollScript != nil {
		return f.pollScript(call)
	}
	return &providers.PollResult{Status: "processing"}, nil
}

func (f *fakeParseProvider) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.polls
}

func newTestOrchestrator(p providers.ParseProvider, maxAttempts int) *ParseJobOrchestrator {
	return NewParseJobOrchestrator(p, zap.NewNop(), 5*time.Millisecond, maxAttempts)
}

func TestParseJobs_CachedSubmitSkipsPolling(t *testing.T) {
	fake := &fakeParseProvider{
		submitResp: func(string) (*providers.SubmitResult, error) {
			return &providers.SubmitResult{Cached: true, Status: "completed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	require.Eventually(t, func() bool { return o.IsParsed("p1") }, time.Second, time.Millisecond)
	_, polls := fake.counts()
	assert.Zero(t, polls, "Cache-Treffer darf keinen einzigen Poll auslösen")
	assert.Empty(t, o.Parsing())
}

func TestParseJobs_FailedFirstPollStopsJob(t *testing.T) {
	fake := &fakeParseProvider{
		pollScript: func(int) (*providers.PollResult, error) {
			return &providers.PollResult{Status: "failed", Error: "corrupt pdf"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	require.Eventually(t, func() bool { return len(o.Parsing()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, o.IsParsed("p1"), "fehlgeschlagenes Paper landet nicht in parsed")

	// Nach dem Terminal-Zustand darf kein weiterer Poll mehr passieren.
	time.Sleep(30 * time.Millisecond)
	_, polls := fake.counts()
	assert.Equal(t, 1, polls)
}

func TestParseJobs_CompletesAfterPolling(t *testing.T) {
	fake := &fakeParseProvider{
		pollScript: func(call int) (*providers.PollResult, error) {
			if call < 3 {
				return &providers.PollResult{Status: "processing"}, nil
			}
			return &providers.PollResult{Status: "completed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	var completed []string
	var mu sync.Mutex
	o.OnCompleted = func(id string) {
		mu.Lock()
		completed = append(completed, id)
		mu.Unlock()
	}

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	require.Eventually(t, func() bool { return o.IsParsed("p1") }, time.Second, time.Millisecond)
	assert.Empty(t, o.Parsing())
	mu.Lock()
	assert.Equal(t, []string{"p1"}, completed)
	mu.Unlock()
}

func TestParseJobs_EnsureParsedIsIdempotent(t *testing.T) {
	fake := &fakeParseProvider{}
	o := newTestOrchestrator(fake, 1000)

	for i := 0; i < 5; i++ {
		o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")
	}

	time.Sleep(30 * time.Millisecond)
	submits, _ := fake.counts()
	assert.Equal(t, 1, submits, "pro Paper höchstens ein lebender Job")

	o.CancelJob("p1")
}

func TestParseJobs_NoResubmitAfterCompletion(t *testing.T) {
	fake := &fakeParseProvider{
		submitResp: func(string) (*providers.SubmitResult, error) {
			return &providers.SubmitResult{Cached: true, Status: "completed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")
	require.Eventually(t, func() bool { return o.IsParsed("p1") }, time.Second, time.Millisecond)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")
	time.Sleep(20 * time.Millisecond)

	submits, _ := fake.counts()
	assert.Equal(t, 1, submits, "ein fertig geparstes Paper wird nie erneut eingereicht")
}

func TestParseJobs_ParsingAndParsedStayDisjoint(t *testing.T) {
	fake := &fakeParseProvider{
		pollScript: func(call int) (*providers.PollResult, error) {
			if call < 4 {
				return &providers.PollResult{Status: "processing"}, nil
			}
			return &providers.PollResult{Status: "completed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 20)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		parsing, parsed := o.Parsing(), o.Parsed()
		inParsing := make(map[string]bool, len(parsing))
		for _, id := range parsing {
			inParsing[id] = true
		}
		for _, id := range parsed {
			require.False(t, inParsing[id], "ID %s gleichzeitig in parsing und parsed", id)
		}
		if o.IsParsed("p1") {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("Job wurde nicht fertig")
}

func TestParseJobs_CancelStopsPolling(t *testing.T) {
	fake := &fakeParseProvider{}
	o := newTestOrchestrator(fake, 100000)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")
	require.Eventually(t, func() bool {
		_, polls := fake.counts()
		return polls >= 1
	}, time.Second, time.Millisecond)

	o.CancelJob("p1")
	require.Eventually(t, func() bool { return len(o.Parsing()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, o.IsParsed("p1"))

	_, pollsAfterCancel := fake.counts()
	time.Sleep(30 * time.Millisecond)
	_, pollsLater := fake.counts()
	assert.Equal(t, pollsAfterCancel, pollsLater, "nach dem Abbruch darf nicht weiter gepollt werden")
}

func TestParseJobs_AttemptBudgetExhaustion(t *testing.T) {
	fake := &fakeParseProvider{}
	o := newTestOrchestrator(fake, 3)

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	// Stiller Abbruch: weder parsing noch parsed.
	require.Eventually(t, func() bool { return len(o.Parsing()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, o.IsParsed("p1"))

	_, polls := fake.counts()
	assert.Equal(t, 3, polls)
}

func TestParseJobs_JobsAreIndependent(t *testing.T) {
	fake := &fakeParseProvider{
		submitResp: func(paperID string) (*providers.SubmitResult, error) {
			if paperID == "bad" {
				return nil, errors.New("backend down")
			}
			return &providers.SubmitResult{Cached: true, Status: "completed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	o.EnsureParsed(context.Background(), "bad", "https://arxiv.org/pdf/bad")
	o.EnsureParsed(context.Background(), "good", "https://arxiv.org/pdf/good")

	require.Eventually(t, func() bool { return o.IsParsed("good") }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(o.Parsing()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, o.IsParsed("bad"), "Fehler eines Jobs darf andere nicht beeinflussen")
}

func TestParseJobs_SubmitWithImmediateFailure(t *testing.T) {
	fake := &fakeParseProvider{
		submitResp: func(string) (*providers.SubmitResult, error) {
			return &providers.SubmitResult{Status: "failed"}, nil
		},
	}
	o := newTestOrchestrator(fake, 10)

	var failed []string
	var mu sync.Mutex
	o.OnFailed = func(id string) {
		mu.Lock()
		failed = append(failed, id)
		mu.Unlock()
	}

	o.EnsureParsed(context.Background(), "p1", "https://arxiv.org/pdf/p1")

	require.Eventually(t, func() bool { return len(o.Parsing()) == 0 }, time.Second, time.Millisecond)
	assert.False(t, o.IsParsed("p1"))
	mu.Lock()
	assert.Equal(t, []string{"p1"}, failed)
	mu.Unlock()
}
