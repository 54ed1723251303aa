package dispatcher

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_analyst/generator"
	"token_analyst/ledger"
	"token_analyst/pipeline"
	"token_analyst/summary"
	"token_analyst/tools"
)

// memLedger is an in-memory CreditLedger that counts its calls.
type memLedger struct {
	mu         sync.Mutex
	balances   map[string]int
	failDebits bool
	reads      int
	debits     int
}

func newMemLedger(balances map[string]int) *memLedger {
	return &memLedger{balances: balances}
}

func (l *memLedger) GetBalance(_ context.Context, userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	return l.balances[userID]
}

func (l *memLedger) Consume(_ context.Context, userID string, amount int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debits++
	if l.failDebits || l.balances[userID] < amount {
		return false
	}
	l.balances[userID] -= amount
	return true
}

func (l *memLedger) balance(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

type fakeAnalyzer struct {
	mu        sync.Mutex
	narrative string
	err       error
	calls     []pipeline.Mode
	topics    []string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, topic string, mode pipeline.Mode) (pipeline.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, mode)
	a.topics = append(a.topics, topic)
	if a.err != nil {
		return pipeline.Result{}, a.err
	}
	return pipeline.Result{Topic: topic, Mode: mode, Narrative: a.narrative}, nil
}

func newDispatcher(t *testing.T, l CreditLedger, a Analyzer) *Dispatcher {
	t.Helper()
	d, err := New(l, a, Options{PaymentURL: "https://pay.example/payment/"})
	require.NoError(t, err)
	return d
}

const token = "0x4200000000000000000000000000000000000042"

func TestHandle_AnalyzeSummarized(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 3})
	a := &fakeAnalyzer{narrative: "Overview\nThis project looks bullish and undervalued\nConcentration risk stays moderate"}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "/analyze", Args: []string{token}})

	require.NoError(t, out.Err)
	assert.Equal(t, StateSummarized, out.State)
	assert.Equal(t, []State{StateReceived, StateBalanceChecked, StateDebited, StateRunning, StateSummarized}, out.Trace)
	assert.NotEmpty(t, out.RequestID)
	require.NotNil(t, out.Summary)
	assert.Equal(t, summary.Buy, out.Summary.Recommendation)
	assert.Contains(t, out.Reply, "**Recommendation:** BUY")
	assert.Equal(t, "✅ Analysis started! (-1 credit, 2 remaining)", out.Notices[0])
	assert.Contains(t, out.Notices[1], "up to 60 seconds")

	assert.Equal(t, []pipeline.Mode{pipeline.ModeFull}, a.calls)
	assert.Equal(t, []string{token}, a.topics)
	assert.Equal(t, 2, l.balance("u1"))
}

func TestHandle_InsufficientCredits(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 0})
	a := &fakeAnalyzer{}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "analyze", Args: []string{token}})

	assert.Equal(t, StateRejectedInsufficient, out.State)
	var ice *InsufficientCreditsError
	require.ErrorAs(t, out.Err, &ice)
	assert.Equal(t, 0, ice.Balance)
	assert.Equal(t, 1, ice.Required)
	assert.Contains(t, out.Reply, "❌ Insufficient credits!")
	assert.Contains(t, out.Reply, "Your balance: 0 credits")
	assert.Contains(t, out.Reply, "Required: 1 credit")

	require.Len(t, out.PaymentOptions, 3)
	assert.Equal(t, "https://pay.example/payment?userId=u1", out.PaymentOptions[0].URL)
	assert.Equal(t, "https://pay.example/payment?userId=u1&package=50", out.PaymentOptions[1].URL)
	assert.Equal(t, "💎 100 Credits - 0.008 0G", out.PaymentOptions[2].Label)

	assert.Zero(t, l.debits)
	assert.Empty(t, a.calls)
}

func TestHandle_DebitRejected(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 5})
	l.failDebits = true
	a := &fakeAnalyzer{}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "analyze", Args: []string{token}})

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, []State{StateReceived, StateBalanceChecked, StateFailed}, out.Trace)
	var le *LedgerError
	require.ErrorAs(t, out.Err, &le)
	assert.Equal(t, "consume", le.Op)
	assert.Contains(t, out.Reply, "❌ Payment processing failed")
	assert.Empty(t, a.calls)
	assert.Equal(t, 5, l.balance("u1"))
}

func TestHandle_PipelineFailureKeepsDebit(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 2})
	boom := errors.New("stage exploded")
	a := &fakeAnalyzer{err: boom}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "analyze", Args: []string{token}})

	assert.Equal(t, StateFailed, out.State)
	assert.Equal(t, []State{StateReceived, StateBalanceChecked, StateDebited, StateRunning, StateFailed}, out.Trace)
	var pe *PipelineError
	require.ErrorAs(t, out.Err, &pe)
	assert.ErrorIs(t, out.Err, boom)
	assert.Equal(t, "❌ Analysis failed: stage exploded", out.Reply)
	assert.Nil(t, out.Summary)
	assert.Equal(t, 1, l.balance("u1"))
	assert.Len(t, a.calls, 1)
}

// blockingLLM never answers before its context ends.
type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, _ generator.Prompt) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestHandle_TimeoutChargesAndFails(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 1})
	orch, err := pipeline.New(blockingLLM{}, tools.FixtureSet(nil), pipeline.Options{Timeout: 30 * time.Millisecond})
	require.NoError(t, err)
	d := newDispatcher(t, l, orch)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "analyze", Args: []string{token}})

	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, pipeline.ErrTimeout)
	assert.Contains(t, out.Reply, "❌ Analysis failed:")
	assert.Equal(t, 0, l.balance("u1"))
}

func TestHandle_MissingTopicTouchesNothing(t *testing.T) {
	for _, cmd := range []string{"analyze", "network_intel", "og_intel"} {
		t.Run(cmd, func(t *testing.T) {
			l := newMemLedger(map[string]int{"u1": 5})
			a := &fakeAnalyzer{}
			d := newDispatcher(t, l, a)

			out := d.Handle(context.Background(), Request{UserID: "u1", Command: cmd, Args: []string{"  "}})

			assert.Equal(t, StateInvalidInput, out.State)
			var ie *InputError
			require.ErrorAs(t, out.Err, &ie)
			assert.Contains(t, out.Reply, "Please provide a token address")
			assert.NotContains(t, out.Reply, "❌")
			assert.Zero(t, l.reads)
			assert.Zero(t, l.debits)
			assert.Empty(t, a.calls)
		})
	}
}

func TestHandle_Discover(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 1})
	a := &fakeAnalyzer{narrative: "# Discoveries\nDivine raised a seed round\nToken unlocks look favourable"}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "discover"})

	require.NoError(t, out.Err)
	assert.Equal(t, StateSummarized, out.State)
	assert.Equal(t, []pipeline.Mode{pipeline.ModeDiscoveryOnly}, a.calls)
	assert.Equal(t, []string{DefaultDiscoveryBrief}, a.topics)
	assert.Contains(t, out.Reply, "1. Divine raised a seed round")
	assert.Equal(t, 0, l.balance("u1"))
}

func TestHandle_NetworkIntel(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 1})
	a := &fakeAnalyzer{narrative: "Validator set is stable. Hold."}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "network_intel", Args: []string{token}})

	require.NoError(t, out.Err)
	assert.Equal(t, []pipeline.Mode{pipeline.ModeNetworkSpecific}, a.calls)
	assert.Contains(t, out.Reply, "0G Network Intelligence")
	assert.Contains(t, out.Notices[1], "0G Network Intelligence for: "+token)
}

func TestHandle_FreeCommands(t *testing.T) {
	l := newMemLedger(map[string]int{"u1": 7})
	a := &fakeAnalyzer{}
	d := newDispatcher(t, l, a)

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "credits"})
	assert.Equal(t, StateAnswered, out.State)
	assert.Contains(t, out.Reply, "Balance: 7 credits")
	assert.Len(t, out.PaymentOptions, 3)
	assert.Zero(t, l.debits)

	for _, cmd := range []string{"help", "/start"} {
		out = d.Handle(context.Background(), Request{UserID: "u1", Command: cmd})
		assert.Equal(t, StateAnswered, out.State)
		assert.Contains(t, out.Reply, "/analyze <token_address>")
	}
	assert.Empty(t, a.calls)
	assert.Equal(t, 7, l.balance("u1"))
}

func TestHandle_UnknownCommandAndMissingUser(t *testing.T) {
	l := newMemLedger(map[string]int{})
	d := newDispatcher(t, l, &fakeAnalyzer{})

	out := d.Handle(context.Background(), Request{UserID: "u1", Command: "moon"})
	assert.Equal(t, StateInvalidInput, out.State)
	assert.Contains(t, out.Reply, "Unknown command")

	out = d.Handle(context.Background(), Request{Command: "analyze", Args: []string{token}})
	assert.Equal(t, StateInvalidInput, out.State)
	assert.Zero(t, l.reads)
}

func TestHandle_KeepsCallerRequestID(t *testing.T) {
	d := newDispatcher(t, newMemLedger(map[string]int{}), &fakeAnalyzer{})
	out := d.Handle(context.Background(), Request{ID: "req-1", UserID: "u1", Command: "help"})
	assert.Equal(t, "req-1", out.RequestID)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, &fakeAnalyzer{}, Options{})
	assert.Error(t, err)
	_, err = New(newMemLedger(nil), nil, Options{})
	assert.Error(t, err)
}

func TestHandle_EndToEndWithLedgerService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store, err := ledger.OpenStore(filepath.Join(t.TempDir(), "credits.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.Credit(ctx, "u9", "0xpaid", 1)
	require.NoError(t, err)

	srv := httptest.NewServer(ledger.NewService(store, ledger.DefaultChain, nil).Routes())
	defer srv.Close()

	orch, err := pipeline.New(generator.MockLLM{}, tools.FixtureSet(nil), pipeline.Options{})
	require.NoError(t, err)
	d, err := New(ledger.NewClient(srv.URL+"/api", nil, nil), orch, Options{})
	require.NoError(t, err)

	out := d.Handle(ctx, Request{UserID: "u9", Command: "analyze", Args: []string{token}})
	require.NoError(t, out.Err)
	assert.Equal(t, StateSummarized, out.State)
	assert.Contains(t, out.Reply, "Token Analysis")

	// second run is rejected without a debit
	out = d.Handle(ctx, Request{UserID: "u9", Command: "analyze", Args: []string{token}})
	assert.Equal(t, StateRejectedInsufficient, out.State)

	bal, err := store.Balance(ctx, "u9")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
