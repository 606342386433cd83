package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aschepis/backscratcher/llmguard/retry"
)

// recordingTimer satisfies backoff.Timer, records every delay and fires at once.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	return t.c
}

func (t *recordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

type scriptedTransport struct {
	mu         sync.Mutex
	errs       []error
	completion *Completion
	calls      int
	lastPrompt Prompt
	lastOpts   CallOptions
	models     []string
	modelsErr  error
}

func (s *scriptedTransport) Invoke(_ context.Context, prompt Prompt, opts CallOptions) (*Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.lastPrompt = prompt
	s.lastOpts = opts
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if s.completion != nil {
		return s.completion, nil
	}
	return &Completion{Text: "ok"}, nil
}

func (s *scriptedTransport) ListModelIDs(context.Context) ([]string, error) {
	return s.models, s.modelsErr
}

func (s *scriptedTransport) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type describingTransport struct {
	scriptedTransport
	size int
	err  error
}

func (d *describingTransport) ModelContextWindow(context.Context, string) (int, error) {
	return d.size, d.err
}

type recordingObserver struct {
	mu        sync.Mutex
	retries   []retry.Event
	failures  []ErrorKind
	budgets   int
	successes int
}

func (o *recordingObserver) RetryScheduled(_ string, ev retry.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retries = append(o.retries, ev)
}

func (o *recordingObserver) CallFailed(_ string, err *ProviderError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, err.Kind)
}

func (o *recordingObserver) BudgetRejected(string, Budget) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.budgets++
}

func (o *recordingObserver) CallSucceeded(string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.successes++
}

func statusSignal(status int) error {
	return &TransportErrorSignal{StatusCode: status, Message: http.StatusText(status)}
}

func testConfig() ProviderConfig {
	return ProviderConfig{Name: ProviderOpenAI, Model: "gpt-4o", Retry: retry.DefaultPolicy()}
}

func newTestProvider(t *testing.T, cfg ProviderConfig, tr Transport, opts ...ProviderOption) (*Provider, *recordingTimer) {
	t.Helper()
	timer := newRecordingTimer()
	opts = append(opts, WithRetryOptions(retry.WithTimer(timer)))
	p, err := NewProvider(cfg, tr, opts...)
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	return p, timer
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(ProviderConfig{Name: ProviderOpenAI}, &scriptedTransport{}); err == nil {
		t.Error("Expected error for missing model")
	}
	if _, err := NewProvider(testConfig(), nil); err == nil {
		t.Error("Expected error for nil transport")
	}
}

func TestNewProviderDefaultContextSize(t *testing.T) {
	p, _ := newTestProvider(t, testConfig(), &scriptedTransport{})
	if p.DefaultContextSize() != 128000 {
		t.Errorf("Expected 128000 for gpt-4o, got %d", p.DefaultContextSize())
	}

	cfg := testConfig()
	cfg.Model = "some-new-model"
	p, _ = newTestProvider(t, cfg, &scriptedTransport{})
	if p.DefaultContextSize() != DefaultContextWindow {
		t.Errorf("Expected fallback %d, got %d", DefaultContextWindow, p.DefaultContextSize())
	}
}

func TestCompletionRetriesRateLimits(t *testing.T) {
	tr := &scriptedTransport{errs: []error{statusSignal(429), statusSignal(429)}}
	obs := &recordingObserver{}
	p, timer := newTestProvider(t, testConfig(), tr, WithObserver(obs))

	text, err := p.GetCompletion(context.Background(), "", "hello")
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if text != "ok" {
		t.Errorf("Expected ok, got %q", text)
	}
	if tr.Calls() != 3 {
		t.Errorf("Expected 3 attempts, got %d", tr.Calls())
	}

	delays := timer.Delays()
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Errorf("Expected delays [1s 2s], got %v", delays)
	}

	if len(obs.retries) != 2 {
		t.Fatalf("Expected 2 retry events, got %d", len(obs.retries))
	}
	if obs.retries[0].Attempt != 0 || obs.retries[1].Attempt != 1 {
		t.Errorf("Expected zero-indexed attempts, got %d and %d", obs.retries[0].Attempt, obs.retries[1].Attempt)
	}
	if obs.retries[0].Label != ErrorKindRateLimit.String() {
		t.Errorf("Expected label %s, got %s", ErrorKindRateLimit, obs.retries[0].Label)
	}
	if obs.successes != 1 || len(obs.failures) != 0 {
		t.Errorf("Expected one success and no failures, got %d and %v", obs.successes, obs.failures)
	}
}

func TestCompletionDoesNotRetryPermanentFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
	}{
		{"authentication", statusSignal(401), ErrorKindAuthentication},
		{"bad request", statusSignal(400), ErrorKindValidation},
		{"network", NewConnectionSignal("connection refused", errors.New("dial tcp: refused")), ErrorKindNetwork},
		{"unknown", errors.New("boom"), ErrorKindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &scriptedTransport{errs: []error{tt.err}}
			p, timer := newTestProvider(t, testConfig(), tr)

			_, err := p.GetCompletion(context.Background(), "sys", "hello")
			if !IsKind(err, tt.wantKind) {
				t.Fatalf("Expected %s, got %v", tt.wantKind, err)
			}
			if tr.Calls() != 1 {
				t.Errorf("Expected exactly one attempt, got %d", tr.Calls())
			}
			if len(timer.Delays()) != 0 {
				t.Errorf("Expected no backoff, got %v", timer.Delays())
			}
		})
	}
}

func TestCompletionExhaustsRetries(t *testing.T) {
	tr := &scriptedTransport{errs: []error{statusSignal(500), statusSignal(502), statusSignal(503), nil}}
	obs := &recordingObserver{}
	p, timer := newTestProvider(t, testConfig(), tr, WithObserver(obs))

	_, err := p.GetCompletion(context.Background(), "", "hello")
	perr, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("Expected ProviderError, got %T", err)
	}
	if perr.Kind != ErrorKindAPI {
		t.Errorf("Expected API_ERROR, got %s", perr.Kind)
	}
	if perr.StatusCode != 503 {
		t.Errorf("Expected last status 503, got %d", perr.StatusCode)
	}
	if tr.Calls() != 3 {
		t.Errorf("Expected 3 attempts, got %d", tr.Calls())
	}
	if len(timer.Delays()) != 2 {
		t.Errorf("Expected 2 delays, got %v", timer.Delays())
	}
	if len(obs.failures) != 1 || obs.failures[0] != ErrorKindAPI {
		t.Errorf("Expected one API_ERROR failure, got %v", obs.failures)
	}
}

func TestCompletionBudgetRejectedBeforeInvoke(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "tiny"
	cfg.MaxOutputTokens = 50
	tr := &scriptedTransport{}
	obs := &recordingObserver{}
	table := WindowTable{Entries: []WindowEntry{{Pattern: "tiny", Capacity: 100}}, Default: 100}
	p, _ := newTestProvider(t, cfg, tr, WithObserver(obs), WithWindowTable(table))

	_, err := p.GetStructuredCompletion(context.Background(),
		CompletionRequest{Prompt: TextPrompt(strings.Repeat("x", 400))},
		OutputSchema{Name: "x", Schema: json.RawMessage(`{}`)})
	if !IsKind(err, ErrorKindValidation) {
		t.Fatalf("Expected VALIDATION_ERROR, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("Expected no transport calls, got %d", tr.Calls())
	}
	if obs.budgets != 1 {
		t.Errorf("Expected one budget rejection, got %d", obs.budgets)
	}
}

func TestCompletionBudgetUsesOverrideReserve(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "tiny"
	tr := &scriptedTransport{completion: &Completion{Data: json.RawMessage(`{}`)}}
	table := WindowTable{Entries: []WindowEntry{{Pattern: "tiny", Capacity: 100}}, Default: 100}
	p, _ := newTestProvider(t, cfg, tr, WithWindowTable(table))

	// 60 tokens of input fit once only 40 are reserved for output.
	req := CompletionRequest{
		Prompt:    TextPrompt(strings.Repeat("x", 240)),
		Overrides: &CallOverrides{MaxOutputTokens: Int(40)},
	}
	if _, err := p.GetStructuredCompletion(context.Background(), req, OutputSchema{Name: "x"}); err != nil {
		t.Fatalf("Expected prompt to fit, got %v", err)
	}
	if tr.lastOpts.Bound.MaxOutputTokens != 40 {
		t.Errorf("Expected 40 max tokens on the call, got %d", tr.lastOpts.Bound.MaxOutputTokens)
	}
}

func TestGetCompletionBudgetsRawText(t *testing.T) {
	cfg := testConfig()
	cfg.Model = "tiny"
	cfg.MaxOutputTokens = 50
	table := WindowTable{Entries: []WindowEntry{{Pattern: "tiny", Capacity: 100}}, Default: 100}
	tr := &scriptedTransport{}
	p, _ := newTestProvider(t, cfg, tr, WithWindowTable(table))

	// 99 + newline + 100 characters is exactly 50 tokens.
	system := strings.Repeat("s", 99)
	if _, err := p.GetCompletion(context.Background(), system, strings.Repeat("u", 100)); err != nil {
		t.Fatalf("Expected prompt at the limit to pass, got %v", err)
	}
	if tr.Calls() != 1 {
		t.Errorf("Expected one transport call, got %d", tr.Calls())
	}

	_, err := p.GetCompletion(context.Background(), system, strings.Repeat("u", 101))
	if !IsKind(err, ErrorKindValidation) {
		t.Errorf("Expected VALIDATION_ERROR one token over, got %v", err)
	}
	if tr.Calls() != 1 {
		t.Errorf("Expected no further transport calls, got %d", tr.Calls())
	}
}

func TestCompletionCancelledContext(t *testing.T) {
	tr := &scriptedTransport{}
	p, _ := newTestProvider(t, testConfig(), tr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.GetCompletion(ctx, "", "hello")
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("Expected no transport calls, got %d", tr.Calls())
	}
}

func TestGetCompletionMessages(t *testing.T) {
	tr := &scriptedTransport{}
	p, _ := newTestProvider(t, testConfig(), tr)

	if _, err := p.GetCompletion(context.Background(), "be brief", "hello"); err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	msgs := tr.lastPrompt.AsMessages()
	if len(msgs) != 2 || msgs[0].Role != RoleSystem || msgs[1].Content != "hello" {
		t.Errorf("Expected system then user message, got %+v", msgs)
	}

	if _, err := p.GetCompletion(context.Background(), "", "hello"); err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if msgs := tr.lastPrompt.AsMessages(); len(msgs) != 1 {
		t.Errorf("Expected empty system prompt to be omitted, got %+v", msgs)
	}
}

func TestGetStructuredCompletionRejectsInvalidJSON(t *testing.T) {
	tr := &scriptedTransport{completion: &Completion{Data: json.RawMessage(`not json`)}}
	p, _ := newTestProvider(t, testConfig(), tr)

	_, err := p.GetStructuredCompletion(context.Background(), CompletionRequest{Prompt: TextPrompt("x")}, OutputSchema{Name: "x"})
	if !IsKind(err, ErrorKindInvalidResponse) {
		t.Errorf("Expected INVALID_RESPONSE, got %v", err)
	}
}

func TestStructuredCompletionDecodes(t *testing.T) {
	type person struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tr := &scriptedTransport{completion: &Completion{Data: json.RawMessage(`{"name":"Ada","age":36}`)}}
	p, _ := newTestProvider(t, testConfig(), tr)
	req := CompletionRequest{Prompt: TextPrompt("who?")}

	got, err := StructuredCompletion[person](context.Background(), p, req, OutputSchema{Name: "person"})
	if err != nil {
		t.Fatalf("StructuredCompletion failed: %v", err)
	}
	if got.Name != "Ada" || got.Age != 36 {
		t.Errorf("Unexpected result: %+v", got)
	}
	if tr.lastOpts.Schema == nil || tr.lastOpts.Schema.Name != "person" {
		t.Errorf("Expected schema to reach the transport, got %+v", tr.lastOpts.Schema)
	}

	tr.completion = &Completion{Data: json.RawMessage(`{"name":5}`)}
	_, err = StructuredCompletion[person](context.Background(), p, req, OutputSchema{Name: "person"})
	if !IsKind(err, ErrorKindInvalidResponse) {
		t.Errorf("Expected INVALID_RESPONSE for mismatched shape, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	tr := &scriptedTransport{models: []string{"a", "b"}}
	p, _ := newTestProvider(t, testConfig(), tr)
	ids, err := p.ListModels(context.Background())
	if err != nil || len(ids) != 2 {
		t.Errorf("Expected two models, got %v (%v)", ids, err)
	}

	tr.models = nil
	if _, err := p.ListModels(context.Background()); !IsKind(err, ErrorKindNoModelsFound) {
		t.Errorf("Expected NO_MODELS_FOUND, got %v", err)
	}

	tr.modelsErr = statusSignal(401)
	if _, err := p.ListModels(context.Background()); !IsKind(err, ErrorKindAuthentication) {
		t.Errorf("Expected AUTHENTICATION_ERROR, got %v", err)
	}
}

func TestTokenContextWindow(t *testing.T) {
	p, _ := newTestProvider(t, testConfig(), &scriptedTransport{})

	n, err := p.TokenContextWindow("gpt-4-turbo-preview")
	if err != nil || n != 128000 {
		t.Errorf("Expected 128000, got %d (%v)", n, err)
	}
	if _, err := p.TokenContextWindow("unknown-model"); !IsKind(err, ErrorKindModelNotFound) {
		t.Errorf("Expected MODEL_NOT_FOUND, got %v", err)
	}
}

func TestContextWindowSize(t *testing.T) {
	p, _ := newTestProvider(t, testConfig(), &scriptedTransport{})
	if n := p.ContextWindowSize(context.Background()); n != 128000 {
		t.Errorf("Expected table size without describer, got %d", n)
	}

	d := &describingTransport{size: 32768}
	p, _ = newTestProvider(t, testConfig(), d)
	if n := p.ContextWindowSize(context.Background()); n != 32768 {
		t.Errorf("Expected backend size 32768, got %d", n)
	}

	d.err = errors.New("not supported")
	if n := p.ContextWindowSize(context.Background()); n != 128000 {
		t.Errorf("Expected default after failure, got %d", n)
	}

	d.err, d.size = nil, 0
	if n := p.ContextWindowSize(context.Background()); n != 128000 {
		t.Errorf("Expected default for non-positive size, got %d", n)
	}
}

func TestCountTokens(t *testing.T) {
	p, _ := newTestProvider(t, testConfig(), &scriptedTransport{})
	if n := p.CountTokens(context.Background(), "abcdefgh"); n != 2 {
		t.Errorf("Expected approximation 2, got %d", n)
	}

	p, _ = newTestProvider(t, testConfig(), &scriptedTransport{}, WithTokenCounter(fixedCounter{n: 7}))
	if n := p.CountTokens(context.Background(), "abcdefgh"); n != 7 {
		t.Errorf("Expected exact count 7, got %d", n)
	}
}

type echoTemperatureTransport struct{}

func (echoTemperatureTransport) Invoke(_ context.Context, _ Prompt, opts CallOptions) (*Completion, error) {
	return &Completion{Data: json.RawMessage(fmt.Sprintf(`{"temperature":%g}`, *opts.Bound.Temperature))}, nil
}

func (echoTemperatureTransport) ListModelIDs(context.Context) ([]string, error) {
	return nil, nil
}

func TestConcurrentCallsKeepOverridesIsolated(t *testing.T) {
	cfg := testConfig()
	cfg.Temperature = Float(1)
	p, err := NewProvider(cfg, echoTemperatureTransport{})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	type result struct {
		Temperature float64 `json:"temperature"`
	}

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := float64(i) / 10
			req := CompletionRequest{
				Prompt:    TextPrompt("x"),
				Overrides: &CallOverrides{Temperature: Float(want)},
			}
			got, err := StructuredCompletion[result](context.Background(), p, req, OutputSchema{Name: "t"})
			if err != nil {
				errs <- err
				return
			}
			if got.Temperature != want {
				errs <- fmt.Errorf("call %d saw temperature %g", i, got.Temperature)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
