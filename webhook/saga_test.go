package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/hindsight-ai/hindsight/analysis"
	"github.com/hindsight-ai/hindsight/github"
	"github.com/hindsight-ai/hindsight/notify"
	"github.com/hindsight-ai/hindsight/settings"
	"github.com/hindsight-ai/hindsight/storage"
)

type fakeStore struct {
	settings    map[int64]*settings.UserSetting
	saved       []storage.HistoricalIssue
	history     []storage.HistoricalIssue
	getErr      error
	saveErr     error
	deleted     []int64
	savedConfig *settings.UserSetting
}

func newFakeStore() *fakeStore {
	return &fakeStore{settings: make(map[int64]*settings.UserSetting)}
}

func (f *fakeStore) SaveSettings(ctx context.Context, setting *settings.UserSetting) error {
	f.savedConfig = setting
	f.settings[setting.InstallationID] = setting
	return nil
}

func (f *fakeStore) GetSettings(ctx context.Context, installationID int64) (*settings.UserSetting, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.settings[installationID], nil
}

func (f *fakeStore) DeleteSettings(ctx context.Context, installationID int64) error {
	f.deleted = append(f.deleted, installationID)
	delete(f.settings, installationID)
	return nil
}

func (f *fakeStore) SaveIssues(ctx context.Context, issues []storage.HistoricalIssue) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, issues...)
	return nil
}

func (f *fakeStore) ListIssues(ctx context.Context, installationID int64, repository string) ([]storage.HistoricalIssue, error) {
	return f.history, nil
}

type fakeFetcher struct {
	diff  string
	err   error
	calls int
}

func (f *fakeFetcher) FetchDiff(ctx context.Context, apiPath string, installationID int64) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.diff, nil
}

type fakeAnalyzer struct {
	result  *analysis.Result
	err     error
	calls   int
	lastReq analysis.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeNotifier struct {
	err    error
	calls  int
	target notify.Target
	result *analysis.Result
}

func (f *fakeNotifier) Send(ctx context.Context, target notify.Target, result *analysis.Result, cfg settings.NotificationSettings) error {
	f.calls++
	f.target = target
	f.result = result
	return f.err
}

func activeSetting(installationID int64, repoName string) *settings.UserSetting {
	return &settings.UserSetting{
		InstallationID: installationID,
		Repositories:   []settings.RepositoryConfig{settings.NewRepositoryConfig(1, repoName)},
		Global:         settings.DefaultGlobalSettings(),
	}
}

func prEvent(action string) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: action,
		PullRequest: &github.PullRequest{
			Number: 42,
			URL:    "https://api.github.com/repos/acme/widgets/pulls/42",
			Head:   &github.Ref{SHA: "abc123"},
		},
		Repository:   &github.Repository{ID: 1, FullName: "acme/widgets"},
		Installation: &github.Installation{ID: 99},
	}
}

func commentResult() *analysis.Result {
	return &analysis.Result{
		Summary:        "One risky change",
		Recommendation: analysis.RecommendComment,
		Issues: []analysis.Issue{
			{Type: "potential_bug", Severity: analysis.SeverityHigh, File: "main.go", Line: 3, Message: "bad"},
		},
	}
}

func TestSagaCompletes(t *testing.T) {
	store := newFakeStore()
	store.settings[99] = activeSetting(99, "acme/widgets")
	fetcher := &fakeFetcher{diff: "diff --git a/x b/x\n"}
	analyzer := &fakeAnalyzer{result: commentResult()}
	notifier := &fakeNotifier{}
	saga := NewSaga(store, fetcher, analyzer, notifier, nil)

	result := saga.Run(context.Background(), prEvent("opened"))

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %q, err = %v", result.Outcome, result.Err)
	}
	if result.Stage != StageCompleted {
		t.Errorf("Stage = %q, want COMPLETED", result.Stage)
	}
	if fetcher.calls != 1 {
		t.Errorf("diff fetches = %d, want 1", fetcher.calls)
	}
	if notifier.calls != 1 {
		t.Errorf("notifications = %d, want 1", notifier.calls)
	}
	if len(store.saved) != 1 {
		t.Errorf("persisted issues = %d, want 1", len(store.saved))
	}
	if notifier.target.CommitSHA != "abc123" {
		t.Errorf("CommitSHA = %q, want abc123", notifier.target.CommitSHA)
	}
	if analyzer.lastReq.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Model = %q", analyzer.lastReq.Model)
	}
}

func TestSagaSkipsInactiveRepo(t *testing.T) {
	store := newFakeStore()
	setting := activeSetting(99, "acme/widgets")
	setting.Repositories[0].Active = false
	store.settings[99] = setting
	fetcher := &fakeFetcher{diff: "diff"}
	analyzer := &fakeAnalyzer{result: commentResult()}
	notifier := &fakeNotifier{}
	saga := NewSaga(store, fetcher, analyzer, notifier, nil)

	result := saga.Run(context.Background(), prEvent("opened"))

	if result.Outcome != OutcomeSkipped {
		t.Fatalf("Outcome = %q, want skipped", result.Outcome)
	}
	if result.Stage != StageGated {
		t.Errorf("Stage = %q, want GATED", result.Stage)
	}
	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	// Nothing outbound happens for a skip.
	if fetcher.calls != 0 || analyzer.calls != 0 || notifier.calls != 0 {
		t.Errorf("outbound calls = %d/%d/%d, want 0/0/0", fetcher.calls, analyzer.calls, notifier.calls)
	}
}

func TestSagaSkipsUnknownInstallation(t *testing.T) {
	store := newFakeStore() // no settings at all
	fetcher := &fakeFetcher{}
	saga := NewSaga(store, fetcher, &fakeAnalyzer{}, &fakeNotifier{}, nil)

	result := saga.Run(context.Background(), prEvent("opened"))
	if result.Outcome != OutcomeSkipped {
		t.Fatalf("Outcome = %q, want skipped", result.Outcome)
	}
	if fetcher.calls != 0 {
		t.Errorf("diff fetches = %d, want 0", fetcher.calls)
	}
}

func TestSagaDiffFailureStopsRun(t *testing.T) {
	store := newFakeStore()
	store.settings[99] = activeSetting(99, "acme/widgets")
	fetcher := &fakeFetcher{err: &github.UpstreamError{Status: 404, URL: "x"}}
	analyzer := &fakeAnalyzer{result: commentResult()}
	notifier := &fakeNotifier{}
	saga := NewSaga(store, fetcher, analyzer, notifier, nil)

	result := saga.Run(context.Background(), prEvent("opened"))

	if result.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %q, want failed", result.Outcome)
	}
	if result.Stage != StageDiffFetched {
		t.Errorf("Stage = %q, want DIFF_FETCHED", result.Stage)
	}
	if fetcher.calls != 1 {
		t.Errorf("diff fetches = %d, want 1", fetcher.calls)
	}
	if analyzer.calls != 0 || notifier.calls != 0 {
		t.Errorf("analyzer/notifier calls = %d/%d, want 0/0", analyzer.calls, notifier.calls)
	}
	var stageErr *StageError
	if !errors.As(result.Err, &stageErr) || stageErr.Stage != StageDiffFetched {
		t.Errorf("Err = %v, want StageError at DIFF_FETCHED", result.Err)
	}
}

func TestSagaNotifyFailureKeepsPersistedIssues(t *testing.T) {
	store := newFakeStore()
	store.settings[99] = activeSetting(99, "acme/widgets")
	fetcher := &fakeFetcher{diff: "diff"}
	analyzer := &fakeAnalyzer{result: commentResult()}
	notifier := &fakeNotifier{err: errors.New("github is down")}
	saga := NewSaga(store, fetcher, analyzer, notifier, nil)

	result := saga.Run(context.Background(), prEvent("opened"))

	if result.Outcome != OutcomeFailed {
		t.Fatalf("Outcome = %q, want failed", result.Outcome)
	}
	if result.Stage != StageNotified {
		t.Errorf("Stage = %q, want NOTIFIED", result.Stage)
	}
	// No rollback: the persisted issues survive the notification failure.
	if len(store.saved) != 1 {
		t.Errorf("persisted issues = %d, want 1", len(store.saved))
	}
}

func TestSagaSkipsPersistenceOnApprove(t *testing.T) {
	store := newFakeStore()
	store.settings[99] = activeSetting(99, "acme/widgets")
	fetcher := &fakeFetcher{diff: "diff"}
	analyzer := &fakeAnalyzer{result: &analysis.Result{
		Summary:        "No issues found",
		Recommendation: analysis.RecommendApprove,
	}}
	notifier := &fakeNotifier{}
	saga := NewSaga(store, fetcher, analyzer, notifier, nil)

	result := saga.Run(context.Background(), prEvent("opened"))

	if result.Outcome != OutcomeCompleted {
		t.Fatalf("Outcome = %q, err = %v", result.Outcome, result.Err)
	}
	if len(store.saved) != 0 {
		t.Errorf("persisted issues = %d, want 0", len(store.saved))
	}
	if notifier.calls != 1 {
		t.Errorf("notifications = %d, want 1", notifier.calls)
	}
}

func TestSagaFeedsHistoryToAnalyzer(t *testing.T) {
	store := newFakeStore()
	store.settings[99] = activeSetting(99, "acme/widgets")
	store.history = []storage.HistoricalIssue{{PRNumber: 7, Type: "potential_bug"}}
	analyzer := &fakeAnalyzer{result: commentResult()}
	saga := NewSaga(store, &fakeFetcher{diff: "diff"}, analyzer, &fakeNotifier{}, nil)

	saga.Run(context.Background(), prEvent("opened"))

	if len(analyzer.lastReq.History) != 1 {
		t.Errorf("history issues = %d, want 1", len(analyzer.lastReq.History))
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 200},
		{"missing signature", github.ErrMissingSignature, 401},
		{"invalid signature", github.ErrInvalidSignature, 401},
		{"unsupported event", github.ErrUnsupportedEvent, 400},
		{"diff failure", &StageError{Stage: StageDiffFetched, Err: &github.UpstreamError{Status: 404}}, 502},
		{"analysis failure", &StageError{Stage: StageAnalyzed, Err: &analysis.AnalysisError{Err: errors.New("x")}}, 502},
		{"notify failure", &StageError{Stage: StageNotified, Err: errors.New("x")}, 502},
		{"settings failure", &StageError{Stage: StageGated, Err: errors.New("db down")}, 500},
		{"persistence failure", &StageError{Stage: StagePersisted, Err: errors.New("db down")}, 500},
		{"parse failure", errors.New("payload is missing pull_request"), 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
