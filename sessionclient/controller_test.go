package sessionclient

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeCollaborator is an in-memory Collaborator with per-call hooks so
// tests can inject failures and control response ordering.
type fakeCollaborator struct {
	mu sync.Mutex

	attempts map[string][]Attempt
	active   map[string]*SessionSnapshot
	tests    map[string]*TestInfo
	question map[string][]Question

	startCalls  int
	submitCalls int
	saveCalls   []map[string]string

	saveHook   func(answers map[string]string) error
	submitHook func(reason string) (*SubmitOutcome, error)
	verifyHook func(code string) error

	submitReasons []string
}

func newFakeCollaborator() *fakeCollaborator {
	return &fakeCollaborator{
		attempts: map[string][]Attempt{},
		active:   map[string]*SessionSnapshot{},
		tests:    map[string]*TestInfo{},
		question: map[string][]Question{},
	}
}

func (f *fakeCollaborator) addTest(testID string, timeLimitMinutes int, questions ...Question) {
	f.tests[testID] = &TestInfo{
		TestID:           testID,
		Title:            "Test " + testID,
		TimeLimitMinutes: timeLimitMinutes,
		TotalQuestions:   len(questions),
	}
	f.question[testID] = questions
}

func (f *fakeCollaborator) StartSession(_ context.Context, testID string) (*SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	info, ok := f.tests[testID]
	if !ok {
		return nil, errors.New("test not found")
	}
	return &SessionSnapshot{
		SessionID:        "sess-" + testID,
		TestID:           testID,
		Answers:          map[string]string{},
		RemainingSeconds: info.TimeLimitMinutes * 60,
	}, nil
}

func (f *fakeCollaborator) ActiveSession(_ context.Context, testID string) (*SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if snap, ok := f.active[testID]; ok {
		return snap, nil
	}
	return nil, ErrNoActiveSession
}

func (f *fakeCollaborator) SessionState(_ context.Context, sessionID string) (*SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, snap := range f.active {
		if snap.SessionID == sessionID {
			return snap, nil
		}
	}
	return nil, ErrNoActiveSession
}

func (f *fakeCollaborator) SaveAnswers(_ context.Context, _ string, answers map[string]string) error {
	f.mu.Lock()
	hook := f.saveHook
	f.saveCalls = append(f.saveCalls, answers)
	f.mu.Unlock()
	if hook != nil {
		return hook(answers)
	}
	return nil
}

func (f *fakeCollaborator) SubmitSession(_ context.Context, _ string, reason string) (*SubmitOutcome, error) {
	f.mu.Lock()
	f.submitCalls++
	f.submitReasons = append(f.submitReasons, reason)
	hook := f.submitHook
	f.mu.Unlock()
	if hook != nil {
		return hook(reason)
	}
	return &SubmitOutcome{Score: 50}, nil
}

func (f *fakeCollaborator) VerifyUnbanCode(_ context.Context, _ string, code string) error {
	f.mu.Lock()
	hook := f.verifyHook
	f.mu.Unlock()
	if hook != nil {
		return hook(code)
	}
	return nil
}

func (f *fakeCollaborator) TestInfo(_ context.Context, testID string) (*TestInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.tests[testID]
	if !ok {
		return nil, errors.New("test not found")
	}
	return info, nil
}

func (f *fakeCollaborator) Questions(_ context.Context, testID string) ([]Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.question[testID], nil
}

func (f *fakeCollaborator) Attempts(_ context.Context, testID string) ([]Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[testID], nil
}

func (f *fakeCollaborator) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func twoQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "First?", Type: "multiple_choice", Options: []string{"A", "B"}, OrderNum: 1},
		{ID: "q2", Text: "Second?", Type: "multiple_choice", Options: []string{"A", "B"}, OrderNum: 2},
	}
}

func startedController(t *testing.T, api *fakeCollaborator, testID string) *Controller {
	t.Helper()
	ctrl := NewController(api)
	if err := ctrl.Start(context.Background(), testID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := ctrl.Status(); got != StatusActive {
		t.Fatalf("status after start = %s, want %s", got, StatusActive)
	}
	return ctrl
}

func TestStartRejectsCompletedTest(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)
	api.attempts["t1"] = []Attempt{{TestID: "t1", Score: 80}}

	ctrl := NewController(api)
	err := ctrl.Start(context.Background(), "t1")
	if !errors.Is(err, ErrTestAlreadyTaken) {
		t.Fatalf("Start = %v, want ErrTestAlreadyTaken", err)
	}
	if api.startCalls != 0 {
		t.Fatalf("startCalls = %d, want 0", api.startCalls)
	}
	if ctrl.Status() != StatusNotStarted {
		t.Fatalf("status = %s, want not_started", ctrl.Status())
	}
}

func TestStartResumesExistingSessionWithoutCreating(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t2", 1, twoQuestions()...)
	api.active["t2"] = &SessionSnapshot{
		SessionID:        "sess-existing",
		TestID:           "t2",
		Answers:          map[string]string{"q1": "B"},
		RemainingSeconds: 30,
	}

	ctrl := startedController(t, api, "t2")

	if api.startCalls != 0 {
		t.Fatalf("startCalls = %d, want 0 (must resume, not create)", api.startCalls)
	}
	if ctrl.SessionID() != "sess-existing" {
		t.Fatalf("sessionID = %s, want sess-existing", ctrl.SessionID())
	}
	if got, _ := ctrl.Answer("q1"); got != "B" {
		t.Fatalf("answers[q1] = %q, want B", got)
	}
}

func TestContinueRestoresAnswersAndIndex(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t2", 1, twoQuestions()...)

	snap := &SessionSnapshot{
		SessionID:        "sess-t2",
		TestID:           "t2",
		Answers:          map[string]string{"q5": "C"},
		RemainingSeconds: 45,
	}

	ctrl := NewController(api)
	if err := ctrl.Continue(context.Background(), "t2", snap); err != nil {
		t.Fatalf("Continue: %v", err)
	}

	if api.startCalls != 0 {
		t.Fatalf("startCalls = %d, want 0", api.startCalls)
	}
	if got, _ := ctrl.Answer("q5"); got != "C" {
		t.Fatalf("answers[q5] = %q, want C", got)
	}
	if ctrl.CurrentQuestionIndex() != 0 {
		t.Fatalf("currentQuestionIndex = %d, want 0", ctrl.CurrentQuestionIndex())
	}
	if ctrl.RemainingSeconds() != 45 {
		t.Fatalf("remaining = %d, want 45", ctrl.RemainingSeconds())
	}
}

func TestAnswerRollbackOnSaveFailure(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err != nil {
		t.Fatalf("first update: %v", err)
	}

	api.saveHook = func(map[string]string) error { return errors.New("connection reset") }

	err := ctrl.UpdateAnswer(context.Background(), "q1", "B")
	if !errors.Is(err, ErrAnswerNotSaved) {
		t.Fatalf("UpdateAnswer = %v, want ErrAnswerNotSaved", err)
	}
	if got, _ := ctrl.Answer("q1"); got != "A" {
		t.Fatalf("answers[q1] = %q after failed save, want rollback to A", got)
	}
}

func TestAnswerRollbackDeletesWhenNoPriorValue(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	api.saveHook = func(map[string]string) error { return errors.New("timeout") }

	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err == nil {
		t.Fatal("UpdateAnswer succeeded, want error")
	}
	if _, ok := ctrl.Answer("q1"); ok {
		t.Fatal("answers[q1] still set after rollback of a first write")
	}
}

func TestLastWriteWinsAcrossRacingSaves(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	firstEntered := make(chan struct{})
	releaseFirst := make(chan struct{})
	var once sync.Once

	api.saveHook = func(answers map[string]string) error {
		if answers["q1"] == "A" {
			once.Do(func() { close(firstEntered) })
			<-releaseFirst
			return errors.New("slow save finally failed")
		}
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.UpdateAnswer(context.Background(), "q1", "A")
	}()

	<-firstEntered
	if err := ctrl.UpdateAnswer(context.Background(), "q1", "B"); err != nil {
		t.Fatalf("second update: %v", err)
	}

	// The first save now fails after the second already succeeded. Its
	// rollback must not clobber the newer value.
	close(releaseFirst)
	if err := <-done; err != nil {
		// The stale save reports no error to its caller because a newer
		// write superseded it.
		t.Fatalf("stale update returned error: %v", err)
	}

	if got, _ := ctrl.Answer("q1"); got != "B" {
		t.Fatalf("answers[q1] = %q, want B (last write wins)", got)
	}
}

func TestSubmitReentrancyGuard(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	submitEntered := make(chan struct{})
	releaseSubmit := make(chan struct{})
	api.submitHook = func(string) (*SubmitOutcome, error) {
		close(submitEntered)
		<-releaseSubmit
		return &SubmitOutcome{Score: 90}, nil
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Submit(context.Background(), ReasonStudent)
	}()

	<-submitEntered
	if err := ctrl.Submit(context.Background(), ReasonStudent); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second submit = %v, want ErrSubmitInFlight", err)
	}

	close(releaseSubmit)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if n := api.submitCount(); n != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", n)
	}
	if ctrl.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", ctrl.Status())
	}
	if ctrl.Score() != 90 {
		t.Fatalf("score = %v, want 90", ctrl.Score())
	}
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")
	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err != nil {
		t.Fatalf("update: %v", err)
	}

	api.submitHook = func(string) (*SubmitOutcome, error) {
		return nil, errors.New("gateway timeout")
	}
	if err := ctrl.Submit(context.Background(), ReasonStudent); err == nil {
		t.Fatal("submit succeeded, want error")
	}
	if ctrl.Status() != StatusActive {
		t.Fatalf("status after failed submit = %s, want active (retryable)", ctrl.Status())
	}
	if got, _ := ctrl.Answer("q1"); got != "A" {
		t.Fatalf("answers lost across failed submit: q1 = %q", got)
	}

	api.submitHook = nil
	if err := ctrl.Submit(context.Background(), ReasonStudent); err != nil {
		t.Fatalf("retry submit: %v", err)
	}
	if ctrl.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", ctrl.Status())
	}
}

func TestLockoutGating(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	for i := 0; i < DefaultWarningLimit; i++ {
		ctrl.RecordWarning()
	}
	if !ctrl.Locked() {
		t.Fatal("controller not locked after reaching warning limit")
	}

	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); !errors.Is(err, ErrSessionLocked) {
		t.Fatalf("UpdateAnswer while locked = %v, want ErrSessionLocked", err)
	}

	api.verifyHook = func(code string) error {
		if code != "1234" {
			return ErrInvalidUnbanCode
		}
		return nil
	}

	if err := ctrl.SubmitUnbanCode(context.Background(), "0000"); !errors.Is(err, ErrInvalidUnbanCode) {
		t.Fatalf("wrong code = %v, want ErrInvalidUnbanCode", err)
	}
	if !ctrl.Locked() {
		t.Fatal("unlocked by a rejected code")
	}

	if err := ctrl.SubmitUnbanCode(context.Background(), "1234"); err != nil {
		t.Fatalf("correct code: %v", err)
	}
	if ctrl.Locked() {
		t.Fatal("still locked after successful verification")
	}
	if ctrl.WarningCount() != 0 {
		t.Fatalf("warningCount = %d after unban, want 0", ctrl.WarningCount())
	}

	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err != nil {
		t.Fatalf("UpdateAnswer after unban: %v", err)
	}
}

func TestWarningCountCapsAtLimit(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	var count int
	var locked bool
	for i := 0; i < DefaultWarningLimit+3; i++ {
		count, locked = ctrl.RecordWarning()
	}
	if count != DefaultWarningLimit {
		t.Fatalf("warningCount = %d after extra warnings, want %d", count, DefaultWarningLimit)
	}
	if !locked {
		t.Fatal("controller not locked at the warning limit")
	}
	if ctrl.WarningCount() != DefaultWarningLimit {
		t.Fatalf("WarningCount() = %d, want %d", ctrl.WarningCount(), DefaultWarningLimit)
	}
}

func TestTimeoutForcesExactlyOneSubmit(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)
	api.active["t1"] = &SessionSnapshot{
		SessionID:        "sess-short",
		TestID:           "t1",
		Answers:          map[string]string{},
		RemainingSeconds: 2,
	}

	ctrl := startedController(t, api, "t1")

	for i := 0; i < 5; i++ {
		_ = ctrl.Tick(context.Background())
	}

	if n := api.submitCount(); n != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", n)
	}
	if got := api.submitReasons[0]; got != ReasonTimeout {
		t.Fatalf("submit reason = %q, want %q", got, ReasonTimeout)
	}
	if ctrl.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", ctrl.Status())
	}
}

func TestEndToEndTimeoutScenario(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...) // time_limit = 1 minute

	ctrl := startedController(t, api, "t1")

	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err != nil {
		t.Fatalf("update: %v", err)
	}

	for i := 0; i < 61; i++ {
		_ = ctrl.Tick(context.Background())
	}

	if n := api.submitCount(); n != 1 {
		t.Fatalf("submit calls = %d, want exactly 1", n)
	}
	if got := api.submitReasons[0]; got != ReasonTimeout {
		t.Fatalf("submit reason = %q, want %q", got, ReasonTimeout)
	}
	if ctrl.Status() != StatusCompleted {
		t.Fatalf("status = %s, want completed", ctrl.Status())
	}
	if got := ctrl.Answers(); len(got) != 1 || got["q1"] != "A" {
		t.Fatalf("answers at submit = %v, want {q1:A}", got)
	}
}

func TestSyncRemainingNeverIncreases(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	ctrl.SyncRemaining(30)
	if got := ctrl.RemainingSeconds(); got != 30 {
		t.Fatalf("remaining = %d, want 30 (server is lower)", got)
	}

	ctrl.SyncRemaining(50)
	if got := ctrl.RemainingSeconds(); got != 30 {
		t.Fatalf("remaining = %d, want 30 (server sync must not extend time)", got)
	}
}

func TestExitDiscardsWithoutSubmitting(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")
	if err := ctrl.UpdateAnswer(context.Background(), "q1", "A"); err != nil {
		t.Fatalf("update: %v", err)
	}

	ctrl.Exit()

	if ctrl.Status() != StatusNotStarted {
		t.Fatalf("status after exit = %s, want not_started", ctrl.Status())
	}
	if len(ctrl.Answers()) != 0 {
		t.Fatal("answers survived exit")
	}
	if n := api.submitCount(); n != 0 {
		t.Fatalf("submit calls = %d after exit, want 0", n)
	}
}

func TestStaleSaveResponseIgnoredAfterClear(t *testing.T) {
	api := newFakeCollaborator()
	api.addTest("t1", 1, twoQuestions()...)

	ctrl := startedController(t, api, "t1")

	saveEntered := make(chan struct{})
	releaseSave := make(chan struct{})
	api.saveHook = func(map[string]string) error {
		close(saveEntered)
		<-releaseSave
		return errors.New("too late anyway")
	}

	done := make(chan error, 1)
	go func() {
		done <- ctrl.UpdateAnswer(context.Background(), "q1", "A")
	}()

	<-saveEntered
	ctrl.Clear()
	close(releaseSave)

	if err := <-done; err != nil {
		t.Fatalf("stale update surfaced error after clear: %v", err)
	}
	if ctrl.Status() != StatusNotStarted {
		t.Fatalf("status = %s, want not_started", ctrl.Status())
	}
	if len(ctrl.Answers()) != 0 {
		t.Fatal("stale save response mutated a cleared session")
	}
}
