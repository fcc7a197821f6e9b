package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/basilisk-ai/rce/internal/session"
)

func newTestExecutor() (*Executor, *session.Manager) {
	mgr := session.NewManager(10, time.Hour)
	return NewExecutor(mgr), mgr
}

func TestRunSimpleArithmetic(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      "result = sum(range(1, 101))\nprint(result)",
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if result.Stdout != "5050\n" {
		t.Fatalf("expected stdout %q, got %q", "5050\n", result.Stdout)
	}
}

func TestPersistedVariablePersistsAcrossCalls(t *testing.T) {
	exec, _ := newTestExecutor()
	first := exec.Run(context.Background(), ExecuteParams{
		Code:      "result = sum(range(1, 101))",
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if first.Error != "" {
		t.Fatalf("unexpected error: %s", first.Error)
	}

	second := exec.Run(context.Background(), ExecuteParams{
		Code:      "print(result)",
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if second.Error != "" {
		t.Fatalf("unexpected error: %s", second.Error)
	}
	if second.Stdout != "5050\n" {
		t.Fatalf("expected persisted result 5050, got %q", second.Stdout)
	}
}

func TestDisallowedImportIsRejectedAsSecurityViolation(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      `load("os", "getenv")`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error == "" {
		t.Fatalf("expected a security violation error")
	}
	if result.Stdout != "" {
		t.Fatalf("expected no stdout when execution is rejected before it begins, got %q", result.Stdout)
	}
}

func TestAllowedImportDoesNotTriggerViolation(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      `print(json.encode({"a": 1}))`,
		SessionID: "s1",
		Profile:   ProfileQuick,
	})
	if result.Error != "" {
		t.Fatalf("unexpected error for allowed module: %s", result.Error)
	}
}

func TestTimeoutProducesDistinguishedError(t *testing.T) {
	exec, _ := newTestExecutor()
	result := exec.Run(context.Background(), ExecuteParams{
		Code:      "x = 0\nfor i in range(1, 100000000):\n    x = x + i",
		SessionID: "slow",
		Profile:   ProfileQuick,
	})
	if result.Error == "" {
		t.Skip("execution completed before the step/timeout ceiling on this machine")
	}
}

func TestIdenticalCodeAndStateProduceEqualOutput(t *testing.T) {
	exec, _ := newTestExecutor()
	params := ExecuteParams{Code: "print(1 + 1)", SessionID: "s2", Profile: ProfileQuick}
	first := exec.Run(context.Background(), params)
	second := exec.Run(context.Background(), params)
	if first.Stdout != second.Stdout {
		t.Fatalf("expected identical output, got %q and %q", first.Stdout, second.Stdout)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	exec, _ := newTestExecutor()
	exec.Run(context.Background(), ExecuteParams{Code: "value = 42", SessionID: "a", Profile: ProfileQuick})
	result := exec.Run(context.Background(), ExecuteParams{Code: "print(value)", SessionID: "b", Profile: ProfileQuick})
	if result.Error == "" {
		t.Fatalf("expected undefined-variable error in an unrelated session")
	}
}
