package federation

import (
	"context"
	"testing"

	"github.com/YuminosukeSato/neurogo/pkg/log"
)

func completeHandlers() map[CommandType]Handler {
	ok := func(context.Context, map[string]interface{}) (interface{}, error) {
		return "done", nil
	}
	return map[CommandType]Handler{
		CommandConfigUpdate: ok,
		CommandRestart:      ok,
		CommandRunTask:      ok,
		CommandHealthCheck:  ok,
		CommandStop:         ok,
	}
}

func TestNewExecutorRejectsMissingHandler(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)

	handlers := completeHandlers()
	delete(handlers, CommandRunTask)
	if _, err := NewExecutor(handlers, logger); err == nil {
		t.Fatal("NewExecutor accepted a handler map with no run_task handler")
	}

	if _, err := NewExecutor(completeHandlers(), logger); err != nil {
		t.Fatalf("NewExecutor rejected a complete handler map: %v", err)
	}
}

func TestExecutorUnknownCommandType(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	ex, err := NewExecutor(completeHandlers(), logger)
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}

	res := ex.Execute(context.Background(), Command{ID: "c1", Type: "self_destruct"})
	if res.Success {
		t.Error("unknown command type reported success")
	}
	if res.ErrorMessage == "" {
		t.Error("unknown command type carried no error message")
	}
}

func TestExecutorRecoversHandlerPanic(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	handlers := completeHandlers()
	handlers[CommandRunTask] = func(context.Context, map[string]interface{}) (interface{}, error) {
		panic("task blew up")
	}
	ex, err := NewExecutor(handlers, logger)
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}

	res := ex.Execute(context.Background(), Command{ID: "c2", Type: CommandRunTask})
	if res.Success {
		t.Error("panicking handler reported success")
	}
	if res.ErrorMessage == "" {
		t.Error("panicking handler carried no error message")
	}
}

func TestExecutorDispatchesHandlerResult(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	handlers := completeHandlers()
	handlers[CommandHealthCheck] = func(_ context.Context, data map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"status": "healthy", "echo": data["probe"]}, nil
	}
	ex, err := NewExecutor(handlers, logger)
	if err != nil {
		t.Fatalf("NewExecutor returned error: %v", err)
	}

	res := ex.Execute(context.Background(), Command{
		ID:   "c3",
		Type: CommandHealthCheck,
		Data: map[string]interface{}{"probe": "ping"},
	})
	if !res.Success {
		t.Fatalf("health_check failed: %s", res.ErrorMessage)
	}
	out, ok := res.Response.(map[string]interface{})
	if !ok {
		t.Fatalf("response type = %T, want map", res.Response)
	}
	if out["echo"] != "ping" {
		t.Errorf("handler did not receive command data, echo = %v", out["echo"])
	}
}
