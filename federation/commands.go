package federation

import (
	"context"
	"fmt"

	"github.com/YuminosukeSato/neurogo/pkg/errors"
	"github.com/YuminosukeSato/neurogo/pkg/log"
)

// CommandType identifies a control instruction the federation can issue.
type CommandType string

// Command types the federation issues to api-neurons.
const (
	CommandConfigUpdate CommandType = "config_update"
	CommandRestart      CommandType = "restart"
	CommandRunTask      CommandType = "run_task"
	CommandHealthCheck  CommandType = "health_check"
	CommandStop         CommandType = "stop"
)

// commandTypes lists every type an executor must be able to handle.
var commandTypes = []CommandType{
	CommandConfigUpdate,
	CommandRestart,
	CommandRunTask,
	CommandHealthCheck,
	CommandStop,
}

// Handler executes one command type. The returned payload goes back to the
// federation in the completion report.
type Handler func(ctx context.Context, data map[string]interface{}) (interface{}, error)

// Executor dispatches federation commands to their handlers. Construction
// fails when any known command type lacks a handler, so a gap is a startup
// error rather than a runtime surprise.
type Executor struct {
	handlers map[CommandType]Handler
	logger   log.Logger
}

// NewExecutor builds an executor over a complete handler map.
func NewExecutor(handlers map[CommandType]Handler, logger log.Logger) (*Executor, error) {
	if logger == nil {
		logger = log.GetLoggerWithName("federation.commands")
	}
	for _, ct := range commandTypes {
		if handlers[ct] == nil {
			return nil, errors.NewValidationError("handlers", fmt.Sprintf("no handler for command type %q", ct), nil)
		}
	}
	return &Executor{handlers: handlers, logger: logger}, nil
}

// Execute runs one command and converts the outcome, including panics and
// unknown types, into a completion result. It never returns an error: a
// command that cannot run still gets completed with success=false.
func (e *Executor) Execute(ctx context.Context, cmd Command) CommandResult {
	handler, ok := e.handlers[cmd.Type]
	if !ok {
		e.logger.Warn("unknown command type",
			log.CommandIDKey, cmd.ID,
			log.CommandTypeKey, string(cmd.Type),
		)
		return CommandResult{Success: false, ErrorMessage: fmt.Sprintf("unknown command type: %q", cmd.Type)}
	}

	out, err := e.run(ctx, handler, cmd)
	if err != nil {
		e.logger.Error("command failed",
			log.CommandIDKey, cmd.ID,
			log.CommandTypeKey, string(cmd.Type),
			log.ErrAttrKey, err,
		)
		return CommandResult{Success: false, ErrorMessage: err.Error()}
	}
	return CommandResult{Success: true, Response: out}
}

func (e *Executor) run(ctx context.Context, handler Handler, cmd Command) (out interface{}, err error) {
	defer errors.Recover(&err, "Executor.Execute")
	return handler(ctx, cmd.Data)
}
