package runner

import (
	"context"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/executor"
	"github.com/torosent/apicontract/internal/isolation"
	"github.com/torosent/apicontract/internal/result"
)

type isolatedExecutor struct {
	ctrl *isolation.Controller
	exec *executor.Executor
}

// Isolated runs each case in a fresh session from ctrl.
func Isolated(ctrl *isolation.Controller, exec *executor.Executor) CaseExecutor {
	return &isolatedExecutor{ctrl: ctrl, exec: exec}
}

func (e *isolatedExecutor) Execute(ctx context.Context, c endpoint.Case) result.TestResult {
	session, err := e.ctrl.ResetBeforeCase()
	if err != nil {
		res := base(c)
		res.Outcome = result.SetupError
		res.SetupIssue = "isolation reset: " + err.Error()
		return res
	}
	return e.exec.ExecuteSession(ctx, session, c)
}
