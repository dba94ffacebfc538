package middleware

import (
	"context"

	"motorent/internal/app/commands"
	"motorent/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command inside a unit of work so the draft write and
// the outbox records it stages commit or roll back together.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	retrier, _ := factory.(uow.Retrier)
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			attempts := opts.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			var (
				res any
				err error
			)
			for i := 0; i < attempts; i++ {
				res, err = runUnit(ctx, factory, opts, next, cmd)
				if err == nil || retrier == nil || !retrier.Retryable(err) {
					break
				}
			}
			return res, err
		})
	}
}

func runUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, next commands.Bus, cmd commands.Command) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	execCtx := ctx
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = uow.ContextWithUnitOfWork(execCtx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(context.WithoutCancel(execCtx))
		}
	}()

	res, err := next.Dispatch(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}
