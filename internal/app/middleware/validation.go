package middleware

import (
	"context"

	"motorent/internal/app/commands"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects malformed commands before they reach storage.
func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}
