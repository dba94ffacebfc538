package middleware

import (
	"context"
	"errors"

	"motorent/internal/app/commands"
	"motorent/internal/app/queries"
)

var ErrUnauthenticated = errors.New("middleware: caller identity missing")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

type callerKey struct{}

// WithCaller stores the authenticated user id on ctx.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

func CallerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callerKey{}).(string)
	return v, ok && v != ""
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
