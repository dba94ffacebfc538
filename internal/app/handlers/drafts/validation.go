package drafts

import (
	"context"
	"fmt"
	"strings"

	"motorent/internal/app/commands"
	"motorent/internal/app/middleware"
	"motorent/internal/app/uow"
	"motorent/internal/domain/availability"
	domainlistings "motorent/internal/domain/listings"
	"motorent/internal/domain/shared/daterange"
)

// PayloadValidator checks the raw fields of draft commands without touching storage.
type PayloadValidator struct{}

func (PayloadValidator) Validate(_ context.Context, message any) error {
	switch cmd := message.(type) {
	case StartDraftCommand:
		if strings.TrimSpace(cmd.OwnerID) == "" {
			return domainlistings.ErrOwnerRequired
		}
		_, err := domainlistings.ParseVehicleKind(cmd.Kind)
		return err
	case TapDateCommand:
		_, err := daterange.ParseDay(cmd.Date)
		return err
	case RemoveWindowCommand:
		return checkWindowIndex(cmd.Index)
	case UpdateWindowCommand:
		if err := checkWindowIndex(cmd.Index); err != nil {
			return err
		}
		if _, err := availability.ParseClock(cmd.StartTime); err != nil {
			return err
		}
		_, err := availability.ParseClock(cmd.EndTime)
		return err
	}
	return nil
}

func checkWindowIndex(index int) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", availability.ErrWindowIndex, index)
	}
	return nil
}

var _ middleware.Validator = PayloadValidator{}

const txAttempts = 3

// TxOptions reruns a draft command whose transaction lost a race, up to txAttempts times.
func TxOptions(commands.Command) uow.TxOptions {
	return uow.TxOptions{MaxAttempts: txAttempts}
}
