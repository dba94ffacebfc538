package listings

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrValidation = errors.New("listings: validation failed")

// Step is one page of the listing wizard.
type Step string

const (
	StepDetails      Step = "details"
	StepPricing      Step = "pricing"
	StepAvailability Step = "availability"
	StepReview       Step = "review"
)

var Steps = []Step{StepDetails, StepPricing, StepAvailability, StepReview}

func ParseStep(raw string) (Step, error) {
	step := Step(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Steps {
		if s == step {
			return step, nil
		}
	}
	return "", fmt.Errorf("listings: unknown wizard step %q", raw)
}

const minVehicleYear = 1950

// ValidationErrors maps a field name to a message. It matches ErrValidation with errors.Is.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "listings: validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ValidateStep checks the fields owned by step. StepReview checks every step.
func (d *Draft) ValidateStep(step Step, now time.Time) ValidationErrors {
	errs := ValidationErrors{}
	switch step {
	case StepDetails:
		d.validateDetails(errs, now)
	case StepPricing:
		d.validatePricing(errs)
	case StepAvailability:
		d.validateAvailability(errs)
	case StepReview:
		d.validateDetails(errs, now)
		d.validatePricing(errs)
		d.validateAvailability(errs)
	default:
		errs["step"] = fmt.Sprintf("unknown step %q", step)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (d *Draft) validateDetails(errs ValidationErrors, now time.Time) {
	det := d.Details
	if det.Title == "" {
		errs["title"] = "is required"
	}
	if det.Brand == "" {
		errs["brand"] = "is required"
	}
	if det.Model == "" && d.Kind != KindBicycle {
		errs["model"] = "is required"
	}
	maxYear := now.Year() + 1
	if det.Year < minVehicleYear || det.Year > maxYear {
		errs["year"] = fmt.Sprintf("must be between %d and %d", minVehicleYear, maxYear)
	}
	switch d.Kind {
	case KindCar:
		if det.Seats < 1 || det.Seats > 9 {
			errs["seats"] = "must be between 1 and 9"
		}
		switch strings.ToLower(det.Transmission) {
		case "manual", "automatic":
		default:
			errs["transmission"] = "must be manual or automatic"
		}
	case KindBike:
		if det.EngineCC <= 0 {
			errs["engine_cc"] = "must be positive"
		}
	case KindBicycle:
		if strings.TrimSpace(det.FrameSize) == "" {
			errs["frame_size"] = "is required"
		}
	}
}

func (d *Draft) validatePricing(errs ValidationErrors) {
	det := d.Details
	if det.DailyRateCents <= 0 {
		errs["daily_rate_cents"] = "must be positive"
	}
	if det.DepositCents < 0 {
		errs["deposit_cents"] = "must not be negative"
	}
	if len(det.Currency) != 3 {
		errs["currency"] = "must be a 3-letter code"
	}
	if strings.TrimSpace(det.Location.City) == "" {
		errs["location.city"] = "is required"
	}
}

func (d *Draft) validateAvailability(errs ValidationErrors) {
	sel := d.Availability
	if sel == nil || len(sel.Dates()) == 0 {
		errs["availability.dates"] = "select at least one date"
		return
	}
	for i, w := range sel.ActiveWindows() {
		if !w.Ordered() {
			errs[fmt.Sprintf("availability.windows[%d]", i)] = "end time must be after start time"
		}
	}
}
