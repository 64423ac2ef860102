package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/validation"
)

var validate = validation.New()

// Wizard is the navigation state of one user's experience draft.
type Wizard struct {
	Step      Step      `json:"step"`
	Draft     Draft     `json:"draft"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a wizard on the first step with an empty draft.
func New() *Wizard {
	return &Wizard{
		Step: StepBasics,
		Draft: Draft{
			BasicsStep: BasicsStep{Status: "draft"},
		},
		UpdatedAt: time.Now().UTC(),
	}
}

// IsFirst reports whether the wizard is on the first step.
func (w *Wizard) IsFirst() bool {
	return w.Step == Steps[0]
}

// IsLast reports whether the wizard is on the last step.
func (w *Wizard) IsLast() bool {
	return w.Step == Steps[len(Steps)-1]
}

// Update replaces the data of step with the JSON object in data.
// Navigation is unaffected and nothing is validated until Next or Submit.
func (w *Wizard) Update(step Step, data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var err error
	switch step {
	case StepBasics:
		var v BasicsStep
		if err = dec.Decode(&v); err == nil {
			w.Draft.BasicsStep = v
		}
	case StepDestinations:
		var v DestinationsStep
		if err = dec.Decode(&v); err == nil {
			w.Draft.DestinationsStep = v
		}
	case StepInclusions:
		var v InclusionsStep
		if err = dec.Decode(&v); err == nil {
			w.Draft.InclusionsStep = v
		}
	case StepSchedule:
		var v ScheduleStep
		if err = dec.Decode(&v); err == nil {
			w.Draft.ScheduleStep = v
		}
	default:
		return domain.NewValidationError(fmt.Sprintf("unknown step %d", int(step)))
	}
	if err != nil {
		return domain.NewValidationError(fmt.Sprintf("invalid %s data: %v", step, err))
	}
	w.touch()
	return nil
}

// Next validates the current step and moves forward.
func (w *Wizard) Next() error {
	if w.IsLast() {
		return domain.NewPaymentError(domain.ErrInvalidTransition, "already on the last step", "INVALID_STEP")
	}
	if err := w.ValidateStep(w.Step); err != nil {
		return err
	}
	w.Step++
	w.touch()
	return nil
}

// Back moves to the previous step without validating anything.
func (w *Wizard) Back() error {
	if w.IsFirst() {
		return domain.NewPaymentError(domain.ErrInvalidTransition, "already on the first step", "INVALID_STEP")
	}
	w.Step--
	w.touch()
	return nil
}

// Submit validates every step and returns the composed draft.
// On failure the wizard moves to the first invalid step.
func (w *Wizard) Submit() (Draft, error) {
	for _, step := range Steps {
		if err := w.ValidateStep(step); err != nil {
			w.Step = step
			w.touch()
			return Draft{}, err
		}
	}
	return w.Draft, nil
}

// ValidateStep validates the data held for one step.
func (w *Wizard) ValidateStep(step Step) error {
	switch step {
	case StepBasics:
		return validate.Struct(w.Draft.BasicsStep)
	case StepDestinations:
		return validate.Struct(w.Draft.DestinationsStep)
	case StepInclusions:
		return validate.Struct(w.Draft.InclusionsStep)
	case StepSchedule:
		if err := validate.Struct(w.Draft.ScheduleStep); err != nil {
			return err
		}
		return w.Draft.ScheduleStep.dateRange()
	}
	return domain.NewValidationError(fmt.Sprintf("unknown step %d", int(step)))
}

func (w *Wizard) touch() {
	w.UpdatedAt = time.Now().UTC()
}
