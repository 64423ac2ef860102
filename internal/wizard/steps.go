// Package wizard models the multi-step experience creation form as a fixed sequence of
// steps over a single draft aggregate.
package wizard

import (
	"fmt"
	"time"

	"github.com/ryfty/ryfty-payments/internal/domain"
)

// Step identifies one page of the wizard.
type Step int

const (
	StepBasics Step = iota
	StepDestinations
	StepInclusions
	StepSchedule
)

// Steps lists every step in order.
var Steps = []Step{StepBasics, StepDestinations, StepInclusions, StepSchedule}

var stepNames = map[Step]string{
	StepBasics:       "basics",
	StepDestinations: "destinations",
	StepInclusions:   "inclusions",
	StepSchedule:     "schedule",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// MarshalText encodes the step by name.
func (s Step) MarshalText() ([]byte, error) {
	if _, ok := stepNames[s]; !ok {
		return nil, fmt.Errorf("unknown step %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a step name.
func (s *Step) UnmarshalText(text []byte) error {
	step, err := ParseStep(string(text))
	if err != nil {
		return err
	}
	*s = step
	return nil
}

// ParseStep returns the step with the given name.
func ParseStep(name string) (Step, error) {
	for step, n := range stepNames {
		if n == name {
			return step, nil
		}
	}
	return 0, domain.NewValidationError(fmt.Sprintf("unknown step %q", name))
}

// BasicsStep names and describes the experience.
type BasicsStep struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=draft published"`
}

// DestinationsStep lists where the experience goes and what happens there.
type DestinationsStep struct {
	Destinations []string `json:"destinations" validate:"min=1,dive,required"`
	Activities   []string `json:"activities" validate:"dive,required"`
}

// InclusionsStep lists what the price covers and what it does not.
type InclusionsStep struct {
	Inclusions []string `json:"inclusions" validate:"dive,required"`
	Exclusions []string `json:"exclusions" validate:"dive,required"`
}

// Coordinates locate the meeting point on a map.
type Coordinates struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// MeetingPoint is where guests gather.
type MeetingPoint struct {
	Name         string       `json:"name" validate:"required"`
	Address      string       `json:"address" validate:"required"`
	Instructions string       `json:"instructions"`
	Coordinates  *Coordinates `json:"coordinates,omitempty" validate:"omitempty"`
}

// DateLayout is the format of start_date and end_date.
const DateLayout = "2006-01-02"

// ScheduleStep sets the dates and the meeting point.
type ScheduleStep struct {
	StartDate    string       `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string       `json:"end_date" validate:"required,datetime=2006-01-02"`
	MeetingPoint MeetingPoint `json:"meeting_point"`
}

// dateRange checks what struct tags cannot: the end date may not precede the start date.
func (s ScheduleStep) dateRange() error {
	start, err := time.Parse(DateLayout, s.StartDate)
	if err != nil {
		return domain.NewValidationError("start_date must be a date in the format " + DateLayout)
	}
	end, err := time.Parse(DateLayout, s.EndDate)
	if err != nil {
		return domain.NewValidationError("end_date must be a date in the format " + DateLayout)
	}
	if end.Before(start) {
		return domain.NewValidationError("end_date must not be before start_date")
	}
	return nil
}

// Draft is the experience being created. Its JSON form is the payload sent to the API.
type Draft struct {
	BasicsStep
	DestinationsStep
	InclusionsStep
	ScheduleStep
}
