package wizard

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/session"
)

// ErrNoDraft is returned by a Store when the user has no saved draft.
var ErrNoDraft = errors.New("no saved draft")

// Store persists one wizard per owner.
type Store interface {
	Load(ctx context.Context, owner string) (*Wizard, error)
	Save(ctx context.Context, owner string, w *Wizard) error
	Delete(ctx context.Context, owner string) error
}

// Submitter creates the experience described by a completed draft.
type Submitter interface {
	CreateExperience(ctx context.Context, draft any) (string, error)
}

// Service runs the wizard for the session in the request context.
type Service struct {
	store     Store
	submitter Submitter
	logger    *zap.Logger
}

// NewService creates a new wizard service.
func NewService(store Store, submitter Submitter, logger *zap.Logger) *Service {
	return &Service{store: store, submitter: submitter, logger: logger}
}

// Current returns the caller's saved wizard, or a fresh one.
func (s *Service) Current(ctx context.Context) (*Wizard, error) {
	owner, err := session.FromContext(ctx).Owner()
	if err != nil {
		return nil, err
	}
	return s.load(ctx, owner)
}

// UpdateStep replaces the data of one step and saves the draft.
func (s *Service) UpdateStep(ctx context.Context, step Step, data []byte) (*Wizard, error) {
	return s.mutate(ctx, func(w *Wizard) error {
		return w.Update(step, data)
	})
}

// Next validates the current step and advances.
func (s *Service) Next(ctx context.Context) (*Wizard, error) {
	return s.mutate(ctx, (*Wizard).Next)
}

// Back returns to the previous step.
func (s *Service) Back(ctx context.Context) (*Wizard, error) {
	return s.mutate(ctx, (*Wizard).Back)
}

// Submit validates the whole draft, creates the experience and discards the draft.
func (s *Service) Submit(ctx context.Context) (string, error) {
	owner, err := session.FromContext(ctx).Owner()
	if err != nil {
		return "", err
	}
	w, err := s.load(ctx, owner)
	if err != nil {
		return "", err
	}

	draft, err := w.Submit()
	if err != nil {
		// Persist the jump to the invalid step.
		if saveErr := s.store.Save(ctx, owner, w); saveErr != nil {
			s.logger.Warn("Failed to save draft", zap.Error(saveErr))
		}
		return "", err
	}

	id, err := s.submitter.CreateExperience(ctx, draft)
	if err != nil {
		return "", err
	}
	if err := s.store.Delete(ctx, owner); err != nil {
		s.logger.Warn("Failed to delete submitted draft", zap.Error(err))
	}
	s.logger.Info("Experience created", zap.String("experience_id", id))
	return id, nil
}

// Discard deletes the caller's draft.
func (s *Service) Discard(ctx context.Context) error {
	owner, err := session.FromContext(ctx).Owner()
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, owner)
}

func (s *Service) mutate(ctx context.Context, fn func(*Wizard) error) (*Wizard, error) {
	owner, err := session.FromContext(ctx).Owner()
	if err != nil {
		return nil, err
	}
	w, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, owner, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) load(ctx context.Context, owner string) (*Wizard, error) {
	w, err := s.store.Load(ctx, owner)
	if errors.Is(err, ErrNoDraft) {
		return New(), nil
	}
	return w, err
}
