package wizard_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ryfty/ryfty-payments/internal/domain"
	"github.com/ryfty/ryfty-payments/internal/platform/draftstore"
	"github.com/ryfty/ryfty-payments/internal/session"
	"github.com/ryfty/ryfty-payments/internal/wizard"
)

func fill(t *testing.T, w *wizard.Wizard) {
	t.Helper()
	require.NoError(t, w.Update(wizard.StepBasics, []byte(`{"title":"Hell's Gate hike","description":"Gorge walk","status":"draft"}`)))
	require.NoError(t, w.Update(wizard.StepDestinations, []byte(`{"destinations":["Naivasha"],"activities":["hiking"]}`)))
	require.NoError(t, w.Update(wizard.StepInclusions, []byte(`{"inclusions":["transport"],"exclusions":[]}`)))
	require.NoError(t, w.Update(wizard.StepSchedule, []byte(`{
		"start_date":"2025-01-10","end_date":"2025-01-12",
		"meeting_point":{"name":"Archives","address":"Moi Avenue","instructions":"By the fountain",
			"coordinates":{"latitude":-1.2841,"longitude":36.8233}}}`)))
}

func Test_StepNames(t *testing.T) {
	for _, step := range wizard.Steps {
		parsed, err := wizard.ParseStep(step.String())
		require.NoError(t, err)
		assert.Equal(t, step, parsed)
	}
	_, err := wizard.ParseStep("payment")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func Test_Navigation(t *testing.T) {
	w := wizard.New()
	assert.True(t, w.IsFirst())
	assert.Equal(t, "draft", w.Draft.Status)

	t.Run("Back on first step", func(t *testing.T) {
		assert.ErrorIs(t, w.Back(), domain.ErrInvalidTransition)
	})
	t.Run("Next validates current step", func(t *testing.T) {
		err := w.Next()
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, "title is required", domain.UserMessage(err))
		assert.Equal(t, wizard.StepBasics, w.Step)
	})
	t.Run("Forward to the end", func(t *testing.T) {
		fill(t, w)
		for range wizard.Steps[1:] {
			require.NoError(t, w.Next())
		}
		assert.True(t, w.IsLast())
		assert.ErrorIs(t, w.Next(), domain.ErrInvalidTransition)
	})
	t.Run("Back never validates", func(t *testing.T) {
		require.NoError(t, w.Update(wizard.StepSchedule, []byte(`{}`)))
		require.NoError(t, w.Back())
		assert.Equal(t, wizard.StepInclusions, w.Step)
	})
}

func Test_Update(t *testing.T) {
	w := wizard.New()

	err := w.Update(wizard.StepBasics, []byte(`{"title":"x","price":10}`))
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = w.Update(wizard.Step(42), []byte(`{}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func Test_ValidateStep(t *testing.T) {
	type Test struct {
		Name   string
		Step   wizard.Step
		Data   string
		Expect string
	}
	tests := []Test{
		{Name: "Bad status", Step: wizard.StepBasics, Data: `{"title":"a","description":"b","status":"live"}`, Expect: "status must be one of: draft published"},
		{Name: "No destinations", Step: wizard.StepDestinations, Data: `{"destinations":[]}`, Expect: "destinations must have at least 1 item(s)"},
		{Name: "Blank inclusion", Step: wizard.StepInclusions, Data: `{"inclusions":[""]}`, Expect: "inclusions[0] is required"},
		{Name: "Bad date", Step: wizard.StepSchedule, Data: `{"start_date":"10/01/2025","end_date":"2025-01-12","meeting_point":{"name":"a","address":"b"}}`, Expect: "start_date must be a date in the format 2006-01-02"},
		{Name: "End before start", Step: wizard.StepSchedule, Data: `{"start_date":"2025-01-12","end_date":"2025-01-10","meeting_point":{"name":"a","address":"b"}}`, Expect: "end_date must not be before start_date"},
		{Name: "Missing meeting point", Step: wizard.StepSchedule, Data: `{"start_date":"2025-01-10","end_date":"2025-01-10","meeting_point":{"address":"b"}}`, Expect: "name is required"},
		{Name: "Bad latitude", Step: wizard.StepSchedule, Data: `{"start_date":"2025-01-10","end_date":"2025-01-10","meeting_point":{"name":"a","address":"b","coordinates":{"latitude":123,"longitude":36.8}}}`, Expect: "latitude must be a valid latitude"},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			w := wizard.New()
			require.NoError(t, w.Update(test.Step, []byte(test.Data)))
			err := w.ValidateStep(test.Step)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, test.Expect, domain.UserMessage(err))
		})
	}
}

func Test_Submit(t *testing.T) {
	t.Run("Jumps to first invalid step", func(t *testing.T) {
		w := wizard.New()
		fill(t, w)
		require.NoError(t, w.Update(wizard.StepDestinations, []byte(`{"destinations":[]}`)))
		w.Step = wizard.StepSchedule

		_, err := w.Submit()
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, wizard.StepDestinations, w.Step)
	})
	t.Run("Payload shape", func(t *testing.T) {
		w := wizard.New()
		fill(t, w)

		draft, err := w.Submit()
		require.NoError(t, err)

		raw, err := json.Marshal(draft)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))

		assert.Equal(t, "Hell's Gate hike", payload["title"])
		assert.Equal(t, "draft", payload["status"])
		assert.Equal(t, "2025-01-10", payload["start_date"])
		assert.Equal(t, []any{"Naivasha"}, payload["destinations"])
		meeting := payload["meeting_point"].(map[string]any)
		assert.Equal(t, "Archives", meeting["name"])
		coordinates := meeting["coordinates"].(map[string]any)
		assert.Equal(t, -1.2841, coordinates["latitude"])
	})
}

type fakeSubmitter struct {
	drafts []any
	err    error
}

func (f *fakeSubmitter) CreateExperience(_ context.Context, draft any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.drafts = append(f.drafts, draft)
	return "exp-1", nil
}

func Test_Service(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	submitter := &fakeSubmitter{}
	svc := wizard.NewService(draftstore.New(client, 0), submitter, zap.NewNop())
	ctx := session.WithContext(context.Background(), session.New("tok", "user-1"))

	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, domain.ErrSessionRequired)

	w, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepBasics, w.Step)

	_, err = svc.Next(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateStep(ctx, wizard.StepBasics, []byte(`{"title":"Hike","description":"Walk","status":"draft"}`))
	require.NoError(t, err)
	w, err = svc.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepDestinations, w.Step)

	// Progress survives a reload.
	w, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepDestinations, w.Step)
	assert.Equal(t, "Hike", w.Draft.Title)

	_, err = svc.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, submitter.drafts)

	_, err = svc.UpdateStep(ctx, wizard.StepDestinations, []byte(`{"destinations":["Naivasha"]}`))
	require.NoError(t, err)
	_, err = svc.UpdateStep(ctx, wizard.StepSchedule, []byte(`{"start_date":"2025-01-10","end_date":"2025-01-10","meeting_point":{"name":"a","address":"b"}}`))
	require.NoError(t, err)

	submitter.err = domain.Rejected(400, "Title already used")
	_, err = svc.Submit(ctx)
	assert.ErrorIs(t, err, domain.ErrRejected)
	assert.True(t, mr.Exists("ryfty:draft:user-1"))

	submitter.err = nil
	id, err := svc.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "exp-1", id)
	assert.Len(t, submitter.drafts, 1)
	assert.False(t, mr.Exists("ryfty:draft:user-1"))

	_, err = svc.Back(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.UpdateStep(ctx, wizard.StepBasics, []byte(`{"title":"Again","description":"x","status":"draft"}`))
	require.NoError(t, err)
	assert.True(t, mr.Exists("ryfty:draft:user-1"))
	require.NoError(t, svc.Discard(ctx))
	assert.False(t, mr.Exists("ryfty:draft:user-1"))
	assert.NoError(t, svc.Discard(ctx))
}
