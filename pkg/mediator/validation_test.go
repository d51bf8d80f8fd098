package mediator_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

type signup struct {
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"gte=18"`
}

func notEmpty(ctx context.Context, r echoRequest) []string {
	if r.Text == "" {
		return []string{"text is required"}
	}
	return nil
}

func notShouting(ctx context.Context, r echoRequest) []string {
	if r.Text == "HEY" {
		return []string{"no shouting", "be polite"}
	}
	return nil
}

func TestValidators_FirstMessageWins(t *testing.T) {
	vs := mediator.NewValidators()
	mediator.AddValidator[echoRequest](vs, mediator.ValidatorFunc[echoRequest](notEmpty))
	mediator.AddValidator[echoRequest](vs, mediator.ValidatorFunc[echoRequest](notShouting))
	assert.Equal(t, 2, vs.Count(echoRequest{}))

	ctx := context.Background()
	msg, failed := vs.First(ctx, echoRequest{})
	assert.True(t, failed)
	assert.Equal(t, "text is required", msg)

	assert.Equal(t, []string{"no shouting", "be polite"}, vs.Validate(ctx, &echoRequest{Text: "HEY"}))

	_, failed = vs.First(ctx, echoRequest{Text: "hello"})
	assert.False(t, failed)

	_, failed = vs.First(ctx, signup{})
	assert.False(t, failed, "struct tags are off by default")
}

func TestValidators_StructTags(t *testing.T) {
	vs := mediator.NewValidators(mediator.WithStructTags())
	msgs := vs.Validate(context.Background(), signup{Email: "nope", Age: 20})
	require.Len(t, msgs, 1)
	assert.Equal(t, "email failed on the 'email' rule", msgs[0])

	assert.Empty(t, vs.Validate(context.Background(), &signup{Email: "a@b.io", Age: 30}))
	assert.Empty(t, vs.Validate(context.Background(), 42))
}

func TestValidation_ShortCircuits(t *testing.T) {
	vs := mediator.NewValidators()
	mediator.AddValidator[echoRequest](vs, mediator.ValidatorFunc[echoRequest](notEmpty))

	called := 0
	terminal := func(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
		called++
		return okTerminal(ctx, call)
	}
	h := mediator.Chain(terminal, mediator.Validation(vs))

	res, err := h(context.Background(), echoContract.NewCall(echoRequest{}))
	require.NoError(t, err)
	assert.Zero(t, called)
	assert.Equal(t, http.StatusBadRequest, res.Status())
	e, err := res.Failure()
	require.NoError(t, err)
	assert.True(t, e.Equal(result.NewError(result.CodeValidation, "text is required")))

	res, err = h(context.Background(), echoContract.NewCall(echoRequest{Text: "fine"}))
	require.NoError(t, err)
	assert.Equal(t, 1, called)
	assert.True(t, res.IsOk())
}
