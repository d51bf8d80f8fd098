// Package testapp holds the contracts and handlers served by cmd/testapp and
// exercised by cmd/testclient.
package testapp

import (
	"context"
	"errors"
	"fmt"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/mediator/server"
)

// InvalidMessage is rejected by the ValidatedRequest validator.
const InvalidMessage = "not_valid_test_message"

// InvalidMessageError is the validation message returned for InvalidMessage.
const InvalidMessageError = "message must not be " + InvalidMessage

type SimpleRequest struct {
	Count int `json:"count" form:"count"`
}

type SimpleResponse struct {
	NewCount int `json:"newCount"`
}

type ValidatedRequest struct {
	Message string `json:"message" form:"message" validate:"required,max=256"`
}

type ValidatedResponse struct {
	Message string `json:"message"`
}

type NoContentRequest struct {
	ID string `json:"id" form:"id"`
}

type NoContentResponse struct{}

// ThrowingRequest makes its handler panic with Reason.
type ThrowingRequest struct {
	Reason string `json:"reason"`
}

type ThrowingResponse struct{}

var (
	Simple    = mediator.NewContract[SimpleRequest, SimpleResponse](mediator.MethodGet, "testapp/simple_request")
	Validated = mediator.NewContract[ValidatedRequest, ValidatedResponse](mediator.MethodPost, "testapp/validated_request")
	NoContent = mediator.NewContract[NoContentRequest, NoContentResponse](mediator.MethodDelete, "testapp/no_content")
	Throwing  = mediator.NewContract[ThrowingRequest, ThrowingResponse](mediator.MethodPost, "testapp/throwing")
)

// AddValidators registers the request validators shared by client and server.
func AddValidators(vs *mediator.Validators) {
	mediator.AddValidator[ValidatedRequest](vs, mediator.ValidatorFunc[ValidatedRequest](
		func(_ context.Context, r ValidatedRequest) []string {
			if r.Message == InvalidMessage {
				return []string{InvalidMessageError}
			}
			return nil
		}))
}

// Register adds the test handlers to reg.
func Register(reg *server.Registry) error {
	return errors.Join(
		server.Handle(reg, Simple, func(_ context.Context, r SimpleRequest) (httpresult.Result[SimpleResponse], error) {
			return httpresult.OK(SimpleResponse{NewCount: r.Count + 1}), nil
		}),
		server.Handle(reg, Validated, func(_ context.Context, r ValidatedRequest) (httpresult.Result[ValidatedResponse], error) {
			return httpresult.OK(ValidatedResponse(r)), nil
		}),
		server.Handle(reg, NoContent, func(context.Context, NoContentRequest) (httpresult.Result[NoContentResponse], error) {
			return httpresult.NoContent[NoContentResponse](), nil
		}),
		server.Handle(reg, Throwing, func(_ context.Context, r ThrowingRequest) (httpresult.Result[ThrowingResponse], error) {
			panic(fmt.Sprintf("testapp: %s", r.Reason))
		}),
	)
}
