// Package mediator holds the pieces shared by the client and server
// mediators: request contracts, the per-call envelope, the middleware
// pipeline, validators, wire codecs and the composition root.
//
// A contract is declared once and used on both ends:
//
//	var GetUser = mediator.NewContract[GetUserRequest, User](mediator.MethodGet, "users/get")
//
// Pipelines are composed once at start-up and shared by all calls. Middleware
// run in registration order on the way in and unwind in reverse. Any of them
// may return its own result without calling next.
package mediator
