package journal

import (
	"context"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/mediator/server"
)

// ListRequest asks for the newest journal entries.
type ListRequest struct {
	URI   string `json:"uri,omitempty" form:"uri"`
	Limit int    `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=500"`
}

// ListResponse carries entries newest first.
type ListResponse struct {
	Entries []server.Entry `json:"entries"`
}

// List reads the journal over the mediator.
var List = mediator.NewContract[ListRequest, ListResponse](mediator.MethodGet, "mediator/journal")

// Register serves List from st.
func Register(reg *server.Registry, st Store) error {
	return server.Handle(reg, List, func(ctx context.Context, req ListRequest) (httpresult.Result[ListResponse], error) {
		entries, err := st.Recent(ctx, Filter{URI: req.URI, Limit: req.Limit})
		if err != nil {
			return httpresult.Result[ListResponse]{}, err
		}
		return httpresult.OK(ListResponse{Entries: entries}), nil
	})
}
