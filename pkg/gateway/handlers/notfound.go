package handlers

import (
	"context"
	"net/http"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/gateway/apierror"
	"github.com/vango-go/vai-navigator/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	apierror.Write(w, &apierror.Error{
		Type:      core.ErrNotFound,
		Message:   "not found",
		RequestID: requestIDFromContext(r.Context()),
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := mw.RequestIDFrom(ctx)
	return id
}
