package server

import (
	"errors"
	"net/http"

	"github.com/admitdesk/admitdesk/pkg/crm"
	"github.com/gin-gonic/gin"
)

// errorBody is the JSON error envelope of every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps the crm error taxonomy onto HTTP statuses. Unknown errors
// become opaque 500s; their detail only goes to the log.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Code: "internal", Message: "internal server error"}

	var validation *crm.ValidationError
	var notFound *crm.NotFoundError
	var queryConfig *crm.QueryConfigurationError
	var partial *crm.PartialAggregateError

	switch {
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		body = errorBody{Code: "validation_failed", Message: validation.Error()}
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		body = errorBody{Code: "not_found", Message: notFound.Error()}
	case errors.As(err, &queryConfig):
		// A query the store index layout cannot serve is a deployment
		// problem, not a client one.
		status = http.StatusInternalServerError
		body = errorBody{Code: "query_configuration", Message: queryConfig.Error()}
	case errors.As(err, &partial):
		status = http.StatusBadGateway
		body = errorBody{Code: "aggregate_failed", Message: "stats aggregation failed"}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}
