package rest

import (
	"errors"
	"net/http"

	"github.com/indigo423/kuwaiba-sub029/pkg/process"
)

type ApiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// apiError maps engine errors to a status code and the body returned to the client.
func apiError(err error) (int, ApiError) {
	var (
		malformed  *process.ProcessDefinitionMalformedError
		notCurrent *process.ActivityNotCurrentError
		notMet     *process.ConditionNotMetError
		notFound   *process.NotFoundError
	)
	switch {
	case errors.As(err, &malformed):
		return http.StatusBadRequest, ApiError{Code: "MALFORMED_DEFINITION", Message: err.Error(), Type: "BAD_REQUEST"}
	case errors.As(err, &notCurrent):
		return http.StatusConflict, ApiError{Code: "ACTIVITY_NOT_CURRENT", Message: err.Error(), Type: "CONFLICT"}
	case errors.As(err, &notMet):
		return http.StatusUnprocessableEntity, ApiError{Code: "CONDITION_NOT_MET", Message: err.Error(), Type: "UNPROCESSABLE"}
	case errors.As(err, &notFound), errors.Is(err, process.ErrJoinNotFound):
		return http.StatusNotFound, ApiError{Code: "NOT_FOUND", Message: err.Error(), Type: "NOT_FOUND"}
	case errors.Is(err, process.ErrProcessDefinitionInUse):
		return http.StatusConflict, ApiError{Code: "DEFINITION_IN_USE", Message: err.Error(), Type: "CONFLICT"}
	case errors.Is(err, process.ErrProcessInstanceCompleted):
		return http.StatusConflict, ApiError{Code: "INSTANCE_COMPLETED", Message: err.Error(), Type: "CONFLICT"}
	case errors.Is(err, process.ErrProcessDefinitionDisabled),
		errors.Is(err, process.ErrInvalidProcessDefinitionId),
		errors.Is(err, process.ErrArtifactRequired),
		errors.Is(err, process.ErrNoArtifactDefinition):
		return http.StatusBadRequest, ApiError{Code: "INVALID_REQUEST", Message: err.Error(), Type: "BAD_REQUEST"}
	}
	return http.StatusInternalServerError, ApiError{Code: "ERROR", Message: err.Error(), Type: "ERROR"}
}
