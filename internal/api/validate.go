package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"wasteroute/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error {
	err := validate.Struct(v)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	return err
}

// validateListQuery checks the GET /v1/routes filters.
func validateListQuery(status string) error {
	switch status {
	case "", model.RoutePlanned, model.RouteActive, model.RouteFinished, model.RouteCancelled:
		return nil
	}
	return fmt.Errorf("invalid status: %s", status)
}

