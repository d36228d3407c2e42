package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 64 << 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeValidate reads a JSON body into body and runs its validate tags.
func DecodeValidate(r io.Reader, body any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxBodyBytes)).Decode(body); err != nil {
		return &ErrorWithStatusCode{Message: "body is invalid json", StatusCode: http.StatusBadRequest}
	}
	if err := validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &ErrorWithStatusCode{
				Message:    fmt.Sprintf("field %s failed %q check", fe.Field(), fe.Tag()),
				StatusCode: http.StatusBadRequest,
			}
		}
		return &ErrorWithStatusCode{Message: "required fields missing", StatusCode: http.StatusBadRequest}
	}
	return nil
}
