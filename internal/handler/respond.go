package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ralpholazo24/turi/internal/calendar"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, ok := calendar.ParseTimeString(fl.Field().String())
		return ok
	})
	return v
}

// decode reads a JSON body into v and validates it. The returned error is
// safe to show to the client.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return errors.New("invalid JSON")
	}
	return validationError(validate.Struct(v))
}

// decodeOptional is decode for endpoints where the body may be empty.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON")
	}
	return validationError(validate.Struct(v))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		field := e.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "hhmm":
			msgs = append(msgs, field+" must be HH:MM")
		default:
			if e.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", field, e.Tag(), e.Param()))
			} else {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", field, e.Tag()))
			}
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryInt reads a non-negative integer query parameter, returning def when
// it is absent or malformed and capping it at max.
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return def
	}
	return min(n, max)
}
