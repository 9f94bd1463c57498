package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// MaxRequestBody caps JSON request bodies.
const MaxRequestBody = 1 << 20

// ErrBodyTooLarge is returned by ParseJSON when the body exceeds MaxRequestBody.
var ErrBodyTooLarge = errors.New("request body too large")

// ParseJSON decodes a JSON body into dest. Unknown fields are rejected so a
// typo in a field name fails loudly instead of being ignored.
func ParseJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
