package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"deliveryTracking/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// DecodeEnvelope parses a raw client frame.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, apperr.Wrap(apperr.CodeValidation, err, "malformed message")
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return Envelope{}, apperr.New(apperr.CodeValidation, "event is required")
	}
	return env, nil
}

func DecodeLocationUpdate(data []byte) (LocationUpdateRequest, error) {
	var req LocationUpdateRequest
	if err := decodeStrict(data, &req); err != nil {
		return req, err
	}
	req.DeliveryID = strings.TrimSpace(req.DeliveryID)
	return req, nil
}

func DecodeStatusUpdate(data []byte) (StatusUpdateRequest, error) {
	var req StatusUpdateRequest
	if err := decodeStrict(data, &req); err != nil {
		return req, err
	}
	return req, nil
}

// DecodeTrack accepts either a bare JSON string or {"deliveryId": "..."}.
func DecodeTrack(data []byte) (TrackRequest, error) {
	var req TrackRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &req.DeliveryID); err != nil {
			return req, apperr.Wrap(apperr.CodeValidation, err, "invalid payload")
		}
	} else if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, apperr.Wrap(apperr.CodeValidation, err, "invalid payload")
	}
	req.DeliveryID = strings.TrimSpace(req.DeliveryID)
	if err := validate.Struct(req); err != nil {
		return req, formatValidationErrors(err)
	}
	return req, nil
}

func decodeStrict(data []byte, dest any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return apperr.New(apperr.CodeValidation, "payload is required")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid payload")
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *apperr.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
	}
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Field()+" "+validationMessage(fe))
	}
	sort.Strings(msgs)
	return apperr.New(apperr.CodeValidation, strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}
