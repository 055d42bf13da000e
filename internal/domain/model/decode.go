package model

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
)

var validate = validator.New()

// DecodeEvent turns a stored event document into a normalized Event.
func DecodeEvent(id string, version int64, fields map[string]any) (Event, error) {
	var e Event
	if err := decode(fields, &e); err != nil {
		return Event{}, fmt.Errorf("%w: event %s: %w", ErrDecode, id, err)
	}
	e.ID = id
	e.Version = version
	e.Name = strings.TrimSpace(e.Name)
	e.JudgingCriteria = NormalizeCriteria(e.JudgingCriteria)
	for i := range e.Scores {
		if e.Scores[i].Scores == nil {
			e.Scores[i].Scores = map[string]float64{}
		}
	}
	if err := ValidateRecord(&e); err != nil {
		return Event{}, fmt.Errorf("event %s: %w", id, err)
	}
	return e, nil
}

// DecodeRegistration turns a stored registration document into a Registration.
func DecodeRegistration(id string, fields map[string]any) (Registration, error) {
	var r Registration
	if err := decode(fields, &r); err != nil {
		return Registration{}, fmt.Errorf("%w: registration %s: %w", ErrDecode, id, err)
	}
	r.ID = id
	r.TeamName = strings.TrimSpace(r.TeamName)
	if r.Status == "" {
		r.Status = StatusPending
	}
	for i := range r.Members {
		r.Members[i].Name = strings.TrimSpace(r.Members[i].Name)
		r.Members[i].Email = strings.TrimSpace(r.Members[i].Email)
	}
	if err := ValidateRecord(&r); err != nil {
		return Registration{}, fmt.Errorf("registration %s: %w", id, err)
	}
	return r, nil
}

// DecodeCriteria decodes a loosely typed criteria list, e.g. a request body.
func DecodeCriteria(raw any) ([]Criterion, error) {
	var out []Criterion
	if err := decode(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: criteria: %w", ErrDecode, err)
	}
	return NormalizeCriteria(out), nil
}

// criterionSpace namespaces the ids derived for criteria stored without one.
var criterionSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:ecell:criterion"))

// NormalizeCriteria trims names and assigns ids to criteria that have none.
// A missing id is derived from the list position and the name, so the same
// stored list yields the same ids on every read.
func NormalizeCriteria(in []Criterion) []Criterion {
	if in == nil {
		return nil
	}
	out := make([]Criterion, len(in))
	for i, c := range in {
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		c.Description = strings.TrimSpace(c.Description)
		if c.ID == "" {
			c.ID = criterionID(i, c.Name)
		}
		out[i] = c
	}
	return out
}

func criterionID(pos int, name string) string {
	key := fmt.Sprintf("%d:%s", pos, strings.ToLower(name))
	return uuid.NewSHA1(criterionSpace, []byte(key)).String()
}

// ValidateRecord runs the struct tag validation of a record.
func ValidateRecord(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return nil
}

// Fields encodes a record into the loosely typed shape stored in documents.
func Fields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return out, nil
}

// Value encodes a record into a single loosely typed field value.
func Value(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return out, nil
}

func decode(in, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       timeHook,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// timeHook parses RFC3339 strings into time.Time; empty strings become the zero time.
func timeHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(time.Time{}) || from.Kind() != reflect.String {
		return data, nil
	}
	s := strings.TrimSpace(reflect.ValueOf(data).String())
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
