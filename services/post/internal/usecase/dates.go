package usecase

import (
	"encoding/json"
	"fmt"
	"time"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// ParseDate accepts RFC3339 timestamps and plain YYYY-MM-DD dates (midnight UTC).
func ParseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

// jsonDate decodes a JSON string through ParseDate; null leaves it unset.
type jsonDate struct {
	t *time.Time
}

func (d *jsonDate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	d.t = &t
	return nil
}

func (in *CreatePostInput) UnmarshalJSON(data []byte) error {
	type plain CreatePostInput
	aux := struct {
		*plain
		StartDate jsonDate `json:"start_date"`
		EndDate   jsonDate `json:"end_date"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.StartDate, in.EndDate = aux.StartDate.t, aux.EndDate.t
	return nil
}

func (in *UpdatePostInput) UnmarshalJSON(data []byte) error {
	type plain UpdatePostInput
	aux := struct {
		*plain
		StartDate jsonDate `json:"start_date"`
		EndDate   jsonDate `json:"end_date"`
	}{plain: (*plain)(in)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	in.StartDate, in.EndDate = aux.StartDate.t, aux.EndDate.t
	return nil
}
