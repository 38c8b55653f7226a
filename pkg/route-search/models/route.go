package models

import (
	"encoding/json"
	"fmt"
)

// RouteRecord is one route option extracted from a search results page.
// Optional fields are nil when the backing element was not found.
type RouteRecord struct {
	RouteID       *string  `json:"route_id" yaml:"route_id"`
	Priority      []string `json:"priority" yaml:"priority"`
	DepartureTime *string  `json:"departure_time" yaml:"departure_time"`
	ArrivalTime   *string  `json:"arrival_time" yaml:"arrival_time"`
	TotalTime     *string  `json:"total_time" yaml:"total_time"`
	TimeOnBoard   *string  `json:"time_on_board" yaml:"time_on_board"`
	Transfers     *string  `json:"transfers" yaml:"transfers"`
	Fare          *string  `json:"fare" yaml:"fare"`
	FareType      *string  `json:"fare_type" yaml:"fare_type"`
	Distance      *string  `json:"distance" yaml:"distance"`
	Details       Details  `json:"details" yaml:"details"`
}

// DetailKind is the discriminator written next to every detail entry.
type DetailKind string

const (
	KindDepartureStation DetailKind = "departure_station"
	KindArrivalStation   DetailKind = "arrival_station"
	KindTransport        DetailKind = "transport"
)

// DetailEntry is one itinerary step. The set of implementations is closed:
// DepartureStation, ArrivalStation and TransportSegment.
type DetailEntry interface {
	Kind() DetailKind
	isDetailEntry()
}

type DepartureStation struct {
	Time        *string `json:"time" yaml:"time"`
	StationName *string `json:"station_name" yaml:"station_name"`
}

type ArrivalStation struct {
	Time        *string `json:"time" yaml:"time"`
	StationName *string `json:"station_name" yaml:"station_name"`
}

type TransportSegment struct {
	LineName          *string `json:"line_name" yaml:"line_name"`
	Destination       *string `json:"destination" yaml:"destination"`
	IsFirstTrain      bool    `json:"is_first_train" yaml:"is_first_train"`
	DeparturePlatform *string `json:"departure_platform" yaml:"departure_platform"`
	ArrivalPlatform   *string `json:"arrival_platform" yaml:"arrival_platform"`
	FareSegment       *string `json:"fare_segment" yaml:"fare_segment"`
}

func (DepartureStation) Kind() DetailKind { return KindDepartureStation }
func (ArrivalStation) Kind() DetailKind   { return KindArrivalStation }
func (TransportSegment) Kind() DetailKind { return KindTransport }

func (DepartureStation) isDetailEntry() {}
func (ArrivalStation) isDetailEntry()   {}
func (TransportSegment) isDetailEntry() {}

// Details is the ordered itinerary of a route. It serialises each entry as a
// flat object carrying a "type" field so stored results can be decoded again.
type Details []DetailEntry

func (d Details) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(d))
	for _, entry := range d {
		raw, err := marshalEntry(entry)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (d *Details) UnmarshalJSON(b []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(b, &raws); err != nil {
		return err
	}
	entries := make(Details, 0, len(raws))
	for i, raw := range raws {
		entry, err := unmarshalEntry(raw)
		if err != nil {
			return fmt.Errorf("detail %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	*d = entries
	return nil
}

// MarshalYAML renders the same flat shape as the JSON form.
func (d Details) MarshalYAML() (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(d))
	for _, entry := range d {
		raw, err := marshalEntry(entry)
		if err != nil {
			return nil, err
		}
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func marshalEntry(entry DetailEntry) (json.RawMessage, error) {
	switch e := entry.(type) {
	case DepartureStation:
		return json.Marshal(struct {
			Type DetailKind `json:"type"`
			DepartureStation
		}{e.Kind(), e})
	case ArrivalStation:
		return json.Marshal(struct {
			Type DetailKind `json:"type"`
			ArrivalStation
		}{e.Kind(), e})
	case TransportSegment:
		return json.Marshal(struct {
			Type DetailKind `json:"type"`
			TransportSegment
		}{e.Kind(), e})
	default:
		return nil, fmt.Errorf("unknown detail entry %T", entry)
	}
}

func unmarshalEntry(raw json.RawMessage) (DetailEntry, error) {
	var head struct {
		Type DetailKind `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case KindDepartureStation:
		var e DepartureStation
		err := json.Unmarshal(raw, &e)
		return e, err
	case KindArrivalStation:
		var e ArrivalStation
		err := json.Unmarshal(raw, &e)
		return e, err
	case KindTransport:
		var e TransportSegment
		err := json.Unmarshal(raw, &e)
		return e, err
	default:
		return nil, fmt.Errorf("unknown detail type %q", head.Type)
	}
}
