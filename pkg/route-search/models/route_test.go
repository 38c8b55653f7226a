package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func strPtr(s string) *string { return &s }

func TestDetailsJSON(t *testing.T) {
	details := Details{
		DepartureStation{Time: strPtr("09:00"), StationName: strPtr("渋谷")},
		TransportSegment{
			LineName:          strPtr("JR山手線外回り"),
			Destination:       strPtr("品川方面"),
			IsFirstTrain:      true,
			DeparturePlatform: strPtr("2番線"),
			FareSegment:       strPtr("170円"),
		},
		ArrivalStation{Time: strPtr("09:07"), StationName: strPtr("新宿")},
	}

	raw, err := json.Marshal(details)
	require.NoError(t, err)

	var generic []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Len(t, generic, 3)
	assert.Equal(t, "departure_station", generic[0]["type"])
	assert.Equal(t, "transport", generic[1]["type"])
	assert.Nil(t, generic[1]["arrival_platform"])
	assert.Equal(t, "arrival_station", generic[2]["type"])

	var decoded Details
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, details, decoded)
}

func TestDetailsJSONErrors(t *testing.T) {
	var d Details
	assert.Error(t, json.Unmarshal([]byte(`[{"type":"walk"}]`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"transport"}`), &d))
}

func TestEmptyCollectionsAreArrays(t *testing.T) {
	raw, err := json.Marshal(RouteRecord{Priority: []string{}, Details: Details{}})
	require.NoError(t, err)

	var generic map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, []interface{}{}, generic["priority"])
	assert.Equal(t, []interface{}{}, generic["details"])
	assert.Nil(t, generic["fare_type"])
}

func TestDetailsYAML(t *testing.T) {
	out, err := yaml.Marshal(RouteRecord{
		RouteID:  strPtr("route01"),
		Priority: []string{},
		Details:  Details{ArrivalStation{Time: strPtr("09:07"), StationName: strPtr("新宿")}},
	})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "route_id: route01")
	assert.Contains(t, s, "type: arrival_station")
	assert.Contains(t, s, "station_name: 新宿")
}

func TestSearchQueryParams(t *testing.T) {
	q := SearchQuery{From: "渋谷", To: "新宿", Time: "0900"}
	assert.Equal(t, map[string]string{"from": "渋谷", "to": "新宿", "time": "0900"}, q.Params())
}
