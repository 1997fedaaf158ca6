package weather

import (
	"reflect"
	"testing"
)

func TestMergeObservations(t *testing.T) {
	obs := []Observation{
		{Bucket: "2025060110", NX: 60, NY: 127, Category: "T1H", Value: 21.3},
		{Bucket: "2025060110", NX: 60, NY: 127, Category: "REH", Value: 55},
		{Bucket: "2025060109", NX: 60, NY: 127, Category: "T1H", Value: 20.1},
		{Bucket: "2025060110", NX: 60, NY: 127, Category: "T1H", Value: 21.5},
		{Bucket: "2025060110", NX: 61, NY: 127, Category: "T1H", Value: 19},
	}

	got := MergeObservations(obs)
	want := []WeatherInfo{
		{Bucket: "2025060110", NX: 60, NY: 127, Values: map[string]float64{"T1H": 21.5, "REH": 55}},
		{Bucket: "2025060109", NX: 60, NY: 127, Values: map[string]float64{"T1H": 20.1}},
		{Bucket: "2025060110", NX: 61, NY: 127, Values: map[string]float64{"T1H": 19}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestMergeObservationsEmpty(t *testing.T) {
	got := MergeObservations(nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestLocationID(t *testing.T) {
	loc := Location{Name: "seoul", AreaNo: "1100000000", NX: 60, NY: 127, DustRegion: "서울"}
	cases := map[Feed]string{
		FeedWeather:       "60,127",
		FeedDust:          "서울",
		FeedUV:            "1100000000",
		FeedSensibleTemp:  "1100000000",
		FeedAirStagnation: "1100000000",
	}
	for f, want := range cases {
		if got := loc.ID(f); got != want {
			t.Errorf("%s: got %q, want %q", f, got, want)
		}
	}
}

func TestParseFeed(t *testing.T) {
	if f, err := ParseFeed(" UV "); err != nil || f != FeedUV {
		t.Fatalf("got %q, %v", f, err)
	}
	if _, err := ParseFeed("pollen"); err == nil {
		t.Fatal("expected error for unknown feed")
	}
}
