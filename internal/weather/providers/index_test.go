package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/i474232898/weather-feed-aggregation/internal/feed"
)

const uvBody = `{"response":{"header":{"resultCode":"00","resultMsg":"NORMAL_SERVICE"},"body":{"dataType":"JSON","items":{"item":[{"code":"A07","areaNo":"1100000000","date":"2025060111","h0":"3","h3":"5","h6":"","h9":"x"}]},"pageNo":1,"numOfRows":10,"totalCount":1}}}`

func TestIndexBuildURL(t *testing.T) {
	f, err := NewSensibleTempFeed(testEndpoint(), "", replies(uvBody), testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	u, err := f.client.BuildURL(IndexParams{AreaNo: " 1100000000 ", Time: "2025060112", RequestCode: "A41"})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	if !strings.HasPrefix(u, "http://feed.test/api?") {
		t.Fatalf("unexpected base: %s", u)
	}
	for _, want := range []string{"serviceKey=a%2Bb%2Fc%3D", "areaNo=1100000000", "time=2025060112", "requestCode=A41", "dataType=JSON", "pageNo=1", "numOfRows=100"} {
		if !strings.Contains(u, want) {
			t.Errorf("url %s missing %s", u, want)
		}
	}

	u, err = f.client.BuildURL(IndexParams{AreaNo: "1100000000", Time: "2025060112", Page: Page{PageNo: 2, NumOfRows: 10}})
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	if strings.Contains(u, "requestCode") {
		t.Errorf("blank request code should be omitted: %s", u)
	}
	if !strings.Contains(u, "pageNo=2") || !strings.Contains(u, "numOfRows=10") {
		t.Errorf("page not applied: %s", u)
	}

	if _, err := f.client.BuildURL(IndexParams{Time: "2025060112"}); err == nil {
		t.Error("expected error for missing area number")
	}
	if _, err := f.client.BuildURL(IndexParams{AreaNo: "1", Time: "2025-06-01"}); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestIndexFallsBackOneHour(t *testing.T) {
	fetcher := replies(noDataBody, uvBody)
	f, err := NewUVFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1100000000", "2025060112")
	if len(got) != 1 {
		t.Fatalf("expected 1 item, got %d", len(got))
	}
	if fetcher.calls() != 2 {
		t.Fatalf("expected 2 fetches, got %d", fetcher.calls())
	}
	if tm := fetcher.query(0).Get("time"); tm != "2025060112" {
		t.Errorf("first attempt time = %s", tm)
	}
	if tm := fetcher.query(1).Get("time"); tm != "2025060111" {
		t.Errorf("second attempt time = %s", tm)
	}

	info := got[0]
	if info.Date != "2025060111" || info.AreaNo != "1100000000" || info.Code != "A07" {
		t.Errorf("unexpected header fields: %+v", info)
	}
	if len(info.Values) != 2 || info.Values[0] != 3 || info.Values[3] != 5 {
		t.Errorf("unexpected values: %v", info.Values)
	}
}

func TestIndexTransformDropsUnusableItems(t *testing.T) {
	body := `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":[` +
		`{"areaNo":"1","date":"","h0":"1"},` +
		`{"areaNo":"1","date":"2025060111","h0":"","h3":" "},` +
		`{"areaNo":"1","date":"2025060111","h0":7,"h3":"4"}` +
		`]}}}}`
	f, err := NewUVFeed(testEndpoint(), replies(body), testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1", "2025060111")
	if len(got) != 1 {
		t.Fatalf("expected only the populated item, got %+v", got)
	}
	if got[0].Values[0] != 7 || got[0].Values[3] != 4 {
		t.Errorf("unexpected values: %v", got[0].Values)
	}
}

func TestIndexSingleItemObject(t *testing.T) {
	body := `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":{"areaNo":"1","date":"2025060111","h1":"-2.5"}}}}}`
	f, err := NewSensibleTempFeed(testEndpoint(), "", replies(body), testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1", "2025060111")
	if len(got) != 1 || got[0].Values[1] != -2.5 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestIndexUpstreamErrorStopsCascade(t *testing.T) {
	cases := map[string]string{
		"error token":  "Error",
		"gateway xml":  "<OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg><returnAuthMsg>SERVICE_KEY_IS_NOT_REGISTERED_ERROR</returnAuthMsg><returnReasonCode>30</returnReasonCode></cmmMsgHeader></OpenAPI_ServiceResponse>",
		"result code":  serviceErrBody,
		"garbage":      "Service Temporarily Unavailable",
		"bare no data": "NO_DATA",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fetcher := replies(body)
			f, err := NewUVFeed(testEndpoint(), fetcher, testOptions()...)
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			got := f.Get(context.Background(), "1", "2025060112")
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil result, got %#v", got)
			}
			if fetcher.calls() != 1 {
				t.Fatalf("expected a single fetch, got %d", fetcher.calls())
			}
		})
	}
}

func TestIndexTransportExhaustion(t *testing.T) {
	fetcher := &fakeFetcher{replies: []reply{{err: errTimeout}}}
	f, err := NewUVFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1", "2025060112")
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if fetcher.calls() != 4 {
		t.Fatalf("expected 4 fetches, got %d", fetcher.calls())
	}
}

func TestIndexTransientTimeoutRecovers(t *testing.T) {
	fetcher := &fakeFetcher{replies: []reply{{err: errTimeout}, {err: errTimeout}, {body: uvBody}}}
	f, err := NewUVFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	if got := f.Get(context.Background(), "1", "2025060111"); len(got) != 1 {
		t.Fatalf("expected data after transient faults, got %+v", got)
	}
	if fetcher.calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.calls())
	}
}

func TestIndexRecoversAfterOutage(t *testing.T) {
	outage := []reply{{err: errTimeout}, {err: errTimeout}, {err: errTimeout}, {err: errTimeout}}
	fetcher := &fakeFetcher{replies: append(outage, reply{err: errTimeout}, reply{err: errTimeout}, reply{body: uvBody})}
	f, err := NewUVFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	if got := f.Get(context.Background(), "1", "2025060112"); len(got) != 0 {
		t.Fatalf("expected empty result during the outage, got %+v", got)
	}
	for i := 0; i < 2; i++ {
		if got := f.Get(context.Background(), "1", "2025060112"); len(got) != 1 {
			t.Fatalf("call %d: expected data once the upstream recovered, got %+v", i+2, got)
		}
	}
	if fetcher.calls() != 8 {
		t.Fatalf("expected 8 fetches, got %d", fetcher.calls())
	}
}

func TestIndexBreakerOpensAfterSustainedOutage(t *testing.T) {
	cases := []struct {
		name    string
		breaker feed.BreakerConfig
		want    int
	}{
		{"default", feed.DefaultBreaker(), 8},
		{"disabled", feed.BreakerConfig{Threshold: -1}, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &fakeFetcher{replies: []reply{{err: errTimeout}}}
			opts := append(testOptions(), WithExecutorOptions(feed.WithBreaker(tc.breaker)))
			f, err := NewUVFeed(testEndpoint(), fetcher, opts...)
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			for i := 0; i < 3; i++ {
				if got := f.Get(context.Background(), "1", "2025060112"); got == nil || len(got) != 0 {
					t.Fatalf("expected empty non-nil result, got %#v", got)
				}
			}
			if fetcher.calls() != tc.want {
				t.Fatalf("expected %d fetches, got %d", tc.want, fetcher.calls())
			}
		})
	}
}

func TestAirStagnationNoDataCascades(t *testing.T) {
	body := `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":[{"code":"A41","areaNo":"1","date":"2025060110","h3":"25","h6":"50","h0":"100"}]}}}}`
	fetcher := replies(noDataBody, noDataMsgBody, body)
	f, err := NewAirStagnationFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1", "2025060112")
	if len(got) != 1 {
		t.Fatalf("expected data from third bucket, got %+v", got)
	}
	if fetcher.calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.calls())
	}
	if rc := fetcher.query(0).Get("requestCode"); rc != "A41" {
		t.Errorf("request code = %q", rc)
	}
	if tm := fetcher.query(2).Get("time"); tm != "2025060110" {
		t.Errorf("third attempt time = %s", tm)
	}
	if _, ok := got[0].Values[0]; ok {
		t.Error("h0 is not an air stagnation offset")
	}
	if got[0].Values[3] != 25 || got[0].Values[6] != 50 {
		t.Errorf("unexpected values: %v", got[0].Values)
	}
}

func TestAirStagnationBareNoDataCascades(t *testing.T) {
	body := `{"response":{"header":{"resultCode":"00"},"body":{"items":{"item":[{"code":"A41","areaNo":"1","date":"2025060110","h3":"75"}]}}}}`
	fetcher := replies("NO_DATA", " NO_DATA\n", body)
	f, err := NewAirStagnationFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	got := f.Get(context.Background(), "1", "2025060112")
	if len(got) != 1 || got[0].Values[3] != 75 {
		t.Fatalf("expected data from third bucket, got %+v", got)
	}
	if fetcher.calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.calls())
	}
}

func TestAirStagnationGivesUpAfterThreeBuckets(t *testing.T) {
	fetcher := replies(noDataBody)
	f, err := NewAirStagnationFeed(testEndpoint(), fetcher, testOptions()...)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}

	if got := f.Get(context.Background(), "1", "2025060112"); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
	if fetcher.calls() != 3 {
		t.Fatalf("expected 3 fetches, got %d", fetcher.calls())
	}
}

func TestIndexTransformNoDataModes(t *testing.T) {
	env, err := feed.DecodeEnvelope[indexItem]("uv", noDataBody)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	uv := &IndexClient{spec: indexSpec{name: "uv"}}
	if out, err := uv.transform(env); err != nil || len(out) != 0 {
		t.Fatalf("uv: out=%v err=%v", out, err)
	}

	stag := &IndexClient{spec: indexSpec{name: "air-stagnation", noDataIsError: true}}
	if _, err := stag.transform(env); !errors.Is(err, feed.ErrNoData) {
		t.Fatalf("air stagnation: expected ErrNoData, got %v", err)
	}
}

func TestConstructorsFailClosed(t *testing.T) {
	cases := map[string]Endpoint{
		"blank url":   {ServiceKey: "k"},
		"bad url":     {BaseURL: "not a url", ServiceKey: "k"},
		"blank key":   {BaseURL: "http://feed.test/api", ServiceKey: "  "},
		"both absent": {},
	}
	for name, ep := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewUVFeed(ep, replies(uvBody)); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("uv: expected ErrNotConfigured, got %v", err)
			}
			if _, err := NewDustFeed(ep, "", replies(uvBody)); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("dust: expected ErrNotConfigured, got %v", err)
			}
			if _, err := NewNowcastFeed(ep, replies(uvBody)); !errors.Is(err, ErrNotConfigured) {
				t.Errorf("weather: expected ErrNotConfigured, got %v", err)
			}
		})
	}

	if _, err := NewAirStagnationFeed(testEndpoint(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("nil fetcher: expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewUVFeed(testEndpoint(), replies(uvBody), WithCascade(feed.Cascade{Layout: feed.LayoutHourly})); err == nil {
		t.Error("expected error for zero cascade step")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, ok := field("NaN", parseFloat); ok {
		t.Error("NaN should be absent")
	}
	if v, ok := field(" 12.5 ", parseFloat); !ok || v != 12.5 {
		t.Errorf("got %v %v", v, ok)
	}
	if _, ok := field("1.5", parseInt); ok {
		t.Error("1.5 is not an integer grade")
	}
	if _, ok := field("x", func(string) (int, bool) { panic("boom") }); ok {
		t.Error("panicking parser should yield absent")
	}
}
