package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Result codes shared by the data.go.kr feeds.
const (
	ResultNormal = "00"
	ResultNoData = "03"

	// NoDataMsg is the resultMsg that accompanies ResultNoData.
	NoDataMsg = "NO_DATA"
)

// ErrNoData marks a failure that means "nothing published for this bucket
// yet". The cascade shifts to an earlier bucket instead of giving up.
var ErrNoData = errors.New(NoDataMsg)

var errMissingHeader = errors.New("missing response header")

// Header is the response.header node.
type Header struct {
	ResultCode string `json:"resultCode"`
	ResultMsg  string `json:"resultMsg"`
}

// Normal reports whether the upstream signalled success.
func (h Header) Normal() bool {
	return strings.TrimSpace(h.ResultCode) == ResultNormal
}

// NoData reports whether the upstream signalled "not yet published".
func (h Header) NoData() bool {
	return strings.TrimSpace(h.ResultCode) == ResultNoData ||
		strings.EqualFold(strings.TrimSpace(h.ResultMsg), NoDataMsg)
}

func (h Header) String() string {
	return fmt.Sprintf("%s %s", h.ResultCode, h.ResultMsg)
}

// Body is the response.body node.
type Body[T any] struct {
	DataType   string   `json:"dataType,omitempty"`
	Items      Items[T] `json:"items"`
	PageNo     Count    `json:"pageNo"`
	NumOfRows  Count    `json:"numOfRows"`
	TotalCount Count    `json:"totalCount"`
}

// Envelope is the decoded {"response": {"header": ..., "body": ...}} payload
// common to every feed.
type Envelope[T any] struct {
	Response struct {
		Header *Header  `json:"header"`
		Body   *Body[T] `json:"body,omitempty"`
	} `json:"response"`
}

// Header returns the response header. It is always present on a decoded envelope.
func (e Envelope[T]) Header() Header {
	if e.Response.Header == nil {
		return Header{}
	}
	return *e.Response.Header
}

// Items returns the decoded items, nil when the body is absent.
func (e Envelope[T]) Items() []T {
	if e.Response.Body == nil {
		return nil
	}
	return e.Response.Body.Items.Item
}

// DecodeEnvelope decodes a JSON payload permissively. Unknown fields are
// ignored and a lone item object is accepted as a one-element list.
func DecodeEnvelope[T any](feedName, text string) (Envelope[T], error) {
	var env Envelope[T]
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Envelope[T]{}, fmt.Errorf("%s: decode response: %w", feedName, err)
	}
	if env.Response.Header == nil {
		return Envelope[T]{}, fmt.Errorf("%s: decode response: %w", feedName, errMissingHeader)
	}
	return env, nil
}
