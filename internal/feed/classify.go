package feed

import (
	"encoding/xml"
	"strings"
)

// Kind is the coarse shape of a raw upstream payload.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindXMLError
	KindErrorToken
	KindNoDataToken
	KindJSON
)

func (k Kind) String() string {
	switch k {
	case KindXMLError:
		return "xml-error"
	case KindErrorToken:
		return "error-token"
	case KindNoDataToken:
		return "no-data-token"
	case KindJSON:
		return "json"
	default:
		return "unrecognized"
	}
}

// errorToken is the bare body some feeds send instead of the XML envelope.
const errorToken = "Error"

// Classification is the result of inspecting a raw payload. The message
// fields are only set for KindXMLError.
type Classification struct {
	Kind       Kind
	ErrMsg     string
	AuthMsg    string
	ReasonCode string
}

// xmlErrorEnvelope matches the data.go.kr gateway error document, e.g.
// <OpenAPI_ServiceResponse><cmmMsgHeader><errMsg>SERVICE ERROR</errMsg>...
type xmlErrorEnvelope struct {
	ErrMsg     string `xml:"cmmMsgHeader>errMsg"`
	AuthMsg    string `xml:"cmmMsgHeader>returnAuthMsg"`
	ReasonCode string `xml:"cmmMsgHeader>returnReasonCode"`
}

// Classify decides what kind of payload text is. It never decodes JSON.
func Classify(text string) Classification {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return Classification{Kind: KindUnrecognized}
	case strings.HasPrefix(trimmed, "<"):
		c := Classification{Kind: KindXMLError}
		var env xmlErrorEnvelope
		if err := xml.Unmarshal([]byte(trimmed), &env); err == nil {
			c.ErrMsg = strings.TrimSpace(env.ErrMsg)
			c.AuthMsg = strings.TrimSpace(env.AuthMsg)
			c.ReasonCode = strings.TrimSpace(env.ReasonCode)
		}
		return c
	case strings.EqualFold(trimmed, errorToken):
		return Classification{Kind: KindErrorToken}
	case trimmed == NoDataMsg:
		return Classification{Kind: KindNoDataToken}
	case strings.HasPrefix(trimmed, "{"):
		return Classification{Kind: KindJSON}
	default:
		return Classification{Kind: KindUnrecognized}
	}
}

// describe renders a non-JSON classification as a failure message.
func (c Classification) describe(feedName string) string {
	switch c.Kind {
	case KindXMLError:
		msg := c.ErrMsg
		if msg == "" {
			msg = "unknown error"
		}
		if c.AuthMsg != "" {
			msg += " (" + c.AuthMsg + ")"
		}
		return feedName + ": upstream error: " + msg
	case KindErrorToken:
		return feedName + ": upstream returned error token"
	case KindNoDataToken:
		return feedName + ": upstream returned " + NoDataMsg
	default:
		return feedName + ": unrecognized response"
	}
}
