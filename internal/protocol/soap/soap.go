// Package soap implements the SOAP protocol adapter: either a named
// operation against a WSDL-described service (args map marshaled into a
// generic envelope, since the full WSDL-derived client generation toolchain
// lives outside this core's scope) or a user-supplied raw XML envelope with
// a derived SOAPAction.
package soap

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loadvane/corrida/internal/errext"
	"github.com/loadvane/corrida/internal/extract"
	"github.com/loadvane/corrida/internal/lib"
	"github.com/loadvane/corrida/internal/protocol"
)

// Adapter is stateless; one shared *http.Client across VUs.
type Adapter struct {
	Client *http.Client
}

func New() *Adapter { return &Adapter{Client: &http.Client{}} }

// soapEnvelope is the minimal SOAP 1.1 envelope shape used to parse a fault
// out of a response; operation-call requests are built as text by
// buildEnvelope.
type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *soapFault `xml:"Fault"`
		Raw   []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func (a *Adapter) Execute(ctx context.Context, in protocol.Input) (protocol.Output, error) {
	step := in.Step.SOAP
	if step == nil {
		return protocol.Output{}, fmt.Errorf("soap adapter: step has no soap payload")
	}
	result := protocol.NewResult(in, uuid.New().String())
	result.Action = "soap"

	endpoint := step.Endpoint
	if endpoint == "" {
		endpoint = in.BaseURL
	}
	result.URL = endpoint
	result.Method = http.MethodPost

	var envelope string
	var soapAction string
	if step.RawXML != "" {
		envelope = step.RawXML
		soapAction = step.SOAPAction
	} else if step.Operation != "" {
		envelope = buildEnvelope(step.Operation, step.Args)
		soapAction = step.SOAPAction
		if soapAction == "" {
			soapAction = step.Operation
		}
	} else {
		return failSOAP(result, errext.KindConfigInvalid, fmt.Errorf("soap step requires raw_xml or operation"))
	}

	timeout := in.DefaultTimeout
	if step.Timeout.Duration > 0 {
		timeout = step.Timeout.Duration
	}
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, strings.NewReader(envelope))
	if err != nil {
		return failSOAP(result, errext.KindProtocolError, err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", fmt.Sprintf("%q", soapAction))

	start := time.Now()
	resp, err := a.Client.Do(req)
	result.DurationMS = float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		kind := errext.KindProtocolError
		if reqCtx.Err() != nil {
			kind = errext.KindTimeout
		}
		return failSOAP(result, kind, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return failSOAP(result, errext.KindProtocolError, err)
	}
	result.StatusCode = resp.StatusCode
	result.ResponseSize = int64(len(raw))

	var parsed soapEnvelope
	_ = xml.Unmarshal(raw, &parsed)
	if parsed.Body.Fault != nil {
		result.Success = false
		result.ErrorKind = lib.ErrorKind(errext.Kind("soap_fault"))
		result.ErrorMessage = fmt.Sprintf("%s: %s", parsed.Body.Fault.Code, parsed.Body.Fault.String)
		return protocol.Output{Result: result, Response: extract.Response{Body: string(raw), Headers: headerMap(resp.Header)}}, nil
	}

	result.Success = resp.StatusCode < 400
	if !result.Success {
		result.ErrorKind = lib.ErrorKind(errext.KindProtocolError)
		result.ErrorMessage = fmt.Sprintf("unexpected status code %d", resp.StatusCode)
	}

	return protocol.Output{
		Result:   result,
		Response: extract.Response{Body: string(raw), Headers: headerMap(resp.Header)},
	}, nil
}

func failSOAP(result lib.Result, kind errext.Kind, err error) (protocol.Output, error) {
	result.Success = false
	result.ErrorKind = lib.ErrorKind(kind)
	result.ErrorMessage = err.Error()
	return protocol.Output{Result: result}, nil
}

func buildEnvelope(operation string, args map[string]interface{}) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`)
	fmt.Fprintf(&b, "<%s>", operation)
	for k, v := range args {
		fmt.Fprintf(&b, "<%s>%v</%s>", k, v, k)
	}
	fmt.Fprintf(&b, "</%s>", operation)
	b.WriteString(`</soap:Body></soap:Envelope>`)
	return b.String()
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
