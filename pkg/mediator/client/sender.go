package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/schema"

	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/result"
)

// maxResponseBody bounds how much of a response body is read.
const maxResponseBody = 8 << 20

var queryEncoder = func() *schema.Encoder {
	enc := schema.NewEncoder()
	enc.SetAliasTag("form")
	return enc
}()

// send is the terminal handler of the client pipeline.
func (c *Client) send(ctx context.Context, call *mediator.Call) (httpresult.Result[any], error) {
	req, err := c.newRequest(ctx, call)
	if err != nil {
		return httpresult.Result[any]{}, err
	}
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return httpresult.Result[any]{}, cerr
		}
		return httpresult.BadRequest[any](result.NewError(result.CodeTransport, "request could not be delivered", err)), nil
	}
	defer resp.Body.Close()
	return c.readResponse(call, resp)
}

func (c *Client) newRequest(ctx context.Context, call *mediator.Call) (*http.Request, error) {
	target := call.Path
	var body io.Reader
	method := call.Descriptor.Method
	if method.HasBody() {
		data, err := c.codec.Marshal(call.Request)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", call.Descriptor, err)
		}
		body = bytes.NewReader(data)
	} else {
		q := url.Values{}
		if err := queryEncoder.Encode(call.Request, q); err != nil {
			return nil, fmt.Errorf("encode %s query: %w", call.Descriptor, err)
		}
		if len(q) > 0 {
			target += "?" + q.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, string(method), target, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", c.codec.ContentType())
	}
	req.Header.Set("Accept", c.codec.ContentType()+", "+httpresult.ProblemContentType)
	if call.ID != "" {
		req.Header.Set("X-Request-ID", call.ID)
	}
	return req, nil
}

func (c *Client) readResponse(call *mediator.Call, resp *http.Response) (httpresult.Result[any], error) {
	status := resp.StatusCode
	if status == http.StatusNoContent {
		return httpresult.NoContent[any](), nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return httpresult.Result[any]{}, fmt.Errorf("read %s response: %w", call.Descriptor, err)
	}

	switch {
	case httpresult.IsSuccessStatus(status):
		codec, _ := mediator.CodecFor(resp.Header.Get("Content-Type"))
		v, err := call.DecodeResponse(codec, data)
		if err != nil {
			return deserializationFailure(fmt.Sprintf("response body of %s could not be decoded", call.Descriptor), err), nil
		}
		return httpresult.OkWith(v, status)
	case httpresult.IsErrorStatus(status):
		p := httpresult.Problem{Status: status}
		if len(data) > 0 {
			if err := mediator.JSON.Unmarshal(data, &p); err != nil {
				p = httpresult.Problem{Status: status}
			}
			p.Status = status
		}
		return httpresult.ErrorWith[any](p.ToError(), status)
	default:
		return deserializationFailure(fmt.Sprintf("unexpected status %d for %s", status, call.Descriptor), nil), nil
	}
}

func deserializationFailure(msg string, cause error) httpresult.Result[any] {
	return httpresult.BadRequest[any](result.NewError(result.CodeDeserialization, msg, cause))
}
