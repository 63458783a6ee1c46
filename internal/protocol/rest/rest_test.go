package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
	"github.com/loadvane/corrida/internal/protocol"
)

func TestExecuteGetSuccessPopulatesResultAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := New()
	in := protocol.Input{
		Step:  config.Step{REST: &config.RESTStep{Method: "GET", URL: srv.URL}},
		Debug: config.Debug{CaptureResponseBody: true},
	}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, out.Result.Success)
	assert.Equal(t, 200, out.Result.StatusCode)
	assert.Equal(t, `{"ok":true}`, out.Result.ResponseBody)
	assert.JSONEq(t, `{"ok":true}`, out.Response.Body)
	assert.Equal(t, "yes", out.Response.Headers["X-Custom"])
}

func TestExecuteNonSuccessStatusMarksResultFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New()
	in := protocol.Input{Step: config.Step{REST: &config.RESTStep{Method: "GET", URL: srv.URL}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
	assert.Equal(t, 500, out.Result.StatusCode)
	assert.NotEmpty(t, out.Result.ErrorMessage)
}

func TestExecuteJSONBodyIsSentWithContentType(t *testing.T) {
	var gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = string(buf)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	in := protocol.Input{Step: config.Step{REST: &config.RESTStep{
		Method: "POST",
		URL:    srv.URL,
		Body:   map[string]interface{}{"a": 1},
	}}}
	_, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"a":1}`, gotBody)
}

func TestExecuteFormBodyIsURLEncoded(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	in := protocol.Input{Step: config.Step{REST: &config.RESTStep{
		Method: "POST",
		URL:    srv.URL,
		Form:   map[string]string{"x": "1"},
	}}}
	_, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestExecuteBasicAuthSetsAuthorizationHeader(t *testing.T) {
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	in := protocol.Input{Step: config.Step{REST: &config.RESTStep{
		Method: "GET",
		URL:    srv.URL,
		Auth:   &config.AuthSpec{Type: "basic", Username: "bob", Password: "secret"},
	}}}
	_, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "bob", gotUser)
	assert.Equal(t, "secret", gotPass)
}

func TestExecuteUnknownAuthTypeErrors(t *testing.T) {
	a := New()
	in := protocol.Input{Step: config.Step{REST: &config.RESTStep{
		Method: "GET",
		URL:    "http://example.invalid",
		Auth:   &config.AuthSpec{Type: "bogus"},
	}}}
	out, err := a.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, out.Result.Success)
}

func TestExecuteRequiresRESTPayload(t *testing.T) {
	a := New()
	_, err := a.Execute(context.Background(), protocol.Input{Step: config.Step{}})
	assert.Error(t, err)
}

func TestJoinURLHonorsAbsoluteOverride(t *testing.T) {
	got, err := joinURL("http://base.example", "http://other.example/x")
	require.NoError(t, err)
	assert.Equal(t, "http://other.example/x", got)
}

func TestJoinURLJoinsRelativePath(t *testing.T) {
	got, err := joinURL("http://base.example/", "/v1/items")
	require.NoError(t, err)
	assert.Equal(t, "http://base.example/v1/items", got)
}
