package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadvane/corrida/internal/config"
)

func TestRunJSONExtractsValue(t *testing.T) {
	resp := Response{Body: `{"user":{"id":42}}`}
	v, err := Run(config.Extract{Name: "id", Source: "json", Path: "user.id"}, resp)
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestRunJSONMissingPathWithoutDefaultErrors(t *testing.T) {
	resp := Response{Body: `{}`}
	_, err := Run(config.Extract{Name: "id", Source: "json", Path: "user.id"}, resp)
	assert.Error(t, err)
}

func TestRunJSONMissingPathWithDefaultReturnsDefault(t *testing.T) {
	resp := Response{Body: `{}`}
	v, err := Run(config.Extract{Name: "id", Source: "json", Path: "user.id", Default: "none"}, resp)
	require.NoError(t, err)
	assert.Equal(t, "none", v)
}

func TestRunRegexCapturesFirstGroup(t *testing.T) {
	resp := Response{Body: "token=abc123;"}
	v, err := Run(config.Extract{Name: "tok", Source: "regex", Path: `token=(\w+);`}, resp)
	require.NoError(t, err)
	assert.Equal(t, "abc123", v)
}

func TestRunRegexEmptyMatchWithoutDefaultErrors(t *testing.T) {
	resp := Response{Body: "nothing here"}
	_, err := Run(config.Extract{Name: "tok", Source: "regex", Path: `token=(\w+);`}, resp)
	assert.Error(t, err)
}

func TestRunHeaderIsCaseInsensitive(t *testing.T) {
	resp := Response{Headers: map[string]string{"X-Request-Id": "abc"}}
	v, err := Run(config.Extract{Name: "rid", Source: "header", Path: "x-request-id"}, resp)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestRunSelectorRequiresHTMLDocument(t *testing.T) {
	_, err := Run(config.Extract{Name: "title", Source: "selector", Path: "h1"}, Response{})
	assert.Error(t, err)
}

func TestRunSelectorExtractsTrimmedText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><h1>  Hello  </h1></body></html>`))
	require.NoError(t, err)
	v, err := Run(config.Extract{Name: "title", Source: "selector", Path: "h1"}, Response{HTML: doc})
	require.NoError(t, err)
	assert.Equal(t, "Hello", v)
}

func TestRunUnknownSourceErrors(t *testing.T) {
	_, err := Run(config.Extract{Name: "x", Source: "bogus"}, Response{})
	assert.Error(t, err)
}
