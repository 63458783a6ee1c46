// Package extract implements the named-capture directives a step can run
// against a response: JSON path, regex, header, and CSS selector (for web
// steps).
package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/loadvane/corrida/internal/config"
)

// Response is the subset of a protocol adapter's result that extraction
// sources can read from.
type Response struct {
	Body    string
	Headers map[string]string
	// HTML, when non-nil, backs the "selector" source for web steps; REST
	// responses leave it nil.
	HTML *goquery.Document
}

// Run evaluates one extract directive against resp, returning the captured
// value. A regex extraction with an empty match and no configured default is
// an error.
func Run(ex config.Extract, resp Response) (interface{}, error) {
	switch ex.Source {
	case "json":
		return extractJSON(ex, resp)
	case "regex":
		return extractRegex(ex, resp)
	case "header":
		return extractHeader(ex, resp)
	case "selector":
		return extractSelector(ex, resp)
	default:
		return nil, fmt.Errorf("extract %q: unknown source %q", ex.Name, ex.Source)
	}
}

func extractJSON(ex config.Extract, resp Response) (interface{}, error) {
	result := gjson.Get(resp.Body, ex.Path)
	if !result.Exists() {
		if ex.Default != nil {
			return ex.Default, nil
		}
		return nil, fmt.Errorf("extract %q: json path %q not found", ex.Name, ex.Path)
	}
	return result.Value(), nil
}

func extractRegex(ex config.Extract, resp Response) (interface{}, error) {
	re, err := regexp.Compile(ex.Path)
	if err != nil {
		return nil, fmt.Errorf("extract %q: invalid regex %q: %w", ex.Name, ex.Path, err)
	}
	m := re.FindStringSubmatch(resp.Body)
	var captured string
	if len(m) > 1 {
		captured = m[1]
	} else if len(m) == 1 {
		captured = m[0]
	}
	if captured == "" {
		if ex.Default != nil {
			return ex.Default, nil
		}
		return nil, fmt.Errorf("extract %q: regex %q produced an empty match", ex.Name, ex.Path)
	}
	return captured, nil
}

func extractHeader(ex config.Extract, resp Response) (interface{}, error) {
	for k, v := range resp.Headers {
		if strings.EqualFold(k, ex.Path) {
			return v, nil
		}
	}
	if ex.Default != nil {
		return ex.Default, nil
	}
	return nil, fmt.Errorf("extract %q: header %q not present", ex.Name, ex.Path)
}

func extractSelector(ex config.Extract, resp Response) (interface{}, error) {
	if resp.HTML == nil {
		return nil, fmt.Errorf("extract %q: selector source requires an HTML document", ex.Name)
	}
	sel := resp.HTML.Find(ex.Path)
	if sel.Length() == 0 {
		if ex.Default != nil {
			return ex.Default, nil
		}
		return nil, fmt.Errorf("extract %q: selector %q matched no elements", ex.Name, ex.Path)
	}
	return strings.TrimSpace(sel.First().Text()), nil
}
