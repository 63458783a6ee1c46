// Package template implements the VU engine's {{path}} string expansion,
// resolving references in priority order against extracted data,
// scenario/global variables, the current CSV row, faker expressions, and
// the built-ins (__VU, __ITER, timestamp).
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/loadvane/corrida/internal/data"
	"github.com/loadvane/corrida/internal/lib"
)

var refPattern = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)

// Expander resolves {{path}} references for one VU, given its owned
// context and the shared (read-only) faker registry.
type Expander struct {
	Faker *data.Faker
}

// Expand replaces every {{path}} reference in s. A string with only literal
// content (no references) is returned unchanged. Unresolved references are
// a template_error.
func (e *Expander) Expand(s string, ctx *lib.Context) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	var firstErr error
	result := refPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		path := refPattern.FindStringSubmatch(match)[1]
		val, err := e.resolve(path, ctx)
		if err != nil {
			firstErr = err
			return match
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

func (e *Expander) resolve(path string, ctx *lib.Context) (string, error) {
	// 1. extracted-data
	if v, ok := ctx.Extracted[path]; ok {
		return toString(v), nil
	}
	// 2. variables
	if v, ok := ctx.Variables[path]; ok {
		return toString(v), nil
	}
	// 3. CSV row
	if ctx.CSVRow != nil {
		if v, ok := ctx.CSVRow[path]; ok {
			return v, nil
		}
	}
	// 4. faker expression (lazy init on first use)
	if strings.HasPrefix(path, "faker.") {
		if e.Faker == nil {
			return "", fmt.Errorf("template: %q requires faker config", path)
		}
		return e.Faker.Resolve(ctx.VUID, strings.TrimPrefix(path, "faker."))
	}
	// 5. built-ins
	switch path {
	case "__VU":
		return strconv.FormatInt(ctx.VUID, 10), nil
	case "__ITER":
		return strconv.FormatInt(ctx.Iteration, 10), nil
	case "timestamp":
		return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
	}
	return "", fmt.Errorf("template: unresolved reference %q", path)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
