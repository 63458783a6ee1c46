package data

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/crypto/blake2b"
)

// ErrExhausted is returned by Next when the CSV provider's exhaustion
// policy is stop-vu and there are no more rows for the calling VU; the
// caller terminates the VU cleanly on this sentinel.
var ErrExhausted = fmt.Errorf("csv: exhausted")

// Row is one materialized CSV record as a header->value map.
type Row map[string]string

// Provider is a single CSV file's materialized rows plus cursor state. It
// is process-singleton per absolute file path, created lazily on first VU
// initialization, constructed once and shared read-only thereafter except
// for the cursor.
type Provider struct {
	path       string
	mode       string // unique|next|random
	exhaustion string // cycle|stop-vu
	checksum   string // blake2b-256 of the raw file content, returned by Checksum

	rows []Row // read-only after load

	mu          sync.Mutex
	cursor      uint64 // monotonic global cursor, advanced atomically
	perVULastRow map[int64]int
}

// Checksum returns the blake2b-256 hex digest of the provider's source
// file, computed once at load time.
func (p *Provider) Checksum() string { return p.checksum }

// Registry is the process-wide CSV provider registry, explicitly
// constructed and passed by reference rather than a global map.
type Registry struct {
	mu        sync.Mutex
	providers map[string]*Provider
}

// NewRegistry builds an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*Provider)}
}

// Get returns the provider for path, loading it from fs on first access and
// reusing the materialized rows on every subsequent call.
func (reg *Registry) Get(fs afero.Fs, path, delimiter string, headers []string, filter string, randomize bool, mode, exhaustion string) (*Provider, error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if p, ok := reg.providers[key]; ok {
		return p, nil
	}
	p, err := loadProvider(fs, path, delimiter, headers, filter, randomize, mode, exhaustion)
	if err != nil {
		return nil, err
	}
	reg.providers[key] = p
	return p, nil
}

func loadProvider(fs afero.Fs, path, delimiter string, headers []string, filter string, randomize bool, mode, exhaustion string) (*Provider, error) {
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("csv provider %s: %w", path, err)
	}
	sum := blake2b.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	r := csv.NewReader(strings.NewReader(string(content)))
	if delimiter != "" {
		r.Comma = rune(delimiter[0])
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv provider %s: %w", path, err)
	}
	if len(records) == 0 {
		return &Provider{path: path, mode: mode, exhaustion: exhaustion, checksum: checksum, perVULastRow: map[int64]int{}}, nil
	}

	cols := headers
	start := 0
	if len(cols) == 0 {
		cols = records[0]
		start = 1
	}

	rows := make([]Row, 0, len(records)-start)
	for _, rec := range records[start:] {
		row := make(Row, len(cols))
		for i, col := range cols {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}

	if filter != "" {
		pred, perr := parseFilter(filter)
		if perr != nil {
			return nil, fmt.Errorf("csv provider %s: %w", path, perr)
		}
		filtered := rows[:0:0]
		for _, row := range rows {
			if pred(row) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	if randomize {
		rng := rand.New(rand.NewSource(1))
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
	}

	return &Provider{
		path:       path,
		mode:       mode,
		exhaustion: exhaustion,
		checksum:   checksum,
		rows:       rows,
		perVULastRow: map[int64]int{},
	}, nil
}

// Next returns the row this VU should see for its next iteration, honoring
// the configured mode and exhaustion policy.
func (p *Provider) Next(vuID int64) (Row, error) {
	if len(p.rows) == 0 {
		return nil, ErrExhausted
	}
	switch p.mode {
	case "random":
		// #nosec G404 -- not a security-sensitive random selection
		idx := rand.Intn(len(p.rows))
		return p.rows[idx], nil
	case "unique":
		return p.nextUnique(vuID)
	default: // "next"
		return p.nextGlobal()
	}
}

// nextGlobal advances the shared cursor atomically across VUs.
func (p *Provider) nextGlobal() (Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := uint64(len(p.rows))
	idx := p.cursor % n
	wrapped := p.cursor >= n
	p.cursor++
	if wrapped && p.exhaustion == "stop-vu" {
		return nil, ErrExhausted
	}
	return p.rows[idx], nil
}

// nextUnique gives each VU a distinct row at a per-VU stable offset until
// the global cursor passes the row count, at which point cycle wraps and
// stop-vu returns the sentinel.
func (p *Provider) nextUnique(vuID int64) (Row, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.rows)
	offset, seen := p.perVULastRow[vuID]
	if !seen {
		offset = int(p.cursor)
		p.cursor++
		p.perVULastRow[vuID] = offset
	} else {
		offset += n // subsequent iterations for the same VU walk forward by n
		p.perVULastRow[vuID] = offset
	}
	if offset >= n {
		if p.exhaustion == "stop-vu" {
			return nil, ErrExhausted
		}
		offset %= n
	}
	return p.rows[offset], nil
}

// Len returns the number of materialized rows.
func (p *Provider) Len() int { return len(p.rows) }

// parseFilter compiles the restricted "<column> <op> <value> (AND|OR ...)"
// grammar.
func parseFilter(expr string) (func(Row) bool, error) {
	// Split on AND/OR at the top level (no parens support — a restricted
	// grammar). OR has lower precedence than AND.
	orParts := splitKeyword(expr, "OR")
	var orPreds []func(Row) bool
	for _, orPart := range orParts {
		andParts := splitKeyword(orPart, "AND")
		var andPreds []func(Row) bool
		for _, clause := range andParts {
			pred, err := parseClause(clause)
			if err != nil {
				return nil, err
			}
			andPreds = append(andPreds, pred)
		}
		orPreds = append(orPreds, func(row Row) bool {
			for _, p := range andPreds {
				if !p(row) {
					return false
				}
			}
			return true
		})
	}
	return func(row Row) bool {
		for _, p := range orPreds {
			if p(row) {
				return true
			}
		}
		return false
	}, nil
}

func splitKeyword(s, kw string) []string {
	parts := strings.Split(s, " "+kw+" ")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseClause(clause string) (func(Row) bool, error) {
	fields := strings.Fields(clause)
	if len(fields) < 3 {
		return nil, fmt.Errorf("csv filter: invalid clause %q", clause)
	}
	column, op := fields[0], fields[1]
	value := strings.Trim(strings.Join(fields[2:], " "), `"'`)

	return func(row Row) bool {
		actual, ok := row[column]
		if !ok {
			return false
		}
		switch op {
		case "==", "=":
			return actual == value
		case "!=":
			return actual != value
		case "contains":
			return strings.Contains(actual, value)
		case "<", "<=", ">", ">=":
			af, aerr := strconv.ParseFloat(actual, 64)
			vf, verr := strconv.ParseFloat(value, 64)
			if aerr != nil || verr != nil {
				return false
			}
			switch op {
			case "<":
				return af < vf
			case "<=":
				return af <= vf
			case ">":
				return af > vf
			default:
				return af >= vf
			}
		default:
			return false
		}
	}, nil
}
