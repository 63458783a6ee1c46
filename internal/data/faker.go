// Package data implements the two process-wide data providers the VU engine
// consults during template expansion: the CSV provider and the faker. Both
// are explicit registries passed by reference from the engine constructor
// rather than package-level singletons, even though each is still
// effectively "one per process" for a given key (file path for CSV, locale
// for faker) — the registry is what's injectable, not global state.
package data

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Faker resolves dotted category.field expressions (e.g. "person.name",
// "internet.email") against a per-VU-seeded random source, lazily
// initialized on first use with the configured locale.
type Faker struct {
	locale string
	mu     sync.Mutex
	perVU  map[int64]*rand.Rand
	seed   int64
	hasSeed bool
}

// NewFaker builds a faker for the given locale. seed, when set (hasSeed),
// is XORed with each VU's id to produce that VU's deterministic seed.
func NewFaker(locale string, seed int64, hasSeed bool) *Faker {
	return &Faker{
		locale: locale,
		perVU:  make(map[int64]*rand.Rand),
		seed:   seed,
		hasSeed: hasSeed,
	}
}

func (f *Faker) rngFor(vuID int64) *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.perVU[vuID]; ok {
		return r
	}
	var seed int64
	if f.hasSeed {
		seed = f.seed ^ vuID
	} else {
		seed = time.Now().UnixNano() ^ vuID
	}
	r := rand.New(rand.NewSource(seed))
	f.perVU[vuID] = r
	return r
}

// Resolve evaluates a dotted expression like "person.name" for the given
// VU, returning its string representation. Unknown categories/fields return
// an error so the template expander can classify it as template_error.
func (f *Faker) Resolve(vuID int64, expr string) (string, error) {
	parts := strings.SplitN(expr, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("faker expression %q must be category.field", expr)
	}
	rng := f.rngFor(vuID)
	category, field := parts[0], parts[1]
	switch category {
	case "person":
		return f.person(rng, field)
	case "internet":
		return f.internet(rng, field)
	case "address":
		return f.address(rng, field)
	case "commerce":
		return f.commerce(rng, field)
	case "lorem":
		return f.lorem(rng, field)
	case "date":
		return f.date(rng, field)
	case "number":
		return f.number(rng, field)
	case "uuid":
		return uuid.New().String(), nil
	default:
		return "", fmt.Errorf("faker: unknown category %q", category)
	}
}

var firstNames = []string{"Alice", "Bob", "Carol", "Dave", "Erin", "Frank", "Grace", "Heidi", "Ivan", "Judy"}
var lastNames = []string{"Smith", "Jones", "Diaz", "Kim", "Nguyen", "Garcia", "Muller", "Rossi", "Patel", "Kowalski"}
var streets = []string{"Main St", "Oak Ave", "Pine Rd", "Maple Dr", "Cedar Ln"}
var cities = []string{"Springfield", "Riverside", "Fairview", "Greenville", "Madison"}
var words = []string{"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit"}
var products = []string{"Widget", "Gadget", "Gizmo", "Doohickey", "Thingamajig"}

func pick(rng *rand.Rand, xs []string) string { return xs[rng.Intn(len(xs))] }

func (f *Faker) person(rng *rand.Rand, field string) (string, error) {
	first, last := pick(rng, firstNames), pick(rng, lastNames)
	switch field {
	case "first_name":
		return first, nil
	case "last_name":
		return last, nil
	case "name", "full_name":
		return first + " " + last, nil
	default:
		return "", fmt.Errorf("faker.person: unknown field %q", field)
	}
}

func (f *Faker) internet(rng *rand.Rand, field string) (string, error) {
	first, last := pick(rng, firstNames), pick(rng, lastNames)
	switch field {
	case "email":
		return fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), strings.ToLower(last)), nil
	case "username":
		return fmt.Sprintf("%s%d", strings.ToLower(first), rng.Intn(10000)), nil
	case "ip":
		return fmt.Sprintf("%d.%d.%d.%d", rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256)), nil
	case "url":
		return fmt.Sprintf("https://%s.example.com/", strings.ToLower(last)), nil
	default:
		return "", fmt.Errorf("faker.internet: unknown field %q", field)
	}
}

func (f *Faker) address(rng *rand.Rand, field string) (string, error) {
	switch field {
	case "street":
		return fmt.Sprintf("%d %s", rng.Intn(9999)+1, pick(rng, streets)), nil
	case "city":
		return pick(rng, cities), nil
	case "zip":
		return fmt.Sprintf("%05d", rng.Intn(100000)), nil
	default:
		return "", fmt.Errorf("faker.address: unknown field %q", field)
	}
}

func (f *Faker) commerce(rng *rand.Rand, field string) (string, error) {
	switch field {
	case "product_name":
		return pick(rng, products), nil
	case "price":
		return strconv.FormatFloat(float64(rng.Intn(10000))/100.0, 'f', 2, 64), nil
	default:
		return "", fmt.Errorf("faker.commerce: unknown field %q", field)
	}
}

func (f *Faker) lorem(rng *rand.Rand, field string) (string, error) {
	switch field {
	case "word":
		return pick(rng, words), nil
	case "sentence":
		n := 5 + rng.Intn(5)
		out := make([]string, n)
		for i := range out {
			out[i] = pick(rng, words)
		}
		return strings.Join(out, " ") + ".", nil
	default:
		return "", fmt.Errorf("faker.lorem: unknown field %q", field)
	}
}

func (f *Faker) date(rng *rand.Rand, field string) (string, error) {
	switch field {
	case "past":
		return time.Now().Add(-time.Duration(rng.Intn(365*24)) * time.Hour).Format(time.RFC3339), nil
	case "future":
		return time.Now().Add(time.Duration(rng.Intn(365*24)) * time.Hour).Format(time.RFC3339), nil
	case "now":
		return time.Now().Format(time.RFC3339), nil
	default:
		return "", fmt.Errorf("faker.date: unknown field %q", field)
	}
}

func (f *Faker) number(rng *rand.Rand, field string) (string, error) {
	switch field {
	case "digit":
		return strconv.Itoa(rng.Intn(10)), nil
	case "int":
		return strconv.Itoa(rng.Intn(1_000_000)), nil
	default:
		return "", fmt.Errorf("faker.number: unknown field %q", field)
	}
}
