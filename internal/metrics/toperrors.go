package metrics

import (
	"sort"
	"strconv"
	"sync"

	"github.com/mstoykov/atlas"
)

// dedupRoot is the shared root of the atlas tag tree every error dedup key
// branches from, so two errors with identical (scenario, action, status,
// message) tags intern to the same *atlas.Node and can be used directly as
// a map key instead of building and hashing a string every Record call.
var dedupRoot = atlas.New()

// maxErrorMessageLen bounds the dedup key's error-message component; the
// dedup key combines scenario, action, status, and the first 200
// characters of the error message.
const maxErrorMessageLen = 200

// ErrorExemplar is one top-error table entry.
type ErrorExemplar struct {
	Scenario string `json:"scenario"`
	Action   string `json:"action"`
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Count    int64  `json:"count"`
}

// TopErrors keeps the N errors with the highest observed count.
type TopErrors struct {
	mu    sync.Mutex
	n     int
	byKey map[*atlas.Node]*ErrorExemplar
}

// NewTopErrors builds a top-error table retaining the top n entries.
func NewTopErrors(n int) *TopErrors {
	if n <= 0 {
		n = 10
	}
	return &TopErrors{n: n, byKey: make(map[*atlas.Node]*ErrorExemplar)}
}

// Record files one failed result under its dedup key.
func (t *TopErrors) Record(scenario, action string, status int, message string) {
	if len(message) > maxErrorMessageLen {
		message = message[:maxErrorMessageLen]
	}
	key := dedupRoot.
		AddLink("scenario", scenario).
		AddLink("action", action).
		AddLink("status", strconv.Itoa(status)).
		AddLink("message", message)

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.byKey[key]; ok {
		e.Count++
		return
	}
	t.byKey[key] = &ErrorExemplar{Scenario: scenario, Action: action, Status: status, Message: message, Count: 1}
}

// Snapshot returns the top N exemplars, highest count first.
func (t *TopErrors) Snapshot() []ErrorExemplar {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ErrorExemplar, 0, len(t.byKey))
	for _, e := range t.byKey {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Message < out[j].Message
	})
	if len(out) > t.n {
		out = out[:t.n]
	}
	return out
}
