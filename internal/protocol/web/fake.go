package web

import (
	"context"
	"fmt"
	"sync"
)

// FakePage is an in-process stand-in for a real browser page. It tracks
// navigated URL, a set of "present" selectors, and arbitrary field values,
// enough to exercise the full adapter command set and write deterministic
// tests against, without a real browser dependency.
type FakePage struct {
	mu       sync.Mutex
	url      string
	present  map[string]bool
	visible  map[string]bool
	text     map[string]string
	value    map[string]string
	checked  map[string]bool
	closed   bool
}

// NewFakePage builds a FakePage with every selector absent by default.
func NewFakePage() *FakePage {
	return &FakePage{
		present: make(map[string]bool),
		visible: make(map[string]bool),
		text:    make(map[string]string),
		value:   make(map[string]string),
		checked: make(map[string]bool),
	}
}

// Seed marks a selector present/visible with given text+value, for tests
// that need to assert against a known DOM shape.
func (p *FakePage) Seed(selector, text, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
	p.visible[selector] = true
	p.text[selector] = text
	p.value[selector] = value
}

func (p *FakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	return nil
}

func (p *FakePage) Click(_ context.Context, selector string) error {
	return p.requirePresent(selector)
}

func (p *FakePage) Fill(_ context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
	p.visible[selector] = true
	p.value[selector] = value
	return nil
}

func (p *FakePage) Select(ctx context.Context, selector, value string) error {
	return p.Fill(ctx, selector, value)
}

func (p *FakePage) Press(_ context.Context, selector, _ string) error {
	return p.requirePresent(selector)
}

func (p *FakePage) Hover(_ context.Context, selector string) error {
	return p.requirePresent(selector)
}

func (p *FakePage) Check(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
	p.checked[selector] = true
	return nil
}

func (p *FakePage) Uncheck(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = true
	p.checked[selector] = false
	return nil
}

func (p *FakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.present[selector], nil
}

func (p *FakePage) Visible(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[selector], nil
}

func (p *FakePage) Text(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present[selector] {
		return "", fmt.Errorf("selector %q not found", selector)
	}
	return p.text[selector], nil
}

func (p *FakePage) Value(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present[selector] {
		return "", fmt.Errorf("selector %q not found", selector)
	}
	return p.value[selector], nil
}

func (p *FakePage) Screenshot(_ context.Context, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("page closed")
	}
	return nil
}

func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *FakePage) requirePresent(selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.present[selector] {
		return fmt.Errorf("selector %q not found", selector)
	}
	return nil
}
