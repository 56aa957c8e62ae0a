package transcript

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Page is the hosting page context seen by the Locator.
// Reads are limited to embedded scripts and the rendered DOM; the only write
// is activating one control.
type Page interface {
	// Scripts returns the text of every embedded script element.
	Scripts(ctx context.Context) ([]string, error)

	// Document returns the current rendered DOM.
	Document(ctx context.Context) (*goquery.Document, error)

	// Click activates the first element matching selector.
	// Reports false when nothing matches.
	Click(ctx context.Context, selector string) (bool, error)

	// Observe subscribes to DOM changes. The channel receives a value after
	// each change; stop disconnects the observer and must be called once done.
	Observe(ctx context.Context) (changes <-chan struct{}, stop func())
}

// HTMLPage is a Page backed by a static HTML document.
// Update swaps the document and notifies observers, simulating a live DOM.
type HTMLPage struct {
	mu        sync.Mutex
	doc       *goquery.Document
	observers map[int]chan struct{}
	nextID    int
	onClick   func(selector string)
}

// NewHTMLPage parses html into a Page.
func NewHTMLPage(html string) (*HTMLPage, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	return &HTMLPage{doc: doc, observers: make(map[int]chan struct{})}, nil
}

func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// OnClick registers a hook run after a successful Click.
// The hook runs without the page lock held and may call Update.
func (p *HTMLPage) OnClick(fn func(selector string)) {
	p.mu.Lock()
	p.onClick = fn
	p.mu.Unlock()
}

// Update replaces the document and notifies every observer.
func (p *HTMLPage) Update(html string) error {
	doc, err := parseHTML(html)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	for _, ch := range p.observers {
		select {
		case ch <- struct{}{}:
		default:
			// A change is already pending for this observer.
		}
	}
	return nil
}

// Observers returns the number of connected observers.
func (p *HTMLPage) Observers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.observers)
}

// Scripts implements Page.
func (p *HTMLPage) Scripts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var scripts []string
	p.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scripts = append(scripts, s.Text())
	})
	return scripts, nil
}

// Document implements Page.
func (p *HTMLPage) Document(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc, nil
}

// Click implements Page.
func (p *HTMLPage) Click(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	found := p.doc.Find(selector).Length() > 0
	hook := p.onClick
	p.mu.Unlock()

	if found && hook != nil {
		hook(selector)
	}
	return found, nil
}

// Observe implements Page.
func (p *HTMLPage) Observe(_ context.Context) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
	return ch, stop
}
