// Package registry keeps track of the templates ropetpl has discovered and
// notifies watchers when they are added, changed or removed.
package registry

import (
	"sort"
	"sync"
	"time"
)

// TemplateRegistry manages all discovered templates
type TemplateRegistry struct {
	templates map[string]*TemplateInfo
	mutex     sync.RWMutex
	watchers  []chan TemplateEvent
}

// TemplateInfo holds metadata about a template file
type TemplateInfo struct {
	Name     string
	FilePath string
	Size     int64
	LastMod  time.Time
	Hash     string

	Directives   int
	Conditionals int
	Variables    int
	// DataKeys are the top-level data keys the template reads.
	DataKeys []string
	// Err is the parse error, if the template failed to parse.
	Err error
}

// Valid reports whether the template parsed.
func (t *TemplateInfo) Valid() bool { return t.Err == nil }

// TemplateEvent represents a change in the template registry
type TemplateEvent struct {
	Type      EventType
	Template  *TemplateInfo
	Timestamp time.Time
}

// EventType represents the type of template event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// NewTemplateRegistry creates a new template registry
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[string]*TemplateInfo),
		watchers:  make([]chan TemplateEvent, 0),
	}
}

// Register adds or updates a template in the registry. Re-registering a
// template whose hash is unchanged sends no event.
func (r *TemplateRegistry) Register(info *TemplateInfo) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	eventType := EventTypeAdded
	if old, exists := r.templates[info.Name]; exists {
		if old.Hash == info.Hash && old.Hash != "" {
			r.templates[info.Name] = info
			return
		}
		eventType = EventTypeUpdated
	}

	r.templates[info.Name] = info
	r.notify(eventType, info)
}

// notify must be called with the mutex held.
func (r *TemplateRegistry) notify(eventType EventType, info *TemplateInfo) {
	event := TemplateEvent{
		Type:      eventType,
		Template:  info,
		Timestamp: time.Now(),
	}

	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// Get retrieves a template by name
func (r *TemplateRegistry) Get(name string) (*TemplateInfo, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	info, exists := r.templates[name]
	return info, exists
}

// GetAll returns all registered templates sorted by name
func (r *TemplateRegistry) GetAll() []*TemplateInfo {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*TemplateInfo, 0, len(r.templates))
	for _, info := range r.templates {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Invalid returns the templates that failed to parse, sorted by name.
func (r *TemplateRegistry) Invalid() []*TemplateInfo {
	var out []*TemplateInfo
	for _, info := range r.GetAll() {
		if !info.Valid() {
			out = append(out, info)
		}
	}
	return out
}

// Remove removes a template from the registry
func (r *TemplateRegistry) Remove(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	info, exists := r.templates[name]
	if !exists {
		return
	}

	delete(r.templates, name)
	r.notify(EventTypeRemoved, info)
}

// Watch returns a channel that receives template events
func (r *TemplateRegistry) Watch() <-chan TemplateEvent {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan TemplateEvent, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *TemplateRegistry) UnWatch(ch <-chan TemplateEvent) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// Count returns the number of registered templates
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.templates)
}
