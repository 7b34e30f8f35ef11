package registry

import "sort"

// Wildcard is the data key reported by templates whose paths pick their
// root key from data at render time.
const Wildcard = "*"

// Dependents returns the names of templates that read any of keys,
// sorted. Templates reporting Wildcard depend on every key.
func (r *TemplateRegistry) Dependents(keys ...string) []string {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var names []string
	for name, info := range r.templates {
		for _, k := range info.DataKeys {
			if k == Wildcard || want[k] {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}

// DataGraph maps each data key to the templates reading it.
func (r *TemplateRegistry) DataGraph() map[string][]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	graph := make(map[string][]string)
	for name, info := range r.templates {
		for _, k := range info.DataKeys {
			graph[k] = append(graph[k], name)
		}
	}
	for k := range graph {
		sort.Strings(graph[k])
	}
	return graph
}

// UnusedKeys returns the keys of available that no registered template
// reads, sorted.
func (r *TemplateRegistry) UnusedKeys(available []string) []string {
	graph := r.DataGraph()
	if _, ok := graph[Wildcard]; ok {
		return nil
	}
	var out []string
	for _, k := range available {
		if _, used := graph[k]; !used {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
