// Package index maintains the tag and dependency indexes used for bulk
// invalidation. An Index is not safe for concurrent use; the cache guards it
// with the same lock as the entries it points to so the two never disagree.
package index

import (
	"sort"
)

type set map[string]struct{}

// Index maps tags and dependencies to the keys labelled with them
type Index struct {
	tags         map[string]set
	dependencies map[string]set
}

// New creates an empty index
func New() *Index {
	return &Index{
		tags:         make(map[string]set),
		dependencies: make(map[string]set),
	}
}

// Add indexes key under every tag and dependency
func (ix *Index) Add(key string, tags, dependencies []string) {
	for _, tag := range tags {
		add(ix.tags, tag, key)
	}
	for _, dep := range dependencies {
		add(ix.dependencies, dep, key)
	}
}

// Remove drops key from every tag and dependency set it was indexed under.
// Sets left empty are removed.
func (ix *Index) Remove(key string, tags, dependencies []string) {
	for _, tag := range tags {
		remove(ix.tags, tag, key)
	}
	for _, dep := range dependencies {
		remove(ix.dependencies, dep, key)
	}
}

// TagKeys returns the keys indexed under tag, sorted
func (ix *Index) TagKeys(tag string) []string {
	return keys(ix.tags[tag])
}

// DependencyKeys returns the keys indexed under dependency, sorted
func (ix *Index) DependencyKeys(dependency string) []string {
	return keys(ix.dependencies[dependency])
}

// DropTag removes the tag's own set
func (ix *Index) DropTag(tag string) {
	delete(ix.tags, tag)
}

// DropDependency removes the dependency's own set
func (ix *Index) DropDependency(dependency string) {
	delete(ix.dependencies, dependency)
}

// HasTag reports whether any key is indexed under tag
func (ix *Index) HasTag(tag string) bool {
	_, ok := ix.tags[tag]
	return ok
}

// HasDependency reports whether any key is indexed under dependency
func (ix *Index) HasDependency(dependency string) bool {
	_, ok := ix.dependencies[dependency]
	return ok
}

// Len returns the number of distinct tags and dependencies
func (ix *Index) Len() (tags int, dependencies int) {
	return len(ix.tags), len(ix.dependencies)
}

// Clear empties both indexes
func (ix *Index) Clear() {
	ix.tags = make(map[string]set)
	ix.dependencies = make(map[string]set)
}

// Snapshot copies both indexes with sorted key lists
func (ix *Index) Snapshot() (tags map[string][]string, dependencies map[string][]string) {
	return snapshot(ix.tags), snapshot(ix.dependencies)
}

func add(m map[string]set, name, key string) {
	s, ok := m[name]
	if !ok {
		s = make(set)
		m[name] = s
	}
	s[key] = struct{}{}
}

func remove(m map[string]set, name, key string) {
	s, ok := m[name]
	if !ok {
		return
	}
	delete(s, key)
	if len(s) == 0 {
		delete(m, name)
	}
}

func keys(s set) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func snapshot(m map[string]set) map[string][]string {
	out := make(map[string][]string, len(m))
	for name, s := range m {
		out[name] = keys(s)
	}
	return out
}
