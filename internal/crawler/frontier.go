package crawler

// VisitedSet records normalized URLs that have been claimed for fetching.
type VisitedSet struct {
	seen map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{seen: make(map[string]struct{})}
}

// Add marks rawURL as visited. It returns false when the URL was already
// present or cannot be normalized.
func (v *VisitedSet) Add(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	if _, ok := v.seen[key]; ok {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// Contains reports whether rawURL has been visited.
func (v *VisitedSet) Contains(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		return false
	}
	_, ok := v.seen[key]
	return ok
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	return len(v.seen)
}

// Frontier is a double-ended work queue of pending entries. Entries are
// deduplicated against the visited set and against each other at enqueue time.
// A Frontier is owned by a single goroutine.
type Frontier struct {
	entries []FrontierEntry
	queued  map[string]struct{}
	visited *VisitedSet
}

// NewFrontier builds a frontier that consults visited on every enqueue.
func NewFrontier(visited *VisitedSet) *Frontier {
	if visited == nil {
		visited = NewVisitedSet()
	}
	return &Frontier{
		queued:  make(map[string]struct{}),
		visited: visited,
	}
}

// PushFront inserts entries at the head, keeping their relative order.
// It returns how many were accepted.
func (f *Frontier) PushFront(entries ...FrontierEntry) int {
	accepted := f.admit(entries)
	if len(accepted) == 0 {
		return 0
	}
	f.entries = append(accepted, f.entries...)
	return len(accepted)
}

// PushBack appends entries at the tail. It returns how many were accepted.
func (f *Frontier) PushBack(entries ...FrontierEntry) int {
	accepted := f.admit(entries)
	f.entries = append(f.entries, accepted...)
	return len(accepted)
}

// Pop removes and returns the head entry.
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if len(f.entries) == 0 {
		return FrontierEntry{}, false
	}
	entry := f.entries[0]
	f.entries[0] = FrontierEntry{}
	f.entries = f.entries[1:]
	delete(f.queued, entry.URL)
	return entry, true
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	return len(f.entries)
}

func (f *Frontier) admit(entries []FrontierEntry) []FrontierEntry {
	accepted := make([]FrontierEntry, 0, len(entries))
	for _, entry := range entries {
		key, err := NormalizeURL(entry.URL)
		if err != nil {
			continue
		}
		if f.visited.Contains(key) {
			continue
		}
		if _, ok := f.queued[key]; ok {
			continue
		}
		f.queued[key] = struct{}{}
		accepted = append(accepted, FrontierEntry{URL: key, Depth: entry.Depth})
	}
	return accepted
}
