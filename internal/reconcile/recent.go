package reconcile

// recentSet remembers the last N IDs known to be deleted remotely.
// Bounded so a long-lived session does not grow without limit.
type recentSet struct {
	limit int
	order []string
	ids   map[string]struct{}
}

func newRecentSet(limit int) *recentSet {
	if limit < 1 {
		limit = 1
	}
	return &recentSet{
		limit: limit,
		ids:   make(map[string]struct{}, limit),
	}
}

func (r *recentSet) add(id string) {
	if _, ok := r.ids[id]; ok {
		return
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.ids, oldest)
	}
	r.order = append(r.order, id)
	r.ids[id] = struct{}{}
}

func (r *recentSet) has(id string) bool {
	_, ok := r.ids[id]
	return ok
}
