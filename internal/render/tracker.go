package render

import (
	"encoding/json"
	"hash/fnv"

	"toastd/internal/toast"
)

// Diff is the change between two controller snapshots, in controller order.
type Diff struct {
	Added   []toast.Toast
	Updated []toast.Toast
	Removed []string
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

// Tracker remembers what a surface last rendered. Progress is not part of
// the rendered content; exiting toasts count as removed.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	seen  map[string]uint64
	order []string
}

func NewTracker() *Tracker {
	return &Tracker{seen: map[string]uint64{}}
}

// Diff compares snaps with the previous call and records snaps as rendered.
func (t *Tracker) Diff(snaps []toast.Toast) Diff {
	var d Diff
	next := make(map[string]uint64, len(snaps))
	order := make([]string, 0, len(snaps))
	for _, s := range snaps {
		if s.Removing {
			continue
		}
		fp := fingerprint(s)
		next[s.ID] = fp
		order = append(order, s.ID)
		old, ok := t.seen[s.ID]
		switch {
		case !ok:
			d.Added = append(d.Added, s)
		case old != fp:
			d.Updated = append(d.Updated, s)
		}
	}
	for _, id := range t.order {
		if _, ok := next[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	t.seen = next
	t.order = order
	return d
}

// Forget drops id so the next Diff reports it as added again.
func (t *Tracker) Forget(id string) {
	delete(t.seen, id)
}

// Tracked returns ids in last rendered order.
func (t *Tracker) Tracked() []string {
	return append([]string(nil), t.order...)
}

type renderedButton struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Disabled bool   `json:"disabled,omitempty"`
}

type rendered struct {
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	Category    toast.Category   `json:"category"`
	Size        toast.Size       `json:"size"`
	Buttons     []renderedButton `json:"buttons"`
	State       int              `json:"state"`
	HasNext     bool             `json:"has_next"`
	HasPrevious bool             `json:"has_previous"`
	Persistent  bool             `json:"persistent"`
}

func fingerprint(s toast.Toast) uint64 {
	r := rendered{
		Title:       s.Title,
		Message:     s.Message,
		Category:    s.Category,
		Size:        s.Size,
		State:       s.CurrentState,
		HasNext:     s.HasNext,
		HasPrevious: s.HasPrevious,
		Persistent:  s.Timeout == 0,
	}
	for _, b := range s.Buttons {
		r.Buttons = append(r.Buttons, renderedButton{ID: b.ID, Text: b.Text, Disabled: b.Disabled})
	}
	b, _ := json.Marshal(r)
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
