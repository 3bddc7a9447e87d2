package config

import (
	"fmt"
	"strings"

	"toastd/internal/announce"
	"toastd/internal/toast"
)

// Defs converts the enabled announcements. Call Validate first; invalid
// entries are returned as errors here too.
func Defs(list []AnnouncementConfig) ([]announce.Def, error) {
	out := make([]announce.Def, 0, len(list))
	for i, a := range list {
		if a.Disabled {
			continue
		}
		d, err := a.fields(fmt.Sprintf("announcements[%d]", i))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// fields parses the typed fields; schedule and message are checked by
// announce.Service.Upsert.
func (a AnnouncementConfig) fields(path string) (announce.Def, error) {
	d := announce.Def{
		Name:     strings.TrimSpace(a.Name),
		Schedule: strings.TrimSpace(a.Schedule),
		Message:  a.Message,
		Title:    a.Title,
		Category: toast.CategoryInfo,
	}
	if strings.TrimSpace(a.Category) != "" {
		c, err := toast.ParseCategory(a.Category)
		if err != nil {
			return d, fmt.Errorf("%s.category: %w", path, err)
		}
		d.Category = c
	}
	size, err := toast.ParseSize(a.Size)
	if err != nil {
		return d, fmt.Errorf("%s.size: %w", path, err)
	}
	d.Size = size
	if strings.TrimSpace(a.Timeout) != "" {
		t, err := ParseDurationField(path+".timeout", a.Timeout)
		if err != nil {
			return d, err
		}
		d.Timeout, d.HasTimeout = t, true
	}
	return d, nil
}
