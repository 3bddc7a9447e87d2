// Package announce shows recurring toasts on cron schedules.
package announce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"toastd/internal/toast"
	logx "toastd/pkg/logx"
)

// parser accepts 5-field and 6-field (leading seconds) specs and descriptors
// such as "@hourly" or "@every 30m".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a schedule spec.
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.New("empty schedule")
	}
	return parser.Parse(spec)
}

// Def is one recurring toast.
type Def struct {
	Name     string
	Schedule string
	Message  string
	Title    string
	Category toast.Category
	Size     toast.Size

	// Timeout applies when HasTimeout is set; zero makes the toast
	// persistent. Without HasTimeout the controller default applies.
	Timeout    time.Duration
	HasTimeout bool
}

func (d Def) options() []toast.ShowOption {
	opts := []toast.ShowOption{
		toast.WithCategory(d.Category),
		toast.WithTitle(d.Title),
		toast.WithSize(d.Size),
		toast.WithData(map[string]any{"announcement": d.Name}),
	}
	if d.HasTimeout {
		opts = append(opts, toast.WithTimeout(d.Timeout))
	}
	return opts
}

// Shower is the part of the controller announcements need.
type Shower interface {
	ShowToast(message string, opts ...toast.ShowOption) string
}

type entry struct {
	def     Def
	sched   cron.Schedule
	entryID cron.EntryID
	fired   atomic.Uint64
}

type Service struct {
	log    logx.Logger
	shower Shower

	mu   sync.Mutex
	c    *cron.Cron
	defs map[string]*entry
	// stopped is closed when the running cron is detached.
	stopped chan struct{}
}

func New(shower Shower, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log.With(logx.String("comp", "announce")),
		shower: shower,
		defs:   map[string]*entry{},
	}
}

// Apply replaces the whole set. Invalid definitions are skipped and reported
// together; the valid ones are still installed.
func (s *Service) Apply(defs []Def) error {
	var errs []error
	want := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if err := s.Upsert(d); err != nil {
			errs = append(errs, err)
			continue
		}
		want[strings.TrimSpace(d.Name)] = struct{}{}
	}
	for _, name := range s.Names() {
		if _, ok := want[name]; !ok {
			s.Remove(name)
		}
	}
	return errors.Join(errs...)
}

// Upsert installs or replaces the announcement with d.Name.
func (s *Service) Upsert(d Def) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return errors.New("announcement name is required")
	}
	if strings.TrimSpace(d.Message) == "" {
		return fmt.Errorf("announcement %q: message is required", d.Name)
	}
	sched, err := ParseSchedule(d.Schedule)
	if err != nil {
		return fmt.Errorf("announcement %q: %w", d.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.defs[d.Name]; ok {
		if old.def == d {
			return nil
		}
		s.unscheduleLocked(old)
	}
	e := &entry{def: d, sched: sched}
	s.defs[d.Name] = e
	if s.c != nil {
		s.scheduleLocked(e)
	}
	s.log.Debug("announcement set", logx.String("name", d.Name), logx.String("schedule", d.Schedule))
	return nil
}

func (s *Service) Remove(name string) bool {
	name = strings.TrimSpace(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.defs[name]
	if !ok {
		return false
	}
	s.unscheduleLocked(e)
	delete(s.defs, name)
	s.log.Debug("announcement removed", logx.String("name", name))
	return true
}

func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.defs))
	for name := range s.defs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Fire shows the named announcement now.
func (s *Service) Fire(name string) (string, bool) {
	s.mu.Lock()
	e, ok := s.defs[strings.TrimSpace(name)]
	s.mu.Unlock()
	if !ok {
		return "", false
	}
	return s.show(e), true
}

func (s *Service) show(e *entry) string {
	id := s.shower.ShowToast(e.def.Message, e.def.options()...)
	e.fired.Add(1)
	s.log.Debug("announcement shown", logx.String("name", e.def.Name), logx.String("id", id))
	return id
}

// Status describes one installed announcement.
type Status struct {
	Name  string    `json:"name"`
	Next  time.Time `json:"next,omitempty"`
	Fired uint64    `json:"fired"`
}

func (s *Service) Snapshot() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.defs))
	for name, e := range s.defs {
		st := Status{Name: name, Fired: e.fired.Load()}
		if s.c != nil && e.entryID != 0 {
			st.Next = s.c.Entry(e.entryID).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Service) scheduleLocked(e *entry) {
	e.entryID = s.c.Schedule(e.sched, cron.FuncJob(func() { s.show(e) }))
}

func (s *Service) unscheduleLocked(e *entry) {
	if s.c != nil && e.entryID != 0 {
		s.c.Remove(e.entryID)
	}
	e.entryID = 0
}

// Start begins triggering until Stop or until ctx ends. Calling Start twice
// is a no-op.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{s.log})))
	s.c = c
	for _, e := range s.defs {
		s.scheduleLocked(e)
	}
	stopped := make(chan struct{})
	s.stopped = stopped
	c.Start()
	s.log.Info("announcements started", logx.Int("count", len(s.defs)))

	go func() {
		select {
		case <-stopped:
			return
		case <-ctx.Done():
		}
		s.mu.Lock()
		if s.c != c {
			s.mu.Unlock()
			return
		}
		s.detachLocked()
		s.mu.Unlock()
		<-c.Stop().Done()
		s.log.Info("announcements stopped", logx.Err(ctx.Err()))
	}()
}

// Stop halts triggering and waits for running jobs until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.detachLocked()
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		s.log.Warn("announcement jobs still running at stop", logx.Err(ctx.Err()))
	}
}

// detachLocked clears the running cron and returns it.
func (s *Service) detachLocked() *cron.Cron {
	c := s.c
	s.c = nil
	for _, e := range s.defs {
		e.entryID = 0
	}
	if s.stopped != nil {
		close(s.stopped)
		s.stopped = nil
	}
	return c
}

// cronLogger adapts logx to cron.Logger for the Recover wrapper.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug(msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}
