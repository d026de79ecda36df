package pheromone

import (
	"fmt"

	"github.com/migrantcolony/stigctl/internal/clock"
	"github.com/migrantcolony/stigctl/internal/decay"
	"github.com/migrantcolony/stigctl/internal/guardrails"
	"github.com/migrantcolony/stigctl/internal/statemachine"
)

const (
	tasksFile   = "tasks.json"
	statusFile  = "status.json"
	qualityFile = "quality.json"
)

// Store is the pheromone store: the three typed maps plus the audit
// log that is the only coordination channel between role runtimes. Lock
// ordering across the four backing files is fixed — tasks, then status,
// then quality, then audit — to avoid inversion deadlocks when an
// operation (rare, but Validate's deposit touches the status and quality maps) needs
// more than one.
type Store struct {
	baseDir string
	tasks   *mapStore[TaskEntry]
	status  *mapStore[StatusEntry]
	quality *mapStore[QualityEntry]
	audit   *AuditLog
	rates   decay.Rates
	limits  guardrails.Limits
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithDecayRates overrides the default decay configuration.
func WithDecayRates(r decay.Rates) Option {
	return func(s *Store) { s.rates = r }
}

// WithLimits overrides the default guardrail configuration.
func WithLimits(l guardrails.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// Open constructs a Store rooted at baseDir, creating backing files lazily
// on first write.
func Open(baseDir string, opts ...Option) (*Store, error) {
	audit, err := NewAuditLog(baseDir)
	if err != nil {
		return nil, err
	}
	s := &Store{
		baseDir: baseDir,
		tasks:   newMapStore[TaskEntry](baseDir, tasksFile),
		status:  newMapStore[StatusEntry](baseDir, statusFile),
		quality: newMapStore[QualityEntry](baseDir, qualityFile),
		audit:   audit,
		rates:   decay.DefaultRates(),
		limits:  guardrails.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ---- generic read / query surface ----

// ReadAllTasks returns every task entry.
func (s *Store) ReadAllTasks() (map[string]TaskEntry, error) { return s.tasks.ReadAll() }

// ReadAllStatus returns every status entry.
func (s *Store) ReadAllStatus() (map[string]StatusEntry, error) { return s.status.ReadAll() }

// ReadAllQuality returns every quality entry.
func (s *Store) ReadAllQuality() (map[string]QualityEntry, error) { return s.quality.ReadAll() }

// ReadTask returns the task entry for fileID.
func (s *Store) ReadTask(fileID string) (TaskEntry, error) { return s.tasks.ReadOne(fileID) }

// ReadStatus returns the status entry for fileID.
func (s *Store) ReadStatus(fileID string) (StatusEntry, error) { return s.status.ReadOne(fileID) }

// ReadQuality returns the quality entry for fileID.
func (s *Store) ReadQuality(fileID string) (QualityEntry, error) { return s.quality.ReadOne(fileID) }

// QueryTasks returns every task entry matching all filters.
func (s *Store) QueryTasks(filters ...Filter) (map[string]TaskEntry, error) {
	all, err := s.tasks.ReadAll()
	if err != nil {
		return nil, err
	}
	return filterMap(all, filters)
}

// QueryStatus returns every status entry matching all filters.
func (s *Store) QueryStatus(filters ...Filter) (map[string]StatusEntry, error) {
	all, err := s.status.ReadAll()
	if err != nil {
		return nil, err
	}
	return filterMap(all, filters)
}

// QueryQuality returns every quality entry matching all filters.
func (s *Store) QueryQuality(filters ...Filter) (map[string]QualityEntry, error) {
	all, err := s.quality.ReadAll()
	if err != nil {
		return nil, err
	}
	return filterMap(all, filters)
}

func filterMap[T any](all map[string]T, filters []Filter) (map[string]T, error) {
	if len(filters) == 0 {
		return all, nil
	}
	out := make(map[string]T)
	for id, entry := range all {
		fields, err := toFields(entry)
		if err != nil {
			return nil, err
		}
		ok, err := matchAll(fields, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = entry
		}
	}
	return out, nil
}

// ---- task pheromone writes ----

// CreateTask deposits a new task entry for fileID (Discover only).
// Re-creating an existing entry is an update and goes through UpdateTask
// instead so the audit trail records a diff rather than a second create.
func (s *Store) CreateTask(fileID string, entry TaskEntry, role string) error {
	var before map[string]any
	err := s.tasks.Mutate(fileID, func(current TaskEntry, exists bool) (TaskEntry, bool, error) {
		if exists {
			return current, false, fmt.Errorf("pheromone: task %s already exists, use UpdateTask", fileID)
		}
		return entry, true, nil
	})
	if err != nil {
		return err
	}
	after, err := toFields(entry)
	if err != nil {
		return err
	}
	return s.appendAudit(MapTasks, fileID, role, OpCreate, after, before)
}

// UpdateTask applies field_changes to an existing task entry (intensity
// decay, pattern re-detection, etc).
func (s *Store) UpdateTask(fileID string, changes map[string]any, role string) error {
	return updateEntry(s, s.tasks, MapTasks, fileID, changes, role, nil)
}

// ---- status pheromone writes (the write path enforcing lock and transition rules) ----

// CreateStatus deposits the initial status entry for a newly discovered
// file (absent -> pending, actor discover).
func (s *Store) CreateStatus(fileID string, entry StatusEntry, role string) error {
	if err := statemachine.Validate("", entry.Status, statemachine.Actor(role)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransitionInvalid, err)
	}
	var before map[string]any
	err := s.status.Mutate(fileID, func(current StatusEntry, exists bool) (StatusEntry, bool, error) {
		if exists {
			return current, false, fmt.Errorf("pheromone: status %s already exists, use UpdateStatus", fileID)
		}
		return entry, true, nil
	})
	if err != nil {
		return err
	}
	after, err := toFields(entry)
	if err != nil {
		return err
	}
	return s.appendAudit(MapStatus, fileID, role, OpCreate, after, before)
}

// UpdateStatus transitions fileID's status entry. The write path
// runs in order: validate the requested transition, enforce
// the scope lock, persist, then append the audit event. A failed audit
// append after a committed map write surfaces as ErrStoreCorrupted rather
// than an in-place revert — see appendAudit.
func (s *Store) UpdateStatus(fileID string, changes map[string]any, role string) error {
	actor := statemachine.Actor(role)
	return updateEntry(s, s.status, MapStatus, fileID, changes, role, func(current, next StatusEntry) error {
		if newStatus, ok := changes["status"]; ok {
			to := Status(fmt.Sprint(newStatus))
			if to != current.Status {
				if err := statemachine.Validate(current.Status, to, actor); err != nil {
					return fmt.Errorf("%w: %v", ErrTransitionInvalid, err)
				}
			}
		}
		if current.Locked() && current.LockOwner != role && actor != statemachine.ActorSystem {
			return fmt.Errorf("%w: file %s locked by %s", ErrLockViolation, fileID, current.LockOwner)
		}
		return nil
	})
}

// UpdateQuality applies field_changes to an existing quality entry and
// returns ErrNotFound if there is none; Test creates the entry with
// CreateQuality on its first write.
func (s *Store) UpdateQuality(fileID string, changes map[string]any, role string) error {
	return updateEntry(s, s.quality, MapQuality, fileID, changes, role, nil)
}

// CreateQuality deposits the initial quality entry for fileID (Test only).
func (s *Store) CreateQuality(fileID string, entry QualityEntry, role string) error {
	var before map[string]any
	err := s.quality.Mutate(fileID, func(current QualityEntry, exists bool) (QualityEntry, bool, error) {
		if exists {
			return current, false, fmt.Errorf("pheromone: quality %s already exists, use UpdateQuality", fileID)
		}
		return entry, true, nil
	})
	if err != nil {
		return err
	}
	after, err := toFields(entry)
	if err != nil {
		return err
	}
	return s.appendAudit(MapQuality, fileID, role, OpCreate, after, before)
}

// updateEntry is the shared field_changes engine behind UpdateTask/
// UpdateStatus/UpdateQuality: decode current entry to a field map, verify
// every changed key exists on the type (ErrUnknownField otherwise), run an
// optional validator for map-specific invariants, apply, persist, and
// audit. It is a free function rather than a method because Go methods
// cannot carry their own type parameters.
func updateEntry[T any](s *Store, m *mapStore[T], name MapName, fileID string, changes map[string]any, role string, validate func(current, next T) error) error {
	var before, after map[string]any
	found := true
	err := m.Mutate(fileID, func(current T, exists bool) (T, bool, error) {
		var zero T
		if !exists {
			found = false
			return zero, false, ErrNotFound
		}
		currentFields, err := toFields(current)
		if err != nil {
			return zero, false, err
		}
		for k := range changes {
			if _, ok := currentFields[k]; !ok {
				return zero, false, fmt.Errorf("%w: %s", ErrUnknownField, k)
			}
		}
		before = snapshot(currentFields, changes)

		next, err := applyChanges(current, changes)
		if err != nil {
			return zero, false, err
		}
		if validate != nil {
			if err := validate(current, next); err != nil {
				return zero, false, err
			}
		}
		nextFields, err := toFields(next)
		if err != nil {
			return zero, false, err
		}
		after = snapshot(nextFields, changes)
		return next, true, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return s.appendAudit(name, fileID, role, OpUpdate, after, before)
}

// snapshot extracts just the changed keys from a full field map, which is
// what the audit event's fields_changed/previous_values record.
func snapshot(fields map[string]any, changes map[string]any) map[string]any {
	out := make(map[string]any, len(changes))
	for k := range changes {
		out[k] = fields[k]
	}
	return out
}

// appendAudit writes the audit event and, on failure, leaves the caller's
// map mutation already committed — callers that must guarantee atomicity
// across map+audit treat a non-nil error here as fatal for the run rather
// than attempting an in-place revert, since a revert would itself need an
// audit entry.
func (s *Store) appendAudit(name MapName, fileID, role string, op Operation, after, before map[string]any) error {
	event := AuditEvent{
		Timestamp:      clock.Now(),
		Role:           role,
		MapName:        name,
		FileID:         fileID,
		Operation:      op,
		FieldsChanged:  after,
		PreviousValues: before,
	}
	if err := s.audit.Append(event); err != nil {
		return fmt.Errorf("%w: audit append failed after committed write to %s/%s: %v", ErrStoreCorrupted, name, fileID, err)
	}
	return nil
}

// AuditCompleteness reports the audit_completeness metric.
func (s *Store) AuditCompleteness() (float64, error) {
	return s.audit.Completeness()
}

// AuditEvents replays the full audit log.
func (s *Store) AuditEvents() ([]AuditEvent, error) {
	return s.audit.ReadAll()
}
