package scheduler

import "time"

// TaskInfo is a handle-independent view of a registered task.
type TaskInfo struct {
	Name          string        `json:"name"`
	Period        int           `json:"period"`
	Priority      int           `json:"priority"`
	Budget        time.Duration `json:"budget_ns"`
	DeferralCount int           `json:"deferral_count"`
	Pending       bool          `json:"pending"`
	Placements    int           `json:"placements"`
}

// Status summarises the scheduler for diagnostics.
type Status struct {
	State        string        `json:"state"`
	RunID        string        `json:"run_id,omitempty"`
	TickDuration time.Duration `json:"tick_ns"`
	Capacity     int           `json:"capacity"`
	Macrocycle   int           `json:"macrocycle"`
	Utilisation  float64       `json:"utilisation"`
	Overrun      string        `json:"overrun_policy"`
	Boundary     string        `json:"boundary_policy"`
	Tasks        []TaskInfo    `json:"tasks"`
	Stats        Stats         `json:"stats"`
}

// TickView is a handle-independent view of one table entry.
type TickView struct {
	Tick       int           `json:"tick"`
	Tasks      []string      `json:"tasks"`
	Cumulative time.Duration `json:"cumulative_ns"`
}

// Describe returns a snapshot of the scheduler state.
func (s *Scheduler[H]) Describe() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		State:        s.state.String(),
		RunID:        s.runID,
		TickDuration: s.opts.TickDuration,
		Capacity:     s.reg.Cap(),
		Overrun:      s.opts.Overrun.String(),
		Boundary:     s.opts.Boundary.String(),
		Tasks:        make([]TaskInfo, 0, s.reg.Len()),
		Stats:        s.stats.snapshot(),
	}
	if s.table != nil {
		st.Macrocycle = s.table.Macrocycle()
		st.Utilisation = s.table.Utilisation()
	}
	for i, t := range s.reg.tasks {
		info := TaskInfo{
			Name:          t.Name,
			Period:        t.Period,
			Priority:      t.Priority,
			Budget:        t.Budget,
			DeferralCount: t.DeferralCount,
			Pending:       t.Pending,
		}
		if s.table != nil {
			info.Placements = s.table.Placements(i)
		}
		st.Tasks = append(st.Tasks, info)
	}
	return st
}

// TableView returns the current table with task names instead of handles.
// It is empty when no table is held.
func (s *Scheduler[H]) TableView() []TickView {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return []TickView{}
	}
	out := make([]TickView, len(s.table.Entries))
	for i, e := range s.table.Entries {
		names := make([]string, len(e.Slots))
		for j, idx := range e.Slots {
			names[j] = s.reg.tasks[idx].Name
		}
		out[i] = TickView{Tick: i, Tasks: names, Cumulative: e.Cumulative}
	}
	return out
}
