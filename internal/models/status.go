package models

// Status represents the workflow state of a todo
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusArchived   Status = "archived"
)

// ValidStatuses returns all status values in workflow order
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusArchived}
}

// IsValid reports whether s is one of the five workflow states
func (s Status) IsValid() bool {
	for _, valid := range ValidStatuses() {
		if s == valid {
			return true
		}
	}
	return false
}

// transitions is the adjacency list of permitted status moves.
// Cycles are allowed; archived always leads back to todo.
var transitions = map[Status][]Status{
	StatusTodo:       {StatusInProgress, StatusArchived},
	StatusInProgress: {StatusTodo, StatusReview, StatusArchived},
	StatusReview:     {StatusInProgress, StatusDone, StatusTodo},
	StatusDone:       {StatusReview, StatusTodo, StatusArchived},
	StatusArchived:   {StatusTodo},
}

// ValidTransitionsFrom returns the statuses reachable from s in one step.
// Unknown statuses have no outgoing edges.
func ValidTransitionsFrom(s Status) []Status {
	next, ok := transitions[s]
	if !ok {
		return []Status{}
	}
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is an edge of the transition table
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionPath returns the shortest sequence of statuses leading from one
// status to another, excluding from itself. It is empty when to is unreachable
// or equal to from.
func TransitionPath(from, to Status) []Status {
	if from == to {
		return nil
	}

	prev := map[Status]Status{from: from}
	frontier := []Status{from}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, next := range transitions[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == to {
				var path []Status
				for s := to; s != from; s = prev[s] {
					path = append([]Status{s}, path...)
				}
				return path
			}
			frontier = append(frontier, next)
		}
	}
	return nil
}
