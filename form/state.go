package form

import (
	"github.com/hazyhaar/buildboard/gateway"
)

// Status is the submission lifecycle position.
type Status int

const (
	Idle Status = iota
	Submitting
	Succeeded
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// State is the full form state. Failures are not a resting state: a failed
// submission returns to Idle with LastError set and values retained.
type State struct {
	Values    Values
	Touched   map[string]bool
	Errors    Errors
	Status    Status
	Focus     string
	LastError string
	LastID    string
}

// Initial returns the state of a freshly mounted form.
func Initial(schema Schema) State {
	return State{
		Values:  schema.Defaults(),
		Touched: map[string]bool{},
		Errors:  Errors{},
		Status:  Idle,
	}
}

// IsValid reports whether the form could be submitted as is: no reported
// errors and every rule satisfied by the current values.
func IsValid(schema Schema, st State) bool {
	return len(st.Errors) == 0 && len(Validate(schema, st.Values)) == 0
}

// Event is an input to Reduce.
type Event interface{ isEvent() }

// FieldChanged records user input in one field.
type FieldChanged struct {
	Name  string
	Value string
}

// SubmitRequested validates every field and moves focus to the first
// invalid one.
type SubmitRequested struct{}

// SubmitStarted marks the request as in flight.
type SubmitStarted struct{}

// SubmitFinished carries the gateway outcome.
type SubmitFinished struct {
	Outcome gateway.Outcome
}

// Reset returns to the initial state.
type Reset struct{}

func (FieldChanged) isEvent()    {}
func (SubmitRequested) isEvent() {}
func (SubmitStarted) isEvent()   {}
func (SubmitFinished) isEvent()  {}
func (Reset) isEvent()           {}

// clone returns a copy of st that shares no maps with it.
func (st State) clone() State {
	next := st
	next.Values = st.Values.clone()
	next.Errors = st.Errors.clone()
	next.Touched = make(map[string]bool, len(st.Touched))
	for k, v := range st.Touched {
		next.Touched[k] = v
	}
	return next
}

// Reduce is the pure transition function. It never mutates st.
func Reduce(schema Schema, st State, ev Event) State {
	next := st.clone()

	switch e := ev.(type) {
	case FieldChanged:
		f, ok := schema.Field(e.Name)
		if !ok || st.Status == Submitting {
			return st
		}
		next.Values[e.Name] = e.Value
		next.Touched[e.Name] = true
		// A field already flagged is re-checked live so the message clears
		// as soon as the input is fixed.
		if _, flagged := next.Errors[e.Name]; flagged {
			if fe, bad := checkField(f, e.Value); bad {
				next.Errors[e.Name] = fe
			} else {
				delete(next.Errors, e.Name)
			}
		}
		if next.Status == Succeeded {
			next.Status = Idle
		}

	case SubmitRequested:
		if st.Status == Submitting {
			return st
		}
		next.Errors = Validate(schema, next.Values)
		for _, f := range schema.Fields {
			if !f.Honeypot {
				next.Touched[f.Name] = true
			}
		}
		next.Focus = firstInvalid(schema, next.Errors)
		next.Status = Idle

	case SubmitStarted:
		if st.Status == Submitting {
			return st
		}
		next.Status = Submitting
		next.LastError = ""

	case SubmitFinished:
		if st.Status != Submitting {
			return st
		}
		if e.Outcome.OK() {
			if schema.ResetOnSuccess {
				next.Values = schema.Defaults()
				next.Touched = map[string]bool{}
			}
			next.Errors = Errors{}
			next.Focus = ""
			next.LastID = e.Outcome.ID
			next.Status = Succeeded
			return next
		}
		next.Status = Idle
		next.LastError = e.Outcome.UserMessage()

	case Reset:
		return Initial(schema)
	}
	return next
}
