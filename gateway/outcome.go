package gateway

import "fmt"

// Kind tags an Outcome.
type Kind int

const (
	Success Kind = iota
	ValidationRejected
	Dropped
	TransportError
	ServerRejected
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case ValidationRejected:
		return "validation_rejected"
	case Dropped:
		return "dropped"
	case TransportError:
		return "transport_error"
	case ServerRejected:
		return "server_rejected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MsgTransport is shown for network and parse failures.
const MsgTransport = "could not submit right now, try again"

// Outcome is the result of one submission attempt. Only the fields of its
// Kind are meaningful:
//
//	Success             ID, CreatedAt
//	ValidationRejected  Field, Reason
//	Dropped             (none)
//	TransportError      Message
//	ServerRejected      Status, Detail
type Outcome struct {
	Kind      Kind
	ID        string
	CreatedAt string
	Field     string
	Reason    string
	Message   string
	Status    int
	Detail    string
}

// OK reports whether the outcome is a confirmed success.
func (o Outcome) OK() bool { return o.Kind == Success }

// UserMessage is the text to surface in a toast, or "" when nothing should
// be shown (success is confirmed by the modal, a drop is silent).
func (o Outcome) UserMessage() string {
	switch o.Kind {
	case ValidationRejected:
		return o.Reason
	case TransportError:
		if o.Message == "" {
			return MsgTransport
		}
		return o.Message
	case ServerRejected:
		if o.Detail != "" {
			return o.Detail
		}
		return fmt.Sprintf("submission rejected (HTTP %d)", o.Status)
	default:
		return ""
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case Success:
		return fmt.Sprintf("success{id=%s}", o.ID)
	case ValidationRejected:
		return fmt.Sprintf("validation_rejected{%s: %s}", o.Field, o.Reason)
	case ServerRejected:
		return fmt.Sprintf("server_rejected{%d: %s}", o.Status, o.Detail)
	case TransportError:
		return fmt.Sprintf("transport_error{%s}", o.Message)
	default:
		return o.Kind.String()
	}
}
