package account

import (
	"encoding/json"

	apperrors "github.com/goliatone/go-errors"
)

// Codec encodes account events as JSON keyed by their type string. It
// satisfies the journal codec contract.
type Codec struct{}

func (Codec) Marshal(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func (Codec) Unmarshal(eventType string, data []byte) (Event, error) {
	switch eventType {
	case TypeCreated:
		return Created{}, nil
	case TypeDeposited:
		var ev Deposited
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, decodeError(eventType, err)
		}
		return ev, nil
	case TypeWithdrawn:
		var ev Withdrawn
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, decodeError(eventType, err)
		}
		return ev, nil
	case TypeClosed:
		return Closed{}, nil
	default:
		return nil, apperrors.New("unknown account event type", apperrors.CategoryBadInput).
			WithTextCode("ACCOUNT_UNKNOWN_EVENT").
			WithMetadata(map[string]any{"event_type": eventType})
	}
}

func decodeError(eventType string, err error) error {
	return apperrors.Wrap(err, apperrors.CategoryBadInput, "decode account event").
		WithTextCode("ACCOUNT_DECODE_FAILED").
		WithMetadata(map[string]any{"event_type": eventType})
}

// State type identifiers as stored in snapshots.
const (
	stateEmpty  = "empty"
	stateOpened = "opened"
	stateClosed = "closed"
)

type stateEnvelope struct {
	State   string `json:"state"`
	Balance int64  `json:"balance,omitempty"`
}

// StateCodec encodes account state for snapshot stores.
type StateCodec struct{}

func (StateCodec) MarshalState(state Account) ([]byte, error) {
	env := stateEnvelope{State: StateName(state)}
	if opened, ok := state.(OpenedAccount); ok {
		env.Balance = opened.Balance
	}
	return json.Marshal(env)
}

func (StateCodec) UnmarshalState(data []byte) (Account, error) {
	var env stateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CategoryBadInput, "decode account snapshot").
			WithTextCode("ACCOUNT_DECODE_FAILED")
	}
	switch env.State {
	case stateEmpty:
		return EmptyAccount{}, nil
	case stateOpened:
		return OpenedAccount{Balance: env.Balance}, nil
	case stateClosed:
		return ClosedAccount{}, nil
	default:
		return nil, apperrors.New("unknown account state", apperrors.CategoryBadInput).
			WithTextCode("ACCOUNT_UNKNOWN_STATE").
			WithMetadata(map[string]any{"state": env.State})
	}
}
