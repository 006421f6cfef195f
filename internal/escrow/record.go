package escrow

import (
	"encoding/binary"

	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

// RecordSize is the encoded size of a TaskEscrow including its discriminator.
const RecordSize = DiscriminatorSize + identity.Size + identity.Size + 8 + 1

const (
	offDepositor = DiscriminatorSize
	offRecipient = offDepositor + identity.Size
	offAmount    = offRecipient + identity.Size
	offCompleted = offAmount + 8
)

// ErrRecordCorrupt is returned when stored bytes do not decode as a TaskEscrow.
var ErrRecordCorrupt = ferrors.ValidationError("task escrow record is corrupt").Build()

// TaskEscrow is one escrow agreement. Depositor, Recipient and Amount never
// change after creation; IsCompleted only moves from false to true.
type TaskEscrow struct {
	Depositor   identity.Identity `json:"depositor"`
	Recipient   identity.Identity `json:"recipient"`
	Amount      uint64            `json:"amount,string"`
	IsCompleted bool              `json:"is_completed"`
}

// State is the lifecycle state of a record.
type State string

const (
	StateOpen      State = "open"
	StateCompleted State = "completed"
)

// State derives the lifecycle state from the completion flag.
func (t TaskEscrow) State() State {
	if t.IsCompleted {
		return StateCompleted
	}
	return StateOpen
}

// Encode returns the fixed-size wire layout:
// discriminator | depositor | recipient | amount (LE) | is_completed.
func (t TaskEscrow) Encode() []byte {
	buf := make([]byte, RecordSize)
	copy(buf, Discriminator[:])
	copy(buf[offDepositor:], t.Depositor[:])
	copy(buf[offRecipient:], t.Recipient[:])
	binary.LittleEndian.PutUint64(buf[offAmount:], t.Amount)
	if t.IsCompleted {
		buf[offCompleted] = 1
	}
	return buf
}

// Decode parses the layout produced by Encode.
func Decode(data []byte) (TaskEscrow, error) {
	if len(data) != RecordSize {
		return TaskEscrow{}, ErrRecordCorrupt.WithContext("size", len(data))
	}
	if [DiscriminatorSize]byte(data[:DiscriminatorSize]) != Discriminator {
		return TaskEscrow{}, ErrRecordCorrupt.WithContext("reason", "discriminator mismatch")
	}

	var t TaskEscrow
	copy(t.Depositor[:], data[offDepositor:offRecipient])
	copy(t.Recipient[:], data[offRecipient:offAmount])
	t.Amount = binary.LittleEndian.Uint64(data[offAmount:offCompleted])
	switch data[offCompleted] {
	case 0:
	case 1:
		t.IsCompleted = true
	default:
		return TaskEscrow{}, ErrRecordCorrupt.WithContext("reason", "invalid completion flag")
	}
	return t, nil
}
