package escrow

import (
	"encoding/binary"

	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

const createTaskDomain = "taskescrow:create_task:v1"

// CreateTaskMessage returns the bytes a depositor signs to authorize
// create_task. It binds the program, the target slot, the recipient and the amount.
func CreateTaskMessage(program, task, recipient identity.Identity, amount uint64) []byte {
	msg := make([]byte, 0, len(createTaskDomain)+3*identity.Size+8)
	msg = append(msg, createTaskDomain...)
	msg = append(msg, program[:]...)
	msg = append(msg, task[:]...)
	msg = append(msg, recipient[:]...)
	msg = binary.LittleEndian.AppendUint64(msg, amount)
	return msg
}
