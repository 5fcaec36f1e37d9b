package buffer

import "time"

type OpType int

const (
	OpInsert OpType = iota
	OpDelete
)

type Operation struct {
	Type  OpType
	Pos   Cursor
	Text  string
	Time  time.Time // when the operation was recorded
	Group int       // group ID for batched undo
}

type UndoStack struct {
	undos     []Operation
	nextGroup int // next group ID to assign
}

func NewUndoStack() *UndoStack {
	return &UndoStack{nextGroup: 1}
}

// PushGrouped pushes an operation with a specific group ID.
func (u *UndoStack) PushGrouped(op Operation, groupID int) {
	op.Time = time.Now()
	op.Group = groupID
	u.undos = append(u.undos, op)
}

// NewGroup returns a fresh group ID for batching multiple operations as one undo.
func (u *UndoStack) NewGroup() int {
	id := u.nextGroup
	u.nextGroup++
	return id
}

func (u *UndoStack) CanUndo() bool { return len(u.undos) > 0 }

// PopUndo pops the top operation and all others in the same group, most
// recent first.
func (u *UndoStack) PopUndo() ([]Operation, bool) {
	if len(u.undos) == 0 {
		return nil, false
	}
	top := u.undos[len(u.undos)-1]
	var ops []Operation
	for len(u.undos) > 0 && u.undos[len(u.undos)-1].Group == top.Group {
		ops = append(ops, u.undos[len(u.undos)-1])
		u.undos = u.undos[:len(u.undos)-1]
	}
	return ops, true
}
