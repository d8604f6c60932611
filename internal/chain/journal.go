package chain

// journal keeps undo closures for every state write made during a call.
type journal struct {
	entries []func()
}

func (j *journal) append(undo func()) {
	j.entries = append(j.entries, undo)
}

func (j *journal) length() int {
	return len(j.entries)
}

// revert undoes entries down to snapshot in reverse order.
func (j *journal) revert(snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:snapshot]
}

func (j *journal) reset() {
	j.entries = j.entries[:0]
}
