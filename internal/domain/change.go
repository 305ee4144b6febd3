package domain

// Change is a row-level mutation delivered by the change feed.
// It is Inserted, Deleted or Resynced; consumers switch on the concrete type.
type Change interface {
	change()
}

// Inserted carries the full row of a newly created bookmark.
type Inserted struct {
	Bookmark Bookmark
}

// Deleted carries the id of a removed bookmark.
type Deleted struct {
	ID string
}

// Resynced tells subscribers that changes may have been missed, ex: the
// feed reconnected. Local state should be reloaded from the store.
type Resynced struct{}

func (Inserted) change() {}
func (Deleted) change()  {}
func (Resynced) change() {}
