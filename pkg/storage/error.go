package storage

// NotFoundError is returned when a stream doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "stream not found"
	}

	return "stream not found: " + e.ID
}
