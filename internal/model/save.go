package model

// SaveResult describes what one transactional save wrote.
type SaveResult struct {
	Inserted     int
	LastRowID    int64
	CheckpointID int64
}
