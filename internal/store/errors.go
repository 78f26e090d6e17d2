package store

import "errors"

var (
	// ErrRoomNotFound is returned for unknown room codes.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomExists is returned when creating a room whose code is taken.
	ErrRoomExists = errors.New("room already exists")
	// ErrPermissionDenied is returned for operations the caller may not
	// perform, such as deleting the admin room.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotMember is returned when a caller is not in the room's player list.
	ErrNotMember = errors.New("not a member of this room")
)
