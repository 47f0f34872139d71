package models

import "time"

const (
	RoleAdmin   = "admin"
	RolePetugas = "petugas"
)

// Activity actions recorded in activity_logs.
const (
	ActionLogin            = "LOGIN"
	ActionLogout           = "LOGOUT"
	ActionScanQR           = "SCAN_QR"
	ActionUpdateStatus     = "UPDATE_STATUS"
	ActionUpdateStatusSync = "UPDATE_STATUS_OFFLINE_SYNC"
	ActionUndoUpdateStatus = "UNDO_UPDATE_STATUS"
	ActionCreatePatient    = "CREATE_PATIENT"
	ActionUpdatePatient    = "UPDATE_PATIENT"
	ActionDeletePatient    = "DELETE_PATIENT"
	ActionCreateUser       = "CREATE_USER"
	ActionUpdateUser       = "UPDATE_USER"
	ActionDeleteUser       = "DELETE_USER"
)

const (
	// QueueKey is the KV key holding the serialized offline queue.
	QueueKey = "offline_scan_queue"

	// DeadLetterKey holds mutations dropped as unrecoverable, kept for
	// inspection instead of being discarded outright.
	DeadLetterKey = "offline_scan_deadletter"

	// ProfileCacheKey caches the signed-in profile across restarts.
	ProfileCacheKey = "app_user_profile"

	// DefaultSyncDebounce coalesces rapid enqueues into one drain pass.
	DefaultSyncDebounce = 2 * time.Second

	// UndoTimeout is how long a movement can be taken back.
	UndoTimeout = 5 * time.Second

	// DefaultPageSize for paginated listings.
	DefaultPageSize = 10
)
