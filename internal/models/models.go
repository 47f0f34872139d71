package models

import "time"

// Patient is a medical-record folder owner. NoRM is the human-readable
// record number printed on the folder and encoded in its QR label.
type Patient struct {
	ID           string     `json:"id"`
	NoRM         string     `json:"no_rm"`
	Nama         string     `json:"nama"`
	TanggalLahir *time.Time `json:"tanggal_lahir,omitempty"`
	QRCode       string     `json:"qr_code"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Tracer is a timestamped location-history entry for a patient's folder.
// CreatedAt is the event time supplied by the writer, not the insert time,
// so offline-origin records keep their original ordering.
type Tracer struct {
	ID         string    `json:"id"`
	PatientID  string    `json:"patient_id"`
	LocationID string    `json:"location_id"`
	StaffID    string    `json:"staff_id,omitempty"`
	Keterangan string    `json:"keterangan,omitempty"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Location is a place a folder can be moved to. IsStorage marks the record
// room itself: returning a folder there needs no picking staff member.
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" yaml:"name"`
	Type        string    `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description"`
	IsStorage   bool      `json:"is_storage" yaml:"is_storage"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Staff is a petugas who physically picks up folders.
type Staff struct {
	ID        string    `json:"id"`
	Nama      string    `json:"nama"`
	NIP       string    `json:"nip,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an application account (admin or petugas role).
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Nama      string    `json:"nama"`
	Role      string    `json:"role"` // admin, petugas
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityLog is an audit entry. Details carries free-form JSON.
type ActivityLog struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Aksi      string    `json:"aksi"`
	NoRM      string    `json:"no_rm,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityFilter narrows activity-log listings.
type ActivityFilter struct {
	UserID string
	Aksi   string
	NoRM   string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// LocationCount is a dashboard aggregate: folders currently at a location.
type LocationCount struct {
	LocationID   string `json:"location_id"`
	LocationName string `json:"location_name"`
	Count        int64  `json:"count"`
}

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	TotalPatients  int64           `json:"total_patients"`
	MovementsToday int64           `json:"movements_today"`
	ByLocation     []LocationCount `json:"by_location"`
	RecentTracers  []Tracer        `json:"recent_tracers"`
}
