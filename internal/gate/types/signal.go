package types

// Signal is one capture event from a gate's scanner or camera adapter.
// QR signals carry the decoded badge text in Payload; FACE signals carry the
// extracted face embedding in Descriptor.
type Signal struct {
	Kind       string    `json:"kind"`
	Payload    string    `json:"payload,omitempty"`
	Descriptor []float32 `json:"descriptor,omitempty"`
}

type SessionView struct {
	SessionID   string `json:"session_id"`
	IdentityID  string `json:"identity_id"`
	Name        string `json:"name,omitempty"`
	OpenedAt    string `json:"opened_at"`
	ClosedAt    string `json:"closed_at,omitempty"`
	Method      string `json:"method"`
	CloseMethod string `json:"close_method,omitempty"`
	OpenedBy    string `json:"opened_by,omitempty"`
	ClosedBy    string `json:"closed_by,omitempty"`
	Status      string `json:"status"` // Inside or Left
}

// SignalResponse reports the outcome of one signal.
type SignalResponse struct {
	OK         bool         `json:"ok"`
	Outcome    string       `json:"outcome"`
	StationID  string       `json:"station_id"`
	IdentityID string       `json:"identity_id,omitempty"`
	Name       string       `json:"name,omitempty"`
	Distance   *float64     `json:"distance,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Session    *SessionView `json:"session,omitempty"`
	ServerTime string       `json:"server_time"`
}

type StationView struct {
	StationID string `json:"station_id"`
	Known     bool   `json:"known"`
	Scanning  bool   `json:"scanning"`
	Debounced int    `json:"debounced"`
	LastSeen  string `json:"last_seen,omitempty"`
}
