package domain

import "time"

// Burst is one ingested capture event. Bursts are written by the ingestion
// webhook and are read-only to this service.
type Burst struct {
	ID         string
	RoomName   string
	EgressID   string
	CapturedAt time.Time
	ReceivedAt time.Time
	Frames     []Frame
}

// Frame is a single stored image belonging to a burst, in capture order.
type Frame struct {
	ID          string `json:"frameId"`
	StoragePath string `json:"storagePath"`
	URI         string `json:"uri,omitempty"`
	MimeType    string `json:"mimeType"`
}

// FirstFrame returns the representative frame of the burst.
func (b Burst) FirstFrame() (Frame, bool) {
	if len(b.Frames) == 0 {
		return Frame{}, false
	}
	return b.Frames[0], true
}
