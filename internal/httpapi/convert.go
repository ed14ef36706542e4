package httpapi

import (
	"time"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/store"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func sessionView(s store.Session, name string) types.SessionView {
	v := types.SessionView{
		SessionID:   s.SessionID,
		IdentityID:  s.IdentityID,
		Name:        name,
		OpenedAt:    formatTime(s.OpenedAt),
		Method:      string(s.Method),
		CloseMethod: string(s.CloseMethod),
		OpenedBy:    s.OpenedBy,
		ClosedBy:    s.ClosedBy,
		Status:      service.StatusInside,
	}
	if s.ClosedAt != nil {
		v.ClosedAt = formatTime(*s.ClosedAt)
		v.Status = service.StatusLeft
	}
	return v
}

func logEntryViews(entries []service.LogEntry) []types.SessionView {
	out := make([]types.SessionView, 0, len(entries))
	for _, e := range entries {
		out = append(out, sessionView(e.Session, e.Name))
	}
	return out
}

func outcomeResponse(o service.Outcome) types.SignalResponse {
	resp := types.SignalResponse{
		OK:         o.Transitioned(),
		Outcome:    string(o.Kind),
		StationID:  o.StationID,
		IdentityID: o.IdentityID,
		Name:       o.Identity.DisplayName,
		Reason:     o.Reason,
		ServerTime: formatTime(time.Now()),
	}
	if o.Method == store.MethodFace && o.Identity.IdentityID != "" {
		d := o.Distance
		resp.Distance = &d
	}
	if o.Session.SessionID != "" {
		v := sessionView(o.Session, o.Identity.DisplayName)
		resp.Session = &v
	}
	return resp
}

func identityView(id store.Identity) types.IdentityView {
	return types.IdentityView{
		IdentityID:    id.IdentityID,
		DisplayName:   id.DisplayName,
		Department:    id.Department,
		Year:          id.Year,
		Phone:         id.Phone,
		Email:         id.Email,
		Status:        id.Status,
		HasDescriptor: id.HasDescriptor(),
		RegisteredAt:  formatTime(id.RegisteredAt),
		UpdatedAt:     formatTime(id.UpdatedAt),
	}
}

func identityViews(ids []store.Identity) []types.IdentityView {
	out := make([]types.IdentityView, 0, len(ids))
	for _, id := range ids {
		out = append(out, identityView(id))
	}
	return out
}

func stationViews(sts []service.StationStatus) []types.StationView {
	out := make([]types.StationView, 0, len(sts))
	for _, st := range sts {
		out = append(out, types.StationView{
			StationID: st.StationID,
			Known:     st.Known,
			Scanning:  st.Scanning,
			Debounced: st.Debounced,
			LastSeen:  formatTime(st.LastSeen),
		})
	}
	return out
}
