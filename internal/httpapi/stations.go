package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/service"
	"github.com/BrandonDHaskell/Portunus/gate/internal/gate/types"
)

func (s *Server) handleListStations(w http.ResponseWriter, r *http.Request) {
	sts, err := s.stations.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stationViews(sts))
}

func (s *Server) handleStartStation(w http.ResponseWriter, r *http.Request) {
	st, err := s.stations.Start(r.Context(), chi.URLParam(r, "station_id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StationView{StationID: st.ID(), Known: true, Scanning: st.Scanning()})
}

func (s *Server) handleStopStation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "station_id")
	if err := s.stations.Stop(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StationView{StationID: id, Known: true})
}

// handleSignal accepts a JSON types.Signal, or the same fields as a
// google.protobuf.Struct when the body is protobuf. The response uses the
// request's encoding.
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig types.Signal
	pb := isProtobuf(r)
	if pb {
		msg := &structpb.Struct{}
		if err := readProto(r, msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		if err := structInto(msg, &sig); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", err.Error())
			return
		}
	} else if err := decodeJSON(r, &sig); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	out, err := s.stations.Signal(r.Context(), chi.URLParam(r, "station_id"), sig)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := outcomeResponse(out)
	if pb {
		msg, err := structFrom(resp)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStationEvents streams the station's outcomes as server-sent events
// until the client disconnects or the station stops.
func (s *Server) handleStationEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "station_id")
	st, ok := s.stations.Station(id)
	if !ok || !st.Scanning() {
		s.fail(w, r, service.ErrStationNotScanning)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}
	ch, unsubscribe := st.Subscribe(32)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case out, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(outcomeResponse(out))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", out.Kind, data)
			flusher.Flush()
		}
	}
}
