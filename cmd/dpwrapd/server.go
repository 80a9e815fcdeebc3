package main

import (
	"encoding/gob"
	"io"
	"net"
	"os/user"

	"github.com/rs/zerolog"
	"inet.af/peercred"

	"github.com/rtsched/dpwrap/internal/protocol"
	"github.com/rtsched/dpwrap/internal/sched"
)

// Server handles one client connection on the admin socket, the
// dpwrapd analogue of cmd/perflock's daemon.go Server type.
type Server struct {
	c    net.Conn
	sc   *sched.Scheduler
	user string
}

// NewServer wraps an accepted connection.
func NewServer(c net.Conn, sc *sched.Scheduler) *Server {
	return &Server{c: c, sc: sc}
}

// Serve decodes and dispatches requests until the client disconnects.
func (s *Server) Serve(log zerolog.Logger) {
	cred, err := peercred.Get(s.c)
	if err != nil {
		log.Error().Err(err).Msg("reading admin socket credentials")
		return
	}
	s.user = "???"
	if uid, ok := cred.UserID(); ok {
		if u, err := user.LookupId(uid); err == nil {
			s.user = u.Username
		}
	}

	gr := gob.NewDecoder(s.c)
	gw := gob.NewEncoder(s.c)

	for {
		var req protocol.Request
		if err := gr.Decode(&req); err != nil {
			if err != io.EOF {
				log.Error().Err(err).Str("user", s.user).Msg("decoding admin request")
			}
			return
		}

		switch action := req.Action.(type) {
		case protocol.ActionPutInfo:
			key := sched.VCPUKey{DomainID: action.DomainID, VCPUID: action.VCPUID}
			resp := protocol.ActionPutInfoResponse{}
			var err error
			if action.Period == 2*sched.PeriodMax {
				err = s.sc.PutInfo(key, action.Period, action.Slice)
			} else {
				err = s.sc.Insert(key, action.Period, action.Slice, action.Sporadic)
				if err == sched.ErrAlreadyAdmitted {
					err = s.sc.PutInfo(key, action.Period, action.Slice)
				}
			}
			if err != nil {
				resp.Err = err.Error()
			}
			if !send(gw, resp, log) {
				return
			}

		case protocol.ActionGetInfo:
			key := sched.VCPUKey{DomainID: action.DomainID, VCPUID: action.VCPUID}
			period, slice, err := s.sc.GetInfo(key)
			resp := protocol.ActionGetInfoResponse{Period: period, Slice: slice}
			if err != nil {
				resp.Err = err.Error()
			}
			if !send(gw, resp, log) {
				return
			}

		case protocol.ActionList:
			if !send(gw, toWireSummaries(s.sc.ListVCPUSummaries()), log) {
				return
			}

		case protocol.ActionDebugToggle:
			s.sc.ToggleDebug()
			if !send(gw, struct{}{}, log) {
				return
			}

		case protocol.ActionDump:
			if !send(gw, toWireEntries(s.sc.DumpDebugRing(action.PCPU)), log) {
				return
			}

		default:
			log.Error().Str("user", s.user).Msgf("unknown admin request type %T", action)
			return
		}
	}
}

func send(gw *gob.Encoder, v interface{}, log zerolog.Logger) bool {
	if err := gw.Encode(v); err != nil {
		log.Error().Err(err).Msgf("sending admin response %T", v)
		return false
	}
	return true
}

func toWireSummaries(in []sched.VCPUSummary) []protocol.VCPUSummary {
	out := make([]protocol.VCPUSummary, len(in))
	for i, v := range in {
		out[i] = protocol.VCPUSummary{
			DomainID: v.Key.DomainID,
			VCPUID:   v.Key.VCPUID,
			Period:   v.Period,
			Slice:    v.Slice,
			Sporadic: v.Sporadic,
			CPUA:     v.CPUA,
			CPUB:     v.CPUB,
			Split:    v.Split,
		}
	}
	return out
}

func toWireEntries(in []sched.DebugEntry) []protocol.DumpEntry {
	out := make([]protocol.DumpEntry, len(in))
	for i, e := range in {
		out[i] = protocol.DumpEntry{
			Domain:       e.Domain,
			VCPU:         e.VCPU,
			NowDelta:     e.NowDelta,
			Quantum:      e.Quantum,
			LocalCPUTime: e.LocalCPUTime,
			Allocated:    e.Allocated,
		}
	}
	return out
}
