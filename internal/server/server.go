// Package server implements the connection accept loop and command
// dispatcher (C1-C3, C10): it owns the listener, frames each connection's
// byte stream into lines, parses requests, and routes them to
// internal/chat's handlers over a raw TCP line protocol.
package server

import (
	"errors"
	"io"
	"log"
	"net"
	"strconv"

	"github.com/chatline/linechatd/internal/chat"
	"github.com/chatline/linechatd/internal/metrics"
	"github.com/chatline/linechatd/internal/proto"
	"github.com/chatline/linechatd/internal/session"
)

// Server accepts TCP connections and serves the line protocol on each.
type Server struct {
	Chat     *chat.Service
	Sessions *session.Registry
	Metrics  *metrics.Metrics
	Reaper   *session.Reaper

	ln net.Listener
}

// New wires a Server over an already-constructed chat.Service.
func New(svc *chat.Service, sessions *session.Registry, m *metrics.Metrics, reaper *session.Reaper) *Server {
	return &Server{Chat: svc, Sessions: sessions, Metrics: m, Reaper: reaper}
}

// ListenAndServe binds addr, logs a readiness line external test harnesses
// look for, and accepts connections until Shutdown closes the listener.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln

	log.Printf("Server listening on %s", ln.Addr())

	if s.Reaper != nil {
		go s.Reaper.Run()
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

// Shutdown closes the listener, refusing new connections. Live connections
// are left to the caller's own signal handling to unblock; this server does
// not force-close live sockets.
func (s *Server) Shutdown() error {
	if s.Reaper != nil {
		s.Reaper.Stop()
	}
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) handle(raw net.Conn) {
	conn := session.NewConn(raw)
	s.Sessions.Track(conn)
	if s.Metrics != nil {
		s.Metrics.ConnectionsTotal.Inc()
	}

	defer func() {
		s.Chat.Disconnect(conn, "")
		conn.Close()
	}()

	lr := proto.NewLineReader(raw)
	d := dispatcher{s: s, conn: conn}

	for {
		line, err := lr.ReadLine()
		if err != nil {
			if err != io.EOF && err != proto.ErrOverlongLine {
				log.Printf("server: read error: %v", err)
			}
			return
		}

		req, err := proto.Parse(line)
		if err != nil {
			continue
		}

		result := d.dispatch(req)
		if err := conn.WriteLine(result.Line(req.ReqID)); err != nil {
			return
		}
		if !result.OK && s.Metrics != nil {
			s.Metrics.ErrorsTotal.WithLabelValues(strconv.Itoa(result.Code)).Inc()
		}
		if req.Verb == "DISCONNECT" && result.OK {
			return
		}
	}
}
