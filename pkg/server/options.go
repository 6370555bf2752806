package server

import (
	"github.com/sirupsen/logrus"
)

func WithAddress(address string) func(*Server) {
	return func(s *Server) {
		s.address = address
	}
}

func WithAdminToken(token string) func(*Server) {
	return func(s *Server) {
		s.adminToken = token
	}
}

func WithLogger(l *logrus.Logger) func(*Server) {
	return func(s *Server) {
		s.l = l
	}
}
