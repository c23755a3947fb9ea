package server

import "google.golang.org/grpc"

// Registrar attaches one service to the gRPC server.
type Registrar interface {
	Register(s *grpc.Server)
}

// RegistrarFunc lets a plain function act as a Registrar.
type RegistrarFunc func(s *grpc.Server)

func (f RegistrarFunc) Register(s *grpc.Server) { f(s) }
