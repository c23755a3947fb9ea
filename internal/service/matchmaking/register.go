package matchmaking

import (
	"google.golang.org/grpc"
)

// Registrar ties the Matchmaking service into the gRPC server
type Registrar struct {
	service *GRPCService
}

// NewRegistrar creates a new Registrar for the Matchmaking service
func NewRegistrar(service *GRPCService) *Registrar {
	return &Registrar{service: service}
}

// Register attaches the Matchmaking service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&ServiceDesc, r.service)
}
