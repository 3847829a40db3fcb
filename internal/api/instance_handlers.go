package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilapp/veil-server/internal/domain"
)

func (s *Server) registerInstanceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "registerInstance",
		Method:      http.MethodPost,
		Path:        "/api/v1/instances",
		Summary:     "Register instance",
		Description: "Registers an upstream library instance",
		Tags:        []string{"Instances"},
	}, s.handleRegisterInstance)

	huma.Register(s.api, huma.Operation{
		OperationID: "listInstances",
		Method:      http.MethodGet,
		Path:        "/api/v1/instances",
		Summary:     "List instances",
		Description: "Returns all registered upstream instances",
		Tags:        []string{"Instances"},
	}, s.handleListInstances)

	huma.Register(s.api, huma.Operation{
		OperationID: "getInstance",
		Method:      http.MethodGet,
		Path:        "/api/v1/instances/{instanceID}",
		Summary:     "Get instance",
		Description: "Returns an upstream instance by ID",
		Tags:        []string{"Instances"},
	}, s.handleGetInstance)
}

// InstanceResponse contains instance data in API responses.
type InstanceResponse struct {
	ID        string    `json:"id" doc:"Instance ID"`
	Name      string    `json:"name" doc:"Instance name"`
	SourceURL string    `json:"source_url,omitempty" doc:"Upstream base URL"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

func toInstanceResponse(in *domain.Instance) InstanceResponse {
	return InstanceResponse{
		ID:        in.ID,
		Name:      in.Name,
		SourceURL: in.SourceURL,
		CreatedAt: in.CreatedAt,
		UpdatedAt: in.UpdatedAt,
	}
}

// RegisterInstanceRequest is the request body for registering an instance.
type RegisterInstanceRequest struct {
	Name      string `json:"name" doc:"Instance name"`
	SourceURL string `json:"source_url,omitempty" doc:"Upstream base URL"`
}

// RegisterInstanceInput wraps the register instance request for Huma.
type RegisterInstanceInput struct {
	Body RegisterInstanceRequest
}

// InstanceOutput wraps an instance response for Huma.
type InstanceOutput struct {
	Body InstanceResponse
}

// ListInstancesOutput wraps the instance list response for Huma.
type ListInstancesOutput struct {
	Body struct {
		Instances []InstanceResponse `json:"instances" doc:"All registered instances"`
	}
}

// GetInstanceInput contains parameters for getting an instance.
type GetInstanceInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
}

func (s *Server) handleRegisterInstance(ctx context.Context, input *RegisterInstanceInput) (*InstanceOutput, error) {
	instance, err := s.services.Library.RegisterInstance(ctx, input.Body.Name, input.Body.SourceURL)
	if err != nil {
		return nil, err
	}
	return &InstanceOutput{Body: toInstanceResponse(instance)}, nil
}

func (s *Server) handleListInstances(ctx context.Context, _ *struct{}) (*ListInstancesOutput, error) {
	instances, err := s.services.Library.ListInstances(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListInstancesOutput{}
	out.Body.Instances = make([]InstanceResponse, 0, len(instances))
	for _, in := range instances {
		out.Body.Instances = append(out.Body.Instances, toInstanceResponse(in))
	}
	return out, nil
}

func (s *Server) handleGetInstance(ctx context.Context, input *GetInstanceInput) (*InstanceOutput, error) {
	instance, err := s.services.Library.GetInstance(ctx, input.InstanceID)
	if err != nil {
		return nil, err
	}
	return &InstanceOutput{Body: toInstanceResponse(instance)}, nil
}
