package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilapp/veil-server/internal/domain"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/users",
		Summary:     "Create user",
		Description: "Creates a user profile",
		Tags:        []string{"Users"},
	}, s.handleCreateUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "listUsers",
		Method:      http.MethodGet,
		Path:        "/api/v1/users",
		Summary:     "List users",
		Description: "Returns all user profiles",
		Tags:        []string{"Users"},
	}, s.handleListUsers)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}",
		Summary:     "Get user",
		Description: "Returns a user by ID",
		Tags:        []string{"Users"},
	}, s.handleGetUser)
}

// UserResponse contains user data in API responses.
type UserResponse struct {
	ID        string    `json:"id" doc:"User ID"`
	Name      string    `json:"name" doc:"Display name"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	Name string `json:"name" doc:"Display name"`
}

// CreateUserInput wraps the create user request for Huma.
type CreateUserInput struct {
	Body CreateUserRequest
}

// UserOutput wraps a user response for Huma.
type UserOutput struct {
	Body UserResponse
}

// ListUsersOutput wraps the user list response for Huma.
type ListUsersOutput struct {
	Body struct {
		Users []UserResponse `json:"users" doc:"All user profiles"`
	}
}

// GetUserInput contains parameters for getting a user.
type GetUserInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

func (s *Server) handleCreateUser(ctx context.Context, input *CreateUserInput) (*UserOutput, error) {
	user, err := s.services.Library.CreateUser(ctx, input.Body.Name)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: toUserResponse(user)}, nil
}

func (s *Server) handleListUsers(ctx context.Context, _ *struct{}) (*ListUsersOutput, error) {
	users, err := s.services.Library.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListUsersOutput{}
	out.Body.Users = make([]UserResponse, 0, len(users))
	for _, u := range users {
		out.Body.Users = append(out.Body.Users, toUserResponse(u))
	}
	return out, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *GetUserInput) (*UserOutput, error) {
	user, err := s.services.Library.GetUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: toUserResponse(user)}, nil
}
