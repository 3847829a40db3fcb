package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerBrowseRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "browseScenes",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/browse/{instanceID}/scenes",
		Summary:     "Browse scenes",
		Description: "Returns the scenes visible to the user in one instance",
		Tags:        []string{"Browse"},
	}, s.handleBrowseScenes)

	huma.Register(s.api, huma.Operation{
		OperationID: "browseGalleries",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/browse/{instanceID}/galleries",
		Summary:     "Browse galleries",
		Description: "Returns the galleries visible to the user in one instance",
		Tags:        []string{"Browse"},
	}, s.handleBrowseGalleries)
}

// BrowseInput identifies the user and instance to browse.
type BrowseInput struct {
	UserID     string `path:"userID" doc:"User ID"`
	InstanceID string `path:"instanceID" doc:"Instance ID"`
}

// SceneResponse contains scene data in API responses.
type SceneResponse struct {
	ID        string    `json:"id" doc:"Upstream scene ID"`
	Title     string    `json:"title" doc:"Scene title"`
	StudioID  string    `json:"studio_id,omitempty" doc:"Owning studio ID"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// BrowseScenesOutput wraps the visible scene list for Huma.
type BrowseScenesOutput struct {
	Body struct {
		Scenes []SceneResponse `json:"scenes" doc:"Scenes visible to the user"`
	}
}

func (s *Server) handleBrowseScenes(ctx context.Context, input *BrowseInput) (*BrowseScenesOutput, error) {
	scenes, err := s.services.Browse.ListScenes(ctx, input.UserID, input.InstanceID)
	if err != nil {
		return nil, err
	}

	out := &BrowseScenesOutput{}
	out.Body.Scenes = make([]SceneResponse, 0, len(scenes))
	for _, sc := range scenes {
		out.Body.Scenes = append(out.Body.Scenes, SceneResponse{
			ID:        sc.ID,
			Title:     sc.Title,
			StudioID:  sc.StudioID,
			UpdatedAt: sc.UpdatedAt,
		})
	}
	return out, nil
}

// GalleryResponse contains gallery data in API responses.
type GalleryResponse struct {
	ID        string    `json:"id" doc:"Upstream gallery ID"`
	Title     string    `json:"title" doc:"Gallery title"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

// BrowseGalleriesOutput wraps the visible gallery list for Huma.
type BrowseGalleriesOutput struct {
	Body struct {
		Galleries []GalleryResponse `json:"galleries" doc:"Galleries visible to the user"`
	}
}

func (s *Server) handleBrowseGalleries(ctx context.Context, input *BrowseInput) (*BrowseGalleriesOutput, error) {
	galleries, err := s.services.Browse.ListGalleries(ctx, input.UserID, input.InstanceID)
	if err != nil {
		return nil, err
	}

	out := &BrowseGalleriesOutput{}
	out.Body.Galleries = make([]GalleryResponse, 0, len(galleries))
	for _, g := range galleries {
		out.Body.Galleries = append(out.Body.Galleries, GalleryResponse{
			ID:        g.ID,
			Title:     g.Title,
			UpdatedAt: g.UpdatedAt,
		})
	}
	return out, nil
}
