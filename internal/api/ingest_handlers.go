package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/service"
)

// Ingest endpoints mirror an upstream library into the local catalog.
// Every write is an upsert keyed by the upstream's own entity ID, so a
// sync can replay its full state at any time.
func (s *Server) registerIngestRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "ingestScene",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/scenes",
		Summary:     "Ingest scene",
		Description: "Creates or replaces a scene mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestScene)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestPerformer",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/performers",
		Summary:     "Ingest performer",
		Description: "Creates or replaces a performer mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestPerformer)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestStudio",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/studios",
		Summary:     "Ingest studio",
		Description: "Creates or replaces a studio mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestStudio)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestTag",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/tags",
		Summary:     "Ingest tag",
		Description: "Creates or replaces a tag mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestGroup",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/groups",
		Summary:     "Ingest group",
		Description: "Creates or replaces a group mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestGroup)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestGallery",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/galleries",
		Summary:     "Ingest gallery",
		Description: "Creates or replaces a gallery mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestGallery)

	huma.Register(s.api, huma.Operation{
		OperationID: "ingestImage",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/images",
		Summary:     "Ingest image",
		Description: "Creates or replaces an image mirrored from the upstream",
		Tags:        []string{"Ingest"},
	}, s.handleIngestImage)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteEntity",
		Method:      http.MethodDelete,
		Path:        "/api/v1/instances/{instanceID}/{entityType}/{entityID}",
		Summary:     "Delete entity",
		Description: "Removes an entity the upstream no longer has",
		Tags:        []string{"Ingest"},
	}, s.handleDeleteEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "setLinks",
		Method:      http.MethodPut,
		Path:        "/api/v1/instances/{instanceID}/links/{kind}",
		Summary:     "Set relationship links",
		Description: "Replaces one entity's junction rows for a relationship kind",
		Tags:        []string{"Ingest"},
	}, s.handleSetLinks)
}

// IngestAck confirms an ingest write.
type IngestAck struct {
	ID string `json:"id" doc:"Entity ID that was written"`
}

// IngestOutput wraps an ingest acknowledgement for Huma.
type IngestOutput struct {
	Body IngestAck
}

// IngestSceneInput wraps a scene ingest request for Huma.
type IngestSceneInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID       string `json:"id" doc:"Upstream scene ID"`
		Title    string `json:"title,omitempty" doc:"Scene title"`
		StudioID string `json:"studio_id,omitempty" doc:"Owning studio ID"`
	}
}

func (s *Server) handleIngestScene(ctx context.Context, input *IngestSceneInput) (*IngestOutput, error) {
	scene := &domain.Scene{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Title:      input.Body.Title,
		StudioID:   input.Body.StudioID,
	}
	if err := s.services.Library.IngestScene(ctx, scene); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: scene.ID}}, nil
}

// IngestPerformerInput wraps a performer ingest request for Huma.
type IngestPerformerInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID   string `json:"id" doc:"Upstream performer ID"`
		Name string `json:"name,omitempty" doc:"Performer name"`
	}
}

func (s *Server) handleIngestPerformer(ctx context.Context, input *IngestPerformerInput) (*IngestOutput, error) {
	performer := &domain.Performer{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Name:       input.Body.Name,
	}
	if err := s.services.Library.IngestPerformer(ctx, performer); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: performer.ID}}, nil
}

// IngestStudioInput wraps a studio ingest request for Huma.
type IngestStudioInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID       string `json:"id" doc:"Upstream studio ID"`
		Name     string `json:"name,omitempty" doc:"Studio name"`
		ParentID string `json:"parent_id,omitempty" doc:"Parent studio ID"`
	}
}

func (s *Server) handleIngestStudio(ctx context.Context, input *IngestStudioInput) (*IngestOutput, error) {
	studio := &domain.Studio{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Name:       input.Body.Name,
		ParentID:   input.Body.ParentID,
	}
	if err := s.services.Library.IngestStudio(ctx, studio); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: studio.ID}}, nil
}

// IngestTagInput wraps a tag ingest request for Huma.
type IngestTagInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID       string `json:"id" doc:"Upstream tag ID"`
		Name     string `json:"name,omitempty" doc:"Tag name"`
		ParentID string `json:"parent_id,omitempty" doc:"Parent tag ID"`
	}
}

func (s *Server) handleIngestTag(ctx context.Context, input *IngestTagInput) (*IngestOutput, error) {
	tag := &domain.Tag{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Name:       input.Body.Name,
		ParentID:   input.Body.ParentID,
	}
	if err := s.services.Library.IngestTag(ctx, tag); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: tag.ID}}, nil
}

// IngestGroupInput wraps a group ingest request for Huma.
type IngestGroupInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID   string `json:"id" doc:"Upstream group ID"`
		Name string `json:"name,omitempty" doc:"Group name"`
	}
}

func (s *Server) handleIngestGroup(ctx context.Context, input *IngestGroupInput) (*IngestOutput, error) {
	group := &domain.Group{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Name:       input.Body.Name,
	}
	if err := s.services.Library.IngestGroup(ctx, group); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: group.ID}}, nil
}

// IngestGalleryInput wraps a gallery ingest request for Huma.
type IngestGalleryInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID    string `json:"id" doc:"Upstream gallery ID"`
		Title string `json:"title,omitempty" doc:"Gallery title"`
	}
}

func (s *Server) handleIngestGallery(ctx context.Context, input *IngestGalleryInput) (*IngestOutput, error) {
	gallery := &domain.Gallery{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Title:      input.Body.Title,
	}
	if err := s.services.Library.IngestGallery(ctx, gallery); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: gallery.ID}}, nil
}

// IngestImageInput wraps an image ingest request for Huma.
type IngestImageInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Body       struct {
		ID    string `json:"id" doc:"Upstream image ID"`
		Title string `json:"title,omitempty" doc:"Image title"`
	}
}

func (s *Server) handleIngestImage(ctx context.Context, input *IngestImageInput) (*IngestOutput, error) {
	image := &domain.Image{
		ID:         input.Body.ID,
		InstanceID: input.InstanceID,
		Title:      input.Body.Title,
	}
	if err := s.services.Library.IngestImage(ctx, image); err != nil {
		return nil, err
	}
	return &IngestOutput{Body: IngestAck{ID: image.ID}}, nil
}

// DeleteEntityInput wraps an entity deletion request for Huma.
type DeleteEntityInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	EntityType string `path:"entityType" doc:"Entity type" enum:"scene,performer,studio,tag,group,gallery,image"`
	EntityID   string `path:"entityID" doc:"Upstream entity ID"`
}

func (s *Server) handleDeleteEntity(ctx context.Context, input *DeleteEntityInput) (*AckOutput, error) {
	err := s.services.Library.DeleteEntity(ctx, domain.EntityType(input.EntityType), input.EntityID, input.InstanceID)
	if err != nil {
		return nil, err
	}
	return ack(), nil
}

// SetLinksInput wraps a link replacement request for Huma.
type SetLinksInput struct {
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	Kind       string `path:"kind" doc:"Relationship kind, e.g. scene_performers" enum:"scene_performers,scene_tags,scene_groups,scene_galleries,gallery_images,performer_tags,studio_tags,group_tags,performer_images,studio_images"`
	Body       struct {
		OwnerID    string   `json:"owner_id" doc:"Entity owning the links"`
		RelatedIDs []string `json:"related_ids" doc:"Complete replacement list of linked entity IDs"`
	}
}

// SetLinksOutput wraps a link replacement acknowledgement for Huma.
type SetLinksOutput struct {
	Body struct {
		OwnerID string `json:"owner_id" doc:"Entity whose links were replaced"`
		Count   int    `json:"count" doc:"Number of links now present"`
	}
}

func (s *Server) handleSetLinks(ctx context.Context, input *SetLinksInput) (*SetLinksOutput, error) {
	err := s.services.Library.SetLinks(ctx, service.LinkKind(input.Kind), input.Body.OwnerID, input.InstanceID, input.Body.RelatedIDs)
	if err != nil {
		return nil, err
	}

	out := &SetLinksOutput{}
	out.Body.OwnerID = input.Body.OwnerID
	out.Body.Count = len(input.Body.RelatedIDs)
	return out, nil
}
