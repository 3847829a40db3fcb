package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/veilapp/veil-server/internal/domain"
	"github.com/veilapp/veil-server/internal/service"
)

func (s *Server) registerVisibilityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "hideEntity",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/{userID}/hidden",
		Summary:     "Hide entity",
		Description: "Hides a single entity and immediately excludes its one-hop related content",
		Tags:        []string{"Visibility"},
	}, s.handleHideEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "unhideEntity",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/{userID}/hidden/{entityType}/{instanceID}/{entityID}",
		Summary:     "Unhide entity",
		Description: "Removes a hide; derived exclusions are cleaned up by a deferred rebuild",
		Tags:        []string{"Visibility"},
	}, s.handleUnhideEntity)

	huma.Register(s.api, huma.Operation{
		OperationID: "listHiddenEntities",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/hidden",
		Summary:     "List hidden entities",
		Description: "Returns the user's manually hidden entities",
		Tags:        []string{"Visibility"},
	}, s.handleListHiddenEntities)

	huma.Register(s.api, huma.Operation{
		OperationID: "setRestriction",
		Method:      http.MethodPut,
		Path:        "/api/v1/users/{userID}/restrictions",
		Summary:     "Set content restriction",
		Description: "Creates or replaces the restriction for one entity type and instance, then rebuilds the exclusion set",
		Tags:        []string{"Visibility"},
	}, s.handleSetRestriction)

	huma.Register(s.api, huma.Operation{
		OperationID: "listRestrictions",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/restrictions",
		Summary:     "List content restrictions",
		Description: "Returns all of the user's content restrictions",
		Tags:        []string{"Visibility"},
	}, s.handleListRestrictions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRestriction",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/restrictions/{entityType}/{instanceID}",
		Summary:     "Get content restriction",
		Description: "Returns the restriction for one entity type and instance",
		Tags:        []string{"Visibility"},
	}, s.handleGetRestriction)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteRestriction",
		Method:      http.MethodDelete,
		Path:        "/api/v1/users/{userID}/restrictions/{entityType}/{instanceID}",
		Summary:     "Delete content restriction",
		Description: "Deletes the restriction and rebuilds the exclusion set",
		Tags:        []string{"Visibility"},
	}, s.handleDeleteRestriction)

	huma.Register(s.api, huma.Operation{
		OperationID: "listExclusions",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/exclusions",
		Summary:     "List exclusions",
		Description: "Returns the user's materialized exclusion set",
		Tags:        []string{"Visibility"},
	}, s.handleListExclusions)

	huma.Register(s.api, huma.Operation{
		OperationID: "getExclusionStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{userID}/exclusions/stats",
		Summary:     "Get exclusion stats",
		Description: "Returns per-type exclusion counts from the last rebuild",
		Tags:        []string{"Visibility"},
	}, s.handleGetExclusionStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "recomputeUser",
		Method:      http.MethodPost,
		Path:        "/api/v1/users/{userID}/exclusions/recompute",
		Summary:     "Recompute exclusions",
		Description: "Rebuilds the user's exclusion set from facts",
		Tags:        []string{"Visibility"},
	}, s.handleRecomputeUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "recomputeAllUsers",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/exclusions/recompute",
		Summary:     "Recompute all users",
		Description: "Sequentially rebuilds every user's exclusion set",
		Tags:        []string{"Visibility"},
	}, s.handleRecomputeAllUsers)
}

// EntityRefRequest names a single entity in request bodies.
type EntityRefRequest struct {
	EntityType string `json:"entity_type" doc:"Entity type" enum:"scene,performer,studio,tag,group,gallery,image"`
	EntityID   string `json:"entity_id" doc:"Upstream entity ID"`
	InstanceID string `json:"instance_id" doc:"Instance ID"`
}

// HideEntityInput wraps a hide request for Huma.
type HideEntityInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   EntityRefRequest
}

// HiddenEntityResponse contains one hidden-entity fact.
type HiddenEntityResponse struct {
	EntityType string    `json:"entity_type" doc:"Entity type"`
	EntityID   string    `json:"entity_id" doc:"Upstream entity ID"`
	InstanceID string    `json:"instance_id" doc:"Instance ID"`
	CreatedAt  time.Time `json:"created_at" doc:"When the entity was hidden"`
}

// HiddenListOutput wraps the hidden entity list for Huma.
type HiddenListOutput struct {
	Body struct {
		Hidden []HiddenEntityResponse `json:"hidden" doc:"Manually hidden entities"`
	}
}

// UnhideEntityInput contains parameters for removing a hide.
type UnhideEntityInput struct {
	UserID     string `path:"userID" doc:"User ID"`
	EntityType string `path:"entityType" doc:"Entity type"`
	InstanceID string `path:"instanceID" doc:"Instance ID"`
	EntityID   string `path:"entityID" doc:"Upstream entity ID"`
}

// ListHiddenInput contains parameters for listing hidden entities.
type ListHiddenInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

// AckOutput is an empty acknowledgement body.
type AckOutput struct {
	Body struct {
		OK bool `json:"ok" doc:"Whether the operation completed"`
	}
}

func ack() *AckOutput {
	out := &AckOutput{}
	out.Body.OK = true
	return out
}

func (s *Server) handleHideEntity(ctx context.Context, input *HideEntityInput) (*AckOutput, error) {
	if _, err := s.store.GetUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	ref := domain.Ref(domain.EntityType(input.Body.EntityType), input.Body.EntityID, input.Body.InstanceID)
	if err := s.services.Visibility.AddHiddenEntity(ctx, input.UserID, ref); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (s *Server) handleUnhideEntity(ctx context.Context, input *UnhideEntityInput) (*AckOutput, error) {
	if _, err := s.store.GetUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	ref := domain.Ref(domain.EntityType(input.EntityType), input.EntityID, input.InstanceID)
	if err := s.services.Visibility.RemoveHiddenEntity(ctx, input.UserID, ref); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (s *Server) handleListHiddenEntities(ctx context.Context, input *ListHiddenInput) (*HiddenListOutput, error) {
	hidden, err := s.services.Visibility.ListHiddenEntities(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &HiddenListOutput{}
	out.Body.Hidden = make([]HiddenEntityResponse, 0, len(hidden))
	for _, h := range hidden {
		out.Body.Hidden = append(out.Body.Hidden, HiddenEntityResponse{
			EntityType: string(h.EntityType),
			EntityID:   h.EntityID,
			InstanceID: h.InstanceID,
			CreatedAt:  h.CreatedAt,
		})
	}
	return out, nil
}

// RestrictionRequest is the request body for setting a restriction.
type RestrictionRequest struct {
	EntityType string   `json:"entity_type" doc:"Restricted entity type" enum:"performer,studio,tag,group,gallery"`
	InstanceID string   `json:"instance_id" doc:"Instance ID"`
	Mode       string   `json:"mode" doc:"EXCLUDE hides the listed IDs; INCLUDE hides everything else" enum:"EXCLUDE,INCLUDE"`
	EntityIDs  []string `json:"entity_ids" doc:"Entity IDs the mode applies to"`
	Depth      int      `json:"depth,omitempty" doc:"Hierarchy expansion depth for tags and studios: 0 none, -1 unlimited"`
}

// SetRestrictionInput wraps a restriction request for Huma.
type SetRestrictionInput struct {
	UserID string `path:"userID" doc:"User ID"`
	Body   RestrictionRequest
}

// RestrictionResponse contains restriction data in API responses.
type RestrictionResponse struct {
	EntityType string    `json:"entity_type" doc:"Restricted entity type"`
	InstanceID string    `json:"instance_id" doc:"Instance ID"`
	Mode       string    `json:"mode" doc:"Restriction mode"`
	EntityIDs  []string  `json:"entity_ids" doc:"Entity IDs the mode applies to"`
	Depth      int       `json:"depth" doc:"Hierarchy expansion depth"`
	CreatedAt  time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt  time.Time `json:"updated_at" doc:"Last update time"`
}

func toRestrictionResponse(r *domain.ContentRestriction) (RestrictionResponse, error) {
	ids, err := r.ParseEntityIDs()
	if err != nil {
		// Surface the raw row rather than failing the read.
		ids = []string{}
	}
	return RestrictionResponse{
		EntityType: string(r.EntityType),
		InstanceID: r.InstanceID,
		Mode:       string(r.Mode),
		EntityIDs:  ids,
		Depth:      r.Depth,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

// RestrictionOutput wraps a restriction response for Huma.
type RestrictionOutput struct {
	Body RestrictionResponse
}

// ListRestrictionsInput contains parameters for listing restrictions.
type ListRestrictionsInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

// ListRestrictionsOutput wraps the restriction list for Huma.
type ListRestrictionsOutput struct {
	Body struct {
		Restrictions []RestrictionResponse `json:"restrictions" doc:"All restrictions for the user"`
	}
}

// RestrictionKeyInput identifies one restriction by its natural key.
type RestrictionKeyInput struct {
	UserID     string `path:"userID" doc:"User ID"`
	EntityType string `path:"entityType" doc:"Restricted entity type"`
	InstanceID string `path:"instanceID" doc:"Instance ID"`
}

func (s *Server) handleSetRestriction(ctx context.Context, input *SetRestrictionInput) (*RestrictionOutput, error) {
	if _, err := s.store.GetUser(ctx, input.UserID); err != nil {
		return nil, err
	}

	restriction, err := s.services.Visibility.SetContentRestriction(ctx, input.UserID, service.RestrictionInput{
		EntityType: input.Body.EntityType,
		InstanceID: input.Body.InstanceID,
		Mode:       input.Body.Mode,
		EntityIDs:  input.Body.EntityIDs,
		Depth:      input.Body.Depth,
	})
	if err != nil {
		return nil, err
	}

	body, err := toRestrictionResponse(restriction)
	if err != nil {
		return nil, err
	}
	return &RestrictionOutput{Body: body}, nil
}

func (s *Server) handleListRestrictions(ctx context.Context, input *ListRestrictionsInput) (*ListRestrictionsOutput, error) {
	restrictions, err := s.services.Visibility.ListContentRestrictions(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &ListRestrictionsOutput{}
	out.Body.Restrictions = make([]RestrictionResponse, 0, len(restrictions))
	for _, r := range restrictions {
		body, err := toRestrictionResponse(r)
		if err != nil {
			return nil, err
		}
		out.Body.Restrictions = append(out.Body.Restrictions, body)
	}
	return out, nil
}

func (s *Server) handleGetRestriction(ctx context.Context, input *RestrictionKeyInput) (*RestrictionOutput, error) {
	restriction, err := s.services.Visibility.GetContentRestriction(ctx, input.UserID, domain.EntityType(input.EntityType), input.InstanceID)
	if err != nil {
		return nil, err
	}

	body, err := toRestrictionResponse(restriction)
	if err != nil {
		return nil, err
	}
	return &RestrictionOutput{Body: body}, nil
}

func (s *Server) handleDeleteRestriction(ctx context.Context, input *RestrictionKeyInput) (*AckOutput, error) {
	err := s.services.Visibility.DeleteContentRestriction(ctx, input.UserID, domain.EntityType(input.EntityType), input.InstanceID)
	if err != nil {
		return nil, err
	}
	return ack(), nil
}

// ExclusionResponse is one row of the materialized exclusion set.
type ExclusionResponse struct {
	EntityType string    `json:"entity_type" doc:"Entity type"`
	EntityID   string    `json:"entity_id" doc:"Upstream entity ID"`
	InstanceID string    `json:"instance_id" doc:"Instance ID"`
	Reason     string    `json:"reason" doc:"Why the entity is excluded: restricted, hidden, cascade, or empty"`
	CreatedAt  time.Time `json:"created_at" doc:"When the record was written"`
}

// ListExclusionsInput contains parameters for listing exclusions.
type ListExclusionsInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

// ListExclusionsOutput wraps the exclusion list for Huma.
type ListExclusionsOutput struct {
	Body struct {
		Exclusions []ExclusionResponse `json:"exclusions" doc:"Materialized exclusion records"`
	}
}

func (s *Server) handleListExclusions(ctx context.Context, input *ListExclusionsInput) (*ListExclusionsOutput, error) {
	records, err := s.services.Visibility.ListExclusions(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &ListExclusionsOutput{}
	out.Body.Exclusions = make([]ExclusionResponse, 0, len(records))
	for _, r := range records {
		out.Body.Exclusions = append(out.Body.Exclusions, ExclusionResponse{
			EntityType: string(r.EntityType),
			EntityID:   r.EntityID,
			InstanceID: r.InstanceID,
			Reason:     string(r.Reason),
			CreatedAt:  r.CreatedAt,
		})
	}
	return out, nil
}

// ExclusionStatsInput contains parameters for reading exclusion stats.
type ExclusionStatsInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

// ExclusionStatsOutput wraps per-type exclusion counts for Huma.
type ExclusionStatsOutput struct {
	Body struct {
		Counts map[string]int `json:"counts" doc:"Excluded entity count per type"`
	}
}

func (s *Server) handleGetExclusionStats(ctx context.Context, input *ExclusionStatsInput) (*ExclusionStatsOutput, error) {
	counts, err := s.services.Visibility.ExclusionStats(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &ExclusionStatsOutput{}
	out.Body.Counts = make(map[string]int, len(counts))
	for t, n := range counts {
		out.Body.Counts[string(t)] = n
	}
	return out, nil
}

// RecomputeUserInput contains parameters for a single-user recompute.
type RecomputeUserInput struct {
	UserID string `path:"userID" doc:"User ID"`
}

func (s *Server) handleRecomputeUser(ctx context.Context, input *RecomputeUserInput) (*AckOutput, error) {
	if _, err := s.store.GetUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	if err := s.checkRecomputeLimit(input.UserID); err != nil {
		return nil, err
	}
	if err := s.services.Visibility.RecomputeForUser(ctx, input.UserID); err != nil {
		return nil, err
	}
	return ack(), nil
}

func (s *Server) handleRecomputeAllUsers(ctx context.Context, _ *struct{}) (*AckOutput, error) {
	if err := s.checkRecomputeLimit("all-users"); err != nil {
		return nil, err
	}
	if err := s.services.Visibility.RecomputeAllUsers(ctx); err != nil {
		return nil, err
	}
	return ack(), nil
}
