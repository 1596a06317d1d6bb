package spacehandler

import "arenago/internal/services/space"

type SignupBody struct {
	Username string `json:"username" binding:"required,min=3,max=32" example:"alice"`
	Password string `json:"password" binding:"required,min=6"`
	Type     string `json:"type"     binding:"omitempty,oneof=user admin"`
} // @name SignupRequest

type SigninBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
} // @name SigninRequest

type MetadataBody struct {
	AvatarID string `json:"avatarId" binding:"required"`
} // @name MetadataRequest

type CreateAvatarBody struct {
	ImageURL string `json:"imageUrl" binding:"required,url"`
	Name     string `json:"name"     binding:"required"`
} // @name CreateAvatarRequest

type CreateElementBody struct {
	ImageURL string `json:"imageUrl" binding:"required,url"`
	Width    int    `json:"width"    binding:"required,gt=0"`
	Height   int    `json:"height"   binding:"required,gt=0"`
	// Static marks the element as collision geometry: occupants can
	// never stand on any cell of its footprint.
	Static *bool `json:"static" binding:"required"`
} // @name CreateElementRequest

type CreateMapBody struct {
	Name            string                      `json:"name"       binding:"required"`
	Thumbnail       string                      `json:"thumbnail"  binding:"required,url"`
	Dimensions      string                      `json:"dimensions" binding:"required" example:"100x200"`
	DefaultElements []space.MapElementPlacement `json:"defaultElements"`
} // @name CreateMapRequest

type CreateSpaceBody struct {
	Name       string `json:"name"       binding:"required"`
	Dimensions string `json:"dimensions" example:"100x200"`
	MapID      string `json:"mapId"`
} // @name CreateSpaceRequest

type AddElementBody struct {
	SpaceID   string `json:"spaceId"   binding:"required"`
	ElementID string `json:"elementId" binding:"required"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
} // @name AddElementRequest

type RemoveElementBody struct {
	SpaceID   string `json:"spaceId"   binding:"required"`
	ElementID string `json:"elementId" binding:"required"`
} // @name RemoveElementRequest

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
