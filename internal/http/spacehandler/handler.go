package spacehandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"arenago/internal/services/auth"
	"arenago/internal/services/space"
)

type Handler struct {
	authSvc  auth.IAuthService
	spaceSvc space.ISpaceService
}

func New(authSvc auth.IAuthService, spaceSvc space.ISpaceService) *Handler {
	return &Handler{authSvc: authSvc, spaceSvc: spaceSvc}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/signup", h.signup)
	r.POST("/signin", h.signin)
	r.GET("/avatars", h.listAvatars)

	user := r.Group("", authRequired(h.authSvc))
	user.PUT("/user/metadata", h.updateMetadata)
	user.GET("/user/metadata/bulk", h.bulkMetadata)

	admin := r.Group("/admin", authRequired(h.authSvc), adminRequired())
	admin.POST("/avatar", h.createAvatar)
	admin.POST("/element", h.createElement)
	admin.POST("/map", h.createMap)

	sp := r.Group("/space", authRequired(h.authSvc))
	sp.POST("", h.createSpace)
	sp.GET("/all", h.listSpaces)
	sp.GET("/:spaceId", h.getSpace)
	sp.DELETE("/:spaceId", h.deleteSpace)
	sp.POST("/element", h.addElement)
	sp.DELETE("/element", h.removeElement)
}

// @Summary		Sign up
// @Description	Creates a user account; usernames are unique.
// @Tags			Auth
// @Param			body	body	SignupBody	true	"Credentials"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/signup [post]
func (h *Handler) signup(c *gin.Context) {
	var body SignupBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	userID, err := h.authSvc.Signup(c.Request.Context(), body.Username, body.Password, body.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID})
}

// @Summary		Sign in
// @Description	Exchanges credentials for a bearer token.
// @Tags			Auth
// @Param			body	body	SigninBody	true	"Credentials"
// @Success		200
// @Failure		403	{object}	ErrorResponse
// @Router			/signin [post]
func (h *Handler) signin(c *gin.Context) {
	var body SigninBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	token, err := h.authSvc.Signin(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// @Summary		List avatars
// @Tags			Avatars
// @Success		200
// @Router			/avatars [get]
func (h *Handler) listAvatars(c *gin.Context) {
	avatars, err := h.spaceSvc.ListAvatars(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatars": avatars})
}

// @Summary		Update user metadata
// @Description	Assigns an avatar to the signed-in user.
// @Tags			Users
// @Param			body	body	MetadataBody	true	"Avatar"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/user/metadata [put]
func (h *Handler) updateMetadata(c *gin.Context) {
	var body MetadataBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.spaceSvc.SetUserAvatar(c.Request.Context(), claimsFrom(c).UserID, body.AvatarID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// @Summary		Bulk user metadata
// @Description	Resolves avatar images for a list of user ids.
// @Tags			Users
// @Param			ids	query	string	true	"Id list, e.g. [id1,id2]"
// @Success		200
// @Router			/user/metadata/bulk [get]
func (h *Handler) bulkMetadata(c *gin.Context) {
	avatars, err := h.spaceSvc.GetUsersAvatars(c.Request.Context(), parseIDList(c.Query("ids")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatars": avatars})
}

// parseIDList reads the bulk-query id list, sent as "[id1,id2]" with
// optional quoting around each id.
func parseIDList(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	ids := make([]string, 0, 8)
	for _, part := range strings.Split(raw, ",") {
		if id := strings.Trim(strings.TrimSpace(part), `"`); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// @Summary		Create avatar (admin)
// @Tags			Admin
// @Param			body	body	CreateAvatarBody	true	"Avatar"
// @Success		200
// @Router			/admin/avatar [post]
func (h *Handler) createAvatar(c *gin.Context) {
	var body CreateAvatarBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id, err := h.spaceSvc.CreateAvatar(c.Request.Context(), body.ImageURL, body.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatarId": id})
}

// @Summary		Create element (admin)
// @Description	Adds a catalog element; static elements block movement.
// @Tags			Admin
// @Param			body	body	CreateElementBody	true	"Element"
// @Success		200
// @Router			/admin/element [post]
func (h *Handler) createElement(c *gin.Context) {
	var body CreateElementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id, err := h.spaceSvc.CreateElement(c.Request.Context(),
		body.ImageURL, body.Width, body.Height, *body.Static)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary		Create map (admin)
// @Tags			Admin
// @Param			body	body	CreateMapBody	true	"Map"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/admin/map [post]
func (h *Handler) createMap(c *gin.Context) {
	var body CreateMapBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	id, err := h.spaceSvc.CreateMap(c.Request.Context(),
		body.Name, body.Thumbnail, body.Dimensions, body.DefaultElements)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// @Summary		Create space
// @Description	Builds a space from a map template or empty dimensions.
// @Tags			Spaces
// @Param			body	body	CreateSpaceBody	true	"Space"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/space [post]
func (h *Handler) createSpace(c *gin.Context) {
	var body CreateSpaceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if body.MapID == "" && body.Dimensions == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "either mapId or dimensions is required"})
		return
	}
	id, err := h.spaceSvc.CreateSpace(c.Request.Context(),
		claimsFrom(c).UserID, body.Name, body.Dimensions, body.MapID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaceId": id})
}

// @Summary		List own spaces
// @Tags			Spaces
// @Success		200
// @Router			/space/all [get]
func (h *Handler) listSpaces(c *gin.Context) {
	spaces, err := h.spaceSvc.ListSpaces(c.Request.Context(), claimsFrom(c).UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"spaces": spaces})
}

// @Summary		Get space
// @Description	Returns dimensions plus every placed element.
// @Tags			Spaces
// @Param			spaceId	path	string	true	"Space ID"
// @Success		200	{object}	space.SpaceDTO
// @Failure		400	{object}	ErrorResponse
// @Router			/space/{spaceId} [get]
func (h *Handler) getSpace(c *gin.Context) {
	dto, err := h.spaceSvc.GetSpace(c.Request.Context(), c.Param("spaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		Delete space
// @Description	Owner-only; cached layout is invalidated.
// @Tags			Spaces
// @Param			spaceId	path	string	true	"Space ID"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/space/{spaceId} [delete]
func (h *Handler) deleteSpace(c *gin.Context) {
	err := h.spaceSvc.DeleteSpace(c.Request.Context(), claimsFrom(c).UserID, c.Param("spaceId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// @Summary		Place element in space
// @Tags			Spaces
// @Param			body	body	AddElementBody	true	"Placement"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/space/element [post]
func (h *Handler) addElement(c *gin.Context) {
	var body AddElementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.spaceSvc.AddElement(c.Request.Context(), body.SpaceID, body.ElementID, body.X, body.Y)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, space.ErrOutOfBounds) && !errors.Is(err, space.ErrSpaceNotFound) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// @Summary		Remove element from space
// @Tags			Spaces
// @Param			body	body	RemoveElementBody	true	"Placement"
// @Success		200
// @Failure		400	{object}	ErrorResponse
// @Router			/space/element [delete]
func (h *Handler) removeElement(c *gin.Context) {
	var body RemoveElementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	err := h.spaceSvc.RemoveElement(c.Request.Context(), body.SpaceID, body.ElementID)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusOK)
}
