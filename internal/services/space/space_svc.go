package space

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cell is a single grid coordinate inside a space.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Layout is the static geometry of a space: its dimensions plus every
// cell occupied by a static element. It never changes while a session
// room for the space is alive.
type Layout struct {
	Width   int
	Height  int
	Blocked map[Cell]struct{}
}

// IsBlocked reports whether a static element occupies the cell.
func (l *Layout) IsBlocked(c Cell) bool {
	_, ok := l.Blocked[c]
	return ok
}

// InBounds reports whether the cell lies within [0,Width) x [0,Height).
func (l *Layout) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < l.Width && c.Y >= 0 && c.Y < l.Height
}

type AvatarDTO struct {
	ID       string `json:"avatarId"`
	ImageURL string `json:"imageUrl"`
	Name     string `json:"name"`
}

// UserAvatarDTO pairs a user with its avatar image; ImageURL is empty
// for users that never picked one.
type UserAvatarDTO struct {
	UserID   string `json:"userId"`
	ImageURL string `json:"imageUrl"`
}

type ElementDTO struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Static   bool   `json:"static"`
}

// PlacedElementDTO is an element instance positioned inside a space.
type PlacedElementDTO struct {
	ID        string `json:"id"`
	ElementID string `json:"elementId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

type SpaceDTO struct {
	ID         string             `json:"spaceId"`
	Name       string             `json:"name"`
	Dimensions string             `json:"dimensions" example:"100x200"`
	Elements   []PlacedElementDTO `json:"elements"`
}

type SpaceSummaryDTO struct {
	ID         string `json:"spaceId"`
	Name       string `json:"name"`
	Dimensions string `json:"dimensions"`
}

// MapElementPlacement positions a catalog element inside a map template.
type MapElementPlacement struct {
	ElementID string `json:"elementId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
}

const (
	redisLayoutKeyPrefix = "layout:"
	layoutCacheTTL       = 10 * time.Minute
)

var (
	ErrSpaceNotFound   = errors.New("space not found")
	ErrMapNotFound     = errors.New("map not found")
	ErrElementNotFound = errors.New("element not found")
	ErrAvatarNotFound  = errors.New("avatar not found")
	ErrNotOwner        = errors.New("space owned by another user")
	ErrOutOfBounds     = errors.New("element lies outside the space dimensions")
	ErrBadDimensions   = errors.New(`dimensions must look like "100x200"`)
)

type ISpaceService interface {
	CreateAvatar(ctx context.Context, imageURL, name string) (string, error)
	ListAvatars(ctx context.Context) ([]AvatarDTO, error)
	SetUserAvatar(ctx context.Context, userID, avatarID string) error
	GetUsersAvatars(ctx context.Context, userIDs []string) ([]UserAvatarDTO, error)

	CreateElement(ctx context.Context, imageURL string, width, height int, static bool) (string, error)
	CreateMap(ctx context.Context, name, thumbnail, dimensions string, defaults []MapElementPlacement) (string, error)

	CreateSpace(ctx context.Context, ownerID, name, dimensions, mapID string) (string, error)
	DeleteSpace(ctx context.Context, ownerID, spaceID string) error
	ListSpaces(ctx context.Context, ownerID string) ([]SpaceSummaryDTO, error)
	GetSpace(ctx context.Context, spaceID string) (*SpaceDTO, error)
	AddElement(ctx context.Context, spaceID, elementID string, x, y int) error
	RemoveElement(ctx context.Context, spaceID, placedID string) error

	// GetSpaceLayout is the room-directory contract consumed by the
	// session engine: dimensions plus the flattened blocked-cell set.
	GetSpaceLayout(ctx context.Context, spaceID string) (*Layout, error)
}

type spaceService struct {
	rdc *redis.Client
	db  *sql.DB
}

func NewSpaceService(rdc *redis.Client, db *sql.DB) ISpaceService {
	return &spaceService{rdc: rdc, db: db}
}

// ──────────────────────────── avatars ────────────────────────────────────────

func (svc *spaceService) CreateAvatar(ctx context.Context, imageURL, name string) (string, error) {
	id := uuid.NewString()
	_, err := svc.db.ExecContext(ctx,
		`INSERT INTO avatars (id, image_url, name) VALUES ($1, $2, $3)`,
		id, imageURL, name)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (svc *spaceService) ListAvatars(ctx context.Context) ([]AvatarDTO, error) {
	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, image_url, name FROM avatars ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]AvatarDTO, 0, 16)
	for rows.Next() {
		var a AvatarDTO
		if err := rows.Scan(&a.ID, &a.ImageURL, &a.Name); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

func (svc *spaceService) SetUserAvatar(ctx context.Context, userID, avatarID string) error {
	var exists bool
	err := svc.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM avatars WHERE id = $1)`, avatarID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAvatarNotFound
	}
	_, err = svc.db.ExecContext(ctx,
		`UPDATE users SET avatar_id = $1 WHERE id = $2`, avatarID, userID)
	return err
}

// GetUsersAvatars resolves the avatar image for each of the given user
// ids. Unknown ids are simply absent from the result.
func (svc *spaceService) GetUsersAvatars(ctx context.Context, userIDs []string) ([]UserAvatarDTO, error) {
	list := make([]UserAvatarDTO, 0, len(userIDs))
	if len(userIDs) == 0 {
		return list, nil
	}

	placeholders := make([]string, len(userIDs))
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT u.id, COALESCE(a.image_url, '')
		   FROM users u
		   LEFT JOIN avatars a ON a.id = u.avatar_id
		  WHERE u.id IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ua UserAvatarDTO
		if err := rows.Scan(&ua.UserID, &ua.ImageURL); err != nil {
			return nil, err
		}
		list = append(list, ua)
	}
	return list, rows.Err()
}

// ──────────────────────────── catalog ────────────────────────────────────────

func (svc *spaceService) CreateElement(ctx context.Context, imageURL string, width, height int, static bool) (string, error) {
	id := uuid.NewString()
	_, err := svc.db.ExecContext(ctx,
		`INSERT INTO elements (id, image_url, width, height, static)
		      VALUES ($1, $2, $3, $4, $5)`,
		id, imageURL, width, height, static)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (svc *spaceService) CreateMap(ctx context.Context, name, thumbnail, dimensions string, defaults []MapElementPlacement) (string, error) {
	width, height, err := parseDimensions(dimensions)
	if err != nil {
		return "", err
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO maps (id, name, thumbnail, width, height)
		      VALUES ($1, $2, $3, $4, $5)`,
		id, name, thumbnail, width, height)
	if err != nil {
		return "", err
	}
	for _, d := range defaults {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO map_elements (id, map_id, element_id, x, y)
			      VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), id, d.ElementID, d.X, d.Y)
		if err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

// ──────────────────────────── spaces ─────────────────────────────────────────

// CreateSpace builds a space either from a map template (copying its
// default elements) or empty from explicit dimensions.
func (svc *spaceService) CreateSpace(ctx context.Context, ownerID, name, dimensions, mapID string) (string, error) {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	var width, height int

	if mapID != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT width, height FROM maps WHERE id = $1`, mapID).
			Scan(&width, &height)
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMapNotFound
		}
		if err != nil {
			return "", err
		}
	} else {
		if width, height, err = parseDimensions(dimensions); err != nil {
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO spaces (id, owner_id, name, width, height)
		      VALUES ($1, $2, $3, $4, $5)`,
		id, ownerID, name, width, height)
	if err != nil {
		return "", err
	}

	if mapID != "" {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO space_elements (id, space_id, element_id, x, y)
			      SELECT gen_random_uuid(), $1, element_id, x, y
			        FROM map_elements WHERE map_id = $2`,
			id, mapID)
		if err != nil {
			return "", err
		}
	}
	return id, tx.Commit()
}

func (svc *spaceService) DeleteSpace(ctx context.Context, ownerID, spaceID string) error {
	var owner string
	err := svc.db.QueryRowContext(ctx,
		`SELECT owner_id FROM spaces WHERE id = $1`, spaceID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSpaceNotFound
	}
	if err != nil {
		return err
	}
	if owner != ownerID {
		return ErrNotOwner
	}

	// space_elements rows go away via ON DELETE CASCADE
	if _, err = svc.db.ExecContext(ctx,
		`DELETE FROM spaces WHERE id = $1`, spaceID); err != nil {
		return err
	}
	svc.invalidateLayout(ctx, spaceID)
	return nil
}

func (svc *spaceService) ListSpaces(ctx context.Context, ownerID string) ([]SpaceSummaryDTO, error) {
	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, name, width, height FROM spaces WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]SpaceSummaryDTO, 0, 8)
	for rows.Next() {
		var s SpaceSummaryDTO
		var w, h int
		if err := rows.Scan(&s.ID, &s.Name, &w, &h); err != nil {
			return nil, err
		}
		s.Dimensions = formatDimensions(w, h)
		list = append(list, s)
	}
	return list, rows.Err()
}

func (svc *spaceService) GetSpace(ctx context.Context, spaceID string) (*SpaceDTO, error) {
	dto := &SpaceDTO{ID: spaceID}
	var w, h int
	err := svc.db.QueryRowContext(ctx,
		`SELECT name, width, height FROM spaces WHERE id = $1`, spaceID).
		Scan(&dto.Name, &w, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSpaceNotFound
	}
	if err != nil {
		return nil, err
	}
	dto.Dimensions = formatDimensions(w, h)

	rows, err := svc.db.QueryContext(ctx,
		`SELECT id, element_id, x, y FROM space_elements WHERE space_id = $1`, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dto.Elements = make([]PlacedElementDTO, 0, 16)
	for rows.Next() {
		var e PlacedElementDTO
		if err := rows.Scan(&e.ID, &e.ElementID, &e.X, &e.Y); err != nil {
			return nil, err
		}
		dto.Elements = append(dto.Elements, e)
	}
	return dto, rows.Err()
}

func (svc *spaceService) AddElement(ctx context.Context, spaceID, elementID string, x, y int) error {
	var w, h int
	err := svc.db.QueryRowContext(ctx,
		`SELECT width, height FROM spaces WHERE id = $1`, spaceID).Scan(&w, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSpaceNotFound
	}
	if err != nil {
		return err
	}
	if x < 0 || x >= w || y < 0 || y >= h {
		return ErrOutOfBounds
	}

	_, err = svc.db.ExecContext(ctx,
		`INSERT INTO space_elements (id, space_id, element_id, x, y)
		      VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), spaceID, elementID, x, y)
	if err != nil {
		return err
	}
	svc.invalidateLayout(ctx, spaceID)
	return nil
}

func (svc *spaceService) RemoveElement(ctx context.Context, spaceID, placedID string) error {
	res, err := svc.db.ExecContext(ctx,
		`DELETE FROM space_elements WHERE id = $1 AND space_id = $2`,
		placedID, spaceID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrElementNotFound
	}
	svc.invalidateLayout(ctx, spaceID)
	return nil
}

// ──────────────────────────── room directory ─────────────────────────────────

// cachedLayout is the Redis representation of a Layout; the blocked set
// is stored as a list because JSON cannot key objects by struct.
type cachedLayout struct {
	Width   int    `json:"w"`
	Height  int    `json:"h"`
	Blocked []Cell `json:"blocked"`
}

// GetSpaceLayout resolves a space's geometry. Fast path is the Redis
// cache; on a miss the static elements are read from Postgres and their
// w×h footprints flattened into the blocked-cell set.
func (svc *spaceService) GetSpaceLayout(ctx context.Context, spaceID string) (*Layout, error) {
	key := redisLayoutKeyPrefix + spaceID
	if raw, err := svc.rdc.Get(ctx, key).Result(); err == nil {
		var cached cachedLayout
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached.toLayout(), nil
		}
		zap.L().Warn("space.layout_cache_corrupt", zap.String("space_id", spaceID))
	}

	var w, h int
	err := svc.db.QueryRowContext(ctx,
		`SELECT width, height FROM spaces WHERE id = $1`, spaceID).Scan(&w, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("space %s: %w", spaceID, ErrSpaceNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := svc.db.QueryContext(ctx,
		`SELECT se.x, se.y, e.width, e.height
		   FROM space_elements se
		   JOIN elements e ON e.id = se.element_id
		  WHERE se.space_id = $1 AND e.static`, spaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	layout := &Layout{Width: w, Height: h, Blocked: make(map[Cell]struct{})}
	for rows.Next() {
		var x, y, ew, eh int
		if err := rows.Scan(&x, &y, &ew, &eh); err != nil {
			return nil, err
		}
		for dy := 0; dy < eh; dy++ {
			for dx := 0; dx < ew; dx++ {
				c := Cell{X: x + dx, Y: y + dy}
				if layout.InBounds(c) {
					layout.Blocked[c] = struct{}{}
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if blob, err := json.Marshal(fromLayout(layout)); err == nil {
		if err := svc.rdc.Set(ctx, key, string(blob), layoutCacheTTL).Err(); err != nil {
			zap.L().Warn("space.layout_cache_set", zap.Error(err))
		}
	}
	return layout, nil
}

func (svc *spaceService) invalidateLayout(ctx context.Context, spaceID string) {
	if err := svc.rdc.Del(ctx, redisLayoutKeyPrefix+spaceID).Err(); err != nil {
		zap.L().Warn("space.layout_cache_del", zap.Error(err))
	}
}

func (c cachedLayout) toLayout() *Layout {
	l := &Layout{Width: c.Width, Height: c.Height, Blocked: make(map[Cell]struct{}, len(c.Blocked))}
	for _, cell := range c.Blocked {
		l.Blocked[cell] = struct{}{}
	}
	return l
}

func fromLayout(l *Layout) cachedLayout {
	c := cachedLayout{Width: l.Width, Height: l.Height, Blocked: make([]Cell, 0, len(l.Blocked))}
	for cell := range l.Blocked {
		c.Blocked = append(c.Blocked, cell)
	}
	return c
}

// helpers
func parseDimensions(s string) (int, int, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 {
		return 0, 0, ErrBadDimensions
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return 0, 0, ErrBadDimensions
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0, 0, ErrBadDimensions
	}
	return w, h, nil
}

func formatDimensions(w, h int) string {
	return strconv.Itoa(w) + "x" + strconv.Itoa(h)
}
