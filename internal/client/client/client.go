package client

import (
	"context"

	"github.com/dmitrijs2005/talentdir/internal/client/models"
)

// Client is the typed contract of the directory backend used by services.
type Client interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) error
	AdminCheck(ctx context.Context) (*models.AdminCheck, error)

	ListProfiles(ctx context.Context, search string) ([]models.ProfileSummary, error)
	MyProfile(ctx context.Context) (*models.Profile, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	TrackView(ctx context.Context, id int64) (*models.ViewResult, error)
	SaveProfile(ctx context.Context, upd models.ProfileUpdate) error

	EndorseSkill(ctx context.Context, skillID int64) error
	RemoveEndorsement(ctx context.Context, skillID int64) error
}
