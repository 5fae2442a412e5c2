package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/common"
)

// HTTPClient implements Client over the authenticated Pipeline.
type HTTPClient struct {
	pipe *Pipeline
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(pipe *Pipeline) *HTTPClient {
	return &HTTPClient{pipe: pipe}
}

func (c *HTTPClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: common.LoginPath, Body: req, Anonymous: true}, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) Register(ctx context.Context, req models.RegisterRequest) error {
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: common.RegisterPath, Body: req, Anonymous: true}, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (c *HTTPClient) AdminCheck(ctx context.Context) (*models.AdminCheck, error) {
	var out models.AdminCheck
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: common.AdminCheckPath}, &out); err != nil {
		return nil, fmt.Errorf("admin check: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) ListProfiles(ctx context.Context, search string) ([]models.ProfileSummary, error) {
	req := Request{Method: http.MethodGet, Path: common.ProfilesPath}
	if s := strings.TrimSpace(search); s != "" {
		req.Query = url.Values{"search": []string{s}}
	}
	var page models.ProfilePage
	if err := c.call(ctx, req, &page); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return page.Results, nil
}

func (c *HTTPClient) MyProfile(ctx context.Context) (*models.Profile, error) {
	var out models.Profile
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: common.MyProfilePath}, &out); err != nil {
		return nil, fmt.Errorf("my profile: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	var out models.Profile
	path := fmt.Sprintf(common.ProfileDetailPathF, id)
	if err := c.call(ctx, Request{Method: http.MethodGet, Path: path}, &out); err != nil {
		return nil, fmt.Errorf("get profile %d: %w", id, err)
	}
	return &out, nil
}

func (c *HTTPClient) TrackView(ctx context.Context, id int64) (*models.ViewResult, error) {
	var out models.ViewResult
	path := fmt.Sprintf(common.ProfileViewPathF, id)
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: path}, &out); err != nil {
		return nil, fmt.Errorf("track view %d: %w", id, err)
	}
	return &out, nil
}

// SaveProfile creates or updates the caller's own profile.
func (c *HTTPClient) SaveProfile(ctx context.Context, upd models.ProfileUpdate) error {
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: common.ProfilesPath, Body: upd}, nil); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (c *HTTPClient) EndorseSkill(ctx context.Context, skillID int64) error {
	path := fmt.Sprintf(common.SkillEndorsePathF, skillID)
	if err := c.call(ctx, Request{Method: http.MethodPost, Path: path}, nil); err != nil {
		return fmt.Errorf("endorse skill %d: %w", skillID, err)
	}
	return nil
}

func (c *HTTPClient) RemoveEndorsement(ctx context.Context, skillID int64) error {
	path := fmt.Sprintf(common.SkillEndorsePathF, skillID)
	if err := c.call(ctx, Request{Method: http.MethodDelete, Path: path}, nil); err != nil {
		return fmt.Errorf("remove endorsement %d: %w", skillID, err)
	}
	return nil
}

func (c *HTTPClient) call(ctx context.Context, req Request, out any) error {
	resp, err := c.pipe.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}
