package services

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
)

// fakeClient implements client.Client for service tests.
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	LoginResp *models.LoginResponse
	LoginErr  error
	LastLogin models.LoginRequest

	RegisterErr  error
	LastRegister models.RegisterRequest

	Admin    *models.AdminCheck
	AdminErr error

	Summaries  []models.ProfileSummary
	LastSearch string
	Mine       *models.Profile

	SaveErr  error
	LastSave models.ProfileUpdate
	// SavedAs replaces Mine after a successful save.
	SavedAs *models.Profile

	// Server is the authoritative profile returned by GetProfile.
	Server *models.Profile
	GetErr error

	TrackResult *models.ViewResult
	TrackErr    error

	EndorseFn func(ctx context.Context, skillID int64) error
	RemoveFn  func(ctx context.Context, skillID int64) error
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[name]++
}

func (f *fakeClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) setServer(p *models.Profile) {
	f.mu.Lock()
	f.Server = p
	f.mu.Unlock()
}

func (f *fakeClient) setGetErr(err error) {
	f.mu.Lock()
	f.GetErr = err
	f.mu.Unlock()
}

func (f *fakeClient) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	f.count("Login")
	f.LastLogin = req
	if f.LoginErr != nil {
		return nil, f.LoginErr
	}
	return f.LoginResp, nil
}

func (f *fakeClient) Register(_ context.Context, req models.RegisterRequest) error {
	f.count("Register")
	f.LastRegister = req
	return f.RegisterErr
}

func (f *fakeClient) AdminCheck(context.Context) (*models.AdminCheck, error) {
	f.count("AdminCheck")
	if f.AdminErr != nil {
		return nil, f.AdminErr
	}
	if f.Admin == nil {
		return &models.AdminCheck{}, nil
	}
	return f.Admin, nil
}

func (f *fakeClient) ListProfiles(_ context.Context, search string) ([]models.ProfileSummary, error) {
	f.count("ListProfiles")
	f.LastSearch = search
	return f.Summaries, nil
}

func (f *fakeClient) MyProfile(context.Context) (*models.Profile, error) {
	f.count("MyProfile")
	if f.Mine == nil {
		return nil, &client.HTTPError{StatusCode: 404}
	}
	return f.Mine.Clone(), nil
}

func (f *fakeClient) SaveProfile(_ context.Context, upd models.ProfileUpdate) error {
	f.count("SaveProfile")
	f.LastSave = upd
	if f.SaveErr != nil {
		return f.SaveErr
	}
	if f.SavedAs != nil {
		f.Mine = f.SavedAs
	}
	return nil
}

func (f *fakeClient) GetProfile(_ context.Context, _ int64) (*models.Profile, error) {
	f.count("GetProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return f.Server.Clone(), nil
}

func (f *fakeClient) TrackView(context.Context, int64) (*models.ViewResult, error) {
	f.count("TrackView")
	if f.TrackErr != nil {
		return nil, f.TrackErr
	}
	if f.TrackResult == nil {
		return &models.ViewResult{}, nil
	}
	return f.TrackResult, nil
}

func (f *fakeClient) EndorseSkill(ctx context.Context, skillID int64) error {
	f.count("EndorseSkill")
	if f.EndorseFn == nil {
		return nil
	}
	return f.EndorseFn(ctx, skillID)
}

func (f *fakeClient) RemoveEndorsement(ctx context.Context, skillID int64) error {
	f.count("RemoveEndorsement")
	if f.RemoveFn == nil {
		return nil
	}
	return f.RemoveFn(ctx, skillID)
}

// fakePrompter answers every confirmation with Answer and records messages.
type fakePrompter struct {
	Answer bool
	// OnConfirm runs while a confirmation is open.
	OnConfirm func()

	mu        sync.Mutex
	confirmed []string
	notified  []string
}

func (p *fakePrompter) Confirm(_ context.Context, msg string) bool {
	if p.OnConfirm != nil {
		p.OnConfirm()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, msg)
	return p.Answer
}

func (p *fakePrompter) Notify(_ context.Context, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notified = append(p.notified, msg)
}

func (p *fakePrompter) Confirmed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.confirmed...)
}

func (p *fakePrompter) Notified() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.notified...)
}

type fakeNav struct{ n atomic.Int32 }

func (f *fakeNav) RedirectToLogin(context.Context) { f.n.Add(1) }

func sampleProfile() *models.Profile {
	return &models.Profile{
		ID:         7,
		Nama:       "Ayu Lestari",
		NIM:        "2101001",
		Prodi:      "Informatika",
		ViewsCount: 10,
		Skills: []models.Skill{
			{ID: 1, Nama: "Go", EndorsementCount: 2},
			{ID: 2, Nama: "SQL", EndorsementCount: 4},
		},
	}
}
