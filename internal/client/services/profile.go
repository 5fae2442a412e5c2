package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/logging"
	"github.com/google/uuid"
)

// ProfileService browses the directory and opens profile views.
type ProfileService interface {
	List(ctx context.Context, search string) ([]models.ProfileSummary, error)
	Mine(ctx context.Context) (*models.Profile, error)
	Open(ctx context.Context, id int64) (*ProfileView, error)
	Save(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error)
}

// Save flow messages.
const (
	MsgNothingToSave     = "Nothing to save."
	MsgValidationFailed  = "Validation failed:"
	MsgInvalidProfile    = "The profile data is not valid. Please check your input."
	MsgSaveServerError   = "The server failed to save the profile. Try again or contact an administrator."
	MsgProfileSaveFailed = "Could not save the profile. Please try again."
)

// ErrNothingToSave is returned by Save for an update that changes nothing.
var ErrNothingToSave = errors.New("nothing to save")

var fieldLabels = map[string]string{
	"nama":     "Name",
	"nim":      "Student number",
	"prodi":    "Study programme",
	"email":    "Email",
	"bio":      "Bio",
	"linkedin": "LinkedIn",
	"github":   "GitHub",
	"skills":   "Skills",
}

type profileService struct {
	client client.Client
	store  *identity.Store
	nav    client.Navigator
	prompt Prompter
	log    logging.Logger
}

func NewProfileService(c client.Client, store *identity.Store, nav client.Navigator, prompt Prompter, log logging.Logger) ProfileService {
	if log == nil {
		log = logging.Nop()
	}
	if prompt == nil {
		prompt = silentPrompter{}
	}
	if nav == nil {
		nav = client.NavigatorFunc(func(context.Context) {})
	}
	return &profileService{client: c, store: store, nav: nav, prompt: prompt, log: log}
}

func (s *profileService) List(ctx context.Context, search string) ([]models.ProfileSummary, error) {
	return s.client.ListProfiles(ctx, search)
}

func (s *profileService) Mine(ctx context.Context) (*models.Profile, error) {
	return s.client.MyProfile(ctx)
}

// Save creates or updates the caller's profile and returns it as stored.
// Failures are *UserError values. When the save succeeded but the reload did
// not, the profile is nil and the error is nil.
func (s *profileService) Save(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	if upd.IsEmpty() {
		return nil, &UserError{Msg: MsgNothingToSave, Err: ErrNothingToSave}
	}

	if err := s.client.SaveProfile(ctx, upd); err != nil {
		msg := saveErrorMessage(err)
		s.log.Warn(ctx, "profile save failed", "status", client.StatusCode(err), "message", msg)
		return nil, &UserError{Msg: msg, Err: err}
	}
	s.log.Info(ctx, "profile saved")

	p, err := s.client.MyProfile(ctx)
	if err != nil {
		s.log.Warn(ctx, "reload after save failed", "error", err)
		return nil, nil
	}
	return p, nil
}

// saveErrorMessage explains a failed save: the backend's own message, else
// its field errors one per line, else a generic text for the status.
func saveErrorMessage(err error) string {
	var he *client.HTTPError
	if !errors.As(err, &he) {
		return MsgProfileSaveFailed
	}
	switch {
	case he.StatusCode == http.StatusBadRequest:
		if fe := client.FieldErrors(he.Body); len(fe) > 0 {
			lines := make([]string, 0, len(fe)+1)
			lines = append(lines, MsgValidationFailed)
			for _, f := range fe {
				if f.Field == "" {
					lines = append(lines, "  - "+f.Message)
					continue
				}
				label, ok := fieldLabels[f.Field]
				if !ok {
					label = f.Field
				}
				lines = append(lines, "  - "+label+": "+f.Message)
			}
			return strings.Join(lines, "\n")
		}
		if he.Message != "" {
			return MsgValidationFailed + " " + he.Message
		}
		return MsgInvalidProfile
	case he.StatusCode >= http.StatusInternalServerError:
		return MsgSaveServerError
	}
	return serverMessageOr(err, MsgProfileSaveFailed)
}

// Open starts a new activation of profile id: it loads the detail and then
// counts one view. A failed load returns the error and counts nothing.
func (s *profileService) Open(ctx context.Context, id int64) (*ProfileView, error) {
	activation := uuid.NewString()
	log := s.log.With("activation", activation, "profile_id", id)

	p, err := s.client.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	state := &profileState{profile: p}
	v := &ProfileView{
		activation: activation,
		profileID:  id,
		client:     s.client,
		log:        log,
		state:      state,
		views:      NewViewTracker(s.client, log),
		endorse:    newEndorsementCoordinator(s.client, s.store, s.nav, s.prompt, log, id, state),
	}
	v.trackView(ctx)
	return v, nil
}

// ProfileView is one activation of a profile detail. Its state lives until
// Close; responses arriving afterwards are ignored.
type ProfileView struct {
	activation string
	profileID  int64
	client     client.Client
	log        logging.Logger

	state   *profileState
	views   *ViewTracker
	endorse *EndorsementCoordinator
}

func (v *ProfileView) ActivationID() string { return v.activation }
func (v *ProfileView) ProfileID() int64     { return v.profileID }

// Snapshot returns a copy of the profile as currently displayed.
func (v *ProfileView) Snapshot() *models.Profile {
	return v.state.snapshot()
}

func (v *ProfileView) Endorse(ctx context.Context, skillID int64) Outcome {
	return v.endorse.Endorse(ctx, skillID)
}

func (v *ProfileView) RemoveEndorsement(ctx context.Context, skillID int64) Outcome {
	return v.endorse.RemoveEndorsement(ctx, skillID)
}

// Endorsing returns the skill whose endorsement is in flight, if any.
func (v *ProfileView) Endorsing() (int64, bool) {
	return v.endorse.Endorsing()
}

// ViewTracked reports whether this activation already counted its view.
func (v *ProfileView) ViewTracked() bool {
	return v.views.Tracked()
}

// Reload refetches the profile. It does not count another view.
func (v *ProfileView) Reload(ctx context.Context) error {
	p, err := v.client.GetProfile(ctx, v.profileID)
	if err != nil {
		return fmt.Errorf("reload profile: %w", err)
	}
	v.state.replace(p)
	return nil
}

// Close ends the activation.
func (v *ProfileView) Close() {
	v.state.close()
}

func (v *ProfileView) Closed() bool {
	return v.state.isClosed()
}

func (v *ProfileView) trackView(ctx context.Context) {
	res := v.views.TrackOnce(ctx, v.profileID)
	if res == nil || !res.Counted {
		return
	}
	v.state.update(func(p *models.Profile) *models.Profile {
		c := p.Clone()
		c.ViewsCount = res.TotalViews
		return c
	})
}
