package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/identity"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/logging"
)

// Outcome is the result of one endorsement action as seen by the user.
type Outcome int

const (
	OutcomeEndorsed Outcome = iota
	OutcomeRemoved
	OutcomeIgnored
	OutcomeLoginRequired
	OutcomeOwnSkill
	OutcomeAlreadyEndorsed
	OutcomeRejected
	OutcomeSessionExpired
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeEndorsed:        "endorsed",
	OutcomeRemoved:         "removed",
	OutcomeIgnored:         "ignored",
	OutcomeLoginRequired:   "login required",
	OutcomeOwnSkill:        "own skill",
	OutcomeAlreadyEndorsed: "already endorsed",
	OutcomeRejected:        "rejected",
	OutcomeSessionExpired:  "session expired",
	OutcomeFailed:          "failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// User-facing messages.
const (
	MsgLoginRequired   = "You need to log in before endorsing a skill. Go to the login page?"
	MsgOwnSkill        = "You cannot endorse your own skill."
	MsgAlreadyEndorsed = "You have already endorsed this skill."
	MsgSessionExpired  = "Your session has expired. Log in again?"
	MsgEndorseFailed   = "Could not endorse the skill. Please try again."
	MsgUnendorseFailed = "Could not remove the endorsement. Please try again."
)

// Backend free-text markers.
var (
	ownSkillMarkers        = []string{"own skill", "Cannot endorse your own"}
	alreadyEndorsedMarkers = []string{"Already endorsed"}
)

// EndorsementCoordinator runs optimistic endorsements for one profile
// activation: at most one in flight, visible immediately, reconciled by a
// refetch of the whole profile.
type EndorsementCoordinator struct {
	client    client.Client
	store     *identity.Store
	nav       client.Navigator
	prompt    Prompter
	log       logging.Logger
	profileID int64
	state     *profileState

	mu        sync.Mutex
	endorsing int64
	busy      bool
}

func newEndorsementCoordinator(c client.Client, store *identity.Store, nav client.Navigator, prompt Prompter,
	log logging.Logger, profileID int64, state *profileState) *EndorsementCoordinator {
	return &EndorsementCoordinator{
		client:    c,
		store:     store,
		nav:       nav,
		prompt:    prompt,
		log:       log,
		profileID: profileID,
		state:     state,
	}
}

// Endorsing returns the skill currently being submitted, if any. A call still
// waiting on the login check is not submitting anything yet.
func (e *EndorsementCoordinator) Endorsing() (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endorsing, e.endorsing != 0
}

// Endorse endorses skillID on behalf of the logged-in user.
func (e *EndorsementCoordinator) Endorse(ctx context.Context, skillID int64) Outcome {
	return e.run(ctx, skillID, +1, true, e.client.EndorseSkill, OutcomeEndorsed, MsgEndorseFailed)
}

// RemoveEndorsement withdraws the user's endorsement of skillID.
func (e *EndorsementCoordinator) RemoveEndorsement(ctx context.Context, skillID int64) Outcome {
	return e.run(ctx, skillID, -1, false, e.client.RemoveEndorsement, OutcomeRemoved, MsgUnendorseFailed)
}

func (e *EndorsementCoordinator) run(ctx context.Context, skillID int64, delta int, endorsed bool,
	submit func(context.Context, int64) error, ok Outcome, failMsg string) Outcome {

	if !e.begin() {
		e.log.Debug(ctx, "endorsement already in flight, ignoring", "skill_id", skillID)
		return OutcomeIgnored
	}
	defer e.end()

	if _, authed := e.store.Get(ctx, identity.AccessToken); !authed {
		if e.prompt.Confirm(ctx, MsgLoginRequired) {
			e.nav.RedirectToLogin(ctx)
		}
		return OutcomeLoginRequired
	}
	e.mark(skillID)

	e.state.update(func(p *models.Profile) *models.Profile {
		next, _ := p.WithEndorsement(skillID, delta, endorsed)
		return next
	})

	err := submit(ctx, skillID)

	// reconcile either way; on a failed refetch the optimistic guess stays
	e.refetch(ctx)

	if err == nil {
		return ok
	}
	outcome, msg := classifyEndorsementError(err, failMsg)
	e.report(ctx, skillID, outcome, msg, err)
	return outcome
}

// begin claims the coordinator. It reports false when a call is already running.
func (e *EndorsementCoordinator) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		return false
	}
	e.busy = true
	return true
}

func (e *EndorsementCoordinator) mark(skillID int64) {
	e.mu.Lock()
	e.endorsing = skillID
	e.mu.Unlock()
}

func (e *EndorsementCoordinator) end() {
	e.mu.Lock()
	e.busy = false
	e.endorsing = 0
	e.mu.Unlock()
}

func (e *EndorsementCoordinator) refetch(ctx context.Context) {
	p, err := e.client.GetProfile(ctx, e.profileID)
	if err != nil {
		e.log.Warn(ctx, "profile refetch failed", "profile_id", e.profileID, "error", err)
		return
	}
	if !e.state.replace(p) {
		e.log.Debug(ctx, "view closed, dropping refetched profile", "profile_id", e.profileID)
	}
}

func (e *EndorsementCoordinator) report(ctx context.Context, skillID int64, o Outcome, msg string, err error) {
	if e.state.isClosed() {
		return
	}
	switch o {
	case OutcomeSessionExpired:
		if e.prompt.Confirm(ctx, msg) {
			e.nav.RedirectToLogin(ctx)
		}
	case OutcomeFailed:
		e.log.Error(ctx, "unexpected endorsement error", "skill_id", skillID,
			"status", client.StatusCode(err), "error", err)
		e.prompt.Notify(ctx, msg)
	case OutcomeRejected:
		e.log.Warn(ctx, "endorsement rejected", "skill_id", skillID, "message", msg)
		e.prompt.Notify(ctx, msg)
	default:
		e.prompt.Notify(ctx, msg)
	}
}

// classifyEndorsementError maps a failed submission to an outcome and the
// message shown for it. The backend reports rule violations as free text, so
// the substring checks below are the contract.
func classifyEndorsementError(err error, fallback string) (Outcome, string) {
	status := client.StatusCode(err)
	switch {
	case status == http.StatusBadRequest:
		text := client.Message(err)
		switch {
		case containsAny(text, ownSkillMarkers):
			return OutcomeOwnSkill, MsgOwnSkill
		case containsAny(text, alreadyEndorsedMarkers):
			return OutcomeAlreadyEndorsed, MsgAlreadyEndorsed
		}
		return OutcomeRejected, text
	case status == http.StatusUnauthorized, errors.Is(err, client.ErrSessionExpired):
		return OutcomeSessionExpired, MsgSessionExpired
	}
	return OutcomeFailed, fallback
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
