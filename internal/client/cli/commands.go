package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/talentdir/internal/client/client"
	"github.com/dmitrijs2005/talentdir/internal/client/models"
	"github.com/dmitrijs2005/talentdir/internal/client/services"
)

var errNoProfileOpen = errors.New("no profile is open, use 'view <id>' first")

func (a *App) Register(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	defer wipe(password)
	confirm, err := GetPassword("Repeat password", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	defer wipe(confirm)

	nama, err := GetSimpleText(a.reader, "Full name (optional)", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	nim, err := GetSimpleText(a.reader, "Student number (optional)", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	prodi, err := GetSimpleText(a.reader, "Study programme (optional)", a.out)
	if err != nil {
		return a.fail(ctx, "register", err)
	}

	err = a.auth.Register(ctx, models.RegisterRequest{
		Username:  username,
		Email:     email,
		Password:  string(password),
		Password2: string(confirm),
		Nama:      nama,
		NIM:       nim,
		Prodi:     prodi,
	})
	if err != nil {
		return a.fail(ctx, "register", err)
	}
	a.printf("Registration successful, you can log in now\n")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter user name", a.out)
	if err != nil {
		return a.fail(ctx, "login", err)
	}
	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		return a.fail(ctx, "login", err)
	}
	defer wipe(password)

	res, err := a.auth.Login(ctx, username, string(password))
	if err != nil {
		return a.fail(ctx, "login", err)
	}
	a.loginPending.Store(false)

	role := "user"
	if res.IsAdmin {
		role = "admin"
	}
	a.printf("Logged in as %s (%s)\n", res.User.Username, role)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.closeView()
	a.auth.Logout(ctx)
	a.loginPending.Store(false)
	a.printf("Logged out\n")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	id, ok := a.auth.Current(ctx)
	if !ok || !a.isLoggedIn() {
		a.printf("Not logged in\n")
		return nil
	}
	a.printf("%s <%s> (id %d)\n", id.User.Username, id.User.Email, id.User.ID)
	switch {
	case id.AccessExpiresAt.IsZero():
	case id.Expired(time.Now()):
		a.printf("Access token expired at %s, it will be refreshed on the next request\n",
			id.AccessExpiresAt.Local().Format(time.RFC1123))
	default:
		a.printf("Access token valid until %s\n", id.AccessExpiresAt.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *App) List(ctx context.Context, search string) error {
	items, err := a.profiles.List(ctx, search)
	if err != nil {
		return a.fail(ctx, "list", err)
	}
	if len(items) == 0 {
		a.printf("No profiles found\n")
		return nil
	}
	for _, p := range items {
		a.printf("%6d  %-30s %-12s %-24s %d views\n", p.ID, p.Nama, p.NIM, p.Prodi, p.ViewsCount)
	}
	return nil
}

func (a *App) Mine(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.printf("Log in first\n")
		return nil
	}
	p, err := a.profiles.Mine(ctx)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return a.fail(ctx, "mine", err)
	}
	if !p.Exists() {
		a.printf("You have no profile yet, use 'edit'\n")
		return nil
	}
	a.printProfile(p, 0)
	return nil
}

// Edit creates or updates the caller's profile. Each prompt shows the current
// value; an empty answer keeps it.
func (a *App) Edit(ctx context.Context) error {
	if !a.isLoggedIn() {
		a.printf("Log in first\n")
		return nil
	}
	cur, err := a.profiles.Mine(ctx)
	if err != nil && !errors.Is(err, client.ErrNotFound) {
		return a.fail(ctx, "edit", err)
	}
	if !cur.Exists() {
		cur = nil
	}
	var base models.Profile
	if cur != nil {
		base = *cur
	}

	var upd models.ProfileUpdate
	for _, f := range []struct {
		label string
		cur   string
		dst   *string
	}{
		{"Name", base.Nama, &upd.Nama},
		{"Student number", base.NIM, &upd.NIM},
		{"Study programme", base.Prodi, &upd.Prodi},
		{"Email", base.Email, &upd.Email},
		{"Bio", base.Bio, &upd.Bio},
		{"LinkedIn", base.LinkedIn, &upd.LinkedIn},
		{"GitHub", base.GitHub, &upd.GitHub},
	} {
		prompt := f.label
		if f.cur != "" {
			prompt += " [" + f.cur + "]"
		}
		v, err := GetSimpleText(a.reader, prompt, a.out)
		if err != nil {
			return a.fail(ctx, "edit", err)
		}
		*f.dst = v
	}
	skills, err := GetSimpleText(a.reader, "Skills to add (comma separated)", a.out)
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	if skills != "" {
		upd.Skills = strings.Split(skills, ",")
	}

	p, err := a.profiles.Save(ctx, upd.Changes(cur))
	if err != nil {
		return a.fail(ctx, "edit", err)
	}
	if cur == nil {
		a.printf("Profile created\n")
	} else {
		a.printf("Profile updated\n")
	}
	a.printProfile(p, 0)
	return nil
}

func (a *App) View(ctx context.Context, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return a.fail(ctx, "view", err)
	}
	v, err := a.profiles.Open(ctx, id)
	if err != nil {
		return a.fail(ctx, "view", err)
	}
	a.setView(v)
	a.printProfile(v.Snapshot(), 0)
	return nil
}

func (a *App) Endorse(ctx context.Context, arg string) error {
	return a.endorsement(ctx, arg, (*services.ProfileView).Endorse)
}

func (a *App) Unendorse(ctx context.Context, arg string) error {
	return a.endorsement(ctx, arg, (*services.ProfileView).RemoveEndorsement)
}

func (a *App) endorsement(ctx context.Context, arg string,
	action func(*services.ProfileView, context.Context, int64) services.Outcome) error {

	v := a.currentView()
	if v == nil {
		return a.fail(ctx, "endorse", errNoProfileOpen)
	}
	skillID, err := parseID(arg)
	if err != nil {
		return a.fail(ctx, "endorse", err)
	}
	if _, ok := v.Snapshot().Skill(skillID); !ok {
		return a.fail(ctx, "endorse", fmt.Errorf("profile %d has no skill %d", v.ProfileID(), skillID))
	}

	outcome := action(v, ctx, skillID)
	a.log.Debug(ctx, "endorsement finished", "skill_id", skillID, "outcome", outcome.String())

	switch outcome {
	case services.OutcomeEndorsed:
		a.printf("Skill endorsed\n")
	case services.OutcomeRemoved:
		a.printf("Endorsement removed\n")
	case services.OutcomeIgnored:
		a.printf("Another endorsement is still in progress\n")
	}
	if !v.Closed() {
		a.printSkills(v.Snapshot(), skillID)
	}
	return nil
}

// Reload refetches the open profile without counting a view.
func (a *App) Reload(ctx context.Context) error {
	v := a.currentView()
	if v == nil {
		return a.fail(ctx, "reload", errNoProfileOpen)
	}
	if err := v.Reload(ctx); err != nil {
		return a.fail(ctx, "reload", err)
	}
	a.printProfile(v.Snapshot(), 0)
	return nil
}

func (a *App) Back(context.Context) error {
	a.closeView()
	return nil
}

// fail reports err to the user and returns it. Messages carried by the backend
// or by a UserError are shown as is.
func (a *App) fail(ctx context.Context, op string, err error) error {
	a.log.Debug(ctx, "command failed", "command", op, "error", err)

	var ue *services.UserError
	switch {
	case errors.As(err, &ue):
		a.printf("%s\n", ue.Msg)
	case errors.Is(err, client.ErrSessionExpired):
		// RedirectToLogin already told the user
	case client.IsTransport(err):
		a.printf("Server unavailable, try again later\n")
	default:
		a.printf("Error: %s\n", client.Message(err))
	}
	return err
}

func (a *App) printProfile(p *models.Profile, highlight int64) {
	if p == nil {
		return
	}
	a.printf("#%d %s (%s)\n", p.ID, p.Nama, p.NIM)
	if p.Prodi != "" {
		a.printf("  Programme: %s\n", p.Prodi)
	}
	if p.Email != "" {
		a.printf("  Email:     %s\n", p.Email)
	}
	for _, link := range []struct{ name, url string }{{"LinkedIn", p.LinkedIn}, {"GitHub", p.GitHub}} {
		if link.url != "" {
			a.printf("  %-9s  %s\n", link.name+":", link.url)
		}
	}
	if p.Bio != "" {
		a.printf("  %s\n", p.Bio)
	}
	a.printf("  Views: %d\n", p.ViewsCount)
	a.printSkills(p, highlight)
}

func (a *App) printSkills(p *models.Profile, highlight int64) {
	if len(p.Skills) == 0 {
		a.printf("  No skills listed\n")
		return
	}
	a.printf("  Skills:\n")
	for _, s := range p.Skills {
		mark := " "
		if s.UserHasEndorsed {
			mark = "*"
		}
		line := fmt.Sprintf("  %s [%d] %s", mark, s.ID, s.Nama)
		if s.Level != "" {
			line += " (" + s.Level + ")"
		}
		line += fmt.Sprintf(": %d endorsements", s.EndorsementCount)
		if s.ID == highlight {
			line += " <"
		}
		a.printf("%s\n", line)
	}
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("an id is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
