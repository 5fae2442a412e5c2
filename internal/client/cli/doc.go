// Package cli provides the interactive talent directory command-line client.
//
// It wires configuration, the local state database, the authenticated request
// pipeline and the services behind a small REPL. Anyone can browse profiles;
// a logged-in user can also endorse skills on them.
//
// Key features:
//   - Register / Login / Logout / WhoAmI
//   - List and search profiles, show your own profile
//   - View a profile (counts one view per activation), Reload, Back
//   - Endorse / Unendorse a skill on the open profile
//   - Stats: request pipeline counters for this run
//
// When the pipeline gives up on a session, App.RedirectToLogin closes the open
// profile and asks the user to log in again.
package cli
