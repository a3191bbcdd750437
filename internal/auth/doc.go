// Package auth manages the user directory and identifies the acting user on
// HTTP requests.
//
// # Directory
//
// Directory registers citizens and leaders, checks passwords at login and
// applies profile edits. Passwords are hashed with bcrypt. Emails are unique,
// compared case-insensitively. A corrupt user collection is treated as empty.
//
//	dir := auth.NewDirectory(st, logger)
//	user, err := dir.Register(ctx, auth.Registration{...})
//
// # Acting User
//
// There are no sessions. Clients send the acting user's id in the X-User-ID
// header, and RequireUser resolves it through the directory:
//
//	mux.Handle("/api/", auth.RequireUser(dir, logger)(apiHandler))
//
// Handlers read the user with FromContext or MustFromContext.
package auth
