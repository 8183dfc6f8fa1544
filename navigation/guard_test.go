package navigation_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

var (
	anonymous = sessions.Snapshot{}
	signedIn  = sessions.Snapshot{Token: "tok", User: &users.User{Username: "admin"}}
	tokenOnly = sessions.Snapshot{Token: "tok"}
)

func TestGuardRedirect(t *testing.T) {
	g := navigation.NewGuard()

	tests := []struct {
		name   string
		path   string
		snap   sessions.Snapshot
		target string
		ok     bool
	}{
		{"anonymous on protected page", "/posts", anonymous, "/login", true},
		{"anonymous on root", "/", anonymous, "/login", true},
		{"anonymous on login", "/login", anonymous, "", false},
		{"anonymous on register", "/register", anonymous, "", false},
		{"anonymous on login with query", "/login?next=/posts", anonymous, "", false},
		{"token without user is anonymous", "/dashboard", tokenOnly, "/login", true},
		{"signed in on login", "/login", signedIn, "/dashboard", true},
		{"signed in on root", "/", signedIn, "/dashboard", true},
		{"signed in on protected page", "/craw-data/", signedIn, "", false},
		{"signed in on register", "/register", signedIn, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, ok := g.Redirect(tt.path, tt.snap)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.target, target)
			require.Equal(t, !tt.ok, g.IsPathAllowed(tt.path, tt.snap))
		})
	}
}

func TestGuardCustomPaths(t *testing.T) {
	g := navigation.NewGuard(
		navigation.WithLoginPath("/signin/"),
		navigation.WithRegisterPath("signup"),
		navigation.WithLandingPath("/posts"),
	)

	require.True(t, g.IsPublic("/signin"))
	require.True(t, g.IsPublic("/signup"))
	require.False(t, g.IsPublic("/login"))

	target, ok := g.Redirect("/reports", anonymous)
	require.True(t, ok)
	require.Equal(t, "/signin", target)

	target, ok = g.Redirect("/signin", signedIn)
	require.True(t, ok)
	require.Equal(t, "/posts", target)
}

func TestClean(t *testing.T) {
	require.Equal(t, "/", navigation.Clean(""))
	require.Equal(t, "/posts", navigation.Clean("posts/"))
	require.Equal(t, "/users", navigation.Clean("/users#top"))
	require.Equal(t, "/a/c", navigation.Clean("/a/b/../c"))
}
