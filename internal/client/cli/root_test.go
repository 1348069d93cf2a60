package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/client/client"
	"github.com/dmitrijs2005/fluma/internal/client/config"
	"github.com/dmitrijs2005/fluma/internal/client/services"
	"github.com/dmitrijs2005/fluma/internal/common"
)

type fakeService struct {
	signupUser, signupNick string
	signupPass             []byte
	signupErr              error

	loginUser string
	loginPass []byte
	loginErr  error

	reissueErr error
	logoutErr  error
	session    *services.Session
	pingErr    error

	tokens *api.TokenResponse
	calls  []string
}

func (f *fakeService) Signup(_ context.Context, user string, pass []byte, nick string) (*api.SignupResponse, error) {
	f.calls = append(f.calls, "signup")
	f.signupUser, f.signupNick, f.signupPass = user, nick, append([]byte(nil), pass...)
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return &api.SignupResponse{ID: "id-1", Username: user, Nickname: nick, Authority: "ROLE_USER"}, nil
}

func (f *fakeService) Login(_ context.Context, user string, pass []byte) (*api.TokenResponse, error) {
	f.calls = append(f.calls, "login")
	f.loginUser, f.loginPass = user, append([]byte(nil), pass...)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.tokens, nil
}

func (f *fakeService) Reissue(context.Context) (*api.TokenResponse, error) {
	f.calls = append(f.calls, "reissue")
	if f.reissueErr != nil {
		return nil, f.reissueErr
	}
	return f.tokens, nil
}

func (f *fakeService) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	return f.logoutErr
}

func (f *fakeService) Session(context.Context) (*services.Session, error) {
	f.calls = append(f.calls, "session")
	if f.session == nil {
		return nil, client.ErrNotLoggedIn
	}
	return f.session, nil
}

func (f *fakeService) Ping(context.Context) error {
	f.calls = append(f.calls, "ping")
	return f.pingErr
}

func (f *fakeService) Close(context.Context) error { return nil }

// harness runs the root command against f and records the config the
// factory was handed.
type harness struct {
	svc     *fakeService
	cfg     *config.Config
	cleaned bool
}

func newHarness() *harness {
	return &harness{svc: &fakeService{tokens: &api.TokenResponse{
		GrantType:            "Bearer",
		AccessToken:          "a1",
		RefreshToken:         "r1",
		AccessTokenExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}}}
}

func (h *harness) factory(_ context.Context, cfg *config.Config) (services.AuthService, func(), error) {
	h.cfg = cfg
	return h.svc, func() { h.cleaned = true }, nil
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(h.factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(_ io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func TestRoot_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"signup", "login", "reissue", "logout", "whoami", "ping"} {
		assert.Contains(t, names, want)
	}
}

func TestRoot_Help(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "reissue")
	assert.Contains(t, out.String(), "--addr")
}

func TestSignup(t *testing.T) {
	stubPassword(t, "1234")
	h := newHarness()

	out, err := h.run(t, "", "signup", "alice", "--nickname", "Al")
	require.NoError(t, err)

	assert.Equal(t, "alice", h.svc.signupUser)
	assert.Equal(t, "Al", h.svc.signupNick)
	assert.Equal(t, []byte("1234"), h.svc.signupPass)
	assert.Contains(t, out, "Signed up alice (ROLE_USER)")
	assert.True(t, h.cleaned)
}

func TestSignup_PromptsForUserName(t *testing.T) {
	stubPassword(t, "1234")
	h := newHarness()

	out, err := h.run(t, "bob\n", "signup")
	require.NoError(t, err)
	assert.Equal(t, "bob", h.svc.signupUser)
	assert.Contains(t, out, "Enter user name")
}

func TestSignup_Duplicate(t *testing.T) {
	stubPassword(t, "1234")
	h := newHarness()
	h.svc.signupErr = common.ErrDuplicateUser

	_, err := h.run(t, "", "signup", "alice")
	require.ErrorIs(t, err, common.ErrDuplicateUser)
}

func TestLogin(t *testing.T) {
	stubPassword(t, "1234")
	h := newHarness()

	out, err := h.run(t, "", "login", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", h.svc.loginUser)
	assert.Contains(t, out, "Logged in as alice")
	assert.Contains(t, out, "Access token expires at")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	stubPassword(t, "wrong")
	h := newHarness()
	h.svc.loginErr = common.ErrInvalidCredentials

	_, err := h.run(t, "", "login", "alice")
	require.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestLogin_PasswordPromptFails(t *testing.T) {
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return nil, errors.New("no tty") }
	t.Cleanup(func() { getPassword = orig })
	h := newHarness()

	_, err := h.run(t, "", "login", "alice")
	require.Error(t, err)
	assert.Empty(t, h.svc.calls)
}

func TestReissue(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "", "reissue")
	require.NoError(t, err)
	assert.Equal(t, []string{"reissue"}, h.svc.calls)
	assert.Contains(t, out, "Tokens reissued")
}

func TestReissue_LoggedOutHintsLogin(t *testing.T) {
	h := newHarness()
	h.svc.reissueErr = common.ErrLoggedOut

	_, err := h.run(t, "", "reissue")
	require.ErrorIs(t, err, common.ErrLoggedOut)
	assert.Contains(t, err.Error(), "fluma login")
}

func TestLogout(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestWhoami(t *testing.T) {
	h := newHarness()
	h.svc.session = &services.Session{UserName: "alice"}

	out, err := h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "alice\n", out)
}

func TestWhoami_NotLoggedIn(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, "", "whoami")
	require.ErrorIs(t, err, client.ErrNotLoggedIn)
}

func TestPing_Unavailable(t *testing.T) {
	h := newHarness()
	h.svc.pingErr = client.ErrUnavailable

	_, err := h.run(t, "", "ping")
	require.ErrorIs(t, err, client.ErrUnavailable)
}

func TestConfigResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"server_endpoint_addr":"file:1","database_path":"file.db","timeout":"2s"}`), 0o600))

	t.Run("defaults", func(t *testing.T) {
		h := newHarness()
		_, err := h.run(t, "", "ping")
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:50051", h.cfg.ServerEndpointAddr)
		assert.Equal(t, "fluma.db", h.cfg.DatabasePath)
	})

	t.Run("file", func(t *testing.T) {
		h := newHarness()
		_, err := h.run(t, "", "ping", "--config", path)
		require.NoError(t, err)
		assert.Equal(t, "file:1", h.cfg.ServerEndpointAddr)
		assert.Equal(t, "file.db", h.cfg.DatabasePath)
		assert.Equal(t, 2*time.Second, h.cfg.Timeout)
	})

	t.Run("flags win over file", func(t *testing.T) {
		h := newHarness()
		_, err := h.run(t, "", "ping", "-c", path, "-a", "flag:2", "--db", "flag.db", "--timeout", "5s")
		require.NoError(t, err)
		assert.Equal(t, "flag:2", h.cfg.ServerEndpointAddr)
		assert.Equal(t, "flag.db", h.cfg.DatabasePath)
		assert.Equal(t, 5*time.Second, h.cfg.Timeout)
	})

	t.Run("bad file", func(t *testing.T) {
		h := newHarness()
		_, err := h.run(t, "", "ping", "-c", filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
		assert.Nil(t, h.cfg)
	})
}
