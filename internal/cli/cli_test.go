package cli

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connectx "github.com/mintelligence/connectx-go"
	"github.com/mintelligence/connectx-go/internal/devserver"
)

const (
	cliToken = "cli-token"
	cliOrg   = "cli-org"
)

func newBackend(t *testing.T) (*devserver.MemoryStore, string) {
	t.Helper()

	store := devserver.NewMemoryStore()
	srv := httptest.NewServer(devserver.NewRouter(devserver.Options{
		Tokens: map[string]string{cliToken: cliOrg},
		Store:  store,
		Logger: zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return store, srv.URL + devserver.APIPrefix
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sessionArgs(baseURL string, args ...string) []string {
	return append([]string{"--base-url", baseURL, "--token", cliToken, "--org", cliOrg}, args...)
}

func TestTrackCmd(t *testing.T) {
	t.Parallel()
	store, baseURL := newBackend(t)

	out, err := execute(t, "", sessionArgs(baseURL, "track", "view product", "sku=A-100")...)
	require.NoError(t, err)
	assert.Contains(t, out, `tracked "view product"`)

	events, err := store.Events(context.Background(), cliOrg)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "view product", events[0].Name)
	assert.Equal(t, "A-100", events[0].Payload["sku"])
	assert.Equal(t, cliOrg, events[0].Payload["organizeId"])
	assert.NotEmpty(t, events[0].Payload["cx_cookie"])
}

func TestTrackCmd_BadToken(t *testing.T) {
	t.Parallel()
	_, baseURL := newBackend(t)

	_, err := execute(t, "", "--base-url", baseURL, "--token", "wrong", "--org", cliOrg, "track", "x")
	require.Error(t, err)
	assert.True(t, connectx.IsUnauthorized(err), err.Error())
}

func TestTrackCmd_MissingCredentials(t *testing.T) {
	t.Parallel()
	_, baseURL := newBackend(t)

	_, err := execute(t, "", "--base-url", baseURL, "track", "x")
	require.Error(t, err)
	assert.True(t, connectx.IsClientValidationError(err), err.Error())
}

func TestIdentifyCmd(t *testing.T) {
	t.Parallel()
	store, baseURL := newBackend(t)

	out, err := execute(t, "", sessionArgs(baseURL,
		"identify", "--key", "cx_userId", "--custom", "Car:plate=AB-1",
		"cx_userId=u-1", "cx_name=Alice")...)
	require.NoError(t, err)
	assert.Contains(t, out, "identified cx_userId=u-1")

	_, err = execute(t, "", sessionArgs(baseURL, "identify", "cx_userId=u-1", "cx_name=Bob")...)
	require.NoError(t, err)

	customers, err := store.Customers(context.Background(), cliOrg)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Alice", customers[0].Attributes["cx_name"])
	assert.Len(t, customers[0].Customs["Car"], 1)

	_, err = execute(t, "", sessionArgs(baseURL, "identify", "--update", "--set", "tier=gold", "cx_userId=u-1", "cx_name=Bob")...)
	require.NoError(t, err)

	customers, err = store.Customers(context.Background(), cliOrg)
	require.NoError(t, err)
	assert.Equal(t, "Bob", customers[0].Attributes["cx_name"])
	assert.Equal(t, "gold", customers[0].Attributes["tier"])
}

func TestTicketCmd(t *testing.T) {
	t.Parallel()
	store, baseURL := newBackend(t)

	out, err := execute(t, "", sessionArgs(baseURL,
		"ticket", "--subject", "Login broken", "--text", "It fails", "cx_email=a@example.com")...)
	require.NoError(t, err)
	assert.Contains(t, out, `ticket "Login broken" opened`)

	tickets := store.Tickets(cliOrg)
	require.Len(t, tickets, 1)
	assert.Equal(t, "email", tickets[0].Fields["cx_channel"])
	assert.Equal(t, map[string]any{"text": "It fails", "html": ""}, tickets[0].Fields["email"])

	_, err = execute(t, "", sessionArgs(baseURL, "ticket", "cx_email=a@example.com")...)
	require.Error(t, err)
	assert.True(t, connectx.IsClientValidationError(err), err.Error())
}

func TestRecordCmd(t *testing.T) {
	t.Parallel()
	_, baseURL := newBackend(t)

	out, err := execute(t, "", sessionArgs(baseURL,
		"record", "Car", `{"plate":"AB-1","attributes":{"referenceId":"r1"}}`)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "200 "), out)
	assert.Contains(t, out, `"referenceId":"r1"`)

	out, err = execute(t, "", sessionArgs(baseURL, "record", "Car")...)
	require.NoError(t, err)
	assert.Equal(t, "200 []\n", out)
}

func TestUnknownIDCmd(t *testing.T) {
	t.Parallel()
	store, baseURL := newBackend(t)

	out, err := execute(t, "", sessionArgs(baseURL, "unknown-id")...)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, connectx.TextUnknownIDNotFetched, lines[0])
	assert.Len(t, lines[1], 36)

	events, err := store.Events(context.Background(), cliOrg)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, connectx.EventGetUnknownID, events[0].Name)
}

func TestRunCmd(t *testing.T) {
	t.Parallel()
	store, baseURL := newBackend(t)

	_, err := execute(t, "pause\nresume\nshow form\nquit\n", sessionArgs(baseURL, "run")...)
	require.NoError(t, err)

	events, err := store.Events(context.Background(), cliOrg)
	require.NoError(t, err)
	var names []string
	for _, ev := range events {
		names = append(names, ev.Name)
	}
	assert.Equal(t, []string{"open app", "app pause", "app resume", "open form"}, names)
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, connectx.Version)
}
