package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/taskescrow/internal/escrow"
	ferrors "git.home.luguber.info/inful/taskescrow/internal/foundation/errors"
	"git.home.luguber.info/inful/taskescrow/internal/identity"
)

type cliEnv struct {
	dir  string
	root *CLI
	out  *bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "taskescrow.yaml")
	cfg := fmt.Sprintf(`store:
  driver: sqlite
  sqlite_path: %s
events:
  audit_path: %s
logging:
  level: warn
  format: text
`, filepath.Join(dir, "escrow.db"), filepath.Join(dir, "audit.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return &cliEnv{dir: dir, root: &CLI{Config: cfgPath}, out: &bytes.Buffer{}}
}

func (e *cliEnv) global() *Global {
	e.out.Reset()
	return &Global{Out: e.out}
}

func (e *cliEnv) keygen(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(e.dir, name+".json")
	require.NoError(t, (&KeygenCmd{Output: path}).Run(e.global(), e.root))
	return path
}

func decodeTask(t *testing.T, data []byte) taskOutput {
	t.Helper()
	var out taskOutput
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: filepath.Join(dir, "taskescrow.yaml")}
	out := &bytes.Buffer{}

	require.NoError(t, (&InitCmd{}).Run(&Global{Out: out}, root))
	assert.Contains(t, out.String(), "initialized successfully")

	err := (&InitCmd{}).Run(&Global{Out: out}, root)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryAlreadyExists, ferrors.GetCategory(err))

	require.NoError(t, (&InitCmd{Force: true}).Run(&Global{Out: out}, root))
}

func TestKeygenCmd_RefusesOverwrite(t *testing.T) {
	env := newCLIEnv(t)
	path := env.keygen(t, "depositor")

	id, err := identity.Parse(strings.TrimSpace(env.out.String()))
	require.NoError(t, err)
	kp, err := identity.LoadKeypairFile(path)
	require.NoError(t, err)
	assert.Equal(t, id, kp.Identity())

	err = (&KeygenCmd{Output: path}).Run(env.global(), env.root)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryAlreadyExists, ferrors.GetCategory(err))
}

func TestTaskLifecycle(t *testing.T) {
	env := newCLIEnv(t)
	depositorPath := env.keygen(t, "depositor")
	depositor, err := identity.LoadKeypairFile(depositorPath)
	require.NoError(t, err)
	env.keygen(t, "recipient")
	recipient := strings.TrimSpace(env.out.String())

	create := &CreateCmd{Keypair: depositorPath, Recipient: recipient, Amount: 1500}
	require.NoError(t, create.Run(env.global(), env.root))
	created := decodeTask(t, env.out.Bytes())
	assert.Equal(t, depositor.Identity(), created.Depositor)
	assert.Equal(t, recipient, created.Recipient.String())
	assert.Equal(t, uint64(1500), created.Amount)
	assert.False(t, created.IsCompleted)
	assert.Equal(t, escrow.StateOpen, created.State)

	slot := created.Slot.String()

	t.Run("duplicate create conflicts", func(t *testing.T) {
		dup := &CreateCmd{Keypair: depositorPath, Recipient: recipient, Amount: 1, Task: slot}
		err := dup.Run(env.global(), env.root)
		require.Error(t, err)
		assert.True(t, errors.Is(err, escrow.ErrAllocationConflict))
	})

	t.Run("show", func(t *testing.T) {
		require.NoError(t, (&ShowCmd{Task: slot}).Run(env.global(), env.root))
		shown := decodeTask(t, env.out.Bytes())
		assert.Equal(t, created.TaskEscrow, shown.TaskEscrow)
	})

	t.Run("complete twice", func(t *testing.T) {
		for range 2 {
			require.NoError(t, (&CompleteCmd{Task: slot}).Run(env.global(), env.root))
			done := decodeTask(t, env.out.Bytes())
			assert.True(t, done.IsCompleted)
			assert.Equal(t, escrow.StateCompleted, done.State)
			assert.Equal(t, uint64(1500), done.Amount)
		}
	})
}

func TestCompleteCmd_UnknownSlot(t *testing.T) {
	env := newCLIEnv(t)
	kp, err := identity.GenerateKeypair()
	require.NoError(t, err)

	err = (&CompleteCmd{Task: kp.Identity().String()}).Run(env.global(), env.root)
	require.Error(t, err)
	assert.True(t, errors.Is(err, escrow.ErrRecordNotFound))
	assert.Equal(t, 4, ferrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestShowCmd_InvalidSlot(t *testing.T) {
	env := newCLIEnv(t)
	err := (&ShowCmd{Task: "not-base58-0OIl"}).Run(env.global(), env.root)
	require.Error(t, err)
	assert.Equal(t, ferrors.CategoryValidation, ferrors.GetCategory(err))
}

func TestHandshakeCmd(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, (&HandshakeCmd{}).Run(env.global(), env.root))
	assert.Contains(t, env.out.String(), "Is initialized!")
	assert.Contains(t, env.out.String(), escrow.ProgramID().String())
}

func TestGreetCmd(t *testing.T) {
	out := &bytes.Buffer{}
	require.NoError(t, (&GreetCmd{}).Run(&Global{Out: out}, &CLI{}))
	assert.Equal(t, "Greetings from: "+escrow.ProgramID().String()+"\n", out.String())
}

func TestParse_RoutesToCommand(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "greet"})
	require.NoError(t, err)
	assert.Equal(t, "greet", ctx.Command())

	out := &bytes.Buffer{}
	require.NoError(t, ctx.Run(&Global{Out: out}, &cli))
	assert.Contains(t, out.String(), "Greetings from:")
}

func TestMissingConfigPersistsRecords(t *testing.T) {
	dir := t.TempDir()
	root := &CLI{Config: filepath.Join(dir, "missing.yaml")}
	out := &bytes.Buffer{}
	g := &Global{Out: out}

	depositorPath := filepath.Join(dir, "depositor.json")
	require.NoError(t, (&KeygenCmd{Output: depositorPath}).Run(g, root))
	recipient, err := identity.GenerateKeypair()
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, (&CreateCmd{Keypair: depositorPath, Recipient: recipient.Identity().String(), Amount: 1000}).Run(g, root))
	created := decodeTask(t, out.Bytes())
	slot := created.Slot.String()

	out.Reset()
	require.NoError(t, (&ShowCmd{Task: slot}).Run(g, root))
	assert.Equal(t, created.TaskEscrow, decodeTask(t, out.Bytes()).TaskEscrow)

	out.Reset()
	require.NoError(t, (&CompleteCmd{Task: slot}).Run(g, root))
	assert.True(t, decodeTask(t, out.Bytes()).IsCompleted)

	assert.FileExists(t, filepath.Join(dir, "taskescrow.db"))
}
